// Package pin stores content on a pinning service and addresses it by CID.
// The HTTP store talks to a remote pinning API; the memory store derives
// CIDs from a keccak hash and backs tests and development.
package pin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/prooftv/themightyverse-sub000/internal/shared"
)

// Store pins content and fetches it back by CID.
type Store interface {
	Pin(ctx context.Context, content []byte) (string, error)
	Fetch(ctx context.Context, cid string) ([]byte, error)
}

// URI renders a CID as an ipfs:// URI.
func URI(cid string) string {
	return "ipfs://" + cid
}

// CIDFromURI strips the ipfs:// scheme.
func CIDFromURI(uri string) string {
	return strings.TrimPrefix(uri, "ipfs://")
}

// HTTPStore pins through a remote pinning API.
type HTTPStore struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPStore constructs an HTTPStore against a pinning API base URL.
func NewHTTPStore(baseURL, token string) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type pinResponse struct {
	CID string `json:"cid"`
}

// Pin uploads content and returns the CID the service assigned.
func (s *HTTPStore) Pin(ctx context.Context, content []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/pins", bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pin: upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("pin: upload: unexpected status %d", resp.StatusCode)
	}
	var out pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("pin: decode response: %w", err)
	}
	if out.CID == "" {
		return "", errors.New("pin: service returned empty cid")
	}
	return out.CID, nil
}

// Fetch retrieves pinned content through the service's gateway path.
func (s *HTTPStore) Fetch(ctx context.Context, cid string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/gateway/"+cid, nil)
	if err != nil {
		return nil, err
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pin: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("pin: cid %s: %w", cid, shared.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pin: fetch: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// MemoryStore is a content-addressed in-memory store. CIDs are the keccak
// hash of the content, so identical content pins to the same CID.
type MemoryStore struct {
	mu      sync.RWMutex
	content map[string][]byte
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{content: make(map[string][]byte)}
}

// Pin stores content under its keccak-derived CID.
func (s *MemoryStore) Pin(ctx context.Context, content []byte) (string, error) {
	cid := MemoryCID(content)
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(content))
	copy(stored, content)
	s.content[cid] = stored
	return cid, nil
}

// Fetch returns pinned content by CID.
func (s *MemoryStore) Fetch(ctx context.Context, cid string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.content[cid]
	if !ok {
		return nil, fmt.Errorf("pin: cid %s: %w", cid, shared.ErrNotFound)
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, nil
}

// MemoryCID derives the content-addressed identifier the memory store uses.
func MemoryCID(content []byte) string {
	return "keccak-" + crypto.Keccak256Hash(content).Hex()[2:]
}
