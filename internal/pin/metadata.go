package pin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// MetadataVersion is the current asset-metadata schema version.
const MetadataVersion = 1

// Attribute is one display trait on an asset.
type Attribute struct {
	TraitType string `json:"trait_type" validate:"required"`
	Value     string `json:"value" validate:"required"`
}

// AssetMetadata is the versioned metadata document pinned alongside asset
// content. Image and AnimationURL reference already-pinned content by URI.
type AssetMetadata struct {
	Version      int         `json:"version" validate:"required,eq=1"`
	Name         string      `json:"name" validate:"required,max=256"`
	Description  string      `json:"description" validate:"max=4096"`
	Image        string      `json:"image" validate:"required,startswith=ipfs://"`
	AnimationURL string      `json:"animation_url,omitempty" validate:"omitempty,startswith=ipfs://"`
	Creator      string      `json:"creator" validate:"required,len=42,startswith=0x"`
	Attributes   []Attribute `json:"attributes,omitempty" validate:"dive"`
}

var metadataValidate = validator.New()

// Validate checks the document against the schema.
func (m AssetMetadata) Validate() error {
	if err := metadataValidate.Struct(m); err != nil {
		return fmt.Errorf("pin: invalid metadata: %w", err)
	}
	return nil
}

// PinMetadata validates, encodes and pins a metadata document, returning
// its ipfs:// URI.
func PinMetadata(ctx context.Context, store Store, m AssetMetadata) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("pin: encode metadata: %w", err)
	}
	cid, err := store.Pin(ctx, encoded)
	if err != nil {
		return "", err
	}
	return URI(cid), nil
}

// FetchMetadata fetches and decodes a metadata document by URI, validating
// it against the schema.
func FetchMetadata(ctx context.Context, store Store, uri string) (*AssetMetadata, error) {
	raw, err := store.Fetch(ctx, CIDFromURI(uri))
	if err != nil {
		return nil, err
	}
	var m AssetMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("pin: decode metadata: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
