package assets

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/prooftv/themightyverse-sub000/internal/roles"
	"github.com/prooftv/themightyverse-sub000/internal/shared"
	"github.com/prooftv/themightyverse-sub000/internal/signing"
)

type balanceKey struct {
	account common.Address
	tokenID uint64
}

type memoryAssetRepo struct {
	nonces    map[common.Address]uint64
	balances  map[balanceKey]uint64
	tokens    map[uint64]*Asset
	royalties map[uint64]Royalty
	events    []Event
	nextToken uint64
}

func newMemoryAssetRepo() *memoryAssetRepo {
	return &memoryAssetRepo{
		nonces:    make(map[common.Address]uint64),
		balances:  make(map[balanceKey]uint64),
		tokens:    make(map[uint64]*Asset),
		royalties: make(map[uint64]Royalty),
		nextToken: 1,
	}
}

func (r *memoryAssetRepo) Nonce(ctx context.Context, account common.Address) (uint64, error) {
	return r.nonces[account], nil
}

func (r *memoryAssetRepo) registerToken(tokenID uint64, uri string, creator common.Address) {
	if _, exists := r.tokens[tokenID]; exists {
		return
	}
	r.tokens[tokenID] = &Asset{
		TokenID:     tokenID,
		URI:         uri,
		MetadataCID: MetadataCIDFromURI(uri),
		Creator:     creator,
		CreatedAt:   time.Unix(1_700_000_000, 0),
		IsActive:    true,
	}
	if tokenID >= r.nextToken {
		r.nextToken = tokenID + 1
	}
}

func (r *memoryAssetRepo) ApplyMint(ctx context.Context, mint Mint) error {
	if r.nonces[mint.To] != mint.ExpectedNonce {
		return fmt.Errorf("assets: mint for %s: %w", mint.To.Hex(), shared.ErrInvalidNonce)
	}
	r.registerToken(mint.TokenID, mint.MetadataURI, mint.To)
	r.balances[balanceKey{mint.To, mint.TokenID}] += mint.Amount
	r.nonces[mint.To]++
	r.events = append(r.events, Event{TokenID: mint.TokenID, To: mint.To, Amount: mint.Amount, MetadataURI: mint.MetadataURI})
	return nil
}

func (r *memoryAssetRepo) ApplyBatchMint(ctx context.Context, batch BatchMint) ([]uint64, error) {
	tokenIDs := make([]uint64, 0, len(batch.Recipients))
	for i, recipient := range batch.Recipients {
		tokenID := r.nextToken
		r.registerToken(tokenID, batch.MetadataURIs[i], recipient)
		r.balances[balanceKey{recipient, tokenID}] += batch.Amounts[i]
		r.events = append(r.events, Event{TokenID: tokenID, To: recipient, Amount: batch.Amounts[i], MetadataURI: batch.MetadataURIs[i]})
		tokenIDs = append(tokenIDs, tokenID)
	}
	return tokenIDs, nil
}

func (r *memoryAssetRepo) BalanceOf(ctx context.Context, account common.Address, tokenID uint64) (uint64, error) {
	return r.balances[balanceKey{account, tokenID}], nil
}

func (r *memoryAssetRepo) TotalSupply(ctx context.Context) (uint64, error) {
	return uint64(len(r.tokens)), nil
}

func (r *memoryAssetRepo) Asset(ctx context.Context, tokenID uint64) (*Asset, error) {
	asset, ok := r.tokens[tokenID]
	if !ok {
		return nil, fmt.Errorf("assets: token %d: %w", tokenID, shared.ErrNotFound)
	}
	return asset, nil
}

func (r *memoryAssetRepo) SetRoyalty(ctx context.Context, tokenID uint64, royalty Royalty) error {
	if _, ok := r.tokens[tokenID]; !ok {
		return fmt.Errorf("assets: token %d: %w", tokenID, shared.ErrNotFound)
	}
	r.royalties[tokenID] = royalty
	return nil
}

func (r *memoryAssetRepo) Royalty(ctx context.Context, tokenID uint64) (*Royalty, error) {
	royalty, ok := r.royalties[tokenID]
	if !ok {
		return nil, fmt.Errorf("assets: royalty for token %d: %w", tokenID, shared.ErrNotFound)
	}
	return &royalty, nil
}

func (r *memoryAssetRepo) UpdateURI(ctx context.Context, tokenID uint64, uri string) error {
	asset, ok := r.tokens[tokenID]
	if !ok {
		return fmt.Errorf("assets: token %d: %w", tokenID, shared.ErrNotFound)
	}
	asset.URI = uri
	asset.MetadataCID = MetadataCIDFromURI(uri)
	return nil
}

func (r *memoryAssetRepo) SetActive(ctx context.Context, tokenID uint64, active bool) error {
	asset, ok := r.tokens[tokenID]
	if !ok {
		return fmt.Errorf("assets: token %d: %w", tokenID, shared.ErrNotFound)
	}
	asset.IsActive = active
	return nil
}

func (r *memoryAssetRepo) Events(ctx context.Context, tokenID uint64, limit int) ([]Event, error) {
	return r.events, nil
}

// roleTable resolves roles through the real hierarchy closure so tests
// exercise admin-implies-curator the way the registry does.
type roleTable struct {
	held map[common.Address]roles.Role
}

func (t roleTable) HasRole(ctx context.Context, account common.Address, required roles.Role) (bool, error) {
	held, ok := t.held[account]
	if !ok {
		return false, nil
	}
	return roles.HasRolePermission(held, required), nil
}

var assetDomain = signing.Domain{
	Name:              "MightyVerseAssets",
	Version:           "1",
	ChainID:           137,
	VerifyingContract: common.HexToAddress("0x00000000000000000000000000000000000000a1"),
}

var (
	collector = common.HexToAddress("0xcccc000000000000000000000000000000000001")
	curator   = common.HexToAddress("0xcccc000000000000000000000000000000000002")
	viewer    = common.HexToAddress("0xcccc000000000000000000000000000000000003")
)

func newAssetFixture(t *testing.T) (*Service, *memoryAssetRepo, *signing.Signer) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	admin := signing.NewSigner(key)

	repo := newMemoryAssetRepo()
	table := roleTable{held: map[common.Address]roles.Role{
		admin.Address(): roles.Admin,
		curator:         roles.Curator,
		viewer:          roles.Viewer,
	}}
	svc := NewService(repo, table, assetDomain, nil)
	svc.WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) })
	return svc, repo, admin
}

func signedAssetMint(t *testing.T, signer *signing.Signer, req MintRequest) []byte {
	t.Helper()
	sig, err := signer.SignTypedData(assetDomain, TypeName, TypeFields, req.Message())
	require.NoError(t, err)
	return sig
}

func TestMintWithSignature(t *testing.T) {
	svc, repo, admin := newAssetFixture(t)
	ctx := context.Background()

	req := MintRequest{
		To:          collector,
		TokenID:     7,
		Amount:      3,
		MetadataURI: "ipfs://QmFirst",
		Nonce:       0,
		Deadline:    1_700_003_600,
	}
	require.NoError(t, svc.MintWithSignature(ctx, req, signedAssetMint(t, admin, req)))

	balance, err := svc.BalanceOf(ctx, collector, 7)
	require.NoError(t, err)
	require.Equal(t, uint64(3), balance)

	nonce, err := svc.Nonce(ctx, collector)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)

	uri, err := svc.URI(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "ipfs://QmFirst", uri)
	require.Len(t, repo.events, 1)
}

func TestMintNonceAdvancesOnceOnly(t *testing.T) {
	svc, _, admin := newAssetFixture(t)
	ctx := context.Background()

	req := MintRequest{To: collector, TokenID: 1, Amount: 1, MetadataURI: "ipfs://QmA", Nonce: 0, Deadline: 1_700_003_600}
	sig := signedAssetMint(t, admin, req)
	require.NoError(t, svc.MintWithSignature(ctx, req, sig))

	// Replay with the same signature: nonce has moved on.
	require.ErrorIs(t, svc.MintWithSignature(ctx, req, sig), shared.ErrInvalidNonce)

	nonce, err := svc.Nonce(ctx, collector)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)

	next := MintRequest{To: collector, TokenID: 2, Amount: 1, MetadataURI: "ipfs://QmB", Nonce: 1, Deadline: 1_700_003_600}
	require.NoError(t, svc.MintWithSignature(ctx, next, signedAssetMint(t, admin, next)))

	nonce, err = svc.Nonce(ctx, collector)
	require.NoError(t, err)
	require.Equal(t, uint64(2), nonce)
}

func TestMintDeadlinePrecedesSignerChecks(t *testing.T) {
	svc, repo, _ := newAssetFixture(t)
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	stranger := signing.NewSigner(key)

	req := MintRequest{To: collector, TokenID: 1, Amount: 1, MetadataURI: "ipfs://QmA", Nonce: 0, Deadline: 1_600_000_000}
	sig, err := stranger.SignTypedData(assetDomain, TypeName, TypeFields, req.Message())
	require.NoError(t, err)

	err = svc.MintWithSignature(ctx, req, sig)
	require.ErrorIs(t, err, shared.ErrExpiredRequest)
	require.NotErrorIs(t, err, shared.ErrUnauthorizedSigner)
	require.Empty(t, repo.tokens)
}

func TestMintUnauthorizedSigner(t *testing.T) {
	svc, repo, _ := newAssetFixture(t)
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	stranger := signing.NewSigner(key)

	req := MintRequest{To: collector, TokenID: 1, Amount: 1, MetadataURI: "ipfs://QmA", Nonce: 0, Deadline: 1_700_003_600}
	sig, err := stranger.SignTypedData(assetDomain, TypeName, TypeFields, req.Message())
	require.NoError(t, err)

	require.ErrorIs(t, svc.MintWithSignature(ctx, req, sig), shared.ErrUnauthorizedSigner)
	require.Empty(t, repo.tokens)
}

func TestMintTamperedFieldRejected(t *testing.T) {
	svc, _, admin := newAssetFixture(t)
	ctx := context.Background()

	req := MintRequest{To: collector, TokenID: 1, Amount: 1, MetadataURI: "ipfs://QmA", Nonce: 0, Deadline: 1_700_003_600}
	sig := signedAssetMint(t, admin, req)

	// Recipient swapped after signing: recovery yields a different address.
	req.To = viewer
	require.ErrorIs(t, svc.MintWithSignature(ctx, req, sig), shared.ErrUnauthorizedSigner)
}

func TestTotalSupplyCountsTokensOnce(t *testing.T) {
	svc, _, admin := newAssetFixture(t)
	ctx := context.Background()

	first := MintRequest{To: collector, TokenID: 7, Amount: 2, MetadataURI: "ipfs://QmFirst", Nonce: 0, Deadline: 1_700_003_600}
	require.NoError(t, svc.MintWithSignature(ctx, first, signedAssetMint(t, admin, first)))

	// Same token again with a different URI: supply unchanged, first URI kept.
	again := MintRequest{To: viewer, TokenID: 7, Amount: 5, MetadataURI: "ipfs://QmOther", Nonce: 0, Deadline: 1_700_003_600}
	require.NoError(t, svc.MintWithSignature(ctx, again, signedAssetMint(t, admin, again)))

	supply, err := svc.TotalSupply(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), supply)

	uri, err := svc.URI(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "ipfs://QmFirst", uri)

	balance, err := svc.BalanceOf(ctx, viewer, 7)
	require.NoError(t, err)
	require.Equal(t, uint64(5), balance)
}

func TestBatchMintAssignsSequentialIDs(t *testing.T) {
	svc, _, _ := newAssetFixture(t)
	ctx := context.Background()

	recipients := []common.Address{collector, viewer, collector}
	amounts := []uint64{1, 2, 3}
	uris := []string{"ipfs://Qm1", "ipfs://Qm2", "ipfs://Qm3"}

	tokenIDs, err := svc.BatchMint(ctx, curator, recipients, amounts, uris)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3}, tokenIDs)

	supply, err := svc.TotalSupply(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), supply)

	balance, err := svc.BalanceOf(ctx, viewer, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(2), balance)
}

func TestBatchMintAdminThroughClosure(t *testing.T) {
	svc, _, admin := newAssetFixture(t)

	_, err := svc.BatchMint(context.Background(), admin.Address(),
		[]common.Address{collector}, []uint64{1}, []string{"ipfs://Qm1"})
	require.NoError(t, err)
}

func TestBatchMintLengthMismatch(t *testing.T) {
	svc, repo, _ := newAssetFixture(t)
	ctx := context.Background()

	_, err := svc.BatchMint(ctx, curator,
		[]common.Address{collector, viewer}, []uint64{1}, []string{"ipfs://Qm1", "ipfs://Qm2"})
	require.ErrorIs(t, err, shared.ErrLengthMismatch)

	// Nothing minted on the mismatch.
	supply, err := svc.TotalSupply(ctx)
	require.NoError(t, err)
	require.Zero(t, supply)
	require.Empty(t, repo.events)
}

func TestBatchMintRequiresMinterRole(t *testing.T) {
	svc, _, _ := newAssetFixture(t)

	_, err := svc.BatchMint(context.Background(), viewer,
		[]common.Address{collector}, []uint64{1}, []string{"ipfs://Qm1"})
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestRoyaltyInfoFloorDivision(t *testing.T) {
	svc, _, admin := newAssetFixture(t)
	ctx := context.Background()

	req := MintRequest{To: collector, TokenID: 1, Amount: 1, MetadataURI: "ipfs://QmA", Nonce: 0, Deadline: 1_700_003_600}
	require.NoError(t, svc.MintWithSignature(ctx, req, signedAssetMint(t, admin, req)))
	require.NoError(t, svc.SetTokenRoyalty(ctx, admin.Address(), 1, collector, 500))

	// 5% of 1e18 wei.
	sale, _ := new(big.Int).SetString("1000000000000000000", 10)
	recipient, amount, err := svc.RoyaltyInfo(ctx, 1, sale)
	require.NoError(t, err)
	require.Equal(t, collector, recipient)
	require.Equal(t, "50000000000000000", amount.String())

	// Floor on an uneven division: 333 * 500 / 10000 = 16.65 -> 16.
	recipient, amount, err = svc.RoyaltyInfo(ctx, 1, big.NewInt(333))
	require.NoError(t, err)
	require.Equal(t, collector, recipient)
	require.Equal(t, int64(16), amount.Int64())
}

func TestRoyaltyInfoUnsetTokenPaysNothing(t *testing.T) {
	svc, _, admin := newAssetFixture(t)
	ctx := context.Background()

	req := MintRequest{To: collector, TokenID: 1, Amount: 1, MetadataURI: "ipfs://QmA", Nonce: 0, Deadline: 1_700_003_600}
	require.NoError(t, svc.MintWithSignature(ctx, req, signedAssetMint(t, admin, req)))

	recipient, amount, err := svc.RoyaltyInfo(ctx, 1, big.NewInt(1_000_000))
	require.NoError(t, err)
	require.Equal(t, common.Address{}, recipient)
	require.Zero(t, amount.Sign())
}

func TestSetTokenRoyaltyValidation(t *testing.T) {
	svc, _, admin := newAssetFixture(t)
	ctx := context.Background()

	req := MintRequest{To: collector, TokenID: 1, Amount: 1, MetadataURI: "ipfs://QmA", Nonce: 0, Deadline: 1_700_003_600}
	require.NoError(t, svc.MintWithSignature(ctx, req, signedAssetMint(t, admin, req)))

	require.ErrorIs(t, svc.SetTokenRoyalty(ctx, admin.Address(), 1, collector, 10_001), ErrInvalidRoyalty)
	require.ErrorIs(t, svc.SetTokenRoyalty(ctx, curator, 1, collector, 500), shared.ErrUnauthorized)
	require.ErrorIs(t, svc.SetTokenRoyalty(ctx, admin.Address(), 99, collector, 500), shared.ErrNotFound)
}

func TestUpdateTokenURI(t *testing.T) {
	svc, _, admin := newAssetFixture(t)
	ctx := context.Background()

	req := MintRequest{To: collector, TokenID: 1, Amount: 1, MetadataURI: "ipfs://QmOld", Nonce: 0, Deadline: 1_700_003_600}
	require.NoError(t, svc.MintWithSignature(ctx, req, signedAssetMint(t, admin, req)))

	require.ErrorIs(t, svc.UpdateTokenURI(ctx, viewer, 1, "ipfs://QmNew"), shared.ErrUnauthorized)

	require.NoError(t, svc.UpdateTokenURI(ctx, curator, 1, "ipfs://QmNew"))
	uri, err := svc.URI(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "ipfs://QmNew", uri)

	asset, err := svc.AssetMetadata(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "QmNew", asset.MetadataCID)
}

func TestSetAssetActive(t *testing.T) {
	svc, _, admin := newAssetFixture(t)
	ctx := context.Background()

	req := MintRequest{To: collector, TokenID: 1, Amount: 1, MetadataURI: "ipfs://QmA", Nonce: 0, Deadline: 1_700_003_600}
	require.NoError(t, svc.MintWithSignature(ctx, req, signedAssetMint(t, admin, req)))

	require.ErrorIs(t, svc.SetAssetActive(ctx, curator, 1, false), shared.ErrUnauthorized)

	require.NoError(t, svc.SetAssetActive(ctx, admin.Address(), 1, false))
	asset, err := svc.AssetMetadata(ctx, 1)
	require.NoError(t, err)
	require.False(t, asset.IsActive)
}
