package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hibiken/asynq"

	"github.com/prooftv/themightyverse-sub000/internal/assets"
	"github.com/prooftv/themightyverse-sub000/internal/credits"
	"github.com/prooftv/themightyverse-sub000/internal/shared"
	"github.com/prooftv/themightyverse-sub000/internal/signing"
)

// mintDeadline bounds how long a worker-signed mint request stays valid.
const mintDeadline = 5 * time.Minute

// MintQueue processes credit-paid mints: debit first, then mint with the
// worker's signer key. A requester without enough credits fails permanently;
// transient ledger errors retry.
type MintQueue struct {
	credits *credits.Service
	assets  *assets.Service
	signer  *signing.Signer
	logger  *slog.Logger
	clock   func() time.Time
}

// NewMintQueue constructs a MintQueue. The signer's address must hold the
// admin role (or be the configured credit operator) so its debits and mint
// signatures are accepted.
func NewMintQueue(creditSvc *credits.Service, assetSvc *assets.Service, signer *signing.Signer, logger *slog.Logger) *MintQueue {
	return &MintQueue{
		credits: creditSvc,
		assets:  assetSvc,
		signer:  signer,
		logger:  logger,
		clock:   time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (q *MintQueue) WithClock(clock func() time.Time) *MintQueue {
	q.clock = clock
	return q
}

// HandleMintProcess processes TaskMintProcess tasks.
func (q *MintQueue) HandleMintProcess(ctx context.Context, t *asynq.Task) error {
	var payload MintProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	requester := common.HexToAddress(payload.Requester)
	to := common.HexToAddress(payload.To)

	if err := q.credits.DeductForOperation(ctx, q.signer.Address(), requester, credits.OpMintAsset); err != nil {
		if errors.Is(err, shared.ErrInsufficientCredits) {
			if q.logger != nil {
				q.logger.Warn("mint refused, insufficient credits", slog.String("requester", requester.Hex()))
			}
			return asynq.SkipRetry
		}
		return err
	}

	nonce, err := q.assets.Nonce(ctx, to)
	if err != nil {
		return err
	}
	req := assets.MintRequest{
		To:          to,
		TokenID:     payload.TokenID,
		Amount:      payload.Amount,
		MetadataURI: payload.MetadataURI,
		Nonce:       nonce,
		Deadline:    uint64(q.clock().Add(mintDeadline).Unix()),
	}
	sig, err := q.signer.SignTypedData(q.assets.Domain(), assets.TypeName, assets.TypeFields, req.Message())
	if err != nil {
		return err
	}
	if err := q.assets.MintWithSignature(ctx, req, sig); err != nil {
		// Credits were already spent; return them before giving up so the
		// requester is not left out of pocket, and skip the retry that
		// would debit a second time.
		if refundErr := q.credits.RefundOperation(ctx, q.signer.Address(), requester, credits.OpMintAsset); refundErr != nil {
			if q.logger != nil {
				q.logger.Error("refund after failed mint",
					slog.String("requester", requester.Hex()),
					slog.Any("error", refundErr),
				)
			}
		}
		if q.logger != nil {
			q.logger.Error("mint failed after debit",
				slog.String("requester", requester.Hex()),
				slog.Uint64("token_id", payload.TokenID),
				slog.Any("error", err),
			)
		}
		return asynq.SkipRetry
	}
	if q.logger != nil {
		q.logger.Info("credit-paid mint processed",
			slog.Uint64("token_id", payload.TokenID),
			slog.String("to", to.Hex()),
		)
	}
	return nil
}
