package quotetracker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// MintQuote is a quote the wallet is still holding locally, awaiting
// resolution into spendable proofs.
type MintQuote struct {
	QuoteID   string
	ShareHash [32]byte
}

// WalletStore is the ecash wallet's local view, owned entirely by the
// quote tracker. Its cryptographic core is an external collaborator;
// this package only drives it.
type WalletStore interface {
	SnapshotQuotes() []MintQuote
	RecordProofs(quoteID string) error
	Balance() uint64
}

// MintClient is the mint's HTTP surface this loop consumes.
type MintClient interface {
	ResolveShareUUIDs(ctx context.Context, quoteIDs []string) (map[string]string, error)
	GetMiningShareProofs(ctx context.Context, uuid, quoteID string) error
	CutDemoToken(ctx context.Context) error
}

// MintingLoop runs the Quote Tracker's periodic proof-minting cycle.
type MintingLoop struct {
	tracker  *Tracker
	wallet   WalletStore
	mint     MintClient
	interval time.Duration
	log      *zap.Logger
}

// NewMintingLoop builds a loop with a default 60s interval when
// interval is zero.
func NewMintingLoop(tracker *Tracker, wallet WalletStore, mint MintClient, interval time.Duration, log *zap.Logger) *MintingLoop {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MintingLoop{tracker: tracker, wallet: wallet, mint: mint, interval: interval, log: log}
}

// Run blocks, executing RunOnce every interval until ctx is cancelled.
// Intended to run on its own dedicated goroutine: the blocking HTTP and
// disk I/O here must not share a goroutine with non-blocking paths.
func (l *MintingLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.RunOnce(ctx)
		}
	}
}

// RunOnce executes one minting cycle: resolve outstanding quotes to
// share UUIDs, fetch each quote's mining-share proofs, record them in
// the wallet, and clear the tracker's mint-facing record. All failures
// are logged and left for the next cycle to retry.
func (l *MintingLoop) RunOnce(ctx context.Context) {
	quotes := l.wallet.SnapshotQuotes()
	if len(quotes) == 0 {
		return
	}

	ids := make([]string, len(quotes))
	byID := make(map[string]MintQuote, len(quotes))
	for i, q := range quotes {
		ids[i] = q.QuoteID
		byID[q.QuoteID] = q
	}

	resolved, err := l.mint.ResolveShareUUIDs(ctx, ids)
	if err != nil {
		l.log.Warn("minting loop: failed to resolve share uuids, retrying next cycle", zap.Error(err))
		return
	}

	for quoteID, uuid := range resolved {
		q, ok := byID[quoteID]
		if !ok {
			continue
		}
		if err := l.mint.GetMiningShareProofs(ctx, uuid, q.QuoteID); err != nil {
			l.log.Warn("minting loop: get_mining_share_proofs failed, retrying next cycle",
				zap.String("quote_id", q.QuoteID), zap.Error(err))
			continue
		}
		if err := l.wallet.RecordProofs(q.QuoteID); err != nil {
			l.log.Warn("minting loop: failed to record proofs", zap.String("quote_id", q.QuoteID), zap.Error(err))
			continue
		}
		if err := l.tracker.DeleteMintFacingRecord(q.QuoteID); err != nil {
			l.log.Warn("minting loop: failed to delete mint-facing record", zap.String("quote_id", q.QuoteID), zap.Error(err))
		}
		l.log.Info("minted proofs for share quote", zap.String("quote_id", q.QuoteID), zap.Uint64("wallet_balance", l.wallet.Balance()))
	}

	if err := l.mint.CutDemoToken(ctx); err != nil {
		l.log.Warn("minting loop: demo token cut failed", zap.Error(err))
	}
}
