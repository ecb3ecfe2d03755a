package quotetracker

import "sync/atomic"

// demoWallet is a minimal WalletStore backed directly by this tracker's
// own share_hash -> quote_id bookkeeping, standing in for the real
// ecash wallet's cryptographic core until a binary links against one.
// Its balance counts resolved quotes rather than actual token value —
// the same "demo" spirit as MintingLoop's 1-unit CutDemoToken step.
type demoWallet struct {
	tracker *Tracker
	balance uint64
}

// NewDemoWallet builds a WalletStore whose pending-quote view is the
// tracker's own FIFO map.
func NewDemoWallet(tracker *Tracker) WalletStore {
	return &demoWallet{tracker: tracker}
}

func (w *demoWallet) SnapshotQuotes() []MintQuote {
	return w.tracker.Snapshot()
}

func (w *demoWallet) RecordProofs(quoteID string) error {
	if err := w.tracker.ResolveByQuoteID(quoteID); err != nil {
		return err
	}
	atomic.AddUint64(&w.balance, 1)
	return nil
}

func (w *demoWallet) Balance() uint64 {
	return atomic.LoadUint64(&w.balance)
}
