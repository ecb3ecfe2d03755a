// Package quotetracker implements the proxy-side quote tracker: a
// capacity-bounded FIFO map from share_hash to the mint's quote id,
// mirrored into a bbolt bucket, plus the periodic minting loop that
// turns resolved quotes into wallet proofs. Open does not load existing
// bucket records back into the in-memory map, so after a restart Get
// and Snapshot see only entries stored since Open.
package quotetracker

import (
	"encoding/hex"
	"sync"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const (
	// capacityLimit triggers eviction; capacityTarget is what eviction
	// trims down to once triggered.
	capacityLimit  = 10000
	capacityTarget = 5000
)

var bucketName = []byte("mint_quotes")

// quoteKey names the bbolt record "mint:quotes:hash:<quote_id>" so the
// mirror reads the same way an operator inspecting the store by hand
// would expect.
func quoteKey(quoteID string) []byte {
	return []byte("mint:quotes:hash:" + quoteID)
}

// Tracker is the proxy's share_hash -> quote_id map.
type Tracker struct {
	mu     sync.Mutex
	order  [][32]byte
	byHash map[[32]byte]string
	db     *bbolt.DB
	log    *zap.Logger
}

// Open builds a Tracker backed by a bbolt database at dbPath. The
// database is created if it does not exist.
func Open(dbPath string, log *zap.Logger) (*Tracker, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Tracker{
		byHash: make(map[[32]byte]string),
		db:     db,
		log:    log,
	}, nil
}

// Close releases the underlying bbolt database.
func (t *Tracker) Close() error {
	return t.db.Close()
}

// Store inserts or updates the quote id for share_hash, evicting the
// oldest entries once the map exceeds capacityLimit (FIFO eviction).
func (t *Tracker) Store(shareHash [32]byte, quoteID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byHash[shareHash]; !exists {
		t.order = append(t.order, shareHash)
	}
	t.byHash[shareHash] = quoteID

	var evicted []string
	if len(t.order) > capacityLimit {
		for len(t.order) > capacityTarget {
			oldest := t.order[0]
			t.order = t.order[1:]
			if id, ok := t.byHash[oldest]; ok {
				evicted = append(evicted, id)
				delete(t.byHash, oldest)
			}
		}
	}

	return t.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if err := b.Put(quoteKey(quoteID), []byte(hex.EncodeToString(shareHash[:]))); err != nil {
			return err
		}
		for _, id := range evicted {
			if err := b.Delete(quoteKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get returns the quote id stored for share_hash, if any.
func (t *Tracker) Get(shareHash [32]byte) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byHash[shareHash]
	return id, ok
}

// Count returns the number of entries currently tracked.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byHash)
}

// DeleteMintFacingRecord removes the bbolt-mirrored record for quoteID,
// used once the minting loop has turned a quote into wallet proofs.
func (t *Tracker) DeleteMintFacingRecord(quoteID string) error {
	return t.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete(quoteKey(quoteID))
	})
}

// Snapshot returns every share_hash/quote_id pair currently tracked, in
// FIFO order. Used to back a WalletStore view over this tracker's own
// bookkeeping when no external wallet is linked.
func (t *Tracker) Snapshot() []MintQuote {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]MintQuote, 0, len(t.order))
	for _, h := range t.order {
		if id, ok := t.byHash[h]; ok {
			out = append(out, MintQuote{QuoteID: id, ShareHash: h})
		}
	}
	return out
}

// ResolveByQuoteID removes quoteID's entry from both the in-memory map
// and its bbolt mirror, used once the minting loop has recorded its
// proofs and the tracker no longer needs to hold it.
func (t *Tracker) ResolveByQuoteID(quoteID string) error {
	t.mu.Lock()
	var hash [32]byte
	found := false
	for h, id := range t.byHash {
		if id == quoteID {
			hash, found = h, true
			break
		}
	}
	if found {
		delete(t.byHash, hash)
		for i, h := range t.order {
			if h == hash {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	}
	t.mu.Unlock()
	return t.DeleteMintFacingRecord(quoteID)
}
