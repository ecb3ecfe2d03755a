// Package quotepipeline implements the pool-side share-to-quote
// pipeline: it turns an accepted share into a mint quote request,
// tracks it while in flight, and correlates the mint's eventual
// response or error back to the channel that submitted the share.
package quotepipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ehash.dev/pool/ehasherr"
	"ehash.dev/pool/hashwork"
	"ehash.dev/pool/pendingshare"
	"ehash.dev/pool/sv2ext"
)

// Hub is the subset of the messaging hub the pipeline dispatches
// requests through. Kept as an interface so the pipeline can be tested
// without a real mintpoolhub.Hub.
type Hub interface {
	SendQuoteRequest(sv2ext.MintQuoteRequest) error
}

// Downstream delivers notifications/failures to whichever connection
// owns a channel_id. Deliver* return an error (conventionally
// ehasherr.KindChannelClosed-style) when the channel is unknown so the
// pipeline can log-and-drop.
type Downstream interface {
	DeliverNotification(channelID uint32, note sv2ext.MintQuoteNotification) error
	DeliverFailure(channelID uint32, fail sv2ext.MintQuoteFailure) error
}

const defaultUnit = "HASH"

// Pipeline is the pool's Share->Quote orchestrator.
type Pipeline struct {
	pending    *pendingshare.Store
	hub        Hub
	downstream Downstream
	log        *zap.Logger

	mu          sync.Mutex
	headerIndex map[[32]byte][32]byte // header_hash -> share_hash, for in-flight quotes
	reorder     map[uint32]*channelQueue
}

// New builds a Pipeline. pending is owned by the caller; the pipeline
// only adds/removes/sweeps entries it created.
func New(pending *pendingshare.Store, hub Hub, downstream Downstream, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		pending:     pending,
		hub:         hub,
		downstream:  downstream,
		log:         log,
		headerIndex: make(map[[32]byte][32]byte),
		reorder:     make(map[uint32]*channelQueue),
	}
}

// ObserveAcceptedShare computes the quote amount, stores the pending
// context, and dispatches a quote request on the hub.
func (p *Pipeline) ObserveAcceptedShare(share sv2ext.AcceptedShare) error {
	amount := hashwork.AmountForShare(share.ShareHash)

	p.pending.Add(pendingshare.Pending{
		ChannelID:      share.ChannelID,
		SequenceNumber: share.SequenceNumber,
		ShareHash:      share.ShareHash,
		HeaderHash:     share.HeaderHash,
		Amount:         amount,
		LockingPubkey:  share.LockingPubkey,
	})

	p.mu.Lock()
	p.headerIndex[share.HeaderHash] = share.ShareHash
	p.seedReorderBaseline(share.ChannelID, share.SequenceNumber)
	p.mu.Unlock()

	req := sv2ext.MintQuoteRequest{
		RequestID:  uuid.NewString(),
		ShareHash:  share.ShareHash,
		Amount:     amount,
		Unit:       defaultUnit,
		HeaderHash: share.HeaderHash,
		LockingKey: share.LockingPubkey,
	}
	if err := p.hub.SendQuoteRequest(req); err != nil {
		return ehasherr.Wrap(ehasherr.KindChannelClosed, err)
	}
	return nil
}

// HandleQuoteResponse resolves an in-flight share to a successful quote
// and delivers the resulting notification in sequence order.
func (p *Pipeline) HandleQuoteResponse(resp sv2ext.MintQuoteResponse) {
	shareHash, ctx, ok := p.resolve(resp.HeaderHash)
	if !ok {
		p.log.Warn("quote response for unknown or already-resolved header hash", zap.Binary("header_hash", resp.HeaderHash[:]))
		return
	}

	note := sv2ext.MintQuoteNotification{
		ChannelID:      ctx.ChannelID,
		SequenceNumber: ctx.SequenceNumber,
		ShareHash:      shareHash,
		QuoteID:        resp.QuoteID,
		Amount:         ctx.Amount,
	}
	p.deliverInOrder(ctx.ChannelID, ctx.SequenceNumber, deliverable{notification: &note})
}

// HandleQuoteError resolves an in-flight share to a mint rejection and
// delivers the resulting failure in sequence order.
func (p *Pipeline) HandleQuoteError(errMsg sv2ext.MintQuoteError) {
	shareHash, ctx, ok := p.resolve(errMsg.HeaderHash)
	if !ok {
		p.log.Warn("quote error for unknown or already-resolved header hash", zap.Binary("header_hash", errMsg.HeaderHash[:]))
		return
	}

	fail := sv2ext.MintQuoteFailure{
		ChannelID:      ctx.ChannelID,
		SequenceNumber: ctx.SequenceNumber,
		ShareHash:      shareHash,
		ErrorMessage:   errMsg.ErrorMessage,
	}
	p.deliverInOrder(ctx.ChannelID, ctx.SequenceNumber, deliverable{failure: &fail})
}

// resolve removes the in-flight bookkeeping for a header_hash and
// returns the share_hash plus its pending context. ok is false for an
// unknown header hash (already reaped by SweepStale, or never sent) or
// a duplicate response (first one already consumed the entry).
func (p *Pipeline) resolve(headerHash [32]byte) ([32]byte, pendingshare.Pending, bool) {
	p.mu.Lock()
	shareHash, known := p.headerIndex[headerHash]
	if known {
		delete(p.headerIndex, headerHash)
	}
	p.mu.Unlock()
	if !known {
		return [32]byte{}, pendingshare.Pending{}, false
	}

	ctx, ok := p.pending.Remove(shareHash)
	if !ok {
		return shareHash, pendingshare.Pending{}, false
	}
	return shareHash, ctx, true
}

// SweepStale reaps pending entries older than threshold and drops their
// in-flight bookkeeping. A response that later arrives for a reaped
// entry resolves to unknown and is dropped by HandleQuoteResponse or
// HandleQuoteError. Each reaped sequence number is also fed into its
// channel's reorder queue as a dropped placeholder, so the queue's
// baseline advances past it instead of stalling forever waiting for a
// response that will never arrive.
func (p *Pipeline) SweepStale(threshold time.Duration) []pendingshare.Pending {
	stale := p.pending.Sweep(threshold)
	if len(stale) == 0 {
		return stale
	}

	p.mu.Lock()
	ready := make([]deliverable, 0, len(stale))
	for _, entry := range stale {
		delete(p.headerIndex, entry.HeaderHash)
		ready = append(ready, p.markReorderDropped(entry.ChannelID, entry.SequenceNumber)...)
	}
	p.mu.Unlock()

	for _, entry := range stale {
		p.log.Warn("pending share reaped by stale sweep",
			zap.Uint32("channel_id", entry.ChannelID),
			zap.Uint32("sequence_number", entry.SequenceNumber))
	}
	for _, r := range ready {
		p.dispatch(r.channelID, r)
	}
	return stale
}

type deliverable struct {
	channelID    uint32
	notification *sv2ext.MintQuoteNotification
	failure      *sv2ext.MintQuoteFailure
	dropped      bool // sequence was reaped by a stale sweep before the mint ever responded
}

// channelQueue buffers out-of-order deliverables for one channel so they
// can be released in sequence-number order.
type channelQueue struct {
	nextSeq uint32
	started bool
	pending map[uint32]deliverable
}

// seedReorderBaseline establishes channelID's reorder queue baseline from
// the first share accepted on that channel. Shares are observed in
// share-acceptance order, so the first sequence number seen for a
// channel is its lowest — unlike seeding from the first mint response,
// which can arrive out of order and silently strand every lower
// sequence number below the baseline. Must be called with p.mu held.
func (p *Pipeline) seedReorderBaseline(channelID, seq uint32) {
	q, ok := p.reorder[channelID]
	if !ok {
		q = &channelQueue{pending: make(map[uint32]deliverable)}
		p.reorder[channelID] = q
	}
	if !q.started {
		q.nextSeq = seq
		q.started = true
	}
}

// flushReady drains every contiguous entry starting at q's next expected
// sequence number. Must be called with p.mu held.
func flushReady(q *channelQueue) []deliverable {
	ready := make([]deliverable, 0, len(q.pending))
	for {
		next, ok := q.pending[q.nextSeq]
		if !ok {
			break
		}
		delete(q.pending, q.nextSeq)
		ready = append(ready, next)
		q.nextSeq++
	}
	return ready
}

// markReorderDropped records that seq on channelID will never receive a
// mint response and returns any deliverables this unblocks. Must be
// called with p.mu held.
func (p *Pipeline) markReorderDropped(channelID, seq uint32) []deliverable {
	p.seedReorderBaseline(channelID, seq)
	q := p.reorder[channelID]
	if _, exists := q.pending[seq]; !exists {
		q.pending[seq] = deliverable{channelID: channelID, dropped: true}
	}
	return flushReady(q)
}

// deliverInOrder buffers seq's deliverable and flushes every contiguous
// entry starting at the channel's next expected sequence number.
func (p *Pipeline) deliverInOrder(channelID, seq uint32, d deliverable) {
	d.channelID = channelID
	p.mu.Lock()
	p.seedReorderBaseline(channelID, seq)
	q := p.reorder[channelID]
	q.pending[seq] = d
	ready := flushReady(q)
	p.mu.Unlock()

	for _, r := range ready {
		p.dispatch(channelID, r)
	}
}

func (p *Pipeline) dispatch(channelID uint32, d deliverable) {
	if d.dropped {
		return
	}
	if d.notification != nil {
		if err := p.downstream.DeliverNotification(channelID, *d.notification); err != nil {
			p.log.Warn("dropping quote notification, unknown channel", zap.Uint32("channel_id", channelID), zap.Error(err))
		}
		return
	}
	if err := p.downstream.DeliverFailure(channelID, *d.failure); err != nil {
		p.log.Warn("dropping quote failure, unknown channel", zap.Uint32("channel_id", channelID), zap.Error(err))
	}
}
