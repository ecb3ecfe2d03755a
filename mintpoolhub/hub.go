// Package mintpoolhub implements the in-process fan-out between the pool
// and mint roles: three typed broadcast streams (quote_request,
// quote_response, quote_error), each bounded, each dropping the oldest
// buffered message on overflow rather than blocking the sender.
package mintpoolhub

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"ehash.dev/pool/ehasherr"
	"ehash.dev/pool/sv2ext"
)

// Role identifies which side of the hub a registered connection plays.
type Role int

const (
	RolePool Role = iota
	RoleMint
)

// Config enumerates the hub's tunables.
type Config struct {
	BroadcastBufferSize int
	MPSCBufferSize      int
	MaxRetries          int
	TimeoutMS           int
}

// DefaultConfig returns the hub's standard tuning.
func DefaultConfig() Config {
	return Config{
		BroadcastBufferSize: 1000,
		MPSCBufferSize:      1000,
		MaxRetries:          5,
		TimeoutMS:           5000,
	}
}

// Hub is the in-process broadcast fabric shared by the pool and mint
// sides of the ecash extension.
type Hub struct {
	cfg Config
	log *zap.Logger

	mu    sync.RWMutex
	conns map[uint64]Role

	requests  *stream
	responses *stream
	errs      *stream
}

// New builds a Hub with the given config. A nil logger falls back to a
// no-op logger so callers never need to wire logging just to get a
// working service.
func New(cfg Config, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		cfg:       cfg,
		log:       log,
		conns:     make(map[uint64]Role),
		requests:  newStream(cfg.BroadcastBufferSize),
		responses: newStream(cfg.BroadcastBufferSize),
		errs:      newStream(cfg.BroadcastBufferSize),
	}
}

// RegisterConnection records a participant and subscribes it to all three
// streams. The role is recorded but does not select which streams it
// receives.
func (h *Hub) RegisterConnection(connID uint64, role Role) {
	h.mu.Lock()
	h.conns[connID] = role
	h.mu.Unlock()

	h.requests.subscribe(connID, h.cfg.MPSCBufferSize)
	h.responses.subscribe(connID, h.cfg.MPSCBufferSize)
	h.errs.subscribe(connID, h.cfg.MPSCBufferSize)

	h.log.Debug("connection registered", zap.Uint64("conn_id", connID), zap.Int("role", int(role)))
}

// UnregisterConnection removes a participant. Idempotent.
func (h *Hub) UnregisterConnection(connID uint64) {
	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()

	h.requests.unsubscribe(connID)
	h.responses.unsubscribe(connID)
	h.errs.unsubscribe(connID)
}

// SendQuoteRequest broadcasts msg to every subscriber of the request
// stream. Non-blocking; returns ChannelClosed if there were no
// subscribers to deliver to.
func (h *Hub) SendQuoteRequest(msg sv2ext.MintQuoteRequest) error {
	return h.requests.broadcast(msg)
}

// SendQuoteResponse broadcasts a mint's response to the response stream.
func (h *Hub) SendQuoteResponse(msg sv2ext.MintQuoteResponse) error {
	return h.responses.broadcast(msg)
}

// SendQuoteError broadcasts a mint rejection to the error stream.
func (h *Hub) SendQuoteError(msg sv2ext.MintQuoteError) error {
	return h.errs.broadcast(msg)
}

// ReceiveQuoteRequest blocks the calling subscriber until a request
// arrives or the deadline elapses.
func (h *Hub) ReceiveQuoteRequest(ctx context.Context, connID uint64, deadline time.Duration) (sv2ext.MintQuoteRequest, error) {
	v, err := h.requests.receive(ctx, connID, deadline)
	if err != nil {
		return sv2ext.MintQuoteRequest{}, err
	}
	return v.(sv2ext.MintQuoteRequest), nil
}

// ReceiveQuoteResponse blocks until a response arrives or the deadline
// elapses.
func (h *Hub) ReceiveQuoteResponse(ctx context.Context, connID uint64, deadline time.Duration) (sv2ext.MintQuoteResponse, error) {
	v, err := h.responses.receive(ctx, connID, deadline)
	if err != nil {
		return sv2ext.MintQuoteResponse{}, err
	}
	return v.(sv2ext.MintQuoteResponse), nil
}

// ReceiveQuoteError blocks until an error arrives or the deadline elapses.
func (h *Hub) ReceiveQuoteError(ctx context.Context, connID uint64, deadline time.Duration) (sv2ext.MintQuoteError, error) {
	v, err := h.errs.receive(ctx, connID, deadline)
	if err != nil {
		return sv2ext.MintQuoteError{}, err
	}
	return v.(sv2ext.MintQuoteError), nil
}

// stream is a single bounded broadcast topic: one buffered channel per
// subscriber, overflow drops the oldest queued message.
type stream struct {
	bufSize int

	mu   sync.Mutex
	subs map[uint64]chan any
}

func newStream(bufSize int) *stream {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &stream{bufSize: bufSize, subs: make(map[uint64]chan any)}
}

func (s *stream) subscribe(connID uint64, mpscSize int) {
	size := s.bufSize
	if mpscSize > 0 && mpscSize < size {
		size = mpscSize
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[connID] = make(chan any, size)
}

func (s *stream) unsubscribe(connID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, connID)
}

// broadcast delivers msg to every subscriber, non-blocking. A full
// subscriber buffer has its oldest entry dropped to make room.
func (s *stream) broadcast(msg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.subs) == 0 {
		return ehasherr.New(ehasherr.KindChannelClosed, "mintpoolhub: no subscribers for stream")
	}

	for _, ch := range s.subs {
		select {
		case ch <- msg:
		default:
			// Buffer full: drop the oldest queued message, then retry once.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- msg:
			default:
			}
		}
	}
	return nil
}

func (s *stream) receive(ctx context.Context, connID uint64, deadline time.Duration) (any, error) {
	s.mu.Lock()
	ch, ok := s.subs[connID]
	s.mu.Unlock()
	if !ok {
		return nil, ehasherr.New(ehasherr.KindChannelClosed, "mintpoolhub: connection not subscribed")
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case v := <-ch:
		return v, nil
	case <-timer.C:
		return nil, ehasherr.New(ehasherr.KindTimeout, "mintpoolhub: receive deadline exceeded")
	case <-ctx.Done():
		return nil, ehasherr.Wrap(ehasherr.KindTimeout, ctx.Err())
	}
}
