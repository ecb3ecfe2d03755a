package statssnapshot

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Collector caches the single latest snapshot received over a
// line-delimited TCP connection. T is the concrete snapshot type
// (ProxySnapshot or PoolSnapshot); timestampFn extracts its timestamp
// field without requiring T to satisfy an interface.
type Collector[T any] struct {
	threshold   time.Duration
	timestampFn func(T) time.Time
	log         *zap.Logger

	mu     sync.RWMutex
	latest T
	have   bool
}

// NewCollector builds a Collector with the given staleness threshold
// (default 15s when threshold <= 0).
func NewCollector[T any](threshold time.Duration, timestampFn func(T) time.Time, log *zap.Logger) *Collector[T] {
	if threshold <= 0 {
		threshold = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector[T]{threshold: threshold, timestampFn: timestampFn, log: log}
}

// Latest returns the most recently ingested snapshot.
func (c *Collector[T]) Latest() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest, c.have
}

// IsStale reports whether the cached snapshot is missing or older than
// the staleness threshold as of now.
func (c *Collector[T]) IsStale(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.have {
		return true
	}
	return now.Sub(c.timestampFn(c.latest)) > c.threshold
}

// Ingest parses one NDJSON line and replaces the cached snapshot. A
// parse failure is logged and the line dropped; it never returns an
// error to the caller.
func (c *Collector[T]) Ingest(line []byte) {
	var v T
	if err := json.Unmarshal(line, &v); err != nil {
		c.log.Warn("stats collector: dropping malformed snapshot line", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.latest = v
	c.have = true
	c.mu.Unlock()
}

// Serve accepts connections on ln and feeds every line received on each
// to Ingest, until ctx is cancelled.
func (c *Collector[T]) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go c.handleConn(conn)
	}
}

func (c *Collector[T]) handleConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		c.Ingest(append([]byte(nil), line...))
	}
}
