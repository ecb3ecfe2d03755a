package statssnapshot

import (
	"bufio"
	"encoding/json"
	"net"
	"time"

	"go.uber.org/zap"
)

// Publisher periodically asks a local supplier for a snapshot and ships
// it as one NDJSON line to a collector. It never blocks its caller's
// thread: a failed connect or write just waits for the next tick.
type Publisher[T any] struct {
	interval time.Duration
	addr     string
	supply   func() (T, error)
	log      *zap.Logger

	conn net.Conn
}

// NewPublisher builds a Publisher with a default 5s interval when
// interval is zero.
func NewPublisher[T any](addr string, interval time.Duration, supply func() (T, error), log *zap.Logger) *Publisher[T] {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher[T]{interval: interval, addr: addr, supply: supply, log: log}
}

// Run blocks, publishing one snapshot every interval until stop is
// closed.
func (p *Publisher[T]) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.closeConn()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Publisher[T]) tick() {
	snap, err := p.supply()
	if err != nil {
		p.log.Warn("stats publisher: failed to build snapshot", zap.Error(err))
		return
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		p.log.Warn("stats publisher: failed to marshal snapshot", zap.Error(err))
		return
	}

	if p.conn == nil {
		conn, err := net.DialTimeout("tcp", p.addr, 2*time.Second)
		if err != nil {
			p.log.Warn("stats publisher: connect failed, retrying next tick", zap.Error(err))
			return
		}
		p.conn = conn
	}

	w := bufio.NewWriter(p.conn)
	if _, err := w.Write(payload); err == nil {
		err = w.WriteByte('\n')
	}
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		p.log.Warn("stats publisher: write failed, reconnecting next tick", zap.Error(err))
		p.closeConn()
	}
}

func (p *Publisher[T]) closeConn() {
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}
