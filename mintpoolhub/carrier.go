package mintpoolhub

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"go.uber.org/zap"

	"ehash.dev/pool/ehasherr"
	"ehash.dev/pool/frame"
	"ehash.dev/pool/sv2ext"
)

// reconnectBackoff is the carrier's fixed linear backoff step: on
// disconnect or dial failure, wait this long and retry, unbounded.
const reconnectBackoff = 5 * time.Second

// Carrier is the framed TCP transport that moves hub messages between
// separate pool and mint processes. It dials a single long-lived
// connection (it has no accepting side) and relays whatever it reads
// onto the local Hub.
type Carrier struct {
	hub     *Hub
	cfg     Config
	log     *zap.Logger
	dial    func(ctx context.Context) (net.Conn, error)
	connID  uint64
	encoder msgEncoder
}

// msgEncoder keeps the JSON-over-SV2-frame payload format in one place so
// request/response/error share identical wire handling.
type msgEncoder struct{}

func (msgEncoder) encode(msgType byte, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, ehasherr.Wrap(ehasherr.KindInvalidFormat, err)
	}
	f := make([]byte, frame.HeaderBytes+len(payload))
	frame.WriteHeader(f, frame.Header{ExtType: frame.ExtTypeMining, MsgType: msgType, PayloadLen: uint32(len(payload))})
	copy(f[frame.HeaderBytes:], payload)
	return f, nil
}

// NewCarrier builds a Carrier that dials addr for the outbound side of
// the connection. connID identifies this carrier's slot in hub: the
// carrier subscribes under it so it can relay the local side's
// outgoing quote requests onto the wire, symmetric with the inbound
// responses/errors it already broadcasts onto hub.
func NewCarrier(hub *Hub, cfg Config, connID uint64, dialAddr string, log *zap.Logger) *Carrier {
	if log == nil {
		log = zap.NewNop()
	}
	dialer := &net.Dialer{}
	hub.RegisterConnection(connID, RolePool)
	return &Carrier{
		hub:    hub,
		cfg:    cfg,
		log:    log,
		connID: connID,
		dial: func(ctx context.Context) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", dialAddr)
		},
	}
}

// Run owns the connection lifecycle: connect, relay frames in both
// directions, and on disconnect reconnect with a fixed linear backoff
// until ctx is cancelled.
func (c *Carrier) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := c.dial(ctx)
		if err != nil {
			c.log.Warn("mint-pool carrier dial failed, retrying", zap.Error(err), zap.Duration("backoff", reconnectBackoff))
			select {
			case <-time.After(reconnectBackoff):
				continue
			case <-ctx.Done():
				return
			}
		}

		c.log.Info("mint-pool carrier connected")
		c.relay(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		c.log.Warn("mint-pool carrier disconnected, reconnecting", zap.Duration("backoff", reconnectBackoff))
		select {
		case <-time.After(reconnectBackoff):
		case <-ctx.Done():
			return
		}
	}
}

// relay reads frames off conn until it errors or ctx is cancelled,
// dispatching each decoded message onto the local hub, while a second
// goroutine forwards the local side's outgoing quote requests onto the
// wire in the other direction.
func (c *Carrier) relay(ctx context.Context, conn net.Conn) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.readLoop(conn)
	}()

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		c.writeLoop(ctx, conn)
	}()

	select {
	case <-ctx.Done():
	case <-done:
	case <-writeDone:
	}
}

// writeLoop forwards quote requests broadcast on the local hub onto
// conn, until ctx is cancelled or a write fails.
func (c *Carrier) writeLoop(ctx context.Context, conn net.Conn) {
	for {
		req, err := c.hub.ReceiveQuoteRequest(ctx, c.connID, time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if err := c.WriteQuoteRequest(conn, req); err != nil {
			c.log.Warn("mint-pool carrier: write failed", zap.Error(err))
			return
		}
	}
}

func (c *Carrier) readLoop(conn net.Conn) {
	hdr := make([]byte, frame.HeaderBytes)
	for {
		if _, err := readFull(conn, hdr); err != nil {
			return
		}
		h, err := frame.ParseHeader(hdr)
		if err != nil {
			c.log.Warn("mint-pool carrier: bad header", zap.Error(err))
			return
		}
		payload := make([]byte, h.PayloadLen)
		if _, err := readFull(conn, payload); err != nil {
			return
		}
		c.dispatch(h.MsgType, payload)
	}
}

func (c *Carrier) dispatch(msgType byte, payload []byte) {
	switch msgType {
	case sv2ext.MsgMintQuoteRequest:
		var m sv2ext.MintQuoteRequest
		if err := json.Unmarshal(payload, &m); err != nil {
			c.log.Warn("mint-pool carrier: malformed quote request", zap.Error(err))
			return
		}
		_ = c.hub.SendQuoteRequest(m)
	case sv2ext.MsgMintQuoteResponse:
		var m sv2ext.MintQuoteResponse
		if err := json.Unmarshal(payload, &m); err != nil {
			c.log.Warn("mint-pool carrier: malformed quote response", zap.Error(err))
			return
		}
		_ = c.hub.SendQuoteResponse(m)
	case sv2ext.MsgMintQuoteError:
		var m sv2ext.MintQuoteError
		if err := json.Unmarshal(payload, &m); err != nil {
			c.log.Warn("mint-pool carrier: malformed quote error", zap.Error(err))
			return
		}
		_ = c.hub.SendQuoteError(m)
	default:
		c.log.Debug("mint-pool carrier: ignoring unknown message type", zap.Uint8("msg_type", msgType))
	}
}

// WriteQuoteRequest encodes and writes a request frame to conn.
func (c *Carrier) WriteQuoteRequest(conn net.Conn, msg sv2ext.MintQuoteRequest) error {
	f, err := c.encoder.encode(sv2ext.MsgMintQuoteRequest, msg)
	if err != nil {
		return err
	}
	_, err = conn.Write(f)
	return err
}

// WriteQuoteResponse encodes and writes a response frame to conn.
func (c *Carrier) WriteQuoteResponse(conn net.Conn, msg sv2ext.MintQuoteResponse) error {
	f, err := c.encoder.encode(sv2ext.MsgMintQuoteResponse, msg)
	if err != nil {
		return err
	}
	_, err = conn.Write(f)
	return err
}

// WriteQuoteError encodes and writes an error frame to conn.
func (c *Carrier) WriteQuoteError(conn net.Conn, msg sv2ext.MintQuoteError) error {
	f, err := c.encoder.encode(sv2ext.MsgMintQuoteError, msg)
	if err != nil {
		return err
	}
	_, err = conn.Write(f)
	return err
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
