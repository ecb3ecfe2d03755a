package intercept

import (
	"bytes"
	"testing"

	"ehash.dev/pool/connstate"
	"ehash.dev/pool/ehasherr"
	"ehash.dev/pool/frame"
	"ehash.dev/pool/sv2ext"
)

func submitSharesFrame(payload []byte) []byte {
	f := make([]byte, frame.HeaderBytes+len(payload))
	frame.WriteHeader(f, frame.Header{ExtType: frame.ExtTypeMining, MsgType: sv2ext.SubmitSharesExtended, PayloadLen: uint32(len(payload))})
	copy(f[frame.HeaderBytes:], payload)
	return f
}

func TestInterceptOutgoing_AppendsWhenNegotiatedAndKeySet(t *testing.T) {
	var key [33]byte
	for i := range key {
		key[i] = 0x05
	}
	st := &connstate.State{ExtensionNegotiated: true, LockingPubkey: &key}

	in := submitSharesFrame([]byte{1, 2, 3, 4})
	out, err := InterceptOutgoing(st, in)
	if err != nil {
		t.Fatalf("InterceptOutgoing: %v", err)
	}
	if len(out) <= len(in) {
		t.Fatalf("expected TLV to be appended, lengths in=%d out=%d", len(in), len(out))
	}

	coreEnd := frame.LocateCoreEnd(out)
	ext, err := frame.ExtractTLVs(out, coreEnd)
	if err != nil {
		t.Fatalf("ExtractTLVs: %v", err)
	}
	if ext.LockingPubkey == nil || *ext.LockingPubkey != key {
		t.Fatalf("locking pubkey not round-tripped: %v", ext.LockingPubkey)
	}
}

func TestInterceptOutgoing_PassthroughWhenNoKey(t *testing.T) {
	st := &connstate.State{ExtensionNegotiated: true}
	in := submitSharesFrame([]byte{9, 9})
	out, err := InterceptOutgoing(st, in)
	if err != nil {
		t.Fatalf("InterceptOutgoing: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Fatalf("expected passthrough, got mutated frame")
	}
}

func TestInterceptOutgoing_ErrorsWhenNotNegotiated(t *testing.T) {
	in := submitSharesFrame([]byte{1})
	_, err := InterceptOutgoing(nil, in)
	if !ehasherr.Is(err, ehasherr.KindExtensionNotNegotiated) {
		t.Fatalf("expected ExtensionNotNegotiated, got %v", err)
	}
}

func TestInterceptOutgoing_NonSubmitSharesAlwaysPassesThrough(t *testing.T) {
	f := make([]byte, frame.HeaderBytes+2)
	frame.WriteHeader(f, frame.Header{MsgType: 0x02, PayloadLen: 2})
	out, err := InterceptOutgoing(nil, f)
	if err != nil {
		t.Fatalf("InterceptOutgoing: %v", err)
	}
	if !bytes.Equal(out, f) {
		t.Fatalf("expected passthrough for non negotiated non-share message")
	}
}

// TestInterceptIncoming_RoundTrip checks that extracting a frame built
// by appending a locking_pubkey TLV recovers the original core bytes
// and the same key.
func TestInterceptIncoming_RoundTrip(t *testing.T) {
	var key [33]byte
	for i := range key {
		key[i] = 0x11
	}
	st := &connstate.State{ExtensionNegotiated: true, LockingPubkey: &key}

	core := submitSharesFrame([]byte{0xAA, 0xBB, 0xCC})
	withTLV, err := InterceptOutgoing(st, core)
	if err != nil {
		t.Fatalf("InterceptOutgoing: %v", err)
	}

	gotCore, ext, err := InterceptIncoming(withTLV)
	if err != nil {
		t.Fatalf("InterceptIncoming: %v", err)
	}
	if !bytes.Equal(gotCore, core) {
		t.Fatalf("core mismatch: got %x want %x", gotCore, core)
	}
	if ext.LockingPubkey == nil || *ext.LockingPubkey != key {
		t.Fatalf("expected locking pubkey in extension data, got %v", ext.LockingPubkey)
	}
}

// TestInterceptIncoming_PassthroughNoTLV checks that a frame with no
// trailing TLVs passes through unchanged.
func TestInterceptIncoming_PassthroughNoTLV(t *testing.T) {
	in := make([]byte, frame.HeaderBytes+2)
	frame.WriteHeader(in, frame.Header{MsgType: 0x15, PayloadLen: 2})
	out, ext, err := InterceptIncoming(in)
	if err != nil {
		t.Fatalf("InterceptIncoming: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Fatalf("expected verbatim passthrough")
	}
	if ext.LockingPubkey != nil || len(ext.Foreign) != 0 {
		t.Fatalf("expected empty extension data")
	}
}
