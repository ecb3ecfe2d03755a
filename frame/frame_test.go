package frame

import (
	"bytes"
	"testing"
)

// TestAppendTLVLockingPubkey appends a 33-byte locking_pubkey TLV onto
// an 8-byte core payload.
func TestAppendTLVLockingPubkey(t *testing.T) {
	core := []byte{0x00, 0x00, 0x04, 0x08, 0x00, 0x00, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x11, 0x22}
	key := bytes.Repeat([]byte{0x03}, 33)

	got, err := AppendTLV(core, EcashExtensionID, FieldLockingPubkey, key)
	if err != nil {
		t.Fatalf("AppendTLV: %v", err)
	}

	want := append([]byte{}, core...)
	want = append(want, 0x00, 0x03, 0x01, 0x21, 0x00)
	want = append(want, key...)
	want[3] = 46
	want[4] = 0
	want[5] = 0

	if !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

// TestExtractTLVRoundTrip round-trips an appended TLV back to the
// original core payload.
func TestExtractTLVRoundTrip(t *testing.T) {
	core := []byte{0x00, 0x00, 0x04, 0x08, 0x00, 0x00, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x11, 0x22}
	key := bytes.Repeat([]byte{0x03}, 33)

	appended, err := AppendTLV(core, EcashExtensionID, FieldLockingPubkey, key)
	if err != nil {
		t.Fatalf("AppendTLV: %v", err)
	}

	coreEnd := LocateCoreEnd(appended)
	ext, err := ExtractTLVs(appended, coreEnd)
	if err != nil {
		t.Fatalf("ExtractTLVs: %v", err)
	}
	if ext.LockingPubkey == nil || !bytes.Equal(ext.LockingPubkey[:], key) {
		t.Fatalf("locking pubkey mismatch: %v", ext.LockingPubkey)
	}

	coreCopy := append([]byte(nil), appended[:coreEnd]...)
	if err := RewriteLength(coreCopy); err != nil {
		t.Fatalf("RewriteLength: %v", err)
	}
	if !bytes.Equal(coreCopy, core) {
		t.Fatalf("core mismatch: got %x want %x", coreCopy, core)
	}
}

// TestNonExtendedFramePassesThrough checks that a frame carrying no TLVs
// reports its entire length as core payload.
func TestNonExtendedFramePassesThrough(t *testing.T) {
	input := []byte{0x00, 0x00, 0x15, 0x02, 0x00, 0x00, 0x01, 0x02}
	coreEnd := LocateCoreEnd(input)
	if coreEnd != len(input) {
		t.Fatalf("expected core_end == len(frame), got %d", coreEnd)
	}
	ext, err := ExtractTLVs(input, coreEnd)
	if err != nil {
		t.Fatalf("ExtractTLVs: %v", err)
	}
	if ext.LockingPubkey != nil || len(ext.Foreign) != 0 {
		t.Fatalf("expected empty extension data, got %+v", ext)
	}
}

// TestForeignTLVPreserved checks that a foreign extension id survives
// extraction alongside an ecash TLV, and that the core bytes are
// untouched once the length header is rewritten back to the core size.
func TestForeignTLVPreserved(t *testing.T) {
	core := []byte{0x00, 0x00, 0x04, 0x04, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04}
	key := bytes.Repeat([]byte{0x07}, 33)
	foreignValue := []byte{0x9, 0x9}

	withKey, err := AppendTLV(core, EcashExtensionID, FieldLockingPubkey, key)
	if err != nil {
		t.Fatalf("AppendTLV ecash: %v", err)
	}
	appended, err := AppendTLV(withKey, 0x00FF, 0x05, foreignValue)
	if err != nil {
		t.Fatalf("AppendTLV foreign: %v", err)
	}

	coreEnd := LocateCoreEnd(appended)
	if coreEnd != len(core) {
		t.Fatalf("expected heuristic to find TLV boundary at %d, got %d", len(core), coreEnd)
	}
	ext, err := ExtractTLVs(appended, coreEnd)
	if err != nil {
		t.Fatalf("ExtractTLVs: %v", err)
	}
	if len(ext.Foreign) != 1 || ext.Foreign[0].ExtID != 0x00FF || !bytes.Equal(ext.Foreign[0].Value, foreignValue) {
		t.Fatalf("foreign tlv not preserved: %+v", ext.Foreign)
	}
	if ext.LockingPubkey == nil || !bytes.Equal(ext.LockingPubkey[:], key) {
		t.Fatalf("expected locking pubkey alongside foreign tlv, got %v", ext.LockingPubkey)
	}
	coreCopy := append([]byte(nil), appended[:coreEnd]...)
	if err := RewriteLength(coreCopy); err != nil {
		t.Fatalf("RewriteLength: %v", err)
	}
	if !bytes.Equal(coreCopy, core) {
		t.Fatalf("core bytes mutated: got %x want %x", coreCopy, core)
	}
}

// TestHeaderLengthInvariant checks that after any AppendTLV, the u24
// payload length equals len(frame) - 6.
func TestHeaderLengthInvariant(t *testing.T) {
	core := []byte{0x00, 0x00, 0x04, 0x00, 0x00, 0x00}
	f := core
	for i := 0; i < 5; i++ {
		var err error
		f, err = AppendTLV(f, EcashExtensionID, FieldLockingPubkey, bytes.Repeat([]byte{byte(i)}, 33))
		if err != nil {
			t.Fatalf("AppendTLV iteration %d: %v", i, err)
		}
		hdr, err := ParseHeader(f)
		if err != nil {
			t.Fatalf("ParseHeader: %v", err)
		}
		if int(hdr.PayloadLen) != len(f)-HeaderBytes {
			t.Fatalf("iteration %d: payload length %d != %d", i, hdr.PayloadLen, len(f)-HeaderBytes)
		}
	}
}

func TestAppendTLV_InvalidLockingPubkeyLength(t *testing.T) {
	core := []byte{0x00, 0x00, 0x04, 0x00, 0x00, 0x00}
	if _, err := AppendTLV(core, EcashExtensionID, FieldLockingPubkey, []byte{0x01, 0x02}); err == nil {
		t.Fatalf("expected error for short locking pubkey")
	}
}

func TestParseHeader_InsufficientData(t *testing.T) {
	if _, err := ParseHeader([]byte{0x00, 0x01}); err == nil {
		t.Fatalf("expected InsufficientData error")
	}
}

func TestExtractTLVs_LastWriterWins(t *testing.T) {
	core := []byte{0x00, 0x00, 0x04, 0x00, 0x00, 0x00}
	first := bytes.Repeat([]byte{0x01}, 33)
	second := bytes.Repeat([]byte{0x02}, 33)

	f, err := AppendTLV(core, EcashExtensionID, FieldLockingPubkey, first)
	if err != nil {
		t.Fatalf("AppendTLV: %v", err)
	}
	f, err = AppendTLV(f, EcashExtensionID, FieldLockingPubkey, second)
	if err != nil {
		t.Fatalf("AppendTLV: %v", err)
	}

	coreEnd := LocateCoreEnd(f)
	ext, err := ExtractTLVs(f, coreEnd)
	if err != nil {
		t.Fatalf("ExtractTLVs: %v", err)
	}
	if ext.LockingPubkey == nil || !bytes.Equal(ext.LockingPubkey[:], second) {
		t.Fatalf("expected last writer (second key) to win, got %v", ext.LockingPubkey)
	}
}
