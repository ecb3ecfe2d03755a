package frame

import (
	"encoding/binary"

	"ehash.dev/pool/ehasherr"
)

// TLV extension/field identifiers.
const (
	EcashExtensionID uint16 = 0x0003

	FieldLockingPubkey byte = 0x01

	// LockingPubkeyLen is the only length a locking_pubkey TLV value may
	// have: a compressed secp256k1 public key.
	LockingPubkeyLen = 33
)

// tlvHeaderBytes is the TLV header: 2 bytes ext id, 1 byte field type, 2
// bytes value length.
const tlvHeaderBytes = 5

// ForeignTLV is a TLV whose extension id the ehash codec does not
// interpret; these must survive ExtractTLVs unchanged.
type ForeignTLV struct {
	ExtID     uint16
	FieldType byte
	Value     []byte
}

// ExtensionFields is the decoded result of ExtractTLVs.
type ExtensionFields struct {
	LockingPubkey *[33]byte
	Foreign       []ForeignTLV
}

// fieldLengthRule returns the exact length field_type requires for the
// ecash extension id, or -1 if the field type has no fixed-length rule.
func fieldLengthRule(fieldType byte) int {
	switch fieldType {
	case FieldLockingPubkey:
		return LockingPubkeyLen
	default:
		return -1
	}
}

// AppendTLV pushes a well-formed TLV onto the end of frameBytes and
// rewrites the frame's length header to match. It returns the new slice;
// frameBytes itself may be reallocated, so callers must use the returned
// value.
func AppendTLV(frameBytes []byte, extID uint16, fieldType byte, value []byte) ([]byte, error) {
	if len(value) > 0xFFFF {
		return nil, ehasherr.New(ehasherr.KindInvalidLength, "frame: tlv value exceeds u16 length")
	}
	if extID == EcashExtensionID {
		if want := fieldLengthRule(fieldType); want >= 0 && len(value) != want {
			return nil, ehasherr.New(ehasherr.KindInvalidLength, "frame: tlv field length rule violated")
		}
	}

	out := make([]byte, len(frameBytes)+tlvHeaderBytes+len(value))
	copy(out, frameBytes)
	off := len(frameBytes)
	binary.BigEndian.PutUint16(out[off:off+2], extID)
	out[off+2] = fieldType
	binary.LittleEndian.PutUint16(out[off+3:off+5], uint16(len(value)))
	copy(out[off+tlvHeaderBytes:], value)

	if err := RewriteLength(out); err != nil {
		return nil, err
	}
	return out, nil
}

// LocateCoreEnd returns the offset where the core SV2 payload ends and
// ehash TLVs begin.
//
// It scans forward from offset HeaderBytes for the first occurrence of
// the ecash sentinel pair [0x00, 0x03] that begins a structurally valid
// TLV (i.e. the bytes that follow parse as a complete TLV run to the end
// of the frame). If no such occurrence exists, the whole frame is core
// payload. A caller with access to the underlying SV2 library's
// per-message-type payload sizes should prefer exact sizing instead.
func LocateCoreEnd(frameBytes []byte) int {
	for i := HeaderBytes; i+1 < len(frameBytes); i++ {
		if frameBytes[i] != 0x00 || frameBytes[i+1] != 0x03 {
			continue
		}
		if looksLikeTLVRun(frameBytes[i:]) {
			return i
		}
	}
	return len(frameBytes)
}

// looksLikeTLVRun reports whether b decodes as zero or more complete,
// well-formed TLVs with nothing left over.
func looksLikeTLVRun(b []byte) bool {
	off := 0
	for off < len(b) {
		if len(b)-off < tlvHeaderBytes {
			return false
		}
		valLen := int(binary.LittleEndian.Uint16(b[off+3 : off+5]))
		end := off + tlvHeaderBytes + valLen
		if end > len(b) {
			return false
		}
		off = end
	}
	return true
}

// ExtractTLVs walks frameBytes[coreEnd:], decoding TLVs. Unknown extension
// ids are preserved (not interpreted, not dropped); the
// ecash locking_pubkey field is decoded into ExtensionFields.LockingPubkey.
// Multiple TLVs for the same (ext_id, field_type) resolve last-writer-wins.
func ExtractTLVs(frameBytes []byte, coreEnd int) (ExtensionFields, error) {
	var out ExtensionFields
	b := frameBytes[coreEnd:]
	off := 0
	for off < len(b) {
		if len(b)-off < tlvHeaderBytes {
			return out, ehasherr.New(ehasherr.KindInsufficientData, "frame: truncated tlv header")
		}
		extID := binary.BigEndian.Uint16(b[off : off+2])
		fieldType := b[off+2]
		valLen := int(binary.LittleEndian.Uint16(b[off+3 : off+5]))
		valStart := off + tlvHeaderBytes
		valEnd := valStart + valLen
		if valEnd > len(b) {
			return out, ehasherr.New(ehasherr.KindInsufficientData, "frame: tlv value runs past frame")
		}
		value := b[valStart:valEnd]

		if extID == EcashExtensionID {
			switch fieldType {
			case FieldLockingPubkey:
				if len(value) != LockingPubkeyLen {
					return out, ehasherr.New(ehasherr.KindInvalidFormat, "frame: locking_pubkey tlv has wrong length")
				}
				var key [33]byte
				copy(key[:], value)
				out.LockingPubkey = &key
			default:
				// Unknown field type within a known extension id: skip.
			}
		} else {
			out.Foreign = append(out.Foreign, ForeignTLV{
				ExtID:     extID,
				FieldType: fieldType,
				Value:     append([]byte(nil), value...),
			})
		}
		off = valEnd
	}
	return out, nil
}
