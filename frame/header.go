// Package frame implements the byte-level SV2 frame header codec and the
// TLV engine the ehash extension splices onto already-serialized frames.
//
// Every function here is a pure transform over a mutable or immutable
// []byte — no network I/O, no allocation beyond the returned buffer. This
// mirrors how the underlying SV2 parser is treated: immutable and
// untouched. The extension is strictly additive.
package frame

import (
	"encoding/binary"

	"ehash.dev/pool/ehasherr"
)

// HeaderBytes is the length of an SV2 frame header: 2 bytes extension type,
// 1 byte message type, 3 bytes little-endian payload length.
const HeaderBytes = 6

// Extension type namespace.
const (
	ExtTypeMining uint16 = 0
	ExtTypeCommon uint16 = 1
)

// Header is the decoded 6-byte SV2 frame header.
type Header struct {
	ExtType    uint16
	MsgType    byte
	PayloadLen uint32 // u24, so always < 1<<24
}

// ParseHeader decodes the 6-byte header at the front of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderBytes {
		return Header{}, ehasherr.New(ehasherr.KindInsufficientData, "frame: header shorter than 6 bytes")
	}
	return Header{
		ExtType:    binary.LittleEndian.Uint16(b[0:2]),
		MsgType:    b[2],
		PayloadLen: readU24LE(b[3:6]),
	}, nil
}

// WriteHeader encodes hdr into the first 6 bytes of dst. dst must be at
// least HeaderBytes long.
func WriteHeader(dst []byte, hdr Header) {
	binary.LittleEndian.PutUint16(dst[0:2], hdr.ExtType)
	dst[2] = hdr.MsgType
	writeU24LE(dst[3:6], hdr.PayloadLen)
}

// RewriteLength overwrites the payload-length field (bytes 3..6) of frame
// to reflect frame's actual current length: header_payload_length must
// always equal payload.len() after any mutation.
func RewriteLength(frameBytes []byte) error {
	if len(frameBytes) < HeaderBytes {
		return ehasherr.New(ehasherr.KindInsufficientData, "frame: too short to carry a header")
	}
	payloadLen := len(frameBytes) - HeaderBytes
	if payloadLen > 0xFFFFFF {
		return ehasherr.New(ehasherr.KindInvalidLength, "frame: payload exceeds u24 range")
	}
	writeU24LE(frameBytes[3:6], uint32(payloadLen))
	return nil
}

func readU24LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func writeU24LE(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
}
