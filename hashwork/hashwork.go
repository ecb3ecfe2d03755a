// Package hashwork reconstructs a bitcoin-style block header from a job
// template plus a miner's nonce/ntime/version/extranonce, computes its
// SHA256d hash, and turns that hash into a quote amount by counting
// leading zero bits.
package hashwork

import (
	"crypto/sha256"
	"encoding/binary"
)

// HeaderFields are the pieces a mining job and a submitted share combine
// to form a canonical 80-byte bitcoin block header.
type HeaderFields struct {
	Version    uint32
	PrevHash   [32]byte // internal byte order
	MerkleRoot [32]byte
	NTime      uint32
	Bits       uint32 // compact target
	Nonce      uint32
}

// JobTemplate is the subset of a pool's job bookkeeping this package
// needs: the template handed to miners for a given job id, keyed so the
// pipeline can look it up by the job the submitted share references.
type JobTemplate struct {
	JobID      string
	PrevHash   [32]byte
	MerkleRoot [32]byte
	Version    uint32
	Bits       uint32
}

// BuildHeader reconstructs the 80-byte header a share's (nonce, ntime)
// pair refers to.
func BuildHeader(tmpl JobTemplate, nonce uint32, ntime uint32, extranonce []byte) HeaderFields {
	// extranonce is folded into the merkle root upstream of this package
	// (coinbase assembly is owned by the external SV2/template library);
	// here it is accepted only so callers can pass the full share context
	// without restructuring it first.
	_ = extranonce
	return HeaderFields{
		Version:    tmpl.Version,
		PrevHash:   tmpl.PrevHash,
		MerkleRoot: tmpl.MerkleRoot,
		NTime:      ntime,
		Bits:       tmpl.Bits,
		Nonce:      nonce,
	}
}

// Serialize encodes HeaderFields into the canonical 80-byte wire form.
func Serialize(h HeaderFields) []byte {
	buf := make([]byte, 80)
	binary.LittleEndian.PutUint32(buf[0:4], h.Version)
	copy(buf[4:36], h.PrevHash[:])
	copy(buf[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(buf[68:72], h.NTime)
	binary.LittleEndian.PutUint32(buf[72:76], h.Bits)
	binary.LittleEndian.PutUint32(buf[76:80], h.Nonce)
	return buf
}

// BlockHash computes SHA256d (double SHA-256) over the serialized header,
// returned in internal (little-endian) byte order.
func BlockHash(h HeaderFields) [32]byte {
	ser := Serialize(h)
	first := sha256.Sum256(ser)
	return sha256.Sum256(first[:])
}

// LeadingZeroBits counts the number of contiguous leading zero bits in
// hash, capped at 256. hash is read most-significant-byte first.
func LeadingZeroBits(hash [32]byte) uint64 {
	var count uint64
	for _, b := range hash {
		if b == 0 {
			count += 8
			continue
		}
		for bit := 7; bit >= 0; bit-- {
			if b&(1<<uint(bit)) != 0 {
				return count
			}
			count++
		}
	}
	return count
}

// AmountForShare is the pipeline's quote-amount formula: the share's
// leading-zero work bits, capped at 256.
func AmountForShare(shareHash [32]byte) uint64 {
	bits := LeadingZeroBits(shareHash)
	if bits > 256 {
		return 256
	}
	return bits
}
