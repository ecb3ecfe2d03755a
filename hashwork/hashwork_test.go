package hashwork

import "testing"

func TestLeadingZeroBits(t *testing.T) {
	cases := []struct {
		name string
		hash [32]byte
		want uint64
	}{
		{"all zero", [32]byte{}, 256},
		{"first bit set", func() [32]byte { var h [32]byte; h[0] = 0x80; return h }(), 0},
		{"one leading zero byte", func() [32]byte { var h [32]byte; h[1] = 0xFF; return h }(), 8},
		{"partial byte", func() [32]byte { var h [32]byte; h[0] = 0x01; return h }(), 7},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := LeadingZeroBits(c.hash); got != c.want {
				t.Fatalf("LeadingZeroBits = %d, want %d", got, c.want)
			}
		})
	}
}

func TestAmountForShareCapsAt256(t *testing.T) {
	var allZero [32]byte
	if got := AmountForShare(allZero); got != 256 {
		t.Fatalf("AmountForShare(all-zero) = %d, want 256", got)
	}
}

func TestBlockHashDeterministic(t *testing.T) {
	h := HeaderFields{Version: 1, NTime: 100, Bits: 0x1d00ffff, Nonce: 42}
	a := BlockHash(h)
	b := BlockHash(h)
	if a != b {
		t.Fatalf("BlockHash not deterministic: %x != %x", a, b)
	}

	h2 := h
	h2.Nonce = 43
	c := BlockHash(h2)
	if a == c {
		t.Fatalf("expected different nonce to change the hash")
	}
}

func TestSerializeLength(t *testing.T) {
	if got := len(Serialize(HeaderFields{})); got != 80 {
		t.Fatalf("Serialize length = %d, want 80", got)
	}
}
