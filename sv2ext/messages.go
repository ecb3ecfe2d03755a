// Package sv2ext holds the message-type constants and payload structs the
// ehash extension adds on top of the (unmodified, external) SV2 mining
// protocol: accepted-share notifications in, quote notifications and
// failures out, and the request/response/error triple exchanged with the
// mint over the messaging hub.
package sv2ext

// SV2 mining-protocol message type byte this extension cares about. The
// rest of the mining protocol's message types are opaque to this package —
// they pass through the interceptor untouched.
const SubmitSharesExtended byte = 0x1B

// Mint-pool hub wire message types, fixed for this build.
const (
	MsgMintQuoteRequest  byte = 0xA0
	MsgMintQuoteResponse byte = 0xA1
	MsgMintQuoteError    byte = 0xA2
)

// AcceptedShare is what the pool's share-acceptance stage hands to the
// Share->Quote Pipeline once a SubmitSharesExtended has passed SV2-layer
// validation.
type AcceptedShare struct {
	ChannelID      uint32
	SequenceNumber uint32
	ShareHash      [32]byte
	HeaderHash     [32]byte
	LockingPubkey  [33]byte
}

// MintQuoteRequest is sent pool -> mint over the messaging hub.
// RequestID is an idempotency key: a mint that sees it twice (e.g. a
// retried delivery after a reconnect) can recognize the duplicate
// instead of minting the same share's quote a second time.
type MintQuoteRequest struct {
	RequestID   string
	ShareHash   [32]byte
	Amount      uint64
	Unit        string
	HeaderHash  [32]byte
	LockingKey  [33]byte
	Description *string
}

// MintQuoteResponse is sent mint -> pool, correlated by HeaderHash.
type MintQuoteResponse struct {
	HeaderHash [32]byte
	QuoteID    string
	KeysetID   string
}

// MintQuoteError is sent mint -> pool when the mint rejects a request.
type MintQuoteError struct {
	HeaderHash   [32]byte
	ErrorMessage string
}

// MintQuoteNotification is the post-success extension message the pool
// routes downstream to the miner proxy that owns ChannelID.
type MintQuoteNotification struct {
	ChannelID      uint32
	SequenceNumber uint32
	ShareHash      [32]byte
	QuoteID        string
	Amount         uint64
}

// MintQuoteFailure is delivered downstream instead of a notification when
// the mint rejects the quote.
type MintQuoteFailure struct {
	ChannelID      uint32
	SequenceNumber uint32
	ShareHash      [32]byte
	ErrorMessage   string
}
