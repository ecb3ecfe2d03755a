// Package negotiation implements the extension-negotiation handshake:
// the acceptor grants every requested extension id iff it is a subset
// of what it advertises, otherwise it enumerates exactly what it can't
// support.
package negotiation

import "ehash.dev/pool/connstate"

// Well-known extension ids always carried in a request.
const (
	ExtNegotiation uint16 = 0x0001
	ExtEcash       uint16 = 0x0003
)

// RequestExtensions is sent by the initiator on connect.
type RequestExtensions struct {
	ExtensionTypes []uint16
}

// RequestExtensionsSuccess is returned when every requested id is
// supported.
type RequestExtensionsSuccess struct {
	SupportedExtensions []uint16
}

// RequestExtensionsError enumerates exactly R\S: the requested ids the
// acceptor cannot support.
type RequestExtensionsError struct {
	Unsupported  []uint16
	Required     []uint16
	ErrorMessage string
}

// DefaultRequest builds the RequestExtensions an initiator always sends:
// negotiation plus ecash, with any additional wanted ids appended in
// order.
func DefaultRequest(extra ...uint16) RequestExtensions {
	types := []uint16{ExtNegotiation, ExtEcash}
	types = append(types, extra...)
	return RequestExtensions{ExtensionTypes: dedupe(types)}
}

func dedupe(in []uint16) []uint16 {
	seen := make(map[uint16]struct{}, len(in))
	out := make([]uint16, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Negotiate evaluates a request against the acceptor's advertised set.
// Success iff requested is a subset of advertised.
func Negotiate(advertised []uint16, req RequestExtensions) (*RequestExtensionsSuccess, *RequestExtensionsError) {
	supported := make(map[uint16]struct{}, len(advertised))
	for _, id := range advertised {
		supported[id] = struct{}{}
	}

	var unsupported []uint16
	for _, id := range req.ExtensionTypes {
		if _, ok := supported[id]; !ok {
			unsupported = append(unsupported, id)
		}
	}
	if len(unsupported) > 0 {
		return nil, &RequestExtensionsError{
			Unsupported:  unsupported,
			Required:     req.ExtensionTypes,
			ErrorMessage: "unsupported extension(s) requested",
		}
	}
	return &RequestExtensionsSuccess{SupportedExtensions: append([]uint16(nil), req.ExtensionTypes...)}, nil
}

// ApplyOutcome drives a connection's state machine from the negotiation
// result: New/Negotiating -> Active on success. On failure the caller is
// expected to close the connection; ApplyOutcome does not mutate state.
func ApplyOutcome(store *connstate.Store, connID uint64, success *RequestExtensionsSuccess) {
	if success == nil {
		return
	}
	store.SetNegotiating(connID)
	store.Activate(connID)
}
