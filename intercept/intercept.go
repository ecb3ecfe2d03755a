// Package intercept sits between the SV2 serializer and the socket on
// both sides of a connection. It never touches the core SV2 message
// structs — it only appends or strips trailing TLV bytes on an
// already-serialized frame.
package intercept

import (
	"ehash.dev/pool/connstate"
	"ehash.dev/pool/ehasherr"
	"ehash.dev/pool/frame"
	"ehash.dev/pool/sv2ext"
)

// InterceptOutgoing implements the translator -> pool hook: if the
// connection has negotiated the extension, the message is
// SubmitSharesExtended, and a locking pubkey is on file, a locking_pubkey
// TLV is appended and the frame's length header rewritten. A
// SubmitSharesExtended frame on a connection that has not negotiated the
// extension (or a nil state) fails with ExtensionNotNegotiated. Any other
// combination passes the frame through unchanged.
func InterceptOutgoing(st *connstate.State, frameBytes []byte) ([]byte, error) {
	hdr, err := frame.ParseHeader(frameBytes)
	if err != nil {
		return nil, err
	}
	if hdr.MsgType != sv2ext.SubmitSharesExtended {
		return frameBytes, nil
	}
	if st == nil || !st.ExtensionNegotiated {
		return nil, ehasherr.New(ehasherr.KindExtensionNotNegotiated, "intercept: extension not negotiated on this connection")
	}
	if st.LockingPubkey == nil {
		return frameBytes, nil
	}

	return frame.AppendTLV(frameBytes, frame.EcashExtensionID, frame.FieldLockingPubkey, st.LockingPubkey[:])
}

// InterceptIncoming implements the pool-from-translator hook: locate the
// core payload boundary, and if there are trailing bytes, parse them as
// TLVs and return a rewritten copy of the core frame (length header
// updated to the smaller payload) plus the decoded extension data.
// Otherwise return the frame unchanged with empty extension data.
func InterceptIncoming(frameBytes []byte) ([]byte, frame.ExtensionFields, error) {
	coreEnd := frame.LocateCoreEnd(frameBytes)
	if coreEnd >= len(frameBytes) {
		return append([]byte(nil), frameBytes...), frame.ExtensionFields{}, nil
	}

	ext, err := frame.ExtractTLVs(frameBytes, coreEnd)
	if err != nil {
		return nil, frame.ExtensionFields{}, err
	}

	core := append([]byte(nil), frameBytes[:coreEnd]...)
	if err := frame.RewriteLength(core); err != nil {
		return nil, frame.ExtensionFields{}, err
	}
	return core, ext, nil
}
