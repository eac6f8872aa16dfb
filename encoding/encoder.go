// Package encoding is the pluggable wire codec boundary: the core depends
// only on the Encoder contract below, not on any one wire format.
package encoding

import (
	"fmt"

	"github.com/go-nfn/nfnd/defn"
)

// DecodeError reports malformed wire data. It drops the offending packet
// without affecting the face it arrived on.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %s", e.Reason)
}

// Encoder is the wire codec contract: encode a Packet to bytes, or decode
// bytes back to a Packet. At least one implementation (StringEncoder)
// ships in this package; deployments may plug in any other codec that
// satisfies this interface.
type Encoder interface {
	Encode(p *defn.Packet) ([]byte, error)
	Decode(wire []byte) (*defn.Packet, error)
}
