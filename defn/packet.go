package defn

import "fmt"

// NackReason enumerates why a request was refused.
type NackReason int

const (
	NackNoContent NackReason = iota
	NackCompNotRunning
	NackNotSet
	NackNoRoute
)

// String renders the NackReason's symbolic name, for logging. The text
// wire encoder writes the reason as its integer value instead.
func (r NackReason) String() string {
	switch r {
	case NackNoContent:
		return "NO_CONTENT"
	case NackCompNotRunning:
		return "COMP_NOT_RUNNING"
	case NackNotSet:
		return "NOT_SET"
	case NackNoRoute:
		return "NO_ROUTE"
	default:
		return "UNKNOWN"
	}
}

// ParseNackReason is the inverse of NackReason.String. The text wire
// decoder does not use it: it reads the reason as an integer.
func ParseNackReason(s string) (NackReason, error) {
	switch s {
	case "NO_CONTENT":
		return NackNoContent, nil
	case "COMP_NOT_RUNNING":
		return NackCompNotRunning, nil
	case "NOT_SET":
		return NackNotSet, nil
	case "NO_ROUTE":
		return NackNoRoute, nil
	}
	return NackNotSet, fmt.Errorf("unknown nack reason: %s", s)
}

// PacketKind tags which variant a Packet holds.
type PacketKind int

const (
	KindInterest PacketKind = iota
	KindContent
	KindNack
)

// Packet is a tagged variant over Interest, Content, and Nack. Only the
// fields relevant to Kind are meaningful.
type Packet struct {
	Kind PacketKind

	Name    Name
	Payload []byte // Content only

	Reason              NackReason // Nack only
	OriginatingInterest *Packet    // Nack only, optional
}

// NewInterest constructs an Interest packet for name.
func NewInterest(name Name) *Packet {
	return &Packet{Kind: KindInterest, Name: name}
}

// NewContent constructs a Content packet carrying payload for name.
func NewContent(name Name, payload []byte) *Packet {
	return &Packet{Kind: KindContent, Name: name, Payload: payload}
}

// NewNack constructs a Nack for name with the given reason, optionally
// carrying the Interest that triggered it.
func NewNack(name Name, reason NackReason, originating *Packet) *Packet {
	return &Packet{Kind: KindNack, Name: name, Reason: reason, OriginatingInterest: originating}
}

// String renders the packet for logging.
func (p *Packet) String() string {
	switch p.Kind {
	case KindInterest:
		return fmt.Sprintf("Interest(%s)", p.Name)
	case KindContent:
		return fmt.Sprintf("Content(%s, %dB)", p.Name, len(p.Payload))
	case KindNack:
		return fmt.Sprintf("Nack(%s, %s)", p.Name, p.Reason)
	default:
		return "Packet(?)"
	}
}
