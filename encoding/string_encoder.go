package encoding

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/go-nfn/nfnd/defn"
)

// StringEncoder implements a simple newline-terminated text wire form:
// "TYPE:NAME[:PAYLOAD]" where TYPE is one of I (Interest), D
// (Content/"Data"), N (Nack), NAME is slash-delimited, and a Nack's
// payload carries the reason as an integer. Content payload bytes are
// base64-encoded so arbitrary binary payloads survive a line-oriented,
// newline-terminated wire without escaping rules of their own.
type StringEncoder struct{}

const (
	typeInterest = "I"
	typeContent  = "D"
	typeNack     = "N"
)

// Encode renders p as a single newline-terminated line.
func (StringEncoder) Encode(p *defn.Packet) ([]byte, error) {
	var sb strings.Builder
	switch p.Kind {
	case defn.KindInterest:
		sb.WriteString(typeInterest)
		sb.WriteByte(':')
		sb.WriteString(nameField(p.Name))
	case defn.KindContent:
		sb.WriteString(typeContent)
		sb.WriteByte(':')
		sb.WriteString(nameField(p.Name))
		sb.WriteByte(':')
		sb.WriteString(base64.StdEncoding.EncodeToString(p.Payload))
	case defn.KindNack:
		sb.WriteString(typeNack)
		sb.WriteByte(':')
		sb.WriteString(nameField(p.Name))
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(int(p.Reason)))
	default:
		return nil, &DecodeError{Reason: "unknown packet kind"}
	}
	sb.WriteByte('\n')
	return []byte(sb.String()), nil
}

// Decode parses a single line (with or without its trailing newline) back
// into a Packet.
func (StringEncoder) Decode(wire []byte) (*defn.Packet, error) {
	line := strings.TrimRight(string(wire), "\n")
	parts := strings.SplitN(line, ":", 3)
	if len(parts) < 2 {
		return nil, &DecodeError{Reason: "missing TYPE or NAME field"}
	}

	name := defn.NameFromString(parts[1])

	switch parts[0] {
	case typeInterest:
		return defn.NewInterest(name), nil
	case typeContent:
		var payload []byte
		if len(parts) == 3 && parts[2] != "" {
			decoded, err := base64.StdEncoding.DecodeString(parts[2])
			if err != nil {
				return nil, &DecodeError{Reason: "invalid base64 payload: " + err.Error()}
			}
			payload = decoded
		}
		return defn.NewContent(name, payload), nil
	case typeNack:
		if len(parts) != 3 {
			return nil, &DecodeError{Reason: "nack missing reason field"}
		}
		code, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, &DecodeError{Reason: "invalid nack reason: " + err.Error()}
		}
		return defn.NewNack(name, defn.NackReason(code), nil), nil
	default:
		return nil, &DecodeError{Reason: "unknown TYPE: " + parts[0]}
	}
}

func nameField(n defn.Name) string {
	s := n.String()
	if s == "/" {
		return ""
	}
	return strings.TrimPrefix(s, "/")
}
