package encoding

import (
	"testing"

	"github.com/go-nfn/nfnd/defn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Encode then decode is identity over well-formed packets.
func TestStringEncoderRoundTrip(t *testing.T) {
	enc := StringEncoder{}

	cases := []*defn.Packet{
		defn.NewInterest(defn.NameFromString("/a/b/c")),
		defn.NewContent(defn.NameFromString("/a/b"), []byte("hello world")),
		defn.NewContent(defn.NameFromString("/empty"), nil),
		defn.NewNack(defn.NameFromString("/no/route"), defn.NackNoRoute, nil),
	}

	for _, p := range cases {
		wire, err := enc.Encode(p)
		require.NoError(t, err)

		got, err := enc.Decode(wire)
		require.NoError(t, err)

		assert.Equal(t, p.Kind, got.Kind)
		assert.True(t, p.Name.Equal(got.Name))
		assert.Equal(t, p.Payload, got.Payload)
		if p.Kind == defn.KindNack {
			assert.Equal(t, p.Reason, got.Reason)
		}
	}
}

func TestStringEncoderDecodeMalformed(t *testing.T) {
	enc := StringEncoder{}

	_, err := enc.Decode([]byte("garbage"))
	assert.Error(t, err)

	_, err = enc.Decode([]byte("X:/a/b\n"))
	assert.Error(t, err)

	_, err = enc.Decode([]byte("N:/a/b\n")) // nack missing reason
	assert.Error(t, err)
}
