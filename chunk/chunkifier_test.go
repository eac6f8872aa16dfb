package chunk

import (
	"bytes"
	"testing"

	"github.com/go-nfn/nfnd/defn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAndReassembleRoundTrip(t *testing.T) {
	name := defn.NameFromString("/bulk")
	payload := bytes.Repeat([]byte{0xAB}, 12000)

	manifest, chunks := splitIntoChunks(name, payload, 4096)
	require.NotNil(t, manifest)
	require.Len(t, chunks, 3)

	m, ok, err := DecodeManifest(manifest.Payload)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, m.Entries, 3)
	assert.Equal(t, len(payload), m.TotalSize)

	got := make(map[string][]byte)
	for _, c := range chunks {
		got[c.Name.String()] = c.Payload
	}
	reassembled, ok := reassemble(m, got)
	require.True(t, ok)
	assert.Equal(t, payload, reassembled)
}

func TestSplitSkipsSmallPayload(t *testing.T) {
	name := defn.NameFromString("/small")
	manifest, chunks := splitIntoChunks(name, []byte("hello"), 4096)
	assert.Nil(t, manifest)
	assert.Nil(t, chunks)
}

func TestReassembleDetectsCorruption(t *testing.T) {
	name := defn.NameFromString("/bulk")
	payload := bytes.Repeat([]byte{0xCD}, 9000)
	manifest, chunks := splitIntoChunks(name, payload, 4096)
	m, _, err := DecodeManifest(manifest.Payload)
	require.NoError(t, err)

	got := make(map[string][]byte)
	for _, c := range chunks {
		got[c.Name.String()] = c.Payload
	}
	// Corrupt one chunk after the manifest was built from the original.
	firstKey := chunks[0].Name.String()
	got[firstKey] = append([]byte{}, got[firstKey]...)
	got[firstKey][0] ^= 0xFF

	_, ok := reassemble(m, got)
	assert.False(t, ok)
}
