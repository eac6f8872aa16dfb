package chunk

import (
	"bytes"
	"testing"
	"time"

	"github.com/go-nfn/nfnd/defn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLayer() *Layer {
	return NewLayer(Config{ChunkSize: 4096, ChunkTimeout: time.Second}, 16)
}

// A 12KB object published with a 4KB chunk size is served as a manifest
// plus 3 chunks, each answerable directly from the local store.
func TestPublishServesManifestAndChunks(t *testing.T) {
	l := newTestLayer()
	name := defn.NameFromString("/bulk")
	payload := bytes.Repeat([]byte{0x42}, 12000)
	l.publish(name, payload)

	l.handleInterestFromLower(defn.NewInterest(name))
	require.Len(t, l.ToLower, 1)
	manifestContent := <-l.ToLower
	m, ok, err := DecodeManifest(manifestContent.Payload)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, m.Entries, 3)

	for _, e := range m.Entries {
		l.handleInterestFromLower(defn.NewInterest(e.Name))
	}
	require.Len(t, l.ToLower, 3)
}

// An Interest without a locally stored answer passes straight up to NFN.
func TestInterestWithNoLocalAnswerPassesUp(t *testing.T) {
	l := newTestLayer()
	name := defn.NameFromString("/compute/f/NFN")
	l.handleInterestFromLower(defn.NewInterest(name))

	require.Len(t, l.ToHigher, 1)
	up := <-l.ToHigher
	assert.Equal(t, defn.KindInterest, up.Kind)
}

// The consumer side: NFN asks for /bulk, a manifest comes back, this
// layer fetches every listed chunk and reassembles the original payload
// before handing a single whole Content upward.
func TestConsumerReassemblesChunkedResponse(t *testing.T) {
	producer := newTestLayer()
	name := defn.NameFromString("/bulk")
	payload := bytes.Repeat([]byte{0x7A}, 12000)
	producer.publish(name, payload)

	consumer := newTestLayer()
	consumer.handleFromHigher(defn.NewInterest(name))
	require.Len(t, consumer.ToLower, 1)
	<-consumer.ToLower // the outgoing Interest for /bulk, dropped on the floor here

	manifestPayload := producer.store[name.String()]
	consumer.handleContentFromLower(defn.NewContent(name, manifestPayload))

	require.Len(t, consumer.ToLower, 3)
	for i := 0; i < 3; i++ {
		chunkInterest := <-consumer.ToLower
		chunkPayload, ok := producer.store[chunkInterest.Name.String()]
		require.True(t, ok)
		consumer.handleContentFromLower(defn.NewContent(chunkInterest.Name, chunkPayload))
	}

	require.Len(t, consumer.ToHigher, 1)
	whole := <-consumer.ToHigher
	assert.Equal(t, defn.KindContent, whole.Kind)
	assert.True(t, whole.Name.Equal(name))
	assert.Equal(t, payload, whole.Payload)
	assert.Empty(t, consumer.reassemblies)
}

// Content under chunk_size never gets a manifest and is passed straight
// through in both directions.
func TestSmallContentPassesThroughUnchunked(t *testing.T) {
	l := newTestLayer()
	name := defn.NameFromString("/small")
	l.handleContentFromHigher(defn.NewContent(name, []byte("tiny")))

	require.Len(t, l.ToLower, 1)
	out := <-l.ToLower
	assert.Equal(t, []byte("tiny"), out.Payload)
}

// A reassembly missing a chunk past chunk_timeout is aborted with a Nack
// upward instead of hanging forever.
func TestReassemblyTimeoutEmitsNack(t *testing.T) {
	l := newTestLayer()
	name := defn.NameFromString("/bulk")
	payload := bytes.Repeat([]byte{0x11}, 9000)
	manifest, chunks := splitIntoChunks(name, payload, 4096)

	l.handleFromHigher(defn.NewInterest(name))
	<-l.ToLower // outgoing Interest for /bulk

	l.handleContentFromLower(manifest)
	require.Len(t, l.ToLower, len(chunks))
	for range chunks {
		<-l.ToLower
	}

	// Only the first chunk arrives; the rest never do.
	l.handleContentFromLower(chunks[0])

	l.age(time.Now().Add(time.Hour))

	require.Len(t, l.ToHigher, 1)
	out := <-l.ToHigher
	assert.Equal(t, defn.KindNack, out.Kind)
	assert.True(t, out.Name.Equal(name))
	assert.Empty(t, l.reassemblies)
}
