package chunk

import (
	"strconv"

	"github.com/go-nfn/nfnd/defn"
	"golang.org/x/crypto/blake2b"
)

// chunkComponent is the fixed path segment separating a base name from
// its numbered chunks: name/chunk/0, name/chunk/1, ...
const chunkComponent = "chunk"

// chunkName returns the name of the i'th chunk of base.
func chunkName(base defn.Name, i int) defn.Name {
	return base.Append(defn.Component(chunkComponent), defn.Component(strconv.Itoa(i)))
}

// digest returns the blake2b-256 digest of payload.
func digest(payload []byte) [digestSize]byte {
	return blake2b.Sum256(payload)
}

// splitIntoChunks fragments name's Content payload into ceil(len/size)
// numbered chunk Content packets, plus a Manifest Content answering the
// original name. It returns nil, nil if payload does not need splitting.
func splitIntoChunks(name defn.Name, payload []byte, size int) (manifest *defn.Packet, chunks []*defn.Packet) {
	if len(payload) <= size {
		return nil, nil
	}

	n := (len(payload) + size - 1) / size
	entries := make([]ManifestEntry, 0, n)
	chunks = make([]*defn.Packet, 0, n)

	for i := 0; i < n; i++ {
		start := i * size
		end := start + size
		if end > len(payload) {
			end = len(payload)
		}
		part := payload[start:end]
		cname := chunkName(name, i)
		entries = append(entries, ManifestEntry{Name: cname, Digest: digest(part)})
		chunks = append(chunks, defn.NewContent(cname, part))
	}

	m := &Manifest{Entries: entries, TotalSize: len(payload), WholeDigest: digest(payload)}
	manifest = defn.NewContent(name, m.Encode())
	return manifest, chunks
}

// reassemble concatenates chunk payloads in manifest order, checking each
// chunk against its manifest entry's digest and the result against the
// manifest's whole-payload digest. payload is nil while a chunk is still
// missing; ok is false on any digest mismatch.
func reassemble(m *Manifest, chunks map[string][]byte) (payload []byte, ok bool) {
	payload = make([]byte, 0, m.TotalSize)
	for _, e := range m.Entries {
		part, have := chunks[e.Name.String()]
		if !have {
			return nil, false
		}
		if digest(part) != e.Digest {
			return payload, false
		}
		payload = append(payload, part...)
	}
	return payload, digest(payload) == m.WholeDigest
}
