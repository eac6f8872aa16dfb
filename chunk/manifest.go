// Package chunk implements the ChunkLayer: fragmenting outgoing Content
// that exceeds chunk_size into numbered chunks plus a manifest, and
// reassembling incoming chunk sequences so the layer above sees only
// whole Content objects.
package chunk

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-nfn/nfnd/defn"
)

// digestSize is the length of a blake2b-256 digest.
const digestSize = 32

// manifestMagic distinguishes an encoded Manifest from a plain, unchunked
// Content payload small enough to never have been split.
var manifestMagic = []byte("NFNDMANIFEST1\n")

// ManifestEntry names one chunk and the digest its payload must hash to.
type ManifestEntry struct {
	Name   defn.Name
	Digest [digestSize]byte
}

// Manifest lists the chunks a large Content object was split into, plus
// a digest of the reassembled whole for end-to-end integrity checking.
// This is a transport-level checksum, not cryptographic name
// authentication.
type Manifest struct {
	Entries     []ManifestEntry
	TotalSize   int
	WholeDigest [digestSize]byte
}

// Encode serializes the manifest to bytes suitable for a Content payload.
func (m *Manifest) Encode() []byte {
	var buf bytes.Buffer
	buf.Write(manifestMagic)
	_ = binary.Write(&buf, binary.BigEndian, uint32(m.TotalSize))
	buf.Write(m.WholeDigest[:])
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(m.Entries)))
	for _, e := range m.Entries {
		nameBytes := []byte(e.Name.String())
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(nameBytes)))
		buf.Write(nameBytes)
		buf.Write(e.Digest[:])
	}
	return buf.Bytes()
}

// DecodeManifest parses payload as a Manifest. ok is false if payload does
// not carry the manifest magic prefix - i.e. it is ordinary, unchunked
// Content, not a parse failure.
func DecodeManifest(payload []byte) (m *Manifest, ok bool, err error) {
	if !bytes.HasPrefix(payload, manifestMagic) {
		return nil, false, nil
	}
	r := bytes.NewReader(payload[len(manifestMagic):])

	var totalSize uint32
	if err := binary.Read(r, binary.BigEndian, &totalSize); err != nil {
		return nil, true, fmt.Errorf("manifest: read total size: %w", err)
	}

	var whole [digestSize]byte
	if _, err := r.Read(whole[:]); err != nil {
		return nil, true, fmt.Errorf("manifest: read whole digest: %w", err)
	}

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, true, fmt.Errorf("manifest: read entry count: %w", err)
	}

	entries := make([]ManifestEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		var nameLen uint32
		if err := binary.Read(r, binary.BigEndian, &nameLen); err != nil {
			return nil, true, fmt.Errorf("manifest: read name length: %w", err)
		}
		nameBytes := make([]byte, nameLen)
		if _, err := r.Read(nameBytes); err != nil {
			return nil, true, fmt.Errorf("manifest: read name: %w", err)
		}
		var digest [digestSize]byte
		if _, err := r.Read(digest[:]); err != nil {
			return nil, true, fmt.Errorf("manifest: read digest: %w", err)
		}
		entries = append(entries, ManifestEntry{Name: defn.NameFromString(string(nameBytes)), Digest: digest})
	}

	return &Manifest{Entries: entries, TotalSize: int(totalSize), WholeDigest: whole}, true, nil
}
