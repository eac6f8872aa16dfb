package defn

// FaceID identifies a peer connection established by the LinkLayer, or
// the pseudo-face APP standing in for the local application.
type FaceID uint64

// AppFace is the pseudo-face used when an Interest or Content originates
// from, or is destined to, the local NFN/Chunk stack rather than a peer.
const AppFace FaceID = 0

// FromFace bundles a packet with the face it arrived on or should be sent
// to - the (face, packet) pairing every layer boundary passes between
// queues.
type FromFace struct {
	Face   FaceID
	Packet *Packet
}
