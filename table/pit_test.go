package table

import (
	"testing"
	"time"

	"github.com/go-nfn/nfnd/defn"
	"github.com/stretchr/testify/assert"
)

// Two Interests for the same name aggregate onto one PIT entry with both
// incoming faces recorded.
func TestPitAggregation(t *testing.T) {
	pit := NewPendingInterestTable()
	name := defn.NameFromString("/foo/bar")

	entry := pit.Insert(name, defn.FaceID(1), false)
	entry.SetOutgoing(defn.FaceID(99))

	got, ok := pit.Get(name)
	assert.True(t, ok)
	got.AddIncomingFace(defn.FaceID(2))

	assert.ElementsMatch(t, []defn.FaceID{1, 2}, got.IncomingFaceList())
	assert.Equal(t, 1, pit.Len())
}

func TestPitRemove(t *testing.T) {
	pit := NewPendingInterestTable()
	name := defn.NameFromString("/foo")
	pit.Insert(name, defn.FaceID(1), false)

	pit.Remove(name)

	_, ok := pit.Get(name)
	assert.False(t, ok)
	assert.Equal(t, 0, pit.Len())
}

// PIT ageing evicts entries older than pit_timeout.
func TestPitExpired(t *testing.T) {
	pit := NewPendingInterestTable()
	name := defn.NameFromString("/slow")
	pit.Insert(name, defn.FaceID(1), false)

	expired := pit.Expired(time.Now().Add(time.Hour), time.Second)
	assert.Len(t, expired, 1)
	assert.True(t, expired[0].Name.Equal(name))

	notExpired := pit.Expired(time.Now(), time.Hour)
	assert.Len(t, notExpired, 0)
}
