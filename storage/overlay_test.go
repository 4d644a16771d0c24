package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverlayReadThrough(t *testing.T) {
	base := NewMemDB()
	require.NoError(t, base.Put([]byte("a"), []byte("base")))
	ov := NewOverlay(base)

	got, err := ov.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("base"), got)

	_, err = ov.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOverlayBuffersWrites(t *testing.T) {
	base := NewMemDB()
	ov := NewOverlay(base)

	require.NoError(t, ov.Put([]byte("a"), []byte("buffered")))

	got, err := ov.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("buffered"), got)

	has, err := ov.Has([]byte("a"))
	require.NoError(t, err)
	require.True(t, has)

	_, err = base.Get([]byte("a"))
	require.ErrorIs(t, err, ErrNotFound, "write must not reach base before commit")

	require.NoError(t, ov.Commit())
	got, err = base.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("buffered"), got)
}

func TestOverlayBuffersDeletes(t *testing.T) {
	base := NewMemDB()
	require.NoError(t, base.Put([]byte("a"), []byte("base")))
	ov := NewOverlay(base)

	require.NoError(t, ov.Delete([]byte("a")))

	_, err := ov.Get([]byte("a"))
	require.ErrorIs(t, err, ErrNotFound)

	has, err := ov.Has([]byte("a"))
	require.NoError(t, err)
	require.False(t, has)

	has, err = base.Has([]byte("a"))
	require.NoError(t, err)
	require.True(t, has, "delete must not reach base before commit")

	require.NoError(t, ov.Commit())
	has, err = base.Has([]byte("a"))
	require.NoError(t, err)
	require.False(t, has)
}

func TestOverlayWriteAfterDelete(t *testing.T) {
	base := NewMemDB()
	ov := NewOverlay(base)

	require.NoError(t, ov.Delete([]byte("a")))
	require.NoError(t, ov.Put([]byte("a"), []byte("revived")))

	got, err := ov.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("revived"), got)

	require.NoError(t, ov.Commit())
	got, err = base.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("revived"), got)
}

func TestOverlayCloseDiscards(t *testing.T) {
	base := NewMemDB()
	require.NoError(t, base.Put([]byte("a"), []byte("base")))
	ov := NewOverlay(base)
	require.NoError(t, ov.Put([]byte("a"), []byte("buffered")))
	require.NoError(t, ov.Delete([]byte("b")))
	ov.Close()

	got, err := base.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("base"), got)

	// The overlay is reusable after Close; reads fall through again.
	got, err = ov.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("base"), got)
}

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()
	require.NoError(t, db.Put([]byte("k"), []byte("v")))

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	// Mutating the returned slice must not affect the stored copy.
	got[0] = 'x'
	again, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), again)

	require.NoError(t, db.Delete([]byte("k")))
	_, err = db.Get([]byte("k"))
	require.ErrorIs(t, err, ErrNotFound)
}
