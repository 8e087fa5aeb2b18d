package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-source-go/pkg/sourceerr"
	"media-source-go/pkg/sources/sourcetest"
	"media-source-go/pkg/types"
)

func TestSourceRegistry_RegisterAndLookup(t *testing.T) {
	r := NewSourceRegistry(nil)
	a := sourcetest.New("a")
	b := sourcetest.New("b")
	b.CanSearch = true
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))

	got, ok := r.Get("b")
	require.True(t, ok)
	assert.Same(t, b, got)

	_, ok = r.Get("c")
	assert.False(t, ok)

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID())
	assert.Equal(t, "b", all[1].ID())
}

func TestSourceRegistry_RejectsDuplicatesAndEmptyIDs(t *testing.T) {
	r := NewSourceRegistry(nil)
	require.NoError(t, r.Register(sourcetest.New("a")))

	assert.Error(t, r.Register(sourcetest.New("a")))
	assert.Error(t, r.Register(sourcetest.New("")))
	assert.Len(t, r.All(), 1)
}

func TestSourceRegistry_Require(t *testing.T) {
	r := NewSourceRegistry(nil)
	require.NoError(t, r.Register(sourcetest.New("a")))

	src, err := r.Require("a")
	require.NoError(t, err)
	assert.Equal(t, "a", src.ID())

	_, err = r.Require("missing")
	assert.True(t, sourceerr.IsKind(err, sourceerr.KindUnknownSource))
}

func TestSourceRegistry_Infos(t *testing.T) {
	r := NewSourceRegistry(nil)
	f := sourcetest.New("a")
	f.SourceName = "Site A"
	f.CanCategory = true
	f.CanTimeline = true
	require.NoError(t, r.Register(f))

	assert.Equal(t, []types.SourceInfo{{
		ID:           "a",
		Name:         "Site A",
		Capabilities: types.Capabilities{Category: true, Timeline: true},
	}}, r.Infos())
}

func TestSourceRegistry_AllReturnsCopy(t *testing.T) {
	r := NewSourceRegistry(nil)
	require.NoError(t, r.Register(sourcetest.New("a")))

	all := r.All()
	all[0] = sourcetest.New("x")
	assert.Equal(t, "a", r.All()[0].ID())
}
