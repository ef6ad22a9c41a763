package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLayer(t *testing.T, name string, role Role) *Layer {
	t.Helper()
	l, err := New(scalarSpec(name, role))
	require.NoError(t, err)
	return l
}

func names(ls []*Layer) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.Name()
	}
	return out
}

func TestCollectionAddRemove(t *testing.T) {
	c := NewCollection()
	changes := 0
	c.Subscribe(func() { changes++ })

	main := mustLayer(t, "t1", RoleMain)
	seg := mustLayer(t, "seg", RoleSegmentation)
	require.NoError(t, c.Add(main))
	require.NoError(t, c.Add(seg))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2, changes)

	err := c.Add(mustLayer(t, "t1", RoleOverlay))
	assert.ErrorIs(t, err, ErrDuplicateLayer)
	err = c.Add(mustLayer(t, "t2", RoleMain))
	assert.ErrorIs(t, err, ErrMainLayerTaken)
	assert.Equal(t, 2, changes)

	got, ok := c.Main()
	require.True(t, ok)
	assert.Same(t, main, got)

	assert.True(t, c.Remove(main))
	assert.False(t, c.Remove(main))
	_, ok = c.Main()
	assert.False(t, ok)
	assert.Equal(t, 3, changes)
}

func TestCollectionFind(t *testing.T) {
	c := NewCollection()
	l := mustLayer(t, "t1", RoleMain)
	require.NoError(t, c.Add(l))

	got, ok := c.Find(l.ID())
	require.True(t, ok)
	assert.Same(t, l, got)

	got, ok = c.FindByName("t1")
	require.True(t, ok)
	assert.Same(t, l, got)

	_, ok = c.FindByName("missing")
	assert.False(t, ok)
}

func TestCollectionMove(t *testing.T) {
	c := NewCollection()
	a, b, d := mustLayer(t, "a", RoleOverlay), mustLayer(t, "b", RoleOverlay), mustLayer(t, "d", RoleOverlay)
	for _, l := range []*Layer{a, b, d} {
		require.NoError(t, c.Add(l))
	}

	require.NoError(t, c.Move(d, 0))
	assert.Equal(t, []string{"d", "a", "b"}, names(c.Layers()))
	require.NoError(t, c.Move(d, 2))
	assert.Equal(t, []string{"a", "b", "d"}, names(c.Layers()))

	assert.Error(t, c.Move(a, 5))
	assert.ErrorIs(t, c.Move(mustLayer(t, "x", RoleOverlay), 0), ErrLayerNotFound)
}

func TestCollectionReplace(t *testing.T) {
	c := NewCollection()
	old := mustLayer(t, "t1", RoleMain)
	require.NoError(t, c.Add(old))
	require.NoError(t, c.Add(mustLayer(t, "seg", RoleSegmentation)))

	replacement := mustLayer(t, "t1", RoleMain)
	require.NoError(t, c.Replace(old, replacement))
	assert.Same(t, replacement, c.Layers()[0])
	_, ok := c.Find(old.ID())
	assert.False(t, ok)
}

func TestCollectionBatchCoalesces(t *testing.T) {
	c := NewCollection()
	changes := 0
	c.Subscribe(func() { changes++ })

	err := c.Batch(func() error {
		require.NoError(t, c.Add(mustLayer(t, "a", RoleOverlay)))
		require.NoError(t, c.Add(mustLayer(t, "b", RoleOverlay)))
		return c.Batch(func() error {
			return c.Add(mustLayer(t, "c", RoleOverlay))
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, changes)
	assert.Equal(t, 3, c.Len())

	require.NoError(t, c.Batch(func() error { return nil }))
	assert.Equal(t, 1, changes)
}

func TestCollectionBatchRecoversFromPanic(t *testing.T) {
	c := NewCollection()
	changes := 0
	c.Subscribe(func() { changes++ })

	assert.Panics(t, func() {
		_ = c.Batch(func() error {
			require.NoError(t, c.Add(mustLayer(t, "a", RoleOverlay)))
			panic("boom")
		})
	})
	assert.Equal(t, 1, changes, "changes made before the panic are still announced")

	require.NoError(t, c.Add(mustLayer(t, "b", RoleOverlay)))
	assert.Equal(t, 2, changes, "notifications resume after the panic")
}

func TestCollectionLayersIsACopy(t *testing.T) {
	c := NewCollection()
	require.NoError(t, c.Add(mustLayer(t, "a", RoleOverlay)))
	ls := c.Layers()
	ls[0] = nil
	assert.NotNil(t, c.Layers()[0])
}
