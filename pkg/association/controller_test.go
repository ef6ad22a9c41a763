package association

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSyncedController(t *testing.T, names ...string) (*testCollection, *Cache[*testLayer, *testAux], *Controller[*testLayer, *testAux], *hookRecorder) {
	t.Helper()
	coll := newTestCollection(names...)
	cache := NewCache[*testLayer, *testAux](coll, newCountingFactory())
	_, err := cache.Resync(context.Background())
	require.NoError(t, err)
	hooks := newHookRecorder()
	return coll, cache, NewController[*testLayer, *testAux](cache, hooks), hooks
}

func TestControllerSelectDetachesBeforeAttach(t *testing.T) {
	ctx := context.Background()
	coll, _, ctrl, hooks := newSyncedController(t, "a", "b")

	require.NoError(t, ctrl.Select(ctx, coll.get("a")))
	require.NoError(t, ctrl.Select(ctx, coll.get("b")))

	assert.Equal(t, []string{"attach:a", "detach:a", "attach:b"}, hooks.events)
	current, ok := ctrl.Current()
	require.True(t, ok)
	assert.Same(t, coll.get("b"), current)
}

func TestControllerReselectRunsHooksAndNotifies(t *testing.T) {
	ctx := context.Background()
	coll, _, ctrl, hooks := newSyncedController(t, "a")
	notified := 0
	ctrl.SelectionChanged().Subscribe(func() { notified++ })

	require.NoError(t, ctrl.Select(ctx, coll.get("a")))
	require.NoError(t, ctrl.Select(ctx, coll.get("a")))

	assert.Equal(t, []string{"attach:a", "detach:a", "attach:a"}, hooks.events)
	assert.Equal(t, 2, notified)
	assert.Equal(t, 1, hooks.live())
}

func TestControllerSelectUnknownLeavesSelection(t *testing.T) {
	ctx := context.Background()
	coll, _, ctrl, hooks := newSyncedController(t, "a")
	notified := 0
	ctrl.SelectionChanged().Subscribe(func() { notified++ })
	require.NoError(t, ctrl.Select(ctx, coll.get("a")))

	stranger := &testLayer{name: "l3"}
	err := ctrl.Select(ctx, stranger)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownLayer)
	var unknown *UnknownLayerError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "l3", unknown.Layer)

	current, ok := ctrl.Current()
	require.True(t, ok)
	assert.Same(t, coll.get("a"), current)
	assert.Equal(t, []string{"attach:a"}, hooks.events)
	assert.Equal(t, 1, notified)
}

func TestControllerCurrentValue(t *testing.T) {
	ctx := context.Background()
	coll, cache, ctrl, _ := newSyncedController(t, "a")

	_, err := ctrl.CurrentValue()
	assert.ErrorIs(t, err, ErrNoSelection)

	require.NoError(t, ctrl.Select(ctx, coll.get("a")))
	value, err := ctrl.CurrentValue()
	require.NoError(t, err)
	expected, err := cache.Get(coll.get("a"))
	require.NoError(t, err)
	assert.Same(t, expected, value)

	ctrl.Clear(ctx)
	_, err = ctrl.CurrentValue()
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestControllerClearWithoutSelection(t *testing.T) {
	ctx := context.Background()
	_, _, ctrl, hooks := newSyncedController(t, "a")
	notified := 0
	ctrl.SelectionChanged().Subscribe(func() { notified++ })

	ctrl.Clear(ctx)

	assert.Empty(t, hooks.events)
	assert.Equal(t, 1, notified)
	_, ok := ctrl.Current()
	assert.False(t, ok)
}

func TestControllerOnStructuralChange(t *testing.T) {
	ctx := context.Background()
	coll, cache, ctrl, hooks := newSyncedController(t, "a", "b")
	a, b := coll.get("a"), coll.get("b")
	require.NoError(t, ctrl.Select(ctx, a))

	coll.remove(b)
	_, err := cache.Resync(ctx)
	require.NoError(t, err)
	ctrl.OnStructuralChange(ctx)
	current, ok := ctrl.Current()
	require.True(t, ok, "selection survives removal of another layer")
	assert.Same(t, a, current)

	coll.remove(a)
	_, err = cache.Resync(ctx)
	require.NoError(t, err)
	ctrl.OnStructuralChange(ctx)
	_, ok = ctrl.Current()
	assert.False(t, ok)
	assert.Equal(t, 1, hooks.count("detach:a"))
	assert.Zero(t, hooks.live())
}

func TestControllerDetachReceivesAttachedValue(t *testing.T) {
	ctx := context.Background()
	coll := newTestCollection("a")
	cache := NewCache[*testLayer, *testAux](coll, newCountingFactory())
	_, err := cache.Resync(ctx)
	require.NoError(t, err)

	var attached, detached *testAux
	ctrl := NewController[*testLayer, *testAux](cache, HookFuncs[*testLayer, *testAux]{
		OnAttach: func(_ context.Context, _ *testLayer, v *testAux) { attached = v },
		OnDetach: func(_ context.Context, _ *testLayer, v *testAux) { detached = v },
	})
	require.NoError(t, ctrl.Select(ctx, coll.get("a")))

	coll.remove(coll.get("a"))
	_, err = cache.Resync(ctx)
	require.NoError(t, err)
	ctrl.OnStructuralChange(ctx)

	require.NotNil(t, attached)
	assert.Same(t, attached, detached)
	assert.True(t, detached.disposed, "resync disposes before the selection is revalidated")
}

func TestControllerCloseDetachesSilently(t *testing.T) {
	ctx := context.Background()
	coll, _, ctrl, hooks := newSyncedController(t, "a")
	require.NoError(t, ctrl.Select(ctx, coll.get("a")))
	notified := 0
	ctrl.SelectionChanged().Subscribe(func() { notified++ })

	ctrl.Close(ctx)
	ctrl.Close(ctx)

	assert.Equal(t, []string{"attach:a", "detach:a"}, hooks.events)
	assert.Zero(t, notified)
}

func TestControllerNilHooks(t *testing.T) {
	ctx := context.Background()
	coll := newTestCollection("a")
	cache := NewCache[*testLayer, *testAux](coll, newCountingFactory())
	_, err := cache.Resync(ctx)
	require.NoError(t, err)

	ctrl := NewController[*testLayer, *testAux](cache, nil)
	require.NoError(t, ctrl.Select(ctx, coll.get("a")))
	ctrl.Clear(ctx)
}
