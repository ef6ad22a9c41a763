package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyReconcilesByName(t *testing.T) {
	c := NewCollection()
	changes := 0
	c.Subscribe(func() { changes++ })

	result, err := c.Apply([]Spec{scalarSpec("t1", RoleMain), scalarSpec("seg", RoleSegmentation)})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "seg"}, result.Added)
	assert.Equal(t, 1, changes)
	t1, _ := c.FindByName("t1")
	seg, _ := c.FindByName("seg")

	overlay := scalarSpec("ov", RoleOverlay)
	overlay.Opacity = 0.4
	result, err = c.Apply([]Spec{scalarSpec("t1", RoleMain), overlay})
	require.NoError(t, err)
	assert.Equal(t, []string{"ov"}, result.Added)
	assert.Equal(t, []string{"seg"}, result.Removed)
	assert.Equal(t, 2, changes)

	still, _ := c.FindByName("t1")
	assert.Same(t, t1, still, "unchanged layers keep their identity")
	_, ok := c.Find(seg.ID())
	assert.False(t, ok)
}

func TestApplyReplacesOnStructuralChange(t *testing.T) {
	c := NewCollection()
	_, err := c.Apply([]Spec{scalarSpec("t1", RoleMain)})
	require.NoError(t, err)
	before, _ := c.FindByName("t1")

	spec := scalarSpec("t1", RoleMain)
	spec.Format = FormatRGB
	result, err := c.Apply([]Spec{spec})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, result.Replaced)

	after, _ := c.FindByName("t1")
	assert.NotSame(t, before, after)
	assert.Equal(t, FormatRGB, after.Format())
}

func TestApplyUpdatesDisplayStateOnly(t *testing.T) {
	c := NewCollection()
	_, err := c.Apply([]Spec{scalarSpec("t1", RoleMain)})
	require.NoError(t, err)
	l, _ := c.FindByName("t1")

	structural, appearance := 0, 0
	c.Subscribe(func() { structural++ })
	l.Appearance().Subscribe(func() { appearance++ })

	spec := scalarSpec("t1", RoleMain)
	spec.Opacity = 0.25
	spec.Hidden = true
	result, err := c.Apply([]Spec{spec})
	require.NoError(t, err)

	assert.Equal(t, []string{"t1"}, result.Updated)
	assert.False(t, result.Changed())
	assert.Zero(t, structural)
	assert.Equal(t, 2, appearance)
	assert.Equal(t, 0.25, l.Opacity())
	assert.False(t, l.Visible())
}

func TestApplyReorders(t *testing.T) {
	c := NewCollection()
	_, err := c.Apply([]Spec{scalarSpec("a", RoleOverlay), scalarSpec("b", RoleOverlay)})
	require.NoError(t, err)

	result, err := c.Apply([]Spec{scalarSpec("b", RoleOverlay), scalarSpec("a", RoleOverlay)})
	require.NoError(t, err)
	assert.True(t, result.Reordered)
	assert.Equal(t, []string{"b", "a"}, names(c.Layers()))

	result, err = c.Apply([]Spec{scalarSpec("b", RoleOverlay), scalarSpec("a", RoleOverlay)})
	require.NoError(t, err)
	assert.False(t, result.Changed())
}

func TestApplyRejectsInvalidSpecsAtomically(t *testing.T) {
	c := NewCollection()
	_, err := c.Apply([]Spec{scalarSpec("t1", RoleMain)})
	require.NoError(t, err)
	before := c.Layers()

	_, err = c.Apply([]Spec{scalarSpec("a", RoleMain), scalarSpec("b", RoleMain)})
	assert.ErrorIs(t, err, ErrMainLayerTaken)

	_, err = c.Apply([]Spec{scalarSpec("a", RoleOverlay), scalarSpec("a", RoleOverlay)})
	assert.ErrorIs(t, err, ErrDuplicateLayer)

	bad := scalarSpec("a", RoleOverlay)
	bad.Dims = [3]int{0, 1, 1}
	_, err = c.Apply([]Spec{bad})
	assert.ErrorIs(t, err, ErrInvalidLayer)

	assert.Equal(t, before, c.Layers())
}
