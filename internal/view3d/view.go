// Package view3d holds the 3-D view's world placement, which follows the
// main layer of the collection.
package view3d

import (
	"github.com/polisai/layersync/pkg/layers"
	"github.com/polisai/layersync/pkg/notify"
	"github.com/rs/zerolog/log"
)

// View tracks the world matrix of the 3-D view. The matrix is the main
// layer's voxel-to-world transform, or identity when there is no main layer.
type View struct {
	coll    *layers.Collection
	main    *layers.Layer
	world   [16]float64
	changed notify.Signal
	sub     notify.Subscription
}

// New creates a view following coll.
func New(coll *layers.Collection) *View {
	v := &View{coll: coll, world: layers.Identity()}
	v.recompute()
	v.sub = coll.Subscribe(v.recompute)
	return v
}

func (v *View) recompute() {
	main, ok := v.coll.Main()
	world := layers.Identity()
	if ok {
		world = main.Transform()
	} else {
		main = nil
	}
	if main == v.main && world == v.world {
		return
	}
	v.main, v.world = main, world
	log.Debug().Stringer("main", main).Msg("3-D world matrix updated")
	v.changed.Emit()
}

// World returns the world matrix in row-major order.
func (v *View) World() [16]float64 {
	return v.world
}

// Main returns the layer the view is placed on.
func (v *View) Main() (*layers.Layer, bool) {
	return v.main, v.main != nil
}

// Center returns the world position of the main layer's volume center.
func (v *View) Center() [3]float64 {
	if v.main == nil {
		return [3]float64{}
	}
	d := v.main.Dims()
	return Apply(v.world, [3]float64{float64(d[0]) / 2, float64(d[1]) / 2, float64(d[2]) / 2})
}

// Changed fires when the world matrix or the main layer changes.
func (v *View) Changed() *notify.Signal {
	return &v.changed
}

// Close stops following the collection.
func (v *View) Close() {
	if v.sub != nil {
		v.sub.Unsubscribe()
		v.sub = nil
	}
}

// Apply transforms point p by the row-major affine matrix m.
func Apply(m [16]float64, p [3]float64) [3]float64 {
	var out [3]float64
	for r := 0; r < 3; r++ {
		out[r] = m[r*4]*p[0] + m[r*4+1]*p[1] + m[r*4+2]*p[2] + m[r*4+3]
	}
	return out
}
