package layers

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/polisai/layersync/pkg/notify"
)

// Collection is the ordered set of layers. It announces every structural
// change (add, remove, move, replace) on its change signal; display changes
// go through each layer's Appearance signal instead.
//
// A Collection is not safe for concurrent use.
type Collection struct {
	layers  []*Layer
	changed notify.Signal
	batch   int
	dirty   bool
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{}
}

// Layers returns the layers in paint order.
func (c *Collection) Layers() []*Layer {
	out := make([]*Layer, len(c.layers))
	copy(out, c.layers)
	return out
}

func (c *Collection) Len() int {
	return len(c.layers)
}

// Subscribe registers fn for structural change notifications.
func (c *Collection) Subscribe(fn func()) notify.Subscription {
	return c.changed.Subscribe(fn)
}

// Add appends layer. Names are unique and at most one layer has RoleMain.
func (c *Collection) Add(layer *Layer) error {
	if err := c.admit(layer, nil); err != nil {
		return err
	}
	c.layers = append(c.layers, layer)
	c.notify()
	return nil
}

// Remove drops layer and reports whether it was present.
func (c *Collection) Remove(layer *Layer) bool {
	i := c.index(layer)
	if i < 0 {
		return false
	}
	c.layers = append(c.layers[:i], c.layers[i+1:]...)
	c.notify()
	return true
}

// Move places layer at index, shifting the others.
func (c *Collection) Move(layer *Layer, index int) error {
	from := c.index(layer)
	if from < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, layer)
	}
	if index < 0 || index >= len(c.layers) {
		return fmt.Errorf("move %s: index %d out of range", layer, index)
	}
	if from == index {
		return nil
	}
	c.layers = append(c.layers[:from], c.layers[from+1:]...)
	c.layers = append(c.layers[:index], append([]*Layer{layer}, c.layers[index:]...)...)
	c.notify()
	return nil
}

// Replace swaps old for replacement at the same position.
func (c *Collection) Replace(old, replacement *Layer) error {
	i := c.index(old)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, old)
	}
	if err := c.admit(replacement, old); err != nil {
		return err
	}
	c.layers[i] = replacement
	c.notify()
	return nil
}

func (c *Collection) Find(id uuid.UUID) (*Layer, bool) {
	for _, l := range c.layers {
		if l.id == id {
			return l, true
		}
	}
	return nil, false
}

func (c *Collection) FindByName(name string) (*Layer, bool) {
	for _, l := range c.layers {
		if l.name == name {
			return l, true
		}
	}
	return nil, false
}

// Main returns the layer with RoleMain.
func (c *Collection) Main() (*Layer, bool) {
	for _, l := range c.layers {
		if l.role == RoleMain {
			return l, true
		}
	}
	return nil, false
}

// Batch runs fn with notifications held back and emits a single change
// notification afterwards if anything changed, even when fn fails or panics.
func (c *Collection) Batch(fn func() error) error {
	c.batch++
	defer func() {
		c.batch--
		if c.batch == 0 && c.dirty {
			c.dirty = false
			c.changed.Emit()
		}
	}()
	return fn()
}

func (c *Collection) notify() {
	if c.batch > 0 {
		c.dirty = true
		return
	}
	c.changed.Emit()
}

func (c *Collection) index(layer *Layer) int {
	for i, l := range c.layers {
		if l == layer {
			return i
		}
	}
	return -1
}

// admit checks layer against the collection, ignoring except.
func (c *Collection) admit(layer, except *Layer) error {
	if layer == nil {
		return fmt.Errorf("%w: nil layer", ErrInvalidLayer)
	}
	for _, l := range c.layers {
		if l == except {
			continue
		}
		if l == layer || l.name == layer.name {
			return fmt.Errorf("%w: %s", ErrDuplicateLayer, layer.name)
		}
		if layer.role == RoleMain && l.role == RoleMain {
			return fmt.Errorf("%w: %s", ErrMainLayerTaken, l.name)
		}
	}
	return nil
}
