package association

import (
	"context"
	"fmt"

	"github.com/polisai/layersync/pkg/notify"
)

type testLayer struct {
	name string
}

func (l *testLayer) String() string {
	return l.name
}

type testCollection struct {
	layers  []*testLayer
	changed notify.Signal
}

func newTestCollection(names ...string) *testCollection {
	c := &testCollection{}
	for _, name := range names {
		c.layers = append(c.layers, &testLayer{name: name})
	}
	return c
}

func (c *testCollection) Layers() []*testLayer {
	out := make([]*testLayer, len(c.layers))
	copy(out, c.layers)
	return out
}

func (c *testCollection) Subscribe(fn func()) notify.Subscription {
	return c.changed.Subscribe(fn)
}

func (c *testCollection) add(name string) *testLayer {
	l := &testLayer{name: name}
	c.layers = append(c.layers, l)
	c.changed.Emit()
	return l
}

func (c *testCollection) remove(l *testLayer) {
	for i, existing := range c.layers {
		if existing == l {
			c.layers = append(c.layers[:i], c.layers[i+1:]...)
			c.changed.Emit()
			return
		}
	}
}

func (c *testCollection) get(name string) *testLayer {
	for _, l := range c.layers {
		if l.name == name {
			return l
		}
	}
	return nil
}

type testAux struct {
	layer    *testLayer
	serial   int
	disposed bool
}

type countingFactory struct {
	calls    int
	disposed int
	fail     map[*testLayer]error
}

func newCountingFactory() *countingFactory {
	return &countingFactory{fail: make(map[*testLayer]error)}
}

func (f *countingFactory) Create(_ context.Context, layer *testLayer) (*testAux, error) {
	f.calls++
	if err := f.fail[layer]; err != nil {
		return nil, err
	}
	return &testAux{layer: layer, serial: f.calls}, nil
}

func (f *countingFactory) Dispose(_ *testLayer, value *testAux) {
	f.disposed++
	value.disposed = true
}

type hookRecorder struct {
	events   []string
	attached map[*testLayer]int
}

func newHookRecorder() *hookRecorder {
	return &hookRecorder{attached: make(map[*testLayer]int)}
}

func (h *hookRecorder) Attach(_ context.Context, layer *testLayer, _ *testAux) {
	h.events = append(h.events, fmt.Sprintf("attach:%s", layer.name))
	h.attached[layer]++
}

func (h *hookRecorder) Detach(_ context.Context, layer *testLayer, _ *testAux) {
	h.events = append(h.events, fmt.Sprintf("detach:%s", layer.name))
	h.attached[layer]--
}

// live counts layers attached without a matching detach.
func (h *hookRecorder) live() int {
	n := 0
	for _, count := range h.attached {
		if count != 0 {
			n++
		}
	}
	return n
}

func (h *hookRecorder) count(event string) int {
	n := 0
	for _, e := range h.events {
		if e == event {
			n++
		}
	}
	return n
}
