// Package notify provides the synchronous notification primitive shared by the
// layer collection, the association models and the viewer components.
//
// A Signal is confined to the goroutine that owns it. Handlers run inline, in
// subscription order, before Emit returns.
package notify

// Subscription is the handle returned by Signal.Subscribe.
type Subscription interface {
	// Unsubscribe removes the handler. Calling it more than once is a no-op.
	Unsubscribe()
}

type handler struct {
	id uint64
	fn func()
}

// Signal fans a notification out to its subscribers. The zero value is ready
// to use.
type Signal struct {
	next     uint64
	handlers []handler
}

// Subscribe registers fn and returns the handle that removes it again.
func (s *Signal) Subscribe(fn func()) Subscription {
	s.next++
	id := s.next
	s.handlers = append(s.handlers, handler{id: id, fn: fn})
	return &subscription{signal: s, id: id}
}

// Emit invokes every current subscriber. Handlers may subscribe or
// unsubscribe while the signal is being emitted; handlers added during an
// emission are not called until the next one.
func (s *Signal) Emit() {
	if len(s.handlers) == 0 {
		return
	}
	snapshot := make([]handler, len(s.handlers))
	copy(snapshot, s.handlers)
	for _, h := range snapshot {
		if s.has(h.id) {
			h.fn()
		}
	}
}

// Len returns the number of subscribers.
func (s *Signal) Len() int {
	return len(s.handlers)
}

func (s *Signal) has(id uint64) bool {
	for _, h := range s.handlers {
		if h.id == id {
			return true
		}
	}
	return false
}

func (s *Signal) remove(id uint64) {
	for i, h := range s.handlers {
		if h.id == id {
			s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
			return
		}
	}
}

type subscription struct {
	signal *Signal
	id     uint64
}

func (s *subscription) Unsubscribe() {
	if s.signal == nil {
		return
	}
	s.signal.remove(s.id)
	s.signal = nil
}

// Forward subscribes to src and re-emits every notification on dst.
func Forward(src, dst *Signal) Subscription {
	return src.Subscribe(dst.Emit)
}
