package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignalEmitsInSubscriptionOrder(t *testing.T) {
	var s Signal
	var calls []string

	s.Subscribe(func() { calls = append(calls, "a") })
	s.Subscribe(func() { calls = append(calls, "b") })
	s.Emit()

	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Equal(t, 2, s.Len())
}

func TestSignalUnsubscribeIsIdempotent(t *testing.T) {
	var s Signal
	count := 0

	sub := s.Subscribe(func() { count++ })
	sub.Unsubscribe()
	sub.Unsubscribe()
	s.Emit()

	assert.Zero(t, count)
	assert.Zero(t, s.Len())
}

func TestSignalUnsubscribeDuringEmit(t *testing.T) {
	var s Signal
	var second Subscription
	calls := 0

	s.Subscribe(func() {
		calls++
		second.Unsubscribe()
	})
	second = s.Subscribe(func() { calls += 10 })

	s.Emit()
	assert.Equal(t, 1, calls, "handler removed mid-emit must not run")
}

func TestSignalSubscribeDuringEmit(t *testing.T) {
	var s Signal
	calls := 0

	s.Subscribe(func() {
		s.Subscribe(func() { calls += 10 })
		calls++
	})

	s.Emit()
	assert.Equal(t, 1, calls)

	s.Emit()
	assert.Equal(t, 12, calls)
}

func TestForward(t *testing.T) {
	var src, dst Signal
	count := 0
	dst.Subscribe(func() { count++ })

	sub := Forward(&src, &dst)
	src.Emit()
	sub.Unsubscribe()
	src.Emit()

	assert.Equal(t, 1, count)
}
