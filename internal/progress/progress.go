// Package progress defines the optional observer that long running custody
// operations report their steps to.
package progress

import (
	"context"
	"sync"
)

// Observer receives best-effort progress notifications. Implementations must
// not block for long and must never panic into the caller.
type Observer interface {
	Step(ctx context.Context, msg string)
	Success(ctx context.Context, msg string)
	Fail(ctx context.Context, msg string)
}

// Nop is an Observer that discards every notification.
type Nop struct{}

var _ Observer = Nop{}

func (Nop) Step(context.Context, string)    {}
func (Nop) Success(context.Context, string) {}
func (Nop) Fail(context.Context, string)    {}

// OrNop returns o, or Nop when o is nil.
func OrNop(o Observer) Observer {
	if o == nil {
		return Nop{}
	}

	return o
}

// Recorder is an Observer that keeps every notification in order. It is safe
// for concurrent use, so it can observe background deposit monitors.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Event is one recorded notification.
type Event struct {
	Kind    string // "step", "success" or "fail"
	Message string
}

var _ Observer = (*Recorder)(nil)

func (r *Recorder) record(kind, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: kind, Message: msg})
}

func (r *Recorder) Step(_ context.Context, msg string) {
	r.record("step", msg)
}

func (r *Recorder) Success(_ context.Context, msg string) {
	r.record("success", msg)
}

func (r *Recorder) Fail(_ context.Context, msg string) {
	r.record("fail", msg)
}

// Events returns a copy of the recorded notifications.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Last returns the most recent event of kind, if any.
func (r *Recorder) Last(kind string) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}

	return Event{}, false
}
