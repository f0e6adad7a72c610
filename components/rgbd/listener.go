package rgbd

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

// FrameListener is the side of a listener the driver's producer threads call. OnNewFrame reports whether
// the listener took ownership of the frame.
type FrameListener interface {
	OnNewFrame(t FrameType, f *Frame) bool
}

// Listener is the side of a listener the capture loop calls. Every set returned by WaitForNewFrame must be
// passed to Release exactly once.
type Listener interface {
	WaitForNewFrame(ctx context.Context) (FrameSet, error)
	Release(FrameSet)
}

// SyncMultiFrameListener collects frames from a producer until one of every subscribed type is present and
// then hands the complete set to a single consumer. A newer frame of a type replaces an older one that has
// not been consumed yet, so the producer never blocks.
type SyncMultiFrameListener struct {
	types FrameType

	mu    sync.Mutex
	next  FrameSet
	ready FrameType

	signal      chan struct{}
	outstanding atomic.Int64
}

// NewSyncMultiFrameListener returns a listener subscribed to types.
func NewSyncMultiFrameListener(types FrameType) *SyncMultiFrameListener {
	return &SyncMultiFrameListener{
		types:  types,
		next:   FrameSet{},
		signal: make(chan struct{}, 1),
	}
}

// OnNewFrame stores f as the latest frame of type t.
func (l *SyncMultiFrameListener) OnNewFrame(t FrameType, f *Frame) bool {
	if l.types&t == 0 {
		return false
	}
	l.mu.Lock()
	l.next[t] = f
	l.ready |= t
	complete := l.ready == l.types
	l.mu.Unlock()

	if complete {
		select {
		case l.signal <- struct{}{}:
		default:
		}
	}
	return true
}

// WaitForNewFrame blocks until a complete set is available or ctx is done.
func (l *SyncMultiFrameListener) WaitForNewFrame(ctx context.Context) (FrameSet, error) {
	for {
		l.mu.Lock()
		if l.ready == l.types {
			set := l.next
			l.next = FrameSet{}
			l.ready = 0
			l.mu.Unlock()
			l.outstanding.Inc()
			return set, nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-l.signal:
		}
	}
}

// Release returns a set to the listener. Releasing an empty or already released set does nothing.
func (l *SyncMultiFrameListener) Release(set FrameSet) {
	if len(set) == 0 {
		return
	}
	for t := range set {
		delete(set, t)
	}
	l.outstanding.Dec()
}

// Outstanding is the number of sets handed out and not yet released.
func (l *SyncMultiFrameListener) Outstanding() int64 {
	return l.outstanding.Load()
}
