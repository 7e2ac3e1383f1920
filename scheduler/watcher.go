package scheduler

import (
	"sync/atomic"
	"time"
)

const (
	stateArmed int32 = iota
	stateFired
	stateCancelled
)

// Activity is what a watcher polls: the connection's output channel.
type Activity interface {
	LastTick() time.Time
	IsClosed() bool
}

// Watcher is a recurring staleness check bound to one connection.
type Watcher struct {
	id        string
	timeout   time.Duration
	src       Activity
	onTimeout func(w *Watcher)

	due   time.Time
	index int

	state atomic.Int32
}

func (w *Watcher) ID() string {
	return w.id
}

func (w *Watcher) Timeout() time.Duration {
	return w.timeout
}

// Active reports whether the watcher can still fire.
func (w *Watcher) Active() bool {
	return w.state.Load() == stateArmed
}

// Fired reports whether onTimeout was invoked.
func (w *Watcher) Fired() bool {
	return w.state.Load() == stateFired
}

func (w *Watcher) cancel() bool {
	return w.state.CompareAndSwap(stateArmed, stateCancelled)
}

func (w *Watcher) fire() bool {
	return w.state.CompareAndSwap(stateArmed, stateFired)
}

type watcherHeap []*Watcher

func (h watcherHeap) Len() int { return len(h) }

func (h watcherHeap) Less(i, j int) bool { return h[i].due.Before(h[j].due) }

func (h watcherHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *watcherHeap) Push(x interface{}) {
	w := x.(*Watcher)
	w.index = len(*h)
	*h = append(*h, w)
}

func (h *watcherHeap) Pop() interface{} {
	old := *h
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	w.index = -1
	*h = old[:n-1]
	return w
}
