// Package scheduler runs suspend timeouts for suspended connections.
//
// Every watcher is a fixed-rate check with period equal to its timeout. A
// tick fires only when the connection has not written for longer than the
// timeout, so writes push the effective deadline back without re-arming.
package scheduler

import (
	"container/heap"
	"runtime"
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/googollee/go-comet/logger"
	"github.com/googollee/go-comet/utils"
)

// ErrClosed is returned by Close on a closed scheduler.
const ErrClosed = utils.ConstError("scheduler closed")

// Scheduler is shared by all connections of a process. A dispatcher
// goroutine moves due watchers to a ready queue drained by a fixed pool of
// workers, so a slow timeout callback never delays other checks.
type Scheduler struct {
	locker sync.Mutex
	timers watcherHeap
	byID   map[string]*Watcher
	closed bool

	readyLocker sync.Mutex
	readyCond   *sync.Cond
	ready       *queue.Queue

	notify chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup

	now func() time.Time
}

// New starts a scheduler with the given number of workers. workers <= 0
// means one per CPU.
func New(workers int) *Scheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	s := &Scheduler{
		byID:   make(map[string]*Watcher),
		ready:  queue.New(),
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		now:    time.Now,
	}
	s.readyCond = sync.NewCond(&s.readyLocker)

	s.wg.Add(workers + 1)
	go s.dispatch()
	for i := 0; i < workers; i++ {
		go s.work()
	}

	return s
}

// Arm schedules onTimeout for connection id. onTimeout receives the watcher
// it belongs to, so callers can tell a late timeout from the current one.
// A previous watcher of the same id is cancelled. A timeout <= 0 means no
// timeout: nothing is scheduled and Arm returns nil.
func (s *Scheduler) Arm(id string, timeout time.Duration, src Activity, onTimeout func(w *Watcher)) *Watcher {
	if timeout <= 0 {
		return nil
	}

	w := &Watcher{
		id:        id,
		timeout:   timeout,
		src:       src,
		onTimeout: onTimeout,
		due:       s.now().Add(timeout),
		index:     -1,
	}

	s.locker.Lock()
	defer s.locker.Unlock()

	if s.closed {
		logger.Info("arm on closed scheduler", "id", id)
		return nil
	}

	if prev, ok := s.byID[id]; ok {
		s.cancelLocked(prev)
	}
	s.byID[id] = w
	heap.Push(&s.timers, w)
	s.wakeup()

	logger.Debug("armed", "id", id, "timeout", timeout.String())
	return w
}

// Disarm cancels w. It is safe on nil, fired or already cancelled watchers.
// Once Disarm returns true, onTimeout of w never runs.
func (s *Scheduler) Disarm(w *Watcher) bool {
	if w == nil {
		return false
	}

	s.locker.Lock()
	defer s.locker.Unlock()

	return s.cancelLocked(w)
}

// Active reports whether connection id has an armed watcher.
func (s *Scheduler) Active(id string) bool {
	s.locker.Lock()
	defer s.locker.Unlock()

	w, ok := s.byID[id]
	return ok && w.Active()
}

// Len returns the number of armed watchers.
func (s *Scheduler) Len() int {
	s.locker.Lock()
	defer s.locker.Unlock()

	return len(s.byID)
}

// Close stops the scheduler and cancels every armed watcher.
func (s *Scheduler) Close() error {
	s.locker.Lock()
	if s.closed {
		s.locker.Unlock()
		return ErrClosed
	}
	s.closed = true
	for _, w := range s.byID {
		s.cancelLocked(w)
	}
	s.locker.Unlock()

	close(s.stop)
	s.readyLocker.Lock()
	s.readyCond.Broadcast()
	s.readyLocker.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Scheduler) cancelLocked(w *Watcher) bool {
	ok := w.cancel()
	if w.index >= 0 {
		heap.Remove(&s.timers, w.index)
	}
	if cur, found := s.byID[w.id]; found && cur == w {
		delete(s.byID, w.id)
	}

	return ok
}

func (s *Scheduler) forget(w *Watcher) {
	s.locker.Lock()
	defer s.locker.Unlock()

	if w.index >= 0 {
		heap.Remove(&s.timers, w.index)
	}
	if cur, found := s.byID[w.id]; found && cur == w {
		delete(s.byID, w.id)
	}
}

func (s *Scheduler) wakeup() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Scheduler) dispatch() {
	defer s.wg.Done()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := s.popDue()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		if wait > 0 {
			timer.Reset(wait)
		}

		var tick <-chan time.Time
		if wait > 0 {
			tick = timer.C
		}

		select {
		case <-s.stop:
			return
		case <-s.notify:
		case <-tick:
		}
	}
}

// popDue moves due watchers to the ready queue and returns how long to wait
// for the next one, or 0 when there is nothing scheduled.
func (s *Scheduler) popDue() time.Duration {
	s.locker.Lock()
	defer s.locker.Unlock()

	now := s.now()
	var due []*Watcher
	for s.timers.Len() > 0 {
		w := s.timers[0]
		if w.due.After(now) {
			break
		}
		heap.Pop(&s.timers)
		if w.Active() {
			due = append(due, w)
		}
	}

	if len(due) > 0 {
		s.readyLocker.Lock()
		for _, w := range due {
			s.ready.Add(w)
		}
		s.readyCond.Broadcast()
		s.readyLocker.Unlock()
	}

	if s.timers.Len() == 0 {
		return 0
	}

	wait := s.timers[0].due.Sub(now)
	if wait <= 0 {
		wait = time.Nanosecond
	}
	return wait
}

func (s *Scheduler) next() (*Watcher, bool) {
	s.readyLocker.Lock()
	defer s.readyLocker.Unlock()

	for s.ready.Length() == 0 {
		select {
		case <-s.stop:
			return nil, false
		default:
		}
		s.readyCond.Wait()
	}

	return s.ready.Remove().(*Watcher), true
}

func (s *Scheduler) work() {
	defer s.wg.Done()

	for {
		w, ok := s.next()
		if !ok {
			return
		}
		s.check(w)
	}
}

func (s *Scheduler) check(w *Watcher) {
	if !w.Active() {
		return
	}

	if w.src.IsClosed() {
		s.Disarm(w)
		logger.Debug("source closed, watcher dropped", "id", w.id)
		return
	}

	if s.now().Sub(w.src.LastTick()) <= w.timeout {
		s.reschedule(w)
		return
	}

	if !w.fire() {
		return
	}
	s.forget(w)

	logger.Debug("suspend timeout", "id", w.id, "timeout", w.timeout.String())
	w.onTimeout(w)
}

func (s *Scheduler) reschedule(w *Watcher) {
	s.locker.Lock()
	defer s.locker.Unlock()

	if s.closed || !w.Active() {
		return
	}

	w.due = w.due.Add(w.timeout)
	heap.Push(&s.timers, w)
	s.wakeup()
}
