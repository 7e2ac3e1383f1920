package scheduler

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeActivity struct {
	locker sync.Mutex
	last   time.Time
	fresh  bool
	closed bool
}

func staleActivity() *fakeActivity {
	return &fakeActivity{last: time.Now().Add(-time.Hour)}
}

func (a *fakeActivity) LastTick() time.Time {
	a.locker.Lock()
	defer a.locker.Unlock()

	if a.fresh {
		return time.Now()
	}
	return a.last
}

func (a *fakeActivity) IsClosed() bool {
	a.locker.Lock()
	defer a.locker.Unlock()

	return a.closed
}

func (a *fakeActivity) setFresh(fresh bool) {
	a.locker.Lock()
	defer a.locker.Unlock()

	a.fresh = fresh
	a.last = time.Now()
}

func (a *fakeActivity) close() {
	a.locker.Lock()
	defer a.locker.Unlock()

	a.closed = true
}

func TestSchedulerFiresOnce(t *testing.T) {
	s := New(2)
	defer s.Close()

	var fired int32
	w := s.Arm("c1", 30*time.Millisecond, staleActivity(), func(*Watcher) {
		atomic.AddInt32(&fired, 1)
	})
	require.NotNil(t, w)
	assert.True(t, s.Active("c1"))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&fired) == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired), "no ticks after firing")
	assert.True(t, w.Fired())
	assert.False(t, s.Active("c1"))
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Disarm(w), "disarming a fired watcher is a no-op")
}

func TestSchedulerActivityDelaysTimeout(t *testing.T) {
	s := New(1)
	defer s.Close()

	src := &fakeActivity{}
	src.setFresh(true)

	var fired int32
	s.Arm("c1", 30*time.Millisecond, src, func(*Watcher) {
		atomic.AddInt32(&fired, 1)
	})

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired), "writing connections never time out")
	assert.True(t, s.Active("c1"))

	src.setFresh(false)
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&fired) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerDisarmBeforeFire(t *testing.T) {
	s := New(1)
	defer s.Close()

	var fired int32
	w := s.Arm("c1", 50*time.Millisecond, staleActivity(), func(*Watcher) {
		atomic.AddInt32(&fired, 1)
	})

	assert.True(t, s.Disarm(w))
	assert.False(t, w.Active())
	assert.False(t, s.Active("c1"))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
	assert.False(t, s.Disarm(w))
	assert.False(t, s.Disarm(nil))
}

func TestSchedulerNoTimeout(t *testing.T) {
	s := New(1)
	defer s.Close()

	assert.Nil(t, s.Arm("c1", 0, staleActivity(), func(*Watcher) {}))
	assert.Nil(t, s.Arm("c1", -1, staleActivity(), func(*Watcher) {}))
	assert.Equal(t, 0, s.Len())
}

func TestSchedulerRearmCancelsPrevious(t *testing.T) {
	s := New(1)
	defer s.Close()

	var first, second int32
	w1 := s.Arm("c1", 20*time.Millisecond, staleActivity(), func(*Watcher) {
		atomic.AddInt32(&first, 1)
	})
	w2 := s.Arm("c1", 40*time.Millisecond, staleActivity(), func(*Watcher) {
		atomic.AddInt32(&second, 1)
	})

	assert.False(t, w1.Active())
	assert.Equal(t, 1, s.Len())

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&second) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&first))
	assert.True(t, w2.Fired())
}

func TestSchedulerClosedSourceDropped(t *testing.T) {
	s := New(1)
	defer s.Close()

	src := staleActivity()
	src.close()

	var fired int32
	s.Arm("c1", 20*time.Millisecond, src, func(*Watcher) {
		atomic.AddInt32(&fired, 1)
	})

	assert.Eventually(t, func() bool {
		return s.Len() == 0
	}, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestSchedulerClose(t *testing.T) {
	s := New(2)

	w := s.Arm("c1", time.Hour, staleActivity(), func(*Watcher) {})
	require.NoError(t, s.Close())

	assert.False(t, w.Active())
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, ErrClosed, s.Close())
	assert.Nil(t, s.Arm("c2", time.Second, staleActivity(), func(*Watcher) {}))
}

func TestSchedulerFireOrDisarmNeverBoth(t *testing.T) {
	s := New(4)
	defer s.Close()

	const n = 200
	var fired, disarmed int32
	watchers := make([]*Watcher, n)
	for i := 0; i < n; i++ {
		watchers[i] = s.Arm(fmt.Sprintf("c%d", i), time.Millisecond, staleActivity(), func(*Watcher) {
			atomic.AddInt32(&fired, 1)
		})
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i += 2 {
		wg.Add(1)
		go func(w *Watcher) {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			if s.Disarm(w) {
				atomic.AddInt32(&disarmed, 1)
			}
		}(watchers[i])
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&fired)+atomic.LoadInt32(&disarmed) == n
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(n), atomic.LoadInt32(&fired)+atomic.LoadInt32(&disarmed))
	for _, w := range watchers {
		assert.False(t, w.Active())
	}
}
