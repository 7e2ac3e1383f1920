package comet

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/googollee/go-comet/logger"
	"github.com/googollee/go-comet/output"
	"github.com/googollee/go-comet/scheduler"
	"github.com/googollee/go-comet/transport"
)

// Conn is one inbound connection. It is created and owned by a Coordinator;
// the Framework uses it as the response sink.
type Conn struct {
	id     string
	req    *Request
	writer output.Channel
	co     *Coordinator

	state  atomic.Int32
	events chan Event
	done   chan struct{}

	// actions and timeouts never block their sender, which may be the
	// event loop itself or a scheduler worker.
	pendingLocker sync.Mutex
	pending       []Event
	wake          chan struct{}

	// owned by the event loop
	watcher           *scheduler.Watcher
	resumeOnBroadcast bool

	ctxLocker sync.RWMutex
	context   interface{}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) Request() *Request {
	return c.req
}

func (c *Conn) Transport() transport.Kind {
	return c.writer.Transport()
}

func (c *Conn) Writer() output.Channel {
	return c.writer
}

func (c *Conn) State() State {
	return State(c.state.Load())
}

// Done is closed once the connection is closed and its events are drained.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// LastActivity returns the time of the last write.
func (c *Conn) LastActivity() time.Time {
	return c.writer.LastTick()
}

// SetContext stores a per-connection value for the Framework.
func (c *Conn) SetContext(v interface{}) {
	c.ctxLocker.Lock()
	defer c.ctxLocker.Unlock()

	c.context = v
}

func (c *Conn) Context() interface{} {
	c.ctxLocker.RLock()
	defer c.ctxLocker.RUnlock()

	return c.context
}

func (c *Conn) Write(p []byte) (int, error) {
	return c.writer.Write(p)
}

func (c *Conn) WriteString(s string) (int, error) {
	return c.writer.WriteString(s)
}

// Close closes the output channel; the connection follows.
func (c *Conn) Close() error {
	return c.writer.Close()
}

// Suspend keeps the connection open after the request was processed, e.g.
// for a websocket. It never blocks, so Framework callbacks may call it. It
// returns false when the connection is already closed.
func (c *Conn) Suspend(timeout time.Duration) bool {
	return c.post(Event{Kind: EventAction, Action: SuspendFor(timeout)})
}

// Resume disarms the suspend timeout. HTTP connections are closed; a
// websocket stays open. Like Suspend, it never blocks.
func (c *Conn) Resume() bool {
	return c.post(Event{Kind: EventAction, Action: Action{Type: Resume}})
}

// dispatch queues ev. It returns false once the connection is done.
func (c *Conn) dispatch(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// post queues ev without blocking. It returns false once the connection is done.
func (c *Conn) post(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	c.pendingLocker.Lock()
	c.pending = append(c.pending, ev)
	c.pendingLocker.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

// drainPending handles the posted events in order until the connection closes.
func (c *Conn) drainPending() {
	c.pendingLocker.Lock()
	evs := c.pending
	c.pending = nil
	c.pendingLocker.Unlock()

	for _, ev := range evs {
		if c.State() == StateClosed {
			return
		}
		c.step(ev)
	}
}

func (c *Conn) run() {
	defer func() {
		c.co.conns.Remove(c.id)
		close(c.done)
	}()

	writerDone := c.writer.Done()
	for c.State() != StateClosed {
		select {
		case ev := <-c.events:
			c.step(ev)
		case <-c.wake:
			c.drainPending()
		case <-writerDone:
			writerDone = nil
			c.step(Event{Kind: EventWriterClosed})
		}
	}
}

// step is the connection state machine. It runs on the event loop only.
func (c *Conn) step(ev Event) {
	logger.Debug("event", "id", c.id, "event", ev.Kind.String(), "state", c.State().String())

	switch ev.Kind {
	case EventProcessed:
		keptOpen := c.processed(ev.Action, ev.Err)
		if ev.result != nil {
			ev.result <- keptOpen
		}

	case EventOpen:
		c.opened(ev.Action, ev.Err)

	case EventAction:
		c.apply(ev.Action)

	case EventData:
		if c.State() == StateClosed {
			return
		}
		if err := c.co.protect(func() error {
			c.co.framework.InvokeProtocol(c, ev.Data)
			return nil
		}); err != nil {
			logger.Error(err, "invoke protocol", "id", c.id)
		}

	case EventError:
		logger.Error(ev.Err, "connection error", "id", c.id, "transport", c.Transport().String())
		c.terminate(CloseAbnormal)

	case EventClose:
		c.terminate(ev.Code)

	case EventShutdown:
		c.terminate(CloseNormal)

	case EventTimeout:
		c.timedOut(ev.watcher)

	case EventWriterClosed:
		c.disarm()
		c.resumeOnBroadcast = false
		c.setState(StateClosed)
	}
}

// processed applies the framework's answer to an HTTP request and reports
// whether the connection stays open.
func (c *Conn) processed(a Action, err error) (keptOpen bool) {
	if c.State() == StateClosed {
		return false
	}
	if c.writer.IsClosed() {
		// the framework already completed the response
		c.closeWriter()
		return false
	}

	resumeOnBroadcast := c.resumeOnBroadcast
	keptOpen = true
	defer func() {
		if !resumeOnBroadcast && !keptOpen {
			c.closeWriter()
		}
	}()

	if err != nil {
		logger.Error(err, "unable to process request", "id", c.id)
		keptOpen = false
		if !resumeOnBroadcast {
			_ = c.writer.WriteError(output.StatusOf(err), err.Error())
		}
		return keptOpen
	}

	kind := c.Transport()
	switch a.Type {
	case Suspend:
		if kind.ResumeOnBroadcast() {
			resumeOnBroadcast = true
		} else if !kind.KeepsOpen() {
			keptOpen = false
		}
	case Resume:
		resumeOnBroadcast = false
		keptOpen = false
		c.disarm()
	default:
		keptOpen = false
	}

	logger.Debug("processed", "id", c.id, "transport", kind.String(), "action", a.Type.String(),
		"resumeOnBroadcast", resumeOnBroadcast)

	c.resumeOnBroadcast = resumeOnBroadcast
	if keptOpen {
		c.arm(a)
		c.setState(StateSuspended)
	}

	return keptOpen
}

func (c *Conn) opened(a Action, err error) {
	if err != nil {
		logger.Error(err, "unable to open websocket", "id", c.id)
		c.closeWriter()
		return
	}

	c.setState(StateSuspended)
	c.apply(a)
}

// apply handles an action issued after processing.
func (c *Conn) apply(a Action) {
	if c.State() == StateClosed {
		return
	}

	switch a.Type {
	case Suspend:
		c.resumeOnBroadcast = c.Transport().ResumeOnBroadcast()
		c.arm(a)
		c.setState(StateSuspended)
	case Resume:
		c.resumeOnBroadcast = false
		c.disarm()
		if c.Transport() != transport.Websocket {
			c.closeWriter()
		}
	}
}

func (c *Conn) arm(a Action) {
	c.disarm()
	if !a.hasTimeout() {
		return
	}

	c.watcher = c.co.scheduler.Arm(c.id, a.Timeout, c.writer, func(w *scheduler.Watcher) {
		c.post(Event{Kind: EventTimeout, watcher: w})
	})
}

func (c *Conn) disarm() {
	if c.watcher == nil {
		return
	}
	c.co.scheduler.Disarm(c.watcher)
	c.watcher = nil
}

func (c *Conn) timedOut(w *scheduler.Watcher) {
	if w == nil || w != c.watcher || c.State() != StateSuspended {
		logger.Debug("stale suspend timeout dropped", "id", c.id)
		return
	}
	c.watcher = nil

	logger.Info("suspend timeout", "id", c.id, "transport", c.Transport().String(), "timeout", w.Timeout().String())
	if err := c.co.protect(func() error {
		c.co.framework.OnSuspendTimeout(c)
		return nil
	}); err != nil {
		logger.Error(err, "suspend timeout handler", "id", c.id)
	}
	c.closeWriter()
}

// terminate handles peer close, errors and shutdown: the framework is told
// first, then the output channel is closed.
func (c *Conn) terminate(code CloseCode) {
	if c.State() == StateClosed {
		return
	}
	c.disarm()
	c.resumeOnBroadcast = false

	if err := c.co.protect(func() error {
		c.co.framework.NotifyClose(c, code)
		return nil
	}); err != nil {
		logger.Error(err, "notify close", "id", c.id)
	}
	c.closeWriter()
}

func (c *Conn) closeWriter() {
	c.disarm()
	if err := c.writer.Close(); err != nil {
		logger.Debug("close output", "id", c.id, "err", err.Error())
	}
	c.setState(StateClosed)
}

func (c *Conn) setState(s State) {
	c.state.Store(int32(s))
}
