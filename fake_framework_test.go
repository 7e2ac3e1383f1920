package comet

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/googollee/go-comet/output"
	"github.com/googollee/go-comet/transport"
)

type closeNotice struct {
	code         CloseCode
	writerClosed bool
}

// fakeFramework records every callback; nil funcs fall back to Continue.
type fakeFramework struct {
	processRequest func(c *Conn, req *Request) (Action, error)
	openWebSocket  func(c *Conn, req *Request) (Action, error)
	invokeProtocol func(c *Conn, frame string)

	locker   sync.Mutex
	closes   []closeNotice
	frames   []string
	timeouts int32
}

func (f *fakeFramework) ProcessRequest(c *Conn, req *Request) (Action, error) {
	if f.processRequest == nil {
		return Action{}, nil
	}
	return f.processRequest(c, req)
}

func (f *fakeFramework) OpenWebSocket(c *Conn, req *Request) (Action, error) {
	if f.openWebSocket == nil {
		return Action{}, nil
	}
	return f.openWebSocket(c, req)
}

func (f *fakeFramework) InvokeProtocol(c *Conn, frame string) {
	f.locker.Lock()
	f.frames = append(f.frames, frame)
	f.locker.Unlock()

	if f.invokeProtocol != nil {
		f.invokeProtocol(c, frame)
	}
}

func (f *fakeFramework) NotifyClose(c *Conn, code CloseCode) {
	f.locker.Lock()
	defer f.locker.Unlock()

	f.closes = append(f.closes, closeNotice{code: code, writerClosed: c.Writer().IsClosed()})
}

func (f *fakeFramework) OnSuspendTimeout(*Conn) {
	atomic.AddInt32(&f.timeouts, 1)
}

func (f *fakeFramework) closeNotices() []closeNotice {
	f.locker.Lock()
	defer f.locker.Unlock()

	return append([]closeNotice(nil), f.closes...)
}

func (f *fakeFramework) receivedFrames() []string {
	f.locker.Lock()
	defer f.locker.Unlock()

	return append([]string(nil), f.frames...)
}

func (f *fakeFramework) timeoutCount() int32 {
	return atomic.LoadInt32(&f.timeouts)
}

// fakeChannel is an output.Channel counting Close calls.
type fakeChannel struct {
	locker sync.Mutex
	kind   transport.Kind
	writes []string
	errors []int
	closes int

	closed atomic.Bool
	done   chan struct{}
}

var _ output.Channel = (*fakeChannel)(nil)

func newFakeChannel(kind transport.Kind) *fakeChannel {
	return &fakeChannel{kind: kind, done: make(chan struct{})}
}

func (f *fakeChannel) Write(p []byte) (int, error) {
	f.locker.Lock()
	defer f.locker.Unlock()

	if f.closed.Load() {
		return 0, output.ErrClosed
	}
	f.writes = append(f.writes, string(p))
	return len(p), nil
}

func (f *fakeChannel) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

func (f *fakeChannel) WriteError(code int, _ string) error {
	f.locker.Lock()
	defer f.locker.Unlock()

	f.errors = append(f.errors, code)
	return nil
}

func (f *fakeChannel) Close() error {
	f.locker.Lock()
	f.closes++
	f.locker.Unlock()

	if f.closed.CompareAndSwap(false, true) {
		close(f.done)
	}
	return nil
}

func (f *fakeChannel) closeCount() int {
	f.locker.Lock()
	defer f.locker.Unlock()

	return f.closes
}

func (f *fakeChannel) errorCodes() []int {
	f.locker.Lock()
	defer f.locker.Unlock()

	return append([]int(nil), f.errors...)
}

func (f *fakeChannel) IsClosed() bool        { return f.closed.Load() }
func (f *fakeChannel) LastTick() time.Time   { return time.Now() }
func (f *fakeChannel) Pending() int32        { return 0 }
func (f *fakeChannel) Done() <-chan struct{} { return f.done }

func (f *fakeChannel) Transport() transport.Kind {
	f.locker.Lock()
	defer f.locker.Unlock()

	return f.kind
}

func (f *fakeChannel) SetTransport(k transport.Kind) {
	f.locker.Lock()
	defer f.locker.Unlock()

	f.kind = k
}
