// Package output implements the single outbound channel of a connection.
//
// A connection owns exactly one Channel. Writes are serialized, the first
// write flushes the response head, and Close runs the sink's terminal
// operation at most once no matter how many goroutines race on it.
package output

import (
	"bytes"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/googollee/go-comet/transport"
	"github.com/googollee/go-comet/utils"
)

// ErrClosed is returned when writing to a closed channel.
const ErrClosed = utils.ConstError("output channel closed")

// Channel is the capability shared by the HTTP and websocket writers.
type Channel interface {
	Write(p []byte) (int, error)
	WriteString(s string) (int, error)
	WriteError(code int, msg string) error
	Close() error
	IsClosed() bool
	// LastTick returns the time of the last successful write, or the
	// creation time of the channel when nothing has been written yet.
	LastTick() time.Time
	Pending() int32
	Done() <-chan struct{}
	Transport() transport.Kind
	SetTransport(k transport.Kind)
}

type options struct {
	checkOrigin func(r *http.Request) bool
	now         func() time.Time
	resolve     func() transport.Kind
}

// OptionFunc configures a writer.
type OptionFunc func(o *options)

// WithClock replaces time.Now, used by LastTick.
func WithClock(now func() time.Time) OptionFunc {
	return func(o *options) {
		o.now = now
	}
}

// WithCheckOrigin decides whether CORS headers are added to HTTP responses.
func WithCheckOrigin(f func(r *http.Request) bool) OptionFunc {
	return func(o *options) {
		o.checkOrigin = f
	}
}

// WithTransportFunc resolves the transport on every write instead of fixing
// it at construction, so a transport chosen while the request is processed
// still drives close-on-write. SetTransport pins the kind again.
func WithTransportFunc(f func() transport.Kind) OptionFunc {
	return func(o *options) {
		o.resolve = f
	}
}

func newOptions(opts []OptionFunc) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// base holds the state both writer variants guard the same way.
type base struct {
	locker  sync.Mutex
	kind    transport.Kind
	resolve func() transport.Kind

	pending   atomic.Int32
	closed    atomic.Bool
	lastWrite atomic.Int64
	done      chan struct{}

	now func() time.Time
}

func (b *base) init(kind transport.Kind, o options) {
	b.kind = kind
	b.resolve = o.resolve
	b.done = make(chan struct{})
	b.now = o.now
	b.lastWrite.Store(b.now().UnixNano())
}

func (b *base) IsClosed() bool {
	return b.closed.Load()
}

func (b *base) LastTick() time.Time {
	return time.Unix(0, b.lastWrite.Load())
}

func (b *base) Pending() int32 {
	return b.pending.Load()
}

func (b *base) Done() <-chan struct{} {
	return b.done
}

func (b *base) Transport() transport.Kind {
	b.locker.Lock()
	defer b.locker.Unlock()

	return b.kindLocked()
}

func (b *base) SetTransport(k transport.Kind) {
	b.locker.Lock()
	defer b.locker.Unlock()

	b.kind = k
	b.resolve = nil
}

func (b *base) kindLocked() transport.Kind {
	if b.resolve != nil {
		return b.resolve()
	}

	return b.kind
}

// touch records a successful write. The stored time never goes backwards.
func (b *base) touch() {
	now := b.now().UnixNano()
	for {
		last := b.lastWrite.Load()
		if now <= last {
			now = last + 1
		}
		if b.lastWrite.CompareAndSwap(last, now) {
			return
		}
	}
}

// completesResponse reports whether p finishes a long-poll cycle. Blank
// payloads are keep-alive padding and leave the response open.
func (b *base) completesResponse(p []byte) bool {
	return b.kindLocked().CloseOnWrite() && len(bytes.TrimSpace(p)) > 0
}
