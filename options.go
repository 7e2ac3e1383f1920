package comet

import (
	"net/http"

	"github.com/googollee/go-comet/scheduler"
)

// DefaultFrameworkVersion is reported to websocket clients that dropped
// their handshake parameters.
const DefaultFrameworkVersion = "1.1"

// Options is options to create a Coordinator. A nil *Options uses defaults.
type Options struct {
	// Scheduler is shared with other coordinators when set. The Coordinator
	// does not close a scheduler it did not create.
	Scheduler *scheduler.Scheduler
	// Workers sizes the scheduler created when Scheduler is nil.
	Workers int

	EventQueueSize int
	// MaxBodyBytes caps request bodies, 1MiB by default. Negative disables the cap.
	MaxBodyBytes int64

	ReadBufferSize  int
	WriteBufferSize int
	// CheckOrigin guards websocket upgrades and CORS headers of HTTP
	// responses.
	CheckOrigin func(r *http.Request) bool

	IDGenerator      IDGenerator
	FrameworkVersion string
}

func (o *Options) getScheduler() (*scheduler.Scheduler, bool) {
	if o != nil && o.Scheduler != nil {
		return o.Scheduler, false
	}

	workers := 0
	if o != nil {
		workers = o.Workers
	}
	return scheduler.New(workers), true
}

func (o *Options) getEventQueueSize() int {
	if o != nil && o.EventQueueSize > 0 {
		return o.EventQueueSize
	}
	return 64
}

func (o *Options) getMaxBodyBytes() int64 {
	if o != nil && o.MaxBodyBytes != 0 {
		return o.MaxBodyBytes
	}
	return 1 << 20
}

func (o *Options) getReadBufferSize() int {
	if o != nil && o.ReadBufferSize > 0 {
		return o.ReadBufferSize
	}
	return 4096
}

func (o *Options) getWriteBufferSize() int {
	if o != nil && o.WriteBufferSize > 0 {
		return o.WriteBufferSize
	}
	return 4096
}

func (o *Options) getCheckOrigin() func(r *http.Request) bool {
	if o != nil && o.CheckOrigin != nil {
		return o.CheckOrigin
	}
	return nil
}

func (o *Options) getIDGenerator() IDGenerator {
	if o != nil && o.IDGenerator != nil {
		return o.IDGenerator
	}
	return UUIDGenerator{}
}

func (o *Options) getFrameworkVersion() string {
	if o != nil && o.FrameworkVersion != "" {
		return o.FrameworkVersion
	}
	return DefaultFrameworkVersion
}
