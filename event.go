package comet

import "github.com/googollee/go-comet/scheduler"

// CloseCode is passed to Framework.NotifyClose.
type CloseCode int

const (
	// CloseNormal is a peer close or a shutdown.
	CloseNormal CloseCode = 1005
	// CloseAbnormal is a close caused by an error.
	CloseAbnormal CloseCode = 1006
)

// EventKind enumerates everything that can happen to a connection.
type EventKind int

const (
	EventProcessed EventKind = iota
	EventAction
	EventOpen
	EventData
	EventError
	EventClose
	EventTimeout
	EventWriterClosed
	EventShutdown
)

var eventNames = [...]string{
	EventProcessed:    "processed",
	EventAction:       "action",
	EventOpen:         "open",
	EventData:         "data",
	EventError:        "error",
	EventClose:        "close",
	EventTimeout:      "timeout",
	EventWriterClosed: "writer-closed",
	EventShutdown:     "shutdown",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

// Event is one entry of a connection's event queue.
type Event struct {
	Kind   EventKind
	Action Action
	Err    error
	Data   string
	Code   CloseCode

	watcher *scheduler.Watcher
	result  chan<- bool
}

// State is the lifecycle state of a connection.
type State int32

const (
	StateProcessing State = iota
	StateSuspended
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateSuspended:
		return "suspended"
	case StateClosed:
		return "closed"
	}

	return "processing"
}
