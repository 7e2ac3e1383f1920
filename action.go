package comet

import "time"

// NoTimeout suspends a connection without arming a suspend timeout.
const NoTimeout time.Duration = -1

// ActionType tells the Coordinator what to do with a processed request.
type ActionType int

const (
	Continue ActionType = iota
	Suspend
	Resume
)

func (t ActionType) String() string {
	switch t {
	case Suspend:
		return "suspend"
	case Resume:
		return "resume"
	}

	return "continue"
}

// Action is the framework's answer for one request.
type Action struct {
	Type ActionType
	// Timeout applies to Suspend. Zero or negative means no timeout.
	Timeout time.Duration
}

// SuspendFor returns a Suspend action with the given timeout.
func SuspendFor(timeout time.Duration) Action {
	return Action{Type: Suspend, Timeout: timeout}
}

func (a Action) hasTimeout() bool {
	return a.Type == Suspend && a.Timeout > 0
}
