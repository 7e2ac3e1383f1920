package transport

import "strings"

// Kind is the wire-level mechanism a connection negotiated.
type Kind int

const (
	Plain Kind = iota
	LongPolling
	JSONP
	Websocket
	SSE
	Streaming
)

// Header is the request header (and query parameter) carrying the transport
// a client asks for.
const Header = "X-Atmosphere-Transport"

var names = map[string]Kind{
	"long-polling": LongPolling,
	"polling":      LongPolling,
	"jsonp":        JSONP,
	"websocket":    Websocket,
	"sse":          SSE,
	"streaming":    Streaming,
}

// Classify maps a transport header value to a Kind. Unknown or empty values
// map to Plain, which closes after the response.
func Classify(value string) Kind {
	if k, ok := names[strings.ToLower(strings.TrimSpace(value))]; ok {
		return k
	}

	return Plain
}

func (k Kind) String() string {
	switch k {
	case LongPolling:
		return "long-polling"
	case JSONP:
		return "jsonp"
	case Websocket:
		return "websocket"
	case SSE:
		return "sse"
	case Streaming:
		return "streaming"
	}

	return "plain"
}

// KeepsOpen reports whether a suspended connection of this kind stays open
// after the current response.
func (k Kind) KeepsOpen() bool {
	return k != Plain
}

// ResumeOnBroadcast reports whether a suspended connection is resumed, and
// closed, by the next broadcast instead of by the current call.
func (k Kind) ResumeOnBroadcast() bool {
	return k == LongPolling || k == JSONP
}

// CloseOnWrite reports whether a non-blank write completes the response.
// One body per long-poll cycle.
func (k Kind) CloseOnWrite() bool {
	return k == LongPolling || k == JSONP
}
