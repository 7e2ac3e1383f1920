// Package chat is a minimal comet.Framework: GET subscribes, POST and
// websocket frames publish to every subscriber.
package chat

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/googollee/go-comet"
	"github.com/googollee/go-comet/logger"
	"github.com/googollee/go-comet/transport"
)

const defaultCallback = "jsonpCallback"

type Room struct {
	timeout time.Duration

	locker  sync.RWMutex
	members map[string]*comet.Conn
}

var _ comet.Framework = (*Room)(nil)

// New returns a room suspending HTTP subscribers for timeout. A timeout <= 0
// suspends without timeout.
func New(timeout time.Duration) *Room {
	if timeout <= 0 {
		timeout = comet.NoTimeout
	}

	return &Room{
		timeout: timeout,
		members: make(map[string]*comet.Conn),
	}
}

func (r *Room) ProcessRequest(c *comet.Conn, req *comet.Request) (comet.Action, error) {
	switch req.Method {
	case http.MethodGet:
		if !req.Transport().KeepsOpen() {
			_, err := c.WriteString(strconv.Itoa(r.Members()))
			return comet.Action{}, err
		}
		r.join(c)
		return comet.SuspendFor(r.timeout), nil

	case http.MethodPost:
		n := r.Broadcast(string(req.Body))
		logger.Debug("chat publish", "id", c.ID(), "delivered", n)
		return comet.Action{}, nil
	}

	return comet.Action{}, httpError(http.StatusMethodNotAllowed)
}

func (r *Room) OpenWebSocket(c *comet.Conn, _ *comet.Request) (comet.Action, error) {
	r.join(c)

	return comet.SuspendFor(comet.NoTimeout), nil
}

func (r *Room) InvokeProtocol(c *comet.Conn, frame string) {
	n := r.Broadcast(frame)
	logger.Debug("chat frame", "id", c.ID(), "delivered", n)
}

func (r *Room) NotifyClose(c *comet.Conn, code comet.CloseCode) {
	logger.Info("chat leave", "id", c.ID(), "code", int(code))
	r.leave(c)
}

func (r *Room) OnSuspendTimeout(c *comet.Conn) {
	r.leave(c)
}

// Members returns the number of subscribers.
func (r *Room) Members() int {
	r.locker.RLock()
	defer r.locker.RUnlock()

	return len(r.members)
}

// Broadcast writes msg to every subscriber and returns how many got it.
// Long-polling and jsonp subscribers leave once served.
func (r *Room) Broadcast(msg string) int {
	r.locker.RLock()
	members := make([]*comet.Conn, 0, len(r.members))
	for _, c := range r.members {
		members = append(members, c)
	}
	r.locker.RUnlock()

	delivered := 0
	for _, c := range members {
		kind := c.Transport()
		if _, err := c.WriteString(format(c.Request(), kind, msg)); err != nil {
			logger.Debug("chat drop", "id", c.ID(), "err", err.Error())
			r.leave(c)
			continue
		}
		delivered++

		if kind.CloseOnWrite() {
			r.leave(c)
		}
	}

	return delivered
}

func (r *Room) join(c *comet.Conn) {
	r.locker.Lock()
	defer r.locker.Unlock()

	r.members[c.ID()] = c
}

func (r *Room) leave(c *comet.Conn) {
	r.locker.Lock()
	defer r.locker.Unlock()

	delete(r.members, c.ID())
}

func format(req *comet.Request, kind transport.Kind, msg string) string {
	switch kind {
	case transport.JSONP:
		callback := req.Query["callback"]
		if !validCallback(callback) {
			callback = defaultCallback
		}
		b, _ := json.Marshal(msg)
		return callback + "(" + string(b) + ");"
	case transport.SSE:
		return "data: " + msg + "\n\n"
	}

	return msg
}

// validCallback accepts non-empty names made of letters, digits, '_', '.'
// and '$'.
func validCallback(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '.', r == '$':
		default:
			return false
		}
	}

	return true
}
