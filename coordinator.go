package comet

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/googollee/go-comet/logger"
	"github.com/googollee/go-comet/output"
	"github.com/googollee/go-comet/scheduler"
	"github.com/googollee/go-comet/utils"
)

// ErrCoordinatorClosed is answered to requests arriving after Close.
const ErrCoordinatorClosed = utils.ConstError("coordinator closed")

// Coordinator drives connections between net/http and a Framework.
type Coordinator struct {
	framework Framework

	scheduler      *scheduler.Scheduler
	ownScheduler   bool
	upgrader       websocket.Upgrader
	checkOrigin    func(r *http.Request) bool
	idGenerator    IDGenerator
	eventQueueSize int
	maxBodyBytes   int64
	version        string

	conns     *manager
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewCoordinator returns a coordinator for fw.
func NewCoordinator(fw Framework, opts *Options) *Coordinator {
	sched, own := opts.getScheduler()
	checkOrigin := opts.getCheckOrigin()

	return &Coordinator{
		framework:    fw,
		scheduler:    sched,
		ownScheduler: own,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  opts.getReadBufferSize(),
			WriteBufferSize: opts.getWriteBufferSize(),
			CheckOrigin:     checkOrigin,
		},
		checkOrigin:    checkOrigin,
		idGenerator:    opts.getIDGenerator(),
		eventQueueSize: opts.getEventQueueSize(),
		maxBodyBytes:   opts.getMaxBodyBytes(),
		version:        opts.getFrameworkVersion(),
		conns:          newManager(),
	}
}

// Count returns the number of open connections.
func (co *Coordinator) Count() int {
	return co.conns.Count()
}

// Get returns the open connection with the given id.
func (co *Coordinator) Get(id string) (*Conn, bool) {
	return co.conns.Get(id)
}

// Close closes every connection, telling the framework with CloseNormal,
// and stops the scheduler when the coordinator created it. Only the first
// call reports the scheduler's error.
func (co *Coordinator) Close() error {
	var err error
	co.closeOnce.Do(func() {
		co.closed.Store(true)

		conns := co.conns.All()
		for _, c := range conns {
			c.dispatch(Event{Kind: EventShutdown})
		}
		for _, c := range conns {
			<-c.Done()
		}

		if co.ownScheduler {
			if e := co.scheduler.Close(); e != nil {
				err = fmt.Errorf("close scheduler: %w", e)
			}
		}
	})

	return err
}

func (co *Coordinator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if co.closed.Load() {
		http.Error(w, ErrCoordinatorClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	if websocket.IsWebSocketUpgrade(r) {
		co.serveWebsocket(w, r)
		return
	}

	co.serveHTTP(w, r)
}

func (co *Coordinator) serveHTTP(w http.ResponseWriter, r *http.Request) {
	logger.Debug("http received", "method", r.Method, "path", r.URL.Path)

	req, err := NewRequest(r, co.maxBodyBytes)
	if err != nil {
		http.Error(w, err.Error(), output.StatusOf(err))
		return
	}

	opts := []output.OptionFunc{
		output.WithCheckOrigin(co.checkOrigin),
		output.WithTransportFunc(req.Transport),
	}
	writer := output.NewHTTPWriter(w, r, req.Transport(), opts...)

	if r.Method == http.MethodOptions {
		writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+HeaderTrackingID+", "+HeaderProtocol)
		_ = writer.Close()
		return
	}

	c := co.newConn(req, writer)
	keptOpen := co.Route(c)
	logger.Debug("routed", "id", c.ID(), "transport", c.Transport().String(), "keptOpen", keptOpen)

	select {
	case <-c.Done():
	case <-r.Context().Done():
		c.dispatch(Event{Kind: EventClose, Code: CloseNormal})
		<-c.Done()
	}
}

// Route runs the framework for the request of c and reports whether the
// connection is kept open.
func (co *Coordinator) Route(c *Conn) bool {
	var action Action
	err := co.protect(func() (err error) {
		action, err = co.framework.ProcessRequest(c, c.req)
		return err
	})

	result := make(chan bool, 1)
	if !c.dispatch(Event{Kind: EventProcessed, Action: action, Err: err, result: result}) {
		return false
	}

	select {
	case keptOpen := <-result:
		return keptOpen
	case <-c.Done():
		return false
	}
}

func (co *Coordinator) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	logger.Debug("websocket received", "path", r.URL.Path)

	ws, err := co.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already answered the request
		logger.Error(err, "websocket upgrade", "path", r.URL.Path)
		return
	}

	req := newWebsocketRequest(r, co.version)
	c := co.newConn(req, output.NewWebsocketWriter(ws))

	var action Action
	err = co.protect(func() (err error) {
		action, err = co.framework.OpenWebSocket(c, req)
		return err
	})
	if !c.dispatch(Event{Kind: EventOpen, Action: action, Err: err}) {
		return
	}

	co.readFrames(c, ws)
	<-c.Done()
}

func (co *Coordinator) readFrames(c *Conn, ws *websocket.Conn) {
	for {
		typ, data, err := ws.ReadMessage()
		if err != nil {
			if c.writer.IsClosed() || websocket.IsCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.dispatch(Event{Kind: EventClose, Code: CloseNormal})
			} else {
				c.dispatch(Event{Kind: EventError, Err: err})
			}
			return
		}

		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		if !c.dispatch(Event{Kind: EventData, Data: string(data)}) {
			return
		}
	}
}

func (co *Coordinator) makeConn(req *Request, writer output.Channel) *Conn {
	return &Conn{
		id:     co.idGenerator.NewID(),
		req:    req,
		writer: writer,
		co:     co,
		events: make(chan Event, co.eventQueueSize),
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
	}
}

func (co *Coordinator) newConn(req *Request, writer output.Channel) *Conn {
	c := co.makeConn(req, writer)
	co.conns.Add(c)
	go c.run()

	return c
}

// protect runs a framework callback and turns a panic into an error.
func (co *Coordinator) protect(f func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok {
			err = e
			return
		}
		err = fmt.Errorf("framework panic: %v", r)
	}()

	return f()
}
