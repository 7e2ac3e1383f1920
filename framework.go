package comet

// Framework is the comet framework driven by a Coordinator. Calls for one
// connection never overlap, except ProcessRequest which runs on the HTTP
// handler goroutine before the connection's events are handled.
type Framework interface {
	// ProcessRequest handles an HTTP request. The response is written
	// through c, now or later for suspended connections. The request may
	// carry the AttrTransport attribute on return.
	ProcessRequest(c *Conn, req *Request) (Action, error)
	// OpenWebSocket is called once a websocket upgrade completed.
	OpenWebSocket(c *Conn, req *Request) (Action, error)
	// InvokeProtocol handles one text frame received on a websocket.
	InvokeProtocol(c *Conn, frame string)
	// NotifyClose reports a peer close (CloseNormal) or an error close
	// (CloseAbnormal) of an open connection.
	NotifyClose(c *Conn, code CloseCode)
	// OnSuspendTimeout is called when a suspended connection did not
	// write for longer than its suspend timeout. The connection is closed
	// after it returns.
	OnSuspendTimeout(c *Conn)
}
