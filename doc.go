/*
Package comet bridges a comet framework's request lifecycle to net/http.

A Coordinator accepts plain HTTP, long-polling, JSONP, SSE/streaming and
websocket connections, asks the wrapped Framework what to do with each
request, and then keeps the connection open (suspend) or closes it
according to the transport in use. Suspended connections are watched by a
shared scheduler and timed out when nothing was written to them for longer
than the suspend timeout.

Every connection owns one output channel and one event queue. Peer close,
errors, incoming frames, timeouts and framework actions are all delivered
through that queue and handled by a single goroutine, so connection state is
never mutated concurrently.

	co := comet.NewCoordinator(myFramework, nil)
	defer co.Close()

	http.Handle("/chat", co)
	log.Fatal(http.ListenAndServe(":8080", nil))
*/
package comet
