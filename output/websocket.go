package output

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/googollee/go-comet/logger"
	"github.com/googollee/go-comet/transport"
)

const closeGracePeriod = time.Second

// FrameConn is the part of *websocket.Conn the writer uses.
type FrameConn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// WebsocketWriter writes text frames to a websocket.
type WebsocketWriter struct {
	base

	conn FrameConn
}

func NewWebsocketWriter(conn FrameConn, opts ...OptionFunc) *WebsocketWriter {
	o := newOptions(opts)

	ret := &WebsocketWriter{
		conn: conn,
	}
	ret.init(transport.Websocket, o)

	return ret
}

func (w *WebsocketWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *WebsocketWriter) Write(p []byte) (int, error) {
	w.pending.Add(1)
	defer w.pending.Add(-1)

	w.locker.Lock()
	defer w.locker.Unlock()

	if w.closed.Load() {
		return 0, ErrClosed
	}

	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, fmt.Errorf("write text frame: %w", err)
	}
	w.touch()

	return len(p), nil
}

// WriteError sends msg as a text frame; the socket stays open.
func (w *WebsocketWriter) WriteError(code int, msg string) error {
	logger.Error(fmt.Errorf("websocket %d", code), msg)

	w.locker.Lock()
	defer w.locker.Unlock()

	if w.closed.Load() {
		return ErrClosed
	}

	if err := w.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return fmt.Errorf("write error frame: %w", err)
	}

	return nil
}

func (w *WebsocketWriter) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}

	w.locker.Lock()
	defer w.locker.Unlock()
	defer close(w.done)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod)); err != nil {
		logger.Debug("close frame not sent", "err", err.Error())
	}

	return w.conn.Close()
}
