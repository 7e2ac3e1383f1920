package output

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/googollee/go-comet/logger"
	"github.com/googollee/go-comet/transport"
)

// HTTPWriter writes a chunked HTTP response body. The response head is sent
// with the first write.
type HTTPWriter struct {
	base

	w       http.ResponseWriter
	flusher http.Flusher

	status        int
	contentType   string
	headerWritten bool
}

// NewHTTPWriter wraps w. r is only used to prepare CORS headers.
func NewHTTPWriter(w http.ResponseWriter, r *http.Request, kind transport.Kind, opts ...OptionFunc) *HTTPWriter {
	o := newOptions(opts)

	ret := &HTTPWriter{
		w:      w,
		status: http.StatusOK,
	}
	ret.init(kind, o)
	ret.flusher, _ = w.(http.Flusher)
	ret.setHeaders(r, kind, o.checkOrigin)

	return ret
}

func (w *HTTPWriter) setHeaders(r *http.Request, kind transport.Kind, checkOrigin func(*http.Request) bool) {
	header := w.w.Header()
	header.Set("Cache-Control", "no-cache")

	if strings.Contains(r.UserAgent(), ";MSIE") || strings.Contains(r.UserAgent(), "Trident/") {
		header.Set("X-XSS-Protection", "0")
	}

	if checkOrigin == nil || !checkOrigin(r) || kind == transport.JSONP {
		return
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		header.Set("Access-Control-Allow-Origin", "*")
	} else {
		header.Set("Access-Control-Allow-Origin", origin)
		header.Set("Access-Control-Allow-Credentials", "true")
	}
}

// Header returns the response headers. Changes after the first write are ignored.
func (w *HTTPWriter) Header() http.Header {
	return w.w.Header()
}

// SetStatus sets the status code sent with the response head.
func (w *HTTPWriter) SetStatus(code int) {
	w.locker.Lock()
	defer w.locker.Unlock()

	w.status = code
}

func (w *HTTPWriter) SetContentType(ct string) {
	w.locker.Lock()
	defer w.locker.Unlock()

	w.contentType = ct
}

func (w *HTTPWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *HTTPWriter) Write(p []byte) (int, error) {
	w.pending.Add(1)
	defer w.pending.Add(-1)

	w.locker.Lock()
	defer w.locker.Unlock()

	if w.closed.Load() {
		return 0, ErrClosed
	}

	w.writeHeader()

	n, err := w.w.Write(p)
	if err != nil {
		return n, fmt.Errorf("write http body: %w", err)
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	w.touch()

	if w.completesResponse(p) {
		w.closeLocked()
	}

	return n, nil
}

// WriteError answers with code and msg when the head is not sent yet,
// otherwise it appends msg to the body.
func (w *HTTPWriter) WriteError(code int, msg string) error {
	w.locker.Lock()
	defer w.locker.Unlock()

	logger.Error(fmt.Errorf("http %d", code), msg, "transport", w.kindLocked().String())

	if w.closed.Load() {
		return ErrClosed
	}

	if !w.headerWritten {
		w.status = code
		w.contentType = "text/plain; charset=UTF-8"
	}
	w.writeHeader()

	if _, err := w.w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write http error: %w", err)
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}

	return nil
}

func (w *HTTPWriter) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}

	w.locker.Lock()
	defer w.locker.Unlock()

	w.end()
	return nil
}

// closeLocked closes from inside Write, which already holds the lock.
func (w *HTTPWriter) closeLocked() {
	if w.closed.CompareAndSwap(false, true) {
		w.end()
	}
}

func (w *HTTPWriter) end() {
	w.writeHeader()
	if w.flusher != nil {
		w.flusher.Flush()
	}
	close(w.done)
}

func (w *HTTPWriter) writeHeader() {
	if w.headerWritten {
		return
	}
	w.headerWritten = true

	header := w.w.Header()
	switch {
	case w.contentType != "":
		header.Set("Content-Type", w.contentType)
	case header.Get("Content-Type") != "":
	default:
		header.Set("Content-Type", defaultContentType(w.kindLocked()))
	}

	w.w.WriteHeader(w.status)
}

func defaultContentType(kind transport.Kind) string {
	switch kind {
	case transport.SSE:
		return "text/event-stream"
	case transport.JSONP:
		return "text/javascript; charset=UTF-8"
	}

	return "text/plain"
}
