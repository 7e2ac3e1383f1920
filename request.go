package comet

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/googollee/go-comet/logger"
	"github.com/googollee/go-comet/output"
	"github.com/googollee/go-comet/transport"
)

// Query parameters and headers of the Atmosphere client protocol.
const (
	HeaderTrackingID = "X-Atmosphere-tracking-id"
	HeaderProtocol   = "X-atmo-protocol"
	HeaderFramework  = "X-Atmosphere-Framework"
)

// AttrTransport is the request attribute a Framework sets to report the
// transport actually in use. It takes precedence over the request header.
const AttrTransport = "comet.transport"

const defaultContentType = "text/plain"

// Request is the normalized view of an inbound request handed to the Framework.
type Request struct {
	Method      string
	Path        string
	RawQuery    string
	RemoteAddr  string
	ContentType string

	// Query maps each parameter to its first value.
	Query map[string]string
	// Header lookups through Get are case-insensitive.
	Header http.Header
	// Body is only read for methods carrying one.
	Body []byte

	attrLocker sync.RWMutex
	attrs      map[string]interface{}
}

// NewRequest normalizes r. Bodies larger than maxBody are rejected with a
// 413 HTTPError; maxBody <= 0 means no limit.
func NewRequest(r *http.Request, maxBody int64) (*Request, error) {
	ret := &Request{
		Method:      r.Method,
		Path:        r.URL.Path,
		RawQuery:    r.URL.RawQuery,
		RemoteAddr:  r.RemoteAddr,
		ContentType: r.Header.Get("Content-Type"),
		Query:       ParseQuery(r.URL.RawQuery),
		Header:      r.Header.Clone(),
		attrs:       make(map[string]interface{}),
	}
	if ret.ContentType == "" {
		ret.ContentType = defaultContentType
	}
	if ret.Header == nil {
		ret.Header = make(http.Header)
	}

	if !hasBody(r.Method) || r.Body == nil {
		return ret, nil
	}

	body := io.Reader(r.Body)
	if maxBody > 0 {
		body = io.LimitReader(r.Body, maxBody+1)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, output.HTTPErr(fmt.Errorf("read body: %w", err), http.StatusBadRequest)
	}
	if maxBody > 0 && int64(len(b)) > maxBody {
		return nil, output.HTTPErr(fmt.Errorf("body larger than %d bytes", maxBody), http.StatusRequestEntityTooLarge)
	}
	ret.Body = b

	return ret, nil
}

// newWebsocketRequest normalizes an upgrade request. Clients that drop the
// query string get the parameters of a fresh websocket handshake.
func newWebsocketRequest(r *http.Request, frameworkVersion string) *Request {
	ret := &Request{
		Method:      http.MethodGet,
		Path:        r.URL.Path,
		RawQuery:    r.URL.RawQuery,
		RemoteAddr:  r.RemoteAddr,
		ContentType: defaultContentType,
		Query:       ParseQuery(r.URL.RawQuery),
		Header:      r.Header.Clone(),
		attrs:       make(map[string]interface{}),
	}
	if ret.Header == nil {
		ret.Header = make(http.Header)
	}

	if len(ret.Query) == 0 {
		ret.Query = map[string]string{
			HeaderProtocol:   "true",
			HeaderFramework:  frameworkVersion,
			HeaderTrackingID: "0",
			transport.Header: transport.Websocket.String(),
		}
	}

	return ret
}

// ParseQuery parses a raw query string keeping the first value of repeated
// keys. Malformed pairs are skipped; keys without '=' get an empty value.
func ParseQuery(raw string) map[string]string {
	ret := make(map[string]string)
	if raw == "" {
		return ret
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		logger.Debug("malformed query string", "query", raw, "err", err.Error())
	}
	for k, v := range values {
		if len(v) > 0 {
			ret[k] = v[0]
		}
	}

	return ret
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}

	return false
}

// Transport returns the transport of the request: the AttrTransport
// attribute, else the transport header, else the transport query parameter.
func (r *Request) Transport() transport.Kind {
	if v, ok := r.Attr(AttrTransport); ok {
		switch t := v.(type) {
		case transport.Kind:
			return t
		case string:
			return transport.Classify(t)
		}
	}

	if h := r.Header.Get(transport.Header); h != "" {
		return transport.Classify(h)
	}

	return transport.Classify(r.Query[transport.Header])
}

// TrackingID returns the client's tracking id, from the header or the query.
func (r *Request) TrackingID() string {
	if h := r.Header.Get(HeaderTrackingID); h != "" {
		return h
	}

	return r.Query[HeaderTrackingID]
}

func (r *Request) Attr(key string) (interface{}, bool) {
	r.attrLocker.RLock()
	defer r.attrLocker.RUnlock()

	v, ok := r.attrs[key]
	return v, ok
}

func (r *Request) SetAttr(key string, value interface{}) {
	r.attrLocker.Lock()
	defer r.attrLocker.Unlock()

	if r.attrs == nil {
		r.attrs = make(map[string]interface{})
	}
	r.attrs[key] = value
}
