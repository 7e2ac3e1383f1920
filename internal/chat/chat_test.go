package chat

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googollee/go-comet"
	"github.com/googollee/go-comet/transport"
)

func newServer(t *testing.T, room *Room) *httptest.Server {
	t.Helper()

	co := comet.NewCoordinator(room, &comet.Options{IDGenerator: &comet.SequenceGenerator{}})
	srv := httptest.NewServer(co)
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		_ = co.Close()
	})

	return srv
}

func subscribe(t *testing.T, url string) <-chan string {
	t.Helper()

	ret := make(chan string, 1)
	go func() {
		resp, err := http.Get(url)
		if err != nil {
			ret <- "error: " + err.Error()
			return
		}
		defer resp.Body.Close()

		b, _ := io.ReadAll(resp.Body)
		ret <- string(b)
	}()

	return ret
}

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()

	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
	}
	return ""
}

func publish(t *testing.T, url, msg string) {
	t.Helper()

	resp, err := http.Post(url, "text/plain", strings.NewReader(msg))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLongPolling(t *testing.T) {
	room := New(time.Minute)
	srv := newServer(t, room)

	lp := subscribe(t, srv.URL+"/?X-Atmosphere-Transport=long-polling")
	jsonp := subscribe(t, srv.URL+"/?X-Atmosphere-Transport=jsonp&callback=cb")
	require.Eventually(t, func() bool { return room.Members() == 2 }, 2*time.Second, 10*time.Millisecond)

	publish(t, srv.URL+"/", `say "hi"`)

	assert.Equal(t, `say "hi"`, receive(t, lp))
	assert.Equal(t, `cb("say \"hi\"");`, receive(t, jsonp))
	assert.Equal(t, 0, room.Members())
}

func TestTimeout(t *testing.T) {
	room := New(50 * time.Millisecond)
	srv := newServer(t, room)

	lp := subscribe(t, srv.URL+"/?X-Atmosphere-Transport=long-polling")
	assert.Equal(t, "", receive(t, lp))
	assert.Equal(t, 0, room.Members())
}

func TestPlainAndMethods(t *testing.T) {
	srv := newServer(t, New(time.Minute))

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "0", string(b))

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWebsocket(t *testing.T) {
	room := New(time.Minute)
	srv := newServer(t, room)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"

	alice, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer alice.Close()
	bob, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer bob.Close()
	require.Eventually(t, func() bool { return room.Members() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("hello")))
	for _, ws := range []*websocket.Conn{alice, bob} {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	}

	require.NoError(t, bob.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return room.Members() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestFormat(t *testing.T) {
	req := &comet.Request{Query: map[string]string{}}

	assert.Equal(t, "data: x\n\n", format(req, transport.SSE, "x"))
	assert.Equal(t, `jsonpCallback("x");`, format(req, transport.JSONP, "x"))
	assert.Equal(t, "x", format(req, transport.Plain, "x"))

	req.Query["callback"] = "jQuery.cb_1$"
	assert.Equal(t, `jQuery.cb_1$("x");`, format(req, transport.JSONP, "x"))

	for _, bad := range []string{"alert(1);cb", "cb</script>", "a b", "cb\n"} {
		req.Query["callback"] = bad
		assert.Equal(t, `jsonpCallback("x");`, format(req, transport.JSONP, "x"), bad)
	}
}
