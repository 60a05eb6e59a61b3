package wavechan

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatServer is a minimal push endpoint speaking the channel's handshake. It
// accepts token "good" and echoes application frames back.
type chatServer struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []string
	accepted int
}

func newChatServer(t *testing.T) (*chatServer, *httptest.Server) {
	s := &chatServer{t: t}
	srv := httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *chatServer) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Client") != "wavechan-test" {
		http.Error(w, "missing client header", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.accepted++
	s.mu.Unlock()

	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.received = append(s.received, string(data))
		s.mu.Unlock()

		var frame struct {
			Type  string `json:"type"`
			Token string `json:"token"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		var reply string
		switch frame.Type {
		case "auth":
			if frame.Token == "good" {
				reply = `{"type":"auth_success"}`
			} else {
				reply = `{"type":"auth_error"}`
			}
		case "ping":
			reply = `{"type":"pong"}`
		default:
			reply = `{"type":"echo","of":` + string(data) + `}`
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
			return
		}
	}
}

func (s *chatServer) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

func (s *chatServer) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

// KickAll closes every server side socket without a close frame.
func (s *chatServer) KickAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.UnderlyingConn().Close()
	}
	s.conns = nil
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testHeader() http.Header {
	return http.Header{"X-Client": []string{"wavechan-test"}}
}

func TestWebsocketChannel_EndToEnd(t *testing.T) {
	server, srv := newChatServer(t)

	var logs bytes.Buffer
	var logsMu sync.Mutex
	ch := New(wsURL(srv),
		WithHeader(testHeader()),
		WithRetryDelay(20*time.Millisecond),
		WithHeartbeat(30*time.Millisecond, 0),
		WithLogger(NewWriterLogger(&lockedWriter{w: &logs, mu: &logsMu})),
	)
	t.Cleanup(ch.Close)

	events := &recorder[Event]{}
	ch.Open(context.Background(), "good", events.add)

	require.Eventually(t, ch.Connected, waitFor, tick)

	ch.Send(map[string]any{"type": "blip.submit", "text": "hi"})

	require.Eventually(t, func() bool { return len(events.get()) >= 1 }, waitFor, tick)
	got := events.get()[0]
	assert.Equal(t, "echo", got.Type)

	var echo struct {
		Of struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"of"`
	}
	require.NoError(t, got.Decode(&echo))
	assert.Equal(t, "blip.submit", echo.Of.Type)
	assert.Equal(t, "hi", echo.Of.Text)

	// heartbeats flow and their replies never reach the subscriber
	require.Eventually(t, func() bool {
		for _, r := range server.Received() {
			if r == `{"type":"ping"}` {
				return true
			}
		}
		return false
	}, waitFor, tick)
	for _, e := range events.get() {
		assert.NotEqual(t, "pong", e.Type)
	}

	server.KickAll()

	require.Eventually(t, func() bool { return server.Accepted() >= 2 && ch.Connected() }, waitFor, tick)

	ch.Close()
	accepted := server.Accepted()
	assert.Never(t, func() bool { return server.Accepted() > accepted }, 100*time.Millisecond, tick)

	logsMu.Lock()
	defer logsMu.Unlock()
	assert.Contains(t, logs.String(), "authenticated")
	assert.Contains(t, logs.String(), "connection lost")
}

func TestWebsocketChannel_RejectedTokenKeepsRetrying(t *testing.T) {
	server, srv := newChatServer(t)

	ch := New(wsURL(srv),
		WithHeader(testHeader()),
		WithRetryDelay(10*time.Millisecond),
	)
	t.Cleanup(ch.Close)

	ch.Open(context.Background(), "bad", nil)

	require.Eventually(t, func() bool { return server.Accepted() >= 3 }, waitFor, tick)
	assert.False(t, ch.Connected())

	ch.SetToken("good")
	require.Eventually(t, ch.Connected, waitFor, tick)
}

func TestWsConnection_DialErrors(t *testing.T) {
	_, srv := newChatServer(t)

	tests := []struct {
		name   string
		url    string
		header http.Header
		want   error
	}{
		{"forbidden", wsURL(srv), nil, ErrUnauthorized},
		{"unreachable", "ws://127.0.0.1:1/socket", nil, ErrCannotConnect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewOpenConnectionParamsRepo(NopLogger(), StaticURL(tt.url, tt.header))
			conn := NewWebsocketConnection(nil, repo, NopLogger(), make(chan Message, 1), ErrorAdapters{})

			err := conn.Open(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			var dialErr *ErrDial
			assert.True(t, errors.As(err, &dialErr))
		})
	}
}

func TestWsConnection_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	repo := NewOpenConnectionParamsRepo(NopLogger(), StaticURL(wsURL(srv), nil))
	conn := NewWebsocketConnection(nil, repo, NopLogger(), make(chan Message, 1), ErrorAdapters{})

	err := conn.Open(context.Background())
	assert.True(t, errors.Is(err, ErrRateLimit), "got %v", err)
}

func TestWsConnection_CloseReportsTermination(t *testing.T) {
	_, srv := newChatServer(t)

	recv := make(chan Message, 8)
	repo := NewOpenConnectionParamsRepo(NopLogger(), StaticURL(wsURL(srv), testHeader()))
	conn := NewWebsocketConnection(nil, repo, NopLogger(), recv, ErrorAdapters{})

	require.NoError(t, conn.Open(context.Background()))
	require.NoError(t, conn.Write(NewDataMessage([]byte(`{"type":"auth","token":"good"}`))))

	select {
	case m := <-recv:
		assert.True(t, m.Type().IsData())
		assert.JSONEq(t, `{"type":"auth_success"}`, string(m.Data()))
	case <-time.After(waitFor):
		t.Fatal("no reply received")
	}

	conn.Close()

	select {
	case <-conn.CloseChan():
	case <-time.After(waitFor):
		t.Fatal("close chan not closed")
	}
	assert.ErrorIs(t, conn.CloseErr(), ErrTerminated)
	assert.ErrorIs(t, conn.Write(NewDataMessage([]byte(`{}`))), ErrConnectionClosed)
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
