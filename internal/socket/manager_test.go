package socket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"sudooom.im.client/internal/config"
	"sudooom.im.client/internal/proto"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// echoServer 收到任何事件帧原样回发
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, raw); err != nil {
				return
			}
		}
	}))
}

func testConfig(url string) config.SocketConfig {
	return config.SocketConfig{
		URL:              "ws" + strings.TrimPrefix(url, "http"),
		HandshakeTimeout: 2 * time.Second,
		WriteTimeout:     2 * time.Second,
		PingInterval:     time.Minute,
		ReconnectWait:    50 * time.Millisecond,
		MaxReconnectWait: 100 * time.Millisecond,
		MaxReconnects:    3,
	}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestManager_EmitRoundTrip(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	m := NewManager(testConfig(srv.URL), nil, newTestLogger())
	defer m.Close()

	received := make(chan json.RawMessage, 1)
	m.OnEvent(proto.EventUserTyping, func(data json.RawMessage) {
		received <- data
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Connect(ctx)

	payload := proto.TypingPayload{ConversationID: "c1", UserID: "u1", IsTyping: true}
	if err := m.Emit(proto.EventUserTyping, payload); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	select {
	case data := <-received:
		var got proto.TypingPayload
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Failed to decode payload: %v", err)
		}
		if got.ConversationID != "c1" || !got.IsTyping {
			t.Errorf("Unexpected payload: %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for echoed event")
	}
}

func TestManager_DisposerStopsDelivery(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	m := NewManager(testConfig(srv.URL), nil, newTestLogger())
	defer m.Close()

	var mu sync.Mutex
	count := 0
	first := make(chan struct{}, 1)
	dispose := m.OnEvent(proto.EventUserTyping, func(json.RawMessage) {
		mu.Lock()
		count++
		mu.Unlock()
		select {
		case first <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Connect(ctx)

	if err := m.Emit(proto.EventUserTyping, proto.TypingPayload{ConversationID: "c1"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	select {
	case <-first:
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for first delivery")
	}

	dispose()

	if err := m.Emit(proto.EventUserTyping, proto.TypingPayload{ConversationID: "c2"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("Expected exactly 1 delivery after dispose, got %d", count)
	}
}

func TestManager_StateTransitions(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	m := NewManager(testConfig(srv.URL), nil, newTestLogger())

	var mu sync.Mutex
	var states []State
	connected := make(chan struct{}, 1)
	m.OnStateChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
		if s == StateConnected {
			select {
			case connected <- struct{}{}:
			default:
			}
		}
	})

	if m.State() != StateDisconnected {
		t.Errorf("Expected initial state disconnected, got %v", m.State())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Connect(ctx) }()

	select {
	case <-connected:
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for connected state")
	}

	m.Close()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for Connect to return")
	}

	if m.State() != StateDisconnected {
		t.Errorf("Expected disconnected after Close, got %v", m.State())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) < 2 || states[0] != StateConnecting || states[1] != StateConnected {
		t.Errorf("Expected connecting→connected prefix, got %v", states)
	}
}

func TestManager_EmitAfterCloseFails(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	m := NewManager(testConfig(srv.URL), nil, newTestLogger())
	m.Close()

	if err := m.Emit(proto.EventUserTyping, proto.TypingPayload{}); err == nil {
		t.Error("Expected error emitting on closed channel")
	}
}

func TestManager_GivesUpAfterMaxReconnects(t *testing.T) {
	// 不存在的地址：重连次数用尽后返回错误
	cfg := testConfig("http://127.0.0.1:1")
	m := NewManager(cfg, nil, newTestLogger())
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Connect(ctx); err == nil {
		t.Error("Expected error after exhausting reconnect attempts")
	}
	if m.State() != StateDisconnected {
		t.Errorf("Expected disconnected, got %v", m.State())
	}
}
