package connection

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       100,
	}
}

func TestClient_Connect(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	client := NewClient(testClientConfig(), nil)

	if err := client.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !client.IsConnected() {
		t.Error("expected IsConnected to return true")
	}

	if err := client.Close(1000); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if client.IsConnected() {
		t.Error("expected IsConnected to return false after Close")
	}
}

func TestClient_Send(t *testing.T) {
	received := make(chan []byte, 1)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- msg
		}
	})
	defer server.Close()

	client := NewClient(testClientConfig(), nil)
	if err := client.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close(1000)

	testMsg := []byte(`{"op":1,"d":null}`)
	if err := client.Send(testMsg); err != nil {
		t.Errorf("Send failed: %v", err)
	}

	select {
	case got := <-received:
		if string(got) != string(testMsg) {
			t.Errorf("received %q, want %q", got, testMsg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestClient_Messages(t *testing.T) {
	testMessages := []string{
		`{"op":0,"s":1,"t":"A","d":{}}`,
		`{"op":0,"s":2,"t":"B","d":{}}`,
		`{"op":0,"s":3,"t":"C","d":{}}`,
	}

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for _, msg := range testMessages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0x78, 0x9c}); err != nil {
			return
		}
		time.Sleep(time.Second)
	})
	defer server.Close()

	client := NewClient(testClientConfig(), nil)
	if err := client.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close(1000)

	timeout := time.After(time.Second)
	for i := 0; i <= len(testMessages); i++ {
		select {
		case msg := <-client.Messages():
			if msg.ReceivedAt.IsZero() {
				t.Error("ReceivedAt should not be zero")
			}
			if i < len(testMessages) {
				if string(msg.Data) != testMessages[i] || msg.Binary {
					t.Errorf("message %d: got %q binary=%v", i, msg.Data, msg.Binary)
				}
			} else if !msg.Binary {
				t.Error("expected last frame to be binary")
			}
		case <-timeout:
			t.Fatalf("timeout waiting for message %d", i)
		}
	}
}

func TestClient_CloseCodeSurfaced(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(4004, "Authentication failed."))
		time.Sleep(200 * time.Millisecond)
	})
	defer server.Close()

	client := NewClient(testClientConfig(), nil)
	if err := client.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close(1000)

	select {
	case err := <-client.Errors():
		var ce *CloseError
		if !errors.As(err, &ce) {
			t.Fatalf("expected *CloseError, got %T: %v", err, err)
		}
		if ce.Code != 4004 {
			t.Errorf("Code = %d, want 4004", ce.Code)
		}
		if !ce.Action().Fatal() {
			t.Error("4004 should be fatal")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for close error")
	}
}

func TestClient_CloseSendsCode(t *testing.T) {
	var (
		mu   sync.Mutex
		code int
	)
	done := make(chan struct{})

	server := mockWSServer(t, func(conn *websocket.Conn) {
		defer close(done)
		_, _, err := conn.ReadMessage()
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			mu.Lock()
			code = ce.Code
			mu.Unlock()
		}
	})
	defer server.Close()

	client := NewClient(testClientConfig(), nil)
	if err := client.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := client.Close(4900); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("server did not observe close")
	}

	mu.Lock()
	defer mu.Unlock()
	if code != 4900 {
		t.Errorf("close code = %d, want 4900", code)
	}
}

func TestClient_SendNotConnected(t *testing.T) {
	client := NewClient(testClientConfig(), nil)

	if err := client.Send([]byte("test")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestClient_DoubleClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(time.Second)
	})
	defer server.Close()

	client := NewClient(testClientConfig(), nil)
	if err := client.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := client.Close(1000); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := client.Close(1000); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if err := client.Connect(context.Background(), wsURL(server)); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("expected ErrAlreadyClosed, got %v", err)
	}
}

func TestDefaultConfigs(t *testing.T) {
	clientCfg := DefaultClientConfig()
	if clientCfg.BufferSize != 1024 {
		t.Errorf("BufferSize = %d, want 1024", clientCfg.BufferSize)
	}

	mgrCfg := DefaultManagerConfig()
	if mgrCfg.ReconnectBaseDelay != 7500*time.Millisecond {
		t.Errorf("ReconnectBaseDelay = %v, want 7.5s", mgrCfg.ReconnectBaseDelay)
	}
	if mgrCfg.ReconnectMaxAttempts != 5 {
		t.Errorf("ReconnectMaxAttempts = %d, want 5", mgrCfg.ReconnectMaxAttempts)
	}
	if mgrCfg.Shard.MaxMissedHeartbeats != 5 {
		t.Errorf("MaxMissedHeartbeats = %d, want 5", mgrCfg.Shard.MaxMissedHeartbeats)
	}
	if mgrCfg.Shard.InvalidSessionDelay != 6*time.Second {
		t.Errorf("InvalidSessionDelay = %v, want 6s", mgrCfg.Shard.InvalidSessionDelay)
	}
}
