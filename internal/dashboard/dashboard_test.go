package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/inkwell-app/inkwell/internal/orchestrator"
	"github.com/inkwell-app/inkwell/internal/syncer"
)

func startServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer("127.0.0.1:0", log.New(io.Discard, "", 0))
	if err := s.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Stop(); err != nil {
			t.Errorf("stop server: %v", err)
		}
	})
	return s
}

func dial(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws://"+s.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, s *Server, want int) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for s.ClientCount() != want {
		select {
		case <-deadline:
			t.Fatalf("client count = %d, want %d", s.ClientCount(), want)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	s := startServer(t)
	a := dial(t, s)
	b := dial(t, s)
	waitForClients(t, s, 2)

	h := NewHandler(s, log.New(io.Discard, "", 0))
	h.OnStatusChange(orchestrator.StatusSyncing)

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		if msg.Type != MessageTypeStatus {
			t.Errorf("type = %s, want status", msg.Type)
		}
		var data StatusData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			t.Fatalf("unmarshal data: %v", err)
		}
		if data.Status != "syncing" {
			t.Errorf("status = %q, want syncing", data.Status)
		}
		if msg.Timestamp.IsZero() {
			t.Error("timestamp not set")
		}
	}
}

func TestSyncPassMessage(t *testing.T) {
	s := startServer(t)
	conn := dial(t, s)
	waitForClients(t, s, 1)

	h := NewHandler(s, log.New(io.Discard, "", 0))
	h.OnSyncPass(syncer.Result{Processed: 3, Failed: 1}, errors.New("folder lookup failed"))

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeSyncPass {
		t.Fatalf("type = %s, want sync_pass", msg.Type)
	}
	var data SyncPassData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.Processed != 3 || data.Failed != 1 {
		t.Errorf("data = %+v", data)
	}
	if data.Error == "" {
		t.Error("error not propagated")
	}
}

func TestPendingCountMessage(t *testing.T) {
	s := startServer(t)
	conn := dial(t, s)
	waitForClients(t, s, 1)

	NewHandler(s, log.New(io.Discard, "", 0)).OnPendingCount(7)

	msg := readMessage(t, conn)
	if msg.Type != MessageTypePending {
		t.Fatalf("type = %s, want pending", msg.Type)
	}
	var data PendingData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.Count != 7 {
		t.Errorf("count = %d, want 7", data.Count)
	}
}

func TestClientDisconnectCleanup(t *testing.T) {
	s := startServer(t)
	conn := dial(t, s)
	waitForClients(t, s, 1)

	conn.Close(websocket.StatusNormalClosure, "done")
	waitForClients(t, s, 0)
}

func TestHealthEndpoint(t *testing.T) {
	s := startServer(t)
	dial(t, s)
	waitForClients(t, s, 1)

	resp, err := http.Get("http://" + s.Addr() + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Clients != 1 {
		t.Errorf("body = %+v", body)
	}
}
