package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"prepcuet/internal/app"
	"prepcuet/internal/domain"
)

func TestWebSocketReleaseFeed(t *testing.T) {
	hub := app.NewReleaseHub()
	wsHandler := NewWSHandler(hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/results", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/results?userId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Subscription is registered before the greeting is queued.
	_, payload := readNext(conn, t, "subscribed")
	if payload["userId"] != "u1" {
		t.Fatalf("expected subscribed payload for u1, got %v", payload)
	}

	hub.Publish(domain.ResultRelease{ResultID: "other", UserID: "u2", TestID: "t1"})
	hub.Publish(domain.ResultRelease{ResultID: "r1", UserID: "u1", TestID: "t1", ReleasedAt: time.Now()})

	_, payload = readNext(conn, t, "resultReleased")
	if payload["resultId"] != "r1" {
		t.Fatalf("expected r1 release, got %v", payload)
	}

	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	readNext(conn, t, "pong")

	if err := conn.WriteJSON(map[string]any{"type": "answer"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readNext(conn, t, "error")
}

func TestWebSocketUnsubscribesOnClose(t *testing.T) {
	hub := app.NewReleaseHub()
	server := httptest.NewServer(http.HandlerFunc(NewWSHandler(hub).ServeWS))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[len("http"):]+"?userId=u1", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	readNext(conn, t, "subscribed")
	if hub.Subscribers("u1") != 1 {
		t.Fatalf("expected one live subscriber")
	}
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for hub.Subscribers("u1") != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber not removed after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketRequiresUser(t *testing.T) {
	rec := httptest.NewRecorder()
	NewWSHandler(app.NewReleaseHub()).ServeWS(rec, httptest.NewRequest(http.MethodGet, "/ws/results", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestQueueMessageStopsAfterWriterExit(t *testing.T) {
	send := make(chan outboundMessage[any], 1)
	writerDone := make(chan struct{})
	if !queueMessage(send, writerDone, outboundMessage[any]{Type: "pong"}) {
		t.Fatalf("expected message to queue while the writer runs")
	}

	// buffer is full and nobody reads it any more
	close(writerDone)
	result := make(chan bool, 1)
	go func() { result <- queueMessage(send, writerDone, outboundMessage[any]{Type: "pong"}) }()
	select {
	case ok := <-result:
		if ok {
			t.Fatalf("expected queueing to fail after writer exit")
		}
	case <-time.After(time.Second):
		t.Fatalf("queueMessage blocked after writer exit")
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
