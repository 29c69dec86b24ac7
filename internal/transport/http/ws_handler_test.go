package http

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"velora-scenario-service/internal/app"
)

func TestWebSocketSessionFlow(t *testing.T) {
	server, authority := newTestServer(t)
	defer server.Close()

	var started app.Snapshot
	doJSON(t, server, http.MethodPost, "/api/scenarios/s1/sessions", "", nil, &started)

	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=" + started.SessionID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Expect the current state first.
	state := readState(t, conn)
	if state.Phase != app.PhaseUnanswered || !state.Anonymous {
		t.Fatalf("expected fresh anonymous state, got %+v", state.View)
	}

	send(t, conn, "select", map[string]string{"answerId": "a"})
	if state = readState(t, conn); state.SelectedAnswerID != "a" {
		t.Fatalf("expected selection, got %+v", state.View)
	}

	send(t, conn, "submit", nil)
	if state = readState(t, conn); !state.Revealed || state.Reveal == nil || state.Reveal.CorrectLabel != "A" {
		t.Fatalf("expected reveal, got %+v", state.View)
	}

	token, _ := authority.Issue("user-9", time.Hour)
	send(t, conn, "identity", map[string]string{"token": token})
	if state = readState(t, conn); state.Anonymous {
		t.Fatalf("expected identified after identity message")
	}

	send(t, conn, "next", nil)
	if state = readState(t, conn); state.Position != 2 {
		t.Fatalf("expected question 2, got %d", state.Position)
	}

	send(t, conn, "select", map[string]string{"answerId": "nope"})
	typ, payload := readNext(t, conn)
	if typ != "error" {
		t.Fatalf("expected error message, got %s", typ)
	}
	var e errorPayload
	_ = json.Unmarshal(payload, &e)
	if e.Code != "option_not_found" {
		t.Fatalf("expected option_not_found, got %+v", e)
	}
}

func TestWebSocketReceivesRESTTransitions(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	var started app.Snapshot
	doJSON(t, server, http.MethodPost, "/api/scenarios/s1/sessions", "", nil, &started)

	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=" + started.SessionID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readState(t, conn)

	doJSON(t, server, http.MethodPost, "/api/sessions/"+started.SessionID+"/select", "", map[string]string{"answerId": "b"}, nil)
	if state := readState(t, conn); state.SelectedAnswerID != "b" {
		t.Fatalf("expected REST selection pushed over the socket, got %+v", state.View)
	}
}

func TestWebSocketClosesWhenSessionEnds(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	var started app.Snapshot
	doJSON(t, server, http.MethodPost, "/api/scenarios/s1/sessions", "", nil, &started)

	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=" + started.SessionID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readState(t, conn)

	resp := doJSON(t, server, http.MethodDelete, "/api/sessions/"+started.SessionID, "", nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if typ, _ := readNext(t, conn); typ != "ended" {
		t.Fatalf("expected ended message, got %s", typ)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg map[string]interface{}
	if err := conn.ReadJSON(&msg); err == nil {
		t.Fatalf("expected socket closed after session end, got %v", msg)
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=missing"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 response, got %+v", resp)
	}
}

func TestEnqueueGivesUpWhenWriterIsGone(t *testing.T) {
	send := make(chan outboundMessage, 1)
	writerDone := make(chan struct{})
	if !enqueue(send, writerDone, errorMessage("unsupported", "first")) {
		t.Fatalf("expected first message queued")
	}

	close(writerDone)
	result := make(chan bool, 1)
	go func() { result <- enqueue(send, writerDone, errorMessage("unsupported", "second")) }()
	select {
	case ok := <-result:
		if ok {
			t.Fatalf("expected enqueue to fail with a full queue and no writer")
		}
	case <-time.After(time.Second):
		t.Fatalf("enqueue blocked on a full queue after the writer exited")
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload interface{}) {
	t.Helper()
	msg := map[string]interface{}{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readState(t *testing.T, conn *websocket.Conn) app.Snapshot {
	t.Helper()
	typ, payload := readNext(t, conn)
	if typ != "state" {
		t.Fatalf("expected state, got %s: %s", typ, payload)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return snap
}

func readNext(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg.Type, msg.Payload
}
