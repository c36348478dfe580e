package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"evalform-service/internal/app"
	"evalform-service/internal/domain"
)

func TestWSAutosaveRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	defer env.server.Close()

	sessions := app.NewSessionService(env.store, env.store)
	sub, err := sessions.Start(context.Background(), domain.UserContext{Name: "Alice"})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	ws := NewWSHandlerWithDelay(sessions, 30*time.Millisecond)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/sessions/{code}", ws.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	url := "ws" + server.URL[len("http"):] + "/ws/sessions/" + sub.SessionCode
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msg := readNext(t, conn)
	if msg.Type != "resumed" {
		t.Fatalf("expected resumed, got %q", msg.Type)
	}

	edit := map[string]any{
		"type": "answers",
		"payload": map[string]any{
			"answers": map[string]any{"q1": map[string]any{"values": []string{"yes"}}},
		},
	}
	if err := conn.WriteJSON(edit); err != nil {
		t.Fatalf("send answers: %v", err)
	}

	// The debounce fires after the short test delay: saving, then saved.
	msg = readNext(t, conn)
	assertStatus(t, msg, app.SaveSaving)
	msg = readNext(t, conn)
	assertStatus(t, msg, app.SaveSaved)

	stored, err := sessions.Resume(context.Background(), sub.SessionCode)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if stored.Answers["q1"].Values[0] != "yes" {
		t.Fatalf("expected autosaved answer, got %+v", stored.Answers)
	}
}

func TestWSFinishDeliversSummary(t *testing.T) {
	env := newTestEnv(t)
	defer env.server.Close()

	sessions := app.NewSessionService(env.store, env.store)
	sub, err := sessions.Start(context.Background(), domain.UserContext{})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	ws := NewWSHandlerWithDelay(sessions, time.Hour) // debounce must not fire on its own
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/sessions/{code}", ws.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	url := "ws" + server.URL[len("http"):] + "/ws/sessions/" + sub.SessionCode
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if msg := readNext(t, conn); msg.Type != "resumed" {
		t.Fatalf("expected resumed, got %q", msg.Type)
	}

	edit := map[string]any{
		"type": "answers",
		"payload": map[string]any{
			"answers": map[string]any{"q1": map[string]any{"values": []string{"yes"}}},
		},
	}
	if err := conn.WriteJSON(edit); err != nil {
		t.Fatalf("send answers: %v", err)
	}
	if err := conn.WriteJSON(map[string]any{"type": "finish"}); err != nil {
		t.Fatalf("send finish: %v", err)
	}

	// Flush persists the pending edit before the summary arrives.
	msg := readNext(t, conn)
	assertStatus(t, msg, app.SaveSaving)
	msg = readNext(t, conn)
	assertStatus(t, msg, app.SaveSaved)

	msg = readNext(t, conn)
	if msg.Type != "summary" {
		t.Fatalf("expected summary, got %q", msg.Type)
	}
	var summary domain.EvaluationSummary
	if err := json.Unmarshal(msg.Payload, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(summary.Buckets[0].Items) != 1 {
		t.Fatalf("expected one effectiveness item, got %+v", summary.Buckets[0])
	}
}

func TestWSUnknownSessionRejectsUpgrade(t *testing.T) {
	env := newTestEnv(t)
	defer env.server.Close()

	sessions := app.NewSessionService(env.store, env.store)
	ws := NewWSHandler(sessions)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/sessions/{code}", ws.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	url := "ws" + server.URL[len("http"):] + "/ws/sessions/9999"
	_, res, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected dial to fail for unknown session")
	}
	if res == nil || res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake response, got %+v", res)
	}
}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readNext(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	return msg
}

func assertStatus(t *testing.T, msg wsMessage, want app.SaveState) {
	t.Helper()
	if msg.Type != "savingStatus" {
		t.Fatalf("expected savingStatus, got %q", msg.Type)
	}
	var payload struct {
		Status app.SaveState `json:"status"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if payload.Status != want {
		t.Fatalf("expected status %q, got %q", want, payload.Status)
	}
}
