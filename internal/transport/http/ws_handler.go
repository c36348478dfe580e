package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"evalform-service/internal/app"
	"evalform-service/internal/domain"
)

// DefaultAutosaveDelay is how long a client must stay quiet before edits are
// persisted.
const DefaultAutosaveDelay = 1500 * time.Millisecond

// WSHandler serves the live autosave channel: clients stream answer edits
// and receive savingStatus transitions plus the final summary.
type WSHandler struct {
	sessions *app.SessionService
	delay    time.Duration
	upgrader websocket.Upgrader
}

func NewWSHandler(sessions *app.SessionService) *WSHandler {
	return NewWSHandlerWithDelay(sessions, DefaultAutosaveDelay)
}

// NewWSHandlerWithDelay is test-only for short debounce windows.
func NewWSHandlerWithDelay(sessions *app.SessionService, delay time.Duration) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		delay:    delay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type statusPayload struct {
	Status app.SaveState `json:"status"`
}

type wsErrorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs the autosave loop for one session.
// Dropping the connection abandons any pending debounce timer.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		http.Error(w, "missing session code", http.StatusBadRequest)
		return
	}

	sub, err := h.sessions.Resume(r.Context(), code)
	if err != nil {
		if err == domain.ErrSubmissionNotFound {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "resume failed", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage, 16)
	done := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-send:
				if err := conn.WriteJSON(msg); err != nil {
					log.Printf("ws write error: %v", err)
					return
				}
			case <-done:
				return
			}
		}
	}()

	push := func(msg outboundMessage) {
		select {
		case send <- msg:
		default:
			// slow client; drop the transient update rather than block
		}
	}

	var mu sync.Mutex
	answers := sub.Answers
	if answers == nil {
		answers = make(map[string]domain.Answer)
	}

	saver := app.NewAutosaver(h.delay, func(ctx context.Context) error {
		mu.Lock()
		snapshot := make(map[string]domain.Answer, len(answers))
		for k, v := range answers {
			snapshot[k] = v
		}
		mu.Unlock()
		return h.sessions.SaveAnswers(ctx, code, snapshot)
	}, func(state app.SaveState) {
		push(outboundMessage{Type: "savingStatus", Payload: statusPayload{Status: state}})
	})
	defer saver.Stop()

	push(outboundMessage{Type: "resumed", Payload: sub})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answers":
			var payload answersRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(outboundMessage{Type: "error", Payload: wsErrorPayload{Message: "invalid answers payload"}})
				continue
			}
			mu.Lock()
			for k, v := range payload.Answers {
				answers[k] = v
			}
			mu.Unlock()
			saver.Touch()
		case "finish":
			if err := saver.Flush(r.Context()); err != nil {
				push(outboundMessage{Type: "error", Payload: wsErrorPayload{Message: err.Error()}})
				continue
			}
			mu.Lock()
			snapshot := make(map[string]domain.Answer, len(answers))
			for k, v := range answers {
				snapshot[k] = v
			}
			mu.Unlock()
			summary, err := h.sessions.Finish(r.Context(), code, snapshot)
			if err != nil {
				push(outboundMessage{Type: "error", Payload: wsErrorPayload{Message: err.Error()}})
				continue
			}
			push(outboundMessage{Type: "summary", Payload: summary})
		default:
			push(outboundMessage{Type: "error", Payload: wsErrorPayload{Message: "unsupported message type"}})
		}
	}

	close(done)
	<-writerDone
}
