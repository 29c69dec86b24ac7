package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"velora-scenario-service/internal/app"
	"velora-scenario-service/internal/logger"
)

type WSHandler struct {
	service  *app.SessionService
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService, log *logger.Logger) *WSHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &WSHandler{
		service: service,
		log:     log.With("component", "ws"),
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

type selectPayload struct {
	AnswerID string `json:"answerId"`
}

type identityPayload struct {
	Token string `json:"token"`
}

type outboundMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ServeWS attaches a websocket to an existing session. Every transition, from this
// socket or from REST calls, is pushed as a "state" message. Ending the session
// sends "ended" and closes the socket.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing sessionId")
		return
	}
	updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err.Error())
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer; gorilla connections allow one concurrent writer
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Warn("ws write error", "session_id", sessionID, "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					enqueue(send, writerDone, outboundMessage{Type: "ended"})
					// unblock the reader so the handler winds down
					_ = conn.SetReadDeadline(time.Now())
					return
				}
				select {
				case send <- outboundMessage{Type: "state", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg outboundMessage) bool { return enqueue(send, writerDone, msg) }

	ctx := r.Context()
loop:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var opErr error
		switch inbound.Type {
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.AnswerID == "" {
				if !reply(errorMessage("invalid_request", "invalid select payload")) {
					break loop
				}
				continue
			}
			_, opErr = h.service.Select(ctx, sessionID, payload.AnswerID)
		case "submit":
			_, _, opErr = h.service.Submit(ctx, sessionID)
		case "next":
			_, _, opErr = h.service.Next(ctx, sessionID)
		case "identity":
			var payload identityPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					if !reply(errorMessage("invalid_request", "invalid identity payload")) {
						break loop
					}
					continue
				}
			}
			_, opErr = h.service.SetToken(ctx, sessionID, payload.Token)
		default:
			if !reply(errorMessage("unsupported", "unsupported message type")) {
				break loop
			}
			continue
		}
		if opErr != nil {
			_, code := statusFor(opErr)
			if !reply(errorMessage(code, opErr.Error())) {
				break loop
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// enqueue hands msg to the writer and reports false once the writer has gone away.
func enqueue(send chan<- outboundMessage, writerDone <-chan struct{}, msg outboundMessage) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

func errorMessage(code, message string) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload{Message: message, Code: code}}
}
