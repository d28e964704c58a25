package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"onlyconnect-service/internal/app"
	"onlyconnect-service/internal/domain"
	"onlyconnect-service/internal/store"
)

type WSHandler struct {
	service  *app.QuizService
	logger   *slog.Logger
	upgrader websocket.Upgrader
	commands map[string]command
}

// command runs one inbound message on behalf of the connected user.
type command func(ctx context.Context, c caller, payload json.RawMessage) (any, error)

type caller struct {
	quizID string
	userID string
}

func NewWSHandler(service *app.QuizService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	h.commands = map[string]command{
		"quiz":               h.quiz,
		"view":               h.view,
		"createTeam":         h.createTeam,
		"revealClue":         h.revealClue,
		"closeQuestion":      h.closeQuestion,
		"revealSolution":     h.revealSolution,
		"submitAnswer":       h.submitAnswer,
		"markAnswer":         h.markAnswer,
		"startWall":          h.startWall,
		"toggleSelection":    h.toggleSelection,
		"submitGroup":        h.submitGroup,
		"submitWallAnswer":   h.submitWallAnswer,
		"markWallConnection": h.markWallConnection,
		"wallAnswers":        h.wallAnswers,
	}
	return h
}

type inboundMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type eventPayload struct {
	Event domain.QuizEvent `json:"event"`
	View  app.MarkingView  `json:"view"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	who := caller{quizID: quizID, userID: userID}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.Subscribe(ctx, quizID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage("", "", err))
		return
	}
	defer cancel()

	view, err := h.service.MarkingView(ctx, quizID, userID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage("", "", err))
		return
	}
	h.logger.Debug("ws connected", "quiz", quizID, "user", userID)

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer: gorilla connections allow one concurrent writer
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Warn("ws write error", "quiz", quizID, "user", userID, "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				view, err := h.service.MarkingView(ctx, quizID, userID)
				msg := outboundMessage{Type: "event", Payload: eventPayload{Event: ev, View: view}}
				if err != nil {
					msg = errorMessage("", "event", err)
				}
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage{Type: "result", Command: "view", Payload: view}

read:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		select {
		case send <- h.dispatch(ctx, who, inbound):
		case <-writerDone:
			break read
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, who caller, in inboundMessage) outboundMessage {
	cmd, ok := h.commands[in.Type]
	if !ok {
		return errorMessage(in.ID, in.Type, domain.InvalidArgument("unsupported message type %q", in.Type))
	}
	result, err := cmd(ctx, who, in.Payload)
	if err != nil {
		if errors.Is(err, domain.ErrInternal) || errors.Is(err, store.ErrAborted) {
			h.logger.Error("command failed", "quiz", who.quizID, "user", who.userID, "command", in.Type, "error", err)
		}
		return errorMessage(in.ID, in.Type, err)
	}
	return outboundMessage{ID: in.ID, Type: "result", Command: in.Type, Payload: result}
}

func errorMessage(id, cmd string, err error) outboundMessage {
	return outboundMessage{ID: id, Type: "error", Command: cmd, Payload: errorPayload{Kind: errorKind(err), Message: err.Error()}}
}

// errorKind names err for clients. Exhausted retries are transient and worth
// resending.
func errorKind(err error) string {
	if errors.Is(err, store.ErrAborted) {
		return "aborted"
	}
	return domain.Kind(err)
}

func decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, domain.InvalidArgument("malformed payload: %v", err)
	}
	return v, nil
}
