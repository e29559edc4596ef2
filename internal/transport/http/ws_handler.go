package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-leaderboard-service/internal/app"
	"quiz-leaderboard-service/internal/domain"
	"quiz-leaderboard-service/internal/ranking"
)

// WSHandler streams leaderboard snapshots over websockets.
type WSHandler struct {
	service  *app.LeaderboardService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.LeaderboardService, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type string `json:"type"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// ServeWS upgrades the request and pushes a "leaderboard" message for every
// snapshot. With ?userId= set, each snapshot is followed by a "rank" message.
// Clients may send {"type":"refresh"} to force a recomputation.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "ws upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.Subscribe(r.Context())
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: wsError(err)})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer: gorilla connections do not support concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.DebugContext(r.Context(), "ws write error", slog.Any("error", err))
				// Unblocks ReadJSON in the read loop.
				_ = conn.Close()
				return
			}
		}
	}()

	enqueue := func(lb domain.Leaderboard) bool {
		for _, msg := range snapshotMessages(lb, userID) {
			select {
			case send <- msg:
			case <-closeSignals:
				return false
			case <-writerDone:
				return false
			}
		}
		return true
	}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok || !enqueue(update) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var reply []outboundMessage[any]
		switch inbound.Type {
		case "refresh":
			lb, err := h.service.Leaderboard(r.Context())
			if err != nil {
				reply = append(reply, outboundMessage[any]{Type: "error", Payload: wsError(err)})
				break
			}
			reply = snapshotMessages(lb, userID)
		default:
			reply = append(reply, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
		if !deliver(send, writerDone, reply) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// deliver queues msgs for the writer and reports false once the writer is gone.
func deliver(send chan<- outboundMessage[any], writerDone <-chan struct{}, msgs []outboundMessage[any]) bool {
	for _, msg := range msgs {
		select {
		case send <- msg:
		case <-writerDone:
			return false
		}
	}
	return true
}

func snapshotMessages(lb domain.Leaderboard, userID string) []outboundMessage[any] {
	msgs := []outboundMessage[any]{{Type: "leaderboard", Payload: lb}}
	if userID != "" {
		resp := rankResponse{UserID: userID}
		if rank, ok := ranking.RankOf(lb.Entries, userID); ok {
			resp.Rank = &rank
		}
		msgs = append(msgs, outboundMessage[any]{Type: "rank", Payload: resp})
	}
	return msgs
}

func wsError(err error) errorPayload {
	if errors.Is(err, domain.ErrDataUnavailable) {
		return errorPayload{Message: "Failed to load leaderboard data. Please try again.", Retryable: true}
	}
	return errorPayload{Message: err.Error()}
}
