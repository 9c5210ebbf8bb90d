// Package httpapi is the thin request/response surface next to the
// websocket endpoint: room message posting, member listing, health and
// metrics. Full CRUD stays with the persistence layer's own services.
package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"chat-relay/services"
	"chat-relay/ws"
)

type Handler struct {
	chat     services.IChatService
	auth     contract.IAuthenticator
	messages repositories.IMessageRepository
	log      *slog.Logger
}

func NewRouter(chat services.IChatService, auth contract.IAuthenticator,
	messages repositories.IMessageRepository, wsServer *ws.Server,
	log *slog.Logger) *chi.Mux {
	h := &Handler{chat: chat, auth: auth, messages: messages, log: log}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", h.Health)
	r.Get("/ws", wsServer.ServeWS)

	r.Route("/rooms/{roomID}", func(r chi.Router) {
		r.Post("/message", h.PostMessage)
		r.Get("/messages", h.GetMessages)
		r.Get("/members", h.GetMembers)
	})
	return r
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type postMessageRequest struct {
	Message    string  `json:"message"`
	Parent     *string `json:"parent,omitempty"`
	IsReaction bool    `json:"is_reaction,omitempty"`
}

type messageResponse struct {
	ID         string  `json:"id"`
	ChatGroup  int     `json:"chat_group"`
	Sender     string  `json:"sender,omitempty"`
	Message    string  `json:"message"`
	Parent     *string `json:"parent,omitempty"`
	IsReaction bool    `json:"is_reaction,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// PostMessage stores a message and fans it out to the room topic as
// chat.post.message. The caller gets the stored entity back; room members
// see it arrive over their live connections.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identityOf(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	room, ok := roomParam(w, r)
	if !ok {
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.chat.PostMessage(r.Context(), domain.CreateMessage{
		Room:       domain.RoomID(room),
		Sender:     identity,
		Body:       req.Message,
		Parent:     req.Parent,
		IsReaction: req.IsReaction,
	})
	switch {
	case stderrors.Is(err, errors.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.log.Error("Post message failed", "room", room, "error", err)
		writeError(w, http.StatusInternalServerError, "message could not be stored")
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		ID:         msg.ID,
		ChatGroup:  int(msg.Room),
		Sender:     string(msg.Sender),
		Message:    msg.Body,
		Parent:     msg.Parent,
		IsReaction: msg.IsReaction,
		CreatedAt:  msg.CreatedAt.Format(time.RFC3339Nano),
	})
}

type messagesResponse struct {
	Messages []messageResponse `json:"messages"`
	Cursor   *string           `json:"cursor,omitempty"`
}

// GetMessages pages backwards through a room's history. The cursor query
// parameter is the opaque value handed back by the previous call.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	room, ok := roomParam(w, r)
	if !ok {
		return
	}

	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}

	stored, next, err := h.messages.GetMessages(room, cursor)
	if err != nil {
		h.log.Error("History lookup failed", "room", room, "error", err)
		writeError(w, http.StatusInternalServerError, "messages could not be listed")
		return
	}

	out := messagesResponse{Messages: make([]messageResponse, 0, len(stored)), Cursor: next}
	for _, m := range stored {
		out.Messages = append(out.Messages, messageResponse{
			ID:         m.ID,
			ChatGroup:  m.Room,
			Sender:     m.Author,
			Message:    m.Content,
			Parent:     m.Parent,
			IsReaction: m.IsReaction,
			CreatedAt:  m.At.Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type memberResponse struct {
	Identity string `json:"identity"`
	IsOnline bool   `json:"is_online"`
}

func (h *Handler) GetMembers(w http.ResponseWriter, r *http.Request) {
	room, ok := roomParam(w, r)
	if !ok {
		return
	}

	members, err := h.chat.GetMembers(r.Context(), domain.RoomID(room))
	if err != nil {
		h.log.Error("Members lookup failed", "room", room, "error", err)
		writeError(w, http.StatusInternalServerError, "members could not be listed")
		return
	}

	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, memberResponse{Identity: string(m.Identity), IsOnline: m.IsOnline})
	}
	writeJSON(w, http.StatusOK, out)
}

// roomParam parses the 1-based room id from the URL, answering 400 itself
// when the value is not a positive integer.
func roomParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	room, err := strconv.Atoi(chi.URLParam(r, "roomID"))
	if err != nil || room < 1 {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return 0, false
	}
	return room, true
}

func (h *Handler) identityOf(r *http.Request) (domain.Identity, error) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		token = ""
	}
	return h.auth.Resolve(r.Context(), token)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"error": detail})
}
