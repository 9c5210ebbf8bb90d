package ws

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"chat-relay/errors"
	"chat-relay/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from arbitrary origins; auth happens at the
	// handshake token, not at the origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	chat services.IChatService
	log  *slog.Logger
}

func NewServer(chat services.IChatService, log *slog.Logger) *Server {
	return &Server{chat: chat, log: log}
}

// ServeWS upgrades the request and runs the connection session until the
// client goes away.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := handshakeToken(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	transport := NewTransport(conn)
	err = s.chat.HandleConnection(r.Context(), transport, token)
	switch {
	case err == nil:
	case stderrors.Is(err, errors.ErrAuthRejected):
		s.log.Info("Connection rejected at handshake", "remote", r.RemoteAddr)
	default:
		s.log.Warn("Connection ended with error", "remote", r.RemoteAddr, "error", err)
	}
}

// handshakeToken accepts the token either as a bearer header or as a query
// parameter, since browsers cannot set headers on websocket dials.
func handshakeToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
