// Package web is a development gateway that stands in for a messenger. It
// exposes inline queries and selections over HTTP, keeps the resulting
// messages in memory and streams their edits over a WebSocket.
package web

import (
	"context"
	"net/http"

	"trackbot/internal/logger"
	"trackbot/internal/transport"
)

// Events handles inbound inline events; *bot.Bot implements it.
type Events interface {
	HandleInlineQuery(ctx context.Context, q transport.InlineQuery) error
	HandleInlineSend(ctx context.Context, s transport.InlineSend) error
}

type Server struct {
	ctx    context.Context
	gw     *Gateway
	events Events
	spawn  func(func())
	logger *logger.Logger
}

// NewServer creates the HTTP front of gw. spawn runs selection handling in
// the background; nil means a plain goroutine.
func NewServer(ctx context.Context, gw *Gateway, events Events, spawn func(func()), log *logger.Logger) *Server {
	if spawn == nil {
		spawn = func(fn func()) { go fn() }
	}
	return &Server{
		ctx:    ctx,
		gw:     gw,
		events: events,
		spawn:  spawn,
		logger: log.Component("web"),
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("POST /api/send", s.handleSend)
	mux.HandleFunc("GET /api/messages", s.handleListMessages)
	mux.HandleFunc("GET /api/messages/{id}", s.handleGetMessage)
	mux.HandleFunc("GET /media/{id}", s.handleMedia)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return s.loggingMiddleware(mux)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
