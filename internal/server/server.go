package server

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/partyplanner/internal/handler"
	"github.com/dukerupert/partyplanner/internal/middleware"
	"github.com/dukerupert/partyplanner/internal/planner"
	ws "github.com/dukerupert/partyplanner/internal/websocket"
)

// Config holds the HTTP-facing options.
type Config struct {
	// OriginPatterns are the extra origins allowed to open the websocket.
	OriginPatterns []string
}

type Server struct {
	planner *planner.Planner
	hub     *ws.Hub
	partyH  *handler.PartyHandler
	limiter *middleware.WriteLimiter
	cfg     Config
	logger  *slog.Logger
}

func New(p *planner.Planner, hub *ws.Hub, limiter *middleware.WriteLimiter, cfg Config, logger *slog.Logger) *Server {
	return &Server{
		planner: p,
		hub:     hub,
		partyH:  handler.NewPartyHandler(p, logger.With("component", "party")),
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Pages
	mux.HandleFunc("GET /", s.partyH.Page)
	mux.HandleFunc("GET /partials/app", s.partyH.AppPartial)
	mux.HandleFunc("GET /parties/{id}", s.partyH.Show)

	// Interactions
	mux.HandleFunc("POST /parties/{id}/select", s.partyH.Select)
	mux.HandleFunc("POST /parties", s.limiter.Limit(s.partyH.Create))
	mux.HandleFunc("POST /parties/{id}/delete", s.limiter.Limit(s.partyH.Delete))
	mux.HandleFunc("POST /refresh", s.partyH.Refresh)

	mux.HandleFunc("GET /health", handler.Health(s.planner, s.hub))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.cfg.OriginPatterns, s.logger.With("component", "websocket")))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}
