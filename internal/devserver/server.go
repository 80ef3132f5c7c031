/*
Package devserver embeds a self-contained companion backend for development builds.

This file defines the Server struct and its HTTP routing table, applying middleware
like request logging, CORS, and IP-based rate limiting before delegating requests to
the handlers and the WebSocket upgrade endpoint.
*/
package devserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/proedition/mucompanion/internal/configs"
	"github.com/proedition/mucompanion/internal/pkg/auth/jwt"
	"github.com/proedition/mucompanion/internal/pkg/limiter"
	"github.com/proedition/mucompanion/internal/pkg/logx"
	"github.com/proedition/mucompanion/internal/pkg/resp"
)

const (
	// serverVersion is the version string reported on the status endpoint.
	serverVersion = "1.0.0"

	// basePlayerCount pads the reported player count so the status screen shows
	// a populated server even with a single development client connected.
	basePlayerCount = 1247

	// APIRate and APIBurst bound per-IP request throughput on the API surface.
	APIRate  = 20
	APIBurst = 40
)

// Server is the embedded development backend: HTTP API, chat WebSocket endpoint,
// and the in-memory state behind them.
type Server struct {
	hub      *Hub
	accounts *accountRegistry

	jwtSecret        string
	maxMessageLength int
	startedAt        time.Time

	httpServer *http.Server
}

// NewServer constructs the development backend listening on cfg.DevListen.
func NewServer(cfg *configs.AppConfig) *Server {
	s := &Server{
		hub:              NewHub(),
		accounts:         newAccountRegistry(),
		jwtSecret:        cfg.JWTSecret,
		maxMessageLength: cfg.MaxMessageLength,
		startedAt:        time.Now(),
	}

	s.httpServer = &http.Server{
		Addr:              cfg.DevListen,
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// router builds the routing table with the middleware stack applied.
func (s *Server) router() http.Handler {
	apiLimiter := limiter.NewIPRateLimiter(rate.Limit(APIRate), APIBurst)

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		// Development-only backend: every origin is allowed.
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r := chi.NewRouter()

	r.Use(c.Handler)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "MU Companion Dev Server",
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(apiLimiter.Middleware)
		api.Use(jwt.IdentityExtractorMiddleware(s.jwtSecret))

		api.Post("/login", HandleLogin(s))
		api.Post("/register", HandleRegister(s))
		api.Get("/user/profile", HandleGetUserProfile(s))

		api.Get("/chat/messages", HandleChatHistory(s))
		api.Post("/chat/send", HandleChatSend(s))

		api.Get("/shop/items", HandleShopItems(s))
		api.Get("/vip/tiers", HandleVIPTiers(s))
		api.Get("/server/status", HandleServerStatus(s))
	})

	r.Get("/chat", s.handleWebSocket(wsUpgrader))

	return r
}

// handleWebSocket upgrades the connection and starts the client pumps.
func (s *Server) handleWebSocket(upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Warn("WebSocket upgrade failed.", "error", err.Error())
			return
		}

		c := newClient(s.hub, conn, s.maxMessageLength)

		go c.writePump()
		go c.readPump()
	}
}

// Handler exposes the routing table directly (integration tests mount it on httptest).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves HTTP until Shutdown is called. It blocks, so callers usually run
// it on its own goroutine.
func (s *Server) Start() error {
	logx.Info("Development backend listening.", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown gracefully stops the HTTP server and disconnects chat clients.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.hub.Shutdown()

	logx.Info("Development backend stopped.")
	return err
}
