// Package api exposes the assistant over HTTP: the chat turn endpoint,
// catalog search, scoped order lookup, voice token minting and the
// websocket telemetry stream.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shoptalk-ai/shoptalk/config"
	"github.com/shoptalk-ai/shoptalk/internal/assistant"
	"github.com/shoptalk-ai/shoptalk/internal/rag"
	"github.com/shoptalk-ai/shoptalk/internal/store"
	"github.com/shoptalk-ai/shoptalk/logger"
	"github.com/shoptalk-ai/shoptalk/websocket"
)

// TurnProcessor handles one chat turn.
type TurnProcessor interface {
	Process(ctx context.Context, text string) (*assistant.TurnResult, error)
}

// ProductSearcher serves the /search endpoint.
type ProductSearcher interface {
	SearchProducts(ctx context.Context, query string, k int) []rag.ProductHit
}

// OrderLookup serves the scoped order-detail endpoint.
type OrderLookup interface {
	GetScoped(id, email string) (*store.Order, error)
}

// Server wires the HTTP surface together.
type Server struct {
	assistant TurnProcessor
	search    ProductSearcher
	orders    OrderLookup
	hub       *websocket.Hub
	cfg       *config.EnvConfig
	log       *logger.Logger
	now       func() time.Time
	httpSrv   *http.Server
}

// NewServer builds the server. hub may be nil to disable telemetry
// broadcasting.
func NewServer(a TurnProcessor, search ProductSearcher, orders OrderLookup, hub *websocket.Hub, cfg *config.EnvConfig) *Server {
	return &Server{
		assistant: a,
		search:    search,
		orders:    orders,
		hub:       hub,
		cfg:       cfg,
		log:       logger.New("api"),
		now:       time.Now,
	}
}

// Routes builds the handler tree with CORS applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /orders/{id}", s.handleOrder)
	mux.HandleFunc("GET /voice/token", s.handleVoiceToken)
	if s.hub != nil {
		mux.Handle("GET /ws", websocket.Handler(s.hub, s.cfg.AllowedOrigin))
	}
	return s.corsMiddleware(mux)
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s.hub != nil {
		go s.hub.Run()
		defer s.hub.Stop()
	}

	s.httpSrv = &http.Server{
		Addr:           fmt.Sprintf(":%d", s.cfg.Port),
		Handler:        s.Routes(),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on :%d", s.cfg.Port)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.cfg.AllowedOrigin
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
