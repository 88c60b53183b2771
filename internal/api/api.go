// Package api exposes the HTTP surface: the WhatsApp webhook, a health
// probe and an operator lead listing.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hamavrikan/leadbot/internal/flow"
	"github.com/hamavrikan/leadbot/internal/ingress"
	"github.com/hamavrikan/leadbot/internal/models"
	"github.com/hamavrikan/leadbot/internal/store"
)

// DefaultAddr is the default listen address.
const DefaultAddr = ":8080"

// shutdownTimeout bounds graceful shutdown on exit.
const shutdownTimeout = 10 * time.Second

// Opts holds configuration options for the API server.
type Opts struct {
	Addr   string
	Engine *flow.Engine
	Guard  *ingress.Guard
	Store  store.Store
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithEngine sets the flow engine handling webhook events.
func WithEngine(e *flow.Engine) Option {
	return func(o *Opts) { o.Engine = e }
}

// WithGuard sets the ingress guard applied before any state mutation.
func WithGuard(g *ingress.Guard) Option {
	return func(o *Opts) { o.Guard = g }
}

// WithStore sets the store backing the lead listing.
func WithStore(s store.Store) Option {
	return func(o *Opts) { o.Store = s }
}

// Server is the HTTP API server.
type Server struct {
	addr   string
	router *gin.Engine
	engine *flow.Engine
	guard  *ingress.Guard
	store  store.Store
}

// NewServer creates the API server and registers its routes.
func NewServer(opts ...Option) (*Server, error) {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("flow engine not set")
	}
	if cfg.Guard == nil {
		return nil, fmt.Errorf("ingress guard not set")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store not set")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:   cfg.Addr,
		router: router,
		engine: cfg.Engine,
		guard:  cfg.Guard,
		store:  cfg.Store,
	}
	router.POST("/webhook/whatsapp", s.handleWebhook)
	router.GET("/health", s.handleHealth)
	router.GET("/leads", s.handleLeads)
	slog.Debug("API server routes registered", "addr", cfg.Addr)
	return s, nil
}

// Router returns the underlying gin router (used in tests).
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	}
}

// handleWebhook receives WAHA event envelopes. Ignored-but-valid deliveries
// are acknowledged with 200 so the provider does not retry-storm; only
// malformed JSON (400) and internal failures (500) are non-2xx.
func (s *Server) handleWebhook(c *gin.Context) {
	var event models.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		slog.Warn("Webhook received malformed payload", "error", err)
		c.JSON(http.StatusBadRequest, models.Failure("invalid payload"))
		return
	}
	payload := &event.Payload
	slog.Debug("Webhook event received", "event", event.Event, "message_id", payload.ID, "from_me", payload.FromMe)

	switch {
	case event.Event == models.EventPollVote:
		if s.guard.IsDuplicate(payload.ID) {
			c.JSON(http.StatusOK, models.APIResponse{Success: true, Duplicate: true})
			return
		}
		if err := s.engine.HandlePollVote(c.Request.Context(), payload); err != nil {
			slog.Error("Webhook poll vote handling failed", "error", err)
			c.JSON(http.StatusInternalServerError, models.Failure("internal error"))
			return
		}
		c.JSON(http.StatusOK, models.OK())

	case event.IsMessage():
		// Duplicate suppression applies to every message before anything else.
		if s.guard.IsDuplicate(payload.ID) {
			slog.Debug("Webhook duplicate delivery acknowledged", "message_id", payload.ID)
			c.JSON(http.StatusOK, models.APIResponse{Success: true, Duplicate: true})
			return
		}
		if payload.FromMe {
			if err := s.engine.HandleOutbound(c.Request.Context(), payload); err != nil {
				slog.Error("Webhook takeover handling failed", "error", err)
				c.JSON(http.StatusInternalServerError, models.Failure("internal error"))
				return
			}
			c.JSON(http.StatusOK, models.OK())
			return
		}
		if payload.IsStatus || payload.IsBroadcast {
			c.JSON(http.StatusOK, models.OK())
			return
		}
		if !s.guard.Allow(payload.From) {
			c.JSON(http.StatusOK, models.APIResponse{Success: true, RateLimited: true})
			return
		}
		if err := s.engine.HandleInbound(c.Request.Context(), payload); err != nil {
			slog.Error("Webhook message handling failed", "error", err)
			c.JSON(http.StatusInternalServerError, models.Failure("internal error"))
			return
		}
		c.JSON(http.StatusOK, models.OK())

	default:
		slog.Debug("Webhook ignoring unhandled event", "event", event.Event)
		c.JSON(http.StatusOK, models.OK())
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, models.OKWithResult(gin.H{"status": "ok"}))
}

// handleLeads lists leads for the operator, newest first, with optional
// status filter and limit.
func (s *Server) handleLeads(c *gin.Context) {
	status := c.Query("status")
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, models.Failure("invalid limit"))
			return
		}
		limit = n
	}
	leads, err := s.store.ListLeads(status, limit)
	if err != nil {
		slog.Error("Leads listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, models.Failure("internal error"))
		return
	}
	if leads == nil {
		leads = []models.Lead{}
	}
	c.JSON(http.StatusOK, models.OKWithResult(leads))
}
