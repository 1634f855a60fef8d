package exporter

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/fahctl/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	ErrBadSlot        = errors.New("exporter: slot must be a non-negative integer")
	ErrActionNotFound = errors.New("exporter: action not found")
)

const shutdownGrace = 5 * time.Second

// Server exposes daemon state over HTTP and Prometheus.
type Server struct {
	Addr    string
	Started time.Time

	daemon Daemon
	poller *Poller
	router *gin.Engine
}

func New(addr string, daemon Daemon, poller *Poller, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.Component("exporter")))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		Addr:    addr,
		Started: time.Now(),
		daemon:  daemon,
		poller:  poller,
		router:  r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		lastPoll, lastErr := s.poller.Status()
		body := gin.H{
			"status": "ok",
			"uptime": time.Since(s.Started).String(),
		}
		if !lastPoll.IsZero() {
			body["last_poll"] = lastPoll.UTC().Format(time.RFC3339)
		}
		if lastErr != nil {
			body["status"] = "degraded"
			body["error"] = lastErr.Error()
		}
		c.JSON(http.StatusOK, body)
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/api/slots", s.fromSnapshot(func(snap Snapshot) any {
		return gin.H{"slots": snap.Slots, "taken_at": snap.TakenAt}
	}))
	s.router.GET("/api/queue", s.fromSnapshot(func(snap Snapshot) any {
		return gin.H{"queue": snap.Queue, "taken_at": snap.TakenAt}
	}))
	s.router.GET("/api/ppd", s.fromSnapshot(func(snap Snapshot) any {
		return gin.H{"ppd": snap.PPD, "taken_at": snap.TakenAt}
	}))

	s.router.POST("/api/slots/:slot/:action", func(c *gin.Context) {
		slot := c.Param("slot")
		action := c.Param("action")
		if err := s.ExecuteAction(slot, action); err != nil {
			status := http.StatusBadGateway
			switch {
			case errors.Is(err, ErrBadSlot):
				status = http.StatusBadRequest
			case errors.Is(err, ErrActionNotFound):
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "slot": slot, "action": action})
	})
}

func (s *Server) fromSnapshot(view func(Snapshot) any) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := s.poller.Snapshot()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, view(snap))
	}
}

// ExecuteAction runs pause, unpause or finish on one slot.
func (s *Server) ExecuteAction(slotParam, action string) error {
	slot, err := strconv.Atoi(slotParam)
	if err != nil || slot < 0 {
		return ErrBadSlot
	}

	var run func(int) error
	switch action {
	case "pause":
		run = s.daemon.PauseSlot
	case "unpause":
		run = s.daemon.UnpauseSlot
	case "finish":
		run = s.daemon.FinishSlot
	default:
		return ErrActionNotFound
	}

	if err := run(slot); err != nil {
		log.Error().
			Str("component", "exporter").
			Int("slot", slot).
			Str("action", action).
			Err(err).
			Msg("slot action failed")
		return err
	}
	s.poller.Invalidate()
	log.Info().
		Str("component", "exporter").
		Int("slot", slot).
		Str("action", action).
		Msg("slot action executed")
	return nil
}

// Serve runs the poller and the HTTP listener until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()
	go s.poller.Run(pollCtx)

	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("component", "exporter").Str("addr", s.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
