package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leap-relay-go/internal/broadcast"
	"leap-relay-go/internal/config"
	"leap-relay-go/internal/logging"
	"leap-relay-go/internal/metrics"
)

const indexPath = "/static/html/index.html"

// Hub is the subscriber side of the broadcaster.
type Hub interface {
	Register(broadcast.Subscriber) error
	Unregister(id string)
	Stats() (broadcast.Stats, error)
}

type Server struct {
	cfg      config.AppConfig
	hub      Hub
	statusFn func() map[string]any
	upgrader websocket.Upgrader
	router   *gin.Engine
	logger   *slog.Logger
}

// New builds the HTTP surface. statusFn may be nil; its entries are merged into
// the /status response.
func New(cfg config.AppConfig, hub Hub, statusFn func() map[string]any) *Server {
	s := &Server{
		cfg:      cfg,
		hub:      hub,
		statusFn: statusFn,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logging.WithComponent("server"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, indexPath)
	})
	if info, err := os.Stat(s.cfg.StaticDir); err == nil && info.IsDir() {
		r.Static("/static", s.cfg.StaticDir)
	} else {
		s.logger.Info("Static directory not found, /static disabled", "static_dir", s.cfg.StaticDir)
	}
	r.GET("/leapsocket", s.handleWS)
	r.GET("/healthz", s.handleHealth)
	r.GET("/status", s.handleStatus)
	r.GET("/config", s.handleConfig)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info("Listening", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "remote", c.ClientIP(), "error", err)
		return
	}
	metrics.WebSocketConnectionsTotal.Inc()

	cl := newClient(uuid.NewString(), conn)
	if err := s.hub.Register(cl); err != nil {
		s.logger.Error("Failed to register subscriber", "subscriber_id", cl.ID(), "error", err)
		_ = cl.Close()
		return
	}

	go func() {
		defer func() {
			s.hub.Unregister(cl.ID())
			_ = cl.Close()
		}()
		cl.readLoop()
	}()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.cfg)
}

func (s *Server) handleStatus(c *gin.Context) {
	payload := gin.H{}
	if s.statusFn != nil {
		for k, v := range s.statusFn() {
			payload[k] = v
		}
	}
	stats, err := s.hub.Stats()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	payload["broadcaster"] = stats
	payload["ws_clients"] = stats.Subscribers
	c.JSON(http.StatusOK, payload)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
