// Package server — служебный HTTP-сервер: проверка живости и метрики Prometheus.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Pinger проверяет доступность БД (*pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server — ops-сервер: GET /healthz и GET /metrics.
type Server struct {
	router *gin.Engine
	http   *http.Server
	db     Pinger
}

// New создаёт ops-сервер на addr.
func New(addr string, db Pinger, release bool) *Server {
	if release {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router: router,
		db:     db,
		http: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return s
}

// Handler возвращает роутер (для тестов).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run слушает порт до отмены ctx, затем останавливается с таймаутом 5 секунд.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.http.Addr).Info("Ops-сервер запущен")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("Ops-сервер остановлен")
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		log.WithError(err).Warn("Healthcheck: БД недоступна")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "db": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
