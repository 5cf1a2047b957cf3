// Package httpapi exposes a session over a local JSON API.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sakinah/internal/httpmw"
	"sakinah/internal/session"
)

const maxBodySize = 64 << 10

type Server struct {
	sess   *session.Session
	logger *slog.Logger
	router *gin.Engine
}

func NewServer(sess *session.Session, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	router := gin.New()
	httpmw.Standard(router, logger)

	s := &Server{
		sess:   sess,
		logger: logger,
		router: router,
	}

	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api")
	{
		api.GET("/tasks", s.handleListTasks)
		api.POST("/tasks", s.handleAddTask)
		api.POST("/tasks/reload", s.handleReload)
		api.POST("/tasks/:id/toggle", s.handleToggleTask)
		api.DELETE("/tasks/:id", s.handleDeleteTask)

		api.GET("/streak", s.handleStreak)
		api.GET("/reminder", s.handleReminder)
		api.GET("/progress/weekly", s.handleWeekly)
		api.GET("/stats", s.handleStats)

		api.GET("/session", s.handleSession)
		api.POST("/session", s.handleSignIn)
		api.DELETE("/session", s.handleSignOut)
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
