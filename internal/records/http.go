package records

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sakinah/internal/httpmw"
	"sakinah/internal/model"
)

const (
	userKey     = "sakinah.records.user"
	maxBodySize = 1 << 20
)

// Server is the remote record store consumed by storage/remote.
type Server struct {
	repo   *FileRepo
	auth   *TokenAuth
	logger *slog.Logger
	router *gin.Engine
}

func NewServer(repo *FileRepo, auth *TokenAuth, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	router := gin.New()
	httpmw.Standard(router, logger)

	s := &Server{
		repo:   repo,
		auth:   auth,
		logger: logger,
		router: router,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "service": "sakinah-records"})
	})

	v1 := router.Group("/v1/users/:user", s.requireOwner)
	{
		v1.GET("/tasks", s.handleGetTasks)
		v1.PUT("/tasks", s.handlePutTasks)
		v1.GET("/streak", s.handleGetStreak)
		v1.PUT("/streak", s.handlePutStreak)
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Serve listens on addr until ctx is done, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("records server listening", "addr", addr)
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

// requireOwner admits a request only when its bearer token belongs to the
// user named in the path.
func (s *Server) requireOwner(c *gin.Context) {
	user, ok := s.auth.Authenticate(bearerToken(c.GetHeader("Authorization")))
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
		return
	}
	if user != normalizeUser(c.Param("user")) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token does not own this user"})
		return
	}
	c.Set(userKey, user)
	c.Next()
}

func (s *Server) handleGetTasks(c *gin.Context) {
	tasks, err := s.repo.GetTasks(c.GetString(userKey))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no tasks record"})
		return
	}
	if err != nil {
		s.internalError(c, "get tasks", err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) handlePutTasks(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)

	var tasks []model.Task
	if err := c.ShouldBindJSON(&tasks); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for i := range tasks {
		tasks[i].Normalize()
	}
	if err := s.repo.PutTasks(c.GetString(userKey), tasks); err != nil {
		s.internalError(c, "put tasks", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetStreak(c *gin.Context) {
	st, err := s.repo.GetStreak(c.GetString(userKey))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no streak record"})
		return
	}
	if err != nil {
		s.internalError(c, "get streak", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handlePutStreak(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)

	var st model.StreakState
	if err := c.ShouldBindJSON(&st); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st.Normalize()
	if err := s.repo.PutStreak(c.GetString(userKey), st); err != nil {
		s.internalError(c, "put streak", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.logger.Error("records operation failed",
		"op", op,
		"user", c.GetString(userKey),
		"request_id", httpmw.RequestIDFromContext(c),
		"error", err,
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
