package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sakinah/internal/model"
	"sakinah/internal/session"
	"sakinah/internal/task"
)

const (
	defaultStatsDays = 7
	maxStatsDays     = 366
)

type addTaskRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Priority string `json:"priority"`
}

type signInRequest struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

type sessionResponse struct {
	Mode      string            `json:"mode"`
	UserID    string            `json:"userId,omitempty"`
	Migration session.Migration `json:"migration,omitempty"`
}

type streakResponse struct {
	State               model.StreakState  `json:"state"`
	YellowCardsThisWeek []model.YellowCard `json:"yellowCardsThisWeek"`
	IsStreakAtRisk      bool               `json:"isStreakAtRisk"`
	ShouldResetStreak   bool               `json:"shouldResetStreak"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":    true,
		"mode":  s.sess.Mode(),
		"today": s.sess.Today(),
	})
}

func (s *Server) handleListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, s.sess.Tasks.Sorted())
}

func (s *Server) handleAddTask(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)

	var req addTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	t, err := s.sess.Tasks.Add(c.Request.Context(), req.Title, model.Category(req.Category), model.Priority(req.Priority))
	if err != nil {
		s.writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) handleToggleTask(c *gin.Context) {
	t, err := s.sess.Tasks.Toggle(c.Request.Context(), model.TaskID(c.Param("id")))
	if err != nil {
		s.writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.sess.Tasks.RemoveCustom(c.Request.Context(), model.TaskID(c.Param("id"))); err != nil {
		s.writeTaskError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleReload(c *gin.Context) {
	s.sess.Reload(c.Request.Context())
	c.JSON(http.StatusOK, s.sess.Tasks.Sorted())
}

func (s *Server) handleStreak(c *gin.Context) {
	c.JSON(http.StatusOK, streakResponse{
		State:               s.sess.Streak.State(),
		YellowCardsThisWeek: s.sess.Streak.YellowCardsThisWeek(),
		IsStreakAtRisk:      s.sess.Streak.IsStreakAtRisk(),
		ShouldResetStreak:   s.sess.Streak.ShouldResetStreak(),
	})
}

func (s *Server) handleReminder(c *gin.Context) {
	c.JSON(http.StatusOK, s.sess.Reminder())
}

func (s *Server) handleWeekly(c *gin.Context) {
	c.JSON(http.StatusOK, s.sess.Weekly())
}

func (s *Server) handleStats(c *gin.Context) {
	days := defaultStatsDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxStatsDays {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 366"})
			return
		}
		days = n
	}

	sum, err := s.sess.Summary(c.Request.Context(), days)
	if err != nil {
		s.logger.Error("stats request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, sessionResponse{Mode: s.sess.Mode(), UserID: s.sess.Identity().UserID})
}

func (s *Server) handleSignIn(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)

	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	id := model.Identity{UserID: req.UserID, Token: req.Token}
	migration, err := s.sess.Authenticate(c.Request.Context(), id, nil)
	switch {
	case errors.Is(err, session.ErrAnonymous):
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	case errors.Is(err, session.ErrNoRemoteStore):
		c.JSON(http.StatusConflict, gin.H{"error": "no remote record store configured"})
		return
	case err != nil:
		s.logger.Warn("sign in failed", "user", req.UserID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "remote record store rejected the sign in"})
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Mode: s.sess.Mode(), UserID: id.UserID, Migration: migration})
}

func (s *Server) handleSignOut(c *gin.Context) {
	if err := s.sess.SignOut(c.Request.Context()); err != nil {
		s.logger.Error("sign out failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Mode: s.sess.Mode()})
}

func (s *Server) writeTaskError(c *gin.Context, err error) {
	var verr *task.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, task.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, task.ErrNotCustom):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger.Error("task request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
