package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/analytics"
	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/llm/inference"
	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/orchestration"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/observability"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/session"
)

const maxListLimit = 100

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "AI Courtroom Simulator is running",
		"profile": s.opts.Profile,
		"version": s.opts.Version,
	})
}

type healthResponse struct {
	Status           observability.HealthStatus           `json:"status"`
	Version          string                               `json:"version"`
	Profile          string                               `json:"profile"`
	BackendAvailable bool                                 `json:"backend_available"`
	Model            string                               `json:"model"`
	AvailableModels  []string                             `json:"available_models"`
	ActiveSessions   int                                  `json:"active_sessions"`
	Checks           map[string]observability.CheckStatus `json:"checks,omitempty"`
}

// handleHealth reports backend availability, the model list and the cache
// size alongside the registered checks. A down backend only degrades health:
// turns still complete with fallback text.
func (s *Server) handleHealth(c *gin.Context) {
	report := s.health.Check(c.Request.Context())
	resp := healthResponse{
		Status:          report.Status,
		Version:         s.opts.Version,
		Profile:         s.opts.Profile,
		Model:           "fallback_mode",
		AvailableModels: []string{},
		ActiveSessions:  s.sessions.Cached(),
		Checks:          report.Checks,
	}

	if s.backend != nil && s.backend.Available() {
		resp.BackendAvailable = true
		resp.Model = s.opts.Model
		if lister, ok := s.backend.(inference.ModelLister); ok {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			models, err := lister.ListModels(ctx)
			cancel()
			if err != nil {
				s.logger.Warn("list models failed", "error", err)
			}
			for _, m := range models {
				resp.AvailableModels = append(resp.AvailableModels, m.Name)
			}
		}
	} else if resp.Status == observability.HealthStatusHealthy {
		resp.Status = observability.HealthStatusDegraded
	}
	observability.SetCachedSessions(resp.ActiveSessions)

	code := http.StatusOK
	if resp.Status == observability.HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

func (s *Server) handleCreateSession(status int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.fail(c, invalid("body", "malformed JSON"))
			return
		}
		create, err := req.toCreate(s.opts.TitleRequired)
		if err != nil {
			s.fail(c, err)
			return
		}
		create.UserID = userID(c)

		sess, err := s.sessions.Create(c.Request.Context(), create)
		if err != nil {
			observability.RecordStoreError("create")
			s.fail(c, err)
			return
		}
		observability.RecordSessionCreated()
		observability.SetCachedSessions(s.sessions.Cached())
		s.events.Emit(analytics.Event{
			Type:      analytics.EventSessionStarted,
			SessionID: sess.ID,
			UserID:    sess.UserID,
			UserRole:  string(sess.UserRole),
			Detail:    sess.CaseType.Type,
			Timestamp: sess.CreatedAt,
		})

		c.JSON(status, createResponse{
			SessionID:  sess.ID,
			Transcript: sess.Transcript,
			CaseType:   sess.CaseType,
			Status:     orchestration.StatusStarted,
		})
	}
}

func (s *Server) handleListSessions(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		s.fail(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	summaries, err := s.sessions.List(c.Request.Context(), session.ListOptions{
		UserID: userID(c),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		observability.RecordStoreError("list")
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": summaries, "count": len(summaries)})
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, err := s.sessions.Get(c.Request.Context(), c.Param("id"))
	if err == nil && !s.owns(c, sess) {
		err = session.ErrSessionNotFound
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	id := c.Param("id")
	if s.opts.RequireAuth {
		sess, err := s.sessions.Get(c.Request.Context(), id)
		if err == nil && !s.owns(c, sess) {
			err = session.ErrSessionNotFound
		}
		if err != nil {
			s.fail(c, err)
			return
		}
	}
	if err := s.sessions.Delete(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	observability.SetCachedSessions(s.sessions.Cached())
	c.JSON(http.StatusOK, gin.H{"status": "Session deleted"})
}

// handleTurn serves both /sessions/:id/turns and the legacy /simulate_step,
// which carries the id in the body.
func (s *Server) handleTurn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, invalid("body", "malformed JSON"))
		return
	}
	id := c.Param("id")
	if id == "" {
		id = req.SessionID
	}
	if err := session.ValidateID(id); err != nil {
		s.fail(c, err)
		return
	}
	in, err := req.toTurn(s.opts.MaxInputChars)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	var res orchestration.TurnResult
	sess, err := s.sessions.Update(ctx, id, func(sess *session.Session) error {
		if !s.owns(c, sess) {
			return session.ErrSessionNotFound
		}
		var err error
		res, err = s.orch.ProcessTurn(ctx, sess, in)
		return err
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	observability.SetCachedSessions(s.sessions.Cached())

	c.JSON(http.StatusOK, turnResponse{
		Session:    sess,
		Transcript: sess.Transcript,
		Entries:    res.Entries,
		Relevant:   res.Relevant,
		Status:     res.Status,
	})
}

func (s *Server) handleEvidence(c *gin.Context) {
	var req evidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, invalid("body", "malformed JSON"))
		return
	}
	submitter := ""
	if p := principal(c); p != nil {
		submitter = p.Username
	}

	var added session.Evidence
	sess, err := s.sessions.Update(c.Request.Context(), c.Param("id"), func(sess *session.Session) error {
		if !s.owns(c, sess) {
			return session.ErrSessionNotFound
		}
		by := submitter
		if by == "" {
			by = sess.UserRole.DisplayName()
		}
		e, err := req.toEvidence(by)
		if err != nil {
			return err
		}
		added = sess.AddEvidence(e, s.now())
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	s.events.Emit(analytics.Event{
		Type:      analytics.EventEvidence,
		SessionID: sess.ID,
		UserID:    sess.UserID,
		UserRole:  string(sess.UserRole),
		Action:    string(session.ActionEvidence),
		Detail:    string(added.Type) + ": " + added.Title,
		Timestamp: added.Timestamp,
	})
	c.JSON(http.StatusCreated, evidenceResponse{Evidence: added, Status: "Evidence submitted"})
}

// owns reports whether the caller may see sess. Without auth every session
// is visible; with auth only the creator's are.
func (s *Server) owns(c *gin.Context, sess *session.Session) bool {
	if !s.opts.RequireAuth {
		return true
	}
	return sess.UserID == "" || sess.UserID == userID(c)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, invalid(key, "must be a non-negative integer")
	}
	return n, nil
}
