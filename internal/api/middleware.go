package api

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/observability"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/security"
)

const principalKey = "principal"

func (s *Server) recover(c *gin.Context, v any) {
	s.logger.Error("handler panicked", "path", c.Request.URL.Path, "panic", v)
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
		Error: security.NewSecureError(security.ErrCodeInternal, "An internal error occurred"),
	})
}

// observe records request metrics and a debug access log line.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		observability.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(status), elapsed)
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration", elapsed,
			"client", c.ClientIP(),
		)
	}
}

// cors answers preflight requests and sets CORS headers for allowed origins.
func (s *Server) cors() gin.HandlerFunc {
	wildcard := slices.Contains(s.opts.AllowedOrigins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (wildcard || slices.Contains(s.opts.AllowedOrigins, origin)) {
			h := c.Writer.Header()
			if wildcard {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Max-Age", "600")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// rateLimit applies the per-client token bucket.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil || s.limiter.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		observability.RecordRateLimited()
		c.Header("Retry-After", "1")
		s.fail(c, security.NewSecureError(security.ErrCodeRateLimit, "Too many requests"))
	}
}

// authenticate verifies the bearer token when the profile requires auth and
// stores the principal on the request.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.opts.RequireAuth {
			c.Next()
			return
		}
		p, err := s.auth.Authenticate(c.Request.Context(), security.BearerToken(c.GetHeader("Authorization")))
		if err != nil {
			s.logger.Debug("authentication failed", "client", c.ClientIP(), "error", err)
			s.fail(c, err)
			return
		}
		c.Set(principalKey, p)
		c.Request = c.Request.WithContext(security.WithAuthContext(c.Request.Context(), &security.AuthContext{
			Principal:   p,
			IPAddress:   c.ClientIP(),
			UserAgent:   c.Request.UserAgent(),
			RequestTime: s.now(),
		}))
		c.Next()
	}
}

// principal returns the authenticated caller, or nil when auth is off.
func principal(c *gin.Context) *security.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(*security.Principal); ok {
			return p
		}
	}
	return nil
}

// userID is the owner recorded on sessions created by this request.
func userID(c *gin.Context) string {
	if p := principal(c); p != nil {
		return p.UserID
	}
	return ""
}
