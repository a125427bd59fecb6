package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cyoa-editor/auth"
	"cyoa-editor/store"
	"cyoa-editor/story"
)

const (
	requestIDHeader = "X-Request-ID"
	userKey         = "user"
)

// ZapLoggingMiddleware registra ogni richiesta; salta health e metrics
func ZapLoggingMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/api/health" || path == "/metrics" {
			c.Next()
			return
		}

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		start := time.Now()
		c.Next()

		if raw := c.Request.URL.RawQuery; raw != "" {
			path += "?" + raw
		}
		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.String("request_id", requestID),
		}

		if len(c.Errors) > 0 {
			for _, ginErr := range c.Errors.ByType(gin.ErrorTypeAny) {
				log.Error("Request error", append(fields, zap.Error(ginErr.Err))...)
			}
			return
		}
		status := c.Writer.Status()
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("Server error", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("Client error", fields...)
		default:
			log.Info("Request completed", fields...)
		}
	}
}

// AuthMiddleware richiede un token Bearer valido e carica l'utente.
// Con allowQuery il token può arrivare anche come ?access_token=, per i
// client websocket che non possono impostare header.
func (s *Server) AuthMiddleware(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok && allowQuery {
			token = c.Query("access_token")
			ok = token != ""
		}
		if !ok {
			tokenVerificationsTotal.WithLabelValues("failure").Inc()
			abortWithError(c, auth.ErrTokenInvalid)
			return
		}

		claims, err := s.tokens.Verify(token)
		if err != nil {
			s.logger.Debug("Access token rejected", zap.Error(err))
			tokenVerificationsTotal.WithLabelValues("failure").Inc()
			abortWithError(c, err)
			return
		}

		user, err := s.repo.UserByEmail(c.Request.Context(), claims.Subject)
		if err != nil {
			tokenVerificationsTotal.WithLabelValues("failure").Inc()
			if errors.Is(err, story.ErrNotFound) {
				err = auth.ErrTokenInvalid
			}
			abortWithError(c, err)
			return
		}

		tokenVerificationsTotal.WithLabelValues("success").Inc()
		c.Set(userKey, user)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// currentUser restituisce l'utente impostato da AuthMiddleware
func currentUser(c *gin.Context) store.User {
	v, _ := c.Get(userKey)
	u, _ := v.(store.User)
	return u
}
