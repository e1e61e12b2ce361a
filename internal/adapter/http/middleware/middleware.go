// Package middleware holds the gin middleware chain: correlation ids,
// protocol token authentication, admin bearer auth, rate limiting, audit,
// request logging and panic recovery.
package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/domain"
	"github.com/hackload-kz/payment-sub010/internal/core/ports"
	"github.com/hackload-kz/payment-sub010/pkg/apperror"
	"github.com/hackload-kz/payment-sub010/pkg/correlation"
	"github.com/hackload-kz/payment-sub010/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	// CtxTeam holds the authenticated *domain.Team.
	CtxTeam = "team"
	// CtxAdminSubject holds the admin token subject on admin routes.
	CtxAdminSubject = "admin_subject"
)

// TeamFromContext returns the team set by TokenAuth, nil outside it.
func TeamFromContext(c *gin.Context) *domain.Team {
	if v, exists := c.Get(CtxTeam); exists {
		if team, ok := v.(*domain.Team); ok {
			return team
		}
	}
	return nil
}

// Correlation assigns every request a correlation id, honoring one supplied
// by the caller. The id rides both the gin context and the request context so
// background jobs spawned by handlers inherit it.
func Correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(response.HeaderCorrelationID)
		if id == "" {
			id = correlation.NewID()
		}
		c.Set(response.CtxCorrelationID, id)
		c.Request = c.Request.WithContext(correlation.WithContext(c.Request.Context(), id))
		c.Next()
	}
}

// TokenAuth verifies the protocol signature carried in the request body.
//
// The body is read once into a flat parameter map for token computation and
// then restored so the handler can bind its DTO. Failure modes map to the
// protocol codes: 201 missing TeamSlug, 4001 missing Token, 205 unknown
// merchant, 202 blocked merchant, 204 bad token.
func TokenAuth(teams ports.TeamStore, tokens ports.TokenAuthenticator, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			abort(c, apperror.ErrValidation("cannot read request body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		var params map[string]any
		if err := json.Unmarshal(bodyBytes, &params); err != nil {
			abort(c, apperror.ErrValidation("request body must be a JSON object"))
			return
		}

		teamSlug, _ := params["TeamSlug"].(string)
		if teamSlug == "" {
			abort(c, apperror.ErrMissingField("TeamSlug"))
			return
		}
		token, _ := params["Token"].(string)
		if token == "" {
			abort(c, apperror.ErrAuthRequired())
			return
		}

		team, err := teams.Lookup(c.Request.Context(), teamSlug)
		if err != nil {
			log.Error().Err(err).Str("team_slug", teamSlug).Msg("team lookup failed")
			abort(c, apperror.ErrInternalAuth(err))
			return
		}
		if team == nil {
			abort(c, apperror.ErrMerchantNotFound())
			return
		}
		if !team.Active {
			abort(c, apperror.ErrMerchantInactive())
			return
		}

		if !tokens.Verify(params, token, team.PasswordHash) {
			log.Warn().Str("team_slug", teamSlug).Msg("token verification failed")
			abort(c, apperror.ErrInvalidToken())
			return
		}

		c.Set(CtxTeam, team)
		c.Next()
	}
}

// AdminAuth validates the admin bearer token.
func AdminAuth(tokens ports.AdminTokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			abort(c, apperror.ErrAuthRequired())
			return
		}

		subject, err := tokens.Validate(authHeader[7:])
		if err != nil {
			abort(c, apperror.ErrInvalidToken())
			return
		}

		c.Set(CtxAdminSubject, subject)
		c.Next()
	}
}

// RequestLogger logs every request, leveled by response status.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("correlation_id", response.CorrelationID(c)).
			Msg("http request")
	}
}

// Recovery converts panics into 999 envelopes.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				response.Error(c, apperror.New("999", "Internal error", http.StatusInternalServerError), "")
				c.Abort()
			}
		}()
		c.Next()
	}
}

// MaxBodySize limits the request body size. Once the limit is exceeded the
// reader fails and the request is rejected.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	response.Error(c, err, "")
	c.Abort()
}
