package handler

import (
	"net/http"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/adapter/http/dto"
	"github.com/hackload-kz/payment-sub010/internal/service"
	"github.com/hackload-kz/payment-sub010/pkg/apperror"
	"github.com/hackload-kz/payment-sub010/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AdminCredentials is what the login endpoint needs from the token service.
type AdminCredentials interface {
	CheckPassword(password string) bool
	Generate(subject string) (string, time.Time, error)
}

// TeamHandler serves the admin surface: login and merchant registration.
type TeamHandler struct {
	teams *service.TeamService
	admin AdminCredentials
	log   zerolog.Logger
}

// NewTeamHandler creates a TeamHandler.
func NewTeamHandler(teams *service.TeamService, admin AdminCredentials, log zerolog.Logger) *TeamHandler {
	return &TeamHandler{teams: teams, admin: admin, log: log}
}

// Login handles POST /api/admin/login, exchanging the admin password for a
// bearer token.
func (h *TeamHandler) Login(c *gin.Context) {
	var req dto.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Password == "" {
		response.Error(c, apperror.ErrAuthRequired(), "")
		return
	}

	if !h.admin.CheckPassword(req.Password) {
		h.log.Warn().Str("client_ip", c.ClientIP()).Msg("admin login rejected")
		response.Error(c, apperror.ErrInvalidToken(), "")
		return
	}

	token, expiresAt, err := h.admin.Generate("admin")
	if err != nil {
		response.Error(c, apperror.InternalError(err), "")
		return
	}

	c.Header(response.HeaderCorrelationID, response.CorrelationID(c))
	c.JSON(http.StatusOK, gin.H{
		"Success":   true,
		"ErrorCode": "0",
		"Token":     token,
		"ExpiresAt": expiresAt.UTC().Format(time.RFC3339),
	})
}

// Register handles POST /api/team/register behind admin auth.
func (h *TeamHandler) Register(c *gin.Context) {
	var req dto.RegisterTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrValidation("malformed request body"), "")
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err, "")
		return
	}

	team, err := h.teams.Register(c.Request.Context(), service.RegisterParams{
		Slug:            req.TeamSlug,
		Password:        req.Password,
		SuccessURL:      req.SuccessURL,
		FailURL:         req.FailURL,
		NotificationURL: req.NotificationURL,
		Currencies:      req.Currencies,
		MinAmount:       req.MinAmount,
		MaxAmount:       req.MaxAmount,
		DailyLimit:      req.DailyLimit,
	})
	if err != nil {
		response.Error(c, err, "")
		return
	}

	c.Header(response.HeaderCorrelationID, response.CorrelationID(c))
	c.JSON(http.StatusOK, gin.H{
		"Success":      true,
		"ErrorCode":    "0",
		"TeamSlug":     team.Slug,
		"PasswordHash": team.PasswordHash,
	})
}
