package handler

import (
	"github.com/hackload-kz/payment-sub010/internal/adapter/http/middleware"
	"github.com/hackload-kz/payment-sub010/internal/core/ports"
	"github.com/hackload-kz/payment-sub010/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps carries everything the router needs.
type RouterDeps struct {
	Log         zerolog.Logger
	Lifecycle   *service.LifecycleService
	Teams       *service.TeamService
	Tokens      ports.TokenAuthenticator
	AdminTokens *service.JWTAdminTokenService
	Audit       *service.AuditService
	Limiter     ports.RateLimiter
	Metrics     ports.MetricsSink
	Registry    *prometheus.Registry
	Health      []ports.HealthChecker
}

// SetupRouter builds the gin engine with the full middleware chain and all
// routes.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.Correlation())
	r.Use(middleware.RequestLogger(deps.Log))
	r.Use(middleware.MaxBodySize(1 << 20))
	r.Use(middleware.AuditLog(deps.Audit))

	paymentH := NewPaymentHandler(deps.Lifecycle, deps.Log)
	payH := NewPayHandler(deps.Lifecycle, deps.Log)
	teamH := NewTeamHandler(deps.Teams, deps.AdminTokens, deps.Log)
	healthH := NewHealthHandler(deps.Health...)

	rl := func(policy string) gin.HandlerFunc {
		return middleware.RateLimit(deps.Limiter, deps.Metrics, policy)
	}
	auth := middleware.TokenAuth(deps.Teams, deps.Tokens, deps.Log)

	// Merchant payment API. Auth runs before rate limiting so the merchant
	// scope, not the client IP, is throttled.
	payment := r.Group("/api/payment")
	{
		payment.POST("/init", auth, rl("api"), rl("payment_init"), paymentH.Init)
		payment.POST("/confirm", auth, rl("api"), paymentH.Confirm)
		payment.POST("/cancel", auth, rl("api"), paymentH.Cancel)
		payment.POST("/refund", auth, rl("api"), paymentH.Refund)
		payment.POST("/status", auth, rl("api"), paymentH.Status)
	}

	// Hosted payment form, reached by the customer's browser.
	pay := r.Group("/pay")
	{
		pay.GET("/:id", payH.ShowForm)
		pay.POST("/:id/submit", rl("processing"), payH.SubmitCard)
		pay.POST("/:id/3ds", rl("processing"), payH.ThreeDSCallback)
	}

	// Admin surface.
	r.POST("/api/admin/login", rl("api"), teamH.Login)
	r.POST("/api/team/register", middleware.AdminAuth(deps.AdminTokens), teamH.Register)

	r.GET("/health", healthH.Health)
	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	return r
}
