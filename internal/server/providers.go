package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/relay-panel/internal/api"
	"github.com/sirosfoundation/relay-panel/internal/service"
	"github.com/sirosfoundation/relay-panel/internal/storage"
	"github.com/sirosfoundation/relay-panel/pkg/config"
	"github.com/sirosfoundation/relay-panel/pkg/middleware"
)

// PanelProvider serves the login flow, session routes and admin routes
type PanelProvider struct {
	cfg         *config.Config
	logger      *zap.Logger
	services    *service.Services
	handlers    *api.Handlers
	rateLimiter *middleware.AuthRateLimiter
}

// NewPanelProvider creates the panel route provider
func NewPanelProvider(cfg *config.Config, store storage.Store, services *service.Services, logger *zap.Logger) *PanelProvider {
	p := &PanelProvider{
		cfg:      cfg,
		logger:   logger,
		services: services,
		handlers: api.NewHandlers(services, store, cfg, logger),
	}
	if cfg.Security.RateLimit.Enabled {
		p.rateLimiter = middleware.NewAuthRateLimiter(cfg.Security.RateLimit, logger)
	}
	return p
}

func (p *PanelProvider) Name() string { return "panel" }

func (p *PanelProvider) RegisterRoutes(router *gin.Engine) {
	router.GET("/status", p.handlers.Status)
	router.GET("/health", p.handlers.Health)

	login := router.Group("/")
	if p.rateLimiter != nil {
		login.Use(middleware.AuthRateLimitMiddleware(p.rateLimiter))
	}
	{
		login.POST("/login", p.handlers.Login)
		login.POST("/verify-otp", p.handlers.VerifyOTP)
	}

	protected := router.Group("/")
	protected.Use(middleware.AuthMiddleware(p.services.Session, p.cfg.Session.CookieName, p.logger))
	{
		protected.POST("/logout", p.handlers.Logout)
		protected.GET("/me", p.handlers.Me)

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireAdmin(p.logger))
		{
			admin.POST("/notify", p.handlers.AdminNotify)
			admin.GET("/login-events", p.handlers.LoginEvents)
		}
	}
}
