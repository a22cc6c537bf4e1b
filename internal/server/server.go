// Package server assembles route providers into the panel's HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/relay-panel/pkg/config"
	"github.com/sirosfoundation/relay-panel/pkg/middleware"
)

// RouteProvider contributes routes to the shared router
type RouteProvider interface {
	// RegisterRoutes adds the provider's routes to the router
	RegisterRoutes(router *gin.Engine)

	// Name returns the provider name for logging
	Name() string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address        string
	Port           int
	CORSOrigins    []string
	TrustedProxies []string
	LoggingLevel   string
}

// ServerConfigFrom derives the server settings from the application configuration
func ServerConfigFrom(cfg *config.Config) *ServerConfig {
	return &ServerConfig{
		Address:        cfg.Server.Host,
		Port:           cfg.Server.Port,
		CORSOrigins:    cfg.Server.CORSOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
		LoggingLevel:   cfg.Logging.Level,
	}
}

// Manager owns the router and the HTTP server
type Manager struct {
	cfg    *ServerConfig
	logger *zap.Logger

	providers []RouteProvider

	router     *gin.Engine
	httpServer *http.Server
}

// NewManager creates a new server manager
func NewManager(cfg *ServerConfig, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger,
	}
}

// AddProvider registers a RouteProvider. Call before Build or Start.
func (m *Manager) AddProvider(p RouteProvider) {
	m.providers = append(m.providers, p)
	m.logger.Debug("Added route provider", zap.String("name", p.Name()))
}

// Build creates the router and registers every provider's routes
func (m *Manager) Build() (*gin.Engine, error) {
	router, err := m.buildRouter()
	if err != nil {
		return nil, err
	}
	for _, p := range m.providers {
		m.logger.Info("Registering HTTP routes", zap.String("provider", p.Name()))
		p.RegisterRoutes(router)
	}
	m.router = router
	return router, nil
}

// Start builds the router and serves it in the background
func (m *Manager) Start(ctx context.Context) error {
	if m.cfg.LoggingLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := m.Build()
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Address, m.cfg.Port)
	m.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		m.logger.Info("HTTP server listening", zap.String("address", addr))
		if err := m.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown gracefully stops the HTTP server
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.httpServer == nil {
		return nil
	}
	if err := m.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	return nil
}

// Router returns the router built by Build or Start
func (m *Manager) Router() *gin.Engine {
	return m.router
}

func (m *Manager) buildRouter() (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(m.logger))

	// nil disables X-Forwarded-For so ClientIP is the socket peer
	if err := router.SetTrustedProxies(m.cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	if len(m.cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     m.cfg.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	return router, nil
}
