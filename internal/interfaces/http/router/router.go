package router

import (
	"fmt"

	"github.com/assetaudit/backend/internal/infrastructure/auth"
	"github.com/assetaudit/backend/internal/infrastructure/config"
	"github.com/assetaudit/backend/internal/infrastructure/logger"
	"github.com/assetaudit/backend/internal/interfaces/http/handler"
	"github.com/assetaudit/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes under /api/<version>
func (r *Router) Setup(mw ...gin.HandlerFunc) {
	api := r.engine.Group("/api/"+r.apiVersion, mw...)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// DomainGroup collects the routes of one resource
type DomainGroup struct {
	prefix     string
	middleware []gin.HandlerFunc
	routes     []routeDefinition
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a route group mounted at prefix
func NewDomainGroup(prefix string) *DomainGroup {
	return &DomainGroup{prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: "GET", path: path, handlers: handlers})
	return dg
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: "POST", path: path, handlers: handlers})
	return dg
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix, dg.middleware...)
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}

// Config selects the middleware chain of the engine
type Config struct {
	ServiceName string
	Logger      *zap.Logger
	HTTP        config.HTTPConfig
	// JWT authenticates API requests; when nil the identity comes from headers.
	JWT       *auth.JWTService
	Meter     metric.Meter
	Tracing   bool
	Profiling bool
}

// Handlers are the HTTP endpoints served by the engine
type Handlers struct {
	Audit  *handler.AuditHandler
	Code   *handler.CodeHandler
	System *handler.SystemHandler
}

// AuditRoutes returns the audit resource routes
func AuditRoutes(h *handler.AuditHandler) *DomainGroup {
	return NewDomainGroup("/audits").
		POST("", h.Create).
		GET("", h.List).
		GET("/:id", h.Get).
		GET("/:id/expected", h.ListExpectedAssets).
		GET("/:id/scans", h.ListScans).
		POST("/:id/scans", h.RecordScan).
		GET("/:id/reconciliation", h.GetReconciliation).
		POST("/:id/complete", h.Complete).
		POST("/:id/cancel", h.Cancel)
}

// CodeRoutes returns the code lookup routes
func CodeRoutes(h *handler.CodeHandler) *DomainGroup {
	return NewDomainGroup("/codes").GET("/:code", h.Resolve)
}

// New builds the gin engine with the global middleware chain and all routes
func New(cfg Config, h Handlers) (*gin.Engine, error) {
	l := cfg.Logger
	if l == nil {
		l = zap.NewNop()
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			return nil, fmt.Errorf("invalid trusted proxies: %w", err)
		}
	}
	middleware.SetupValidator()

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins

	engine.Use(
		logger.Recovery(l),
		middleware.RequestID(),
		logger.GinMiddleware(l),
		middleware.Secure(),
		middleware.CORSWithConfig(cors),
	)
	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}
	if cfg.Tracing {
		engine.Use(middleware.Tracing(cfg.ServiceName))
	}
	if cfg.Meter != nil {
		httpMetrics, err := middleware.HTTPMetrics(cfg.Meter)
		if err != nil {
			return nil, fmt.Errorf("failed to create http metrics: %w", err)
		}
		engine.Use(httpMetrics)
	}

	if h.System != nil {
		engine.GET("/health", h.System.Health)
		engine.GET("/api/v1/system/info", h.System.GetSystemInfo)
		engine.GET("/api/v1/system/ping", h.System.Ping)
	}

	identity := middleware.HeaderIdentity()
	if cfg.JWT != nil {
		identity = middleware.JWTAuthMiddleware(middleware.JWTMiddlewareConfig{
			JWTService: cfg.JWT,
			Logger:     l,
		})
	}
	api := []gin.HandlerFunc{identity}
	if cfg.Tracing {
		api = append(api, middleware.SpanEnricher())
	}
	if cfg.Profiling {
		api = append(api, middleware.Profiling())
	}

	r := NewRouter(engine)
	if h.Audit != nil {
		r.Register(AuditRoutes(h.Audit))
	}
	if h.Code != nil {
		r.Register(CodeRoutes(h.Code))
	}
	r.Setup(api...)
	return engine, nil
}
