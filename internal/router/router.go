package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/radio-slot-reservation/internal/handler"
	"github.com/iliyamo/radio-slot-reservation/internal/middleware"
	"github.com/iliyamo/radio-slot-reservation/internal/model"
)

// Deps bundles everything the routes need.  Cache and Metrics may be nil;
// RateLimit may be nil to disable limiting.
type Deps struct {
	JWTSecret string

	Auth         *handler.AuthHandler
	Reservations *handler.ReservationHandler
	Rollups      *handler.RollupHandler
	Channels     *handler.ChannelHandler

	DB        handler.Pinger
	Metrics   http.Handler
	Cache     *middleware.Cache
	RateLimit echo.MiddlewareFunc
}

// RegisterRoutes registers the probes and the unauthenticated login
// endpoint on e, then the /v1 API behind JWTAuth.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	if d.DB != nil {
		e.GET("/readyz", handler.Ready(d.DB))
	}
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	var limited []echo.MiddlewareFunc
	if d.RateLimit != nil {
		limited = append(limited, d.RateLimit)
	}

	// login is limited per ip before any identity exists
	e.POST("/v1/auth/login", d.Auth.Login, limited...)

	v1 := e.Group("/v1", middleware.JWTAuth(d.JWTSecret))
	v1.Use(middleware.RequireRole(model.RolePlanner, model.RoleViewer))
	v1.Use(limited...)
	v1.GET("/me", d.Auth.Me)

	registerReservations(v1, d.Reservations)
	registerPlans(v1, d.Rollups)
	registerChannels(v1, d.Channels, d.Cache)
}

// planner guards the write operations.
var planner = middleware.RequireRole(model.RolePlanner)

func registerReservations(g *echo.Group, h *handler.ReservationHandler) {
	g.POST("/reservations", h.Confirm, planner)
	g.POST("/reservations/preview", h.Preview)
	g.GET("/reservations/:id/cells", h.Cells)
	g.DELETE("/reservations/:id", h.Delete, planner)
	g.POST("/reservations/bulk-delete", h.BulkDelete, planner)

	g.GET("/advertisers", h.SearchAdvertisers)
	g.GET("/advertisers/:name/reservations", h.ListByAdvertiser)
	g.DELETE("/advertisers/:name/reservations", h.DeleteBySpotCode, planner)
}

// registerPlans mounts the rollup.  It never goes through the response
// cache.
func registerPlans(g *echo.Group, h *handler.RollupHandler) {
	g.GET("/plans/rollup", h.Get)
}

func registerChannels(g *echo.Group, h *handler.ChannelHandler, cache *middleware.Cache) {
	cached := cache.Middleware(handler.ChannelCacheNamespace)
	g.GET("/channels", h.List, cached)
	g.GET("/channels/prices", h.Prices, cached)
	g.PUT("/channels/:channel/prices", h.UpsertPrice, planner)
	g.GET("/channels/:channel/access", h.Access)
}
