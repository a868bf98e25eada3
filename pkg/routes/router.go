// Package routes assembles the clover HTTP API.
package routes

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/ratelimit"
	"github.com/Ramsey-B/clover/pkg/routes/duplicates"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/routes/merges"
)

// Dependencies feed the router. Handlers resolve services from the ectoinject
// container named by ContainerID.
type Dependencies struct {
	ServiceName      string
	ContainerID      string
	ScanLimiter      *ratelimit.TenantLimiter
	Health           *health.Checker
	DefaultThreshold int
	Logger           ectologger.Logger
}

// NewRouter builds the echo server with every route registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(deps.Logger)

	e.Use(echomw.Recover())
	if deps.ServiceName != "" {
		e.Use(otelecho.Middleware(deps.ServiceName))
	}
	e.Use(middleware.Context())
	e.Use(middleware.Logger(deps.Logger))

	if deps.Health != nil {
		deps.Health.RegisterRoutes(e)
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1", middleware.RequireTenant(), middleware.Container(deps.ContainerID))
	duplicates.NewHandler(deps.ScanLimiter, deps.DefaultThreshold).RegisterRoutes(v1.Group("/duplicates"))
	merges.Register(v1.Group("/merges"))

	return e
}
