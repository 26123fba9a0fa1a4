package http

import (
	stdhttp "net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	appmiddleware "accountx/internal/adapters/http/middleware"
	"accountx/internal/domain"
	"accountx/internal/ports"
)

type Middleware struct {
	Auth   echo.MiddlewareFunc
	Logger ports.Logger
	// Metrics instruments requests; MetricsHandler serves GET /metrics.
	Metrics        *appmiddleware.HTTPMetrics
	MetricsHandler stdhttp.Handler
	// XRaySegment names the per-request trace segment; empty disables tracing.
	XRaySegment string
}

type Handlers struct {
	Users         *UsersHandler
	Groups        *GroupsHandler
	Companies     *CompaniesHandler
	Sales         *RecordsHandler[domain.Sale]
	Purchases     *RecordsHandler[domain.Purchase]
	Bookings      *RecordsHandler[domain.Booking]
	BookingTypes  *RecordsHandler[domain.BookingType]
	Media         *MediaHandler
	Reports       *ReportsHandler
	Authorization *AuthorizationHandler
}

func newEcho(m Middleware) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = newRequestValidator()
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if m.XRaySegment != "" {
		e.Use(appmiddleware.XRayMiddleware(m.XRaySegment))
	}
	if m.Logger != nil {
		e.Use(appmiddleware.RequestLogger(m.Logger))
	}
	if m.Metrics != nil {
		e.Use(m.Metrics.Middleware())
	}
	if m.Auth != nil {
		e.Use(m.Auth)
	}
	return e
}

func NewMainRouter(h Handlers, m Middleware) *echo.Echo {
	e := newEcho(m)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(stdhttp.StatusOK, map[string]string{"status": "ok"})
	})
	if m.MetricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(m.MetricsHandler))
	}

	users := e.Group("/users")
	users.POST("/register", h.Users.Register)
	users.POST("", h.Users.Create)
	users.GET("", h.Users.List)
	users.GET("/me", h.Users.Me)
	users.GET("/:id", h.Users.Get)
	users.PUT("/:id", h.Users.Update)
	users.DELETE("/:id", h.Users.Delete)
	users.PUT("/:id/groups", h.Users.SetGroups)

	groups := e.Group("/groups")
	groups.GET("", h.Groups.List)
	groups.GET("/:id", h.Groups.Get)
	groups.POST("/:id/members/:user_id", h.Groups.AddMember)
	groups.DELETE("/:id/members/:user_id", h.Groups.RemoveMember)

	companies := e.Group("/companies")
	companies.POST("", h.Companies.Create)
	companies.GET("", h.Companies.List)
	companies.GET("/:id", h.Companies.Get)
	companies.PUT("/:id", h.Companies.Update)
	companies.DELETE("/:id", h.Companies.Delete)

	registerRecords(e.Group("/sales"), h.Sales)
	registerRecords(e.Group("/purchases"), h.Purchases)
	registerRecords(e.Group("/bookings"), h.Bookings)
	registerRecords(e.Group("/booking-types"), h.BookingTypes)

	media := e.Group("/media")
	media.POST("", h.Media.Upload)
	media.GET("", h.Media.List)
	media.GET("/:id", h.Media.Download)
	media.GET("/:id/meta", h.Media.Meta)
	media.DELETE("/:id", h.Media.Delete)

	e.GET("/reports/vat", h.Reports.Vat)
	e.POST("/authorize", h.Authorization.Authorize)
	return e
}

func registerRecords(g *echo.Group, h recordRoutes) {
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

type recordRoutes interface {
	Create(echo.Context) error
	List(echo.Context) error
	Get(echo.Context) error
	Update(echo.Context) error
	Delete(echo.Context) error
}
