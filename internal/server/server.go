package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	_ "storefront-api/docs"
	"storefront-api/internal/apperror"
	"storefront-api/internal/config"
	"storefront-api/internal/dto"
	"storefront-api/internal/handler"
	"storefront-api/internal/idempotency"
	"storefront-api/internal/metrics"
	"storefront-api/internal/middleware"
	"storefront-api/internal/service"
)

type Server struct {
	echo            *echo.Echo
	cfg             config.HTTPServer
	log             zerolog.Logger
	metrics         *metrics.Metrics
	checkoutHandler *handler.CheckoutHandler
	productHandler  *handler.ProductHandler
	categoryHandler *handler.CategoryHandler
	orderHandler    *handler.OrderHandler
}

func NewServer(
	cfg config.HTTPServer,
	log zerolog.Logger,
	m *metrics.Metrics,
	checkoutService service.CheckoutService,
	catalogService service.CatalogService,
	orderService service.OrderService,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:            e,
		cfg:             cfg,
		log:             log,
		metrics:         m,
		checkoutHandler: handler.NewCheckoutHandler(checkoutService, m),
		productHandler:  handler.NewProductHandler(catalogService),
		categoryHandler: handler.NewCategoryHandler(catalogService),
		orderHandler:    handler.NewOrderHandler(orderService),
	}
	e.HTTPErrorHandler = s.handleError

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.RequestID())
	s.echo.Use(middleware.RequestLogger(s.log))
	s.echo.Use(middleware.Metrics(s.metrics))
	s.echo.Use(echomw.Recover())
	s.echo.Use(echomw.Secure())
	s.echo.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, idempotency.Header},
		ExposeHeaders: []string{handler.ReplayedHeader, echo.HeaderXRequestID},
	}))

	if s.cfg.RateLimit > 0 {
		window := s.cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(float64(s.cfg.RateLimit) / window.Seconds()),
			Burst:     s.cfg.RateLimit,
			ExpiresIn: window,
		})
		s.echo.Use(echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
			Skipper: func(c echo.Context) bool {
				return strings.HasSuffix(c.Path(), "/health") || c.Path() == "/metrics" || strings.HasPrefix(c.Path(), "/docs")
			},
			Store: store,
		}))
	}
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	// swagger UI; doc.json is served from the registered docs package
	s.echo.GET("/docs/*", echo.WrapHandler(httpSwagger.Handler(httpSwagger.URL("/docs/doc.json"))))
	toDocs := func(c echo.Context) error {
		return c.Redirect(http.StatusMovedPermanently, "/docs/index.html")
	}
	s.echo.GET("/docs", toDocs)
	s.echo.GET("/api/docs", toDocs)
	s.echo.GET("/api/docs/*", toDocs)

	// same surface at the root and under /api
	for _, g := range []*echo.Group{s.echo.Group(""), s.echo.Group("/api")} {
		g.POST("/checkout", s.checkoutHandler.Checkout, middleware.RequireIdempotencyKey())

		g.GET("/products", s.productHandler.ListProducts)
		g.GET("/products/brands", s.productHandler.ListBrands)
		g.GET("/products/:id", s.productHandler.GetProduct)
		g.GET("/categories", s.categoryHandler.ListCategories)

		g.GET("/orders", s.orderHandler.ListOrders)
		g.GET("/orders/:id", s.orderHandler.GetOrder)
	}
	s.echo.GET("/api/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	appErr, status := toAppError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().
			Err(err).
			Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
			Str("method", c.Request().Method).
			Str("uri", c.Request().RequestURI).
			Msg("request failed")
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, dto.ErrorResponse{Error: dto.ErrorBody{
			Code:    string(appErr.Code),
			Message: appErr.Message,
			Details: appErr.Details,
		}})
	}
	if writeErr != nil {
		s.log.Error().Err(writeErr).Msg("write error response")
	}
}

func toAppError(err error) (*apperror.Error, int) {
	if appErr, ok := apperror.As(err); ok {
		return appErr, appErr.HTTPStatus()
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg := fmt.Sprint(httpErr.Message)
		switch {
		case httpErr.Code >= http.StatusInternalServerError:
			return apperror.Internal(err), http.StatusInternalServerError
		case httpErr.Code == http.StatusBadRequest:
			return apperror.Validation(msg, nil), http.StatusBadRequest
		case httpErr.Code == http.StatusNotFound:
			return apperror.NotFound(msg), http.StatusNotFound
		default:
			code := strings.ToUpper(strings.ReplaceAll(http.StatusText(httpErr.Code), " ", "_"))
			return apperror.New(apperror.Code(code), msg), httpErr.Code
		}
	}

	return apperror.Internal(err), http.StatusInternalServerError
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
