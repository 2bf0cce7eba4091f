package httpapi

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/goliatone/go-router"
)

// AppConfig configures the server built by NewApp.
type AppConfig struct {
	Name         string
	Environment  string
	Prefix       string
	AllowOrigins string
	BodyLimit    int
	Now          func() time.Time
}

// NewApp builds the public server: the controller under cfg.Prefix and a
// health check. Unknown routes render a NOT_FOUND envelope through
// ErrorHandler.
func NewApp(controller *Controller, cfg AppConfig) router.Server[*fiber.App] {
	if cfg.Prefix == "" {
		cfg.Prefix = "/api/auth"
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 1 << 20
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			AppName:               cfg.Name,
			BodyLimit:             cfg.BodyLimit,
			ErrorHandler:          ErrorHandler,
			DisableStartupMessage: true,
		})

		app.Use(recover.New())
		app.Use(requestid.New())
		app.Use(helmet.New())
		if cfg.AllowOrigins != "" {
			app.Use(cors.New(cors.Config{
				AllowOrigins:     cfg.AllowOrigins,
				AllowCredentials: cfg.AllowOrigins != "*",
			}))
		}

		return app
	})

	r := srv.Router()
	r.WithLogger(controller.Logger)

	r.Get("/health", func(ctx router.Context) error {
		return ctx.JSON(http.StatusOK, map[string]any{
			"success":     true,
			"message":     "Server is running",
			"timestamp":   cfg.Now().UTC().Format(time.RFC3339),
			"environment": cfg.Environment,
		})
	}).SetName("health.get")

	RegisterAccountRoutes(r.Group(cfg.Prefix), controller)

	return srv
}

// NewMetricsServer builds the server exposing handler on /metrics. It is
// meant to listen on an internal address, apart from the public app.
func NewMetricsServer(handler http.Handler) router.Server[*fiber.App] {
	return router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			AppName:               "metrics",
			ErrorHandler:          ErrorHandler,
			DisableStartupMessage: true,
		})
		app.Use(recover.New())
		app.Get("/metrics", adaptor.HTTPHandler(handler)).Name("metrics.get")
		return app
	})
}
