package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"sitewright/internal/branding"
	"sitewright/internal/config"
	"sitewright/internal/ingest"
	"sitewright/internal/metrics"
	"sitewright/internal/provision"
	"sitewright/internal/store"
)

type Server struct {
	app    *fiber.App
	config *config.Config
	store  *store.Store
	logger *slog.Logger
}

// Deps bundles everything the handlers reach through c.Locals.
type Deps struct {
	Config    *config.Config
	Store     *store.Store
	Provision *provision.Service
	Ingest    *ingest.Ingestor
	Branding  *branding.Importer
	Logger    *slog.Logger
}

func NewServer(d Deps) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 16 << 20,
	})

	// Inject collaborators into context for handlers
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", d.Config)
		c.Locals("store", d.Store)
		c.Locals("provision", d.Provision)
		c.Locals("ingest", d.Ingest)
		c.Locals("branding", d.Branding)
		return c.Next()
	})

	// Request logging + metrics middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		// Ensure a request ID exists
		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)
		if d.Logger != nil {
			c.Locals("logger", d.Logger)
		}

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		method := c.Method()
		path := c.Path()

		metrics.RecordRequest(method, path, status, latency.Milliseconds())

		if d.Logger != nil {
			d.Logger.Info("request",
				"request_id", reqID,
				"method", method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}

		return err
	})

	// Redis client for rate limiting and health checks
	var rdb *redis.Client
	if d.Config.Auth.Enabled && d.Config.Redis.URL != "" {
		if opt, err := redis.ParseURL(d.Config.Redis.URL); err == nil {
			rdb = redis.NewClient(opt)
		}
	}

	// Health endpoints
	app.Get("/healthz", func(c *fiber.Ctx) error {
		// Shallow health: process is up
		if c.Query("deep") != "true" {
			return c.JSON(fiber.Map{"status": "ok"})
		}

		// Deep health: check DB and Redis connectivity.
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "ok"
		if err := d.Store.Pool.Ping(ctx); err != nil {
			dbStatus = "error"
		}

		redisStatus := "disabled"
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				redisStatus = "error"
			} else {
				redisStatus = "ok"
			}
		}

		status := "ok"
		if dbStatus != "ok" || redisStatus == "error" {
			status = "error"
		}

		return c.JSON(fiber.Map{
			"status": status,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	})

	// Prometheus-style metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	authMw := authMiddleware(d.Config, d.Store)
	var rateMw fiber.Handler
	if rdb != nil {
		rateMw = rateLimitMiddleware(d.Config, rdb)
	} else {
		rateMw = func(c *fiber.Ctx) error { return c.Next() }
	}

	v1 := app.Group("/v1", authMw, rateMw)
	registerV1Routes(v1)

	admin := app.Group("/admin", authMw, adminOnlyMiddleware)
	registerAdminRoutes(admin)

	return &Server{
		app:    app,
		config: d.Config,
		store:  d.Store,
		logger: d.Logger,
	}
}

func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func registerV1Routes(group fiber.Router) {
	group.Post("/tenants", createTenantHandler)
	group.Get("/tenants", listTenantsHandler)
	group.Get("/tenants/:id", getTenantHandler)
	group.Patch("/tenants/:id", updateTenantHandler)

	group.Post("/tenants/:id/categories", createCategoryHandler)
	group.Get("/tenants/:id/categories", listCategoriesHandler)
	group.Post("/tenants/:id/listings", createListingHandler)
	group.Get("/tenants/:id/listings", listListingsHandler)

	group.Post("/tenants/:id/import", importCSVHandler)
	group.Post("/tenants/:id/branding/import", brandingImportHandler)

	group.Post("/tenants/:id/publish", publishHandler)
	group.Get("/tenants/:id/jobs", tenantJobsHandler)
	group.Get("/jobs/:id", jobStatusHandler)
	group.Post("/jobs/:id/cancel", cancelJobHandler)
}

func registerAdminRoutes(group fiber.Router) {
	group.Post("/api-keys", createAPIKeyHandler)
	group.Delete("/tenants/:id", deleteTenantHandler)
}
