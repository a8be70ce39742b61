package bootstrap

import (
	"strings"
	"time"

	"classifier_server/adapter/in/http"
	"classifier_server/config"
	"classifier_server/infra/middleware"
	"classifier_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	// Initialize logger
	logLevel := logger.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "classifier-api",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	// Security components need Redis
	middleware.InitTokenBlacklist(deps.Redis)
	middleware.InitAuditLogger(deps.Redis)

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		Prefork:               false,
		StrictRouting:         false,
		CaseSensitive:         false,

		ReadBufferSize:  16384,
		WriteBufferSize: 16384,

		// go-json is 2-3x faster than encoding/json for these payloads
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit: 10 * 1024 * 1024, // preview bodies can be large

		Concurrency: 256 * 1024,

		ServerHeader:             "",
		DisableDefaultDate:       true,
		DisableHeaderNormalizing: false,

		DisableKeepalive: false,

		StreamRequestBody:            true,
		DisablePreParseMultipartForm: true,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())         // 1. Panic recovery
	app.Use(middleware.RequestID())       // 2. Request ID
	app.Use(middleware.SecurityHeaders()) // 3. Security headers
	app.Use(middleware.RequestLogger())   // 4. Request logging

	// Coarse per-IP flood guard ahead of auth. The API group adds the
	// user-aware limiter on top.
	app.Use(middleware.NewRateLimiter(300, time.Minute).Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// CORS - AllowCredentials:true requires explicit origins (not "*")
	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = "" // Block all if not configured properly
			allowCredentials = false
		} else {
			allowOrigins = "http://localhost:3000,http://localhost:5173"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID,X-RateLimit-Limit,X-RateLimit-Remaining,X-RateLimit-Reset",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Health check (no auth required)
	healthHandler := http.NewHealthHandlerWithDeps(deps.DB, deps.Redis, deps.MongoDB)
	healthHandler.Register(app)

	// Development-only test endpoints (no auth, fixed test user)
	if cfg.IsDevelopment() {
		testUserID := "9f0c2f55-2d64-4a6e-b5c1-51a8a7f3d8e2"
		RegisterDevTestRoutes(app, deps, testUserID)
		logger.Info("Development test routes enabled for user: %s", testUserID)
	}

	// API routes (with auth and rate limiting)
	api := app.Group("/api/v1")

	rateLimiter := middleware.NewAdvancedRateLimiter(middleware.DefaultRateLimitConfig())
	api.Use(rateLimiter.Handler())

	api.Use(middleware.JWTAuth(cfg.JWTSecret))

	// Audit logging for sensitive actions
	api.Use(middleware.AuditMiddleware())

	// Register handlers
	classificationHandler := http.NewClassificationHandler(deps.ClassificationService)
	classificationHandler.Register(api)

	ruleHandler := http.NewRuleHandler(deps.RuleService, deps.ClassificationService)
	ruleHandler.Register(api)

	suggestionHandler := http.NewSuggestionHandler(deps.SuggestionService)
	suggestionHandler.Register(api)

	categoryHandler := http.NewCategoryHandler(deps.EmailRepo)
	categoryHandler.Register(api)

	logger.Info("API server initialized successfully")

	return app, cleanup, nil
}
