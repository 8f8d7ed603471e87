// Package server contains the HTTP handlers and routing of the Planify API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	_ "planify/docs" // swagger docs
	"planify/internal/authz"
	"planify/internal/bootstrap"
	"planify/internal/config"
	"planify/internal/database"
	"planify/internal/middleware"
	"planify/internal/models"
	"planify/internal/password"
	"planify/internal/repository"
	"planify/internal/service"
	"planify/internal/token"
)

const (
	appName   = "Planify API"
	version   = "1.0.0"
	bodyLimit = 10 * 1024 * 1024

	contentSecurityPolicy = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self'; img-src 'self' data: https:"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus

	userRepo    repository.UserRepository
	tokens      *token.Service
	revocations *token.RevocationList
	policy      *authz.Policy
	authn       *middleware.Authenticator
	accounts    *service.AccountService
}

// NewServer connects to the database and Redis and builds a Server on top of
// them.
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// rdb may be nil; rate limiting then falls back to process memory and token
// revocation is unavailable.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Server, error) {
	tokens, err := token.NewService(token.Config{
		AccessSecret:  cfg.JWTSecret,
		AccessTTL:     cfg.AccessTokenTTL(),
		RefreshSecret: cfg.JWTRefreshSecret,
		RefreshTTL:    cfg.RefreshTokenTTL(),
		Issuer:        cfg.JWTIssuer,
		Audience:      cfg.JWTAudience,
	})
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	var revocations *token.RevocationList
	if cfg.TokenRevocation {
		revocations = token.NewRevocationList(rdb)
		if revocations == nil {
			middleware.Logger.Warn("token revocation enabled but redis is unavailable, logout stays stateless")
		}
	}

	userRepo := repository.NewUserRepository(db, cfg.DBQueryTimeout)
	hasher := password.NewHasher(cfg.BcryptCost, cfg.HashMaxConcurrency)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          rdb,
		promMiddleware: middleware.InitMetrics("planify-api"),
		userRepo:       userRepo,
		tokens:         tokens,
		revocations:    revocations,
		policy:         authz.ParsePolicy(cfg.RolePolicies),
	}
	s.authn = middleware.NewAuthenticator(tokens, userRepo, revocationChecker(revocations))
	s.accounts = service.NewAccountService(userRepo, hasher, tokens, revocationStore(revocations),
		RegistrationRoles(cfg.RegistrationRoles))

	return s, nil
}

// revocationChecker and revocationStore keep a disabled list a nil interface.
func revocationChecker(l *token.RevocationList) middleware.RevocationChecker {
	if l == nil {
		return nil
	}
	return l
}

func revocationStore(l *token.RevocationList) service.Revocations {
	if l == nil {
		return nil
	}
	return l
}

// RegistrationRoles parses a comma-separated role list, skipping unknown
// names. Admin is never self-assignable.
func RegistrationRoles(raw string) []models.Role {
	var roles []models.Role
	for _, name := range strings.Split(raw, ",") {
		r, ok := models.ParseRole(name)
		if !ok {
			if strings.TrimSpace(name) != "" {
				middleware.Logger.Warn("ignoring unknown registration role", slog.String("role", name))
			}
			continue
		}
		if r == models.RoleAdmin {
			continue
		}
		roles = append(roles, r)
	}
	return roles
}

// Accounts exposes the account service for in-process callers such as the
// admin command.
func (s *Server) Accounts() *service.AccountService {
	return s.accounts
}

// App returns the Fiber application, building it on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	app := fiber.New(fiber.Config{
		AppName:      appName,
		BodyLimit:    bodyLimit,
		ErrorHandler: models.ErrorHandler(s.config.IsDevelopment()),
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Propagates request and trace ids into the request context for logging.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New(helmet.Config{
		ContentSecurityPolicy:     contentSecurityPolicy,
		CrossOriginEmbedderPolicy: "unsafe-none",
		// The swagger UI relies on inline scripts.
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/swagger")
		},
	}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry CORS headers.
	origins := s.config.AllowedOrigins()
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		AllowCredentials: explicitOrigins(origins),
		MaxAge:           86400,
	}))
}

// explicitOrigins reports whether origins names concrete origins. Fiber
// refuses credentials for a wildcard.
func explicitOrigins(origins string) bool {
	if origins == "" {
		return false
	}
	for _, o := range strings.Split(origins, ",") {
		if strings.TrimSpace(o) == "*" {
			return false
		}
	}
	return true
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	required := s.authn.Required()

	app.Get("/", s.authn.Optional(), s.Welcome)
	api := app.Group("/api")
	api.Get("/", s.authn.Optional(), s.Welcome)
	api.Get("/swagger/*", swagger.HandlerDefault)
	api.Get("/metrics/dashboard", required, authz.RequirePermission(s.policy, authz.PermMetricsView),
		monitor.New(monitor.Config{Title: appName + " Metrics"}))

	var authLimit []fiber.Handler
	if s.config.RateLimitEnabled {
		authLimit = append(authLimit, middleware.RateLimit(s.redis, middleware.RateLimitConfig{
			Resource: "auth",
			Max:      s.config.RateLimitMax,
			Window:   s.config.RateLimitWindow,
			Policy:   middleware.FailOpen,
		}))
	}
	auth := api.Group("/auth", authLimit...)
	auth.Post("/register", s.Register)
	auth.Post("/login", s.Login)
	auth.Post("/refresh", s.Refresh)
	auth.Get("/profile", required, s.GetProfile)
	auth.Put("/profile", required, s.UpdateProfile)
	auth.Put("/change-password", required, s.ChangePassword)
	auth.Post("/logout", required, s.Logout)
	auth.Delete("/account", required, s.DeleteAccount)

	users := api.Group("/users")
	users.Get("/:userId", required, authz.RequireOwnership("userId"), s.GetUser)

	admin := api.Group("/admin")
	admin.Get("/users", required, authz.RequirePermission(s.policy, authz.PermUsersList), s.ListUsers)
	admin.Patch("/users/:userId/role", required, authz.RequirePermission(s.policy, authz.PermUsersManage), s.SetUserRole)
	admin.Patch("/users/:userId/status", required, authz.RequirePermission(s.policy, authz.PermUsersManage), s.SetUserStatus)

	app.Use(s.NotFound)
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("server starting", slog.String("port", s.config.Port), slog.String("env", s.config.Env))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.ErrorContext(ctx, "error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := database.Close(s.db); err != nil {
		middleware.Logger.ErrorContext(ctx, "error closing database", slog.String("error", err.Error()))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.ErrorContext(ctx, "error closing redis", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
