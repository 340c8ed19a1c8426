// Package server contains the HTTP handlers for the murmur API.
package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "murmur/docs" // swagger docs
	"murmur/internal/auth"
	"murmur/internal/authz"
	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/database"
	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/repository"
	"murmur/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	tokens         *auth.Issuer
	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	likeRepo       repository.LikeRepository
	userService    *service.UserService
	postService    *service.PostService
}

// NewServer connects to the database and Redis and builds a Server on top of them.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; token revocation and rate limiting are then disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	tokens, err := auth.NewIssuer(auth.Options{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  time.Duration(cfg.AccessTokenTTLMinutes) * time.Minute,
		RefreshTTL: time.Duration(cfg.RefreshTokenTTLHours) * time.Hour,
		Blacklist:  cache.NewTokenBlacklist(redisClient),
	})
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("murmur-api"),
		tokens:         tokens,
		userRepo:       repository.NewUserRepository(db),
		postRepo:       repository.NewPostRepository(db),
		likeRepo:       repository.NewLikeRepository(db),
	}
	s.userService = service.NewUserService(s.userRepo, s.tokens)
	s.postService = service.NewPostService(s.postRepo, s.likeRepo, cfg.PostsPageSize)
	return s, nil
}

// NewApp builds a Fiber app with the full middleware chain and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "murmur API",
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// errorHandler turns errors that escaped a handler into the standard JSON body.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := models.CodeInternal
		switch fe.Code {
		case fiber.StatusNotFound:
			code = models.CodeNotFound
		case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity, fiber.StatusRequestEntityTooLarge:
			code = models.CodeValidation
		case fiber.StatusTooManyRequests:
			code = models.CodeRateLimited
		}
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message, Code: code})
	}

	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "path", c.Path(), "error", err)
	return models.Respond(c, err)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Propagate request and trace ids into the user context for logging
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected browser requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  models.CodeRateLimited,
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "murmur API Metrics",
	}))
	app.Get("/swagger/*", swagger.HandlerDefault)

	api := app.Group("/api", s.Authenticate())

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", s.Guard(authz.ResourceAuthRegister, authz.ActionCreate),
		middleware.RateLimit(s.redis, 5, 10*time.Minute, "register"), s.Register)
	authRoutes.Post("/login", s.Guard(authz.ResourceAuthLogin, authz.ActionCreate),
		middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	authRoutes.Post("/refresh", s.Guard(authz.ResourceAuthRefresh, authz.ActionCreate),
		middleware.RateLimit(s.redis, 30, 5*time.Minute, "refresh"), s.Refresh)
	authRoutes.Post("/logout", s.Guard(authz.ResourceAuthLogout, authz.ActionCreate), s.Logout)

	posts := api.Group("/post")
	posts.Get("/", s.Guard(authz.ResourcePost, authz.ActionList), s.ListPosts)
	posts.Post("/", s.Guard(authz.ResourcePost, authz.ActionCreate), s.CreatePost)
	// Specific /:id/:action routes before the generic /:id routes
	posts.Post("/:id/like", s.Guard(authz.ResourcePost, authz.ActionLike), s.LikePost)
	posts.Get("/:id", s.Guard(authz.ResourcePost, authz.ActionRetrieve), s.GetPost)
	posts.Put("/:id", s.Guard(authz.ResourcePost, authz.ActionUpdate), s.UpdatePost)
	posts.Patch("/:id", s.Guard(authz.ResourcePost, authz.ActionPartialUpdate), s.UpdatePost)
	posts.Delete("/:id", s.Guard(authz.ResourcePost, authz.ActionDestroy), s.DeletePost)

	users := api.Group("/user")
	users.Get("/", s.Guard(authz.ResourceUser, authz.ActionList), s.ListUsers)
	users.Get("/me", s.Guard(authz.ResourceUser, authz.ActionRetrieve), s.GetMe)
	users.Get("/:id", s.Guard(authz.ResourceUser, authz.ActionRetrieve), s.GetUser)
	users.Patch("/:id", s.Guard(authz.ResourceUser, authz.ActionPartialUpdate), s.UpdateUser)

	// Anything else under /api has no resource class and is denied.
	api.All("/*", s.Guard("", authz.ActionRetrieve))
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now().UTC(),
	})
}

// ReadinessCheck pings the database and, when configured, Redis.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis only backs revocation and rate limiting, both of which fail open.
	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	} else if redisStatus == "unhealthy" {
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now().UTC(),
	})
}

// Authenticate resolves the Bearer access token, if any, into the request's actor.
// Requests without an Authorization header continue as anonymous; a header that
// does not carry a valid access token is rejected with TOKEN_INVALID.
func (s *Server) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Next()
		}

		scheme, token, ok := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return models.Respond(c, models.NewTokenInvalidError("Authorization header must be 'Bearer <token>'", nil))
		}

		claims, err := s.tokens.Parse(c.UserContext(), token, auth.TokenAccess)
		if err != nil {
			return models.Respond(c, err)
		}
		userID, _ := claims.UserID()

		user, err := s.userRepo.GetByID(c.UserContext(), userID)
		if err != nil {
			if models.HasCode(err, models.CodeNotFound) {
				return models.Respond(c, models.NewTokenInvalidError("User not found", nil))
			}
			return s.respondError(c, err)
		}
		if !user.IsActive {
			return models.Respond(c, models.NewUnauthenticatedError("User is inactive"))
		}

		c.Locals(localUserID, userID)
		c.Locals(localClaims, claims)
		c.SetUserContext(middleware.WithUserID(c.UserContext(), userID))
		return c.Next()
	}
}

// Guard runs the class-level policy check for a route. Object-level checks
// happen in the service once the target is loaded.
func (s *Server) Guard(class authz.ResourceClass, action authz.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := service.Authorize(actorFrom(c), class, action, nil); err != nil {
			return models.Respond(c, err)
		}
		return c.Next()
	}
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	s.app = s.NewApp()
	middleware.Logger.Info("server starting", "port", s.config.Port, "env", s.config.Env)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully stops the HTTP server and closes the database and Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			errs = append(errs, fmt.Errorf("close database: %w", cerr))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", rerr))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return errors.Join(errs...)
}
