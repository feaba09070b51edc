package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/api/handlers"
	"github.com/postpilot/postpilot/internal/api/middleware"
	job "github.com/postpilot/postpilot/internal/jobs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/publisher"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/scheduler"
	"github.com/postpilot/postpilot/internal/service"
	"github.com/robfig/cron"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	postingHistoryRepo := repository.NewPostingHistoryRepository(db)
	apiKeyRepository := repository.NewApiKeyRepository(db)
	tempConnectionRepo := repository.NewTempConnectionRepository(db)

	linkedinOAuth := oauth2.Config{
		ClientID:     cfg.LinkedInClientID,
		ClientSecret: cfg.LinkedInClientSecret,
		RedirectURL:  cfg.LinkedInRedirectURI,
		Endpoint:     linkedin.Endpoint,
	}
	credManager := publisher.NewCredentialManager(socialAccountRepo, []byte(cfg.SecretKey), linkedinOAuth)

	registry := publisher.NewRegistry()
	registry.Register(models.PlatformLinkedIn,
		publisher.NewLinkedInPublisher(credManager, cfg.Scheduler.PublishTimeout, cfg.Scheduler.DegradeCarousel))

	authService := service.NewAuthService(*cfg, userRepo)
	userService := service.NewUserService(userRepo)
	r2Service := service.NewR2Service(*cfg)
	assetService := service.NewAssetService(*r2Service)
	postService := service.NewPostService(postRepo, postingHistoryRepo, registry)
	platformService := service.NewPlatformService(*cfg, socialAccountRepo)
	linkedinService := service.NewLinkedInService(*cfg, socialAccountRepo, tempConnectionRepo)
	apiKeyService := service.NewApiKeyService(apiKeyRepository)

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)

	platform := handlers.NewPlatformHandler(platformService, linkedinService, *cfg)
	app.Get("/auth/:platform", platform.AddSocialAccount)
	app.Get("/auth/:platform/callback", platform.CallbackHandler)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveAPIKey)

	assets := handlers.NewAssetsHandler(assetService)
	api.Post("/assets/upload", assets.UploadAssets)

	post := handlers.NewPostHandler(postService)
	api.Post("/posts/create", post.CreatePost)
	api.Post("/posts/now", post.PostNow)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/history", post.PostHistory)
	api.Post("/posts/remove", post.RemovePost)

	// social accounts api routes
	api.Get("/accounts", platform.ListSocialAccounts)
	api.Post("/accounts/complete", platform.CompleteConnection)
	api.Post("/accounts/remove", platform.DeleteSocialAccount)

	// publish scheduler
	engine := scheduler.New(postRepo, postingHistoryRepo, registry, scheduler.NewClock(), scheduler.Config{
		PollInterval: cfg.Scheduler.PollInterval,
		Lookahead:    cfg.Scheduler.Lookahead,
		StaleAfter:   cfg.Scheduler.StaleAfter,
	})
	engine.Start()

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, credManager)
	cleanupJob := job.NewCleanupJob(postingHistoryRepo, tempConnectionRepo)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.AddFunc("@every 00h10m00s", cleanupJob.CleanupTempConnections)
	c.AddFunc("@every 24h00m00s", cleanupJob.CleanupHistory)
	c.Start()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, engine, c, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, engine *scheduler.Engine, c *cron.Cron, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	c.Stop()
	engine.Stop()

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
