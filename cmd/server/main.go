package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"
	"github.com/rs/xid"

	config "github.com/maheshrc27/xscheduler/configs"
	"github.com/maheshrc27/xscheduler/internal/api/handlers"
	"github.com/maheshrc27/xscheduler/internal/api/middleware"
	"github.com/maheshrc27/xscheduler/internal/cache"
	job "github.com/maheshrc27/xscheduler/internal/jobs"
	"github.com/maheshrc27/xscheduler/internal/oauth1"
	"github.com/maheshrc27/xscheduler/internal/queue"
	"github.com/maheshrc27/xscheduler/internal/repository"
	"github.com/maheshrc27/xscheduler/internal/service"
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
	if err := repository.EnsureSchema(context.Background(), db); err != nil {
		log.Fatalf("Failed to prepare database schema: %v", err)
	}

	redisClient, err := cache.Connect(cfg.RedisURI)
	if err != nil {
		log.Fatalf("Invalid Redis configuration: %v", err)
	}
	defer redisClient.Close()

	redisConn, err := cache.AsynqOpt(cfg.RedisURI)
	if err != nil {
		log.Fatalf("Invalid Redis configuration: %v", err)
	}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error("unhandled request error", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "something went wrong"})
		},
	})

	app.Use(requestid.New(requestid.Config{
		Generator: func() string { return xid.New().String() },
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, " + middleware.TriggerTokenHeader,
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	attemptRepo := repository.NewPublishAttemptRepository(db)
	settingsRepo := repository.NewXApiSettingsRepository(db)
	apiKeyRepo := repository.NewApiKeyRepository(db)

	xService := service.NewXService(
		cfg.Publisher.XAPIBaseURL,
		&http.Client{Timeout: cfg.Publisher.PublishTimeout},
		oauth1.NewSigner(),
	)
	credentialService, err := service.NewCredentialService(cfg.SecretKey, cfg.Publisher.PublishTimeout, settingsRepo, userRepo, xService)
	if err != nil {
		log.Fatalf("Invalid SECRET_KEY: %v", err)
	}
	postService := service.NewPostService(postRepo, attemptRepo, credentialService, xService,
		queue.NewScheduler(client),
		service.PostOptions{
			PublishTimeout: cfg.Publisher.PublishTimeout,
			LeaseTTL:       cfg.Publisher.LeaseTTL,
			Concurrency:    cfg.Publisher.TriggerConcurrency,
			BatchSize:      cfg.Publisher.TriggerBatchSize,
		})
	authService := service.NewAuthService(*cfg, userRepo)
	userService := service.NewUserService(userRepo)
	apiKeyService := service.NewApiKeyService(apiKeyRepo)

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)

	health := handlers.NewHealthHandler(map[string]handlers.Check{
		"postgres": db.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})
	app.Get("/health", health.Health)

	auth := handlers.NewAuthHandler(*cfg, authService, cache.NewRedisStateStore(redisClient))
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)

	// The trigger carries its own token and sits outside the user session group.
	trigger := handlers.NewTriggerHandler(postService)
	app.Get("/api/trigger-scheduled-posts", trigger.Usage)
	app.Post("/api/trigger-scheduled-posts", authMiddleware.TriggerAuth(), trigger.TriggerScheduledPosts)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)

	settings := handlers.NewSettingsHandler(credentialService)
	api.Get("/settings/info", settings.GetSettingsInfo)
	api.Post("/settings/update", settings.UpdateSettings)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveAPIKey)

	post := handlers.NewPostHandler(postService)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/update", post.UpdatePost)
	api.Post("/posts/remove", post.RemovePost)
	api.Post("/posts/retry", post.RetryPost)
	api.Get("/posts/history", post.PostHistory)

	twitter := handlers.NewTwitterHandler(postService, credentialService)
	api.Post("/twitter/post", twitter.PublishNow)
	api.Post("/twitter/verify", twitter.Verify)

	// cron jobs
	batches := cfg.Publisher.TriggerBatchSize/cfg.Publisher.TriggerConcurrency + 1
	publishJob := job.NewPublishJob(postService, time.Duration(batches)*cfg.Publisher.LeaseTTL)

	c := cron.New()
	if err := c.AddFunc(fmt.Sprintf("@every %s", cfg.Publisher.TriggerInterval), publishJob.Run); err != nil {
		log.Fatalf("Invalid TRIGGER_INTERVAL: %v", err)
	}
	c.Start()
	defer c.Stop()

	//queue
	queueW := queue.NewQueue(postService)
	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: cfg.Publisher.TriggerConcurrency,
	})

	go func() {
		log.Println("Starting the Asynq server...")
		if err := server.Run(queueW.Mux()); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on http://localhost:%s", cfg.Port)

	gracefulShutdown(app, server)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, server *asynq.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		log.Printf("Failed to shut down server: %v", err)
	}
	server.Shutdown()

	log.Println("Server shutdown complete.")
}
