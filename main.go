package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ranked-match-system/handlers"
	"ranked-match-system/middleware"
	"ranked-match-system/models"
	"ranked-match-system/services"
	"ranked-match-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// 🔐 GLOBAL: only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOrigins = "http://localhost:3000"
	}
	origins := strings.Split(allowedOrigins, ",")
	for i, origin := range origins {
		origins[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-Service-Token, X-Device-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.QueueEntry{},
		&models.MatchRecord{},
		&models.PlayerProfile{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Redis is optional: without it the engines fall back to pure polling.
	var notifier *services.Notifier
	if redisAddr := os.Getenv("REDIS_ADDRESS"); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal("failed to connect to redis:", err)
		}
		notifier = services.NewNotifier(rdb)
	} else {
		log.Println("⚠️  REDIS_ADDRESS not set — match notifications fall back to polling only")
	}

	profileServiceURL := os.Getenv("PROFILE_SERVICE_URL")
	if profileServiceURL == "" {
		log.Fatal("PROFILE_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("MATCH_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("MATCH_SERVICE_TOKEN environment variable not set")
	}

	queueStore := services.NewGormQueueStore(db)
	matchStore := services.NewGormMatchStore(db)
	profileStore := services.NewGormProfileStore(db)

	matchmaker := services.NewMatchmaker(queueStore, matchStore, profileStore)
	matchmaker.Notifier = notifier
	if pushURL := os.Getenv("NOTIFICATION_SERVICE_URL"); pushURL != "" {
		matchmaker.Push = services.NewPushClient(pushURL, serviceToken)
	} else {
		log.Println("⚠️  NOTIFICATION_SERVICE_URL not set — push notifications disabled")
	}

	confirmer := services.NewWinnerConfirmer(matchStore)
	confirmer.Notifier = notifier

	matchmakingService := services.NewMatchmakingService(db, matchmaker, confirmer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncWorker := workers.NewProfileSyncWorker(db, profileServiceURL, "/api/v1/public/profiles", serviceToken)
	syncWorker.Start(ctx)

	janitor := workers.NewJanitor(db)
	stopJanitor, err := janitor.Start()
	if err != nil {
		log.Fatal("failed to start janitor:", err)
	}
	defer func() {
		if err := stopJanitor(); err != nil {
			log.Printf("Error shutting down janitor: %v", err)
		}
	}()

	handlers.SetupMatchmakingRoutes(app, matchmakingService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Ranked match service running on http://localhost:%s", port)
	log.Println("✅ Profile Sync Worker running")
	log.Println("✅ Janitor running (queue reaping + match archiving)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
}
