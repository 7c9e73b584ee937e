package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"duel-game-system/game"
	"duel-game-system/handlers"
	"duel-game-system/middleware"
	"duel-game-system/models"
	"duel-game-system/services"
	"duel-game-system/utils"
	"duel-game-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	rules, err := loadRules()
	if err != nil {
		log.Fatal("invalid duel rules:", err)
	}

	app := fiber.New(fiber.Config{
		AppName:   "duel-game-system",
		BodyLimit: 64 * 1024,
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed, no exceptions
	app.Use(middleware.GatewayAuthMiddleware(os.Getenv("GAME_SERVICE_TOKEN")))

	allowedOrigins := utils.SplitCSV(os.Getenv("ALLOWED_ORIGINS"))
	if len(allowedOrigins) == 0 {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOrigins = []string{"http://localhost:3000"}
	}
	allowedOriginsString := strings.Join(allowedOrigins, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
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
		&models.Player{},
		&models.PlayerStats{},
		&models.Room{},
		&models.RoomParticipant{},
		&models.Move{},
		&models.RoundResult{},
		&models.MatchConclusion{},
		&models.BadgeType{},
		&models.PlayerBadge{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	var events services.EventPublisher = services.NoopPublisher{}
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		pub, err := services.NewNatsPublisher(natsURL, utils.GetEnvDefault("NATS_SUBJECT_PREFIX", "duel"))
		if err != nil {
			log.Fatal("failed to connect to NATS:", err)
		}
		defer pub.Close()
		events = pub
	} else {
		log.Println("⚠️  NATS_URL not set, match events are not published")
	}

	var archive utils.Archiver
	if cfg, ok := utils.ArchiveConfigFromEnv(); ok {
		s3Archive, err := utils.NewS3Archive(context.Background(), cfg)
		if err != nil {
			log.Fatal("failed to initialize replay archive:", err)
		}
		archive = s3Archive
	}

	playerService := services.NewPlayerService(db)
	badgeService := services.NewBadgeService(db)
	if err := badgeService.SeedBadgeTypes(); err != nil {
		log.Fatal("failed to seed badges:", err)
	}
	statsService := services.NewStatsService(db, badgeService)
	roomService := services.NewRoomService(db, rules, events)
	matchService := services.NewMatchService(db, rules, game.NewOpponent(nil, rules.MaxBullets), events, statsService, archive)
	// runs after the scheduler stops, so no sweep starts an upload past this point
	defer func() {
		log.Println("Waiting for replay uploads...")
		matchService.WaitUploads()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := services.StartScheduler(matchService, roomService, services.DefaultSchedulerConfig)
	if err != nil {
		log.Fatal("failed to start scheduler:", err)
	}
	defer func() {
		if err := sched.Shutdown(); err != nil {
			log.Printf("Scheduler shutdown error: %v", err)
		}
	}()

	go workers.PollConclusions(ctx, statsService, 10*time.Second, 100)

	handlers.SetupPlayerRoutes(app, playerService, statsService, badgeService)
	handlers.SetupRoomRoutes(app, roomService, playerService)
	handlers.SetupMatchRoutes(app, matchService, playerService)
	handlers.SetupLeaderboardRoutes(app, statsService)

	port := utils.GetEnvDefault("PORT", "5200")
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Printf("✅ Rules: first to %d, %d bullets max, %s per round after a %s lead-in, timeout policy %s",
		rules.WinThreshold, rules.MaxBullets, rules.RoundTimeout, rules.RoundLeadIn, rules.TimeoutPolicy)
	log.Println("✅ Round timeout sweep and conclusion polling running")
	log.Println("✅ GatewayAuthMiddleware enforced globally: all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

func loadRules() (game.Config, error) {
	policy, err := game.ParseTimeoutPolicy(os.Getenv("DUEL_TIMEOUT_POLICY"))
	if err != nil {
		return game.Config{}, err
	}
	rules := game.Config{
		WinThreshold:  utils.GetEnvInt("DUEL_WIN_THRESHOLD", game.DefaultWinThreshold),
		MaxBullets:    utils.GetEnvInt("DUEL_MAX_BULLETS", game.DefaultMaxBullets),
		RoundTimeout:  utils.GetEnvDuration("DUEL_ROUND_TIMEOUT", game.DefaultRoundTimeout),
		RoundLeadIn:   utils.GetEnvDuration("DUEL_ROUND_LEAD_IN", game.DefaultRoundLeadIn),
		TimeoutPolicy: policy,
	}
	return rules, rules.Validate()
}
