package main // Entry point package

import (
	"context"
	"log"

	"github.com/joho/godotenv"    // loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/glacombe/pourvoirie-booking/internal/calendar"
	"github.com/glacombe/pourvoirie-booking/internal/config"
	"github.com/glacombe/pourvoirie-booking/internal/database"
	"github.com/glacombe/pourvoirie-booking/internal/handler"
	"github.com/glacombe/pourvoirie-booking/internal/middleware"
	"github.com/glacombe/pourvoirie-booking/internal/queue"
	"github.com/glacombe/pourvoirie-booking/internal/repository"
	"github.com/glacombe/pourvoirie-booking/internal/router"
	"github.com/glacombe/pourvoirie-booking/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs the access-token cache and the rate limiter.  Both
	// degrade gracefully when it is absent, so a nil client is fine.
	rdb := config.NewRedisClient()

	bookingRepo := repository.NewBookingRepo(db)
	resourceRepo := repository.NewResourceRepo(db)
	credentialRepo := repository.NewCredentialRepo(db)

	tokens := calendar.NewTokenProvider(credentialRepo, rdb, cfg.GoogleClientID, cfg.GoogleSecret, cfg.RemoteTimeout)
	gateway := calendar.NewGateway(tokens, cfg.RemoteTimeout)
	classifier := calendar.NewClassifier(cfg.FreeKeywords)
	locker := database.NewLocker(db)

	availability := service.NewAvailabilityService(bookingRepo, resourceRepo, gateway, classifier, cfg.RemoteTimeout)
	bookings := service.NewBookingService(bookingRepo, resourceRepo, availability, gateway, cfg.RemoteTimeout)
	sync := service.NewSyncService(bookingRepo, resourceRepo, gateway, classifier, locker, cfg.CalendarWindow, cfg.RemoteTimeout)

	// The activity consumer tails the broker and writes the flat audit
	// feed.  It reconnects forever on its own; a hard failure only
	// costs the feed, never bookings.
	go func() {
		if err := queue.StartActivityConsumer(); err != nil {
			log.Printf("activity consumer stopped: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.SyncInterval > 0 {
		go sync.RunLoop(ctx, cfg.SyncInterval)
	}

	e := echo.New()
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	bookingHandler := handler.NewBookingHandler(bookings, availability)
	syncHandler := handler.NewSyncHandler(sync, resourceRepo)
	publicHandler := &handler.PublicHandler{ResourceRepo: resourceRepo}

	router.RegisterRoutes(e)
	router.RegisterPublic(e, publicHandler, bookingHandler, limiter)
	router.RegisterBookings(e, bookingHandler, syncHandler, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
