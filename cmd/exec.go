package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"

	"accreditation-system/config"
	"accreditation-system/internal/handlers"
	"accreditation-system/internal/operator"
	"accreditation-system/internal/store"
	"accreditation-system/monitoring"
	"accreditation-system/security"
	"accreditation-system/services"
	"accreditation-system/utils"

	_ "accreditation-system/migrations"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub
	pn := pubnub.NewPubNub(newPubNubConfig(cfg))

	// Initialize the participant store and the room broadcast hub
	participantStore := store.NewPocketBaseStore(app)
	hub := services.NewHub(services.NewPubNubPublisher(pn, cfg.ReconnectDelay))

	// Each station subscribes with its own client so leaving a room never
	// disturbs another desk's subscription.
	sessionCfg := services.SessionConfig{
		SuccessResetDelay: cfg.SuccessResetDelay,
		ResultResetDelay:  cfg.ResultResetDelay,
	}
	stations := services.NewStationManager(participantStore, sessionCfg, func() services.RoomFeed {
		return services.NewPubNubFeed(pubnub.NewPubNub(newPubNubConfig(cfg)))
	})

	// Initialize services
	importService := services.NewImportService(participantStore, redisClient, services.ImportConfig{
		Aliases:     services.DefaultColumnAliases(),
		Required:    services.DefaultRequiredFields(),
		ProgressTTL: cfg.ImportProgressTTL,
	})
	paymentService := services.NewPaymentService(participantStore)

	// Initialize handlers
	participantHandler := handlers.NewParticipantHandler(participantStore)
	importHandler := handlers.NewImportHandler(importService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	stationHandler := handlers.NewStationHandler(stations)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	if cfg.EnableMetrics {
		monitoring.NewMonitor(redisClient)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Operator console: metrics and read-only reports on a separate port
	limiter := security.NewRateLimiter(redisClient, 60, time.Minute)
	operatorServer := operator.NewServer(participantStore, limiter, cfg.OperatorPort)
	go func() {
		if err := operatorServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Operator server stopped: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		operatorServer.Shutdown(shutdownCtx)
		stations.CloseAll()
	}()

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		syncActiveEventsToRedis(app, redisClient)

		// Participant endpoints
		e.Router.GET("/api/v1/events/{eventId}/participants", participantHandler.ListParticipants)
		e.Router.POST("/api/v1/events/{eventId}/participants", participantHandler.CreateParticipant)
		e.Router.GET("/api/v1/participants/{participantId}", participantHandler.GetParticipant)
		e.Router.POST("/api/v1/participants/{participantId}/accredit", participantHandler.Accredit)

		// Import endpoints
		e.Router.POST("/api/v1/events/{eventId}/participants/import", importHandler.Import)
		e.Router.GET("/api/v1/imports/{jobId}", importHandler.Progress)

		// Payment endpoints
		e.Router.POST("/api/v1/participants/{participantId}/payment/complete", paymentHandler.CompletePayment)
		e.Router.PUT("/api/v1/participants/{participantId}/price", paymentHandler.SetPrice)
		e.Router.POST("/api/v1/participants/{participantId}/reissue", paymentHandler.ReissueEntry)

		// Station endpoints
		e.Router.POST("/api/v1/stations/{stationId}/join", stationHandler.Join)
		e.Router.POST("/api/v1/stations/{stationId}/search", stationHandler.Search)
		e.Router.POST("/api/v1/stations/{stationId}/confirm", stationHandler.Confirm)
		e.Router.POST("/api/v1/stations/{stationId}/retry", stationHandler.Retry)
		e.Router.POST("/api/v1/stations/{stationId}/reset", stationHandler.Reset)
		e.Router.POST("/api/v1/stations/{stationId}/leave", stationHandler.Leave)
		e.Router.GET("/api/v1/stations/{stationId}", stationHandler.State)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		setupRecordHooks(app, redisClient, hub)

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

func newPubNubConfig(cfg *config.Config) *pubnub.Config {
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey
	pnConfig.PNReconnectionPolicy = pubnub.PNLinearPolicy
	pnConfig.MaximumReconnectionRetries = cfg.ReconnectRetries
	return pnConfig
}

func syncActiveEventsToRedis(app *pocketbase.PocketBase, redisClient *redis.Client) {
	ctx := context.Background()

	var records []dbx.NullStringMap
	if err := app.DB().NewQuery(
		"SELECT id FROM events WHERE status = 'active'",
	).All(&records); err != nil {
		log.Printf("Error fetching active events: %v", err)
		return
	}

	redisClient.Del(ctx, "active_events")

	if len(records) > 0 {
		var eventIDs []interface{}
		for _, record := range records {
			if id := record["id"].String; id != "" {
				eventIDs = append(eventIDs, id)
			}
		}

		if len(eventIDs) > 0 {
			redisClient.SAdd(ctx, "active_events", eventIDs...)
			log.Printf("Synced %d active events to Redis", len(eventIDs))
		}
	}
}

// setupRecordHooks is the single broadcast point: every participant mutation,
// whatever path wrote it, is published to the event's room from here.
func setupRecordHooks(app *pocketbase.PocketBase, redisClient *redis.Client, hub *services.Hub) {
	app.OnRecordAfterCreateSuccess("participants").BindFunc(func(e *core.RecordEvent) error {
		hub.PublishCreated(store.ParticipantFromRecord(e.Record))
		return e.Next()
	})

	app.OnRecordAfterUpdateSuccess("participants").BindFunc(func(e *core.RecordEvent) error {
		p := store.ParticipantFromRecord(e.Record)
		hub.PublishUpdated(p)

		// Mirror accreditation flips into the per-event counter the monitor
		// scrapes.
		if p.Accredited && !e.Record.Original().GetBool("accredited") {
			key := fmt.Sprintf("accredited:count:%s", p.EventID)
			if err := redisClient.Incr(context.Background(), key).Err(); err != nil {
				slog.Error("Failed to bump accredited counter", "eventID", p.EventID, "error", err)
			}
		}
		return e.Next()
	})

	app.OnRecordAfterCreateSuccess("events").BindFunc(func(e *core.RecordEvent) error {
		if e.Record.GetString("status") == "active" {
			if err := redisClient.SAdd(context.Background(), "active_events", e.Record.Id).Err(); err != nil {
				slog.Error("Failed to add new active event to Redis", "eventID", e.Record.Id, "error", err)
			}
		}
		return e.Next()
	})

	app.OnRecordAfterUpdateSuccess("events").BindFunc(func(e *core.RecordEvent) error {
		ctx := context.Background()
		eventID := e.Record.Id
		if e.Record.GetString("status") == "active" {
			if err := redisClient.SAdd(ctx, "active_events", eventID).Err(); err != nil {
				slog.Error("Failed to add active event to Redis", "eventID", eventID, "error", err)
			}
		} else {
			if err := redisClient.SRem(ctx, "active_events", eventID).Err(); err != nil {
				slog.Error("Failed to remove non-active event from Redis", "eventID", eventID, "error", err)
			}
		}
		return e.Next()
	})

	app.OnRecordAfterDeleteSuccess("events").BindFunc(func(e *core.RecordEvent) error {
		clearEventState(redisClient, e.Record.Id)
		return e.Next()
	})
}

// clearEventState drops the per-event redis state once the event record is
// gone: the accredited counter, the active_events membership, and the gauge
// series the monitor exports from it.
func clearEventState(redisClient *redis.Client, eventID string) {
	ctx := context.Background()
	if err := redisClient.Del(ctx, fmt.Sprintf("accredited:count:%s", eventID)).Err(); err != nil {
		slog.Error("Failed to drop accredited counter", "eventID", eventID, "error", err)
	}
	if err := redisClient.SRem(ctx, "active_events", eventID).Err(); err != nil {
		slog.Error("Failed to remove deleted event from Redis", "eventID", eventID, "error", err)
	}
	monitoring.ForgetEvent(eventID)
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
