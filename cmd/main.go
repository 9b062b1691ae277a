package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mvasquez-dev/photoloom-backend/internal/app"
	"github.com/mvasquez-dev/photoloom-backend/internal/clients/redis"
	"github.com/mvasquez-dev/photoloom-backend/internal/db"
	"github.com/mvasquez-dev/photoloom-backend/internal/handlers"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/compute"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/envutil"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/localmedia"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/qdrant"
	"github.com/mvasquez-dev/photoloom-backend/internal/repos"
	"github.com/mvasquez-dev/photoloom-backend/internal/server"
	"github.com/mvasquez-dev/photoloom-backend/internal/services"
)

func main() {
	// Logger
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading configuration from main...")
	cfg := app.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	dbService, err := db.New(log)
	if err != nil {
		log.Error("Database init failed", "error", err)
		os.Exit(1)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Error("Auto migration failed", "error", err)
		os.Exit(1)
	}
	theDB := dbService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	entityRepo := repos.NewEntityRepo(theDB, log, cfg.Retry)
	versionRepo := repos.NewEntityVersionRepo(theDB, log, cfg.Retry)
	cursorRepo := repos.NewSyncCursorRepo(theDB, log, cfg.Retry)
	intelRepo := repos.NewIntelligenceRepo(theDB, log, cfg.Retry)
	jobRepo := repos.NewJobRecordRepo(theDB, log, cfg.Retry)
	faceRepo := repos.NewFaceRepo(theDB, log, cfg.Retry)
	personRepo := repos.NewPersonRepo(theDB, log, cfg.Retry)
	matchRepo := repos.NewFaceMatchRepo(theDB, log, cfg.Retry)

	// Vector stores
	log.Info("Setting up vector stores from main...")
	faceStore, err := qdrant.NewVectorStore(log, cfg.FaceStore)
	if err != nil {
		log.Error("Could not init face vector store", "error", err)
		os.Exit(1)
	}
	clipStore, err := qdrant.NewVectorStore(log, cfg.ClipStore)
	if err != nil {
		log.Error("Could not init clip vector store", "error", err)
		os.Exit(1)
	}
	siglipStore, err := qdrant.NewVectorStore(log, cfg.SiglipStore)
	if err != nil {
		log.Error("Could not init siglip vector store", "error", err)
		os.Exit(1)
	}
	stores := services.VectorStores{Faces: faceStore, Clip: clipStore, Siglip: siglipStore}

	// Compute client + media resolver
	computeClient, err := compute.NewClient(log, compute.Config{
		BaseURL:     cfg.ComputeBaseURL,
		CallbackURL: cfg.ComputeCallbackURL,
		MaxRetries:  cfg.ComputeMaxRetries,
	})
	if err != nil {
		log.Error("Could not init compute client", "error", err)
		os.Exit(1)
	}
	resolver, err := localmedia.NewResolver(cfg.MediaRoot)
	if err != nil {
		log.Error("Could not init media resolver", "error", err)
		os.Exit(1)
	}

	// Services
	log.Info("Setting up Services from main...")
	submission := services.NewSubmissionService(log, computeClient, resolver, entityRepo, intelRepo, jobRepo)
	matcher := services.NewFaceMatcher(log, cfg.Matcher, faceStore, faceRepo, personRepo, matchRepo)
	callbackRouter := services.NewCallbackRouter(log, submission, matcher, stores, intelRepo, jobRepo, faceRepo)
	reconciler := services.NewReconciler(log, cfg.Reconciler, cursorRepo, versionRepo, submission)
	reconciler.Start(ctx)

	// Redis trigger bus is optional; without it the reconciler runs on its
	// ticker alone.
	if cfg.RedisAddr != "" {
		bus, err := redis.NewTriggerBus(log, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			log.Warn("Redis trigger bus unavailable, ticker only", "error", err)
		} else {
			defer bus.Close()
			if err := bus.StartForwarder(ctx, reconciler.Trigger); err != nil {
				log.Warn("Redis trigger forwarder failed to start", "error", err)
			}
		}
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	callbacksHandler := handlers.NewCallbacksHandler(callbackRouter)
	intelligenceHandler := handlers.NewIntelligenceHandler(intelRepo, jobRepo, faceRepo, stores)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		CallbacksHandler:    callbacksHandler,
		IntelligenceHandler: intelligenceHandler,
		AllowOrigins:        cfg.AllowOrigins,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		log.Info("Server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown failed", "error", err)
	}
}
