package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"synapse_server/config"
	"synapse_server/controllers"
	"synapse_server/logger"
	"synapse_server/routes"
	"synapse_server/services"
	"synapse_server/socket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.JSONLog, cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Store
	dynamoClient, err := services.InitializeDynamoDBClient(cfg.AWSRegion)
	if err != nil {
		log.Fatal("failed to initialize DynamoDB client", zap.Error(err))
	}
	dynamoService := &services.DynamoService{Client: dynamoClient, Logger: log}
	store := services.NewDynamoStore(dynamoService)

	// Realtime hub
	hub := socket.NewHub(log)
	go func() {
		if err := hub.Run(); err != nil {
			log.Error("socket server stopped", zap.Error(err))
		}
	}()
	defer hub.Close()

	// Notification channels
	notifiers := []services.Notifier{hub}
	if cfg.Email.Enabled {
		sesClient, err := services.InitializeSESClient(cfg.AWSRegion)
		if err != nil {
			log.Fatal("failed to initialize SES client", zap.Error(err))
		}
		notifiers = append(notifiers, &services.EmailNotifier{
			Client:   sesClient,
			Store:    store,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
			AppURL:   cfg.App.URL,
			Logger:   log,
		})
	}
	notifier := &services.MultiNotifier{Notifiers: notifiers, Logger: log}

	// Matching engine
	scorer := services.NewScorer(services.ScoreConfig{
		KnowledgeTagWeight: cfg.Matching.Scoring.KnowledgeTag,
		CuriosityTagWeight: cfg.Matching.Scoring.CuriosityTag,
		FacultyBonus:       cfg.Matching.Scoring.FacultyBonus,
		SameProgramPenalty: cfg.Matching.Scoring.SameProgramPenalty,
	})
	selector := &services.CandidateSelector{
		Store:          store,
		Scorer:         scorer,
		ScoreThreshold: cfg.Matching.ScoreThreshold,
		Cooldown:       cfg.Matching.Cooldown(),
		Logger:         log,
	}
	lifecycle := &services.MatchLifecycleService{
		Store:    store,
		Notifier: notifier,
		Expiry:   cfg.Matching.Expiry(),
		Logger:   log,
	}
	rematch := &services.RematchService{
		Store:      store,
		Selector:   selector,
		Lifecycle:  lifecycle,
		Logger:     log,
		RetryDelay: cfg.Matching.RetryDelay(),
		SweepDelay: cfg.Matching.SweepDelay(),
	}
	lifecycle.OnDeclined = rematch.DeferRetry

	submitLimiter := services.NewRateLimiter(cfg.RateLimit.MatchRequestsPerHour)
	retryLimiter := services.NewRateLimiter(cfg.RateLimit.RetriesPerHour)

	// Router
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}).Methods("GET")

	routes.RegisterRequestRoutes(r, &controllers.RequestController{
		Rematch:   rematch,
		Lifecycle: lifecycle,
		Store:     store,
		Limiter:   submitLimiter,
		IsAdmin:   cfg.IsAdmin,
		Logger:    log,
	})
	routes.RegisterMatchRoutes(r, &controllers.MatchController{
		Lifecycle: lifecycle,
		Store:     store,
		Logger:    log,
	})
	routes.RegisterRetryRoutes(r, &controllers.RetryController{
		Rematch: rematch,
		Store:   store,
		Limiter: retryLimiter,
		IsAdmin: cfg.IsAdmin,
		Logger:  log,
	})
	r.Handle("/socket.io/", hub.Handler())

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	log.Info("starting server", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, corsHandler); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
