package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/SaurabhDhamne/AirStore/internal/api/handlers"
	"github.com/SaurabhDhamne/AirStore/internal/api/middleware"
	"github.com/SaurabhDhamne/AirStore/internal/chatflow"
	"github.com/SaurabhDhamne/AirStore/internal/config"
	"github.com/SaurabhDhamne/AirStore/internal/gemini"
	"github.com/SaurabhDhamne/AirStore/internal/jobs"
	"github.com/SaurabhDhamne/AirStore/internal/jobs/inmemory"
	"github.com/SaurabhDhamne/AirStore/internal/logger"
	"github.com/SaurabhDhamne/AirStore/internal/pipeline"
	"github.com/SaurabhDhamne/AirStore/internal/records"
	"github.com/SaurabhDhamne/AirStore/internal/sheets"
	"github.com/SaurabhDhamne/AirStore/internal/whatsapp"
)

func main() {
	// Parse command-line flags
	var (
		port = flag.String("port", "", "HTTP server port (overrides PORT env)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Port = *port
	}

	ctx := context.Background()

	// Initialize the record store
	store, err := records.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer store.Close()

	// Initialize collaborators
	extractor, err := gemini.NewExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini extractor")
	}

	sheetsClient, err := sheets.NewClient(ctx, cfg.SpreadsheetID, cfg.GoogleCredentialsFile, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Sheets client")
	}

	waClient := whatsapp.NewClient(cfg.GraphAPIBaseURL, cfg.WhatsAppAccessToken, cfg.WhatsAppPhoneID, log)

	pipe := pipeline.New(extractor, store, sheetsClient, log)

	// Initialize job infrastructure for the chat flow
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, 5, jobStore)

	flow := chatflow.New(pipe, waClient, sheetsClient, jobStore, cfg.ScratchDir, log)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job *jobs.LedgerJob) error {
		return flow.Process(ctx, job)
	}

	log.Info().Msg("Starting chat job workers")
	if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	// Initialize handlers
	recordsHandler := handlers.NewRecordsHandler(pipe, store, log)
	webhookHandler := handlers.NewWebhookHandler(jobQueue, cfg.WhatsAppVerifyToken, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"message": "Handwritten Records API is running",
		})
	})

	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			recordsHandler.Upload(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/record/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			recordID := strings.TrimPrefix(r.URL.Path, "/record/")
			if recordID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Record ID is required")
				return
			}
			recordsHandler.GetRecord(w, r, recordID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/confirm/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			recordID := strings.TrimPrefix(r.URL.Path, "/confirm/")
			if recordID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Record ID is required")
				return
			}
			recordsHandler.Confirm(w, r, recordID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/webhook", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			webhookHandler.Verify(w, r)
		case http.MethodPost:
			webhookHandler.Receive(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight chat jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	cancelWorker()

	log.Info().Msg("Server exited")
}
