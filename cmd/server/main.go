/*
main.go - Application entry point

PURPOSE:
  Starts the obligations and leave server: recurring generation, reminder
  feed and leave request validation over HTTP, plus the scheduled
  generation job.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment), parse flags
  2. Initialize logger
  3. Load the optional YAML policy file
  4. Open the SQLite store
  5. Build services, HTTP router and generation scheduler
  6. Serve until SIGINT/SIGTERM, then shut down gracefully

COMMAND-LINE FLAGS (override environment):
  -port    HTTP server port (PORT, default: 8080)
  -db      SQLite database path (DB_PATH, default: obligations.db)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the cron scheduler (waits for a running generation)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/obligations.db"
  POLICY_FILE=policy.yaml ./server -port=3000

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Cherif0104/EcosystIA-sub001/api"
	"github.com/Cherif0104/EcosystIA-sub001/config"
	"github.com/Cherif0104/EcosystIA-sub001/factory"
	"github.com/Cherif0104/EcosystIA-sub001/leave"
	"github.com/Cherif0104/EcosystIA-sub001/logger"
	"github.com/Cherif0104/EcosystIA-sub001/notify"
	"github.com/Cherif0104/EcosystIA-sub001/obligation"
	"github.com/Cherif0104/EcosystIA-sub001/recurring"
	"github.com/Cherif0104/EcosystIA-sub001/reminders"
	"github.com/Cherif0104/EcosystIA-sub001/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	logger.Init(cfg)
	log := logger.Get()
	middleware.DefaultLogger = middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log, NoColor: true})

	// Policy
	policy := factory.DefaultPolicyFile()
	if cfg.PolicyFile != "" {
		if policy, err = factory.LoadPolicyFile(cfg.PolicyFile); err != nil {
			log.WithError(err).Fatal("Failed to load policy file")
		}
		log.WithField("path", cfg.PolicyFile).Info("Policy file loaded")
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer store.Close()

	// Services
	obligations := store.Obligations()
	generator := recurring.NewGenerationService(obligations, log)
	feeds := reminders.NewFeedService(obligations, log)
	feeds.DefaultDays, feeds.TenantDefaults = policy.ReminderDefaults()
	leaveRequests := leave.NewRequestService(store.Leave(), policy.LeavePolicy(), log)

	handler := api.NewHandler(obligation.NewService(obligations, log), generator, feeds, leaveRequests, log)

	// Scheduler
	var digest api.DigestPusher
	if cfg.DigestEnabled() {
		sender, err := notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize Telegram sender")
		}
		digest = notify.NewPusher(feeds, sender, log)
		log.Info("Reminder digest enabled")
	}
	scheduler := api.NewGenerationScheduler(generator, digest, cfg.GenerationCron, log)
	if err := scheduler.Start(); err != nil {
		log.WithError(err).Fatal("Invalid GENERATION_CRON")
	}

	// Create router
	opts := api.DefaultRouterOptions()
	opts.RateLimitRPS = cfg.RateLimitRPS
	opts.RateLimitBurst = cfg.RateLimitBurst
	router := api.NewRouter(handler, opts)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server stopped")
}
