package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayarullin/finvizor/internal/api"
	"github.com/ayarullin/finvizor/internal/api/handlers"
	"github.com/ayarullin/finvizor/internal/scheduler"
	"github.com/ayarullin/finvizor/internal/scheduler/jobs"
	"github.com/ayarullin/finvizor/pkg/database"
	"github.com/ayarullin/finvizor/pkg/logger"
)

// serveCmd runs the API server and the daily advisor schedule
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and the daily advisor schedule",
	Long: `Starts the HTTP API and schedules the advisor cycle.

Endpoints:
  GET    /health                     - Health check
  GET    /api/v1/ranking             - Latest composite ranking
  GET    /api/v1/ranking/{ticker}    - One ticker's row with estimate
  GET    /api/v1/selection           - Latest candidate selection
  GET    /api/v1/portfolio           - Simulated portfolio state
  GET    /api/v1/history             - Valuation history, range profitability
  GET    /api/v1/subscribers         - Active notification subscribers
  POST   /api/v1/subscribers         - Subscribe a Telegram chat
  DELETE /api/v1/subscribers/{chat_id} - Unsubscribe a chat
  GET    /api/v1/jobs                - Scheduled job statistics
  POST   /api/v1/jobs/{name}/run     - Trigger a job now
  POST   /api/v1/cycle               - Trigger an advisor cycle now

Example:
  go run ./cmd/finvizor serve
  go run ./cmd/finvizor serve --port 8087`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API server port (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != "" {
		cfg.Port = servePort
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	log.Info("Connected to database")

	eng, repos, yahooClient, err := buildEngine(cfg, db, log)
	if err != nil {
		return err
	}

	sched := scheduler.New(log)
	if err := sched.AddJob(jobs.NewAdvisorJob(eng, cfg.Engine.Schedule, log)); err != nil {
		return fmt.Errorf("schedule advisor job: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	advisorHandler := handlers.NewAdvisorHandler(eng,
		repos.rankings, repos.selections, repos.ledgers, repos.history,
		repos.subs, yahooClient, log)
	jobsHandler := handlers.NewJobsHandler(sched, log)
	router := api.NewRouter(advisorHandler, jobsHandler, log)
	server := api.New(cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", cfg.Port)
	fmt.Printf("Advisor cycle scheduled at %q\n", cfg.Engine.Schedule)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
