package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayarullin/finvizor/internal/universe"
	"github.com/ayarullin/finvizor/pkg/database"
	"github.com/ayarullin/finvizor/pkg/logger"
	"github.com/ayarullin/finvizor/pkg/redis"
)

// statusCmd checks connectivity and configuration
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check database, cache and configuration",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.New(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fmt.Printf("Environment: %s\n", cfg.Env)
	fmt.Printf("Schedule:    %s\n", cfg.Engine.Schedule)
	fmt.Printf("Top N:       %d\n", cfg.Engine.TopN)

	uni, err := universe.Load(cfg.Engine.UniverseFile)
	if err != nil {
		fmt.Printf("Universe:    ERROR (%v)\n", err)
	} else {
		fmt.Printf("Universe:    %d tickers from %s\n", uni.Len(), cfg.Engine.UniverseFile)
	}

	db, err := database.New(cfg)
	if err != nil {
		fmt.Printf("Database:    ERROR (%v)\n", err)
		return err
	}
	defer db.Close()

	health, err := db.HealthCheck(ctx)
	if err != nil {
		fmt.Printf("Database:    ERROR (%v)\n", err)
		return err
	}
	fmt.Printf("Database:    OK (ping %s)\n", health.ResponseTime)

	repos := newStores(db)

	tomorrow := time.Now().AddDate(0, 0, 1)
	if tickers, err := repos.selections.LoadLatest(ctx, tomorrow); err == nil && len(tickers) > 0 {
		fmt.Printf("Selection:   %v\n", tickers)
	} else {
		fmt.Println("Selection:   none yet")
	}

	if history, err := repos.history.Load(ctx); err == nil {
		if latest, err := history.Latest(); err == nil {
			fmt.Printf("Valuation:   %.2f over %d days\n", latest, history.Len())
		} else {
			fmt.Println("Valuation:   none yet")
		}
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		fmt.Printf("Redis:       ERROR (%v)\n", err)
	} else if redisClient.Enabled() {
		fmt.Println("Redis:       OK")
	} else {
		fmt.Println("Redis:       disabled")
	}

	log.Info("Status check completed")
	return nil
}
