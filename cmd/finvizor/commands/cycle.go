package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayarullin/finvizor/pkg/database"
	"github.com/ayarullin/finvizor/pkg/logger"
)

// cycleCmd runs one advisor cycle and exits
var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run one advisor cycle now",
	Long: `Runs a full advisor cycle immediately: scrape both rankings,
fuse with the previous table, fetch estimates, select candidates and
rebalance the simulated portfolio.

Example:
  go run ./cmd/finvizor cycle`,
	RunE: runCycle,
}

var cycleTimeout time.Duration

func init() {
	rootCmd.AddCommand(cycleCmd)

	cycleCmd.Flags().DurationVar(&cycleTimeout, "timeout", 30*time.Minute, "cycle timeout")
}

func runCycle(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	eng, _, _, err := buildEngine(cfg, db, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	result, err := eng.RunCycle(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("advisor cycle: %w", err)
	}

	fmt.Printf("Cycle completed for %s\n", result.Date.Format("2006-01-02"))
	fmt.Printf("Selection changed: %v\n", result.Changed)
	for i, row := range result.Selected {
		fmt.Printf("  %d. %s (summary rank %d", i+1, row.Ticker, row.SummaryRank)
		if row.Estimate != nil {
			fmt.Printf(", rating %.2f", row.Estimate.Rating)
		}
		fmt.Println(")")
	}
	fmt.Printf("Net worth: %.2f (%+.2f%%)\n", result.NetWorth, result.Profitability*100)

	return nil
}
