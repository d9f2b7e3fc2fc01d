package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/ayarullin/finvizor/internal/engine"
	"github.com/ayarullin/finvizor/pkg/logger"
)

// AdvisorJob runs the full advisor cycle on trading days, after the
// US market close.
type AdvisorJob struct {
	engine   *engine.Engine
	schedule string
	logger   *logger.Logger
}

// NewAdvisorJob creates the daily advisor job
func NewAdvisorJob(eng *engine.Engine, schedule string, log *logger.Logger) *AdvisorJob {
	return &AdvisorJob{
		engine:   eng,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *AdvisorJob) Name() string {
	return "advisor_cycle"
}

// Schedule returns the configured cron expression
func (j *AdvisorJob) Schedule() string {
	return j.schedule
}

// Run executes one advisor cycle
func (j *AdvisorJob) Run(ctx context.Context) error {
	result, err := j.engine.RunCycle(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("advisor cycle: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"selected":  len(result.Selected),
		"changed":   result.Changed,
		"net_worth": result.NetWorth,
	}).Info("Scheduled advisor cycle finished")

	return nil
}
