package commands

import (
	"fmt"

	"github.com/joho/godotenv"

	"github.com/ayarullin/finvizor/internal/engine"
	"github.com/ayarullin/finvizor/internal/external/finviz"
	"github.com/ayarullin/finvizor/internal/external/yahoo"
	"github.com/ayarullin/finvizor/internal/notify"
	"github.com/ayarullin/finvizor/internal/storage"
	"github.com/ayarullin/finvizor/internal/universe"
	"github.com/ayarullin/finvizor/pkg/config"
	"github.com/ayarullin/finvizor/pkg/database"
	"github.com/ayarullin/finvizor/pkg/logger"
	"github.com/ayarullin/finvizor/pkg/redis"
)

// loadConfig loads configuration, honoring the global CLI flags
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if verbose {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

// stores bundles the repositories the engine and API share
type stores struct {
	rankings   *storage.RankingRepository
	selections *storage.SelectionRepository
	ledgers    *storage.LedgerRepository
	history    *storage.HistoryRepository
	subs       *storage.SubscriberRepository
}

func newStores(db *database.DB) *stores {
	return &stores{
		rankings:   storage.NewRankingRepository(db.Pool),
		selections: storage.NewSelectionRepository(db.Pool),
		ledgers:    storage.NewLedgerRepository(db.Pool),
		history:    storage.NewHistoryRepository(db.Pool),
		subs:       storage.NewSubscriberRepository(db.Pool),
	}
}

// buildEngine wires the advisor engine with all its collaborators.
// The Yahoo client is returned separately so the API can serve
// per-ticker estimate lookups through the same cache.
func buildEngine(cfg *config.Config, db *database.DB, log *logger.Logger) (*engine.Engine, *stores, *yahoo.Client, error) {
	uni, err := universe.Load(cfg.Engine.UniverseFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load universe: %w", err)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	cache := redis.NewCache(redisClient, "finvizor")

	finvizClient := finviz.NewClient(cfg, log)
	yahooClient := yahoo.NewClient(cfg, cache, log)
	notifier := notify.NewTelegram(cfg.Telegram, log)

	repos := newStores(db)

	eng := engine.New(
		engine.Config{
			TopN:         cfg.Engine.TopN,
			InitialFunds: cfg.Engine.InitialFunds,
		},
		finvizClient,
		yahooClient,
		repos.rankings,
		repos.selections,
		repos.ledgers,
		repos.history,
		repos.subs,
		notifier,
		uni,
		log,
	)

	return eng, repos, yahooClient, nil
}
