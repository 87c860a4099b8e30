package helpers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cankoe/request-tester/internal/config"
	"github.com/cankoe/request-tester/internal/database"
	"github.com/cankoe/request-tester/internal/executor"
	"github.com/cankoe/request-tester/internal/history"
	"github.com/cankoe/request-tester/internal/proxy"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type AppComponents struct {
	Config   *config.Config
	Store    history.Store
	Executor *executor.Executor
	Service  *proxy.Service
}

func InitializeCommonComponents(serviceName string) (*AppComponents, error) {
	cfg, err := config.LoadConfig("config/config.yaml", os.Args[1:])
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	ConfigureLogger(cfg)
	log.Info().Str("store_driver", cfg.Store.Driver).
		Msgf("Starting %s service with log level %s...", serviceName, zerolog.GlobalLevel().String())

	store, err := OpenStore(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	exec := executor.New(executor.Options{
		Timeout:            cfg.ExecutorTimeout(),
		InsecureSkipVerify: cfg.Executor.InsecureSkipVerify,
	})

	return &AppComponents{
		Config:   cfg,
		Store:    store,
		Executor: exec,
		Service:  proxy.NewService(exec, store),
	}, nil
}

// ConfigureLogger applies the configured level and output format to the
// global logger.
func ConfigureLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Msgf("Invalid log level '%s', defaulting to info", cfg.Log.Level)
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// OpenStore connects the history backend selected by store.driver.
func OpenStore(ctx context.Context, cfg *config.Config) (history.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		db, err := database.NewSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite: %w", err)
		}
		store, err := history.NewSQLiteStore(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to prepare SQLite history store: %w", err)
		}
		return store, nil

	case config.DriverMongo:
		client, err := database.NewMongoClient(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		store, err := history.NewMongoStore(ctx, client, client.Database(cfg.Mongo.Database))
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("failed to prepare MongoDB history store: %w", err)
		}
		return store, nil

	case config.DriverRedis:
		client, err := database.NewRedisClient(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		return history.NewRedisStore(client), nil
	}

	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func (c *AppComponents) CloseAll(ctx context.Context) {
	if err := c.Store.Close(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to close history store")
	}
}
