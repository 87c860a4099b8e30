package main

import (
	"context"
	"os"
	"time"

	"github.com/cankoe/request-tester/internal/config"
	"github.com/cankoe/request-tester/internal/helpers"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadConfig("config/config.yaml", os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	helpers.ConfigureLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	store, err := helpers.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store_driver", cfg.Store.Driver).Msg("History store connection failed")
	}
	defer store.Close(context.Background())

	if err := store.Ping(ctx); err != nil {
		log.Fatal().Err(err).Str("store_driver", cfg.Store.Driver).Msg("History store ping failed")
	}

	recent, err := store.List(ctx, 1, 0)
	if err != nil {
		log.Fatal().Err(err).Msg("History store query failed")
	}
	log.Info().Str("store_driver", cfg.Store.Driver).Int("sampled", len(recent)).
		Msg("History store connected successfully!")
}
