package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cankoe/request-tester/internal/api"
	"github.com/cankoe/request-tester/internal/helpers"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	components, err := helpers.InitializeCommonComponents("api")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize components")
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(components.Service, components.Store)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", components.Config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Msgf("Received signal %s, shutting down API gracefully...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("API server shutdown did not complete")
	}

	components.CloseAll(context.Background())
	log.Info().Msg("API service exited gracefully")
}
