package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/stillpoint-app/stillpoint/internal/devremote"
	"github.com/stillpoint-app/stillpoint/internal/logger"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address of the dev remote stub")
	flag.Parse()

	log := logger.NewLogger("stillpoint-devremote")

	handler := devremote.NewHandler(log)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           handler.Init(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", *addr).Msg("dev remote listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("dev remote server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("dev remote shutdown")
	}
}
