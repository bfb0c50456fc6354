package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/existflow/ironboard/internal/logger"
	"github.com/existflow/ironboard/internal/store"
	"github.com/existflow/ironboard/internal/store/memstore"
	"github.com/existflow/ironboard/server"
)

func main() {
	log := logger.NewWriter(os.Stdout, logger.ParseLevel(os.Getenv("IRONBOARD_LOG_LEVEL")))
	if err := run(log); err != nil {
		log.Error("server failed", logger.Err(err))
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pg, err := server.OpenPG(ctx, dbURL, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := pg.Close(); err != nil {
				log.Warn("error closing database", logger.Err(err))
			}
		}()

		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opts, err := redis.ParseURL(redisURL)
			if err != nil {
				opts = &redis.Options{Addr: redisURL}
			}
			rc := redis.NewClient(opts)
			defer rc.Close()

			n := server.NewNotifier(rc, os.Getenv("REDIS_CHANNEL"), log)
			pg.SetPublisher(n)
			go n.Run(ctx, pg.Refresh)
			log.Info("change notifications via redis", logger.F("addr", opts.Addr))
		}
		st = pg
	} else {
		log.Warn("DATABASE_URL not set, documents are kept in memory only")
		mem := memstore.New()
		defer mem.Close()
		st = mem
	}

	srv := server.New(st, log)
	errc := make(chan error, 1)
	go func() {
		log.Info("ironboard server starting", logger.F("port", port))
		errc <- srv.Start(":" + port)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
