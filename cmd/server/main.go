package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	_ "net/http/pprof" // Register pprof handlers
	"os"
	"os/signal"
	"syscall"
	"time"

	"image-engine/internal/action"
	"image-engine/internal/config"
	"image-engine/internal/core/service"
	"image-engine/internal/decode"
	logutil "image-engine/internal/logging"
	"image-engine/internal/store"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		// no logger yet
		panic(err)
	}

	flag.StringVar(&cfg.HTTPAddr, "http_addr", cfg.HTTPAddr, "HTTP Server address")
	flag.IntVar(&cfg.CacheMaxBytes, "max_bytes", cfg.CacheMaxBytes, "Memory cache budget in bytes")
	flag.IntVar(&cfg.LogLevel, "log_level", cfg.LogLevel, "Log verbosity (0-3)")
	flag.StringVar(&cfg.DecodeSource, "decode_source", cfg.DecodeSource, "Provenance reported by the synthetic decoder")
	development := flag.Bool("development", false, "Use the development log encoder")
	flag.Parse()

	logger, err := logutil.NewLogger(cfg.LogLevel, *development)
	if err != nil {
		panic(err)
	}
	setupLog := logger.WithName("setup")

	if err := cfg.Validate(); err != nil {
		logutil.Fatal(setupLog, err, "Invalid configuration")
	}
	setupLog.Info("Configuration loaded", "config", cfg.String())

	cache, err := store.New(cfg.CacheMaxBytes, store.WithLogger(logger.WithName("store")))
	if err != nil {
		logutil.Fatal(setupLog, err, "Failed to create image cache")
	}
	from, _ := cfg.Provenance()
	decoder := decode.NewSynthetic(from, logger.WithName("decode"))
	svc := service.New(cache, decoder, logger.WithName("service"))

	srv := &server{
		cache:   cache,
		svc:     svc,
		decoder: decoder,
		arena:   action.NewArena(),
		log:     logger.WithName("http"),
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		setupLog.Info("Server listening", "addr", cfg.HTTPAddr, "maxBytes", cfg.CacheMaxBytes)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logutil.Fatal(setupLog, err, "Server failed")
	}
	setupLog.Info("Server stopped")
}
