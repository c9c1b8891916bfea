// Command api serves the HTTP control surface: starting cases, signalling
// replies and decisions, and querying live case state.
package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/ahrav/pool-patrol/internal/api"
	"github.com/ahrav/pool-patrol/internal/config"
	"github.com/ahrav/pool-patrol/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration (defaults apply when empty)")
	development := flag.Bool("dev", false, "enable development logging")
	flag.Parse()

	logger, err := logging.New(*development)
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatal("configuration load failed", zap.Error(err))
		}
	} else {
		cfg.ApplyEnv()
	}

	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logging.NewAdapter(logger),
	})
	if err != nil {
		logger.Fatal("temporal client dial failed", zap.Error(err))
	}
	defer tc.Close()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewServer(tc, cfg, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("api listening", zap.String("addr", cfg.HTTP.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("api server stopped", zap.Error(err))
	}
}
