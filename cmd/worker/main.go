// Command worker runs the Temporal worker hosting the case workflow and
// all activity implementations.
package main

import (
	"flag"
	"os"

	"go.temporal.io/sdk/client"
	sdkworker "go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/ahrav/pool-patrol/internal/config"
	"github.com/ahrav/pool-patrol/internal/domain"
	"github.com/ahrav/pool-patrol/internal/logging"
	"github.com/ahrav/pool-patrol/internal/store"
	"github.com/ahrav/pool-patrol/internal/worker"
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

	deps := worker.InitializeDeps(cfg)
	seedDemoPool(deps.Store)

	w := sdkworker.New(tc, cfg.Temporal.TaskQueue, sdkworker.Options{})
	worker.RegisterAll(w, cfg, deps)

	logger.Info("worker starting",
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.String("temporal", cfg.Temporal.HostPort))
	if err := w.Run(sdkworker.InterruptCh()); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
}

// seedDemoPool loads a small fixture roster so cases can be started
// against POOL-001 without an external directory service.
func seedDemoPool(s *store.Memory) {
	dayShift := domain.Shift{
		Name: "Day",
		Schedule: []domain.DaySchedule{
			{Day: "Mon", Start: "08:00", End: "16:00"},
			{Day: "Tue", Start: "08:00", End: "16:00"},
			{Day: "Wed", Start: "08:00", End: "16:00"},
			{Day: "Thu", Start: "08:00", End: "16:00"},
			{Day: "Fri", Start: "08:00", End: "16:00"},
		},
	}
	nightShift := domain.Shift{
		Name: "Night",
		Schedule: []domain.DaySchedule{
			{Day: "Mon", Start: "22:00", End: "06:00"},
			{Day: "Tue", Start: "22:00", End: "06:00"},
			{Day: "Wed", Start: "22:00", End: "06:00"},
			{Day: "Thu", Start: "22:00", End: "06:00"},
		},
	}

	s.SeedPool(&domain.Pool{
		ID:             "POOL-001",
		WorkSite:       "Riverside Plant",
		WorkSiteCoords: domain.Coordinates{Lat: 47.6062, Lng: -122.3321},
		Capacity:       6,
		Members: []domain.Member{
			{
				ID:          "MBR-001",
				Name:        "Ana Torres",
				Email:       "ana.torres@example.com",
				HomeAddress: "14 Cedar Way, Kirkland",
				HomeCoords:  domain.Coordinates{Lat: 47.6815, Lng: -122.2087},
				Shift:       dayShift,
			},
			{
				ID:          "MBR-002",
				Name:        "Ben Okafor",
				Email:       "ben.okafor@example.com",
				HomeAddress: "88 Birch St, Renton",
				HomeCoords:  domain.Coordinates{Lat: 47.4829, Lng: -122.2171},
				Shift:       dayShift,
			},
			{
				ID:          "MBR-003",
				Name:        "Carla Nguyen",
				Email:       "carla.nguyen@example.com",
				HomeAddress: "5 Alder Ct, Tacoma",
				HomeCoords:  domain.Coordinates{Lat: 47.2529, Lng: -122.4443},
				Shift:       nightShift,
			},
			{
				ID:          "MBR-004",
				Name:        "Dev Sharma",
				Email:       "dev.sharma@example.com",
				HomeAddress: "210 Larch Ave, Everett",
				HomeCoords:  domain.Coordinates{Lat: 47.9790, Lng: -122.2021},
				Shift:       dayShift,
			},
		},
	})
}
