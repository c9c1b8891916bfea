// Command starter opens a single case against a pool and waits for the
// final case record. Useful for demos and smoke tests against a running
// worker.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/ahrav/pool-patrol/internal/api"
	"github.com/ahrav/pool-patrol/internal/config"
	"github.com/ahrav/pool-patrol/internal/domain"
	"github.com/ahrav/pool-patrol/internal/logging"
	"github.com/ahrav/pool-patrol/internal/worker"
	"github.com/ahrav/pool-patrol/internal/workflow"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration (defaults apply when empty)")
	caseID := flag.String("case", "CASE-DEMO-001", "case identifier")
	poolID := flag.String("pool", "POOL-001", "pool to audit")
	members := flag.String("members", "", "comma-separated member ids (empty audits the full roster)")
	wait := flag.Bool("wait", true, "block until the case closes and print the final record")
	flag.Parse()

	logger, err := logging.New(true)
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

	var memberIDs []string
	if *members != "" {
		memberIDs = strings.Split(*members, ",")
	}

	input := worker.CaseInputFromConfig(cfg, *caseID, *poolID, memberIDs)

	ctx := context.Background()
	run, err := tc.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        api.WorkflowID(*caseID),
		TaskQueue: cfg.Temporal.TaskQueue,
	}, workflow.CaseWorkflow, input)
	if err != nil {
		logger.Fatal("case start failed", zap.Error(err))
	}

	logger.Info("case started",
		zap.String("case_id", *caseID),
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()))

	if !*wait {
		return
	}

	var final domain.Case
	if err := run.Get(ctx, &final); err != nil {
		logger.Fatal("case run failed", zap.Error(err))
	}

	out, err := json.MarshalIndent(final, "", "  ")
	if err != nil {
		logger.Fatal("encode final case", zap.Error(err))
	}
	fmt.Println(string(out))
}
