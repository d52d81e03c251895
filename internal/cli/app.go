package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/stagecraft/internal/agent"
	"github.com/lucasnoah/stagecraft/internal/checkpoint"
	"github.com/lucasnoah/stagecraft/internal/config"
	"github.com/lucasnoah/stagecraft/internal/db"
	"github.com/lucasnoah/stagecraft/internal/debate"
	"github.com/lucasnoah/stagecraft/internal/handoff"
	"github.com/lucasnoah/stagecraft/internal/model"
	"github.com/lucasnoah/stagecraft/internal/orchestrator"
	"github.com/lucasnoah/stagecraft/internal/pipeline"
	"github.com/lucasnoah/stagecraft/internal/validate"
)

// app bundles the wired collaborators behind the commands.
type app struct {
	cfg         *config.PipelineConfig
	store       *pipeline.Store
	db          *db.DB
	checkpoints *checkpoint.Manager
	validator   *validate.Runner
	orch        *orchestrator.Orchestrator
}

func loadConfig(cmd *cobra.Command) (*config.PipelineConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	var cfg *config.PipelineConfig
	var err error
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %s", errs[0].Error())
	}
	return cfg, nil
}

// newApp wires the full component graph. The returned cleanup closes the
// event database.
func newApp(cmd *cobra.Command) (*app, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	p := &cfg.Pipeline

	dbPath, err := db.DefaultDBPath()
	if err != nil {
		return nil, nil, err
	}
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, nil, err
	}

	timeout, err := time.ParseDuration(p.Availability.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	models := model.FetchAvailability(ctx, http.DefaultClient, p.Availability.ManifestURL, timeout)
	cancel()
	resolver := model.NewResolver(models)

	store := pipeline.NewStore(p.ProjectDir)
	invoker := agent.NewExecInvoker(p.Agent.Command, p.Agent.Flags, p.ProjectDir)
	engine := debate.NewEngine(invoker, resolver, store, database, p, os.Stderr)
	validator := validate.NewRunner(&validate.ExecRunner{}, p.ProjectDir, p.Defaults)
	checkpoints := checkpoint.NewManager(store.StateDir(), cfg.Source)

	orch := orchestrator.New(orchestrator.Options{
		Config:      p,
		Store:       store,
		Engine:      engine,
		Validator:   validator,
		Handoff:     handoff.NewAgentGenerator(invoker, resolver),
		Checkpoints: checkpoints,
		Events:      database,
		Resolver:    resolver,
		Progress:    os.Stderr,
	})

	a := &app{
		cfg:         cfg,
		store:       store,
		db:          database,
		checkpoints: checkpoints,
		validator:   validator,
		orch:        orch,
	}
	cleanup := func() { database.Close() }
	return a, cleanup, nil
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
