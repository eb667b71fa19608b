package main

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sqlflow/sqlflow"
	"github.com/sqlflow/sqlflow/internal/connector"
	"github.com/sqlflow/sqlflow/internal/executor"
	"github.com/sqlflow/sqlflow/internal/observability"
	"github.com/sqlflow/sqlflow/internal/sqlengine"
	"github.com/sqlflow/sqlflow/internal/variable"
	"github.com/sqlflow/sqlflow/internal/watermark"
)

// runFlags are the flags shared by RunCmd and ResumeCmd: everything needed
// to wire an ExecutionContext beyond the plan/pipeline itself.
type runFlags struct {
	Database        string `help:"Named entry under the profile's databases: section to connect to." default:"default"`
	Driver          string `help:"Override the database driver (postgres|mysql|sqlite3)."`
	DSN             string `help:"Override the database connection string."`
	Parallel        int    `help:"Worker pool size; 0 means the logical CPU count." default:"0"`
	ContinueOnError bool   `help:"Continue past a failed step instead of stopping the run." name:"continue-on-error"`
	Set             string `help:"Variable overrides as JSON or k=v,k=v (spec §6.4 tier 1)."`
	Watermarks      string `help:"Path to the watermark store file." default:".sqlflow-watermarks.json"`
	StateOut        string `help:"Where to persist run state if the run fails, for 'resume'." default:".sqlflow-state.json"`
}

// wiring bundles everything runFlags resolves to.
type wiring struct {
	cfg        *sqlflow.Config
	engine     *sqlengine.Engine
	registry   *connector.Registry
	watermarks *watermark.Store
	sink       *observability.Sink
	scheduler  *executor.Scheduler
}

func (f *runFlags) wire(ctx context.Context, profilePath string, log zerolog.Logger) (*wiring, error) {
	cfg, err := sqlflow.LoadConfig(profilePath)
	if err != nil {
		return nil, err
	}

	driver, dsn := f.Driver, f.DSN

	if driver == "" || dsn == "" {
		db, ok := cfg.Databases[f.Database]
		if !ok && (driver == "" || dsn == "") {
			return nil, fmt.Errorf("%w: no database named %q in profile and no --driver/--dsn override given", sqlflow.ErrConfigValidation, f.Database)
		}

		if driver == "" {
			driver = db.Driver
		}

		if dsn == "" {
			dsn = db.Connection
		}
	}

	timeout := time.Duration(cfg.Query.Timeout) * time.Second

	engine, err := sqlengine.Open(ctx, driver, dsn, timeout)
	if err != nil {
		return nil, err
	}

	watermarks, err := watermark.NewFileStore(f.Watermarks)
	if err != nil {
		return nil, err
	}

	sink := observability.NewSink(log, observability.AlertSinkFunc(func(a observability.Alert) {
		log.Warn().Str("alert", a.Kind).Str("component", a.Component).Msg(a.Message)
	}))

	parallel := f.Parallel
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}

	scheduler := executor.NewScheduler(parallel)
	if f.ContinueOnError {
		scheduler.Policy = executor.PolicyContinueOnError
	}

	return &wiring{
		cfg:        cfg,
		engine:     engine,
		registry:   connector.NewRegistry(),
		watermarks: watermarks,
		sink:       sink,
		scheduler:  scheduler,
	}, nil
}

// store builds the §6.4 variable store for a run: profile + environment
// populated by Config.PopulateStore, then CLI overrides layered on top at
// the highest tier. SET statements are layered in by the planner itself
// during flattening, from the parsed pipeline's own Set steps.
func (f *runFlags) store(cfg *sqlflow.Config) (*variable.Store, error) {
	store := variable.NewStore()
	cfg.PopulateStore(store)

	overrides, err := parseOverrides(f.Set)
	if err != nil {
		return nil, err
	}

	for name, value := range overrides {
		store.Set(variable.TierCLI, name, variable.String(value))
	}

	return store, nil
}

// parseOverrides accepts either a JSON object or a comma-separated k=v list
// (spec §6.4 "Command-line overrides (JSON or k=v,k=v form)").
func parseOverrides(raw string) (map[string]string, error) {
	out := map[string]string{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}

	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var asJSON map[string]string
		if err := json.Unmarshal([]byte(trimmed), &asJSON); err != nil {
			return nil, fmt.Errorf("%w: parsing --set JSON: %v", sqlflow.ErrConfigValidation, err)
		}

		return asJSON, nil
	}

	for _, pair := range strings.Split(trimmed, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("%w: --set entry %q is not in k=v form", sqlflow.ErrConfigValidation, pair)
		}

		out[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	return out, nil
}

func (w *wiring) executionContext(runID, pipelineName string, store *variable.Store) *executor.ExecutionContext {
	return &executor.ExecutionContext{
		RunID:        runID,
		PipelineName: pipelineName,
		Store:        store,
		Connectors:   w.registry,
		Engine:       w.engine,
		Watermarks:   w.watermarks,
		Events:       w.sink,
		Sources:      executor.NewSourceRegistry(),
	}
}

func (w *wiring) Close() error {
	return w.engine.Close()
}
