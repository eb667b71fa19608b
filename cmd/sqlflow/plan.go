package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sqlflow/sqlflow"
	"github.com/sqlflow/sqlflow/internal/planner"
)

// PlanCmd builds an execution plan and prints it as JSON without running
// it (spec §6.1's plan JSON shape), for inspection. `run` takes the
// pipeline JSON, not this plan output.
type PlanCmd struct {
	Pipeline string `arg:"" help:"Path to a parsed pipeline JSON file."`
	Set      string `help:"Variable overrides as JSON or k=v,k=v (spec §6.4 tier 1)."`
	Pretty   bool   `help:"Pretty-print the JSON output."`
}

func (cmd *PlanCmd) Run(appCtx *Context) error {
	pl, err := loadPipeline(cmd.Pipeline)
	if err != nil {
		return err
	}

	cfg, err := sqlflow.LoadConfig(CLI.Profile)
	if err != nil {
		return err
	}

	flags := runFlags{Set: cmd.Set}

	store, err := flags.store(cfg)
	if err != nil {
		return err
	}

	result, err := planner.New().Build(pl, store)
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		appCtx.Log.Warn().Msg(w)
	}

	var data []byte
	if cmd.Pretty {
		data, err = json.MarshalIndent(result.Plan, "", "  ")
	} else {
		data, err = json.Marshal(result.Plan)
	}

	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}

	os.Stdout.Write(data)
	os.Stdout.WriteString("\n")

	return nil
}
