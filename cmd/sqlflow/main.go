// Command sqlflow plans and executes SQLFlow pipelines. It mirrors the
// teacher's cmd/snapsql layout: a kong-parsed CLI struct, a shared Context
// carrying global flags, and one Run(*Context) error method per subcommand.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/sqlflow/sqlflow"
)

// Context is the global state every subcommand's Run receives, constructed
// from CLI's top-level flags (teacher: cmd/snapsql's Context).
type Context struct {
	Log zerolog.Logger
}

// CLI is the root command tree. Config/Verbose/Quiet mirror the teacher's
// top-level flags; Run/Plan/Resume are SQLFlow's own subcommands in place of
// the teacher's Generate/Validate/Test/etc.
var CLI struct {
	Profile string `help:"Profile file path (§6.4 tier 3)." default:"sqlflow.yml"`
	Verbose bool   `help:"Enable debug-level logging." short:"v"`
	Quiet   bool   `help:"Suppress all but warning/error logging." short:"q"`

	Run    RunCmd    `cmd:"" help:"Plan and execute a pipeline."`
	Plan   PlanCmd   `cmd:"" help:"Build an execution plan and print it as JSON."`
	Resume ResumeCmd `cmd:"" help:"Resume a previously failed run from its saved state."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("sqlflow"),
		kong.Description("Plan and execute SQLFlow data pipelines."),
	)

	level := zerolog.InfoLevel
	switch {
	case CLI.Verbose:
		level = zerolog.DebugLevel
	case CLI.Quiet:
		level = zerolog.WarnLevel
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	appCtx := &Context{Log: log}

	err := kctx.Run(appCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error to the §6.5 exit code by sentinel.
func exitCodeFor(err error) int {
	switch {
	case isAny(err, sqlflow.ErrPlanning, sqlflow.ErrVariableSubstitution, sqlflow.ErrEvaluation):
		return 1
	case isAny(err, sqlflow.ErrStepExecution, sqlflow.ErrConnector, sqlflow.ErrDatabase):
		return 2
	case isAny(err, sqlflow.ErrConfigValidation):
		return 3
	case isAny(err, os.ErrNotExist, os.ErrPermission):
		return 4
	default:
		return 1
	}
}

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}

	return false
}
