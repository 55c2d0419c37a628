package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/pop/internal/compiler"
	"github.com/roach88/pop/internal/engine"
	"github.com/roach88/pop/internal/journal"
)

// newIDGenerator supplies transaction IDs for commands that run processes.
var newIDGenerator = func() engine.IDGenerator { return engine.UUIDv7Generator{} }

// engineFlags are shared by run and invoke.
type engineFlags struct {
	journal string
	strict  bool
}

func (f *engineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.journal, "journal", "", "SQLite journal to record transactions in (overrides POP_JOURNAL_PATH)")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "require inputs for reads and trap undeclared errors (overrides POP_STRICT_MODE)")
}

// session is a compiled spec, its engine and the optional journal.
type session struct {
	spec    *compiler.Spec
	engine  *engine.Engine
	journal *journal.Journal
	logger  *slog.Logger
}

func (s *session) Close() error {
	return s.journal.Close()
}

// openSession compiles specPath and builds an engine configured from the
// environment, with flags taking precedence.
func openSession(rootOpts *RootOptions, cmd *cobra.Command, flags *engineFlags, specPath string) (*session, error) {
	cfg := rootOpts.Config
	if cmd.Flags().Changed("strict") {
		cfg.StrictMode = flags.strict
	}
	if flags.journal != "" {
		cfg.JournalPath = flags.journal
	}

	logger := rootOpts.logger(cmd)
	spec, err := compiler.Load(specPath)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "spec invalid", err)
	}
	for _, w := range spec.Warnings {
		logger.Warn("run cycle", "path", w.Path, "message", w.Message)
	}

	s := &session{spec: spec, logger: logger}
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithStrictMode(cfg.StrictMode),
		engine.WithMaxDepth(cfg.MaxDepth),
		engine.WithMetrics(cfg.MetricsEnabled),
		engine.WithIDGenerator(newIDGenerator()),
	}
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("open journal %s", cfg.JournalPath), err)
		}
		s.journal = j
		opts = append(opts, engine.WithObserver(j))
		logger.Debug("journal opened", "path", cfg.JournalPath)
	}

	e, err := spec.NewEngine(opts...)
	if err != nil {
		_ = s.Close()
		return nil, WrapExitError(ExitFailure, "build engine", err)
	}
	s.engine = e
	return s, nil
}
