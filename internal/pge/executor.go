// Package pge orchestrates a single PGE job: pre-processing, science
// algorithm execution and post-processing, all reported through one shared
// run log.
package pge

import (
	"context"
	"fmt"

	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/logger"
	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/runconfig"
)

// executorCallsite marks entries attributed to the phase dispatch loop.
const executorCallsite logger.Callsite = "executor.go:Run"

// Phase is one stage of a PGE job. Phases are composed as an ordered slice
// on the Executor, so a specialized PGE swaps or extends stages by supplying
// its own slice instead of subclassing anything.
type Phase interface {
	Name() string
	Run(ctx context.Context, e *Executor) error
}

// Executor drives one PGE job from a run configuration file.
type Executor struct {
	runConfigPath string
	strict        bool
	log           *logger.PgeLogger
	runConfig     *runconfig.RunConfig
	sasConfigPath string
	phases        []Phase
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithLogger injects an existing run log instead of having the
// pre-processor create one. The caller keeps ownership and must close it.
func WithLogger(log *logger.PgeLogger) ExecutorOption {
	return func(e *Executor) { e.log = log }
}

// WithStrictValidation makes run configuration validation reject unknown
// keys.
func WithStrictValidation() ExecutorOption {
	return func(e *Executor) { e.strict = true }
}

// WithPhases replaces the default phase sequence.
func WithPhases(phases ...Phase) ExecutorOption {
	return func(e *Executor) { e.phases = phases }
}

// DefaultPhases returns the standard pre-process, SAS, post-process
// sequence.
func DefaultPhases() []Phase {
	return []Phase{&PreProcessor{}, &SASExecution{}, &PostProcessor{}}
}

// NewExecutor creates an Executor for the run configuration at
// runConfigPath.
func NewExecutor(runConfigPath string, opts ...ExecutorOption) *Executor {
	e := &Executor{
		runConfigPath: runConfigPath,
		phases:        DefaultPhases(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Log returns the run log, or nil before the pre-processor created one.
func (e *Executor) Log() *logger.PgeLogger {
	return e.log
}

// RunConfig returns the loaded run configuration, or nil before the
// pre-processor loaded it.
func (e *Executor) RunConfig() *runconfig.RunConfig {
	return e.runConfig
}

// Run executes the phases in order, stopping at the first failure. The run
// log is not closed here; the caller owns its lifetime so the log survives
// every exit path.
func (e *Executor) Run(ctx context.Context) error {
	for _, phase := range e.phases {
		if err := e.runPhase(ctx, phase); err != nil {
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}
	}
	return nil
}

func (e *Executor) runPhase(ctx context.Context, phase Phase) error {
	logger.GetAppLogger().Debug("Running %s phase", phase.Name())

	// No marker before the pre-processor has created the log.
	if e.log != nil {
		e.log.PushCallsite(executorCallsite)
		defer e.log.PopCallsite()
	}

	return phase.Run(ctx, e)
}
