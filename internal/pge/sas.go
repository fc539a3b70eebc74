package pge

import (
	"context"
	"fmt"
	"strings"

	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/errorcode"
	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/logger"
	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/runutils"
)

const sasCallsite logger.Callsite = "sas.go:Run"

// SASExecution runs the science algorithm as a subprocess that appends to
// the shared run log file.
type SASExecution struct{}

// Name implements Phase.
func (s *SASExecution) Name() string { return "SASExecution" }

// Run implements Phase.
func (s *SASExecution) Run(ctx context.Context, e *Executor) error {
	e.log.PushCallsite(sasCallsite)
	defer e.log.PopCallsite()

	sasConfigPath, err := s.isolateSASConfig(e)
	if err != nil {
		return err
	}
	e.sasConfigPath = sasConfigPath

	commandLine := buildCommandLine(e.runConfig.SASProgramPath(),
		e.runConfig.SASProgramOptions(), sasConfigPath)

	if err := e.log.Debug(s.Name(), errorcode.SASExeCommandLine,
		fmt.Sprintf("SAS EXE command line: %s", strings.Join(commandLine, " "))); err != nil {
		return err
	}

	// Flush before the subprocess starts so the shared log file stays time
	// ordered; the SAS program appends to the same file.
	if err := e.log.Flush(); err != nil {
		return err
	}

	if err := e.log.Info(s.Name(), errorcode.SASProgramStarting,
		"Starting SAS executable"); err != nil {
		return err
	}
	if err := e.log.Flush(); err != nil {
		return err
	}

	elapsed, err := runutils.TimeAndExecute(ctx, e.log, commandLine, e.log.GetFileName())
	if err != nil {
		return e.log.Critical(s.Name(), errorcode.SASProgramFailed,
			fmt.Sprintf("SAS executable failed, reason: %s", err))
	}

	if err := e.log.Info(s.Name(), errorcode.SASProgramCompleted,
		"SAS executable complete"); err != nil {
		return err
	}

	return e.log.LogOneMetric(s.Name(), "sas.elapsed_seconds", elapsed, 1)
}

// isolateSASConfig writes the science algorithm's portion of the run
// configuration to its own file in the scratch directory, so the subprocess
// never sees wrapper-level settings.
func (s *SASExecution) isolateSASConfig(e *Executor) (string, error) {
	sasConfigPath, err := e.runConfig.IsolateSASConfig(e.runConfig.ScratchPath())
	if err != nil {
		return "", e.log.Critical(s.Name(), errorcode.SASConfigCreationFailed,
			fmt.Sprintf("Failed to create SAS config file, reason: %s", err))
	}

	if err := e.log.Info(s.Name(), errorcode.CreatedSASConfig,
		fmt.Sprintf("SAS RunConfig created at %s", sasConfigPath)); err != nil {
		return "", err
	}

	return sasConfigPath, nil
}

// buildCommandLine assembles an argv: program path, configured options,
// then the config file path when there is one.
func buildCommandLine(programPath string, options []string, configPath string) []string {
	commandLine := make([]string, 0, len(options)+2)
	commandLine = append(commandLine, programPath)
	commandLine = append(commandLine, options...)
	if configPath != "" {
		commandLine = append(commandLine, configPath)
	}
	return commandLine
}
