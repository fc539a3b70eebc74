package pge

import (
	"context"
	"fmt"
	"os"

	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/errorcode"
	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/logger"
	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/runconfig"
)

const preProcessorCallsite logger.Callsite = "preprocessor.go:Run"

// PreProcessor performs every step required before the science algorithm
// can start: run log creation, run configuration loading and validation,
// log configuration and working directory setup.
type PreProcessor struct{}

// Name implements Phase.
func (p *PreProcessor) Name() string { return "PreProcessor" }

// Run implements Phase.
func (p *PreProcessor) Run(ctx context.Context, e *Executor) error {
	if err := p.initializeLogger(e); err != nil {
		return err
	}

	e.log.PushCallsite(preProcessorCallsite)
	defer e.log.PopCallsite()

	if err := p.loadRunConfig(e); err != nil {
		return err
	}
	if err := p.validateRunConfig(e); err != nil {
		return err
	}
	if err := p.configureLogger(e); err != nil {
		return err
	}
	return p.setupDirectories(e)
}

// initializeLogger creates the run log unless one was injected. The log
// starts under a default name; the proper destination is not known until
// the run configuration has been parsed and validated.
func (p *PreProcessor) initializeLogger(e *Executor) error {
	if e.log == nil {
		e.log = logger.New()
	}

	return e.log.Info(p.Name(), errorcode.LogFileCreated,
		fmt.Sprintf("Log file initialized to %s", e.log.GetFileName()))
}

func (p *PreProcessor) loadRunConfig(e *Executor) error {
	if err := e.log.Info(p.Name(), errorcode.LoadingRunConfigFile,
		fmt.Sprintf("Loading RunConfig file %s", e.runConfigPath)); err != nil {
		return err
	}

	rc, err := runconfig.Load(e.runConfigPath)
	if err != nil {
		return e.log.Critical(p.Name(), errorcode.RunConfigLoadingFailed,
			fmt.Sprintf("Failed to load RunConfig file %s, reason: %s", e.runConfigPath, err))
	}

	e.runConfig = rc
	return nil
}

func (p *PreProcessor) validateRunConfig(e *Executor) error {
	path := e.runConfig.FilePath()

	if err := e.log.Info(p.Name(), errorcode.ValidatingRunConfigFile,
		fmt.Sprintf("Validating RunConfig file %s", path)); err != nil {
		return err
	}

	if err := e.runConfig.Validate(e.strict); err != nil {
		return e.log.Critical(p.Name(), errorcode.RunConfigValidationFailed,
			fmt.Sprintf("Validation of RunConfig file %s failed, reason(s): %s", path, err))
	}

	return nil
}

// configureLogger applies the settings that only became known once the run
// configuration was validated.
func (p *PreProcessor) configureLogger(e *Executor) error {
	e.log.SetErrorCodeBase(e.runConfig.ErrorCodeBase())
	e.log.SetWorkflow(e.runConfig.PgeName() + "::pge_logger.go")

	if e.runConfig.DebugSwitch() {
		logger.GetAppLogger().SetLogLevel(logger.DEBUG)
	}

	return e.log.Info(p.Name(), errorcode.LogFileInitComplete,
		"Log file configuration complete")
}

func (p *PreProcessor) setupDirectories(e *Executor) error {
	outputPath := e.runConfig.OutputProductPath()
	scratchPath := e.runConfig.ScratchPath()

	if err := e.log.Info(p.Name(), errorcode.CreatingWorkingDirectory,
		fmt.Sprintf("Creating working directories %s and %s", outputPath, scratchPath)); err != nil {
		return err
	}

	for _, dir := range []string{outputPath, scratchPath} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return e.log.Critical(p.Name(), errorcode.DirectoryCreationFailed,
				fmt.Sprintf("Failed to create directory %s, reason: %s", dir, err))
		}
	}

	return e.log.Info(p.Name(), errorcode.DirectorySetupComplete,
		"Directory setup complete")
}
