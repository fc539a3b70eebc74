package pge

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/errorcode"
	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/logger"
	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/metadata"
	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/runutils"
	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/staging"
)

const postProcessorCallsite logger.Callsite = "postprocessor.go:Run"

// PostProcessor finalizes a job after the science algorithm has completed:
// QA, catalog and ISO metadata, product staging and log relocation.
type PostProcessor struct{}

// Name implements Phase.
func (p *PostProcessor) Name() string { return "PostProcessor" }

// Run implements Phase.
func (p *PostProcessor) Run(ctx context.Context, e *Executor) error {
	e.log.PushCallsite(postProcessorCallsite)
	defer e.log.PopCallsite()

	if err := p.runQAExecutable(ctx, e); err != nil {
		return err
	}

	stager, err := staging.NewStager(e.runConfig.OutputProductFilePatterns())
	if err != nil {
		// Validation compiled the same patterns already, so this only
		// trips with a custom phase list that skipped the pre-processor.
		return e.log.Critical(p.Name(), errorcode.OutputStagingFailed,
			fmt.Sprintf("Invalid output product patterns, reason: %s", err))
	}

	record, err := p.createCatalogMetadata(e, stager)
	if err != nil {
		return err
	}

	if err := p.renderISOMetadata(e, record); err != nil {
		return err
	}

	if err := p.stageOutputFiles(e, stager); err != nil {
		return err
	}

	return p.relocateLog(e)
}

// runQAExecutable runs the QA program against the science algorithm's
// outputs when enabled. Like the SAS program itself, the QA program shares
// the run log file.
func (p *PostProcessor) runQAExecutable(ctx context.Context, e *Executor) error {
	if !e.runConfig.QAEnabled() {
		return e.log.Debug(p.Name(), errorcode.QASASProgramDisabled,
			"SAS QA executable is disabled, skipping")
	}

	commandLine := buildCommandLine(e.runConfig.QAProgramPath(),
		e.runConfig.QAProgramOptions(), e.sasConfigPath)

	if err := e.log.Debug(p.Name(), errorcode.QAExeCommandLine,
		fmt.Sprintf("QA EXE command line: %s", strings.Join(commandLine, " "))); err != nil {
		return err
	}

	if err := e.log.Info(p.Name(), errorcode.QASASProgramStarting,
		"Starting SAS QA executable"); err != nil {
		return err
	}
	if err := e.log.Flush(); err != nil {
		return err
	}

	elapsed, err := runutils.TimeAndExecute(ctx, e.log, commandLine, e.log.GetFileName())
	if err != nil {
		return e.log.Critical(p.Name(), errorcode.QASASProgramFailed,
			fmt.Sprintf("SAS QA executable failed, reason: %s", err))
	}

	if err := e.log.Info(p.Name(), errorcode.QASASProgramCompleted,
		"SAS QA executable complete"); err != nil {
		return err
	}

	return e.log.LogOneMetric(p.Name(), "qa.elapsed_seconds", elapsed, 1)
}

// createCatalogMetadata records provenance for the products found in the
// scratch directory. The catalog is written before staging so a staging
// failure still leaves the catalog behind for triage.
func (p *PostProcessor) createCatalogMetadata(e *Executor, stager *staging.Stager) (*metadata.CatalogRecord, error) {
	matches, err := stager.Match(e.runConfig.ScratchPath())
	if err != nil {
		return nil, e.log.Critical(p.Name(), errorcode.CatalogMetadataCreationFailed,
			fmt.Sprintf("Failed to create catalog metadata, reason: %s", err))
	}

	products, err := metadata.BuildProducts(matches)
	if err != nil {
		return nil, e.log.Critical(p.Name(), errorcode.CatalogMetadataCreationFailed,
			fmt.Sprintf("Failed to create catalog metadata, reason: %s", err))
	}

	record := metadata.NewCatalogBuilder().Build(e.runConfig, products)

	catalogPath, err := record.WriteCatalog(e.runConfig.OutputProductPath())
	if err != nil {
		return nil, e.log.Critical(p.Name(), errorcode.CatalogMetadataCreationFailed,
			fmt.Sprintf("Failed to create catalog metadata, reason: %s", err))
	}

	if err := e.log.Info(p.Name(), errorcode.CreatingCatalogMetadata,
		fmt.Sprintf("Catalog metadata created at %s", catalogPath)); err != nil {
		return nil, err
	}

	return record, nil
}

func (p *PostProcessor) renderISOMetadata(e *Executor, record *metadata.CatalogRecord) error {
	templatePath := e.runConfig.ISOTemplatePath()
	if templatePath == "" {
		return e.log.Debug(p.Name(), errorcode.ISOMetadataRenderingSkipped,
			"No ISO metadata template configured, skipping ISO metadata rendering")
	}

	if err := e.log.Info(p.Name(), errorcode.RenderingISOMetadata,
		fmt.Sprintf("Rendering ISO metadata from template %s", templatePath)); err != nil {
		return err
	}

	outPath := filepath.Join(e.runConfig.OutputProductPath(),
		e.runConfig.ProductIdentifier()+".iso.xml")
	if err := metadata.RenderISO(templatePath, record, outPath); err != nil {
		return e.log.Critical(p.Name(), errorcode.ISOMetadataRenderingFailed,
			fmt.Sprintf("Failed to render ISO metadata, reason: %s", err))
	}

	return nil
}

func (p *PostProcessor) stageOutputFiles(e *Executor, stager *staging.Stager) error {
	outputPath := e.runConfig.OutputProductPath()

	if err := e.log.Info(p.Name(), errorcode.StagingOutputFiles,
		fmt.Sprintf("Staging output products to %s", outputPath)); err != nil {
		return err
	}

	staged, err := stager.Stage(e.runConfig.ScratchPath(), outputPath)
	if err != nil {
		return e.log.Critical(p.Name(), errorcode.OutputStagingFailed,
			fmt.Sprintf("Failed to stage output products, reason: %s", err))
	}

	if len(staged) == 0 {
		return e.log.Warning(p.Name(), errorcode.NoOutputProductsFound,
			"No output products found in the scratch directory")
	}

	return nil
}

// relocateLog moves the run log into the output product directory so it
// ships with the products, then appends the severity summary.
func (p *PostProcessor) relocateLog(e *Executor) error {
	destination := filepath.Join(e.runConfig.OutputProductPath(),
		filepath.Base(e.log.GetFileName()))

	if err := e.log.Info(p.Name(), errorcode.MovingLogFile,
		fmt.Sprintf("Moving log file to %s", destination)); err != nil {
		return err
	}

	if err := e.log.Move(destination); err != nil {
		return e.log.Critical(p.Name(), errorcode.FileMoveFailed,
			fmt.Sprintf("Failed to move log file to %s, reason: %s", destination, err))
	}

	return e.log.WriteLogSummary()
}
