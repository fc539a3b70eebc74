package pge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/logger"
	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/metadata"
)

// testConfig describes the run configuration written for an executor test.
type testConfig struct {
	outputDir   string
	scratchDir  string
	programPath string
	programArgs []string
	patterns    []string
	isoTemplate string
	qaPath      string
	qaArgs      []string
}

func writeTestRunConfig(t *testing.T, path string, cfg testConfig) {
	t.Helper()

	var b strings.Builder
	b.WriteString("RunConfig:\n")
	b.WriteString("  Name: test_base_pge_config\n")
	b.WriteString("  Groups:\n")
	b.WriteString("    PGE:\n")
	b.WriteString("      PGENameGroup:\n")
	b.WriteString("        PGEName: TEST_BASE_PGE\n")
	b.WriteString("      InputFilesGroup:\n")
	b.WriteString("        InputFilePaths:\n")
	b.WriteString("          - input/test_file.dat\n")
	b.WriteString("      ProductPathGroup:\n")
	fmt.Fprintf(&b, "        OutputProductPath: %s\n", cfg.outputDir)
	fmt.Fprintf(&b, "        ScratchPath: %s\n", cfg.scratchDir)
	b.WriteString("        ProductIdentifier: TEST_PRODUCT\n")
	if len(cfg.patterns) > 0 {
		b.WriteString("        OutputProductFilePatterns:\n")
		for _, pattern := range cfg.patterns {
			fmt.Fprintf(&b, "          - \"%s\"\n", pattern)
		}
	}
	b.WriteString("      PrimaryExecutable:\n")
	if cfg.programPath != "" {
		fmt.Fprintf(&b, "        ProgramPath: %s\n", cfg.programPath)
	}
	if len(cfg.programArgs) > 0 {
		b.WriteString("        ProgramOptions:\n")
		for _, arg := range cfg.programArgs {
			fmt.Fprintf(&b, "          - \"%s\"\n", arg)
		}
	}
	if cfg.isoTemplate != "" {
		fmt.Fprintf(&b, "        IsoTemplatePath: %s\n", cfg.isoTemplate)
	}
	if cfg.qaPath != "" {
		b.WriteString("      QAExecutable:\n")
		b.WriteString("        Enabled: true\n")
		fmt.Fprintf(&b, "        ProgramPath: %s\n", cfg.qaPath)
		if len(cfg.qaArgs) > 0 {
			b.WriteString("        ProgramOptions:\n")
			for _, arg := range cfg.qaArgs {
				fmt.Fprintf(&b, "          - \"%s\"\n", arg)
			}
		}
	}
	b.WriteString("    SAS:\n")
	b.WriteString("      algorithm:\n")
	b.WriteString("        name: test_sas\n")

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("failed to write run config: %v", err)
	}
}

func mustExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}

func TestNewExecutor_Defaults(t *testing.T) {
	e := NewExecutor("config.yaml")

	if e.strict {
		t.Error("strict should default to false")
	}
	if e.log != nil {
		t.Error("log should be nil until the pre-processor creates one")
	}

	want := []string{"PreProcessor", "SASExecution", "PostProcessor"}
	if len(e.phases) != len(want) {
		t.Fatalf("got %d default phases, want %d", len(e.phases), len(want))
	}
	for i, phase := range e.phases {
		if phase.Name() != want[i] {
			t.Errorf("phase %d = %s, want %s", i, phase.Name(), want[i])
		}
	}
}

func TestExecutor_EndToEnd(t *testing.T) {
	baseDir := t.TempDir()
	outputDir := filepath.Join(baseDir, "outputs")
	scratchDir := filepath.Join(baseDir, "scratch")

	// Seed the scratch directory with a product the SAS would have written.
	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		t.Fatalf("failed to create scratch dir: %v", err)
	}
	productContent := []byte("fake science product data")
	if err := os.WriteFile(filepath.Join(scratchDir, "test_product.tif"), productContent, 0644); err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}

	isoTemplate := filepath.Join(baseDir, "iso_template.xml")
	if err := os.WriteFile(isoTemplate, []byte("<id>{{.ProductIdentifier}}</id>"), 0644); err != nil {
		t.Fatalf("failed to write ISO template: %v", err)
	}

	configPath := filepath.Join(baseDir, "test_base_pge_config.yaml")
	writeTestRunConfig(t, configPath, testConfig{
		outputDir:   outputDir,
		scratchDir:  scratchDir,
		programPath: "/bin/echo",
		programArgs: []string{"hello world"},
		patterns:    []string{"*.tif"},
		isoTemplate: isoTemplate,
		qaPath:      "/bin/echo",
		qaArgs:      []string{"qa done"},
	})

	logPath := filepath.Join(baseDir, "pge_test.log")
	log := logger.New(logger.WithLogFilename(logPath))
	e := NewExecutor(configPath, WithLogger(log), WithStrictValidation())

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if e.RunConfig() == nil {
		t.Fatal("run config should be loaded after Run")
	}
	if e.Log() != log {
		t.Fatal("injected logger should be kept")
	}

	// Directories from the run configuration were created.
	mustExist(t, outputDir)
	mustExist(t, scratchDir)

	// The SAS config was isolated into the scratch directory, named after
	// the run config file.
	sasConfigPath := filepath.Join(scratchDir, "test_base_pge_config_sas.yaml")
	mustExist(t, sasConfigPath)

	// The log moved into the output directory and the old path is gone.
	movedLog := filepath.Join(outputDir, "pge_test.log")
	mustExist(t, movedLog)
	if _, err := os.Stat(logPath); !os.IsNotExist(err) {
		t.Error("log should no longer exist at its original path")
	}
	if e.Log().GetFileName() != movedLog {
		t.Errorf("GetFileName() = %s, want %s", e.Log().GetFileName(), movedLog)
	}

	if n := log.GetCriticalCount(); n != 0 {
		t.Errorf("critical count = %d, want 0", n)
	}
	if n := log.GetWarningCount(); n != 0 {
		t.Errorf("warning count = %d, want 0", n)
	}

	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(movedLog)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	content := string(data)

	for _, want := range []string{
		"Log file initialized to",
		"Loading RunConfig file",
		"Validating RunConfig file",
		"Log file configuration complete",
		"Directory setup complete",
		"SAS RunConfig created at",
		"SAS EXE command line:",
		"Starting SAS executable",
		"hello world",
		"SAS executable complete",
		"sas.elapsed_seconds",
		"Starting SAS QA executable",
		"qa done",
		"SAS QA executable complete",
		"qa.elapsed_seconds",
		"Catalog metadata created at",
		"Rendering ISO metadata from template",
		"Staging output products to",
		"Moving log file to",
		"overall.log_messages.info",
		"TEST_BASE_PGE::pge_logger.go",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("log should contain %q", want)
		}
	}

	// Subprocess output lands between its start and completion entries.
	idxStart := strings.Index(content, "Starting SAS executable")
	idxHello := strings.Index(content, "hello world")
	idxDone := strings.Index(content, "SAS executable complete")
	if !(idxStart < idxHello && idxHello < idxDone) {
		t.Errorf("SAS output out of order: start=%d output=%d done=%d", idxStart, idxHello, idxDone)
	}

	// Metric attribution through the callsite markers: the phase metric
	// reaches the dispatch loop's marker, the runner metric the phase's.
	for _, line := range strings.Split(content, "\n") {
		if strings.Contains(line, "sas.elapsed_seconds") && !strings.Contains(line, "executor.go:Run") {
			t.Errorf("sas.elapsed_seconds should be attributed to the dispatch loop, got %q", line)
		}
		if strings.Contains(line, "RunUtils") && !strings.Contains(line, "go:Run") {
			t.Errorf("runner metric should be attributed to a phase marker, got %q", line)
		}
	}

	// Staged product arrived intact.
	stagedProduct := filepath.Join(outputDir, "test_product.tif")
	mustExist(t, stagedProduct)
	staged, err := os.ReadFile(stagedProduct)
	if err != nil {
		t.Fatalf("failed to read staged product: %v", err)
	}
	if string(staged) != string(productContent) {
		t.Error("staged product content differs from the scratch original")
	}

	// Catalog metadata records the product.
	catalogData, err := os.ReadFile(filepath.Join(outputDir, "TEST_PRODUCT.catalog.json"))
	if err != nil {
		t.Fatalf("failed to read catalog: %v", err)
	}
	var record metadata.CatalogRecord
	if err := json.Unmarshal(catalogData, &record); err != nil {
		t.Fatalf("catalog is not valid JSON: %v", err)
	}
	if record.PGEName != "TEST_BASE_PGE" {
		t.Errorf("catalog PGEName = %s, want TEST_BASE_PGE", record.PGEName)
	}
	if record.ErrorCodeBase != 900000 || record.CompletionCode != 900000 {
		t.Errorf("catalog codes = %d/%d, want 900000/900000", record.ErrorCodeBase, record.CompletionCode)
	}
	if len(record.OutputProducts) != 1 || record.OutputProducts[0].FileName != "test_product.tif" {
		t.Errorf("catalog products = %+v, want one test_product.tif entry", record.OutputProducts)
	}

	// Rendered ISO metadata.
	isoData, err := os.ReadFile(filepath.Join(outputDir, "TEST_PRODUCT.iso.xml"))
	if err != nil {
		t.Fatalf("failed to read ISO metadata: %v", err)
	}
	if string(isoData) != "<id>TEST_PRODUCT</id>" {
		t.Errorf("ISO metadata = %q, want rendered template", isoData)
	}
}

func TestExecutor_CreatesOwnLogger(t *testing.T) {
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("failed to change working directory: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })

	baseDir := t.TempDir()
	outputDir := filepath.Join(baseDir, "outputs")
	scratchDir := filepath.Join(baseDir, "scratch")

	configPath := filepath.Join(baseDir, "config.yaml")
	writeTestRunConfig(t, configPath, testConfig{
		outputDir:   outputDir,
		scratchDir:  scratchDir,
		programPath: "/bin/echo",
		programArgs: []string{"hello world"},
	})

	e := NewExecutor(configPath)
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	log := e.Log()
	if log == nil {
		t.Fatal("pre-processor should have created a logger")
	}
	defer log.Close()

	// The self-created log was moved into the output directory too.
	finalPath := log.GetFileName()
	if filepath.Dir(finalPath) != outputDir {
		t.Errorf("final log path = %s, want it inside %s", finalPath, outputDir)
	}
	mustExist(t, finalPath)
}

func TestExecutor_MissingRunConfig(t *testing.T) {
	baseDir := t.TempDir()
	logPath := filepath.Join(baseDir, "pge_test.log")
	log := logger.New(logger.WithLogFilename(logPath))
	defer log.Close()

	e := NewExecutor(filepath.Join(baseDir, "no_such_config.yaml"), WithLogger(log))

	err := e.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for missing run config")
	}
	if !strings.Contains(err.Error(), "PreProcessor phase failed") {
		t.Errorf("error should name the failing phase, got %v", err)
	}

	var critical *logger.CriticalError
	if !errors.As(err, &critical) {
		t.Fatalf("expected a CriticalError, got %v", err)
	}
	if !strings.Contains(critical.Description, "Failed to load RunConfig file") {
		t.Errorf("unexpected critical description: %s", critical.Description)
	}

	if n := log.GetCriticalCount(); n != 1 {
		t.Errorf("critical count = %d, want 1", n)
	}

	// The critical entry was durably written before the error unwound.
	mustExist(t, logPath)
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if !strings.Contains(string(data), "Failed to load RunConfig file") {
		t.Error("critical entry should be on disk before the error returns")
	}
}

func TestExecutor_ValidationFailure(t *testing.T) {
	baseDir := t.TempDir()

	configPath := filepath.Join(baseDir, "config.yaml")
	writeTestRunConfig(t, configPath, testConfig{
		outputDir:  filepath.Join(baseDir, "outputs"),
		scratchDir: filepath.Join(baseDir, "scratch"),
		// programPath deliberately missing
	})

	log := logger.New(logger.WithLogFilename(filepath.Join(baseDir, "pge_test.log")))
	defer log.Close()

	e := NewExecutor(configPath, WithLogger(log))

	err := e.Run(context.Background())
	if err == nil {
		t.Fatal("expected validation failure")
	}

	var critical *logger.CriticalError
	if !errors.As(err, &critical) {
		t.Fatalf("expected a CriticalError, got %v", err)
	}
	if !strings.Contains(critical.Description, "Validation of RunConfig file") {
		t.Errorf("unexpected critical description: %s", critical.Description)
	}
	if !strings.Contains(critical.Description, "ProgramPath") {
		t.Errorf("description should name the failing field, got %s", critical.Description)
	}
}

func TestExecutor_SASFailure(t *testing.T) {
	baseDir := t.TempDir()
	outputDir := filepath.Join(baseDir, "outputs")
	scratchDir := filepath.Join(baseDir, "scratch")

	configPath := filepath.Join(baseDir, "config.yaml")
	writeTestRunConfig(t, configPath, testConfig{
		outputDir:   outputDir,
		scratchDir:  scratchDir,
		programPath: "/bin/false",
	})

	logPath := filepath.Join(baseDir, "pge_test.log")
	log := logger.New(logger.WithLogFilename(logPath))
	defer log.Close()

	e := NewExecutor(configPath, WithLogger(log))

	err := e.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for failing SAS executable")
	}
	if !strings.Contains(err.Error(), "SASExecution phase failed") {
		t.Errorf("error should name the failing phase, got %v", err)
	}

	var critical *logger.CriticalError
	if !errors.As(err, &critical) {
		t.Fatalf("expected a CriticalError, got %v", err)
	}

	// Pre-SAS work still happened.
	mustExist(t, outputDir)
	mustExist(t, scratchDir)
	mustExist(t, filepath.Join(scratchDir, "config_sas.yaml"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if !strings.Contains(string(data), "SAS executable failed") {
		t.Error("log should record the SAS failure")
	}
}

func TestExecutor_NoOutputProducts(t *testing.T) {
	baseDir := t.TempDir()
	outputDir := filepath.Join(baseDir, "outputs")
	scratchDir := filepath.Join(baseDir, "scratch")

	configPath := filepath.Join(baseDir, "config.yaml")
	writeTestRunConfig(t, configPath, testConfig{
		outputDir:   outputDir,
		scratchDir:  scratchDir,
		programPath: "/bin/echo",
		programArgs: []string{"no products here"},
		patterns:    []string{"*.h5"},
	})

	log := logger.New(logger.WithLogFilename(filepath.Join(baseDir, "pge_test.log")))
	e := NewExecutor(configPath, WithLogger(log))

	// An empty product set is a warning, not a failure.
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if n := log.GetWarningCount(); n != 1 {
		t.Errorf("warning count = %d, want 1", n)
	}

	finalPath := log.GetFileName()
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(finalPath)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "No output products found") {
		t.Error("log should warn about the empty product set")
	}
	if !strings.Contains(content, "SAS QA executable is disabled, skipping") {
		t.Error("log should note the disabled QA executable")
	}
	if strings.Contains(content, "Starting SAS QA executable") {
		t.Error("QA executable must not run when disabled")
	}
}

// fakePhase records its dispatch for phase composition tests.
type fakePhase struct {
	name string
	err  error
	ran  *[]string
}

func (f *fakePhase) Name() string { return f.name }

func (f *fakePhase) Run(ctx context.Context, e *Executor) error {
	*f.ran = append(*f.ran, f.name)
	return f.err
}

func TestExecutor_WithPhases(t *testing.T) {
	log := logger.New(logger.WithLogFilename(filepath.Join(t.TempDir(), "pge_test.log")))
	defer log.Close()

	var ran []string
	e := NewExecutor("unused.yaml",
		WithLogger(log),
		WithPhases(
			&fakePhase{name: "first", ran: &ran},
			&fakePhase{name: "second", ran: &ran},
		),
	)

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(ran) != 2 || ran[0] != "first" || ran[1] != "second" {
		t.Errorf("phases ran = %v, want [first second]", ran)
	}
}

func TestExecutor_StopsAtFirstFailure(t *testing.T) {
	log := logger.New(logger.WithLogFilename(filepath.Join(t.TempDir(), "pge_test.log")))
	defer log.Close()

	var ran []string
	e := NewExecutor("unused.yaml",
		WithLogger(log),
		WithPhases(
			&fakePhase{name: "first", ran: &ran, err: errors.New("boom")},
			&fakePhase{name: "second", ran: &ran},
		),
	)

	err := e.Run(context.Background())
	if err == nil {
		t.Fatal("expected error from failing phase")
	}
	if !strings.Contains(err.Error(), "first phase failed") {
		t.Errorf("error should name the phase, got %v", err)
	}
	if len(ran) != 1 {
		t.Errorf("later phases must not run after a failure, ran = %v", ran)
	}
}
