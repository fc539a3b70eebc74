// Package runconfig loads, validates and queries PGE run configuration
// files. A run configuration is a YAML document keyed under a single
// top-level RunConfig mapping, with wrapper-level settings grouped beneath
// Groups.PGE and the science algorithm's own configuration carried opaquely
// beneath Groups.SAS.
package runconfig

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/validation"
)

// RunConfig is the parsed form of a run configuration file. The exported
// fields mirror the YAML layout beneath the top-level RunConfig key; the
// accessor methods are the interface the rest of the wrapper uses.
type RunConfig struct {
	Name   string `yaml:"Name" validate:"required"`
	Groups struct {
		PGE struct {
			PGENameGroup struct {
				PGEName string `yaml:"PGEName" validate:"required"`
			} `yaml:"PGENameGroup"`

			InputFilesGroup struct {
				InputFilePaths []string `yaml:"InputFilePaths" validate:"required,min=1"`
			} `yaml:"InputFilesGroup"`

			DynamicAncillaryFilesGroup struct {
				AncillaryFileMap map[string]string `yaml:"AncillaryFileMap"`
			} `yaml:"DynamicAncillaryFilesGroup"`

			ProductPathGroup struct {
				OutputProductPath         string   `yaml:"OutputProductPath" validate:"required"`
				ScratchPath               string   `yaml:"ScratchPath" validate:"required"`
				SASOutputFile             string   `yaml:"SASOutputFile"`
				ProductCounter            int      `yaml:"ProductCounter"`
				ProductIdentifier         string   `yaml:"ProductIdentifier"`
				OutputProductFilePatterns []string `yaml:"OutputProductFilePatterns"`
			} `yaml:"ProductPathGroup"`

			PrimaryExecutable struct {
				ProgramPath     string   `yaml:"ProgramPath" validate:"required"`
				ProgramOptions  []string `yaml:"ProgramOptions"`
				ErrorCodeBase   int      `yaml:"ErrorCodeBase"`
				SchemaPath      string   `yaml:"SchemaPath"`
				IsoTemplatePath string   `yaml:"IsoTemplatePath"`
			} `yaml:"PrimaryExecutable"`

			QAExecutable struct {
				Enabled        bool     `yaml:"Enabled"`
				ProgramPath    string   `yaml:"ProgramPath"`
				ProgramOptions []string `yaml:"ProgramOptions"`
			} `yaml:"QAExecutable"`

			DebugLevelGroup struct {
				DebugSwitch bool `yaml:"DebugSwitch"`
			} `yaml:"DebugLevelGroup"`
		} `yaml:"PGE"`

		SAS map[string]interface{} `yaml:"SAS"`
	} `yaml:"Groups"`

	path string
	raw  []byte
}

// Load reads and parses the run configuration at path. Validation is a
// separate step so the caller can log the load and validation phases
// independently; see Validate.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run config file '%s': %w", path, err)
	}

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing run config file '%s': %w", path, err)
	}

	node, ok := doc["RunConfig"]
	if !ok {
		return nil, fmt.Errorf("run config file '%s' is missing the top-level 'RunConfig' key", path)
	}

	rc := &RunConfig{path: path, raw: data}

	// Default values, applied before decoding so the file can override them
	rc.Groups.PGE.ProductPathGroup.ProductCounter = 1
	rc.Groups.PGE.PrimaryExecutable.ErrorCodeBase = 900000

	if err := node.Decode(rc); err != nil {
		return nil, fmt.Errorf("error parsing run config file '%s': %w", path, err)
	}

	return rc, nil
}

// Validate checks the parsed configuration. Structural requirements are
// enforced by struct tags, followed by semantic checks the tag language
// cannot express. With strict set, the source document is re-decoded with
// unknown keys rejected, so typos in optional settings surface as errors
// instead of being silently dropped.
func (rc *RunConfig) Validate(strict bool) error {
	validate := validator.New()

	err := validate.Struct(rc)
	if err != nil {
		// Translate validation errors into a more readable format
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			fieldName := err.Field()
			tag := err.Tag()
			message := fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", fieldName, tag)
			validationErrors = append(validationErrors, message)
		}
		return errors.New(strings.Join(validationErrors, "; "))
	}

	if err := rc.validateSettings(); err != nil {
		return err
	}

	if strict {
		return rc.validateKnownFields()
	}

	return nil
}

// validateSettings performs the semantic checks that validator tags can't
// easily handle.
func (rc *RunConfig) validateSettings() error {
	pge := &rc.Groups.PGE

	if err := validation.ValidateIdentifier(pge.PGENameGroup.PGEName, validation.DefaultMaxIdentifierLength); err != nil {
		return fmt.Errorf("PGENameGroup.PGEName '%s': %w", pge.PGENameGroup.PGEName, err)
	}

	for i, path := range pge.InputFilesGroup.InputFilePaths {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("InputFilesGroup.InputFilePaths[%d]: path must not be empty", i)
		}
	}

	for name, path := range pge.DynamicAncillaryFilesGroup.AncillaryFileMap {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("DynamicAncillaryFilesGroup.AncillaryFileMap['%s']: path must not be empty", name)
		}
	}

	if pge.ProductPathGroup.ProductCounter < 1 {
		return fmt.Errorf("ProductPathGroup.ProductCounter: %d is less than 1", pge.ProductPathGroup.ProductCounter)
	}

	if id := pge.ProductPathGroup.ProductIdentifier; id != "" {
		if err := validation.ValidateIdentifier(id, validation.DefaultMaxIdentifierLength); err != nil {
			return fmt.Errorf("ProductPathGroup.ProductIdentifier '%s': %w", id, err)
		}
	}

	for i, pattern := range pge.ProductPathGroup.OutputProductFilePatterns {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("ProductPathGroup.OutputProductFilePatterns[%d] '%s': %w", i, pattern, err)
		}
	}

	if pge.PrimaryExecutable.ErrorCodeBase < 0 {
		return fmt.Errorf("PrimaryExecutable.ErrorCodeBase: %d is negative", pge.PrimaryExecutable.ErrorCodeBase)
	}

	if pge.QAExecutable.Enabled && pge.QAExecutable.ProgramPath == "" {
		return errors.New("QAExecutable.ProgramPath is required when QAExecutable.Enabled is true")
	}

	return nil
}

// validateKnownFields re-decodes the source document rejecting any key that
// does not map to a known setting. The Groups.SAS subtree decodes into a
// plain map, so arbitrary science-algorithm settings still pass.
func (rc *RunConfig) validateKnownFields() error {
	var doc struct {
		RunConfig RunConfig `yaml:"RunConfig"`
	}
	dec := yaml.NewDecoder(bytes.NewReader(rc.raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("run config contains unrecognized settings: %w", err)
	}
	return nil
}

// FilePath returns the path the configuration was loaded from.
func (rc *RunConfig) FilePath() string {
	return rc.path
}

// PgeName returns the name of the PGE this configuration drives.
func (rc *RunConfig) PgeName() string {
	return rc.Groups.PGE.PGENameGroup.PGEName
}

// InputFiles returns the configured input file paths.
func (rc *RunConfig) InputFiles() []string {
	return rc.Groups.PGE.InputFilesGroup.InputFilePaths
}

// AncillaryFileMap returns the mapping of ancillary file types to paths.
func (rc *RunConfig) AncillaryFileMap() map[string]string {
	return rc.Groups.PGE.DynamicAncillaryFilesGroup.AncillaryFileMap
}

// AncillaryFilenames returns the base names of all configured dynamic
// ancillary files, sorted for stable output.
func (rc *RunConfig) AncillaryFilenames() []string {
	fileMap := rc.Groups.PGE.DynamicAncillaryFilesGroup.AncillaryFileMap
	names := make([]string, 0, len(fileMap))
	for _, path := range fileMap {
		names = append(names, filepath.Base(path))
	}
	sort.Strings(names)
	return names
}

// OutputProductPath returns the directory final products are staged to.
func (rc *RunConfig) OutputProductPath() string {
	return rc.Groups.PGE.ProductPathGroup.OutputProductPath
}

// ScratchPath returns the directory for intermediate files.
func (rc *RunConfig) ScratchPath() string {
	return rc.Groups.PGE.ProductPathGroup.ScratchPath
}

// SASOutputFile returns the configured name of the primary product the
// science executable writes, or an empty string when not configured.
func (rc *RunConfig) SASOutputFile() string {
	return rc.Groups.PGE.ProductPathGroup.SASOutputFile
}

// ProductCounter returns the positive production counter, defaulting to 1.
func (rc *RunConfig) ProductCounter() int {
	return rc.Groups.PGE.ProductPathGroup.ProductCounter
}

// ProductIdentifier returns the configured product identifier, falling back
// to the PGE name when not set.
func (rc *RunConfig) ProductIdentifier() string {
	if id := rc.Groups.PGE.ProductPathGroup.ProductIdentifier; id != "" {
		return id
	}
	return rc.PgeName()
}

// OutputProductFilePatterns returns the glob patterns selecting which
// scratch files count as output products. Defaults to a single match-all
// pattern.
func (rc *RunConfig) OutputProductFilePatterns() []string {
	patterns := rc.Groups.PGE.ProductPathGroup.OutputProductFilePatterns
	if len(patterns) == 0 {
		return []string{"*"}
	}
	return patterns
}

// SASProgramPath returns the path of the science executable.
func (rc *RunConfig) SASProgramPath() string {
	return rc.Groups.PGE.PrimaryExecutable.ProgramPath
}

// SASProgramOptions returns the extra command line options for the science
// executable.
func (rc *RunConfig) SASProgramOptions() []string {
	return rc.Groups.PGE.PrimaryExecutable.ProgramOptions
}

// ErrorCodeBase returns the numeric base offset for this PGE's error codes.
func (rc *RunConfig) ErrorCodeBase() int {
	return rc.Groups.PGE.PrimaryExecutable.ErrorCodeBase
}

// SASSchemaPath returns the path of the schema describing the SAS portion
// of the configuration, or an empty string when not configured.
func (rc *RunConfig) SASSchemaPath() string {
	return rc.Groups.PGE.PrimaryExecutable.SchemaPath
}

// ISOTemplatePath returns the path of the ISO metadata template, or an
// empty string when ISO metadata rendering is not configured.
func (rc *RunConfig) ISOTemplatePath() string {
	return rc.Groups.PGE.PrimaryExecutable.IsoTemplatePath
}

// QAEnabled reports whether the QA executable should run.
func (rc *RunConfig) QAEnabled() bool {
	return rc.Groups.PGE.QAExecutable.Enabled
}

// QAProgramPath returns the path of the QA executable.
func (rc *RunConfig) QAProgramPath() string {
	return rc.Groups.PGE.QAExecutable.ProgramPath
}

// QAProgramOptions returns the extra command line options for the QA
// executable.
func (rc *RunConfig) QAProgramOptions() []string {
	return rc.Groups.PGE.QAExecutable.ProgramOptions
}

// DebugSwitch reports whether debug mode is enabled for this run.
func (rc *RunConfig) DebugSwitch() bool {
	return rc.Groups.PGE.DebugLevelGroup.DebugSwitch
}

// SASConfig returns the science algorithm's own configuration subtree.
func (rc *RunConfig) SASConfig() map[string]interface{} {
	return rc.Groups.SAS
}

// IsolateSASConfig writes the Groups.SAS subtree to its own YAML file under
// scratchDir and returns the new file's path. The file is named after the
// source run config with a _sas suffix, so config.yaml yields
// config_sas.yaml. The science executable is handed this file instead of
// the full run config so it never sees wrapper-level settings.
func (rc *RunConfig) IsolateSASConfig(scratchDir string) (string, error) {
	if rc.Groups.SAS == nil {
		return "", errors.New("run config has no SAS group to isolate")
	}

	base := filepath.Base(rc.path)
	ext := filepath.Ext(base)
	sasName := strings.TrimSuffix(base, ext) + "_sas" + ext
	sasPath := filepath.Join(scratchDir, sasName)

	data, err := yaml.Marshal(rc.Groups.SAS)
	if err != nil {
		return "", fmt.Errorf("failed to encode SAS config: %w", err)
	}

	if err := os.WriteFile(sasPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to create SAS config file '%s': %w", sasPath, err)
	}

	return sasPath, nil
}
