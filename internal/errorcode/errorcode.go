// Package errorcode defines the numeric event code space shared by the PGE
// wrapper and its log entries. Codes are small offsets grouped by severity
// range; a mission-assigned base from the RunConfig is added on top when a
// full agency code number is needed (catalog metadata, reports).
package errorcode

import "fmt"

// ErrorCode is a severity-ranged event code offset. Offsets stay within
// [0, 3999]: [0,999] informational, [1000,1999] debug, [2000,2999] warning,
// [3000,3999] critical.
type ErrorCode int

// Informational codes [0, 999].
const (
	OverallSuccess ErrorCode = iota
	LogFileCreated
	LoadingRunConfigFile
	ValidatingRunConfigFile
	LogFileInitComplete
	CreatingWorkingDirectory
	DirectorySetupComplete
	MovingLogFile
	CreatedSASConfig
	SASProgramStarting
	SASProgramCompleted
	QASASProgramStarting
	QASASProgramCompleted
	CreatingCatalogMetadata
	RenderingISOMetadata
	StagingOutputFiles
	ClosingLogFile
	SummaryStatsMessage
)

// Debug codes [1000, 1999].
const (
	SASExeCommandLine ErrorCode = iota + 1000
	QAExeCommandLine
	ConfigurationDetails
	QASASProgramDisabled
	ISOMetadataRenderingSkipped
)

// Warning codes [2000, 2999].
const (
	LoggingRequestedSeverityNotFound ErrorCode = iota + 2000
	LoggingCouldNotIncrementSeverity
	LoggingSeverityCountNotFound
	NoOutputProductsFound
)

// Critical codes [3000, 3999].
const (
	RunConfigLoadingFailed ErrorCode = iota + 3000
	RunConfigValidationFailed
	DirectoryCreationFailed
	LogFileCreationFailed
	SASConfigCreationFailed
	SASProgramFailed
	QASASProgramFailed
	FileMoveFailed
	CatalogMetadataCreationFailed
	ISOMetadataRenderingFailed
	OutputStagingFailed
)

var names = map[ErrorCode]string{
	OverallSuccess:           "OVERALL_SUCCESS",
	LogFileCreated:           "LOG_FILE_CREATED",
	LoadingRunConfigFile:     "LOADING_RUN_CONFIG_FILE",
	ValidatingRunConfigFile:  "VALIDATING_RUN_CONFIG_FILE",
	LogFileInitComplete:      "LOG_FILE_INIT_COMPLETE",
	CreatingWorkingDirectory: "CREATING_WORKING_DIRECTORY",
	DirectorySetupComplete:   "DIRECTORY_SETUP_COMPLETE",
	MovingLogFile:            "MOVING_LOG_FILE",
	CreatedSASConfig:         "CREATED_SAS_CONFIG",
	SASProgramStarting:       "SAS_PROGRAM_STARTING",
	SASProgramCompleted:      "SAS_PROGRAM_COMPLETED",
	QASASProgramStarting:     "QA_SAS_PROGRAM_STARTING",
	QASASProgramCompleted:    "QA_SAS_PROGRAM_COMPLETED",
	CreatingCatalogMetadata:  "CREATING_CATALOG_METADATA",
	RenderingISOMetadata:     "RENDERING_ISO_METADATA",
	StagingOutputFiles:       "STAGING_OUTPUT_FILES",
	ClosingLogFile:           "CLOSING_LOG_FILE",
	SummaryStatsMessage:      "SUMMARY_STATS_MESSAGE",

	SASExeCommandLine:           "SAS_EXE_COMMAND_LINE",
	QAExeCommandLine:            "QA_EXE_COMMAND_LINE",
	ConfigurationDetails:        "CONFIGURATION_DETAILS",
	QASASProgramDisabled:        "QA_SAS_PROGRAM_DISABLED",
	ISOMetadataRenderingSkipped: "ISO_METADATA_RENDERING_SKIPPED",

	LoggingRequestedSeverityNotFound: "LOGGING_REQUESTED_SEVERITY_NOT_FOUND",
	LoggingCouldNotIncrementSeverity: "LOGGING_COULD_NOT_INCREMENT_SEVERITY",
	LoggingSeverityCountNotFound:     "LOGGING_SEVERITY_COUNT_NOT_FOUND",
	NoOutputProductsFound:            "NO_OUTPUT_PRODUCTS_FOUND",

	RunConfigLoadingFailed:        "RUN_CONFIG_LOADING_FAILED",
	RunConfigValidationFailed:     "RUN_CONFIG_VALIDATION_FAILED",
	DirectoryCreationFailed:       "DIRECTORY_CREATION_FAILED",
	LogFileCreationFailed:         "LOG_FILE_CREATION_FAILED",
	SASConfigCreationFailed:       "SAS_CONFIG_CREATION_FAILED",
	SASProgramFailed:              "SAS_PROGRAM_FAILED",
	QASASProgramFailed:            "QA_SAS_PROGRAM_FAILED",
	FileMoveFailed:                "FILE_MOVE_FAILED",
	CatalogMetadataCreationFailed: "CATALOG_METADATA_CREATION_FAILED",
	ISOMetadataRenderingFailed:    "ISO_METADATA_RENDERING_FAILED",
	OutputStagingFailed:           "OUTPUT_STAGING_FAILED",
}

// String returns the symbolic name of the code, e.g. "OVERALL_SUCCESS".
// Codes without a registered name render as CODE_<n> so a miscoded caller
// still produces a greppable log line.
func (c ErrorCode) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("CODE_%d", int(c))
}

// WithBase returns the full agency-assigned code number for a configured
// error code base, e.g. OverallSuccess.WithBase(900000) == 900000.
func (c ErrorCode) WithBase(base int) int {
	return base + int(c)
}
