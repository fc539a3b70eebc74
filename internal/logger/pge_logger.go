// internal/logger/pge_logger.go

// Package logger implements the PGE product log: a severity-tracked,
// append-only event log shared between the wrapper process and the science
// executable it launches. A second, console-only AppLogger carries operator
// diagnostics and never touches the product log.
package logger

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/errorcode"
)

// Default identity values for a logger created before the RunConfig has
// been loaded. The workflow default names this file so early entries point
// back at the wrapper itself.
const (
	DefaultWorkflow      = "pge_init::pge_logger.go"
	DefaultErrorCodeBase = 900000
)

// loggerModuleName tags entries the logger writes about itself, such as
// summary metrics and unrecognized-severity notices.
const loggerModuleName = "PgeLogger"

// ErrLogClosed is returned by operations on a logger after Close.
var ErrLogClosed = errors.New("log stream is closed")

// Callsite names the code location an entry is attributed to,
// conventionally "<file>.go:<Function>". Instrumented call sites push their
// own identity onto the logger's marker stack; nothing inspects the runtime
// call stack.
type Callsite string

// UnattributedCallsite is recorded when no callsite marker is on the stack.
const UnattributedCallsite Callsite = "unattributed"

// CriticalError carries a critical event out of the logger after the entry
// has been durably written. Callers unwind their current operation with it.
type CriticalError struct {
	Description string
}

func (e *CriticalError) Error() string {
	return e.Description
}

// PgeLogger is the product log. It starts as an in-memory buffer and
// transitions one way to a file-backed sink on the first Flush, Move or
// Close; it never goes back to buffering. Severity counters track entries
// written through the logger's own entry points and may drift from file
// content when foreign text is appended; ResyncLogCountBySeverity is the
// only reconciliation path.
type PgeLogger struct {
	mu sync.Mutex

	workflow      string
	errorCodeBase int
	logFilename   string
	startTime     time.Time

	buffer *bytes.Buffer // sink while buffered, nil once file backed
	file   *os.File      // sink once materialized
	closed bool

	counts    map[Severity]int
	callsites []Callsite
}

// Option configures a PgeLogger at construction.
type Option func(*PgeLogger)

// WithWorkflow overrides the default workflow tag.
func WithWorkflow(workflow string) Option {
	return func(l *PgeLogger) { l.workflow = workflow }
}

// WithErrorCodeBase overrides the default error code base.
func WithErrorCodeBase(base int) Option {
	return func(l *PgeLogger) { l.errorCodeBase = base }
}

// WithLogFilename overrides the generated pge_<timestamp>.log target path.
func WithLogFilename(path string) Option {
	return func(l *PgeLogger) { l.logFilename = path }
}

// New creates a buffered PgeLogger. Nothing touches the filesystem until
// the first Flush, Move or Close.
func New(opts ...Option) *PgeLogger {
	now := time.Now()
	l := &PgeLogger{
		workflow:      DefaultWorkflow,
		errorCodeBase: DefaultErrorCodeBase,
		logFilename:   DefaultLogFileName(now),
		startTime:     now,
		buffer:        &bytes.Buffer{},
		counts:        newSeverityCounts(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func newSeverityCounts() map[Severity]int {
	counts := make(map[Severity]int, len(Severities))
	for _, s := range Severities {
		counts[s] = 0
	}
	return counts
}

// SetWorkflow replaces the workflow tag recorded in subsequent entries.
// Called once the RunConfig names the PGE being run.
func (l *PgeLogger) SetWorkflow(workflow string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.workflow = workflow
}

// GetWorkflow returns the current workflow tag.
func (l *PgeLogger) GetWorkflow() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.workflow
}

// SetErrorCodeBase replaces the configured error code base.
func (l *PgeLogger) SetErrorCodeBase(base int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorCodeBase = base
}

// GetErrorCodeBase returns the configured error code base. Entries render
// codes symbolically, so the base surfaces downstream (catalog metadata)
// rather than in log lines.
func (l *PgeLogger) GetErrorCodeBase() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errorCodeBase
}

// GetFileName returns the current log file target path.
func (l *PgeLogger) GetFileName() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.logFilename
}

// GetStartTime returns the creation time of the logger. The value carries a
// monotonic clock reading, so elapsed measurements survive wall clock
// adjustments.
func (l *PgeLogger) GetStartTime() time.Time {
	return l.startTime
}

// GetStream exposes the in-memory buffer for inspection before
// materialization. Returns nil once the log is file backed.
func (l *PgeLogger) GetStream() *bytes.Buffer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buffer
}

// PushCallsite marks the current operation for location attribution.
// Instrumented call sites push on entry and pop on exit.
func (l *PgeLogger) PushCallsite(site Callsite) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callsites = append(l.callsites, site)
}

// PopCallsite removes the innermost operation marker. Popping an empty
// stack is a no-op.
func (l *PgeLogger) PopCallsite() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.callsites) > 0 {
		l.callsites = l.callsites[:len(l.callsites)-1]
	}
}

// currentCallsite resolves the location tag skip levels beneath the
// innermost marker. Depths past the bottom clamp to the outermost marker.
// Callers hold l.mu.
func (l *PgeLogger) currentCallsite(skip int) Callsite {
	if len(l.callsites) == 0 {
		return UnattributedCallsite
	}
	idx := len(l.callsites) - 1 - skip
	if idx < 0 {
		idx = 0
	}
	return l.callsites[idx]
}

// sink returns the active writer. Callers hold l.mu.
func (l *PgeLogger) sink() (io.Writer, error) {
	if l.closed {
		return nil, ErrLogClosed
	}
	if l.file != nil {
		return l.file, nil
	}
	return l.buffer, nil
}

// write appends one formatted entry and bumps the matching severity
// counter. Callers hold l.mu.
func (l *PgeLogger) write(severity Severity, module string, code errorcode.ErrorCode, location, description string) error {
	w, err := l.sink()
	if err != nil {
		return err
	}
	if err := Write(w, severity, l.workflow, module, code, location, description); err != nil {
		return err
	}
	l.counts[severity]++
	return nil
}

// noticeUnknownSeverity records a Warning entry about an unrecognized
// severity name through the raw write primitive. The entry deliberately
// skips counter accounting: the recognized counters stay untouched and the
// notice becomes visible to them only through a resync. Callers hold l.mu.
func (l *PgeLogger) noticeUnknownSeverity(code errorcode.ErrorCode, description string) error {
	w, err := l.sink()
	if err != nil {
		return err
	}
	return Write(w, SeverityWarning, l.workflow, loggerModuleName, code,
		string(l.currentCallsite(0)), description)
}

// Write records an entry with the severity supplied as free-form text,
// matched case-insensitively after standardization. An unrecognized
// severity does not fail the write: a Warning notice is recorded instead of
// an entry of the unknown kind.
func (l *PgeLogger) Write(severity, module string, code errorcode.ErrorCode, description string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	sev, ok := ParseSeverity(severity)
	if !ok {
		return l.noticeUnknownSeverity(errorcode.LoggingRequestedSeverityNotFound,
			fmt.Sprintf("Could not log message with severity: '%s' ", StandardizeSeverityString(severity)))
	}
	return l.write(sev, module, code, string(l.currentCallsite(0)), description)
}

// Debug records an entry at Debug severity.
func (l *PgeLogger) Debug(module string, code errorcode.ErrorCode, description string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(SeverityDebug, module, code, string(l.currentCallsite(0)), description)
}

// Info records an entry at Info severity.
func (l *PgeLogger) Info(module string, code errorcode.ErrorCode, description string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(SeverityInfo, module, code, string(l.currentCallsite(0)), description)
}

// Warning records an entry at Warning severity.
func (l *PgeLogger) Warning(module string, code errorcode.ErrorCode, description string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(SeverityWarning, module, code, string(l.currentCallsite(0)), description)
}

// Log records an entry whose severity derives from the code's range.
func (l *PgeLogger) Log(module string, code errorcode.ErrorCode, description string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(SeverityFromErrorCode(code), module, code, string(l.currentCallsite(0)), description)
}

// Critical records the entry, forces it to durable storage, and then
// returns a *CriticalError carrying the description so the caller unwinds.
// The entry is always on disk before the returned error is visible; if the
// write or flush itself fails, that I/O error is returned instead.
func (l *PgeLogger) Critical(module string, code errorcode.ErrorCode, description string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.write(SeverityCritical, module, code, string(l.currentCallsite(0)), description); err != nil {
		return err
	}
	if err := l.flush(); err != nil {
		return fmt.Errorf("failed to persist critical entry: %w", err)
	}
	return &CriticalError{Description: description}
}

func metricDescription(metricName string, value any) string {
	return fmt.Sprintf("%s: %v", metricName, value)
}

// LogOneMetric records a named measurement as an Info entry. The location
// is resolved from the callsite marker stack: backFrames 0 attributes the
// metric to the innermost marker, 1 to the marker beneath it, and so on,
// letting instrumentation helpers attribute measurements to the call site
// that requested them.
func (l *PgeLogger) LogOneMetric(module, metricName string, value any, backFrames int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(SeverityInfo, module, errorcode.SummaryStatsMessage,
		string(l.currentCallsite(backFrames)), metricDescription(metricName, value))
}

// WriteLogSummary appends one metric entry per tracked severity with its
// pre-summary total, then the elapsed wall time of the run. The summary
// entries are ordinary writes and count themselves.
func (l *PgeLogger) WriteLogSummary() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	snapshot := make(map[Severity]int, len(l.counts))
	for s, n := range l.counts {
		snapshot[s] = n
	}
	site := string(l.currentCallsite(0))
	for _, s := range Severities {
		metric := "overall.log_messages." + strings.ToLower(s.String())
		if err := l.write(SeverityInfo, loggerModuleName, errorcode.SummaryStatsMessage,
			site, metricDescription(metric, snapshot[s])); err != nil {
			return err
		}
	}
	elapsed := time.Since(l.startTime).Seconds()
	return l.write(SeverityInfo, loggerModuleName, errorcode.SummaryStatsMessage,
		site, metricDescription("overall.elapsed_seconds", elapsed))
}

// IncrementLogCountBySeverity adds one to the counter for the named
// severity. An unknown name is reported as a Warning notice instead of
// creating a new counter key; the recognized counters stay unchanged.
func (l *PgeLogger) IncrementLogCountBySeverity(severity string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sev, ok := ParseSeverity(severity)
	if !ok {
		_ = l.noticeUnknownSeverity(errorcode.LoggingCouldNotIncrementSeverity,
			fmt.Sprintf("Could not increment severity level: '%s' ", StandardizeSeverityString(severity)))
		return
	}
	l.counts[sev]++
}

// GetLogCountBySeverity returns the number of entries recorded with the
// named severity. An unknown name is reported as a Warning notice and
// yields zero.
func (l *PgeLogger) GetLogCountBySeverity(severity string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	sev, ok := ParseSeverity(severity)
	if !ok {
		_ = l.noticeUnknownSeverity(errorcode.LoggingSeverityCountNotFound,
			fmt.Sprintf("No messages logged with severity: '%s' ", StandardizeSeverityString(severity)))
		return 0
	}
	return l.counts[sev]
}

// GetLogCounts returns a copy of all four severity counters.
func (l *PgeLogger) GetLogCounts() map[Severity]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[Severity]int, len(l.counts))
	for s, n := range l.counts {
		counts[s] = n
	}
	return counts
}

// GetWarningCount returns the Warning counter.
func (l *PgeLogger) GetWarningCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[SeverityWarning]
}

// GetCriticalCount returns the Critical counter.
func (l *PgeLogger) GetCriticalCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[SeverityCritical]
}

// ResyncLogCountBySeverity replaces the in-memory counters with a tally of
// the authoritative sink content: each line bumps the counter of every
// canonical severity token it contains, at most once per token per line.
// Idempotent when nothing is written in between. This is the only path that
// folds appended foreign content into the counters.
func (l *PgeLogger) ResyncLogCountBySeverity() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	content, err := l.sinkContents()
	if err != nil {
		return err
	}
	counts := newSeverityCounts()
	for _, line := range strings.Split(string(content), "\n") {
		if line == "" {
			continue
		}
		for _, s := range Severities {
			if strings.Contains(line, s.String()) {
				counts[s]++
			}
		}
	}
	l.counts = counts
	return nil
}

// sinkContents reads back everything written so far: the buffer while
// buffered, the on-disk file once materialized. Callers hold l.mu.
func (l *PgeLogger) sinkContents() ([]byte, error) {
	if l.closed {
		return nil, ErrLogClosed
	}
	if l.file == nil {
		return l.buffer.Bytes(), nil
	}
	if err := l.file.Sync(); err != nil {
		return nil, fmt.Errorf("failed to sync log file %s: %w", l.logFilename, err)
	}
	content, err := os.ReadFile(l.logFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to read log file %s: %w", l.logFilename, err)
	}
	return content, nil
}

// Append injects the entire content of path into the log verbatim, outside
// the formatted-write primitive. The severity counters are deliberately
// left alone; call ResyncLogCountBySeverity to fold the injected entries
// into the tallies.
func (l *PgeLogger) Append(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, err := l.sink()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s for append: %w", path, err)
	}
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("failed to append %s to log: %w", path, err)
	}
	return nil
}

// Flush forces everything written so far onto disk. The first flush of a
// buffered logger materializes the log file at its current target path;
// later flushes sync the open handle. Flushing a closed logger is a no-op.
// The wrapper must call this before handing the log file to the science
// executable.
func (l *PgeLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flush()
}

// flush implements Flush. Callers hold l.mu.
func (l *PgeLogger) flush() error {
	if l.closed {
		return nil
	}
	if l.file == nil {
		return l.materialize(l.logFilename)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync log file %s: %w", l.logFilename, err)
	}
	return nil
}

// materialize writes the buffered content to path and switches the sink to
// the file, completing the one-way buffer-to-file transition. Callers hold
// l.mu.
func (l *PgeLogger) materialize(path string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	if _, err := f.Write(l.buffer.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write buffered log to %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync log file %s: %w", path, err)
	}
	l.file = f
	l.buffer = nil
	l.logFilename = path
	return nil
}

// Move relocates the log to newPath, preserving every byte written so far.
// A buffered logger materializes directly at newPath; a file-backed logger
// syncs, closes, renames and reopens for append. On failure the logger
// keeps writing at its previous location.
func (l *PgeLogger) Move(newPath string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLogClosed
	}
	if l.file == nil {
		return l.materialize(newPath)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync log file %s: %w", l.logFilename, err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file %s: %w", l.logFilename, err)
	}
	if err := os.Rename(l.logFilename, newPath); err != nil {
		reopened, openErr := os.OpenFile(l.logFilename, os.O_APPEND|os.O_WRONLY, 0644)
		if openErr != nil {
			return fmt.Errorf("failed to move log file to %s: %w (reopen failed: %v)", newPath, err, openErr)
		}
		l.file = reopened
		return fmt.Errorf("failed to move log file to %s: %w", newPath, err)
	}
	reopened, err := os.OpenFile(newPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to reopen moved log file %s: %w", newPath, err)
	}
	l.file = reopened
	l.logFilename = newPath
	return nil
}

// Close flushes and closes the log. A still-buffered logger materializes
// its content at the current target path first, so nothing is ever lost.
// Close is idempotent; write operations after the first Close return
// ErrLogClosed.
func (l *PgeLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	if l.file == nil {
		if err := l.materialize(l.logFilename); err != nil {
			return err
		}
	}
	err := l.file.Sync()
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.closed = true
	l.file = nil
	if err != nil {
		return fmt.Errorf("failed to close log file %s: %w", l.logFilename, err)
	}
	return nil
}
