// internal/logger/write.go

package logger

import (
	"fmt"
	"io"
	"time"

	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/errorcode"
	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/validation"
)

// timestampFormat renders UTC times with microsecond precision, e.g.
// 2026-08-25T13:39:00.123456Z. Entries sort lexicographically by time.
const timestampFormat = "2006-01-02T15:04:05.000000Z"

// logFilenameTimeFormat produces the timestamp embedded in the default
// pge_<YYYYMMDDTHHMMSS>.log file name.
const logFilenameTimeFormat = "20060102T150405"

// DefaultLogFileName returns the default log file name for the given
// creation time, e.g. pge_20260825T133900.log.
func DefaultLogFileName(t time.Time) string {
	return fmt.Sprintf("pge_%s.log", t.UTC().Format(logFilenameTimeFormat))
}

// Write formats a single log entry and appends it to w:
//
//	<timestamp>, <Severity>, <workflow>, <module>, ErrorCode.<NAME>, <location>, "<description>"
//
// The error code renders symbolically, never as a bare integer, so logs stay
// greppable by category. The description is reduced to printable characters
// first so one call always produces exactly one line. Write carries no
// counter side effects; severity accounting belongs to the caller.
func Write(w io.Writer, severity Severity, workflow, module string, code errorcode.ErrorCode, location, description string) error {
	timeTag := time.Now().UTC().Format(timestampFormat)
	line := fmt.Sprintf("%s, %s, %s, %s, ErrorCode.%s, %s, \"%s\"\n",
		timeTag, severity, workflow, module, code, location,
		validation.SanitizeDescription(description))
	if _, err := io.WriteString(w, line); err != nil {
		return fmt.Errorf("failed to write log entry: %w", err)
	}
	return nil
}
