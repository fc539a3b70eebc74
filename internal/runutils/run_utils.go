// Package runutils executes external programs on behalf of the PGE wrapper.
package runutils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/logger"
)

const moduleName = "RunUtils"

// runnerCallsite tags entries produced while a subprocess is running.
const runnerCallsite logger.Callsite = "run_utils.go:TimeAndExecute"

// EventLog is the part of the run log the runner needs.
type EventLog interface {
	PushCallsite(site logger.Callsite)
	PopCallsite()
	LogOneMetric(module, metricName string, value any, backFrames int) error
}

// TimeAndExecute runs commandLine with stdout and stderr appended to the
// shared log file at logPath and returns the elapsed wall clock seconds.
// The caller must flush its log to logPath first, otherwise buffered entries
// would appear after the subprocess output.
//
// The elapsed time is recorded as an elapsed_seconds metric attributed to
// the caller's callsite marker. Cancelling ctx kills the subprocess.
func TimeAndExecute(ctx context.Context, log EventLog, commandLine []string, logPath string) (float64, error) {
	if len(commandLine) == 0 {
		return 0, errors.New("empty command line")
	}

	log.PushCallsite(runnerCallsite)
	defer log.PopCallsite()

	out, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open '%s' for subprocess output: %w", logPath, err)
	}
	defer out.Close()

	cmd := exec.CommandContext(ctx, commandLine[0], commandLine[1:]...)
	cmd.Stdout = out
	cmd.Stderr = out

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start).Seconds()

	// The metric is logged even when the command fails; the command error
	// takes precedence.
	metricErr := log.LogOneMetric(moduleName, "elapsed_seconds", elapsed, 1)

	if runErr != nil {
		return elapsed, fmt.Errorf("command '%s' failed: %w", commandLine[0], runErr)
	}

	return elapsed, metricErr
}
