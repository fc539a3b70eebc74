package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/errorcode"
	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/logger"
	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/pge"
	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/runconfig"
	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to the RunConfig file")
	testConfigShort := flag.Bool("t", false, "Validate the RunConfig and exit")
	testConfigLong := flag.Bool("test", false, "Validate the RunConfig and exit")
	strict := flag.Bool("strict", false, "Reject unknown RunConfig settings")
	showVersion := flag.Bool("version", false, "Show version information and exit")
	flag.Parse()

	// Display version information if requested
	if *showVersion {
		fmt.Println(version.VersionInfo())
		os.Exit(0)
	}

	if *configPath == "" {
		fmt.Println("Error: RunConfig file path is required")
		fmt.Println("Usage: pge -config <runconfig.yaml> [-t|-test] [-strict]")
		os.Exit(1)
	}

	if *testConfigShort || *testConfigLong {
		rc, err := runconfig.Load(*configPath)
		if err == nil {
			err = rc.Validate(*strict)
		}
		if err != nil {
			fmt.Printf("[CRITICAL] RunConfig '%s' is invalid: %v\n", *configPath, err)
			os.Exit(1)
		}
		fmt.Printf("RunConfig '%s' is valid.\n", *configPath)
		os.Exit(0)
	}

	os.Exit(run(*configPath, *strict))
}

// run executes one PGE job and returns the process exit code. It is kept
// separate from main so its defers fire before os.Exit.
func run(configPath string, strict bool) int {
	appLogger := logger.GetAppLogger()
	appLogger.Info("%s", version.VersionInfo())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The run log is opened before anything else so every event of the
	// run, including early failures, lands in one place.
	log := logger.New()

	opts := []pge.ExecutorOption{pge.WithLogger(log)}
	if strict {
		opts = append(opts, pge.WithStrictValidation())
	}

	runErr := pge.NewExecutor(configPath, opts...).Run(ctx)

	if err := log.Info("PgeMain", errorcode.ClosingLogFile, "Closing log file"); err != nil {
		appLogger.Error("Failed to write closing log entry: %v", err)
	}
	if err := log.Close(); err != nil {
		appLogger.Error("Failed to close log file: %v", err)
		if runErr == nil {
			return 1
		}
	}

	if runErr != nil {
		var critical *logger.CriticalError
		if errors.As(runErr, &critical) {
			appLogger.Error("PGE run failed: %s", critical.Description)
		} else {
			appLogger.Error("PGE run failed: %v", runErr)
		}
		return 1
	}

	// stdout carries only the final log path, for the calling pipeline.
	fmt.Println(log.GetFileName())
	return 0
}
