package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/runconfig"
	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to the RunConfig file")
	strict := flag.Bool("strict", false, "Reject unknown RunConfig settings")
	showVersion := flag.Bool("version", false, "Show version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.VersionInfo())
		os.Exit(0)
	}

	// The path may also be given as a bare positional argument.
	path := *configPath
	if path == "" && flag.NArg() > 0 {
		path = flag.Arg(0)
	}
	if path == "" {
		fmt.Println("Error: RunConfig file path is required")
		fmt.Println("Usage: runconfig-validator -config <runconfig.yaml> [-strict]")
		os.Exit(1)
	}

	rc, err := runconfig.Load(path)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if err := rc.Validate(*strict); err != nil {
		fmt.Printf("Validation error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("RunConfig '%s' is valid.\n", path)
}
