package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/user/b2extract/pkg/extractor"
)

func main() {
	indexPath := flag.String("index", "", "Path to the .b2index file (required)")
	containerExt := flag.String("container-ext", ".b2container", "Extension appended to a resolved container name lacking one")
	outputDir := flag.String("out", ".", "Output directory for extracted files")

	enableHeaderPath := flag.Bool("header-path", true, "Enable header-based path recovery for .uasset-family entries")
	enableContentPath := flag.Bool("content-path", true, "Enable content-scan path recovery fallback")

	skipWem := flag.Bool("skip-wem", false, "Skip outputs landing under Wwise audio folders; also enables localization skipping")
	skipBink := flag.Bool("skip-bink", false, "Skip .bik/.bk2 files")
	skipExisting := flag.Bool("skip-existing", false, "Skip entries whose basename already exists in the output tree")
	skipResAce := flag.Bool("skip-res-ace", false, "Skip .res/.ace files")
	skipConfig := flag.Bool("skip-config", false, "Skip configuration file extensions")
	onlyAssets := flag.Bool("only-assets", false, "Emit only asset/map/bulk families; implies all other skips")

	logLevel := flag.String("log-level", "Full", "Log level: Full, Warnings, Error, Minimal, Silent, None")

	flag.Parse()

	if *indexPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -index flag is required")
		flag.Usage()
		os.Exit(1)
	}

	level, err := parseLogLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("b2extract - archive extraction\n")
	fmt.Printf("Index: %s\n", *indexPath)
	fmt.Printf("Output: %s\n", *outputDir)

	cfg := extractor.Config{
		IndexPath:         *indexPath,
		ContainerExt:      *containerExt,
		OutputDirectory:   *outputDir,
		EnableHeaderPath:  *enableHeaderPath,
		EnableContentPath: *enableContentPath,
		SkipWemFiles:      *skipWem,
		SkipBinkFiles:     *skipBink,
		SkipExistingFiles: *skipExisting,
		SkipResAndAce:     *skipResAce,
		SkipConfigFiles:   *skipConfig,
		OnlyAssets:        *onlyAssets,
		LogLevel:          level,
	}

	cb := extractor.Callbacks{
		Progress: func(fraction float64) {
			fmt.Printf("\rProgress: %5.1f%%", fraction)
		},
		Log: func(message string) {
			fmt.Println(message)
		},
	}

	if err := extractor.Run(cfg, cb); err != nil {
		fmt.Fprintf(os.Stderr, "\nError during extraction: %v\n", err)
		os.Exit(1)
	}
	fmt.Println()
}

func parseLogLevel(s string) (extractor.LogLevel, error) {
	switch s {
	case "Full":
		return extractor.LogFull, nil
	case "Warnings":
		return extractor.LogWarnings, nil
	case "Error":
		return extractor.LogError, nil
	case "Minimal":
		return extractor.LogMinimal, nil
	case "Silent":
		return extractor.LogSilent, nil
	case "None":
		return extractor.LogNone, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
