package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"

	"github.com/koelfx/koel/internal/common"
)

// configPaths allows multiple -config flags; later files override earlier
// ones.
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	config *common.Config
	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func usage() {
	fmt.Fprintf(os.Stderr, `Koel exchange rate scraper

Usage: koel [flags] <command>

Commands:
  worker     Run the task queue worker
  scheduler  Run the cron scheduler
  migrate    Apply database migrations
  seed       Seed the currency catalog
  version    Print version information

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Koel version %s\n", common.GetVersion())
		os.Exit(0)
	}

	command := flag.Arg(0)
	if command == "" {
		usage()
		os.Exit(2)
	}
	if command == "version" {
		fmt.Printf("Koel version %s\n", common.GetVersion())
		return
	}

	// Startup order: config (defaults -> files -> env), then logger, then
	// banner.
	if len(configFiles) == 0 {
		if _, err := os.Stat("koel.toml"); err == nil {
			configFiles = append(configFiles, "koel.toml")
		} else if _, err := os.Stat("deployments/local/koel.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/koel.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Str("command", command).
		Msg("Configuration loaded")

	switch command {
	case "worker":
		err = runWorker(config, logger)
	case "scheduler":
		err = runScheduler(config, logger)
	case "migrate":
		err = runMigrate(config, logger)
	case "seed":
		err = runSeed(config, logger)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Fatal().Err(err).Str("command", command).Msg("Command failed")
		os.Exit(1)
	}
}
