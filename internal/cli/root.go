// Package cli implements the tai CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/tai/internal/config"
)

// Version is set at build time.
var Version = "dev"

var (
	dbPath     string
	configPath string
	formatFlag string
	traceFlag  bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "tai",
	Short: "Memory-augmented chat with a self-modifiable code region",
	Long: "tai chats with a hosted model, remembering conversations in a key-value store.\n" +
		"Run without a subcommand to start the interactive chat.",
	Version: Version,
	Run:     runChat,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $TAI_DB or ~/.tai/tai.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $TAI_CONFIG or ~/.tai/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().BoolVar(&traceFlag, "trace", false, "Write OpenTelemetry spans to the log")
}

// loadConfig resolves settings; flags win over file and environment.
func loadConfig() config.Config {
	cfg, err := config.Load(config.Path(configPath))
	if err != nil {
		exitErr("load config", err)
	}
	cfg.Store.Path = getDBPath(cfg)
	if traceFlag {
		cfg.Trace.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		exitErr("config", err)
	}
	return cfg
}

func getDBPath(cfg config.Config) string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("TAI_DB"); env != "" {
		return env
	}
	return cfg.Store.Path
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
