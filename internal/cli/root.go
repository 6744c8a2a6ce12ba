package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/batchengine/internal/config"
	"github.com/rshade/batchengine/internal/logging"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// baseLogger is the untagged logger handed to the engine components.
var baseLogger = zerolog.Nop() //nolint:gochecknoglobals // Set once per command by setupLogging

// NewRootCmd creates the root Cobra command for the batchengine CLI.
// It loads configuration and .env files, wires up logging and registers
// the serve, run, batch, config and version subcommands.
func NewRootCmd(ver string) *cobra.Command {
	var (
		logResult  *logging.LogPathResult
		configPath string
		overlays   []string
		envFiles   []string
	)

	cmd := &cobra.Command{
		Use:           "batchengine",
		Short:         "Asynchronous batch execution engine",
		Long:          "batchengine: split large workloads into batch jobs and run them through a background scheduler",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFiles...); err != nil {
				return err
			}

			cfg, err := loadConfig(configPath, overlays)
			if err != nil {
				if cmd.Annotations[annotationLenientConfig] == "" {
					return err
				}
				cfg = config.Default()
			}
			config.SetGlobalConfig(cfg)

			result := setupLogging(cmd, cfg)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return cleanupLogging(cmd, logResult)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.batchengine/config.yaml)")
	cmd.PersistentFlags().StringSliceVar(&overlays, "overlay", nil, "config overlay files merged section by section")
	cmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before the config")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	cmd.AddCommand(newServeCmd(), newRunCmd(), newBatchCmd(), newConfigCmd(), newVersionCmd())

	return cmd
}

// loadConfig reads path, or the default config path when empty.
func loadConfig(path string, overlays []string) (*config.Config, error) {
	if path == "" {
		defaultPath, err := config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	cfg, err := config.Load(path, overlays...)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigShowCmd(), NewConfigValidateCmd())
	return cmd
}

const rootCmdExample = `  # Run the scheduler and the HTTP API
  batchengine serve

  # Create a batch of 10,000 work items and run it to completion here
  batchengine run --type sleep --items 10000 --jobs-per-seed 50 --invocations 20

  # Create a batch for a running server to pick up
  batchengine batch create --type log --items 500 --tenant acme

  # List suspended batches of one tenant, newest id first
  batchengine batch list --suspended --tenant acme --sort id:desc

  # Follow a batch until it completes
  batchengine batch watch 01J9ZQ2X8R3V6Y0M4N5P7K1B2C

  # Initialize configuration
  batchengine config init`
