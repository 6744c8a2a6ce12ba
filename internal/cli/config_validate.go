package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rshade/batchengine/internal/config"
)

// annotationLenientConfig marks commands that still run when the config
// file cannot be loaded, with the defaults in place.
const annotationLenientConfig = "batchengine/lenient-config"

// NewConfigValidateCmd creates the config validate command for validating configuration.
func NewConfigValidateCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validates the configuration file and overlays for syntax and semantic correctness.

This includes:
- YAML syntax and schema version compatibility
- Engine fan-out values and intervals
- Scheduler worker and retry settings
- Store driver settings`,
		Example: `  # Validate current configuration
  batchengine config validate

  # Validate and show detailed information
  batchengine config validate --verbose`,
		Annotations: map[string]string{annotationLenientConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")

	return cmd
}

// runConfigValidate loads the configuration again and reports the first problem.
func runConfigValidate(cmd *cobra.Command, verbose bool) error {
	path, err := configPathFlag(cmd)
	if err != nil {
		return err
	}
	overlays, _ := cmd.Flags().GetStringSlice("overlay")

	cfg, err := config.Load(path, overlays...)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cmd.Printf("Configuration is valid\n")

	if verbose {
		printVerboseDetails(cmd, path, cfg)
	}

	return nil
}

// printVerboseDetails prints detailed configuration information.
func printVerboseDetails(cmd *cobra.Command, path string, cfg *config.Config) {
	cmd.Println()
	cmd.Println("Configuration details:")
	cmd.Printf("  Config file: %s\n", path)
	cmd.Printf("  Schema version: %s\n", cfg.SchemaVersion)
	cmd.Printf("  Store driver: %s\n", cfg.Store.Driver)
	cmd.Printf("  Workers: %d\n", cfg.JobExec.Workers)
	cmd.Printf("  Max attempts: %d\n", cfg.JobExec.MaxAttempts)
	cmd.Printf("  Batch jobs per seed: %d\n", cfg.Engine.BatchJobsPerSeed)
	cmd.Printf("  Invocations per batch job: %d\n", cfg.Engine.InvocationsPerBatchJob)
	cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)
}

// NewConfigShowCmd creates the config show command printing the effective
// configuration after file, overlays and environment overrides.
func NewConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := yaml.Marshal(config.GetGlobalConfig())
			if err != nil {
				return fmt.Errorf("marshalling config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
