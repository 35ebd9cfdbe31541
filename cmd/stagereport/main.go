// Package main is the entry point for the StageReport application.
// StageReport generates certificates and KPI spreadsheets for construction
// projects in the background and notifies users when they are ready.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/verustcode/stagereport/consts"
	"github.com/verustcode/stagereport/internal/check"
	"github.com/verustcode/stagereport/internal/config"
)

// Build information - set via ldflags during build
// These variables are linked to consts package for global access
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// init synchronizes build info to consts package for global access
func init() {
	consts.Version = Version
	consts.BuildTime = BuildTime
	consts.GitCommit = GitCommit
}

// bootstrapPath holds the path to the bootstrap configuration file
var bootstrapPath string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "stagereport",
	Short: "StageReport - report generation for construction projects",
	Long: `StageReport renders stage certificates (PDF) and KPI summaries (XLSX)
for construction projects in the background and notifies the requesting
user when the document is ready for download.`,
	SilenceUsage: true,
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", consts.ProjectName, Version)
		fmt.Fprintf(cmd.OutOrStdout(), "  Build Time: %s\n", BuildTime)
		fmt.Fprintf(cmd.OutOrStdout(), "  Git Commit: %s\n", GitCommit)
	},
}

// checkCmd runs the interactive environment check
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the environment and create missing configuration files",
	Long: `Check configuration files, the JWT secret and the content store.

Missing files can be created from the embedded templates:
  stagereport check

Use --non-interactive in scripts; it never prompts and never writes files.`,
	RunE: runCheck,
}

func init() {
	// Disable auto-generated completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Global flags
	rootCmd.PersistentFlags().StringVar(&bootstrapPath, "bootstrap", "", "bootstrap config file path (default: config/bootstrap.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tokenCmd)

	checkCmd.Flags().String("dir", "config", "configuration directory")
	checkCmd.Flags().Bool("non-interactive", false, "report problems without prompting")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	checker := check.NewCheckerWithDir(dir)

	if nonInteractive, _ := cmd.Flags().GetBool("non-interactive"); nonInteractive {
		result := checker.RunNonInteractive(commandContext(cmd))
		check.PrintCheckResult(result)
		if !result.Success {
			return fmt.Errorf("environment check failed")
		}
		return nil
	}

	if err := checker.Run(commandContext(cmd)); err != nil {
		return fmt.Errorf("environment check failed: %w", err)
	}
	fmt.Println("\n✓ Environment check completed successfully")
	return nil
}

// resolveBootstrapPath returns the --bootstrap flag or the default path
func resolveBootstrapPath() string {
	if bootstrapPath == "" {
		return config.BootstrapConfigPath
	}
	return bootstrapPath
}

// loadConfig loads the bootstrap configuration
func loadConfig() (*config.BootstrapConfig, error) {
	path := resolveBootstrapPath()

	if !config.BootstrapExists(path) {
		return nil, fmt.Errorf("bootstrap configuration not found: %s\nRun 'stagereport check' to create it", path)
	}

	cfg, err := config.LoadBootstrap(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load bootstrap config: %w", err)
	}
	return cfg, nil
}

// commandContext returns the command context, which is nil when run outside Execute
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
