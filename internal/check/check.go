// Package check provides interactive environment checking and initialization.
// It helps users set up their local StageReport configuration properly.
package check

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
)

// CheckResult represents the result of a non-interactive environment check
type CheckResult struct {
	// Success indicates whether all required checks passed
	Success bool
	// Errors contains critical errors that prevent server startup
	Errors []string
	// Warnings contains non-critical issues that don't block startup
	Warnings []string
	// Suggestions contains helpful tips for fixing issues
	Suggestions []string
}

// Checker handles environment checking and initialization
type Checker struct {
	// configDir is the base directory for configuration files
	configDir string
	// report collects check results for final output
	report *Report
	// theme for consistent styling
	theme *huh.Theme
	// confirm asks whether a missing file should be created
	confirm func(path string) (bool, error)
}

// NewChecker creates a new environment checker
func NewChecker() *Checker {
	return NewCheckerWithDir("config")
}

// NewCheckerWithDir creates a checker reading configuration from dir
func NewCheckerWithDir(dir string) *Checker {
	c := &Checker{
		configDir: dir,
		report:    NewReport(),
		theme:     huh.ThemeCharm(),
	}
	c.confirm = c.confirmCreate
	return c
}

// Run executes the full environment check
func (c *Checker) Run(ctx context.Context) error {
	c.printHeader()

	// Step 1: Check and create configuration files
	fmt.Println()
	printSection("Checking configuration files")
	if err := c.checkFiles(); err != nil {
		return fmt.Errorf("file check failed: %w", err)
	}

	// Step 2: Validate configuration and reach the content store
	fmt.Println()
	printSection("Validating configuration")
	if err := c.validateConfigs(ctx); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Println()
	c.report.Print()

	return nil
}

// printHeader prints the welcome header
func (c *Checker) printHeader() {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)

	fmt.Println(titleStyle.Render("🔍 StageReport Environment Check"))
}

// printSection prints a section header
func printSection(title string) {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15"))
	fmt.Println(style.Render(title + "..."))
}

// RequiredFiles returns the configuration files the checker looks for.
// The seed file is optional and only offered as a starting point.
func (c *Checker) RequiredFiles() []FileConfig {
	return []FileConfig{
		{
			Path:        c.BootstrapPath(),
			Description: "Bootstrap configuration file (server, storage, notifications)",
			Template:    TemplateBootstrap,
		},
		{
			Path:        c.SeedPath(),
			Description: "Example seed data (users, projects, stages)",
			Template:    TemplateSeed,
			Optional:    true,
		},
	}
}

// BootstrapPath returns the path to the bootstrap config file
func (c *Checker) BootstrapPath() string {
	return filepath.Join(c.configDir, "bootstrap.yaml")
}

// SeedPath returns the path to the seed data file
func (c *Checker) SeedPath() string {
	return filepath.Join(c.configDir, "seed.yaml")
}

// confirmCreate asks user to confirm file creation
func (c *Checker) confirmCreate(path string) (bool, error) {
	var confirm bool
	field := huh.NewConfirm().
		Title(fmt.Sprintf("Create %s from template?", path)).
		Affirmative("Yes").
		Negative("No").
		Value(&confirm)
	err := huh.NewForm(huh.NewGroup(field)).WithTheme(c.theme).Run()
	if err != nil {
		return false, err
	}
	return confirm, nil
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// RunNonInteractive performs a non-interactive environment check.
// Unlike Run(), this method does not prompt for user input and does not create files.
func (c *Checker) RunNonInteractive(ctx context.Context) *CheckResult {
	result := &CheckResult{
		Success:     true,
		Errors:      make([]string, 0),
		Warnings:    make([]string, 0),
		Suggestions: make([]string, 0),
	}

	if !fileExists(c.BootstrapPath()) {
		result.Success = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("Bootstrap configuration not found: %s", c.BootstrapPath()))
		result.Suggestions = append(result.Suggestions,
			"Run 'stagereport check' to interactively create configuration files",
		)
		return result
	}

	bootstrap, cfg := c.validateBootstrapYaml()
	if !bootstrap.Valid {
		result.Success = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("Invalid bootstrap.yaml: %v", bootstrap.Error))
		return result
	}

	auth := validateAuth(cfg)
	if !auth.Valid {
		// the server refuses to start without a usable secret
		result.Success = false
		result.Errors = append(result.Errors, auth.Error.Error())
		result.Suggestions = append(result.Suggestions,
			"Set auth.jwt_secret in bootstrap.yaml or the SR_JWT_SECRET environment variable")
	}

	storage := c.validateStorage(ctx, cfg)
	if !storage.Valid {
		result.Success = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("Content store unreachable: %v", storage.Error))
	}
	result.Warnings = append(result.Warnings, storage.Warnings...)

	if fileExists(c.SeedPath()) {
		seed := validateSeedYaml(c.SeedPath())
		if !seed.Valid {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Invalid seed.yaml: %v", seed.Error))
		}
	}

	return result
}

// PrintCheckResult prints the check result in a formatted way
func PrintCheckResult(result *CheckResult) {
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	if len(result.Errors) > 0 {
		fmt.Println()
		red.Println("[ERROR] Environment check failed")
		fmt.Println()
		for _, err := range result.Errors {
			red.Printf("  ✗ %s\n", err)
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Println()
		yellow.Println("[WARNING] Configuration warnings:")
		fmt.Println()
		for _, warn := range result.Warnings {
			yellow.Printf("  ⚠ %s\n", warn)
		}
	}

	if len(result.Suggestions) > 0 {
		cyan.Println("\nTo fix these issues:")
		for _, suggestion := range result.Suggestions {
			fmt.Printf("  → %s\n", suggestion)
		}
	}

	fmt.Println()
}
