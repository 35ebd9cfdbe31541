package check

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/verustcode/stagereport/internal/configfiles"
)

// TemplateType represents the type of template file
type TemplateType int

const (
	TemplateBootstrap TemplateType = iota
	TemplateSeed
)

// FileConfig represents a configuration file to check
type FileConfig struct {
	Path        string
	Description string
	Template    TemplateType
	// Optional files are reported but never fail the check
	Optional bool
}

// FileCheckResult represents the result of a file check
type FileCheckResult struct {
	Path        string
	Exists      bool
	Created     bool
	Optional    bool
	Description string
	Error       error
}

// checkFiles checks all configuration files
func (c *Checker) checkFiles() error {
	for _, file := range c.RequiredFiles() {
		result := c.checkFile(file)
		c.report.AddFileResult(result)

		if result.Error != nil {
			return result.Error
		}
	}
	return nil
}

// checkFile checks a single file and prompts for creation if missing
func (c *Checker) checkFile(file FileConfig) FileCheckResult {
	result := FileCheckResult{
		Path:        file.Path,
		Optional:    file.Optional,
		Description: file.Description,
	}

	if fileExists(file.Path) {
		result.Exists = true
		printFileStatus(file.Path, true, false)
		return result
	}

	printFileStatus(file.Path, false, false)

	confirm, err := c.confirm(file.Path)
	if err != nil {
		result.Error = fmt.Errorf("failed to get user confirmation: %w", err)
		return result
	}
	if !confirm {
		return result
	}

	name, err := templateName(file.Template)
	if err != nil {
		result.Error = err
		return result
	}

	created, err := configfiles.WriteTemplate(name, file.Path)
	if err != nil {
		result.Error = fmt.Errorf("failed to create file %s: %w", file.Path, err)
		return result
	}

	result.Exists = true
	result.Created = created
	printFileCreated(file.Path)

	return result
}

// templateName maps a template type to its embedded file
func templateName(t TemplateType) (string, error) {
	switch t {
	case TemplateBootstrap:
		return configfiles.BootstrapExample, nil
	case TemplateSeed:
		return configfiles.SeedExample, nil
	default:
		return "", fmt.Errorf("unknown template type: %d", t)
	}
}

// printFileStatus prints the status of a file check
func printFileStatus(path string, exists bool, created bool) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	if exists {
		green.Printf("  ✓ %s\n", path)
	} else if created {
		green.Printf("  ✓ %s (created)\n", path)
	} else {
		yellow.Printf("  ⚠ %s does not exist\n", path)
	}
}

// printFileCreated prints a message when a file is created
func printFileCreated(path string) {
	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created %s\n", path)
}
