// Package configfiles provides embedded configuration files for StageReport.
// These files are used as templates for initializing user configuration.
package configfiles

import (
	"embed"
	"os"
	"path/filepath"
)

// Embedded configuration files
//
//go:embed bootstrap.example.yaml
//go:embed seed.example.yaml
var configFS embed.FS

// Template names
const (
	BootstrapExample = "bootstrap.example.yaml"
	SeedExample      = "seed.example.yaml"
)

// GetBootstrapExample returns the example bootstrap configuration file content
func GetBootstrapExample() ([]byte, error) {
	return configFS.ReadFile(BootstrapExample)
}

// GetSeedExample returns the example seed data file content
func GetSeedExample() ([]byte, error) {
	return configFS.ReadFile(SeedExample)
}

// WriteTemplate copies an embedded template to targetPath unless a file is already there.
// Returns true when the file was created.
func WriteTemplate(name, targetPath string) (bool, error) {
	if _, err := os.Stat(targetPath); err == nil {
		return false, nil
	}

	data, err := configFS.ReadFile(name)
	if err != nil {
		return false, err
	}

	if dir := filepath.Dir(targetPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return false, err
		}
	}

	if err := os.WriteFile(targetPath, data, 0644); err != nil {
		return false, err
	}
	return true, nil
}
