package check

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
)

// Report collects check results for the closing summary line
type Report struct {
	FileResults       []FileCheckResult
	ValidationResults []ValidationResult
}

// NewReport creates a new report
func NewReport() *Report {
	return &Report{
		FileResults:       make([]FileCheckResult, 0),
		ValidationResults: make([]ValidationResult, 0),
	}
}

// AddFileResult adds a file check result
func (r *Report) AddFileResult(result FileCheckResult) {
	r.FileResults = append(r.FileResults, result)
}

// AddValidationResult adds a validation result
func (r *Report) AddValidationResult(result ValidationResult) {
	r.ValidationResults = append(r.ValidationResults, result)
}

// Print prints the final summary report
func (r *Report) Print() {
	r.printSeparator()
	r.printSummary(r.calculateSummary())
}

// ReportSummary holds the summary statistics
type ReportSummary struct {
	TotalFiles       int
	FilesExist       int
	FilesCreated     int
	FilesMissing     int
	TotalValidations int
	ValidationsValid int
	ValidationErrors int
	// AuthInvalid means serve will refuse to start
	AuthInvalid bool
	// StorageUnreachable means generation would fail on the first write
	StorageUnreachable bool
	// Storage is the reachable content store, e.g. "storage:local ./data/reports"
	Storage string
	// Seed is the parsed seed summary, empty when no seed file was checked
	Seed        string
	HasErrors   bool
	HasWarnings bool
}

// calculateSummary calculates the summary from all results
func (r *Report) calculateSummary() ReportSummary {
	summary := ReportSummary{}

	summary.TotalFiles = len(r.FileResults)
	for _, result := range r.FileResults {
		if result.Exists || result.Created {
			if result.Created {
				summary.FilesCreated++
			}
			summary.FilesExist++
		} else if !result.Optional {
			summary.FilesMissing++
		}
		if result.Error != nil {
			summary.HasErrors = true
		}
	}

	summary.TotalValidations = len(r.ValidationResults)
	for _, result := range r.ValidationResults {
		if result.Valid {
			summary.ValidationsValid++
			switch result.Kind {
			case KindStorage:
				summary.Storage = result.Path
			case KindSeed:
				summary.Seed = result.Detail
			}
		} else {
			summary.ValidationErrors++
			if result.Error != nil {
				summary.HasErrors = true
			}
			switch result.Kind {
			case KindAuth:
				summary.AuthInvalid = true
			case KindStorage:
				summary.StorageUnreachable = true
			}
		}
		if len(result.Warnings) > 0 {
			summary.HasWarnings = true
		}
	}

	return summary
}

// details lists what the status line reports after the headline
func (s ReportSummary) details() []string {
	var details []string

	if s.FilesCreated > 0 {
		details = append(details, fmt.Sprintf("%d file(s) created", s.FilesCreated))
	}
	if s.FilesMissing > 0 {
		details = append(details, fmt.Sprintf("%d file(s) missing", s.FilesMissing))
	}
	if s.AuthInvalid {
		details = append(details, "serve will not start without a valid jwt secret")
	}
	if s.StorageUnreachable {
		details = append(details, "content store unreachable")
	}
	if n := s.ValidationErrors; n > 0 {
		details = append(details, fmt.Sprintf("%d validation error(s)", n))
	}
	return details
}

// printSeparator prints a separator line
func (r *Report) printSeparator() {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))
	fmt.Println(style.Render(strings.Repeat("─", 50)))
}

// printSummary prints the final summary
func (r *Report) printSummary(summary ReportSummary) {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	if summary.HasErrors {
		red.Print("✗ Check completed")
	} else if summary.HasWarnings || summary.FilesMissing > 0 {
		yellow.Print("⚠ Check completed")
	} else {
		green.Print("✓ Check completed")
	}

	if details := summary.details(); len(details) > 0 {
		fmt.Printf(" (%s)\n", strings.Join(details, ", "))
		return
	}

	fmt.Println(" - All checks passed")
	if summary.Storage != "" {
		fmt.Printf("  reports are written to %s\n", strings.TrimPrefix(summary.Storage, "storage:"))
	}
	if summary.Seed != "" {
		fmt.Printf("  seed data: %s\n", summary.Seed)
	}
}
