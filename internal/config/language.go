// Package config provides configuration management for the application.
package config

import (
	"os"
	"strings"

	"golang.org/x/text/language"
)

// LanguageConfig provides locale-related configuration utilities
type LanguageConfig struct {
	tag language.Tag
}

// ParseLanguage parses an ISO language tag.
// Empty tags default to English, as do tags that cannot be parsed.
func ParseLanguage(langTag string) (*LanguageConfig, error) {
	var tag language.Tag
	var err error

	if langTag == "" {
		tag = language.English
	} else {
		tag, err = language.Parse(langTag)
		if err != nil {
			tag, err = language.Parse(strings.ReplaceAll(strings.ToLower(langTag), "_", "-"))
			if err != nil {
				tag = language.English
			}
		}
	}

	return &LanguageConfig{tag: tag}, nil
}

// Tag returns the underlying language tag
func (lc *LanguageConfig) Tag() language.Tag {
	return lc.tag
}

// String returns the language tag as a string (e.g., "en", "de-DE")
func (lc *LanguageConfig) String() string {
	return lc.tag.String()
}

// DateLayout returns the Go time layout used for dates printed in documents.
// Month names are only spelled out for English; other locales get numeric dates.
func (lc *LanguageConfig) DateLayout() string {
	base, _ := lc.tag.Base()
	region, _ := lc.tag.Region()

	switch base.String() {
	case "en":
		if region.String() == "US" {
			return "January 2, 2006"
		}
		return "2 January 2006"
	case "de", "ru", "pl", "cs", "fi", "nb", "da", "tr":
		return "02.01.2006"
	case "fr", "es", "it", "pt":
		return "02/01/2006"
	case "nl":
		return "02-01-2006"
	default:
		return "2006-01-02"
	}
}

// DateLayout resolves the document date layout of the report configuration
func (c *ReportConfig) DateLayout() string {
	lc, _ := ParseLanguage(c.Locale)
	return lc.DateLayout()
}

// detectSystemLanguage attempts to detect the system language from environment variables
func detectSystemLanguage() language.Tag {
	envVars := []string{"LANG", "LANGUAGE", "LC_ALL", "LC_MESSAGES"}

	for _, envVar := range envVars {
		if val := os.Getenv(envVar); val != "" {
			// "en_US.UTF-8" -> "en-US"
			langPart := strings.Split(val, ".")[0]
			langPart = strings.Replace(langPart, "_", "-", 1)

			if tag, err := language.Parse(langPart); err == nil {
				return tag
			}
		}
	}

	return language.English
}

// DefaultLocale returns the locale to use when none is configured
func DefaultLocale() string {
	return detectSystemLanguage().String()
}
