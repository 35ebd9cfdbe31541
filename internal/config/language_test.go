package config

import (
	"testing"

	"golang.org/x/text/language"
)

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"en", "en"},
		{"de-DE", "de-DE"},
		{"en_us", "en-US"},
		{"", "en"},
		{"not a tag!", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lc, err := ParseLanguage(tt.in)
			if err != nil {
				t.Fatalf("ParseLanguage(%q) error = %v", tt.in, err)
			}
			if lc.String() != tt.want {
				t.Errorf("ParseLanguage(%q) = %q, want %q", tt.in, lc.String(), tt.want)
			}
		})
	}

	lc, _ := ParseLanguage("")
	if lc.Tag() != language.English {
		t.Errorf("empty tag = %v, want English", lc.Tag())
	}
}

func TestLanguageConfig_DateLayout(t *testing.T) {
	tests := []struct {
		locale string
		want   string
	}{
		{"en-US", "January 2, 2006"},
		{"en-GB", "2 January 2006"},
		{"en", "2 January 2006"},
		{"de-DE", "02.01.2006"},
		{"ru", "02.01.2006"},
		{"fr", "02/01/2006"},
		{"ja", "2006-01-02"},
	}

	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			cfg := ReportConfig{Locale: tt.locale}
			if got := cfg.DateLayout(); got != tt.want {
				t.Errorf("DateLayout(%q) = %q, want %q", tt.locale, got, tt.want)
			}
		})
	}
}

func TestDetectSystemLanguage(t *testing.T) {
	t.Setenv("LANG", "de_DE.UTF-8")
	if got := detectSystemLanguage(); got.String() != "de-DE" {
		t.Errorf("detectSystemLanguage() = %v, want de-DE", got)
	}

	t.Setenv("LANG", "")
	t.Setenv("LANGUAGE", "")
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	if got := DefaultLocale(); got != "en" {
		t.Errorf("DefaultLocale() = %q, want en", got)
	}
}
