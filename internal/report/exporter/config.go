package exporter

import (
	"encoding/json"
	"strings"

	"github.com/verustcode/stagereport/internal/model"
)

// Config keys as stored on the report and accepted in requests
const (
	KeyIncludeProgress = "includeProgress"
	KeyIncludeDeadline = "includeDeadline"
	KeyStageIDs        = "stageIds"
)

// RenderConfig controls optional content of rendered documents
type RenderConfig struct {
	IncludeProgress bool
	IncludeDeadline bool
	// StageIDs restricts the document to these stages; empty means all
	StageIDs []uint
}

// DefaultRenderConfig includes everything
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{IncludeProgress: true, IncludeDeadline: true}
}

// NormalizeConfig parses a client supplied JSON config and merges the explicit stage selection.
// Parsing is tolerant: malformed JSON yields the defaults, unknown keys are ignored
// and a key with the wrong type keeps its default. stageIDs, then stageID, take
// precedence over a stageIds key inside raw.
func NormalizeConfig(raw string, stageID *uint, stageIDs []uint) RenderConfig {
	cfg := DefaultRenderConfig()

	if strings.TrimSpace(raw) != "" {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(raw), &fields); err == nil {
			for key, value := range fields {
				switch strings.ToLower(key) {
				case "includeprogress":
					var b bool
					if json.Unmarshal(value, &b) == nil {
						cfg.IncludeProgress = b
					}
				case "includedeadline":
					var b bool
					if json.Unmarshal(value, &b) == nil {
						cfg.IncludeDeadline = b
					}
				case "stageids":
					var ids []uint
					if json.Unmarshal(value, &ids) == nil {
						cfg.StageIDs = ids
					}
				}
			}
		}
	}

	switch {
	case len(stageIDs) > 0:
		cfg.StageIDs = stageIDs
	case stageID != nil:
		cfg.StageIDs = []uint{*stageID}
	}
	cfg.StageIDs = dedupe(cfg.StageIDs)

	return cfg
}

// ToMap converts the config to the form persisted on the report
func (c RenderConfig) ToMap() model.JSONMap {
	m := model.JSONMap{
		KeyIncludeProgress: c.IncludeProgress,
		KeyIncludeDeadline: c.IncludeDeadline,
	}
	if len(c.StageIDs) > 0 {
		m[KeyStageIDs] = c.StageIDs
	}
	return m
}

// ConfigFromMap reads a persisted config; missing or invalid data yields defaults
func ConfigFromMap(m model.JSONMap) RenderConfig {
	if len(m) == 0 {
		return DefaultRenderConfig()
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return DefaultRenderConfig()
	}
	return NormalizeConfig(string(raw), nil, nil)
}

// dedupe drops repeated and zero IDs while keeping first-seen order
func dedupe(ids []uint) []uint {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
