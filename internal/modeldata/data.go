// Package modeldata ships the built-in model catalog: feature flags,
// context windows, and list pricing for the models the engine routes
// to most often. Operators overlay or correct entries via a YAML file;
// overlay rows win over built-ins.
package modeldata

import (
	"fmt"
	"os"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Builtin returns the compiled-in catalog entries. Pricing is in
// micro-dollars per 1K tokens.
func Builtin() []domain.CatalogEntry {
	return []domain.CatalogEntry{
		// OpenAI
		{
			ModelID:               "gpt-4o",
			Vendor:                "openai",
			SupportsVision:        true,
			ContextWindow:         128000,
			InputCostMicrosPer1K:  2500,
			OutputCostMicrosPer1K: 10000,
			RecommendedScenarios:  []string{"vision", "general"},
		},
		{
			ModelID:               "gpt-4o-mini",
			Vendor:                "openai",
			SupportsVision:        true,
			ContextWindow:         128000,
			InputCostMicrosPer1K:  150,
			OutputCostMicrosPer1K: 600,
			RecommendedScenarios:  []string{"general"},
		},
		{
			ModelID:                  "o1",
			Vendor:                   "openai",
			SupportsExtendedThinking: true,
			ContextWindow:            200000,
			InputCostMicrosPer1K:     15000,
			OutputCostMicrosPer1K:    60000,
			RecommendedScenarios:     []string{"deep-reasoning"},
		},

		// Anthropic
		{
			ModelID:                  "claude-sonnet-4-5",
			Vendor:                   "anthropic",
			SupportsExtendedThinking: true,
			SupportsCacheControl:     true,
			SupportsVision:           true,
			ContextWindow:            200000,
			InputCostMicrosPer1K:     3000,
			OutputCostMicrosPer1K:    15000,
			RecommendedScenarios:     []string{"coding", "general"},
		},
		{
			ModelID:                  "claude-opus-4-1",
			Vendor:                   "anthropic",
			SupportsExtendedThinking: true,
			SupportsCacheControl:     true,
			SupportsVision:           true,
			ContextWindow:            200000,
			InputCostMicrosPer1K:     15000,
			OutputCostMicrosPer1K:    75000,
			RecommendedScenarios:     []string{"deep-reasoning", "coding"},
		},
		{
			ModelID:              "claude-haiku-4-5",
			Vendor:               "anthropic",
			SupportsCacheControl: true,
			SupportsVision:       true,
			ContextWindow:        200000,
			InputCostMicrosPer1K: 800,
			OutputCostMicrosPer1K: 4000,
			RecommendedScenarios: []string{"general"},
		},
	}
}

type overlayEntry struct {
	ModelID                  string   `yaml:"model_id"`
	Vendor                   string   `yaml:"vendor"`
	SupportsExtendedThinking bool     `yaml:"supports_extended_thinking"`
	SupportsCacheControl     bool     `yaml:"supports_cache_control"`
	SupportsVision           bool     `yaml:"supports_vision"`
	RecommendedScenarios     []string `yaml:"recommended_scenarios"`
	ContextWindow            int      `yaml:"context_window"`
	InputCostMicrosPer1K     int64    `yaml:"input_cost_micros_per_1k"`
	OutputCostMicrosPer1K    int64    `yaml:"output_cost_micros_per_1k"`
}

type overlayFile struct {
	Models []overlayEntry `yaml:"models"`
}

// LoadOverlay reads operator-tuned catalog entries from a YAML file.
// A missing file is not an error; it just means no overlay.
func LoadOverlay(path string) ([]domain.CatalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read catalog overlay: %w", err)
	}

	var f overlayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog overlay: %w", err)
	}

	entries := make([]domain.CatalogEntry, 0, len(f.Models))
	for _, m := range f.Models {
		if m.ModelID == "" {
			return nil, fmt.Errorf("catalog overlay entry missing model_id")
		}
		entries = append(entries, domain.CatalogEntry{
			ModelID:                  m.ModelID,
			Vendor:                   m.Vendor,
			SupportsExtendedThinking: m.SupportsExtendedThinking,
			SupportsCacheControl:     m.SupportsCacheControl,
			SupportsVision:           m.SupportsVision,
			RecommendedScenarios:     m.RecommendedScenarios,
			ContextWindow:            m.ContextWindow,
			InputCostMicrosPer1K:     m.InputCostMicrosPer1K,
			OutputCostMicrosPer1K:    m.OutputCostMicrosPer1K,
		})
	}
	return entries, nil
}

// Merged returns built-ins with overlay entries applied on top.
func Merged(overlayPath string) ([]domain.CatalogEntry, error) {
	entries := Builtin()
	overlay, err := LoadOverlay(overlayPath)
	if err != nil {
		return nil, err
	}
	if len(overlay) == 0 {
		return entries, nil
	}

	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[e.ModelID] = i
	}
	for _, o := range overlay {
		if i, ok := index[o.ModelID]; ok {
			entries[i] = o
		} else {
			entries = append(entries, o)
		}
	}
	return entries, nil
}
