// Package model holds the row shapes the sqlite repository scans into
// and their conversions to the domain types. JSON columns keep the
// variant payloads opaque at rest; the domain layer owns decoding.
package model

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
)

// Bot owns routing configuration.
type Bot struct {
	ID                string         `db:"id" json:"id"`
	Name              string         `db:"name" json:"name"`
	TagsJSON          string         `db:"tags_json" json:"-"`
	FallbackChainID   sql.NullString `db:"fallback_chain_id" json:"fallback_chain_id,omitempty"`
	ComplexityEnabled bool           `db:"complexity_enabled" json:"complexity_enabled"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

func (b Bot) ToDomain() (*domain.Bot, error) {
	var tags []string
	if b.TagsJSON != "" {
		if err := json.Unmarshal([]byte(b.TagsJSON), &tags); err != nil {
			return nil, fmt.Errorf("decode bot tags: %w", err)
		}
	}
	return &domain.Bot{
		ID:                b.ID,
		Name:              b.Name,
		Tags:              tags,
		FallbackChainID:   b.FallbackChainID.String,
		ComplexityEnabled: b.ComplexityEnabled,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}, nil
}

func BotFromDomain(b *domain.Bot) (*Bot, error) {
	tags, err := json.Marshal(b.Tags)
	if err != nil {
		return nil, err
	}
	return &Bot{
		ID:                b.ID,
		Name:              b.Name,
		TagsJSON:          string(tags),
		FallbackChainID:   sql.NullString{String: b.FallbackChainID, Valid: b.FallbackChainID != ""},
		ComplexityEnabled: b.ComplexityEnabled,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}, nil
}

// RoutingConfig stores the variant as kind + JSON params.
type RoutingConfig struct {
	ID         string    `db:"id" json:"id"`
	BotID      string    `db:"bot_id" json:"bot_id"`
	Kind       string    `db:"kind" json:"kind"`
	Priority   int       `db:"priority" json:"priority"`
	IsEnabled  bool      `db:"is_enabled" json:"is_enabled"`
	ParamsJSON string    `db:"params_json" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

func (c RoutingConfig) ToDomain() (*domain.RoutingConfig, error) {
	variant, err := domain.DecodeVariant(domain.RoutingKind(c.Kind), []byte(c.ParamsJSON))
	if err != nil {
		return nil, fmt.Errorf("routing config %s: %w", c.ID, err)
	}
	return &domain.RoutingConfig{
		ID:        c.ID,
		BotID:     c.BotID,
		Priority:  c.Priority,
		Enabled:   c.IsEnabled,
		Variant:   variant,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}, nil
}

func RoutingConfigFromDomain(c *domain.RoutingConfig) (*RoutingConfig, error) {
	params, err := domain.EncodeVariant(c.Variant)
	if err != nil {
		return nil, err
	}
	return &RoutingConfig{
		ID:         c.ID,
		BotID:      c.BotID,
		Kind:       string(c.Variant.Kind()),
		Priority:   c.Priority,
		IsEnabled:  c.Enabled,
		ParamsJSON: string(params),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}, nil
}

// ProviderKey holds an encrypted credential. Tag NULL means the key
// sits in the vendor's default pool.
type ProviderKey struct {
	ID           string         `db:"id" json:"id"`
	Vendor       string         `db:"vendor" json:"vendor"`
	SecretEnc    []byte         `db:"secret_enc" json:"-"`
	BaseURL      sql.NullString `db:"base_url" json:"base_url,omitempty"`
	Tag          sql.NullString `db:"tag" json:"tag,omitempty"`
	MetadataJSON sql.NullString `db:"metadata_json" json:"-"`
	IsDeleted    bool           `db:"is_deleted" json:"-"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

func (k ProviderKey) ToDomain() (*domain.ProviderKey, error) {
	var meta map[string]string
	if k.MetadataJSON.Valid && k.MetadataJSON.String != "" {
		if err := json.Unmarshal([]byte(k.MetadataJSON.String), &meta); err != nil {
			return nil, fmt.Errorf("decode key metadata: %w", err)
		}
	}
	return &domain.ProviderKey{
		ID:              k.ID,
		Vendor:          k.Vendor,
		SecretEncrypted: k.SecretEnc,
		BaseURL:         k.BaseURL.String,
		Tag:             k.Tag.String,
		Metadata:        meta,
		Deleted:         k.IsDeleted,
		CreatedAt:       k.CreatedAt,
		UpdatedAt:       k.UpdatedAt,
	}, nil
}

func ProviderKeyFromDomain(k *domain.ProviderKey) (*ProviderKey, error) {
	var meta sql.NullString
	if len(k.Metadata) > 0 {
		raw, err := json.Marshal(k.Metadata)
		if err != nil {
			return nil, err
		}
		meta = sql.NullString{String: string(raw), Valid: true}
	}
	return &ProviderKey{
		ID:           k.ID,
		Vendor:       k.Vendor,
		SecretEnc:    k.SecretEncrypted,
		BaseURL:      sql.NullString{String: k.BaseURL, Valid: k.BaseURL != ""},
		Tag:          sql.NullString{String: k.Tag, Valid: k.Tag != ""},
		MetadataJSON: meta,
		IsDeleted:    k.Deleted,
		CreatedAt:    k.CreatedAt,
		UpdatedAt:    k.UpdatedAt,
	}, nil
}

// FallbackChain stores models and trigger sets as JSON columns.
type FallbackChain struct {
	ChainID           string    `db:"chain_id" json:"chain_id"`
	ModelsJSON        string    `db:"models_json" json:"-"`
	TriggerCodesJSON  string    `db:"trigger_status_codes_json" json:"-"`
	TriggerTypesJSON  string    `db:"trigger_error_types_json" json:"-"`
	TriggerTimeoutMs  uint      `db:"trigger_timeout_ms" json:"trigger_timeout_ms"`
	MaxRetries        uint      `db:"max_retries" json:"max_retries"`
	RetryDelayMs      uint      `db:"retry_delay_ms" json:"retry_delay_ms"`
	PreserveProtocol  bool      `db:"preserve_protocol" json:"preserve_protocol"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

func (c FallbackChain) ToDomain() (*domain.FallbackChain, error) {
	out := &domain.FallbackChain{
		ChainID:          c.ChainID,
		TriggerTimeoutMs: c.TriggerTimeoutMs,
		MaxRetries:       c.MaxRetries,
		RetryDelayMs:     c.RetryDelayMs,
		PreserveProtocol: c.PreserveProtocol,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(c.ModelsJSON), &out.Models); err != nil {
		return nil, fmt.Errorf("decode chain models: %w", err)
	}
	if len(out.Models) == 0 {
		return nil, fmt.Errorf("fallback chain %s has no models", c.ChainID)
	}
	if c.TriggerCodesJSON != "" {
		if err := json.Unmarshal([]byte(c.TriggerCodesJSON), &out.TriggerStatusCodes); err != nil {
			return nil, fmt.Errorf("decode chain trigger codes: %w", err)
		}
	}
	if c.TriggerTypesJSON != "" {
		if err := json.Unmarshal([]byte(c.TriggerTypesJSON), &out.TriggerErrorTypes); err != nil {
			return nil, fmt.Errorf("decode chain trigger types: %w", err)
		}
	}
	return out, nil
}

func FallbackChainFromDomain(c *domain.FallbackChain) (*FallbackChain, error) {
	models, err := json.Marshal(c.Models)
	if err != nil {
		return nil, err
	}
	codes, err := json.Marshal(c.TriggerStatusCodes)
	if err != nil {
		return nil, err
	}
	types, err := json.Marshal(c.TriggerErrorTypes)
	if err != nil {
		return nil, err
	}
	return &FallbackChain{
		ChainID:          c.ChainID,
		ModelsJSON:       string(models),
		TriggerCodesJSON: string(codes),
		TriggerTypesJSON: string(types),
		TriggerTimeoutMs: c.TriggerTimeoutMs,
		MaxRetries:       c.MaxRetries,
		RetryDelayMs:     c.RetryDelayMs,
		PreserveProtocol: c.PreserveProtocol,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}, nil
}

// CapabilityTag is a capability label with its match requirements.
type CapabilityTag struct {
	TagID                    string `db:"tag_id" json:"tag_id"`
	RequiredModelsJSON       string `db:"required_models_json" json:"-"`
	RequiresExtendedThinking bool   `db:"requires_extended_thinking" json:"requires_extended_thinking"`
	RequiresCacheControl     bool   `db:"requires_cache_control" json:"requires_cache_control"`
	RequiresVision           bool   `db:"requires_vision" json:"requires_vision"`
	Priority                 int    `db:"priority" json:"priority"`
	IsActive                 bool   `db:"is_active" json:"is_active"`
}

func (t CapabilityTag) ToDomain() (*domain.CapabilityTag, error) {
	var patterns []string
	if t.RequiredModelsJSON != "" {
		if err := json.Unmarshal([]byte(t.RequiredModelsJSON), &patterns); err != nil {
			return nil, fmt.Errorf("decode tag patterns: %w", err)
		}
	}
	return &domain.CapabilityTag{
		TagID:                    t.TagID,
		RequiredModels:           patterns,
		RequiresExtendedThinking: t.RequiresExtendedThinking,
		RequiresCacheControl:     t.RequiresCacheControl,
		RequiresVision:           t.RequiresVision,
		Priority:                 t.Priority,
		Active:                   t.IsActive,
	}, nil
}

// TagAssignment is one tag attached to a catalog model.
type TagAssignment struct {
	ID          string    `db:"id" json:"id"`
	ModelID     string    `db:"model_id" json:"model_id"`
	TagID       string    `db:"tag_id" json:"tag_id"`
	MatchSource string    `db:"match_source" json:"match_source"`
	Confidence  int       `db:"confidence" json:"confidence"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CatalogEntry is a model's catalog row with feature flags and pricing.
type CatalogEntry struct {
	ModelID                  string    `db:"model_id" json:"model_id"`
	Vendor                   string    `db:"vendor" json:"vendor"`
	SupportsExtendedThinking bool      `db:"supports_extended_thinking" json:"supports_extended_thinking"`
	SupportsCacheControl     bool      `db:"supports_cache_control" json:"supports_cache_control"`
	SupportsVision           bool      `db:"supports_vision" json:"supports_vision"`
	ScenariosJSON            string    `db:"recommended_scenarios_json" json:"-"`
	ContextWindow            int       `db:"context_window" json:"context_window"`
	InputCostMicrosPer1K     int64     `db:"input_cost_micros_per_1k" json:"input_cost_micros_per_1k"`
	OutputCostMicrosPer1K    int64     `db:"output_cost_micros_per_1k" json:"output_cost_micros_per_1k"`
	CreatedAt                time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time `db:"updated_at" json:"updated_at"`
}

func (e CatalogEntry) ToDomain() (*domain.CatalogEntry, error) {
	var scenarios []string
	if e.ScenariosJSON != "" {
		if err := json.Unmarshal([]byte(e.ScenariosJSON), &scenarios); err != nil {
			return nil, fmt.Errorf("decode catalog scenarios: %w", err)
		}
	}
	return &domain.CatalogEntry{
		ModelID:                  e.ModelID,
		Vendor:                   e.Vendor,
		SupportsExtendedThinking: e.SupportsExtendedThinking,
		SupportsCacheControl:     e.SupportsCacheControl,
		SupportsVision:           e.SupportsVision,
		RecommendedScenarios:     scenarios,
		ContextWindow:            e.ContextWindow,
		InputCostMicrosPer1K:     e.InputCostMicrosPer1K,
		OutputCostMicrosPer1K:    e.OutputCostMicrosPer1K,
		CreatedAt:                e.CreatedAt,
		UpdatedAt:                e.UpdatedAt,
	}, nil
}

func CatalogEntryFromDomain(e *domain.CatalogEntry) (*CatalogEntry, error) {
	scenarios, err := json.Marshal(e.RecommendedScenarios)
	if err != nil {
		return nil, err
	}
	return &CatalogEntry{
		ModelID:                  e.ModelID,
		Vendor:                   e.Vendor,
		SupportsExtendedThinking: e.SupportsExtendedThinking,
		SupportsCacheControl:     e.SupportsCacheControl,
		SupportsVision:           e.SupportsVision,
		ScenariosJSON:            string(scenarios),
		ContextWindow:            e.ContextWindow,
		InputCostMicrosPer1K:     e.InputCostMicrosPer1K,
		OutputCostMicrosPer1K:    e.OutputCostMicrosPer1K,
		CreatedAt:                e.CreatedAt,
		UpdatedAt:                e.UpdatedAt,
	}, nil
}

// ComplexityConfig maps the five levels to targets as a JSON array
// indexed by level.
type ComplexityConfig struct {
	ID                string `db:"id" json:"id"`
	BotID             string `db:"bot_id" json:"bot_id"`
	ClassifierVendor  string `db:"classifier_vendor" json:"classifier_vendor"`
	ClassifierModel   string `db:"classifier_model" json:"classifier_model"`
	ToolMinComplexity int    `db:"tool_min_complexity" json:"tool_min_complexity"`
	TargetsJSON       string `db:"targets_json" json:"-"`
}

func (c ComplexityConfig) ToDomain() (*domain.ComplexityRoutingConfig, error) {
	var targets [5]domain.Target
	if err := json.Unmarshal([]byte(c.TargetsJSON), &targets); err != nil {
		return nil, fmt.Errorf("decode complexity targets: %w", err)
	}
	return &domain.ComplexityRoutingConfig{
		ID:                c.ID,
		BotID:             c.BotID,
		ClassifierVendor:  c.ClassifierVendor,
		ClassifierModel:   c.ClassifierModel,
		ToolMinComplexity: domain.ComplexityLevel(c.ToolMinComplexity),
		Targets:           targets,
	}, nil
}

func ComplexityConfigFromDomain(c *domain.ComplexityRoutingConfig) (*ComplexityConfig, error) {
	targets, err := json.Marshal(c.Targets)
	if err != nil {
		return nil, err
	}
	return &ComplexityConfig{
		ID:                c.ID,
		BotID:             c.BotID,
		ClassifierVendor:  c.ClassifierVendor,
		ClassifierModel:   c.ClassifierModel,
		ToolMinComplexity: int(c.ToolMinComplexity),
		TargetsJSON:       string(targets),
	}, nil
}
