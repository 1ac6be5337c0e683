package domain

import "time"

// MatchSource records how a capability tag was attached to a model.
// Manual assignments are never touched by automatic re-tagging.
type MatchSource string

const (
	MatchSourceManual   MatchSource = "manual"
	MatchSourcePattern  MatchSource = "pattern"
	MatchSourceFeature  MatchSource = "feature"
	MatchSourceScenario MatchSource = "scenario"
)

// Confidence scores per match source. Used for display ranking only,
// never for selection order.
const (
	ConfidencePattern  = 100
	ConfidenceFeature  = 90
	ConfidenceScenario = 80
)

// CapabilityTag labels a model capability such as vision or extended
// thinking. RequiredModels holds glob patterns over model names; the
// Requires* booleans are feature requirements that must ALL be met for
// a feature match.
type CapabilityTag struct {
	TagID                    string
	RequiredModels           []string
	RequiresExtendedThinking bool
	RequiresCacheControl     bool
	RequiresVision           bool
	Priority                 int
	Active                   bool
}

// HasFeatureRequirements reports whether the tag declares at least one
// feature requirement.
func (t CapabilityTag) HasFeatureRequirements() bool {
	return t.RequiresExtendedThinking || t.RequiresCacheControl || t.RequiresVision
}

// TagMatch is one tag attached to a model, with its provenance.
type TagMatch struct {
	TagID       string      `json:"tag_id"`
	ModelID     string      `json:"model_id"`
	MatchSource MatchSource `json:"match_source"`
	Confidence  int         `json:"confidence"`
}

// CatalogEntry is the catalog's view of a model: its feature flags,
// recommended usage scenarios, and pricing metadata.
type CatalogEntry struct {
	ModelID                  string
	Vendor                   string
	SupportsExtendedThinking bool
	SupportsCacheControl     bool
	SupportsVision           bool
	RecommendedScenarios     []string
	ContextWindow            int
	InputCostMicrosPer1K     int64
	OutputCostMicrosPer1K    int64
	CreatedAt                time.Time
	UpdatedAt                time.Time
}
