package domain

import "strings"

// ComplexityLevel is one of five ordered tiers used to route simple
// requests to cheaper models and hard ones to more capable models.
type ComplexityLevel int

const (
	ComplexitySuperEasy ComplexityLevel = iota
	ComplexityEasy
	ComplexityMedium
	ComplexityHard
	ComplexitySuperHard
)

var complexityNames = [...]string{"super_easy", "easy", "medium", "hard", "super_hard"}

func (l ComplexityLevel) String() string {
	if l < ComplexitySuperEasy || l > ComplexitySuperHard {
		return "medium"
	}
	return complexityNames[l]
}

// ParseComplexityLevel parses a classifier token. The boolean is false
// when the token is not a recognized level.
func ParseComplexityLevel(s string) (ComplexityLevel, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range complexityNames {
		if s == name {
			return ComplexityLevel(i), true
		}
	}
	return ComplexityMedium, false
}

// MaxLevel returns the higher of two levels.
func MaxLevel(a, b ComplexityLevel) ComplexityLevel {
	if a > b {
		return a
	}
	return b
}

// ComplexityRoutingConfig maps each complexity level to a target and
// names the classifier model used to score inbound messages.
// ToolMinComplexity floors the effective level when the request needs
// tool calling.
type ComplexityRoutingConfig struct {
	ID                string
	BotID             string
	ClassifierVendor  string
	ClassifierModel   string
	ToolMinComplexity ComplexityLevel
	Targets           [5]Target
}

// TargetFor indexes the level into the configured targets, clamping
// out-of-range values to medium.
func (c ComplexityRoutingConfig) TargetFor(level ComplexityLevel) Target {
	if level < ComplexitySuperEasy || level > ComplexitySuperHard {
		level = ComplexityMedium
	}
	return c.Targets[level]
}
