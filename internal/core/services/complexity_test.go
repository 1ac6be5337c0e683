package services

import (
	"context"
	"errors"
	"testing"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func complexityConfig() *domain.ComplexityRoutingConfig {
	return &domain.ComplexityRoutingConfig{
		BotID:             "bot",
		ClassifierVendor:  "openai",
		ClassifierModel:   "gpt-4o-mini",
		ToolMinComplexity: domain.ComplexityMedium,
		Targets: [5]domain.Target{
			{Vendor: "openai", Model: "t0"},
			{Vendor: "openai", Model: "t1"},
			{Vendor: "openai", Model: "t2"},
			{Vendor: "openai", Model: "t3"},
			{Vendor: "openai", Model: "t4"},
		},
	}
}

func TestClassifier_MapsLevelToTarget(t *testing.T) {
	client := new(MockClassifierClient)
	client.On("Complete", mock.Anything, "openai", "gpt-4o-mini", mock.Anything).
		Return("super_hard", nil).Once()

	c := NewClassifier(client, newFakeCache())
	cfg := complexityConfig()

	level := c.Classify(context.Background(), "prove the Riemann hypothesis", cfg, false)
	assert.Equal(t, domain.ComplexitySuperHard, level)
	assert.Equal(t, "t4", cfg.TargetFor(level).Model)
	client.AssertExpectations(t)
}

func TestClassifier_DegradesToMediumOnError(t *testing.T) {
	client := new(MockClassifierClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("upstream down")).Once()

	c := NewClassifier(client, newFakeCache())

	level := c.Classify(context.Background(), "hi", complexityConfig(), false)
	assert.Equal(t, domain.ComplexityMedium, level)
}

func TestClassifier_DegradesToMediumOnGarbageOutput(t *testing.T) {
	client := new(MockClassifierClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("I think this is quite hard actually", nil).Once()

	c := NewClassifier(client, newFakeCache())

	level := c.Classify(context.Background(), "hi", complexityConfig(), false)
	assert.Equal(t, domain.ComplexityMedium, level)
}

func TestClassifier_ToolFloorRaisesLevel(t *testing.T) {
	client := new(MockClassifierClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("easy", nil).Once()

	c := NewClassifier(client, newFakeCache())

	level := c.Classify(context.Background(), "what time is it", complexityConfig(), true)
	assert.Equal(t, domain.ComplexityMedium, level)
}

func TestClassifier_ToolFloorDoesNotLowerLevel(t *testing.T) {
	client := new(MockClassifierClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("super_hard", nil).Once()

	c := NewClassifier(client, newFakeCache())

	level := c.Classify(context.Background(), "hard question", complexityConfig(), true)
	assert.Equal(t, domain.ComplexitySuperHard, level)
}

func TestClassifier_CachesClassification(t *testing.T) {
	client := new(MockClassifierClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("easy", nil).Once()

	c := NewClassifier(client, newFakeCache())
	cfg := complexityConfig()

	assert.Equal(t, domain.ComplexityEasy, c.Classify(context.Background(), "same message", cfg, false))
	assert.Equal(t, domain.ComplexityEasy, c.Classify(context.Background(), "same message", cfg, false))
	client.AssertNumberOfCalls(t, "Complete", 1)
}

func TestClassifier_NilCache(t *testing.T) {
	client := new(MockClassifierClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("hard", nil).Twice()

	c := NewClassifier(client, nil)
	cfg := complexityConfig()

	assert.Equal(t, domain.ComplexityHard, c.Classify(context.Background(), "m", cfg, false))
	assert.Equal(t, domain.ComplexityHard, c.Classify(context.Background(), "m", cfg, false))
	client.AssertExpectations(t)
}
