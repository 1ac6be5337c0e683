package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/arbiterlabs/arbiter/internal/config"
	"github.com/arbiterlabs/arbiter/internal/core/domain"
	"github.com/arbiterlabs/arbiter/internal/core/services"
	"github.com/arbiterlabs/arbiter/internal/crypto"
	"github.com/arbiterlabs/arbiter/internal/modeldata"
	"github.com/arbiterlabs/arbiter/internal/store/sqlite"
)

// Seeds a demo bot exercising all three routing config variants, a
// tagged key pool, a fallback chain, capability tags, and a
// complexity routing config.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	repo, err := sqlite.NewSQLiteStorage(cfg.Database.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer repo.Close()

	cipher, err := crypto.NewCipher(cfg.Crypto.KeyHex)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	now := time.Now()

	keyIDs := map[string]string{}
	for _, k := range []struct {
		vendor, tag, secret string
	}{
		{"openai", "fast", "sk-demo-openai-fast-1"},
		{"openai", "fast", "sk-demo-openai-fast-2"},
		{"openai", "", "sk-demo-openai-default"},
		{"anthropic", "", "sk-ant-demo-default"},
	} {
		enc, err := cipher.Encrypt([]byte(k.secret))
		if err != nil {
			log.Fatal(err)
		}
		key := &domain.ProviderKey{
			ID:              uuid.New().String(),
			Vendor:          k.vendor,
			SecretEncrypted: enc,
			Tag:             k.tag,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := repo.ProviderKeys().Create(ctx, key); err != nil {
			log.Fatal(err)
		}
		keyIDs[k.vendor+":"+k.tag] = key.ID
		fmt.Printf("Created key %s (%s tag=%q)\n", key.ID, k.vendor, k.tag)
	}

	chainID := "chain-default"
	chain := &domain.FallbackChain{
		ChainID: chainID,
		Models: []domain.FallbackModel{
			{Vendor: "anthropic", Model: "claude-sonnet-4-5", Protocol: "anthropic"},
			{Vendor: "openai", Model: "gpt-4o-mini", Protocol: "openai"},
		},
		TriggerStatusCodes: []int{429, 503, 529},
		TriggerErrorTypes:  []domain.ErrorType{domain.ErrorTypeOverloaded},
		TriggerTimeoutMs:   30000,
		MaxRetries:         2,
		RetryDelayMs:       250,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := repo.FallbackChains().Create(ctx, chain); err != nil {
		log.Fatal(err)
	}

	bot := &domain.Bot{
		ID:                uuid.New().String(),
		Name:              "demo-bot",
		Tags:              []string{"fast"},
		FallbackChainID:   chainID,
		ComplexityEnabled: true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := repo.Bots().Create(ctx, bot); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Created bot %s\n", bot.ID)

	configs := []*domain.RoutingConfig{
		{
			ID:       uuid.New().String(),
			BotID:    bot.ID,
			Priority: 10,
			Enabled:  true,
			Variant: domain.FunctionRoute{
				Rules: []domain.RoutingRule{
					{Pattern: "vision*", Target: domain.Target{Vendor: "openai", Model: "gpt-4o"}},
					{Pattern: "*code*", Target: domain.Target{Vendor: "anthropic", Model: "claude-sonnet-4-5"}},
				},
			},
		},
		{
			ID:       uuid.New().String(),
			BotID:    bot.ID,
			Priority: 20,
			Enabled:  true,
			Variant: domain.LoadBalance{
				Targets: []domain.Target{
					{Vendor: "openai", Model: "gpt-4o"},
					{Vendor: "openai", Model: "gpt-4o-mini"},
				},
				Weights: []uint{3, 1},
			},
		},
		{
			ID:       uuid.New().String(),
			BotID:    bot.ID,
			Priority: 30,
			Enabled:  true,
			Variant: domain.Failover{
				Primary: domain.Target{Vendor: "openai", Model: "gpt-4o"},
				FallbackChain: []domain.Target{
					{Vendor: "anthropic", Model: "claude-sonnet-4-5"},
				},
			},
		},
	}
	for _, rc := range configs {
		rc.CreatedAt = now
		rc.UpdatedAt = now
		if err := repo.RoutingConfigs().Create(ctx, rc); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Created routing config %s (%s)\n", rc.ID, rc.Variant.Kind())
	}

	tags := []*domain.CapabilityTag{
		{TagID: "deep-reasoning", RequiredModels: []string{"*o1*", "*opus*"}, RequiresExtendedThinking: true, Priority: 1, Active: true},
		{TagID: "vision", RequiresVision: true, Priority: 2, Active: true},
		{TagID: "long-context", RequiredModels: []string{"claude-*", "gemini-*"}, Priority: 3, Active: true},
	}
	for _, t := range tags {
		if err := repo.CapabilityTags().Create(ctx, t); err != nil {
			log.Fatal(err)
		}
	}

	tagService := services.NewTagService(repo.CapabilityTags(), repo.Catalog())
	catalogSync := services.NewCatalogSync(repo.Catalog(), tagService, func() ([]domain.CatalogEntry, error) {
		return modeldata.Merged(cfg.Catalog.OverlayPath)
	})
	synced, err := catalogSync.SyncAll(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Synced %d catalog models\n", len(synced))

	complexity := &domain.ComplexityRoutingConfig{
		ID:                uuid.New().String(),
		BotID:             bot.ID,
		ClassifierVendor:  "openai",
		ClassifierModel:   "gpt-4o-mini",
		ToolMinComplexity: domain.ComplexityMedium,
		Targets: [5]domain.Target{
			{Vendor: "openai", Model: "gpt-4o-mini"},
			{Vendor: "openai", Model: "gpt-4o-mini"},
			{Vendor: "openai", Model: "gpt-4o"},
			{Vendor: "anthropic", Model: "claude-sonnet-4-5"},
			{Vendor: "anthropic", Model: "claude-opus-4-1"},
		},
	}
	if err := repo.Complexity().Create(ctx, complexity); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Seed complete")
}
