package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/arbiterlabs/arbiter/internal/config"
	"github.com/arbiterlabs/arbiter/internal/core/domain"
	"github.com/arbiterlabs/arbiter/internal/core/ports"
	"github.com/arbiterlabs/arbiter/internal/core/services"
	"github.com/arbiterlabs/arbiter/internal/crypto"
	"github.com/arbiterlabs/arbiter/internal/httpclient"
	"github.com/arbiterlabs/arbiter/internal/logger"
	"github.com/arbiterlabs/arbiter/internal/modeldata"
	"github.com/arbiterlabs/arbiter/internal/platform/otel"
	"github.com/arbiterlabs/arbiter/internal/server"
	"github.com/arbiterlabs/arbiter/internal/server/validator"
	"github.com/arbiterlabs/arbiter/internal/server/v1"
	"github.com/arbiterlabs/arbiter/internal/store/cache"
	"github.com/arbiterlabs/arbiter/internal/store/sqlite"
	"github.com/arbiterlabs/arbiter/internal/translator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	logger.Initialize(cfg.Server.Env)
	defer logger.Sync()
	log := logger.Get()

	shutdownTracer, err := otel.InitTracer("arbiter", log, os.Stdout)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(ctx)
	}()

	repo, err := sqlite.NewSQLiteStorage(cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer repo.Close()

	cipher, err := crypto.NewCipher(cfg.Crypto.KeyHex)
	if err != nil {
		logger.Fatal("failed to init cipher", zap.Error(err))
	}

	var cacheService ports.CacheService
	if cfg.Redis.Enabled {
		cacheService, err = cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
	} else {
		cacheService = cache.NewMemoryCache()
	}

	translators := translator.NewDefaultRegistry()
	caller := httpclient.NewCaller(
		&http.Client{},
		translators,
		time.Duration(cfg.Upstream.TimeoutMs)*time.Millisecond,
		map[string]string{
			"openai":    cfg.Upstream.OpenAIBaseURL,
			"anthropic": cfg.Upstream.AnthropicBaseURL,
		},
	)

	rr := services.NewRoundRobinState()
	keyring := services.NewKeyring(repo.ProviderKeys(), cipher, rr)
	resolver := services.NewResolver(repo.RoutingConfigs(), repo.ProviderKeys(), rr)
	classifier := services.NewClassifier(httpclient.NewClassifierClient(caller, keyring), cacheService)
	executor := services.NewExecutor(caller, keyring, translators)
	tagService := services.NewTagService(repo.CapabilityTags(), repo.Catalog())
	catalogSync := services.NewCatalogSync(repo.Catalog(), tagService, func() ([]domain.CatalogEntry, error) {
		return modeldata.Merged(cfg.Catalog.OverlayPath)
	})

	modelRouter := services.NewModelRouter(
		repo.Bots(),
		repo.FallbackChains(),
		repo.Complexity(),
		resolver,
		classifier,
		keyring,
		executor,
		rr,
	)

	validator.InitValidator()

	handler := v1.NewHandler(modelRouter, tagService, catalogSync, repo)
	srv := server.New(cfg, log, handler)

	if err := srv.Run(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
