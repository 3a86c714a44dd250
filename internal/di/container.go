package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mikey/attachment-triage/internal/config"
	"github.com/mikey/attachment-triage/internal/core"
	"github.com/mikey/attachment-triage/internal/factory"
	"github.com/mikey/attachment-triage/internal/logging"
	"github.com/mikey/attachment-triage/internal/runner"
	"github.com/mikey/attachment-triage/internal/store"
)

// BuildContainer wires the classification pipeline for one run: config,
// logger, provider client, cache, limiter, backoff, service, store, runner.
func BuildContainer(cfg *config.Config, outputDir string) (*dig.Container, error) {
	container := dig.New()

	if err := container.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}

	if err := container.Provide(func(f *factory.LLMFactory) (core.LLMClient, error) {
		return f.CreateLLMClient()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.CacheFactory) (core.VerdictCache, error) {
		return f.CreateVerdictCache()
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(func(cfg *config.Config) *rate.Limiter {
		rl := cfg.GetRateLimit()
		return rate.NewLimiter(rate.Limit(rl.RPS), rl.Burst)
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(func(cfg *config.Config) (core.BackoffPolicy, error) {
		retry, err := cfg.GetRetry()
		if err != nil {
			return core.BackoffPolicy{}, err
		}
		// Rand stays nil: the shared global source is safe for
		// concurrent workers, a seeded *rand.Rand is not.
		return core.BackoffPolicy{
			MaxAttempts: retry.MaxAttempts,
			BaseDelay:   retry.BaseDelay,
			MaxDelay:    retry.MaxDelay,
			Jitter:      retry.Jitter,
		}, nil
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(func(
		llm core.LLMClient,
		cache core.VerdictCache,
		limiter *rate.Limiter,
		backoff core.BackoffPolicy,
		cfg *config.Config,
		logger *zap.Logger,
	) (*core.ClassifierService, error) {
		retry, err := cfg.GetRetry()
		if err != nil {
			return nil, err
		}
		cacheCfg, err := cfg.GetCache()
		if err != nil {
			return nil, err
		}
		return core.NewClassifierService(
			llm,
			cache,
			limiter,
			backoff,
			retry.AttemptTimeout,
			cfg.GetLLM().MaxBodySize,
			cacheCfg.Enabled,
			cacheCfg.TTL,
			logger,
		), nil
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(func(logger *zap.Logger) (*store.FileStore, error) {
		return store.NewFileStore(outputDir, logger)
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(func(
		service *core.ClassifierService,
		fs *store.FileStore,
		cfg *config.Config,
		logger *zap.Logger,
	) *runner.BatchRunner {
		return runner.NewBatchRunner(service, fs, cfg.GetInt("runner.workers"), logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
