package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"fraud-advisor/backend/internal/api"
	"fraud-advisor/backend/internal/chatbot"
	"fraud-advisor/backend/internal/generation"
	"fraud-advisor/backend/internal/reputation"
	"fraud-advisor/backend/internal/repository"
	"fraud-advisor/backend/internal/service"
	"fraud-advisor/backend/internal/ws"
	"fraud-advisor/backend/pkg/cache"
	"fraud-advisor/backend/pkg/config"
	"fraud-advisor/backend/pkg/health"
	"fraud-advisor/backend/pkg/jwt"
	"fraud-advisor/backend/pkg/logger"
	"fraud-advisor/backend/pkg/secrets"
	"fraud-advisor/backend/shared/observability"
	sharedredis "fraud-advisor/backend/shared/redis"

	"gorm.io/gorm"
)

const serviceName = "fraud-advisor"

// Container holds all the dependencies for the application
type Container struct {
	Config     *config.Config
	DB         *gorm.DB
	Logger     *logger.Logger
	Store      *repository.Store
	Cache      cache.Store
	Secrets    secrets.Manager
	JWTService *jwt.Service
	Generation generation.Backend
	Health     *health.Checker

	Metrics     *observability.MetricsSetup
	ChatMetrics *observability.ChatMetrics

	ChatService        *service.ChatService
	AdvisorService     *service.AdvisorService
	FraudReportService *service.FraudReportService
	UserService        *service.UserService
	Reputation         *reputation.Service
	Hub                *ws.Hub

	closers []func(context.Context) error
}

// Options overrides pieces of the container, mostly for tests
type Options struct {
	// TraceWriter receives spans when tracing is enabled; defaults to stdout
	TraceWriter io.Writer
	// Cache replaces the redis/memory selection
	Cache cache.Store
	// Generation replaces the configured backend
	Generation generation.Backend
}

// New creates a new dependency injection container
func New(cfg *config.Config, db *gorm.DB, log *logger.Logger, opts *Options) (*Container, error) {
	if opts == nil {
		opts = &Options{}
	}
	if log == nil {
		log = logger.GetGlobal()
	}

	c := &Container{
		Config:     cfg,
		DB:         db,
		Logger:     log,
		Store:      repository.NewStore(db),
		JWTService: jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry),
		Health:     health.NewChecker(log, 30*time.Second),
	}

	if err := c.setupObservability(opts); err != nil {
		return nil, err
	}
	c.setupCache(opts)
	c.setupSecrets()

	// Escalation override rules fail startup when they do not compile
	specs, err := chatbot.ParseRuleSpecs(cfg.Chat.EscalationRules)
	if err != nil {
		return nil, fmt.Errorf("invalid ESCALATION_RULES: %w", err)
	}
	rules, err := chatbot.NewRuleSet(specs, log)
	if err != nil {
		return nil, err
	}

	policy := chatbot.Policy{
		Base:          cfg.Chat.ConfidenceBase,
		CriticalBoost: cfg.Chat.ConfidenceCrit,
		HighBoost:     cfg.Chat.ConfidenceHigh,
		MediumBoost:   cfg.Chat.ConfidenceMedium,
		ElderlyBoost:  cfg.Chat.ConfidenceElderly,
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	c.Generation = opts.Generation
	if c.Generation == nil {
		c.Generation = generation.New(generation.Config{
			Provider:         cfg.Generation.Provider,
			BaseURL:          cfg.Generation.BaseURL,
			APIKey:           cfg.Generation.APIKey,
			Model:            cfg.Generation.Model,
			MaxTokens:        cfg.Generation.MaxTokens,
			Temperature:      cfg.Generation.Temperature,
			Timeout:          cfg.Generation.Timeout,
			BreakerThreshold: cfg.Generation.BreakerThreshold,
			BreakerCooldown:  cfg.Generation.BreakerCooldown,
			Observer:         c.ChatMetrics.ObserveGeneration,
		}, log)
	}

	c.ChatService = service.NewChatService(service.ChatDeps{
		Store:      c.Store,
		Classifier: chatbot.NewClassifier(policy),
		Escalator:  chatbot.NewEscalator(rules),
		Responder:  chatbot.NewResponder(c.Generation, log),
		Cache:      c.Cache,
		Metrics:    c.ChatMetrics,
		Logger:     log,
	}, service.ChatOptions{
		HistoryWindow:    cfg.Chat.HistoryWindow,
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		IdempotencyTTL:   cfg.Chat.IdempotencyTTL,
	})
	c.AdvisorService = service.NewAdvisorService(c.Store, log)
	c.FraudReportService = service.NewFraudReportService(c.Store, log)
	c.UserService = service.NewUserService(c.Store, c.JWTService, log)

	c.Reputation = reputation.New(reputation.Config{
		HIBPKey:       cfg.Reputation.HIBPKey,
		AbuseIPDBKey:  cfg.Reputation.AbuseIPDBKey,
		PhishScanKey:  cfg.Reputation.PhishScanKey,
		Timeout:       cfg.Reputation.Timeout,
		CacheTTL:      cfg.Reputation.CacheTTL,
		RatePerSecond: cfg.Reputation.RatePerSecond,
	}, c.Cache, c.Secrets, log)

	if cfg.Chat.EnableWebSockets {
		c.Hub = ws.NewHub(c.ChatService, func(err error) ws.FrameError {
			appErr := api.ServiceError(err)
			return ws.FrameError{Code: appErr.Code, Message: appErr.Message}
		}, log)
		c.ChatService.SetNotifier(c.Hub)
	}

	c.Health.RegisterDatabaseCheck(c.Store.Ping)
	c.Health.RegisterAvailabilityCheck("generation", c.Generation.IsAvailable,
		"Generation backend "+c.Generation.Name()+" is available",
		"Generation backend unavailable, serving response templates")

	return c, nil
}

func (c *Container) setupObservability(opts *Options) error {
	c.ChatMetrics = observability.NopChatMetrics()

	if c.Config.Observability.Tracing {
		w := opts.TraceWriter
		if w == nil {
			w = os.Stdout
		}
		shutdown, err := observability.SetupTracing(serviceName, w)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, shutdown)
	}

	if c.Config.Observability.Metrics {
		setup, err := observability.SetupPrometheusMetrics(serviceName)
		if err != nil {
			return err
		}
		metrics, err := observability.NewChatMetrics(setup.Provider.Meter(serviceName))
		if err != nil {
			return err
		}
		c.Metrics = setup
		c.ChatMetrics = metrics
		c.closers = append(c.closers, setup.Shutdown)
	}
	return nil
}

// setupCache prefers redis and falls back to process memory
func (c *Container) setupCache(opts *Options) {
	if opts.Cache != nil {
		c.Cache = opts.Cache
		return
	}

	if addr := c.Config.Redis.Addr; addr != "" {
		client, err := sharedredis.NewRedisClient(sharedredis.Options{
			Addr:      addr,
			Password:  c.Config.Redis.Password,
			DB:        c.Config.Redis.DB,
			KeyPrefix: c.Config.Redis.KeyPrefix,
		})
		if err == nil {
			c.Cache = client
			c.Health.RegisterCacheCheck("redis", client.Ping)
			c.closers = append(c.closers, func(context.Context) error { return client.Close() })
			c.Logger.Info("Using redis cache", "addr", addr)
			return
		}
		c.Logger.Warn("Redis unavailable, using in-memory cache", "addr", addr, "error", err.Error())
	}

	mem := cache.NewCache(10000, time.Minute)
	c.Cache = mem
	c.closers = append(c.closers, func(context.Context) error { mem.Close(); return nil })
}

// setupSecrets reads API keys from vault when configured, else from the environment
func (c *Container) setupSecrets() {
	c.Secrets = secrets.EnvManager{}
	if c.Config.Vault.Addr == "" {
		return
	}
	vm, err := secrets.NewVaultManager(secrets.VaultConfig{
		Address:    c.Config.Vault.Addr,
		Token:      c.Config.Vault.Token,
		SecretPath: c.Config.Vault.SecretPath,
	}, c.Logger)
	if err != nil {
		c.Logger.Warn("Vault unavailable, reading secrets from environment", "error", err.Error())
		return
	}
	c.Secrets = vm
}

// Close releases everything the container opened, newest first
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
