package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arklim/token-vault/internal/core/port"
	"github.com/arklim/token-vault/internal/infra/config"
	kafkainfra "github.com/arklim/token-vault/internal/infra/kafka"
	"github.com/arklim/token-vault/internal/infra/logger"
	memcacheinfra "github.com/arklim/token-vault/internal/infra/memcache"
	redisinfra "github.com/arklim/token-vault/internal/infra/redis"
	"github.com/arklim/token-vault/internal/repository/index"
	memcacherepo "github.com/arklim/token-vault/internal/repository/memcache"
	redisrepo "github.com/arklim/token-vault/internal/repository/redis"
	"github.com/arklim/token-vault/internal/usecase"
)

const (
	BackendRedis    = "redis"
	BackendMemcache = "memcache"
)

// Application wires configuration, backend clients, index strategies, and the
// token store facade. The index strategy follows backend capability: redis
// maintains native sorted-set indices, memcache falls back to conditional
// list-blob writes.
type Application struct {
	cfg    *config.AppConfig
	logger *zap.Logger
	store  *usecase.TokenStore

	redis    *redisinfra.Client
	producer *kafkainfra.Producer
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}

	var (
		backend port.KeyValueStore
		idx     port.TokenIndex
		ledger  port.RevocationLedger
	)

	ledgerKey := usecase.LedgerKey(cfg.Store.KeyPrefix)

	switch strings.ToLower(cfg.Store.Backend) {
	case BackendRedis, "":
		redisClient, err := redisinfra.NewClient(cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.redis = redisClient

		rb := redisrepo.NewBackend(redisClient.Client())
		backend = rb
		idx = index.NewSortedSetIndex(rb)
		ledger = index.NewSortedSetLedger(rb, ledgerKey, log)

	case BackendMemcache:
		memcacheClient, err := memcacheinfra.NewClient(cfg.Memcache, log)
		if err != nil {
			return nil, fmt.Errorf("init memcache: %w", err)
		}

		mb := memcacherepo.NewBackend(memcacheClient.Client())
		backend = mb
		casOpts := index.CASOptions{MaxRetries: cfg.Store.CASMaxRetries}
		idx = index.NewCASIndex(mb, casOpts, log)
		ledger = index.NewCASLedger(mb, ledgerKey, casOpts, log)

	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			a.producer = kafkaProducer
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	metrics, err := usecase.NewStoreMetrics(usecase.StoreMetricsOptions{})
	if err != nil {
		a.closeClients()
		return nil, fmt.Errorf("init store metrics: %w", err)
	}

	a.store = usecase.NewTokenStore(backend, idx, ledger, eventPublisher, metrics, usecase.TokenStoreOptions{
		KeyPrefix:    cfg.Store.KeyPrefix,
		TrustEnabled: cfg.Store.TrustEnabled,
		DefaultTTL:   cfg.Store.DefaultTokenTTL,
	}, log)

	log.Info("token store initialized",
		zap.String("backend", cfg.Store.Backend),
		zap.String("key_prefix", cfg.Store.KeyPrefix),
		zap.Bool("trust_enabled", cfg.Store.TrustEnabled),
	)

	return a, nil
}

// Store returns the wired token store facade.
func (a *Application) Store() *usecase.TokenStore {
	return a.store
}

// Logger returns the application logger.
func (a *Application) Logger() *zap.Logger {
	return a.logger
}

// Close releases backend clients and flushes the event producer.
func (a *Application) Close() error {
	var firstErr error

	if a.producer != nil {
		if err := a.producer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := a.closeClients(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (a *Application) closeClients() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
