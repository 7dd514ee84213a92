package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fescue/config"
	"github.com/Ramsey-B/fescue/internal/repositories/customer"
	"github.com/Ramsey-B/fescue/internal/repositories/mapping"
	"github.com/Ramsey-B/fescue/internal/repositories/matchaudit"
	"github.com/Ramsey-B/fescue/internal/repositories/profile"
	"github.com/Ramsey-B/fescue/internal/repositories/profilelink"
	"github.com/Ramsey-B/fescue/pkg/crm"
	"github.com/Ramsey-B/fescue/pkg/database"
	"github.com/Ramsey-B/fescue/pkg/kafka"
	"github.com/Ramsey-B/fescue/pkg/mappingstore"
	"github.com/Ramsey-B/fescue/pkg/matching"
	"github.com/Ramsey-B/fescue/pkg/packagesync"
	"github.com/Ramsey-B/fescue/pkg/redis"
	"github.com/Ramsey-B/fescue/pkg/statuscache"
)

// customerSource is the CRM view the matcher and the mapping store share.
type customerSource interface {
	matching.CustomerSource
	mappingstore.CustomerLookup
}

// components are the wired domain services.
type components struct {
	profiles  *profile.Repository
	customers customerSource
	store     *mappingstore.Store
	matcher   *matching.Service
}

func databaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}
}

func redisConfig(cfg *config.Config) redis.Config {
	return redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

func producerConfig(cfg *config.Config) kafka.ProducerConfig {
	return kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}
}

func newCustomerSource(cfg *config.Config, db database.DB, logger ectologger.Logger) (customerSource, error) {
	switch cfg.CRMSource {
	case config.CustomerSourceHTTP:
		crmConfig := crm.DefaultConfig()
		crmConfig.BaseURL = cfg.CRMBaseURL
		crmConfig.APIKey = cfg.CRMAPIKey
		crmConfig.PageSize = cfg.CRMPageSize
		crmConfig.RecordsPath = cfg.CRMRecordsPath
		crmConfig.NextCursorPath = cfg.CRMNextCursorPath
		crmConfig.HTTP.Timeout = cfg.CRMTimeout
		return crm.NewClient(crmConfig, logger)
	case config.CustomerSourceDB:
		return customer.NewRepository(db, logger), nil
	default:
		return nil, fmt.Errorf("unknown CRM_SOURCE %q", cfg.CRMSource)
	}
}

func newStatusCache(cfg *config.Config, redisClient *redis.Client) statuscache.Cache {
	cacheConfig := statuscache.Config{
		MaxSize: cfg.StatusCacheMaxSize,
		TTL:     cfg.StatusCacheTTL,
	}
	if cfg.StatusCacheBackend == config.StatusCacheRedis && redisClient != nil {
		return statuscache.NewRedisCache(redisClient, cacheConfig)
	}
	return statuscache.NewMemoryCache(cacheConfig)
}

// wire builds the domain services. redisClient and producer may be nil.
func wire(
	_ context.Context,
	cfg *config.Config,
	logger ectologger.Logger,
	db database.DB,
	redisClient *redis.Client,
	producer *kafka.Producer,
) (*components, error) {
	customers, err := newCustomerSource(cfg, db, logger)
	if err != nil {
		return nil, err
	}

	profiles := profile.NewRepository(db, logger)
	store := mappingstore.NewStore(
		db,
		mapping.NewRepository(db, logger),
		profilelink.NewRepository(db, logger),
		customers,
		logger,
	)

	var packages matching.PackageSyncer = packagesync.Noop{}
	if producer != nil {
		packages = packagesync.NewSyncer(producer, logger)
	}

	matcherConfig := matching.DefaultConfig()
	matcherConfig.Threshold = cfg.MatchThreshold

	matcher := matching.NewService(
		logger,
		profiles,
		customers,
		store,
		packages,
		matchaudit.NewRepository(db, logger),
		newStatusCache(cfg, redisClient),
		matcherConfig,
	)

	return &components{
		profiles:  profiles,
		customers: customers,
		store:     store,
		matcher:   matcher,
	}, nil
}
