package di

import (
	"context"
	"fmt"
	"time"

	domrepo "github.com/Habtu32/brent-oil-change-point-analysis/internal/domain/repository"
	"github.com/Habtu32/brent-oil-change-point-analysis/internal/handler/api"
	internalrepo "github.com/Habtu32/brent-oil-change-point-analysis/internal/repository"
	"github.com/Habtu32/brent-oil-change-point-analysis/internal/service/cache"
	"github.com/Habtu32/brent-oil-change-point-analysis/internal/service/ratelimit"
	"github.com/Habtu32/brent-oil-change-point-analysis/internal/usecase"
	pkgch "github.com/Habtu32/brent-oil-change-point-analysis/pkg/clickhouse"
	"github.com/Habtu32/brent-oil-change-point-analysis/pkg/config"
	xhttp "github.com/Habtu32/brent-oil-change-point-analysis/pkg/http"
	pkgkafka "github.com/Habtu32/brent-oil-change-point-analysis/pkg/kafka"
	applogger "github.com/Habtu32/brent-oil-change-point-analysis/pkg/logger"
	"github.com/Habtu32/brent-oil-change-point-analysis/pkg/metrics"
	"github.com/Habtu32/brent-oil-change-point-analysis/pkg/queue"
	"github.com/Habtu32/brent-oil-change-point-analysis/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetricsRecorder creates the Prometheus metrics recorder.
func ProvideMetricsRecorder() *metrics.Recorder {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the
// schema. Returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SchemaStatements()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideCHStore creates the ClickHouse-backed store, or nil without a client.
func ProvideCHStore(chClient *pkgch.Client, l *applogger.Logger) *internalrepo.CHStore {
	if chClient == nil {
		return nil
	}
	store := internalrepo.NewCHStore(chClient)
	store.SetLogger(l)
	return store
}

// ProvidePriceService creates the price service over the CSV source.
func ProvidePriceService(cfg *config.Config, chStore *internalrepo.CHStore, l *applogger.Logger) *usecase.PriceService {
	src := internalrepo.NewCSVPriceSource(cfg.Data.PricesCSV, cfg.Data.DateFormats)
	src.SetLogger(l)
	if chStore == nil {
		return usecase.NewPriceService(src, nil, l)
	}
	return usecase.NewPriceService(src, chStore, l)
}

// ProvideRunManager creates the run registry.
func ProvideRunManager() *usecase.RunManager {
	return usecase.NewRunManager()
}

// ProvideRedisClient creates a Redis client, or nil when unconfigured.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideBytesCache creates the result cache: Redis when available, an
// in-process TTL cache otherwise.
func ProvideBytesCache(rdb *redis.Client) cache.BytesCache {
	if rdb != nil {
		return cache.NewRedisCache(rdb)
	}
	return cache.NewTTLCache()
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideAnalysisService wires the analysis pipeline.
func ProvideAnalysisService(
	cfg *config.Config,
	prices *usecase.PriceService,
	runs *usecase.RunManager,
	chStore *internalrepo.CHStore,
	producer *pkgkafka.Producer,
	bytesCache cache.BytesCache,
	recorder *metrics.Recorder,
	l *applogger.Logger,
) *usecase.AnalysisService {
	// interfaces stay nil unless a real backend exists
	var store domrepo.ChangePointStore
	if chStore != nil {
		store = chStore
	}
	var pub domrepo.Publisher
	if producer != nil && cfg.Kafka.ResultsTopic != "" {
		pub = internalrepo.NewKafkaResultPublisher(producer, cfg.Kafka.ResultsTopic)
	}
	return usecase.NewAnalysisService(
		prices,
		runs,
		store,
		pub,
		bytesCache,
		recorder,
		l,
		cfg.Cache.ResultTTL,
	)
}

// ProvideJobQueue creates the Redis job queue and registers the analysis job.
// Returns nil when Redis is unconfigured, which makes runs execute inline.
func ProvideJobQueue(cfg *config.Config, rdb *redis.Client, analyses *usecase.AnalysisService, l *applogger.Logger) *queue.RedisQueue {
	if rdb == nil {
		return nil
	}
	prefix := cfg.Redis.Queue.KeyPrefix
	if prefix == "" {
		prefix = "brent:queue"
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Redis.Queue.Workers,
		RetryLimit: cfg.Redis.Queue.RetryLimit,
		RetryDelay: cfg.Redis.Queue.RetryDelay,
	}, rdb, queue.WithKeyPrefix(prefix))
	q.RegisterJob(analyses)
	return q
}

// ProvideKafkaConsumer creates the price ingest consumer, or nil when Kafka
// is disabled.
func ProvideKafkaConsumer(cfg *config.Config, prices *usecase.PriceService, recorder *metrics.Recorder, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.PricesTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewPriceIngestHandler(cfg.Kafka.PricesTopic, prices, recorder, l))
	return consumer, nil
}

// ProvideHTTPHandler creates the API handler with rate limiting.
func ProvideHTTPHandler(
	cfg *config.Config,
	prices *usecase.PriceService,
	analyses *usecase.AnalysisService,
	runs *usecase.RunManager,
	l *applogger.Logger,
) xhttp.Handler {
	return api.NewAnalysisHandler(l, prices, analyses, runs, ratelimit.New(),
		int(cfg.RateLimit.AnalysesPerMinute), int(cfg.RateLimit.Burst))
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	prices *usecase.PriceService,
	analyses *usecase.AnalysisService,
	jobQueue *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	chClient *pkgch.Client,
	httpHandler xhttp.Handler,
) *server.App {
	return server.New(cfg, l, prices, analyses, jobQueue, consumer, chClient, httpHandler)
}

