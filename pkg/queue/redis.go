package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Habtu32/brent-oil-change-point-analysis/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const retryPollInterval = 5 * time.Second

// queueKeys holds the Redis key layout, derived once from the prefix.
type queueKeys struct {
	messages string // LIST, LPUSH by producers, BRPOP by workers
	retry    string // ZSET scored by earliest redelivery time
	dlq      string // LIST of messages past the retry limit
}

func keysFor(prefix string) queueKeys {
	return queueKeys{
		messages: prefix + ":messages",
		retry:    prefix + ":retry",
		dlq:      prefix + ":dlq",
	}
}

// RedisQueue is a Redis-backed job queue. Producers LPUSH onto a list,
// workers BRPOP, failed messages wait on a scheduled ZSET and land on a
// dead-letter list once the retry limit is exhausted.
type RedisQueue struct {
	logger  *logger.Logger
	config  *QueueConfig
	client  *redis.Client
	keys    queueKeys
	jobs    map[string]Job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix overrides the default "brent:queue" key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		r.keys = keysFor(prefix)
	}
}

// NewRedisQueue creates a queue over an existing Redis client.
func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	if config == nil {
		config = &QueueConfig{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	rq := &RedisQueue{
		logger: lgr,
		config: config,
		client: client,
		keys:   keysFor("brent:queue"),
		jobs:   make(map[string]Job),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(rq)
	}
	return rq
}

// RegisterJob makes a job eligible to receive messages of its Type.
// Registration after Start is not supported.
func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.jobs[job.Type()]; dup {
		r.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.logger.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

// Start verifies connectivity and launches the workers and the retry loop.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	r.running = true
	r.mu.Unlock()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		return fmt.Errorf("redis ping: %w", err)
	}

	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.retryLoop()

	r.logger.Info("redis queue started",
		logger.Int("workers", r.config.Workers),
		logger.String("addr", r.client.Options().Addr))
	return nil
}

// Stop cancels the workers and waits for them up to the ctx deadline.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		r.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		r.logger.Info("redis queue stopped")
		return nil
	}
}

// Enqueue pushes a message for a registered job type.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.running
	_, known := r.jobs[msgType]
	r.mu.RUnlock()

	if !running {
		return fmt.Errorf("queue not running")
	}
	if !known {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	data, err := json.Marshal(Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.keys.messages, data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// PublishMessage implements QueueService.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return r.Enqueue(ctx, msgType, payload)
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	r.logger.Debug("queue worker started", logger.Int("worker_id", id))

	for r.ctx.Err() == nil {
		res, err := r.client.BRPop(r.ctx, time.Second, r.keys.messages).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			r.logger.Error("brpop error", logger.Error(err))
			select {
			case <-r.ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if len(res) == 2 {
			r.dispatch(res[1])
		}
	}
}

// dispatch decodes one raw list entry and runs its job, routing failures
// to the retry schedule or the dead-letter list.
func (r *RedisQueue) dispatch(raw string) {
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		r.logger.Error("unmarshal message", logger.Error(err))
		return
	}

	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.logger.Error("no job for message",
			logger.String("type", msg.Type),
			logger.String("id", msg.ID))
		return
	}

	// JSON decoding turns payload structs into maps; hand jobs raw JSON so
	// ParsePayload can rebuild the typed struct.
	if m, isMap := msg.Payload.(map[string]interface{}); isMap {
		if b, err := json.Marshal(m); err == nil {
			msg.Payload = json.RawMessage(b)
		}
	}

	start := time.Now()
	err := job.Handle(r.ctx, msg.Payload)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		r.logger.Warn("message cancelled",
			logger.String("id", msg.ID),
			logger.Duration("elapsed", time.Since(start)))
		return
	}

	r.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts >= r.config.RetryLimit {
		r.logger.Error("retry limit reached, dead-lettering",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()))
		r.push(r.keys.dlq, msg)
		return
	}

	msg.Attempts++
	// linear backoff: attempt n waits n * RetryDelay
	due := time.Now().Add(time.Duration(msg.Attempts) * r.config.RetryDelay)
	r.scheduleRetry(msg, due)
}

func (r *RedisQueue) scheduleRetry(msg Message, due time.Time) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal retry", logger.Error(err))
		return
	}
	err = r.client.ZAdd(context.Background(), r.keys.retry, redis.Z{
		Score:  float64(due.Unix()),
		Member: data,
	}).Err()
	if err != nil {
		r.logger.Error("zadd retry", logger.Error(err))
		return
	}
	r.logger.Info("retry scheduled",
		logger.String("id", msg.ID),
		logger.Int("attempt", msg.Attempts),
		logger.String("due", due.Format(time.RFC3339)))
}

func (r *RedisQueue) push(key string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal message", logger.Error(err))
		return
	}
	if err := r.client.LPush(context.Background(), key, data).Err(); err != nil {
		r.logger.Error("lpush", logger.String("key", key), logger.Error(err))
	}
}

// retryLoop periodically moves due retry messages back onto the main list.
func (r *RedisQueue) retryLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(retryPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.redeliverDue()
		}
	}
}

func (r *RedisQueue) redeliverDue() {
	due, err := r.client.ZRangeByScore(r.ctx, r.keys.retry, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.logger.Error("fetch due retries", logger.Error(err))
		}
		return
	}

	for _, raw := range due {
		if r.ctx.Err() != nil {
			return
		}
		// remove-then-requeue atomically so a crash cannot duplicate
		pipe := r.client.TxPipeline()
		pipe.ZRem(r.ctx, r.keys.retry, raw)
		pipe.LPush(r.ctx, r.keys.messages, raw)
		if _, err := pipe.Exec(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("requeue retry", logger.Error(err))
		}
	}
}
