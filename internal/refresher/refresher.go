package refresher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/squareft/sms-gateway/internal/queue"
	"github.com/squareft/sms-gateway/pkg/logger"
	"github.com/squareft/sms-gateway/pkg/redis"
	"github.com/squareft/sms-gateway/pkg/worker"
)

const (
	processingTimeout = 5 * time.Second
	healthInterval    = 30 * time.Second
	shutdownTimeout   = time.Minute
	pendingAlarm      = 10_000
)

// Processor handles one queue message.
type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

type Config struct {
	Queue       queue.QueueConfig
	Consumers   int
	Workers     int
	QueueBuffer int
}

// Service drains the status-refresh stream through a worker pool. Several
// consumer instances share one consumer group, so a crashed instance's
// pending messages are reclaimed by its siblings.
type Service struct {
	adapter   redis.RedisAdapter
	queues    []*queue.Queue
	processor Processor
	metrics   *runMetrics
	worker    *worker.WorkerManager
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(adapter redis.RedisAdapter, processor Processor, cfg Config) (*Service, error) {
	if processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if cfg.Consumers <= 0 {
		cfg.Consumers = 4
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 50
	}
	if cfg.QueueBuffer <= 0 {
		cfg.QueueBuffer = 10_000
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		adapter:   adapter,
		queues:    make([]*queue.Queue, 0, cfg.Consumers),
		processor: processor,
		metrics:   newRunMetrics(),
		worker:    worker.NewWorkerManager(cfg.QueueBuffer, cfg.Workers, nil),
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 0; i < cfg.Consumers; i++ {
		qc := cfg.Queue
		qc.ConsumerName = fmt.Sprintf("%s-instance-%d", qc.ConsumerName, i)

		q, err := queue.NewQueue(adapter, qc)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create consumer %d: %w", i, err)
		}
		s.queues = append(s.queues, q)
	}

	return s, nil
}

func (s *Service) Start() error {
	logger.Info("Starting status refresher", "consumers", len(s.queues), "type", s.processor.GetType())

	s.worker.SetWorker(s.workerHandler)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			logger.Error("Worker manager stopped", "error", err)
		}
	}()

	for i, q := range s.queues {
		if err := q.Consume(s.messageHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}
	}

	s.wg.Add(1)
	go s.healthChecker()

	return nil
}

func (s *Service) Stop() {
	logger.Info("Shutting down status refresher...")

	s.cancel()

	stopChan := make(chan bool, len(s.queues))
	for i, q := range s.queues {
		go func(index int, q *queue.Queue) {
			if err := q.Stop(shutdownTimeout); err != nil {
				logger.Error("Error stopping consumer", "consumer", index, "error", err)
			}
			stopChan <- true
		}(i, q)
	}
	for range s.queues {
		select {
		case <-stopChan:
		case <-time.After(shutdownTimeout + 5*time.Second):
			logger.Warn("Timeout waiting for consumers to stop")
		}
	}

	s.worker.Exit()
	s.wg.Wait()

	s.logStats()
	logger.Info("Status refresher stopped")
}

type job struct {
	msg        *queue.Message
	resultChan chan error
	ctx        context.Context
}

// messageHandler bridges a queue delivery onto the worker pool and blocks
// until the worker reports an outcome, so ack/nack semantics stay with the
// queue consumer.
func (s *Service) messageHandler(ctx context.Context, msg *queue.Message) error {
	msgCtx, cancel := context.WithTimeout(ctx, processingTimeout+time.Second)
	defer cancel()

	j := &job{
		msg:        msg,
		resultChan: make(chan error, 1),
		ctx:        msgCtx,
	}
	s.worker.Enqueue(j)

	select {
	case err := <-j.resultChan:
		return err
	case <-msgCtx.Done():
		return fmt.Errorf("timeout waiting for worker: %w", msgCtx.Err())
	}
}

func (s *Service) workerHandler(workerIndex int, v interface{}) {
	j, ok := v.(*job)
	if !ok {
		logger.Error("Invalid job type in worker", "worker", workerIndex)
		return
	}

	select {
	case <-j.ctx.Done():
		logger.Warn("Job cancelled before processing started", "worker", workerIndex)
		return
	default:
	}

	start := time.Now()
	err := s.processor.Process(j.ctx, j.msg)
	if err != nil {
		s.metrics.recordFailure()
	} else {
		s.metrics.recordSuccess(time.Since(start))
	}

	select {
	case j.resultChan <- err:
	case <-j.ctx.Done():
		logger.Warn("Consumer gave up before worker finished", "worker", workerIndex)
	}
}

func (s *Service) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.checkHealth()
			s.logStats()
		}
	}
}

func (s *Service) checkHealth() {
	if err := s.adapter.Client().Ping(context.Background()).Err(); err != nil {
		logger.Error("Health check failed: redis unreachable", "error", err)
		return
	}

	for i, q := range s.queues {
		stats, err := q.GetStats()
		if err != nil {
			logger.Warn("Queue stats unavailable", "consumer", i, "error", err)
			continue
		}
		if stats.PendingMessages > pendingAlarm {
			logger.Warn("Queue lag is high", "consumer", i, "pending", stats.PendingMessages)
		}
	}
}

func (s *Service) logStats() {
	st := s.metrics.snapshot()
	logger.Info("Refresher stats",
		"processed", st.Processed,
		"failed", st.Failed,
		"rate_per_second", st.RatePerSecond,
		"avg_duration_ms", st.AvgDuration.Milliseconds(),
		"uptime_seconds", st.Uptime.Seconds(),
	)
}
