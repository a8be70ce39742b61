package bootstrap

import (
	"context"
	"os"
	"sync"

	"classifier_server/adapter/in/worker"
	"classifier_server/adapter/out/messaging"
	"classifier_server/config"
	"classifier_server/pkg/logger"

	"github.com/rs/zerolog"
)

type Worker struct {
	pool     *worker.Pool
	consumer *messaging.Consumer
	deps     *Dependencies
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	zlog     zerolog.Logger
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	// Logger
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("component", "worker").Logger()

	// Processors
	classifyProcessor := worker.NewClassifyProcessor(
		deps.ClassificationService,
		deps.EmailRepo,
		deps.JobTracker,
		deps.RateLimiter,
	)
	reclassifyProcessor := worker.NewReclassifyProcessor(deps.Reclassifier)
	mineProcessor := worker.NewMineProcessor(deps.Miner, deps.JobTracker)

	handler := worker.NewHandler(classifyProcessor, reclassifyProcessor, mineProcessor)

	// Pool config (use DefaultPoolConfig as base, env overrides on top)
	defaultConfig := worker.DefaultPoolConfig()
	poolConfig := &worker.PoolConfig{
		MinWorkers:         cfg.WorkerMin,
		MaxWorkers:         cfg.WorkerMax,
		QueueSize:          cfg.WorkerQueueSize,
		ScaleUpThreshold:   0.8,
		ScaleDownThreshold: 0.2,
		ScaleInterval:      cfg.WorkerScaleInterval,
		IdleTimeout:        cfg.WorkerIdleTimeout,
		JobTimeout:         defaultConfig.JobTimeout,
		JobTimeoutByType:   defaultConfig.JobTimeoutByType,
		BatchSize:          defaultConfig.BatchSize,
		WorkerChanSize:     defaultConfig.WorkerChanSize,
	}

	// Fallback defaults
	if poolConfig.MinWorkers == 0 {
		poolConfig.MinWorkers = defaultConfig.MinWorkers
	}
	if poolConfig.MaxWorkers == 0 {
		poolConfig.MaxWorkers = defaultConfig.MaxWorkers
	}
	if poolConfig.QueueSize == 0 {
		poolConfig.QueueSize = defaultConfig.QueueSize
	}
	if poolConfig.ScaleInterval == 0 {
		poolConfig.ScaleInterval = defaultConfig.ScaleInterval
	}
	if poolConfig.IdleTimeout == 0 {
		poolConfig.IdleTimeout = defaultConfig.IdleTimeout
	}

	pool := worker.NewPool(handler, poolConfig, zlog)

	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		pool:   pool,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		zlog:   zlog,
	}

	// Redis Stream consumer (only when Redis is up)
	if deps.Redis != nil {
		w.consumer = messaging.NewConsumer(deps.Redis, &messaging.ConsumerConfig{
			Group:    "classifier-workers",
			Consumer: cfg.WorkerID,
			Streams:  messaging.AllStreams,
			Handler:  worker.NewStreamHandler(pool),
			Logger:   zlog,
		})
		logger.Info("Redis Stream Consumer configured for %d streams", len(messaging.AllStreams))
	} else {
		logger.Warn("Redis not available, worker will only process direct submissions")
	}

	return w, cleanup, nil
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pool.Start()
	}()

	if w.consumer != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.zlog.Info().Msg("Starting Redis Stream Consumer...")
			if err := w.consumer.Run(w.ctx); err != nil && err != context.Canceled {
				w.zlog.Error().Err(err).Msg("Redis Stream Consumer error")
			}
		}()
	}

	// Block until context is cancelled
	<-w.ctx.Done()
}

func (w *Worker) Stop() {
	w.cancel()
	w.pool.Stop()
	w.wg.Wait()
}

func (w *Worker) Submit(msg *worker.Message) bool {
	if msg.IsPriority() {
		return w.pool.SubmitPriority(msg)
	}
	return w.pool.Submit(msg)
}

func (w *Worker) SubmitPriority(msg *worker.Message) bool {
	return w.pool.SubmitPriority(msg)
}

func (w *Worker) GetMetrics() worker.PoolMetrics {
	return w.pool.GetMetrics()
}

func (w *Worker) Dependencies() *Dependencies {
	return w.deps
}
