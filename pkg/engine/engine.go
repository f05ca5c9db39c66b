// Package engine is the composition root. It wires the store, repositories,
// pipelines and background workers into one Engine with an explicit lifecycle,
// so nothing in the service depends on package-level state.
package engine

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/crmforge/dedupe/config"
	"github.com/crmforge/dedupe/internal/repositories/batchjob"
	"github.com/crmforge/dedupe/internal/repositories/duplicate"
	"github.com/crmforge/dedupe/internal/repositories/matchingrule"
	"github.com/crmforge/dedupe/internal/repositories/strategy"
	workflowrepo "github.com/crmforge/dedupe/internal/repositories/workflow"
	"github.com/crmforge/dedupe/internal/tracing"
	"github.com/crmforge/dedupe/pkg/batch"
	"github.com/crmforge/dedupe/pkg/detection"
	"github.com/crmforge/dedupe/pkg/events"
	"github.com/crmforge/dedupe/pkg/kafka"
	"github.com/crmforge/dedupe/pkg/merging"
	"github.com/crmforge/dedupe/pkg/metrics"
	"github.com/crmforge/dedupe/pkg/scoring"
	"github.com/crmforge/dedupe/pkg/store"
	"github.com/crmforge/dedupe/pkg/workflow"
)

// Sources are the CRM-side collaborators the host must provide. The engine
// never stores or fetches CRM records itself.
type Sources struct {
	Candidates detection.CandidateSource
	Records    merging.RecordSource
	Lister     batch.RecordLister
}

// Engine owns every component of the deduplication service.
type Engine struct {
	Config *config.Config
	Logger ectologger.Logger
	Store  store.Store

	Rules      *matchingrule.Repository
	Strategies *strategy.Repository
	Duplicates *duplicate.Repository
	Workflows  *workflowrepo.Repository
	Jobs       *batchjob.Repository

	Emitter      *events.Emitter
	Scorer       *scoring.Engine
	Merger       *merging.Engine
	Detection    *detection.Pipeline
	WorkflowSvc  *workflow.Service
	Orchestrator *batch.Orchestrator
	Monitor      *metrics.Monitor

	producer *kafka.Producer
	consumer *kafka.Consumer
}

// New builds the engine from configuration. The store and publisher are chosen
// by config: Redis and Kafka for a real deployment, in-memory fallbacks
// otherwise.
func New(cfg *config.Config, logger ectologger.Logger, sources Sources) (*Engine, error) {
	if cfg.TracingEnabled {
		tracing.Init(cfg.TracingService)
	}

	st, err := buildStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build store: %w", err)
	}

	e := &Engine{
		Config: cfg,
		Logger: logger,
		Store:  st,
	}

	var publisher events.Publisher
	if cfg.KafkaEnabled {
		e.producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaOutputTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: cfg.KafkaBatchTimeout,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
		publisher = e.producer
	} else {
		publisher = events.NewMemoryPublisher()
	}
	e.Emitter = events.NewEmitter(publisher, logger)

	e.Rules = matchingrule.NewRepository(st, logger)
	e.Strategies = strategy.NewRepository(st, logger)
	e.Duplicates = duplicate.NewRepository(st, logger)
	e.Workflows = workflowrepo.NewRepository(st, logger)
	e.Jobs = batchjob.NewRepository(st, logger)

	e.Scorer = scoring.NewEngine(logger)
	e.Merger = merging.NewEngine(logger, e.Duplicates, e.Strategies, sources.Records, st, e.Emitter, cfg.MergeBackupTTL)
	e.Detection = detection.NewPipeline(logger, e.Rules, e.Duplicates, sources.Candidates, e.Scorer, e.Merger, e.Emitter)
	e.WorkflowSvc = workflow.NewService(logger, e.Workflows, e.Merger, e.Emitter)
	e.Orchestrator = batch.NewOrchestrator(logger, e.Jobs, sources.Lister, e.Detection, e.Merger, st, e.Emitter)
	e.Monitor = metrics.NewMonitor(logger, e.Duplicates, e.Workflows, e.Jobs, st, e.Emitter)

	if cfg.KafkaConsumerEnabled {
		e.consumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaInputTopic,
			ConsumerGroup: cfg.KafkaConsumerGroup,
		}, logger, e.handleIncomingRecord)
	}

	return e, nil
}

// Start verifies the store and launches the background workers.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Store.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}

	if err := e.Monitor.Start(e.Config.MetricsInterval); err != nil {
		return fmt.Errorf("failed to start metrics monitor: %w", err)
	}

	if e.consumer != nil {
		if err := e.consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start kafka consumer: %w", err)
		}
	}

	e.Logger.WithContext(ctx).WithField("app", e.Config.AppName).Info("Engine started")
	return nil
}

// Stop shuts the engine down in reverse order: stop ingesting, drain running
// batch jobs, then stop the monitor and close the producer.
func (e *Engine) Stop(ctx context.Context) error {
	if e.consumer != nil {
		if err := e.consumer.Stop(); err != nil {
			e.Logger.WithContext(ctx).WithError(err).Error("Failed to stop kafka consumer")
		}
	}

	e.Orchestrator.Wait()
	e.Monitor.Stop()

	if e.producer != nil {
		if err := e.producer.Close(); err != nil {
			e.Logger.WithContext(ctx).WithError(err).Error("Failed to close kafka producer")
		}
	}

	e.Logger.WithContext(ctx).Info("Engine stopped")
	return nil
}

// handleIncomingRecord runs detection for each record arriving on the
// ingestion topic.
func (e *Engine) handleIncomingRecord(ctx context.Context, msg *kafka.IncomingMessage) error {
	envelope := msg.Envelope

	_, err := e.Detection.Detect(ctx, envelope.Record, envelope.RecordType, envelope.SourceSystem, detection.Options{
		AutoMerge: e.Config.AutoMergeEnabled,
		RealTime:  true,
	})
	return err
}

func buildStore(cfg *config.Config) (store.Store, error) {
	if cfg.RedisHost == "" {
		return store.NewMemoryStore(), nil
	}

	return store.NewRedisStore(store.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
