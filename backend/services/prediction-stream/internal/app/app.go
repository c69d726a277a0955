package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	libdb "frauddet/backend/libs/db"
	libkafka "frauddet/backend/libs/kafka"
	libredis "frauddet/backend/libs/redis"
	"frauddet/backend/services/prediction-stream/internal/config"
	"frauddet/backend/services/prediction-stream/internal/generator"
	httpserver "frauddet/backend/services/prediction-stream/internal/http"
	"frauddet/backend/services/prediction-stream/internal/http/handlers"
	"frauddet/backend/services/prediction-stream/internal/kafka"
	"frauddet/backend/services/prediction-stream/internal/metrics"
	"frauddet/backend/services/prediction-stream/internal/predict"
	"frauddet/backend/services/prediction-stream/internal/random"
	"frauddet/backend/services/prediction-stream/internal/recorder"
	redisstore "frauddet/backend/services/prediction-stream/internal/redis"
	"frauddet/backend/services/prediction-stream/internal/repository"
	"frauddet/backend/services/prediction-stream/internal/scorer"
	"frauddet/backend/services/prediction-stream/internal/ws"
)

const sessionDrainTimeout = 10 * time.Second

// App wires all dependencies for the prediction stream.
type App struct {
	server      *httpserver.Server
	manager     *ws.Manager
	pipeline    *recorder.Pipeline
	db          *sql.DB
	redisClient *redis.Client
	kafkaClient *kgo.Client
	logger      *zap.Logger
}

// New builds the application graph. Sinks are only wired when configured.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	var (
		sinks   []recorder.Sink
		latest  handlers.LatestReader
		history handlers.HistoryReader
		counts  handlers.CountReader
	)

	if cfg.Database.DSN != "" {
		sqlDB, err := libdb.NewPostgresDB(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		a.db = sqlDB
		repo := repository.NewPredictionLogRepository(sqlDB)
		sinks = append(sinks, repo)
		history = repo
	}

	if cfg.Redis.Addr != "" {
		client, err := libredis.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redisClient = client
		store := redisstore.NewStore(client, cfg.LatestTTL())
		sinks = append(sinks, store)
		latest = store
		counts = store
	}

	if len(cfg.Kafka.Brokers) > 0 {
		client, err := libkafka.NewProducerClient(ctx, libkafka.ProducerConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			ClientID: "prediction-stream",
		}, kprom.NewMetrics("prediction_stream_kafka",
			kprom.Registerer(prometheus.DefaultRegisterer),
			kprom.Gatherer(prometheus.DefaultGatherer),
		))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.kafkaClient = client
		sinks = append(sinks, kafka.NewPublisher(client, cfg.Kafka.Topic))
	}

	a.pipeline = recorder.NewPipeline(cfg.Recorder.BufferSize, logger, sinks...)

	src := random.New(cfg.Stream.Seed)
	processor := predict.NewProcessor(generator.New(src), scorer.New(src), a.pipeline, logger)

	a.manager = ws.NewManager(cfg.PingInterval(), logger)
	wsServer := ws.NewServer(a.manager, processor, ws.Options{
		Interval:     cfg.StreamInterval(),
		WriteTimeout: cfg.WriteTimeout(),
		PongWait:     cfg.PongWait(),
		ReadLimit:    cfg.WebSocket.ReadLimitBytes,
	}, logger)

	router := httpserver.NewRouter(httpserver.Routes{
		Stream:            wsServer.HandleWS,
		StreamPath:        cfg.Stream.Path,
		LatestPrediction:  handlers.NewLatestPredictionHandler(latest, logger),
		PredictionHistory: handlers.NewPredictionHistoryHandler(history, logger),
		PredictionStats:   handlers.NewPredictionStatsHandler(counts, logger),
		Metrics:           metrics.Handler(),
		Health:            handlers.NewHealthHandler(a.manager, a.pipeline.Sinks()),
	})
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	logger.Info("prediction stream configured",
		zap.Duration("interval", cfg.StreamInterval()),
		zap.String("path", cfg.Stream.Path),
		zap.Strings("sinks", a.pipeline.Sinks()),
	)
	return a, nil
}

// Run serves until ctx is done, then closes every session before returning.
func (a *App) Run(ctx context.Context) error {
	// Sessions outlive ctx so they can be closed with a proper close frame;
	// recording stops only after they are gone.
	recordCtx, stopRecording := context.WithCancel(context.Background())
	defer stopRecording()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.manager.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return a.server.Run(gctx)
	})

	recordDone := make(chan error, 1)
	go func() {
		recordDone <- a.pipeline.Run(recordCtx)
	}()

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sessionDrainTimeout)
	defer cancel()
	a.manager.Shutdown(shutdownCtx)

	stopRecording()
	if recErr := <-recordDone; recErr != nil && err == nil {
		err = recErr
	}
	return err
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.kafkaClient != nil {
		a.kafkaClient.Close()
	}
}
