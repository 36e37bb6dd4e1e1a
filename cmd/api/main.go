package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"creator-hub/internal/adapters/httpapi"
	"creator-hub/internal/adapters/repo"
	"creator-hub/internal/adapters/youtube"
	"creator-hub/internal/domain"
	"creator-hub/internal/infra/config"
	"creator-hub/internal/infra/db"
	httpinfra "creator-hub/internal/infra/http"
	applog "creator-hub/internal/infra/log"
	"creator-hub/internal/infra/metrics"
	"creator-hub/internal/infra/queue"
	guidesusecase "creator-hub/internal/usecase/guides"
	itemsusecase "creator-hub/internal/usecase/items"
	optionsusecase "creator-hub/internal/usecase/options"
	podcastsusecase "creator-hub/internal/usecase/podcasts"
	sectionsusecase "creator-hub/internal/usecase/sections"
	templatesusecase "creator-hub/internal/usecase/templates"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	var videoSource domain.VideoSource
	if cfg.YouTube.APIKey != "" {
		videoSource = youtube.NewClient(cfg.YouTube.APIKey, cfg.YouTube.ChannelID, cfg.YouTube.BaseURL, cfg.YouTube.Timeout)
	}

	var syncQueue domain.SyncQueue
	switch cfg.Queues.Driver {
	case "rabbitmq":
		if cfg.Queues.AMQPURL == "" {
			logger.Fatal().Msg("api: не указан адрес RabbitMQ (AMQP_URL)")
		}
		syncQueue, err = queue.NewRabbitSyncQueue(cfg.Queues.AMQPURL, cfg.Queues.TopicSync)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: не удалось инициализировать очередь RabbitMQ")
		}
	default:
		if cfg.RedisAddr == "" {
			logger.Fatal().Msg("api: не указан адрес Redis (REDIS_ADDR)")
		}
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		syncQueue = queue.NewRedisSyncQueue(redisClient, cfg.Queues.TopicSync)
	}

	podcastService := podcastsusecase.NewService(repoAdapter, repoAdapter)
	templateService := templatesusecase.NewService(repoAdapter)
	guideService := guidesusecase.NewService(repoAdapter, repoAdapter, repoAdapter, videoSource)
	itemService := itemsusecase.NewService(repoAdapter, repoAdapter, repoAdapter)
	sectionService := sectionsusecase.NewService(repoAdapter, repoAdapter, repoAdapter)
	optionService := optionsusecase.NewService(repoAdapter)

	handler := httpapi.NewHandler(
		podcastService,
		templateService,
		guideService,
		itemService,
		sectionService,
		optionService,
		syncQueue,
		logger.With().Str("component", "api").Logger(),
	)

	srv := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	handler.Register(srv.Router)

	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: ошибка остановки сервера")
	}
}
