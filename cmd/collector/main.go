package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"creator-hub/internal/adapters/discord"
	"creator-hub/internal/adapters/repo"
	"creator-hub/internal/domain"
	"creator-hub/internal/infra/cache"
	"creator-hub/internal/infra/config"
	"creator-hub/internal/infra/db"
	applog "creator-hub/internal/infra/log"
	"creator-hub/internal/infra/metrics"
	"creator-hub/internal/infra/queue"
	topicsusecase "creator-hub/internal/usecase/topics"
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
		logger.Fatal().Err(err).Msg("collector: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("collector: не указан адрес Redis (REDIS_ADDR)")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	jobCache := cache.NewRedis(redisClient)

	var syncQueue domain.SyncQueue
	switch cfg.Queues.Driver {
	case "rabbitmq":
		if cfg.Queues.AMQPURL == "" {
			logger.Fatal().Msg("collector: не указан адрес RabbitMQ (AMQP_URL)")
		}
		syncQueue, err = queue.NewRabbitSyncQueue(cfg.Queues.AMQPURL, cfg.Queues.TopicSync)
		if err != nil {
			logger.Fatal().Err(err).Msg("collector: не удалось инициализировать очередь RabbitMQ")
		}
	default:
		syncQueue = queue.NewRedisSyncQueue(redisClient, cfg.Queues.TopicSync)
	}

	if cfg.Discord.BotToken == "" {
		logger.Fatal().Msg("collector: не указан токен Discord (DISCORD_BOT_TOKEN)")
	}
	topicSource := discord.NewClient(cfg.Discord.BotToken, cfg.Discord.BaseURL, cfg.Discord.Timeout)

	topicService := topicsusecase.NewService(repoAdapter, repoAdapter, repoAdapter, repoAdapter, topicSource)

	worker := &jobWorker{
		log:     logger,
		queue:   syncQueue,
		cache:   jobCache,
		service: topicService,
	}

	logger.Info().Msg("collector: запуск обработки очереди")
	worker.Run(ctx)
	logger.Info().Msg("collector: остановлен")
}

type jobWorker struct {
	log     zerolog.Logger
	queue   domain.SyncQueue
	cache   domain.Cache
	service *topicsusecase.Service

	attempts map[string]int
}

const (
	maxSyncAttempts = 5
	deliveredTTL    = 24 * time.Hour
)

func (w *jobWorker) Run(ctx context.Context) {
	w.attempts = make(map[string]int)
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error().Err(err).Msg("collector: ошибка чтения очереди")
			time.Sleep(time.Second)
			continue
		}

		jobLog := w.log.With().
			Str("job_id", job.ID).
			Int64("podcast", job.PodcastID).
			Int64("guide", job.GuideID).
			Str("channel", job.ChannelID).
			Str("cause", string(job.Cause)).
			Logger()

		if job.ID == "" {
			jobLog.Error().Msg("collector: получена задача без идентификатора, подтверждаем и пропускаем")
			if err := ack(true); err != nil {
				jobLog.Error().Err(err).Msg("collector: не удалось подтвердить задачу без идентификатора")
			}
			continue
		}

		w.attempts[job.ID]++
		attempt := w.attempts[job.ID]
		jobLog = jobLog.With().Int("attempt", attempt).Logger()

		done := w.handleJob(ctx, job, jobLog)

		if !done && attempt < maxSyncAttempts {
			jobLog.Warn().Msg("collector: задача завершилась ошибкой, повторим позже")
			metrics.IncSyncJob(false)
			if err := ack(false); err != nil {
				jobLog.Error().Err(err).Msg("collector: не удалось вернуть задачу в очередь")
			}
			time.Sleep(time.Second)
			continue
		}

		if !done {
			jobLog.Error().Msg("collector: достигнут предел попыток, задача отброшена")
			metrics.IncSyncJob(false)
		}

		delete(w.attempts, job.ID)
		if err := ack(true); err != nil {
			jobLog.Error().Err(err).Msg("collector: не удалось подтвердить задачу")
		}
	}
}

// handleJob возвращает true, если задачу можно подтверждать.
func (w *jobWorker) handleJob(ctx context.Context, job domain.SyncJob, jobLog zerolog.Logger) bool {
	done := true
	err := w.cache.Once("topic_sync_done:"+job.ID, deliveredTTL, func() error {
		result, err := w.service.Sync(ctx, job)
		if err != nil {
			return err
		}
		jobLog.Info().
			Int("added", result.Added).
			Str("last_message", result.LastMessageID).
			Msg("collector: темы синхронизированы")
		metrics.IncSyncJob(true)
		return nil
	})
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, topicsusecase.ErrGuideNotFound),
		errors.Is(err, topicsusecase.ErrInvalidSection):
		// Повтор не поможет, подтверждаем и отбрасываем.
		jobLog.Error().Err(err).Msg("collector: задача неисполнима")
		metrics.IncSyncJob(false)
	case errors.Is(err, context.Canceled):
		done = false
	default:
		jobLog.Error().Err(err).Msg("collector: ошибка синхронизации тем")
		done = false
	}
	return done
}
