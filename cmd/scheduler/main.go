package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"creator-hub/internal/adapters/repo"
	"creator-hub/internal/domain"
	"creator-hub/internal/infra/cache"
	"creator-hub/internal/infra/config"
	"creator-hub/internal/infra/db"
	applog "creator-hub/internal/infra/log"
	"creator-hub/internal/infra/metrics"
	"creator-hub/internal/infra/queue"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("scheduler: не указан адрес Redis (REDIS_ADDR)")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	onceCache := cache.NewRedis(redisClient)

	var syncQueue domain.SyncQueue
	switch cfg.Queues.Driver {
	case "rabbitmq":
		if cfg.Queues.AMQPURL == "" {
			logger.Fatal().Msg("scheduler: не указан адрес RabbitMQ (AMQP_URL)")
		}
		syncQueue, err = queue.NewRabbitSyncQueue(cfg.Queues.AMQPURL, cfg.Queues.TopicSync)
		if err != nil {
			logger.Fatal().Err(err).Msg("scheduler: не удалось инициализировать очередь RabbitMQ")
		}
	default:
		syncQueue = queue.NewRedisSyncQueue(redisClient, cfg.Queues.TopicSync)
	}

	if cfg.Discord.TopicChannel == "" {
		logger.Fatal().Msg("scheduler: не указан канал тем Discord (DISCORD_TOPIC_CHANNEL)")
	}

	s := &scheduler{
		log:     logger,
		guides:  repoAdapter,
		queue:   syncQueue,
		cache:   onceCache,
		channel: cfg.Discord.TopicChannel,
		emoji:   cfg.Discord.TopicEmoji,
		horizon: cfg.Scheduler.Horizon,
	}

	logger.Info().
		Dur("interval", cfg.Scheduler.Interval).
		Dur("horizon", cfg.Scheduler.Horizon).
		Msg("scheduler: старт")

	ticker := time.NewTicker(cfg.Scheduler.Interval)
	defer ticker.Stop()
	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler: остановка")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

type scheduler struct {
	log     zerolog.Logger
	guides  domain.GuideRepo
	queue   domain.SyncQueue
	cache   domain.Cache
	channel string
	emoji   string
	horizon time.Duration
}

// tick ставит задачи синхронизации тем для выпусков, запись которых
// назначена в пределах горизонта. Повторная постановка того же выпуска
// внутри горизонта гасится ключом в Redis.
func (s *scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()
	upcoming, err := s.guides.ListScheduledGuides(ctx, now, now.Add(s.horizon))
	if err != nil {
		s.log.Error().Err(err).Msg("scheduler: ошибка выборки выпусков")
		return
	}
	for _, guide := range upcoming {
		guide := guide
		key := fmt.Sprintf("topic_sync_sched:%d:%s", guide.ID, guide.ScheduledDate.Format("2006-01-02"))
		err := s.cache.Once(key, s.horizon, func() error {
			job := domain.SyncJob{
				ID:          uuid.NewString(),
				PodcastID:   guide.PodcastID,
				GuideID:     guide.ID,
				ChannelID:   s.channel,
				Emoji:       s.emoji,
				RequestedAt: time.Now().UTC(),
				Cause:       domain.SyncCauseScheduled,
			}
			if err := s.queue.Enqueue(ctx, job); err != nil {
				return err
			}
			s.log.Info().
				Str("job_id", job.ID).
				Int64("guide", guide.ID).
				Time("scheduled", *guide.ScheduledDate).
				Msg("scheduler: задача синхронизации поставлена")
			return nil
		})
		if err != nil {
			s.log.Error().Err(err).Int64("guide", guide.ID).Msg("scheduler: не удалось поставить задачу")
		}
	}
}
