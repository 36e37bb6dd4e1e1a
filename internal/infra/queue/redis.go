package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"creator-hub/internal/domain"
)

// RedisSyncQueue реализует очередь задач синхронизации на базе Redis lists.
// Взятая задача перекладывается в processing-список и удаляется оттуда
// только после подтверждения, поэтому упавший обработчик её не теряет.
type RedisSyncQueue struct {
	client *redis.Client
	key    string
}

var _ domain.SyncQueue = (*RedisSyncQueue)(nil)

// NewRedisSyncQueue создаёт очередь по указанному ключу.
func NewRedisSyncQueue(client *redis.Client, key string) *RedisSyncQueue {
	return &RedisSyncQueue{client: client, key: key}
}

func (q *RedisSyncQueue) processingKey() string {
	return q.key + ":processing"
}

// Enqueue публикует задачу в очередь.
func (q *RedisSyncQueue) Enqueue(ctx context.Context, job domain.SyncJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из очереди.
func (q *RedisSyncQueue) Receive(ctx context.Context) (domain.SyncJob, domain.SyncAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.SyncJob{}, nil, err
		}

		raw, err := q.client.BLMove(ctx, q.key, q.processingKey(), "RIGHT", "LEFT", time.Second).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.SyncJob{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.SyncJob{}, nil, err
		}

		var job domain.SyncJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			// Нечитаемую задачу из processing-списка убираем сразу,
			// иначе она останется там навсегда.
			_ = q.client.LRem(context.Background(), q.processingKey(), 1, raw).Err()
			return domain.SyncJob{}, nil, fmt.Errorf("decode job: %w", err)
		}

		ack := func(success bool) error {
			ctx := context.Background()
			if err := q.client.LRem(ctx, q.processingKey(), 1, raw).Err(); err != nil {
				return fmt.Errorf("remove from processing: %w", err)
			}
			if !success {
				if err := q.client.LPush(ctx, q.key, raw).Err(); err != nil {
					return fmt.Errorf("requeue job: %w", err)
				}
			}
			return nil
		}
		return job, ack, nil
	}
}
