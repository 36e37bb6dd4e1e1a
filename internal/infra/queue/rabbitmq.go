package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"creator-hub/internal/domain"
	"creator-hub/internal/infra/metrics"
)

// RabbitSyncQueue реализует очередь задач синхронизации поверх AMQP
// с ручным подтверждением доставки.
type RabbitSyncQueue struct {
	url   string
	queue string

	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	delivery <-chan amqp.Delivery
}

var _ domain.SyncQueue = (*RabbitSyncQueue)(nil)

// NewRabbitSyncQueue создаёт очередь. Соединение устанавливается лениво
// и восстанавливается при обрыве.
func NewRabbitSyncQueue(amqpURL, queue string) (*RabbitSyncQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	return &RabbitSyncQueue{url: amqpURL, queue: queue}, nil
}

func (q *RabbitSyncQueue) ensureChannel() (*amqp.Channel, <-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.channel != nil && !q.channel.IsClosed() {
		return q.channel, q.delivery, nil
	}

	start := time.Now()
	conn, err := amqp.Dial(q.url)
	metrics.ObserveNetworkRequest("rabbitmq", "dial", q.queue, start, err)
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(q.queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("set qos: %w", err)
	}
	delivery, err := ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("consume: %w", err)
	}

	q.conn = conn
	q.channel = ch
	q.delivery = delivery
	return ch, delivery, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitSyncQueue) Enqueue(ctx context.Context, job domain.SyncJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	ch, _, err := q.ensureChannel()
	if err != nil {
		return err
	}
	start := time.Now()
	err = ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из очереди.
func (q *RabbitSyncQueue) Receive(ctx context.Context) (domain.SyncJob, domain.SyncAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.SyncJob{}, nil, err
		}
		_, delivery, err := q.ensureChannel()
		if err != nil {
			select {
			case <-ctx.Done():
				return domain.SyncJob{}, nil, ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return domain.SyncJob{}, nil, ctx.Err()
		case msg, ok := <-delivery:
			if !ok {
				continue
			}
			var job domain.SyncJob
			if err := json.Unmarshal(msg.Body, &job); err != nil {
				_ = msg.Nack(false, false)
				return domain.SyncJob{}, nil, fmt.Errorf("decode job: %w", err)
			}
			ack := func(success bool) error {
				if success {
					return msg.Ack(false)
				}
				return msg.Nack(false, true)
			}
			return job, ack, nil
		}
	}
}

// Close закрывает соединение с брокером.
func (q *RabbitSyncQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.conn == nil {
		return nil
	}
	err := q.conn.Close()
	q.conn = nil
	q.channel = nil
	q.delivery = nil
	return err
}
