package domain

import (
	"context"
	"time"
)

// SyncJobCause описывает источник запроса на синхронизацию тем.
type SyncJobCause string

const (
	// SyncCauseManual — синхронизация запрошена вручную из интерфейса.
	SyncCauseManual SyncJobCause = "manual"
	// SyncCauseScheduled — синхронизация запланирована перед записью выпуска.
	SyncCauseScheduled SyncJobCause = "scheduled"
)

// SyncJob содержит задачу переноса тем сообщества в сценарий выпуска.
type SyncJob struct {
	ID          string       `json:"job_id,omitempty"`
	PodcastID   int64        `json:"podcast_id"`
	GuideID     int64        `json:"guide_id"`
	ChannelID   string       `json:"channel_id"`
	Emoji       string       `json:"emoji"`
	Section     SectionKey   `json:"section"`
	RequestedAt time.Time    `json:"requested_at"`
	Cause       SyncJobCause `json:"cause"`
}

// SyncQueue описывает очередь задач синхронизации тем.
type SyncQueue interface {
	Enqueue(ctx context.Context, job SyncJob) error
	Receive(ctx context.Context) (SyncJob, SyncAckFunc, error)
}

// SyncAckFunc подтверждает успешную обработку или запрашивает повтор доставки задачи.
type SyncAckFunc func(success bool) error
