package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"creator-hub/internal/domain"
	"creator-hub/internal/infra/metrics"
)

const guideColumns = `id, title, episode_number, scheduled_date, podcast_id, template_id, status, recording_started_at, recording_ended_at, total_duration_seconds, COALESCE(notes,''), COALESCE(previous_poll,''), COALESCE(previous_poll_link,''), COALESCE(new_poll,''), COALESCE(new_poll_link,''), intro_static_content, outro_static_content, custom_sections, created_at, updated_at`

func scanGuide(row pgx.Row) (domain.EpisodeGuide, error) {
	var (
		guide    domain.EpisodeGuide
		intro    []byte
		outro    []byte
		sections []byte
	)
	err := row.Scan(&guide.ID, &guide.Title, &guide.EpisodeNumber, &guide.ScheduledDate, &guide.PodcastID,
		&guide.TemplateID, &guide.Status, &guide.RecordingStartedAt, &guide.RecordingEndedAt,
		&guide.TotalDurationSeconds, &guide.Notes, &guide.PreviousPoll, &guide.PreviousPollLink,
		&guide.NewPoll, &guide.NewPollLink, &intro, &outro, &sections, &guide.CreatedAt, &guide.UpdatedAt)
	if err != nil {
		return domain.EpisodeGuide{}, err
	}
	if err := json.Unmarshal(intro, &guide.IntroStaticContent); err != nil {
		return domain.EpisodeGuide{}, fmt.Errorf("разбор intro: %w", err)
	}
	if err := json.Unmarshal(outro, &guide.OutroStaticContent); err != nil {
		return domain.EpisodeGuide{}, fmt.Errorf("разбор outro: %w", err)
	}
	if err := json.Unmarshal(sections, &guide.CustomSections); err != nil {
		return domain.EpisodeGuide{}, fmt.Errorf("разбор секций: %w", err)
	}
	return guide, nil
}

func insertGuide(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, guide domain.EpisodeGuide) (domain.EpisodeGuide, error) {
	intro, err := marshalLines(guide.IntroStaticContent)
	if err != nil {
		return domain.EpisodeGuide{}, err
	}
	outro, err := marshalLines(guide.OutroStaticContent)
	if err != nil {
		return domain.EpisodeGuide{}, err
	}
	sections, err := marshalSections(guide.CustomSections)
	if err != nil {
		return domain.EpisodeGuide{}, fmt.Errorf("сериализация секций: %w", err)
	}
	if guide.Status == "" {
		guide.Status = domain.GuideStatusDraft
	}

	start := time.Now()
	err = q.QueryRow(ctx, `
INSERT INTO episode_guides (title, episode_number, scheduled_date, podcast_id, template_id, status, notes, previous_poll, previous_poll_link, new_poll, new_poll_link, intro_static_content, outro_static_content, custom_sections)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7,''), NULLIF($8,''), NULLIF($9,''), NULLIF($10,''), NULLIF($11,''), $12, $13, $14)
RETURNING id, created_at, updated_at
`, guide.Title, guide.EpisodeNumber, guide.ScheduledDate, guide.PodcastID, guide.TemplateID, guide.Status,
		guide.Notes, guide.PreviousPoll, guide.PreviousPollLink, guide.NewPoll, guide.NewPollLink,
		intro, outro, sections).Scan(&guide.ID, &guide.CreatedAt, &guide.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "episode_guides_insert", "episode_guides", start, err)
	if err != nil {
		return domain.EpisodeGuide{}, err
	}
	return guide, nil
}

// CreateGuide реализует domain.GuideRepo.
func (p *Postgres) CreateGuide(ctx context.Context, guide domain.EpisodeGuide) (domain.EpisodeGuide, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	return insertGuide(ctx, p.pool, guide)
}

// GetGuide реализует domain.GuideRepo.
func (p *Postgres) GetGuide(ctx context.Context, podcastID, id int64) (domain.EpisodeGuide, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	guide, err := scanGuide(p.pool.QueryRow(ctx, `
SELECT `+guideColumns+` FROM episode_guides WHERE podcast_id=$1 AND id=$2
`, podcastID, id))
	metrics.ObserveNetworkRequest("postgres", "episode_guides_get", "episode_guides", start, err)
	if err != nil {
		return domain.EpisodeGuide{}, mapNoRows(err)
	}
	return guide, nil
}

// FindGuideByEpisodeNumber реализует domain.GuideRepo.
func (p *Postgres) FindGuideByEpisodeNumber(ctx context.Context, podcastID int64, number int) (domain.EpisodeGuide, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	guide, err := scanGuide(p.pool.QueryRow(ctx, `
SELECT `+guideColumns+` FROM episode_guides
WHERE podcast_id=$1 AND episode_number=$2
ORDER BY id DESC LIMIT 1
`, podcastID, number))
	metrics.ObserveNetworkRequest("postgres", "episode_guides_get_by_number", "episode_guides", start, err)
	if err != nil {
		return domain.EpisodeGuide{}, mapNoRows(err)
	}
	return guide, nil
}

// ListGuides реализует domain.GuideRepo.
func (p *Postgres) ListGuides(ctx context.Context, podcastID int64, filter domain.GuideFilter) ([]domain.EpisodeGuide, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	query := `SELECT ` + guideColumns + ` FROM episode_guides WHERE podcast_id=$1`
	args := []any{podcastID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		query += fmt.Sprintf(" AND title ILIKE $%d", len(args))
	}
	query += " ORDER BY episode_number DESC NULLS LAST, created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "episode_guides_list", "episode_guides", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guides []domain.EpisodeGuide
	for rows.Next() {
		guide, err := scanGuide(rows)
		if err != nil {
			return nil, err
		}
		guides = append(guides, guide)
	}
	return guides, rows.Err()
}

// GuideStats реализует domain.GuideRepo.
func (p *Postgres) GuideStats(ctx context.Context, podcastID int64) (domain.GuideStats, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var stats domain.GuideStats
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT count(*),
       count(*) FILTER (WHERE status='draft'),
       count(*) FILTER (WHERE status='recording'),
       count(*) FILTER (WHERE status='completed')
FROM episode_guides WHERE podcast_id=$1
`, podcastID).Scan(&stats.Total, &stats.Drafts, &stats.Recording, &stats.Completed)
	metrics.ObserveNetworkRequest("postgres", "episode_guides_stats", "episode_guides", start, err)
	return stats, err
}

// ListScheduledGuides реализует domain.GuideRepo.
func (p *Postgres) ListScheduledGuides(ctx context.Context, from, to time.Time) ([]domain.EpisodeGuide, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+guideColumns+` FROM episode_guides
WHERE scheduled_date >= $1 AND scheduled_date < $2 AND status <> 'completed'
ORDER BY scheduled_date
`, from, to)
	metrics.ObserveNetworkRequest("postgres", "episode_guides_list_scheduled", "episode_guides", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guides []domain.EpisodeGuide
	for rows.Next() {
		guide, err := scanGuide(rows)
		if err != nil {
			return nil, err
		}
		guides = append(guides, guide)
	}
	return guides, rows.Err()
}

// UpdateGuide реализует domain.GuideRepo.
func (p *Postgres) UpdateGuide(ctx context.Context, guide domain.EpisodeGuide) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE episode_guides
SET title=$2, episode_number=$3, scheduled_date=$4, notes=NULLIF($5,''),
    previous_poll=NULLIF($6,''), previous_poll_link=NULLIF($7,''),
    new_poll=NULLIF($8,''), new_poll_link=NULLIF($9,''), updated_at=now()
WHERE id=$1
`, guide.ID, guide.Title, guide.EpisodeNumber, guide.ScheduledDate, guide.Notes,
		guide.PreviousPoll, guide.PreviousPollLink, guide.NewPoll, guide.NewPollLink)
	metrics.ObserveNetworkRequest("postgres", "episode_guides_update", "episode_guides", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteGuide реализует domain.GuideRepo. Пункты выпуска удаляются каскадом.
func (p *Postgres) DeleteGuide(ctx context.Context, podcastID, id int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
DELETE FROM episode_guides WHERE podcast_id=$1 AND id=$2
`, podcastID, id)
	metrics.ObserveNetworkRequest("postgres", "episode_guides_delete", "episode_guides", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CloneGuide реализует domain.GuideRepo: новый выпуск и копии пунктов
// создаются одной транзакцией, позиции пунктов сохраняются как есть.
func (p *Postgres) CloneGuide(ctx context.Context, guide domain.EpisodeGuide, items []domain.EpisodeGuideItem) (domain.EpisodeGuide, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "episode_guides", start, err)
	if err != nil {
		return domain.EpisodeGuide{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created, err := insertGuide(ctx, tx, guide)
	if err != nil {
		return domain.EpisodeGuide{}, err
	}

	for _, item := range items {
		links, err := marshalLines(item.Links)
		if err != nil {
			return domain.EpisodeGuide{}, err
		}
		start = time.Now()
		_, err = tx.Exec(ctx, `
INSERT INTO guide_items (guide_id, section, title, links, notes, position, discussed)
VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, false)
`, created.ID, item.Section, item.Title, links, item.Notes, item.Position)
		metrics.ObserveNetworkRequest("postgres", "guide_items_insert", "guide_items", start, err)
		if err != nil {
			return domain.EpisodeGuide{}, err
		}
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "episode_guides", start, err)
	if err != nil {
		return domain.EpisodeGuide{}, err
	}
	return created, nil
}

// UpdateRecordingState реализует domain.GuideRepo.
func (p *Postgres) UpdateRecordingState(ctx context.Context, guide domain.EpisodeGuide) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE episode_guides
SET status=$2, recording_started_at=$3, recording_ended_at=$4, total_duration_seconds=$5, updated_at=now()
WHERE id=$1
`, guide.ID, guide.Status, guide.RecordingStartedAt, guide.RecordingEndedAt, guide.TotalDurationSeconds)
	metrics.ObserveNetworkRequest("postgres", "episode_guides_update_recording", "episode_guides", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ResetRecording реализует domain.GuideRepo: возвращает выпуск в черновик
// и очищает таймкоды и флаги обсуждения пунктов одной транзакцией.
func (p *Postgres) ResetRecording(ctx context.Context, guideID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "episode_guides", start, err)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	start = time.Now()
	tag, err := tx.Exec(ctx, `
UPDATE episode_guides
SET status='draft', recording_started_at=NULL, recording_ended_at=NULL, total_duration_seconds=NULL, updated_at=now()
WHERE id=$1
`, guideID)
	metrics.ObserveNetworkRequest("postgres", "episode_guides_reset", "episode_guides", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	start = time.Now()
	_, err = tx.Exec(ctx, `
UPDATE guide_items SET timestamp_seconds=NULL, discussed=false, updated_at=now() WHERE guide_id=$1
`, guideID)
	metrics.ObserveNetworkRequest("postgres", "guide_items_reset", "guide_items", start, err)
	if err != nil {
		return err
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "episode_guides", start, err)
	return err
}

// UpdateCustomSections реализует domain.GuideRepo.
func (p *Postgres) UpdateCustomSections(ctx context.Context, guideID int64, sections []domain.CustomSection) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	payload, err := marshalSections(sections)
	if err != nil {
		return fmt.Errorf("сериализация секций: %w", err)
	}

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE episode_guides SET custom_sections=$2, updated_at=now() WHERE id=$1
`, guideID, payload)
	metrics.ObserveNetworkRequest("postgres", "episode_guides_update_sections", "episode_guides", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateStaticContent реализует domain.GuideRepo.
func (p *Postgres) UpdateStaticContent(ctx context.Context, guideID int64, intro, outro []string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	introJSON, err := marshalLines(intro)
	if err != nil {
		return err
	}
	outroJSON, err := marshalLines(outro)
	if err != nil {
		return err
	}

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE episode_guides SET intro_static_content=$2, outro_static_content=$3, updated_at=now() WHERE id=$1
`, guideID, introJSON, outroJSON)
	metrics.ObserveNetworkRequest("postgres", "episode_guides_update_static", "episode_guides", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// LastSyncedMessage реализует domain.TopicSyncRepo.
func (p *Postgres) LastSyncedMessage(ctx context.Context, guideID int64, channelID string) (string, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var messageID string
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT last_message_id FROM topic_sync_state WHERE guide_id=$1 AND channel_id=$2
`, guideID, channelID).Scan(&messageID)
	metrics.ObserveNetworkRequest("postgres", "topic_sync_state_get", "topic_sync_state", start, err)
	if err != nil {
		return "", mapNoRows(err)
	}
	return messageID, nil
}

// MarkSynced реализует domain.TopicSyncRepo.
func (p *Postgres) MarkSynced(ctx context.Context, guideID int64, channelID, lastMessageID string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO topic_sync_state (guide_id, channel_id, last_message_id, synced_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (guide_id, channel_id) DO UPDATE SET last_message_id=EXCLUDED.last_message_id, synced_at=now()
`, guideID, channelID, lastMessageID)
	metrics.ObserveNetworkRequest("postgres", "topic_sync_state_upsert", "topic_sync_state", start, err)
	return err
}
