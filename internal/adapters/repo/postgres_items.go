package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"creator-hub/internal/domain"
	"creator-hub/internal/infra/metrics"
)

const itemColumns = `id, guide_id, section, title, links, COALESCE(notes,''), position, timestamp_seconds, discussed, created_at, updated_at`

func scanItem(row pgx.Row) (domain.EpisodeGuideItem, error) {
	var (
		item  domain.EpisodeGuideItem
		links []byte
	)
	err := row.Scan(&item.ID, &item.GuideID, &item.Section, &item.Title, &links, &item.Notes,
		&item.Position, &item.TimestampSeconds, &item.Discussed, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return domain.EpisodeGuideItem{}, err
	}
	if err := json.Unmarshal(links, &item.Links); err != nil {
		return domain.EpisodeGuideItem{}, fmt.Errorf("разбор ссылок: %w", err)
	}
	return item, nil
}

// ListItems реализует domain.ItemRepo. Пункты возвращаются в порядке
// секций и позиций внутри секции.
func (p *Postgres) ListItems(ctx context.Context, guideID int64) ([]domain.EpisodeGuideItem, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+itemColumns+` FROM guide_items WHERE guide_id=$1 ORDER BY section, position
`, guideID)
	metrics.ObserveNetworkRequest("postgres", "guide_items_list", "guide_items", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.EpisodeGuideItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetItem реализует domain.ItemRepo.
func (p *Postgres) GetItem(ctx context.Context, guideID, itemID int64) (domain.EpisodeGuideItem, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	item, err := scanItem(p.pool.QueryRow(ctx, `
SELECT `+itemColumns+` FROM guide_items WHERE guide_id=$1 AND id=$2
`, guideID, itemID))
	metrics.ObserveNetworkRequest("postgres", "guide_items_get", "guide_items", start, err)
	if err != nil {
		return domain.EpisodeGuideItem{}, mapNoRows(err)
	}
	return item, nil
}

// CreateItem реализует domain.ItemRepo: пункт получает позицию max+1 в своей
// секции. Позиция вычисляется тем же INSERT, чтобы параллельные вставки
// не получили одинаковый номер.
func (p *Postgres) CreateItem(ctx context.Context, item domain.EpisodeGuideItem) (domain.EpisodeGuideItem, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	links, err := marshalLines(item.Links)
	if err != nil {
		return domain.EpisodeGuideItem{}, err
	}

	start := time.Now()
	err = p.pool.QueryRow(ctx, `
INSERT INTO guide_items (guide_id, section, title, links, notes, position, discussed)
SELECT $1, $2, $3, $4, NULLIF($5,''), COALESCE(MAX(position)+1, 0), false
FROM guide_items WHERE guide_id=$1 AND section=$2
RETURNING id, position, discussed, created_at, updated_at
`, item.GuideID, item.Section, item.Title, links, item.Notes).
		Scan(&item.ID, &item.Position, &item.Discussed, &item.CreatedAt, &item.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "guide_items_insert", "guide_items", start, err)
	if err != nil {
		return domain.EpisodeGuideItem{}, err
	}
	return item, nil
}

// UpdateItem реализует domain.ItemRepo. Секция и позиция этим методом
// не меняются, для перемещения служит MoveItem.
func (p *Postgres) UpdateItem(ctx context.Context, item domain.EpisodeGuideItem) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	links, err := marshalLines(item.Links)
	if err != nil {
		return err
	}

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE guide_items
SET title=$3, links=$4, notes=NULLIF($5,''), discussed=$6, timestamp_seconds=$7, updated_at=now()
WHERE guide_id=$1 AND id=$2
`, item.GuideID, item.ID, item.Title, links, item.Notes, item.Discussed, item.TimestampSeconds)
	metrics.ObserveNetworkRequest("postgres", "guide_items_update", "guide_items", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteItem реализует domain.ItemRepo: удаление и закрытие разрыва
// в нумерации выполняются одной транзакцией.
func (p *Postgres) DeleteItem(ctx context.Context, guideID, itemID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "guide_items", start, err)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		section  domain.SectionKey
		position int
	)
	start = time.Now()
	err = tx.QueryRow(ctx, `
DELETE FROM guide_items WHERE guide_id=$1 AND id=$2 RETURNING section, position
`, guideID, itemID).Scan(&section, &position)
	metrics.ObserveNetworkRequest("postgres", "guide_items_delete", "guide_items", start, err)
	if err != nil {
		return mapNoRows(err)
	}

	start = time.Now()
	_, err = tx.Exec(ctx, `
UPDATE guide_items SET position=position-1, updated_at=now()
WHERE guide_id=$1 AND section=$2 AND position > $3
`, guideID, section, position)
	metrics.ObserveNetworkRequest("postgres", "guide_items_close_gap", "guide_items", start, err)
	if err != nil {
		return err
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "guide_items", start, err)
	return err
}

// MoveItem реализует domain.ItemRepo. Перемещаемая строка блокируется
// FOR UPDATE, диапазоны в исходной и целевой секциях сдвигаются
// декларативными UPDATE, сама строка записывается последней. Целевая
// позиция сверх конца секции прижимается к концу.
func (p *Postgres) MoveItem(ctx context.Context, guideID, itemID int64, targetSection domain.SectionKey, targetPosition int) (domain.EpisodeGuideItem, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "guide_items", start, err)
	if err != nil {
		return domain.EpisodeGuideItem{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		oldSection  domain.SectionKey
		oldPosition int
	)
	start = time.Now()
	err = tx.QueryRow(ctx, `
SELECT section, position FROM guide_items WHERE guide_id=$1 AND id=$2 FOR UPDATE
`, guideID, itemID).Scan(&oldSection, &oldPosition)
	metrics.ObserveNetworkRequest("postgres", "guide_items_get_for_update", "guide_items", start, err)
	if err != nil {
		return domain.EpisodeGuideItem{}, mapNoRows(err)
	}

	var targetCount int
	start = time.Now()
	err = tx.QueryRow(ctx, `
SELECT count(*) FROM guide_items WHERE guide_id=$1 AND section=$2
`, guideID, targetSection).Scan(&targetCount)
	metrics.ObserveNetworkRequest("postgres", "guide_items_count", "guide_items", start, err)
	if err != nil {
		return domain.EpisodeGuideItem{}, err
	}

	sameSection := oldSection == targetSection
	maxPosition := targetCount
	if sameSection {
		maxPosition = targetCount - 1
	}
	if targetPosition > maxPosition {
		targetPosition = maxPosition
	}
	if targetPosition < 0 {
		targetPosition = 0
	}

	switch {
	case sameSection && targetPosition == oldPosition:
		// Пункт уже на месте.
	case sameSection && targetPosition > oldPosition:
		start = time.Now()
		_, err = tx.Exec(ctx, `
UPDATE guide_items SET position=position-1, updated_at=now()
WHERE guide_id=$1 AND section=$2 AND position > $3 AND position <= $4
`, guideID, oldSection, oldPosition, targetPosition)
		metrics.ObserveNetworkRequest("postgres", "guide_items_shift_down", "guide_items", start, err)
	case sameSection:
		start = time.Now()
		_, err = tx.Exec(ctx, `
UPDATE guide_items SET position=position+1, updated_at=now()
WHERE guide_id=$1 AND section=$2 AND position >= $3 AND position < $4
`, guideID, oldSection, targetPosition, oldPosition)
		metrics.ObserveNetworkRequest("postgres", "guide_items_shift_up", "guide_items", start, err)
	default:
		start = time.Now()
		_, err = tx.Exec(ctx, `
UPDATE guide_items SET position=position-1, updated_at=now()
WHERE guide_id=$1 AND section=$2 AND position > $3
`, guideID, oldSection, oldPosition)
		metrics.ObserveNetworkRequest("postgres", "guide_items_close_gap", "guide_items", start, err)
		if err == nil {
			start = time.Now()
			_, err = tx.Exec(ctx, `
UPDATE guide_items SET position=position+1, updated_at=now()
WHERE guide_id=$1 AND section=$2 AND position >= $3
`, guideID, targetSection, targetPosition)
			metrics.ObserveNetworkRequest("postgres", "guide_items_open_gap", "guide_items", start, err)
		}
	}
	if err != nil {
		return domain.EpisodeGuideItem{}, err
	}

	start = time.Now()
	item, err := scanItem(tx.QueryRow(ctx, `
UPDATE guide_items SET section=$3, position=$4, updated_at=now()
WHERE guide_id=$1 AND id=$2
RETURNING `+itemColumns+`
`, guideID, itemID, targetSection, targetPosition))
	metrics.ObserveNetworkRequest("postgres", "guide_items_move", "guide_items", start, err)
	if err != nil {
		return domain.EpisodeGuideItem{}, err
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "guide_items", start, err)
	if err != nil {
		return domain.EpisodeGuideItem{}, err
	}
	return item, nil
}

// CountItemsInSection реализует domain.ItemRepo.
func (p *Postgres) CountItemsInSection(ctx context.Context, guideID int64, section domain.SectionKey) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT count(*) FROM guide_items WHERE guide_id=$1 AND section=$2
`, guideID, section).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "guide_items_count", "guide_items", start, err)
	return count, err
}

// SetItemTimestamp реализует domain.ItemRepo: запоминает таймкод и помечает
// пункт обсуждённым.
func (p *Postgres) SetItemTimestamp(ctx context.Context, guideID, itemID int64, seconds int) (domain.EpisodeGuideItem, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	item, err := scanItem(p.pool.QueryRow(ctx, `
UPDATE guide_items SET timestamp_seconds=$3, discussed=true, updated_at=now()
WHERE guide_id=$1 AND id=$2
RETURNING `+itemColumns+`
`, guideID, itemID, seconds))
	metrics.ObserveNetworkRequest("postgres", "guide_items_set_timestamp", "guide_items", start, err)
	if err != nil {
		return domain.EpisodeGuideItem{}, mapNoRows(err)
	}
	return item, nil
}
