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

func marshalSections(sections []domain.CustomSection) ([]byte, error) {
	if sections == nil {
		sections = []domain.CustomSection{}
	}
	return json.Marshal(sections)
}

func marshalLines(lines []string) ([]byte, error) {
	if lines == nil {
		lines = []string{}
	}
	return json.Marshal(lines)
}

// CreateTemplate реализует domain.TemplateRepo.
func (p *Postgres) CreateTemplate(ctx context.Context, template domain.GuideTemplate) (domain.GuideTemplate, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	sections, err := marshalSections(template.DefaultSections)
	if err != nil {
		return domain.GuideTemplate{}, fmt.Errorf("сериализация секций: %w", err)
	}
	intro, err := marshalLines(template.IntroStaticContent)
	if err != nil {
		return domain.GuideTemplate{}, err
	}
	outro, err := marshalLines(template.OutroStaticContent)
	if err != nil {
		return domain.GuideTemplate{}, err
	}

	start := time.Now()
	err = p.pool.QueryRow(ctx, `
INSERT INTO guide_templates (podcast_id, name, description, intro_static_content, outro_static_content, default_sections, default_poll1, default_poll2, created_by, is_default)
VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, NULLIF($7,''), NULLIF($8,''), $9, false)
RETURNING id, created_at, updated_at
`, template.PodcastID, template.Name, template.Description, intro, outro, sections, template.DefaultPoll1, template.DefaultPoll2, template.CreatedBy).
		Scan(&template.ID, &template.CreatedAt, &template.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "guide_templates_insert", "guide_templates", start, err)
	if err != nil {
		return domain.GuideTemplate{}, err
	}
	template.IsDefault = false
	return template, nil
}

const templateColumns = `id, podcast_id, name, COALESCE(description,''), intro_static_content, outro_static_content, default_sections, COALESCE(default_poll1,''), COALESCE(default_poll2,''), created_by, is_default, created_at, updated_at`

func scanTemplate(row pgx.Row) (domain.GuideTemplate, error) {
	var (
		template domain.GuideTemplate
		intro    []byte
		outro    []byte
		sections []byte
	)
	err := row.Scan(&template.ID, &template.PodcastID, &template.Name, &template.Description,
		&intro, &outro, &sections, &template.DefaultPoll1, &template.DefaultPoll2,
		&template.CreatedBy, &template.IsDefault, &template.CreatedAt, &template.UpdatedAt)
	if err != nil {
		return domain.GuideTemplate{}, err
	}
	if err := json.Unmarshal(intro, &template.IntroStaticContent); err != nil {
		return domain.GuideTemplate{}, fmt.Errorf("разбор intro: %w", err)
	}
	if err := json.Unmarshal(outro, &template.OutroStaticContent); err != nil {
		return domain.GuideTemplate{}, fmt.Errorf("разбор outro: %w", err)
	}
	if err := json.Unmarshal(sections, &template.DefaultSections); err != nil {
		return domain.GuideTemplate{}, fmt.Errorf("разбор секций: %w", err)
	}
	return template, nil
}

// GetTemplate реализует domain.TemplateRepo.
func (p *Postgres) GetTemplate(ctx context.Context, podcastID, id int64) (domain.GuideTemplate, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	template, err := scanTemplate(p.pool.QueryRow(ctx, `
SELECT `+templateColumns+` FROM guide_templates WHERE podcast_id=$1 AND id=$2
`, podcastID, id))
	metrics.ObserveNetworkRequest("postgres", "guide_templates_get", "guide_templates", start, err)
	if err != nil {
		return domain.GuideTemplate{}, mapNoRows(err)
	}
	return template, nil
}

// ListTemplates реализует domain.TemplateRepo.
func (p *Postgres) ListTemplates(ctx context.Context, podcastID int64) ([]domain.GuideTemplate, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+templateColumns+` FROM guide_templates WHERE podcast_id=$1 ORDER BY name
`, podcastID)
	metrics.ObserveNetworkRequest("postgres", "guide_templates_list", "guide_templates", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []domain.GuideTemplate
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, template)
	}
	return templates, rows.Err()
}

// UpdateTemplate реализует domain.TemplateRepo.
func (p *Postgres) UpdateTemplate(ctx context.Context, template domain.GuideTemplate) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	sections, err := marshalSections(template.DefaultSections)
	if err != nil {
		return fmt.Errorf("сериализация секций: %w", err)
	}
	intro, err := marshalLines(template.IntroStaticContent)
	if err != nil {
		return err
	}
	outro, err := marshalLines(template.OutroStaticContent)
	if err != nil {
		return err
	}

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE guide_templates
SET name=$3, description=NULLIF($4,''), intro_static_content=$5, outro_static_content=$6, default_sections=$7, default_poll1=NULLIF($8,''), default_poll2=NULLIF($9,''), updated_at=now()
WHERE podcast_id=$1 AND id=$2
`, template.PodcastID, template.ID, template.Name, template.Description, intro, outro, sections, template.DefaultPoll1, template.DefaultPoll2)
	metrics.ObserveNetworkRequest("postgres", "guide_templates_update", "guide_templates", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteTemplate реализует domain.TemplateRepo. Ссылки выпусков на шаблон
// обнуляются на стороне БД (ON DELETE SET NULL).
func (p *Postgres) DeleteTemplate(ctx context.Context, podcastID, id int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
DELETE FROM guide_templates WHERE podcast_id=$1 AND id=$2
`, podcastID, id)
	metrics.ObserveNetworkRequest("postgres", "guide_templates_delete", "guide_templates", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetDefaultTemplate реализует domain.TemplateRepo: снимает признак
// со всех шаблонов подкаста и ставит его указанному одной транзакцией.
func (p *Postgres) SetDefaultTemplate(ctx context.Context, podcastID, id int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "guide_templates", start, err)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	start = time.Now()
	_, err = tx.Exec(ctx, `
UPDATE guide_templates SET is_default=false WHERE podcast_id=$1 AND is_default
`, podcastID)
	metrics.ObserveNetworkRequest("postgres", "guide_templates_clear_default", "guide_templates", start, err)
	if err != nil {
		return err
	}

	start = time.Now()
	tag, err := tx.Exec(ctx, `
UPDATE guide_templates SET is_default=true WHERE podcast_id=$1 AND id=$2
`, podcastID, id)
	metrics.ObserveNetworkRequest("postgres", "guide_templates_set_default", "guide_templates", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "guide_templates", start, err)
	return err
}
