package repo

import (
	"context"
	"time"

	"creator-hub/internal/domain"
	"creator-hub/internal/infra/metrics"
)

// ListCustomOptions реализует domain.OptionRepo.
func (p *Postgres) ListCustomOptions(ctx context.Context, optionType string) ([]domain.CustomOption, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, option_type, value, label, created_at
FROM custom_options WHERE option_type=$1 ORDER BY label
`, optionType)
	metrics.ObserveNetworkRequest("postgres", "custom_options_list", "custom_options", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var options []domain.CustomOption
	for rows.Next() {
		var o domain.CustomOption
		if err := rows.Scan(&o.ID, &o.OptionType, &o.Value, &o.Label, &o.CreatedAt); err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

// ListAllCustomOptions реализует domain.OptionRepo.
func (p *Postgres) ListAllCustomOptions(ctx context.Context) ([]domain.CustomOption, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, option_type, value, label, created_at
FROM custom_options ORDER BY option_type, label
`)
	metrics.ObserveNetworkRequest("postgres", "custom_options_list_all", "custom_options", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var options []domain.CustomOption
	for rows.Next() {
		var o domain.CustomOption
		if err := rows.Scan(&o.ID, &o.OptionType, &o.Value, &o.Label, &o.CreatedAt); err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

// GetCustomOption реализует domain.OptionRepo.
func (p *Postgres) GetCustomOption(ctx context.Context, optionType, value string) (domain.CustomOption, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var o domain.CustomOption
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, option_type, value, label, created_at
FROM custom_options WHERE option_type=$1 AND value=$2
`, optionType, value).Scan(&o.ID, &o.OptionType, &o.Value, &o.Label, &o.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "custom_options_get", "custom_options", start, err)
	if err != nil {
		return domain.CustomOption{}, mapNoRows(err)
	}
	return o, nil
}

// AddCustomOption реализует domain.OptionRepo.
func (p *Postgres) AddCustomOption(ctx context.Context, option domain.CustomOption) (domain.CustomOption, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO custom_options (option_type, value, label)
VALUES ($1, $2, $3)
RETURNING id, created_at
`, option.OptionType, option.Value, option.Label).Scan(&option.ID, &option.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "custom_options_insert", "custom_options", start, err)
	if err != nil {
		return domain.CustomOption{}, err
	}
	return option, nil
}

// RemoveCustomOption реализует domain.OptionRepo.
func (p *Postgres) RemoveCustomOption(ctx context.Context, id int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM custom_options WHERE id=$1`, id)
	metrics.ObserveNetworkRequest("postgres", "custom_options_delete", "custom_options", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
