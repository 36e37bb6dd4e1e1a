package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"creator-hub/internal/domain"
	"creator-hub/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.PodcastRepo   = (*Postgres)(nil)
	_ domain.MemberRepo    = (*Postgres)(nil)
	_ domain.TemplateRepo  = (*Postgres)(nil)
	_ domain.GuideRepo     = (*Postgres)(nil)
	_ domain.ItemRepo      = (*Postgres)(nil)
	_ domain.OptionRepo    = (*Postgres)(nil)
	_ domain.TopicSyncRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 5*time.Second)
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// CreatePodcast реализует domain.PodcastRepo.
func (p *Postgres) CreatePodcast(ctx context.Context, podcast domain.Podcast) (domain.Podcast, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO podcasts (name, slug, description, artwork_url, website_url, rss_feed_url, created_by, is_active)
VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), $7, $8)
RETURNING id, created_at, updated_at
`, podcast.Name, podcast.Slug, podcast.Description, podcast.ArtworkURL, podcast.WebsiteURL, podcast.RSSFeedURL, podcast.CreatedBy, podcast.IsActive).
		Scan(&podcast.ID, &podcast.CreatedAt, &podcast.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "podcasts_insert", "podcasts", start, err)
	if err != nil {
		return domain.Podcast{}, err
	}
	return podcast, nil
}

const podcastColumns = `id, name, slug, COALESCE(description,''), COALESCE(artwork_url,''), COALESCE(website_url,''), COALESCE(rss_feed_url,''), created_by, is_active, created_at, updated_at`

func scanPodcast(row pgx.Row) (domain.Podcast, error) {
	var podcast domain.Podcast
	err := row.Scan(&podcast.ID, &podcast.Name, &podcast.Slug, &podcast.Description, &podcast.ArtworkURL,
		&podcast.WebsiteURL, &podcast.RSSFeedURL, &podcast.CreatedBy, &podcast.IsActive, &podcast.CreatedAt, &podcast.UpdatedAt)
	return podcast, err
}

// GetPodcast реализует domain.PodcastRepo.
func (p *Postgres) GetPodcast(ctx context.Context, id int64) (domain.Podcast, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	podcast, err := scanPodcast(p.pool.QueryRow(ctx, `
SELECT `+podcastColumns+` FROM podcasts WHERE id=$1
`, id))
	metrics.ObserveNetworkRequest("postgres", "podcasts_get", "podcasts", start, err)
	if err != nil {
		return domain.Podcast{}, mapNoRows(err)
	}
	return podcast, nil
}

// GetPodcastBySlug реализует domain.PodcastRepo.
func (p *Postgres) GetPodcastBySlug(ctx context.Context, slug string) (domain.Podcast, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	podcast, err := scanPodcast(p.pool.QueryRow(ctx, `
SELECT `+podcastColumns+` FROM podcasts WHERE slug=$1
`, slug))
	metrics.ObserveNetworkRequest("postgres", "podcasts_get_by_slug", "podcasts", start, err)
	if err != nil {
		return domain.Podcast{}, mapNoRows(err)
	}
	return podcast, nil
}

// ListPodcastsForUser реализует domain.PodcastRepo.
func (p *Postgres) ListPodcastsForUser(ctx context.Context, userID int64) ([]domain.Podcast, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT p.id, p.name, p.slug, COALESCE(p.description,''), COALESCE(p.artwork_url,''), COALESCE(p.website_url,''), COALESCE(p.rss_feed_url,''), p.created_by, p.is_active, p.created_at, p.updated_at
FROM podcasts p
JOIN podcast_members m ON m.podcast_id = p.id
WHERE m.user_id = $1 AND p.is_active
ORDER BY p.name
`, userID)
	metrics.ObserveNetworkRequest("postgres", "podcasts_list_for_user", "podcasts", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var podcasts []domain.Podcast
	for rows.Next() {
		podcast, err := scanPodcast(rows)
		if err != nil {
			return nil, err
		}
		podcasts = append(podcasts, podcast)
	}
	return podcasts, rows.Err()
}

// UpdatePodcast реализует domain.PodcastRepo.
func (p *Postgres) UpdatePodcast(ctx context.Context, podcast domain.Podcast) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE podcasts
SET name=$2, description=NULLIF($3,''), artwork_url=NULLIF($4,''), website_url=NULLIF($5,''), rss_feed_url=NULLIF($6,''), is_active=$7, updated_at=now()
WHERE id=$1
`, podcast.ID, podcast.Name, podcast.Description, podcast.ArtworkURL, podcast.WebsiteURL, podcast.RSSFeedURL, podcast.IsActive)
	metrics.ObserveNetworkRequest("postgres", "podcasts_update", "podcasts", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeletePodcast реализует domain.PodcastRepo. Выпуски, шаблоны и участники
// удаляются каскадом на стороне БД.
func (p *Postgres) DeletePodcast(ctx context.Context, id int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM podcasts WHERE id=$1`, id)
	metrics.ObserveNetworkRequest("postgres", "podcasts_delete", "podcasts", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AddMember реализует domain.MemberRepo.
func (p *Postgres) AddMember(ctx context.Context, member domain.PodcastMember) (domain.PodcastMember, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO podcast_members (podcast_id, user_id, role, added_by)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at
`, member.PodcastID, member.UserID, member.Role, member.AddedBy).Scan(&member.ID, &member.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "podcast_members_insert", "podcast_members", start, err)
	if err != nil {
		return domain.PodcastMember{}, err
	}
	return member, nil
}

// GetMember реализует domain.MemberRepo.
func (p *Postgres) GetMember(ctx context.Context, podcastID, userID int64) (domain.PodcastMember, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var member domain.PodcastMember
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, podcast_id, user_id, role, added_by, created_at
FROM podcast_members WHERE podcast_id=$1 AND user_id=$2
`, podcastID, userID).Scan(&member.ID, &member.PodcastID, &member.UserID, &member.Role, &member.AddedBy, &member.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "podcast_members_get", "podcast_members", start, err)
	if err != nil {
		return domain.PodcastMember{}, mapNoRows(err)
	}
	return member, nil
}

// ListMembers реализует domain.MemberRepo.
func (p *Postgres) ListMembers(ctx context.Context, podcastID int64) ([]domain.PodcastMember, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, podcast_id, user_id, role, added_by, created_at
FROM podcast_members WHERE podcast_id=$1
ORDER BY created_at
`, podcastID)
	metrics.ObserveNetworkRequest("postgres", "podcast_members_list", "podcast_members", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.PodcastMember
	for rows.Next() {
		var m domain.PodcastMember
		if err := rows.Scan(&m.ID, &m.PodcastID, &m.UserID, &m.Role, &m.AddedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// UpdateMemberRole реализует domain.MemberRepo.
func (p *Postgres) UpdateMemberRole(ctx context.Context, podcastID, userID int64, role domain.MemberRole) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE podcast_members SET role=$3 WHERE podcast_id=$1 AND user_id=$2
`, podcastID, userID, role)
	metrics.ObserveNetworkRequest("postgres", "podcast_members_update_role", "podcast_members", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RemoveMember реализует domain.MemberRepo.
func (p *Postgres) RemoveMember(ctx context.Context, podcastID, userID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
DELETE FROM podcast_members WHERE podcast_id=$1 AND user_id=$2
`, podcastID, userID)
	metrics.ObserveNetworkRequest("postgres", "podcast_members_delete", "podcast_members", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountAdmins реализует domain.MemberRepo.
func (p *Postgres) CountAdmins(ctx context.Context, podcastID int64) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT count(*) FROM podcast_members WHERE podcast_id=$1 AND role=$2
`, podcastID, domain.MemberRoleAdmin).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "podcast_members_count_admins", "podcast_members", start, err)
	return count, err
}
