package podcasts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"creator-hub/internal/domain"
)

var (
	// ErrPodcastNotFound возвращается, если подкаст не существует.
	ErrPodcastNotFound = errors.New("подкаст не найден")
	// ErrNameRequired возвращается при пустом названии подкаста.
	ErrNameRequired = errors.New("название подкаста не может быть пустым")
	// ErrMemberNotFound возвращается, если участник не состоит в подкасте.
	ErrMemberNotFound = errors.New("участник не найден")
	// ErrMemberExists возвращается при повторном добавлении участника.
	ErrMemberExists = errors.New("участник уже состоит в подкасте")
	// ErrLastAdmin возвращается при попытке убрать последнего администратора.
	ErrLastAdmin = errors.New("нельзя убрать последнего администратора подкаста")
	// ErrForbidden возвращается, если у пользователя нет нужной роли.
	ErrForbidden = errors.New("недостаточно прав")
)

// Service управляет подкастами и их участниками.
type Service struct {
	podcasts domain.PodcastRepo
	members  domain.MemberRepo
}

// NewService создаёт сервис подкастов.
func NewService(podcasts domain.PodcastRepo, members domain.MemberRepo) *Service {
	return &Service{podcasts: podcasts, members: members}
}

// CreateParams — параметры создания подкаста.
type CreateParams struct {
	Name        string
	Description string
	OwnerUserID int64
}

// Create создаёт подкаст и делает создателя его администратором.
func (s *Service) Create(ctx context.Context, p CreateParams) (domain.Podcast, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return domain.Podcast{}, ErrNameRequired
	}
	slug, err := s.uniqueSlug(ctx, DeriveSlug(name))
	if err != nil {
		return domain.Podcast{}, err
	}
	podcast, err := s.podcasts.CreatePodcast(ctx, domain.Podcast{
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(p.Description),
		CreatedBy:   p.OwnerUserID,
		IsActive:    true,
	})
	if err != nil {
		return domain.Podcast{}, fmt.Errorf("создание подкаста: %w", err)
	}
	_, err = s.members.AddMember(ctx, domain.PodcastMember{
		PodcastID: podcast.ID,
		UserID:    p.OwnerUserID,
		Role:      domain.MemberRoleAdmin,
	})
	if err != nil {
		return domain.Podcast{}, fmt.Errorf("добавление владельца: %w", err)
	}
	return podcast, nil
}

// Get возвращает подкаст по идентификатору.
func (s *Service) Get(ctx context.Context, id int64) (domain.Podcast, error) {
	podcast, err := s.podcasts.GetPodcast(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Podcast{}, ErrPodcastNotFound
		}
		return domain.Podcast{}, fmt.Errorf("получение подкаста: %w", err)
	}
	return podcast, nil
}

// ListForUser возвращает подкасты, в которых пользователь состоит.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]domain.Podcast, error) {
	podcasts, err := s.podcasts.ListPodcastsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("список подкастов: %w", err)
	}
	return podcasts, nil
}

// UpdateParams — параметры изменения подкаста. Нулевой указатель означает
// «поле не меняется».
type UpdateParams struct {
	Name        *string
	Description *string
}

// Update изменяет название и описание подкаста. Slug не меняется,
// чтобы не ломать существующие ссылки.
func (s *Service) Update(ctx context.Context, id int64, p UpdateParams) (domain.Podcast, error) {
	podcast, err := s.Get(ctx, id)
	if err != nil {
		return domain.Podcast{}, err
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return domain.Podcast{}, ErrNameRequired
		}
		podcast.Name = name
	}
	if p.Description != nil {
		podcast.Description = strings.TrimSpace(*p.Description)
	}
	if err := s.podcasts.UpdatePodcast(ctx, podcast); err != nil {
		return domain.Podcast{}, fmt.Errorf("изменение подкаста: %w", err)
	}
	return podcast, nil
}

// Delete удаляет подкаст вместе с выпусками и участниками.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.podcasts.DeletePodcast(ctx, id); err != nil {
		return fmt.Errorf("удаление подкаста: %w", err)
	}
	return nil
}

// Role возвращает роль пользователя в подкасте.
func (s *Service) Role(ctx context.Context, podcastID, userID int64) (domain.MemberRole, error) {
	member, err := s.members.GetMember(ctx, podcastID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", ErrMemberNotFound
		}
		return "", fmt.Errorf("получение участника: %w", err)
	}
	return member.Role, nil
}

// Members возвращает участников подкаста.
func (s *Service) Members(ctx context.Context, podcastID int64) ([]domain.PodcastMember, error) {
	if _, err := s.Get(ctx, podcastID); err != nil {
		return nil, err
	}
	members, err := s.members.ListMembers(ctx, podcastID)
	if err != nil {
		return nil, fmt.Errorf("список участников: %w", err)
	}
	return members, nil
}

// AddMember добавляет участника с указанной ролью.
func (s *Service) AddMember(ctx context.Context, podcastID, userID int64, role domain.MemberRole) (domain.PodcastMember, error) {
	if _, err := s.Get(ctx, podcastID); err != nil {
		return domain.PodcastMember{}, err
	}
	if _, err := s.members.GetMember(ctx, podcastID, userID); err == nil {
		return domain.PodcastMember{}, ErrMemberExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.PodcastMember{}, fmt.Errorf("получение участника: %w", err)
	}
	member, err := s.members.AddMember(ctx, domain.PodcastMember{
		PodcastID: podcastID,
		UserID:    userID,
		Role:      role,
	})
	if err != nil {
		return domain.PodcastMember{}, fmt.Errorf("добавление участника: %w", err)
	}
	return member, nil
}

// ChangeRole меняет роль участника. Понизить последнего администратора нельзя.
func (s *Service) ChangeRole(ctx context.Context, podcastID, userID int64, role domain.MemberRole) error {
	member, err := s.members.GetMember(ctx, podcastID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrMemberNotFound
		}
		return fmt.Errorf("получение участника: %w", err)
	}
	if member.Role == domain.MemberRoleAdmin && role != domain.MemberRoleAdmin {
		if err := s.ensureNotLastAdmin(ctx, podcastID); err != nil {
			return err
		}
	}
	if err := s.members.UpdateMemberRole(ctx, podcastID, userID, role); err != nil {
		return fmt.Errorf("смена роли: %w", err)
	}
	return nil
}

// RemoveMember убирает участника из подкаста. Последнего администратора
// убрать нельзя.
func (s *Service) RemoveMember(ctx context.Context, podcastID, userID int64) error {
	member, err := s.members.GetMember(ctx, podcastID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrMemberNotFound
		}
		return fmt.Errorf("получение участника: %w", err)
	}
	if member.Role == domain.MemberRoleAdmin {
		if err := s.ensureNotLastAdmin(ctx, podcastID); err != nil {
			return err
		}
	}
	if err := s.members.RemoveMember(ctx, podcastID, userID); err != nil {
		return fmt.Errorf("удаление участника: %w", err)
	}
	return nil
}

func (s *Service) ensureNotLastAdmin(ctx context.Context, podcastID int64) error {
	count, err := s.members.CountAdmins(ctx, podcastID)
	if err != nil {
		return fmt.Errorf("подсчёт администраторов: %w", err)
	}
	if count <= 1 {
		return ErrLastAdmin
	}
	return nil
}

// DeriveSlug строит slug из названия: нижний регистр, пробелы и дефисы
// заменяются на дефис, остальные символы вне [a-z0-9-] отбрасываются.
func DeriveSlug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	if slug == "" {
		slug = "podcast"
	}
	return slug
}

func (s *Service) uniqueSlug(ctx context.Context, base string) (string, error) {
	slug := base
	for i := 2; ; i++ {
		_, err := s.podcasts.GetPodcastBySlug(ctx, slug)
		if errors.Is(err, domain.ErrNotFound) {
			return slug, nil
		}
		if err != nil {
			return "", fmt.Errorf("проверка slug: %w", err)
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}
