package templates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"creator-hub/internal/domain"
)

var (
	// ErrTemplateNotFound возвращается, если шаблон не существует.
	ErrTemplateNotFound = errors.New("шаблон не найден")
	// ErrNameRequired возвращается при пустом названии шаблона.
	ErrNameRequired = errors.New("название шаблона не может быть пустым")
)

// Service управляет шаблонами сценариев подкаста.
type Service struct {
	templates domain.TemplateRepo
}

// NewService создаёт сервис шаблонов.
func NewService(templates domain.TemplateRepo) *Service {
	return &Service{templates: templates}
}

// Params — параметры создания или изменения шаблона.
type Params struct {
	Name         string
	Description  string
	Sections     []domain.CustomSection
	IntroContent []string
	OutroContent []string
	DefaultPoll1 string
	DefaultPoll2 string
	IsDefault    bool
}

// Create создаёт шаблон. Если шаблон помечен как шаблон по умолчанию,
// прежний шаблон по умолчанию теряет этот признак.
func (s *Service) Create(ctx context.Context, podcastID int64, p Params) (domain.GuideTemplate, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return domain.GuideTemplate{}, ErrNameRequired
	}
	template, err := s.templates.CreateTemplate(ctx, domain.GuideTemplate{
		PodcastID:          podcastID,
		Name:               name,
		Description:        strings.TrimSpace(p.Description),
		DefaultSections:    p.Sections,
		IntroStaticContent: p.IntroContent,
		OutroStaticContent: p.OutroContent,
		DefaultPoll1:       strings.TrimSpace(p.DefaultPoll1),
		DefaultPoll2:       strings.TrimSpace(p.DefaultPoll2),
	})
	if err != nil {
		return domain.GuideTemplate{}, fmt.Errorf("создание шаблона: %w", err)
	}
	if p.IsDefault {
		if err := s.templates.SetDefaultTemplate(ctx, podcastID, template.ID); err != nil {
			return domain.GuideTemplate{}, fmt.Errorf("назначение шаблона по умолчанию: %w", err)
		}
		template.IsDefault = true
	}
	return template, nil
}

// Get возвращает шаблон подкаста.
func (s *Service) Get(ctx context.Context, podcastID, id int64) (domain.GuideTemplate, error) {
	template, err := s.templates.GetTemplate(ctx, podcastID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.GuideTemplate{}, ErrTemplateNotFound
		}
		return domain.GuideTemplate{}, fmt.Errorf("получение шаблона: %w", err)
	}
	return template, nil
}

// List возвращает шаблоны подкаста.
func (s *Service) List(ctx context.Context, podcastID int64) ([]domain.GuideTemplate, error) {
	list, err := s.templates.ListTemplates(ctx, podcastID)
	if err != nil {
		return nil, fmt.Errorf("список шаблонов: %w", err)
	}
	return list, nil
}

// Default возвращает шаблон по умолчанию, либо ErrTemplateNotFound.
func (s *Service) Default(ctx context.Context, podcastID int64) (domain.GuideTemplate, error) {
	list, err := s.List(ctx, podcastID)
	if err != nil {
		return domain.GuideTemplate{}, err
	}
	for _, t := range list {
		if t.IsDefault {
			return t, nil
		}
	}
	return domain.GuideTemplate{}, ErrTemplateNotFound
}

// Update изменяет шаблон целиком.
func (s *Service) Update(ctx context.Context, podcastID, id int64, p Params) (domain.GuideTemplate, error) {
	template, err := s.Get(ctx, podcastID, id)
	if err != nil {
		return domain.GuideTemplate{}, err
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return domain.GuideTemplate{}, ErrNameRequired
	}
	template.Name = name
	template.Description = strings.TrimSpace(p.Description)
	template.DefaultSections = p.Sections
	template.IntroStaticContent = p.IntroContent
	template.OutroStaticContent = p.OutroContent
	template.DefaultPoll1 = strings.TrimSpace(p.DefaultPoll1)
	template.DefaultPoll2 = strings.TrimSpace(p.DefaultPoll2)
	if err := s.templates.UpdateTemplate(ctx, template); err != nil {
		return domain.GuideTemplate{}, fmt.Errorf("изменение шаблона: %w", err)
	}
	if p.IsDefault && !template.IsDefault {
		if err := s.templates.SetDefaultTemplate(ctx, podcastID, template.ID); err != nil {
			return domain.GuideTemplate{}, fmt.Errorf("назначение шаблона по умолчанию: %w", err)
		}
		template.IsDefault = true
	}
	return template, nil
}

// SetDefault делает шаблон единственным шаблоном по умолчанию подкаста.
func (s *Service) SetDefault(ctx context.Context, podcastID, id int64) error {
	if _, err := s.Get(ctx, podcastID, id); err != nil {
		return err
	}
	if err := s.templates.SetDefaultTemplate(ctx, podcastID, id); err != nil {
		return fmt.Errorf("назначение шаблона по умолчанию: %w", err)
	}
	return nil
}

// Delete удаляет шаблон. Выпуски, созданные по шаблону, сохраняют
// скопированные секции и не зависят от него.
func (s *Service) Delete(ctx context.Context, podcastID, id int64) error {
	if _, err := s.Get(ctx, podcastID, id); err != nil {
		return err
	}
	if err := s.templates.DeleteTemplate(ctx, podcastID, id); err != nil {
		return fmt.Errorf("удаление шаблона: %w", err)
	}
	return nil
}
