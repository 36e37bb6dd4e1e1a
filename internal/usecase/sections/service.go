package sections

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"creator-hub/internal/domain"
)

var (
	// ErrGuideNotFound возвращается, если выпуск не существует или
	// не принадлежит подкасту.
	ErrGuideNotFound = errors.New("выпуск не найден")
	// ErrNameRequired возвращается при пустом названии секции.
	ErrNameRequired = errors.New("название секции обязательно")
	// ErrBuiltinSection возвращается при попытке удалить встроенную секцию.
	ErrBuiltinSection = errors.New("встроенную секцию нельзя удалить")
	// ErrSectionNotFound возвращается, если пользовательской секции нет в выпуске.
	ErrSectionNotFound = errors.New("секция не найдена")
	// ErrSectionNotEmpty возвращается, если в удаляемой секции остались пункты.
	ErrSectionNotEmpty = errors.New("в секции остались пункты")
)

const defaultColor = "gray"

// Service управляет каталогом секций выпуска.
type Service struct {
	guides    domain.GuideRepo
	templates domain.TemplateRepo
	items     domain.ItemRepo
}

// NewService создаёт сервис секций.
func NewService(guides domain.GuideRepo, templates domain.TemplateRepo, items domain.ItemRepo) *Service {
	return &Service{guides: guides, templates: templates, items: items}
}

// Catalog возвращает снимок действующих секций выпуска: встроенные,
// секции шаблона и пользовательские.
func (s *Service) Catalog(ctx context.Context, podcastID, guideID int64) (domain.SectionCatalog, error) {
	catalog, _, err := s.loadCatalog(ctx, podcastID, guideID)
	return catalog, err
}

// AddParams описывает новую пользовательскую секцию.
type AddParams struct {
	Name   string
	Parent string
	Color  string
}

// Add добавляет пользовательскую секцию. Ключ выводится из названия,
// коллизии разрешаются суффиксами _2, _3 и так далее.
func (s *Service) Add(ctx context.Context, podcastID, guideID int64, params AddParams) (domain.CustomSection, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return domain.CustomSection{}, ErrNameRequired
	}
	catalog, guide, err := s.loadCatalog(ctx, podcastID, guideID)
	if err != nil {
		return domain.CustomSection{}, err
	}

	key := uniqueKey(DeriveKey(name), catalog)
	color := strings.TrimSpace(params.Color)
	if color == "" {
		color = defaultColor
	}
	section := domain.CustomSection{
		Key:    key,
		Name:   name,
		Parent: strings.TrimSpace(params.Parent),
		Color:  color,
	}
	updated := append(append([]domain.CustomSection{}, guide.CustomSections...), section)
	if err := s.guides.UpdateCustomSections(ctx, guide.ID, updated); err != nil {
		return domain.CustomSection{}, fmt.Errorf("сохранение секций: %w", err)
	}
	return section, nil
}

// Delete удаляет пользовательскую секцию. Встроенные секции и секции
// с пунктами не удаляются.
func (s *Service) Delete(ctx context.Context, podcastID, guideID int64, key domain.SectionKey) error {
	if domain.IsBuiltinSection(key) {
		return ErrBuiltinSection
	}
	guide, err := s.guides.GetGuide(ctx, podcastID, guideID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrGuideNotFound
		}
		return fmt.Errorf("получение выпуска: %w", err)
	}

	count, err := s.items.CountItemsInSection(ctx, guide.ID, key)
	if err != nil {
		return fmt.Errorf("подсчёт пунктов: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %d", ErrSectionNotEmpty, count)
	}

	remaining := make([]domain.CustomSection, 0, len(guide.CustomSections))
	found := false
	for _, cs := range guide.CustomSections {
		if cs.Key == string(key) {
			found = true
			continue
		}
		remaining = append(remaining, cs)
	}
	if !found {
		return ErrSectionNotFound
	}
	if err := s.guides.UpdateCustomSections(ctx, guide.ID, remaining); err != nil {
		return fmt.Errorf("сохранение секций: %w", err)
	}
	return nil
}

// DeriveKey выводит машинный ключ секции из человекочитаемого названия:
// нижний регистр, пробелы и дефисы заменяются подчёркиванием, остальные
// символы вне [a-z0-9_] отбрасываются.
func DeriveKey(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r == ' ' || r == '-':
			b.WriteByte('_')
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		}
	}
	return b.String()
}

func uniqueKey(base string, catalog domain.SectionCatalog) string {
	if base == "" {
		base = "section"
	}
	key := base
	for counter := 2; catalog.Contains(domain.SectionKey(key)); counter++ {
		key = fmt.Sprintf("%s_%d", base, counter)
	}
	return key
}

func (s *Service) loadCatalog(ctx context.Context, podcastID, guideID int64) (domain.SectionCatalog, domain.EpisodeGuide, error) {
	guide, err := s.guides.GetGuide(ctx, podcastID, guideID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.SectionCatalog{}, domain.EpisodeGuide{}, ErrGuideNotFound
		}
		return domain.SectionCatalog{}, domain.EpisodeGuide{}, fmt.Errorf("получение выпуска: %w", err)
	}
	var template *domain.GuideTemplate
	if guide.TemplateID != nil {
		tpl, err := s.templates.GetTemplate(ctx, podcastID, *guide.TemplateID)
		if err == nil {
			template = &tpl
		} else if !errors.Is(err, domain.ErrNotFound) {
			return domain.SectionCatalog{}, domain.EpisodeGuide{}, fmt.Errorf("получение шаблона: %w", err)
		}
	}
	return domain.SectionCatalogFor(guide, template), guide, nil
}
