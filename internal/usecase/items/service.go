package items

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"creator-hub/internal/domain"
	"creator-hub/internal/infra/metrics"
)

var (
	// ErrGuideNotFound возвращается, если выпуск не существует или
	// не принадлежит подкасту.
	ErrGuideNotFound = errors.New("выпуск не найден")
	// ErrItemNotFound возвращается, если пункт не принадлежит выпуску.
	ErrItemNotFound = errors.New("пункт не найден")
	// ErrInvalidSection возвращается при ключе секции вне каталога выпуска.
	ErrInvalidSection = errors.New("секция не входит в каталог выпуска")
	// ErrInvalidPosition возвращается при отрицательной целевой позиции.
	ErrInvalidPosition = errors.New("некорректная позиция")
	// ErrTitleRequired возвращается при пустом заголовке пункта.
	ErrTitleRequired = errors.New("заголовок обязателен")
	// ErrNotRecording возвращается при попытке снять таймкод вне записи.
	ErrNotRecording = errors.New("выпуск не в состоянии записи")
	// ErrInvalidTimestamp возвращается при отрицательном таймкоде.
	ErrInvalidTimestamp = errors.New("некорректный таймкод")
)

// Service управляет пунктами сценария выпуска и их порядком.
type Service struct {
	guides    domain.GuideRepo
	templates domain.TemplateRepo
	items     domain.ItemRepo
}

// NewService создаёт сервис пунктов.
func NewService(guides domain.GuideRepo, templates domain.TemplateRepo, items domain.ItemRepo) *Service {
	return &Service{guides: guides, templates: templates, items: items}
}

// AddParams описывает создание пункта.
type AddParams struct {
	Section domain.SectionKey
	Title   string
	Links   []string
	Notes   string
}

// UpdateParams описывает частичное обновление пункта. Нулевые указатели
// означают «поле не меняется».
type UpdateParams struct {
	Title            *string
	Links            *[]string
	Notes            *string
	Section          *domain.SectionKey
	Discussed        *bool
	TimestampSeconds *int
}

// List возвращает пункты выпуска в порядке (секция, позиция).
func (s *Service) List(ctx context.Context, podcastID, guideID int64) ([]domain.EpisodeGuideItem, error) {
	if _, err := s.loadGuide(ctx, podcastID, guideID); err != nil {
		return nil, err
	}
	list, err := s.items.ListItems(ctx, guideID)
	if err != nil {
		return nil, fmt.Errorf("получение пунктов: %w", err)
	}
	return list, nil
}

// Add создаёт пункт в конце указанной секции.
func (s *Service) Add(ctx context.Context, podcastID, guideID int64, params AddParams) (domain.EpisodeGuideItem, error) {
	catalog, _, err := s.loadCatalog(ctx, podcastID, guideID)
	if err != nil {
		return domain.EpisodeGuideItem{}, err
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return domain.EpisodeGuideItem{}, ErrTitleRequired
	}
	if !catalog.Contains(params.Section) {
		return domain.EpisodeGuideItem{}, ErrInvalidSection
	}
	item := domain.EpisodeGuideItem{
		GuideID: guideID,
		Section: params.Section,
		Title:   title,
		Links:   cleanLinks(params.Links),
		Notes:   strings.TrimSpace(params.Notes),
	}
	created, err := s.items.CreateItem(ctx, item)
	if err != nil {
		return domain.EpisodeGuideItem{}, fmt.Errorf("создание пункта: %w", err)
	}
	return created, nil
}

// Update меняет поля пункта. Смена секции допустима только на ключ
// из каталога выпуска.
func (s *Service) Update(ctx context.Context, podcastID, guideID, itemID int64, params UpdateParams) (domain.EpisodeGuideItem, error) {
	catalog, _, err := s.loadCatalog(ctx, podcastID, guideID)
	if err != nil {
		return domain.EpisodeGuideItem{}, err
	}
	item, err := s.items.GetItem(ctx, guideID, itemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.EpisodeGuideItem{}, ErrItemNotFound
		}
		return domain.EpisodeGuideItem{}, fmt.Errorf("получение пункта: %w", err)
	}
	if params.Title != nil {
		title := strings.TrimSpace(*params.Title)
		if title == "" {
			return domain.EpisodeGuideItem{}, ErrTitleRequired
		}
		item.Title = title
	}
	if params.Links != nil {
		item.Links = cleanLinks(*params.Links)
	}
	if params.Notes != nil {
		item.Notes = strings.TrimSpace(*params.Notes)
	}
	if params.Section != nil && !catalog.Contains(*params.Section) {
		return domain.EpisodeGuideItem{}, ErrInvalidSection
	}
	if params.Discussed != nil {
		item.Discussed = *params.Discussed
	}
	if params.TimestampSeconds != nil {
		if *params.TimestampSeconds < 0 {
			return domain.EpisodeGuideItem{}, ErrInvalidTimestamp
		}
		ts := *params.TimestampSeconds
		item.TimestampSeconds = &ts
	}
	if err := s.items.UpdateItem(ctx, item); err != nil {
		return domain.EpisodeGuideItem{}, fmt.Errorf("обновление пункта: %w", err)
	}
	// Смена секции — это перенос в её конец, UpdateItem позиций не трогает.
	if params.Section != nil && *params.Section != item.Section {
		count, err := s.items.CountItemsInSection(ctx, guideID, *params.Section)
		if err != nil {
			return domain.EpisodeGuideItem{}, fmt.Errorf("подсчёт пунктов: %w", err)
		}
		moved, err := s.items.MoveItem(ctx, guideID, itemID, *params.Section, count)
		if err != nil {
			return domain.EpisodeGuideItem{}, fmt.Errorf("перенос пункта: %w", err)
		}
		return moved, nil
	}
	return item, nil
}

// Delete удаляет пункт. Позиции выше удалённой сдвигаются вниз,
// нумерация секции остаётся плотной.
func (s *Service) Delete(ctx context.Context, podcastID, guideID, itemID int64) error {
	if _, err := s.loadGuide(ctx, podcastID, guideID); err != nil {
		return err
	}
	if err := s.items.DeleteItem(ctx, guideID, itemID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrItemNotFound
		}
		return fmt.Errorf("удаление пункта: %w", err)
	}
	return nil
}

// Move переносит пункт в (targetSection, targetPosition). Вся проверка
// выполняется до первой мутации; сами сдвиги — одна транзакция в
// репозитории. Позиция за хвостом секции означает вставку в конец.
func (s *Service) Move(ctx context.Context, podcastID, guideID, itemID int64, targetSection domain.SectionKey, targetPosition int) (domain.EpisodeGuideItem, error) {
	catalog, _, err := s.loadCatalog(ctx, podcastID, guideID)
	if err != nil {
		return domain.EpisodeGuideItem{}, err
	}
	if !catalog.Contains(targetSection) {
		return domain.EpisodeGuideItem{}, ErrInvalidSection
	}
	if targetPosition < 0 {
		return domain.EpisodeGuideItem{}, ErrInvalidPosition
	}
	moved, err := s.items.MoveItem(ctx, guideID, itemID, targetSection, targetPosition)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.EpisodeGuideItem{}, ErrItemNotFound
		}
		return domain.EpisodeGuideItem{}, fmt.Errorf("перенос пункта: %w", err)
	}
	metrics.IncItemMove()
	return moved, nil
}

// CaptureTimestamp записывает прошедшие секунды на пункт и помечает его
// обсуждённым. Снятие таймкода допустимо только во время записи.
func (s *Service) CaptureTimestamp(ctx context.Context, podcastID, guideID, itemID int64, elapsedSeconds int) (domain.EpisodeGuideItem, error) {
	guide, err := s.loadGuide(ctx, podcastID, guideID)
	if err != nil {
		return domain.EpisodeGuideItem{}, err
	}
	if guide.Status != domain.GuideStatusRecording {
		return domain.EpisodeGuideItem{}, ErrNotRecording
	}
	if elapsedSeconds < 0 {
		return domain.EpisodeGuideItem{}, ErrInvalidTimestamp
	}
	item, err := s.items.SetItemTimestamp(ctx, guideID, itemID, elapsedSeconds)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.EpisodeGuideItem{}, ErrItemNotFound
		}
		return domain.EpisodeGuideItem{}, fmt.Errorf("запись таймкода: %w", err)
	}
	return item, nil
}

func (s *Service) loadGuide(ctx context.Context, podcastID, guideID int64) (domain.EpisodeGuide, error) {
	guide, err := s.guides.GetGuide(ctx, podcastID, guideID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.EpisodeGuide{}, ErrGuideNotFound
		}
		return domain.EpisodeGuide{}, fmt.Errorf("получение выпуска: %w", err)
	}
	return guide, nil
}

func (s *Service) loadCatalog(ctx context.Context, podcastID, guideID int64) (domain.SectionCatalog, domain.EpisodeGuide, error) {
	guide, err := s.loadGuide(ctx, podcastID, guideID)
	if err != nil {
		return domain.SectionCatalog{}, domain.EpisodeGuide{}, err
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

func cleanLinks(links []string) []string {
	var cleaned []string
	for _, link := range links {
		trimmed := strings.TrimSpace(link)
		if trimmed == "" {
			continue
		}
		cleaned = append(cleaned, trimmed)
	}
	return cleaned
}
