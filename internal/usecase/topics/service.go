package topics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"creator-hub/internal/domain"
	"creator-hub/internal/infra/metrics"
)

var (
	// ErrGuideNotFound возвращается, если выпуск не существует.
	ErrGuideNotFound = errors.New("выпуск не найден")
	// ErrInvalidSection возвращается при целевой секции вне каталога выпуска.
	ErrInvalidSection = errors.New("секция не входит в каталог выпуска")
	// ErrSourceUnavailable возвращается, если источник тем не настроен.
	ErrSourceUnavailable = errors.New("источник тем не настроен")
)

const maxTopicTitleLen = 500

// Service переносит отмеченные реакцией сообщения сообщества в сценарий выпуска.
type Service struct {
	guides    domain.GuideRepo
	templates domain.TemplateRepo
	items     domain.ItemRepo
	syncs     domain.TopicSyncRepo
	source    domain.TopicSource
}

// NewService создаёт сервис синхронизации тем.
func NewService(guides domain.GuideRepo, templates domain.TemplateRepo, items domain.ItemRepo, syncs domain.TopicSyncRepo, source domain.TopicSource) *Service {
	return &Service{guides: guides, templates: templates, items: items, syncs: syncs, source: source}
}

// SyncResult описывает итог синхронизации.
type SyncResult struct {
	Added         int
	LastMessageID string
}

// Sync выполняет задачу синхронизации: выгружает новые отмеченные
// сообщения после последнего синхронизированного и добавляет их пунктами
// в конец целевой секции. Повторная доставка той же задачи безопасна —
// курсор по идентификатору сообщения не даёт добавить дубликаты.
func (s *Service) Sync(ctx context.Context, job domain.SyncJob) (SyncResult, error) {
	if s.source == nil {
		return SyncResult{}, ErrSourceUnavailable
	}
	guide, err := s.guides.GetGuide(ctx, job.PodcastID, job.GuideID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return SyncResult{}, ErrGuideNotFound
		}
		return SyncResult{}, fmt.Errorf("получение выпуска: %w", err)
	}

	catalog, err := s.catalogFor(ctx, guide)
	if err != nil {
		return SyncResult{}, err
	}
	section := job.Section
	if section == "" {
		section = "community_recap"
	}
	if !catalog.Contains(section) {
		return SyncResult{}, ErrInvalidSection
	}

	lastID, err := s.syncs.LastSyncedMessage(ctx, guide.ID, job.ChannelID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return SyncResult{}, fmt.Errorf("чтение курсора синхронизации: %w", err)
	}

	since := time.Now().UTC().Add(-7 * 24 * time.Hour)
	if guide.ScheduledDate != nil {
		since = guide.ScheduledDate.Add(-7 * 24 * time.Hour)
	}

	suggestions, err := s.source.FetchReacted(ctx, job.ChannelID, job.Emoji, lastID, since)
	if err != nil {
		return SyncResult{}, fmt.Errorf("выгрузка тем: %w", err)
	}
	if len(suggestions) == 0 {
		return SyncResult{LastMessageID: lastID}, nil
	}

	added := 0
	newest := lastID
	for _, suggestion := range suggestions {
		title := topicTitle(suggestion)
		if title == "" {
			continue
		}
		item := domain.EpisodeGuideItem{
			GuideID: guide.ID,
			Section: section,
			Title:   title,
			Notes:   noteFor(suggestion),
		}
		if suggestion.URL != "" {
			item.Links = []string{suggestion.URL}
		}
		if _, err := s.items.CreateItem(ctx, item); err != nil {
			return SyncResult{}, fmt.Errorf("создание пункта: %w", err)
		}
		added++
		newest = domain.NewerMessageID(newest, suggestion.MessageID)
	}

	if newest != lastID {
		if err := s.syncs.MarkSynced(ctx, guide.ID, job.ChannelID, newest); err != nil {
			return SyncResult{}, fmt.Errorf("сохранение курсора синхронизации: %w", err)
		}
	}
	metrics.IncTopicsSynced(added)
	return SyncResult{Added: added, LastMessageID: newest}, nil
}

func (s *Service) catalogFor(ctx context.Context, guide domain.EpisodeGuide) (domain.SectionCatalog, error) {
	var template *domain.GuideTemplate
	if guide.TemplateID != nil {
		tpl, err := s.templates.GetTemplate(ctx, guide.PodcastID, *guide.TemplateID)
		if err == nil {
			template = &tpl
		} else if !errors.Is(err, domain.ErrNotFound) {
			return domain.SectionCatalog{}, fmt.Errorf("получение шаблона: %w", err)
		}
	}
	return domain.SectionCatalogFor(guide, template), nil
}

func topicTitle(s domain.TopicSuggestion) string {
	title := strings.TrimSpace(s.Content)
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = strings.TrimSpace(title[:idx])
	}
	if len(title) > maxTopicTitleLen {
		title = title[:maxTopicTitleLen]
	}
	return title
}

func noteFor(s domain.TopicSuggestion) string {
	if s.Author == "" {
		return ""
	}
	return "Suggested by " + s.Author
}
