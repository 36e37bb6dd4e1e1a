package guides

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"creator-hub/internal/domain"
	"creator-hub/internal/infra/metrics"
)

var (
	// ErrGuideNotFound возвращается, если выпуск не существует или
	// не принадлежит подкасту.
	ErrGuideNotFound = errors.New("выпуск не найден")
	// ErrTemplateNotFound возвращается при ссылке на чужой или отсутствующий шаблон.
	ErrTemplateNotFound = errors.New("шаблон не найден")
	// ErrTitleRequired возвращается при пустом заголовке выпуска.
	ErrTitleRequired = errors.New("заголовок обязателен")
	// ErrUnknownAction возвращается при неизвестном действии записи.
	ErrUnknownAction = errors.New("неизвестное действие записи")
	// ErrVideoNotFound возвращается, если видео выпуска не найдено на хостинге.
	ErrVideoNotFound = errors.New("видео выпуска не найдено")
)

// RecordingAction — действие над таймером записи.
type RecordingAction string

const (
	ActionStart RecordingAction = "start"
	ActionStop  RecordingAction = "stop"
	ActionReset RecordingAction = "reset"
)

// Service управляет выпусками и состоянием их записи.
type Service struct {
	guides    domain.GuideRepo
	templates domain.TemplateRepo
	items     domain.ItemRepo
	videos    domain.VideoSource
	now       func() time.Time
}

// NewService создаёт сервис выпусков. videos может быть nil, тогда
// поиск опубликованного видео недоступен.
func NewService(guides domain.GuideRepo, templates domain.TemplateRepo, items domain.ItemRepo, videos domain.VideoSource) *Service {
	return &Service{guides: guides, templates: templates, items: items, videos: videos, now: func() time.Time { return time.Now().UTC() }}
}

// CreateParams описывает создание выпуска.
type CreateParams struct {
	Title         string
	EpisodeNumber *int
	ScheduledDate *time.Time
	Notes         string
	TemplateID    *int64
}

// Create создаёт выпуск в статусе draft. Если задан шаблон, из него
// копируются статический контент, секции по умолчанию и опросы.
// Поле previous_poll заполняется из new_poll предыдущего номера выпуска.
func (s *Service) Create(ctx context.Context, podcastID int64, params CreateParams) (domain.EpisodeGuide, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return domain.EpisodeGuide{}, ErrTitleRequired
	}

	guide := domain.EpisodeGuide{
		Title:         title,
		EpisodeNumber: params.EpisodeNumber,
		ScheduledDate: params.ScheduledDate,
		PodcastID:     podcastID,
		Notes:         strings.TrimSpace(params.Notes),
		Status:        domain.GuideStatusDraft,
	}

	if params.TemplateID != nil {
		template, err := s.templates.GetTemplate(ctx, podcastID, *params.TemplateID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.EpisodeGuide{}, ErrTemplateNotFound
			}
			return domain.EpisodeGuide{}, fmt.Errorf("получение шаблона: %w", err)
		}
		guide.TemplateID = &template.ID
		guide.IntroStaticContent = template.IntroStaticContent
		guide.OutroStaticContent = template.OutroStaticContent
		guide.CustomSections = template.DefaultSections
		if template.DefaultPoll1 != "" {
			guide.NewPoll = template.DefaultPoll1
		}
	}

	if params.EpisodeNumber != nil {
		prev, err := s.guides.FindGuideByEpisodeNumber(ctx, podcastID, *params.EpisodeNumber-1)
		if err == nil && prev.NewPoll != "" {
			guide.PreviousPoll = prev.NewPoll
			guide.PreviousPollLink = prev.NewPollLink
		} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return domain.EpisodeGuide{}, fmt.Errorf("поиск предыдущего выпуска: %w", err)
		}
	}

	created, err := s.guides.CreateGuide(ctx, guide)
	if err != nil {
		return domain.EpisodeGuide{}, fmt.Errorf("создание выпуска: %w", err)
	}
	metrics.IncGuideCreated(podcastID)
	return created, nil
}

// Get возвращает выпуск подкаста.
func (s *Service) Get(ctx context.Context, podcastID, guideID int64) (domain.EpisodeGuide, error) {
	return s.loadGuide(ctx, podcastID, guideID)
}

// List возвращает выпуски по фильтру вместе со счётчиками статусов.
func (s *Service) List(ctx context.Context, podcastID int64, filter domain.GuideFilter) ([]domain.EpisodeGuide, domain.GuideStats, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		filter.Status = ""
	}
	list, err := s.guides.ListGuides(ctx, podcastID, filter)
	if err != nil {
		return nil, domain.GuideStats{}, fmt.Errorf("получение выпусков: %w", err)
	}
	stats, err := s.guides.GuideStats(ctx, podcastID)
	if err != nil {
		return nil, domain.GuideStats{}, fmt.Errorf("подсчёт выпусков: %w", err)
	}
	return list, stats, nil
}

// MetadataParams описывает частичное обновление метаданных выпуска.
type MetadataParams struct {
	Title            *string
	EpisodeNumber    *int
	ClearEpisodeNum  bool
	ScheduledDate    *time.Time
	Notes            *string
	PreviousPoll     *string
	PreviousPollLink *string
	NewPoll          *string
	NewPollLink      *string
}

// UpdateMetadata меняет метаданные выпуска. При смене номера выпуска
// пустое поле previous_poll дозаполняется из предыдущего номера.
func (s *Service) UpdateMetadata(ctx context.Context, podcastID, guideID int64, params MetadataParams) (domain.EpisodeGuide, error) {
	guide, err := s.loadGuide(ctx, podcastID, guideID)
	if err != nil {
		return domain.EpisodeGuide{}, err
	}
	if params.Title != nil {
		title := strings.TrimSpace(*params.Title)
		if title == "" {
			return domain.EpisodeGuide{}, ErrTitleRequired
		}
		guide.Title = title
	}
	if params.ClearEpisodeNum {
		guide.EpisodeNumber = nil
	} else if params.EpisodeNumber != nil {
		changed := guide.EpisodeNumber == nil || *guide.EpisodeNumber != *params.EpisodeNumber
		num := *params.EpisodeNumber
		guide.EpisodeNumber = &num
		if changed && guide.PreviousPoll == "" {
			prev, err := s.guides.FindGuideByEpisodeNumber(ctx, podcastID, num-1)
			if err == nil && prev.NewPoll != "" {
				guide.PreviousPoll = prev.NewPoll
				guide.PreviousPollLink = prev.NewPollLink
			} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return domain.EpisodeGuide{}, fmt.Errorf("поиск предыдущего выпуска: %w", err)
			}
		}
	}
	if params.ScheduledDate != nil {
		guide.ScheduledDate = params.ScheduledDate
	}
	if params.Notes != nil {
		guide.Notes = strings.TrimSpace(*params.Notes)
	}
	if params.PreviousPoll != nil {
		guide.PreviousPoll = strings.TrimSpace(*params.PreviousPoll)
	}
	if params.PreviousPollLink != nil {
		guide.PreviousPollLink = strings.TrimSpace(*params.PreviousPollLink)
	}
	if params.NewPoll != nil {
		guide.NewPoll = strings.TrimSpace(*params.NewPoll)
	}
	if params.NewPollLink != nil {
		guide.NewPollLink = strings.TrimSpace(*params.NewPollLink)
	}
	if err := s.guides.UpdateGuide(ctx, guide); err != nil {
		return domain.EpisodeGuide{}, fmt.Errorf("обновление выпуска: %w", err)
	}
	return guide, nil
}

// UpdateStaticContent задаёт интро/аутро выпуска, перекрывающие шаблон.
func (s *Service) UpdateStaticContent(ctx context.Context, podcastID, guideID int64, intro, outro []string) (domain.EpisodeGuide, error) {
	guide, err := s.loadGuide(ctx, podcastID, guideID)
	if err != nil {
		return domain.EpisodeGuide{}, err
	}
	guide.IntroStaticContent = cleanLines(intro)
	guide.OutroStaticContent = cleanLines(outro)
	if err := s.guides.UpdateStaticContent(ctx, guide.ID, guide.IntroStaticContent, guide.OutroStaticContent); err != nil {
		return domain.EpisodeGuide{}, fmt.Errorf("обновление статического контента: %w", err)
	}
	return guide, nil
}

// Delete удаляет выпуск вместе с пунктами.
func (s *Service) Delete(ctx context.Context, podcastID, guideID int64) error {
	if err := s.guides.DeleteGuide(ctx, podcastID, guideID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrGuideNotFound
		}
		return fmt.Errorf("удаление выпуска: %w", err)
	}
	return nil
}

// Copy создаёт новый черновик из существующего выпуска: пункты
// копируются с сохранением секций и позиций, таймкоды и флаги
// обсуждения сбрасываются, номер выпуска увеличивается на один.
func (s *Service) Copy(ctx context.Context, podcastID, sourceID int64) (domain.EpisodeGuide, error) {
	source, err := s.loadGuide(ctx, podcastID, sourceID)
	if err != nil {
		return domain.EpisodeGuide{}, err
	}
	sourceItems, err := s.items.ListItems(ctx, source.ID)
	if err != nil {
		return domain.EpisodeGuide{}, fmt.Errorf("получение пунктов: %w", err)
	}

	clone := domain.EpisodeGuide{
		Title:              "Copy of " + source.Title,
		PodcastID:          podcastID,
		TemplateID:         source.TemplateID,
		Status:             domain.GuideStatusDraft,
		IntroStaticContent: source.IntroStaticContent,
		OutroStaticContent: source.OutroStaticContent,
		CustomSections:     source.CustomSections,
	}
	if source.EpisodeNumber != nil {
		next := *source.EpisodeNumber + 1
		clone.EpisodeNumber = &next
	}

	copies := make([]domain.EpisodeGuideItem, 0, len(sourceItems))
	for _, item := range sourceItems {
		copies = append(copies, domain.EpisodeGuideItem{
			Section:  item.Section,
			Title:    item.Title,
			Links:    item.Links,
			Notes:    item.Notes,
			Position: item.Position,
		})
	}

	created, err := s.guides.CloneGuide(ctx, clone, copies)
	if err != nil {
		return domain.EpisodeGuide{}, fmt.Errorf("копирование выпуска: %w", err)
	}
	return created, nil
}

// ToggleRecording выполняет действие таймера записи.
//
// start: draft|completed -> recording, фиксирует время старта и очищает
// прежние время окончания и длительность. stop: recording -> completed,
// длительность всегда вычисляется по серверным часам от старта до стопа.
// reset: возвращает черновик и очищает таймкоды и флаги всех пунктов.
func (s *Service) ToggleRecording(ctx context.Context, podcastID, guideID int64, action RecordingAction) (domain.EpisodeGuide, error) {
	guide, err := s.loadGuide(ctx, podcastID, guideID)
	if err != nil {
		return domain.EpisodeGuide{}, err
	}

	switch action {
	case ActionStart:
		now := s.now()
		guide.Status = domain.GuideStatusRecording
		guide.RecordingStartedAt = &now
		guide.RecordingEndedAt = nil
		guide.TotalDurationSeconds = nil
	case ActionStop:
		now := s.now()
		guide.Status = domain.GuideStatusCompleted
		guide.RecordingEndedAt = &now
		if guide.RecordingStartedAt != nil {
			elapsed := int(now.Sub(*guide.RecordingStartedAt).Seconds())
			if elapsed < 0 {
				elapsed = 0
			}
			guide.TotalDurationSeconds = &elapsed
		}
	case ActionReset:
		if err := s.guides.ResetRecording(ctx, guide.ID); err != nil {
			return domain.EpisodeGuide{}, fmt.Errorf("сброс записи: %w", err)
		}
		metrics.IncRecordingAction(string(action))
		return s.loadGuide(ctx, podcastID, guideID)
	default:
		return domain.EpisodeGuide{}, ErrUnknownAction
	}

	if err := s.guides.UpdateRecordingState(ctx, guide); err != nil {
		return domain.EpisodeGuide{}, fmt.Errorf("обновление состояния записи: %w", err)
	}
	metrics.IncRecordingAction(string(action))
	return guide, nil
}

// Reopen возвращает завершённый выпуск в черновик, сохраняя все
// снятые таймкоды и длительность.
func (s *Service) Reopen(ctx context.Context, podcastID, guideID int64) (domain.EpisodeGuide, error) {
	guide, err := s.loadGuide(ctx, podcastID, guideID)
	if err != nil {
		return domain.EpisodeGuide{}, err
	}
	guide.Status = domain.GuideStatusDraft
	if err := s.guides.UpdateRecordingState(ctx, guide); err != nil {
		return domain.EpisodeGuide{}, fmt.Errorf("обновление состояния записи: %w", err)
	}
	return guide, nil
}

// Chapters строит список глав для описания видео: строки
// «таймкод заголовок» по обсуждённым пунктам в порядке таймкодов.
func (s *Service) Chapters(ctx context.Context, podcastID, guideID int64) ([]string, error) {
	guide, err := s.loadGuide(ctx, podcastID, guideID)
	if err != nil {
		return nil, err
	}
	list, err := s.items.ListItems(ctx, guide.ID)
	if err != nil {
		return nil, fmt.Errorf("получение пунктов: %w", err)
	}
	var stamped []domain.EpisodeGuideItem
	for _, item := range list {
		if item.TimestampSeconds != nil {
			stamped = append(stamped, item)
		}
	}
	sort.SliceStable(stamped, func(i, j int) bool {
		return *stamped[i].TimestampSeconds < *stamped[j].TimestampSeconds
	})
	chapters := make([]string, 0, len(stamped))
	for _, item := range stamped {
		chapters = append(chapters, fmt.Sprintf("%s %s", item.FormattedTimestamp(), item.Title))
	}
	return chapters, nil
}

// FindPublishedVideo ищет опубликованное видео выпуска на хостинге по
// заголовку и номеру. Доступно только для завершённых выпусков.
func (s *Service) FindPublishedVideo(ctx context.Context, podcastID, guideID int64) (domain.Video, error) {
	if s.videos == nil {
		return domain.Video{}, ErrVideoNotFound
	}
	guide, err := s.loadGuide(ctx, podcastID, guideID)
	if err != nil {
		return domain.Video{}, err
	}
	if guide.Status != domain.GuideStatusCompleted {
		return domain.Video{}, ErrVideoNotFound
	}
	query := guide.Title
	if guide.EpisodeNumber != nil {
		query = fmt.Sprintf("%s #%d", guide.Title, *guide.EpisodeNumber)
	}
	var after time.Time
	if guide.RecordingEndedAt != nil {
		after = *guide.RecordingEndedAt
	}
	video, err := s.videos.FindEpisodeVideo(ctx, query, after)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Video{}, ErrVideoNotFound
		}
		return domain.Video{}, fmt.Errorf("поиск видео: %w", err)
	}
	return video, nil
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

func cleanLines(lines []string) []string {
	var cleaned []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		cleaned = append(cleaned, trimmed)
	}
	return cleaned
}
