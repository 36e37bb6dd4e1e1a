package domain

import (
	"context"
	"time"
)

// GuideFilter задаёт параметры выборки выпусков.
type GuideFilter struct {
	Status GuideStatus
	Search string
	Limit  int
	Offset int
}

// GuideStats — счётчики выпусков по статусам для списка.
type GuideStats struct {
	Total     int
	Drafts    int
	Recording int
	Completed int
}

// PodcastRepo управляет подкастами.
type PodcastRepo interface {
	CreatePodcast(ctx context.Context, podcast Podcast) (Podcast, error)
	GetPodcast(ctx context.Context, id int64) (Podcast, error)
	GetPodcastBySlug(ctx context.Context, slug string) (Podcast, error)
	ListPodcastsForUser(ctx context.Context, userID int64) ([]Podcast, error)
	UpdatePodcast(ctx context.Context, podcast Podcast) error
	DeletePodcast(ctx context.Context, id int64) error
}

// MemberRepo управляет участниками подкастов.
type MemberRepo interface {
	AddMember(ctx context.Context, member PodcastMember) (PodcastMember, error)
	GetMember(ctx context.Context, podcastID, userID int64) (PodcastMember, error)
	ListMembers(ctx context.Context, podcastID int64) ([]PodcastMember, error)
	UpdateMemberRole(ctx context.Context, podcastID, userID int64, role MemberRole) error
	RemoveMember(ctx context.Context, podcastID, userID int64) error
	CountAdmins(ctx context.Context, podcastID int64) (int, error)
}

// TemplateRepo управляет шаблонами сценариев.
type TemplateRepo interface {
	CreateTemplate(ctx context.Context, template GuideTemplate) (GuideTemplate, error)
	GetTemplate(ctx context.Context, podcastID, id int64) (GuideTemplate, error)
	ListTemplates(ctx context.Context, podcastID int64) ([]GuideTemplate, error)
	UpdateTemplate(ctx context.Context, template GuideTemplate) error
	DeleteTemplate(ctx context.Context, podcastID, id int64) error
	// SetDefaultTemplate делает шаблон единственным шаблоном по умолчанию
	// своего подкаста.
	SetDefaultTemplate(ctx context.Context, podcastID, id int64) error
}

// GuideRepo управляет выпусками.
type GuideRepo interface {
	CreateGuide(ctx context.Context, guide EpisodeGuide) (EpisodeGuide, error)
	GetGuide(ctx context.Context, podcastID, id int64) (EpisodeGuide, error)
	// FindGuideByEpisodeNumber возвращает выпуск с данным номером,
	// либо ErrNotFound если такого нет.
	FindGuideByEpisodeNumber(ctx context.Context, podcastID int64, number int) (EpisodeGuide, error)
	ListGuides(ctx context.Context, podcastID int64, filter GuideFilter) ([]EpisodeGuide, error)
	GuideStats(ctx context.Context, podcastID int64) (GuideStats, error)
	// ListScheduledGuides возвращает выпуски с датой записи в пределах
	// [from, to), используется планировщиком синхронизации тем.
	ListScheduledGuides(ctx context.Context, from, to time.Time) ([]EpisodeGuide, error)
	UpdateGuide(ctx context.Context, guide EpisodeGuide) error
	DeleteGuide(ctx context.Context, podcastID, id int64) error
	// CloneGuide создаёт выпуск вместе с копиями пунктов одной транзакцией.
	CloneGuide(ctx context.Context, guide EpisodeGuide, items []EpisodeGuideItem) (EpisodeGuide, error)
	UpdateRecordingState(ctx context.Context, guide EpisodeGuide) error
	// ResetRecording возвращает выпуск в черновик и одновременно очищает
	// таймкоды и флаги обсуждения всех его пунктов.
	ResetRecording(ctx context.Context, guideID int64) error
	UpdateCustomSections(ctx context.Context, guideID int64, sections []CustomSection) error
	UpdateStaticContent(ctx context.Context, guideID int64, intro, outro []string) error
}

// ItemRepo управляет пунктами выпусков. Все операции, меняющие позиции,
// выполняются одной транзакцией и оставляют нумерацию плотной.
type ItemRepo interface {
	ListItems(ctx context.Context, guideID int64) ([]EpisodeGuideItem, error)
	GetItem(ctx context.Context, guideID, itemID int64) (EpisodeGuideItem, error)
	// CreateItem вставляет пункт в конец его секции (position = max+1).
	CreateItem(ctx context.Context, item EpisodeGuideItem) (EpisodeGuideItem, error)
	UpdateItem(ctx context.Context, item EpisodeGuideItem) error
	// DeleteItem удаляет пункт и сдвигает вниз все позиции выше удалённой.
	DeleteItem(ctx context.Context, guideID, itemID int64) error
	// MoveItem переносит пункт в (targetSection, targetPosition), сдвигая
	// диапазоны в исходной и целевой секциях декларативными UPDATE.
	MoveItem(ctx context.Context, guideID, itemID int64, targetSection SectionKey, targetPosition int) (EpisodeGuideItem, error)
	CountItemsInSection(ctx context.Context, guideID int64, section SectionKey) (int, error)
	SetItemTimestamp(ctx context.Context, guideID, itemID int64, seconds int) (EpisodeGuideItem, error)
}

// OptionRepo управляет пользовательскими вариантами выбора.
type OptionRepo interface {
	ListCustomOptions(ctx context.Context, optionType string) ([]CustomOption, error)
	ListAllCustomOptions(ctx context.Context) ([]CustomOption, error)
	GetCustomOption(ctx context.Context, optionType, value string) (CustomOption, error)
	AddCustomOption(ctx context.Context, option CustomOption) (CustomOption, error)
	RemoveCustomOption(ctx context.Context, id int64) error
}

// TopicSuggestion — сообщение сообщества, предложенное как тема выпуска.
type TopicSuggestion struct {
	MessageID string
	Author    string
	Content   string
	URL       string
	PostedAt  time.Time
}

// NewerMessageID возвращает больший из двух идентификаторов сообщений.
// Идентификаторы — десятичные snowflake, поэтому сравнение сначала по
// длине, затем лексикографическое.
func NewerMessageID(a, b string) string {
	if len(a) != len(b) {
		if len(a) > len(b) {
			return a
		}
		return b
	}
	if a > b {
		return a
	}
	return b
}

// TopicSource выгружает отмеченные реакцией сообщения из внешнего канала.
type TopicSource interface {
	FetchReacted(ctx context.Context, channelID, emoji string, afterMessageID string, since time.Time) ([]TopicSuggestion, error)
}

// TopicSyncRepo хранит состояние синхронизации тем по каналу.
type TopicSyncRepo interface {
	LastSyncedMessage(ctx context.Context, guideID int64, channelID string) (string, error)
	MarkSynced(ctx context.Context, guideID int64, channelID, lastMessageID string) error
}

// Video описывает найденное видео выпуска.
type Video struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

// VideoSource ищет опубликованное видео выпуска на хостинге.
type VideoSource interface {
	FindEpisodeVideo(ctx context.Context, query string, publishedAfter time.Time) (Video, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
