package topics

import (
	"context"
	"errors"
	"testing"
	"time"

	"creator-hub/internal/domain"
)

type fakeGuideRepo struct {
	guides map[int64]domain.EpisodeGuide
}

func (f *fakeGuideRepo) CreateGuide(_ context.Context, g domain.EpisodeGuide) (domain.EpisodeGuide, error) {
	return g, nil
}

func (f *fakeGuideRepo) GetGuide(_ context.Context, podcastID, id int64) (domain.EpisodeGuide, error) {
	g, ok := f.guides[id]
	if !ok || g.PodcastID != podcastID {
		return domain.EpisodeGuide{}, domain.ErrNotFound
	}
	return g, nil
}

func (f *fakeGuideRepo) FindGuideByEpisodeNumber(context.Context, int64, int) (domain.EpisodeGuide, error) {
	return domain.EpisodeGuide{}, domain.ErrNotFound
}

func (f *fakeGuideRepo) ListGuides(context.Context, int64, domain.GuideFilter) ([]domain.EpisodeGuide, error) {
	return nil, nil
}

func (f *fakeGuideRepo) GuideStats(context.Context, int64) (domain.GuideStats, error) {
	return domain.GuideStats{}, nil
}

func (f *fakeGuideRepo) ListScheduledGuides(context.Context, time.Time, time.Time) ([]domain.EpisodeGuide, error) {
	return nil, nil
}

func (f *fakeGuideRepo) UpdateGuide(context.Context, domain.EpisodeGuide) error { return nil }
func (f *fakeGuideRepo) DeleteGuide(context.Context, int64, int64) error        { return nil }

func (f *fakeGuideRepo) CloneGuide(_ context.Context, g domain.EpisodeGuide, _ []domain.EpisodeGuideItem) (domain.EpisodeGuide, error) {
	return g, nil
}

func (f *fakeGuideRepo) UpdateRecordingState(context.Context, domain.EpisodeGuide) error { return nil }
func (f *fakeGuideRepo) ResetRecording(context.Context, int64) error                     { return nil }
func (f *fakeGuideRepo) UpdateCustomSections(context.Context, int64, []domain.CustomSection) error {
	return nil
}
func (f *fakeGuideRepo) UpdateStaticContent(context.Context, int64, []string, []string) error {
	return nil
}

type fakeTemplateRepo struct{}

func (fakeTemplateRepo) CreateTemplate(_ context.Context, t domain.GuideTemplate) (domain.GuideTemplate, error) {
	return t, nil
}

func (fakeTemplateRepo) GetTemplate(context.Context, int64, int64) (domain.GuideTemplate, error) {
	return domain.GuideTemplate{}, domain.ErrNotFound
}

func (fakeTemplateRepo) ListTemplates(context.Context, int64) ([]domain.GuideTemplate, error) {
	return nil, nil
}

func (fakeTemplateRepo) UpdateTemplate(context.Context, domain.GuideTemplate) error { return nil }
func (fakeTemplateRepo) DeleteTemplate(context.Context, int64, int64) error         { return nil }
func (fakeTemplateRepo) SetDefaultTemplate(context.Context, int64, int64) error     { return nil }

type fakeItemRepo struct {
	created []domain.EpisodeGuideItem
}

func (f *fakeItemRepo) ListItems(context.Context, int64) ([]domain.EpisodeGuideItem, error) {
	return nil, nil
}

func (f *fakeItemRepo) GetItem(context.Context, int64, int64) (domain.EpisodeGuideItem, error) {
	return domain.EpisodeGuideItem{}, domain.ErrNotFound
}

func (f *fakeItemRepo) CreateItem(_ context.Context, item domain.EpisodeGuideItem) (domain.EpisodeGuideItem, error) {
	item.ID = int64(len(f.created) + 1)
	item.Position = len(f.created)
	f.created = append(f.created, item)
	return item, nil
}

func (f *fakeItemRepo) UpdateItem(context.Context, domain.EpisodeGuideItem) error { return nil }
func (f *fakeItemRepo) DeleteItem(context.Context, int64, int64) error            { return nil }

func (f *fakeItemRepo) MoveItem(context.Context, int64, int64, domain.SectionKey, int) (domain.EpisodeGuideItem, error) {
	return domain.EpisodeGuideItem{}, domain.ErrNotFound
}

func (f *fakeItemRepo) CountItemsInSection(context.Context, int64, domain.SectionKey) (int, error) {
	return 0, nil
}

func (f *fakeItemRepo) SetItemTimestamp(context.Context, int64, int64, int) (domain.EpisodeGuideItem, error) {
	return domain.EpisodeGuideItem{}, domain.ErrNotFound
}

type fakeSyncRepo struct {
	cursors map[string]string
}

func (f *fakeSyncRepo) LastSyncedMessage(_ context.Context, guideID int64, channelID string) (string, error) {
	cursor, ok := f.cursors[channelID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return cursor, nil
}

func (f *fakeSyncRepo) MarkSynced(_ context.Context, _ int64, channelID, lastMessageID string) error {
	f.cursors[channelID] = lastMessageID
	return nil
}

type fakeSource struct {
	after       string
	suggestions []domain.TopicSuggestion
}

func (f *fakeSource) FetchReacted(_ context.Context, _, _ string, afterMessageID string, _ time.Time) ([]domain.TopicSuggestion, error) {
	f.after = afterMessageID
	var out []domain.TopicSuggestion
	for _, s := range f.suggestions {
		if afterMessageID == "" || domain.NewerMessageID(s.MessageID, afterMessageID) != afterMessageID {
			out = append(out, s)
		}
	}
	return out, nil
}

func newTestService(source domain.TopicSource) (*Service, *fakeItemRepo, *fakeSyncRepo) {
	guides := &fakeGuideRepo{guides: map[int64]domain.EpisodeGuide{
		1: {ID: 1, PodcastID: 10, Title: "Выпуск"},
	}}
	items := &fakeItemRepo{}
	syncs := &fakeSyncRepo{cursors: map[string]string{}}
	return NewService(guides, fakeTemplateRepo{}, items, syncs, source), items, syncs
}

func TestSyncAddsSuggestions(t *testing.T) {
	source := &fakeSource{suggestions: []domain.TopicSuggestion{
		{MessageID: "100", Author: "alice", Content: "Новая мышь\nподробности ниже", URL: "https://discord.com/channels/1/2/100"},
		{MessageID: "200", Author: "bob", Content: "Сравнение свитчей"},
	}}
	svc, items, syncs := newTestService(source)

	result, err := svc.Sync(context.Background(), domain.SyncJob{ID: "job-1", PodcastID: 10, GuideID: 1, ChannelID: "chan"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.Added != 2 {
		t.Fatalf("ожидали 2 добавленных пункта, получили %d", result.Added)
	}
	if result.LastMessageID != "200" {
		t.Fatalf("курсор должен указывать на новейшее сообщение: %s", result.LastMessageID)
	}
	if syncs.cursors["chan"] != "200" {
		t.Fatalf("курсор не сохранён: %v", syncs.cursors)
	}

	first := items.created[0]
	if first.Section != "community_recap" {
		t.Fatalf("секция по умолчанию — community_recap, получили %s", first.Section)
	}
	if first.Title != "Новая мышь" {
		t.Fatalf("заголовок — первая строка сообщения, получили %q", first.Title)
	}
	if first.Notes != "Suggested by alice" {
		t.Fatalf("неожиданные заметки: %q", first.Notes)
	}
	if len(first.Links) != 1 || first.Links[0] != "https://discord.com/channels/1/2/100" {
		t.Fatalf("ссылка на сообщение не сохранена: %v", first.Links)
	}
}

func TestSyncRedeliveryAddsNoDuplicates(t *testing.T) {
	source := &fakeSource{suggestions: []domain.TopicSuggestion{
		{MessageID: "100", Author: "alice", Content: "Тема"},
	}}
	svc, items, _ := newTestService(source)

	job := domain.SyncJob{ID: "job-1", PodcastID: 10, GuideID: 1, ChannelID: "chan"}
	if _, err := svc.Sync(context.Background(), job); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	result, err := svc.Sync(context.Background(), job)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.Added != 0 {
		t.Fatalf("повторная доставка не должна плодить дубликаты, добавлено %d", result.Added)
	}
	if len(items.created) != 1 {
		t.Fatalf("ожидали один пункт, получили %d", len(items.created))
	}
	if source.after != "100" {
		t.Fatalf("повторная выгрузка должна идти после курсора, получили %q", source.after)
	}
}

func TestSyncValidation(t *testing.T) {
	svc, _, _ := newTestService(&fakeSource{})

	if _, err := svc.Sync(context.Background(), domain.SyncJob{PodcastID: 10, GuideID: 99, ChannelID: "chan"}); !errors.Is(err, ErrGuideNotFound) {
		t.Fatalf("ожидали ErrGuideNotFound, получили %v", err)
	}
	if _, err := svc.Sync(context.Background(), domain.SyncJob{PodcastID: 10, GuideID: 1, ChannelID: "chan", Section: "ghost"}); !errors.Is(err, ErrInvalidSection) {
		t.Fatalf("ожидали ErrInvalidSection, получили %v", err)
	}

	noSource, _, _ := newTestService(nil)
	if _, err := noSource.Sync(context.Background(), domain.SyncJob{PodcastID: 10, GuideID: 1}); !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("ожидали ErrSourceUnavailable, получили %v", err)
	}
}

func TestSyncSkipsEmptyMessages(t *testing.T) {
	source := &fakeSource{suggestions: []domain.TopicSuggestion{
		{MessageID: "100", Author: "alice", Content: "   \n \t "},
		{MessageID: "200", Author: "bob", Content: "Нормальная тема"},
	}}
	svc, items, _ := newTestService(source)

	result, err := svc.Sync(context.Background(), domain.SyncJob{ID: "job-1", PodcastID: 10, GuideID: 1, ChannelID: "chan"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.Added != 1 || len(items.created) != 1 {
		t.Fatalf("пустое сообщение пропускается, добавлено %d", result.Added)
	}
	if result.LastMessageID != "200" {
		t.Fatalf("курсор должен дойти до новейшего сообщения: %s", result.LastMessageID)
	}
}
