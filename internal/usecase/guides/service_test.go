package guides

import (
	"context"
	"errors"
	"testing"
	"time"

	"creator-hub/internal/domain"
)

type fakeGuideRepo struct {
	nextID int64
	guides map[int64]domain.EpisodeGuide
	resets []int64
}

func newFakeGuideRepo() *fakeGuideRepo {
	return &fakeGuideRepo{guides: map[int64]domain.EpisodeGuide{}}
}

func (f *fakeGuideRepo) CreateGuide(_ context.Context, g domain.EpisodeGuide) (domain.EpisodeGuide, error) {
	f.nextID++
	g.ID = f.nextID
	f.guides[g.ID] = g
	return g, nil
}

func (f *fakeGuideRepo) GetGuide(_ context.Context, podcastID, id int64) (domain.EpisodeGuide, error) {
	g, ok := f.guides[id]
	if !ok || g.PodcastID != podcastID {
		return domain.EpisodeGuide{}, domain.ErrNotFound
	}
	return g, nil
}

func (f *fakeGuideRepo) FindGuideByEpisodeNumber(_ context.Context, podcastID int64, number int) (domain.EpisodeGuide, error) {
	for _, g := range f.guides {
		if g.PodcastID == podcastID && g.EpisodeNumber != nil && *g.EpisodeNumber == number {
			return g, nil
		}
	}
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

func (f *fakeGuideRepo) UpdateGuide(_ context.Context, g domain.EpisodeGuide) error {
	if _, ok := f.guides[g.ID]; !ok {
		return domain.ErrNotFound
	}
	f.guides[g.ID] = g
	return nil
}

func (f *fakeGuideRepo) DeleteGuide(_ context.Context, podcastID, id int64) error {
	g, ok := f.guides[id]
	if !ok || g.PodcastID != podcastID {
		return domain.ErrNotFound
	}
	delete(f.guides, id)
	return nil
}

func (f *fakeGuideRepo) CloneGuide(_ context.Context, g domain.EpisodeGuide, items []domain.EpisodeGuideItem) (domain.EpisodeGuide, error) {
	created, _ := f.CreateGuide(context.Background(), g)
	return created, nil
}

func (f *fakeGuideRepo) UpdateRecordingState(_ context.Context, g domain.EpisodeGuide) error {
	return f.UpdateGuide(context.Background(), g)
}

func (f *fakeGuideRepo) ResetRecording(_ context.Context, guideID int64) error {
	g, ok := f.guides[guideID]
	if !ok {
		return domain.ErrNotFound
	}
	g.Status = domain.GuideStatusDraft
	g.RecordingStartedAt = nil
	g.RecordingEndedAt = nil
	g.TotalDurationSeconds = nil
	f.guides[guideID] = g
	f.resets = append(f.resets, guideID)
	return nil
}

func (f *fakeGuideRepo) UpdateCustomSections(context.Context, int64, []domain.CustomSection) error {
	return nil
}

func (f *fakeGuideRepo) UpdateStaticContent(_ context.Context, guideID int64, intro, outro []string) error {
	g, ok := f.guides[guideID]
	if !ok {
		return domain.ErrNotFound
	}
	g.IntroStaticContent = intro
	g.OutroStaticContent = outro
	f.guides[guideID] = g
	return nil
}

type fakeTemplateRepo struct {
	templates map[int64]domain.GuideTemplate
}

func (f *fakeTemplateRepo) CreateTemplate(_ context.Context, t domain.GuideTemplate) (domain.GuideTemplate, error) {
	return t, nil
}

func (f *fakeTemplateRepo) GetTemplate(_ context.Context, podcastID, id int64) (domain.GuideTemplate, error) {
	tpl, ok := f.templates[id]
	if !ok || tpl.PodcastID != podcastID {
		return domain.GuideTemplate{}, domain.ErrNotFound
	}
	return tpl, nil
}

func (f *fakeTemplateRepo) ListTemplates(context.Context, int64) ([]domain.GuideTemplate, error) {
	return nil, nil
}

func (f *fakeTemplateRepo) UpdateTemplate(context.Context, domain.GuideTemplate) error { return nil }
func (f *fakeTemplateRepo) DeleteTemplate(context.Context, int64, int64) error         { return nil }
func (f *fakeTemplateRepo) SetDefaultTemplate(context.Context, int64, int64) error     { return nil }

type fakeItemRepo struct {
	items []domain.EpisodeGuideItem
}

func (f *fakeItemRepo) ListItems(_ context.Context, guideID int64) ([]domain.EpisodeGuideItem, error) {
	var out []domain.EpisodeGuideItem
	for _, item := range f.items {
		if item.GuideID == guideID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeItemRepo) GetItem(context.Context, int64, int64) (domain.EpisodeGuideItem, error) {
	return domain.EpisodeGuideItem{}, domain.ErrNotFound
}

func (f *fakeItemRepo) CreateItem(_ context.Context, item domain.EpisodeGuideItem) (domain.EpisodeGuideItem, error) {
	f.items = append(f.items, item)
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

type fakeVideoSource struct {
	query string
	after time.Time
	video domain.Video
	err   error
}

func (f *fakeVideoSource) FindEpisodeVideo(_ context.Context, query string, publishedAfter time.Time) (domain.Video, error) {
	f.query = query
	f.after = publishedAfter
	if f.err != nil {
		return domain.Video{}, f.err
	}
	return f.video, nil
}

func newTestService() (*Service, *fakeGuideRepo, *fakeTemplateRepo, *fakeItemRepo) {
	guides := newFakeGuideRepo()
	templates := &fakeTemplateRepo{templates: map[int64]domain.GuideTemplate{}}
	items := &fakeItemRepo{}
	return NewService(guides, templates, items, nil), guides, templates, items
}

func TestCreateFromTemplate(t *testing.T) {
	svc, _, templates, _ := newTestService()
	templates.templates[5] = domain.GuideTemplate{
		ID:                 5,
		PodcastID:          10,
		IntroStaticContent: []string{"привет"},
		OutroStaticContent: []string{"пока"},
		DefaultSections:    []domain.CustomSection{{Key: "sponsor", Name: "Sponsor"}},
		DefaultPoll1:       "лучшая мышь?",
	}

	tplID := int64(5)
	guide, err := svc.Create(context.Background(), 10, CreateParams{Title: "Выпуск", TemplateID: &tplID})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if guide.Status != domain.GuideStatusDraft {
		t.Fatalf("новый выпуск должен быть черновиком, получили %s", guide.Status)
	}
	if len(guide.IntroStaticContent) != 1 || guide.IntroStaticContent[0] != "привет" {
		t.Fatalf("интро не скопировано из шаблона: %+v", guide.IntroStaticContent)
	}
	if len(guide.CustomSections) != 1 || guide.CustomSections[0].Key != "sponsor" {
		t.Fatalf("секции не скопированы из шаблона: %+v", guide.CustomSections)
	}
	if guide.NewPoll != "лучшая мышь?" {
		t.Fatalf("опрос не скопирован из шаблона: %q", guide.NewPoll)
	}

	missing := int64(99)
	if _, err := svc.Create(context.Background(), 10, CreateParams{Title: "x", TemplateID: &missing}); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("ожидали ErrTemplateNotFound, получили %v", err)
	}
}

func TestCreateFillsPreviousPoll(t *testing.T) {
	svc, guides, _, _ := newTestService()
	prevNum := 41
	guides.CreateGuide(context.Background(), domain.EpisodeGuide{
		PodcastID:     10,
		Title:         "Прошлый",
		EpisodeNumber: &prevNum,
		NewPoll:       "свитчи или мембрана?",
		NewPollLink:   "https://example.com/poll",
	})

	num := 42
	guide, err := svc.Create(context.Background(), 10, CreateParams{Title: "Новый", EpisodeNumber: &num})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if guide.PreviousPoll != "свитчи или мембрана?" {
		t.Fatalf("previous_poll должен заполниться из предыдущего выпуска, получили %q", guide.PreviousPoll)
	}
	if guide.PreviousPollLink != "https://example.com/poll" {
		t.Fatalf("ссылка опроса не перенесена: %q", guide.PreviousPollLink)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	if _, err := svc.Create(context.Background(), 10, CreateParams{Title: "  "}); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("ожидали ErrTitleRequired, получили %v", err)
	}
}

func TestRecordingLifecycle(t *testing.T) {
	svc, guides, _, _ := newTestService()
	created, _ := guides.CreateGuide(context.Background(), domain.EpisodeGuide{PodcastID: 10, Title: "Выпуск", Status: domain.GuideStatusDraft})

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	clock := base
	svc.now = func() time.Time { return clock }

	guide, err := svc.ToggleRecording(context.Background(), 10, created.ID, ActionStart)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if guide.Status != domain.GuideStatusRecording {
		t.Fatalf("ожидали статус recording, получили %s", guide.Status)
	}
	if guide.RecordingStartedAt == nil || !guide.RecordingStartedAt.Equal(base) {
		t.Fatalf("время старта не зафиксировано: %+v", guide.RecordingStartedAt)
	}

	clock = base.Add(125 * time.Second)
	guide, err = svc.ToggleRecording(context.Background(), 10, created.ID, ActionStop)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if guide.Status != domain.GuideStatusCompleted {
		t.Fatalf("ожидали статус completed, получили %s", guide.Status)
	}
	if guide.TotalDurationSeconds == nil || *guide.TotalDurationSeconds != 125 {
		t.Fatalf("длительность должна считаться по серверным часам: %+v", guide.TotalDurationSeconds)
	}
	if guide.FormattedDuration() != "2:05" {
		t.Fatalf("ожидали 2:05, получили %s", guide.FormattedDuration())
	}

	guide, err = svc.Reopen(context.Background(), 10, created.ID)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if guide.Status != domain.GuideStatusDraft {
		t.Fatalf("ожидали возврат в черновик, получили %s", guide.Status)
	}
	if guide.TotalDurationSeconds == nil || *guide.TotalDurationSeconds != 125 {
		t.Fatalf("переоткрытие должно сохранять длительность: %+v", guide.TotalDurationSeconds)
	}

	guide, err = svc.ToggleRecording(context.Background(), 10, created.ID, ActionReset)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if guide.Status != domain.GuideStatusDraft || guide.TotalDurationSeconds != nil || guide.RecordingStartedAt != nil {
		t.Fatalf("сброс должен очистить состояние записи: %+v", guide)
	}
	if len(guides.resets) != 1 || guides.resets[0] != created.ID {
		t.Fatalf("сброс должен пройти через ResetRecording: %v", guides.resets)
	}

	if _, err := svc.ToggleRecording(context.Background(), 10, created.ID, RecordingAction("pause")); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("ожидали ErrUnknownAction, получили %v", err)
	}
}

func TestRestartClearsPreviousStop(t *testing.T) {
	svc, guides, _, _ := newTestService()
	created, _ := guides.CreateGuide(context.Background(), domain.EpisodeGuide{PodcastID: 10, Title: "Выпуск", Status: domain.GuideStatusDraft})

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	clock := base
	svc.now = func() time.Time { return clock }

	svc.ToggleRecording(context.Background(), 10, created.ID, ActionStart)
	clock = base.Add(time.Minute)
	svc.ToggleRecording(context.Background(), 10, created.ID, ActionStop)

	clock = base.Add(time.Hour)
	guide, err := svc.ToggleRecording(context.Background(), 10, created.ID, ActionStart)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if guide.RecordingEndedAt != nil || guide.TotalDurationSeconds != nil {
		t.Fatalf("повторный старт должен очистить прежний стоп: %+v", guide)
	}
	if guide.RecordingStartedAt == nil || !guide.RecordingStartedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("время старта должно обновиться: %+v", guide.RecordingStartedAt)
	}
}

func TestCopyGuide(t *testing.T) {
	svc, guides, _, items := newTestService()
	num := 7
	ts := 90
	source, _ := guides.CreateGuide(context.Background(), domain.EpisodeGuide{
		PodcastID:      10,
		Title:          "Исходный",
		EpisodeNumber:  &num,
		Status:         domain.GuideStatusCompleted,
		CustomSections: []domain.CustomSection{{Key: "qna", Name: "Q&A"}},
	})
	items.items = []domain.EpisodeGuideItem{
		{ID: 1, GuideID: source.ID, Section: "news_mice", Title: "a", Position: 0, TimestampSeconds: &ts, Discussed: true},
		{ID: 2, GuideID: source.ID, Section: "news_mice", Title: "b", Position: 1},
	}

	clone, err := svc.Copy(context.Background(), 10, source.ID)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if clone.Title != "Copy of Исходный" {
		t.Fatalf("неожиданный заголовок копии: %q", clone.Title)
	}
	if clone.EpisodeNumber == nil || *clone.EpisodeNumber != 8 {
		t.Fatalf("номер копии должен быть 8: %+v", clone.EpisodeNumber)
	}
	if clone.Status != domain.GuideStatusDraft {
		t.Fatalf("копия должна быть черновиком, получили %s", clone.Status)
	}
	if len(clone.CustomSections) != 1 {
		t.Fatalf("секции должны копироваться: %+v", clone.CustomSections)
	}
}

func TestChapters(t *testing.T) {
	svc, guides, _, items := newTestService()
	created, _ := guides.CreateGuide(context.Background(), domain.EpisodeGuide{PodcastID: 10, Title: "Выпуск"})
	ts1, ts2 := 3725, 65
	items.items = []domain.EpisodeGuideItem{
		{ID: 1, GuideID: created.ID, Section: "news_mice", Title: "поздний", TimestampSeconds: &ts1},
		{ID: 2, GuideID: created.ID, Section: "outro", Title: "ранний", TimestampSeconds: &ts2},
		{ID: 3, GuideID: created.ID, Section: "outro", Title: "без таймкода"},
	}

	chapters, err := svc.Chapters(context.Background(), 10, created.ID)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("ожидали 2 главы, получили %d", len(chapters))
	}
	if chapters[0] != "1:05 ранний" || chapters[1] != "1:02:05 поздний" {
		t.Fatalf("главы должны идти по возрастанию таймкода: %v", chapters)
	}
}

func TestFindPublishedVideo(t *testing.T) {
	guides := newFakeGuideRepo()
	templates := &fakeTemplateRepo{templates: map[int64]domain.GuideTemplate{}}
	source := &fakeVideoSource{video: domain.Video{ID: "abc", URL: "https://www.youtube.com/watch?v=abc"}}
	svc := NewService(guides, templates, &fakeItemRepo{}, source)

	num := 42
	ended := time.Date(2026, 8, 29, 20, 0, 0, 0, time.UTC)
	created, _ := guides.CreateGuide(context.Background(), domain.EpisodeGuide{
		PodcastID:        10,
		Title:            "Выпуск",
		EpisodeNumber:    &num,
		Status:           domain.GuideStatusDraft,
		RecordingEndedAt: &ended,
	})

	if _, err := svc.FindPublishedVideo(context.Background(), 10, created.ID); !errors.Is(err, ErrVideoNotFound) {
		t.Fatalf("для незавершённого выпуска ожидали ErrVideoNotFound, получили %v", err)
	}

	guide := guides.guides[created.ID]
	guide.Status = domain.GuideStatusCompleted
	guides.guides[created.ID] = guide

	video, err := svc.FindPublishedVideo(context.Background(), 10, created.ID)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if video.ID != "abc" {
		t.Fatalf("неожиданное видео: %+v", video)
	}
	if source.query != "Выпуск #42" {
		t.Fatalf("запрос должен содержать номер выпуска: %q", source.query)
	}
	if !source.after.Equal(ended) {
		t.Fatalf("поиск должен ограничиваться временем окончания записи: %v", source.after)
	}
}
