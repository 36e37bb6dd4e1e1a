package sections

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
	guide, ok := f.guides[id]
	if !ok || guide.PodcastID != podcastID {
		return domain.EpisodeGuide{}, domain.ErrNotFound
	}
	return guide, nil
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

func (f *fakeGuideRepo) UpdateGuide(_ context.Context, g domain.EpisodeGuide) error {
	f.guides[g.ID] = g
	return nil
}

func (f *fakeGuideRepo) DeleteGuide(context.Context, int64, int64) error { return nil }

func (f *fakeGuideRepo) CloneGuide(_ context.Context, g domain.EpisodeGuide, _ []domain.EpisodeGuideItem) (domain.EpisodeGuide, error) {
	return g, nil
}

func (f *fakeGuideRepo) UpdateRecordingState(context.Context, domain.EpisodeGuide) error { return nil }
func (f *fakeGuideRepo) ResetRecording(context.Context, int64) error                     { return nil }

func (f *fakeGuideRepo) UpdateCustomSections(_ context.Context, guideID int64, sections []domain.CustomSection) error {
	guide := f.guides[guideID]
	guide.CustomSections = sections
	f.guides[guideID] = guide
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
	counts map[domain.SectionKey]int
}

func (f *fakeItemRepo) ListItems(context.Context, int64) ([]domain.EpisodeGuideItem, error) {
	return nil, nil
}

func (f *fakeItemRepo) GetItem(context.Context, int64, int64) (domain.EpisodeGuideItem, error) {
	return domain.EpisodeGuideItem{}, domain.ErrNotFound
}

func (f *fakeItemRepo) CreateItem(_ context.Context, item domain.EpisodeGuideItem) (domain.EpisodeGuideItem, error) {
	return item, nil
}

func (f *fakeItemRepo) UpdateItem(context.Context, domain.EpisodeGuideItem) error { return nil }
func (f *fakeItemRepo) DeleteItem(context.Context, int64, int64) error            { return nil }

func (f *fakeItemRepo) MoveItem(context.Context, int64, int64, domain.SectionKey, int) (domain.EpisodeGuideItem, error) {
	return domain.EpisodeGuideItem{}, domain.ErrNotFound
}

func (f *fakeItemRepo) CountItemsInSection(_ context.Context, _ int64, section domain.SectionKey) (int, error) {
	return f.counts[section], nil
}

func (f *fakeItemRepo) SetItemTimestamp(context.Context, int64, int64, int) (domain.EpisodeGuideItem, error) {
	return domain.EpisodeGuideItem{}, domain.ErrNotFound
}

func newTestService() (*Service, *fakeGuideRepo, *fakeItemRepo) {
	guides := &fakeGuideRepo{guides: map[int64]domain.EpisodeGuide{
		1: {ID: 1, PodcastID: 10, Title: "Выпуск"},
	}}
	items := &fakeItemRepo{counts: map[domain.SectionKey]int{}}
	return NewService(guides, fakeTemplateRepo{}, items), guides, items
}

func TestDeriveKey(t *testing.T) {
	cases := map[string]string{
		"Listener Questions": "listener_questions",
		"  Hot-Takes  ":      "hot_takes",
		"Q&A!":               "qa",
		"UPPER lower":        "upper_lower",
		"already_snake_case": "already_snake_case",
		"Top 5":              "top_5",
		"":                   "",
	}
	for input, expected := range cases {
		if got := DeriveKey(input); got != expected {
			t.Fatalf("DeriveKey(%q): ожидали %q, получили %q", input, expected, got)
		}
	}
}

func TestAddDerivesUniqueKey(t *testing.T) {
	svc, guides, _ := newTestService()

	first, err := svc.Add(context.Background(), 10, 1, AddParams{Name: "Listener Questions"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if first.Key != "listener_questions" {
		t.Fatalf("ожидали ключ listener_questions, получили %s", first.Key)
	}
	if first.Color != "gray" {
		t.Fatalf("ожидали цвет по умолчанию gray, получили %s", first.Color)
	}

	second, err := svc.Add(context.Background(), 10, 1, AddParams{Name: "Listener Questions", Color: "red"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if second.Key != "listener_questions_2" {
		t.Fatalf("ожидали ключ listener_questions_2, получили %s", second.Key)
	}
	if second.Color != "red" {
		t.Fatalf("ожидали цвет red, получили %s", second.Color)
	}

	if got := len(guides.guides[1].CustomSections); got != 2 {
		t.Fatalf("ожидали 2 сохранённые секции, получили %d", got)
	}
}

func TestAddCollisionWithBuiltin(t *testing.T) {
	svc, _, _ := newTestService()

	section, err := svc.Add(context.Background(), 10, 1, AddParams{Name: "Outro"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if section.Key != "outro_2" {
		t.Fatalf("коллизия со встроенной секцией должна давать суффикс _2, получили %s", section.Key)
	}
}

func TestAddValidation(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.Add(context.Background(), 10, 1, AddParams{Name: "   "}); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("ожидали ErrNameRequired, получили %v", err)
	}
	if _, err := svc.Add(context.Background(), 99, 1, AddParams{Name: "x"}); !errors.Is(err, ErrGuideNotFound) {
		t.Fatalf("ожидали ErrGuideNotFound, получили %v", err)
	}
}

func TestDeleteSection(t *testing.T) {
	svc, guides, items := newTestService()
	guide := guides.guides[1]
	guide.CustomSections = []domain.CustomSection{{Key: "qna", Name: "Q&A"}, {Key: "bonus", Name: "Bonus"}}
	guides.guides[1] = guide

	if err := svc.Delete(context.Background(), 10, 1, "outro"); !errors.Is(err, ErrBuiltinSection) {
		t.Fatalf("ожидали ErrBuiltinSection, получили %v", err)
	}
	if err := svc.Delete(context.Background(), 10, 1, "ghost"); !errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("ожидали ErrSectionNotFound, получили %v", err)
	}

	items.counts["qna"] = 3
	if err := svc.Delete(context.Background(), 10, 1, "qna"); !errors.Is(err, ErrSectionNotEmpty) {
		t.Fatalf("ожидали ErrSectionNotEmpty, получили %v", err)
	}

	if err := svc.Delete(context.Background(), 10, 1, "bonus"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	remaining := guides.guides[1].CustomSections
	if len(remaining) != 1 || remaining[0].Key != "qna" {
		t.Fatalf("ожидали только секцию qna, получили %+v", remaining)
	}
}
