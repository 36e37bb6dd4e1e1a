package templates

import (
	"context"
	"errors"
	"testing"

	"creator-hub/internal/domain"
)

type fakeTemplateRepo struct {
	nextID  int64
	storage map[int64]domain.GuideTemplate
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{storage: map[int64]domain.GuideTemplate{}}
}

func (f *fakeTemplateRepo) CreateTemplate(_ context.Context, template domain.GuideTemplate) (domain.GuideTemplate, error) {
	f.nextID++
	template.ID = f.nextID
	f.storage[template.ID] = template
	return template, nil
}

func (f *fakeTemplateRepo) GetTemplate(_ context.Context, podcastID, id int64) (domain.GuideTemplate, error) {
	template, ok := f.storage[id]
	if !ok || template.PodcastID != podcastID {
		return domain.GuideTemplate{}, domain.ErrNotFound
	}
	return template, nil
}

func (f *fakeTemplateRepo) ListTemplates(_ context.Context, podcastID int64) ([]domain.GuideTemplate, error) {
	var list []domain.GuideTemplate
	for id := int64(1); id <= f.nextID; id++ {
		if template, ok := f.storage[id]; ok && template.PodcastID == podcastID {
			list = append(list, template)
		}
	}
	return list, nil
}

func (f *fakeTemplateRepo) UpdateTemplate(_ context.Context, template domain.GuideTemplate) error {
	if _, ok := f.storage[template.ID]; !ok {
		return domain.ErrNotFound
	}
	f.storage[template.ID] = template
	return nil
}

func (f *fakeTemplateRepo) DeleteTemplate(_ context.Context, podcastID, id int64) error {
	template, ok := f.storage[id]
	if !ok || template.PodcastID != podcastID {
		return domain.ErrNotFound
	}
	delete(f.storage, id)
	return nil
}

func (f *fakeTemplateRepo) SetDefaultTemplate(_ context.Context, podcastID, id int64) error {
	if _, ok := f.storage[id]; !ok {
		return domain.ErrNotFound
	}
	for key, template := range f.storage {
		if template.PodcastID != podcastID {
			continue
		}
		template.IsDefault = template.ID == id
		f.storage[key] = template
	}
	return nil
}

func TestCreateTrimsAndValidates(t *testing.T) {
	svc := NewService(newFakeTemplateRepo())

	if _, err := svc.Create(context.Background(), 1, Params{Name: "   "}); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("ожидали ErrNameRequired, получили %v", err)
	}

	template, err := svc.Create(context.Background(), 1, Params{Name: "  Еженедельный выпуск  ", DefaultPoll1: " опрос "})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if template.Name != "Еженедельный выпуск" || template.DefaultPoll1 != "опрос" {
		t.Fatalf("пробелы должны обрезаться: %+v", template)
	}
}

func TestSetDefaultIsExclusive(t *testing.T) {
	repo := newFakeTemplateRepo()
	svc := NewService(repo)

	first, err := svc.Create(context.Background(), 1, Params{Name: "Первый", IsDefault: true})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !first.IsDefault {
		t.Fatalf("первый шаблон должен стать шаблоном по умолчанию")
	}

	second, err := svc.Create(context.Background(), 1, Params{Name: "Второй", IsDefault: true})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !second.IsDefault {
		t.Fatalf("второй шаблон должен стать шаблоном по умолчанию")
	}

	def, err := svc.Default(context.Background(), 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if def.ID != second.ID {
		t.Fatalf("шаблон по умолчанию должен быть единственным, получили id=%d", def.ID)
	}
	if got := repo.storage[first.ID]; got.IsDefault {
		t.Fatalf("прежний шаблон по умолчанию должен потерять признак")
	}
}

func TestDefaultWithoutCandidates(t *testing.T) {
	svc := NewService(newFakeTemplateRepo())
	if _, err := svc.Default(context.Background(), 1); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("ожидали ErrTemplateNotFound, получили %v", err)
	}
}

func TestUpdateAndDeleteScopeToPodcast(t *testing.T) {
	repo := newFakeTemplateRepo()
	svc := NewService(repo)

	template, err := svc.Create(context.Background(), 1, Params{Name: "Шаблон"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if _, err := svc.Update(context.Background(), 2, template.ID, Params{Name: "Чужой"}); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("чужой подкаст не должен видеть шаблон, получили %v", err)
	}
	if err := svc.Delete(context.Background(), 2, template.ID); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("чужой подкаст не должен удалять шаблон, получили %v", err)
	}

	updated, err := svc.Update(context.Background(), 1, template.ID, Params{Name: "Новое имя", Description: "описание"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if updated.Name != "Новое имя" || updated.Description != "описание" {
		t.Fatalf("неожиданный результат изменения: %+v", updated)
	}

	if err := svc.Delete(context.Background(), 1, template.ID); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := svc.Get(context.Background(), 1, template.ID); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("после удаления ожидали ErrTemplateNotFound, получили %v", err)
	}
}
