package podcasts

import (
	"context"
	"errors"
	"testing"

	"creator-hub/internal/domain"
)

type fakePodcastRepo struct {
	nextID   int64
	podcasts map[int64]domain.Podcast
}

func newFakePodcastRepo() *fakePodcastRepo {
	return &fakePodcastRepo{podcasts: map[int64]domain.Podcast{}}
}

func (f *fakePodcastRepo) CreatePodcast(_ context.Context, p domain.Podcast) (domain.Podcast, error) {
	f.nextID++
	p.ID = f.nextID
	f.podcasts[p.ID] = p
	return p, nil
}

func (f *fakePodcastRepo) GetPodcast(_ context.Context, id int64) (domain.Podcast, error) {
	p, ok := f.podcasts[id]
	if !ok {
		return domain.Podcast{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePodcastRepo) GetPodcastBySlug(_ context.Context, slug string) (domain.Podcast, error) {
	for _, p := range f.podcasts {
		if p.Slug == slug {
			return p, nil
		}
	}
	return domain.Podcast{}, domain.ErrNotFound
}

func (f *fakePodcastRepo) ListPodcastsForUser(context.Context, int64) ([]domain.Podcast, error) {
	return nil, nil
}

func (f *fakePodcastRepo) UpdatePodcast(_ context.Context, p domain.Podcast) error {
	if _, ok := f.podcasts[p.ID]; !ok {
		return domain.ErrNotFound
	}
	f.podcasts[p.ID] = p
	return nil
}

func (f *fakePodcastRepo) DeletePodcast(_ context.Context, id int64) error {
	delete(f.podcasts, id)
	return nil
}

type memberKey struct {
	podcastID int64
	userID    int64
}

type fakeMemberRepo struct {
	members map[memberKey]domain.PodcastMember
}

func newFakeMemberRepo() *fakeMemberRepo {
	return &fakeMemberRepo{members: map[memberKey]domain.PodcastMember{}}
}

func (f *fakeMemberRepo) AddMember(_ context.Context, m domain.PodcastMember) (domain.PodcastMember, error) {
	f.members[memberKey{m.PodcastID, m.UserID}] = m
	return m, nil
}

func (f *fakeMemberRepo) GetMember(_ context.Context, podcastID, userID int64) (domain.PodcastMember, error) {
	m, ok := f.members[memberKey{podcastID, userID}]
	if !ok {
		return domain.PodcastMember{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeMemberRepo) ListMembers(_ context.Context, podcastID int64) ([]domain.PodcastMember, error) {
	var out []domain.PodcastMember
	for _, m := range f.members {
		if m.PodcastID == podcastID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMemberRepo) UpdateMemberRole(_ context.Context, podcastID, userID int64, role domain.MemberRole) error {
	key := memberKey{podcastID, userID}
	m, ok := f.members[key]
	if !ok {
		return domain.ErrNotFound
	}
	m.Role = role
	f.members[key] = m
	return nil
}

func (f *fakeMemberRepo) RemoveMember(_ context.Context, podcastID, userID int64) error {
	key := memberKey{podcastID, userID}
	if _, ok := f.members[key]; !ok {
		return domain.ErrNotFound
	}
	delete(f.members, key)
	return nil
}

func (f *fakeMemberRepo) CountAdmins(_ context.Context, podcastID int64) (int, error) {
	count := 0
	for _, m := range f.members {
		if m.PodcastID == podcastID && m.Role == domain.MemberRoleAdmin {
			count++
		}
	}
	return count, nil
}

func TestDeriveSlug(t *testing.T) {
	cases := map[string]string{
		"Keyboard Corner":    "keyboard-corner",
		"  My  Show  ":       "my-show",
		"Tech_Talk - Weekly": "tech-talk-weekly",
		"Подкаст":            "podcast",
		"###":                "podcast",
		"Ep. 101!":           "ep-101",
	}
	for input, expected := range cases {
		if got := DeriveSlug(input); got != expected {
			t.Fatalf("DeriveSlug(%q): ожидали %q, получили %q", input, expected, got)
		}
	}
}

func TestCreateMakesOwnerAdmin(t *testing.T) {
	members := newFakeMemberRepo()
	svc := NewService(newFakePodcastRepo(), members)

	podcast, err := svc.Create(context.Background(), CreateParams{Name: "Keyboard Corner", OwnerUserID: 7})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if podcast.Slug != "keyboard-corner" {
		t.Fatalf("неожиданный slug: %s", podcast.Slug)
	}
	if !podcast.IsActive || podcast.CreatedBy != 7 {
		t.Fatalf("неожиданный подкаст: %+v", podcast)
	}

	role, err := svc.Role(context.Background(), podcast.ID, 7)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if role != domain.MemberRoleAdmin {
		t.Fatalf("создатель должен стать администратором, получили %s", role)
	}
}

func TestCreateResolvesSlugCollision(t *testing.T) {
	svc := NewService(newFakePodcastRepo(), newFakeMemberRepo())

	first, _ := svc.Create(context.Background(), CreateParams{Name: "My Show", OwnerUserID: 1})
	second, err := svc.Create(context.Background(), CreateParams{Name: "My Show", OwnerUserID: 2})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if first.Slug != "my-show" || second.Slug != "my-show-2" {
		t.Fatalf("коллизия slug должна давать суффикс: %s, %s", first.Slug, second.Slug)
	}

	third, _ := svc.Create(context.Background(), CreateParams{Name: "My Show", OwnerUserID: 3})
	if third.Slug != "my-show-3" {
		t.Fatalf("ожидали my-show-3, получили %s", third.Slug)
	}
}

func TestUpdateKeepsSlug(t *testing.T) {
	svc := NewService(newFakePodcastRepo(), newFakeMemberRepo())
	created, _ := svc.Create(context.Background(), CreateParams{Name: "My Show", OwnerUserID: 1})

	name := "Совсем другое название"
	updated, err := svc.Update(context.Background(), created.ID, UpdateParams{Name: &name})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if updated.Slug != created.Slug {
		t.Fatalf("slug не должен меняться: %s -> %s", created.Slug, updated.Slug)
	}
	if updated.Name != name {
		t.Fatalf("название не обновилось: %s", updated.Name)
	}
}

func TestLastAdminProtection(t *testing.T) {
	svc := NewService(newFakePodcastRepo(), newFakeMemberRepo())
	created, _ := svc.Create(context.Background(), CreateParams{Name: "My Show", OwnerUserID: 1})

	if err := svc.RemoveMember(context.Background(), created.ID, 1); !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("ожидали ErrLastAdmin при удалении, получили %v", err)
	}
	if err := svc.ChangeRole(context.Background(), created.ID, 1, domain.MemberRoleContributor); !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("ожидали ErrLastAdmin при понижении, получили %v", err)
	}

	if _, err := svc.AddMember(context.Background(), created.ID, 2, domain.MemberRoleAdmin); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := svc.ChangeRole(context.Background(), created.ID, 1, domain.MemberRoleContributor); err != nil {
		t.Fatalf("при двух администраторах понижение допустимо: %v", err)
	}
	if err := svc.RemoveMember(context.Background(), created.ID, 2); !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("единственный оставшийся администратор снова защищён: %v", err)
	}
}

func TestAddMemberTwice(t *testing.T) {
	svc := NewService(newFakePodcastRepo(), newFakeMemberRepo())
	created, _ := svc.Create(context.Background(), CreateParams{Name: "My Show", OwnerUserID: 1})

	if _, err := svc.AddMember(context.Background(), created.ID, 2, domain.MemberRoleContributor); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := svc.AddMember(context.Background(), created.ID, 2, domain.MemberRoleAdmin); !errors.Is(err, ErrMemberExists) {
		t.Fatalf("ожидали ErrMemberExists, получили %v", err)
	}
}
