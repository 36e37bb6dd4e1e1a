package domain

import "testing"

func TestParseMemberRole(t *testing.T) {
	cases := map[string]MemberRole{
		"admin":       MemberRoleAdmin,
		" Admin ":     MemberRoleAdmin,
		"contributor": MemberRoleContributor,
		"":            MemberRoleContributor,
		"owner":       MemberRoleContributor,
	}
	for raw, expected := range cases {
		if got := ParseMemberRole(raw); got != expected {
			t.Fatalf("ожидали %s для %q, получили %s", expected, raw, got)
		}
	}
}

func TestMemberRolePermissions(t *testing.T) {
	if !MemberRoleAdmin.CanManagePodcast() {
		t.Fatal("admin должен управлять подкастом")
	}
	if MemberRoleContributor.CanManagePodcast() {
		t.Fatal("contributor не должен управлять подкастом")
	}
	if !MemberRoleContributor.CanEditEpisodes() {
		t.Fatal("contributor должен редактировать выпуски")
	}
}
