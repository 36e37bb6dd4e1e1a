package domain

import "strings"

// MemberRole описывает роль участника подкаста.
type MemberRole string

const (
	// MemberRoleAdmin управляет настройками подкаста и составом участников.
	MemberRoleAdmin MemberRole = "admin"
	// MemberRoleContributor создаёт и редактирует выпуски и шаблоны.
	MemberRoleContributor MemberRole = "contributor"
)

// ParseMemberRole нормализует строку роли. Неизвестные значения
// приводятся к contributor.
func ParseMemberRole(raw string) MemberRole {
	switch MemberRole(strings.ToLower(strings.TrimSpace(raw))) {
	case MemberRoleAdmin:
		return MemberRoleAdmin
	default:
		return MemberRoleContributor
	}
}

// CanManagePodcast сообщает, может ли роль менять настройки и участников.
func (r MemberRole) CanManagePodcast() bool {
	return r == MemberRoleAdmin
}

// CanEditEpisodes сообщает, может ли роль работать с выпусками и шаблонами.
func (r MemberRole) CanEditEpisodes() bool {
	return r == MemberRoleAdmin || r == MemberRoleContributor
}
