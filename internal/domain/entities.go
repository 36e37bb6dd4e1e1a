package domain

import "time"

// GuideStatus описывает состояние записи выпуска.
type GuideStatus string

const (
	GuideStatusDraft     GuideStatus = "draft"
	GuideStatusRecording GuideStatus = "recording"
	GuideStatusCompleted GuideStatus = "completed"
)

// Valid проверяет, что значение статуса известно системе.
func (s GuideStatus) Valid() bool {
	switch s {
	case GuideStatusDraft, GuideStatusRecording, GuideStatusCompleted:
		return true
	}
	return false
}

// Podcast описывает подкаст, владеющий выпусками и шаблонами.
type Podcast struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	ArtworkURL  string    `json:"artwork_url,omitempty"`
	WebsiteURL  string    `json:"website_url,omitempty"`
	RSSFeedURL  string    `json:"rss_feed_url,omitempty"`
	CreatedBy   int64     `json:"created_by"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PodcastMember хранит участника подкаста и его роль.
type PodcastMember struct {
	ID        int64      `json:"id"`
	PodcastID int64      `json:"podcast_id"`
	UserID    int64      `json:"user_id"`
	Role      MemberRole `json:"role"`
	AddedBy   *int64     `json:"added_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// GuideTemplate описывает переиспользуемый шаблон сценария выпуска.
type GuideTemplate struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	Description        string          `json:"description,omitempty"`
	PodcastID          int64           `json:"podcast_id"`
	IntroStaticContent []string        `json:"intro_content,omitempty"`
	OutroStaticContent []string        `json:"outro_content,omitempty"`
	DefaultSections    []CustomSection `json:"default_sections,omitempty"`
	DefaultPoll1       string          `json:"default_poll1,omitempty"`
	DefaultPoll2       string          `json:"default_poll2,omitempty"`
	CreatedBy          *int64          `json:"created_by,omitempty"`
	IsDefault          bool            `json:"is_default"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// EpisodeGuide описывает сценарий выпуска с таймкодами живой записи.
type EpisodeGuide struct {
	ID                   int64           `json:"id"`
	Title                string          `json:"title"`
	EpisodeNumber        *int            `json:"episode_number,omitempty"`
	ScheduledDate        *time.Time      `json:"scheduled_date,omitempty"`
	PodcastID            int64           `json:"podcast_id"`
	TemplateID           *int64          `json:"template_id,omitempty"`
	Status               GuideStatus     `json:"status"`
	RecordingStartedAt   *time.Time      `json:"recording_started_at,omitempty"`
	RecordingEndedAt     *time.Time      `json:"recording_ended_at,omitempty"`
	TotalDurationSeconds *int            `json:"total_duration_seconds,omitempty"`
	Notes                string          `json:"notes,omitempty"`
	PreviousPoll         string          `json:"previous_poll,omitempty"`
	PreviousPollLink     string          `json:"previous_poll_link,omitempty"`
	NewPoll              string          `json:"new_poll,omitempty"`
	NewPollLink          string          `json:"new_poll_link,omitempty"`
	IntroStaticContent   []string        `json:"intro_content,omitempty"`
	OutroStaticContent   []string        `json:"outro_content,omitempty"`
	CustomSections       []CustomSection `json:"custom_sections,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// FormattedDuration возвращает длительность записи как H:MM:SS или MM:SS.
// Пустая строка означает, что запись ещё не завершалась.
func (g EpisodeGuide) FormattedDuration() string {
	if g.TotalDurationSeconds == nil {
		return ""
	}
	return FormatSeconds(*g.TotalDurationSeconds)
}

// EpisodeGuideItem описывает один пункт обсуждения внутри секции.
type EpisodeGuideItem struct {
	ID               int64      `json:"id"`
	GuideID          int64      `json:"guide_id"`
	Section          SectionKey `json:"section"`
	Title            string     `json:"title"`
	Links            []string   `json:"links,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	Position         int        `json:"position"`
	TimestampSeconds *int       `json:"timestamp_seconds,omitempty"`
	Discussed        bool       `json:"discussed"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// FormattedTimestamp возвращает таймкод пункта как H:MM:SS или MM:SS.
func (i EpisodeGuideItem) FormattedTimestamp() string {
	if i.TimestampSeconds == nil {
		return ""
	}
	return FormatSeconds(*i.TimestampSeconds)
}

// CustomOption расширяет встроенный список значений произвольным вариантом.
type CustomOption struct {
	ID         int64     `json:"id"`
	OptionType string    `json:"option_type"`
	Value      string    `json:"value"`
	Label      string    `json:"label"`
	CreatedAt  time.Time `json:"created_at"`
}

// OptionChoice — пара значение/подпись для выпадающих списков.
type OptionChoice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}
