package domain

import "testing"

func TestSectionCatalogFor(t *testing.T) {
	template := &GuideTemplate{DefaultSections: []CustomSection{
		{Key: "sponsor", Name: "Sponsor"},
		{Key: "introduction", Name: "Перекрытие встроенной"},
	}}
	guide := EpisodeGuide{CustomSections: []CustomSection{
		{Key: "qna", Name: "Q&A", Color: "blue"},
		{Key: "sponsor", Name: "Дубликат шаблонной"},
	}}

	catalog := SectionCatalogFor(guide, template)

	keys := catalog.Keys()
	wantLen := len(BuiltinSections) + 2
	if len(keys) != wantLen {
		t.Fatalf("ожидали %d секций, получили %d", wantLen, len(keys))
	}
	if keys[0] != "introduction" || keys[len(keys)-2] != "sponsor" || keys[len(keys)-1] != "qna" {
		t.Fatalf("неверный порядок секций: %v", keys)
	}

	intro, ok := catalog.Lookup("introduction")
	if !ok || intro.Name != "Introduction" {
		t.Fatalf("встроенная секция не должна перекрываться шаблонной: %+v", intro)
	}
	sponsor, _ := catalog.Lookup("sponsor")
	if sponsor.Name != "Sponsor" {
		t.Fatalf("секция выпуска не должна перекрывать шаблонную: %+v", sponsor)
	}
	if sponsor.Color != "gray" {
		t.Fatalf("ожидали цвет по умолчанию gray, получили %s", sponsor.Color)
	}
	if !catalog.Contains("qna") {
		t.Fatalf("ожидали секцию qna в каталоге")
	}
	if catalog.Contains("missing") {
		t.Fatalf("не ожидали неизвестную секцию")
	}
}

func TestFormatSeconds(t *testing.T) {
	cases := map[int]string{
		0:    "0:00",
		5:    "0:05",
		65:   "1:05",
		125:  "2:05",
		3600: "1:00:00",
		3725: "1:02:05",
		-3:   "0:00",
	}
	for input, expected := range cases {
		if got := FormatSeconds(input); got != expected {
			t.Fatalf("FormatSeconds(%d): ожидали %s, получили %s", input, expected, got)
		}
	}
}

func TestFormattedDurationAndTimestamp(t *testing.T) {
	if got := (EpisodeGuide{}).FormattedDuration(); got != "" {
		t.Fatalf("ожидали пустую строку без длительности, получили %q", got)
	}
	dur := 125
	guide := EpisodeGuide{TotalDurationSeconds: &dur}
	if got := guide.FormattedDuration(); got != "2:05" {
		t.Fatalf("ожидали 2:05, получили %s", got)
	}
	ts := 3725
	item := EpisodeGuideItem{TimestampSeconds: &ts}
	if got := item.FormattedTimestamp(); got != "1:02:05" {
		t.Fatalf("ожидали 1:02:05, получили %s", got)
	}
}

func TestNewerMessageID(t *testing.T) {
	cases := []struct {
		a, b, want string
	}{
		{"", "100", "100"},
		{"100", "99", "100"},
		{"200", "100", "200"},
		{"1000000000000000000", "999999999999999999", "1000000000000000000"},
	}
	for _, c := range cases {
		if got := NewerMessageID(c.a, c.b); got != c.want {
			t.Fatalf("NewerMessageID(%q, %q): ожидали %s, получили %s", c.a, c.b, c.want, got)
		}
	}
}
