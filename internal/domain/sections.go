package domain

import "fmt"

// SectionKey идентифицирует секцию сценария внутри одного выпуска.
type SectionKey string

// Section описывает одну секцию каталога: ключ, подпись и родительскую группу.
type Section struct {
	Key    SectionKey
	Name   string
	Parent SectionKey
	Color  string
}

// CustomSection — пользовательская секция, хранимая в JSON-колонке выпуска
// или в списке секций по умолчанию шаблона.
type CustomSection struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`
	Color  string `json:"color,omitempty"`
}

// BuiltinSections — фиксированный список встроенных секций сценария.
// Порядок определяет порядок отображения.
var BuiltinSections = []Section{
	{Key: "introduction", Name: "Introduction"},
	{Key: "news_mice", Name: "Mice", Parent: "news"},
	{Key: "news_other", Name: "Other", Parent: "news"},
	{Key: "news_pads", Name: "Pads", Parent: "news"},
	{Key: "news_keyboards", Name: "Keyboards", Parent: "news"},
	{Key: "community_recap", Name: "Community Recap"},
	{Key: "personal_ramblings", Name: "Personal Ramblings"},
	{Key: "outro", Name: "Outro"},
}

// IsBuiltinSection сообщает, является ли ключ встроенной секцией.
func IsBuiltinSection(key SectionKey) bool {
	for _, s := range BuiltinSections {
		if s.Key == key {
			return true
		}
	}
	return false
}

// SectionCatalog — снимок всех действующих секций выпуска: встроенные,
// секции шаблона и пользовательские. Валидация мутаций опирается на него,
// а не на доверие клиентскому вводу.
type SectionCatalog struct {
	ordered []Section
	byKey   map[SectionKey]Section
}

// SectionCatalogFor собирает каталог секций выпуска. Встроенные секции идут
// первыми, затем секции шаблона, затем собственные секции выпуска.
// Дубликаты ключей не перекрывают уже добавленные секции.
func SectionCatalogFor(guide EpisodeGuide, template *GuideTemplate) SectionCatalog {
	catalog := SectionCatalog{byKey: make(map[SectionKey]Section)}
	for _, s := range BuiltinSections {
		catalog.add(s)
	}
	if template != nil {
		for _, cs := range template.DefaultSections {
			catalog.add(sectionFromCustom(cs))
		}
	}
	for _, cs := range guide.CustomSections {
		catalog.add(sectionFromCustom(cs))
	}
	return catalog
}

func sectionFromCustom(cs CustomSection) Section {
	color := cs.Color
	if color == "" {
		color = "gray"
	}
	return Section{Key: SectionKey(cs.Key), Name: cs.Name, Parent: SectionKey(cs.Parent), Color: color}
}

func (c *SectionCatalog) add(s Section) {
	if _, exists := c.byKey[s.Key]; exists {
		return
	}
	c.byKey[s.Key] = s
	c.ordered = append(c.ordered, s)
}

// Contains проверяет принадлежность ключа каталогу.
func (c SectionCatalog) Contains(key SectionKey) bool {
	_, ok := c.byKey[key]
	return ok
}

// Lookup возвращает секцию по ключу.
func (c SectionCatalog) Lookup(key SectionKey) (Section, bool) {
	s, ok := c.byKey[key]
	return s, ok
}

// All возвращает секции в порядке отображения.
func (c SectionCatalog) All() []Section {
	out := make([]Section, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Keys возвращает ключи секций в порядке отображения.
func (c SectionCatalog) Keys() []SectionKey {
	keys := make([]SectionKey, 0, len(c.ordered))
	for _, s := range c.ordered {
		keys = append(keys, s.Key)
	}
	return keys
}

// FormatSeconds переводит секунды в H:MM:SS, либо MM:SS для коротких значений.
func FormatSeconds(total int) string {
	if total < 0 {
		total = 0
	}
	hrs := total / 3600
	mins := (total % 3600) / 60
	secs := total % 60
	if hrs > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hrs, mins, secs)
	}
	return fmt.Sprintf("%d:%02d", mins, secs)
}
