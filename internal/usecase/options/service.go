package options

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"creator-hub/internal/domain"
)

var (
	// ErrUnknownType возвращается для типа опции, не известного системе.
	ErrUnknownType = errors.New("неизвестный тип опции")
	// ErrValueExists возвращается при добавлении уже существующего значения.
	ErrValueExists = errors.New("значение уже существует")
	// ErrValueRequired возвращается при пустом значении или подписи.
	ErrValueRequired = errors.New("значение и подпись обязательны")
)

// BuiltinChoices — встроенные варианты выбора по типам опций.
// Пользовательские опции дополняют эти списки, не перекрывая их.
var BuiltinChoices = map[string][]domain.OptionChoice{
	"inventory_category": {
		{Value: "mouse", Label: "Mouse"},
		{Value: "keyboard", Label: "Keyboard"},
		{Value: "mousepad", Label: "Mousepad"},
		{Value: "iem", Label: "IEM"},
		{Value: "other", Label: "Other"},
	},
	"inventory_status": {
		{Value: "in_queue", Label: "In Queue"},
		{Value: "reviewing", Label: "Reviewing"},
		{Value: "reviewed", Label: "Reviewed"},
		{Value: "keeping", Label: "Keeping"},
		{Value: "listed", Label: "Listed"},
		{Value: "sold", Label: "Sold"},
	},
	"company_category": {
		{Value: "mice", Label: "Mice"},
		{Value: "keyboards", Label: "Keyboards"},
		{Value: "mousepads", Label: "Mousepads"},
		{Value: "iems", Label: "IEMs"},
		{Value: "other", Label: "Other"},
	},
	"collab_type": {
		{Value: "guest_on_their_channel", Label: "Guest on Their Channel"},
		{Value: "guest_on_mousecast", Label: "Guest on MouseCast"},
		{Value: "cross_promo", Label: "Cross Promo"},
		{Value: "collab_video", Label: "Collab Video"},
	},
	"deal_type": {
		{Value: "paid_review", Label: "Paid Review"},
		{Value: "podcast_ad", Label: "Podcast Ad"},
		{Value: "sponsored_segment", Label: "Sponsored Segment"},
		{Value: "other", Label: "Other"},
	},
	"contact_role": {
		{Value: "reviewer", Label: "Reviewer"},
		{Value: "company_rep", Label: "Company Rep"},
		{Value: "podcast_guest", Label: "Podcast Guest"},
		{Value: "other", Label: "Other"},
	},
}

// TypeLabels — подписи типов опций для интерфейса.
var TypeLabels = map[string]string{
	"inventory_category": "Inventory Category",
	"inventory_status":   "Inventory Status",
	"company_category":   "Company Category",
	"collab_type":        "Collaboration Type",
	"deal_type":          "Deal Type",
	"contact_role":       "Contact Role",
}

// Service отдаёт объединённые списки выбора и управляет пользовательскими опциями.
type Service struct {
	repo domain.OptionRepo
}

// NewService создаёт сервис опций.
func NewService(repo domain.OptionRepo) *Service {
	return &Service{repo: repo}
}

// Choices возвращает встроенные варианты плюс пользовательские,
// отсортированные по подписи.
func (s *Service) Choices(ctx context.Context, optionType string) ([]domain.OptionChoice, error) {
	builtin, ok := BuiltinChoices[optionType]
	if !ok {
		return nil, ErrUnknownType
	}
	custom, err := s.repo.ListCustomOptions(ctx, optionType)
	if err != nil {
		return nil, fmt.Errorf("получение опций: %w", err)
	}
	choices := make([]domain.OptionChoice, 0, len(builtin)+len(custom))
	choices = append(choices, builtin...)
	for _, opt := range custom {
		choices = append(choices, domain.OptionChoice{Value: opt.Value, Label: opt.Label})
	}
	return choices, nil
}

// Label возвращает подпись значения. Для неизвестных значений возвращается
// само значение с подчёркиваниями, заменёнными пробелами, в Title Case.
func (s *Service) Label(ctx context.Context, optionType, value string) (string, error) {
	for _, choice := range BuiltinChoices[optionType] {
		if choice.Value == value {
			return choice.Label, nil
		}
	}
	opt, err := s.repo.GetCustomOption(ctx, optionType, value)
	if err == nil {
		return opt.Label, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("получение опции: %w", err)
	}
	return titleCase(value), nil
}

// IsValid проверяет, допустимо ли значение для типа.
func (s *Service) IsValid(ctx context.Context, optionType, value string) (bool, error) {
	for _, choice := range BuiltinChoices[optionType] {
		if choice.Value == value {
			return true, nil
		}
	}
	_, err := s.repo.GetCustomOption(ctx, optionType, value)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("получение опции: %w", err)
}

// Add создаёт пользовательскую опцию.
func (s *Service) Add(ctx context.Context, optionType, value, label string) (domain.CustomOption, error) {
	if _, ok := BuiltinChoices[optionType]; !ok {
		return domain.CustomOption{}, ErrUnknownType
	}
	value = strings.TrimSpace(value)
	label = strings.TrimSpace(label)
	if value == "" || label == "" {
		return domain.CustomOption{}, ErrValueRequired
	}
	valid, err := s.IsValid(ctx, optionType, value)
	if err != nil {
		return domain.CustomOption{}, err
	}
	if valid {
		return domain.CustomOption{}, ErrValueExists
	}
	created, err := s.repo.AddCustomOption(ctx, domain.CustomOption{OptionType: optionType, Value: value, Label: label})
	if err != nil {
		return domain.CustomOption{}, fmt.Errorf("сохранение опции: %w", err)
	}
	return created, nil
}

// Remove удаляет пользовательскую опцию по идентификатору.
func (s *Service) Remove(ctx context.Context, id int64) error {
	if err := s.repo.RemoveCustomOption(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("удаление опции: %w", err)
	}
	return nil
}

// Grouped возвращает все пользовательские опции, сгруппированные по типу.
func (s *Service) Grouped(ctx context.Context) (map[string][]domain.CustomOption, error) {
	all, err := s.repo.ListAllCustomOptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение опций: %w", err)
	}
	grouped := make(map[string][]domain.CustomOption)
	for _, opt := range all {
		grouped[opt.OptionType] = append(grouped[opt.OptionType], opt)
	}
	return grouped, nil
}

func titleCase(value string) string {
	words := strings.Split(strings.ReplaceAll(value, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
