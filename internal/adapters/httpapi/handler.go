package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"creator-hub/internal/domain"
	httpinfra "creator-hub/internal/infra/http"
	"creator-hub/internal/usecase/guides"
	"creator-hub/internal/usecase/items"
	"creator-hub/internal/usecase/options"
	"creator-hub/internal/usecase/podcasts"
	"creator-hub/internal/usecase/sections"
	"creator-hub/internal/usecase/templates"
)

var errInternal = errors.New("внутренняя ошибка сервера")

// Handler связывает HTTP-маршруты с сервисами.
type Handler struct {
	podcasts  *podcasts.Service
	templates *templates.Service
	guides    *guides.Service
	items     *items.Service
	sections  *sections.Service
	options   *options.Service
	queue     domain.SyncQueue
	log       zerolog.Logger
}

// NewHandler создаёт обработчик API.
func NewHandler(
	podcastsSvc *podcasts.Service,
	templatesSvc *templates.Service,
	guidesSvc *guides.Service,
	itemsSvc *items.Service,
	sectionsSvc *sections.Service,
	optionsSvc *options.Service,
	queue domain.SyncQueue,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		podcasts:  podcastsSvc,
		templates: templatesSvc,
		guides:    guidesSvc,
		items:     itemsSvc,
		sections:  sectionsSvc,
		options:   optionsSvc,
		queue:     queue,
		log:       logger,
	}
}

// Register вешает маршруты API на роутер.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(WithRequestCache)

		r.Route("/podcasts", func(r chi.Router) {
			r.Get("/", h.listPodcasts)
			r.Post("/", h.createPodcast)
			r.Route("/{podcastID}", func(r chi.Router) {
				r.Get("/", h.getPodcast)
				r.Put("/", h.updatePodcast)
				r.Delete("/", h.deletePodcast)

				r.Route("/members", func(r chi.Router) {
					r.Get("/", h.listMembers)
					r.Post("/", h.addMember)
					r.Put("/{userID}", h.changeMemberRole)
					r.Delete("/{userID}", h.removeMember)
				})

				r.Route("/templates", func(r chi.Router) {
					r.Get("/", h.listTemplates)
					r.Post("/", h.createTemplate)
					r.Get("/{templateID}", h.getTemplate)
					r.Put("/{templateID}", h.updateTemplate)
					r.Delete("/{templateID}", h.deleteTemplate)
					r.Post("/{templateID}/default", h.setDefaultTemplate)
				})

				r.Route("/episodes", h.registerEpisodeRoutes)
			})
		})

		r.Route("/options", func(r chi.Router) {
			r.Get("/", h.groupedOptions)
			r.Get("/{optionType}", h.optionChoices)
			r.Post("/{optionType}", h.addOption)
			r.Delete("/{optionType}/{optionID}", h.removeOption)
		})
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("request_id", httpinfra.RequestID(r)).
			Str("path", r.URL.Path).
			Msg("api: необработанная ошибка")
		httpinfra.WriteError(w, status, errInternal)
		return
	}
	httpinfra.WriteError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, guides.ErrGuideNotFound),
		errors.Is(err, guides.ErrTemplateNotFound),
		errors.Is(err, guides.ErrVideoNotFound),
		errors.Is(err, items.ErrGuideNotFound),
		errors.Is(err, items.ErrItemNotFound),
		errors.Is(err, sections.ErrGuideNotFound),
		errors.Is(err, sections.ErrSectionNotFound),
		errors.Is(err, podcasts.ErrPodcastNotFound),
		errors.Is(err, podcasts.ErrMemberNotFound),
		errors.Is(err, templates.ErrTemplateNotFound),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, items.ErrInvalidSection),
		errors.Is(err, items.ErrInvalidPosition),
		errors.Is(err, items.ErrTitleRequired),
		errors.Is(err, items.ErrInvalidTimestamp),
		errors.Is(err, guides.ErrTitleRequired),
		errors.Is(err, guides.ErrUnknownAction),
		errors.Is(err, sections.ErrNameRequired),
		errors.Is(err, sections.ErrBuiltinSection),
		errors.Is(err, sections.ErrSectionNotEmpty),
		errors.Is(err, podcasts.ErrNameRequired),
		errors.Is(err, templates.ErrNameRequired),
		errors.Is(err, options.ErrUnknownType),
		errors.Is(err, options.ErrValueRequired):
		return http.StatusBadRequest
	case errors.Is(err, items.ErrNotRecording),
		errors.Is(err, podcasts.ErrLastAdmin),
		errors.Is(err, podcasts.ErrMemberExists),
		errors.Is(err, options.ErrValueExists):
		return http.StatusConflict
	case errors.Is(err, podcasts.ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// userID достаёт идентификатор пользователя, проставленный вышестоящим
// прокси после аутентификации.
func userID(r *http.Request) (int64, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return 0, errors.New("заголовок X-User-ID отсутствует")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("недопустимый X-User-ID")
	}
	return id, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("недопустимый параметр %s", name)
	}
	return id, nil
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("некорректное тело запроса")
	}
	return nil
}

type podcastRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (h *Handler) listPodcasts(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusUnauthorized, err)
		return
	}
	list, err := h.podcasts.ListForUser(r.Context(), uid)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"podcasts": list})
}

func (h *Handler) createPodcast(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusUnauthorized, err)
		return
	}
	var req podcastRequest
	if err := decodeBody(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	params := podcasts.CreateParams{OwnerUserID: uid}
	if req.Name != nil {
		params.Name = *req.Name
	}
	if req.Description != nil {
		params.Description = *req.Description
	}
	podcast, err := h.podcasts.Create(r.Context(), params)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, map[string]any{"podcast": podcast})
}

func (h *Handler) getPodcast(w http.ResponseWriter, r *http.Request) {
	podcastID, err := pathID(r, "podcastID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	podcast, err := h.podcasts.Get(r.Context(), podcastID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"podcast": podcast})
}

func (h *Handler) updatePodcast(w http.ResponseWriter, r *http.Request) {
	podcastID, err := pathID(r, "podcastID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanManagePodcast); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req podcastRequest
	if err := decodeBody(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	podcast, err := h.podcasts.Update(r.Context(), podcastID, podcasts.UpdateParams{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"podcast": podcast})
}

func (h *Handler) deletePodcast(w http.ResponseWriter, r *http.Request) {
	podcastID, err := pathID(r, "podcastID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanManagePodcast); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.podcasts.Delete(r.Context(), podcastID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, nil)
}

// requireRole проверяет, что пользователь состоит в подкасте и его роль
// проходит проверку allowed.
func (h *Handler) requireRole(r *http.Request, podcastID int64, allowed func(domain.MemberRole) bool) error {
	uid, err := userID(r)
	if err != nil {
		return podcasts.ErrForbidden
	}
	role, err := h.podcasts.Role(r.Context(), podcastID, uid)
	if err != nil {
		if errors.Is(err, podcasts.ErrMemberNotFound) {
			return podcasts.ErrForbidden
		}
		return err
	}
	if !allowed(role) {
		return podcasts.ErrForbidden
	}
	return nil
}

type memberRequest struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	podcastID, err := pathID(r, "podcastID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	members, err := h.podcasts.Members(r.Context(), podcastID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	podcastID, err := pathID(r, "podcastID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanManagePodcast); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req memberRequest
	if err := decodeBody(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID <= 0 {
		httpinfra.WriteError(w, http.StatusBadRequest, errors.New("user_id обязателен"))
		return
	}
	member, err := h.podcasts.AddMember(r.Context(), podcastID, req.UserID, domain.ParseMemberRole(req.Role))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, map[string]any{"member": member})
}

func (h *Handler) changeMemberRole(w http.ResponseWriter, r *http.Request) {
	podcastID, err := pathID(r, "podcastID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	memberID, err := pathID(r, "userID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanManagePodcast); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req memberRequest
	if err := decodeBody(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.podcasts.ChangeRole(r.Context(), podcastID, memberID, domain.ParseMemberRole(req.Role)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, nil)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	podcastID, err := pathID(r, "podcastID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	memberID, err := pathID(r, "userID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanManagePodcast); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.podcasts.RemoveMember(r.Context(), podcastID, memberID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, nil)
}

type templateRequest struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	Sections     []domain.CustomSection `json:"sections"`
	IntroContent []string               `json:"intro_content"`
	OutroContent []string               `json:"outro_content"`
	DefaultPoll1 string                 `json:"default_poll1"`
	DefaultPoll2 string                 `json:"default_poll2"`
	IsDefault    bool                   `json:"is_default"`
}

func (r templateRequest) params() templates.Params {
	return templates.Params{
		Name:         r.Name,
		Description:  r.Description,
		Sections:     r.Sections,
		IntroContent: r.IntroContent,
		OutroContent: r.OutroContent,
		DefaultPoll1: r.DefaultPoll1,
		DefaultPoll2: r.DefaultPoll2,
		IsDefault:    r.IsDefault,
	}
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	podcastID, err := pathID(r, "podcastID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	list, err := h.templates.List(r.Context(), podcastID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"templates": list})
}

func (h *Handler) createTemplate(w http.ResponseWriter, r *http.Request) {
	podcastID, err := pathID(r, "podcastID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanManagePodcast); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req templateRequest
	if err := decodeBody(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	template, err := h.templates.Create(r.Context(), podcastID, req.params())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, map[string]any{"template": template})
}

func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	podcastID, err := pathID(r, "podcastID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	templateID, err := pathID(r, "templateID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	template, err := h.templates.Get(r.Context(), podcastID, templateID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"template": template})
}

func (h *Handler) updateTemplate(w http.ResponseWriter, r *http.Request) {
	podcastID, err := pathID(r, "podcastID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	templateID, err := pathID(r, "templateID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanManagePodcast); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req templateRequest
	if err := decodeBody(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	template, err := h.templates.Update(r.Context(), podcastID, templateID, req.params())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"template": template})
}

func (h *Handler) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	podcastID, err := pathID(r, "podcastID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	templateID, err := pathID(r, "templateID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanManagePodcast); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.templates.Delete(r.Context(), podcastID, templateID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, nil)
}

func (h *Handler) setDefaultTemplate(w http.ResponseWriter, r *http.Request) {
	podcastID, err := pathID(r, "podcastID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	templateID, err := pathID(r, "templateID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanManagePodcast); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.templates.SetDefault(r.Context(), podcastID, templateID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, nil)
}

type optionRequest struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func (h *Handler) optionChoices(w http.ResponseWriter, r *http.Request) {
	optionType := chi.URLParam(r, "optionType")
	choices, err := memo(r.Context(), "options:"+optionType, func() ([]domain.OptionChoice, error) {
		return h.options.Choices(r.Context(), optionType)
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"choices": choices})
}

func (h *Handler) groupedOptions(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.options.Grouped(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"options": grouped, "labels": options.TypeLabels})
}

func (h *Handler) addOption(w http.ResponseWriter, r *http.Request) {
	optionType := chi.URLParam(r, "optionType")
	var req optionRequest
	if err := decodeBody(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	option, err := h.options.Add(r.Context(), optionType, req.Value, req.Label)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, map[string]any{"option": option})
}

func (h *Handler) removeOption(w http.ResponseWriter, r *http.Request) {
	optionID, err := pathID(r, "optionID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.options.Remove(r.Context(), optionID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, nil)
}
