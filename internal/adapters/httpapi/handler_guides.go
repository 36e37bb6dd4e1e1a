package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"creator-hub/internal/domain"
	httpinfra "creator-hub/internal/infra/http"
	"creator-hub/internal/usecase/guides"
	"creator-hub/internal/usecase/items"
	"creator-hub/internal/usecase/sections"
)

func (h *Handler) registerEpisodeRoutes(r chi.Router) {
	r.Get("/", h.listGuides)
	r.Post("/", h.createGuide)
	r.Route("/{guideID}", func(r chi.Router) {
		r.Get("/", h.getGuide)
		r.Put("/", h.updateGuide)
		r.Delete("/", h.deleteGuide)
		r.Post("/copy", h.copyGuide)
		r.Post("/recording", h.toggleRecording)
		r.Post("/reopen", h.reopenGuide)
		r.Get("/chapters", h.guideChapters)
		r.Get("/video", h.guideVideo)
		r.Put("/static-content", h.updateStaticContent)
		r.Post("/sync-topics", h.requestTopicSync)

		r.Get("/sections", h.sectionCatalog)
		r.Post("/sections", h.addSection)
		r.Delete("/sections/{sectionKey}", h.deleteSection)

		r.Get("/items", h.listItems)
		r.Post("/items", h.addItem)
		r.Put("/items/{itemID}", h.updateItem)
		r.Delete("/items/{itemID}", h.deleteItem)
		r.Post("/items/{itemID}/move", h.moveItem)
		r.Post("/timestamp/{itemID}", h.captureTimestamp)
	})
}

type guideView struct {
	domain.EpisodeGuide
	FormattedDuration string `json:"formatted_duration,omitempty"`
}

func viewGuide(g domain.EpisodeGuide) guideView {
	return guideView{EpisodeGuide: g, FormattedDuration: g.FormattedDuration()}
}

type itemView struct {
	domain.EpisodeGuideItem
	FormattedTimestamp string `json:"formatted_timestamp,omitempty"`
}

func viewItem(i domain.EpisodeGuideItem) itemView {
	return itemView{EpisodeGuideItem: i, FormattedTimestamp: i.FormattedTimestamp()}
}

func viewItems(list []domain.EpisodeGuideItem) []itemView {
	out := make([]itemView, 0, len(list))
	for _, i := range list {
		out = append(out, viewItem(i))
	}
	return out
}

func (h *Handler) guideScope(r *http.Request) (podcastID, guideID int64, err error) {
	podcastID, err = pathID(r, "podcastID")
	if err != nil {
		return 0, 0, err
	}
	guideID, err = pathID(r, "guideID")
	if err != nil {
		return 0, 0, err
	}
	return podcastID, guideID, nil
}

type guideRequest struct {
	Title         *string `json:"title"`
	EpisodeNumber *int    `json:"episode_number"`
	ClearEpisode  bool    `json:"clear_episode_number"`
	ScheduledDate *string `json:"scheduled_date"`
	Notes         *string `json:"notes"`
	TemplateID    *int64  `json:"template_id"`
	PreviousPoll  *string `json:"previous_poll"`
	PrevPollLink  *string `json:"previous_poll_link"`
	NewPoll       *string `json:"new_poll"`
	NewPollLink   *string `json:"new_poll_link"`
}

func parseScheduledDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, *raw); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("недопустимый формат scheduled_date")
}

func (h *Handler) listGuides(w http.ResponseWriter, r *http.Request) {
	podcastID, err := pathID(r, "podcastID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	filter := domain.GuideFilter{
		Status: domain.GuideStatus(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("search"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		httpinfra.WriteError(w, http.StatusBadRequest, errors.New("недопустимый статус"))
		return
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		filter.Limit, _ = strconv.Atoi(raw)
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		filter.Offset, _ = strconv.Atoi(raw)
	}
	list, stats, err := h.guides.List(r.Context(), podcastID, filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	views := make([]guideView, 0, len(list))
	for _, g := range list {
		views = append(views, viewGuide(g))
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"guides": views, "stats": stats})
}

func (h *Handler) createGuide(w http.ResponseWriter, r *http.Request) {
	podcastID, err := pathID(r, "podcastID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanEditEpisodes); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req guideRequest
	if err := decodeBody(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	scheduled, err := parseScheduledDate(req.ScheduledDate)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	params := guides.CreateParams{
		EpisodeNumber: req.EpisodeNumber,
		ScheduledDate: scheduled,
		TemplateID:    req.TemplateID,
	}
	if req.Title != nil {
		params.Title = *req.Title
	}
	if req.Notes != nil {
		params.Notes = *req.Notes
	}
	guide, err := h.guides.Create(r.Context(), podcastID, params)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, map[string]any{"guide": viewGuide(guide)})
}

func (h *Handler) getGuide(w http.ResponseWriter, r *http.Request) {
	podcastID, guideID, err := h.guideScope(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	guide, err := h.guides.Get(r.Context(), podcastID, guideID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"guide": viewGuide(guide)})
}

func (h *Handler) updateGuide(w http.ResponseWriter, r *http.Request) {
	podcastID, guideID, err := h.guideScope(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanEditEpisodes); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req guideRequest
	if err := decodeBody(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	scheduled, err := parseScheduledDate(req.ScheduledDate)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	guide, err := h.guides.UpdateMetadata(r.Context(), podcastID, guideID, guides.MetadataParams{
		Title:            req.Title,
		EpisodeNumber:    req.EpisodeNumber,
		ClearEpisodeNum:  req.ClearEpisode,
		ScheduledDate:    scheduled,
		Notes:            req.Notes,
		PreviousPoll:     req.PreviousPoll,
		PreviousPollLink: req.PrevPollLink,
		NewPoll:          req.NewPoll,
		NewPollLink:      req.NewPollLink,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"guide": viewGuide(guide)})
}

func (h *Handler) deleteGuide(w http.ResponseWriter, r *http.Request) {
	podcastID, guideID, err := h.guideScope(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanEditEpisodes); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.guides.Delete(r.Context(), podcastID, guideID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, nil)
}

func (h *Handler) copyGuide(w http.ResponseWriter, r *http.Request) {
	podcastID, guideID, err := h.guideScope(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanEditEpisodes); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	copied, err := h.guides.Copy(r.Context(), podcastID, guideID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, map[string]any{"guide": viewGuide(copied)})
}

type recordingRequest struct {
	Action string `json:"action"`
}

func (h *Handler) toggleRecording(w http.ResponseWriter, r *http.Request) {
	podcastID, guideID, err := h.guideScope(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanEditEpisodes); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req recordingRequest
	if err := decodeBody(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	guide, err := h.guides.ToggleRecording(r.Context(), podcastID, guideID, guides.RecordingAction(req.Action))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"guide": viewGuide(guide)})
}

func (h *Handler) reopenGuide(w http.ResponseWriter, r *http.Request) {
	podcastID, guideID, err := h.guideScope(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanEditEpisodes); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	guide, err := h.guides.Reopen(r.Context(), podcastID, guideID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"guide": viewGuide(guide)})
}

func (h *Handler) guideChapters(w http.ResponseWriter, r *http.Request) {
	podcastID, guideID, err := h.guideScope(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	chapters, err := h.guides.Chapters(r.Context(), podcastID, guideID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"chapters": chapters})
}

func (h *Handler) guideVideo(w http.ResponseWriter, r *http.Request) {
	podcastID, guideID, err := h.guideScope(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	video, err := h.guides.FindPublishedVideo(r.Context(), podcastID, guideID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"video": video})
}

type staticContentRequest struct {
	Intro []string `json:"intro"`
	Outro []string `json:"outro"`
}

func (h *Handler) updateStaticContent(w http.ResponseWriter, r *http.Request) {
	podcastID, guideID, err := h.guideScope(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanEditEpisodes); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req staticContentRequest
	if err := decodeBody(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	guide, err := h.guides.UpdateStaticContent(r.Context(), podcastID, guideID, req.Intro, req.Outro)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"guide": viewGuide(guide)})
}

type syncTopicsRequest struct {
	ChannelID string `json:"channel_id"`
	Emoji     string `json:"emoji"`
	Section   string `json:"section"`
}

// requestTopicSync ставит ручную задачу синхронизации тем в очередь.
func (h *Handler) requestTopicSync(w http.ResponseWriter, r *http.Request) {
	podcastID, guideID, err := h.guideScope(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanEditEpisodes); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if h.queue == nil {
		httpinfra.WriteError(w, http.StatusServiceUnavailable, errors.New("очередь синхронизации не настроена"))
		return
	}
	var req syncTopicsRequest
	if err := decodeBody(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if req.ChannelID == "" {
		httpinfra.WriteError(w, http.StatusBadRequest, errors.New("channel_id обязателен"))
		return
	}
	// Выпуск должен существовать до постановки задачи.
	if _, err := h.guides.Get(r.Context(), podcastID, guideID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	job := domain.SyncJob{
		ID:          uuid.NewString(),
		PodcastID:   podcastID,
		GuideID:     guideID,
		ChannelID:   req.ChannelID,
		Emoji:       req.Emoji,
		Section:     domain.SectionKey(req.Section),
		RequestedAt: time.Now().UTC(),
		Cause:       domain.SyncCauseManual,
	}
	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		h.writeServiceError(w, r, fmt.Errorf("постановка задачи: %w", err))
		return
	}
	httpinfra.WriteJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID})
}

type sectionView struct {
	Key    domain.SectionKey `json:"key"`
	Name   string            `json:"name"`
	Parent domain.SectionKey `json:"parent,omitempty"`
	Color  string            `json:"color,omitempty"`
}

func (h *Handler) sectionCatalog(w http.ResponseWriter, r *http.Request) {
	podcastID, guideID, err := h.guideScope(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	key := fmt.Sprintf("sections:%d:%d", podcastID, guideID)
	catalog, err := memo(r.Context(), key, func() (domain.SectionCatalog, error) {
		return h.sections.Catalog(r.Context(), podcastID, guideID)
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	views := make([]sectionView, 0)
	for _, s := range catalog.All() {
		views = append(views, sectionView{Key: s.Key, Name: s.Name, Parent: s.Parent, Color: s.Color})
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"sections": views})
}

type sectionRequest struct {
	Name   string `json:"name"`
	Parent string `json:"parent"`
	Color  string `json:"color"`
}

func (h *Handler) addSection(w http.ResponseWriter, r *http.Request) {
	podcastID, guideID, err := h.guideScope(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanEditEpisodes); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req sectionRequest
	if err := decodeBody(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	section, err := h.sections.Add(r.Context(), podcastID, guideID, sections.AddParams{
		Name:   req.Name,
		Parent: req.Parent,
		Color:  req.Color,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, map[string]any{"section": section})
}

func (h *Handler) deleteSection(w http.ResponseWriter, r *http.Request) {
	podcastID, guideID, err := h.guideScope(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanEditEpisodes); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	key := domain.SectionKey(chi.URLParam(r, "sectionKey"))
	if err := h.sections.Delete(r.Context(), podcastID, guideID, key); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, nil)
}

type itemRequest struct {
	Section          *string   `json:"section"`
	Title            *string   `json:"title"`
	Links            *[]string `json:"links"`
	Notes            *string   `json:"notes"`
	Discussed        *bool     `json:"discussed"`
	TimestampSeconds *int      `json:"timestamp_seconds"`
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	podcastID, guideID, err := h.guideScope(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	list, err := h.items.List(r.Context(), podcastID, guideID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"items": viewItems(list)})
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	podcastID, guideID, err := h.guideScope(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanEditEpisodes); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req itemRequest
	if err := decodeBody(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	params := items.AddParams{}
	if req.Section != nil {
		params.Section = domain.SectionKey(*req.Section)
	}
	if req.Title != nil {
		params.Title = *req.Title
	}
	if req.Links != nil {
		params.Links = *req.Links
	}
	if req.Notes != nil {
		params.Notes = *req.Notes
	}
	item, err := h.items.Add(r.Context(), podcastID, guideID, params)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, map[string]any{"item": viewItem(item)})
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	podcastID, guideID, err := h.guideScope(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanEditEpisodes); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req itemRequest
	if err := decodeBody(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	params := items.UpdateParams{
		Title:            req.Title,
		Links:            req.Links,
		Notes:            req.Notes,
		Discussed:        req.Discussed,
		TimestampSeconds: req.TimestampSeconds,
	}
	if req.Section != nil {
		section := domain.SectionKey(*req.Section)
		params.Section = &section
	}
	item, err := h.items.Update(r.Context(), podcastID, guideID, itemID, params)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"item": viewItem(item)})
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	podcastID, guideID, err := h.guideScope(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanEditEpisodes); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.items.Delete(r.Context(), podcastID, guideID, itemID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, nil)
}

type moveRequest struct {
	Section  string `json:"section"`
	Position int    `json:"position"`
}

func (h *Handler) moveItem(w http.ResponseWriter, r *http.Request) {
	podcastID, guideID, err := h.guideScope(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanEditEpisodes); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req moveRequest
	if err := decodeBody(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	item, err := h.items.Move(r.Context(), podcastID, guideID, itemID, domain.SectionKey(req.Section), req.Position)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"item": viewItem(item)})
}

type timestampRequest struct {
	ElapsedSeconds int `json:"elapsed_seconds"`
}

func (h *Handler) captureTimestamp(w http.ResponseWriter, r *http.Request) {
	podcastID, guideID, err := h.guideScope(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.requireRole(r, podcastID, domain.MemberRole.CanEditEpisodes); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req timestampRequest
	if err := decodeBody(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	item, err := h.items.CaptureTimestamp(r.Context(), podcastID, guideID, itemID, req.ElapsedSeconds)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"item": viewItem(item)})
}
