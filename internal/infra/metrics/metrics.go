package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	ItemMovesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guide_item_moves_total",
		Help: "Количество перемещений пунктов сценария",
	})
	RecordingSessionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recording_sessions_total",
		Help: "Количество переходов записи по действиям",
	}, []string{"action"})
	TopicsSyncedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "topics_synced_total",
		Help: "Количество тем, перенесённых из сообщества в сценарии",
	})
	SyncJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "topic_sync_jobs_total",
		Help: "Задачи синхронизации тем по результату обработки",
	}, []string{"status"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 25, 30, 35, 40, 45, 50, 55, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	GuidesByPodcast = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guides_created_by_podcast_total",
		Help: "Количество созданных выпусков по подкастам",
	}, []string{"podcast_id"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ItemMovesTotal,
		RecordingSessionsTotal,
		TopicsSyncedTotal,
		SyncJobsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
		GuidesByPodcast,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// IncItemMove увеличивает счётчик перемещений пунктов.
func IncItemMove() {
	ItemMovesTotal.Inc()
}

// IncRecordingAction увеличивает счётчик действий записи.
func IncRecordingAction(action string) {
	RecordingSessionsTotal.WithLabelValues(action).Inc()
}

// IncTopicsSynced увеличивает счётчик перенесённых тем.
func IncTopicsSynced(n int) {
	if n > 0 {
		TopicsSyncedTotal.Add(float64(n))
	}
}

// IncSyncJob увеличивает счётчик обработанных задач синхронизации.
func IncSyncJob(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	SyncJobsTotal.WithLabelValues(status).Inc()
}

// IncGuideCreated увеличивает счётчик созданных выпусков подкаста.
func IncGuideCreated(podcastID int64) {
	GuidesByPodcast.WithLabelValues(strconv.FormatInt(podcastID, 10)).Inc()
}
