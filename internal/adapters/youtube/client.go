package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"creator-hub/internal/domain"
	"creator-hub/internal/infra/metrics"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// Client ищет опубликованные выпуски через YouTube Data API.
type Client struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	channelID string
}

var _ domain.VideoSource = (*Client)(nil)

// NewClient создаёт клиента YouTube. channelID ограничивает поиск каналом
// подкаста и может быть пустым.
func NewClient(apiKey, channelID, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		apiKey:    apiKey,
		channelID: channelID,
	}
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title       string    `json:"title"`
			PublishedAt time.Time `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

// FindEpisodeVideo реализует domain.VideoSource: возвращает самый свежий
// ролик по запросу, опубликованный после publishedAfter, либо ErrNotFound.
func (c *Client) FindEpisodeVideo(ctx context.Context, query string, publishedAfter time.Time) (domain.Video, error) {
	if c.apiKey == "" {
		return domain.Video{}, fmt.Errorf("youtube: api key не задан")
	}

	params := url.Values{
		"part":       {"snippet"},
		"type":       {"video"},
		"order":      {"date"},
		"maxResults": {"5"},
		"q":          {query},
		"key":        {c.apiKey},
	}
	if c.channelID != "" {
		params.Set("channelId", c.channelID)
	}
	if !publishedAfter.IsZero() {
		params.Set("publishedAfter", publishedAfter.UTC().Format(time.RFC3339))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return domain.Video{}, fmt.Errorf("youtube: build request: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("youtube", "search", query, start, err)
		return domain.Video{}, fmt.Errorf("youtube: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest("youtube", "search", query, start, err)
		return domain.Video{}, fmt.Errorf("youtube: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("youtube: unexpected status %d", resp.StatusCode)
		metrics.ObserveNetworkRequest("youtube", "search", query, start, err)
		return domain.Video{}, err
	}

	var search searchResponse
	if err := json.Unmarshal(body, &search); err != nil {
		metrics.ObserveNetworkRequest("youtube", "search", query, start, err)
		return domain.Video{}, fmt.Errorf("youtube: decode response: %w", err)
	}
	metrics.ObserveNetworkRequest("youtube", "search", query, start, nil)

	for _, item := range search.Items {
		if item.ID.VideoID == "" {
			continue
		}
		return domain.Video{
			ID:          item.ID.VideoID,
			Title:       item.Snippet.Title,
			URL:         "https://www.youtube.com/watch?v=" + item.ID.VideoID,
			PublishedAt: item.Snippet.PublishedAt,
		}, nil
	}
	return domain.Video{}, domain.ErrNotFound
}
