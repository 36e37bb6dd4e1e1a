package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"creator-hub/internal/domain"
	"creator-hub/internal/infra/metrics"
)

const defaultBaseURL = "https://discord.com/api/v10"

// Первое миллисекундное значение snowflake (2015-01-01T00:00:00Z).
const snowflakeEpoch = 1420070400000

const (
	messagesPageSize = 100
	maxPages         = 20
	retryMax         = 3
)

// Client выгружает сообщения канала через Discord REST API от имени бота.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

var _ domain.TopicSource = (*Client)(nil)

// NewClient создаёт клиента Discord.
func NewClient(token, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		token:   token,
	}
}

type message struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Author    author     `json:"author"`
	Reactions []reaction `json:"reactions"`
}

type author struct {
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Bot        bool   `json:"bot"`
}

type reaction struct {
	Count int   `json:"count"`
	Emoji emoji `json:"emoji"`
}

type emoji struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SnowflakeAfter возвращает минимальный snowflake для сообщений,
// отправленных не раньше t.
func SnowflakeAfter(t time.Time) string {
	ms := t.UnixMilli() - snowflakeEpoch
	if ms < 0 {
		ms = 0
	}
	return strconv.FormatInt(ms<<22, 10)
}

// FetchReacted реализует domain.TopicSource: возвращает сообщения канала
// после afterMessageID (либо после since, если курсора ещё нет),
// отмеченные нужной реакцией. Сообщения ботов пропускаются.
func (c *Client) FetchReacted(ctx context.Context, channelID, emoji string, afterMessageID string, since time.Time) ([]domain.TopicSuggestion, error) {
	if c.token == "" {
		return nil, fmt.Errorf("discord: токен бота не задан")
	}
	after := afterMessageID
	if after == "" {
		after = SnowflakeAfter(since)
	}

	var suggestions []domain.TopicSuggestion
	for page := 0; page < maxPages; page++ {
		batch, err := c.fetchPage(ctx, channelID, after)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		// Discord отдаёт страницу от новых к старым; для стабильного
		// курсора обрабатываем от старых к новым.
		for i := len(batch) - 1; i >= 0; i-- {
			msg := batch[i]
			after = domain.NewerMessageID(after, msg.ID)
			if msg.Author.Bot || !hasReaction(msg, emoji) {
				continue
			}
			suggestions = append(suggestions, domain.TopicSuggestion{
				MessageID: msg.ID,
				Author:    displayName(msg.Author),
				Content:   msg.Content,
				URL:       fmt.Sprintf("https://discord.com/channels/@me/%s/%s", channelID, msg.ID),
				PostedAt:  msg.Timestamp,
			})
		}
		if len(batch) < messagesPageSize {
			break
		}
	}
	return suggestions, nil
}

func (c *Client) fetchPage(ctx context.Context, channelID, after string) ([]message, error) {
	endpoint := fmt.Sprintf("%s/channels/%s/messages?%s", c.baseURL, url.PathEscape(channelID), url.Values{
		"after": {after},
		"limit": {strconv.Itoa(messagesPageSize)},
	}.Encode())

	var lastErr error
	for attempt := 0; attempt < retryMax; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("discord: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bot "+c.token)

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			metrics.ObserveNetworkRequest("discord", "channel_messages", channelID, start, err)
			lastErr = fmt.Errorf("discord: do request: %w", err)
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case readErr != nil:
				metrics.ObserveNetworkRequest("discord", "channel_messages", channelID, start, readErr)
				lastErr = fmt.Errorf("discord: read response: %w", readErr)
			case resp.StatusCode == http.StatusOK:
				var batch []message
				if err := json.Unmarshal(body, &batch); err != nil {
					metrics.ObserveNetworkRequest("discord", "channel_messages", channelID, start, err)
					return nil, fmt.Errorf("discord: decode response: %w", err)
				}
				metrics.ObserveNetworkRequest("discord", "channel_messages", channelID, start, nil)
				return batch, nil
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				lastErr = fmt.Errorf("discord: unexpected status %d", resp.StatusCode)
				metrics.ObserveNetworkRequest("discord", "channel_messages", channelID, start, lastErr)
				if wait := retryAfter(resp, body); wait > 0 {
					select {
					case <-time.After(wait):
					case <-ctx.Done():
						return nil, ctx.Err()
					}
					continue
				}
			default:
				err = fmt.Errorf("discord: unexpected status %d", resp.StatusCode)
				metrics.ObserveNetworkRequest("discord", "channel_messages", channelID, start, err)
				return nil, err
			}
		}

		select {
		case <-time.After(time.Duration(attempt+1) * time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func retryAfter(resp *http.Response, body []byte) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	var payload struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.RetryAfter > 0 {
		return time.Duration(payload.RetryAfter * float64(time.Second))
	}
	return 0
}

// hasReaction проверяет наличие реакции. Want задаётся как юникод-эмодзи
// либо как кастомная реакция в форме name:id.
func hasReaction(msg message, want string) bool {
	if want == "" {
		return len(msg.Reactions) > 0
	}
	name, id, custom := strings.Cut(want, ":")
	for _, r := range msg.Reactions {
		if r.Count == 0 {
			continue
		}
		if custom {
			if r.Emoji.Name == name && r.Emoji.ID == id {
				return true
			}
			continue
		}
		if r.Emoji.ID == "" && r.Emoji.Name == want {
			return true
		}
	}
	return false
}

func displayName(a author) string {
	if a.GlobalName != "" {
		return a.GlobalName
	}
	return a.Username
}
