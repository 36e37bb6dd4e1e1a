package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"UTC"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Discord struct {
		BotToken     string        `envconfig:"DISCORD_BOT_TOKEN"`
		BaseURL      string        `envconfig:"DISCORD_API_BASE_URL"`
		TopicChannel string        `envconfig:"DISCORD_TOPIC_CHANNEL"`
		TopicEmoji   string        `envconfig:"DISCORD_TOPIC_EMOJI" default:"👍"`
		Timeout      time.Duration `envconfig:"DISCORD_TIMEOUT" default:"30s"`
	} `envconfig:""`

	YouTube struct {
		APIKey    string        `envconfig:"YOUTUBE_API_KEY"`
		ChannelID string        `envconfig:"YOUTUBE_CHANNEL_ID"`
		BaseURL   string        `envconfig:"YOUTUBE_API_BASE_URL"`
		Timeout   time.Duration `envconfig:"YOUTUBE_TIMEOUT" default:"15s"`
	} `envconfig:""`

	Queues struct {
		Driver    string `envconfig:"QUEUE_DRIVER" default:"redis"`
		TopicSync string `envconfig:"TOPIC_SYNC_QUEUE_KEY" default:"topic_sync_jobs"`
		AMQPURL   string `envconfig:"AMQP_URL"`
	} `envconfig:""`

	Scheduler struct {
		Interval time.Duration `envconfig:"SCHEDULER_INTERVAL" default:"15m"`
		Horizon  time.Duration `envconfig:"SCHEDULER_HORIZON" default:"48h"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
