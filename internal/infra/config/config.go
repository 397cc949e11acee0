package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию бота.
type AppConfig struct {
	AppEnv   string `envconfig:"APP_ENV" default:"dev"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	Discord struct {
		Token string `envconfig:"DISCORD_TOKEN"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Crawler struct {
		Tick      time.Duration `envconfig:"CRAWLER_TICK" default:"5m"`
		Cooldown  time.Duration `envconfig:"CRAWLER_COOLDOWN" default:"5h"`
		PageSize  int           `envconfig:"CRAWLER_PAGE_SIZE" default:"100"`
		PageDelay time.Duration `envconfig:"CRAWLER_PAGE_DELAY" default:"500ms"`
	} `envconfig:""`

	Motd struct {
		PostHourUTC    int     `envconfig:"MOTD_POST_HOUR" default:"12"`
		WordWeight     float64 `envconfig:"MOTD_WORD_WEIGHT" default:"0.35"`
		AttachWeight   float64 `envconfig:"MOTD_ATTACH_WEIGHT" default:"2.5"`
		MentionWeight  float64 `envconfig:"MOTD_MENTION_WEIGHT" default:"0.3"`
		ReactionWeight float64 `envconfig:"MOTD_REACTION_WEIGHT" default:"0.25"`
		ChannelFactor  float64 `envconfig:"MOTD_WEIGHTED_CHANNEL_FACTOR" default:"3.5"`
	} `envconfig:""`

	Reminders struct {
		Horizon     time.Duration `envconfig:"REMINDER_HORIZON" default:"24h"`
		MaxAttempts int           `envconfig:"REMINDER_MAX_ATTEMPTS" default:"5"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"60s"`
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
