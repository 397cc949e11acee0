package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"discord-otd-bot/internal/adapters/discord"
	"discord-otd-bot/internal/adapters/repo"
	"discord-otd-bot/internal/adapters/summarizer"
	"discord-otd-bot/internal/infra/cache"
	"discord-otd-bot/internal/infra/config"
	"discord-otd-bot/internal/infra/db"
	httpinfra "discord-otd-bot/internal/infra/http"
	applog "discord-otd-bot/internal/infra/log"
	"discord-otd-bot/internal/infra/metrics"
	"discord-otd-bot/internal/infra/openai"
	"discord-otd-bot/internal/usecase/crawler"
	"discord-otd-bot/internal/usecase/motd"
	"discord-otd-bot/internal/usecase/reminder"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	store := repo.NewPostgres(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("не удалось инициализировать схему БД")
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	onceCache := cache.NewRedis(redisClient)

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать сессию Discord")
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentMessageContent

	source := discord.NewSource(session)
	notifier := discord.NewNotifier(logger, session)
	gateway := discord.NewGateway(logger)
	gateway.Bind(session)

	weights := motd.Weights{
		Word:          cfg.Motd.WordWeight,
		Attachment:    cfg.Motd.AttachWeight,
		Mention:       cfg.Motd.MentionWeight,
		Reaction:      cfg.Motd.ReactionWeight,
		ChannelFactor: cfg.Motd.ChannelFactor,
	}
	digestService := motd.NewService(logger, store, store, weights)
	poster := motd.NewPoster(logger, digestService, store, notifier, onceCache, cfg.Motd.PostHourUTC)

	reminderService := reminder.NewService(logger, store, notifier, cfg.Reminders.Horizon, cfg.Reminders.MaxAttempts)

	crawlService := crawler.NewService(logger, source, store, store, crawler.Config{
		Tick:      cfg.Crawler.Tick,
		Cooldown:  cfg.Crawler.Cooldown,
		PageSize:  cfg.Crawler.PageSize,
		PageDelay: cfg.Crawler.PageDelay,
	})

	var tldr discord.Summarizer
	if cfg.OpenAI.APIKey != "" {
		client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
		tldr = summarizer.NewOpenAI(logger, client, source, cfg.OpenAI.Model)
	}

	commands := discord.NewCommands(logger, session, reminderService, digestService, notifier, store, tldr)
	commands.Bind()

	if err := session.Open(); err != nil {
		logger.Fatal().Err(err).Msg("не удалось открыть шлюз Discord")
	}
	defer session.Close()

	if err := commands.Register(); err != nil {
		logger.Fatal().Err(err).Msg("не удалось зарегистрировать команды")
	}

	go crawlService.Run(ctx, gateway.Channels(), gateway.Messages())
	go reminderService.Run(ctx)
	go poster.Run(ctx)

	srv := httpinfra.NewServer(logger)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("бот запущен")
		if err := srv.Start(cfg.HTTPAddr); err != nil {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("остановка бота")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
