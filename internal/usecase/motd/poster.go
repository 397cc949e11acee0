package motd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"discord-otd-bot/internal/domain"
	"discord-otd-bot/internal/infra/metrics"
)

// onceTTL перекрывает сутки, чтобы повторный запуск процесса в тот же день
// не публиковал дайджест второй раз.
const onceTTL = 36 * time.Hour

// Poster — фоновый цикл ежедневной публикации дайджеста.
type Poster struct {
	log      zerolog.Logger
	service  *Service
	settings domain.GuildConfigRepo
	notifier domain.Notifier
	cache    domain.Cache
	hourUTC  int
}

// NewPoster создаёт цикл публикации.
func NewPoster(log zerolog.Logger, service *Service, settings domain.GuildConfigRepo, notifier domain.Notifier, cache domain.Cache, hourUTC int) *Poster {
	if hourUTC < 0 || hourUTC > 23 {
		hourUTC = 12
	}
	return &Poster{
		log:      log,
		service:  service,
		settings: settings,
		notifier: notifier,
		cache:    cache,
		hourUTC:  hourUTC,
	}
}

// Run просыпается раз в сутки в заданный час UTC и публикует дайджест во
// всех гильдиях с настроенным каналом. Выходит по отмене контекста.
func (p *Poster) Run(ctx context.Context) {
	for {
		wait := untilNextRun(time.Now().UTC(), p.hourUTC)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		p.postAll(ctx)
	}
}

func untilNextRun(now time.Time, hourUTC int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

func (p *Poster) postAll(ctx context.Context) {
	runLog := p.log.With().Str("run_id", uuid.NewString()).Logger()

	guilds, err := p.settings.ListGuildsWithMotdChannel(ctx)
	if err != nil {
		runLog.Error().Err(err).Msg("motd: не удалось получить список гильдий")
		return
	}

	day := time.Now().UTC()
	for _, g := range guilds {
		key := fmt.Sprintf("motd:%s:%s", g.GuildID, day.Format("2006-01-02"))
		err := p.cache.Once(ctx, key, onceTTL, func() error {
			return p.postGuild(ctx, runLog, g, day)
		})
		if err != nil {
			runLog.Error().Err(err).Str("guild", g.GuildID).Msg("motd: публикация не удалась")
		}
	}
}

func (p *Poster) postGuild(ctx context.Context, runLog zerolog.Logger, g domain.GuildSettings, day time.Time) error {
	cand, err := p.service.DigestForDay(ctx, g.GuildID, day)
	if err != nil {
		metrics.DigestPostsTotal.WithLabelValues("error").Inc()
		return err
	}
	if cand == nil {
		metrics.DigestPostsTotal.WithLabelValues("empty").Inc()
		runLog.Info().Str("guild", g.GuildID).Msg("motd: за этот день ничего не нашлось")
		return p.notifier.SendText(ctx, g.MotdChannelID, "Сегодня в архиве ничего интересного не нашлось.")
	}
	if err := p.notifier.PostDigest(ctx, g.MotdChannelID, *cand); err != nil {
		metrics.DigestPostsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("отправка дайджеста: %w", err)
	}
	metrics.DigestPostsTotal.WithLabelValues("posted").Inc()
	return nil
}
