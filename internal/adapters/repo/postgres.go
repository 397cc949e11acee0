package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"discord-otd-bot/internal/domain"
	"discord-otd-bot/internal/infra/metrics"
)

// Postgres реализует репозитории архива, состояния обхода, напоминаний и
// настроек гильдий на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.MessageArchive  = (*Postgres)(nil)
	_ domain.CrawlStateRepo  = (*Postgres)(nil)
	_ domain.ReminderRepo    = (*Postgres)(nil)
	_ domain.GuildConfigRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS messages (
	message_id       TEXT PRIMARY KEY,
	guild_id         TEXT NOT NULL,
	channel_id       TEXT NOT NULL,
	author_id        TEXT NOT NULL,
	content          TEXT NOT NULL DEFAULT '',
	attachment_count INT  NOT NULL DEFAULT 0,
	reaction_count   INT  NOT NULL DEFAULT 0,
	ts               TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_guild_day_idx
	ON messages (guild_id, EXTRACT(MONTH FROM ts), EXTRACT(DAY FROM ts));

CREATE TABLE IF NOT EXISTS crawl_state (
	guild_id        TEXT NOT NULL,
	channel_id      TEXT NOT NULL,
	fully_scraped   BOOLEAN NOT NULL DEFAULT FALSE,
	last_scraped_at TIMESTAMPTZ,
	resume_cursor   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (guild_id, channel_id)
);

CREATE TABLE IF NOT EXISTS reminders (
	interaction_id TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	guild_id       TEXT NOT NULL,
	message        TEXT NOT NULL,
	expires_at     TIMESTAMPTZ NOT NULL,
	attempts       INT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS reminders_expires_idx ON reminders (expires_at);

CREATE TABLE IF NOT EXISTS guild_settings (
	guild_id            TEXT PRIMARY KEY,
	motd_channel_id     TEXT NOT NULL DEFAULT '',
	weighted_channel_id TEXT NOT NULL DEFAULT ''
);
`

// EnsureSchema создаёт таблицы, если их ещё нет.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, schemaSQL)
	metrics.ObserveNetworkRequest("postgres", "ensure_schema", "all", start, err)
	return err
}

// UpsertMessage реализует domain.MessageArchive: повторная запись того же
// message id перезаписывает строку.
func (p *Postgres) UpsertMessage(ctx context.Context, msg domain.ArchivedMessage) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO messages (message_id, guild_id, channel_id, author_id, content, attachment_count, reaction_count, ts)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (message_id) DO UPDATE SET
	guild_id = EXCLUDED.guild_id,
	channel_id = EXCLUDED.channel_id,
	author_id = EXCLUDED.author_id,
	content = EXCLUDED.content,
	attachment_count = EXCLUDED.attachment_count,
	reaction_count = EXCLUDED.reaction_count,
	ts = EXCLUDED.ts
`, msg.MessageID, msg.GuildID, msg.ChannelID, msg.AuthorID, msg.Content, msg.AttachmentCount, msg.ReactionCount, msg.Timestamp)
	metrics.ObserveNetworkRequest("postgres", "messages_upsert", "messages", start, err)
	return err
}

// ListYearsForDay возвращает отсортированный список лет, в которых есть
// сообщения за указанный день календаря; текущий год исключается на
// стороне запроса.
func (p *Postgres) ListYearsForDay(ctx context.Context, guildID string, month time.Month, day, excludeYear int) ([]int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT DISTINCT EXTRACT(YEAR FROM ts)::INT AS year
FROM messages
WHERE guild_id = $1
  AND EXTRACT(MONTH FROM ts) = $2
  AND EXTRACT(DAY FROM ts) = $3
  AND EXTRACT(YEAR FROM ts) <> $4
  AND LENGTH(content) > 3
ORDER BY year
`, guildID, int(month), day, excludeYear)
	metrics.ObserveNetworkRequest("postgres", "messages_years", "messages", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var year int
		if err := rows.Scan(&year); err != nil {
			return nil, err
		}
		years = append(years, year)
	}
	return years, rows.Err()
}

// ListForDayAndYear возвращает сообщения за день календаря в конкретном
// году, упорядоченные по времени.
func (p *Postgres) ListForDayAndYear(ctx context.Context, guildID string, month time.Month, day, year int) ([]domain.ArchivedMessage, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT message_id, guild_id, channel_id, author_id, content, attachment_count, reaction_count, ts
FROM messages
WHERE guild_id = $1
  AND EXTRACT(MONTH FROM ts) = $2
  AND EXTRACT(DAY FROM ts) = $3
  AND EXTRACT(YEAR FROM ts) = $4
  AND LENGTH(content) > 3
ORDER BY ts
`, guildID, int(month), day, year)
	metrics.ObserveNetworkRequest("postgres", "messages_for_day", "messages", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ArchivedMessage
	for rows.Next() {
		var m domain.ArchivedMessage
		if err := rows.Scan(&m.MessageID, &m.GuildID, &m.ChannelID, &m.AuthorID, &m.Content, &m.AttachmentCount, &m.ReactionCount, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetCrawlState реализует domain.CrawlStateRepo.
func (p *Postgres) GetCrawlState(ctx context.Context, guildID, channelID string) (domain.ChannelCrawlState, bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	state := domain.ChannelCrawlState{GuildID: guildID, ChannelID: channelID}
	var lastScraped *time.Time

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT fully_scraped, last_scraped_at, resume_cursor
FROM crawl_state
WHERE guild_id = $1 AND channel_id = $2
`, guildID, channelID).Scan(&state.FullyScraped, &lastScraped, &state.ResumeCursor)
	metrics.ObserveNetworkRequest("postgres", "crawl_state_get", "crawl_state", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ChannelCrawlState{}, false, nil
	}
	if err != nil {
		return domain.ChannelCrawlState{}, false, err
	}
	state.LastScrapedAt = lastScraped
	return state, true, nil
}

// SetCrawlState сохраняет состояние обхода канала.
func (p *Postgres) SetCrawlState(ctx context.Context, state domain.ChannelCrawlState) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO crawl_state (guild_id, channel_id, fully_scraped, last_scraped_at, resume_cursor)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (guild_id, channel_id) DO UPDATE SET
	fully_scraped = EXCLUDED.fully_scraped,
	last_scraped_at = EXCLUDED.last_scraped_at,
	resume_cursor = EXCLUDED.resume_cursor
`, state.GuildID, state.ChannelID, state.FullyScraped, state.LastScrapedAt, state.ResumeCursor)
	metrics.ObserveNetworkRequest("postgres", "crawl_state_set", "crawl_state", start, err)
	return err
}

// SaveReminder реализует domain.ReminderRepo. Повторный interaction id
// отклоняется как нарушение уникального ключа.
func (p *Postgres) SaveReminder(ctx context.Context, rec domain.ReminderRecord) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO reminders (interaction_id, user_id, guild_id, message, expires_at, attempts)
VALUES ($1, $2, $3, $4, $5, $6)
`, rec.InteractionID, rec.UserID, rec.GuildID, rec.Message, rec.ExpiresAt, rec.Attempts)
	metrics.ObserveNetworkRequest("postgres", "reminders_insert", "reminders", start, err)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrReminderExists
	}
	return err
}

// DeleteReminder удаляет запись по ключу взаимодействия.
func (p *Postgres) DeleteReminder(ctx context.Context, interactionID string) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM reminders WHERE interaction_id = $1`, interactionID)
	metrics.ObserveNetworkRequest("postgres", "reminders_delete", "reminders", start, err)
	return err
}

// SetReminderAttempts сохраняет счётчик неудачных доставок.
func (p *Postgres) SetReminderAttempts(ctx context.Context, interactionID string, attempts int) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE reminders SET attempts = $2 WHERE interaction_id = $1`, interactionID, attempts)
	metrics.ObserveNetworkRequest("postgres", "reminders_attempts", "reminders", start, err)
	return err
}

// ListExpiring возвращает напоминания со сроком до указанного момента,
// включая уже просроченные, упорядоченные по сроку.
func (p *Postgres) ListExpiring(ctx context.Context, until time.Time) ([]domain.ReminderRecord, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT interaction_id, user_id, guild_id, message, expires_at, attempts
FROM reminders
WHERE expires_at <= $1
ORDER BY expires_at
`, until)
	metrics.ObserveNetworkRequest("postgres", "reminders_expiring", "reminders", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReminderRecord
	for rows.Next() {
		var rec domain.ReminderRecord
		if err := rows.Scan(&rec.InteractionID, &rec.UserID, &rec.GuildID, &rec.Message, &rec.ExpiresAt, &rec.Attempts); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetGuildSettings возвращает настройки гильдии; отсутствие строки — не
// ошибка, а пустые настройки.
func (p *Postgres) GetGuildSettings(ctx context.Context, guildID string) (domain.GuildSettings, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	settings := domain.GuildSettings{GuildID: guildID}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT motd_channel_id, weighted_channel_id
FROM guild_settings
WHERE guild_id = $1
`, guildID).Scan(&settings.MotdChannelID, &settings.WeightedChannelID)
	metrics.ObserveNetworkRequest("postgres", "guild_settings_get", "guild_settings", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return settings, nil
	}
	if err != nil {
		return domain.GuildSettings{}, err
	}
	return settings, nil
}

// SetMotdChannel сохраняет канал ежедневной публикации.
func (p *Postgres) SetMotdChannel(ctx context.Context, guildID, channelID string) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO guild_settings (guild_id, motd_channel_id)
VALUES ($1, $2)
ON CONFLICT (guild_id) DO UPDATE SET motd_channel_id = EXCLUDED.motd_channel_id
`, guildID, channelID)
	metrics.ObserveNetworkRequest("postgres", "guild_settings_motd", "guild_settings", start, err)
	return err
}

// SetWeightedChannel сохраняет взвешенный канал для скоринга.
func (p *Postgres) SetWeightedChannel(ctx context.Context, guildID, channelID string) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO guild_settings (guild_id, weighted_channel_id)
VALUES ($1, $2)
ON CONFLICT (guild_id) DO UPDATE SET weighted_channel_id = EXCLUDED.weighted_channel_id
`, guildID, channelID)
	metrics.ObserveNetworkRequest("postgres", "guild_settings_weighted", "guild_settings", start, err)
	return err
}

// ListGuildsWithMotdChannel возвращает гильдии с настроенным каналом
// публикации.
func (p *Postgres) ListGuildsWithMotdChannel(ctx context.Context) ([]domain.GuildSettings, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT guild_id, motd_channel_id, weighted_channel_id
FROM guild_settings
WHERE motd_channel_id <> ''
`)
	metrics.ObserveNetworkRequest("postgres", "guild_settings_list", "guild_settings", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.GuildSettings
	for rows.Next() {
		var g domain.GuildSettings
		if err := rows.Scan(&g.GuildID, &g.MotdChannelID, &g.WeightedChannelID); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
