package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNoAccess возвращается источником, если у бота нет прав читать канал.
var ErrNoAccess = errors.New("нет доступа к каналу")

// ErrReminderExists возвращается при повторном interaction id.
var ErrReminderExists = errors.New("напоминание с таким interaction id уже существует")

// MessageSource выгружает страницы истории канала, от новых к старым.
// Пустой beforeID означает «самая свежая страница». Второй результат
// сообщает, остались ли ещё страницы.
type MessageSource interface {
	FetchPage(ctx context.Context, channelID, beforeID string, limit int) ([]RawMessage, bool, error)
}

// MessageArchive хранит архив сообщений.
type MessageArchive interface {
	UpsertMessage(ctx context.Context, msg ArchivedMessage) error
	ListYearsForDay(ctx context.Context, guildID string, month time.Month, day, excludeYear int) ([]int, error)
	ListForDayAndYear(ctx context.Context, guildID string, month time.Month, day, year int) ([]ArchivedMessage, error)
}

// CrawlStateRepo хранит состояние обхода каналов. Каждой строкой владеет
// ровно один цикл краулера.
type CrawlStateRepo interface {
	GetCrawlState(ctx context.Context, guildID, channelID string) (ChannelCrawlState, bool, error)
	SetCrawlState(ctx context.Context, state ChannelCrawlState) error
}

// ReminderRepo управляет напоминаниями.
type ReminderRepo interface {
	SaveReminder(ctx context.Context, rec ReminderRecord) error
	DeleteReminder(ctx context.Context, interactionID string) error
	SetReminderAttempts(ctx context.Context, interactionID string, attempts int) error
	ListExpiring(ctx context.Context, until time.Time) ([]ReminderRecord, error)
}

// GuildConfigRepo управляет настройками гильдий.
type GuildConfigRepo interface {
	GetGuildSettings(ctx context.Context, guildID string) (GuildSettings, error)
	SetMotdChannel(ctx context.Context, guildID, channelID string) error
	SetWeightedChannel(ctx context.Context, guildID, channelID string) error
	ListGuildsWithMotdChannel(ctx context.Context) ([]GuildSettings, error)
}

// Notifier доставляет исходящие сообщения: напоминания, дайджесты и
// служебные тексты.
type Notifier interface {
	Notify(ctx context.Context, rec ReminderRecord) error
	PostDigest(ctx context.Context, channelID string, cand DigestCandidate) error
	SendText(ctx context.Context, channelID, text string) error
}

// Cache используется для простых TTL-замков.
type Cache interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}
