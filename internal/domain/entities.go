package domain

import "time"

// ArchivedMessage описывает сообщение канала, сохранённое краулером.
// Запись неизменяема: повторное сохранение того же message id полностью
// перезаписывает строку.
type ArchivedMessage struct {
	MessageID       string
	GuildID         string
	ChannelID       string
	AuthorID        string
	Content         string
	AttachmentCount int
	ReactionCount   int
	Timestamp       time.Time
}

// RawMessage представляет сообщение из источника до фильтрации краулером.
type RawMessage struct {
	ID              string
	GuildID         string
	ChannelID       string
	AuthorID        string
	AuthorIsBot     bool
	Content         string
	AttachmentCount int
	ReactionCount   int
	Timestamp       time.Time
}

// ChannelRef идентифицирует канал, переданный краулеру на обход.
type ChannelRef struct {
	GuildID   string
	ChannelID string
	Name      string
}

// ChannelCrawlState хранит прогресс обхода одного канала.
// Канал находится ровно в одном из трёх состояний: не обойдён
// (FullyScraped=false, курсор пуст), обход в процессе (курсор продвигается),
// хвостовой режим (FullyScraped=true).
type ChannelCrawlState struct {
	GuildID       string
	ChannelID     string
	FullyScraped  bool
	LastScrapedAt *time.Time
	ResumeCursor  string
}

// DigestCandidate — склеенная группа сообщений одного автора за короткое
// окно. Живёт только на время одной выборки дайджеста, не сохраняется.
type DigestCandidate struct {
	MessageID       string
	GuildID         string
	ChannelID       string
	AuthorID        string
	Content         string
	AttachmentCount int
	ReactionCount   int
	Timestamp       time.Time
	SourceIDs       []string
	Interestingness float64
}

// ReminderRecord описывает напоминание пользователя.
// InteractionID уникален и служит ключом дедупликации и удаления.
type ReminderRecord struct {
	InteractionID string
	UserID        string
	GuildID       string
	Message       string
	ExpiresAt     time.Time
	Attempts      int
}

// GuildSettings хранит настройки MOTD для гильдии.
type GuildSettings struct {
	GuildID           string
	MotdChannelID     string
	WeightedChannelID string
}
