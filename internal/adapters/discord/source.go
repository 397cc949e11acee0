package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"discord-otd-bot/internal/domain"
	"discord-otd-bot/internal/infra/metrics"
)

// Source реализует domain.MessageSource поверх REST API Discord.
type Source struct {
	session *discordgo.Session
}

var _ domain.MessageSource = (*Source)(nil)

// NewSource создаёт источник сообщений.
func NewSource(session *discordgo.Session) *Source {
	return &Source{session: session}
}

// FetchPage выгружает страницу истории канала от новых к старым. Пустой
// beforeID означает самую свежую страницу. Отказ в доступе (403)
// оборачивается в domain.ErrNoAccess.
func (s *Source) FetchPage(ctx context.Context, channelID, beforeID string, limit int) ([]domain.RawMessage, bool, error) {
	start := time.Now()
	msgs, err := s.session.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
	metrics.ObserveNetworkRequest("discord", "channel_messages", channelID, start, err)
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden {
			return nil, false, fmt.Errorf("%w: %s", domain.ErrNoAccess, channelID)
		}
		return nil, false, fmt.Errorf("история канала %s: %w", channelID, err)
	}

	out := make([]domain.RawMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, rawFromMessage(m))
	}
	return out, len(msgs) == limit, nil
}

func rawFromMessage(m *discordgo.Message) domain.RawMessage {
	reactions := 0
	for _, r := range m.Reactions {
		reactions += r.Count
	}
	raw := domain.RawMessage{
		ID:              m.ID,
		GuildID:         m.GuildID,
		ChannelID:       m.ChannelID,
		Content:         m.Content,
		AttachmentCount: len(m.Attachments),
		ReactionCount:   reactions,
		Timestamp:       m.Timestamp,
	}
	if m.Author != nil {
		raw.AuthorID = m.Author.ID
		raw.AuthorIsBot = m.Author.Bot
	}
	return raw
}
