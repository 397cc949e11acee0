package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"discord-otd-bot/internal/domain"
)

// Gateway слушает события шлюза Discord и транслирует их краулеру:
// текстовые каналы гильдий уходят в Channels, живые сообщения в Messages.
type Gateway struct {
	log      zerolog.Logger
	channels chan domain.ChannelRef
	messages chan domain.RawMessage
}

// NewGateway создаёт шлюз с буферизованными каналами.
func NewGateway(log zerolog.Logger) *Gateway {
	return &Gateway{
		log:      log.With().Str("component", "discord_gateway").Logger(),
		channels: make(chan domain.ChannelRef, 256),
		messages: make(chan domain.RawMessage, 1024),
	}
}

// Channels отдаёт поток каналов, обнаруженных при подключении к гильдиям.
func (g *Gateway) Channels() <-chan domain.ChannelRef { return g.channels }

// Messages отдаёт поток живых сообщений для архивации.
func (g *Gateway) Messages() <-chan domain.RawMessage { return g.messages }

// Bind вешает обработчики на сессию. Вызывается до session.Open.
func (g *Gateway) Bind(session *discordgo.Session) {
	session.AddHandler(g.onGuildCreate)
	session.AddHandler(g.onMessageCreate)
}

func (g *Gateway) onGuildCreate(_ *discordgo.Session, e *discordgo.GuildCreate) {
	for _, ch := range e.Channels {
		if ch.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		ref := domain.ChannelRef{GuildID: e.ID, ChannelID: ch.ID, Name: ch.Name}
		select {
		case g.channels <- ref:
		default:
			g.log.Warn().Str("channel_id", ch.ID).Msg("очередь каналов переполнена, канал пропущен")
		}
	}
}

func (g *Gateway) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.GuildID == "" {
		return
	}
	raw := rawFromMessage(m.Message)
	select {
	case g.messages <- raw:
	default:
		g.log.Warn().Str("message_id", m.ID).Msg("очередь сообщений переполнена, сообщение пропущено")
	}
}
