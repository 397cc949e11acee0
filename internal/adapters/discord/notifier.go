package discord

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"discord-otd-bot/internal/domain"
	"discord-otd-bot/internal/infra/metrics"
)

// webhookName — имя вебхука, через который публикуются дайджесты.
// Бот ищет свой вебхук по имени и создаёт при отсутствии.
const webhookName = "OnThisDayWebhook"

// maxDigestFiles ограничивает число файлов, переносимых в дайджест.
const maxDigestFiles = 10

// Notifier реализует domain.Notifier поверх Discord: личные сообщения
// для напоминаний и вебхуки для дайджестов.
type Notifier struct {
	log     zerolog.Logger
	session *discordgo.Session
	httpc   *http.Client
}

var _ domain.Notifier = (*Notifier)(nil)

// NewNotifier создаёт отправителя уведомлений.
func NewNotifier(log zerolog.Logger, session *discordgo.Session) *Notifier {
	return &Notifier{
		log:     log.With().Str("component", "discord_notifier").Logger(),
		session: session,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Notify доставляет напоминание личным сообщением пользователю.
func (n *Notifier) Notify(ctx context.Context, rec domain.ReminderRecord) error {
	start := time.Now()
	ch, err := n.session.UserChannelCreate(rec.UserID, discordgo.WithContext(ctx))
	metrics.ObserveNetworkRequest("discord", "user_channel_create", rec.UserID, start, err)
	if err != nil {
		return fmt.Errorf("открытие DM с %s: %w", rec.UserID, err)
	}

	text := fmt.Sprintf("⏰ Напоминание: %s", rec.Message)
	start = time.Now()
	_, err = n.session.ChannelMessageSend(ch.ID, text, discordgo.WithContext(ctx))
	metrics.ObserveNetworkRequest("discord", "channel_message_send", ch.ID, start, err)
	if err != nil {
		return fmt.Errorf("отправка напоминания %s: %w", rec.InteractionID, err)
	}
	return nil
}

// SendText отправляет обычное текстовое сообщение в канал.
func (n *Notifier) SendText(ctx context.Context, channelID, text string) error {
	start := time.Now()
	_, err := n.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	metrics.ObserveNetworkRequest("discord", "channel_message_send", channelID, start, err)
	if err != nil {
		return fmt.Errorf("отправка в канал %s: %w", channelID, err)
	}
	return nil
}

// PostDigest публикует дайджест через вебхук. Вложения исходных сообщений
// перекачиваются и прикрепляются заново, чтобы дайджест пережил удаление
// оригиналов.
func (n *Notifier) PostDigest(ctx context.Context, channelID string, cand domain.DigestCandidate) error {
	wh, err := n.ensureWebhook(ctx, channelID)
	if err != nil {
		return err
	}

	params := &discordgo.WebhookParams{
		Username:        fmt.Sprintf("В этот день в %d", cand.Timestamp.Year()),
		Content:         formatDigest(cand),
		Files:           n.collectFiles(ctx, cand),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}

	start := time.Now()
	_, err = n.session.WebhookExecute(wh.ID, wh.Token, true, params, discordgo.WithContext(ctx))
	metrics.ObserveNetworkRequest("discord", "webhook_execute", channelID, start, err)
	if err != nil {
		return fmt.Errorf("публикация дайджеста в %s: %w", channelID, err)
	}
	return nil
}

func (n *Notifier) ensureWebhook(ctx context.Context, channelID string) (*discordgo.Webhook, error) {
	start := time.Now()
	hooks, err := n.session.ChannelWebhooks(channelID, discordgo.WithContext(ctx))
	metrics.ObserveNetworkRequest("discord", "channel_webhooks", channelID, start, err)
	if err != nil {
		return nil, fmt.Errorf("список вебхуков %s: %w", channelID, err)
	}
	for _, h := range hooks {
		if h.Name == webhookName && h.Token != "" {
			return h, nil
		}
	}

	start = time.Now()
	wh, err := n.session.WebhookCreate(channelID, webhookName, "", discordgo.WithContext(ctx))
	metrics.ObserveNetworkRequest("discord", "webhook_create", channelID, start, err)
	if err != nil {
		return nil, fmt.Errorf("создание вебхука в %s: %w", channelID, err)
	}
	return wh, nil
}

func formatDigest(cand domain.DigestCandidate) string {
	jump := fmt.Sprintf("https://discord.com/channels/%s/%s/%s", cand.GuildID, cand.ChannelID, cand.MessageID)
	return fmt.Sprintf("**В этот день в %d году <@%s> писал(а):**\n\n%s\n\n[оригинал](%s)",
		cand.Timestamp.Year(), cand.AuthorID, cand.Content, jump)
}

// collectFiles скачивает вложения исходных сообщений группы. Ошибки не
// фатальны: дайджест публикуется и без части файлов.
func (n *Notifier) collectFiles(ctx context.Context, cand domain.DigestCandidate) []*discordgo.File {
	var files []*discordgo.File
	for _, id := range cand.SourceIDs {
		if len(files) >= maxDigestFiles {
			break
		}
		msg, err := n.session.ChannelMessage(cand.ChannelID, id, discordgo.WithContext(ctx))
		if err != nil {
			n.log.Warn().Err(err).Str("message_id", id).Msg("исходное сообщение недоступно, вложения пропущены")
			continue
		}
		for _, att := range msg.Attachments {
			if len(files) >= maxDigestFiles {
				break
			}
			f, err := n.downloadAttachment(ctx, att)
			if err != nil {
				n.log.Warn().Err(err).Str("attachment", att.Filename).Msg("не удалось скачать вложение")
				continue
			}
			files = append(files, f)
		}
	}
	return files
}

func (n *Notifier) downloadAttachment(ctx context.Context, att *discordgo.MessageAttachment) (*discordgo.File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := n.httpc.Do(req)
	metrics.ObserveNetworkRequest("discord", "attachment_download", att.Filename, start, err)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("статус %d для %s", resp.StatusCode, att.URL)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &discordgo.File{
		Name:        att.Filename,
		ContentType: att.ContentType,
		Reader:      bytes.NewReader(data),
	}, nil
}
