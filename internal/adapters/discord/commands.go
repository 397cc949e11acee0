package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"discord-otd-bot/internal/domain"
	"discord-otd-bot/internal/usecase/motd"
	"discord-otd-bot/internal/usecase/reminder"
)

// Summarizer строит краткую сводку последних сообщений канала.
type Summarizer interface {
	SummarizeChannel(ctx context.Context, channelID string) (string, error)
}

// Commands регистрирует и обрабатывает слэш-команды бота.
type Commands struct {
	log        zerolog.Logger
	session    *discordgo.Session
	reminders  *reminder.Service
	digests    *motd.Service
	notifier   domain.Notifier
	settings   domain.GuildConfigRepo
	summarizer Summarizer
}

// NewCommands создаёт обработчик слэш-команд.
func NewCommands(
	log zerolog.Logger,
	session *discordgo.Session,
	reminders *reminder.Service,
	digests *motd.Service,
	notifier domain.Notifier,
	settings domain.GuildConfigRepo,
	summarizer Summarizer,
) *Commands {
	return &Commands{
		log:        log.With().Str("component", "discord_commands").Logger(),
		session:    session,
		reminders:  reminders,
		digests:    digests,
		notifier:   notifier,
		settings:   settings,
		summarizer: summarizer,
	}
}

var adminOnly = int64(discordgo.PermissionAdministrator)

func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "remindme",
			Description: "Создать напоминание, придёт личным сообщением",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "Через сколько единиц времени",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "unit",
					Description: "Единица времени",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "секунды", Value: "s"},
						{Name: "минуты", Value: "m"},
						{Name: "часы", Value: "h"},
						{Name: "дни", Value: "d"},
						{Name: "месяцы", Value: "mo"},
						{Name: "годы", Value: "y"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message",
					Description: "Текст напоминания",
					Required:    true,
				},
			},
		},
		{
			Name:                     "postmotd",
			Description:              "Опубликовать дайджест этого дня прямо сейчас",
			DefaultMemberPermissions: &adminOnly,
		},
		{
			Name:                     "setmotdchannel",
			Description:              "Назначить канал для ежедневного дайджеста",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Канал публикации",
					Required:    true,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
			},
		},
		{
			Name:                     "setweightedchannel",
			Description:              "Назначить канал с повышенным весом в дайджесте",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Взвешенный канал",
					Required:    true,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
			},
		},
		{
			Name:                     "getweightedchannel",
			Description:              "Показать текущий взвешенный канал",
			DefaultMemberPermissions: &adminOnly,
		},
		{
			Name:        "tldr",
			Description: "Краткая сводка последних сообщений канала",
		},
	}
}

// Bind вешает обработчик интеракций. Вызывается до session.Open.
func (c *Commands) Bind() {
	c.session.AddHandler(c.onInteraction)
}

// Register публикует глобальные команды. Вызывается после session.Open,
// когда известен id приложения.
func (c *Commands) Register() error {
	appID := c.session.State.User.ID
	for _, def := range commandDefinitions() {
		if _, err := c.session.ApplicationCommandCreate(appID, "", def); err != nil {
			return fmt.Errorf("регистрация команды %s: %w", def.Name, err)
		}
	}
	return nil
}

func (c *Commands) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	ctx := context.Background()
	data := i.ApplicationCommandData()
	log := c.log.With().Str("command", data.Name).Str("guild_id", i.GuildID).Logger()

	var err error
	switch data.Name {
	case "remindme":
		err = c.handleRemindMe(ctx, i, data)
	case "postmotd":
		err = c.handlePostMotd(ctx, i)
	case "setmotdchannel":
		err = c.handleSetMotdChannel(ctx, s, i, data)
	case "setweightedchannel":
		err = c.handleSetWeightedChannel(ctx, s, i, data)
	case "getweightedchannel":
		err = c.handleGetWeightedChannel(ctx, i)
	case "tldr":
		err = c.handleTldr(ctx, i)
	default:
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("ошибка обработки команды")
	}
}

func (c *Commands) handleRemindMe(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	if i.Member == nil || i.Member.User == nil {
		return c.replyEphemeral(i, "Команда доступна только на сервере.")
	}

	var (
		amount  int64
		unit    string
		message string
	)
	for _, opt := range data.Options {
		switch opt.Name {
		case "amount":
			amount = opt.IntValue()
		case "unit":
			unit = opt.StringValue()
		case "message":
			message = opt.StringValue()
		}
	}

	rec, err := c.reminders.CreateReminder(ctx, i.Member.User.ID, i.GuildID, amount, unit, message, i.ID)
	switch {
	case errors.Is(err, reminder.ErrBadDuration):
		return c.replyEphemeral(i, "Не понимаю такой срок. Количество должно быть больше нуля, единицы: s, m, h, d, mo, y.")
	case errors.Is(err, domain.ErrReminderExists):
		return c.replyEphemeral(i, "Это напоминание уже создано.")
	case err != nil:
		return fmt.Errorf("создание напоминания: %w", err)
	}
	return c.replyEphemeral(i, fmt.Sprintf("Хорошо, напомню <t:%d:R>: %s", rec.ExpiresAt.Unix(), rec.Message))
}

func (c *Commands) handlePostMotd(ctx context.Context, i *discordgo.InteractionCreate) error {
	if err := c.deferEphemeral(i); err != nil {
		return err
	}

	cand, err := c.digests.DigestForDay(ctx, i.GuildID, time.Now().UTC())
	if err != nil {
		return c.editReply(i, "Не получилось собрать дайджест, попробуйте позже.")
	}
	if cand == nil {
		return c.editReply(i, "Сегодня в архиве ничего интересного не нашлось.")
	}
	if err := c.notifier.PostDigest(ctx, i.ChannelID, *cand); err != nil {
		c.log.Error().Err(err).Str("channel_id", i.ChannelID).Msg("публикация дайджеста по команде")
		return c.editReply(i, "Не удалось опубликовать дайджест в этом канале.")
	}
	return c.editReply(i, "Готово.")
}

func (c *Commands) handleSetMotdChannel(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	ch := data.Options[0].ChannelValue(s)
	if err := c.settings.SetMotdChannel(ctx, i.GuildID, ch.ID); err != nil {
		return fmt.Errorf("сохранение канала дайджеста: %w", err)
	}
	return c.replyEphemeral(i, fmt.Sprintf("Дайджест будет публиковаться в <#%s>.", ch.ID))
}

func (c *Commands) handleSetWeightedChannel(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	ch := data.Options[0].ChannelValue(s)
	if err := c.settings.SetWeightedChannel(ctx, i.GuildID, ch.ID); err != nil {
		return fmt.Errorf("сохранение взвешенного канала: %w", err)
	}
	return c.replyEphemeral(i, fmt.Sprintf("Сообщения из <#%s> получат повышенный вес.", ch.ID))
}

func (c *Commands) handleGetWeightedChannel(ctx context.Context, i *discordgo.InteractionCreate) error {
	settings, err := c.settings.GetGuildSettings(ctx, i.GuildID)
	if err != nil {
		return fmt.Errorf("чтение настроек гильдии: %w", err)
	}
	if settings.WeightedChannelID == "" {
		return c.replyEphemeral(i, "Взвешенный канал не настроен.")
	}
	return c.replyEphemeral(i, fmt.Sprintf("Взвешенный канал: <#%s>.", settings.WeightedChannelID))
}

func (c *Commands) handleTldr(ctx context.Context, i *discordgo.InteractionCreate) error {
	if c.summarizer == nil {
		return c.replyEphemeral(i, "Сводки отключены: не настроен ключ OpenAI.")
	}
	if err := c.deferEphemeral(i); err != nil {
		return err
	}

	summary, err := c.summarizer.SummarizeChannel(ctx, i.ChannelID)
	if err != nil {
		c.log.Error().Err(err).Str("channel_id", i.ChannelID).Msg("ошибка сводки канала")
		return c.editReply(i, "Не получилось собрать сводку, попробуйте позже.")
	}
	return c.editReply(i, summary)
}

func (c *Commands) replyEphemeral(i *discordgo.InteractionCreate, text string) error {
	return c.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func (c *Commands) deferEphemeral(i *discordgo.InteractionCreate) error {
	return c.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

func (c *Commands) editReply(i *discordgo.InteractionCreate, text string) error {
	_, err := c.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &text,
	})
	return err
}
