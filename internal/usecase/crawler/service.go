package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"discord-otd-bot/internal/domain"
	"discord-otd-bot/internal/infra/metrics"
)

// minContentRunes — сообщения короче не архивируются, если нет вложений.
const minContentRunes = 3

// Config задаёт расписание обхода.
type Config struct {
	Tick      time.Duration
	Cooldown  time.Duration
	PageSize  int
	PageDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = 5 * time.Minute
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 5 * time.Hour
	}
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	if c.PageDelay <= 0 {
		c.PageDelay = 500 * time.Millisecond
	}
	return c
}

// Service инкрементально архивирует историю каналов. Каждому каналу
// принадлежит собственный цикл; состояние обхода канала пишет только он,
// поэтому блокировок между циклами нет.
type Service struct {
	log     zerolog.Logger
	source  domain.MessageSource
	archive domain.MessageArchive
	states  domain.CrawlStateRepo
	cfg     Config
}

// NewService создаёт краулер.
func NewService(log zerolog.Logger, source domain.MessageSource, archive domain.MessageArchive, states domain.CrawlStateRepo, cfg Config) *Service {
	return &Service{
		log:     log,
		source:  source,
		archive: archive,
		states:  states,
		cfg:     cfg.withDefaults(),
	}
}

// Run принимает обнаруженные каналы и живые сообщения по явным каналам
// передачи: на каждый новый канал запускается цикл обхода, живые сообщения
// архивируются отдельной горутиной. Блокируется до отмены контекста.
func (s *Service) Run(ctx context.Context, channels <-chan domain.ChannelRef, events <-chan domain.RawMessage) {
	go s.ingest(ctx, events)

	started := make(map[string]struct{})
	for {
		select {
		case <-ctx.Done():
			return
		case ref, ok := <-channels:
			if !ok {
				<-ctx.Done()
				return
			}
			if _, dup := started[ref.ChannelID]; dup {
				continue
			}
			started[ref.ChannelID] = struct{}{}
			go s.watchChannel(ctx, ref)
		}
	}
}

// ingest архивирует сообщения, приходящие с шлюза в реальном времени.
func (s *Service) ingest(ctx context.Context, events <-chan domain.RawMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-events:
			if !ok {
				return
			}
			if err := s.archiveRaw(ctx, raw.GuildID, raw); err != nil {
				s.log.Error().Err(err).Str("message", raw.ID).Msg("crawler: не удалось заархивировать живое сообщение")
			}
		}
	}
}

func (s *Service) watchChannel(ctx context.Context, ref domain.ChannelRef) {
	chLog := s.log.With().Str("guild", ref.GuildID).Str("channel", ref.ChannelID).Logger()

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	for {
		s.scanIfDue(ctx, chLog, ref)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// scanIfDue проверяет право канала на скан: канал подходит, если его ещё
// не сканировали или с последнего успешного скана прошло больше окна
// охлаждения.
func (s *Service) scanIfDue(ctx context.Context, chLog zerolog.Logger, ref domain.ChannelRef) {
	state, found, err := s.states.GetCrawlState(ctx, ref.GuildID, ref.ChannelID)
	if err != nil {
		chLog.Error().Err(err).Msg("crawler: не удалось прочитать состояние обхода")
		return
	}
	if !found {
		state = domain.ChannelCrawlState{GuildID: ref.GuildID, ChannelID: ref.ChannelID}
	}
	if state.LastScrapedAt != nil && time.Since(*state.LastScrapedAt) < s.cfg.Cooldown {
		return
	}

	if state.FullyScraped {
		err = s.tailScan(ctx, ref, state)
	} else {
		err = s.fullScan(ctx, ref, state)
	}
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
	case errors.Is(err, domain.ErrNoAccess):
		metrics.CrawlerScanErrors.WithLabelValues("permission").Inc()
		chLog.Warn().Msg("crawler: нет доступа к каналу, пропускаем до следующего тика")
	default:
		metrics.CrawlerScanErrors.WithLabelValues("transient").Inc()
		chLog.Error().Err(err).Msg("crawler: скан прерван, повторим на следующем тике")
	}
}

// fullScan листает историю от текущего момента к началу. Курсор
// сохраняется после каждой успешной страницы, поэтому прерванный обход
// продолжается с места остановки, а не с нуля.
func (s *Service) fullScan(ctx context.Context, ref domain.ChannelRef, state domain.ChannelCrawlState) error {
	cursor := state.ResumeCursor
	for {
		batch, hasMore, err := s.source.FetchPage(ctx, ref.ChannelID, cursor, s.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("страница истории: %w", err)
		}
		metrics.CrawlerPagesTotal.Inc()
		if len(batch) == 0 {
			break
		}

		for _, raw := range batch {
			if err := s.archiveRaw(ctx, ref.GuildID, raw); err != nil {
				return fmt.Errorf("архивирование %s: %w", raw.ID, err)
			}
		}

		cursor = batch[len(batch)-1].ID
		state.ResumeCursor = cursor
		if err := s.states.SetCrawlState(ctx, state); err != nil {
			return fmt.Errorf("сохранение курсора: %w", err)
		}

		if len(batch) < s.cfg.PageSize || !hasMore {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.PageDelay):
		}
	}

	now := time.Now().UTC()
	state.FullyScraped = true
	state.LastScrapedAt = &now
	state.ResumeCursor = ""
	return s.states.SetCrawlState(ctx, state)
}

// tailScan выгружает только самую свежую страницу; признак полного обхода
// не меняется.
func (s *Service) tailScan(ctx context.Context, ref domain.ChannelRef, state domain.ChannelCrawlState) error {
	batch, _, err := s.source.FetchPage(ctx, ref.ChannelID, "", s.cfg.PageSize)
	if err != nil {
		return fmt.Errorf("хвостовая страница: %w", err)
	}
	metrics.CrawlerPagesTotal.Inc()
	for _, raw := range batch {
		if err := s.archiveRaw(ctx, ref.GuildID, raw); err != nil {
			return fmt.Errorf("архивирование %s: %w", raw.ID, err)
		}
	}

	now := time.Now().UTC()
	state.LastScrapedAt = &now
	return s.states.SetCrawlState(ctx, state)
}

// archiveRaw сохраняет сообщение, если оно проходит фильтр: не от бота и
// либо длиннее трёх символов, либо с вложениями.
func (s *Service) archiveRaw(ctx context.Context, guildID string, raw domain.RawMessage) error {
	if raw.AuthorIsBot {
		return nil
	}
	if utf8.RuneCountInString(raw.Content) <= minContentRunes && raw.AttachmentCount == 0 {
		return nil
	}
	msg := domain.ArchivedMessage{
		MessageID:       raw.ID,
		GuildID:         guildID,
		ChannelID:       raw.ChannelID,
		AuthorID:        raw.AuthorID,
		Content:         raw.Content,
		AttachmentCount: raw.AttachmentCount,
		ReactionCount:   raw.ReactionCount,
		Timestamp:       raw.Timestamp.UTC(),
	}
	if err := s.archive.UpsertMessage(ctx, msg); err != nil {
		return err
	}
	metrics.CrawlerMessagesArchived.Inc()
	return nil
}
