package motd

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"discord-otd-bot/internal/domain"
	"discord-otd-bot/internal/infra/metrics"
)

// Service реализует выбор «сообщения этого дня»: собирает архивные
// сообщения с совпадающим днём календаря, склеивает многочастные и
// выбирает самое интересное.
type Service struct {
	log      zerolog.Logger
	archive  domain.MessageArchive
	settings domain.GuildConfigRepo
	weights  Weights
	pickYear func(n int) int
}

// NewService создаёт сервис дайджестов.
func NewService(log zerolog.Logger, archive domain.MessageArchive, settings domain.GuildConfigRepo, weights Weights) *Service {
	return &Service{
		log:      log,
		archive:  archive,
		settings: settings,
		weights:  weights,
		pickYear: rand.Intn,
	}
}

// DigestForDay возвращает лучшего кандидата за календарный день day из
// одного случайно выбранного года (равномерно по годам с совпадениями,
// текущий год исключается). Пустой архив за этот день — нормальный
// результат: возвращается nil без ошибки.
func (s *Service) DigestForDay(ctx context.Context, guildID string, day time.Time) (*domain.DigestCandidate, error) {
	start := time.Now()
	defer func() {
		metrics.DigestBuildSeconds.Observe(time.Since(start).Seconds())
	}()

	day = day.UTC()
	years, err := s.archive.ListYearsForDay(ctx, guildID, day.Month(), day.Day(), day.Year())
	if err != nil {
		return nil, fmt.Errorf("выборка годов: %w", err)
	}
	if len(years) == 0 {
		return nil, nil
	}
	year := years[s.pickYear(len(years))]

	messages, err := s.archive.ListForDayAndYear(ctx, guildID, day.Month(), day.Day(), year)
	if err != nil {
		return nil, fmt.Errorf("выборка сообщений за %d: %w", year, err)
	}
	if len(messages) == 0 {
		return nil, nil
	}

	merged := MergeMultiPart(messages)

	st, err := s.settings.GetGuildSettings(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("настройки гильдии: %w", err)
	}

	best := -1
	for i := range merged {
		merged[i].Interestingness = s.weights.Interestingness(merged[i], st.WeightedChannelID)
		if best < 0 || merged[i].Interestingness > merged[best].Interestingness {
			best = i
		}
	}

	winner := merged[best]
	s.log.Debug().
		Str("guild", guildID).
		Int("year", year).
		Int("candidates", len(merged)).
		Float64("interestingness", winner.Interestingness).
		Msg("motd: кандидат выбран")
	return &winner, nil
}
