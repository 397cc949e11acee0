package motd

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"discord-otd-bot/internal/domain"
)

type passCache struct {
	keys []string
}

func (c *passCache) Once(_ context.Context, key string, _ time.Duration, fn func() error) error {
	c.keys = append(c.keys, key)
	return fn()
}

type recordingNotifier struct {
	digests []string
	texts   []string
}

func (n *recordingNotifier) Notify(context.Context, domain.ReminderRecord) error { return nil }

func (n *recordingNotifier) PostDigest(_ context.Context, channelID string, _ domain.DigestCandidate) error {
	n.digests = append(n.digests, channelID)
	return nil
}

func (n *recordingNotifier) SendText(_ context.Context, channelID, _ string) error {
	n.texts = append(n.texts, channelID)
	return nil
}

func TestUntilNextRun(t *testing.T) {
	morning := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)
	if got := untilNextRun(morning, 12); got != 3*time.Hour {
		t.Fatalf("ожидали 3 часа до публикации, получили %v", got)
	}

	evening := time.Date(2026, time.March, 14, 15, 0, 0, 0, time.UTC)
	if got := untilNextRun(evening, 12); got != 21*time.Hour {
		t.Fatalf("после часа публикации ждём следующего дня, получили %v", got)
	}

	exact := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	if got := untilNextRun(exact, 12); got != 24*time.Hour {
		t.Fatalf("ровно в час публикации ждём сутки, получили %v", got)
	}
}

func TestPostAllPostsPerGuildOnce(t *testing.T) {
	archive := &stubArchive{
		years: []int{2020},
		byYear: map[int][]domain.ArchivedMessage{
			2020: {archived("1", "alice", time.Date(2020, time.September, 1, 9, 0, 0, 0, time.UTC), "interesting enough words here")},
		},
	}
	settings := &listSettings{guilds: []domain.GuildSettings{
		{GuildID: "g1", MotdChannelID: "chan1"},
	}}
	notifier := &recordingNotifier{}
	cache := &passCache{}
	service := newTestService(archive, &stubSettings{})
	service.pickYear = func(int) int { return 0 }
	poster := NewPoster(zerolog.Nop(), service, settings, notifier, cache, 12)

	poster.postAll(context.Background())
	if len(notifier.digests) != 1 || notifier.digests[0] != "chan1" {
		t.Fatalf("ожидали публикацию в настроенный канал, получили %v", notifier.digests)
	}
	if len(cache.keys) != 1 {
		t.Fatalf("публикация должна идти через суточный замок")
	}
}

func TestPostAllSendsPlaceholderWhenEmpty(t *testing.T) {
	archive := &stubArchive{}
	settings := &listSettings{guilds: []domain.GuildSettings{
		{GuildID: "g1", MotdChannelID: "chan1"},
	}}
	notifier := &recordingNotifier{}
	service := newTestService(archive, &stubSettings{})
	poster := NewPoster(zerolog.Nop(), service, settings, notifier, &passCache{}, 12)

	poster.postAll(context.Background())
	if len(notifier.digests) != 0 {
		t.Fatalf("при пустом архиве дайджест не публикуется")
	}
	if len(notifier.texts) != 1 || notifier.texts[0] != "chan1" {
		t.Fatalf("при пустом архиве отправляется текстовая заглушка: %v", notifier.texts)
	}
}

type listSettings struct {
	guilds []domain.GuildSettings
}

func (s *listSettings) GetGuildSettings(context.Context, string) (domain.GuildSettings, error) {
	return domain.GuildSettings{}, nil
}
func (s *listSettings) SetMotdChannel(context.Context, string, string) error     { return nil }
func (s *listSettings) SetWeightedChannel(context.Context, string, string) error { return nil }
func (s *listSettings) ListGuildsWithMotdChannel(context.Context) ([]domain.GuildSettings, error) {
	return s.guilds, nil
}
