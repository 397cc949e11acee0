package summarizer

import (
	"strings"
	"testing"
	"time"

	"discord-otd-bot/internal/domain"
)

func TestBuildTranscriptChronological(t *testing.T) {
	base := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	msgs := []domain.RawMessage{
		{ID: "3", AuthorID: "bob", Content: "позднее", Timestamp: base.Add(2 * time.Minute)},
		{ID: "2", AuthorID: "bot", AuthorIsBot: true, Content: "шум от бота", Timestamp: base.Add(time.Minute)},
		{ID: "1", AuthorID: "alice", Content: "раннее", Timestamp: base},
	}

	got := buildTranscript(msgs)
	if strings.Contains(got, "шум от бота") {
		t.Fatalf("сообщения ботов не должны попадать в сводку: %q", got)
	}
	early := strings.Index(got, "раннее")
	late := strings.Index(got, "позднее")
	if early < 0 || late < 0 || early > late {
		t.Fatalf("переписка должна идти в хронологическом порядке: %q", got)
	}
}

func TestBuildTranscriptEmpty(t *testing.T) {
	msgs := []domain.RawMessage{
		{ID: "1", AuthorID: "bot", AuthorIsBot: true, Content: "только бот"},
		{ID: "2", AuthorID: "alice", Content: "   "},
	}
	if got := buildTranscript(msgs); got != "" {
		t.Fatalf("ожидали пустую переписку, получили %q", got)
	}
}
