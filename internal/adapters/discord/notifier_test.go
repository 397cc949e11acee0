package discord

import (
	"strings"
	"testing"
	"time"

	"discord-otd-bot/internal/domain"
)

func TestFormatDigest(t *testing.T) {
	cand := domain.DigestCandidate{
		MessageID: "m1",
		GuildID:   "g1",
		ChannelID: "c1",
		AuthorID:  "u1",
		Content:   "привет из прошлого",
		Timestamp: time.Date(2019, time.March, 14, 10, 0, 0, 0, time.UTC),
	}

	out := formatDigest(cand)
	if !strings.Contains(out, "2019") {
		t.Fatalf("ожидали год в заголовке: %q", out)
	}
	if !strings.Contains(out, "<@u1>") {
		t.Fatalf("ожидали упоминание автора: %q", out)
	}
	if !strings.Contains(out, "привет из прошлого") {
		t.Fatalf("ожидали содержимое сообщения: %q", out)
	}
	if !strings.Contains(out, "https://discord.com/channels/g1/c1/m1") {
		t.Fatalf("ожидали ссылку на оригинал: %q", out)
	}
}
