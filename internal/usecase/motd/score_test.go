package motd

import (
	"math"
	"testing"

	"discord-otd-bot/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestWordCount(t *testing.T) {
	cases := map[string]int{
		"This has four words http://x.gif <@123>": 4,
		"don't worry":                   2,
		"12345 777":                     0,
		"https://example.com www.ya.ru": 0,
		"":                              0,
		"привет мир":                    0,
	}
	for input, expected := range cases {
		if got := WordCount(input); got != expected {
			t.Fatalf("ожидали %d слов для %q, получили %d", expected, input, got)
		}
	}
}

func TestMediaLinkCount(t *testing.T) {
	cases := map[string]int{
		"https://imgur.com/a/xyz и https://files.example.com/cat.gif": 2,
		"https://example.com/page": 0,
		"https://youtu.be/abc":     1,
	}
	for input, expected := range cases {
		if got := MediaLinkCount(input); got != expected {
			t.Fatalf("ожидали %d медиассылок для %q, получили %d", expected, input, got)
		}
	}
}

func TestMentionCount(t *testing.T) {
	if got := MentionCount("привет <@111> и <@!222>"); got != 2 {
		t.Fatalf("ожидали 2 упоминания, получили %d", got)
	}
}

func TestInterestingnessDeterministic(t *testing.T) {
	w := DefaultWeights()
	cand := domain.DigestCandidate{
		ChannelID:       "c1",
		Content:         "This has four words http://x.gif <@123>",
		AttachmentCount: 1,
	}

	// 4 слова, вложение плюс медиассылка, одно упоминание
	expected := 4*0.35 + (1+1)*2.5 + 1*0.3
	got := w.Interestingness(cand, "")
	if !almostEqual(got, expected) {
		t.Fatalf("ожидали балл %f, получили %f", expected, got)
	}
	if again := w.Interestingness(cand, ""); !almostEqual(again, got) {
		t.Fatalf("балл недетерминирован: %f и %f", got, again)
	}
}

func TestInterestingnessCountsReactions(t *testing.T) {
	w := DefaultWeights()
	cand := domain.DigestCandidate{Content: "hello world", ReactionCount: 4}

	expected := 2*0.35 + 4*0.25
	if got := w.Interestingness(cand, ""); !almostEqual(got, expected) {
		t.Fatalf("ожидали балл %f, получили %f", expected, got)
	}
}

func TestInterestingnessWeightedChannelMultiplies(t *testing.T) {
	w := DefaultWeights()
	cand := domain.DigestCandidate{
		ChannelID:       "weighted",
		Content:         "This has four words http://x.gif <@123>",
		AttachmentCount: 1,
	}

	base := w.Interestingness(cand, "")
	boosted := w.Interestingness(cand, "weighted")
	if !almostEqual(boosted, base*3.5) {
		t.Fatalf("ожидали умножение балла на 3.5: %f и %f", base, boosted)
	}
	if almostEqual(boosted, base+3.5) {
		t.Fatalf("множитель канала не должен быть слагаемым")
	}

	other := w.Interestingness(cand, "another")
	if !almostEqual(other, base) {
		t.Fatalf("чужой взвешенный канал не должен менять балл: %f и %f", base, other)
	}
}
