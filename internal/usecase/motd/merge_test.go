package motd

import (
	"testing"
	"time"

	"discord-otd-bot/internal/domain"
)

func archived(id, author string, at time.Time, content string) domain.ArchivedMessage {
	return domain.ArchivedMessage{
		MessageID: id,
		GuildID:   "g1",
		ChannelID: "c1",
		AuthorID:  author,
		Content:   content,
		Timestamp: at,
	}
}

func TestMergeMultiPartWindowAnchoredToFirst(t *testing.T) {
	base := time.Date(2019, time.March, 14, 10, 0, 0, 0, time.UTC)
	messages := []domain.ArchivedMessage{
		archived("1", "alice", base, "часть один"),
		archived("2", "alice", base.Add(4*time.Minute), "часть два"),
		archived("3", "alice", base.Add(6*time.Minute+54*time.Second), "часть три"),
		archived("4", "alice", base.Add(8*time.Minute), "уже отдельно"),
	}

	merged := MergeMultiPart(messages)
	if len(merged) != 2 {
		t.Fatalf("ожидали 2 кандидатов, получили %d", len(merged))
	}
	if merged[0].Content != "часть один\nчасть два\nчасть три" {
		t.Fatalf("ожидали склейку через перенос строки, получили %q", merged[0].Content)
	}
	if len(merged[0].SourceIDs) != 3 {
		t.Fatalf("ожидали 3 исходных id, получили %v", merged[0].SourceIDs)
	}
	if merged[1].MessageID != "4" {
		t.Fatalf("сообщение на восьмой минуте не должно попасть в группу")
	}
}

func TestMergeMultiPartDifferentAuthors(t *testing.T) {
	base := time.Date(2019, time.March, 14, 10, 0, 0, 0, time.UTC)
	messages := []domain.ArchivedMessage{
		archived("1", "alice", base, "от алисы"),
		archived("2", "bob", base.Add(time.Minute), "от боба"),
	}

	merged := MergeMultiPart(messages)
	if len(merged) != 2 {
		t.Fatalf("разные авторы не склеиваются: ожидали 2, получили %d", len(merged))
	}
}

func TestMergeMultiPartSortsByTimestamp(t *testing.T) {
	base := time.Date(2019, time.March, 14, 10, 0, 0, 0, time.UTC)
	messages := []domain.ArchivedMessage{
		archived("2", "alice", base.Add(2*time.Minute), "вторая"),
		archived("1", "alice", base, "первая"),
	}

	merged := MergeMultiPart(messages)
	if len(merged) != 1 {
		t.Fatalf("ожидали 1 кандидата, получили %d", len(merged))
	}
	if merged[0].MessageID != "1" {
		t.Fatalf("якорем группы должно быть раннее сообщение")
	}
	if merged[0].Content != "первая\nвторая" {
		t.Fatalf("части должны идти в хронологическом порядке: %q", merged[0].Content)
	}
}

func TestMergeMultiPartSumsCounters(t *testing.T) {
	base := time.Date(2019, time.March, 14, 10, 0, 0, 0, time.UTC)
	first := archived("1", "alice", base, "с файлом")
	first.AttachmentCount = 1
	first.ReactionCount = 2
	second := archived("2", "alice", base.Add(time.Minute), "и ещё одним")
	second.AttachmentCount = 2
	second.ReactionCount = 1

	merged := MergeMultiPart([]domain.ArchivedMessage{first, second})
	if len(merged) != 1 {
		t.Fatalf("ожидали 1 кандидата, получили %d", len(merged))
	}
	if merged[0].AttachmentCount != 3 || merged[0].ReactionCount != 3 {
		t.Fatalf("счётчики должны суммироваться: %+v", merged[0])
	}
}

func TestMergeMultiPartEmpty(t *testing.T) {
	if got := MergeMultiPart(nil); got != nil {
		t.Fatalf("для пустого входа ожидали nil, получили %v", got)
	}
}
