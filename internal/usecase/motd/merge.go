package motd

import (
	"sort"
	"time"

	"discord-otd-bot/internal/domain"
)

// mergeWindow — окно склейки многочастных сообщений. Окно привязано к
// первому сообщению группы, а не к предыдущему.
const mergeWindow = 7 * time.Minute

// MergeMultiPart склеивает последовательные сообщения одного автора в
// пределах окна в одного кандидата: содержимое соединяется через перенос
// строки, счётчики вложений и реакций суммируются, идентификаторы всех
// частей собираются для последующего поиска вложений.
func MergeMultiPart(messages []domain.ArchivedMessage) []domain.DigestCandidate {
	if len(messages) == 0 {
		return nil
	}

	sorted := append([]domain.ArchivedMessage(nil), messages...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var merged []domain.DigestCandidate
	i := 0
	for i < len(sorted) {
		first := sorted[i]
		group := []domain.ArchivedMessage{first}

		j := i + 1
		for j < len(sorted) {
			next := sorted[j]
			if next.AuthorID != first.AuthorID {
				break
			}
			if next.Timestamp.Sub(first.Timestamp) > mergeWindow {
				break
			}
			group = append(group, next)
			j++
		}

		merged = append(merged, collapse(group))
		i = j
	}
	return merged
}

func collapse(group []domain.ArchivedMessage) domain.DigestCandidate {
	first := group[0]
	cand := domain.DigestCandidate{
		MessageID:       first.MessageID,
		GuildID:         first.GuildID,
		ChannelID:       first.ChannelID,
		AuthorID:        first.AuthorID,
		Content:         first.Content,
		AttachmentCount: first.AttachmentCount,
		ReactionCount:   first.ReactionCount,
		Timestamp:       first.Timestamp,
		SourceIDs:       []string{first.MessageID},
	}
	for _, m := range group[1:] {
		cand.Content += "\n" + m.Content
		cand.AttachmentCount += m.AttachmentCount
		cand.ReactionCount += m.ReactionCount
		cand.SourceIDs = append(cand.SourceIDs, m.MessageID)
	}
	return cand
}
