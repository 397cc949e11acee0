package motd

import (
	"regexp"
	"strings"

	"discord-otd-bot/internal/domain"
)

// Weights задают вклад каждого признака в интересность кандидата.
type Weights struct {
	Word          float64
	Attachment    float64
	Mention       float64
	Reaction      float64
	ChannelFactor float64
}

// DefaultWeights возвращает стабильные значения по умолчанию.
func DefaultWeights() Weights {
	return Weights{
		Word:          0.35,
		Attachment:    2.5,
		Mention:       0.3,
		Reaction:      0.25,
		ChannelFactor: 3.5,
	}
}

var (
	mediaLinkRegex = regexp.MustCompile(`(?i)https?://(?:[^\s]+?\.(?:gif|mp3|mp4|png|jpg|jpeg|webm)|(?:www\.)?(?:reddit\.com|v\.redd\.it|imgur\.com|gfycat\.com|tenor\.com|youtube\.com|youtu\.be)[^\s]*)`)
	mentionRegex   = regexp.MustCompile(`<@!?\d+>`)
	wordRegex      = regexp.MustCompile(`^[a-zA-Z]+(?:'[a-zA-Z]+)?$`)
)

// WordCount считает алфавитные токены, не являющиеся ссылками или
// упоминаниями. Токен должен состоять только из букв, допускается
// внутренний апостроф.
func WordCount(content string) int {
	count := 0
	for _, token := range strings.Fields(content) {
		lower := strings.ToLower(token)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "www.") {
			continue
		}
		if mentionRegex.MatchString(token) {
			continue
		}
		if wordRegex.MatchString(token) {
			count++
		}
	}
	return count
}

// MediaLinkCount считает ссылки на медиафайлы и известные медиахостинги.
func MediaLinkCount(content string) int {
	return len(mediaLinkRegex.FindAllString(content, -1))
}

// MentionCount считает упоминания пользователей вида <@id> и <@!id>.
func MentionCount(content string) int {
	return len(mentionRegex.FindAllString(content, -1))
}

// Interestingness вычисляет балл кандидата. Попадание в взвешенный канал
// умножает итог, а не прибавляется к нему.
func (w Weights) Interestingness(cand domain.DigestCandidate, weightedChannelID string) float64 {
	score := float64(WordCount(cand.Content))*w.Word +
		float64(cand.AttachmentCount+MediaLinkCount(cand.Content))*w.Attachment +
		float64(MentionCount(cand.Content))*w.Mention +
		float64(cand.ReactionCount)*w.Reaction

	if weightedChannelID != "" && cand.ChannelID == weightedChannelID {
		score *= w.ChannelFactor
	}
	return score
}
