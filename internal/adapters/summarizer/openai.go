package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"discord-otd-bot/internal/domain"
	"discord-otd-bot/internal/infra/openai"
)

const (
	systemPrompt = "Ты помощник Discord-сервера. Кратко перескажи переписку на русском языке: " +
		"3-6 пунктов, по существу, без вступлений. Упоминай авторов по нику в угловых скобках."

	defaultPage   = 100
	maxTranscript = 12000
)

// chatClient — часть клиента OpenAI, нужная сводкам.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI строит сводку последних сообщений канала через Chat Completions.
type OpenAI struct {
	log    zerolog.Logger
	client chatClient
	source domain.MessageSource
	model  string
}

// NewOpenAI создаёт суммаризатор.
func NewOpenAI(log zerolog.Logger, client *openai.Client, source domain.MessageSource, model string) *OpenAI {
	return &OpenAI{
		log:    log.With().Str("component", "summarizer").Logger(),
		client: client,
		source: source,
		model:  model,
	}
}

// SummarizeChannel выгружает последнюю страницу истории и пересказывает её.
func (s *OpenAI) SummarizeChannel(ctx context.Context, channelID string) (string, error) {
	msgs, _, err := s.source.FetchPage(ctx, channelID, "", defaultPage)
	if err != nil {
		return "", fmt.Errorf("история для сводки: %w", err)
	}

	transcript := buildTranscript(msgs)
	if transcript == "" {
		return "В канале нет свежих сообщений для сводки.", nil
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: systemPrompt},
			{Role: openai.RoleUser, Content: transcript},
		},
		Temperature: 0.3,
		MaxTokens:   700,
	})
	if err != nil {
		return "", fmt.Errorf("запрос сводки: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("пустой ответ модели")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// buildTranscript собирает переписку в хронологическом порядке. Страница
// истории приходит от новых к старым, поэтому обходим её с конца.
func buildTranscript(msgs []domain.RawMessage) string {
	var b strings.Builder
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.AuthorIsBot || strings.TrimSpace(m.Content) == "" {
			continue
		}
		line := fmt.Sprintf("<%s>: %s\n", m.AuthorID, m.Content)
		if b.Len()+len(line) > maxTranscript {
			break
		}
		b.WriteString(line)
	}
	return strings.TrimSpace(b.String())
}
