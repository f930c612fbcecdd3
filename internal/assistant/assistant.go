package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// The persona is pinned to the ecosystem topic area; off-topic questions
// get the literal refusal sentence from the prompt.
const systemPrompt = "Ты — виртуальный помощник, который отвечает исключительно на русском языке " +
	"и только на вопросы об экосистеме, экосистемных сервисах, продуктах, " +
	"обучении и связанных инициативах. Если запрос не относится к этой теме ТОГДА ОТВЕЧАЙ СТРОГО ВОТ ТАК: " +
	"*я могу ответить только на вопросы об экосистеме, экосистемных сервисах, продуктах, обучении и связанных инициативах.*"

type Assistant struct {
	client      *openai.Client
	model       string
	temperature float64
	timeout     time.Duration
	logger      *zap.Logger
}

func New(apiKey, model string, temperature float64, timeout time.Duration, logger *zap.Logger) *Assistant {
	return &Assistant{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		timeout:     timeout,
		logger:      logger,
	}
}

// Ask sends a single question with no conversation history. Each call is
// independent and bounded by the configured timeout.
func (a *Assistant) Ask(ctx context.Context, question string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       a.model,
			Temperature: float32(a.temperature),
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: question,
				},
			},
		},
	)
	if err != nil {
		a.logger.Error("Failed to get assistant response", zap.Error(err))
		return "", fmt.Errorf("failed to get assistant response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("assistant returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
