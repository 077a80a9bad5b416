package captions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrUnknownStyle and ErrEmptyText reject bad input before any API call.
var (
	ErrUnknownStyle = errors.New("unknown caption style")
	ErrEmptyText    = errors.New("caption text is empty")
)

// stylePrompts maps a requested caption style to its rewriting instruction.
var stylePrompts = map[string]string{
	"engaging":     "Rewrite this caption to be more engaging and attention-grabbing while keeping the meaning.",
	"professional": "Rewrite this caption in a clear, professional tone.",
	"casual":       "Rewrite this caption in a relaxed, conversational tone.",
	"concise":      "Rewrite this caption to be as short as possible without losing meaning.",
}

// Styles lists the supported caption styles.
func Styles() []string {
	out := make([]string, 0, len(stylePrompts))
	for k := range stylePrompts {
		out = append(out, k)
	}
	return out
}

// Improver rewrites caption text through a chat model.
type Improver struct {
	client *openai.Client
	logger *slog.Logger
}

func NewImprover(apiKey string, logger *slog.Logger) *Improver {
	return &Improver{client: openai.NewClient(apiKey), logger: logger}
}

// Improve rewrites text in the given style. Unknown styles are rejected
// before any API call is made.
func (i *Improver) Improve(ctx context.Context, text, style string) (string, error) {
	prompt, ok := stylePrompts[style]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStyle, style)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}

	resp, err := i.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		MaxTokens: 500,
	})
	if err != nil {
		return "", fmt.Errorf("caption rewrite failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("caption rewrite returned no choices")
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	i.logger.Debug("caption improved", "style", style, "in_len", len(text), "out_len", len(out))
	return out, nil
}
