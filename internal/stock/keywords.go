package stock

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const keywordPrompt = "You are helping find stock footage to replace a scene in a video. " +
	"Given the scene's thumbnail and what is being said, reply with a short stock " +
	"footage search query (2-5 words), nothing else."

// Analyzer suggests stock search queries for a scene from its thumbnail and
// surrounding speech.
type Analyzer struct {
	client *openai.Client
	logger *slog.Logger
}

func NewAnalyzer(apiKey string, logger *slog.Logger) *Analyzer {
	return &Analyzer{client: openai.NewClient(apiKey), logger: logger}
}

// SuggestQuery asks a vision model for a search query describing the scene.
// transcriptText may be empty.
func (a *Analyzer) SuggestQuery(ctx context.Context, thumbnailPath, transcriptText string) (string, error) {
	img, err := os.ReadFile(thumbnailPath)
	if err != nil {
		return "", fmt.Errorf("cannot read thumbnail: %w", err)
	}
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img)

	userParts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
	}
	if strings.TrimSpace(transcriptText) != "" {
		userParts = append(userParts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: "Speech during this scene: " + transcriptText,
		})
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: keywordPrompt},
			{Role: openai.ChatMessageRoleUser, MultiContent: userParts},
		},
		MaxTokens: 50,
	})
	if err != nil {
		return "", fmt.Errorf("scene analysis failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("scene analysis returned no choices")
	}

	query := strings.Trim(strings.TrimSpace(resp.Choices[0].Message.Content), `"`)
	a.logger.Debug("scene analysed", "query", query)
	return query, nil
}
