// Package vision turns an image URL into a short scene description used to
// seed a spirit conversation's context.
package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
)

// scenePrompt asks the model for a compact scene description. Kept under 100
// words so the whole thing fits into a session's scene context.
const scenePrompt = `Describe the scene in this image, covering:
1. Environment type (cafe, park, office, street, ...)
2. Lighting (bright afternoon sun, dim, ...)
3. Overall atmosphere (modern, cozy, lively, quiet, ...)
4. Key details (decor style, number of people, notable elements)

Be concise but precise. No more than 100 words.`

// Client issues scene-description requests against a multimodal endpoint.
type Client struct {
	api   openai.Client
	model string
	ready bool
}

// NewClient creates a vision client. With an empty API key the client stays
// usable but Describe degrades to an empty description.
func NewClient(model, baseURL, apiKey string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if apiKey == "" {
		log.Warn().Msg("Vision API key not configured, scene descriptions disabled")
	}
	return &Client{
		api:   openai.NewClient(opts...),
		model: model,
		ready: apiKey != "",
	}
}

// Describe analyzes the image at the given URL and returns a scene
// description. Returns "" without error when the client is not configured.
func (c *Client) Describe(ctx context.Context, imageURL string) (string, error) {
	if !c.ready {
		return "", nil
	}

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(scenePrompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: imageURL,
		}),
	}

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
		MaxTokens: openai.Int(200),
	})
	if err != nil {
		return "", fmt.Errorf("vision request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("vision returned no choices")
	}

	description := strings.TrimSpace(resp.Choices[0].Message.Content)
	log.Debug().Int("descriptionLen", len(description)).Msg("Scene described")
	return description, nil
}
