// Package llm provides an OpenAI-compatible completion client for genius-loci.
// It works against any chat-completions endpoint (OpenAI, ModelScope, DeepSeek,
// Qwen, ...) selected via base URL.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/rs/zerolog/log"
)

// ErrNoAPIKey is returned when the completion endpoint has no credentials.
var ErrNoAPIKey = errors.New("completion API key not configured")

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation message sent to the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Fragment is one streamed piece of a completion. A non-nil Err terminates the
// stream; the channel closes after the final fragment.
type Fragment struct {
	Text string
	Err  error
}

// Options configures the client. Sampling parameters are pass-through
// defaults; per-request overrides go via Option values.
type Options struct {
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// Option overrides a sampling parameter for a single request.
type Option func(*requestOptions)

type requestOptions struct {
	temperature *float64
	maxTokens   *int
}

// WithTemperature overrides the sampling temperature for one request.
func WithTemperature(t float64) Option {
	return func(o *requestOptions) { o.temperature = &t }
}

// WithMaxTokens overrides the completion token cap for one request.
func WithMaxTokens(n int) Option {
	return func(o *requestOptions) { o.maxTokens = &n }
}

// Client issues streaming and non-streaming completion requests.
type Client struct {
	api  openai.Client
	opts Options
}

// NewClient creates a completion client for the configured endpoint.
func NewClient(opts Options) *Client {
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &Client{
		api:  openai.NewClient(reqOpts...),
		opts: opts,
	}
}

// StreamComplete issues a streaming completion request and returns a channel
// of fragments. The channel is closed when the stream ends; a failed stream
// delivers a terminal Fragment with Err set.
func (c *Client) StreamComplete(ctx context.Context, systemPrompt string, messages []Message) (<-chan Fragment, error) {
	if c.opts.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	params := c.buildParams(systemPrompt, messages, nil)
	stream := c.api.Chat.Completions.NewStreaming(ctx, params)

	ch := make(chan Fragment, 16)
	go c.forwardStream(ctx, stream, ch)
	return ch, nil
}

// forwardStream reads the SSE stream and forwards text deltas until the
// stream ends, fails, or the context is canceled. Every send races against
// ctx so a caller that cancels and walks away from the channel never strands
// this goroutine or the upstream connection.
func (c *Client) forwardStream(ctx context.Context, stream *ssestream.Stream[openai.ChatCompletionChunk], ch chan<- Fragment) {
	defer close(ch)
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		select {
		case ch <- Fragment{Text: delta}:
		case <-ctx.Done():
			return
		}
	}

	if err := stream.Err(); err != nil {
		select {
		case ch <- Fragment{Err: fmt.Errorf("completion stream: %w", err)}:
		case <-ctx.Done():
		}
	}
}

// Complete issues a non-streaming completion request and returns the full
// response text.
func (c *Client) Complete(ctx context.Context, systemPrompt string, messages []Message, opts ...Option) (string, error) {
	if c.opts.APIKey == "" {
		return "", ErrNoAPIKey
	}

	var ro requestOptions
	for _, o := range opts {
		o(&ro)
	}

	params := c.buildParams(systemPrompt, messages, &ro)
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}

	text := resp.Choices[0].Message.Content
	log.Debug().Str("model", c.opts.Model).Int("responseLen", len(text)).Msg("Completion finished")
	return text, nil
}

func (c *Client) buildParams(systemPrompt string, messages []Message, ro *requestOptions) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if systemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(systemPrompt))
	}
	for _, m := range messages {
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	temperature := c.opts.Temperature
	maxTokens := c.opts.MaxTokens
	if ro != nil {
		if ro.temperature != nil {
			temperature = *ro.temperature
		}
		if ro.maxTokens != nil {
			maxTokens = *ro.maxTokens
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.opts.Model),
		Messages:    msgs,
		Temperature: openai.Float(temperature),
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}
	if c.opts.TopP > 0 {
		params.TopP = openai.Float(c.opts.TopP)
	}
	return params
}
