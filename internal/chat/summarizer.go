package chat

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tiktoken-go/tokenizer"

	"github.com/lukaszraczylo/genius-loci/internal/llm"
	"github.com/lukaszraczylo/genius-loci/internal/session"
)

// Completer is the non-streaming completion surface the summarizer needs,
// satisfied by *llm.Client.
type Completer interface {
	Complete(ctx context.Context, system string, messages []llm.Message, opts ...llm.Option) (string, error)
}

// SummaryConfig tunes the summarization call. Zero fields take defaults.
type SummaryConfig struct {
	MaxTokens    int     // completion length cap, default 200
	Temperature  float64 // default 0.3
	BudgetTokens int     // transcript token budget, default 3000
}

func (c *SummaryConfig) applyDefaults() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 200
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.3
	}
	if c.BudgetTokens <= 0 {
		c.BudgetTokens = 3000
	}
}

// Summarizer condenses transcripts for archival. Long transcripts are
// trimmed from the oldest end to a token budget before they reach the model.
type Summarizer struct {
	completer Completer
	cfg       SummaryConfig
	codec     tokenizer.Codec
	logger    zerolog.Logger
}

func NewSummarizer(completer Completer, cfg SummaryConfig, logger zerolog.Logger) (*Summarizer, error) {
	cfg.applyDefaults()
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	return &Summarizer{
		completer: completer,
		cfg:       cfg,
		codec:     codec,
		logger:    logger.With().Str("component", "summarizer").Logger(),
	}, nil
}

// Summarize implements session.Summarizer.
func (s *Summarizer) Summarize(ctx context.Context, transcript []session.Message) (string, error) {
	if len(transcript) == 0 {
		return "", nil
	}
	trimmed, dropped := s.trimToBudget(transcript)
	if dropped > 0 {
		s.logger.Debug().Int("dropped", dropped).Int("kept", len(trimmed)).
			Msg("Transcript trimmed to token budget")
	}

	summary, err := s.completer.Complete(ctx, summaryInstructions,
		[]llm.Message{{Role: llm.RoleUser, Content: renderTranscript(trimmed)}},
		llm.WithTemperature(s.cfg.Temperature),
		llm.WithMaxTokens(s.cfg.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("summary completion failed: %w", err)
	}
	return summary, nil
}

// trimToBudget keeps the newest suffix of the transcript that fits the token
// budget. The most recent message is always kept even if it alone exceeds
// the budget. Returns the suffix and the number of dropped messages.
func (s *Summarizer) trimToBudget(transcript []session.Message) ([]session.Message, int) {
	total := 0
	start := len(transcript)
	for i := len(transcript) - 1; i >= 0; i-- {
		total += s.countTokens(transcript[i].Content)
		if total > s.cfg.BudgetTokens && start < len(transcript) {
			break
		}
		start = i
		if total > s.cfg.BudgetTokens {
			break
		}
	}
	return transcript[start:], start
}

func (s *Summarizer) countTokens(text string) int {
	ids, _, err := s.codec.Encode(text)
	if err != nil {
		// Fall back to a rough bytes-per-token estimate.
		return len(text) / 4
	}
	return len(ids)
}
