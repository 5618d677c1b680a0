package emotion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lukaszraczylo/genius-loci/internal/llm"
	"github.com/lukaszraczylo/genius-loci/pkg/models"
)

func TestAlign(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   models.Emotion
	}{
		{"exact match", "happy", models.EmotionHappy},
		{"exact match with whitespace", "  angry \n", models.EmotionAngry},
		{"exact match mixed case", "Mysterious", models.EmotionMysterious},
		{"keyword inside sentence", "The text expresses a sad tone.", models.EmotionSad},
		{"synonym joy", "joy", models.EmotionHappy},
		{"synonym in sentence", "The writer sounds furious about this.", models.EmotionAngry},
		{"synonym serene", "a serene mood overall", models.EmotionCalm},
		{"synonym curious", "the narrator seems curious", models.EmotionMysterious},
		{"unmatched falls back", "completely unrelated drivel", DefaultEmotion},
		{"empty output falls back", "", DefaultEmotion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Align(tt.output))
		})
	}
}

type stubCompleter struct {
	output string
	err    error
}

func (s *stubCompleter) Complete(ctx context.Context, systemPrompt string, messages []llm.Message, opts ...llm.Option) (string, error) {
	return s.output, s.err
}

func TestAnalyze(t *testing.T) {
	a := NewAnalyzer(&stubCompleter{output: "happy"})
	assert.Equal(t, models.EmotionHappy, a.Analyze(context.Background(), "what a great day"))
}

func TestAnalyzeModelFailure(t *testing.T) {
	a := NewAnalyzer(&stubCompleter{err: errors.New("endpoint down")})
	assert.Equal(t, DefaultEmotion, a.Analyze(context.Background(), "anything"))
}
