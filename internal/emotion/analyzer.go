// Package emotion classifies note text into one of five normalized emotions.
//
// The model is prompted to answer with exactly one emotion word; because
// models drift, the raw output goes through an alignment pipeline: exact
// match, then keyword search, then synonym mapping, then a default.
package emotion

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lukaszraczylo/genius-loci/internal/llm"
	"github.com/lukaszraczylo/genius-loci/pkg/models"
)

// DefaultEmotion is the fallback when nothing in the output aligns.
const DefaultEmotion = models.EmotionCalm

// synonyms maps near-miss words in model output to a normalized emotion.
var synonyms = map[models.Emotion][]string{
	models.EmotionSad:        {"unhappy", "sorrow", "grief", "down", "depressed", "melancholy", "gloomy", "heartbroken"},
	models.EmotionHappy:      {"joy", "glad", "cheerful", "delighted", "excited", "content", "pleased", "elated"},
	models.EmotionCalm:       {"peaceful", "quiet", "serene", "relaxed", "tranquil", "composed", "still"},
	models.EmotionMysterious: {"curious", "puzzled", "unknown", "enigmatic", "strange", "wondering", "intrigued"},
	models.EmotionAngry:      {"mad", "furious", "irritated", "annoyed", "outraged", "resentful", "frustrated"},
}

// Completer is the subset of the completion client the analyzer needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, messages []llm.Message, opts ...llm.Option) (string, error)
}

// Analyzer classifies text via a constrained model query plus alignment.
type Analyzer struct {
	client Completer
}

// NewAnalyzer creates an emotion analyzer.
func NewAnalyzer(client Completer) *Analyzer {
	return &Analyzer{client: client}
}

// Analyze returns the normalized emotion for the given text. Model failures
// degrade to the default emotion rather than erroring; a note is still worth
// storing when classification is down.
func (a *Analyzer) Analyze(ctx context.Context, text string) models.Emotion {
	output, err := a.client.Complete(ctx, "", []llm.Message{
		{Role: llm.RoleUser, Content: buildPrompt(text)},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Emotion query failed, using default")
		return DefaultEmotion
	}
	return Align(output)
}

// Align normalizes raw model output to one of the five emotions.
func Align(output string) models.Emotion {
	if e, ok := exactMatch(output); ok {
		return e
	}
	if e, ok := keywordSearch(output); ok {
		return e
	}
	if e, ok := semanticMapping(output); ok {
		return e
	}
	return DefaultEmotion
}

func buildPrompt(text string) string {
	var sb strings.Builder
	sb.WriteString("You are an emotion analysis expert. Classify the emotion expressed by the text below and answer with exactly one of these words:\n\n")
	for _, e := range models.Emotions {
		fmt.Fprintf(&sb, "- %s\n", e)
	}
	fmt.Fprintf(&sb, "\nText: %s\n\nAnswer with one of the five words above and nothing else.", text)
	return sb.String()
}

func exactMatch(output string) (models.Emotion, bool) {
	cleaned := models.Emotion(strings.ToLower(strings.TrimSpace(output)))
	for _, e := range models.Emotions {
		if cleaned == e {
			return e, true
		}
	}
	return "", false
}

func keywordSearch(output string) (models.Emotion, bool) {
	lowered := strings.ToLower(output)
	for _, e := range models.Emotions {
		if strings.Contains(lowered, string(e)) {
			return e, true
		}
	}
	return "", false
}

func semanticMapping(output string) (models.Emotion, bool) {
	lowered := strings.ToLower(output)
	for _, e := range models.Emotions {
		for _, word := range synonyms[e] {
			if strings.Contains(lowered, word) {
				return e, true
			}
		}
	}
	return "", false
}
