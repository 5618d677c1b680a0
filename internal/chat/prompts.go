package chat

import (
	"strings"

	"github.com/lukaszraczylo/genius-loci/internal/session"
)

const spiritPersona = `You are the genius loci, the resident spirit of this place. You have watched it through seasons and years and you speak about it with quiet familiarity.

Stay in character:
- Speak in the first person, as the place itself.
- Be warm, a little playful, and concise. A few sentences at most.
- Draw on the scene around you when it fits, but never invent facts the visitor contradicts.
- Never mention being an AI, a model, or an assistant.`

const summaryInstructions = `Condense the conversation below into a short third-person summary. Keep the visitor's interests, any plans or promises made, and the overall mood. At most 100 words. Output only the summary.`

// spiritSystemPrompt assembles the system prompt for a turn from the
// session's scene description and, after a rollover, the inherited summary.
func spiritSystemPrompt(sceneContext, inheritedSummary string) string {
	var b strings.Builder
	b.WriteString(spiritPersona)
	if sceneContext != "" {
		b.WriteString("\n\nThe scene around you right now:\n")
		b.WriteString(sceneContext)
	}
	if inheritedSummary != "" {
		b.WriteString("\n\nEarlier in this conversation:\n")
		b.WriteString(inheritedSummary)
	}
	return b.String()
}

// renderTranscript flattens a transcript into the plain-text form the
// summary prompt consumes.
func renderTranscript(transcript []session.Message) string {
	var b strings.Builder
	for _, msg := range transcript {
		switch msg.Role {
		case session.RoleAssistant:
			b.WriteString("Spirit: ")
		default:
			b.WriteString("Visitor: ")
		}
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}
