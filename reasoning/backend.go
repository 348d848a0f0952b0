// Package reasoning wraps the LLM providers that agents and the outcome predictor
// talk to. Providers only see rendered text; framing and parsing live with the callers.
package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Turn is one rendered entry of the shared transcript
type Turn struct {
	Sequence int64
	Speaker  string
	Role     string
	Content  string
}

// Request is a single free-text generation for an agent turn
type Request struct {
	SystemFraming string
	Context       []Turn   // shared transcript, oldest first
	Background    string   // extra context supplied for the run
	Memory        []string // the speaker's private notes, oldest first
	Directive     string
}

// Generator produces free text for agent turns
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// StructuredGenerator produces a JSON document that should satisfy schema
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, prompt string, schema *Schema) (json.RawMessage, error)
}

// Backend is implemented by every provider client
type Backend interface {
	Generator
	StructuredGenerator
}

// RenderPrompt flattens everything but the system framing into the user prompt sent
// to a provider.
func RenderPrompt(req Request) string {
	var b strings.Builder
	if strings.TrimSpace(req.Background) != "" {
		b.WriteString("CASE CONTEXT:\n")
		b.WriteString(strings.TrimSpace(req.Background))
		b.WriteString("\n\n")
	}

	b.WriteString("TRANSCRIPT SO FAR:\n")
	if len(req.Context) == 0 {
		b.WriteString("(no statements have been made yet)\n")
	}
	for _, t := range req.Context {
		b.WriteString(FormatTurn(t))
		b.WriteString("\n")
	}

	if len(req.Memory) > 0 {
		b.WriteString("\nYOUR PRIVATE NOTES (not visible to others):\n")
		for _, m := range req.Memory {
			b.WriteString("- ")
			b.WriteString(m)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nYOUR TASK:\n")
	if strings.TrimSpace(req.Directive) == "" {
		b.WriteString("Continue the proceeding with your next statement.")
	} else {
		b.WriteString(strings.TrimSpace(req.Directive))
	}
	b.WriteString("\nRespond only with what you say aloud, in character.")
	return b.String()
}

// FormatTurn renders a transcript entry as "[3] Name (role): content"
func FormatTurn(t Turn) string {
	speaker := t.Speaker
	if speaker == "" {
		speaker = "Court record"
	}
	if t.Role != "" {
		return fmt.Sprintf("[%d] %s (%s): %s", t.Sequence, speaker, t.Role, t.Content)
	}
	return fmt.Sprintf("[%d] %s: %s", t.Sequence, speaker, t.Content)
}
