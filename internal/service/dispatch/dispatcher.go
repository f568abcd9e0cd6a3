package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/sahaay-health/sahaay/backend/internal/metrics"
	"github.com/sahaay-health/sahaay/backend/internal/model/chat"
	"github.com/sahaay-health/sahaay/backend/internal/model/knowledge"
	"github.com/sahaay-health/sahaay/backend/internal/service/ai"
)

// Source names where a reply came from.
type Source string

const (
	SourceKnowledge  Source = "knowledge"
	SourceGenerative Source = "generative"
)

// Generator is the text-completion capability used when the knowledge table misses.
type Generator interface {
	Generate(ctx context.Context, req ai.Request) (string, error)
}

// Reply is the dispatcher's answer to one user message.
type Reply struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
}

// Dispatcher answers from the knowledge table first and falls back to generation.
type Dispatcher struct {
	knowledge knowledge.Store
	generator Generator
}

// New creates a Dispatcher.
func New(store knowledge.Store, generator Generator) *Dispatcher {
	return &Dispatcher{knowledge: store, generator: generator}
}

// Respond answers message given the transcript that preceded it.
// Generator failures keep ai.ErrServiceUnavailable in their chain.
func (d *Dispatcher) Respond(ctx context.Context, message string, transcript []chat.Message) (Reply, error) {
	if topic, ok := d.knowledge.Lookup(message); ok {
		metrics.RepliesTotal.WithLabelValues(string(SourceKnowledge)).Inc()
		return Reply{Text: RenderTopic(topic), Source: SourceKnowledge}, nil
	}

	if d.generator == nil {
		return Reply{}, fmt.Errorf("%w: no generator configured", ai.ErrServiceUnavailable)
	}

	text, err := d.generator.Generate(ctx, ai.Request{
		SystemPrompt: ai.SystemPrompt,
		Context:      BuildContext(transcript, message),
	})
	if err != nil {
		return Reply{}, fmt.Errorf("generate reply: %w", err)
	}

	metrics.RepliesTotal.WithLabelValues(string(SourceGenerative)).Inc()
	return Reply{Text: strings.TrimSpace(text), Source: SourceGenerative}, nil
}

// BuildContext joins the transcript texts and the new message with newlines.
func BuildContext(transcript []chat.Message, message string) string {
	parts := make([]string, 0, len(transcript)+1)
	for _, msg := range transcript {
		parts = append(parts, msg.Content)
	}
	parts = append(parts, message)
	return strings.Join(parts, "\n")
}
