package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahaay-health/sahaay/backend/internal/metrics"
	"github.com/sahaay-health/sahaay/backend/internal/model/chat"
	"github.com/sahaay-health/sahaay/backend/internal/model/knowledge"
	"github.com/sahaay-health/sahaay/backend/internal/service/ai"
)

type stubGenerator struct {
	calls []ai.Request
	reply string
	err   error
}

func (s *stubGenerator) Generate(ctx context.Context, req ai.Request) (string, error) {
	s.calls = append(s.calls, req)
	return s.reply, s.err
}

func newDispatcher(gen Generator) *Dispatcher {
	return New(knowledge.NewMemoryStore(knowledge.Seed()), gen)
}

func TestRespondFromKnowledgeTable(t *testing.T) {
	gen := &stubGenerator{}
	d := newDispatcher(gen)

	reply, err := d.Respond(context.Background(), "What is pneumonia?", nil)
	require.NoError(t, err)

	topic := knowledge.Seed()[0].Topic
	assert.Equal(t, SourceKnowledge, reply.Source)
	assert.Contains(t, reply.Text, topic.Description)
	for _, advice := range topic.CareAdvice {
		assert.Contains(t, reply.Text, advice)
	}
	assert.Contains(t, reply.Text, topic.MentalHealthAdvice)
	assert.Empty(t, gen.calls, "knowledge hits must not call the generator")

	again, err := d.Respond(context.Background(), "What is pneumonia?", nil)
	require.NoError(t, err)
	assert.Equal(t, reply.Text, again.Text)
}

func TestRenderTopicTemplate(t *testing.T) {
	topic := knowledge.Topic{
		Description:        "desc",
		Symptoms:           []string{"a", "b"},
		CareAdvice:         []string{"rest", "fluids"},
		MentalHealthAdvice: "breathe",
		References: []knowledge.Reference{
			{SourceType: "Book", Title: "T1", Excerpt: "E1"},
			{SourceType: "Journal", Title: "T2", Excerpt: "E2"},
		},
	}

	want := strings.Join([]string{
		"### 📚 Medical Information:",
		"**Description**: desc",
		"",
		"**Symptoms**:",
		"- a, b",
		"",
		"**Care Advice**:",
		"- rest, fluids",
		"",
		"**Mental Health Note**:",
		"breathe",
		"",
		"**References**:",
		"- From *T1*: E1",
		"- From *T2*: E2",
	}, "\n")

	assert.Equal(t, want, RenderTopic(topic))
}

func TestRespondDelegatesMissesToGenerator(t *testing.T) {
	gen := &stubGenerator{reply: "  Unplug it for thirty seconds.\n"}
	d := newDispatcher(gen)

	transcript := []chat.Message{
		{Role: chat.RoleAssistant, Content: "The image suggests that your lungs appear normal."},
		{Role: chat.RoleUser, Content: "thanks"},
	}

	before := testutil.ToFloat64(metrics.RepliesTotal.WithLabelValues(string(SourceGenerative)))
	reply, err := d.Respond(context.Background(), "How do I reset my router?", transcript)
	require.NoError(t, err)

	assert.Equal(t, SourceGenerative, reply.Source)
	assert.Equal(t, "Unplug it for thirty seconds.", reply.Text)
	require.Len(t, gen.calls, 1)
	assert.Equal(t, ai.SystemPrompt, gen.calls[0].SystemPrompt)
	assert.Equal(t, "The image suggests that your lungs appear normal.\nthanks\nHow do I reset my router?", gen.calls[0].Context)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RepliesTotal.WithLabelValues(string(SourceGenerative))))
}

func TestRespondPropagatesServiceUnavailable(t *testing.T) {
	gen := &stubGenerator{err: ai.ErrServiceUnavailable}
	d := newDispatcher(gen)

	_, err := d.Respond(context.Background(), "How do I reset my router?", nil)
	assert.True(t, errors.Is(err, ai.ErrServiceUnavailable))
}

func TestRespondWithoutGenerator(t *testing.T) {
	d := newDispatcher(nil)

	_, err := d.Respond(context.Background(), "anything else", nil)
	assert.ErrorIs(t, err, ai.ErrServiceUnavailable)

	reply, err := d.Respond(context.Background(), "pneumonia", nil)
	require.NoError(t, err)
	assert.Equal(t, SourceKnowledge, reply.Source)
}

func TestBuildContextWithEmptyTranscript(t *testing.T) {
	assert.Equal(t, "hello", BuildContext(nil, "hello"))
}
