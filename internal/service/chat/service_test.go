package chat_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	model "github.com/sahaay-health/sahaay/backend/internal/model/chat"
	"github.com/sahaay-health/sahaay/backend/internal/service/ai"
	chat "github.com/sahaay-health/sahaay/backend/internal/service/chat"
	"github.com/sahaay-health/sahaay/backend/internal/service/dispatch"
	"github.com/sahaay-health/sahaay/backend/internal/service/upload"
	"github.com/sahaay-health/sahaay/backend/internal/service/vision"
	"github.com/sahaay-health/sahaay/backend/pkg/log"
)

type stubResponder struct {
	mu    sync.Mutex
	err   error
	calls [][]model.Message
}

func (s *stubResponder) Respond(_ context.Context, message string, transcript []model.Message) (dispatch.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, transcript)
	if s.err != nil {
		return dispatch.Reply{}, s.err
	}
	if strings.Contains(strings.ToLower(message), "pneumonia") {
		return dispatch.Reply{Text: "### 📚 Medical Information:", Source: dispatch.SourceKnowledge}, nil
	}
	return dispatch.Reply{Text: "echo: " + message, Source: dispatch.SourceGenerative}, nil
}

type stubClassifier struct {
	result vision.Result
	err    error
}

func (s *stubClassifier) Classify(context.Context, []byte) (vision.Result, error) {
	return s.result, s.err
}

type failingStore struct{}

func (failingStore) Put(context.Context, string, string, []byte) (string, error) {
	return "", errors.New("disk full")
}

func newService(t *testing.T, responder chat.Responder, classifier vision.Classifier) *chat.Service {
	t.Helper()
	log.Use(zaptest.NewLogger(t))
	t.Cleanup(func() { log.Use(zap.NewNop()) })
	return chat.NewService(responder, classifier, upload.NewLocalStore(t.TempDir()))
}

func TestServiceGetSession(t *testing.T) {
	svc := newService(t, &stubResponder{}, &stubClassifier{})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StateIdle, session.State)

	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := newService(t, &stubResponder{}, &stubClassifier{})

	_, err := svc.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)

	_, err = svc.Submit(context.Background(), "missing", "hello")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestUploadSeedsPneumoniaPrompt(t *testing.T) {
	classifier := &stubClassifier{result: vision.Result{Label: "PNEUMONIA", Confidence: 0.93}}
	svc := newService(t, &stubResponder{}, classifier)
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	view, err := svc.Upload(ctx, session.ID, "chest.PNG", []byte("img"))
	require.NoError(t, err)

	assert.Empty(t, view.Error)
	assert.Equal(t, model.StateClassified, view.State)
	require.NotNil(t, view.Classification)
	assert.Equal(t, "PNEUMONIA", view.Classification.Label)
	assert.Equal(t, "0.93", view.Classification.Confidence)
	require.Len(t, view.Messages, 1)
	assert.Equal(t, model.RoleAssistant, view.Messages[0].Role)
	assert.Equal(t, "The image suggests you may have pneumonia. Would you like to know more about it?", view.Messages[0].Content)
}

func TestUploadSeedsOnlyOnce(t *testing.T) {
	classifier := &stubClassifier{result: vision.Result{Label: "NORMAL", Confidence: 0.5}}
	svc := newService(t, &stubResponder{}, classifier)
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	_, err := svc.Upload(ctx, session.ID, "a.jpg", []byte("img"))
	require.NoError(t, err)

	classifier.result = vision.Result{Label: "PNEUMONIA", Confidence: 0.71}
	view, err := svc.Upload(ctx, session.ID, "b.jpg", []byte("img"))
	require.NoError(t, err)

	seeds := 0
	for _, msg := range view.Messages {
		if strings.HasPrefix(msg.Content, chat.SeedPrefix) {
			seeds++
		}
	}
	assert.Equal(t, 1, seeds)
	assert.Equal(t, "The image suggests that your lungs appear normal. Let me know if you have any other questions.", view.Messages[0].Content)
	assert.Equal(t, "PNEUMONIA", view.Classification.Label)
	assert.Equal(t, "0.71", view.Classification.Confidence)
}

func TestUploadRecoverableFailures(t *testing.T) {
	cases := []struct {
		name       string
		filename   string
		classifier vision.Classifier
		store      upload.Store
		contains   string
	}{
		{
			name:       "unsupported extension",
			filename:   "scan.gif",
			classifier: &stubClassifier{},
			store:      upload.NewLocalStore(t.TempDir()),
			contains:   "jpg, jpeg and png",
		},
		{
			name:       "classifier failure",
			filename:   "scan.png",
			classifier: &stubClassifier{err: fmt.Errorf("%w: malformed image", vision.ErrClassification)},
			store:      upload.NewLocalStore(t.TempDir()),
			contains:   "could not analyse",
		},
		{
			name:       "storage failure",
			filename:   "scan.png",
			classifier: &stubClassifier{},
			store:      failingStore{},
			contains:   "could not be saved",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := chat.NewService(&stubResponder{}, tc.classifier, tc.store)
			ctx := context.Background()
			session, _ := svc.CreateSession(ctx)

			view, err := svc.Upload(ctx, session.ID, tc.filename, []byte("img"))
			require.NoError(t, err)
			assert.Contains(t, view.Error, tc.contains)
			assert.Equal(t, model.StateIdle, view.State)
			assert.Nil(t, view.Classification)
			assert.Empty(t, view.Messages)
		})
	}
}

func TestSubmitRendersMostRecentFirst(t *testing.T) {
	responder := &stubResponder{}
	svc := newService(t, responder, &stubClassifier{result: vision.Result{Label: "PNEUMONIA", Confidence: 0.9}})
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	_, err := svc.Upload(ctx, session.ID, "x.jpeg", []byte("img"))
	require.NoError(t, err)

	view, err := svc.Submit(ctx, session.ID, "  Tell me about pneumonia  ")
	require.NoError(t, err)

	require.Len(t, view.Messages, 3)
	assert.Equal(t, model.StateConversing, view.State)
	assert.Equal(t, dispatch.SourceKnowledge, view.LastSource)
	assert.Equal(t, model.RoleAssistant, view.Messages[0].Role)
	assert.Equal(t, "Tell me about pneumonia", view.Messages[1].Content)
	assert.True(t, strings.HasPrefix(view.Messages[2].Content, chat.SeedPrefix))

	// The responder sees the transcript before the new message.
	require.Len(t, responder.calls, 1)
	require.Len(t, responder.calls[0], 1)
	assert.True(t, strings.HasPrefix(responder.calls[0][0].Content, chat.SeedPrefix))
}

func TestSubmitBeforeUpload(t *testing.T) {
	svc := newService(t, &stubResponder{}, &stubClassifier{})
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	view, err := svc.Submit(ctx, session.ID, "what is a fever?")
	require.NoError(t, err)
	assert.Equal(t, model.StateConversing, view.State)
	assert.Equal(t, dispatch.SourceGenerative, view.LastSource)
	assert.Len(t, view.Messages, 2)
}

func TestSubmitRejectsBlankText(t *testing.T) {
	svc := newService(t, &stubResponder{}, &stubClassifier{})
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	_, err := svc.Submit(ctx, session.ID, "   ")
	assert.ErrorIs(t, err, chat.ErrEmptyMessage)

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, transcript)
}

func TestSubmitKeepsUserMessageWhenResponderFails(t *testing.T) {
	responder := &stubResponder{err: fmt.Errorf("generate: %w", ai.ErrServiceUnavailable)}
	svc := newService(t, responder, &stubClassifier{})
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	view, err := svc.Submit(ctx, session.ID, "what is asthma?")
	require.NoError(t, err)
	assert.Contains(t, view.Error, "unavailable")
	require.Len(t, view.Messages, 1)
	assert.Equal(t, model.RoleUser, view.Messages[0].Role)

	// Session remains usable once the service recovers.
	responder.err = nil
	view, err = svc.Submit(ctx, session.ID, "what is asthma?")
	require.NoError(t, err)
	assert.Empty(t, view.Error)
	assert.Len(t, view.Messages, 3)
}

func TestSessionsAreIsolated(t *testing.T) {
	svc := newService(t, &stubResponder{}, &stubClassifier{result: vision.Result{Label: "NORMAL", Confidence: 0.8}})
	ctx := context.Background()

	first, _ := svc.CreateSession(ctx)
	second, _ := svc.CreateSession(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = svc.Submit(ctx, first.ID, fmt.Sprintf("first %d", i))
		}(i)
		go func(i int) {
			defer wg.Done()
			_, _ = svc.Submit(ctx, second.ID, fmt.Sprintf("second %d", i))
		}(i)
	}
	wg.Wait()

	firstTranscript, err := svc.LoadTranscript(ctx, first.ID)
	require.NoError(t, err)
	secondTranscript, err := svc.LoadTranscript(ctx, second.ID)
	require.NoError(t, err)

	assert.Len(t, firstTranscript, 20)
	assert.Len(t, secondTranscript, 20)
	for _, msg := range firstTranscript {
		assert.NotContains(t, msg.Content, "second")
	}
	for i := 0; i < len(firstTranscript); i += 2 {
		assert.Equal(t, model.RoleUser, firstTranscript[i].Role)
		assert.Equal(t, model.RoleAssistant, firstTranscript[i+1].Role)
	}
}

func TestRenderIsPure(t *testing.T) {
	snap := chat.Snapshot{
		Session: model.Session{ID: "s1", State: model.StateConversing},
		Transcript: []model.Message{
			{ID: "1", Role: model.RoleAssistant, Content: "seed"},
			{ID: "2", Role: model.RoleUser, Content: "question"},
		},
		Classification: &model.Classification{Label: "NORMAL", Confidence: 0.876},
		LastSource:     dispatch.SourceGenerative,
	}

	view := chat.Render(snap)
	again := chat.Render(snap)

	assert.Equal(t, view, again)
	assert.Equal(t, "2", view.Messages[0].ID)
	assert.Equal(t, "1", snap.Transcript[0].ID)
	assert.Equal(t, "0.88", view.Classification.Confidence)
	assert.Empty(t, view.Error)
}
