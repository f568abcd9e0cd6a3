package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sahaay-health/sahaay/backend/internal/model/chat"
	"github.com/sahaay-health/sahaay/backend/internal/service/dispatch"
	"github.com/sahaay-health/sahaay/backend/internal/service/upload"
	"github.com/sahaay-health/sahaay/backend/internal/service/vision"
	"github.com/sahaay-health/sahaay/backend/pkg/log"
)

// SeedPrefix starts every message derived from an image classification.
const SeedPrefix = "The image suggests"

const (
	pneumoniaSeed = "The image suggests you may have pneumonia. Would you like to know more about it?"
	normalSeed    = "The image suggests that your lungs appear normal. Let me know if you have any other questions."
)

// SeedMessage derives the assistant prompt that follows a classification.
func SeedMessage(label string) string {
	if strings.EqualFold(strings.TrimSpace(label), "pneumonia") {
		return pneumoniaSeed
	}
	return normalSeed
}

// Session is one interactive conversation. The transcript is append-only.
type Session struct {
	mu sync.Mutex

	id             string
	createdAt      time.Time
	state          chat.State
	transcript     []chat.Message
	classification *chat.Classification
	imageKey       string
	lastSource     dispatch.Source
}

func newSession(id string, createdAt time.Time) *Session {
	return &Session{
		id:         id,
		createdAt:  createdAt,
		state:      chat.StateIdle,
		transcript: make([]chat.Message, 0, 16),
	}
}

func (s *Session) info() chat.Session {
	return chat.Session{ID: s.id, State: s.state, CreatedAt: s.createdAt}
}

func (s *Session) transcriptCopy() []chat.Message {
	copied := make([]chat.Message, len(s.transcript))
	copy(copied, s.transcript)
	return copied
}

func (s *Session) snapshot(failure error) Snapshot {
	snap := Snapshot{
		Session:    s.info(),
		Transcript: s.transcriptCopy(),
		LastSource: s.lastSource,
		Failure:    failure,
	}
	if s.classification != nil {
		c := *s.classification
		snap.Classification = &c
	}
	return snap
}

func (s *Session) append(role chat.Role, content string) {
	s.transcript = append(s.transcript, chat.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *Session) hasSeed() bool {
	for _, msg := range s.transcript {
		if msg.Role == chat.RoleAssistant && strings.HasPrefix(msg.Content, SeedPrefix) {
			return true
		}
	}
	return false
}

// upload returns a non-nil error only for failures the user can recover from by retrying.
func (s *Session) upload(ctx context.Context, store upload.Store, classifier vision.Classifier, filename string, data []byte) error {
	if _, err := upload.Extension(filename); err != nil {
		return err
	}

	if store != nil {
		key, err := store.Put(ctx, s.id, filename, data)
		if err != nil {
			log.Errorw("failed to store upload", "session", s.id, "error", err)
			return errStorage{err}
		}
		s.imageKey = key
	}

	if classifier == nil {
		return errors.Join(vision.ErrClassification, errors.New("no classifier configured"))
	}

	result, err := classifier.Classify(ctx, data)
	if err != nil {
		log.Errorw("classification failed", "session", s.id, "error", err)
		return err
	}

	s.classification = &chat.Classification{Label: result.Label, Confidence: result.Confidence}
	if !s.hasSeed() {
		s.append(chat.RoleAssistant, SeedMessage(result.Label))
	}
	if s.state == chat.StateIdle {
		s.state = chat.StateClassified
	}

	log.Infow("session classified", "session", s.id, "label", result.Label, "confidence", result.Confidence, "imageKey", s.imageKey)
	return nil
}

// submit expects non-blank text and returns the responder failure, if any.
func (s *Session) submit(ctx context.Context, responder Responder, text string) error {
	prior := s.transcriptCopy()
	s.append(chat.RoleUser, text)
	s.state = chat.StateConversing

	if responder == nil {
		return errors.New("no responder configured")
	}

	reply, err := responder.Respond(ctx, text, prior)
	if err != nil {
		log.Errorw("failed to answer message", "session", s.id, "error", err)
		return err
	}

	s.append(chat.RoleAssistant, reply.Text)
	s.lastSource = reply.Source
	return nil
}

type errStorage struct{ err error }

func (e errStorage) Error() string { return "store upload: " + e.err.Error() }
func (e errStorage) Unwrap() error { return e.err }
