package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sahaay-health/sahaay/backend/internal/metrics"
	"github.com/sahaay-health/sahaay/backend/internal/model/chat"
	"github.com/sahaay-health/sahaay/backend/internal/service/dispatch"
	"github.com/sahaay-health/sahaay/backend/internal/service/upload"
	"github.com/sahaay-health/sahaay/backend/internal/service/vision"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyMessage    = errors.New("message is empty")
)

// Responder answers one user message given the preceding transcript.
type Responder interface {
	Respond(ctx context.Context, message string, transcript []chat.Message) (dispatch.Reply, error)
}

// Service is the registry of live sessions. Each session owns its transcript
// and serialises its own interactions; the registry lock only guards the map.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	responder  Responder
	classifier vision.Classifier
	uploads    upload.Store
}

// NewService wires the session controller to its collaborators.
func NewService(responder Responder, classifier vision.Classifier, uploads upload.Store) *Service {
	return &Service{
		sessions:   make(map[string]*Session),
		responder:  responder,
		classifier: classifier,
		uploads:    uploads,
	}
}

// CreateSession provisions an empty session in the idle state.
func (s *Service) CreateSession(_ context.Context) (chat.Session, error) {
	session := newSession(uuid.NewString(), time.Now().UTC())

	s.mu.Lock()
	s.sessions[session.id] = session
	s.mu.Unlock()

	metrics.ActiveSessions.Inc()
	return session.info(), nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.info(), nil
}

// LoadTranscript returns the session transcript in chronological order.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.transcriptCopy(), nil
}

// View renders the current state of a session.
func (s *Service) View(_ context.Context, sessionID string) (View, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return View{}, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return Render(session.snapshot(nil)), nil
}

// Upload stores and classifies an image, then seeds the transcript once.
// Storage and classification failures are rendered into View.Error.
func (s *Service) Upload(ctx context.Context, sessionID, filename string, data []byte) (View, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return View{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	return Render(session.snapshot(session.upload(ctx, s.uploads, s.classifier, filename, data))), nil
}

// Submit appends the user's message, dispatches it and appends the reply.
// Responder failures are rendered into View.Error and leave the user message in place.
func (s *Service) Submit(ctx context.Context, sessionID, text string) (View, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return View{}, ErrEmptyMessage
	}

	session, err := s.lookup(sessionID)
	if err != nil {
		return View{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	return Render(session.snapshot(session.submit(ctx, s.responder, text))), nil
}

func (s *Service) lookup(sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}
