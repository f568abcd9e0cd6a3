package chat

import (
	"errors"
	"fmt"

	"github.com/sahaay-health/sahaay/backend/internal/model/chat"
	"github.com/sahaay-health/sahaay/backend/internal/service/ai"
	"github.com/sahaay-health/sahaay/backend/internal/service/dispatch"
	"github.com/sahaay-health/sahaay/backend/internal/service/upload"
	"github.com/sahaay-health/sahaay/backend/internal/service/vision"
)

const (
	noticeUnavailable    = "The assistant is unavailable right now. Your message was kept, please try again shortly."
	noticeClassification = "We could not analyse that image. Please upload a clear chest X-ray and try again."
	noticeUnsupported    = "Only jpg, jpeg and png images are accepted."
	noticeStorage        = "The image could not be saved. Please try again."
	noticeGeneric        = "Something went wrong. Please try again."
)

// Snapshot is an immutable copy of session state taken under the session lock.
type Snapshot struct {
	Session        chat.Session
	Transcript     []chat.Message
	Classification *chat.Classification
	LastSource     dispatch.Source
	Failure        error
}

// ClassificationView 展示用的分类结果，置信度保留两位小数
type ClassificationView struct {
	Label      string `json:"label"`
	Confidence string `json:"confidence"`
}

// View is what a client displays for a session.
type View struct {
	SessionID      string              `json:"sessionId"`
	State          chat.State          `json:"state"`
	Classification *ClassificationView `json:"classification,omitempty"`
	Messages       []chat.Message      `json:"messages"`
	LastSource     dispatch.Source     `json:"lastSource,omitempty"`
	Error          string              `json:"error,omitempty"`
}

// Render converts a snapshot into a view. Messages are ordered most recent first.
func Render(snap Snapshot) View {
	messages := make([]chat.Message, len(snap.Transcript))
	for i, msg := range snap.Transcript {
		messages[len(snap.Transcript)-1-i] = msg
	}

	view := View{
		SessionID:  snap.Session.ID,
		State:      snap.Session.State,
		Messages:   messages,
		LastSource: snap.LastSource,
	}
	if snap.Classification != nil {
		view.Classification = &ClassificationView{
			Label:      snap.Classification.Label,
			Confidence: fmt.Sprintf("%.2f", snap.Classification.Confidence),
		}
	}
	if snap.Failure != nil {
		view.Error = Notice(snap.Failure)
	}
	return view
}

// Notice maps a recoverable failure to the text shown to the user.
func Notice(err error) string {
	var storageErr errStorage
	switch {
	case errors.Is(err, ai.ErrServiceUnavailable):
		return noticeUnavailable
	case errors.Is(err, upload.ErrUnsupportedType):
		return noticeUnsupported
	case errors.Is(err, vision.ErrClassification):
		return noticeClassification
	case errors.As(err, &storageErr):
		return noticeStorage
	default:
		return noticeGeneric
	}
}
