package chat

import "time"

// State tracks how far a session has progressed.
type State string

const (
	StateIdle       State = "idle"
	StateClassified State = "classified"
	StateConversing State = "conversing"
)

// Classification is the top-1 classifier output attached to a session.
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Session captures a transient anonymous conversation.
type Session struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
}
