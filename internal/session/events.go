package session

import "github.com/google/uuid"

// Phase is the attempt lifecycle state machine position.
type Phase string

const (
	PhaseNotStarted Phase = "NOT_STARTED"
	PhaseInProgress Phase = "IN_PROGRESS"
	PhaseReview     Phase = "REVIEW"
	PhaseSubmitting Phase = "SUBMITTING"
	PhaseSubmitted  Phase = "SUBMITTED"
)

// EventType tags session events pushed to the presentation layer.
type EventType string

const (
	// EventTimerTick carries the main timer's remaining seconds.
	EventTimerTick EventType = "timer_tick"
	// EventReviewTick carries the review timer's remaining seconds.
	EventReviewTick EventType = "review_tick"
	// EventPhaseChange announces a state machine transition.
	EventPhaseChange EventType = "phase_change"
	// EventScrollTo asks the UI to bring a question into view.
	EventScrollTo EventType = "scroll_to"
	// EventSync reports the number of writes not yet acknowledged by the
	// remote store (the "unsynced changes" indicator).
	EventSync EventType = "sync"
)

// Event is a session-to-UI notification. Fields are populated per type.
type Event struct {
	Type       EventType `json:"type"`
	Phase      Phase     `json:"phase,omitempty"`
	QuestionID uuid.UUID `json:"question_id,omitempty"`
	Remaining  int       `json:"remaining,omitempty"`
	Pending    int       `json:"pending,omitempty"`
}

// Listener receives session events. It is invoked outside the session lock
// but on the session's calling goroutine; it must not block.
type Listener func(Event)
