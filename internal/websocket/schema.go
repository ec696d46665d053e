package websocket

import (
	"encoding/json"

	"github.com/prepium/ieltsprep-backend/internal/model"
	"github.com/prepium/ieltsprep-backend/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSaveAnswer   Action = "save_answer"
	ActionToggleChoice Action = "toggle_choice"
	ActionToggleFlag   Action = "toggle_flag"
	ActionNavigate     Action = "navigate"
	ActionAudioReady   Action = "audio_ready"
	ActionAudioFailed  Action = "audio_failed"
	ActionStartReview  Action = "start_review"
	ActionSubmit       Action = "submit"
	ActionPing         Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// SaveAnswerRequest stores one answer; an empty answer clears it.
type SaveAnswerRequest struct {
	Action Action            `json:"action"`
	QID    string            `json:"q_id"`
	Answer model.AnswerValue `json:"answer"`
}

// ToggleChoiceRequest flips one option in a multi-select answer.
type ToggleChoiceRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id"`
	Option string `json:"option"`
}

// ToggleFlagRequest flips the review flag on a question.
type ToggleFlagRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id"`
}

// NavigateRequest moves the current position to a question.
type NavigateRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id"`
}

// AudioReadyRequest reports the section audio is buffered and about to play.
type AudioReadyRequest struct {
	Action    Action `json:"action"`
	SectionID string `json:"section_id"`
}

// AudioFailedRequest reports a playback failure; it never charges the
// allowance.
type AudioFailedRequest struct {
	Action    Action `json:"action"`
	SectionID string `json:"section_id"`
	Reason    string `json:"reason"`
}

// StartReviewRequest enters the fixed review window.
type StartReviewRequest struct {
	Action Action `json:"action"`
}

// SubmitRequest finishes the attempt.
type SubmitRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError       Event = "error"
	EventSuccess     Event = "success"
	EventTimerTick   Event = "timer_tick"
	EventReviewTick  Event = "review_tick"
	EventPhaseChange Event = "phase_change"
	EventScrollTo    Event = "scroll_to"
	EventSyncState   Event = "sync_state"
	EventSubmitted   Event = "submitted"
	EventPong        Event = "pong"
)

type SuccessResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action"`
	Status string `json:"status"`
}

// FlagResponse reports the new flag state after a toggle.
type FlagResponse struct {
	Event   Event  `json:"event"`
	QID     string `json:"q_id"`
	Flagged bool   `json:"flagged"`
}

// AudioResponse reports the play count after a consumed listen.
type AudioResponse struct {
	Event     Event  `json:"event"`
	SectionID string `json:"section_id"`
	PlayCount int    `json:"play_count"`
}

// TickResponse carries a countdown update for either timer.
type TickResponse struct {
	Event     Event `json:"event"`
	Remaining int   `json:"remaining_seconds"`
}

// PhaseResponse announces a session phase transition.
type PhaseResponse struct {
	Event Event         `json:"event"`
	Phase session.Phase `json:"phase"`
}

// ScrollToResponse tells the client to bring a question into view.
type ScrollToResponse struct {
	Event Event  `json:"event"`
	QID   string `json:"q_id"`
}

// SyncResponse reports the number of writes still waiting to reach the
// document store. Zero means everything is saved.
type SyncResponse struct {
	Event   Event `json:"event"`
	Pending int   `json:"pending"`
}

// SubmittedResponse carries the final submission receipt.
type SubmittedResponse struct {
	Event  Event               `json:"event"`
	Result *model.SubmitResult `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// Decode re-parses a raw frame into a concrete request type.
func Decode[T any](raw []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
