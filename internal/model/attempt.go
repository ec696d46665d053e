package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt lifecycle states as persisted. The finer
// in-memory phases (submitting, review countdown) live in the session engine;
// the database only needs the coarse three.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusReview     AttemptStatus = "REVIEW"
	AttemptStatusCompleted  AttemptStatus = "COMPLETED"
)

// Attempt is one student's run through an exam, from start to submission.
type Attempt struct {
	ID         uuid.UUID     `json:"id"`
	ExamID     uuid.UUID     `json:"exam_id"`
	StudentID  int           `json:"student_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Status     AttemptStatus `json:"status"`
}

// AttemptState is the recovery snapshot served on page reload: everything the
// client needs to restore an in-flight attempt.
type AttemptState struct {
	AttemptID        uuid.UUID               `json:"attempt_id"`
	ExamID           uuid.UUID               `json:"exam_id"`
	Status           AttemptStatus           `json:"status"`
	Answers          map[string]StoredAnswer `json:"answers"`
	Flagged          []string                `json:"flagged"`
	PlayCounts       map[string]int          `json:"play_counts"`
	CurrentOrder     int                     `json:"current_order"`
	RemainingSeconds int                     `json:"remaining_seconds"`
	ReviewSeconds    int                     `json:"review_seconds"`
	PendingWrites    int                     `json:"pending_writes"`
}

// SubmitResult is returned once an attempt reaches its terminal state.
type SubmitResult struct {
	AttemptID   uuid.UUID `json:"attempt_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	Answered    int       `json:"answered"`
	Total       int       `json:"total"`
}

// SaveAnswerRequest is the HTTP payload for storing a single answer.
type SaveAnswerRequest struct {
	Answer AnswerValue `json:"answer"`
}

// NavigateRequest moves the attempt's current position to a question.
type NavigateRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
}

// PlaybackFailureRequest reports a client-side audio failure. The reason is
// logged; a failed attempt never consumes the play allowance.
type PlaybackFailureRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}
