package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerPersistJob is the payload pushed onto the answer persistence queue.
// Deleted=true means the answer row must be removed.
type AnswerPersistJob struct {
	AttemptID  uuid.UUID   `json:"attempt_id"`
	QuestionID uuid.UUID   `json:"question_id"`
	Answer     AnswerValue `json:"answer"`
	Deleted    bool        `json:"deleted"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// PlayEventJob is the payload pushed onto the play event persistence queue.
type PlayEventJob struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	SectionID uuid.UUID `json:"section_id"`
	PlayCount int       `json:"play_count"`
	PlayedAt  time.Time `json:"played_at"`
}
