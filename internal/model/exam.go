package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the publication states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// ExamSettings holds the per-exam behaviour switches configured at authoring
// time. TimeLimitSeconds drives the main countdown timer.
type ExamSettings struct {
	TimeLimitSeconds int  `json:"time_limit_seconds"`
	DefaultPlayOnce  bool `json:"default_play_once"`
	AllowPause       bool `json:"allow_pause"`
	AllowSeek        bool `json:"allow_seek"`
	AllowHighlight   bool `json:"allow_highlight"`
	AllowNotes       bool `json:"allow_notes"`
}

// Exam is a full exam definition: settings, ordered sections and questions.
// Once loaded into an attempt session it is read-only; only a fresh LoadExam
// replaces it.
type Exam struct {
	ID        uuid.UUID    `json:"id"`
	Title     string       `json:"title"`
	Settings  ExamSettings `json:"settings"`
	Sections  []Section    `json:"sections"`
	Questions []Question   `json:"questions"`
	Status    ExamStatus   `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// SectionKind is derived from a section's content fields, never stored.
type SectionKind string

const (
	SectionKindListening SectionKind = "listening"
	SectionKindReading   SectionKind = "reading"
	SectionKindWriting   SectionKind = "writing"
)

// Section is a labeled subdivision of an exam: one listening recording's
// questions, one reading passage's questions, or a writing task group.
type Section struct {
	ID               uuid.UUID `json:"id"`
	ExamID           uuid.UUID `json:"exam_id"`
	Title            string    `json:"title"`
	AudioURL         string    `json:"audio_url,omitempty"`
	Passage          string    `json:"passage,omitempty"`
	PlayCountAllowed int       `json:"play_count_allowed"`
	Instructions     string    `json:"instructions,omitempty"`
	Position         int       `json:"position"`
}

// Kind classifies the section: audio makes it listening, a passage makes it
// reading, absence of both implies writing/other.
func (s *Section) Kind() SectionKind {
	switch {
	case s.AudioURL != "":
		return SectionKindListening
	case s.Passage != "":
		return SectionKindReading
	default:
		return SectionKindWriting
	}
}

// Published reports whether students may see or start this exam.
func (e *Exam) Published() bool {
	return e.Status == ExamStatusPublished
}

// SectionByID returns the section with the given ID, or nil.
func (e *Exam) SectionByID(id uuid.UUID) *Section {
	for i := range e.Sections {
		if e.Sections[i].ID == id {
			return &e.Sections[i]
		}
	}
	return nil
}

// QuestionByID returns the question with the given ID, or nil.
func (e *Exam) QuestionByID(id uuid.UUID) *Question {
	for i := range e.Questions {
		if e.Questions[i].ID == id {
			return &e.Questions[i]
		}
	}
	return nil
}

// ExamPayload is the redis-cached exam document served to students.
type ExamPayload struct {
	ExamID    uuid.UUID    `json:"exam_id"`
	Title     string       `json:"title"`
	Settings  ExamSettings `json:"settings"`
	Sections  []Section    `json:"sections"`
	Questions []Question   `json:"questions"`
}
