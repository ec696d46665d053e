package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSectionKindDerivation(t *testing.T) {
	listening := Section{AudioURL: "https://cdn.example.com/a.mp3"}
	assert.Equal(t, SectionKindListening, listening.Kind())

	reading := Section{Passage: "The history of tea..."}
	assert.Equal(t, SectionKindReading, reading.Kind())

	// Audio wins when both are present.
	both := Section{AudioURL: "x.mp3", Passage: "text"}
	assert.Equal(t, SectionKindListening, both.Kind())

	writing := Section{}
	assert.Equal(t, SectionKindWriting, writing.Kind())
}

func TestExamPublished(t *testing.T) {
	assert.True(t, (&Exam{Status: ExamStatusPublished}).Published())
	assert.False(t, (&Exam{Status: ExamStatusDraft}).Published())
	assert.False(t, (&Exam{Status: ExamStatusArchived}).Published())
}

func TestExamLookups(t *testing.T) {
	sec := Section{ID: uuid.New()}
	q := Question{ID: uuid.New(), SectionID: sec.ID, Order: 1}
	exam := &Exam{
		ID:        uuid.New(),
		Sections:  []Section{sec},
		Questions: []Question{q},
	}

	assert.Equal(t, &exam.Sections[0], exam.SectionByID(sec.ID))
	assert.Nil(t, exam.SectionByID(uuid.New()))

	assert.Equal(t, &exam.Questions[0], exam.QuestionByID(q.ID))
	assert.Nil(t, exam.QuestionByID(uuid.New()))
}
