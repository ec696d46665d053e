package model

import (
	"errors"
	"fmt"
)

// ErrUnsupportedQuestionType is returned for question types outside the
// dispatch table. Callers surface it as a visible error state instead of
// failing silently.
var ErrUnsupportedQuestionType = errors.New("unsupported question type")

// ErrAnswerShapeMismatch is returned when an answer's wire shape does not
// match what the question type expects.
var ErrAnswerShapeMismatch = errors.New("answer shape mismatch")

// AnswerShape names the wire shape a question type expects.
type AnswerShape int

const (
	ShapeText AnswerShape = iota
	ShapeList
	ShapeFields
)

func (s AnswerShape) String() string {
	switch s {
	case ShapeText:
		return "text"
	case ShapeList:
		return "list"
	case ShapeFields:
		return "fields"
	}
	return "unknown"
}

// ShapeFor is the authoritative question-type dispatch table. Every question
// type maps to exactly one answer shape; the session store itself is
// shape-agnostic and relies on callers validating against this table.
func ShapeFor(t QuestionType) (AnswerShape, error) {
	switch t {
	case QuestionTypeFill,
		QuestionTypeMCQ,
		QuestionTypeTrueFalse,
		QuestionTypeYesNo,
		QuestionTypeShortAnswer,
		QuestionTypeWritingTask:
		return ShapeText, nil

	case QuestionTypeMCQMultiple:
		return ShapeList, nil

	case QuestionTypeTable, // "row-col" cell key -> text
		QuestionTypeSummary,              // gap number (string key) -> text
		QuestionTypeSummaryList,          // gap number (string key) -> text
		QuestionTypeSentenceCompletion,   // gap number (string key) -> text
		QuestionTypeFormCompletion,       // field label -> text
		QuestionTypeFlowChart,            // step label -> text
		QuestionTypeDiagram,              // zone label -> item label
		QuestionTypeDragDrop,             // zone label -> item label
		QuestionTypeMatchingHeadings,     // paragraph label -> heading label
		QuestionTypeMatchingSentenceEnds, // sentence label -> ending label
		QuestionTypeMatchingFeatures:     // item label -> feature label
		return ShapeFields, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnsupportedQuestionType, t)
}

// shapeOfKind maps a concrete AnswerValue kind to its shape.
func shapeOfKind(k AnswerKind) AnswerShape {
	switch k {
	case AnswerKindList:
		return ShapeList
	case AnswerKindFields:
		return ShapeFields
	default:
		return ShapeText
	}
}

// ValidateAnswer checks that a value's shape matches the question's declared
// type. Empty values always pass: emptiness means deletion regardless of shape.
func ValidateAnswer(q *Question, v AnswerValue) error {
	if v.IsEmpty() {
		return nil
	}

	want, err := ShapeFor(q.Type)
	if err != nil {
		return err
	}

	if got := shapeOfKind(v.Kind); got != want {
		return fmt.Errorf("%w: question %q (%s) expects a %s answer, got %s",
			ErrAnswerShapeMismatch, q.ID, q.Type, want, got)
	}
	return nil
}
