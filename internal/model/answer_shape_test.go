package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeForDispatch(t *testing.T) {
	textTypes := []QuestionType{
		QuestionTypeFill, QuestionTypeMCQ, QuestionTypeTrueFalse,
		QuestionTypeYesNo, QuestionTypeShortAnswer, QuestionTypeWritingTask,
	}
	for _, qt := range textTypes {
		shape, err := ShapeFor(qt)
		require.NoError(t, err, "type %s", qt)
		assert.Equal(t, ShapeText, shape, "type %s", qt)
	}

	shape, err := ShapeFor(QuestionTypeMCQMultiple)
	require.NoError(t, err)
	assert.Equal(t, ShapeList, shape)

	fieldTypes := []QuestionType{
		QuestionTypeTable, QuestionTypeSummary, QuestionTypeSummaryList,
		QuestionTypeSentenceCompletion, QuestionTypeFormCompletion,
		QuestionTypeFlowChart, QuestionTypeDiagram, QuestionTypeDragDrop,
		QuestionTypeMatchingHeadings, QuestionTypeMatchingSentenceEnds,
		QuestionTypeMatchingFeatures,
	}
	for _, qt := range fieldTypes {
		shape, err := ShapeFor(qt)
		require.NoError(t, err, "type %s", qt)
		assert.Equal(t, ShapeFields, shape, "type %s", qt)
	}
}

func TestShapeForUnknownType(t *testing.T) {
	_, err := ShapeFor(QuestionType("essay_v2"))
	require.ErrorIs(t, err, ErrUnsupportedQuestionType)
}

func TestValidateAnswer(t *testing.T) {
	fill := &Question{ID: uuid.New(), Type: QuestionTypeFill}
	multi := &Question{ID: uuid.New(), Type: QuestionTypeMCQMultiple}
	table := &Question{ID: uuid.New(), Type: QuestionTypeTable}

	require.NoError(t, ValidateAnswer(fill, TextAnswer("whale")))
	require.NoError(t, ValidateAnswer(multi, ListAnswer("A", "B")))
	require.NoError(t, ValidateAnswer(table, FieldsAnswer(map[string]string{"0-1": "x"})))

	err := ValidateAnswer(fill, ListAnswer("A"))
	require.ErrorIs(t, err, ErrAnswerShapeMismatch)
	err = ValidateAnswer(multi, TextAnswer("A"))
	require.ErrorIs(t, err, ErrAnswerShapeMismatch)
	err = ValidateAnswer(table, TextAnswer("x"))
	require.ErrorIs(t, err, ErrAnswerShapeMismatch)
}

func TestValidateAnswerEmptyAlwaysPasses(t *testing.T) {
	// Empty means delete, so the shape is irrelevant, even for a question
	// type outside the dispatch table.
	weird := &Question{ID: uuid.New(), Type: QuestionType("legacy")}
	require.NoError(t, ValidateAnswer(weird, TextAnswer("")))
	require.NoError(t, ValidateAnswer(weird, ListAnswer()))

	err := ValidateAnswer(weird, TextAnswer("content"))
	require.ErrorIs(t, err, ErrUnsupportedQuestionType)
}

func TestPartForOrder(t *testing.T) {
	assert.Equal(t, 1, PartForOrder(1))
	assert.Equal(t, 1, PartForOrder(10))
	assert.Equal(t, 2, PartForOrder(11))
	assert.Equal(t, 2, PartForOrder(20))
	assert.Equal(t, 3, PartForOrder(21))
	assert.Equal(t, 4, PartForOrder(40))
}
