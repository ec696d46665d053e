package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerValueWireShapes(t *testing.T) {
	// Each kind serializes as its bare JSON shape, not a wrapper object.
	raw, err := json.Marshal(TextAnswer("paris"))
	require.NoError(t, err)
	assert.JSONEq(t, `"paris"`, string(raw))

	raw, err = json.Marshal(ListAnswer("B", "D"))
	require.NoError(t, err)
	assert.JSONEq(t, `["B","D"]`, string(raw))

	raw, err = json.Marshal(FieldsAnswer(map[string]string{"1-2": "salt"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"1-2":"salt"}`, string(raw))
}

func TestAnswerValueDecodeInfersKind(t *testing.T) {
	var v AnswerValue

	require.NoError(t, json.Unmarshal([]byte(`"true"`), &v))
	assert.Equal(t, AnswerKindText, v.Kind)
	assert.Equal(t, "true", v.Text)

	require.NoError(t, json.Unmarshal([]byte(`["A","C"]`), &v))
	assert.Equal(t, AnswerKindList, v.Kind)
	assert.Equal(t, []string{"A", "C"}, v.List)

	require.NoError(t, json.Unmarshal([]byte(`{"A":"iv"}`), &v))
	assert.Equal(t, AnswerKindFields, v.Kind)
	assert.Equal(t, map[string]string{"A": "iv"}, v.Fields)

	require.Error(t, json.Unmarshal([]byte(`42`), &v),
		"numbers are not a valid answer shape")
	require.Error(t, json.Unmarshal([]byte(`[1,2]`), &v))
}

func TestAnswerValueEmptiness(t *testing.T) {
	assert.True(t, TextAnswer("").IsEmpty())
	assert.True(t, ListAnswer().IsEmpty())
	assert.True(t, FieldsAnswer(nil).IsEmpty())
	assert.True(t, FieldsAnswer(map[string]string{}).IsEmpty())
	assert.True(t, AnswerValue{}.IsEmpty(), "the zero value counts as empty")

	// Whitespace is content: only the truly empty string deletes.
	assert.False(t, TextAnswer(" ").IsEmpty())
	assert.False(t, ListAnswer("A").IsEmpty())
	assert.False(t, FieldsAnswer(map[string]string{"k": ""}).IsEmpty())
}

func TestNilCollectionsMarshalAsEmpty(t *testing.T) {
	raw, err := json.Marshal(AnswerValue{Kind: AnswerKindList})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))

	raw, err = json.Marshal(AnswerValue{Kind: AnswerKindFields})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(raw))
}
