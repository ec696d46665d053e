package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AnswerKind discriminates the three wire shapes an answer value can take.
type AnswerKind int

const (
	AnswerKindText AnswerKind = iota
	AnswerKindList
	AnswerKindFields
)

// AnswerValue is the tagged union of the three answer shapes: a single string
// (fill/mcq/tf/yn/short_answer/writing), a list of strings (mcq_multiple) or
// a string-keyed map (table cells, gap fills, zone assignments, matchings).
// On the wire it serializes as a bare string, array or object respectively.
type AnswerValue struct {
	Kind   AnswerKind
	Text   string
	List   []string
	Fields map[string]string
}

// TextAnswer builds a single-string answer value.
func TextAnswer(s string) AnswerValue {
	return AnswerValue{Kind: AnswerKindText, Text: s}
}

// ListAnswer builds a string-list answer value.
func ListAnswer(items ...string) AnswerValue {
	return AnswerValue{Kind: AnswerKindList, List: items}
}

// FieldsAnswer builds a map answer value.
func FieldsAnswer(fields map[string]string) AnswerValue {
	return AnswerValue{Kind: AnswerKindFields, Fields: fields}
}

// IsEmpty reports whether the value represents "no answer": the empty string,
// an empty list or an empty map. Empty answers are deleted from the answer
// store rather than stored, so answeredness is a pure existence check.
func (v AnswerValue) IsEmpty() bool {
	switch v.Kind {
	case AnswerKindText:
		return v.Text == ""
	case AnswerKindList:
		return len(v.List) == 0
	case AnswerKindFields:
		return len(v.Fields) == 0
	}
	return true
}

// MarshalJSON emits the underlying shape directly (string/array/object).
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case AnswerKindText:
		return json.Marshal(v.Text)
	case AnswerKindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case AnswerKindFields:
		if v.Fields == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.Fields)
	}
	return nil, fmt.Errorf("unknown answer kind %d", v.Kind)
}

// UnmarshalJSON infers the kind from the JSON token shape.
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*v = TextAnswer(text)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = AnswerValue{Kind: AnswerKindList, List: list}
		return nil
	}

	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err == nil {
		*v = AnswerValue{Kind: AnswerKindFields, Fields: fields}
		return nil
	}

	return fmt.Errorf("answer value must be a string, string array or string map")
}

// StoredAnswer is an answer as held in the session store, with the client-side
// timestamp of the last edit.
type StoredAnswer struct {
	Value     AnswerValue `json:"answer"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// AnswerRecord is a flattened answer row used in submit payloads and
// persistence queues.
type AnswerRecord struct {
	QuestionID uuid.UUID   `json:"question_id"`
	Value      AnswerValue `json:"answer"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
