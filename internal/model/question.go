package model

import (
	"github.com/google/uuid"
)

// QuestionType discriminates the input widget and answer shape of a question.
type QuestionType string

const (
	QuestionTypeFill                 QuestionType = "fill"
	QuestionTypeMCQ                  QuestionType = "mcq"
	QuestionTypeMCQMultiple          QuestionType = "mcq_multiple"
	QuestionTypeTrueFalse            QuestionType = "tf"
	QuestionTypeYesNo                QuestionType = "yn"
	QuestionTypeTable                QuestionType = "table"
	QuestionTypeSummary              QuestionType = "summary"
	QuestionTypeSummaryList          QuestionType = "summary_list"
	QuestionTypeDiagram              QuestionType = "diagram"
	QuestionTypeMatchingHeadings     QuestionType = "matching_headings"
	QuestionTypeDragDrop             QuestionType = "drag_drop"
	QuestionTypeSentenceCompletion   QuestionType = "sentence_completion"
	QuestionTypeMatchingSentenceEnds QuestionType = "matching_sentence_endings"
	QuestionTypeFormCompletion       QuestionType = "form_completion"
	QuestionTypeFlowChart            QuestionType = "flow_chart"
	QuestionTypeMatchingFeatures     QuestionType = "matching_features"
	QuestionTypeShortAnswer          QuestionType = "short_answer"
	QuestionTypeWritingTask          QuestionType = "writing_task"
)

// Question is a single exam question. Order is unique within an exam and is
// the canonical "Question N" label; navigation and part grouping derive from
// it, never from section boundaries.
type Question struct {
	ID        uuid.UUID    `json:"id"`
	SectionID uuid.UUID    `json:"section_id"`
	Type      QuestionType `json:"type"`
	Order     int          `json:"order"`
	Body      string       `json:"body"`

	// Type-specific payload. Only the fields relevant to Type are populated.
	Options      []string   `json:"options,omitempty"`
	TableGrid    [][]string `json:"table_grid,omitempty"`
	GapNumbers   []int      `json:"gap_numbers,omitempty"`
	DragItems    []string   `json:"drag_items,omitempty"`
	DropZones    []string   `json:"drop_zones,omitempty"`
	Headings     []string   `json:"headings,omitempty"`
	Paragraphs   []string   `json:"paragraphs,omitempty"`
	WordLimit    int        `json:"word_limit,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
	Instructions string     `json:"instructions,omitempty"`
}

// PartForOrder maps a question's order to its fixed IELTS part:
// 1-10 => part 1, 11-20 => part 2, 21-30 => part 3, 31-40 => part 4.
// Orders beyond 40 keep extending by tens.
func PartForOrder(order int) int {
	if order < 1 {
		return 1
	}
	return (order-1)/10 + 1
}
