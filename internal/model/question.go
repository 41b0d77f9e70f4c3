package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type QuestionType string

const (
	QuestionTypeChoice      QuestionType = "CHOICE"
	QuestionTypeFillBlank   QuestionType = "FILL_BLANK"
	QuestionTypeShortAnswer QuestionType = "SHORT_ANSWER"
	QuestionTypeProof       QuestionType = "PROOF"
)

// QuestionTypes lists every supported type in display order.
var QuestionTypes = []QuestionType{
	QuestionTypeChoice,
	QuestionTypeFillBlank,
	QuestionTypeShortAnswer,
	QuestionTypeProof,
}

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	for _, known := range QuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Subjective reports whether answers of this type need a human reviewer.
func (t QuestionType) Subjective() bool {
	return t == QuestionTypeShortAnswer || t == QuestionTypeProof
}

// Question is a bank entry as exposed by the question store.
type Question struct {
	ID         uuid.UUID       `json:"id"`
	Type       QuestionType    `json:"type"`
	Difficulty int             `json:"difficulty"`
	CategoryID int             `json:"category_id"`
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	Options    json.RawMessage `json:"options,omitempty"`
	AnswerKey  string          `json:"answer_key"`
	BaseScore  int             `json:"base_score"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ForStudent strips the answer key and attaches the paper-specific score and position.
func (q *Question) ForStudent(score, sortOrder int) QuestionForStudent {
	return QuestionForStudent{
		ID:         q.ID,
		Type:       q.Type,
		Difficulty: q.Difficulty,
		Title:      q.Title,
		Content:    q.Content,
		Options:    q.Options,
		Score:      score,
		SortOrder:  sortOrder,
	}
}

// QuestionForStudent is a question without the answer key, sent to students.
type QuestionForStudent struct {
	ID         uuid.UUID       `json:"id"`
	Type       QuestionType    `json:"type"`
	Difficulty int             `json:"difficulty"`
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	Options    json.RawMessage `json:"options,omitempty"`
	Score      int             `json:"score"`
	SortOrder  int             `json:"sort_order"`
}

// QuestionFilter narrows a random sample from the bank. Nil fields match anything.
type QuestionFilter struct {
	CategoryID *int
	Type       *QuestionType
	Difficulty *int
	Exclude    []uuid.UUID
	Limit      int
}
