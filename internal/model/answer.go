package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// AnswerItem is the wire shape of one submitted answer.
// Answer holds a string for CHOICE, SHORT_ANSWER and PROOF, and either a
// "|"/";" delimited string or a string array for FILL_BLANK.
type AnswerItem struct {
	QuestionID      uuid.UUID       `json:"question_id" binding:"required"`
	Type            QuestionType    `json:"type" binding:"required,question_type"`
	Answer          json.RawMessage `json:"answer"`
	TimeUsedSeconds *int            `json:"time_used_seconds,omitempty" binding:"omitempty,min=0"`
}

// Answer is a decoded submission entry. The concrete types are
// ChoiceAnswer, FillBlankAnswer and TextAnswer.
type Answer interface {
	QuestionID() uuid.UUID
	Type() QuestionType
	item() AnswerItem
}

type ChoiceAnswer struct {
	Question uuid.UUID
	Choice   string
	TimeUsed *int
}

func (a ChoiceAnswer) QuestionID() uuid.UUID { return a.Question }
func (a ChoiceAnswer) Type() QuestionType    { return QuestionTypeChoice }
func (a ChoiceAnswer) item() AnswerItem {
	raw, _ := json.Marshal(a.Choice)
	return AnswerItem{QuestionID: a.Question, Type: QuestionTypeChoice, Answer: raw, TimeUsedSeconds: a.TimeUsed}
}

// FillBlankAnswer keeps the delimited form when the client sent one, so the
// stored submission matches what was received.
type FillBlankAnswer struct {
	Question  uuid.UUID
	Blanks    []string
	Delimited string
	TimeUsed  *int
}

func (a FillBlankAnswer) QuestionID() uuid.UUID { return a.Question }
func (a FillBlankAnswer) Type() QuestionType    { return QuestionTypeFillBlank }
func (a FillBlankAnswer) item() AnswerItem {
	var raw []byte
	if a.Delimited != "" {
		raw, _ = json.Marshal(a.Delimited)
	} else {
		blanks := a.Blanks
		if blanks == nil {
			blanks = []string{}
		}
		raw, _ = json.Marshal(blanks)
	}
	return AnswerItem{QuestionID: a.Question, Type: QuestionTypeFillBlank, Answer: raw, TimeUsedSeconds: a.TimeUsed}
}

// TextAnswer carries free text for SHORT_ANSWER and PROOF questions.
type TextAnswer struct {
	Question uuid.UUID
	Kind     QuestionType
	Text     string
	TimeUsed *int
}

func (a TextAnswer) QuestionID() uuid.UUID { return a.Question }
func (a TextAnswer) Type() QuestionType    { return a.Kind }
func (a TextAnswer) item() AnswerItem {
	raw, _ := json.Marshal(a.Text)
	return AnswerItem{QuestionID: a.Question, Type: a.Kind, Answer: raw, TimeUsedSeconds: a.TimeUsed}
}

// AnswerError points at the offending entry of a submission.
type AnswerError struct {
	Index      int
	QuestionID uuid.UUID
	Reason     string
}

func (e *AnswerError) Error() string {
	return fmt.Sprintf("answers[%d] (question %s): %s", e.Index, e.QuestionID, e.Reason)
}

// Field is the request field path used in validation responses.
func (e *AnswerError) Field() string {
	return fmt.Sprintf("answers[%d]", e.Index)
}

// DecodeAnswers turns wire items into typed answers, rejecting malformed
// payloads and repeated question ids.
func DecodeAnswers(items []AnswerItem) ([]Answer, error) {
	seen := make(map[uuid.UUID]struct{}, len(items))
	out := make([]Answer, 0, len(items))
	for i, it := range items {
		if _, dup := seen[it.QuestionID]; dup {
			return nil, &AnswerError{Index: i, QuestionID: it.QuestionID, Reason: "duplicate answer for question"}
		}
		seen[it.QuestionID] = struct{}{}

		a, reason := decodeAnswer(it)
		if reason != "" {
			return nil, &AnswerError{Index: i, QuestionID: it.QuestionID, Reason: reason}
		}
		out = append(out, a)
	}
	return out, nil
}

func decodeAnswer(it AnswerItem) (Answer, string) {
	switch it.Type {
	case QuestionTypeChoice:
		s, ok := decodeString(it.Answer)
		if !ok {
			return nil, "CHOICE answer must be a string"
		}
		return ChoiceAnswer{Question: it.QuestionID, Choice: s, TimeUsed: it.TimeUsedSeconds}, ""

	case QuestionTypeFillBlank:
		if s, ok := decodeString(it.Answer); ok {
			return FillBlankAnswer{Question: it.QuestionID, Blanks: SplitBlanks(s), Delimited: s, TimeUsed: it.TimeUsedSeconds}, ""
		}
		var blanks []string
		if err := json.Unmarshal(it.Answer, &blanks); err != nil {
			return nil, "FILL_BLANK answer must be a string or an array of strings"
		}
		return FillBlankAnswer{Question: it.QuestionID, Blanks: blanks, TimeUsed: it.TimeUsedSeconds}, ""

	case QuestionTypeShortAnswer, QuestionTypeProof:
		s, ok := decodeString(it.Answer)
		if !ok {
			return nil, string(it.Type) + " answer must be a string"
		}
		return TextAnswer{Question: it.QuestionID, Kind: it.Type, Text: s, TimeUsed: it.TimeUsedSeconds}, ""
	}
	return nil, "unknown question type"
}

// decodeString accepts a JSON string; an absent or null answer decodes to "".
func decodeString(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", true
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", false
	}
	return s, true
}

// EncodeAnswers renders answers back to their wire form for storage.
func EncodeAnswers(answers []Answer) (json.RawMessage, error) {
	items := make([]AnswerItem, 0, len(answers))
	for _, a := range answers {
		items = append(items, a.item())
	}
	return json.Marshal(items)
}

var blankSeparator = regexp.MustCompile(`[|;]`)

// SplitBlanks splits a delimited fill-in answer or key on "|" or ";".
// Trailing empty blanks are dropped; inner empty blanks are kept.
func SplitBlanks(s string) []string {
	parts := blankSeparator.Split(s, -1)
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
