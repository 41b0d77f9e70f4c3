package model

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
)

func TestDecodeAnswers(t *testing.T) {
	q1, q2, q3 := uuid.New(), uuid.New(), uuid.New()
	items := []AnswerItem{
		{QuestionID: q1, Type: QuestionTypeChoice, Answer: json.RawMessage(`" B "`)},
		{QuestionID: q2, Type: QuestionTypeFillBlank, Answer: json.RawMessage(`"Paris;Rome"`)},
		{QuestionID: q3, Type: QuestionTypeFillBlank, Answer: nil},
	}

	answers, err := DecodeAnswers(items)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(answers) != 3 {
		t.Fatalf("expected 3 answers, got %d", len(answers))
	}

	choice, ok := answers[0].(ChoiceAnswer)
	if !ok || choice.Choice != " B " {
		t.Fatalf("unexpected choice answer %#v", answers[0])
	}
	blanks, ok := answers[1].(FillBlankAnswer)
	if !ok || !reflect.DeepEqual(blanks.Blanks, []string{"Paris", "Rome"}) {
		t.Fatalf("unexpected fill blank answer %#v", answers[1])
	}
	if empty := answers[2].(FillBlankAnswer); len(empty.Blanks) != 0 {
		t.Fatalf("null answer should decode to no blanks, got %#v", empty.Blanks)
	}
}

func TestDecodeAnswersRejectsWrongShape(t *testing.T) {
	q := uuid.New()
	_, err := DecodeAnswers([]AnswerItem{
		{QuestionID: uuid.New(), Type: QuestionTypeProof, Answer: json.RawMessage(`"proof"`)},
		{QuestionID: q, Type: QuestionTypeChoice, Answer: json.RawMessage(`["A","B"]`)},
	})
	var ae *AnswerError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AnswerError, got %v", err)
	}
	if ae.Index != 1 || ae.QuestionID != q || ae.Field() != "answers[1]" {
		t.Fatalf("unexpected error target %+v", ae)
	}
}

func TestDecodeAnswersRejectsDuplicates(t *testing.T) {
	q := uuid.New()
	_, err := DecodeAnswers([]AnswerItem{
		{QuestionID: q, Type: QuestionTypeChoice, Answer: json.RawMessage(`"A"`)},
		{QuestionID: q, Type: QuestionTypeChoice, Answer: json.RawMessage(`"B"`)},
	})
	var ae *AnswerError
	if !errors.As(err, &ae) || ae.Index != 1 {
		t.Fatalf("expected duplicate rejected at index 1, got %v", err)
	}
}

func TestEncodeAnswersKeepsDelimitedForm(t *testing.T) {
	q := uuid.New()
	answers, err := DecodeAnswers([]AnswerItem{
		{QuestionID: q, Type: QuestionTypeFillBlank, Answer: json.RawMessage(`"a|b"`)},
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw, err := EncodeAnswers(answers)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var items []AnswerItem
	if err := json.Unmarshal(raw, &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(items[0].Answer) != `"a|b"` {
		t.Fatalf("stored answer = %s, want the delimited string", items[0].Answer)
	}
}

func TestSplitBlanks(t *testing.T) {
	tests := map[string][]string{
		"a|b;c": {"a", "b", "c"},
		"a||b":  {"a", "", "b"},
		"a|b|":  {"a", "b"},
		"":      {},
	}
	for in, want := range tests {
		got := SplitBlanks(in)
		if len(got) == 0 && len(want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("SplitBlanks(%q) = %q, want %q", in, got, want)
		}
	}
}
