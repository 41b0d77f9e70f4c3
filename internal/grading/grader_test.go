package grading

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-papers/internal/model"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"  a  b\t c ": "a b c",
		"\n":          "",
		"x":           "x",
		"New  York":   "New York",
	}
	for in, want := range tests {
		if got := normalize(in); got != want {
			t.Fatalf("normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGradePerType(t *testing.T) {
	choice := Key{QuestionID: uuid.New(), Type: model.QuestionTypeChoice, Score: 5, Expected: "B"}
	blank := Key{QuestionID: uuid.New(), Type: model.QuestionTypeFillBlank, Score: 4, Expected: "Paris|Rome"}

	tests := []struct {
		name   string
		answer model.Answer
		key    Key
		want   int
	}{
		{"choice exact", model.ChoiceAnswer{Question: choice.QuestionID, Choice: "B"}, choice, 5},
		{"choice case and spacing", model.ChoiceAnswer{Question: choice.QuestionID, Choice: "  b "}, choice, 5},
		{"choice wrong", model.ChoiceAnswer{Question: choice.QuestionID, Choice: "C"}, choice, 0},
		{"choice empty", model.ChoiceAnswer{Question: choice.QuestionID}, choice, 0},
		{"blanks all match", model.FillBlankAnswer{Question: blank.QuestionID, Blanks: []string{"paris", " ROME"}}, blank, 4},
		{"blanks delimited by semicolon", model.FillBlankAnswer{Question: blank.QuestionID, Blanks: model.SplitBlanks("Paris;Rome")}, blank, 4},
		{"blanks one wrong", model.FillBlankAnswer{Question: blank.QuestionID, Blanks: []string{"Paris", "Milan"}}, blank, 0},
		{"blanks count mismatch", model.FillBlankAnswer{Question: blank.QuestionID, Blanks: []string{"Paris"}}, blank, 0},
	}

	g := NewGrader()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := g.Grade([]Key{tt.key}, []model.Answer{tt.answer})
			if out.ObjectiveScore != tt.want {
				t.Fatalf("score = %d, want %d", out.ObjectiveScore, tt.want)
			}
			if out.Status != model.RecordStatusGraded || out.PendingReview {
				t.Fatalf("objective-only paper should be GRADED, got %q pending=%v", out.Status, out.PendingReview)
			}
		})
	}
}

func TestGradeMixedPaperNeedsReview(t *testing.T) {
	choice := Key{QuestionID: uuid.New(), Type: model.QuestionTypeChoice, Score: 5, Expected: "A"}
	essay := Key{QuestionID: uuid.New(), Type: model.QuestionTypeShortAnswer, Score: 10, Expected: "anything"}

	out := NewGrader().Grade([]Key{choice, essay}, []model.Answer{
		model.ChoiceAnswer{Question: choice.QuestionID, Choice: "a"},
		model.TextAnswer{Question: essay.QuestionID, Kind: model.QuestionTypeShortAnswer, Text: "anything"},
	})

	if out.ObjectiveScore != 5 {
		t.Fatalf("objective score = %d, want 5", out.ObjectiveScore)
	}
	if !out.PendingReview || out.Status != model.RecordStatusSubmitted {
		t.Fatalf("expected SUBMITTED pending review, got %q pending=%v", out.Status, out.PendingReview)
	}
	if out.Event() != model.RecordEventSubmit {
		t.Fatalf("event = %q", out.Event())
	}
}

func TestGradeUnansweredSubjectiveStillPending(t *testing.T) {
	proof := Key{QuestionID: uuid.New(), Type: model.QuestionTypeProof, Score: 10}
	out := NewGrader().Grade([]Key{proof}, nil)
	if out.Status != model.RecordStatusSubmitted {
		t.Fatalf("status = %q, want SUBMITTED", out.Status)
	}
}

func TestGradeSkipsForeignQuestions(t *testing.T) {
	choice := Key{QuestionID: uuid.New(), Type: model.QuestionTypeChoice, Score: 3, Expected: "A"}
	out := NewGrader().Grade([]Key{choice}, []model.Answer{
		model.ChoiceAnswer{Question: uuid.New(), Choice: "A"},
		model.ChoiceAnswer{Question: choice.QuestionID, Choice: "A"},
	})
	if out.ObjectiveScore != 3 || out.Skipped != 1 || out.Answered != 1 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestGradeTypeMismatchScoresZero(t *testing.T) {
	choice := Key{QuestionID: uuid.New(), Type: model.QuestionTypeChoice, Score: 3, Expected: "A"}
	out := NewGrader().Grade([]Key{choice}, []model.Answer{
		model.FillBlankAnswer{Question: choice.QuestionID, Blanks: []string{"A"}},
	})
	if out.ObjectiveScore != 0 {
		t.Fatalf("mismatched answer type should not score, got %d", out.ObjectiveScore)
	}
}
