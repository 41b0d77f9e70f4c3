// Package grading scores submitted answers against a paper's answer keys.
package grading

import (
	"github.com/google/uuid"
	"github.com/stemsi/exstem-papers/internal/model"
)

// Key is the grading view of one scored question in a paper.
type Key struct {
	QuestionID uuid.UUID
	Type       model.QuestionType
	Score      int
	Expected   string
}

// Result is the outcome for a single answer.
type Result struct {
	Points      int
	MaxPoints   int
	Correct     bool
	NeedsReview bool
}

// Outcome aggregates a whole submission.
type Outcome struct {
	ObjectiveScore int
	Answered       int
	Correct        int
	Skipped        int
	PendingReview  bool
	Status         model.RecordStatus
}

// Strategy scores one answer of a given question type.
type Strategy interface {
	Grade(key Key, ans model.Answer) Result
}

// Grader routes each answer to the strategy for its question type.
type Grader struct {
	strategies map[model.QuestionType]Strategy
}

// NewGrader installs the built-in strategies.
func NewGrader() *Grader {
	return &Grader{
		strategies: map[model.QuestionType]Strategy{
			model.QuestionTypeChoice:      choiceStrategy{},
			model.QuestionTypeFillBlank:   fillBlankStrategy{},
			model.QuestionTypeShortAnswer: reviewStrategy{},
			model.QuestionTypeProof:       reviewStrategy{},
		},
	}
}

// Grade scores answers against keys. Answers for questions outside keys are
// skipped. The record goes to SUBMITTED when the paper holds any subjective
// question, GRADED otherwise.
func (g *Grader) Grade(keys []Key, answers []model.Answer) Outcome {
	byID := make(map[uuid.UUID]Key, len(keys))
	var out Outcome
	for _, k := range keys {
		byID[k.QuestionID] = k
		if k.Type.Subjective() {
			out.PendingReview = true
		}
	}

	for _, a := range answers {
		k, ok := byID[a.QuestionID()]
		if !ok {
			out.Skipped++
			continue
		}
		out.Answered++

		s, ok := g.strategies[k.Type]
		if !ok {
			continue
		}
		res := s.Grade(k, a)
		out.ObjectiveScore += res.Points
		if res.Correct {
			out.Correct++
		}
	}

	out.Status = model.RecordStatusGraded
	if out.PendingReview {
		out.Status = model.RecordStatusSubmitted
	}
	return out
}

// Event returns the state machine event matching the outcome.
func (o Outcome) Event() model.RecordEvent {
	if o.PendingReview {
		return model.RecordEventSubmit
	}
	return model.RecordEventGrade
}

// --- Strategies ---

type choiceStrategy struct{}

func (choiceStrategy) Grade(k Key, a model.Answer) Result {
	res := Result{MaxPoints: k.Score}
	ans, ok := a.(model.ChoiceAnswer)
	if !ok {
		return res
	}
	if k.Expected != "" && equalFold(ans.Choice, k.Expected) {
		res.Points, res.Correct = k.Score, true
	}
	return res
}

type fillBlankStrategy struct{}

func (fillBlankStrategy) Grade(k Key, a model.Answer) Result {
	res := Result{MaxPoints: k.Score}
	ans, ok := a.(model.FillBlankAnswer)
	if !ok {
		return res
	}
	expected := model.SplitBlanks(k.Expected)
	if len(expected) == 0 || len(expected) != len(ans.Blanks) {
		return res
	}
	for i := range expected {
		if !equalFold(ans.Blanks[i], expected[i]) {
			return res
		}
	}
	res.Points, res.Correct = k.Score, true
	return res
}

type reviewStrategy struct{}

func (reviewStrategy) Grade(k Key, _ model.Answer) Result {
	return Result{MaxPoints: k.Score, NeedsReview: true}
}
