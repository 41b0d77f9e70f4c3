package model

import (
	"time"

	"github.com/google/uuid"
)

// PaperStatus enumerates the lifecycle of an exam paper.
type PaperStatus string

const (
	PaperStatusDraft     PaperStatus = "DRAFT"
	PaperStatusPublished PaperStatus = "PUBLISHED"
	PaperStatusArchived  PaperStatus = "ARCHIVED"
)

// Paper is a concrete, ordered and scored question list bound to an exam.
// TotalQuestions and TotalScore always mirror the aggregate of its scored questions.
type Paper struct {
	ID              uuid.UUID   `json:"id"`
	ExamID          uuid.UUID   `json:"exam_id"`
	Title           string      `json:"title"`
	DurationMinutes int         `json:"duration_minutes"`
	TotalQuestions  int         `json:"total_questions"`
	TotalScore      int         `json:"total_score"`
	Status          PaperStatus `json:"status"`
	OwnerID         int         `json:"owner_id"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// ScoredQuestion links a bank question into a paper with its score and position.
type ScoredQuestion struct {
	PaperID    uuid.UUID `json:"paper_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Score      int       `json:"score"`
	SortOrder  int       `json:"sort_order"`
}

// Aggregate returns the question count and score sum of links.
func Aggregate(links []ScoredQuestion) (count, score int) {
	for _, l := range links {
		score += l.Score
	}
	return len(links), score
}

// LinkMutation computes a paper's new question list from its current one.
// Stores run it inside the transaction that persists the result.
type LinkMutation func(p *Paper, links []ScoredQuestion) ([]ScoredQuestion, error)

// PaperQuestion is a scored link joined with its bank question, answer key included.
type PaperQuestion struct {
	ScoredQuestion
	Question Question `json:"question"`
}

// PaperPreview is the owner's view of a paper.
type PaperPreview struct {
	Paper     *Paper          `json:"paper"`
	Questions []PaperQuestion `json:"questions"`
}

// PaperView is the student-facing, key-stripped rendering of a published paper.
// It is what gets cached in Redis.
type PaperView struct {
	PaperID         uuid.UUID            `json:"paper_id"`
	ExamID          uuid.UUID            `json:"exam_id"`
	Title           string               `json:"title"`
	DurationMinutes int                  `json:"duration_minutes"`
	TotalQuestions  int                  `json:"total_questions"`
	TotalScore      int                  `json:"total_score"`
	Questions       []QuestionForStudent `json:"questions"`
}

// TypeStatistics aggregates one question type within a paper.
type TypeStatistics struct {
	Count int `json:"count"`
	Score int `json:"score"`
}

// PaperStatistics summarises a paper's composition.
type PaperStatistics struct {
	PaperID        uuid.UUID                       `json:"paper_id"`
	TotalQuestions int                             `json:"total_questions"`
	TotalScore     int                             `json:"total_score"`
	ByType         map[QuestionType]TypeStatistics `json:"by_type"`
}

// SelectionRule is one line of a rule-based generation request.
type SelectionRule struct {
	CategoryID       *int          `json:"category_id" binding:"omitempty,min=1"`
	QuestionType     *QuestionType `json:"question_type" binding:"omitempty,question_type"`
	Difficulty       *int          `json:"difficulty" binding:"omitempty,min=1,max=5"`
	Count            int           `json:"count" binding:"required,min=1,max=500"`
	ScorePerQuestion int           `json:"score_per_question" binding:"min=0,max=1000"`
}

// Filter converts the rule into a bank query, skipping ids already chosen.
func (r SelectionRule) Filter(exclude []uuid.UUID) QuestionFilter {
	return QuestionFilter{
		CategoryID: r.CategoryID,
		Type:       r.QuestionType,
		Difficulty: r.Difficulty,
		Exclude:    exclude,
		Limit:      r.Count,
	}
}

// ─── Requests ───────────────────────────────────────────────────────

// CreatePaperRequest creates an empty DRAFT paper.
type CreatePaperRequest struct {
	ExamID          uuid.UUID `json:"exam_id" binding:"required"`
	Title           string    `json:"title" binding:"required,min=1,max=255"`
	DurationMinutes int       `json:"duration_minutes" binding:"min=0,max=1440"`
}

// GeneratePaperRequest composes a paper from selection rules.
type GeneratePaperRequest struct {
	ExamID          uuid.UUID       `json:"exam_id" binding:"required"`
	Title           string          `json:"title" binding:"required,min=1,max=255"`
	DurationMinutes int             `json:"duration_minutes" binding:"min=0,max=1440"`
	Rules           []SelectionRule `json:"rules" binding:"required,min=1,dive"`
}

// UpdatePaperRequest edits a DRAFT paper's header.
type UpdatePaperRequest struct {
	Title           *string `json:"title" binding:"omitempty,min=1,max=255"`
	DurationMinutes *int    `json:"duration_minutes" binding:"omitempty,min=0,max=1440"`
}

// AddQuestionRequest links one question. SortOrder outside 1..n+1 appends.
type AddQuestionRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Score      int       `json:"score" binding:"min=0,max=1000"`
	SortOrder  int       `json:"sort_order" binding:"min=0"`
}

// QuestionIDsRequest carries an ordered id list for batch add and reordering.
type QuestionIDsRequest struct {
	QuestionIDs []uuid.UUID `json:"question_ids" binding:"required,min=1"`
}
