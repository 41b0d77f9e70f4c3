package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-papers/internal/model"
)

// QuestionStore reads the question bank.
type QuestionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error)
	Sample(ctx context.Context, f model.QuestionFilter) ([]model.Question, error)
}

// ExamCatalog reads exam headers.
type ExamCatalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListOngoing(ctx context.Context, now time.Time) ([]model.Exam, error)
	ListUpcoming(ctx context.Context, now time.Time) ([]model.Exam, error)
}

// PaperStore persists papers. Implementations keep TotalQuestions and
// TotalScore equal to the aggregate of the stored links after every write.
type PaperStore interface {
	Create(ctx context.Context, p *model.Paper) error
	CreateWithQuestions(ctx context.Context, p *model.Paper, links []model.ScoredQuestion) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Paper, error)
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Paper, error)
	ListPublishedByExam(ctx context.Context, examID uuid.UUID) ([]model.Paper, error)
	ExamsWithPublishedPaper(ctx context.Context, examIDs []uuid.UUID) (map[uuid.UUID]bool, error)
	UpdateHeader(ctx context.Context, p *model.Paper) (*model.Paper, error)
	SetStatus(ctx context.Context, id uuid.UUID, from []model.PaperStatus, to model.PaperStatus) (*model.Paper, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListQuestionDetails(ctx context.Context, paperID uuid.UUID) ([]model.PaperQuestion, error)
	MutateQuestions(ctx context.Context, paperID uuid.UUID, fn model.LinkMutation) (*model.Paper, error)
	Copy(ctx context.Context, srcID uuid.UUID, dst *model.Paper) error
	Statistics(ctx context.Context, paperID uuid.UUID) (map[model.QuestionType]model.TypeStatistics, error)
}

// RecordStore persists exam records. CreateOngoing, Finish and Expire are
// atomic with respect to concurrent callers on the same record.
type RecordStore interface {
	CreateOngoing(ctx context.Context, rec *model.ExamRecord) (created bool, err error)
	FindOngoing(ctx context.Context, studentID int, examID uuid.UUID) (*model.ExamRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamRecord, error)
	ListByStudent(ctx context.Context, studentID int) ([]model.ExamRecord, error)
	CompletedExamIDs(ctx context.Context, studentID int) (map[uuid.UUID]bool, error)
	Finish(ctx context.Context, id uuid.UUID, out model.RecordOutcome) (*model.ExamRecord, error)
	Expire(ctx context.Context, id uuid.UUID, at time.Time) (*model.ExamRecord, error)
}

// EventPublisher fans session events out to monitors and the audit log.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.SessionEvent) error
}

// PaperViews renders the student-facing question list of a paper.
type PaperViews interface {
	Get(ctx context.Context, p *model.Paper) (*model.PaperView, error)
	Warm(ctx context.Context, p *model.Paper) error
	Evict(ctx context.Context, paperID uuid.UUID) error
}
