package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-papers/internal/model"
)

const examColumns = `id, title, subject_id, duration_minutes, total_score, start_time, end_time,
	status, owner_id, created_at, updated_at`

// ExamRepository reads exam headers from the catalog.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e, err := scanExam(r.pool.QueryRow(ctx, `SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return e, nil
}

// ListOngoing returns exams marked ONGOING whose window contains now.
func (r *ExamRepository) ListOngoing(ctx context.Context, now time.Time) ([]model.Exam, error) {
	return r.list(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE status = $1 AND start_time <= $2 AND end_time >= $2
		 ORDER BY start_time`,
		model.ExamStatusOngoing, now)
}

// ListUpcoming returns PUBLISHED exams that start after now.
func (r *ExamRepository) ListUpcoming(ctx context.Context, now time.Time) ([]model.Exam, error) {
	return r.list(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE status = $1 AND start_time > $2
		 ORDER BY start_time`,
		model.ExamStatusPublished, now)
}

// Create inserts an exam header. Used by seeding tools and tests.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, subject_id, duration_minutes, total_score, start_time, end_time, status, owner_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		e.Title, e.SubjectID, e.DurationMinutes, e.TotalScore, e.StartTime, e.EndTime, e.Status, e.OwnerID,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (r *ExamRepository) list(ctx context.Context, query string, args ...interface{}) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

func scanExam(row pgx.Row) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.Title, &e.SubjectID, &e.DurationMinutes, &e.TotalScore,
		&e.StartTime, &e.EndTime, &e.Status, &e.OwnerID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}
