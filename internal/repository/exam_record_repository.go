package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-papers/internal/model"
)

const recordColumns = `id, exam_id, paper_id, student_id, score, total_score,
	start_time, submit_time, status, answers`

// ExamRecordRepository persists student exam records.
// Uniqueness of the ONGOING record per (student, exam) and the single
// ONGOING-to-terminal transition are enforced by the database.
type ExamRecordRepository struct {
	pool *pgxpool.Pool
}

// NewExamRecordRepository creates a new ExamRecordRepository.
func NewExamRecordRepository(pool *pgxpool.Pool) *ExamRecordRepository {
	return &ExamRecordRepository{pool: pool}
}

// CreateOngoing inserts rec as ONGOING unless the student already holds an
// ONGOING record for the exam, in which case that record is loaded into rec
// and created is false.
func (r *ExamRecordRepository) CreateOngoing(ctx context.Context, rec *model.ExamRecord) (bool, error) {
	inserted, err := scanRecord(r.pool.QueryRow(ctx,
		`INSERT INTO exam_records (exam_id, paper_id, student_id, score, total_score, start_time, status)
		 VALUES ($1, $2, $3, 0, $4, $5, $6)
		 ON CONFLICT (student_id, exam_id) WHERE status = 'ONGOING' DO NOTHING
		 RETURNING `+recordColumns,
		rec.ExamID, rec.PaperID, rec.StudentID, rec.TotalScore, rec.StartTime, model.RecordStatusOngoing))
	if err == nil {
		*rec = *inserted
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, translate(err)
	}

	existing, err := r.FindOngoing(ctx, rec.StudentID, rec.ExamID)
	if err != nil {
		return false, err
	}
	*rec = *existing
	return false, nil
}

// FindOngoing returns the student's ONGOING record for the exam.
func (r *ExamRecordRepository) FindOngoing(ctx context.Context, studentID int, examID uuid.UUID) (*model.ExamRecord, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM exam_records
		 WHERE student_id = $1 AND exam_id = $2 AND status = $3`,
		studentID, examID, model.RecordStatusOngoing))
	if err != nil {
		return nil, translate(err)
	}
	return rec, nil
}

// GetByID retrieves a record including its answers.
func (r *ExamRecordRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamRecord, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM exam_records WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return rec, nil
}

// ListByStudent returns the student's records newest first, without answers.
func (r *ExamRecordRepository) ListByStudent(ctx context.Context, studentID int) ([]model.ExamRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, paper_id, student_id, score, total_score,
		        start_time, submit_time, status, NULL::jsonb
		 FROM exam_records WHERE student_id = $1
		 ORDER BY start_time DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.ExamRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// CompletedExamIDs returns the exams the student has a SUBMITTED or GRADED record for.
func (r *ExamRecordRepository) CompletedExamIDs(ctx context.Context, studentID int) (map[uuid.UUID]bool, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT exam_id FROM exam_records
		 WHERE student_id = $1 AND status IN ('SUBMITTED', 'GRADED')`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// Finish applies a submission outcome if the record is still ONGOING.
// ErrConflict means another request already moved it on.
func (r *ExamRecordRepository) Finish(ctx context.Context, id uuid.UUID, out model.RecordOutcome) (*model.ExamRecord, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`UPDATE exam_records
		 SET status = $2, score = $3, submit_time = $4, answers = $5
		 WHERE id = $1 AND status = 'ONGOING'
		 RETURNING `+recordColumns,
		id, out.Status, out.Score, out.SubmitTime, []byte(out.Answers)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, translate(err)
	}
	return rec, nil
}

// Expire moves an ONGOING record to TIMEOUT.
func (r *ExamRecordRepository) Expire(ctx context.Context, id uuid.UUID, at time.Time) (*model.ExamRecord, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`UPDATE exam_records
		 SET status = 'TIMEOUT', submit_time = GREATEST($2, start_time)
		 WHERE id = $1 AND status = 'ONGOING'
		 RETURNING `+recordColumns,
		id, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, translate(err)
	}
	return rec, nil
}

func scanRecord(row pgx.Row) (*model.ExamRecord, error) {
	rec := &model.ExamRecord{}
	var answers []byte
	err := row.Scan(&rec.ID, &rec.ExamID, &rec.PaperID, &rec.StudentID, &rec.Score, &rec.TotalScore,
		&rec.StartTime, &rec.SubmitTime, &rec.Status, &answers)
	if err != nil {
		return nil, err
	}
	if len(answers) > 0 {
		rec.Answers = answers
	}
	return rec, nil
}

// CountByStatus returns how many records of the exam sit in each status.
func (r *ExamRecordRepository) CountByStatus(ctx context.Context, examID uuid.UUID) (map[model.RecordStatus]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*)::int FROM exam_records WHERE exam_id = $1 GROUP BY status`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.RecordStatus]int)
	for rows.Next() {
		var (
			status model.RecordStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}
