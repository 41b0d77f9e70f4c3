package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-papers/internal/model"
)

// RecordEventRepository appends session events to the audit table.
type RecordEventRepository struct {
	pool *pgxpool.Pool
}

// NewRecordEventRepository creates a new RecordEventRepository.
func NewRecordEventRepository(pool *pgxpool.Pool) *RecordEventRepository {
	return &RecordEventRepository{pool: pool}
}

// InsertBatch writes all events with one UNNEST insert.
func (r *RecordEventRepository) InsertBatch(ctx context.Context, events []model.SessionEvent) error {
	if len(events) == 0 {
		return nil
	}

	n := len(events)
	types := make([]string, n)
	examIDs := make([]uuid.UUID, n)
	recordIDs := make([]uuid.UUID, n)
	students := make([]int, n)
	scores := make([]int, n)
	occurred := make([]time.Time, n)
	for i, ev := range events {
		types[i] = string(ev.Type)
		examIDs[i] = ev.ExamID
		recordIDs[i] = ev.RecordID
		students[i] = ev.StudentID
		scores[i] = ev.Score
		occurred[i] = ev.OccurredAt
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_record_events (event_type, exam_id, record_id, student_id, score, occurred_at)
		 SELECT * FROM UNNEST($1::text[], $2::uuid[], $3::uuid[], $4::int[], $5::int[], $6::timestamptz[])`,
		types, examIDs, recordIDs, students, scores, occurred)
	return err
}

// Insert writes a single event.
func (r *RecordEventRepository) Insert(ctx context.Context, ev model.SessionEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_record_events (event_type, exam_id, record_id, student_id, score, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.Type, ev.ExamID, ev.RecordID, ev.StudentID, ev.Score, ev.OccurredAt)
	return err
}

// ListRecent returns the exam's latest events, newest first.
func (r *RecordEventRepository) ListRecent(ctx context.Context, examID uuid.UUID, limit int) ([]model.SessionEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT event_type, exam_id, record_id, student_id, score, occurred_at
		 FROM exam_record_events WHERE exam_id = $1
		 ORDER BY occurred_at DESC LIMIT $2`, examID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.SessionEvent
	for rows.Next() {
		var ev model.SessionEvent
		if err := rows.Scan(&ev.Type, &ev.ExamID, &ev.RecordID, &ev.StudentID, &ev.Score, &ev.OccurredAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
