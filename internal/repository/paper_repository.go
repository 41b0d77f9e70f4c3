package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-papers/internal/database"
	"github.com/stemsi/exstem-papers/internal/model"
)

const paperColumns = `id, exam_id, title, duration_minutes, total_questions, total_score,
	status, owner_id, created_at, updated_at`

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PaperRepository persists exam papers and their scored question lists.
// Every write that touches paper_questions re-aggregates the paper totals
// from the table in the same transaction.
type PaperRepository struct {
	pool *pgxpool.Pool
}

// NewPaperRepository creates a new PaperRepository.
func NewPaperRepository(pool *pgxpool.Pool) *PaperRepository {
	return &PaperRepository{pool: pool}
}

// Create inserts an empty paper.
func (r *PaperRepository) Create(ctx context.Context, p *model.Paper) error {
	return insertPaper(ctx, r.pool, p)
}

// CreateWithQuestions inserts the paper header and all links atomically.
func (r *PaperRepository) CreateWithQuestions(ctx context.Context, p *model.Paper, links []model.ScoredQuestion) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertPaper(ctx, tx, p); err != nil {
			return err
		}
		if err := copyLinks(ctx, tx, p.ID, links); err != nil {
			return err
		}
		agg, err := reaggregate(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		*p = *agg
		return nil
	})
}

// GetByID retrieves a paper header.
func (r *PaperRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Paper, error) {
	p, err := scanPaper(r.pool.QueryRow(ctx, `SELECT `+paperColumns+` FROM exam_papers WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// ListByExam returns every paper bound to an exam, newest first.
func (r *PaperRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Paper, error) {
	return r.list(ctx,
		`SELECT `+paperColumns+` FROM exam_papers WHERE exam_id = $1 ORDER BY created_at DESC`, examID)
}

// ListPublishedByExam returns the exam's PUBLISHED papers.
func (r *PaperRepository) ListPublishedByExam(ctx context.Context, examID uuid.UUID) ([]model.Paper, error) {
	return r.list(ctx,
		`SELECT `+paperColumns+` FROM exam_papers WHERE exam_id = $1 AND status = $2 ORDER BY created_at`,
		examID, model.PaperStatusPublished)
}

// ExamsWithPublishedPaper reports which of examIDs have a PUBLISHED paper.
func (r *PaperRepository) ExamsWithPublishedPaper(ctx context.Context, examIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool, len(examIDs))
	if len(examIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT exam_id FROM exam_papers WHERE status = $1 AND exam_id = ANY($2)`,
		model.PaperStatusPublished, examIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// UpdateHeader rewrites title and duration of a DRAFT paper.
func (r *PaperRepository) UpdateHeader(ctx context.Context, p *model.Paper) (*model.Paper, error) {
	updated, err := scanPaper(r.pool.QueryRow(ctx,
		`UPDATE exam_papers SET title = $2, duration_minutes = $3, updated_at = NOW()
		 WHERE id = $1 AND status = $4
		 RETURNING `+paperColumns,
		p.ID, p.Title, p.DurationMinutes, model.PaperStatusDraft))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, translate(err)
	}
	return updated, nil
}

// SetStatus moves a paper to `to` only if its current status is one of from.
// It returns ErrConflict when the paper is no longer in an allowed state and
// ErrDuplicate when the exam already has a PUBLISHED paper. Publishing a paper
// emptied concurrently fails with ErrCheckViolation.
func (r *PaperRepository) SetStatus(ctx context.Context, id uuid.UUID, from []model.PaperStatus, to model.PaperStatus) (*model.Paper, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}
	p, err := scanPaper(r.pool.QueryRow(ctx,
		`UPDATE exam_papers SET status = $2, updated_at = NOW()
		 WHERE id = $1 AND status = ANY($3)
		 RETURNING `+paperColumns,
		id, to, allowed))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// Delete removes a paper that is not PUBLISHED. Links cascade.
func (r *PaperRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM exam_papers WHERE id = $1 AND status <> $2`, id, model.PaperStatusPublished)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// ListQuestionDetails joins the paper's links with the bank, answer keys included.
func (r *PaperRepository) ListQuestionDetails(ctx context.Context, paperID uuid.UUID) ([]model.PaperQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT pq.paper_id, pq.question_id, pq.score, pq.sort_order,
		        q.id, q.type, q.difficulty, q.category_id, q.title, q.content,
		        q.options, q.answer_key, q.base_score, q.created_at
		 FROM paper_questions pq
		 JOIN questions q ON q.id = pq.question_id
		 WHERE pq.paper_id = $1
		 ORDER BY pq.sort_order`, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PaperQuestion
	for rows.Next() {
		var (
			pq      model.PaperQuestion
			options []byte
		)
		q := &pq.Question
		if err := rows.Scan(&pq.PaperID, &pq.QuestionID, &pq.Score, &pq.SortOrder,
			&q.ID, &q.Type, &q.Difficulty, &q.CategoryID, &q.Title, &q.Content,
			&options, &q.AnswerKey, &q.BaseScore, &q.CreatedAt); err != nil {
			return nil, err
		}
		q.Options = options
		out = append(out, pq)
	}
	return out, rows.Err()
}

// MutateQuestions locks the paper row, applies fn to the current links,
// replaces the stored list with the result and re-aggregates the totals.
func (r *PaperRepository) MutateQuestions(ctx context.Context, paperID uuid.UUID, fn model.LinkMutation) (*model.Paper, error) {
	var out *model.Paper
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		p, err := scanPaper(tx.QueryRow(ctx,
			`SELECT `+paperColumns+` FROM exam_papers WHERE id = $1 FOR UPDATE`, paperID))
		if err != nil {
			return translate(err)
		}
		links, err := listLinks(ctx, tx, paperID)
		if err != nil {
			return err
		}

		next, err := fn(p, links)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM paper_questions WHERE paper_id = $1`, paperID); err != nil {
			return err
		}
		if err := copyLinks(ctx, tx, paperID, next); err != nil {
			return err
		}
		out, err = reaggregate(ctx, tx, paperID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Copy inserts dst and clones every link of srcID onto it.
func (r *PaperRepository) Copy(ctx context.Context, srcID uuid.UUID, dst *model.Paper) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertPaper(ctx, tx, dst); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO paper_questions (paper_id, question_id, score, sort_order)
			 SELECT $1, question_id, score, sort_order FROM paper_questions WHERE paper_id = $2`,
			dst.ID, srcID); err != nil {
			return translate(err)
		}
		agg, err := reaggregate(ctx, tx, dst.ID)
		if err != nil {
			return err
		}
		*dst = *agg
		return nil
	})
}

// Statistics groups the paper's links by question type.
func (r *PaperRepository) Statistics(ctx context.Context, paperID uuid.UUID) (map[model.QuestionType]model.TypeStatistics, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.type, COUNT(*)::int, COALESCE(SUM(pq.score), 0)::int
		 FROM paper_questions pq
		 JOIN questions q ON q.id = pq.question_id
		 WHERE pq.paper_id = $1
		 GROUP BY q.type`, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.QuestionType]model.TypeStatistics)
	for rows.Next() {
		var (
			t     model.QuestionType
			stats model.TypeStatistics
		)
		if err := rows.Scan(&t, &stats.Count, &stats.Score); err != nil {
			return nil, err
		}
		out[t] = stats
	}
	return out, rows.Err()
}

func (r *PaperRepository) list(ctx context.Context, query string, args ...interface{}) ([]model.Paper, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var papers []model.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, *p)
	}
	return papers, rows.Err()
}

func insertPaper(ctx context.Context, db dbtx, p *model.Paper) error {
	err := db.QueryRow(ctx,
		`INSERT INTO exam_papers (exam_id, title, duration_minutes, status, owner_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, total_questions, total_score, created_at, updated_at`,
		p.ExamID, p.Title, p.DurationMinutes, p.Status, p.OwnerID,
	).Scan(&p.ID, &p.TotalQuestions, &p.TotalScore, &p.CreatedAt, &p.UpdatedAt)
	return translate(err)
}

func copyLinks(ctx context.Context, tx pgx.Tx, paperID uuid.UUID, links []model.ScoredQuestion) error {
	if len(links) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"paper_questions"},
		[]string{"paper_id", "question_id", "score", "sort_order"},
		pgx.CopyFromSlice(len(links), func(i int) ([]interface{}, error) {
			return []interface{}{paperID, links[i].QuestionID, links[i].Score, links[i].SortOrder}, nil
		}),
	)
	return translate(err)
}

func listLinks(ctx context.Context, db dbtx, paperID uuid.UUID) ([]model.ScoredQuestion, error) {
	rows, err := db.Query(ctx,
		`SELECT paper_id, question_id, score, sort_order
		 FROM paper_questions WHERE paper_id = $1 ORDER BY sort_order`, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []model.ScoredQuestion
	for rows.Next() {
		var l model.ScoredQuestion
		if err := rows.Scan(&l.PaperID, &l.QuestionID, &l.Score, &l.SortOrder); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// reaggregate recomputes the totals from the live link table.
func reaggregate(ctx context.Context, db dbtx, paperID uuid.UUID) (*model.Paper, error) {
	p, err := scanPaper(db.QueryRow(ctx,
		`UPDATE exam_papers
		 SET total_questions = agg.n, total_score = agg.s, updated_at = NOW()
		 FROM (SELECT COUNT(*)::int AS n, COALESCE(SUM(score), 0)::int AS s
		       FROM paper_questions WHERE paper_id = $1) AS agg
		 WHERE exam_papers.id = $1
		 RETURNING exam_papers.id, exam_papers.exam_id, exam_papers.title, exam_papers.duration_minutes,
		           exam_papers.total_questions, exam_papers.total_score, exam_papers.status,
		           exam_papers.owner_id, exam_papers.created_at, exam_papers.updated_at`,
		paperID))
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func scanPaper(row pgx.Row) (*model.Paper, error) {
	p := &model.Paper{}
	err := row.Scan(&p.ID, &p.ExamID, &p.Title, &p.DurationMinutes, &p.TotalQuestions, &p.TotalScore,
		&p.Status, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}
