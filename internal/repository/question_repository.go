package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-papers/internal/model"
)

const questionColumns = `id, type, difficulty, category_id, title, content, options, answer_key, base_score, created_at`

// QuestionRepository reads the question bank.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// GetByID retrieves a single question.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return q, nil
}

// ListByIDs returns the questions among ids that exist, in no particular order.
func (r *QuestionRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

// Sample draws up to f.Limit random questions matching f in a single query.
func (r *QuestionRepository) Sample(ctx context.Context, f model.QuestionFilter) ([]model.Question, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.CategoryID != nil {
		conds = append(conds, "category_id = "+arg(*f.CategoryID))
	}
	if f.Type != nil {
		conds = append(conds, "type = "+arg(string(*f.Type)))
	}
	if f.Difficulty != nil {
		conds = append(conds, "difficulty = "+arg(*f.Difficulty))
	}
	if len(f.Exclude) > 0 {
		conds = append(conds, "NOT (id = ANY("+arg(f.Exclude)+"))")
	}

	query := `SELECT ` + questionColumns + ` FROM questions`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY random() LIMIT ` + arg(f.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

// CreateBatch bulk-loads questions with COPY. IDs are assigned here so the
// caller gets them back without a RETURNING round trip.
func (r *QuestionRepository) CreateBatch(ctx context.Context, questions []model.Question) error {
	rows := make([][]interface{}, len(questions))
	for i := range questions {
		q := &questions[i]
		if q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
		var options interface{}
		if len(q.Options) > 0 {
			options = []byte(q.Options)
		}
		rows[i] = []interface{}{q.ID, string(q.Type), q.Difficulty, q.CategoryID, q.Title, q.Content, options, q.AnswerKey, q.BaseScore}
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"questions"},
		[]string{"id", "type", "difficulty", "category_id", "title", "content", "options", "answer_key", "base_score"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func scanQuestion(row pgx.Row) (*model.Question, error) {
	q := &model.Question{}
	var options []byte
	if err := row.Scan(&q.ID, &q.Type, &q.Difficulty, &q.CategoryID, &q.Title, &q.Content,
		&options, &q.AnswerKey, &q.BaseScore, &q.CreatedAt); err != nil {
		return nil, err
	}
	q.Options = options
	return q, nil
}

func collectQuestions(rows pgx.Rows) ([]model.Question, error) {
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}
