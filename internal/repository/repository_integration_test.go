//go:build integration

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-papers/internal/database"
	"github.com/stemsi/exstem-papers/internal/model"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "exstem", "POSTGRES_PASSWORD": "exstem", "POSTGRES_DB": "papers"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return fmt.Sprintf("postgres://exstem:exstem@%s:%s/papers?sslmode=disable", host, port.Port())
}

type store struct {
	exams     *ExamRepository
	questions *QuestionRepository
	papers    *PaperRepository
	records   *ExamRecordRepository
	events    *RecordEventRepository
}

func setupStore(t *testing.T) (*store, context.Context) {
	t.Helper()
	ctx := context.Background()
	dsn := startPostgres(t, ctx)
	if err := database.MigrateUp(dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := database.OpenPool(ctx, dsn, 4)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	return &store{
		exams:     NewExamRepository(pool),
		questions: NewQuestionRepository(pool),
		papers:    NewPaperRepository(pool),
		records:   NewExamRecordRepository(pool),
		events:    NewRecordEventRepository(pool),
	}, ctx
}

func (s *store) seed(t *testing.T, ctx context.Context, n int) (*model.Exam, []model.Question) {
	t.Helper()
	now := time.Now().UTC()
	exam := &model.Exam{
		Title:           "Integration",
		DurationMinutes: 60,
		StartTime:       now.Add(-time.Hour),
		EndTime:         now.Add(time.Hour),
		Status:          model.ExamStatusOngoing,
		OwnerID:         7,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		t.Fatalf("create exam: %v", err)
	}

	qs := make([]model.Question, n)
	for i := range qs {
		typ := model.QuestionTypeChoice
		if i%2 == 1 {
			typ = model.QuestionTypeFillBlank
		}
		qs[i] = model.Question{
			Type:       typ,
			Difficulty: 1 + i%5,
			CategoryID: 3,
			Title:      fmt.Sprintf("Q%d", i+1),
			Options:    json.RawMessage(`["A","B"]`),
			AnswerKey:  "A",
			BaseScore:  2,
		}
	}
	if err := s.questions.CreateBatch(ctx, qs); err != nil {
		t.Fatalf("create questions: %v", err)
	}
	return exam, qs
}

func links(qs []model.Question, score int) []model.ScoredQuestion {
	out := make([]model.ScoredQuestion, len(qs))
	for i, q := range qs {
		out[i] = model.ScoredQuestion{QuestionID: q.ID, Score: score, SortOrder: i + 1}
	}
	return out
}

func TestPaperTotalsFollowLinks(t *testing.T) {
	s, ctx := setupStore(t)
	exam, qs := s.seed(t, ctx, 6)

	p := &model.Paper{ExamID: exam.ID, Title: "A", DurationMinutes: 60, Status: model.PaperStatusDraft, OwnerID: 7}
	if err := s.papers.CreateWithQuestions(ctx, p, links(qs[:4], 5)); err != nil {
		t.Fatalf("create paper: %v", err)
	}
	if p.TotalQuestions != 4 || p.TotalScore != 20 {
		t.Fatalf("totals = %d/%d, want 4/20", p.TotalQuestions, p.TotalScore)
	}

	updated, err := s.papers.MutateQuestions(ctx, p.ID, func(_ *model.Paper, cur []model.ScoredQuestion) ([]model.ScoredQuestion, error) {
		return append(cur, model.ScoredQuestion{QuestionID: qs[4].ID, Score: 9, SortOrder: len(cur) + 1}), nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if updated.TotalQuestions != 5 || updated.TotalScore != 29 {
		t.Fatalf("totals = %d/%d, want 5/29", updated.TotalQuestions, updated.TotalScore)
	}

	stats, err := s.papers.Statistics(ctx, p.ID)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats[model.QuestionTypeChoice].Count+stats[model.QuestionTypeFillBlank].Count != 5 {
		t.Fatalf("stats = %+v", stats)
	}

	sampled, err := s.questions.Sample(ctx, model.QuestionFilter{Exclude: []uuid.UUID{qs[0].ID, qs[1].ID}, Limit: 10})
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(sampled) != 4 {
		t.Fatalf("sampled %d, want 4", len(sampled))
	}
}

func TestOnePublishedPaperPerExam(t *testing.T) {
	s, ctx := setupStore(t)
	exam, qs := s.seed(t, ctx, 2)

	var ids []uuid.UUID
	for i := 0; i < 2; i++ {
		p := &model.Paper{ExamID: exam.ID, Title: "P", DurationMinutes: 60, Status: model.PaperStatusDraft, OwnerID: 7}
		if err := s.papers.CreateWithQuestions(ctx, p, links(qs, 1)); err != nil {
			t.Fatalf("create paper: %v", err)
		}
		ids = append(ids, p.ID)
	}

	draft := []model.PaperStatus{model.PaperStatusDraft}
	empty := &model.Paper{ExamID: exam.ID, Title: "Empty", DurationMinutes: 60, Status: model.PaperStatusDraft, OwnerID: 7}
	if err := s.papers.Create(ctx, empty); err != nil {
		t.Fatalf("create empty paper: %v", err)
	}
	if _, err := s.papers.SetStatus(ctx, empty.ID, draft, model.PaperStatusPublished); !errors.Is(err, ErrCheckViolation) {
		t.Fatalf("publish empty: err = %v, want ErrCheckViolation", err)
	}
	if _, err := s.papers.SetStatus(ctx, ids[0], draft, model.PaperStatusPublished); err != nil {
		t.Fatalf("publish first: %v", err)
	}
	if _, err := s.papers.SetStatus(ctx, ids[1], draft, model.PaperStatusPublished); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("publish second: err = %v, want ErrDuplicate", err)
	}
	if _, err := s.papers.SetStatus(ctx, ids[0], draft, model.PaperStatusPublished); !errors.Is(err, ErrConflict) {
		t.Fatalf("republish: err = %v, want ErrConflict", err)
	}
	if err := s.papers.Delete(ctx, ids[0]); !errors.Is(err, ErrConflict) {
		t.Fatalf("delete published: err = %v, want ErrConflict", err)
	}
}

func TestRecordLifecycle(t *testing.T) {
	s, ctx := setupStore(t)
	exam, qs := s.seed(t, ctx, 2)
	p := &model.Paper{ExamID: exam.ID, Title: "P", DurationMinutes: 60, Status: model.PaperStatusDraft, OwnerID: 7}
	if err := s.papers.CreateWithQuestions(ctx, p, links(qs, 3)); err != nil {
		t.Fatalf("create paper: %v", err)
	}

	// Concurrent starts must converge on one ONGOING record.
	const starters = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = map[uuid.UUID]bool{}
	)
	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := &model.ExamRecord{ExamID: exam.ID, PaperID: p.ID, StudentID: 101, TotalScore: 6, StartTime: time.Now()}
			ok, err := s.records.CreateOngoing(ctx, rec)
			if err != nil {
				t.Errorf("create ongoing: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			ids[rec.ID] = true
		}()
	}
	wg.Wait()
	if created != 1 || len(ids) != 1 {
		t.Fatalf("created %d records with %d ids, want exactly one", created, len(ids))
	}

	var recID uuid.UUID
	for id := range ids {
		recID = id
	}
	if err := s.papers.Delete(ctx, p.ID); !errors.Is(err, ErrInUse) {
		t.Fatalf("delete referenced draft: err = %v, want ErrInUse", err)
	}

	out := model.RecordOutcome{Status: model.RecordStatusGraded, Score: 6, SubmitTime: time.Now(), Answers: json.RawMessage(`[]`)}
	rec, err := s.records.Finish(ctx, recID, out)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if rec.Status != model.RecordStatusGraded || rec.Score != 6 {
		t.Fatalf("record = %+v", rec)
	}
	if _, err := s.records.Finish(ctx, recID, out); !errors.Is(err, ErrConflict) {
		t.Fatalf("second finish: err = %v, want ErrConflict", err)
	}
	if _, err := s.records.Expire(ctx, recID, time.Now()); !errors.Is(err, ErrConflict) {
		t.Fatalf("expire finished: err = %v, want ErrConflict", err)
	}

	done, err := s.records.CompletedExamIDs(ctx, 101)
	if err != nil || !done[exam.ID] {
		t.Fatalf("completed = %v, %v", done, err)
	}
	counts, err := s.records.CountByStatus(ctx, exam.ID)
	if err != nil || counts[model.RecordStatusGraded] != 1 {
		t.Fatalf("counts = %v, %v", counts, err)
	}

	ev := model.NewSessionEvent(model.SessionEventGraded, rec, time.Now().UTC())
	if err := s.events.InsertBatch(ctx, []model.SessionEvent{ev}); err != nil {
		t.Fatalf("insert events: %v", err)
	}
	recent, err := s.events.ListRecent(ctx, exam.ID, 10)
	if err != nil || len(recent) != 1 || recent[0].RecordID != recID {
		t.Fatalf("recent = %+v, %v", recent, err)
	}
}
