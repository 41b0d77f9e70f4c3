package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-papers/internal/model"
	"github.com/stemsi/exstem-papers/internal/repository"
)

// In-memory stores mirroring the guarantees of the Postgres repositories.

type fakeQuestions struct {
	mu   sync.Mutex
	byID map[uuid.UUID]model.Question
	ids  []uuid.UUID
}

func newFakeQuestions() *fakeQuestions {
	return &fakeQuestions{byID: make(map[uuid.UUID]model.Question)}
}

func (f *fakeQuestions) add(t model.QuestionType, key string, baseScore int) model.Question {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := model.Question{
		ID:         uuid.New(),
		Type:       t,
		Difficulty: 2,
		CategoryID: 1,
		Title:      "Q" + string(t),
		Content:    "content",
		AnswerKey:  key,
		BaseScore:  baseScore,
	}
	f.byID[q.ID] = q
	f.ids = append(f.ids, q.ID)
	return q
}

func (f *fakeQuestions) GetByID(_ context.Context, id uuid.UUID) (*model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &q, nil
}

func (f *fakeQuestions) ListByIDs(_ context.Context, ids []uuid.UUID) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Question
	for _, id := range ids {
		if q, ok := f.byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuestions) Sample(_ context.Context, filter model.QuestionFilter) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	excluded := make(map[uuid.UUID]bool, len(filter.Exclude))
	for _, id := range filter.Exclude {
		excluded[id] = true
	}
	var out []model.Question
	for _, id := range f.ids {
		q := f.byID[id]
		switch {
		case excluded[id]:
		case filter.Type != nil && q.Type != *filter.Type:
		case filter.CategoryID != nil && q.CategoryID != *filter.CategoryID:
		case filter.Difficulty != nil && q.Difficulty != *filter.Difficulty:
		default:
			out = append(out, q)
		}
		if len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

type fakeExams struct {
	mu   sync.Mutex
	byID map[uuid.UUID]model.Exam
}

func newFakeExams() *fakeExams {
	return &fakeExams{byID: make(map[uuid.UUID]model.Exam)}
}

func (f *fakeExams) put(e model.Exam) model.Exam {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	f.byID[e.ID] = e
	return e
}

func (f *fakeExams) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (f *fakeExams) ListOngoing(_ context.Context, now time.Time) ([]model.Exam, error) {
	return f.filter(func(e model.Exam) bool {
		return e.Status == model.ExamStatusOngoing && !now.Before(e.StartTime) && !now.After(e.EndTime)
	}), nil
}

func (f *fakeExams) ListUpcoming(_ context.Context, now time.Time) ([]model.Exam, error) {
	return f.filter(func(e model.Exam) bool {
		return e.Status == model.ExamStatusPublished && e.StartTime.After(now)
	}), nil
}

func (f *fakeExams) filter(keep func(model.Exam) bool) []model.Exam {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Exam
	for _, e := range f.byID {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

type fakePapers struct {
	mu        sync.Mutex
	questions *fakeQuestions
	byID      map[uuid.UUID]model.Paper
	links     map[uuid.UUID][]model.ScoredQuestion
	order     []uuid.UUID
	inUse     map[uuid.UUID]bool
	// beforeSetStatus runs ahead of SetStatus to interleave a concurrent writer.
	beforeSetStatus func()
}

func newFakePapers(questions *fakeQuestions) *fakePapers {
	return &fakePapers{
		questions: questions,
		byID:      make(map[uuid.UUID]model.Paper),
		links:     make(map[uuid.UUID][]model.ScoredQuestion),
		inUse:     make(map[uuid.UUID]bool),
	}
}

var errBrokenOrder = errors.New("fake: sort orders not contiguous or question repeated")

func (f *fakePapers) insertLocked(p *model.Paper, links []model.ScoredQuestion) error {
	if err := checkLinks(links); err != nil {
		return err
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	f.setLinksLocked(p, links)
	f.byID[p.ID] = *p
	f.order = append(f.order, p.ID)
	return nil
}

func (f *fakePapers) setLinksLocked(p *model.Paper, links []model.ScoredQuestion) {
	stored := make([]model.ScoredQuestion, len(links))
	for i, l := range links {
		l.PaperID = p.ID
		stored[i] = l
	}
	f.links[p.ID] = stored
	p.TotalQuestions, p.TotalScore = model.Aggregate(stored)
}

func checkLinks(links []model.ScoredQuestion) error {
	seen := make(map[uuid.UUID]bool, len(links))
	for i, l := range links {
		if l.SortOrder != i+1 || seen[l.QuestionID] {
			return errBrokenOrder
		}
		seen[l.QuestionID] = true
	}
	return nil
}

func (f *fakePapers) Create(_ context.Context, p *model.Paper) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertLocked(p, nil)
}

func (f *fakePapers) CreateWithQuestions(_ context.Context, p *model.Paper, links []model.ScoredQuestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertLocked(p, links)
}

func (f *fakePapers) GetByID(_ context.Context, id uuid.UUID) (*model.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (f *fakePapers) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Paper, error) {
	return f.list(func(p model.Paper) bool { return p.ExamID == examID }), nil
}

func (f *fakePapers) ListPublishedByExam(_ context.Context, examID uuid.UUID) ([]model.Paper, error) {
	return f.list(func(p model.Paper) bool {
		return p.ExamID == examID && p.Status == model.PaperStatusPublished
	}), nil
}

func (f *fakePapers) list(keep func(model.Paper) bool) []model.Paper {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Paper
	for _, id := range f.order {
		if p, ok := f.byID[id]; ok && keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakePapers) ExamsWithPublishedPaper(_ context.Context, examIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(examIDs))
	for _, id := range examIDs {
		wanted[id] = true
	}
	out := make(map[uuid.UUID]bool)
	for _, p := range f.byID {
		if p.Status == model.PaperStatusPublished && wanted[p.ExamID] {
			out[p.ExamID] = true
		}
	}
	return out, nil
}

func (f *fakePapers) UpdateHeader(_ context.Context, p *model.Paper) (*model.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[p.ID]
	if !ok || cur.Status != model.PaperStatusDraft {
		return nil, repository.ErrConflict
	}
	cur.Title = p.Title
	cur.DurationMinutes = p.DurationMinutes
	f.byID[p.ID] = cur
	return &cur, nil
}

func (f *fakePapers) SetStatus(_ context.Context, id uuid.UUID, from []model.PaperStatus, to model.PaperStatus) (*model.Paper, error) {
	if f.beforeSetStatus != nil {
		f.beforeSetStatus()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrConflict
	}
	allowed := false
	for _, s := range from {
		if cur.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return nil, repository.ErrConflict
	}
	if to == model.PaperStatusPublished {
		if cur.TotalQuestions == 0 {
			return nil, repository.ErrCheckViolation
		}
		for _, other := range f.byID {
			if other.ID != id && other.ExamID == cur.ExamID && other.Status == model.PaperStatusPublished {
				return nil, repository.ErrDuplicate
			}
		}
	}
	cur.Status = to
	f.byID[id] = cur
	return &cur, nil
}

func (f *fakePapers) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[id]
	if !ok || cur.Status == model.PaperStatusPublished {
		return repository.ErrConflict
	}
	if f.inUse[id] {
		return repository.ErrInUse
	}
	delete(f.byID, id)
	delete(f.links, id)
	return nil
}

func (f *fakePapers) ListQuestions(_ context.Context, paperID uuid.UUID) ([]model.ScoredQuestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ScoredQuestion(nil), f.links[paperID]...), nil
}

func (f *fakePapers) ListQuestionDetails(ctx context.Context, paperID uuid.UUID) ([]model.PaperQuestion, error) {
	links, _ := f.ListQuestions(ctx, paperID)
	out := make([]model.PaperQuestion, 0, len(links))
	for _, l := range links {
		q, err := f.questions.GetByID(ctx, l.QuestionID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.PaperQuestion{ScoredQuestion: l, Question: *q})
	}
	return out, nil
}

func (f *fakePapers) MutateQuestions(_ context.Context, paperID uuid.UUID, fn model.LinkMutation) (*model.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[paperID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	next, err := fn(&cur, append([]model.ScoredQuestion(nil), f.links[paperID]...))
	if err != nil {
		return nil, err
	}
	if err := checkLinks(next); err != nil {
		return nil, err
	}
	f.setLinksLocked(&cur, next)
	f.byID[paperID] = cur
	return &cur, nil
}

func (f *fakePapers) Copy(_ context.Context, srcID uuid.UUID, dst *model.Paper) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertLocked(dst, append([]model.ScoredQuestion(nil), f.links[srcID]...))
}

func (f *fakePapers) Statistics(ctx context.Context, paperID uuid.UUID) (map[model.QuestionType]model.TypeStatistics, error) {
	details, err := f.ListQuestionDetails(ctx, paperID)
	if err != nil {
		return nil, err
	}
	out := make(map[model.QuestionType]model.TypeStatistics)
	for _, d := range details {
		ts := out[d.Question.Type]
		ts.Count++
		ts.Score += d.Score
		out[d.Question.Type] = ts
	}
	return out, nil
}

type fakeRecords struct {
	mu   sync.Mutex
	byID map[uuid.UUID]model.ExamRecord
	// createErr, when set, is returned by the next CreateOngoing.
	createErr error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{byID: make(map[uuid.UUID]model.ExamRecord)}
}

func (f *fakeRecords) CreateOngoing(_ context.Context, rec *model.ExamRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr; err != nil {
		f.createErr = nil
		return false, err
	}
	for _, r := range f.byID {
		if r.StudentID == rec.StudentID && r.ExamID == rec.ExamID && r.Status == model.RecordStatusOngoing {
			*rec = r
			return false, nil
		}
	}
	rec.ID = uuid.New()
	rec.Status = model.RecordStatusOngoing
	f.byID[rec.ID] = *rec
	return true, nil
}

func (f *fakeRecords) FindOngoing(_ context.Context, studentID int, examID uuid.UUID) (*model.ExamRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.byID {
		if r.StudentID == studentID && r.ExamID == examID && r.Status == model.RecordStatusOngoing {
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRecords) GetByID(_ context.Context, id uuid.UUID) (*model.ExamRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (f *fakeRecords) ListByStudent(_ context.Context, studentID int) ([]model.ExamRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ExamRecord
	for _, r := range f.byID {
		if r.StudentID == studentID {
			r.Answers = nil
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (f *fakeRecords) CompletedExamIDs(_ context.Context, studentID int) (map[uuid.UUID]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]bool)
	for _, r := range f.byID {
		if r.StudentID == studentID && r.Status.Completed() {
			out[r.ExamID] = true
		}
	}
	return out, nil
}

func (f *fakeRecords) Finish(_ context.Context, id uuid.UUID, out model.RecordOutcome) (*model.ExamRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok || r.Status != model.RecordStatusOngoing {
		return nil, repository.ErrConflict
	}
	submit := out.SubmitTime
	r.Status = out.Status
	r.Score = out.Score
	r.SubmitTime = &submit
	r.Answers = out.Answers
	f.byID[id] = r
	return &r, nil
}

func (f *fakeRecords) Expire(_ context.Context, id uuid.UUID, at time.Time) (*model.ExamRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok || r.Status != model.RecordStatusOngoing {
		return nil, repository.ErrConflict
	}
	if at.Before(r.StartTime) {
		at = r.StartTime
	}
	r.Status = model.RecordStatusTimeout
	r.SubmitTime = &at
	f.byID[id] = r
	return &r, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []model.SessionEvent
}

func (f *fakeEvents) Publish(_ context.Context, ev model.SessionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEvents) types() []model.SessionEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.SessionEventType, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Type
	}
	return out
}

// ─── Fixture ────────────────────────────────────────────────────────

const (
	teacherID      = 7
	otherTeacherID = 8
	studentID      = 101
	otherStudentID = 102
)

var (
	teacher      = Caller{UserID: teacherID, Role: RoleTeacher}
	otherTeacher = Caller{UserID: otherTeacherID, Role: RoleTeacher}
	student      = Caller{UserID: studentID, Role: RoleStudent}
	otherStudent = Caller{UserID: otherStudentID, Role: RoleStudent}
)

type fixture struct {
	questions *fakeQuestions
	exams     *fakeExams
	papers    *fakePapers
	records   *fakeRecords
	events    *fakeEvents
	now       time.Time

	paperSvc   *PaperService
	sessionSvc *ExamSessionService
}

func newFixture() *fixture {
	f := &fixture{
		questions: newFakeQuestions(),
		exams:     newFakeExams(),
		records:   newFakeRecords(),
		events:    &fakeEvents{},
		now:       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	f.papers = newFakePapers(f.questions)
	views := NewPaperViewBuilder(f.papers)
	log := zerolog.Nop()

	f.paperSvc = NewPaperService(f.papers, f.questions, f.exams, views, log)
	f.sessionSvc = NewExamSessionService(f.exams, f.papers, f.records, views, f.events, log).
		WithClock(func() time.Time { return f.now })
	return f
}

// openExam stores an ONGOING exam whose window started an hour ago.
func (f *fixture) openExam(durationMinutes int) model.Exam {
	return f.exams.put(model.Exam{
		Title:           "Chemistry midterm",
		DurationMinutes: durationMinutes,
		StartTime:       f.now.Add(-time.Hour),
		EndTime:         f.now.Add(2 * time.Hour),
		Status:          model.ExamStatusOngoing,
		OwnerID:         teacherID,
	})
}

// publishedPaper builds and publishes a paper on exam holding qs at the given scores.
func (f *fixture) publishedPaper(exam model.Exam, qs []model.Question, scores []int) *model.Paper {
	ctx := context.Background()
	p, err := f.paperSvc.Create(ctx, teacher, model.CreatePaperRequest{ExamID: exam.ID, Title: "Paper A"})
	if err != nil {
		panic(err)
	}
	for i, q := range qs {
		if _, err := f.paperSvc.AddQuestion(ctx, teacher, p.ID, model.AddQuestionRequest{
			QuestionID: q.ID, Score: scores[i],
		}); err != nil {
			panic(err)
		}
	}
	published, err := f.paperSvc.Publish(ctx, teacher, p.ID)
	if err != nil {
		panic(err)
	}
	return published
}
