package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-papers/internal/grading"
	"github.com/stemsi/exstem-papers/internal/logger"
	"github.com/stemsi/exstem-papers/internal/model"
	"github.com/stemsi/exstem-papers/internal/repository"
)

// ExamSessionService runs the student side of an exam: listing what can be
// taken, opening or resuming a record and grading the single submission.
// Every record status change goes through model.RecordStatus.Transition.
type ExamSessionService struct {
	exams   ExamCatalog
	papers  PaperStore
	records RecordStore
	views   PaperViews
	events  EventPublisher
	grader  *grading.Grader
	now     func() time.Time
	log     zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	exams ExamCatalog,
	papers PaperStore,
	records RecordStore,
	views PaperViews,
	events EventPublisher,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		exams:   exams,
		papers:  papers,
		records: records,
		views:   views,
		events:  events,
		grader:  grading.NewGrader(),
		now:     time.Now,
		log:     logger.Component(log, "exam_session_service"),
	}
}

// WithClock replaces the time source.
func (s *ExamSessionService) WithClock(now func() time.Time) *ExamSessionService {
	s.now = now
	return s
}

// Availability tells an open exam from one that has yet to start.
type Availability string

const (
	AvailabilityOpen     Availability = "OPEN"
	AvailabilityUpcoming Availability = "UPCOMING"
)

// AvailableExam is an exam as listed to a student.
type AvailableExam struct {
	model.Exam
	Availability Availability `json:"availability"`
}

// ─── Listing ────────────────────────────────────────────────────────

// AvailableExams lists exams that are open now or scheduled, have a
// PUBLISHED paper and have not been completed by the student, by start time.
func (s *ExamSessionService) AvailableExams(ctx context.Context, caller Caller) ([]AvailableExam, error) {
	if err := caller.require(RoleStudent); err != nil {
		return nil, err
	}
	now := s.now()

	ongoing, err := s.exams.ListOngoing(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list ongoing exams: %w", err)
	}
	upcoming, err := s.exams.ListUpcoming(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list upcoming exams: %w", err)
	}

	seen := make(map[uuid.UUID]bool, len(ongoing)+len(upcoming))
	var candidates []AvailableExam
	add := func(exams []model.Exam, a Availability) {
		for _, e := range exams {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			candidates = append(candidates, AvailableExam{Exam: e, Availability: a})
		}
	}
	add(ongoing, AvailabilityOpen)
	add(upcoming, AvailabilityUpcoming)

	ids := make([]uuid.UUID, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	withPaper, err := s.papers.ExamsWithPublishedPaper(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("check published papers: %w", err)
	}
	completed, err := s.records.CompletedExamIDs(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list completed exams: %w", err)
	}

	out := make([]AvailableExam, 0, len(candidates))
	for _, c := range candidates {
		if withPaper[c.ID] && !completed[c.ID] {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

// ─── Start ──────────────────────────────────────────────────────────

// StartExam opens a record for the caller or returns the ONGOING one.
func (s *ExamSessionService) StartExam(ctx context.Context, caller Caller, examID uuid.UUID) (*model.StartedExam, error) {
	if err := caller.require(RoleStudent); err != nil {
		return nil, err
	}
	now := s.now()

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, notFound(err, ErrExamNotFound)
	}
	if !exam.AcceptsSessions() {
		return nil, ErrExamNotAvailable
	}
	if now.Before(exam.StartTime) {
		return nil, ErrExamNotOpen
	}
	if now.After(exam.EndTime) {
		return nil, ErrExamClosed
	}

	paper, err := s.activePaper(ctx, examID)
	if err != nil {
		return nil, err
	}

	rec, err := s.records.FindOngoing(ctx, caller.UserID, examID)
	switch {
	case err == nil:
		return s.resume(ctx, exam, rec, now)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("find ongoing record: %w", err)
	}

	completed, err := s.records.CompletedExamIDs(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list completed exams: %w", err)
	}
	if completed[examID] {
		return nil, ErrAlreadySubmitted
	}

	status, err := model.RecordStatusNone.Transition(model.RecordEventStart)
	if err != nil {
		return nil, err
	}
	rec = &model.ExamRecord{
		ExamID:     examID,
		PaperID:    paper.ID,
		StudentID:  caller.UserID,
		TotalScore: paper.TotalScore,
		StartTime:  now,
		Status:     status,
	}
	created, err := s.records.CreateOngoing(ctx, rec)
	if errors.Is(err, repository.ErrNotFound) {
		// The concurrent winner finished its record before we could load it.
		return nil, ErrAlreadySubmitted
	}
	if err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	if !created {
		// A concurrent request won the insert.
		return s.resume(ctx, exam, rec, now)
	}

	s.publish(ctx, model.NewSessionEvent(model.SessionEventStarted, rec, now))
	s.log.Info().
		Str("exam_id", examID.String()).
		Str("record_id", rec.ID.String()).
		Int("student_id", caller.UserID).
		Msg("Exam started")
	return s.started(ctx, exam, paper, rec, false)
}

func (s *ExamSessionService) resume(ctx context.Context, exam *model.Exam, rec *model.ExamRecord, now time.Time) (*model.StartedExam, error) {
	paper, err := s.papers.GetByID(ctx, rec.PaperID)
	if err != nil {
		return nil, notFound(err, ErrPaperNotFound)
	}
	s.publish(ctx, model.NewSessionEvent(model.SessionEventResumed, rec, now))
	return s.started(ctx, exam, paper, rec, true)
}

func (s *ExamSessionService) started(ctx context.Context, exam *model.Exam, paper *model.Paper, rec *model.ExamRecord, resumed bool) (*model.StartedExam, error) {
	view, err := s.views.Get(ctx, paper)
	if err != nil {
		return nil, fmt.Errorf("load paper view: %w", err)
	}
	return &model.StartedExam{
		Record:          rec,
		Resumed:         resumed,
		ExamTitle:       exam.Title,
		StartTime:       exam.StartTime,
		EndTime:         exam.EndTime,
		Deadline:        rec.Deadline(exam),
		DurationMinutes: exam.DurationMinutes,
		Questions:       view.Questions,
	}, nil
}

// activePaper returns the exam's single PUBLISHED paper.
func (s *ExamSessionService) activePaper(ctx context.Context, examID uuid.UUID) (*model.Paper, error) {
	published, err := s.papers.ListPublishedByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list published papers: %w", err)
	}
	switch len(published) {
	case 0:
		return nil, ErrNoPublishedPaper
	case 1:
		return &published[0], nil
	}
	s.log.Error().
		Str("exam_id", examID.String()).
		Int("published", len(published)).
		Msg("Exam has more than one published paper")
	return nil, ErrMultiplePublishedPaper
}

// ─── Submit ─────────────────────────────────────────────────────────

// SubmitExam grades answers and closes the record. A late submission moves
// the record to TIMEOUT and is rejected without a score.
func (s *ExamSessionService) SubmitExam(ctx context.Context, caller Caller, examID, recordID uuid.UUID, answers []model.Answer) (*model.SubmissionResult, error) {
	if err := caller.require(RoleStudent); err != nil {
		return nil, err
	}
	now := s.now()

	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, notFound(err, ErrRecordNotFound)
	}
	if rec.StudentID != caller.UserID || rec.ExamID != examID {
		return nil, ErrNotRecordOwner
	}
	if _, err := rec.Status.Transition(model.RecordEventSubmit); err != nil {
		return nil, ErrAlreadySubmitted
	}

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, notFound(err, ErrExamNotFound)
	}
	if rec.Expired(exam, now) {
		return nil, s.expire(ctx, rec, now)
	}

	details, err := s.papers.ListQuestionDetails(ctx, rec.PaperID)
	if err != nil {
		return nil, fmt.Errorf("load answer keys: %w", err)
	}
	keys := make([]grading.Key, 0, len(details))
	byID := make(map[uuid.UUID]model.QuestionType, len(details))
	for _, d := range details {
		keys = append(keys, grading.Key{
			QuestionID: d.QuestionID,
			Type:       d.Question.Type,
			Score:      d.Score,
			Expected:   d.Question.AnswerKey,
		})
		byID[d.QuestionID] = d.Question.Type
	}
	for i, a := range answers {
		if t, ok := byID[a.QuestionID()]; ok && t != a.Type() {
			return nil, fmt.Errorf("%w: %w", ErrInvalidAnswer, &model.AnswerError{
				Index:      i,
				QuestionID: a.QuestionID(),
				Reason:     fmt.Sprintf("question is %s, answer is %s", t, a.Type()),
			})
		}
	}

	outcome := s.grader.Grade(keys, answers)
	status, err := rec.Status.Transition(outcome.Event())
	if err != nil {
		return nil, ErrAlreadySubmitted
	}
	payload, err := model.EncodeAnswers(answers)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}

	done, err := s.records.Finish(ctx, rec.ID, model.RecordOutcome{
		Status:     status,
		Score:      outcome.ObjectiveScore,
		SubmitTime: now,
		Answers:    payload,
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, ErrAlreadySubmitted
	}
	if err != nil {
		return nil, fmt.Errorf("finish record: %w", err)
	}

	evType := model.SessionEventGraded
	if outcome.PendingReview {
		evType = model.SessionEventSubmitted
	}
	s.publish(ctx, model.NewSessionEvent(evType, done, now))
	s.log.Info().
		Str("record_id", done.ID.String()).
		Str("status", string(done.Status)).
		Int("score", done.Score).
		Int("answered", outcome.Answered).
		Int("skipped", outcome.Skipped).
		Msg("Exam submitted")

	submitTime := now
	if done.SubmitTime != nil {
		submitTime = *done.SubmitTime
	}
	return &model.SubmissionResult{
		RecordID:       done.ID,
		Status:         done.Status,
		ObjectiveScore: outcome.ObjectiveScore,
		Score:          done.Score,
		TotalScore:     outcome.ObjectiveScore,
		MaxScore:       done.TotalScore,
		PendingReview:  outcome.PendingReview,
		SubmitTime:     submitTime,
	}, nil
}

// expire moves rec to TIMEOUT and returns the error the caller must see.
func (s *ExamSessionService) expire(ctx context.Context, rec *model.ExamRecord, now time.Time) error {
	if _, err := rec.Status.Transition(model.RecordEventExpire); err != nil {
		return ErrAlreadySubmitted
	}
	expired, err := s.records.Expire(ctx, rec.ID, now)
	if errors.Is(err, repository.ErrConflict) {
		return ErrAlreadySubmitted
	}
	if err != nil {
		return fmt.Errorf("expire record: %w", err)
	}
	s.publish(ctx, model.NewSessionEvent(model.SessionEventTimeout, expired, now))
	s.log.Info().
		Str("record_id", rec.ID.String()).
		Int("student_id", rec.StudentID).
		Msg("Late submission rejected")
	return ErrSubmissionTimeout
}

// ─── Records ────────────────────────────────────────────────────────

// MyRecords lists the caller's records without answer payloads.
func (s *ExamSessionService) MyRecords(ctx context.Context, caller Caller) ([]model.ExamRecord, error) {
	if err := caller.require(RoleStudent); err != nil {
		return nil, err
	}
	records, err := s.records.ListByStudent(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	if records == nil {
		records = []model.ExamRecord{}
	}
	return records, nil
}

// RecordDetail returns one of the caller's records, answers included.
func (s *ExamSessionService) RecordDetail(ctx context.Context, caller Caller, recordID uuid.UUID) (*model.ExamRecord, error) {
	if err := caller.require(RoleStudent); err != nil {
		return nil, err
	}
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, notFound(err, ErrRecordNotFound)
	}
	if rec.StudentID != caller.UserID {
		return nil, ErrNotRecordOwner
	}
	return rec, nil
}

func (s *ExamSessionService) publish(ctx context.Context, ev model.SessionEvent) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).
			Str("event", string(ev.Type)).
			Str("record_id", ev.RecordID.String()).
			Msg("Failed to publish session event")
	}
}

// PrewarmViews caches the student view of every PUBLISHED paper whose exam is
// open or upcoming. Run it before accepting traffic so the first wave of
// starts does not hit the database together.
func (s *ExamSessionService) PrewarmViews(ctx context.Context) (int, error) {
	now := s.now()
	ongoing, err := s.exams.ListOngoing(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list ongoing exams: %w", err)
	}
	upcoming, err := s.exams.ListUpcoming(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list upcoming exams: %w", err)
	}

	warmed := 0
	for _, exam := range append(ongoing, upcoming...) {
		published, err := s.papers.ListPublishedByExam(ctx, exam.ID)
		if err != nil {
			return warmed, fmt.Errorf("list published papers: %w", err)
		}
		for i := range published {
			if err := s.views.Warm(ctx, &published[i]); err != nil {
				s.log.Warn().Err(err).Str("paper_id", published[i].ID.String()).Msg("Failed to warm paper view")
				continue
			}
			warmed++
		}
	}
	return warmed, nil
}
