package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-papers/internal/logger"
	"github.com/stemsi/exstem-papers/internal/model"
	"github.com/stemsi/exstem-papers/internal/repository"
)

const copyTitleSuffix = " (Copy)"

// PaperService composes exam papers and drives their DRAFT → PUBLISHED →
// ARCHIVED lifecycle. Totals are never adjusted here; the store re-aggregates
// them from the link table on every write.
type PaperService struct {
	papers    PaperStore
	questions QuestionStore
	exams     ExamCatalog
	views     PaperViews
	log       zerolog.Logger
}

// NewPaperService creates a new PaperService.
func NewPaperService(
	papers PaperStore,
	questions QuestionStore,
	exams ExamCatalog,
	views PaperViews,
	log zerolog.Logger,
) *PaperService {
	return &PaperService{
		papers:    papers,
		questions: questions,
		exams:     exams,
		views:     views,
		log:       logger.Component(log, "paper_service"),
	}
}

// ─── Composition ────────────────────────────────────────────────────

// Create inserts an empty DRAFT paper owned by the caller.
func (s *PaperService) Create(ctx context.Context, caller Caller, req model.CreatePaperRequest) (*model.Paper, error) {
	if err := caller.require(RoleTeacher); err != nil {
		return nil, err
	}
	exam, err := s.exam(ctx, req.ExamID)
	if err != nil {
		return nil, err
	}

	p := s.newDraft(caller, exam, req.Title, req.DurationMinutes)
	if err := s.papers.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create paper: %w", err)
	}
	s.log.Info().Str("paper_id", p.ID.String()).Int("owner_id", caller.UserID).Msg("Paper created")
	return p, nil
}

// Generate samples questions for each rule in order and persists the paper
// with all of its links in one transaction. A question picked by an earlier
// rule is never picked again.
func (s *PaperService) Generate(ctx context.Context, caller Caller, req model.GeneratePaperRequest) (*model.Paper, error) {
	if err := caller.require(RoleTeacher); err != nil {
		return nil, err
	}
	if len(req.Rules) == 0 {
		return nil, ErrNoRules
	}
	for i, rule := range req.Rules {
		if err := checkRule(rule); err != nil {
			return nil, fmt.Errorf("%w: rules[%d] %s", ErrInvalidRule, i, err)
		}
	}
	exam, err := s.exam(ctx, req.ExamID)
	if err != nil {
		return nil, err
	}

	var (
		links  []model.ScoredQuestion
		chosen []uuid.UUID
	)
	for i, rule := range req.Rules {
		qs, err := s.questions.Sample(ctx, rule.Filter(chosen))
		if err != nil {
			return nil, fmt.Errorf("sample rules[%d]: %w", i, err)
		}
		if len(qs) < rule.Count {
			return nil, fmt.Errorf("%w: rules[%d] matched %d of %d", ErrInsufficientQuestions, i, len(qs), rule.Count)
		}
		for _, q := range qs[:rule.Count] {
			links = append(links, model.ScoredQuestion{
				QuestionID: q.ID,
				Score:      rule.ScorePerQuestion,
				SortOrder:  len(links) + 1,
			})
			chosen = append(chosen, q.ID)
		}
	}

	p := s.newDraft(caller, exam, req.Title, req.DurationMinutes)
	if err := s.papers.CreateWithQuestions(ctx, p, links); err != nil {
		return nil, fmt.Errorf("create generated paper: %w", err)
	}
	s.log.Info().
		Str("paper_id", p.ID.String()).
		Int("rules", len(req.Rules)).
		Int("total_questions", p.TotalQuestions).
		Int("total_score", p.TotalScore).
		Msg("Paper generated")
	return p, nil
}

func checkRule(r model.SelectionRule) error {
	switch {
	case r.Count < 1:
		return errors.New("count must be at least 1")
	case r.ScorePerQuestion < 0:
		return errors.New("score_per_question must not be negative")
	case r.QuestionType != nil && !r.QuestionType.Valid():
		return fmt.Errorf("unknown question_type %q", *r.QuestionType)
	case r.Difficulty != nil && (*r.Difficulty < 1 || *r.Difficulty > 5):
		return errors.New("difficulty must be between 1 and 5")
	}
	return nil
}

func (s *PaperService) newDraft(caller Caller, exam *model.Exam, title string, duration int) *model.Paper {
	if duration <= 0 {
		duration = exam.DurationMinutes
	}
	return &model.Paper{
		ExamID:          exam.ID,
		Title:           title,
		DurationMinutes: duration,
		Status:          model.PaperStatusDraft,
		OwnerID:         caller.UserID,
	}
}

// AddQuestion links one bank question at sortOrder, shifting later questions down.
func (s *PaperService) AddQuestion(ctx context.Context, caller Caller, paperID uuid.UUID, req model.AddQuestionRequest) (*model.Paper, error) {
	if err := caller.require(RoleTeacher); err != nil {
		return nil, err
	}
	if _, err := s.ownedPaper(ctx, caller, paperID); err != nil {
		return nil, err
	}
	if _, err := s.questions.GetByID(ctx, req.QuestionID); err != nil {
		return nil, notFound(err, ErrQuestionNotFound)
	}

	return s.mutate(ctx, caller, paperID, func(links []model.ScoredQuestion) ([]model.ScoredQuestion, error) {
		if containsLink(links, req.QuestionID) {
			return nil, ErrQuestionInPaper
		}
		link := model.ScoredQuestion{PaperID: paperID, QuestionID: req.QuestionID, Score: req.Score}
		return insertLink(links, link, req.SortOrder), nil
	})
}

// RemoveQuestion unlinks a question and closes the gap in the ordering.
func (s *PaperService) RemoveQuestion(ctx context.Context, caller Caller, paperID, questionID uuid.UUID) (*model.Paper, error) {
	if err := caller.require(RoleTeacher); err != nil {
		return nil, err
	}
	if _, err := s.ownedPaper(ctx, caller, paperID); err != nil {
		return nil, err
	}

	return s.mutate(ctx, caller, paperID, func(links []model.ScoredQuestion) ([]model.ScoredQuestion, error) {
		out, found := removeLink(links, questionID)
		if !found {
			return nil, ErrQuestionNotInPaper
		}
		return out, nil
	})
}

// BatchAdd appends questions in the given order, each scored at its base score.
// Either every question is linked or none is.
func (s *PaperService) BatchAdd(ctx context.Context, caller Caller, paperID uuid.UUID, questionIDs []uuid.UUID) (*model.Paper, error) {
	if err := caller.require(RoleTeacher); err != nil {
		return nil, err
	}
	if len(questionIDs) == 0 {
		return nil, ErrNoQuestionIDs
	}
	if hasDuplicates(questionIDs) {
		return nil, ErrDuplicateQuestionIDs
	}
	if _, err := s.ownedPaper(ctx, caller, paperID); err != nil {
		return nil, err
	}

	found, err := s.questions.ListByIDs(ctx, questionIDs)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	byID := make(map[uuid.UUID]model.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	for _, id := range questionIDs {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
		}
	}

	return s.mutate(ctx, caller, paperID, func(links []model.ScoredQuestion) ([]model.ScoredQuestion, error) {
		out := append([]model.ScoredQuestion(nil), links...)
		for _, id := range questionIDs {
			if containsLink(links, id) {
				return nil, fmt.Errorf("%w: %s", ErrQuestionInPaper, id)
			}
			out = append(out, model.ScoredQuestion{PaperID: paperID, QuestionID: id, Score: byID[id].BaseScore})
		}
		return renumber(out), nil
	})
}

// UpdateOrder rewrites sort orders to follow questionIDs, which must list
// every question of the paper exactly once.
func (s *PaperService) UpdateOrder(ctx context.Context, caller Caller, paperID uuid.UUID, questionIDs []uuid.UUID) (*model.Paper, error) {
	if err := caller.require(RoleTeacher); err != nil {
		return nil, err
	}
	if _, err := s.ownedPaper(ctx, caller, paperID); err != nil {
		return nil, err
	}

	return s.mutate(ctx, caller, paperID, func(links []model.ScoredQuestion) ([]model.ScoredQuestion, error) {
		return reorderLinks(links, questionIDs)
	})
}

// mutate runs fn against the locked link list. Ownership and DRAFT status are
// re-checked under the lock.
func (s *PaperService) mutate(ctx context.Context, caller Caller, paperID uuid.UUID, fn func([]model.ScoredQuestion) ([]model.ScoredQuestion, error)) (*model.Paper, error) {
	p, err := s.papers.MutateQuestions(ctx, paperID, func(p *model.Paper, links []model.ScoredQuestion) ([]model.ScoredQuestion, error) {
		if p.OwnerID != caller.UserID {
			return nil, ErrNotPaperOwner
		}
		if p.Status != model.PaperStatusDraft {
			return nil, ErrPaperNotDraft
		}
		return fn(links)
	})
	if err != nil {
		return nil, notFound(err, ErrPaperNotFound)
	}
	return p, nil
}

// ─── Header & lifecycle ─────────────────────────────────────────────

// Update edits title and duration of a DRAFT paper.
func (s *PaperService) Update(ctx context.Context, caller Caller, paperID uuid.UUID, req model.UpdatePaperRequest) (*model.Paper, error) {
	if err := caller.require(RoleTeacher); err != nil {
		return nil, err
	}
	p, err := s.ownedPaper(ctx, caller, paperID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PaperStatusDraft {
		return nil, ErrPaperNotDraft
	}

	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.DurationMinutes != nil {
		p.DurationMinutes = *req.DurationMinutes
	}
	updated, err := s.papers.UpdateHeader(ctx, p)
	if errors.Is(err, repository.ErrConflict) {
		return nil, ErrPaperNotDraft
	}
	if err != nil {
		return nil, notFound(err, ErrPaperNotFound)
	}
	return updated, nil
}

// Delete removes a paper that is not PUBLISHED and not referenced by any record.
func (s *PaperService) Delete(ctx context.Context, caller Caller, paperID uuid.UUID) error {
	if err := caller.require(RoleTeacher); err != nil {
		return err
	}
	p, err := s.ownedPaper(ctx, caller, paperID)
	if err != nil {
		return err
	}
	if p.Status == model.PaperStatusPublished {
		return ErrPaperPublished
	}

	err = s.papers.Delete(ctx, paperID)
	switch {
	case errors.Is(err, repository.ErrConflict):
		return ErrPaperPublished
	case errors.Is(err, repository.ErrInUse):
		return ErrPaperInUse
	case err != nil:
		return fmt.Errorf("delete paper: %w", err)
	}
	if err := s.views.Evict(ctx, paperID); err != nil {
		s.log.Warn().Err(err).Str("paper_id", paperID.String()).Msg("Failed to evict paper view")
	}
	return nil
}

// Publish moves a non-empty DRAFT paper to PUBLISHED and warms its student view.
// An exam holds at most one PUBLISHED paper.
func (s *PaperService) Publish(ctx context.Context, caller Caller, paperID uuid.UUID) (*model.Paper, error) {
	if err := caller.require(RoleTeacher); err != nil {
		return nil, err
	}
	p, err := s.ownedPaper(ctx, caller, paperID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PaperStatusDraft {
		return nil, ErrPaperNotDraft
	}
	if p.TotalQuestions == 0 {
		return nil, ErrEmptyPaper
	}

	published, err := s.papers.ListPublishedByExam(ctx, p.ExamID)
	if err != nil {
		return nil, fmt.Errorf("list published papers: %w", err)
	}
	if len(published) > 0 {
		return nil, ErrExamHasPublishedPaper
	}

	updated, err := s.papers.SetStatus(ctx, paperID, []model.PaperStatus{model.PaperStatusDraft}, model.PaperStatusPublished)
	switch {
	case errors.Is(err, repository.ErrConflict):
		return nil, ErrPaperNotDraft
	case errors.Is(err, repository.ErrDuplicate):
		return nil, ErrExamHasPublishedPaper
	case errors.Is(err, repository.ErrCheckViolation):
		return nil, ErrEmptyPaper
	case err != nil:
		return nil, notFound(err, ErrPaperNotFound)
	}

	if err := s.views.Warm(ctx, updated); err != nil {
		s.log.Warn().Err(err).Str("paper_id", paperID.String()).Msg("Failed to warm paper view")
	}
	s.log.Info().Str("paper_id", paperID.String()).Str("exam_id", updated.ExamID.String()).Msg("Paper published")
	return updated, nil
}

// Archive moves the paper to ARCHIVED from any state.
func (s *PaperService) Archive(ctx context.Context, caller Caller, paperID uuid.UUID) (*model.Paper, error) {
	if err := caller.require(RoleTeacher); err != nil {
		return nil, err
	}
	if _, err := s.ownedPaper(ctx, caller, paperID); err != nil {
		return nil, err
	}

	updated, err := s.papers.SetStatus(ctx, paperID, []model.PaperStatus{
		model.PaperStatusDraft, model.PaperStatusPublished, model.PaperStatusArchived,
	}, model.PaperStatusArchived)
	if err != nil {
		return nil, notFound(err, ErrPaperNotFound)
	}
	if err := s.views.Evict(ctx, paperID); err != nil {
		s.log.Warn().Err(err).Str("paper_id", paperID.String()).Msg("Failed to evict paper view")
	}
	return updated, nil
}

// Copy clones the paper header and links into a new DRAFT owned by the caller.
func (s *PaperService) Copy(ctx context.Context, caller Caller, paperID uuid.UUID) (*model.Paper, error) {
	if err := caller.require(RoleTeacher); err != nil {
		return nil, err
	}
	src, err := s.papers.GetByID(ctx, paperID)
	if err != nil {
		return nil, notFound(err, ErrPaperNotFound)
	}

	dst := &model.Paper{
		ExamID:          src.ExamID,
		Title:           src.Title + copyTitleSuffix,
		DurationMinutes: src.DurationMinutes,
		Status:          model.PaperStatusDraft,
		OwnerID:         caller.UserID,
	}
	if err := s.papers.Copy(ctx, src.ID, dst); err != nil {
		return nil, fmt.Errorf("copy paper: %w", err)
	}
	return dst, nil
}

// ─── Reads ──────────────────────────────────────────────────────────

// Get returns a paper header.
func (s *PaperService) Get(ctx context.Context, caller Caller, paperID uuid.UUID) (*model.Paper, error) {
	if err := caller.require(RoleTeacher); err != nil {
		return nil, err
	}
	p, err := s.papers.GetByID(ctx, paperID)
	if err != nil {
		return nil, notFound(err, ErrPaperNotFound)
	}
	return p, nil
}

// Preview returns the paper with full questions and answer keys. Owner only.
func (s *PaperService) Preview(ctx context.Context, caller Caller, paperID uuid.UUID) (*model.PaperPreview, error) {
	if err := caller.require(RoleTeacher); err != nil {
		return nil, err
	}
	p, err := s.ownedPaper(ctx, caller, paperID)
	if err != nil {
		return nil, err
	}
	questions, err := s.papers.ListQuestionDetails(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("list paper questions: %w", err)
	}
	if questions == nil {
		questions = []model.PaperQuestion{}
	}
	return &model.PaperPreview{Paper: p, Questions: questions}, nil
}

// ListByExam returns every paper of an exam.
func (s *PaperService) ListByExam(ctx context.Context, caller Caller, examID uuid.UUID) ([]model.Paper, error) {
	if err := caller.require(RoleTeacher); err != nil {
		return nil, err
	}
	if _, err := s.exam(ctx, examID); err != nil {
		return nil, err
	}
	papers, err := s.papers.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if papers == nil {
		papers = []model.Paper{}
	}
	return papers, nil
}

// Statistics reports question count and score per type. Every type is
// present in the result, zero when the paper has none.
func (s *PaperService) Statistics(ctx context.Context, caller Caller, paperID uuid.UUID) (*model.PaperStatistics, error) {
	if err := caller.require(RoleTeacher); err != nil {
		return nil, err
	}
	p, err := s.papers.GetByID(ctx, paperID)
	if err != nil {
		return nil, notFound(err, ErrPaperNotFound)
	}
	byType, err := s.papers.Statistics(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("paper statistics: %w", err)
	}

	stats := &model.PaperStatistics{
		PaperID: p.ID,
		ByType:  make(map[model.QuestionType]model.TypeStatistics, len(model.QuestionTypes)),
	}
	for _, t := range model.QuestionTypes {
		ts := byType[t]
		stats.ByType[t] = ts
		stats.TotalQuestions += ts.Count
		stats.TotalScore += ts.Score
	}
	return stats, nil
}

// ─── Helpers ────────────────────────────────────────────────────────

func (s *PaperService) exam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, notFound(err, ErrExamNotFound)
	}
	return exam, nil
}

func (s *PaperService) ownedPaper(ctx context.Context, caller Caller, paperID uuid.UUID) (*model.Paper, error) {
	p, err := s.papers.GetByID(ctx, paperID)
	if err != nil {
		return nil, notFound(err, ErrPaperNotFound)
	}
	if p.OwnerID != caller.UserID {
		return nil, ErrNotPaperOwner
	}
	return p, nil
}

// notFound swaps the store's not-found sentinel for a domain error.
func notFound(err error, domain *Error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain
	}
	return err
}

func hasDuplicates(ids []uuid.UUID) bool {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
