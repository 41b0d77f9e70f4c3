package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordStatus enumerates the states of a student's exam record.
// The zero value means no record exists yet.
type RecordStatus string

const (
	RecordStatusNone      RecordStatus = ""
	RecordStatusOngoing   RecordStatus = "ONGOING"
	RecordStatusSubmitted RecordStatus = "SUBMITTED"
	RecordStatusGraded    RecordStatus = "GRADED"
	RecordStatusTimeout   RecordStatus = "TIMEOUT"
)

// RecordEvent drives the record state machine.
type RecordEvent string

const (
	RecordEventStart  RecordEvent = "start"
	RecordEventSubmit RecordEvent = "submit"
	RecordEventGrade  RecordEvent = "grade"
	RecordEventExpire RecordEvent = "expire"
)

// ErrIllegalTransition is returned for any (state, event) pair outside the table.
var ErrIllegalTransition = errors.New("illegal record transition")

var recordTransitions = map[RecordStatus]map[RecordEvent]RecordStatus{
	RecordStatusNone: {
		RecordEventStart: RecordStatusOngoing,
	},
	RecordStatusOngoing: {
		RecordEventSubmit: RecordStatusSubmitted,
		RecordEventGrade:  RecordStatusGraded,
		RecordEventExpire: RecordStatusTimeout,
	},
}

// Transition returns the state reached from s on ev.
func (s RecordStatus) Transition(ev RecordEvent) (RecordStatus, error) {
	if next, ok := recordTransitions[s][ev]; ok {
		return next, nil
	}
	return s, fmt.Errorf("%w: %q on %q", ErrIllegalTransition, ev, s)
}

// Terminal reports whether no further transition is possible.
func (s RecordStatus) Terminal() bool {
	return s == RecordStatusSubmitted || s == RecordStatusGraded || s == RecordStatusTimeout
}

// Completed reports whether the student handed the exam in.
func (s RecordStatus) Completed() bool {
	return s == RecordStatusSubmitted || s == RecordStatusGraded
}

// ExamRecord is one student's attempt at one exam.
type ExamRecord struct {
	ID         uuid.UUID       `json:"id"`
	ExamID     uuid.UUID       `json:"exam_id"`
	PaperID    uuid.UUID       `json:"paper_id"`
	StudentID  int             `json:"student_id"`
	Score      int             `json:"score"`
	TotalScore int             `json:"total_score"`
	StartTime  time.Time       `json:"start_time"`
	SubmitTime *time.Time      `json:"submit_time,omitempty"`
	Status     RecordStatus    `json:"status"`
	Answers    json.RawMessage `json:"answers,omitempty"`
}

// Deadline is the earlier of the exam window's end and startTime plus the allowance.
func (r *ExamRecord) Deadline(exam *Exam) time.Time {
	byDuration := r.StartTime.Add(exam.Duration())
	if exam.EndTime.Before(byDuration) {
		return exam.EndTime
	}
	return byDuration
}

// Expired reports whether a submission at now falls outside the record's time allowance.
func (r *ExamRecord) Expired(exam *Exam, now time.Time) bool {
	return now.After(exam.EndTime) || now.Sub(r.StartTime) > exam.Duration()
}

// RecordOutcome is what a submission writes onto an ONGOING record.
type RecordOutcome struct {
	Status     RecordStatus
	Score      int
	SubmitTime time.Time
	Answers    json.RawMessage
}

// ─── Session payloads ───────────────────────────────────────────────

// StartedExam is returned when a session is opened or resumed.
type StartedExam struct {
	Record          *ExamRecord          `json:"record"`
	Resumed         bool                 `json:"resumed"`
	ExamTitle       string               `json:"exam_title"`
	StartTime       time.Time            `json:"start_time"`
	EndTime         time.Time            `json:"end_time"`
	Deadline        time.Time            `json:"deadline"`
	DurationMinutes int                  `json:"duration_minutes"`
	Questions       []QuestionForStudent `json:"questions"`
}

// SubmissionResult is the grading outcome returned to the student.
type SubmissionResult struct {
	RecordID       uuid.UUID    `json:"record_id"`
	Status         RecordStatus `json:"status"`
	ObjectiveScore int          `json:"objective_score"`
	Score          int          `json:"score"`
	// TotalScore is the objective score; subjective marks are added by manual review.
	TotalScore     int          `json:"total_score"`
	MaxScore       int          `json:"max_score"`
	PendingReview  bool         `json:"pending_review"`
	SubmitTime     time.Time    `json:"submit_time"`
}

// SubmitExamRequest is the body of a submission.
type SubmitExamRequest struct {
	RecordID uuid.UUID    `json:"record_id" binding:"required"`
	Answers  []AnswerItem `json:"answers" binding:"omitempty,dive"`
}
