package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam header.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusOngoing   ExamStatus = "ONGOING"
	ExamStatusFinished  ExamStatus = "FINISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// Exam is the scheduling header owned by the exam catalog.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	SubjectID       int        `json:"subject_id"`
	DurationMinutes int        `json:"duration_minutes"`
	TotalScore      int        `json:"total_score"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	Status          ExamStatus `json:"status"`
	OwnerID         int        `json:"owner_id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// AcceptsSessions reports whether students may open sessions against the exam at all.
func (e *Exam) AcceptsSessions() bool {
	return e.Status != ExamStatusDraft && e.Status != ExamStatusArchived
}

// Duration returns the per-session time allowance.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}
