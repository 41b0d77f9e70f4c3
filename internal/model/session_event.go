package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionEventType names a record lifecycle step worth auditing or monitoring.
type SessionEventType string

const (
	SessionEventStarted   SessionEventType = "STARTED"
	SessionEventResumed   SessionEventType = "RESUMED"
	SessionEventSubmitted SessionEventType = "SUBMITTED"
	SessionEventGraded    SessionEventType = "GRADED"
	SessionEventTimeout   SessionEventType = "TIMEOUT"
)

// SessionEvent is published on every record transition and persisted to the audit log.
type SessionEvent struct {
	Type       SessionEventType `json:"type"`
	ExamID     uuid.UUID        `json:"exam_id"`
	RecordID   uuid.UUID        `json:"record_id"`
	StudentID  int              `json:"student_id"`
	Score      int              `json:"score"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewSessionEvent snapshots rec as an event of type t.
func NewSessionEvent(t SessionEventType, rec *ExamRecord, at time.Time) SessionEvent {
	return SessionEvent{
		Type:       t,
		ExamID:     rec.ExamID,
		RecordID:   rec.ID,
		StudentID:  rec.StudentID,
		Score:      rec.Score,
		OccurredAt: at,
	}
}
