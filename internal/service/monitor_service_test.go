package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-papers/internal/model"
)

type stubCounter struct {
	counts map[model.RecordStatus]int
	err    error
}

func (s stubCounter) CountByStatus(context.Context, uuid.UUID) (map[model.RecordStatus]int, error) {
	return s.counts, s.err
}

type stubRecent struct {
	events []model.SessionEvent
	err    error
}

func (s stubRecent) ListRecent(context.Context, uuid.UUID, int) ([]model.SessionEvent, error) {
	return s.events, s.err
}

func TestMonitorAuthorizeRequiresExamOwner(t *testing.T) {
	exams := newFakeExams()
	exam := exams.put(model.Exam{Title: "Physics", OwnerID: 7, DurationMinutes: 30})
	svc := NewMonitorService(exams, stubCounter{}, stubRecent{}, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		caller Caller
		examID uuid.UUID
		want   error
	}{
		{"owner", Caller{UserID: 7, Role: RoleTeacher}, exam.ID, nil},
		{"other teacher", Caller{UserID: 8, Role: RoleTeacher}, exam.ID, ErrNotExamOwner},
		{"student", Caller{UserID: 7, Role: RoleStudent}, exam.ID, ErrRoleNotAllowed},
		{"anonymous", Caller{}, exam.ID, ErrIdentityRequired},
		{"unknown exam", Caller{UserID: 7, Role: RoleTeacher}, uuid.New(), ErrExamNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authorize(ctx, tt.caller, tt.examID)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Authorize: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMonitorSnapshotFillsAllStatuses(t *testing.T) {
	examID := uuid.New()
	ev := model.SessionEvent{Type: model.SessionEventStarted, ExamID: examID, RecordID: uuid.New(), OccurredAt: time.Now()}
	svc := NewMonitorService(newFakeExams(),
		stubCounter{counts: map[model.RecordStatus]int{model.RecordStatusOngoing: 3}},
		stubRecent{events: []model.SessionEvent{ev}}, nil)

	snap, err := svc.Snapshot(context.Background(), examID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.StatusCounts) != 4 || snap.StatusCounts[model.RecordStatusOngoing] != 3 || snap.StatusCounts[model.RecordStatusGraded] != 0 {
		t.Fatalf("counts = %v", snap.StatusCounts)
	}
	if len(snap.RecentEvents) != 1 {
		t.Fatalf("recent = %v", snap.RecentEvents)
	}
}

func TestMonitorSnapshotToleratesEventFailure(t *testing.T) {
	svc := NewMonitorService(newFakeExams(),
		stubCounter{counts: map[model.RecordStatus]int{}},
		stubRecent{err: errors.New("timeout")}, nil)

	snap, err := svc.Snapshot(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.RecentEvents == nil || len(snap.RecentEvents) != 0 {
		t.Fatalf("recent = %v, want empty slice", snap.RecentEvents)
	}

	svc = NewMonitorService(newFakeExams(), stubCounter{err: errors.New("db down")}, stubRecent{}, nil)
	if _, err := svc.Snapshot(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected count failure to surface")
	}
}
