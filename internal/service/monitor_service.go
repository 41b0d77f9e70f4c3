package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-papers/internal/config"
	"github.com/stemsi/exstem-papers/internal/model"
)

const recentEventLimit = 50

type recordCounter interface {
	CountByStatus(ctx context.Context, examID uuid.UUID) (map[model.RecordStatus]int, error)
}

type recentEventLister interface {
	ListRecent(ctx context.Context, examID uuid.UUID, limit int) ([]model.SessionEvent, error)
}

// MonitorService backs the teacher's live view of an exam's sessions.
type MonitorService struct {
	exams   ExamCatalog
	records recordCounter
	events  recentEventLister
	rdb     *redis.Client
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(exams ExamCatalog, records recordCounter, events recentEventLister, rdb *redis.Client) *MonitorService {
	return &MonitorService{exams: exams, records: records, events: events, rdb: rdb}
}

// MonitorSnapshot is the state sent when a monitor connects.
type MonitorSnapshot struct {
	ExamID       uuid.UUID                  `json:"exam_id"`
	StatusCounts map[model.RecordStatus]int `json:"status_counts"`
	RecentEvents []model.SessionEvent       `json:"recent_events"`
}

// Authorize checks that the caller is the teacher who owns the exam.
func (s *MonitorService) Authorize(ctx context.Context, caller Caller, examID uuid.UUID) (*model.Exam, error) {
	if err := caller.require(RoleTeacher); err != nil {
		return nil, err
	}
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, notFound(err, ErrExamNotFound)
	}
	if exam.OwnerID != caller.UserID {
		return nil, ErrNotExamOwner
	}
	return exam, nil
}

// Snapshot fetches status counts and the latest events concurrently.
// Counts are required; recent events are best-effort.
func (s *MonitorService) Snapshot(ctx context.Context, examID uuid.UUID) (*MonitorSnapshot, error) {
	var (
		counts    map[model.RecordStatus]int
		recent    []model.SessionEvent
		countErr  error
		recentErr error
		wg        sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		counts, countErr = s.records.CountByStatus(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		recent, recentErr = s.events.ListRecent(ctx, examID, recentEventLimit)
	}()
	wg.Wait()

	if countErr != nil {
		return nil, countErr
	}

	snap := &MonitorSnapshot{
		ExamID:       examID,
		StatusCounts: make(map[model.RecordStatus]int, 4),
		RecentEvents: []model.SessionEvent{},
	}
	for _, st := range []model.RecordStatus{
		model.RecordStatusOngoing, model.RecordStatusSubmitted,
		model.RecordStatusGraded, model.RecordStatusTimeout,
	} {
		snap.StatusCounts[st] = counts[st]
	}
	if recentErr == nil && recent != nil {
		snap.RecentEvents = recent
	}
	return snap, nil
}

// Subscribe opens a PubSub on the exam's monitor channel. The caller closes it.
func (s *MonitorService) Subscribe(ctx context.Context, examID uuid.UUID) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(examID.String()))
}
