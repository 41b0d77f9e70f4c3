package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// PaperViewKey returns the cache key holding the key-stripped question list of a published paper.
func (r *CacheKeyStruct) PaperViewKey(paperID string) string {
	return fmt.Sprintf("paper:%s:view", paperID)
}

// ExamMonitorChannel returns the Redis PubSub channel carrying session events of an exam.
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

// StudentRateKey returns the fixed-window counter key for a student's start/submit calls.
func (r *CacheKeyStruct) StudentRateKey(studentID int, window int64) string {
	return fmt.Sprintf("ratelimit:student:%d:%d", studentID, window)
}

var CacheKey = NewCacheKeyStruct()
