package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptAnswersKey returns the cache key for an attempt's answer hash.
func (r *CacheKeyStruct) AttemptAnswersKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:answers", attemptID)
}

// AttemptFlagsKey returns the cache key for an attempt's flagged-question set.
func (r *CacheKeyStruct) AttemptFlagsKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:flags", attemptID)
}

// AttemptPlayCountsKey returns the cache key for an attempt's section play counts.
func (r *CacheKeyStruct) AttemptPlayCountsKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:play_counts", attemptID)
}

// AttemptStartKey returns the cache key for an attempt's start timestamp.
func (r *CacheKeyStruct) AttemptStartKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:started_at", attemptID)
}

// StudentActiveAttemptKey returns the cache key for a student's active attempt
// on a given exam.
func (r *CacheKeyStruct) StudentActiveAttemptKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:attempt", studentID, examID)
}

// ExamPayloadKey returns the cache key for an exam's student-facing payload.
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

var CacheKey = NewCacheKeyStruct()
