package constants

import "fmt"

// Redis键前缀，集中定义避免各处硬编码
const (
	// LockResumePrefix 简历摄取锁前缀
	LockResumePrefix = "lock:resume:"
	// LockJobPrefix 岗位打分批次锁前缀
	LockJobPrefix = "lock:job:"
	// CacheJobScoresPrefix 岗位打分结果缓存前缀
	CacheJobScoresPrefix = "cache:job_scores:"
)

// ResumeLockKey 一份简历的摄取锁
func ResumeLockKey(resumeID string) string {
	return fmt.Sprintf("%s%s", LockResumePrefix, resumeID)
}

// JobLockKey 一个岗位的打分批次锁
func JobLockKey(jobID string) string {
	return fmt.Sprintf("%s%s", LockJobPrefix, jobID)
}

// JobScoresCacheKey 一个岗位的打分结果缓存
func JobScoresCacheKey(jobID string) string {
	return fmt.Sprintf("%s%s", CacheJobScoresPrefix, jobID)
}
