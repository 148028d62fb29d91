package service

import (
	"context"

	"resume-match-go/internal/types"
)

// ResumeStore 简历读取接口
type ResumeStore interface {
	GetResumeProfile(ctx context.Context, resumeID string) (types.ResumeProfile, error)
	ListResumesByJob(ctx context.Context, jobID string) ([]types.ResumeProfile, error)
}

// JobStore 岗位读取接口
type JobStore interface {
	GetJobRequirement(ctx context.Context, jobID string) (types.JobRequirement, error)
}

// ScoreStore 打分结果持久化接口
type ScoreStore interface {
	SaveScoreResults(ctx context.Context, jobID string, results []types.ScoreResult) error
}

// Locker 分布式锁与结果缓存接口，防止同一资源的并发写冲突
type Locker interface {
	LockResume(ctx context.Context, resumeID string) (string, error)
	UnlockResume(ctx context.Context, resumeID, token string) error
	LockJob(ctx context.Context, jobID string) (string, error)
	UnlockJob(ctx context.Context, jobID, token string) error
	CacheJobScores(ctx context.Context, jobID string, results []types.ScoreResult) error
}

// EventPublisher 处理完成事件的发布接口
type EventPublisher interface {
	PublishResumeIndexed(ctx context.Context, resumeID, jobID string, chunkCount int) error
	PublishJobScored(ctx context.Context, jobID string, resumeCount, failedCount int) error
}
