package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"resume-match-go/internal/types"
)

// 本文件是服务层测试共用的内存假件

type fakeResumeStore struct {
	profiles map[string]types.ResumeProfile
	byJob    map[string][]string // jobID -> 有序的简历ID列表
}

func (f *fakeResumeStore) GetResumeProfile(ctx context.Context, resumeID string) (types.ResumeProfile, error) {
	p, ok := f.profiles[resumeID]
	if !ok {
		return types.ResumeProfile{}, fmt.Errorf("简历 %s 不存在", resumeID)
	}
	return p, nil
}

func (f *fakeResumeStore) ListResumesByJob(ctx context.Context, jobID string) ([]types.ResumeProfile, error) {
	var out []types.ResumeProfile
	for _, id := range f.byJob[jobID] {
		out = append(out, f.profiles[id])
	}
	return out, nil
}

type fakeJobStore struct {
	jobs map[string]types.JobRequirement
}

func (f *fakeJobStore) GetJobRequirement(ctx context.Context, jobID string) (types.JobRequirement, error) {
	j, ok := f.jobs[jobID]
	if !ok {
		return types.JobRequirement{}, fmt.Errorf("岗位 %s 不存在", jobID)
	}
	return j, nil
}

type fakeScoreStore struct {
	mu    sync.Mutex
	saved map[string][]types.ScoreResult
}

func (f *fakeScoreStore) SaveScoreResults(ctx context.Context, jobID string, results []types.ScoreResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string][]types.ScoreResult)
	}
	f.saved[jobID] = results
	return nil
}

type fakeLocker struct {
	mu     sync.Mutex
	held   map[string]bool
	cached map[string][]types.ScoreResult
	// denyAll 为真时所有加锁请求都失败
	denyAll bool
}

var errLockDenied = errors.New("未能获得分布式锁")

func (f *fakeLocker) lock(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held == nil {
		f.held = make(map[string]bool)
	}
	if f.denyAll || f.held[key] {
		return "", errLockDenied
	}
	f.held[key] = true
	return "token-" + key, nil
}

func (f *fakeLocker) unlock(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
	return nil
}

func (f *fakeLocker) LockResume(ctx context.Context, resumeID string) (string, error) {
	return f.lock("resume:" + resumeID)
}

func (f *fakeLocker) UnlockResume(ctx context.Context, resumeID, token string) error {
	return f.unlock("resume:" + resumeID)
}

func (f *fakeLocker) LockJob(ctx context.Context, jobID string) (string, error) {
	return f.lock("job:" + jobID)
}

func (f *fakeLocker) UnlockJob(ctx context.Context, jobID, token string) error {
	return f.unlock("job:" + jobID)
}

func (f *fakeLocker) CacheJobScores(ctx context.Context, jobID string, results []types.ScoreResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cached == nil {
		f.cached = make(map[string][]types.ScoreResult)
	}
	f.cached[jobID] = results
	return nil
}

type publishedEvent struct {
	kind       string
	resumeID   string
	jobID      string
	chunkCount int
	resumeCnt  int
	failedCnt  int
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakePublisher) PublishResumeIndexed(ctx context.Context, resumeID, jobID string, chunkCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{kind: "indexed", resumeID: resumeID, jobID: jobID, chunkCount: chunkCount})
	return nil
}

func (f *fakePublisher) PublishJobScored(ctx context.Context, jobID string, resumeCount, failedCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{kind: "scored", jobID: jobID, resumeCnt: resumeCount, failedCnt: failedCount})
	return nil
}

// fakeEmbedder 固定向量的嵌入假件
type fakeEmbedder struct {
	mu     sync.Mutex
	vector []float64
	fail   bool
	calls  int
}

func (f *fakeEmbedder) EmbedStrings(ctx context.Context, texts []string) ([][]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, errors.New("嵌入服务不可用")
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) GetDimensions() int { return len(f.vector) }

// fakeChatModel 按脚本应答的对话模型假件
type fakeChatModel struct {
	mu      sync.Mutex
	answers []string
	calls   int
}

func (f *fakeChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	answer := ""
	if len(f.answers) > 0 {
		answer = f.answers[0]
		f.answers = f.answers[1:]
	}
	return schema.AssistantMessage(answer, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, messages, options...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}
