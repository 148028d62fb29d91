package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-match-go/internal/config"
	"resume-match-go/internal/scoring"
	"resume-match-go/internal/types"
)

func testScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		SkillWeight:        0.5,
		ExperienceWeight:   0.25,
		SemanticWeight:     0.25,
		SkillPartialWeight: 0.5,
		MaxConcurrency:     2,
		ItemTimeoutSeconds: 10,
	}
}

func newScoreFixture(t *testing.T, resumes *fakeResumeStore, jobs *fakeJobStore, embedder *fakeEmbedder) (*ScoreService, *fakeScoreStore, *fakeLocker, *fakePublisher) {
	t.Helper()

	engine, err := scoring.NewEngine(testScoringConfig())
	require.NoError(t, err)

	scores := &fakeScoreStore{}
	locker := &fakeLocker{}
	publisher := &fakePublisher{}
	svc := NewScoreService(resumes, jobs, scores, engine, embedder, locker, publisher, testScoringConfig())
	return svc, scores, locker, publisher
}

func TestScoreResume(t *testing.T) {
	resumes := &fakeResumeStore{profiles: map[string]types.ResumeProfile{
		"r1": {ResumeID: "r1", Skills: []string{"go", "python"}, TotalExperienceYears: 5},
	}}
	jobs := &fakeJobStore{jobs: map[string]types.JobRequirement{
		"j1": {JobID: "j1", RequiredSkills: []string{"go", "python"}, MinimumExperienceYears: 3},
	}}
	svc, _, _, _ := newScoreFixture(t, resumes, jobs, &fakeEmbedder{vector: []float64{1, 0}})

	result, err := svc.ScoreResume(context.Background(), "r1", "j1")
	require.NoError(t, err)

	assert.Equal(t, "r1", result.ResumeID)
	assert.InDelta(t, 100, result.SkillScore, 0.01)
	assert.InDelta(t, 100, result.ExperienceScore, 0.01)
	// 相同向量，语义分量满分
	require.NotNil(t, result.SemanticScore)
	assert.InDelta(t, 100, *result.SemanticScore, 0.01)
	assert.InDelta(t, 100, result.TotalScore, 0.01)
}

func TestScoreResumeEmbeddingDegrades(t *testing.T) {
	resumes := &fakeResumeStore{profiles: map[string]types.ResumeProfile{
		"r1": {ResumeID: "r1", Skills: []string{"go"}, TotalExperienceYears: 3},
	}}
	jobs := &fakeJobStore{jobs: map[string]types.JobRequirement{
		"j1": {JobID: "j1", RequiredSkills: []string{"go"}, MinimumExperienceYears: 3},
	}}
	svc, _, _, _ := newScoreFixture(t, resumes, jobs, &fakeEmbedder{fail: true})

	result, err := svc.ScoreResume(context.Background(), "r1", "j1")
	require.NoError(t, err)

	// 嵌入不可用时语义分量缺失，总分按剩余权重归一
	assert.Nil(t, result.SemanticScore)
	assert.InDelta(t, 100, result.TotalScore, 0.01)
}

func TestScoreResumeUnknownIDs(t *testing.T) {
	svc, _, _, _ := newScoreFixture(t,
		&fakeResumeStore{profiles: map[string]types.ResumeProfile{}},
		&fakeJobStore{jobs: map[string]types.JobRequirement{}},
		&fakeEmbedder{vector: []float64{1, 0}})

	_, err := svc.ScoreResume(context.Background(), "r404", "j1")
	assert.Error(t, err)
}

func TestScoreAndRankJob(t *testing.T) {
	resumes := &fakeResumeStore{
		profiles: map[string]types.ResumeProfile{
			"r1": {ResumeID: "r1", JobID: "j1", Skills: []string{"go"}, TotalExperienceYears: 5},
			"r2": {ResumeID: "r2", JobID: "j1", Skills: []string{"java"}, TotalExperienceYears: 1},
			"r3": {ResumeID: "r3", JobID: "j1", Skills: []string{"go", "mysql"}, TotalExperienceYears: 3},
		},
		byJob: map[string][]string{"j1": {"r1", "r2", "r3"}},
	}
	jobs := &fakeJobStore{jobs: map[string]types.JobRequirement{
		"j1": {JobID: "j1", RequiredSkills: []string{"go", "mysql"}, MinimumExperienceYears: 3},
	}}
	svc, scores, locker, publisher := newScoreFixture(t, resumes, jobs, &fakeEmbedder{vector: []float64{1, 0}})

	ranked, err := svc.ScoreAndRankJob(context.Background(), "j1")
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	// r3 两项技能全中且经验达标，排名第一
	assert.Equal(t, "r3", ranked[0].ResumeID)
	assert.Equal(t, 1, ranked[0].Rank)
	for i, r := range ranked {
		assert.Equal(t, i+1, r.Rank)
		if i > 0 {
			assert.GreaterOrEqual(t, ranked[i-1].TotalScore, r.TotalScore)
		}
	}

	// 结果持久化且写入缓存
	assert.Equal(t, ranked, scores.saved["j1"])
	assert.Equal(t, ranked, locker.cached["j1"])

	require.Len(t, publisher.events, 1)
	assert.Equal(t, "scored", publisher.events[0].kind)
	assert.Equal(t, 3, publisher.events[0].resumeCnt)
	assert.Zero(t, publisher.events[0].failedCnt)

	// 批次结束后岗位锁已释放
	_, err = locker.LockJob(context.Background(), "j1")
	assert.NoError(t, err)
}

func TestScoreAndRankJobPartialFailure(t *testing.T) {
	resumes := &fakeResumeStore{
		profiles: map[string]types.ResumeProfile{
			"r1": {ResumeID: "r1", JobID: "j1", Skills: []string{"go"}, TotalExperienceYears: 5},
			// 非法数据：负经验年限导致该项打分失败
			"r2": {ResumeID: "r2", JobID: "j1", TotalExperienceYears: -1},
		},
		byJob: map[string][]string{"j1": {"r1", "r2"}},
	}
	jobs := &fakeJobStore{jobs: map[string]types.JobRequirement{
		"j1": {JobID: "j1", RequiredSkills: []string{"go"}},
	}}
	svc, scores, _, publisher := newScoreFixture(t, resumes, jobs, &fakeEmbedder{vector: []float64{1, 0}})

	ranked, err := svc.ScoreAndRankJob(context.Background(), "j1")
	require.NoError(t, err)

	// 失败项被跳过，其余照常排名
	require.Len(t, ranked, 1)
	assert.Equal(t, "r1", ranked[0].ResumeID)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Len(t, scores.saved["j1"], 1)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, 1, publisher.events[0].resumeCnt)
	assert.Equal(t, 1, publisher.events[0].failedCnt)
}

func TestScoreAndRankJobEmpty(t *testing.T) {
	resumes := &fakeResumeStore{profiles: map[string]types.ResumeProfile{}, byJob: map[string][]string{}}
	jobs := &fakeJobStore{jobs: map[string]types.JobRequirement{"j1": {JobID: "j1"}}}
	svc, scores, _, _ := newScoreFixture(t, resumes, jobs, &fakeEmbedder{vector: []float64{1, 0}})

	ranked, err := svc.ScoreAndRankJob(context.Background(), "j1")
	require.NoError(t, err)
	assert.Empty(t, ranked)

	// 空批次也会覆盖旧结果
	_, ok := scores.saved["j1"]
	assert.True(t, ok)
}

func TestScoreAndRankJobLockDenied(t *testing.T) {
	engine, err := scoring.NewEngine(testScoringConfig())
	require.NoError(t, err)

	svc := NewScoreService(
		&fakeResumeStore{}, &fakeJobStore{}, &fakeScoreStore{},
		engine, &fakeEmbedder{vector: []float64{1, 0}},
		&fakeLocker{denyAll: true}, nil, testScoringConfig())

	_, err = svc.ScoreAndRankJob(context.Background(), "j1")
	assert.True(t, errors.Is(err, errLockDenied))
}
