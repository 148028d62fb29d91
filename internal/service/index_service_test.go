package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-match-go/internal/chunker"
	"resume-match-go/internal/config"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/types"
)

func testIndexingConfig() config.IndexingConfig {
	return config.IndexingConfig{MaxConcurrency: 2, ItemTimeoutSeconds: 10}
}

func newIndexFixture(t *testing.T, profile types.ResumeProfile) (*IndexService, *storage.MemoryVectorIndex, *fakePublisher) {
	t.Helper()

	resumes := &fakeResumeStore{profiles: map[string]types.ResumeProfile{profile.ResumeID: profile}}
	index := storage.NewMemoryVectorIndex()
	embedder := &fakeEmbedder{vector: []float64{1, 0}}
	ck, err := chunker.New(100, 20)
	require.NoError(t, err)
	publisher := &fakePublisher{}

	svc := NewIndexService(resumes, index, embedder, ck, &fakeLocker{}, publisher, testIndexingConfig())
	return svc, index, publisher
}

func TestIndexResume(t *testing.T) {
	profile := types.ResumeProfile{
		ResumeID:      "r1",
		JobID:         "j1",
		CandidateName: "张三",
		RawText:       strings.Repeat("丰富的后端开发经验。", 30),
	}
	svc, index, publisher := newIndexFixture(t, profile)

	count, err := svc.IndexResume(context.Background(), "r1")
	require.NoError(t, err)
	assert.Greater(t, count, 1)
	assert.Equal(t, count, index.Count())

	hits, err := index.Query(context.Background(), []float64{1, 0}, 10, "j1")
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "r1", hits[0].Chunk.SourceResumeID)
	assert.Equal(t, "j1", hits[0].Chunk.ScopeID)
	assert.Equal(t, "张三", hits[0].Chunk.Metadata["candidate_name"])

	require.Len(t, publisher.events, 1)
	assert.Equal(t, "indexed", publisher.events[0].kind)
	assert.Equal(t, count, publisher.events[0].chunkCount)
}

func TestIndexResumeEmptyText(t *testing.T) {
	profile := types.ResumeProfile{ResumeID: "r1", JobID: "j1", RawText: "   "}
	svc, index, publisher := newIndexFixture(t, profile)

	// 先放入旧分块，验证空正文会清掉它们
	require.NoError(t, index.Upsert(context.Background(), []types.Chunk{{
		ID: storage.PointID("r1", 0), SourceResumeID: "r1", Embedding: []float64{1, 0},
	}}))

	count, err := svc.IndexResume(context.Background(), "r1")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, index.Count())

	require.Len(t, publisher.events, 1)
	assert.Zero(t, publisher.events[0].chunkCount)
}

func TestReindexRemovesOrphans(t *testing.T) {
	long := strings.Repeat("第一版简历内容。", 50)
	profile := types.ResumeProfile{ResumeID: "r1", JobID: "j1", RawText: long}

	resumes := &fakeResumeStore{profiles: map[string]types.ResumeProfile{"r1": profile}}
	index := storage.NewMemoryVectorIndex()
	ck, err := chunker.New(100, 20)
	require.NoError(t, err)
	svc := NewIndexService(resumes, index, &fakeEmbedder{vector: []float64{1, 0}}, ck, nil, nil, testIndexingConfig())

	first, err := svc.IndexResume(context.Background(), "r1")
	require.NoError(t, err)
	require.Greater(t, first, 1)

	// 正文变短后重新摄取，旧的多余分块必须消失
	profile.RawText = "只有一小段。"
	resumes.profiles["r1"] = profile

	second, err := svc.ReindexResume(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, second)
	assert.Equal(t, 1, index.Count())
}

func TestIndexResumeLockDenied(t *testing.T) {
	profile := types.ResumeProfile{ResumeID: "r1", RawText: "内容"}
	resumes := &fakeResumeStore{profiles: map[string]types.ResumeProfile{"r1": profile}}
	ck, err := chunker.New(100, 20)
	require.NoError(t, err)

	svc := NewIndexService(resumes, storage.NewMemoryVectorIndex(), &fakeEmbedder{vector: []float64{1, 0}}, ck, &fakeLocker{denyAll: true}, nil, testIndexingConfig())

	_, err = svc.IndexResume(context.Background(), "r1")
	assert.True(t, errors.Is(err, errLockDenied))
}

func TestIndexResumeNotFound(t *testing.T) {
	resumes := &fakeResumeStore{profiles: map[string]types.ResumeProfile{}}
	ck, err := chunker.New(100, 20)
	require.NoError(t, err)
	svc := NewIndexService(resumes, storage.NewMemoryVectorIndex(), &fakeEmbedder{vector: []float64{1, 0}}, ck, nil, nil, testIndexingConfig())

	_, err = svc.IndexResume(context.Background(), "r404")
	assert.Error(t, err)
}

func TestDeleteResumeIndex(t *testing.T) {
	profile := types.ResumeProfile{ResumeID: "r1", JobID: "j1", RawText: "一段简历内容。"}
	svc, index, _ := newIndexFixture(t, profile)

	count, err := svc.IndexResume(context.Background(), "r1")
	require.NoError(t, err)
	require.Greater(t, count, 0)

	require.NoError(t, svc.DeleteResumeIndex(context.Background(), "r1"))
	assert.Zero(t, index.Count())
}

func TestIndexJob(t *testing.T) {
	resumes := &fakeResumeStore{
		profiles: map[string]types.ResumeProfile{
			"r1": {ResumeID: "r1", JobID: "j1", CandidateName: "张三", RawText: strings.Repeat("后端开发经验。", 20)},
			"r2": {ResumeID: "r2", JobID: "j1", CandidateName: "李四", RawText: "前端工程师。"},
		},
		byJob: map[string][]string{"j1": {"r1", "r2"}},
	}
	index := storage.NewMemoryVectorIndex()
	ck, err := chunker.New(100, 20)
	require.NoError(t, err)
	publisher := &fakePublisher{}

	svc := NewIndexService(resumes, index, &fakeEmbedder{vector: []float64{1, 0}}, ck, &fakeLocker{}, publisher, testIndexingConfig())

	succeeded, failed, err := svc.IndexJob(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, 2, succeeded)
	assert.Zero(t, failed)
	assert.Greater(t, index.Count(), 1)
	assert.Len(t, publisher.events, 2)
}

func TestIndexJobPartialFailure(t *testing.T) {
	// r-ghost 在岗位列表里但没有档案，摄取它必然失败
	resumes := &fakeResumeStore{
		profiles: map[string]types.ResumeProfile{
			"r1": {ResumeID: "r1", JobID: "j1", RawText: "内容。"},
		},
		byJob: map[string][]string{"j1": {"r1", "r-ghost"}},
	}
	index := storage.NewMemoryVectorIndex()
	ck, err := chunker.New(100, 20)
	require.NoError(t, err)

	svc := NewIndexService(resumes, index, &fakeEmbedder{vector: []float64{1, 0}}, ck, nil, nil, testIndexingConfig())

	succeeded, failed, err := svc.IndexJob(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, index.Count())
}

func TestIndexJobNoResumes(t *testing.T) {
	resumes := &fakeResumeStore{profiles: map[string]types.ResumeProfile{}, byJob: map[string][]string{}}
	ck, err := chunker.New(100, 20)
	require.NoError(t, err)

	svc := NewIndexService(resumes, storage.NewMemoryVectorIndex(), &fakeEmbedder{vector: []float64{1, 0}}, ck, nil, nil, testIndexingConfig())

	succeeded, failed, err := svc.IndexJob(context.Background(), "j-empty")
	require.NoError(t, err)
	assert.Zero(t, succeeded)
	assert.Zero(t, failed)
}
