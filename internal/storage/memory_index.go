package storage

import (
	"context"
	"math"
	"sort"
	"sync"

	"resume-match-go/internal/embedding"
	"resume-match-go/internal/types"
)

// MemoryVectorIndex 进程内向量索引
// 与Qdrant实现同一契约，用于测试以及未配置Qdrant时的降级
type MemoryVectorIndex struct {
	mu     sync.RWMutex
	chunks map[string]types.Chunk // key为分块ID
}

var _ VectorIndex = (*MemoryVectorIndex)(nil)

// NewMemoryVectorIndex 创建进程内向量索引
func NewMemoryVectorIndex() *MemoryVectorIndex {
	return &MemoryVectorIndex{
		chunks: make(map[string]types.Chunk),
	}
}

// Upsert 写入分块，同ID覆盖；嵌入向量在写入前归一化
func (m *MemoryVectorIndex) Upsert(ctx context.Context, chunks []types.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, chunk := range chunks {
		chunk.Embedding = embedding.Normalize(chunk.Embedding)
		m.chunks[chunk.ID] = chunk
	}
	return nil
}

// DeleteByResume 删除一份简历的全部分块
func (m *MemoryVectorIndex) DeleteByResume(ctx context.Context, resumeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, chunk := range m.chunks {
		if chunk.SourceResumeID == resumeID {
			delete(m.chunks, id)
		}
	}
	return nil
}

// Query 余弦相似度最近邻查询
func (m *MemoryVectorIndex) Query(ctx context.Context, queryVector []float64, topK int, scopeID string) ([]types.ScoredChunk, error) {
	if topK <= 0 {
		return nil, nil
	}

	normalized := embedding.Normalize(queryVector)

	m.mu.RLock()
	scored := make([]types.ScoredChunk, 0, len(m.chunks))
	for _, chunk := range m.chunks {
		if scopeID != types.ScopeAll && chunk.ScopeID != scopeID {
			continue
		}
		sim := embedding.Cosine(normalized, chunk.Embedding)
		// 归一化向量的余弦理论上在[-1,1]，映射到[0,1]前先截断负值
		sim = math.Max(0, math.Min(1, sim))
		scored = append(scored, types.ScoredChunk{Chunk: chunk, Similarity: sim})
	}
	m.mu.RUnlock()

	// 相似度降序；相同时按简历ID、分块Index升序，保证重复查询结果一致
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		if scored[i].Chunk.SourceResumeID != scored[j].Chunk.SourceResumeID {
			return scored[i].Chunk.SourceResumeID < scored[j].Chunk.SourceResumeID
		}
		return scored[i].Chunk.Index < scored[j].Chunk.Index
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Count 返回当前索引的分块数，测试用
func (m *MemoryVectorIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}
