package storage

import (
	"context"

	"resume-match-go/internal/types"
)

// VectorIndex 向量索引接口
// 存储简历分块向量并支持按范围过滤的最近邻查询；
// 摄取与查询两侧的向量都必须已归一化为单位长度
type VectorIndex interface {
	// Upsert 写入一批分块，按分块ID幂等，同ID覆盖旧值
	Upsert(ctx context.Context, chunks []types.Chunk) error

	// DeleteByResume 删除一份简历的全部分块（重新摄取前调用）
	DeleteByResume(ctx context.Context, resumeID string) error

	// Query 返回至多topK个结果，按余弦相似度降序，
	// 相似度相同时按分块Index升序保证确定性；
	// scopeID 非空时只检索该岗位范围，空串表示全库；
	// 范围内没有任何分块时返回空切片而非错误
	Query(ctx context.Context, queryVector []float64, topK int, scopeID string) ([]types.ScoredChunk, error)
}
