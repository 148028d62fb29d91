package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"resume-match-go/internal/chunker"
	"resume-match-go/internal/config"
	"resume-match-go/internal/embedding"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"
)

var indexTracer = otel.Tracer("resume-match-go/service/index")

// IndexService 简历摄取服务：分块、嵌入并写入向量索引
type IndexService struct {
	resumes   ResumeStore
	index     storage.VectorIndex
	embedder  embedding.Embedder
	chunker   *chunker.Chunker
	locker    Locker         // 可选
	publisher EventPublisher // 可选
	cfg       config.IndexingConfig
}

// NewIndexService 创建摄取服务，locker与publisher允许为nil
func NewIndexService(resumes ResumeStore, index storage.VectorIndex, embedder embedding.Embedder, ck *chunker.Chunker, locker Locker, publisher EventPublisher, cfg config.IndexingConfig) *IndexService {
	return &IndexService{
		resumes:   resumes,
		index:     index,
		embedder:  embedder,
		chunker:   ck,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
	}
}

// IndexResume 摄取一份简历：先整体删除旧分块，再写入新分块
// 正文为空时只做删除，返回分块数0且不报错；
// 同一简历的并发摄取由分布式锁串行化，未获锁时返回 storage.ErrLockNotAcquired
func (s *IndexService) IndexResume(ctx context.Context, resumeID string) (int, error) {
	ctx, span := indexTracer.Start(ctx, "index.resume", trace.WithAttributes(
		attribute.String("resume.id", resumeID),
	))
	defer span.End()

	if s.locker != nil {
		token, err := s.locker.LockResume(ctx, resumeID)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeRedis)
			return 0, err
		}
		defer func() {
			if err := s.locker.UnlockResume(ctx, resumeID, token); err != nil {
				logger.Warn().Err(err).Str("resume_id", resumeID).Msg("释放简历锁失败")
			}
		}()
	}

	profile, err := s.resumes.GetResumeProfile(ctx, resumeID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return 0, err
	}

	pieces := s.chunker.Chunk(profile.RawText)
	span.SetAttributes(attribute.Int("chunk.count", len(pieces)))

	if len(pieces) == 0 {
		// 正文为空：清掉旧分块即可
		if err := s.index.DeleteByResume(ctx, resumeID); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return 0, fmt.Errorf("删除简历旧分块失败: %w", err)
		}
		s.publishIndexed(ctx, resumeID, profile.JobID, 0)
		logger.Info().Str("resume_id", resumeID).Msg("简历正文为空，已清除旧分块")
		return 0, nil
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	vectors, err := s.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeProvider)
		return 0, fmt.Errorf("分块嵌入失败: %w", err)
	}
	if len(vectors) != len(pieces) {
		return 0, fmt.Errorf("嵌入结果数量不匹配: 期望 %d 实际 %d", len(pieces), len(vectors))
	}

	chunks := make([]types.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = types.Chunk{
			ID:             storage.PointID(resumeID, p.Index),
			SourceResumeID: resumeID,
			ScopeID:        profile.JobID,
			Index:          p.Index,
			Text:           p.Text,
			Embedding:      vectors[i],
			Metadata: map[string]string{
				"candidate_name": profile.CandidateName,
			},
		}
	}

	// 整体替换：删旧再写新，避免分块数变少时留下孤儿
	if err := s.index.DeleteByResume(ctx, resumeID); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return 0, fmt.Errorf("删除简历旧分块失败: %w", err)
	}
	if err := s.index.Upsert(ctx, chunks); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return 0, fmt.Errorf("写入简历分块失败: %w", err)
	}

	s.publishIndexed(ctx, resumeID, profile.JobID, len(chunks))
	logger.Info().
		Str("resume_id", resumeID).
		Int("chunk_count", len(chunks)).
		Msg("简历索引完成")
	return len(chunks), nil
}

// ReindexResume 重新摄取，语义与IndexResume一致（删旧写新）
func (s *IndexService) ReindexResume(ctx context.Context, resumeID string) (int, error) {
	return s.IndexResume(ctx, resumeID)
}

// IndexJob 批量摄取一个岗位下的全部简历
// 并行执行且受并发上限约束；单份简历失败不中断批次，返回成功与失败的份数
func (s *IndexService) IndexJob(ctx context.Context, jobID string) (int, int, error) {
	ctx, span := indexTracer.Start(ctx, "index.job", trace.WithAttributes(
		attribute.String("job.id", jobID),
	))
	defer span.End()

	profiles, err := s.resumes.ListResumesByJob(ctx, jobID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return 0, 0, err
	}
	span.SetAttributes(attribute.Int("resume.count", len(profiles)))

	var failed atomic.Int64
	sem := semaphore.NewWeighted(int64(s.maxConcurrency()))
	g, gctx := errgroup.WithContext(ctx)

	for _, profile := range profiles {
		profile := profile
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			itemCtx, cancel := context.WithTimeout(gctx, s.itemTimeout())
			defer cancel()

			if _, err := s.IndexResume(itemCtx, profile.ResumeID); err != nil {
				failed.Add(1)
				logger.Warn().Err(err).
					Str("job_id", jobID).
					Str("resume_id", profile.ResumeID).
					Msg("简历摄取失败，跳过该项")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return 0, 0, err
	}

	failedCount := int(failed.Load())
	succeeded := len(profiles) - failedCount
	span.SetAttributes(attribute.Int("index.failed_count", failedCount))
	logger.Info().
		Str("job_id", jobID).
		Int("indexed", succeeded).
		Int("failed", failedCount).
		Msg("岗位批量摄取完成")
	return succeeded, failedCount, nil
}

// DeleteResumeIndex 从向量索引中移除一份简历的全部分块
func (s *IndexService) DeleteResumeIndex(ctx context.Context, resumeID string) error {
	return s.index.DeleteByResume(ctx, resumeID)
}

func (s *IndexService) maxConcurrency() int {
	if s.cfg.MaxConcurrency > 0 {
		return s.cfg.MaxConcurrency
	}
	return 4
}

func (s *IndexService) itemTimeout() time.Duration {
	if s.cfg.ItemTimeoutSeconds > 0 {
		return time.Duration(s.cfg.ItemTimeoutSeconds) * time.Second
	}
	return 120 * time.Second
}

// publishIndexed 发布索引完成事件，失败只告警不影响主流程
func (s *IndexService) publishIndexed(ctx context.Context, resumeID, jobID string, chunkCount int) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishResumeIndexed(ctx, resumeID, jobID, chunkCount); err != nil {
		logger.Warn().Err(err).Str("resume_id", resumeID).Msg("发布索引完成事件失败")
	}
}
