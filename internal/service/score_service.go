package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"resume-match-go/internal/config"
	"resume-match-go/internal/embedding"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/scoring"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"
)

var scoreTracer = otel.Tracer("resume-match-go/service/score")

// ScoreService 打分服务：单份打分与岗位级批量打分排名
type ScoreService struct {
	resumes   ResumeStore
	jobs      JobStore
	scores    ScoreStore
	engine    *scoring.Engine
	embedder  embedding.Embedder
	locker    Locker         // 可选
	publisher EventPublisher // 可选
	cfg       config.ScoringConfig
}

// NewScoreService 创建打分服务，locker与publisher允许为nil
func NewScoreService(resumes ResumeStore, jobs JobStore, scores ScoreStore, engine *scoring.Engine, embedder embedding.Embedder, locker Locker, publisher EventPublisher, cfg config.ScoringConfig) *ScoreService {
	return &ScoreService{
		resumes:   resumes,
		jobs:      jobs,
		scores:    scores,
		engine:    engine,
		embedder:  embedder,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
	}
}

// ScoreResume 对单份简历按岗位要求打分
// 嵌入服务不可用时降级：语义分量缺失，总分按剩余权重归一
func (s *ScoreService) ScoreResume(ctx context.Context, resumeID, jobID string) (types.ScoreResult, error) {
	ctx, span := scoreTracer.Start(ctx, "score.resume", trace.WithAttributes(
		attribute.String("resume.id", resumeID),
		attribute.String("job.id", jobID),
	))
	defer span.End()

	resume, err := s.resumes.GetResumeProfile(ctx, resumeID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return types.ScoreResult{}, err
	}
	job, err := s.jobs.GetJobRequirement(ctx, jobID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return types.ScoreResult{}, err
	}

	resumeEmb, jobEmb := s.embedPair(ctx, resume, job)
	result, err := s.engine.Score(resume, job, resumeEmb, jobEmb)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return types.ScoreResult{}, err
	}
	return result, nil
}

// ScoreAndRankJob 对一个岗位下的全部简历并行打分并排名
// 同一岗位的并发批量打分由岗位锁串行化，新一轮结果整体覆盖旧名次；
// 个别简历打分失败不会中断批次，失败项不出现在结果中
func (s *ScoreService) ScoreAndRankJob(ctx context.Context, jobID string) ([]types.ScoreResult, error) {
	ctx, span := scoreTracer.Start(ctx, "score.rank_job", trace.WithAttributes(
		attribute.String("job.id", jobID),
	))
	defer span.End()

	if s.locker != nil {
		token, err := s.locker.LockJob(ctx, jobID)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeRedis)
			return nil, err
		}
		defer func() {
			if err := s.locker.UnlockJob(ctx, jobID, token); err != nil {
				logger.Warn().Err(err).Str("job_id", jobID).Msg("释放岗位锁失败")
			}
		}()
	}

	job, err := s.jobs.GetJobRequirement(ctx, jobID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}
	// 顺序即平局次序（创建时间升序）
	resumes, err := s.resumes.ListResumesByJob(ctx, jobID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}
	span.SetAttributes(attribute.Int("resume.count", len(resumes)))

	if len(resumes) == 0 {
		if err := s.scores.SaveScoreResults(ctx, jobID, nil); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return nil, err
		}
		return []types.ScoreResult{}, nil
	}

	// 岗位文本只嵌入一次，失败时全批降级为语义缺失
	jobEmb := s.embedText(ctx, scoring.BuildJobText(job))

	results := make([]*types.ScoreResult, len(resumes))
	sem := semaphore.NewWeighted(int64(s.maxConcurrency()))
	g, gctx := errgroup.WithContext(ctx)

	for i, resume := range resumes {
		i, resume := i, resume
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			itemCtx, cancel := context.WithTimeout(gctx, s.itemTimeout())
			defer cancel()

			var resumeEmb []float64
			if jobEmb != nil {
				resumeEmb = s.embedText(itemCtx, scoring.BuildResumeSummary(resume))
			}

			result, err := s.engine.Score(resume, job, resumeEmb, jobEmb)
			if err != nil {
				// 单项失败只记录，不中断整个批次
				logger.Warn().Err(err).
					Str("job_id", jobID).
					Str("resume_id", resume.ResumeID).
					Msg("简历打分失败，跳过该项")
				return nil
			}
			results[i] = &result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return nil, err
	}

	succeeded := make([]types.ScoreResult, 0, len(resumes))
	for _, r := range results {
		if r != nil {
			succeeded = append(succeeded, *r)
		}
	}
	failedCount := len(resumes) - len(succeeded)
	span.SetAttributes(attribute.Int("score.failed_count", failedCount))

	ranked := s.engine.Rank(succeeded)

	if err := s.scores.SaveScoreResults(ctx, jobID, ranked); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}
	if s.locker != nil {
		if err := s.locker.CacheJobScores(ctx, jobID, ranked); err != nil {
			logger.Warn().Err(err).Str("job_id", jobID).Msg("写入打分结果缓存失败")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishJobScored(ctx, jobID, len(ranked), failedCount); err != nil {
			logger.Warn().Err(err).Str("job_id", jobID).Msg("发布打分完成事件失败")
		}
	}

	logger.Info().
		Str("job_id", jobID).
		Int("scored", len(ranked)).
		Int("failed", failedCount).
		Msg("岗位批量打分完成")
	return ranked, nil
}

// embedPair 嵌入简历摘要与岗位文本，失败时返回nil表示语义分量缺失
func (s *ScoreService) embedPair(ctx context.Context, resume types.ResumeProfile, job types.JobRequirement) ([]float64, []float64) {
	vectors, err := s.embedder.EmbedStrings(ctx, []string{
		scoring.BuildResumeSummary(resume),
		scoring.BuildJobText(job),
	})
	if err != nil || len(vectors) != 2 {
		logger.Warn().Err(err).
			Str("resume_id", resume.ResumeID).
			Msg("嵌入失败，语义分量降级为缺失")
		return nil, nil
	}
	return vectors[0], vectors[1]
}

// embedText 嵌入单段文本，失败时返回nil
func (s *ScoreService) embedText(ctx context.Context, text string) []float64 {
	vectors, err := s.embedder.EmbedStrings(ctx, []string{text})
	if err != nil || len(vectors) == 0 {
		logger.Warn().Err(err).Msg("嵌入失败，语义分量降级为缺失")
		return nil
	}
	return vectors[0]
}

func (s *ScoreService) maxConcurrency() int {
	if s.cfg.MaxConcurrency > 0 {
		return s.cfg.MaxConcurrency
	}
	return 4
}

func (s *ScoreService) itemTimeout() time.Duration {
	if s.cfg.ItemTimeoutSeconds > 0 {
		return time.Duration(s.cfg.ItemTimeoutSeconds) * time.Second
	}
	return 60 * time.Second
}
