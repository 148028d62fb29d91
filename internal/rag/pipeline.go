package rag

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-match-go/internal/config"
	"resume-match-go/internal/embedding"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"
)

// Options 单次查询的可选参数
type Options struct {
	// TopK 检索的分块数，<=0 时取配置默认值
	TopK int

	// ScopeID 限定检索某个岗位下的简历，types.ScopeAll 表示全库
	ScopeID string

	// History 此前的问答轮次，只读，仅用于本次调用的提示词
	History []types.ConversationTurn
}

// Pipeline 检索增强查询管线：嵌入问题、检索分块、组装上下文、生成回答
// 管线完全无状态，对话历史由调用方每次传入
type Pipeline struct {
	embedder  embedding.Embedder
	index     storage.VectorIndex
	chatModel model.ToolCallingChatModel
	cfg       config.RAGConfig
}

// NewPipeline 创建查询管线
func NewPipeline(embedder embedding.Embedder, index storage.VectorIndex, chatModel model.ToolCallingChatModel, cfg config.RAGConfig) *Pipeline {
	return &Pipeline{
		embedder:  embedder,
		index:     index,
		chatModel: chatModel,
		cfg:       cfg,
	}
}

// Query 执行一次检索增强查询
// 检索无命中时仍调用生成模型并显式告知上下文为空，由模型告知用户无匹配；
// 生成失败但检索成功时，返回的错误中仍附带已检索到的来源
func (p *Pipeline) Query(ctx context.Context, question string, opts Options) (types.RetrievalResult, error) {
	if strings.TrimSpace(question) == "" {
		return types.RetrievalResult{}, ErrEmptyQuestion
	}

	tracer := otel.Tracer("rag-pipeline")
	ctx, span := tracer.Start(ctx, "rag.query", trace.WithAttributes(
		attribute.String("query.text", tracing.SafeQueryText(question)),
		attribute.String("query.scope_id", opts.ScopeID),
	))
	defer span.End()

	topK := opts.TopK
	if topK <= 0 {
		topK = p.cfg.TopK
	}

	// 嵌入问题，失败时退避后重试一次
	queryVector, err := p.embedQuestion(ctx, question)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeProvider)
		return types.RetrievalResult{}, &PipelineError{Op: "embed", BaseErr: ErrProviderUnavailable, Detail: err.Error()}
	}

	// 检索
	hits, err := p.index.Query(ctx, queryVector, topK, opts.ScopeID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return types.RetrievalResult{}, &PipelineError{Op: "retrieve", BaseErr: err}
	}
	span.SetAttributes(attribute.Int("retrieval.hit_count", len(hits)))

	if len(hits) == 0 {
		logger.Info().Str("scope_id", opts.ScopeID).Msg("检索无命中，让模型基于空上下文作答")
	}

	// 上下文长度约束下保留相似度最高的分块
	kept := p.truncateContext(hits)
	sources := p.buildSources(kept)

	// 生成回答
	answer, err := p.generate(ctx, question, kept, opts.History)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeProvider)
		return types.RetrievalResult{Sources: sources}, &PipelineError{Op: "generate", BaseErr: ErrProviderUnavailable, Detail: err.Error()}
	}
	if strings.TrimSpace(answer) == "" {
		return types.RetrievalResult{Sources: sources}, &PipelineError{Op: "generate", BaseErr: ErrGenerationFailed, Detail: "模型返回空内容"}
	}

	return types.RetrievalResult{Answer: answer, Sources: sources}, nil
}

// embedQuestion 嵌入问题文本，单次失败后等待退避再试一次
func (p *Pipeline) embedQuestion(ctx context.Context, question string) ([]float64, error) {
	vectors, err := p.embedder.EmbedStrings(ctx, []string{question})
	if err != nil {
		logger.Warn().Err(err).Msg("问题嵌入失败，准备重试")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.cfg.RetryBackoff):
		}
		vectors, err = p.embedder.EmbedStrings(ctx, []string{question})
		if err != nil {
			return nil, err
		}
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, ErrProviderUnavailable
	}
	return embedding.Normalize(vectors[0]), nil
}

// truncateContext 在MaxContextChars约束内保留相似度最高的分块
// 输入已按相似度降序，超限时从尾部丢弃
func (p *Pipeline) truncateContext(hits []types.ScoredChunk) []types.ScoredChunk {
	if p.cfg.MaxContextChars <= 0 {
		return hits
	}

	kept := make([]types.ScoredChunk, 0, len(hits))
	total := 0
	for _, h := range hits {
		n := len([]rune(h.Chunk.Text))
		if total+n > p.cfg.MaxContextChars && len(kept) > 0 {
			break
		}
		kept = append(kept, h)
		total += n
	}
	return kept
}

// buildSources 把保留的分块转为来源摘录
func (p *Pipeline) buildSources(kept []types.ScoredChunk) []types.Source {
	sources := make([]types.Source, 0, len(kept))
	for _, sc := range kept {
		excerpt := sc.Chunk.Text
		if runes := []rune(excerpt); p.cfg.ExcerptChars > 0 && len(runes) > p.cfg.ExcerptChars {
			excerpt = string(runes[:p.cfg.ExcerptChars])
		}
		sources = append(sources, types.Source{
			ResumeID:       sc.Chunk.SourceResumeID,
			CandidateName:  sc.Chunk.Metadata["candidate_name"],
			Excerpt:        excerpt,
			RelevanceScore: sc.Similarity,
		})
	}
	return sources
}

// generate 调用对话模型，传输层失败时退避后重试一次
func (p *Pipeline) generate(ctx context.Context, question string, kept []types.ScoredChunk, history []types.ConversationTurn) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(buildSystemPrompt(kept)),
		schema.UserMessage(buildUserPrompt(question, history)),
	}
	opts := []model.Option{
		model.WithTemperature(p.cfg.Temperature),
		model.WithMaxTokens(p.cfg.MaxTokens),
	}

	resp, err := p.chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		logger.Warn().Err(err).Msg("回答生成失败，准备重试")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.cfg.RetryBackoff):
		}
		resp, err = p.chatModel.Generate(ctx, messages, opts...)
		if err != nil {
			return "", err
		}
	}
	return resp.Content, nil
}
