package embedding

import (
	"context"
	"time"

	"resume-match-go/pkg/ratelimit"
)

// RateLimitedEmbedder Embedding调用的限流代理
type RateLimitedEmbedder struct {
	original    Embedder
	rateLimiter *ratelimit.TokenBucket
}

// NewRateLimitedEmbedder 包装一个Embedder，按QPM限流并对瞬时错误重试
func NewRateLimitedEmbedder(original Embedder, qpm int) *RateLimitedEmbedder {
	return &RateLimitedEmbedder{
		original:    original,
		rateLimiter: ratelimit.NewTokenBucket(qpm, qpm/2),
	}
}

// WithRetryPolicy 设置重试策略
func (re *RateLimitedEmbedder) WithRetryPolicy(waitTime time.Duration, maxRetries int) *RateLimitedEmbedder {
	re.rateLimiter.WithRetryPolicy(waitTime, maxRetries)
	return re
}

// EmbedStrings 限流+重试后转发
func (re *RateLimitedEmbedder) EmbedStrings(ctx context.Context, texts []string) ([][]float64, error) {
	var vectors [][]float64

	err := re.rateLimiter.RetryWithBackoff(ctx, func() error {
		var embErr error
		vectors, embErr = re.original.EmbedStrings(ctx, texts)
		return embErr
	})

	return vectors, err
}

// GetDimensions 返回底层Embedder的向量维度
func (re *RateLimitedEmbedder) GetDimensions() int {
	return re.original.GetDimensions()
}
