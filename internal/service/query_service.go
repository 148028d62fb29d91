package service

import (
	"context"
	"errors"
	"strings"

	"resume-match-go/internal/rag"
	"resume-match-go/internal/types"
)

// ErrInvalidHistory 对话历史中存在不完整的轮次
var ErrInvalidHistory = errors.New("对话历史存在不完整的轮次")

// QueryService 检索增强查询服务：校验输入后委托给管线
type QueryService struct {
	pipeline *rag.Pipeline
}

// NewQueryService 创建查询服务
func NewQueryService(pipeline *rag.Pipeline) *QueryService {
	return &QueryService{pipeline: pipeline}
}

// Query 回答一个关于简历池的自然语言问题
// history 中每一轮必须问答俱全；scopeID 为 types.ScopeAll 时检索全库
func (q *QueryService) Query(ctx context.Context, question, scopeID string, topK int, history []types.ConversationTurn) (types.RetrievalResult, error) {
	if strings.TrimSpace(question) == "" {
		return types.RetrievalResult{}, rag.ErrEmptyQuestion
	}
	for _, turn := range history {
		if !turn.Valid() {
			return types.RetrievalResult{}, ErrInvalidHistory
		}
	}

	return q.pipeline.Query(ctx, question, rag.Options{
		TopK:    topK,
		ScopeID: scopeID,
		History: history,
	})
}
