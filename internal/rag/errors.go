package rag

import (
	"errors"
	"fmt"
)

// 检索增强查询的哨兵错误
var (
	// ErrEmptyQuestion 问题文本为空
	ErrEmptyQuestion = errors.New("问题文本不能为空")

	// ErrProviderUnavailable 远程模型服务不可用（重试后仍失败）
	ErrProviderUnavailable = errors.New("模型服务不可用")

	// ErrGenerationFailed 生成阶段失败（模型返回空内容等）
	ErrGenerationFailed = errors.New("回答生成失败")
)

// PipelineError 带阶段信息的查询错误
type PipelineError struct {
	Op      string // 失败的阶段: embed / retrieve / generate
	BaseErr error
	Detail  string
}

func (e *PipelineError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("查询失败 [%s]: %v (%s)", e.Op, e.BaseErr, e.Detail)
	}
	return fmt.Sprintf("查询失败 [%s]: %v", e.Op, e.BaseErr)
}

func (e *PipelineError) Unwrap() error {
	return e.BaseErr
}

func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}
