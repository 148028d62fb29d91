package scoring

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	// ErrInvalidWeights 权重配置非法，属于启动期致命错误
	ErrInvalidWeights = errors.New("打分权重配置非法")
	// ErrInvalidInput 打分输入畸形（如负的经验年限），在计算前拒绝
	ErrInvalidInput = errors.New("打分输入非法")
)

// ScoringError 包含详细信息的打分错误
type ScoringError struct {
	ResumeID string
	Op       string
	BaseErr  error
	Detail   string
}

func (e *ScoringError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 简历:%s): %s", e.BaseErr, e.Op, e.ResumeID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 简历:%s)", e.BaseErr, e.Op, e.ResumeID)
}

func (e *ScoringError) Unwrap() error {
	return e.BaseErr
}

// Is 支持 errors.Is 比较
func (e *ScoringError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// NewInvalidInputError 构造输入非法错误
func NewInvalidInputError(resumeID, detail string) error {
	return &ScoringError{
		ResumeID: resumeID,
		Op:       "validate",
		BaseErr:  ErrInvalidInput,
		Detail:   detail,
	}
}
