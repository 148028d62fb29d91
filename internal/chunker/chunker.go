package chunker

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultChunkSize 默认分块大小（字符数）
	DefaultChunkSize = 1000
	// DefaultOverlap 默认相邻块重叠（字符数）
	DefaultOverlap = 100
)

// ErrInvalidChunkConfig 分块配置非法，属于启动期致命错误
var ErrInvalidChunkConfig = errors.New("分块配置非法")

// Piece 一个文本分块
// Index 在同一简历内唯一且从0递增，Start 为该块在原文中的字符偏移
type Piece struct {
	Index int
	Start int
	Text  string
}

// Chunker 按字符数滑动窗口切分简历文本
// 按字符而非词或句切分，保证与语言无关且token成本可控
type Chunker struct {
	chunkSize int
	overlap   int
}

// New 创建分块器；chunkSize 必须为正且严格大于 overlap
func New(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: 分块大小必须为正数，当前为 %d", ErrInvalidChunkConfig, chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: 重叠不能为负数，当前为 %d", ErrInvalidChunkConfig, overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("%w: 重叠(%d)不能大于等于分块大小(%d)", ErrInvalidChunkConfig, overlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Chunk 切分文本为有序的重叠窗口
// 每个后续块从前一块结尾向前 overlap 个字符处开始，保证边界不丢内容；
// 空文本或纯空白文本返回零个分块，不报错
func (c *Chunker) Chunk(text string) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	stride := c.chunkSize - c.overlap

	var pieces []Piece
	for start := 0; start < len(runes); start += stride {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		pieces = append(pieces, Piece{
			Index: len(pieces),
			Start: start,
			Text:  string(runes[start:end]),
		})

		if end == len(runes) {
			break
		}
	}

	return pieces
}
