package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvalidConfig(t *testing.T) {
	cases := []struct {
		name      string
		chunkSize int
		overlap   int
	}{
		{"零分块大小", 0, 0},
		{"负分块大小", -1, 0},
		{"负重叠", 100, -1},
		{"重叠等于分块大小", 100, 100},
		{"重叠大于分块大小", 100, 150},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.chunkSize, tc.overlap)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidChunkConfig))
		})
	}
}

func TestChunkEmptyText(t *testing.T) {
	c, err := New(1000, 100)
	require.NoError(t, err)

	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("   \n\t  "))
}

func TestChunkShortText(t *testing.T) {
	c, err := New(1000, 100)
	require.NoError(t, err)

	pieces := c.Chunk("短文本")
	require.Len(t, pieces, 1)
	assert.Equal(t, 0, pieces[0].Index)
	assert.Equal(t, 0, pieces[0].Start)
	assert.Equal(t, "短文本", pieces[0].Text)
}

func TestChunkOverlappingWindows(t *testing.T) {
	c, err := New(1000, 100)
	require.NoError(t, err)

	text := strings.Repeat("a", 2150)
	pieces := c.Chunk(text)

	// 步长900: 起点 0 / 900 / 1800
	require.Len(t, pieces, 3)
	assert.Equal(t, 0, pieces[0].Start)
	assert.Equal(t, 900, pieces[1].Start)
	assert.Equal(t, 1800, pieces[2].Start)

	assert.Len(t, []rune(pieces[0].Text), 1000)
	assert.Len(t, []rune(pieces[1].Text), 1000)
	assert.Len(t, []rune(pieces[2].Text), 350)

	for i, p := range pieces {
		assert.Equal(t, i, p.Index)
	}
}

func TestChunkCoversAllContent(t *testing.T) {
	c, err := New(50, 10)
	require.NoError(t, err)

	text := strings.Repeat("项目经历：负责核心交易系统的设计与实现。", 20)
	runes := []rune(text)
	pieces := c.Chunk(text)
	require.NotEmpty(t, pieces)

	// 每个分块都与原文对应位置一致
	for _, p := range pieces {
		end := p.Start + len([]rune(p.Text))
		assert.Equal(t, string(runes[p.Start:end]), p.Text)
	}

	// 相邻分块重叠10个字符
	for i := 1; i < len(pieces); i++ {
		assert.Equal(t, pieces[i-1].Start+40, pieces[i].Start)
	}

	// 最后一块触及文本末尾
	last := pieces[len(pieces)-1]
	assert.Equal(t, len(runes), last.Start+len([]rune(last.Text)))
}

func TestChunkExactBoundary(t *testing.T) {
	c, err := New(100, 20)
	require.NoError(t, err)

	// 文本长度恰好等于分块大小时只产生一个分块
	pieces := c.Chunk(strings.Repeat("b", 100))
	require.Len(t, pieces, 1)
	assert.Len(t, pieces[0].Text, 100)
}
