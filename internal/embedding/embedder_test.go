package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	vec := Normalize([]float64{3, 4})
	assert.InDelta(t, 0.6, vec[0], 1e-9)
	assert.InDelta(t, 0.8, vec[1], 1e-9)

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)

	// 零向量原样返回而非除零
	zero := Normalize([]float64{0, 0, 0})
	assert.Equal(t, []float64{0, 0, 0}, zero)

	assert.Empty(t, Normalize(nil))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float64{1, 0}, []float64{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float64{1, 0}, []float64{-1, 0}), 1e-9)

	// 维度不一致或空向量返回0
	assert.Zero(t, Cosine([]float64{1, 0}, []float64{1}))
	assert.Zero(t, Cosine(nil, nil))
}
