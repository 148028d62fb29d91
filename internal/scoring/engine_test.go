package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-match-go/internal/config"
	"resume-match-go/internal/types"
)

func defaultEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(config.ScoringConfig{
		SkillWeight:        0.5,
		ExperienceWeight:   0.25,
		SemanticWeight:     0.25,
		SkillPartialWeight: 0.5,
	})
	require.NoError(t, err)
	return engine
}

func TestNewEngineInvalidWeights(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.ScoringConfig
	}{
		{"负权重", config.ScoringConfig{SkillWeight: -0.5, ExperienceWeight: 0.25, SemanticWeight: 0.25}},
		{"权重全零", config.ScoringConfig{}},
		{"部分匹配权重越界", config.ScoringConfig{SkillWeight: 1, SkillPartialWeight: 1.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewEngine(tc.cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidWeights))
		})
	}
}

func TestScoreSkillAndExperience(t *testing.T) {
	engine := defaultEngine(t)

	resume := types.ResumeProfile{
		ResumeID:             "r1",
		Skills:               []string{"Go", "Docker", "Python"},
		TotalExperienceYears: 5,
	}
	job := types.JobRequirement{
		JobID:                  "j1",
		RequiredSkills:         []string{"go", "python", "kubernetes"},
		MinimumExperienceYears: 3,
	}

	result, err := engine.Score(resume, job, nil, nil)
	require.NoError(t, err)

	// 3个要求技能中2个完全匹配
	assert.InDelta(t, 66.7, result.SkillScore, 0.01)
	// 经验超过最低要求，封顶100
	assert.InDelta(t, 100, result.ExperienceScore, 0.01)
	// 无嵌入则语义分量缺失
	assert.Nil(t, result.SemanticScore)
	// 总分按剩余权重归一: (66.7*0.5 + 100*0.25) / 0.75
	assert.InDelta(t, 77.8, result.TotalScore, 0.01)
}

func TestScoreWithSemantic(t *testing.T) {
	engine := defaultEngine(t)

	resume := types.ResumeProfile{
		ResumeID:             "r1",
		Skills:               []string{"go"},
		TotalExperienceYears: 3,
	}
	job := types.JobRequirement{
		RequiredSkills:         []string{"go"},
		MinimumExperienceYears: 3,
	}

	// 完全相同的向量，余弦为1
	result, err := engine.Score(resume, job, []float64{1, 0, 0}, []float64{1, 0, 0})
	require.NoError(t, err)

	require.NotNil(t, result.SemanticScore)
	assert.InDelta(t, 100, *result.SemanticScore, 0.01)
	assert.InDelta(t, 100, result.TotalScore, 0.01)
}

func TestScoreNegativeCosineClampedToZero(t *testing.T) {
	engine := defaultEngine(t)

	resume := types.ResumeProfile{ResumeID: "r1", Skills: []string{"go"}}
	job := types.JobRequirement{RequiredSkills: []string{"go"}}

	result, err := engine.Score(resume, job, []float64{1, 0}, []float64{-1, 0})
	require.NoError(t, err)
	require.NotNil(t, result.SemanticScore)
	assert.Zero(t, *result.SemanticScore)
}

func TestScorePartialSkillMatch(t *testing.T) {
	engine := defaultEngine(t)

	resume := types.ResumeProfile{
		ResumeID: "r1",
		Skills:   []string{"AWS Lambda"},
	}
	job := types.JobRequirement{RequiredSkills: []string{"aws"}}

	result, err := engine.Score(resume, job, nil, nil)
	require.NoError(t, err)
	// 子串匹配按部分权重0.5计入
	assert.InDelta(t, 50, result.SkillScore, 0.01)
}

func TestScoreSharedTokenMatch(t *testing.T) {
	engine := defaultEngine(t)

	resume := types.ResumeProfile{ResumeID: "r1", Skills: []string{"spring boot"}}
	job := types.JobRequirement{RequiredSkills: []string{"spring cloud"}}

	result, err := engine.Score(resume, job, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 50, result.SkillScore, 0.01)
}

func TestScoreEmptySkillSets(t *testing.T) {
	engine := defaultEngine(t)

	// 岗位无要求技能
	result, err := engine.Score(
		types.ResumeProfile{ResumeID: "r1", Skills: []string{"go"}},
		types.JobRequirement{},
		nil, nil)
	require.NoError(t, err)
	assert.Zero(t, result.SkillScore)

	// 简历无技能
	result, err = engine.Score(
		types.ResumeProfile{ResumeID: "r2"},
		types.JobRequirement{RequiredSkills: []string{"go"}},
		nil, nil)
	require.NoError(t, err)
	assert.Zero(t, result.SkillScore)
}

func TestScoreSkillNormalization(t *testing.T) {
	engine := defaultEngine(t)

	resume := types.ResumeProfile{
		ResumeID: "r1",
		Skills:   []string{"  GO ", "go", "Python"},
	}
	job := types.JobRequirement{RequiredSkills: []string{"Go", "python"}}

	result, err := engine.Score(resume, job, nil, nil)
	require.NoError(t, err)
	// 大小写与空白差异不影响匹配，重复技能去重
	assert.InDelta(t, 100, result.SkillScore, 0.01)
}

func TestExperienceScoreProportional(t *testing.T) {
	engine := defaultEngine(t)

	resume := types.ResumeProfile{ResumeID: "r1", TotalExperienceYears: 1.5}
	job := types.JobRequirement{MinimumExperienceYears: 3}

	result, err := engine.Score(resume, job, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 50, result.ExperienceScore, 0.01)

	// 无最低要求时满分
	result, err = engine.Score(resume, types.JobRequirement{}, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 100, result.ExperienceScore, 0.01)
}

func TestScoreNegativeYearsRejected(t *testing.T) {
	engine := defaultEngine(t)

	_, err := engine.Score(
		types.ResumeProfile{ResumeID: "r1", TotalExperienceYears: -1},
		types.JobRequirement{}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = engine.Score(
		types.ResumeProfile{ResumeID: "r1"},
		types.JobRequirement{MinimumExperienceYears: -2}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestScoreIdempotent(t *testing.T) {
	engine := defaultEngine(t)

	resume := types.ResumeProfile{
		ResumeID:             "r1",
		Skills:               []string{"go", "mysql", "redis"},
		TotalExperienceYears: 4,
	}
	job := types.JobRequirement{
		RequiredSkills:         []string{"go", "kafka"},
		MinimumExperienceYears: 5,
	}

	first, err := engine.Score(resume, job, []float64{0.3, 0.7}, []float64{0.5, 0.5})
	require.NoError(t, err)
	second, err := engine.Score(resume, job, []float64{0.3, 0.7}, []float64{0.5, 0.5})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRank(t *testing.T) {
	engine := defaultEngine(t)

	input := []types.ScoreResult{
		{ResumeID: "a", TotalScore: 70},
		{ResumeID: "b", TotalScore: 90},
		{ResumeID: "c", TotalScore: 70},
		{ResumeID: "d", TotalScore: 85},
	}
	ranked := engine.Rank(input)

	require.Len(t, ranked, 4)
	assert.Equal(t, "b", ranked[0].ResumeID)
	assert.Equal(t, "d", ranked[1].ResumeID)
	// 同分时保持输入顺序
	assert.Equal(t, "a", ranked[2].ResumeID)
	assert.Equal(t, "c", ranked[3].ResumeID)

	for i, r := range ranked {
		assert.Equal(t, i+1, r.Rank)
	}

	// 原切片未被修改
	assert.Equal(t, "a", input[0].ResumeID)
	assert.Zero(t, input[0].Rank)
}

func TestRankEmpty(t *testing.T) {
	engine := defaultEngine(t)
	assert.Empty(t, engine.Rank(nil))
}
