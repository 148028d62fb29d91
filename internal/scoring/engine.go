package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"resume-match-go/internal/config"
	"resume-match-go/internal/embedding"
	"resume-match-go/internal/types"
)

// Engine 候选人打分引擎
// 将技能匹配、经验匹配、语义相似度三个信号合成为单一分数；
// 引擎本身无状态且为纯计算，不做任何I/O
type Engine struct {
	skillWeight      float64
	experienceWeight float64
	semanticWeight   float64
	partialWeight    float64 // 部分匹配计入的比例，默认0.5
}

// NewEngine 创建打分引擎，权重非法时返回 ErrInvalidWeights
func NewEngine(cfg config.ScoringConfig) (*Engine, error) {
	if cfg.SkillWeight < 0 || cfg.ExperienceWeight < 0 || cfg.SemanticWeight < 0 {
		return nil, fmt.Errorf("%w: 权重不能为负数", ErrInvalidWeights)
	}
	if cfg.SkillWeight+cfg.ExperienceWeight+cfg.SemanticWeight <= 0 {
		return nil, fmt.Errorf("%w: 权重之和必须大于0", ErrInvalidWeights)
	}
	partial := cfg.SkillPartialWeight
	if partial < 0 || partial > 1 {
		return nil, fmt.Errorf("%w: 部分匹配权重必须在[0,1]内，当前为 %v", ErrInvalidWeights, partial)
	}
	if partial == 0 {
		partial = 0.5
	}

	return &Engine{
		skillWeight:      cfg.SkillWeight,
		experienceWeight: cfg.ExperienceWeight,
		semanticWeight:   cfg.SemanticWeight,
		partialWeight:    partial,
	}, nil
}

// Score 计算一份简历相对一个岗位的各分量分数与总分
// 嵌入向量任一缺失时语义分量标记为缺失，总分按剩余分量的权重重新归一，
// 保证可达上限始终是100；数据缺失是合法的零信号结果，不是错误
func (e *Engine) Score(resume types.ResumeProfile, job types.JobRequirement, resumeEmbedding, jobEmbedding []float64) (types.ScoreResult, error) {
	if resume.TotalExperienceYears < 0 {
		return types.ScoreResult{}, NewInvalidInputError(resume.ResumeID,
			fmt.Sprintf("经验年限不能为负数: %v", resume.TotalExperienceYears))
	}
	if job.MinimumExperienceYears < 0 {
		return types.ScoreResult{}, NewInvalidInputError(resume.ResumeID,
			fmt.Sprintf("岗位最低经验年限不能为负数: %v", job.MinimumExperienceYears))
	}

	result := types.ScoreResult{ResumeID: resume.ResumeID}

	result.SkillScore = round1(e.skillScore(resume.Skills, job.RequiredSkills))
	result.ExperienceScore = round1(e.experienceScore(resume.TotalExperienceYears, job.MinimumExperienceYears))

	// 语义分量：两侧嵌入都存在时才计算
	var semantic *float64
	if len(resumeEmbedding) > 0 && len(jobEmbedding) > 0 {
		cos := embedding.Cosine(resumeEmbedding, jobEmbedding)
		// 负相似度没有自然的0-100映射，截断为0
		s := round1(math.Min(100, 100*math.Max(0, cos)))
		semantic = &s
	}
	result.SemanticScore = semantic

	result.TotalScore = round1(e.total(result.SkillScore, result.ExperienceScore, semantic))
	return result, nil
}

// skillScore 技能匹配分
// 完全匹配计1，部分匹配（子串或共享词）计 partialWeight，除以岗位要求技能数
func (e *Engine) skillScore(resumeSkills, requiredSkills []string) float64 {
	required := normalizeSkillSet(requiredSkills)
	candidate := normalizeSkillSet(resumeSkills)

	if len(required) == 0 || len(candidate) == 0 {
		return 0
	}

	candidateSet := make(map[string]bool, len(candidate))
	for _, s := range candidate {
		candidateSet[s] = true
	}

	var matches float64
	for _, req := range required {
		if candidateSet[req] {
			matches += 1
			continue
		}
		for _, cand := range candidate {
			if partialSkillMatch(req, cand) {
				matches += e.partialWeight
				break
			}
		}
	}

	score := 100 * matches / math.Max(1, float64(len(required)))
	return math.Min(score, 100)
}

// experienceScore 经验匹配分
// 岗位无最低要求时满分；超出要求不额外加分（上限100）
func (e *Engine) experienceScore(years, minimumYears float64) float64 {
	if minimumYears <= 0 {
		return 100
	}
	return math.Min(100, 100*years/minimumYears)
}

// total 按存在的分量重新归一权重后加权求和
func (e *Engine) total(skill, experience float64, semantic *float64) float64 {
	weightSum := e.skillWeight + e.experienceWeight
	total := skill*e.skillWeight + experience*e.experienceWeight
	if semantic != nil {
		weightSum += e.semanticWeight
		total += *semantic * e.semanticWeight
	}
	if weightSum == 0 {
		return 0
	}
	return total / weightSum
}

// Rank 对同一岗位的一批打分结果排名
// 按总分降序，分数相同时保持输入顺序（调用方按简历创建顺序传入）；
// 名次从1开始，原切片不被修改
func (e *Engine) Rank(results []types.ScoreResult) []types.ScoreResult {
	ranked := make([]types.ScoreResult, len(results))
	copy(ranked, results)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalScore > ranked[j].TotalScore
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// normalizeSkillSet 将技能归一化为小写去空白的规范形式并去重，保持原有顺序
func normalizeSkillSet(skills []string) []string {
	seen := make(map[string]bool, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		norm := strings.ToLower(strings.TrimSpace(s))
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return out
}

// partialSkillMatch 判断两个已归一化技能是否部分匹配
// 一方是另一方的子串，或二者共享一个完整的词，都算部分匹配；
// 这让"AWS Lambda"与"AWS"互相加分而不与完全匹配混淆
func partialSkillMatch(a, b string) bool {
	if a == b {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}

	tokensA := tokenizeSkill(a)
	tokensB := make(map[string]bool)
	for _, t := range tokenizeSkill(b) {
		tokensB[t] = true
	}
	for _, t := range tokensA {
		if tokensB[t] {
			return true
		}
	}
	return false
}

// tokenizeSkill 按非字母数字字符切词
func tokenizeSkill(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !isAlphanumeric(r)
	})
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		(r >= 0x4e00 && r <= 0x9fff) // 汉字也视为词的一部分
}

// round1 四舍五入到一位小数，对外展示的分数统一用这个精度
func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
