package types

// ScopeAll 表示检索范围为整个简历语料库（不按岗位过滤）
const ScopeAll = ""

// ExperienceEntry 一段工作经历
type ExperienceEntry struct {
	Title     string `json:"title"`      // 职位名称
	Company   string `json:"company"`    // 公司名称
	StartDate string `json:"start_date"` // 开始时间，如 "2021-03"
	EndDate   string `json:"end_date"`   // 结束时间，空串表示至今
}

// ResumeProfile 简历的结构化视图，由外部解析协作方产出
// 核心模块在一次打分/索引操作期间只读使用，不做任何修改
type ResumeProfile struct {
	ResumeID             string            `json:"resume_id"`
	JobID                string            `json:"job_id"` // 所属岗位，同时是分块的检索范围
	CandidateName        string            `json:"candidate_name"`
	Skills               []string          `json:"skills"`
	ExperienceEntries    []ExperienceEntry `json:"experience_entries"`
	TotalExperienceYears float64           `json:"total_experience_years"`
	RawText              string            `json:"raw_text"`
	Summary              string            `json:"summary"`
}

// JobRequirement 岗位要求，每次打分/查询调用时传入，只读
type JobRequirement struct {
	JobID                  string   `json:"job_id"`
	Title                  string   `json:"title"`
	RequiredSkills         []string `json:"required_skills"`
	MinimumExperienceYears float64  `json:"minimum_experience_years"`
	DescriptionText        string   `json:"description_text"`
}

// Chunk 简历文本的一个分块，索引与检索的基本单位
// 摄取时创建，入库后不可变；重新摄取时整体替换而非修改
type Chunk struct {
	ID             string            `json:"id"`
	SourceResumeID string            `json:"source_resume_id"`
	ScopeID        string            `json:"scope_id"` // 岗位ID，ScopeAll 表示全库
	Index          int               `json:"index"`    // 在同一简历内唯一且有序
	Text           string            `json:"text"`
	Embedding      []float64         `json:"embedding,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// ScoredChunk 带相似度的检索结果项
type ScoredChunk struct {
	Chunk      Chunk   `json:"chunk"`
	Similarity float64 `json:"similarity"` // 余弦相似度，[0,1]
}

// ScoreResult 一次打分的完整结果
// SemanticScore 为 nil 表示语义分量缺失（嵌入不可用），总分已按剩余分量重新归一
type ScoreResult struct {
	ResumeID        string   `json:"resume_id"`
	SkillScore      float64  `json:"skill_score"`      // [0,100]
	ExperienceScore float64  `json:"experience_score"` // [0,100]
	SemanticScore   *float64 `json:"semantic_score,omitempty"`
	TotalScore      float64  `json:"total_score"` // [0,100]
	Rank            int      `json:"rank,omitempty"` // 1起始；0表示未参与批量排名
}

// ConversationTurn 一轮完整的问答，由调用方在每次查询时传入
// 核心只读使用，从不保存
type ConversationTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Valid 判断该轮对话是否完整（问与答均非空）
func (t ConversationTurn) Valid() bool {
	return t.Question != "" && t.Answer != ""
}

// Source 回答引用的一条来源摘录
type Source struct {
	ResumeID       string  `json:"resume_id"`
	CandidateName  string  `json:"candidate_name,omitempty"`
	Excerpt        string  `json:"excerpt"`
	RelevanceScore float64 `json:"relevance_score"` // [0,1]
}

// RetrievalResult 检索增强查询的结果
type RetrievalResult struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}
