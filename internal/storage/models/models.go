package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Candidate 候选人简历的结构化存储
// 结构化字段由外部解析环节写入，核心只读
type Candidate struct {
	ResumeID             string         `gorm:"primaryKey;type:varchar(36)" json:"resume_id"`
	JobID                string         `gorm:"index;type:varchar(36)" json:"job_id"`
	CandidateName        string         `gorm:"type:varchar(255)" json:"candidate_name"`
	Skills               datatypes.JSON `gorm:"type:json" json:"skills"`
	ExperienceEntries    datatypes.JSON `gorm:"type:json" json:"experience_entries"`
	TotalExperienceYears float64        `json:"total_experience_years"`
	RawText              string         `gorm:"type:longtext" json:"raw_text"`
	Summary              string         `gorm:"type:text" json:"summary"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// TableName 指定表名
func (Candidate) TableName() string {
	return "candidates"
}

// Job 岗位要求
type Job struct {
	JobID                  string         `gorm:"primaryKey;type:varchar(36)" json:"job_id"`
	Title                  string         `gorm:"type:varchar(255)" json:"title"`
	RequiredSkills         datatypes.JSON `gorm:"type:json" json:"required_skills"`
	MinimumExperienceYears float64        `json:"minimum_experience_years"`
	DescriptionText        string         `gorm:"type:text" json:"description_text"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

// TableName 指定表名
func (Job) TableName() string {
	return "jobs"
}

// ResumeScore 一次打分的持久化记录
// 每个(岗位,简历)对保留最新一条；批量打分整体覆盖旧名次
type ResumeScore struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID           string    `gorm:"uniqueIndex:idx_job_resume;type:varchar(36)" json:"job_id"`
	ResumeID        string    `gorm:"uniqueIndex:idx_job_resume;type:varchar(36)" json:"resume_id"`
	SkillScore      float64   `json:"skill_score"`
	ExperienceScore float64   `json:"experience_score"`
	SemanticScore   *float64  `json:"semantic_score"`
	TotalScore      float64   `json:"total_score"`
	Rank            int       `gorm:"column:rank_position" json:"rank"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName 指定表名
func (ResumeScore) TableName() string {
	return "resume_scores"
}

// StringSliceToJSON 字符串切片转JSON列
func StringSliceToJSON(s []string) (datatypes.JSON, error) {
	if s == nil {
		s = []string{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

// JSONToStringSlice JSON列转字符串切片，空列返回nil
func JSONToStringSlice(j datatypes.JSON) ([]string, error) {
	if len(j) == 0 {
		return nil, nil
	}
	var s []string
	if err := json.Unmarshal(j, &s); err != nil {
		return nil, err
	}
	return s, nil
}
