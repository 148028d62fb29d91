package scoring

import (
	"fmt"
	"strings"

	"resume-match-go/internal/types"
)

const (
	// 语义打分时简历摘要文本的最大长度（字符）
	maxResumeSummaryChars = 500
	// 语义打分时岗位文本的最大长度（字符）
	maxJobTextChars = 1000
	// 摘要中最多列出的技能数
	maxSummarySkills = 20
)

// BuildResumeSummary 构造用于语义嵌入的简历摘要文本
// 取技能列表、最近一段经历和个人总结，长度受控以约束token成本
func BuildResumeSummary(resume types.ResumeProfile) string {
	var parts []string

	if len(resume.Skills) > 0 {
		skills := resume.Skills
		if len(skills) > maxSummarySkills {
			skills = skills[:maxSummarySkills]
		}
		parts = append(parts, "技能: "+strings.Join(skills, ", "))
	}

	if len(resume.ExperienceEntries) > 0 {
		latest := resume.ExperienceEntries[0]
		parts = append(parts, fmt.Sprintf("最近职位: %s @ %s", latest.Title, latest.Company))
	}

	if resume.Summary != "" {
		parts = append(parts, resume.Summary)
	}

	return truncateRunes(strings.Join(parts, " "), maxResumeSummaryChars)
}

// BuildJobText 构造用于语义嵌入的岗位文本
func BuildJobText(job types.JobRequirement) string {
	var parts []string
	if job.Title != "" {
		parts = append(parts, job.Title)
	}
	if len(job.RequiredSkills) > 0 {
		parts = append(parts, "要求技能: "+strings.Join(job.RequiredSkills, ", "))
	}
	if job.DescriptionText != "" {
		parts = append(parts, job.DescriptionText)
	}
	return truncateRunes(strings.Join(parts, " "), maxJobTextChars)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
