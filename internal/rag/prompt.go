package rag

import (
	"fmt"
	"strings"

	"resume-match-go/internal/types"
)

// systemInstruction 约束模型只依据给定的简历片段作答
const systemInstruction = `你是一名招聘助手，负责回答关于候选人简历的问题。
你只能依据下面提供的简历片段作答，不要编造片段之外的信息。
如果片段中没有足够的信息回答问题，请明确说明"根据现有简历无法回答该问题"。
回答时尽量指出信息来自哪位候选人。`

// emptyCorpusContext 检索无命中时塞给模型的显式说明
// 让模型自己告知用户没有匹配的候选人，而不是让管线直接失败
const emptyCorpusContext = "检索没有找到任何匹配的简历片段。请告知用户当前没有符合条件的候选人信息。"

// buildSystemPrompt 组装系统提示词：指令 + 按简历分组的上下文片段
func buildSystemPrompt(chunks []types.ScoredChunk) string {
	var sb strings.Builder
	sb.WriteString(systemInstruction)

	if len(chunks) == 0 {
		sb.WriteString("\n\n")
		sb.WriteString(emptyCorpusContext)
		return sb.String()
	}

	sb.WriteString("\n\n以下是检索到的简历片段：\n")

	for _, sc := range chunks {
		name := sc.Chunk.Metadata["candidate_name"]
		if name == "" {
			name = "未知候选人"
		}
		sb.WriteString(fmt.Sprintf("\n[简历 %s | 候选人 %s | 片段 %d]\n%s\n",
			sc.Chunk.SourceResumeID, name, sc.Chunk.Index, sc.Chunk.Text))
	}
	return sb.String()
}

// buildUserPrompt 组装用户消息：历史对话转录 + 当前问题
// 历史仅作为本次调用的上下文，管线自身不保存任何对话状态
func buildUserPrompt(question string, history []types.ConversationTurn) string {
	if len(history) == 0 {
		return question
	}

	var sb strings.Builder
	sb.WriteString("以下是此前的对话记录，供理解当前问题的指代：\n")
	for _, turn := range history {
		sb.WriteString("问：")
		sb.WriteString(turn.Question)
		sb.WriteString("\n答：")
		sb.WriteString(turn.Answer)
		sb.WriteString("\n")
	}
	sb.WriteString("\n当前问题：")
	sb.WriteString(question)
	return sb.String()
}
