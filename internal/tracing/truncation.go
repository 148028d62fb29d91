package tracing

import "strings"

const (
	// DefaultMaxLength 属性值默认最大长度
	DefaultMaxLength = 200

	// MaxQueryLength 查询文本最大长度
	MaxQueryLength = 150

	// MaxChunkLength 简历分块内容最大长度
	MaxChunkLength = 100

	// MaxRedisLength Redis键最大长度
	MaxRedisLength = 100
)

// maskPIILookup 需要掩码处理的关键字
var maskPIILookup = map[string]bool{
	"email":   true,
	"phone":   true,
	"name":    true,
	"姓名":      true,
	"address": true,
	"地址":      true,
	"token":   true,
	"secret":  true,
}

// SafeAttributeValue 保证属性值不泄露敏感信息且长度受控
func SafeAttributeValue(name string, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for keyword := range maskPIILookup {
		if strings.Contains(lowerName, keyword) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 对个人敏感信息做掩码
func MaskPII(value string) string {
	if value == "" {
		return ""
	}

	runes := []rune(value)
	length := len(runes)

	if length <= 1 {
		return "*"
	}
	if length <= 4 {
		if length == 2 {
			return string(runes[0:1]) + "*"
		}
		return string(runes[0:1]) + strings.Repeat("*", length-2) + string(runes[length-1:])
	}

	// 较长的值（邮箱、电话）保留首尾各2个字符
	return string(runes[0:2]) + strings.Repeat("*", length-4) + string(runes[length-2:])
}

// TruncateString 截断字符串，保留首尾并用省略号连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}

	if maxLength <= 3 {
		return string(runes[:maxLength])
	}

	half := (maxLength - 3) / 2
	if half < 1 {
		half = 1
	}
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// SafeQueryText 安全处理用户查询文本
func SafeQueryText(query string) string {
	return TruncateString(query, MaxQueryLength)
}

// SafeChunkContent 安全处理简历分块内容
func SafeChunkContent(content string) string {
	return TruncateString(content, MaxChunkLength)
}

// SafeRedisKey 安全处理Redis键
func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisLength)
}
