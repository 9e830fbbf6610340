package renderer

import (
	"fmt"
	"strings"

	"api-analyzer/internal/analyzer"
)

// EnhancedMarkdownRenderer 关系报告 + 跨服务字段字典
type EnhancedMarkdownRenderer struct {
	base *MarkdownRenderer
	// AIClassified 字段类型是否经过 AI 分类
	AIClassified bool
}

// NewEnhancedMarkdownRenderer 创建渲染器
func NewEnhancedMarkdownRenderer(aiClassified bool) *EnhancedMarkdownRenderer {
	return &EnhancedMarkdownRenderer{
		base:         NewMarkdownRenderer(),
		AIClassified: aiClassified,
	}
}

// Render 渲染为 Markdown 格式（包含字段字典）
func (m *EnhancedMarkdownRenderer) Render(r *Report) string {
	var sb strings.Builder

	sb.WriteString(m.base.Render(r))
	if r.Fields == nil {
		return sb.String()
	}

	sb.WriteString("\n## 跨服务字段\n\n")
	sb.WriteString(fmt.Sprintf("- 唯一字段: %d\n", r.Fields.TotalUniqueFields))
	sb.WriteString(fmt.Sprintf("- 跨服务字段: %d\n\n", r.Fields.CrossServiceFields))

	if len(r.Fields.MostCommonFields) == 0 {
		return sb.String()
	}

	sb.WriteString("| 字段 | 类型 | 频次 | 服务 | 跨服务 | 命名变体 |\n")
	sb.WriteString("|------|------|------|------|--------|----------|\n")
	for _, f := range r.Fields.MostCommonFields {
		cross := ""
		if f.CrossService {
			cross = "✓"
		}
		sb.WriteString(fmt.Sprintf("| `%s` | %s | %d | %s | %s | %s |\n",
			f.Field,
			fieldTypeLabel(f.Type),
			f.Frequency,
			strings.Join(f.Services, ", "),
			cross,
			strings.Join(f.SimilarNames, ", "),
		))
	}

	// 添加图例说明
	if m.AIClassified {
		sb.WriteString("\n## 图例说明\n\n")
		sb.WriteString("- 类型：AI 分类结果（置信度 ≥ 50%），其余字段按命名规则推断\n")
		sb.WriteString("- 命名变体：忽略大小写与下划线后拼写接近的字段，可能是同一概念\n")
	}

	return sb.String()
}

func fieldTypeLabel(t analyzer.FieldType) string {
	switch t {
	case analyzer.FieldTypeIdentifier:
		return "🔑标识"
	case analyzer.FieldTypeDatetime:
		return "🕒时间"
	case analyzer.FieldTypeName:
		return "名称"
	case analyzer.FieldTypeEmail:
		return "邮箱"
	case analyzer.FieldTypeStatus:
		return "状态"
	case analyzer.FieldTypeNumeric:
		return "数值"
	}
	return "未知"
}
