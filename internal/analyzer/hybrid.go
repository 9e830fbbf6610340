package analyzer

import (
	"fmt"

	"api-analyzer/internal/ai"
)

// aiBatchSize 每次请求最多提交的字段数
const aiBatchSize = 50

// minAIConfidence 低于该置信度的 AI 结果不采用
const minAIConfidence = 0.5

// HybridInferrer 混合推断器（AI + 规则兜底）
type HybridInferrer struct {
	aiClient ai.Client
	fallback FieldTypeInferrer
	cache    map[string]FieldType
}

// NewHybridInferrer 创建混合推断器
func NewHybridInferrer(aiClient ai.Client, fallback FieldTypeInferrer) *HybridInferrer {
	if fallback == nil {
		fallback = NewRuleBasedInferrer()
	}
	return &HybridInferrer{
		aiClient: aiClient,
		fallback: fallback,
		cache:    make(map[string]FieldType),
	}
}

// Prepare 分批让 AI 分类字段，失败的批次留给规则推断
func (h *HybridInferrer) Prepare(fields []ai.FieldContext) {
	if h.aiClient == nil || len(fields) == 0 {
		return
	}

	fmt.Printf("🤖 AI 分类 %d 个字段...\n", len(fields))
	totalBatches := (len(fields) + aiBatchSize - 1) / aiBatchSize

	for i := 0; i < len(fields); i += aiBatchSize {
		end := i + aiBatchSize
		if end > len(fields) {
			end = len(fields)
		}

		batch := fields[i:end]
		batchNum := i/aiBatchSize + 1

		results, err := h.aiClient.ClassifyFields(batch)
		if err != nil {
			fmt.Printf("  ⚠️  第 %d/%d 批 AI 分类失败: %v，使用规则推断\n", batchNum, totalBatches, err)
			continue
		}

		for _, f := range batch {
			res, ok := results[f.Field]
			if !ok || res.Confidence < minAIConfidence {
				continue
			}
			if t, ok := ParseFieldType(res.Type); ok {
				h.cache[f.Field] = t
			}
		}
		fmt.Printf("  ✓ 第 %d/%d 批完成\n", batchNum, totalBatches)
	}
}

// InferType 优先使用 AI 结果
func (h *HybridInferrer) InferType(field string) FieldType {
	if t, ok := h.cache[field]; ok {
		return t
	}
	return h.fallback.InferType(field)
}
