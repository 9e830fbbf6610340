package analyzer

import (
	"strings"

	"api-analyzer/internal/store"
)

const (
	// crudScore 同一资源上不同 CRUD 方法的数据流得分
	crudScore = 0.8
	// crudPathThreshold 判定为同一资源的路径相似度下限
	crudPathThreshold = 0.7

	FlowOneToTwo = "1_to_2"
	FlowTwoToOne = "2_to_1"
	FlowCRUD     = "crud_operations"
)

var crudMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true, "PATCH": true,
}

// Candidate 一对端点在某一关系类型上的评分结果
type Candidate struct {
	Type         store.RelationshipType `json:"type"`
	Score        float64                `json:"score"`
	CommonFields []string               `json:"common_fields,omitempty"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// ScorePair 计算两个端点间的候选关系，得分为 0 的类型不返回
func ScorePair(a, b store.Endpoint) map[store.RelationshipType]Candidate {
	result := make(map[store.RelationshipType]Candidate)
	if a.ID == b.ID {
		return result
	}

	if c, ok := scoreCommonFields(a, b); ok {
		result[store.RelationshipCommonFields] = c
	}
	if c, ok := scoreSimilarSchema(a, b); ok {
		result[store.RelationshipSimilarSchema] = c
	}
	if c, ok := scoreDataFlow(a, b); ok {
		result[store.RelationshipDataFlow] = c
	}
	return result
}

// scoreCommonFields 端点字段集合（含参数名）的 Jaccard 系数
func scoreCommonFields(a, b store.Endpoint) (Candidate, bool) {
	fieldsA := ExtractFieldsFromEndpoint(a)
	fieldsB := ExtractFieldsFromEndpoint(b)
	common := fieldsA.Intersect(fieldsB)
	if len(common) == 0 {
		return Candidate{}, false
	}

	return Candidate{
		Type:         store.RelationshipCommonFields,
		Score:        jaccard(fieldsA, fieldsB),
		CommonFields: common.Sorted(),
		Metadata: map[string]interface{}{
			"fields_1_count": len(fieldsA),
			"fields_2_count": len(fieldsB),
			"common_count":   len(common),
		},
	}, true
}

// scoreSimilarSchema 合并请求/响应属性后的结构相似度
func scoreSimilarSchema(a, b store.Endpoint) (Candidate, bool) {
	schemaA := combinedSchema(a)
	schemaB := combinedSchema(b)
	if len(schemaA["properties"].(map[string]interface{})) == 0 ||
		len(schemaB["properties"].(map[string]interface{})) == 0 {
		return Candidate{}, false
	}

	fieldsA := ExtractFields(schemaA, "")
	fieldsB := ExtractFields(schemaB, "")
	score := jaccard(fieldsA, fieldsB)
	if score == 0 {
		return Candidate{}, false
	}

	return Candidate{
		Type:  store.RelationshipSimilarSchema,
		Score: score,
		Metadata: map[string]interface{}{
			"fields_1_count":      len(fieldsA),
			"fields_2_count":      len(fieldsB),
			"common_count":        len(fieldsA.Intersect(fieldsB)),
			"schema_1_complexity": SchemaComplexity(schemaA),
			"schema_2_complexity": SchemaComplexity(schemaB),
		},
	}, true
}

// combinedSchema 请求属性在前，响应属性同名覆盖
func combinedSchema(ep store.Endpoint) map[string]interface{} {
	merged := make(map[string]interface{})
	for _, schema := range []map[string]interface{}{ep.RequestSchema, ep.ResponseSchema} {
		props, ok := schema["properties"].(map[string]interface{})
		if !ok {
			continue
		}
		for name, prop := range props {
			merged[name] = prop
		}
	}
	return map[string]interface{}{"properties": merged}
}

// scoreDataFlow 取两个方向的输入兼容度与 CRUD 得分中的最大者
func scoreDataFlow(a, b store.Endpoint) (Candidate, bool) {
	oneToTwo := compatibility(a.ResponseSchema, b.RequestSchema)
	twoToOne := compatibility(b.ResponseSchema, a.RequestSchema)

	pathSim := PathSimilarity(CleanPath(a.Path), CleanPath(b.Path))
	crud := 0.0
	methodA, methodB := strings.ToUpper(a.Method), strings.ToUpper(b.Method)
	if pathSim >= crudPathThreshold && crudMethods[methodA] && crudMethods[methodB] && methodA != methodB {
		crud = crudScore
	}

	score, direction := oneToTwo, FlowOneToTwo
	if twoToOne > score {
		score, direction = twoToOne, FlowTwoToOne
	}
	if crud > score {
		score, direction = crud, FlowCRUD
	}
	if score == 0 {
		return Candidate{}, false
	}

	return Candidate{
		Type:  store.RelationshipDataFlow,
		Score: score,
		Metadata: map[string]interface{}{
			"flow_direction":       direction,
			"path_similarity":      pathSim,
			"compatibility_1_to_2": oneToTwo,
			"compatibility_2_to_1": twoToOne,
			"crud_score":           crud,
		},
	}, true
}

// compatibility 输出字段覆盖输入字段的比例
func compatibility(output, input map[string]interface{}) float64 {
	inputFields := ExtractFields(input, "")
	if len(inputFields) == 0 {
		return 0
	}
	outputFields := ExtractFields(output, "")
	return float64(len(outputFields.Intersect(inputFields))) / float64(len(inputFields))
}

func jaccard(a, b FieldSet) float64 {
	union := a.UnionSize(b)
	if union == 0 {
		return 0
	}
	return float64(len(a.Intersect(b))) / float64(union)
}
