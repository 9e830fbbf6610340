package analyzer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"api-analyzer/internal/ai"
)

// similarNameThreshold 命名变体提示的最低相似度
const similarNameThreshold = 0.8

// FieldOccurrence 某个字段在语料中的出现情况
type FieldOccurrence struct {
	Field        string    `json:"field_name"`
	Frequency    int       `json:"frequency"` // 出现的端点数（不按服务去重）
	Services     []string  `json:"services"`
	Endpoints    []string  `json:"endpoints"`
	Type         FieldType `json:"field_type"`
	CrossService bool      `json:"is_cross_service"`
	SimilarNames []string  `json:"similar_names,omitempty"`
}

// FieldReport 跨服务字段分析报告
type FieldReport struct {
	TotalUniqueFields  int               `json:"total_unique_fields"`
	CrossServiceFields int               `json:"cross_service_fields"`
	MostCommonFields   []FieldOccurrence `json:"most_common_fields"`
	FieldAnalysis      []FieldOccurrence `json:"field_analysis"`
}

// fieldPreparer 需要预先看到全部字段的推断器（如 AI 批量分类）
type fieldPreparer interface {
	Prepare(fields []ai.FieldContext)
}

// fieldAccumulator 累积单个字段的出现信息
type fieldAccumulator struct {
	frequency    int
	services     map[string]struct{}
	endpoints    map[string]struct{}
	serviceOrder []string
	endpointList []string
}

// AnalyzeCommonFieldsAcrossServices 统计所有端点的字段频次、来源服务与推断类型
func (a *RelationshipAnalyzer) AnalyzeCommonFieldsAcrossServices() (*FieldReport, error) {
	endpoints, err := a.store.ListEndpoints()
	if err != nil {
		return nil, fmt.Errorf("读取端点失败: %w", err)
	}
	services, err := a.store.ListServices()
	if err != nil {
		return nil, fmt.Errorf("读取服务失败: %w", err)
	}

	serviceNames := make(map[int64]string, len(services))
	for _, svc := range services {
		serviceNames[svc.ID] = svc.Name
	}

	acc := make(map[string]*fieldAccumulator)
	for _, ep := range endpoints {
		svcName, ok := serviceNames[ep.ServiceID]
		if !ok {
			svcName = fmt.Sprintf("service-%d", ep.ServiceID)
		}
		label := ep.Label()
		for field := range ExtractFieldsFromEndpoint(ep) {
			f, ok := acc[field]
			if !ok {
				f = &fieldAccumulator{
					services:  make(map[string]struct{}),
					endpoints: make(map[string]struct{}),
				}
				acc[field] = f
			}
			f.frequency++
			if _, seen := f.services[svcName]; !seen {
				f.services[svcName] = struct{}{}
				f.serviceOrder = append(f.serviceOrder, svcName)
			}
			if _, seen := f.endpoints[label]; !seen {
				f.endpoints[label] = struct{}{}
				f.endpointList = append(f.endpointList, label)
			}
		}
	}

	names := make([]string, 0, len(acc))
	for name := range acc {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		fi, fj := acc[names[i]].frequency, acc[names[j]].frequency
		if fi != fj {
			return fi > fj
		}
		return names[i] < names[j]
	})

	if p, ok := a.inferrer.(fieldPreparer); ok {
		contexts := make([]ai.FieldContext, 0, len(names))
		for _, name := range names {
			contexts = append(contexts, ai.FieldContext{
				Field:     name,
				Services:  acc[name].serviceOrder,
				Endpoints: acc[name].endpointList,
			})
		}
		p.Prepare(contexts)
	}

	report := &FieldReport{
		TotalUniqueFields: len(names),
		FieldAnalysis:     make([]FieldOccurrence, 0, len(names)),
	}
	for _, name := range names {
		f := acc[name]
		occ := FieldOccurrence{
			Field:        name,
			Frequency:    f.frequency,
			Services:     f.serviceOrder,
			Endpoints:    f.endpointList,
			Type:         a.inferrer.InferType(name),
			CrossService: len(f.serviceOrder) > 1,
		}
		if occ.CrossService {
			report.CrossServiceFields++
		}
		report.FieldAnalysis = append(report.FieldAnalysis, occ)
	}

	top := a.topFields
	if top > len(report.FieldAnalysis) {
		top = len(report.FieldAnalysis)
	}
	report.MostCommonFields = make([]FieldOccurrence, top)
	copy(report.MostCommonFields, report.FieldAnalysis[:top])
	for i := range report.MostCommonFields {
		report.MostCommonFields[i].SimilarNames = similarNames(report.MostCommonFields[i].Field, names)
	}
	return report, nil
}

// similarNames 找出拼写接近的其他字段，如 userId / user_id
func similarNames(field string, all []string) []string {
	var out []string
	for _, other := range all {
		if other == field {
			continue
		}
		if nameSimilarity(field, other) >= similarNameThreshold {
			out = append(out, other)
		}
	}
	return out
}

// nameSimilarity 忽略大小写与下划线/连字符后的 Levenshtein 相似度
func nameSimilarity(name1, name2 string) float64 {
	n1 := normalizeName(name1)
	n2 := normalizeName(name2)

	if n1 == n2 {
		return 1.0
	}

	maxLen := math.Max(float64(len([]rune(n1))), float64(len([]rune(n2))))
	if maxLen == 0 {
		return 0
	}

	distance := levenshtein.DistanceForStrings([]rune(n1), []rune(n2), levenshtein.DefaultOptions)
	return 1.0 - float64(distance)/maxLen
}

func normalizeName(name string) string {
	name = strings.ToLower(name)
	return strings.NewReplacer("_", "", "-", "").Replace(name)
}
