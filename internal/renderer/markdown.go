package renderer

import (
	"fmt"
	"sort"
	"strings"

	"api-analyzer/internal/analyzer"
	"api-analyzer/internal/graph"
	"api-analyzer/internal/store"
)

// Report 一次分析的全部结果
type Report struct {
	Services      []store.Service
	Endpoints     []store.Endpoint
	Relationships []store.Relationship
	Summary       *analyzer.AnalysisSummary
	Statistics    *analyzer.RelationshipStatistics
	Graph         *graph.View
	Fields        *analyzer.FieldReport
}

// LoadCatalog 从存储读取服务、端点和关系填充报告
func (r *Report) LoadCatalog(s store.Store) error {
	services, err := s.ListServices()
	if err != nil {
		return fmt.Errorf("读取服务失败: %w", err)
	}
	endpoints, err := s.ListEndpoints()
	if err != nil {
		return fmt.Errorf("读取端点失败: %w", err)
	}
	rels, err := s.ListRelationships()
	if err != nil {
		return fmt.Errorf("读取关系失败: %w", err)
	}
	r.Services = services
	r.Endpoints = endpoints
	r.Relationships = rels
	return nil
}

// ServiceNames 服务 ID 到名称
func (r *Report) ServiceNames() map[int64]string {
	names := make(map[int64]string, len(r.Services))
	for _, svc := range r.Services {
		names[svc.ID] = svc.Name
	}
	return names
}

// MarkdownRenderer Markdown 关系报告渲染器
type MarkdownRenderer struct {
	// MaxRelationships 每种类型最多列出的关系数
	MaxRelationships int
}

// NewMarkdownRenderer 创建渲染器
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{MaxRelationships: 50}
}

// Render 渲染为 Markdown 格式
func (m *MarkdownRenderer) Render(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# API 关系分析报告\n\n")
	m.renderOverview(&sb, r)
	m.renderGraph(&sb, r.Graph)
	m.renderRelationships(&sb, r)

	return sb.String()
}

func (m *MarkdownRenderer) renderOverview(sb *strings.Builder, r *Report) {
	sb.WriteString("## 概览\n\n")
	sb.WriteString("| 指标 | 数值 |\n")
	sb.WriteString("|------|------|\n")
	sb.WriteString(fmt.Sprintf("| 服务数 | %d |\n", len(r.Services)))
	sb.WriteString(fmt.Sprintf("| 端点数 | %d |\n", len(r.Endpoints)))
	if r.Summary != nil {
		sb.WriteString(fmt.Sprintf("| 比较的端点对 | %d |\n", r.Summary.PairsCompared))
	}
	sb.WriteString(fmt.Sprintf("| 关系数 | %d |\n", len(r.Relationships)))

	if s := r.Statistics; s != nil {
		sb.WriteString(fmt.Sprintf("| 关系覆盖率 | %.1f%% |\n", s.RelationshipCoverage))
		sb.WriteString(fmt.Sprintf("| 平均相似度 | %.3f |\n", s.AverageSimilarity))
		for _, t := range store.RelationshipTypes {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", t, s.RelationshipTypes[t]))
		}
	}
	sb.WriteString("\n")
}

func (m *MarkdownRenderer) renderGraph(sb *strings.Builder, v *graph.View) {
	if v == nil {
		return
	}

	sb.WriteString("## 关系图\n\n")
	sb.WriteString(fmt.Sprintf("- 节点: %d，边: %d\n", v.TotalNodes, v.TotalEdges))
	sb.WriteString(fmt.Sprintf("- 密度: %.4f\n", v.Density))
	sb.WriteString(fmt.Sprintf("- 连通分量: %d\n\n", v.ConnectedComponents))

	if len(v.MostConnected) == 0 {
		return
	}
	sb.WriteString("### 连接最多的端点\n\n")
	sb.WriteString("| 端点 | 度 | 中心度 |\n")
	sb.WriteString("|------|----|--------|\n")
	for _, c := range v.MostConnected {
		sb.WriteString(fmt.Sprintf("| `%s` | %d | %.3f |\n", c.Label, c.Degree, c.Centrality))
	}
	sb.WriteString("\n")
}

// renderRelationships 按类型分节，得分从高到低
func (m *MarkdownRenderer) renderRelationships(sb *strings.Builder, r *Report) {
	if len(r.Relationships) == 0 {
		sb.WriteString("未发现关系。\n")
		return
	}

	labels := make(map[int64]string, len(r.Endpoints))
	for _, ep := range r.Endpoints {
		labels[ep.ID] = ep.Label()
	}

	byType := make(map[store.RelationshipType][]store.Relationship)
	for _, rel := range r.Relationships {
		byType[rel.Type] = append(byType[rel.Type], rel)
	}

	sb.WriteString("## 关系明细\n\n")
	for _, t := range store.RelationshipTypes {
		rels := byType[t]
		if len(rels) == 0 {
			continue
		}
		sort.SliceStable(rels, func(i, j int) bool { return rels[i].Score > rels[j].Score })

		sb.WriteString(fmt.Sprintf("### %s (%d)\n\n", relationshipTitle(t), len(rels)))
		for i, rel := range rels {
			if m.MaxRelationships > 0 && i >= m.MaxRelationships {
				sb.WriteString(fmt.Sprintf("- ……其余 %d 条省略\n", len(rels)-i))
				break
			}
			sb.WriteString(fmt.Sprintf("- `%s` ↔ `%s` (得分: %.2f)",
				endpointLabel(labels, rel.SourceEndpointID), endpointLabel(labels, rel.TargetEndpointID), rel.Score))
			if dir, ok := rel.Metadata["flow_direction"].(string); ok {
				sb.WriteString(fmt.Sprintf(" 方向: %s", dir))
			}
			sb.WriteString("\n")
			if len(rel.CommonFields) > 0 {
				sb.WriteString(fmt.Sprintf("  - 公共字段: %s\n", strings.Join(rel.CommonFields, ", ")))
			}
		}
		sb.WriteString("\n")
	}
}

func relationshipTitle(t store.RelationshipType) string {
	switch t {
	case store.RelationshipCommonFields:
		return "公共字段"
	case store.RelationshipSimilarSchema:
		return "相似结构"
	case store.RelationshipDataFlow:
		return "数据流"
	}
	return string(t)
}

func endpointLabel(labels map[int64]string, id int64) string {
	if l, ok := labels[id]; ok {
		return l
	}
	return fmt.Sprintf("#%d", id)
}
