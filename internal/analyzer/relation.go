package analyzer

import (
	"fmt"
	"time"

	"api-analyzer/internal/graph"
	"api-analyzer/internal/store"
)

const (
	// DefaultSimilarityThreshold 关系保留的最低得分
	DefaultSimilarityThreshold = 0.3
	// DefaultMostConnected 图视图返回的最高中心度节点数
	DefaultMostConnected = 5
	// DefaultTopFields 字段报告高亮的字段数
	DefaultTopFields = 20
)

// ProgressFunc 进度回调，done/total 为已比较/总端点对数
type ProgressFunc func(done, total int)

// RelationshipAnalyzer 端点关系分析器
type RelationshipAnalyzer struct {
	store         store.Store
	threshold     float64
	mostConnected int
	topFields     int
	inferrer      FieldTypeInferrer
	progress      ProgressFunc
	now           func() time.Time
}

// Option 分析器选项
type Option func(*RelationshipAnalyzer)

// WithThreshold 设置相似度阈值
func WithThreshold(threshold float64) Option {
	return func(a *RelationshipAnalyzer) { a.threshold = threshold }
}

// WithFieldTypeInferrer 替换字段类型推断策略
func WithFieldTypeInferrer(inferrer FieldTypeInferrer) Option {
	return func(a *RelationshipAnalyzer) { a.inferrer = inferrer }
}

// WithProgress 设置进度回调
func WithProgress(fn ProgressFunc) Option {
	return func(a *RelationshipAnalyzer) { a.progress = fn }
}

// WithMostConnected 设置图视图返回的节点数，负数按 0 处理
func WithMostConnected(n int) Option {
	return func(a *RelationshipAnalyzer) { a.mostConnected = max(n, 0) }
}

// WithTopFields 设置字段报告高亮数，负数按 0 处理
func WithTopFields(n int) Option {
	return func(a *RelationshipAnalyzer) { a.topFields = max(n, 0) }
}

// NewRelationshipAnalyzer 创建分析器
func NewRelationshipAnalyzer(s store.Store, opts ...Option) *RelationshipAnalyzer {
	a := &RelationshipAnalyzer{
		store:         s,
		threshold:     DefaultSimilarityThreshold,
		mostConnected: DefaultMostConnected,
		topFields:     DefaultTopFields,
		inferrer:      NewRuleBasedInferrer(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Threshold 当前阈值
func (a *RelationshipAnalyzer) Threshold() float64 {
	return a.threshold
}

// AnalysisSummary 一次全量分析的统计
type AnalysisSummary struct {
	TotalEndpoints       int `json:"total_endpoints"`
	PairsCompared        int `json:"pairs_compared"`
	RelationshipsCreated int `json:"relationships_created"`
	CommonFieldsFound    int `json:"common_fields_found"`
	SimilarSchemas       int `json:"similar_schemas"`
	DataFlowPatterns     int `json:"data_flow_patterns"`
}

// AnalyzeAll 从存储读取全部端点并重新计算关系
func (a *RelationshipAnalyzer) AnalyzeAll() (*AnalysisSummary, error) {
	endpoints, err := a.store.ListEndpoints()
	if err != nil {
		return nil, fmt.Errorf("读取端点失败: %w", err)
	}
	return a.Analyze(endpoints)
}

// Analyze 两两比较端点，关系整体替换写入存储
func (a *RelationshipAnalyzer) Analyze(endpoints []store.Endpoint) (*AnalysisSummary, error) {
	n := len(endpoints)
	totalPairs := n * (n - 1) / 2
	summary := &AnalysisSummary{TotalEndpoints: n}

	fmt.Printf("  正在分析 %d 个端点的关系（%d 对）...\n", n, totalPairs)

	now := a.now()
	var staged []store.Relationship
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			summary.PairsCompared++
			if a.progress != nil {
				a.progress(summary.PairsCompared, totalPairs)
			} else if summary.PairsCompared%1000 == 0 {
				progress := float64(summary.PairsCompared) / float64(totalPairs) * 100
				fmt.Printf("  进度: %.1f%% (%d/%d)\n", progress, summary.PairsCompared, totalPairs)
			}

			candidates := ScorePair(endpoints[i], endpoints[j])
			for _, relType := range store.RelationshipTypes {
				c, ok := candidates[relType]
				if !ok || c.Score < a.threshold {
					continue
				}
				staged = append(staged, store.Relationship{
					SourceEndpointID: endpoints[i].ID,
					TargetEndpointID: endpoints[j].ID,
					Type:             c.Type,
					Score:            c.Score,
					CommonFields:     c.CommonFields,
					Metadata:         c.Metadata,
					CreatedAt:        now,
				})
				switch relType {
				case store.RelationshipCommonFields:
					summary.CommonFieldsFound++
				case store.RelationshipSimilarSchema:
					summary.SimilarSchemas++
				case store.RelationshipDataFlow:
					summary.DataFlowPatterns++
				}
			}
		}
	}

	saved, err := a.store.ReplaceRelationships(staged)
	if err != nil {
		return nil, fmt.Errorf("保存关系失败: %w", err)
	}
	summary.RelationshipsCreated = len(saved)

	fmt.Printf("  完成！共发现 %d 个关系\n", summary.RelationshipsCreated)
	return summary, nil
}

// BuildRelationshipGraph 端点为节点、关系为边，计算密度、连通分量与中心度
func (a *RelationshipAnalyzer) BuildRelationshipGraph() (*graph.View, error) {
	endpoints, err := a.store.ListEndpoints()
	if err != nil {
		return nil, fmt.Errorf("读取端点失败: %w", err)
	}
	rels, err := a.store.ListRelationships()
	if err != nil {
		return nil, fmt.Errorf("读取关系失败: %w", err)
	}

	g := graph.NewRelationGraph()
	for _, ep := range endpoints {
		g.AddNode(&graph.Node{
			ID:        ep.ID,
			Label:     ep.Label(),
			ServiceID: ep.ServiceID,
		})
	}
	for _, rel := range rels {
		edge := &graph.Edge{
			ID:           rel.ID,
			Source:       rel.SourceEndpointID,
			Target:       rel.TargetEndpointID,
			Type:         string(rel.Type),
			Score:        rel.Score,
			CommonFields: rel.CommonFields,
		}
		if rel.Type == store.RelationshipDataFlow {
			edge.Direction, _ = rel.Metadata["flow_direction"].(string)
		}
		g.AddEdge(edge)
	}
	return g.View(a.mostConnected), nil
}
