package analyzer

import (
	"fmt"
	"sort"

	"api-analyzer/internal/store"
)

// DefaultListLimit 关系列表默认分页大小
const DefaultListLimit = 100

// RelationshipStatistics 关系总体统计
type RelationshipStatistics struct {
	TotalRelationships int `json:"total_relationships"`
	TotalEndpoints     int `json:"total_endpoints"`
	TotalServices      int `json:"total_services"`

	// RelationshipCoverage 关系数 / 端点对数 * 100；同一对可有多种类型，可能超过 100
	RelationshipCoverage   float64                        `json:"relationship_coverage"`
	AverageSimilarity      float64                        `json:"average_similarity_score"`
	RelationshipTypes      map[store.RelationshipType]int `json:"relationship_types"`
	MostConnectedEndpoints []EndpointConnections          `json:"most_connected_endpoints"`
}

// EndpointConnections 端点及其关系数
type EndpointConnections struct {
	EndpointID    int64  `json:"endpoint_id"`
	Label         string `json:"label"`
	Relationships int    `json:"relationship_count"`
}

// Statistics 汇总当前存储中的关系
func (a *RelationshipAnalyzer) Statistics() (*RelationshipStatistics, error) {
	endpoints, err := a.store.ListEndpoints()
	if err != nil {
		return nil, fmt.Errorf("读取端点失败: %w", err)
	}
	services, err := a.store.ListServices()
	if err != nil {
		return nil, fmt.Errorf("读取服务失败: %w", err)
	}
	rels, err := a.store.ListRelationships()
	if err != nil {
		return nil, fmt.Errorf("读取关系失败: %w", err)
	}

	stats := &RelationshipStatistics{
		TotalRelationships: len(rels),
		TotalEndpoints:     len(endpoints),
		TotalServices:      len(services),
		RelationshipTypes:  make(map[store.RelationshipType]int),
	}

	n := len(endpoints)
	if pairs := n * (n - 1) / 2; pairs > 0 {
		stats.RelationshipCoverage = float64(len(rels)) / float64(pairs) * 100
	}

	counts := make(map[int64]int)
	total := 0.0
	for _, rel := range rels {
		total += rel.Score
		stats.RelationshipTypes[rel.Type]++
		counts[rel.SourceEndpointID]++
		counts[rel.TargetEndpointID]++
	}
	if len(rels) > 0 {
		stats.AverageSimilarity = total / float64(len(rels))
	}

	ranked := make([]EndpointConnections, 0, len(endpoints))
	for _, ep := range endpoints {
		if counts[ep.ID] == 0 {
			continue
		}
		ranked = append(ranked, EndpointConnections{
			EndpointID:    ep.ID,
			Label:         ep.Label(),
			Relationships: counts[ep.ID],
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Relationships > ranked[j].Relationships
	})
	if len(ranked) > a.mostConnected {
		ranked = ranked[:a.mostConnected]
	}
	stats.MostConnectedEndpoints = ranked
	return stats, nil
}

// RelationshipFilter 关系列表过滤条件
type RelationshipFilter struct {
	Type     store.RelationshipType // 为空表示不过滤
	MinScore float64
	Skip     int
	Limit    int // <= 0 时取 DefaultListLimit
}

// ListRelationships 过滤后分页，返回当前页与过滤后总数
func (a *RelationshipAnalyzer) ListRelationships(filter RelationshipFilter) ([]store.Relationship, int, error) {
	rels, err := a.store.ListRelationships()
	if err != nil {
		return nil, 0, fmt.Errorf("读取关系失败: %w", err)
	}

	matched := make([]store.Relationship, 0, len(rels))
	for _, rel := range rels {
		if filter.Type != "" && rel.Type != filter.Type {
			continue
		}
		if rel.Score < filter.MinScore {
			continue
		}
		matched = append(matched, rel)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	start := filter.Skip
	if start < 0 {
		start = 0
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

// EndpointRelations 某端点的全部关系
type EndpointRelations struct {
	Endpoint           store.Endpoint       `json:"endpoint_info"`
	TotalRelationships int                  `json:"total_relationships"`
	Relationships      []store.Relationship `json:"relationships"`
}

// EndpointRelationships 查询与端点相关的关系
func (a *RelationshipAnalyzer) EndpointRelationships(endpointID int64) (*EndpointRelations, error) {
	ep, err := a.store.GetEndpoint(endpointID)
	if err != nil {
		return nil, err
	}
	rels, err := a.store.ListRelationships()
	if err != nil {
		return nil, fmt.Errorf("读取关系失败: %w", err)
	}

	result := &EndpointRelations{Endpoint: *ep, Relationships: []store.Relationship{}}
	for _, rel := range rels {
		if rel.Involves(endpointID) {
			result.Relationships = append(result.Relationships, rel)
		}
	}
	result.TotalRelationships = len(result.Relationships)
	return result, nil
}

// ServiceRelations 某服务的关系，按服务内/跨服务拆分
type ServiceRelations struct {
	ServiceID     int64                `json:"service_id"`
	ServiceName   string               `json:"service_name"`
	Total         int                  `json:"total_relationships"`
	Internal      []store.Relationship `json:"internal_relationships"`
	External      []store.Relationship `json:"external_relationships"`
	InternalCount int                  `json:"internal_count"`
	ExternalCount int                  `json:"external_count"`
}

// ServiceRelationships 查询涉及服务内端点的关系；两端同属该服务为 internal
func (a *RelationshipAnalyzer) ServiceRelationships(serviceID int64) (*ServiceRelations, error) {
	svc, err := a.store.GetService(serviceID)
	if err != nil {
		return nil, err
	}
	endpoints, err := a.store.ListEndpoints()
	if err != nil {
		return nil, fmt.Errorf("读取端点失败: %w", err)
	}
	rels, err := a.store.ListRelationships()
	if err != nil {
		return nil, fmt.Errorf("读取关系失败: %w", err)
	}

	owned := make(map[int64]bool)
	for _, ep := range endpoints {
		if ep.ServiceID == serviceID {
			owned[ep.ID] = true
		}
	}

	result := &ServiceRelations{
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		Internal:    []store.Relationship{},
		External:    []store.Relationship{},
	}
	for _, rel := range rels {
		src, dst := owned[rel.SourceEndpointID], owned[rel.TargetEndpointID]
		switch {
		case src && dst:
			result.Internal = append(result.Internal, rel)
		case src || dst:
			result.External = append(result.External, rel)
		}
	}
	result.InternalCount = len(result.Internal)
	result.ExternalCount = len(result.External)
	result.Total = result.InternalCount + result.ExternalCount
	return result, nil
}
