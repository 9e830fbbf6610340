package renderer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-analyzer/internal/analyzer"
	"api-analyzer/internal/graph"
	"api-analyzer/internal/store"
)

func sampleReport() *Report {
	endpoints := []store.Endpoint{
		{ID: 1, ServiceID: 1, Path: "/users", Method: "POST"},
		{ID: 2, ServiceID: 1, Path: "/users/{id}", Method: "GET"},
		{ID: 3, ServiceID: 2, Path: "/orders", Method: "POST"},
	}
	rels := []store.Relationship{
		{ID: 1, SourceEndpointID: 1, TargetEndpointID: 3, Type: store.RelationshipDataFlow, Score: 1,
			Metadata: map[string]interface{}{"flow_direction": "1_to_2"}},
		{ID: 2, SourceEndpointID: 1, TargetEndpointID: 2, Type: store.RelationshipCommonFields, Score: 0.75,
			CommonFields: []string{"email", "id"}},
	}
	return &Report{
		Services:      []store.Service{{ID: 1, Name: "users"}, {ID: 2, Name: "orders"}},
		Endpoints:     endpoints,
		Relationships: rels,
		Summary:       &analyzer.AnalysisSummary{TotalEndpoints: 3, PairsCompared: 3, RelationshipsCreated: 2},
		Statistics: &analyzer.RelationshipStatistics{
			TotalRelationships:   2,
			RelationshipCoverage: 66.7,
			AverageSimilarity:    0.875,
			RelationshipTypes:    map[store.RelationshipType]int{store.RelationshipDataFlow: 1, store.RelationshipCommonFields: 1},
		},
		Graph: &graph.View{
			Nodes: []*graph.Node{
				{ID: 1, Label: "POST /users", ServiceID: 1},
				{ID: 2, Label: "GET /users/{id}", ServiceID: 1},
				{ID: 3, Label: "POST /orders", ServiceID: 2},
			},
			Edges: []*graph.Edge{
				{ID: 1, Source: 1, Target: 3, Type: "data_flow", Score: 1, Direction: "1_to_2"},
				{ID: 2, Source: 1, Target: 2, Type: "common_fields", Score: 0.75},
			},
			TotalNodes:          3,
			TotalEdges:          2,
			Density:             2.0 / 3.0,
			ConnectedComponents: 1,
			MostConnected:       []graph.Centrality{{NodeID: 1, Label: "POST /users", Degree: 2, Centrality: 1}},
		},
		Fields: &analyzer.FieldReport{
			TotalUniqueFields:  2,
			CrossServiceFields: 1,
			MostCommonFields: []analyzer.FieldOccurrence{
				{Field: "user_id", Frequency: 2, Services: []string{"users", "orders"}, Type: analyzer.FieldTypeIdentifier,
					CrossService: true, SimilarNames: []string{"userId"}},
			},
		},
	}
}

func TestMarkdownRenderer(t *testing.T) {
	out := NewMarkdownRenderer().Render(sampleReport())

	assert.True(t, strings.HasPrefix(out, "# API 关系分析报告"))
	assert.Contains(t, out, "| 端点数 | 3 |")
	assert.Contains(t, out, "| 关系覆盖率 | 66.7% |")
	assert.Contains(t, out, "- 连通分量: 1")
	assert.Contains(t, out, "| `POST /users` | 2 | 1.000 |")
	assert.Contains(t, out, "- `POST /users` ↔ `POST /orders` (得分: 1.00) 方向: 1_to_2")
	assert.Contains(t, out, "  - 公共字段: email, id")
	// 按固定类型顺序输出
	assert.Less(t, strings.Index(out, "### 公共字段"), strings.Index(out, "### 数据流"))
	assert.NotContains(t, out, "跨服务字段")
}

func TestMarkdownRendererTruncates(t *testing.T) {
	r := sampleReport()
	r.Relationships = append(r.Relationships,
		store.Relationship{ID: 3, SourceEndpointID: 2, TargetEndpointID: 3, Type: store.RelationshipDataFlow, Score: 0.8})
	m := &MarkdownRenderer{MaxRelationships: 1}
	out := m.Render(r)
	assert.Contains(t, out, "其余 1 条省略")
}

func TestMarkdownRendererEmpty(t *testing.T) {
	out := NewMarkdownRenderer().Render(&Report{})
	assert.Contains(t, out, "未发现关系")
}

func TestEnhancedMarkdownRenderer(t *testing.T) {
	out := NewEnhancedMarkdownRenderer(true).Render(sampleReport())
	assert.Contains(t, out, "## 跨服务字段")
	assert.Contains(t, out, "| `user_id` | 🔑标识 | 2 | users, orders | ✓ | userId |")
	assert.Contains(t, out, "## 图例说明")

	plain := NewEnhancedMarkdownRenderer(false).Render(sampleReport())
	assert.NotContains(t, plain, "## 图例说明")
}

func TestMermaidRenderer(t *testing.T) {
	r := sampleReport()
	out := NewMermaidRenderer().Render(r.Graph, map[int64]string{1: "users"})

	lines := strings.Split(out, "\n")
	assert.Equal(t, "flowchart LR", lines[0])
	assert.Contains(t, out, "    subgraph s1[\"users\"]\n        e1[\"POST /users\"]\n        e2[\"GET /users/{id}\"]\n    end")
	assert.Contains(t, out, "subgraph s2[\"service-2\"]")
	assert.Contains(t, out, "    e1 -->|\"data_flow 1.00\"| e3")
	assert.Contains(t, out, "    e1 ---|\"common_fields 0.75\"| e2")

	filtered := (&MermaidRenderer{MinScore: 0.9}).Render(r.Graph, nil)
	assert.NotContains(t, filtered, "common_fields")
}

func TestMermaidRendererFlowDirection(t *testing.T) {
	view := &graph.View{
		Nodes: []*graph.Node{
			{ID: 1, Label: "POST /orders", ServiceID: 1},
			{ID: 2, Label: "GET /cart", ServiceID: 1},
			{ID: 3, Label: "PUT /orders/{id}", ServiceID: 1},
		},
		Edges: []*graph.Edge{
			{ID: 1, Source: 1, Target: 2, Type: "data_flow", Score: 1, Direction: "2_to_1"},
			{ID: 2, Source: 1, Target: 3, Type: "data_flow", Score: 0.8, Direction: "crud_operations"},
		},
	}
	out := NewMermaidRenderer().Render(view, nil)

	assert.Contains(t, out, "    e2 -->|\"data_flow 1.00\"| e1")
	assert.NotContains(t, out, "e1 -->")
	assert.Contains(t, out, "    e1 ===|\"data_flow 0.80\"| e3")
}

type failingStore struct {
	store.Store
	failOn string
}

func (f *failingStore) ListEndpoints() ([]store.Endpoint, error) {
	if f.failOn == "endpoints" {
		return nil, errors.New("connection reset")
	}
	return f.Store.ListEndpoints()
}

func (f *failingStore) ListRelationships() ([]store.Relationship, error) {
	if f.failOn == "relationships" {
		return nil, errors.New("connection reset")
	}
	return f.Store.ListRelationships()
}

func TestReportLoadCatalog(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := store.Service{Name: "users"}
	require.NoError(t, mem.SaveService(&svc))
	ep := store.Endpoint{ServiceID: svc.ID, Path: "/users", Method: "GET"}
	require.NoError(t, mem.SaveEndpoint(&ep))

	r := &Report{}
	require.NoError(t, r.LoadCatalog(mem))
	assert.Len(t, r.Services, 1)
	assert.Len(t, r.Endpoints, 1)
	assert.Equal(t, map[int64]string{svc.ID: "users"}, r.ServiceNames())

	for _, failOn := range []string{"endpoints", "relationships"} {
		t.Run(failOn, func(t *testing.T) {
			r := &Report{}
			err := r.LoadCatalog(&failingStore{Store: mem, failOn: failOn})
			assert.ErrorContains(t, err, "connection reset")
			assert.Nil(t, r.Relationships)
		})
	}
}
