package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-analyzer/internal/store"
)

// seedCatalog 两个服务：users（3 个端点）和 orders（2 个端点）
func seedCatalog(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()

	users := store.Service{Name: "users", IsActive: true}
	orders := store.Service{Name: "orders", IsActive: true}
	require.NoError(t, s.SaveService(&users))
	require.NoError(t, s.SaveService(&orders))

	endpoints := []store.Endpoint{
		{ServiceID: users.ID, Path: "/users", Method: "POST", RequestSchema: props("name", "email"), ResponseSchema: props("id", "name", "email")},
		{ServiceID: users.ID, Path: "/users/{id}", Method: "GET", ResponseSchema: props("id", "name", "email"),
			Parameters: map[string][]store.Parameter{"path": {{Name: "id", Required: true}}}},
		{ServiceID: users.ID, Path: "/users/{id}", Method: "DELETE",
			Parameters: map[string][]store.Parameter{"path": {{Name: "id", Required: true}}}},
		{ServiceID: orders.ID, Path: "/orders", Method: "POST", RequestSchema: props("id", "name"), ResponseSchema: props("order_id", "status", "total_amount")},
		{ServiceID: orders.ID, Path: "/orders/{orderId}", Method: "GET", ResponseSchema: props("order_id", "status", "total_amount", "created_at")},
	}
	for i := range endpoints {
		require.NoError(t, s.SaveEndpoint(&endpoints[i]))
	}
	return s
}

type relKey struct {
	source, target int64
	relType        store.RelationshipType
	score          float64
}

func keys(rels []store.Relationship) []relKey {
	out := make([]relKey, 0, len(rels))
	for _, r := range rels {
		out = append(out, relKey{r.SourceEndpointID, r.TargetEndpointID, r.Type, r.Score})
	}
	return out
}

func TestAnalyzeAllIsIdempotent(t *testing.T) {
	s := seedCatalog(t)
	a := NewRelationshipAnalyzer(s)

	first, err := a.AnalyzeAll()
	require.NoError(t, err)
	firstRels, err := s.ListRelationships()
	require.NoError(t, err)

	second, err := a.AnalyzeAll()
	require.NoError(t, err)
	secondRels, err := s.ListRelationships()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, keys(firstRels), keys(secondRels))
	assert.Equal(t, 5, first.TotalEndpoints)
	assert.Equal(t, 10, first.PairsCompared)
	assert.Equal(t, first.RelationshipsCreated, first.CommonFieldsFound+first.SimilarSchemas+first.DataFlowPatterns)
	assert.NotZero(t, first.RelationshipsCreated)
}

func TestAnalyzeRespectsThresholdAndOrdering(t *testing.T) {
	s := seedCatalog(t)
	a := NewRelationshipAnalyzer(s, WithThreshold(0.5))
	_, err := a.AnalyzeAll()
	require.NoError(t, err)

	rels, err := s.ListRelationships()
	require.NoError(t, err)
	require.NotEmpty(t, rels)
	for _, r := range rels {
		assert.GreaterOrEqual(t, r.Score, 0.5)
		assert.NotEqual(t, r.SourceEndpointID, r.TargetEndpointID)
		// 源端点总在迭代顺序的前面
		assert.Less(t, r.SourceEndpointID, r.TargetEndpointID)
	}
}

func TestAnalyzeFindsExpectedRelationships(t *testing.T) {
	s := seedCatalog(t)
	a := NewRelationshipAnalyzer(s)
	_, err := a.AnalyzeAll()
	require.NoError(t, err)

	rels, err := s.ListRelationships()
	require.NoError(t, err)

	find := func(src, dst int64, relType store.RelationshipType) *store.Relationship {
		for i := range rels {
			if rels[i].SourceEndpointID == src && rels[i].TargetEndpointID == dst && rels[i].Type == relType {
				return &rels[i]
			}
		}
		return nil
	}

	// GET /users/{id} 与 DELETE /users/{id}
	crud := find(2, 3, store.RelationshipDataFlow)
	require.NotNil(t, crud)
	assert.Equal(t, 0.8, crud.Score)
	assert.Equal(t, FlowCRUD, crud.Metadata["flow_direction"])

	// POST /users 响应 {id,name,email} 完全覆盖 POST /orders 请求 {id,name}
	flow := find(1, 4, store.RelationshipDataFlow)
	require.NotNil(t, flow)
	assert.Equal(t, 1.0, flow.Score)
	assert.Equal(t, FlowOneToTwo, flow.Metadata["flow_direction"])
}

func TestAnalyzeProgressCallback(t *testing.T) {
	s := seedCatalog(t)
	var calls, lastDone, lastTotal int
	a := NewRelationshipAnalyzer(s, WithProgress(func(done, total int) {
		calls++
		lastDone, lastTotal = done, total
	}))
	_, err := a.AnalyzeAll()
	require.NoError(t, err)
	assert.Equal(t, 10, calls)
	assert.Equal(t, 10, lastDone)
	assert.Equal(t, 10, lastTotal)
}

func TestAnalyzeDegenerateCorpora(t *testing.T) {
	for _, n := range []int{0, 1} {
		s := store.NewMemoryStore()
		if n == 1 {
			svc := store.Service{Name: "solo"}
			require.NoError(t, s.SaveService(&svc))
			require.NoError(t, s.SaveEndpoint(&store.Endpoint{ServiceID: svc.ID, Path: "/x", Method: "GET", RequestSchema: props("id")}))
		}
		a := NewRelationshipAnalyzer(s)
		summary, err := a.AnalyzeAll()
		require.NoError(t, err)
		assert.Equal(t, n, summary.TotalEndpoints)
		assert.Equal(t, 0, summary.RelationshipsCreated)

		view, err := a.BuildRelationshipGraph()
		require.NoError(t, err)
		assert.Len(t, view.Nodes, n)
		assert.Empty(t, view.Edges)
		assert.Equal(t, 0.0, view.Density)
		assert.Equal(t, n, view.ConnectedComponents)

		stats, err := a.Statistics()
		require.NoError(t, err)
		assert.Equal(t, 0.0, stats.RelationshipCoverage)
	}
}

func TestAnalyzeClearsPreviousRelationships(t *testing.T) {
	s := seedCatalog(t)
	_, err := s.ReplaceRelationships([]store.Relationship{{SourceEndpointID: 1, TargetEndpointID: 5, Type: store.RelationshipSimilarSchema, Score: 0.99}})
	require.NoError(t, err)

	_, err = NewRelationshipAnalyzer(s, WithThreshold(1.01)).AnalyzeAll()
	require.NoError(t, err)
	rels, err := s.ListRelationships()
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestBuildRelationshipGraph(t *testing.T) {
	s := seedCatalog(t)
	a := NewRelationshipAnalyzer(s)
	_, err := a.AnalyzeAll()
	require.NoError(t, err)

	view, err := a.BuildRelationshipGraph()
	require.NoError(t, err)
	assert.Len(t, view.Nodes, 5)
	assert.Equal(t, "POST /users", view.Nodes[0].Label)

	rels, _ := s.ListRelationships()
	assert.Len(t, view.Edges, len(rels))
	assert.Greater(t, view.Density, 0.0)
	assert.LessOrEqual(t, view.Density, 1.0)
	assert.LessOrEqual(t, len(view.MostConnected), DefaultMostConnected)
	for i := 1; i < len(view.MostConnected); i++ {
		assert.GreaterOrEqual(t, view.MostConnected[i-1].Centrality, view.MostConnected[i].Centrality)
	}

	directions := make(map[[2]int64]string)
	for _, e := range view.Edges {
		if e.Type == string(store.RelationshipDataFlow) {
			directions[[2]int64{e.Source, e.Target}] = e.Direction
		} else {
			assert.Empty(t, e.Direction)
		}
	}
	assert.Equal(t, FlowOneToTwo, directions[[2]int64{1, 4}])
	assert.Equal(t, FlowCRUD, directions[[2]int64{2, 3}])
}

func TestNegativeLimitsAreClampedToZero(t *testing.T) {
	s := seedCatalog(t)
	a := NewRelationshipAnalyzer(s, WithMostConnected(-1), WithTopFields(-2))
	_, err := a.AnalyzeAll()
	require.NoError(t, err)

	view, err := a.BuildRelationshipGraph()
	require.NoError(t, err)
	assert.Empty(t, view.MostConnected)

	stats, err := a.Statistics()
	require.NoError(t, err)
	assert.Empty(t, stats.MostConnectedEndpoints)

	report, err := a.AnalyzeCommonFieldsAcrossServices()
	require.NoError(t, err)
	assert.Empty(t, report.MostCommonFields)
	assert.NotEmpty(t, report.FieldAnalysis)
}

func TestStatisticsCoverageIsNotCapped(t *testing.T) {
	s := store.NewMemoryStore()
	svc := store.Service{Name: "users"}
	require.NoError(t, s.SaveService(&svc))
	a1 := store.Endpoint{ServiceID: svc.ID, Path: "/a", Method: "POST", RequestSchema: props("id", "name"), ResponseSchema: props("id", "name")}
	a2 := store.Endpoint{ServiceID: svc.ID, Path: "/b", Method: "POST", RequestSchema: props("id", "name"), ResponseSchema: props("id", "name")}
	require.NoError(t, s.SaveEndpoint(&a1))
	require.NoError(t, s.SaveEndpoint(&a2))

	a := NewRelationshipAnalyzer(s)
	summary, err := a.AnalyzeAll()
	require.NoError(t, err)
	require.Equal(t, 3, summary.RelationshipsCreated)

	stats, err := a.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 300.0, stats.RelationshipCoverage)
	assert.Equal(t, 1.0, stats.AverageSimilarity)
	assert.Equal(t, 1, stats.RelationshipTypes[store.RelationshipDataFlow])
	require.Len(t, stats.MostConnectedEndpoints, 2)
	assert.Equal(t, 3, stats.MostConnectedEndpoints[0].Relationships)
}

func TestListRelationshipsFilter(t *testing.T) {
	s := seedCatalog(t)
	a := NewRelationshipAnalyzer(s)
	_, err := a.AnalyzeAll()
	require.NoError(t, err)
	all, _ := s.ListRelationships()

	page, total, err := a.ListRelationships(RelationshipFilter{Type: store.RelationshipDataFlow})
	require.NoError(t, err)
	assert.Equal(t, total, len(page))
	for _, r := range page {
		assert.Equal(t, store.RelationshipDataFlow, r.Type)
	}

	page, total, err = a.ListRelationships(RelationshipFilter{Skip: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, len(all), total)
	assert.Len(t, page, 2)
	assert.Equal(t, all[1].ID, page[0].ID)

	page, _, err = a.ListRelationships(RelationshipFilter{Skip: 1000})
	require.NoError(t, err)
	assert.Empty(t, page)

	page, _, err = a.ListRelationships(RelationshipFilter{MinScore: 0.99})
	require.NoError(t, err)
	for _, r := range page {
		assert.GreaterOrEqual(t, r.Score, 0.99)
	}
}

func TestEndpointAndServiceRelationships(t *testing.T) {
	s := seedCatalog(t)
	a := NewRelationshipAnalyzer(s)
	_, err := a.AnalyzeAll()
	require.NoError(t, err)

	er, err := a.EndpointRelationships(2)
	require.NoError(t, err)
	assert.Equal(t, "/users/{id}", er.Endpoint.Path)
	assert.Equal(t, len(er.Relationships), er.TotalRelationships)
	for _, r := range er.Relationships {
		assert.True(t, r.Involves(2))
	}

	sr, err := a.ServiceRelationships(1)
	require.NoError(t, err)
	assert.Equal(t, "users", sr.ServiceName)
	assert.NotEmpty(t, sr.Internal)
	assert.NotEmpty(t, sr.External)
	for _, r := range sr.Internal {
		assert.LessOrEqual(t, r.TargetEndpointID, int64(3))
	}
	for _, r := range sr.External {
		assert.Greater(t, r.TargetEndpointID, int64(3))
	}
	assert.Equal(t, sr.InternalCount+sr.ExternalCount, sr.Total)

	_, err = a.EndpointRelationships(404)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = a.ServiceRelationships(404)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
