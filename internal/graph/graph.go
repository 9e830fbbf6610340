package graph

import (
	"sort"
	"sync"

	"github.com/goccy/go-json"
)

// RelationGraph 端点关系图
type RelationGraph struct {
	mu    sync.RWMutex
	nodes []*Node
	index map[int64]*Node
	edges []*Edge
	// adj 无向简单图的邻接表，多种关系类型只算一条边
	adj map[int64]map[int64]struct{}
}

// View 图的只读视图及指标
type View struct {
	Nodes               []*Node      `json:"nodes"`
	Edges               []*Edge      `json:"edges"`
	TotalNodes          int          `json:"total_nodes"`
	TotalEdges          int          `json:"total_edges"`
	Density             float64      `json:"density"`
	ConnectedComponents int          `json:"connected_components"`
	MostConnected       []Centrality `json:"most_connected"`
}

// NewRelationGraph 创建新图
func NewRelationGraph() *RelationGraph {
	return &RelationGraph{
		index: make(map[int64]*Node),
		adj:   make(map[int64]map[int64]struct{}),
	}
}

// AddNode 添加节点，重复 ID 忽略
func (g *RelationGraph) AddNode(node *Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.index[node.ID]; exists {
		return
	}
	g.nodes = append(g.nodes, node)
	g.index[node.ID] = node
	g.adj[node.ID] = make(map[int64]struct{})
}

// AddEdge 添加边；两端不都在图中或为自环时返回 false
func (g *RelationGraph) AddEdge(edge *Edge) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if edge.Source == edge.Target {
		return false
	}
	if _, ok := g.index[edge.Source]; !ok {
		return false
	}
	if _, ok := g.index[edge.Target]; !ok {
		return false
	}
	g.edges = append(g.edges, edge)
	g.adj[edge.Source][edge.Target] = struct{}{}
	g.adj[edge.Target][edge.Source] = struct{}{}
	return true
}

// GetNode 获取节点
func (g *RelationGraph) GetNode(id int64) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.index[id]
}

// simpleEdgeCount 去重后的无向边数
func (g *RelationGraph) simpleEdgeCount() int {
	seen := make(map[pairKey]struct{})
	for _, e := range g.edges {
		seen[newPairKey(e.Source, e.Target)] = struct{}{}
	}
	return len(seen)
}

// Density 2|E| / (|V|(|V|-1))，|V| <= 1 时为 0
func (g *RelationGraph) Density() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := len(g.nodes)
	if n <= 1 {
		return 0
	}
	return 2 * float64(g.simpleEdgeCount()) / (float64(n) * float64(n-1))
}

// ConnectedComponents 连通分量数（并查集），孤立节点各算一个
func (g *RelationGraph) ConnectedComponents() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	uf := newUnionFind(len(g.nodes))
	pos := make(map[int64]int, len(g.nodes))
	for i, n := range g.nodes {
		pos[n.ID] = i
	}
	for _, e := range g.edges {
		uf.union(pos[e.Source], pos[e.Target])
	}
	return uf.count
}

// DegreeCentrality 度中心度 degree / (|V|-1)，结果写回节点
func (g *RelationGraph) DegreeCentrality() map[int64]float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	result := make(map[int64]float64, len(g.nodes))
	n := len(g.nodes)
	for _, node := range g.nodes {
		node.Degree = len(g.adj[node.ID])
		node.Centrality = 0
		if n > 1 {
			node.Centrality = float64(node.Degree) / float64(n-1)
		}
		result[node.ID] = node.Centrality
	}
	return result
}

// MostConnected 中心度最高的 k 个节点，同分按加入顺序
func (g *RelationGraph) MostConnected(k int) []Centrality {
	g.DegreeCentrality()

	g.mu.RLock()
	defer g.mu.RUnlock()
	ranked := make([]Centrality, 0, len(g.nodes))
	for _, node := range g.nodes {
		ranked = append(ranked, Centrality{
			NodeID:     node.ID,
			Label:      node.Label,
			Degree:     node.Degree,
			Centrality: node.Centrality,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Centrality > ranked[j].Centrality
	})
	k = max(k, 0)
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// View 计算全部指标并导出视图
func (g *RelationGraph) View(topK int) *View {
	mostConnected := g.MostConnected(topK)
	density := g.Density()
	components := g.ConnectedComponents()

	g.mu.RLock()
	defer g.mu.RUnlock()
	return &View{
		Nodes:               append([]*Node{}, g.nodes...),
		Edges:               append([]*Edge{}, g.edges...),
		TotalNodes:          len(g.nodes),
		TotalEdges:          len(g.edges),
		Density:             density,
		ConnectedComponents: components,
		MostConnected:       mostConnected,
	}
}

// ToJSON 导出为JSON
func (v *View) ToJSON() ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
