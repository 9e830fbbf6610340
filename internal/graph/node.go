package graph

// Node 图节点（一个 API 端点）
type Node struct {
	ID         int64   `json:"id"`
	Label      string  `json:"label"` // "METHOD path"
	ServiceID  int64   `json:"service_id"`
	Degree     int     `json:"degree"`
	Centrality float64 `json:"centrality"`
}

// Centrality 节点中心度
type Centrality struct {
	NodeID     int64   `json:"node_id"`
	Label      string  `json:"label"`
	Degree     int     `json:"degree"`
	Centrality float64 `json:"centrality"`
}
