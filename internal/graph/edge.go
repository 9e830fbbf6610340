package graph

// Edge 图的边，同一对端点可能有多条不同类型的边
type Edge struct {
	ID           int64    `json:"id"`
	Source       int64    `json:"source"`
	Target       int64    `json:"target"`
	Type         string   `json:"type"`  // common_fields/similar_schema/data_flow
	Score        float64  `json:"score"` // 0-1
	CommonFields []string `json:"common_fields,omitempty"`
	Direction    string   `json:"flow_direction,omitempty"` // data_flow: 1_to_2/2_to_1/crud_operations
}

// pairKey 无向端点对
type pairKey struct {
	a, b int64
}

func newPairKey(x, y int64) pairKey {
	if x > y {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}
