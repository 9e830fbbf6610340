package renderer

import (
	"fmt"
	"strings"

	"api-analyzer/internal/graph"
)

// MermaidRenderer Mermaid 流程图渲染器
type MermaidRenderer struct {
	// MinScore 低于该得分的边不画
	MinScore float64
}

// NewMermaidRenderer 创建渲染器
func NewMermaidRenderer() *MermaidRenderer {
	return &MermaidRenderer{}
}

// 各关系类型的连线样式，data_flow 另按方向处理
var mermaidArrows = map[string]string{
	"data_flow":      "===",
	"similar_schema": "-.-",
	"common_fields":  "---",
}

// Render 渲染为 Mermaid 格式，节点按服务分组
func (m *MermaidRenderer) Render(v *graph.View, serviceNames map[int64]string) string {
	var sb strings.Builder

	sb.WriteString("flowchart LR\n")

	// 按服务分组，保持节点顺序
	var order []int64
	groups := make(map[int64][]*graph.Node)
	for _, node := range v.Nodes {
		if _, ok := groups[node.ServiceID]; !ok {
			order = append(order, node.ServiceID)
		}
		groups[node.ServiceID] = append(groups[node.ServiceID], node)
	}

	for _, svcID := range order {
		name := serviceNames[svcID]
		if name == "" {
			name = fmt.Sprintf("service-%d", svcID)
		}
		sb.WriteString(fmt.Sprintf("    subgraph s%d[\"%s\"]\n", svcID, mermaidEscape(name)))
		for _, node := range groups[svcID] {
			sb.WriteString(fmt.Sprintf("        e%d[\"%s\"]\n", node.ID, mermaidEscape(node.Label)))
		}
		sb.WriteString("    end\n")
	}

	sb.WriteString("\n")

	// 渲染关系
	for _, edge := range v.Edges {
		if edge.Score < m.MinScore {
			continue
		}
		arrow, ok := mermaidArrows[edge.Type]
		if !ok {
			arrow = "---"
		}
		from, to := edge.Source, edge.Target
		if edge.Type == "data_flow" {
			switch edge.Direction {
			case "1_to_2":
				arrow = "-->"
			case "2_to_1":
				arrow = "-->"
				from, to = to, from
			}
		}
		label := fmt.Sprintf("%s %.2f", edge.Type, edge.Score)
		sb.WriteString(fmt.Sprintf("    e%d %s|\"%s\"| e%d\n", from, arrow, label, to))
	}

	return sb.String()
}

func mermaidEscape(s string) string {
	return strings.ReplaceAll(s, "\"", "#quot;")
}
