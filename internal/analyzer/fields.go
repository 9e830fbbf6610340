package analyzer

import (
	"reflect"
	"sort"

	"api-analyzer/internal/store"
)

// maxSchemaDepth 限制递归深度，畸形 schema 也能结束遍历
const maxSchemaDepth = 64

// schemaPath 当前递归路径上的对象节点，遇到回指即停止
type schemaPath map[uintptr]struct{}

// enter 节点已在路径上时返回 false
func (p schemaPath) enter(node map[string]interface{}) (uintptr, bool) {
	ptr := reflect.ValueOf(node).Pointer()
	if _, seen := p[ptr]; seen {
		return ptr, false
	}
	p[ptr] = struct{}{}
	return ptr, true
}

// FieldSet 字段路径集合，如 "user.address.city"、"items[].id"
type FieldSet map[string]struct{}

// Add 添加字段
func (s FieldSet) Add(field string) {
	s[field] = struct{}{}
}

// Has 是否包含字段
func (s FieldSet) Has(field string) bool {
	_, ok := s[field]
	return ok
}

// Intersect 交集
func (s FieldSet) Intersect(other FieldSet) FieldSet {
	out := make(FieldSet)
	for f := range s {
		if other.Has(f) {
			out.Add(f)
		}
	}
	return out
}

// UnionSize 并集大小
func (s FieldSet) UnionSize(other FieldSet) int {
	n := len(s)
	for f := range other {
		if !s.Has(f) {
			n++
		}
	}
	return n
}

// Sorted 排序后的字段列表
func (s FieldSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// ExtractFields 提取 schema 中的所有字段路径，非对象节点返回空集
func ExtractFields(schema interface{}, prefix string) FieldSet {
	fields := make(FieldSet)
	collectFields(schema, prefix, 0, make(schemaPath), fields)
	return fields
}

func collectFields(schema interface{}, prefix string, depth int, path schemaPath, fields FieldSet) {
	if depth > maxSchemaDepth {
		return
	}
	node, ok := schema.(map[string]interface{})
	if !ok {
		return
	}
	ptr, ok := path.enter(node)
	if !ok {
		return
	}
	defer delete(path, ptr)

	if props, ok := node["properties"].(map[string]interface{}); ok {
		for name, prop := range props {
			field := name
			if prefix != "" {
				field = prefix + "." + name
			}
			fields.Add(field)
			collectFields(prop, field, depth+1, path, fields)
		}
	}

	if items, ok := node["items"]; ok {
		collectFields(items, prefix+"[]", depth+1, path, fields)
	}

	// 组合 schema 的字段直接拍平到同一前缀下
	for _, key := range []string{"allOf", "oneOf", "anyOf"} {
		members, ok := node[key].([]interface{})
		if !ok {
			continue
		}
		for _, member := range members {
			collectFields(member, prefix, depth+1, path, fields)
		}
	}
}

// ExtractFieldsFromEndpoint 请求、响应 schema 字段加上参数名
func ExtractFieldsFromEndpoint(ep store.Endpoint) FieldSet {
	fields := make(FieldSet)
	if ep.RequestSchema != nil {
		collectFields(ep.RequestSchema, "", 0, make(schemaPath), fields)
	}
	if ep.ResponseSchema != nil {
		collectFields(ep.ResponseSchema, "", 0, make(schemaPath), fields)
	}
	for _, params := range ep.Parameters {
		for _, p := range params {
			if p.Name != "" {
				fields.Add(p.Name)
			}
		}
	}
	return fields
}

// SchemaComplexity 直接属性数 + 嵌套对象复杂度；数组属性计 1 再加 items 的复杂度
func SchemaComplexity(schema interface{}) int {
	return complexity(schema, 0, make(schemaPath))
}

func complexity(schema interface{}, depth int, path schemaPath) int {
	if depth > maxSchemaDepth {
		return 0
	}
	node, ok := schema.(map[string]interface{})
	if !ok {
		return 0
	}
	ptr, ok := path.enter(node)
	if !ok {
		return 0
	}
	defer delete(path, ptr)
	props, ok := node["properties"].(map[string]interface{})
	if !ok {
		return 0
	}

	total := len(props)
	for _, raw := range props {
		prop, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if items, ok := prop["items"]; ok {
			total += 1 + complexity(items, depth+1, path)
			continue
		}
		if _, ok := prop["properties"]; ok || prop["type"] == "object" {
			total += complexity(prop, depth+1, path)
		}
	}
	return total
}
