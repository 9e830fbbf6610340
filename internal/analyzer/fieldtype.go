package analyzer

import "strings"

// FieldType 推断出的字段类型标签
type FieldType string

const (
	FieldTypeIdentifier FieldType = "identifier"
	FieldTypeDatetime   FieldType = "datetime"
	FieldTypeName       FieldType = "name"
	FieldTypeEmail      FieldType = "email"
	FieldTypeStatus     FieldType = "status"
	FieldTypeNumeric    FieldType = "numeric"
	FieldTypeUnknown    FieldType = "unknown"
)

// FieldTypes 所有已知标签
var FieldTypes = []FieldType{
	FieldTypeIdentifier,
	FieldTypeDatetime,
	FieldTypeName,
	FieldTypeEmail,
	FieldTypeStatus,
	FieldTypeNumeric,
	FieldTypeUnknown,
}

// ParseFieldType 未知字符串返回 false
func ParseFieldType(s string) (FieldType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range FieldTypes {
		if string(t) == s {
			return t, true
		}
	}
	return FieldTypeUnknown, false
}

// FieldTypeInferrer 字段类型推断策略
type FieldTypeInferrer interface {
	InferType(field string) FieldType
}

// fieldRule 命中任一关键字即返回对应类型
type fieldRule struct {
	fieldType FieldType
	match     func(name string) bool
}

// RuleBasedInferrer 按固定顺序匹配字段名，首条命中生效
type RuleBasedInferrer struct {
	rules []fieldRule
}

// NewRuleBasedInferrer 创建规则推断器
func NewRuleBasedInferrer() *RuleBasedInferrer {
	return &RuleBasedInferrer{
		rules: []fieldRule{
			{FieldTypeIdentifier, func(n string) bool { return n == "id" || strings.HasSuffix(n, "id") }},
			{FieldTypeDatetime, containsAny("date", "time", "created", "updated", "timestamp")},
			{FieldTypeName, containsAny("name", "title", "label")},
			{FieldTypeEmail, containsAny("email")},
			{FieldTypeStatus, containsAny("status", "state", "active", "enabled")},
			{FieldTypeNumeric, containsAny("count", "total", "number", "amount")},
		},
	}
}

// InferType 推断字段类型
func (r *RuleBasedInferrer) InferType(field string) FieldType {
	name := strings.ToLower(field)
	for _, rule := range r.rules {
		if rule.match(name) {
			return rule.fieldType
		}
	}
	return FieldTypeUnknown
}

func containsAny(keywords ...string) func(string) bool {
	return func(name string) bool {
		for _, kw := range keywords {
			if strings.Contains(name, kw) {
				return true
			}
		}
		return false
	}
}
