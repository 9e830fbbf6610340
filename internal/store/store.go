package store

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("记录不存在")

// Store 服务目录存储接口
type Store interface {
	// ListServices 按 ID 顺序返回所有服务
	ListServices() ([]Service, error)

	// GetService 获取服务
	GetService(id int64) (*Service, error)

	// SaveService 新建服务，写回分配的 ID
	SaveService(svc *Service) error

	// ListEndpoints 按 ID 顺序返回所有端点
	ListEndpoints() ([]Endpoint, error)

	// GetEndpoint 获取端点
	GetEndpoint(id int64) (*Endpoint, error)

	// SaveEndpoint 新建端点，写回分配的 ID
	SaveEndpoint(ep *Endpoint) error

	// ClearRelationships 清空所有关系
	ClearRelationships() error

	// ReplaceRelationships 原子地清空旧关系并写入新关系，返回带 ID 的结果
	ReplaceRelationships(rels []Relationship) ([]Relationship, error)

	// ListRelationships 按 ID 顺序返回所有关系
	ListRelationships() ([]Relationship, error)

	// GetRelationship 获取关系
	GetRelationship(id int64) (*Relationship, error)

	// DeleteRelationship 删除关系
	DeleteRelationship(id int64) error

	// Close 关闭存储
	Close() error
}

// Service API 服务
type Service struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Version     string    `json:"version,omitempty"`
	BaseURL     string    `json:"base_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Endpoint API 端点（一个操作）
type Endpoint struct {
	ID             int64                  `json:"id"`
	ServiceID      int64                  `json:"service_id"`
	Path           string                 `json:"path"`
	Method         string                 `json:"method"`
	Summary        string                 `json:"summary,omitempty"`
	RequestSchema  map[string]interface{} `json:"request_schema,omitempty"`
	ResponseSchema map[string]interface{} `json:"response_schema,omitempty"`
	Parameters     map[string][]Parameter `json:"parameters,omitempty"` // query/path/header/cookie -> 参数
}

// Label 端点显示名，如 "GET /users/{id}"
func (e Endpoint) Label() string {
	return e.Method + " " + e.Path
}

// Parameter 端点参数
type Parameter struct {
	Name     string                 `json:"name"`
	Required bool                   `json:"required"`
	Schema   map[string]interface{} `json:"schema,omitempty"`
}

// RelationshipType 关系类型
type RelationshipType string

const (
	RelationshipCommonFields  RelationshipType = "common_fields"  // 公共字段
	RelationshipSimilarSchema RelationshipType = "similar_schema" // 相似结构
	RelationshipDataFlow      RelationshipType = "data_flow"      // 数据流
)

// RelationshipTypes 所有关系类型（固定顺序）
var RelationshipTypes = []RelationshipType{
	RelationshipCommonFields,
	RelationshipSimilarSchema,
	RelationshipDataFlow,
}

// Valid 是否为已知类型
func (t RelationshipType) Valid() bool {
	for _, known := range RelationshipTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Relationship 端点间关系
type Relationship struct {
	ID               int64                  `json:"id"`
	SourceEndpointID int64                  `json:"source_endpoint_id"`
	TargetEndpointID int64                  `json:"target_endpoint_id"`
	Type             RelationshipType       `json:"relationship_type"`
	Score            float64                `json:"similarity_score"`
	CommonFields     []string               `json:"common_fields"`
	Metadata         map[string]interface{} `json:"relationship_metadata"`
	CreatedAt        time.Time              `json:"created_at"`
}

// Involves 关系是否涉及该端点
func (r Relationship) Involves(endpointID int64) bool {
	return r.SourceEndpointID == endpointID || r.TargetEndpointID == endpointID
}

// Open driver 为空时返回内存存储，否则连接数据库并建表
func Open(driver, dsn string) (Store, error) {
	if driver == "" || driver == "memory" {
		return NewMemoryStore(), nil
	}
	s, err := NewSQLStore(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("连接存储失败: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
