package store

import (
	"sync"
	"time"
)

// MemoryStore 内存存储，所有列表按 ID 顺序返回
type MemoryStore struct {
	mu            sync.RWMutex
	services      []Service
	endpoints     []Endpoint
	relationships []Relationship

	nextServiceID      int64
	nextEndpointID     int64
	nextRelationshipID int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextServiceID:      1,
		nextEndpointID:     1,
		nextRelationshipID: 1,
	}
}

// ListServices 按 ID 顺序返回所有服务
func (m *MemoryStore) ListServices() ([]Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Service(nil), m.services...), nil
}

// GetService 获取服务
func (m *MemoryStore) GetService(id int64) (*Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.services {
		if m.services[i].ID == id {
			svc := m.services[i]
			return &svc, nil
		}
	}
	return nil, ErrNotFound
}

// SaveService 新建服务
func (m *MemoryStore) SaveService(svc *Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	svc.ID = m.nextServiceID
	m.nextServiceID++
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = time.Now()
	}
	m.services = append(m.services, *svc)
	return nil
}

// ListEndpoints 按 ID 顺序返回所有端点
func (m *MemoryStore) ListEndpoints() ([]Endpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Endpoint(nil), m.endpoints...), nil
}

// GetEndpoint 获取端点
func (m *MemoryStore) GetEndpoint(id int64) (*Endpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.endpoints {
		if m.endpoints[i].ID == id {
			ep := m.endpoints[i]
			return &ep, nil
		}
	}
	return nil, ErrNotFound
}

// SaveEndpoint 新建端点，所属服务必须存在
func (m *MemoryStore) SaveEndpoint(ep *Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for _, svc := range m.services {
		if svc.ID == ep.ServiceID {
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}
	ep.ID = m.nextEndpointID
	m.nextEndpointID++
	m.endpoints = append(m.endpoints, *ep)
	return nil
}

// ClearRelationships 清空所有关系
func (m *MemoryStore) ClearRelationships() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relationships = nil
	return nil
}

// ReplaceRelationships 在锁内整体替换关系集合
func (m *MemoryStore) ReplaceRelationships(rels []Relationship) ([]Relationship, error) {
	staged := make([]Relationship, len(rels))
	copy(staged, rels)

	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for i := range staged {
		staged[i].ID = m.nextRelationshipID
		m.nextRelationshipID++
		if staged[i].CreatedAt.IsZero() {
			staged[i].CreatedAt = now
		}
	}
	m.relationships = staged
	return append([]Relationship(nil), staged...), nil
}

// ListRelationships 按 ID 顺序返回所有关系
func (m *MemoryStore) ListRelationships() ([]Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Relationship(nil), m.relationships...), nil
}

// GetRelationship 获取关系
func (m *MemoryStore) GetRelationship(id int64) (*Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.relationships {
		if m.relationships[i].ID == id {
			rel := m.relationships[i]
			return &rel, nil
		}
	}
	return nil, ErrNotFound
}

// DeleteRelationship 删除关系
func (m *MemoryStore) DeleteRelationship(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.relationships {
		if m.relationships[i].ID == id {
			m.relationships = append(m.relationships[:i], m.relationships[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Close 内存存储无需释放资源
func (m *MemoryStore) Close() error {
	return nil
}
