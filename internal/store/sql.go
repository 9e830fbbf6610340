package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// SQLStore 基于 database/sql 的存储
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

var _ Store = (*SQLStore)(nil)

// queryer 同时覆盖 *sql.DB 和 *sql.Tx
type queryer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// NewSQLStore 打开数据库连接并校验
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	dsn, err = dialect.normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, err
	}
	if dialect.Name == SQLiteDialect.Name {
		// 内存库每个连接都是独立的数据库
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

// Migrate 建表（已存在则跳过）
func (s *SQLStore) Migrate() error {
	for _, stmt := range s.dialect.ddl {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("建表失败: %w", err)
		}
	}
	return nil
}

// ListServices 按 ID 顺序返回所有服务
func (s *SQLStore) ListServices() ([]Service, error) {
	rows, err := s.db.Query(`
		SELECT id, name, COALESCE(description, ''), COALESCE(version, ''), COALESCE(base_url, ''), is_active, created_at
		FROM services
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		var svc Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Description, &svc.Version, &svc.BaseURL, &svc.IsActive, &svc.CreatedAt); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

// GetService 获取服务
func (s *SQLStore) GetService(id int64) (*Service, error) {
	var svc Service
	err := s.db.QueryRow(s.dialect.rebind(`
		SELECT id, name, COALESCE(description, ''), COALESCE(version, ''), COALESCE(base_url, ''), is_active, created_at
		FROM services
		WHERE id = ?
	`), id).Scan(&svc.ID, &svc.Name, &svc.Description, &svc.Version, &svc.BaseURL, &svc.IsActive, &svc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// SaveService 新建服务
func (s *SQLStore) SaveService(svc *Service) error {
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = time.Now().UTC()
	}
	id, err := s.insert(s.db,
		`INSERT INTO services (name, description, version, base_url, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		svc.Name, svc.Description, svc.Version, svc.BaseURL, svc.IsActive, svc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("保存服务 %s 失败: %w", svc.Name, err)
	}
	svc.ID = id
	return nil
}

// ListEndpoints 按 ID 顺序返回所有端点
func (s *SQLStore) ListEndpoints() ([]Endpoint, error) {
	rows, err := s.db.Query(`
		SELECT id, service_id, path, method, COALESCE(summary, ''), request_schema, response_schema, parameters
		FROM endpoints
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, *ep)
	}
	return endpoints, rows.Err()
}

// GetEndpoint 获取端点
func (s *SQLStore) GetEndpoint(id int64) (*Endpoint, error) {
	row := s.db.QueryRow(s.dialect.rebind(`
		SELECT id, service_id, path, method, COALESCE(summary, ''), request_schema, response_schema, parameters
		FROM endpoints
		WHERE id = ?
	`), id)
	ep, err := scanEndpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ep, err
}

// SaveEndpoint 新建端点，schema 与参数以 JSON 文本存储
func (s *SQLStore) SaveEndpoint(ep *Endpoint) error {
	if _, err := s.GetService(ep.ServiceID); err != nil {
		return err
	}
	request, err := encodeJSON(ep.RequestSchema)
	if err != nil {
		return err
	}
	response, err := encodeJSON(ep.ResponseSchema)
	if err != nil {
		return err
	}
	params, err := encodeJSON(ep.Parameters)
	if err != nil {
		return err
	}
	id, err := s.insert(s.db,
		`INSERT INTO endpoints (service_id, path, method, summary, request_schema, response_schema, parameters) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ep.ServiceID, ep.Path, ep.Method, ep.Summary, request, response, params,
	)
	if err != nil {
		return fmt.Errorf("保存端点 %s 失败: %w", ep.Label(), err)
	}
	ep.ID = id
	return nil
}

// ClearRelationships 清空所有关系
func (s *SQLStore) ClearRelationships() error {
	_, err := s.db.Exec(`DELETE FROM relationships`)
	return err
}

// ReplaceRelationships 在单个事务内清空并重建关系
func (s *SQLStore) ReplaceRelationships(rels []Relationship) ([]Relationship, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM relationships`); err != nil {
		return nil, fmt.Errorf("清空关系失败: %w", err)
	}

	now := time.Now().UTC()
	saved := make([]Relationship, len(rels))
	copy(saved, rels)
	for i := range saved {
		rel := &saved[i]
		if rel.CreatedAt.IsZero() {
			rel.CreatedAt = now
		}
		fields, err := encodeJSON(rel.CommonFields)
		if err != nil {
			return nil, err
		}
		meta, err := encodeJSON(rel.Metadata)
		if err != nil {
			return nil, err
		}
		id, err := s.insert(tx,
			`INSERT INTO relationships (source_endpoint_id, target_endpoint_id, relationship_type, similarity_score, common_fields, relationship_metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rel.SourceEndpointID, rel.TargetEndpointID, string(rel.Type), rel.Score, fields, meta, rel.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("保存关系 %d->%d 失败: %w", rel.SourceEndpointID, rel.TargetEndpointID, err)
		}
		rel.ID = id
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return saved, nil
}

// ListRelationships 按 ID 顺序返回所有关系
func (s *SQLStore) ListRelationships() ([]Relationship, error) {
	rows, err := s.db.Query(`
		SELECT id, source_endpoint_id, target_endpoint_id, relationship_type, similarity_score, common_fields, relationship_metadata, created_at
		FROM relationships
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, *rel)
	}
	return rels, rows.Err()
}

// GetRelationship 获取关系
func (s *SQLStore) GetRelationship(id int64) (*Relationship, error) {
	row := s.db.QueryRow(s.dialect.rebind(`
		SELECT id, source_endpoint_id, target_endpoint_id, relationship_type, similarity_score, common_fields, relationship_metadata, created_at
		FROM relationships
		WHERE id = ?
	`), id)
	rel, err := scanRelationship(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rel, err
}

// DeleteRelationship 删除关系
func (s *SQLStore) DeleteRelationship(id int64) error {
	res, err := s.db.Exec(s.dialect.rebind(`DELETE FROM relationships WHERE id = ?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close 关闭连接
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// insert 执行 INSERT 并返回自增 ID
func (s *SQLStore) insert(q queryer, query string, args ...interface{}) (int64, error) {
	if s.dialect.outputInserted {
		query = strings.Replace(query, " VALUES ", " OUTPUT INSERTED.id VALUES ", 1)
		var id int64
		if err := q.QueryRow(s.dialect.rebind(query), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := q.Exec(s.dialect.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// rowScanner 同时覆盖 *sql.Row 和 *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEndpoint(row rowScanner) (*Endpoint, error) {
	var ep Endpoint
	var request, response, params sql.NullString
	if err := row.Scan(&ep.ID, &ep.ServiceID, &ep.Path, &ep.Method, &ep.Summary, &request, &response, &params); err != nil {
		return nil, err
	}
	if err := decodeJSON(request, &ep.RequestSchema); err != nil {
		return nil, fmt.Errorf("端点 %d request_schema 解析失败: %w", ep.ID, err)
	}
	if err := decodeJSON(response, &ep.ResponseSchema); err != nil {
		return nil, fmt.Errorf("端点 %d response_schema 解析失败: %w", ep.ID, err)
	}
	if err := decodeJSON(params, &ep.Parameters); err != nil {
		return nil, fmt.Errorf("端点 %d parameters 解析失败: %w", ep.ID, err)
	}
	return &ep, nil
}

func scanRelationship(row rowScanner) (*Relationship, error) {
	var rel Relationship
	var relType string
	var fields, meta sql.NullString
	if err := row.Scan(&rel.ID, &rel.SourceEndpointID, &rel.TargetEndpointID, &relType, &rel.Score, &fields, &meta, &rel.CreatedAt); err != nil {
		return nil, err
	}
	rel.Type = RelationshipType(relType)
	if err := decodeJSON(fields, &rel.CommonFields); err != nil {
		return nil, fmt.Errorf("关系 %d common_fields 解析失败: %w", rel.ID, err)
	}
	if err := decodeJSON(meta, &rel.Metadata); err != nil {
		return nil, fmt.Errorf("关系 %d metadata 解析失败: %w", rel.ID, err)
	}
	return &rel, nil
}

// encodeJSON nil 值存为 NULL
func encodeJSON(v interface{}) (sql.NullString, error) {
	switch x := v.(type) {
	case map[string]interface{}:
		if x == nil {
			return sql.NullString{}, nil
		}
	case map[string][]Parameter:
		if x == nil {
			return sql.NullString{}, nil
		}
	case []string:
		if x == nil {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeJSON(s sql.NullString, v interface{}) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}
