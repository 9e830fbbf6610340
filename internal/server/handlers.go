package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"api-analyzer/internal/analyzer"
	"api-analyzer/internal/loader"
	"api-analyzer/internal/store"
)

// Import 导入语料（JSON 或 YAML 请求体）
func (s *Server) Import(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	format := loader.FormatJSON
	if ct := c.ContentType(); strings.Contains(ct, "yaml") {
		format = loader.FormatYAML
	}
	corpus, err := loader.Parse(data, format)
	if err != nil {
		fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	result, err := loader.Import(s.store, corpus)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListServices 所有服务
func (s *Server) ListServices(c *gin.Context) {
	services, err := s.store.ListServices()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": services, "total": len(services)})
}

// ListEndpoints 所有端点
func (s *Server) ListEndpoints(c *gin.Context) {
	endpoints, err := s.store.ListEndpoints()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"endpoints": endpoints, "total": len(endpoints)})
}

// parseFilter 解析 type/min_similarity/skip/limit 查询参数
func parseFilter(c *gin.Context) (analyzer.RelationshipFilter, error) {
	var filter analyzer.RelationshipFilter

	if t := c.Query("type"); t != "" {
		filter.Type = store.RelationshipType(t)
		if !filter.Type.Valid() {
			return filter, fmt.Errorf("%w: 未知关系类型 %s", errBadRequest, t)
		}
	}
	if v := c.Query("min_similarity"); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil || score < 0 || score > 1 {
			return filter, fmt.Errorf("%w: min_similarity 必须在 [0, 1] 之间", errBadRequest)
		}
		filter.MinScore = score
	}
	if v := c.Query("skip"); v != "" {
		skip, err := strconv.Atoi(v)
		if err != nil || skip < 0 {
			return filter, fmt.Errorf("%w: skip 必须为非负整数", errBadRequest)
		}
		filter.Skip = skip
	}
	filter.Limit = analyzer.DefaultListLimit
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > 1000 {
			return filter, fmt.Errorf("%w: limit 必须在 1-1000 之间", errBadRequest)
		}
		filter.Limit = limit
	}
	return filter, nil
}

// ListRelationships 分页查询关系
func (s *Server) ListRelationships(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		fail(c, err)
		return
	}
	rels, total, err := s.defaultAnalyzer().ListRelationships(filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"relationships": rels,
		"total":         total,
		"skip":          filter.Skip,
		"limit":         filter.Limit,
	})
}

// Statistics 关系统计
func (s *Server) Statistics(c *gin.Context) {
	stats, err := s.defaultAnalyzer().Statistics()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Graph 关系图及指标
func (s *Server) Graph(c *gin.Context) {
	view, err := s.defaultAnalyzer().BuildRelationshipGraph()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CommonFields 跨服务字段报告
func (s *Server) CommonFields(c *gin.Context) {
	report, err := s.defaultAnalyzer().AnalyzeCommonFieldsAcrossServices()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetRelationship 单个关系
func (s *Server) GetRelationship(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	rel, err := s.store.GetRelationship(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rel)
}

// DeleteRelationship 删除关系
func (s *Server) DeleteRelationship(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := s.store.DeleteRelationship(id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// ServiceRelationships 服务内与跨服务关系
func (s *Server) ServiceRelationships(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	result, err := s.defaultAnalyzer().ServiceRelationships(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// EndpointRelationships 端点相关的关系
func (s *Server) EndpointRelationships(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	result, err := s.defaultAnalyzer().EndpointRelationships(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
