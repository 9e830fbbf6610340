package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"api-analyzer/internal/ai"
	"api-analyzer/internal/analyzer"
	"api-analyzer/internal/config"
	"api-analyzer/internal/store"
)

// errBadRequest 参数错误，映射为 400
var errBadRequest = errors.New("请求参数错误")

// Server 关系分析 HTTP 服务
type Server struct {
	cfg   *config.Config
	store store.Store

	tasks   map[string]*AnalysisTask
	tasksMu sync.RWMutex

	// analyzeMu 同一时间只跑一个全量分析，避免关系表被并发替换
	analyzeMu sync.Mutex

	upgrader     websocket.Upgrader
	pushInterval time.Duration
}

// NewServer 创建服务
func NewServer(cfg *config.Config, s store.Store) *Server {
	return &Server{
		cfg:   cfg,
		store: s,
		tasks: make(map[string]*AnalysisTask),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许跨域
			},
		},
		pushInterval: 500 * time.Millisecond,
	}
}

// SetupRouter 注册路由
func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	api := r.Group("/api")
	api.POST("/analyze", s.Analyze)
	api.GET("/task/:id", s.TaskStatus)
	api.GET("/ws", s.WebSocket)
	api.POST("/import", s.Import)
	api.GET("/services", s.ListServices)
	api.GET("/endpoints", s.ListEndpoints)

	rels := api.Group("/relationships")
	rels.GET("", s.ListRelationships)
	rels.GET("/statistics", s.Statistics)
	rels.GET("/graph", s.Graph)
	rels.GET("/common-fields", s.CommonFields)
	rels.GET("/services/:id", s.ServiceRelationships)
	rels.GET("/endpoints/:id", s.EndpointRelationships)
	rels.GET("/:id", s.GetRelationship)
	rels.DELETE("/:id", s.DeleteRelationship)

	return r
}

// newAnalyzer 按配置创建分析器；threshold < 0 时取配置值
func (s *Server) newAnalyzer(threshold float64, aiKey string, opts ...analyzer.Option) *analyzer.RelationshipAnalyzer {
	if threshold < 0 {
		threshold = s.cfg.Analysis.SimilarityThreshold
	}
	all := []analyzer.Option{
		analyzer.WithThreshold(threshold),
		analyzer.WithTopFields(s.cfg.Analysis.TopFields),
		analyzer.WithMostConnected(s.cfg.Analysis.MostConnected),
	}
	if aiKey != "" {
		client := ai.NewAlibabaClientWithConfig(aiKey, s.cfg.AI.Endpoint, s.cfg.AI.Model)
		all = append(all, analyzer.WithFieldTypeInferrer(analyzer.NewHybridInferrer(client, nil)))
	}
	return analyzer.NewRelationshipAnalyzer(s.store, append(all, opts...)...)
}

// defaultAnalyzer 只读查询用的分析器
func (s *Server) defaultAnalyzer() *analyzer.RelationshipAnalyzer {
	key := ""
	if s.cfg.AIEnabled() {
		key = s.cfg.AI.APIKey
	}
	return s.newAnalyzer(-1, key)
}

// fail 按错误类型返回状态码
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	default:
		log.Printf("请求 %s %s 失败: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 ID: " + c.Param("id")})
		return 0, false
	}
	return id, true
}
