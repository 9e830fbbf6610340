package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"api-analyzer/internal/analyzer"
	"api-analyzer/internal/renderer"
)

// 任务状态
const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// AnalysisRequest 分析请求
type AnalysisRequest struct {
	Threshold *float64 `json:"similarity_threshold"` // 为空时取配置
	EnableAI  bool     `json:"enable_ai"`            // 是否启用AI
	APIKey    string   `json:"api_key"`              // AI API Key，为空时取配置
}

// AnalysisTask 分析任务
type AnalysisTask struct {
	ID        string          `json:"id"`
	Request   AnalysisRequest `json:"request"`
	Status    string          `json:"status"`   // pending/running/completed/failed
	Progress  int             `json:"progress"` // 0-100
	Message   string          `json:"message"`
	Result    *AnalysisResult `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AnalysisResult 分析结果
type AnalysisResult struct {
	Summary      *analyzer.AnalysisSummary        `json:"summary"`
	Statistics   *analyzer.RelationshipStatistics `json:"statistics"`
	ReportMD     string                           `json:"report_md"`
	GraphMermaid string                           `json:"graph_mermaid"`
}

func (t *AnalysisTask) done() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed
}

// Analyze 创建异步分析任务
func (s *Server) Analyze(c *gin.Context) {
	var req AnalysisRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
	}
	if req.Threshold != nil && (*req.Threshold < 0 || *req.Threshold > 1) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "similarity_threshold 必须在 [0, 1] 之间"})
		return
	}

	now := time.Now()
	task := &AnalysisTask{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    TaskPending,
		Message:   "任务已创建，等待执行...",
		CreatedAt: now,
		UpdatedAt: now,
	}
	// 不回显密钥
	task.Request.APIKey = ""

	s.tasksMu.Lock()
	s.tasks[task.ID] = task
	s.tasksMu.Unlock()

	go s.runAnalysis(task, req)

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": task.ID,
		"status":  TaskPending,
	})
}

// snapshot 加锁复制任务状态
func (s *Server) snapshot(id string) (AnalysisTask, bool) {
	s.tasksMu.RLock()
	defer s.tasksMu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return AnalysisTask{}, false
	}
	return *task, true
}

// TaskStatus 查询任务状态
func (s *Server) TaskStatus(c *gin.Context) {
	task, ok := s.snapshot(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// WebSocket 持续推送任务状态直到结束
func (s *Server) WebSocket(c *gin.Context) {
	taskID := c.Query("task_id")
	if taskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 task_id"})
		return
	}
	if _, ok := s.snapshot(taskID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("WebSocket upgrade error:", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	for {
		task, exists := s.snapshot(taskID)
		if !exists {
			return
		}
		if err := conn.WriteJSON(task); err != nil {
			return
		}
		if task.done() {
			return
		}
		<-ticker.C
	}
}

// runAnalysis 执行分析
func (s *Server) runAnalysis(task *AnalysisTask, req AnalysisRequest) {
	updateTask := func(status string, progress int, message string) {
		s.tasksMu.Lock()
		task.Status = status
		task.Progress = progress
		task.Message = message
		task.UpdatedAt = time.Now()
		s.tasksMu.Unlock()
	}

	updateTask(TaskRunning, 5, "等待其他分析任务结束...")
	s.analyzeMu.Lock()
	defer s.analyzeMu.Unlock()

	threshold := -1.0
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	aiKey := ""
	if req.EnableAI {
		aiKey = req.APIKey
		if aiKey == "" {
			aiKey = s.cfg.AI.APIKey
		}
	}

	// 端点对比较占 10%-80%
	lastProgress := -1
	progress := func(done, total int) {
		p := 10 + done*70/total
		if p == lastProgress {
			return
		}
		lastProgress = p
		updateTask(TaskRunning, p, fmt.Sprintf("比较端点对 (%d/%d)...", done, total))
	}
	a := s.newAnalyzer(threshold, aiKey, analyzer.WithProgress(progress))

	updateTask(TaskRunning, 10, "分析端点关系...")
	summary, err := a.AnalyzeAll()
	if err != nil {
		updateTask(TaskFailed, 10, fmt.Sprintf("分析失败: %v", err))
		return
	}

	updateTask(TaskRunning, 80, "构建关系图...")
	view, err := a.BuildRelationshipGraph()
	if err != nil {
		updateTask(TaskFailed, 80, fmt.Sprintf("构建关系图失败: %v", err))
		return
	}

	updateTask(TaskRunning, 85, "分析跨服务字段...")
	fields, err := a.AnalyzeCommonFieldsAcrossServices()
	if err != nil {
		updateTask(TaskFailed, 85, fmt.Sprintf("分析字段失败: %v", err))
		return
	}

	updateTask(TaskRunning, 95, "生成输出...")
	stats, err := a.Statistics()
	if err != nil {
		updateTask(TaskFailed, 95, fmt.Sprintf("统计失败: %v", err))
		return
	}
	report := &renderer.Report{
		Summary:    summary,
		Statistics: stats,
		Graph:      view,
		Fields:     fields,
	}
	if err := report.LoadCatalog(s.store); err != nil {
		updateTask(TaskFailed, 95, fmt.Sprintf("生成输出失败: %v", err))
		return
	}

	result := &AnalysisResult{
		Summary:      summary,
		Statistics:   stats,
		ReportMD:     renderer.NewEnhancedMarkdownRenderer(aiKey != "").Render(report),
		GraphMermaid: renderer.NewMermaidRenderer().Render(view, report.ServiceNames()),
	}

	s.tasksMu.Lock()
	task.Result = result
	s.tasksMu.Unlock()

	updateTask(TaskCompleted, 100, "分析完成！")
}
