package ai

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	defaultEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"
	defaultModel    = "qwen-plus"
)

// Client AI 客户端接口
type Client interface {
	// ClassifyFields 批量判断字段类型
	ClassifyFields(fields []FieldContext) (map[string]*FieldClassification, error)
}

// FieldContext 字段上下文
type FieldContext struct {
	Field     string   // 字段路径，如 user.email
	Services  []string // 暴露该字段的服务
	Endpoints []string // 暴露该字段的端点，如 "GET /users"
}

// FieldClassification 字段分类结果
type FieldClassification struct {
	Field      string  `json:"field"`
	Type       string  `json:"type"`       // identifier/datetime/name/email/status/numeric/unknown
	Confidence float64 `json:"confidence"` // 置信度
	Source     string  `json:"source"`     // 来源：ai
}

// AlibabaClient 阿里云通义千问客户端
type AlibabaClient struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
}

// NewAlibabaClient 创建阿里云 AI 客户端
func NewAlibabaClient(apiKey string) *AlibabaClient {
	return NewAlibabaClientWithConfig(apiKey, "", "")
}

// NewAlibabaClientWithConfig endpoint、model 为空时使用默认值
func NewAlibabaClientWithConfig(apiKey, endpoint, model string) *AlibabaClient {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if model == "" {
		model = defaultModel // 或 qwen-turbo, qwen-max
	}
	return &AlibabaClient{
		apiKey:     apiKey,
		endpoint:   endpoint,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// ClassifyFields 批量分类
func (c *AlibabaClient) ClassifyFields(fields []FieldContext) (map[string]*FieldClassification, error) {
	var desc strings.Builder
	for i, f := range fields {
		desc.WriteString(fmt.Sprintf("%d. 字段: %s, 服务: %s, 端点: %s\n",
			i+1, f.Field, strings.Join(f.Services, ","), strings.Join(limit(f.Endpoints, 3), "; ")))
	}

	prompt := fmt.Sprintf(`你是 REST API 设计专家。请判断以下 API 字段的语义类型：

%s
类型只能是以下之一：identifier, datetime, name, email, status, numeric, unknown

请以 JSON 数组格式返回，每个字段一个对象：
[
  {"field": "字段路径（原样返回）", "type": "identifier", "confidence": 0.9}
]

只返回 JSON 数组，不要其他文字。`, desc.String())

	response, err := c.callAPI(prompt)
	if err != nil {
		return nil, err
	}

	var classifications []FieldClassification
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &classifications); err != nil {
		return nil, fmt.Errorf("解析 AI 响应失败: %w", err)
	}

	result := make(map[string]*FieldClassification)
	for i := range classifications {
		classifications[i].Source = "ai"
		result[classifications[i].Field] = &classifications[i]
	}
	return result, nil
}

// callAPI 调用阿里云 API
func (c *AlibabaClient) callAPI(prompt string) (string, error) {
	requestBody := map[string]interface{}{
		"model": c.model,
		"input": map[string]interface{}{
			"messages": []map[string]string{
				{
					"role":    "system",
					"content": "你是 REST API 设计专家，熟悉 OpenAPI 字段命名规范。",
				},
				{
					"role":    "user",
					"content": prompt,
				},
			},
		},
		"parameters": map[string]interface{}{
			"result_format": "message",
		},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API 调用失败: %s, 响应: %s", resp.Status, string(body))
	}

	var apiResp struct {
		Output struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		} `json:"output"`
	}

	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}

	if len(apiResp.Output.Choices) == 0 {
		return "", fmt.Errorf("API 返回空响应")
	}

	return apiResp.Output.Choices[0].Message.Content, nil
}

// stripCodeFence 模型经常把 JSON 包在 ``` 代码块里
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func limit(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
