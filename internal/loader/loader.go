package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"api-analyzer/internal/store"
)

// Methods 允许的 HTTP 方法
var Methods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// Corpus 规范化后的服务目录
type Corpus struct {
	Services []ServiceSpec `json:"services" yaml:"services"`
}

// ServiceSpec 服务及其端点
type ServiceSpec struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Version     string         `json:"version" yaml:"version"`
	BaseURL     string         `json:"base_url" yaml:"base_url"`
	Endpoints   []EndpointSpec `json:"endpoints" yaml:"endpoints"`
}

// EndpointSpec 单个操作
type EndpointSpec struct {
	Path           string                     `json:"path" yaml:"path"`
	Method         string                     `json:"method" yaml:"method"`
	Summary        string                     `json:"summary" yaml:"summary"`
	RequestSchema  map[string]interface{}     `json:"request_schema" yaml:"request_schema"`
	ResponseSchema map[string]interface{}     `json:"response_schema" yaml:"response_schema"`
	Parameters     map[string][]ParameterSpec `json:"parameters" yaml:"parameters"`
}

// ParameterSpec 参数，键为位置（query/path/header/cookie）
type ParameterSpec struct {
	Name     string                 `json:"name" yaml:"name"`
	Required bool                   `json:"required" yaml:"required"`
	Schema   map[string]interface{} `json:"schema" yaml:"schema"`
}

// Format 语料文件格式
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatAuto Format = "" // 先按 JSON 解析，失败再按 YAML
)

// Load 按扩展名读取语料文件
func Load(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取语料失败: %w", err)
	}

	format := FormatAuto
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatJSON
	case ".yaml", ".yml":
		format = FormatYAML
	}
	return Parse(data, format)
}

// Parse 解析并校验语料
func Parse(data []byte, format Format) (*Corpus, error) {
	var corpus Corpus
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &corpus); err != nil {
			return nil, fmt.Errorf("解析 JSON 失败: %w", err)
		}
	case FormatYAML:
		if err := decodeYAML(data, &corpus); err != nil {
			return nil, fmt.Errorf("解析 YAML 失败: %w", err)
		}
	default:
		if jsonErr := json.Unmarshal(data, &corpus); jsonErr != nil {
			corpus = Corpus{}
			if yamlErr := decodeYAML(data, &corpus); yamlErr != nil {
				return nil, fmt.Errorf("无法识别语料格式: json: %v; yaml: %v", jsonErr, yamlErr)
			}
		}
	}

	if err := corpus.Validate(); err != nil {
		return nil, err
	}
	return &corpus, nil
}

func decodeYAML(data []byte, corpus *Corpus) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(corpus); err != nil {
		return err
	}
	for i := range corpus.Services {
		for j := range corpus.Services[i].Endpoints {
			ep := &corpus.Services[i].Endpoints[j]
			ep.RequestSchema = normalizeMap(ep.RequestSchema)
			ep.ResponseSchema = normalizeMap(ep.ResponseSchema)
			for loc := range ep.Parameters {
				for k := range ep.Parameters[loc] {
					ep.Parameters[loc][k].Schema = normalizeMap(ep.Parameters[loc][k].Schema)
				}
			}
		}
	}
	return nil
}

// normalizeMap 把 YAML 解出的 map[interface{}]interface{} 转成 JSON 风格的 map
func normalizeMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return normalizeMap(t)
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[fmt.Sprint(k)] = normalizeValue(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = normalizeValue(vv)
		}
		return out
	default:
		return v
	}
}

// Validate 校验必填项并把方法统一为大写
func (c *Corpus) Validate() error {
	for i := range c.Services {
		svc := &c.Services[i]
		if strings.TrimSpace(svc.Name) == "" {
			return fmt.Errorf("services[%d]: 服务名不能为空", i)
		}
		for j := range svc.Endpoints {
			ep := &svc.Endpoints[j]
			if strings.TrimSpace(ep.Path) == "" {
				return fmt.Errorf("services[%d](%s).endpoints[%d]: 路径不能为空", i, svc.Name, j)
			}
			ep.Method = strings.ToUpper(strings.TrimSpace(ep.Method))
			if !Methods[ep.Method] {
				return fmt.Errorf("services[%d](%s).endpoints[%d]: 不支持的方法 %q", i, svc.Name, j, ep.Method)
			}
		}
	}
	return nil
}

// ImportResult 导入统计
type ImportResult struct {
	Services  int `json:"services_imported"`
	Endpoints int `json:"endpoints_imported"`
}

// Import 先写服务再写其端点
func Import(s store.Store, corpus *Corpus) (*ImportResult, error) {
	if err := corpus.Validate(); err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for _, spec := range corpus.Services {
		svc := store.Service{
			Name:        spec.Name,
			Description: spec.Description,
			Version:     spec.Version,
			BaseURL:     spec.BaseURL,
			IsActive:    true,
		}
		if err := s.SaveService(&svc); err != nil {
			return result, fmt.Errorf("保存服务 %s 失败: %w", spec.Name, err)
		}
		result.Services++

		for _, epSpec := range spec.Endpoints {
			ep := store.Endpoint{
				ServiceID:      svc.ID,
				Path:           epSpec.Path,
				Method:         epSpec.Method,
				Summary:        epSpec.Summary,
				RequestSchema:  epSpec.RequestSchema,
				ResponseSchema: epSpec.ResponseSchema,
				Parameters:     convertParameters(epSpec.Parameters),
			}
			if err := s.SaveEndpoint(&ep); err != nil {
				return result, fmt.Errorf("保存端点 %s 失败: %w", ep.Label(), err)
			}
			result.Endpoints++
		}
	}
	return result, nil
}

// ImportIfEmpty 存储中已有服务时跳过导入，返回是否导入
func ImportIfEmpty(s store.Store, corpus *Corpus) (*ImportResult, bool, error) {
	services, err := s.ListServices()
	if err != nil {
		return nil, false, fmt.Errorf("读取服务失败: %w", err)
	}
	if len(services) > 0 {
		return &ImportResult{}, false, nil
	}
	result, err := Import(s, corpus)
	return result, err == nil, err
}

func convertParameters(in map[string][]ParameterSpec) map[string][]store.Parameter {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string][]store.Parameter, len(in))
	for loc, params := range in {
		for _, p := range params {
			out[loc] = append(out[loc], store.Parameter{
				Name:     p.Name,
				Required: p.Required,
				Schema:   p.Schema,
			})
		}
	}
	return out
}
