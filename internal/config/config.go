package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// StoreConfig 存储配置，driver 为空时使用内存存储
type StoreConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// AnalysisConfig 分析参数
type AnalysisConfig struct {
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	TopFields           int     `toml:"top_fields"`
	MostConnected       int     `toml:"most_connected"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port string `toml:"port"`
}

// AIConfig AI 字段分类配置
type AIConfig struct {
	Enabled  bool   `toml:"enabled"`
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
	Endpoint string `toml:"endpoint"`
}

// Config 全局配置
type Config struct {
	Store    StoreConfig    `toml:"store"`
	Analysis AnalysisConfig `toml:"analysis"`
	Server   ServerConfig   `toml:"server"`
	AI       AIConfig       `toml:"ai"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			SimilarityThreshold: 0.3,
			TopFields:           20,
			MostConnected:       5,
		},
		Server: ServerConfig{Port: "8080"},
	}
}

// Load 读取 TOML 配置并应用环境变量；文件不存在时使用默认值
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("解析 TOML 失败: %w", err)
			}
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv 环境变量覆盖配置文件
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("SIMILARITY_THRESHOLD"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SIMILARITY_THRESHOLD 无效: %w", err)
		}
		c.Analysis.SimilarityThreshold = threshold
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("DASHSCOPE_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	return nil
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	if c.Analysis.SimilarityThreshold < 0 || c.Analysis.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold 必须在 [0, 1] 之间: %v", c.Analysis.SimilarityThreshold)
	}
	if c.Analysis.TopFields <= 0 {
		return fmt.Errorf("top_fields 必须为正数: %d", c.Analysis.TopFields)
	}
	if c.Analysis.MostConnected <= 0 {
		return fmt.Errorf("most_connected 必须为正数: %d", c.Analysis.MostConnected)
	}
	if c.Store.Driver != "" && c.Store.DSN == "" {
		return fmt.Errorf("存储驱动 %s 需要 dsn", c.Store.Driver)
	}
	return nil
}

// AIEnabled 开启且配置了 API Key
func (c *Config) AIEnabled() bool {
	return c.AI.Enabled && c.AI.APIKey != ""
}
