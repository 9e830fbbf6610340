package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"api-analyzer/internal/config"
	"api-analyzer/internal/server"
	"api-analyzer/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	s, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		log.Fatalf("打开存储失败: %v", err)
	}
	defer s.Close()

	srv := server.NewServer(cfg, s)
	r := srv.SetupRouter()

	driver := cfg.Store.Driver
	if driver == "" {
		driver = "memory"
	}
	fmt.Printf("🚀 API Relationship Analyzer Server\n")
	fmt.Printf("📡 服务地址: http://localhost:%s\n", cfg.Server.Port)
	fmt.Printf("🗄️  存储: %s，相似度阈值: %.2f\n\n", driver, cfg.Analysis.SimilarityThreshold)

	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal(err)
	}
}
