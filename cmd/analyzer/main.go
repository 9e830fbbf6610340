package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"api-analyzer/internal/ai"
	"api-analyzer/internal/analyzer"
	"api-analyzer/internal/config"
	"api-analyzer/internal/loader"
	"api-analyzer/internal/renderer"
	"api-analyzer/internal/store"
)

var (
	configPath string
	driver     string
	dsn        string
	inputPath  string
	outputDir  string
	threshold  float64
	enableAI   bool
	aiAPIKey   string
	format     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "api-analyzer",
		Short: "API 端点关系分析器",
		Long:  "分析多个服务的 API 端点，发现公共字段、相似结构和数据流关系，生成关系图和字段报告",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "存储类型 (mysql/sqlserver/sqlite3，留空为内存)")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "存储连接字符串")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "导入语料（存储为空时）、分析关系并生成报告",
		Run:   runScan,
	}
	scanCmd.Flags().StringVar(&inputPath, "input", "", "语料文件 (.json/.yaml)")
	scanCmd.Flags().StringVar(&outputDir, "output", "./output", "输出目录")
	scanCmd.Flags().Float64Var(&threshold, "threshold", -1, "相似度阈值（默认取配置）")
	scanCmd.Flags().BoolVar(&enableAI, "enable-ai", false, "启用 AI 字段分类（需要 API Key）")
	scanCmd.Flags().StringVar(&aiAPIKey, "ai-key", "", "AI API Key（或使用环境变量 DASHSCOPE_API_KEY）")
	scanCmd.MarkFlagRequired("input")

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "把语料导入存储",
		Run:   runImport,
	}
	importCmd.Flags().StringVar(&inputPath, "input", "", "语料文件 (.json/.yaml)")
	importCmd.MarkFlagRequired("input")

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "重新计算存储中所有端点的关系",
		Run:   runAnalyze,
	}
	analyzeCmd.Flags().Float64Var(&threshold, "threshold", -1, "相似度阈值（默认取配置）")

	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "输出关系图",
		Run:   runGraph,
	}
	graphCmd.Flags().StringVar(&format, "format", "json", "输出格式 (json/mermaid)")

	fieldsCmd := &cobra.Command{
		Use:   "fields",
		Short: "输出跨服务字段报告",
		Run:   runFields,
	}
	fieldsCmd.Flags().BoolVar(&enableAI, "enable-ai", false, "启用 AI 字段分类（需要 API Key）")
	fieldsCmd.Flags().StringVar(&aiAPIKey, "ai-key", "", "AI API Key（或使用环境变量 DASHSCOPE_API_KEY）")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "输出关系统计",
		Run:   runStats,
	}

	rootCmd.AddCommand(scanCmd, importCmd, analyzeCmd, graphCmd, fieldsCmd, statsCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// loadConfig 读取配置，命令行参数优先
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if driver != "" {
		cfg.Store.Driver = driver
	}
	if dsn != "" {
		cfg.Store.DSN = dsn
	}
	if threshold >= 0 {
		cfg.Analysis.SimilarityThreshold = threshold
	}
	if enableAI {
		cfg.AI.Enabled = true
	}
	if aiAPIKey != "" {
		cfg.AI.APIKey = aiAPIKey
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("配置无效: %v", err)
	}
	return cfg
}

func openStore(cfg *config.Config) store.Store {
	s, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		log.Fatalf("打开存储失败: %v", err)
	}
	return s
}

// newAnalyzer 按配置创建分析器，开启 AI 时使用混合推断
func newAnalyzer(cfg *config.Config, s store.Store) *analyzer.RelationshipAnalyzer {
	opts := []analyzer.Option{
		analyzer.WithThreshold(cfg.Analysis.SimilarityThreshold),
		analyzer.WithTopFields(cfg.Analysis.TopFields),
		analyzer.WithMostConnected(cfg.Analysis.MostConnected),
	}
	if cfg.AI.Enabled {
		if cfg.AI.APIKey == "" {
			fmt.Println("⚠️  未提供 API Key，跳过 AI 分类")
			fmt.Println("   提示：使用 --ai-key 或设置环境变量 DASHSCOPE_API_KEY")
		} else {
			fmt.Println("🤖 启用 AI 字段分类")
			client := ai.NewAlibabaClientWithConfig(cfg.AI.APIKey, cfg.AI.Endpoint, cfg.AI.Model)
			opts = append(opts, analyzer.WithFieldTypeInferrer(analyzer.NewHybridInferrer(client, nil)))
		}
	}
	return analyzer.NewRelationshipAnalyzer(s, opts...)
}

func importCorpus(s store.Store, path string) {
	fmt.Printf("📥 读取语料 %s...\n", path)
	corpus, err := loader.Load(path)
	if err != nil {
		log.Fatalf("读取语料失败: %v", err)
	}
	result, err := loader.Import(s, corpus)
	if err != nil {
		log.Fatalf("导入失败: %v", err)
	}
	fmt.Printf("✓ 导入 %d 个服务，%d 个端点\n", result.Services, result.Endpoints)
}

func runScan(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	fmt.Println("🔍 开始分析 API 语料...")

	// 1. 导入，持久化存储中已有语料时沿用现有数据
	corpus, err := loader.Load(inputPath)
	if err != nil {
		log.Fatalf("读取语料失败: %v", err)
	}
	result, imported, err := loader.ImportIfEmpty(s, corpus)
	if err != nil {
		log.Fatalf("导入失败: %v", err)
	}
	if imported {
		fmt.Printf("✓ 导入 %d 个服务，%d 个端点\n", result.Services, result.Endpoints)
	} else {
		fmt.Println("⚠️  存储中已有服务，跳过导入（如需重新导入请先清空存储）")
	}
	a := newAnalyzer(cfg, s)

	// 2. 分析关系
	fmt.Println("\n🔗 分析端点关系...")
	summary, err := a.AnalyzeAll()
	if err != nil {
		log.Fatalf("分析关系失败: %v", err)
	}
	fmt.Printf("✓ 公共字段: %d，相似结构: %d，数据流: %d\n",
		summary.CommonFieldsFound, summary.SimilarSchemas, summary.DataFlowPatterns)

	// 3. 关系图
	fmt.Println("\n🔨 构建关系图...")
	view, err := a.BuildRelationshipGraph()
	if err != nil {
		log.Fatalf("构建关系图失败: %v", err)
	}
	fmt.Printf("✓ 节点 %d，边 %d，密度 %.4f，连通分量 %d\n",
		view.TotalNodes, view.TotalEdges, view.Density, view.ConnectedComponents)

	// 4. 字段报告
	fmt.Println("\n📋 分析跨服务字段...")
	fields, err := a.AnalyzeCommonFieldsAcrossServices()
	if err != nil {
		log.Fatalf("分析字段失败: %v", err)
	}
	fmt.Printf("✓ 唯一字段 %d 个，跨服务字段 %d 个\n", fields.TotalUniqueFields, fields.CrossServiceFields)

	stats, err := a.Statistics()
	if err != nil {
		log.Fatalf("统计失败: %v", err)
	}

	// 5. 输出结果
	fmt.Println("\n📝 生成输出文件...")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Fatalf("创建输出目录失败: %v", err)
	}

	report := &renderer.Report{
		Summary:    summary,
		Statistics: stats,
		Graph:      view,
		Fields:     fields,
	}
	if err := report.LoadCatalog(s); err != nil {
		log.Fatalf("生成输出失败: %v", err)
	}

	writeJSON("relationships.json", report.Relationships)
	writeJSON("graph.json", view)
	writeJSON("fields.json", fields)

	md := renderer.NewEnhancedMarkdownRenderer(cfg.AIEnabled()).Render(report)
	writeFile("report.md", []byte(md))

	mermaid := renderer.NewMermaidRenderer().Render(view, report.ServiceNames())
	writeFile("graph.mmd", []byte(mermaid))

	fmt.Println("\n✅ 分析完成！")
}

func runImport(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()
	importCorpus(s, inputPath)
}

func runAnalyze(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	summary, err := newAnalyzer(cfg, s).AnalyzeAll()
	if err != nil {
		log.Fatalf("分析关系失败: %v", err)
	}
	printJSON(summary)
}

func runGraph(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	view, err := newAnalyzer(cfg, s).BuildRelationshipGraph()
	if err != nil {
		log.Fatalf("构建关系图失败: %v", err)
	}

	switch format {
	case "json":
		data, err := view.ToJSON()
		if err != nil {
			log.Fatalf("序列化失败: %v", err)
		}
		fmt.Println(string(data))
	case "mermaid":
		services, err := s.ListServices()
		if err != nil {
			log.Fatalf("读取服务失败: %v", err)
		}
		names := (&renderer.Report{Services: services}).ServiceNames()
		fmt.Print(renderer.NewMermaidRenderer().Render(view, names))
	default:
		log.Fatalf("不支持的输出格式: %s", format)
	}
}

func runFields(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	report, err := newAnalyzer(cfg, s).AnalyzeCommonFieldsAcrossServices()
	if err != nil {
		log.Fatalf("分析字段失败: %v", err)
	}
	printJSON(report)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	stats, err := newAnalyzer(cfg, s).Statistics()
	if err != nil {
		log.Fatalf("统计失败: %v", err)
	}
	printJSON(stats)
}

func writeJSON(name string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("序列化 %s 失败: %v", name, err)
	}
	writeFile(name, data)
}

func writeFile(name string, data []byte) {
	path := filepath.Join(outputDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Fatalf("写入 %s 失败: %v", path, err)
	}
	fmt.Printf("✓ %s\n", path)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("序列化失败: %v", err)
	}
	fmt.Println(string(data))
}
