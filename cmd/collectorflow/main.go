// =============================================================================
// CollectorFlow 主入口
// =============================================================================
// 命令行入口：一次性批量采集、数据库迁移、版本信息
//
// 使用方法:
//
//	collectorflow run --query "best crm 2026" --collectors chatgpt,claude
//	collectorflow run --config config.yaml --query-id q-1 --collectors chatgpt
//	collectorflow migrate up                  # 运行数据库迁移
//	collectorflow migrate down                # 回滚最后一次迁移
//	collectorflow migrate status              # 查看迁移状态
//	collectorflow version                     # 显示版本信息
// =============================================================================
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BaSui01/collectorflow"
	"github.com/BaSui01/collectorflow/config"
	"github.com/BaSui01/collectorflow/types"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runCollect(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🚀 run 命令
// =============================================================================

func runCollect(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	queryID := fs.String("query-id", "", "Query id (optional, resolved from metadata store)")
	brandID := fs.String("brand-id", "", "Brand id (optional)")
	queryText := fs.String("query", "", "Query text")
	collectors := fs.String("collectors", "", "Comma-separated collector list (e.g. chatgpt,claude)")
	country := fs.String("country", "", "Two-letter country code for scrapers")
	wait := fs.Duration("wait", 0, "Wait up to this long for async snapshot completions")
	fs.Parse(args)

	if *queryText == "" && *queryID == "" {
		fmt.Fprintln(os.Stderr, "Either --query or --query-id is required")
		os.Exit(1)
	}
	if *collectors == "" {
		fmt.Fprintln(os.Stderr, "--collectors is required")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	app, err := collectorflow.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}

	req := &types.Request{
		QueryID:    *queryID,
		BrandID:    *brandID,
		QueryText:  *queryText,
		Country:    *country,
		Collectors: splitList(*collectors),
	}

	out, err := app.Run(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Collection failed: %v\n", err)
		os.Exit(1)
	}

	if *wait > 0 && out.Async > 0 {
		fmt.Fprintf(os.Stderr, "Waiting for %d async snapshot(s)...\n", out.Async)
		waitForAsync(ctx, app, out, *wait)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
		os.Exit(1)
	}

	if out.Failed > 0 {
		os.Exit(1)
	}
}

// waitForAsync 轮询状态库直到异步执行终态或超时
func waitForAsync(ctx context.Context, app *collectorflow.App, out *collectorflow.BatchResult, budget time.Duration) {
	deadline := time.Now().Add(budget)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pending := 0
		for i, res := range out.Results {
			if !res.Async() || res.Status.IsTerminal() {
				continue
			}
			exec, err := app.State().GetExecution(ctx, res.ExecutionID)
			if err != nil {
				continue
			}
			if exec.Status.IsTerminal() {
				out.Results[i].Status = exec.Status
				continue
			}
			pending++
		}
		if pending == 0 {
			return
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("CollectorFlow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`CollectorFlow - answer-engine collection orchestrator

Usage:
  collectorflow <command> [options]

Commands:
  run       Run a one-shot collection batch
  migrate   Database migration commands
  version   Show version information
  help      Show this help message

Options for 'run':
  --config <path>      Path to configuration file (YAML)
  --query <text>       Query text to collect answers for
  --query-id <id>      Query id resolved from the metadata store
  --brand-id <id>      Brand id for enrichment and scoring
  --collectors <list>  Comma-separated collectors (chatgpt, google_aio,
                       perplexity, claude, gemini, grok, bing_copilot)
  --country <cc>       Two-letter country code for scraper requests
  --wait <duration>    Wait for async snapshot completions (e.g. 10m)

Migration subcommands:
  migrate up        Apply all pending migrations
  migrate down      Rollback the last migration
  migrate status    Show migration status
  migrate version   Show current migration version
  migrate goto <v>  Migrate to a specific version
  migrate force <v> Force set migration version
  migrate reset     Rollback all migrations

Examples:
  collectorflow run --query "best crm 2026" --collectors chatgpt,claude
  collectorflow run --config /etc/collectorflow/config.yaml --collectors chatgpt --query "q"
  collectorflow migrate up
  collectorflow migrate status`)
}
