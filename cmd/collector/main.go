package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"NewsRadar/pkg/app"
	"NewsRadar/pkg/collector"
	"NewsRadar/pkg/config"
	"NewsRadar/pkg/logging"
)

// sourceCount 单个来源的抓取数量
type sourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

type preview struct {
	Since   time.Time                 `json:"since"`
	Total   int                       `json:"total"`
	Sources []sourceCount             `json:"sources"`
	Balance collector.RegionalBalance `json:"balance"`
}

// 只抓取并统计新闻源，不写库也不调用LLM，用于检查新闻源配置
func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "配置文件路径，默认按 APP_ENV 选择")
	lookback := flag.Int("lookback", 0, "回溯小时数，0 使用配置值")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.Fatalf("加载配置失败: %v\n", err)
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, closers := app.NewSources(cfg, logger)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}()

	hours := *lookback
	if hours <= 0 {
		hours = cfg.Batch.LookbackHours
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	items, err := src.Fetch(ctx, since)
	if err != nil {
		logger.Error("抓取新闻失败", "error", err)
		os.Exit(1)
	}

	counts := make(map[string]int)
	for _, it := range items {
		counts[it.Source]++
	}
	out := preview{
		Since:   since,
		Total:   len(items),
		Balance: collector.CheckRegionalBalance(items),
	}
	for name, n := range counts {
		out.Sources = append(out.Sources, sourceCount{Source: name, Count: n})
	}
	sort.Slice(out.Sources, func(i, j int) bool {
		if out.Sources[i].Count != out.Sources[j].Count {
			return out.Sources[i].Count > out.Sources[j].Count
		}
		return out.Sources[i].Source < out.Sources[j].Source
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)

	if len(out.Balance.Deficiencies) > 0 {
		logger.Warn("区域分布不足", "regions", out.Balance.Deficiencies)
	}
}
