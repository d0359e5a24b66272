package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"NewsRadar/pkg/app"
	"NewsRadar/pkg/batch"
	"NewsRadar/pkg/config"
	"NewsRadar/pkg/logging"
	"NewsRadar/pkg/store"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "配置文件路径，默认按 APP_ENV 选择")
	lookback := flag.Int("lookback", 0, "回溯小时数，0 使用配置值")
	force := flag.Bool("force", false, "重新处理当日已提交的主题")
	skipCompleted := flag.Bool("skip-completed", false, "当日已完成时直接退出")
	rescore := flag.Bool("rescore", false, "只重算有效分数，不运行批处理")
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

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("初始化失败", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if *rescore {
		n, err := a.Lifecycle.RecalculateAll(ctx, time.Now())
		if err != nil {
			logger.Error("分数重算失败", "error", err)
			os.Exit(1)
		}
		logger.Info("分数重算完成", "updated", n)
		return
	}

	res, err := a.Coordinator.Run(ctx, batch.RunOptions{
		LookbackHours:   *lookback,
		Force:           *force,
		SkipIfCompleted: *skipCompleted,
	})
	if res != nil {
		printResult(res)
	}
	switch {
	case errors.Is(err, store.ErrDigestRunning):
		logger.Warn("当日批处理正在运行")
		os.Exit(2)
	case err != nil:
		logger.Error("批处理失败", "error", err)
		os.Exit(1)
	}
}

// printResult 输出结果摘要，精选新闻正文不输出
func printResult(res *batch.RunResult) {
	out := *res
	out.Curated = nil
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}
