package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"NewsRadar/pkg/api"
	"NewsRadar/pkg/app"
	"NewsRadar/pkg/config"
	"NewsRadar/pkg/logging"
	"NewsRadar/pkg/scheduler"
)

func main() {
	_ = godotenv.Load()

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v\n", err)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("启动API服务", "env", cfg.App.Env, "storage", cfg.Storage.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("初始化失败", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Monitor.CheckAll(ctx)
	a.Monitor.StartChecking(ctx, time.Minute)

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(a.Coordinator, a.Lifecycle, cfg.Location(), logger)
		if err := sched.Schedule(cfg.Scheduler.DailyCron, cfg.Scheduler.RescoreCron); err != nil {
			logger.Error("注册定时任务失败", "error", err)
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
	}

	handlers := api.NewHandlers(ctx, a.Store, a.Coordinator, a.Monitor, cfg.Location(), logger)
	server := api.NewServer(api.ServerConfig{
		Port:         cfg.API.Port,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		AllowOrigins: cfg.API.AllowOrigins,
	}, logger)
	server.SetupRoutes(handlers)

	if err := server.Start(ctx); err != nil {
		logger.Error("API服务器异常退出", "error", err)
	}
	handlers.Wait()
}
