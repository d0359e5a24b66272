// Package app 按配置组装各组件，供 cmd/api 与 cmd/batch 共用
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"NewsRadar/pkg/batch"
	"NewsRadar/pkg/cache"
	"NewsRadar/pkg/cluster"
	"NewsRadar/pkg/collector"
	"NewsRadar/pkg/config"
	"NewsRadar/pkg/database"
	"NewsRadar/pkg/graph"
	"NewsRadar/pkg/llm"
	"NewsRadar/pkg/messaging"
	"NewsRadar/pkg/monitor"
	"NewsRadar/pkg/pipeline"
	"NewsRadar/pkg/repository"
	"NewsRadar/pkg/scoring"
	"NewsRadar/pkg/store"
	"NewsRadar/pkg/verify"
)

const day = 24 * time.Hour

// App 组装完成的组件
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Store       store.Store
	Source      collector.ArticleSource
	Coordinator *batch.Coordinator
	Lifecycle   *scoring.Lifecycle
	Monitor     *monitor.Monitor

	closers []func() error
}

// New 按配置创建全部组件。数据库与 LLM 是必需的；Redis、NATS、
// Finnhub 与爬虫频道不可用时降级运行并记录警告
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Monitor: monitor.NewMonitor(nil, logger),
	}

	if err := a.setupStore(); err != nil {
		a.Close()
		return nil, err
	}

	client, err := llm.NewClient(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("创建LLM客户端失败: %w", err)
	}

	a.Source = a.setupSources()
	publisher := a.setupPublisher(ctx)
	prices := a.setupPrices(ctx)

	orch := pipeline.NewOrchestrator(
		llm.NewStageInvoker(client, logger),
		verify.NewEngine(prices, cfg.Pipeline.VerificationThreshold, logger),
		graph.Default(),
		pipeline.Options{
			ScreenCap:       cfg.Pipeline.ScreenCap,
			ScreenBatchSize: cfg.Pipeline.ScreenBatchSize,
			Concurrency:     cfg.Pipeline.Concurrency,
			MaxAttempts:     cfg.Pipeline.MaxAttempts,
			BackoffBase:     cfg.Pipeline.BackoffBase,
		},
		logger,
	)

	a.Lifecycle = scoring.NewLifecycle(a.Store,
		time.Duration(cfg.Scoring.ContinuityLookbackDays)*day,
		time.Duration(cfg.Scoring.RescoreRetentionDays)*day,
		logger)

	a.Coordinator = batch.NewCoordinator(batch.Deps{
		Source:       a.Source,
		Store:        a.Store,
		Clusterer:    cluster.NewClusterer(cfg.Pipeline.SimilarityThreshold, logger),
		Orchestrator: orch,
		Lifecycle:    a.Lifecycle,
		Publisher:    publisher,
	}, batch.Options{
		Watchlist:     cfg.Batch.Watchlist,
		Location:      cfg.Location(),
		LookbackHours: cfg.Batch.LookbackHours,
		StaleAfter:    cfg.Batch.StaleRunTimeout,
		RunTimeout:    cfg.Batch.RunTimeout,
		PriceHorizon:  verify.HorizonOf(prices),
	}, logger)

	return a, nil
}

func (a *App) setupStore() error {
	if a.Config.Storage.Driver == "memory" {
		a.Logger.Warn("使用内存存储，进程退出后数据丢失")
		a.Store = repository.NewRepository()
		a.Monitor.Register("database", true, func(ctx context.Context) error { return nil })
		return nil
	}

	db, err := database.NewPostgresDB(a.Config)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, db.Close)
	if err := db.AutoMigrate(); err != nil {
		return err
	}
	a.Store = db.Store()
	a.Monitor.Register("database", true, db.Ping)
	return nil
}

func (a *App) setupSources() collector.ArticleSource {
	src, closers := NewSources(a.Config, a.Logger)
	a.closers = append(a.closers, closers...)
	return src
}

// NewSources 按配置创建新闻源：RSS、Finnhub 与爬虫频道。返回的关闭函数需由调用方执行
func NewSources(cfg *config.Config, logger *slog.Logger) (*collector.MultiSource, []func() error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	var (
		sources []collector.ArticleSource
		closers []func() error
	)
	for _, feed := range cfg.Sources.RSS {
		region := feed.Region
		if region == "" {
			region = collector.InferRegion(feed.Name)
		}
		sources = append(sources, collector.NewRSSSource(feed.Name, feed.URL, region, httpClient))
	}

	if cfg.Sources.FinnhubAPIKey != "" {
		sources = append(sources, collector.NewFinnhubSource(cfg.Sources.FinnhubAPIKey, cfg.Sources.FinnhubCategory))
	} else {
		logger.Warn("未配置 FINNHUB_API_KEY，跳过 Finnhub 新闻源")
	}

	if cfg.NATS.URL != "" && cfg.NATS.ClusterID != "" {
		if crawler, err := startCrawler(cfg, logger); err != nil {
			logger.Warn("爬虫频道不可用", "error", err)
		} else {
			closers = append(closers, crawler.Stop)
			sources = append(sources, crawler)
		}
	}

	logger.Info("新闻源已配置", "count", len(sources))
	return collector.NewMultiSource(logger, sources...), closers
}

func startCrawler(cfg *config.Config, logger *slog.Logger) (*collector.CrawlerSource, error) {
	crawler, err := collector.NewCrawlerSource(cfg.NATS.URL, cfg.NATS.ClusterID, cfg.NATS.ClientID+"-crawler",
		cfg.NATS.CrawlerSubject, logger)
	if err != nil {
		return nil, err
	}
	if err := crawler.Start(); err != nil {
		_ = crawler.Stop()
		return nil, err
	}
	return crawler, nil
}

func (a *App) setupPublisher(ctx context.Context) messaging.Publisher {
	if a.Config.NATS.URL == "" {
		return messaging.NewMemoryPublisher()
	}
	nc, err := messaging.NewNATSClient(ctx, a.Config.NATS.URL, a.Logger)
	if err != nil {
		a.Logger.Warn("NATS不可用，事件只保存在内存中", "error", err)
		return messaging.NewMemoryPublisher()
	}
	a.closers = append(a.closers, nc.Close)
	a.Monitor.Register("nats", false, func(ctx context.Context) error {
		if !nc.IsConnected() {
			return errors.New("NATS连接断开")
		}
		return nil
	})
	return nc
}

func (a *App) setupPrices(ctx context.Context) verify.PriceSource {
	var prices verify.PriceSource = unavailablePrices{}
	if a.Config.Sources.FinnhubAPIKey != "" {
		prices = collector.NewFinnhubPriceSource(a.Config.Sources.FinnhubAPIKey)
	} else {
		a.Logger.Warn("未配置价格数据源，所有预测将记为无法验证")
	}

	if a.Config.Redis.URL == "" {
		return prices
	}
	rc, err := cache.NewClient(ctx, a.Config.Redis.URL)
	if err != nil {
		a.Logger.Warn("Redis不可用，价格不做缓存", "error", err)
		return prices
	}
	a.closers = append(a.closers, rc.Close)
	a.Monitor.Register("redis", false, func(ctx context.Context) error { return rc.Ping(ctx).Err() })
	return cache.NewPriceCache(prices, rc, a.Config.Redis.PriceTTL, a.Logger)
}

// Close 按创建的逆序释放资源
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("释放资源失败", "error", err)
		}
	}
	a.closers = nil
}

// unavailablePrices 未配置价格源时使用
type unavailablePrices struct{}

func (unavailablePrices) PriceChange(ctx context.Context, symbol string, window verify.Window) (float64, error) {
	return 0, verify.ErrPriceUnavailable
}
