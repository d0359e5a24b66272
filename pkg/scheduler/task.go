package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"NewsRadar/pkg/batch"
	"NewsRadar/pkg/store"
)

// BatchRunner 每日批处理
type BatchRunner interface {
	Run(ctx context.Context, opts batch.RunOptions) (*batch.RunResult, error)
}

// Rescorer 有效分数重算
type Rescorer interface {
	RecalculateAll(ctx context.Context, now time.Time) (int, error)
}

// Scheduler 任务调度器
type Scheduler struct {
	cron     *cron.Cron
	runner   BatchRunner
	rescorer Rescorer
	logger   *slog.Logger
	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewScheduler 创建任务调度器，cron 表达式支持秒字段
func NewScheduler(runner BatchRunner, rescorer Rescorer, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(cron.NewParser(cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		),
		runner:   runner,
		rescorer: rescorer,
		logger:   logger.With("component", "scheduler"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Schedule 注册每日批处理与分数重算任务，表达式为空时跳过对应任务
func (s *Scheduler) Schedule(dailyCron, rescoreCron string) error {
	if dailyCron != "" {
		if _, err := s.cron.AddFunc(dailyCron, s.RunDaily); err != nil {
			return fmt.Errorf("注册每日批处理任务失败: %w", err)
		}
	}
	if rescoreCron != "" {
		if _, err := s.cron.AddFunc(rescoreCron, s.Rescore); err != nil {
			return fmt.Errorf("注册分数重算任务失败: %w", err)
		}
	}
	return nil
}

// Start 启动调度器
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("调度器已启动", "jobs", len(s.cron.Entries()))
}

// Stop 停止调度器，取消进行中的任务并等待其退出
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// RunDaily 执行当日批处理；当日已完成则跳过，上一次调度未结束时不重入
func (s *Scheduler) RunDaily() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("上一次批处理尚未结束，跳过本次调度")
		return
	}
	defer s.running.Store(false)

	res, err := s.runner.Run(s.ctx, batch.RunOptions{SkipIfCompleted: true})
	switch {
	case errors.Is(err, store.ErrDigestRunning):
		s.logger.Warn("当日批处理正在其他进程中运行")
	case err != nil:
		s.logger.Error("定时批处理失败", "error", err)
	case res.Skipped:
		s.logger.Info("当日批处理已完成", "batch_id", res.BatchID)
	default:
		s.logger.Info("定时批处理完成", "batch_id", res.BatchID, "curated", len(res.Curated))
	}
}

// Rescore 按当前时间重算有效分数
func (s *Scheduler) Rescore() {
	n, err := s.rescorer.RecalculateAll(s.ctx, time.Now())
	if err != nil {
		s.logger.Error("分数重算失败", "error", err)
		return
	}
	s.logger.Debug("分数重算完成", "updated", n)
}
