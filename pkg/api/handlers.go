package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"NewsRadar/pkg/batch"
	"NewsRadar/pkg/model"
	"NewsRadar/pkg/monitor"
	"NewsRadar/pkg/scoring"
	"NewsRadar/pkg/store"
)

// maxDisplayWindow 最长展示窗口，更早的非置顶记录不会出现在今日列表
const maxDisplayWindow = 7 * 24 * time.Hour

// BatchRunner 触发批处理
type BatchRunner interface {
	Run(ctx context.Context, opts batch.RunOptions) (*batch.RunResult, error)
}

// Handlers API处理程序
type Handlers struct {
	store   store.Store
	runner  BatchRunner
	monitor *monitor.Monitor
	loc     *time.Location
	logger  *slog.Logger
	now     func() time.Time

	// 异步批处理使用的上下文，服务关闭时取消
	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewHandlers 创建新的API处理程序
func NewHandlers(ctx context.Context, st store.Store, runner BatchRunner, mon *monitor.Monitor, loc *time.Location, logger *slog.Logger) *Handlers {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		store:   st,
		runner:  runner,
		monitor: mon,
		loc:     loc,
		logger:  logger.With("component", "api"),
		now:     time.Now,
		baseCtx: ctx,
	}
}

// Wait 等待异步批处理结束
func (h *Handlers) Wait() {
	h.wg.Wait()
}

// HealthCheck 健康检查处理程序
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// ReadinessCheck 就绪检查，必需组件不健康时返回 503
func (h *Handlers) ReadinessCheck(c *gin.Context) {
	if h.monitor == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}
	statuses := h.monitor.CheckAll(c.Request.Context())
	if !monitor.Ready(statuses) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": statuses})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": statuses})
}

// NewsItem 带展示信息的精选新闻
type NewsItem struct {
	model.CuratedNews
	DisplayScore   float64  `json:"display_score"`
	Label          string   `json:"label"`
	DisplayDays    int      `json:"display_days"`
	Unlimited      bool     `json:"display_unlimited"`
	RemainingHours *float64 `json:"remaining_hours,omitempty"`
}

func newsItem(n model.CuratedNews, now time.Time) NewsItem {
	eff := scoring.Effective(&n, now)
	n.EffectiveScore = eff
	n.DisplayRecommendation = string(scoring.Label(eff))
	item := NewsItem{
		CuratedNews:  n,
		DisplayScore: scoring.DisplayScore(eff),
		Label:        n.DisplayRecommendation,
		DisplayDays:  scoring.DisplayDays(eff),
	}
	remaining, unlimited := scoring.RemainingDisplay(&n, now)
	item.Unlimited = unlimited
	if !unlimited {
		hours := remaining.Hours()
		item.RemainingHours = &hours
	}
	return item
}

// GetTodayNews 当前展示的精选新闻：置顶优先，其次有效分数、首次出现时间倒序
func (h *Handlers) GetTodayNews(c *gin.Context) {
	now := h.now()
	items, err := h.store.TodayCurated(c.Request.Context(), now.Add(-maxDisplayWindow))
	if err != nil {
		h.logger.Error("查询今日精选失败", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询今日精选失败"})
		return
	}

	shown := scoring.Today(items, now)
	out := make([]NewsItem, 0, len(shown))
	for _, n := range shown {
		out = append(out, newsItem(n, now))
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  out,
		"total": len(out),
	})
}

// GetNews 单条精选新闻及其验证记录
func (h *Handlers) GetNews(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	n, err := h.store.GetCurated(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, err, "查询精选新闻失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newsItem(*n, h.now())})
}

// PinNews 置顶
func (h *Handlers) PinNews(c *gin.Context) {
	h.setPinned(c, true)
}

// UnpinNews 取消置顶
func (h *Handlers) UnpinNews(c *gin.Context) {
	h.setPinned(c, false)
}

// setPinned 只修改置顶字段，连续报道天数与历史记录不变
func (h *Handlers) setPinned(c *gin.Context, pinned bool) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	now := h.now()
	n, err := h.store.SetPinned(c.Request.Context(), id, pinned, now)
	if err != nil {
		h.storeError(c, err, "更新置顶状态失败")
		return
	}
	h.logger.Info("置顶状态已更新", "curated_id", id, "pinned", pinned)
	c.JSON(http.StatusOK, gin.H{"data": newsItem(*n, now)})
}

// GetDigestHistory 按日期闭区间查询批处理记录，日期格式 YYYY-MM-DD
func (h *Handlers) GetDigestHistory(c *gin.Context) {
	from, err := parseDate(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from参数格式错误，应为YYYY-MM-DD"})
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to参数格式错误，应为YYYY-MM-DD"})
		return
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from不能晚于to"})
		return
	}

	digests, err := h.store.DigestHistory(c.Request.Context(), from, to)
	if err != nil {
		h.logger.Error("查询批处理历史失败", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询批处理历史失败"})
		return
	}
	if digests == nil {
		digests = []model.DailyDigest{}
	}
	c.JSON(http.StatusOK, gin.H{"data": digests})
}

// GetLatestDigest 最近一次成功完成的批处理
func (h *Handlers) GetLatestDigest(c *gin.Context) {
	dg, err := h.store.LatestCompletedDigest(c.Request.Context())
	if err != nil {
		h.storeError(c, err, "查询最新批处理失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dg})
}

// GetStats 某日分析统计，默认当日
func (h *Handlers) GetStats(c *gin.Context) {
	date, err := parseDate(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date参数格式错误，应为YYYY-MM-DD"})
		return
	}
	if date.IsZero() {
		date = model.DigestDay(h.now(), h.loc)
	}

	stats, err := h.store.AnalysisStats(c.Request.Context(), date)
	if err != nil {
		h.logger.Error("查询分析统计失败", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询分析统计失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// RunBatchRequest 手动触发批处理
type RunBatchRequest struct {
	LookbackHours int  `json:"lookback_hours" binding:"omitempty,min=1,max=168"`
	Force         bool `json:"force"`
	Async         bool `json:"async"`
}

// RunBatch 同步执行时返回结果摘要；异步执行时立即返回 202 和预先分配的 batch_id，
// 进度通过 /digests 查询
func (h *Handlers) RunBatch(c *gin.Context) {
	var req RunBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "无效的请求参数: " + err.Error(),
		})
		return
	}
	opts := batch.RunOptions{LookbackHours: req.LookbackHours, Force: req.Force}

	if req.Async {
		date := model.DigestDay(h.now(), h.loc)
		if dg, err := h.store.GetDigest(c.Request.Context(), date); err == nil && dg.Status == model.DigestRunning {
			c.JSON(http.StatusConflict, gin.H{"error": store.ErrDigestRunning.Error()})
			return
		}
		opts.BatchID = uuid.New().String()
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			if _, err := h.runner.Run(h.baseCtx, opts); err != nil {
				h.logger.Error("异步批处理失败", "batch_id", opts.BatchID, "error", err)
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"data": RunSummary{
			BatchID:    opts.BatchID,
			DigestDate: date.Format(time.DateOnly),
			Status:     model.DigestRunning,
		}})
		return
	}

	res, err := h.runner.Run(c.Request.Context(), opts)
	switch {
	case errors.Is(err, store.ErrDigestRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil && res != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "data": summary(res)})
	case err != nil:
		h.logger.Error("批处理失败", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"data": summary(res)})
	}
}

// RunSummary 批处理结果摘要
type RunSummary struct {
	BatchID    string                    `json:"batch_id"`
	DigestDate string                    `json:"digest_date"`
	Status     model.DigestStatus        `json:"status"`
	Skipped    bool                      `json:"skipped"`
	Digest     *model.DailyDigest        `json:"digest,omitempty"`
	Stats      *store.AnalysisStats      `json:"stats,omitempty"`
	Window     *batch.VerificationWindow `json:"verification_window,omitempty"`
}

func summary(res *batch.RunResult) RunSummary {
	return RunSummary{
		BatchID:    res.BatchID,
		DigestDate: res.DigestDate.Format(time.DateOnly),
		Status:     res.Status,
		Skipped:    res.Skipped,
		Digest:     res.Digest,
		Stats:      res.Stats,
		Window:     &res.Window,
	}
}

func (h *Handlers) storeError(c *gin.Context, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error(msg, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的新闻ID"})
		return 0, false
	}
	return uint(id), true
}

// parseDate 空字符串返回零值
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, value)
}
