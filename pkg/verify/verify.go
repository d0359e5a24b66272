package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsRadar/pkg/model"
)

// DefaultThreshold 判定有效变动的百分比阈值
const DefaultThreshold = 0.3

// ErrPriceUnavailable 无法获取价格数据
var ErrPriceUnavailable = errors.New("价格数据不可用")

// Window 价格变动的观察窗口
type Window struct {
	From time.Time
	To   time.Time
}

// PriceSource 获取某股票在窗口内的涨跌幅(百分比)，需支持未登记的股票
type PriceSource interface {
	PriceChange(ctx context.Context, symbol string, window Window) (float64, error)
}

// Horizoner 由只能覆盖固定时间跨度的价格源实现，与请求窗口无关
type Horizoner interface {
	Horizon() time.Duration
}

// HorizonOf 返回价格源实际覆盖的时间跨度，0 表示按请求窗口计算
func HorizonOf(src PriceSource) time.Duration {
	if h, ok := src.(Horizoner); ok {
		return h.Horizon()
	}
	return 0
}

// Result 单条预测的验证结果
type Result struct {
	Prediction   model.Prediction         `json:"prediction"`
	ActualChange *float64                 `json:"actual_change,omitempty"`
	Matched      bool                     `json:"matched"`
	Status       model.VerificationStatus `json:"status"`
	Detail       string                   `json:"detail"`
}

// TopicVerification 单个主题的验证汇总
type TopicVerification struct {
	Results    []Result         `json:"results"`
	Total      int              `json:"total"`
	Matched    int              `json:"matched"`
	Rate       float64          `json:"verification_rate"`
	Confidence model.Confidence `json:"confidence"`
	Multiplier float64          `json:"multiplier"`
}

// Engine 验证引擎
type Engine struct {
	prices    PriceSource
	threshold float64
	logger    *slog.Logger
}

// NewEngine 创建验证引擎，threshold<=0 时使用默认值
func NewEngine(prices PriceSource, threshold float64, logger *slog.Logger) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		prices:    prices,
		threshold: threshold,
		logger:    logger.With("component", "verify"),
	}
}

// IsMatched 方向判定，变动必须严格超过阈值
func IsMatched(expected model.Direction, change, threshold float64) bool {
	switch expected {
	case model.DirectionUp:
		return change > threshold
	case model.DirectionDown:
		return change < -threshold
	default:
		return false
	}
}

// Confidence 由验证通过率得到置信度与系数
func Confidence(rate float64, total int) (model.Confidence, float64) {
	switch {
	case total == 0:
		return model.ConfidenceUnknown, 0.9
	case rate >= 0.7:
		return model.ConfidenceHigh, 1.2
	case rate >= 0.4:
		return model.ConfidenceMedium, 1.0
	default:
		return model.ConfidenceLow, 0.7
	}
}

// VerifyTopic 逐条验证预测；价格不可用的记为 unverified，不中断
func (e *Engine) VerifyTopic(ctx context.Context, predictions []model.Prediction, window Window) TopicVerification {
	tv := TopicVerification{Total: len(predictions)}
	changes := make(map[string]float64)
	failures := make(map[string]error)

	for _, p := range predictions {
		symbol := strings.ToUpper(strings.TrimSpace(p.Symbol))
		r := Result{Prediction: p}

		change, ok := changes[symbol]
		err := failures[symbol]
		if !ok && err == nil {
			change, err = e.prices.PriceChange(ctx, symbol, window)
			if err != nil {
				failures[symbol] = err
			} else {
				changes[symbol] = change
			}
		}

		if err != nil {
			r.Status = model.VerificationUnverified
			r.Detail = fmt.Sprintf("%s 价格数据不可用: %v", symbol, err)
			e.logger.Warn("价格获取失败", "symbol", symbol, "error", err)
		} else {
			c := change
			r.ActualChange = &c
			r.Matched = IsMatched(p.Expected, change, e.threshold)
			r.Status = model.VerificationUnmatched
			if r.Matched {
				r.Status = model.VerificationMatched
				tv.Matched++
			}
			r.Detail = fmt.Sprintf("%s 预期 %s，实际 %+.2f%%", symbol, p.Expected, change)
		}
		tv.Results = append(tv.Results, r)
	}

	if tv.Total > 0 {
		tv.Rate = float64(tv.Matched) / float64(tv.Total)
	}
	tv.Confidence, tv.Multiplier = Confidence(tv.Rate, tv.Total)
	return tv
}

// Logs 转换为验证记录
func (tv TopicVerification) Logs(curatedID uint, digestDate, verifiedAt time.Time) []model.VerificationLog {
	logs := make([]model.VerificationLog, 0, len(tv.Results))
	for _, r := range tv.Results {
		logs = append(logs, model.VerificationLog{
			CuratedNewsID:     curatedID,
			DigestDate:        digestDate,
			Symbol:            strings.ToUpper(r.Prediction.Symbol),
			ExpectedDirection: r.Prediction.Expected,
			ActualChange:      r.ActualChange,
			Matched:           r.Matched,
			Status:            r.Status,
			Detail:            r.Detail,
			VerifiedAt:        verifiedAt,
		})
	}
	return logs
}
