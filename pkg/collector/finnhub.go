package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	finnhub "github.com/Finnhub-Stock-API/finnhub-go/v2"

	"NewsRadar/pkg/model"
	"NewsRadar/pkg/verify"
)

func newFinnhubAPI(apiKey string) *finnhub.DefaultApiService {
	cfg := finnhub.NewConfiguration()
	cfg.AddDefaultHeader("X-Finnhub-Token", apiKey)
	return finnhub.NewAPIClient(cfg).DefaultApi
}

// FinnhubSource Finnhub 市场新闻
type FinnhubSource struct {
	client   *finnhub.DefaultApiService
	category string
}

// NewFinnhubSource category 为空时使用 general
func NewFinnhubSource(apiKey, category string) *FinnhubSource {
	if category == "" {
		category = "general"
	}
	return &FinnhubSource{client: newFinnhubAPI(apiKey), category: category}
}

func (f *FinnhubSource) Name() string { return "Finnhub" }

func (f *FinnhubSource) Fetch(ctx context.Context, since time.Time) ([]model.RawNews, error) {
	res, _, err := f.client.MarketNews(ctx).Category(f.category).Execute()
	if err != nil {
		return nil, fmt.Errorf("获取Finnhub新闻失败: %w", err)
	}

	var items []model.RawNews
	for _, n := range res {
		if n.Headline == nil || n.Url == nil {
			continue
		}
		item := model.RawNews{
			Title:  strings.TrimSpace(*n.Headline),
			URL:    strings.TrimSpace(*n.Url),
			Source: f.Name(),
		}
		if n.Datetime != nil {
			item.PublishedAt = time.Unix(*n.Datetime, 0).UTC()
		}
		if item.PublishedAt.Before(since) {
			continue
		}
		if n.Source != nil && *n.Source != "" {
			item.Source = *n.Source
		}
		if n.Summary != nil {
			item.Summary = *n.Summary
		}
		item.Region = InferRegion(item.Source)
		items = append(items, item)
	}
	return items, nil
}

// FinnhubPriceSource 以 Finnhub 报价计算涨跌幅：最新价相对前收盘价
type FinnhubPriceSource struct {
	client *finnhub.DefaultApiService
}

func NewFinnhubPriceSource(apiKey string) *FinnhubPriceSource {
	return &FinnhubPriceSource{client: newFinnhubAPI(apiKey)}
}

var _ verify.PriceSource = (*FinnhubPriceSource)(nil)

// Horizon 报价只反映最近一个交易日
func (f *FinnhubPriceSource) Horizon() time.Duration { return 24 * time.Hour }

// PriceChange 报价接口只提供最近一个交易日，窗口参数仅用于缓存键
func (f *FinnhubPriceSource) PriceChange(ctx context.Context, symbol string, window verify.Window) (float64, error) {
	q, _, err := f.client.Quote(ctx).Symbol(strings.ToUpper(symbol)).Execute()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", verify.ErrPriceUnavailable, symbol, err)
	}
	current, prevClose := float64(q.GetC()), float64(q.GetPc())
	if prevClose == 0 || current == 0 {
		// 未知代码时 Finnhub 返回全零报价
		return 0, fmt.Errorf("%w: %s", verify.ErrPriceUnavailable, symbol)
	}
	return (current - prevClose) / prevClose * 100, nil
}
