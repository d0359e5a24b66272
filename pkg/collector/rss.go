package collector

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsRadar/pkg/model"
)

// RSSSource RSS 2.0 / Atom 订阅源
type RSSSource struct {
	name   string
	url    string
	region string
	client *http.Client
}

// NewRSSSource client 为 nil 时使用 30 秒超时的默认客户端
func NewRSSSource(name, url, region string, client *http.Client) *RSSSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RSSSource{name: name, url: url, region: region, client: client}
}

func (r *RSSSource) Name() string { return r.name }

type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	// Atom
	Entries []atomEntry `xml:"entry"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Date        string `xml:"http://purl.org/dc/elements/1.1/ date"`
}

type atomEntry struct {
	Title string `xml:"title"`
	Links []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
}

func (r *RSSSource) Fetch(ctx context.Context, since time.Time) ([]model.RawNews, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("User-Agent", "NewsRadar/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("获取RSS %s 失败: %w", r.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("RSS %s 返回非200状态码: %d", r.name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	items, err := ParseFeed(body, r.name, r.region)
	if err != nil {
		return nil, fmt.Errorf("RSS %s: %w", r.name, err)
	}

	out := items[:0]
	for _, it := range items {
		if !it.PublishedAt.Before(since) {
			out = append(out, it)
		}
	}
	return out, nil
}

// ParseFeed 解析 RSS 或 Atom 文档；没有发布时间的条目视为当前时间
func ParseFeed(data []byte, source, region string) ([]model.RawNews, error) {
	var doc rssDocument
	dec := xml.NewDecoder(strings.NewReader(string(data)))
	dec.Strict = false
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) { return input, nil }
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("解析订阅源失败: %w", err)
	}

	now := time.Now().UTC()
	var items []model.RawNews
	for _, it := range doc.Channel.Items {
		published := parseFeedTime(it.PubDate, it.Date)
		if published.IsZero() {
			published = now
		}
		items = append(items, model.RawNews{
			Title:       stripHTML(it.Title),
			URL:         strings.TrimSpace(it.Link),
			Source:      source,
			Region:      region,
			PublishedAt: published,
			Summary:     stripHTML(it.Description),
		})
	}
	for _, e := range doc.Entries {
		published := parseFeedTime(e.Published, e.Updated)
		if published.IsZero() {
			published = now
		}
		items = append(items, model.RawNews{
			Title:       stripHTML(e.Title),
			URL:         atomLink(e),
			Source:      source,
			Region:      region,
			PublishedAt: published,
			Summary:     stripHTML(e.Summary),
		})
	}
	return items, nil
}

func atomLink(e atomEntry) string {
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(e.Links) > 0 {
		return strings.TrimSpace(e.Links[0].Href)
	}
	return ""
}

var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
}

func parseFeedTime(values ...string) time.Time {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		for _, layout := range feedTimeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

// stripHTML 描述字段常含 HTML 片段，只保留文本
func stripHTML(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "<") && !strings.Contains(s, "&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
