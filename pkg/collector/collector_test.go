package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"NewsRadar/pkg/logging"
	"NewsRadar/pkg/model"
	"NewsRadar/pkg/verify"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>Markets</title>
  <item>
    <title>Fed holds rates steady</title>
    <link>https://example.com/fed</link>
    <description>&lt;p&gt;The &lt;b&gt;Federal Reserve&lt;/b&gt; kept rates unchanged.&lt;/p&gt;</description>
    <pubDate>Mon, 10 Mar 2025 14:30:00 +0000</pubDate>
  </item>
  <item>
    <title>Oil slides on supply worries</title>
    <link>https://example.com/oil</link>
    <dc:date>2025-03-09T08:00:00Z</dc:date>
  </item>
</channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Asia Markets</title>
  <entry>
    <title>Nikkei closes at record high</title>
    <link rel="alternate" href="https://example.jp/nikkei"/>
    <summary>Tokyo stocks rallied.</summary>
    <published>2025-03-10T06:00:00Z</published>
  </entry>
</feed>`

func TestParseFeedRSS(t *testing.T) {
	items, err := ParseFeed([]byte(rssFixture), "Example", RegionNorthAmerica)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(items))

	assert.Equal(t, "Fed holds rates steady", items[0].Title)
	assert.Equal(t, "https://example.com/fed", items[0].URL)
	assert.Equal(t, "The Federal Reserve kept rates unchanged.", items[0].Summary)
	assert.Equal(t, true, time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC).Equal(items[0].PublishedAt))
	assert.Equal(t, "Example", items[0].Source)
	assert.Equal(t, RegionNorthAmerica, items[0].Region)

	assert.Equal(t, true, time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC).Equal(items[1].PublishedAt))
}

func TestParseFeedAtom(t *testing.T) {
	items, err := ParseFeed([]byte(atomFixture), "Nikkei Asia", RegionJapan)
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(items))
	assert.Equal(t, "https://example.jp/nikkei", items[0].URL)
	assert.Equal(t, "Tokyo stocks rallied.", items[0].Summary)
	assert.Equal(t, RegionJapan, items[0].Region)
}

func TestParseFeedInvalid(t *testing.T) {
	_, err := ParseFeed([]byte(""), "x", "y")
	assert.NotEqual(t, nil, err)
}

func TestRSSSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	src := NewRSSSource("Example", srv.URL, RegionEurope, srv.Client())
	items, err := src.Fetch(context.Background(), time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(items))
	assert.Equal(t, "https://example.com/fed", items[0].URL)
	assert.Equal(t, RegionEurope, items[0].Region)
}

func TestRSSSourceBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	_, err := NewRSSSource("Example", srv.URL, RegionEurope, nil).Fetch(context.Background(), time.Time{})
	assert.NotEqual(t, nil, err)
}

func raw(title, url string, published time.Time) model.RawNews {
	return model.RawNews{Title: title, URL: url, Source: "Reuters", Region: RegionNorthAmerica, PublishedAt: published}
}

func TestMultiSourceDedupAndFilter(t *testing.T) {
	since := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	a := &StaticSource{SourceName: "a", Articles: []model.RawNews{
		raw("Later story", "https://example.com/2", since.Add(2*time.Hour)),
		raw("Early story", "https://example.com/1", since.Add(time.Hour)),
	}}
	b := &StaticSource{SourceName: "b", Articles: []model.RawNews{
		raw("Early story copy", "https://example.com/1/", since.Add(3*time.Hour)),
		raw("Too old", "https://example.com/old", since.Add(-time.Hour)),
		raw("", "https://example.com/untitled", since.Add(time.Hour)),
	}}
	failing := &StaticSource{SourceName: "down", Err: errors.New("timeout")}

	ms := NewMultiSource(logging.Discard(), a, b, failing)
	items, err := ms.Fetch(context.Background(), since)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(items))
	assert.Equal(t, "Early story", items[0].Title)
	assert.Equal(t, "Later story", items[1].Title)
}

func TestMultiSourceAllFailed(t *testing.T) {
	ms := NewMultiSource(logging.Discard(),
		&StaticSource{SourceName: "a", Err: errors.New("a down")},
		&StaticSource{SourceName: "b", Err: errors.New("b down")},
	)
	_, err := ms.Fetch(context.Background(), time.Time{})
	assert.NotEqual(t, nil, err)
}

func TestInferRegion(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"Reuters", RegionNorthAmerica},
		{"Financial Times", RegionEurope},
		{"FT", RegionEurope},
		{"Microsoft News", RegionNorthAmerica},
		{"Nikkei Asia", RegionJapan},
		{"South China Morning Post", RegionAsia},
		{"Al Jazeera", RegionMiddleEast},
		{"IMF Blog", RegionInstitutions},
		{"Some Blog", RegionNorthAmerica},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, InferRegion(tt.source))
		})
	}
}

func TestCheckRegionalBalance(t *testing.T) {
	var items []model.RawNews
	add := func(region string, n int) {
		for i := 0; i < n; i++ {
			items = append(items, model.RawNews{Region: region, URL: fmt.Sprintf("%s-%d", region, i)})
		}
	}
	add(RegionNorthAmerica, 30)
	add(RegionEurope, 15)
	add(RegionAsia, 10)
	add(RegionJapan, 15)
	add(RegionMiddleEast, 4)
	add(RegionInstitutions, 3)
	add("latam", 3)

	res := CheckRegionalBalance(items)
	assert.Equal(t, 80, res.Total)
	assert.Equal(t, 30, res.Regions[RegionNorthAmerica].Count)
	assert.Equal(t, 0.375, res.Regions[RegionNorthAmerica].Share)
	assert.Equal(t, 0.32, res.Regions[RegionNorthAmerica].Target)
	assert.Equal(t, true, res.Regions[RegionNorthAmerica].MeetsMinimum)
	assert.Equal(t, false, res.Regions[RegionAsia].MeetsMinimum)
	assert.Equal(t, []string{RegionAsia}, res.Deficiencies)
	assert.Equal(t, 3, res.Regions["latam"].Count)
}

func TestCheckRegionalBalanceEmpty(t *testing.T) {
	res := CheckRegionalBalance(nil)
	assert.Equal(t, 0, res.Total)
	assert.Equal(t, len(Regions), len(res.Deficiencies))
}

func TestCrawlerHandleMessage(t *testing.T) {
	c := &CrawlerSource{
		logger: logging.Discard(),
		buffer: make(map[string]model.RawNews),
		maxAge: 72 * time.Hour,
	}
	now := time.Now().UTC().Truncate(time.Second)
	c.HandleMessage([]byte(fmt.Sprintf(`{"title":"Chip exports curbed","link":"https://example.com/chips","source":"Nikkei Asia","category":"Regulation","date":%q}`, now.Format(time.RFC3339))))
	c.HandleMessage([]byte(`{"title":"","link":"https://example.com/empty"}`))
	c.HandleMessage([]byte(`not json`))
	c.HandleMessage([]byte(fmt.Sprintf(`{"title":"Stale","link":"https://example.com/stale","date":%q}`, now.Add(-100*time.Hour).Format(time.RFC3339))))

	items, err := c.Fetch(context.Background(), now.Add(-time.Hour))
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(items))
	assert.Equal(t, RegionJapan, items[0].Region)
	assert.Equal(t, "regulation", items[0].Category)
	assert.Equal(t, true, now.Equal(items[0].PublishedAt))
	// 过期条目已清理
	assert.Equal(t, 1, len(c.buffer))
}

func TestFinnhubPriceHorizon(t *testing.T) {
	assert.Equal(t, 24*time.Hour, verify.HorizonOf(NewFinnhubPriceSource("test")))
}
