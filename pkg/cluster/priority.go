package cluster

import "strings"

// SourcePriority 来源权威度，越高越优先作为代表文章
var SourcePriority = map[string]int{
	"Reuters":                  10,
	"Bloomberg":                10,
	"Financial Times":          9,
	"Wall Street Journal":      9,
	"Nikkei Asia":              8,
	"CNBC":                     7,
	"MarketWatch":              7,
	"South China Morning Post": 7,
	"Al Jazeera":               6,
	"Finnhub":                  6,
	"Alpha Vantage":            6,
	"Google News":              5,
}

// Priority 查询来源优先级，支持 "Reuters Japan"、"Google News - Business" 这类带后缀的名称，未知来源为 0
func Priority(source string) int {
	if p, ok := SourcePriority[source]; ok {
		return p
	}
	name := strings.ToLower(strings.TrimSpace(source))
	best, bestLen := 0, 0
	for key, p := range SourcePriority {
		k := strings.ToLower(key)
		if strings.HasPrefix(name, k) && len(k) > bestLen {
			best, bestLen = p, len(k)
		}
	}
	return best
}

// ImportanceBoost 按来源数量的阶梯加成，不插值
func ImportanceBoost(sourceCount int) float64 {
	switch {
	case sourceCount >= 4:
		return 1.6
	case sourceCount == 3:
		return 1.4
	case sourceCount == 2:
		return 1.2
	default:
		return 1.0
	}
}
