// Package similarity 标题相似度与股票重合度，聚类与跨日连续性检测共用同一度量
package similarity

import (
	"strings"
	"unicode"
)

// DefaultThreshold 同一主题的标题相似度阈值
const DefaultThreshold = 0.85

// Normalize 小写、去标点、合并空白
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens 返回规范化后的词集合
func Tokens(text string) map[string]struct{} {
	fields := strings.Fields(Normalize(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Title 两个标题的 Jaccard 相似度，任一为空时为 0
func Title(a, b string) float64 {
	return Jaccard(Tokens(a), Tokens(b))
}

// Jaccard 集合交并比
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// SymbolOverlap |A∩B| / min(|A|,|B|)，大小写不敏感。两者都为空视为完全重合
func SymbolOverlap(a, b []string) float64 {
	sa, sb := symbolSet(a), symbolSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for k := range sa {
		if _, ok := sb[k]; ok {
			inter++
		}
	}
	smaller := len(sa)
	if len(sb) < smaller {
		smaller = len(sb)
	}
	return float64(inter) / float64(smaller)
}

func symbolSet(symbols []string) map[string]struct{} {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}
