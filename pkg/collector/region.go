package collector

import (
	"strings"

	"NewsRadar/pkg/model"
)

const (
	RegionNorthAmerica = "north_america"
	RegionEurope       = "europe"
	RegionAsia         = "asia"
	RegionJapan        = "japan"
	RegionMiddleEast   = "middle_east"
	RegionInstitutions = "institutions"
)

// Regions 参与区域平衡统计的区域，按展示顺序
var Regions = []string{
	RegionNorthAmerica,
	RegionEurope,
	RegionAsia,
	RegionJapan,
	RegionMiddleEast,
	RegionInstitutions,
}

// RegionTargets 各区域目标占比
var RegionTargets = map[string]float64{
	RegionNorthAmerica: 0.32,
	RegionEurope:       0.20,
	RegionAsia:         0.20,
	RegionJapan:        0.20,
	RegionMiddleEast:   0.04,
	RegionInstitutions: 0.04,
}

// RegionMinimums 各区域最少文章数
var RegionMinimums = map[string]int{
	RegionNorthAmerica: 25,
	RegionEurope:       15,
	RegionAsia:         15,
	RegionJapan:        15,
	RegionMiddleEast:   4,
	RegionInstitutions: 3,
}

var regionKeywords = []struct {
	region   string
	keywords []string
}{
	{RegionNorthAmerica, []string{"reuters", "bloomberg", "cnbc", "marketwatch", "wsj", "wall street", "yahoo", "fox business", "barron"}},
	{RegionEurope, []string{"financial times", "ft", "guardian", "bbc", "telegraph", "spiegel"}},
	{RegionJapan, []string{"nikkei", "japan", "kyodo"}},
	{RegionAsia, []string{"scmp", "south china", "china", "asia", "xinhua", "caixin", "straits"}},
	{RegionMiddleEast, []string{"al jazeera", "arab", "gulf", "middle east"}},
	{RegionInstitutions, []string{"federal reserve", "ecb", "imf", "world bank", "bis"}},
}

// InferRegion 按来源名称推断区域，无法识别时归为北美
func InferRegion(source string) string {
	s := strings.ToLower(source)
	words := strings.Fields(s)
	for _, rk := range regionKeywords {
		for _, kw := range rk.keywords {
			// 短关键字只按整词匹配，避免 "ft" 命中 "microsoft"
			if len(kw) <= 3 {
				for _, w := range words {
					if w == kw {
						return rk.region
					}
				}
				continue
			}
			if strings.Contains(s, kw) {
				return rk.region
			}
		}
	}
	return RegionNorthAmerica
}

// RegionStat 单个区域的统计
type RegionStat struct {
	Count        int     `json:"count"`
	Share        float64 `json:"share"`
	Target       float64 `json:"target"`
	Minimum      int     `json:"minimum"`
	MeetsMinimum bool    `json:"meets_minimum"`
}

// RegionalBalance 区域分布检查结果
type RegionalBalance struct {
	Total        int                   `json:"total"`
	Regions      map[string]RegionStat `json:"regions"`
	Deficiencies []string              `json:"deficiencies,omitempty"`
}

// CheckRegionalBalance 统计区域分布；占比不足目标一半或低于最少数量的区域列入 Deficiencies
func CheckRegionalBalance(items []model.RawNews) RegionalBalance {
	counts := make(map[string]int)
	for _, it := range items {
		counts[it.Region]++
	}

	res := RegionalBalance{
		Total:   len(items),
		Regions: make(map[string]RegionStat, len(counts)),
	}
	for region, n := range counts {
		if _, known := RegionTargets[region]; !known {
			res.Regions[region] = RegionStat{Count: n, Share: share(n, len(items)), MeetsMinimum: true}
		}
	}
	for _, region := range Regions {
		n := counts[region]
		st := RegionStat{
			Count:   n,
			Share:   share(n, len(items)),
			Target:  RegionTargets[region],
			Minimum: RegionMinimums[region],
		}
		st.MeetsMinimum = n >= st.Minimum
		res.Regions[region] = st
		if !st.MeetsMinimum || st.Share < st.Target*0.5 {
			res.Deficiencies = append(res.Deficiencies, region)
		}
	}
	return res
}

func share(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
