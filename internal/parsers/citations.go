package parsers

import (
	"sort"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
)

// parseCitationGraph 解析详情页的逐年引用柱状图
// 坐标轴上出现但没有柱子(或计数无法解析)的年份计为0,
// 最小与最大年份之间的缺口同样补0,结果按年份严格递增
func parseCitationGraph(doc *goquery.Document, detailURL string) []models.CitationYear {
	graph := doc.Find("#gsc_oci_graph_bars").First()
	if graph.Length() == 0 {
		return []models.CitationYear{}
	}

	years := make(map[int]bool)
	counts := make(map[int]int)

	graph.Find(".gsc_oci_g_t").Each(func(_ int, s *goquery.Selection) {
		if y, err := strconv.Atoi(selText(s)); err == nil {
			years[y] = true
		}
	})

	graph.Find("a.gsc_oci_g_a").Each(func(_ int, bar *goquery.Selection) {
		href := bar.AttrOr("href", "")
		raw := queryParam(href, "as_ylo")
		if raw == "" {
			raw = queryParam(href, "as_yhi")
		}
		y, err := strconv.Atoi(raw)
		if err != nil {
			log.Debug().Str("href", href).Str("url", detailURL).Msg("引用柱缺少年份,跳过")
			return
		}
		years[y] = true
		if n, ok := parseLeadingInt(selText(bar.Find(".gsc_oci_g_al"))); ok {
			counts[y] = n
		}
	})

	return fillCitationYears(years, counts)
}

// fillCitationYears 补齐[min,max]区间内的每一年
func fillCitationYears(years map[int]bool, counts map[int]int) []models.CitationYear {
	if len(years) == 0 {
		return []models.CitationYear{}
	}
	keys := make([]int, 0, len(years))
	for y := range years {
		keys = append(keys, y)
	}
	sort.Ints(keys)

	first, last := keys[0], keys[len(keys)-1]
	out := make([]models.CitationYear, 0, last-first+1)
	for y := first; y <= last; y++ {
		out = append(out, models.CitationYear{Year: y, Count: counts[y]})
	}
	return out
}
