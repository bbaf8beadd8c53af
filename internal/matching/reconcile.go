package matching

import (
	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
	"github.com/rs/zerolog/log"
)

// Merge 合并主站与索引站点的结果
// 输出顺序: 全部主站记录(原顺序),然后是未与任何主站记录重复的索引站点记录(原顺序)。
// 重复判定: 标题相似度 >= threshold
func Merge(primary, secondary []models.ScrapedPublication, threshold float64) []models.ScrapedPublication {
	out := make([]models.ScrapedPublication, 0, len(primary)+len(secondary))
	for _, p := range primary {
		p.SourceSystem = models.SourcePrimary
		out = append(out, p)
	}

	for _, s := range secondary {
		if idx, score := bestTitleMatch(s.Title, primary); idx >= 0 && score >= threshold {
			log.Debug().
				Str("secondary", s.Title).
				Str("primary", primary[idx].Title).
				Float64("score", score).
				Msg("丢弃重复的索引站点记录")
			continue
		}
		s.SourceSystem = models.SourceSecondary
		out = append(out, s)
	}
	return out
}

func bestTitleMatch(title string, pubs []models.ScrapedPublication) (int, float64) {
	best, bestScore := -1, 0.0
	for i := range pubs {
		if s := TitleSimilarity(title, pubs[i].Title); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, bestScore
}
