package crawlers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/RecoveryAshes/ScholarCrawl/internal/matching"
	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
	"github.com/RecoveryAshes/ScholarCrawl/internal/parsers"
	"github.com/rs/zerolog/log"
)

// ProfileResolver 将学者姓名解析为主页
type ProfileResolver struct {
	nav *Navigator
	cfg models.ResolverConfig
}

// NewProfileResolver 创建解析器
func NewProfileResolver(nav *Navigator, cfg models.ResolverConfig) *ProfileResolver {
	return &ProfileResolver{nav: nav, cfg: cfg}
}

// SearchURL 作者搜索页地址
func (r *ProfileResolver) SearchURL(name string) string {
	q := url.Values{}
	q.Set("view_op", "search_authors")
	q.Set("mauthors", strings.TrimSpace(name))
	q.Set("hl", r.cfg.Language)
	return strings.TrimRight(r.cfg.BaseURL, "/") + "/citations?" + q.Encode()
}

// ProfileURL 主页出版物列表地址 (从第一条开始,每页ProfilePageLen条)
func (r *ProfileResolver) ProfileURL(profileID string) string {
	q := url.Values{}
	q.Set("user", profileID)
	q.Set("hl", r.cfg.Language)
	q.Set("cstart", "0")
	if r.cfg.ProfilePageLen > 0 {
		q.Set("pagesize", strconv.Itoa(r.cfg.ProfilePageLen))
	}
	return strings.TrimRight(r.cfg.BaseURL, "/") + "/citations?" + q.Encode()
}

// Resolve 搜索姓名并返回相似度最高且不低于阈值的候选
// 没有候选达标时返回ProfileNotFound
func (r *ProfileResolver) Resolve(ctx context.Context, page Page, name string) (*models.ResolvedProfile, error) {
	searchURL := r.SearchURL(name)
	html, err := r.nav.Fetch(ctx, page, searchURL)
	if err != nil {
		return nil, err
	}

	found, err := parsers.ParseAuthorCandidates(html, searchURL)
	if err != nil {
		return nil, models.NewScrapeError(models.KindProfileNotFound, "resolve", searchURL, err)
	}

	candidates := make([]matching.Candidate, len(found))
	for i, c := range found {
		candidates[i] = matching.Candidate{Name: c.Name, Ref: c.ProfileID}
		log.Debug().Str("candidate", c.Name).Str("id", c.ProfileID).
			Float64("score", matching.NameSimilarity(name, c.Name)).Msg("作者候选")
	}

	best, score, ok := matching.BestMatch(name, candidates, r.cfg.NameThreshold)
	if !ok {
		return nil, models.NewScrapeError(models.KindProfileNotFound, "resolve", searchURL,
			fmt.Errorf("%d个候选均低于阈值%.2f", len(candidates), r.cfg.NameThreshold))
	}

	log.Info().Str("name", name).Str("match", best.Name).Str("id", best.Ref).
		Float64("confidence", score).Msg("已解析学者主页")
	return &models.ResolvedProfile{
		ProfileID:       best.Ref,
		ProfileURL:      r.ProfileURL(best.Ref),
		MatchConfidence: score,
	}, nil
}
