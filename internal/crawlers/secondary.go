package crawlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/RecoveryAshes/ScholarCrawl/internal/matching"
	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
	"github.com/RecoveryAshes/ScholarCrawl/internal/parsers"
	"github.com/RecoveryAshes/ScholarCrawl/internal/utils"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// SecondarySource 文献索引站点抓取器
// 页面是静态HTML,直接用colly请求,不占用浏览器
type SecondarySource struct {
	cfg           models.SecondaryConfig
	nameThreshold float64
	headers       http.Header
	limiter       *rate.Limiter
	collector     *colly.Collector
}

// NewSecondarySource 创建抓取器,请求头与会话cookie取自当前身份
func NewSecondarySource(cfg models.SecondaryConfig, nameThreshold float64, fp models.Fingerprint) *SecondarySource {
	opts := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	}
	if fp.UserAgent != "" {
		opts = append(opts, colly.UserAgent(fp.UserAgent))
	}
	c := colly.NewCollector(opts...)
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}
	if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 1}); err != nil {
		utils.Warnf("设置并发限制失败: %v", err)
	}

	if cookie := fp.SessionCookie(cfg.BaseURL); cookie != nil {
		if err := c.SetCookies(cfg.BaseURL, []*http.Cookie{cookie}); err != nil {
			utils.Warnf("写入会话cookie失败: %v", err)
		}
	}

	headers := http.Header{}
	for name, values := range fp.Headers {
		if len(values) > 0 {
			headers.Set(name, values[0])
		}
	}
	if fp.AcceptLanguage != "" && headers.Get("Accept-Language") == "" {
		headers.Set("Accept-Language", fp.AcceptLanguage)
	}

	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	return &SecondarySource{
		cfg:           cfg,
		nameThreshold: nameThreshold,
		headers:       headers,
		limiter:       rate.NewLimiter(rate.Limit(perSecond), 1),
		collector:     c,
	}
}

// SearchURL 作者搜索地址
func (s *SecondarySource) SearchURL(name string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/search/author?q=" + url.QueryEscape(strings.TrimSpace(name))
}

// Search 按姓名搜索作者并解析其全部出版物
// 没有达标的作者候选时返回空列表
func (s *SecondarySource) Search(ctx context.Context, name string) ([]models.ScrapedPublication, error) {
	searchURL := s.SearchURL(name)
	page, err := s.fetch(ctx, searchURL)
	if err != nil {
		return nil, models.NewScrapeError(models.KindNavigationFailed, "secondary_search", searchURL, err)
	}

	// 精确命中时站点直接跳转到作者页
	if !parsers.IsDBLPPersonPage(page.body, page.contentType) {
		found, err := parsers.ParseDBLPAuthorCandidates(page.body, page.contentType, page.finalURL)
		if err != nil {
			return nil, models.NewScrapeError(models.KindExtractionIncomplete, "secondary_search", searchURL, err)
		}
		candidates := make([]matching.Candidate, len(found))
		for i, c := range found {
			candidates[i] = matching.Candidate{Name: c.Name, Ref: c.ProfileURL}
		}
		best, score, ok := matching.BestMatch(name, candidates, s.nameThreshold)
		if !ok {
			utils.Infof("索引站点没有与 %q 匹配的作者 (%d个候选)", name, len(candidates))
			return []models.ScrapedPublication{}, nil
		}
		log.Debug().Str("match", best.Name).Float64("score", score).Str("url", best.Ref).Msg("索引站点作者")

		page, err = s.fetch(ctx, best.Ref)
		if err != nil {
			return nil, models.NewScrapeError(models.KindNavigationFailed, "secondary_person", best.Ref, err)
		}
	}

	pubs, err := parsers.ParseDBLPEntries(page.body, page.contentType)
	if err != nil {
		return nil, models.NewScrapeError(models.KindExtractionIncomplete, "secondary_person", page.finalURL, err)
	}
	for i := range pubs {
		pubs[i].SourceSystem = models.SourceSecondary
	}
	utils.Infof("索引站点返回 %d 条记录", len(pubs))
	return pubs, nil
}

type fetchedPage struct {
	body        []byte
	contentType string
	finalURL    string
}

// fetch 限速后同步请求一个页面
func (s *SecondarySource) fetch(ctx context.Context, target string) (*fetchedPage, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	c := s.collector.Clone()
	c.Context = ctx

	var (
		page     *fetchedPage
		fetchErr error
	)
	c.OnRequest(func(r *colly.Request) {
		for name := range s.headers {
			r.Headers.Set(name, s.headers.Get(name))
		}
	})
	c.OnResponse(func(r *colly.Response) {
		encoding := r.Headers.Get("Content-Encoding")
		body, err := decompressResponse(encoding, r.Body)
		if err != nil {
			utils.Warnf("解压响应失败 [%s] (编码=%s): %v", r.Request.URL, encoding, err)
			body = r.Body
		}
		page = &fetchedPage{
			body:        body,
			contentType: r.Headers.Get("Content-Type"),
			finalURL:    r.Request.URL.String(),
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("请求失败 (状态码%d): %w", r.StatusCode, err)
	})

	if err := c.Visit(target); err != nil && fetchErr == nil {
		fetchErr = err
	}
	c.Wait()
	if fetchErr != nil {
		return nil, fetchErr
	}
	if page == nil {
		return nil, fmt.Errorf("没有收到响应: %s", target)
	}
	return page, nil
}
