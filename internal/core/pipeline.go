package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/RecoveryAshes/ScholarCrawl/internal/crawlers"
	"github.com/RecoveryAshes/ScholarCrawl/internal/matching"
	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
	"github.com/RecoveryAshes/ScholarCrawl/internal/parsers"
	"github.com/RecoveryAshes/ScholarCrawl/internal/utils"
	"github.com/rs/zerolog/log"
)

// SecondarySearcher 文献索引站点检索接口
type SecondarySearcher interface {
	Search(ctx context.Context, name string) ([]models.ScrapedPublication, error)
}

// SecondaryFactory 按当前身份创建文献索引站点检索器
type SecondaryFactory func(cfg models.ScrapeConfig, fp models.Fingerprint) SecondarySearcher

// Pipeline 单个学者的抓取流程
// 姓名解析 → 列表翻页 → 逐条解析详情 → 必要时补充文献索引站点 → 合并
// 每次Run独占一个浏览器会话,多个Run可以并发执行
type Pipeline struct {
	cfg          models.ScrapeConfig
	fingerprints models.FingerprintSource
	factory      crawlers.SessionFactory
	secondary    SecondaryFactory
	navOpts      []crawlers.NavigatorOption
}

// PipelineOption Pipeline可选项
type PipelineOption func(*Pipeline)

// WithSessionFactory 替换浏览器会话工厂
func WithSessionFactory(factory crawlers.SessionFactory) PipelineOption {
	return func(p *Pipeline) {
		p.factory = factory
	}
}

// WithNavigatorOptions 为每次任务的Navigator追加选项
func WithNavigatorOptions(opts ...crawlers.NavigatorOption) PipelineOption {
	return func(p *Pipeline) {
		p.navOpts = append(p.navOpts, opts...)
	}
}

// WithSecondaryFactory 替换文献索引站点检索器的创建方式
func WithSecondaryFactory(factory SecondaryFactory) PipelineOption {
	return func(p *Pipeline) {
		p.secondary = factory
	}
}

// NewPipeline 创建抓取流程
func NewPipeline(cfg models.ScrapeConfig, fingerprints models.FingerprintSource, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		cfg:          cfg,
		fingerprints: fingerprints,
		factory:      crawlers.NewRodSessionFactory(cfg.Browser),
		secondary:    defaultSecondary,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func defaultSecondary(cfg models.ScrapeConfig, fp models.Fingerprint) SecondarySearcher {
	return crawlers.NewSecondarySource(cfg.Secondary, cfg.Resolver.NameThreshold, fp)
}

// Run 执行一次抓取任务
// 除浏览器不可用外,拦截、取消和单条失败都不作为错误返回,而是体现在结果摘要中;
// 浏览器不可用时同时返回已收集的部分结果和错误
func (p *Pipeline) Run(ctx context.Context, req models.ResearcherRequest) (result *models.RunResult, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result = models.NewRunResult(req)
	run := &runState{
		p:      p,
		result: result,
		nav:    crawlers.NewNavigator(p.cfg.Navigation, p.navOpts...),
	}
	defer run.close()
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("抓取任务panic: 学者=%s, 错误=%v", req.DisplayName, r)
			if !run.published && run.pubs != nil {
				result.Publications = run.pubs
			}
			result.Summary.Aborted = true
			result.Finalize()
			err = nil
		}
	}()

	name := strings.Join(strings.Fields(req.DisplayName), " ")
	log.Info().Str("run_id", result.RunID).Str("researcher", name).Msg("开始抓取")

	primary, err := run.primary(ctx, name)
	result.Publications = primary
	run.published = true
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBrowserUnavailable):
			result.Summary.Aborted = true
			result.Finalize()
			return result, err
		case errors.Is(err, models.ErrScrapeAborted):
			utils.Errorf("连续被拦截,中止任务: %v", err)
			result.Summary.Aborted = true
		case ctx.Err() != nil:
			result.Summary.Aborted = true
			result.Summary.Cancelled = true
		default:
			utils.Warnf("主站点未返回结果: %v", err)
		}
	}

	if !result.Summary.Aborted && p.needSecondary(len(primary)) {
		secondary := run.secondary(ctx, name)
		if ctx.Err() != nil {
			result.Summary.Aborted = true
			result.Summary.Cancelled = true
		}
		result.Publications = matching.Merge(primary, secondary, p.cfg.Reconcile.TitleThreshold)
	}

	result.Finalize()
	s := result.Summary
	log.Info().Str("run_id", result.RunID).Int("found", s.Found).Int("primary", s.FromPrimary).
		Int("secondary", s.FromSecondary).Int("skipped", s.Skipped).Bool("blocked", s.Blocked).
		Bool("aborted", s.Aborted).Float64("duration", result.Duration).Msg("抓取完成")
	return result, nil
}

// needSecondary 主站点结果少于阈值时才检索文献索引站点
func (p *Pipeline) needSecondary(primary int) bool {
	sc := p.cfg.Secondary
	return sc.Enabled && sc.MinPrimaryResults > 0 && primary < sc.MinPrimaryResults
}

// runState 一次任务的可变状态,不跨任务共享
type runState struct {
	p      *Pipeline
	result *models.RunResult

	fp      models.Fingerprint
	session crawlers.Session
	page    crawlers.Page
	nav     *crawlers.Navigator

	pubs      []models.ScrapedPublication // 主站点已收集的记录
	published bool                        // pubs已写入result
}

// open 以新身份启动浏览器会话
func (r *runState) open(ctx context.Context) error {
	fp, err := r.p.fingerprints.Next()
	if err != nil {
		return models.NewScrapeError(models.KindBrowserUnavailable, "fingerprint", "", err)
	}

	session, err := r.p.factory(ctx, fp)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, models.ErrBrowserUnavailable) {
			return err
		}
		return models.NewScrapeError(models.KindBrowserUnavailable, "launch", "", err)
	}

	page, err := session.NewPage(ctx)
	if err != nil {
		_ = session.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return models.NewScrapeError(models.KindBrowserUnavailable, "new_page", "", err)
	}

	base := r.p.cfg.Resolver.BaseURL
	if cookie := fp.SessionCookie(base); cookie != nil {
		if err := page.SetCookies(ctx, base, []*http.Cookie{cookie}); err != nil {
			utils.Warnf("写入会话cookie失败: %v", err)
		}
	}

	r.fp, r.session, r.page = fp, session, page
	return nil
}

// close 释放当前会话 (可重复调用)
func (r *runState) close() {
	if r.page != nil {
		if err := r.page.Close(); err != nil {
			log.Debug().Err(err).Msg("关闭标签页失败")
		}
		r.page = nil
	}
	if r.session != nil {
		if err := r.session.Close(); err != nil {
			utils.Warnf("关闭浏览器会话失败: %v", err)
		}
		r.session = nil
	}
}

// rotate 丢弃当前身份并以新身份重启会话
func (r *runState) rotate(ctx context.Context) error {
	utils.Warnf("轮换浏览器身份: 旧UA=%s", r.fp.UserAgent)
	r.close()
	return r.open(ctx)
}

// do 执行一个页面操作;被拦截时轮换身份重试一次,再次被拦截则中止任务
func (r *runState) do(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if !errors.Is(err, models.ErrBlockedBySource) {
		return err
	}

	r.result.Summary.Blocked = true
	utils.Warnf("[%s] 被目标站点拦截: %v", op, err)
	if err := r.rotate(ctx); err != nil {
		return err
	}

	err = fn()
	if errors.Is(err, models.ErrBlockedBySource) {
		return models.NewScrapeError(models.KindScrapeAborted, op, "", err)
	}
	return err
}

// primary 主站点流程,返回已收集的记录;出错时仍返回错误发生前的记录
func (r *runState) primary(ctx context.Context, name string) ([]models.ScrapedPublication, error) {
	r.pubs = make([]models.ScrapedPublication, 0)
	if err := r.open(ctx); err != nil {
		return r.pubs, err
	}

	resolver := crawlers.NewProfileResolver(r.nav, r.p.cfg.Resolver)
	paginator := crawlers.NewPaginator(r.nav, r.p.cfg.Pagination)

	var profile *models.ResolvedProfile
	err := r.do(ctx, "resolve", func() error {
		var err error
		profile, err = resolver.Resolve(ctx, r.page, name)
		return err
	})
	if err != nil {
		return r.pubs, err
	}
	r.result.Profile = profile

	var rows []parsers.ListingRow
	err = r.do(ctx, "paginate", func() error {
		var err error
		rows, err = paginator.CollectRows(ctx, r.page, profile.ProfileURL)
		return err
	})
	if err != nil {
		return r.pubs, err
	}
	utils.Infof("学者主页共%d条出版物: %s", len(rows), profile.ProfileURL)

	// 单条失败跳过并继续,只有会话级错误终止循环
	limit := r.p.cfg.Extraction.MaxPublications
	details := 0
	for i, row := range rows {
		if limit > 0 && len(r.pubs) >= limit {
			break
		}
		if ctx.Err() != nil {
			return r.pubs, ctx.Err()
		}

		follow := r.p.cfg.Extraction.FollowDetailLinks && row.DetailURL != ""
		if follow && r.p.cfg.Pagination.MaxDetailURLs > 0 && details >= r.p.cfg.Pagination.MaxDetailURLs {
			follow = false
		}
		if follow {
			details++
		}

		pub, err := r.extract(ctx, row, follow)
		if err != nil {
			if ctx.Err() != nil {
				return r.pubs, ctx.Err()
			}
			if models.IsRunFatal(err) {
				return r.pubs, err
			}
			r.result.Summary.Skipped++
			log.Warn().Int("index", i+1).Str("title", row.Title).Str("kind", models.KindOf(err).String()).
				Err(err).Msg("跳过出版物")
			continue
		}
		r.pubs = append(r.pubs, *pub)
	}
	return r.pubs, nil
}

// extract 解析一条出版物;follow为false时只使用列表行
func (r *runState) extract(ctx context.Context, row parsers.ListingRow, follow bool) (pub *models.ScrapedPublication, err error) {
	if !follow {
		listed := row.ToPublication()
		if listed.Title == "" {
			return nil, models.NewScrapeError(models.KindExtractionIncomplete, "listing_row", row.DetailURL,
				fmt.Errorf("列表行缺少标题"))
		}
		return &listed, nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			// 轮换中途失去会话时无法继续,交给Run中止任务
			if r.page == nil {
				panic(rec)
			}
			utils.Errorf("解析详情页panic: URL=%s, 错误=%v", row.DetailURL, rec)
			pub, err = nil, models.NewScrapeError(models.KindExtractionIncomplete, "extract", row.DetailURL,
				fmt.Errorf("panic: %v", rec))
		}
	}()

	err = r.do(ctx, "extract", func() error {
		html, err := r.nav.Fetch(ctx, r.page, row.DetailURL)
		if err != nil {
			return err
		}
		pub, err = parsers.ParseDetail(html, row.DetailURL)
		return err
	})
	if err != nil {
		return nil, err
	}

	fillFromListing(pub, row)
	return pub, nil
}

// fillFromListing 用列表行补全详情页缺失的字段
// 引用数以详情页为准,两者不一致时记录警告
func fillFromListing(pub *models.ScrapedPublication, row parsers.ListingRow) {
	switch {
	case pub.CitationCount == nil && row.CitationCount != nil:
		pub.CitationCount = models.IntPtr(*row.CitationCount)
	case pub.CitationCount != nil && row.CitationCount != nil && *pub.CitationCount != *row.CitationCount:
		log.Warn().Str("title", pub.Title).Int("listing", *row.CitationCount).
			Int("detail", *pub.CitationCount).Msg("列表与详情页引用数不一致,采用详情页")
	}
	if len(pub.AuthorNames) == 0 && len(row.Authors) > 0 {
		pub.AuthorNames = append([]string{}, row.Authors...)
	}
	if pub.PublicationDate == nil && row.Year > 0 {
		pub.PublicationDate = models.YearDate(row.Year)
	}
}

// secondary 检索文献索引站点,失败时只记录警告
func (r *runState) secondary(ctx context.Context, name string) []models.ScrapedPublication {
	fp := r.fp
	if fp.UserAgent == "" {
		next, err := r.p.fingerprints.Next()
		if err != nil {
			utils.Warnf("生成浏览器身份失败,跳过文献索引站点: %v", err)
			return nil
		}
		fp = next
	}

	utils.Infof("主站点结果不足%d条,检索文献索引站点", r.p.cfg.Secondary.MinPrimaryResults)
	pubs, err := r.p.secondary(r.p.cfg, fp).Search(ctx, name)
	if err != nil {
		utils.Warnf("文献索引站点检索失败: %v", err)
		return nil
	}
	for i := range pubs {
		pubs[i].SourceSystem = models.SourceSecondary
	}
	return pubs
}
