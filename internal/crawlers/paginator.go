package crawlers

import (
	"context"
	"fmt"

	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
	"github.com/RecoveryAshes/ScholarCrawl/internal/parsers"
	"github.com/RecoveryAshes/ScholarCrawl/internal/utils"
	"github.com/rs/zerolog/log"
)

// Paginator 在主页上反复点击"加载更多",收集出版物列表
type Paginator struct {
	nav   *Navigator
	cfg   models.PaginationConfig
	spec  LoadMoreSpec
	sleep SleepFunc
}

// NewPaginator 创建Paginator
func NewPaginator(nav *Navigator, cfg models.PaginationConfig) *Paginator {
	p := &Paginator{
		nav:   nav,
		cfg:   cfg,
		spec:  ScholarLoadMore(cfg.ResponseWait),
		sleep: ContextSleep,
	}
	// 复用Navigator的等待函数
	if nav != nil && nav.sleep != nil {
		p.sleep = nav.sleep
	}
	return p
}

// CollectRows 打开主页并加载全部列表行
// 加载更多的轮数不超过MaxCycles;单轮失败重试耗尽后返回已加载的行
func (p *Paginator) CollectRows(ctx context.Context, page Page, profileURL string) ([]parsers.ListingRow, error) {
	if _, err := p.nav.Fetch(ctx, page, profileURL); err != nil {
		return nil, err
	}

	cycles := 0
	for cycles < p.cfg.MaxCycles {
		if ctx.Err() != nil {
			break
		}
		more, err := p.loadMore(ctx, page)
		if err != nil {
			utils.Warnf("加载更多失败,返回已加载的列表: %v", err)
			break
		}
		if !more {
			break
		}
		cycles++
	}
	if cycles >= p.cfg.MaxCycles {
		utils.Warnf("加载更多已达上限%d轮,停止翻页", p.cfg.MaxCycles)
	}

	// 取消后仍尽量读取已加载的内容
	readCtx := ctx
	if ctx.Err() != nil {
		readCtx = context.WithoutCancel(ctx)
	}
	html, err := page.HTML(readCtx)
	if err != nil {
		return nil, models.NewScrapeError(models.KindNavigationFailed, "html", profileURL, err)
	}
	if blocked, reason := p.nav.detect(html); blocked {
		return nil, models.NewScrapeError(models.KindBlockedBySource, "load_more", profileURL,
			fmt.Errorf("命中拦截特征: %s", reason))
	}

	rows, err := parsers.ParseListingRows(html, profileURL)
	if err != nil {
		return nil, models.NewScrapeError(models.KindNavigationFailed, "parse_listing", profileURL, err)
	}
	rows = dedupeRows(rows)
	log.Info().Str("profile", profileURL).Int("cycles", cycles).Int("rows", len(rows)).Msg("列表加载完成")
	return rows, nil
}

// CollectDetailLinks 返回去重后的详情页链接,顺序与列表一致
func (p *Paginator) CollectDetailLinks(ctx context.Context, page Page, profileURL string) ([]string, error) {
	rows, err := p.CollectRows(ctx, page, profileURL)
	if err != nil {
		return nil, err
	}
	links := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.DetailURL == "" {
			continue
		}
		links = append(links, row.DetailURL)
		if p.cfg.MaxDetailURLs > 0 && len(links) >= p.cfg.MaxDetailURLs {
			break
		}
	}
	return links, nil
}

// loadMore 执行一轮加载更多,失败时按固定间隔重试MaxRetries次
func (p *Paginator) loadMore(ctx context.Context, page Page) (bool, error) {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		more, err := page.LoadMore(ctx, p.spec)
		if err == nil {
			return more, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if attempt < p.cfg.MaxRetries {
			log.Debug().Int("attempt", attempt+1).Err(err).Msg("加载更多失败,稍后重试")
			if err := p.sleep(ctx, p.cfg.RetryDelay); err != nil {
				return false, err
			}
		}
	}
	return false, fmt.Errorf("加载更多重试%d次后仍失败: %w", p.cfg.MaxRetries, lastErr)
}

// dedupeRows 按详情链接去重 (无链接时按标题),保留第一次出现
func dedupeRows(rows []parsers.ListingRow) []parsers.ListingRow {
	seen := make(map[string]bool, len(rows))
	out := make([]parsers.ListingRow, 0, len(rows))
	for _, row := range rows {
		key := row.DetailURL
		if key == "" {
			key = "title:" + row.Title
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}
