package crawlers_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/RecoveryAshes/ScholarCrawl/internal/crawlers"
	"github.com/RecoveryAshes/ScholarCrawl/internal/crawlers/crawlertest"
	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
)

const profileURL = "https://scholar.example/citations?user=AbC123"

func testPagination() models.PaginationConfig {
	return models.PaginationConfig{
		MaxCycles:    50,
		MaxRetries:   5,
		RetryDelay:   2 * time.Second,
		ResponseWait: time.Second,
	}
}

func makeRows(from, to int) []crawlertest.Row {
	rows := make([]crawlertest.Row, 0, to-from+1)
	for i := from; i <= to; i++ {
		rows = append(rows, crawlertest.Row{
			Title:     fmt.Sprintf("Paper %d", i),
			DetailURL: fmt.Sprintf("https://scholar.example/citations?view_op=view_citation&citation_for_view=AbC123:%d", i),
			Authors:   "M Koudil",
			Venue:     "Journal of Tests",
			Year:      2000 + i,
			Citations: i,
		})
	}
	return rows
}

func detailURLs(rows []crawlertest.Row) []string {
	urls := make([]string, len(rows))
	for i, r := range rows {
		urls[i] = r.DetailURL
	}
	return urls
}

func newPaginator(rec *sleepRecorder, cfg models.PaginationConfig) *crawlers.Paginator {
	nav := crawlers.NewNavigator(testNavigation(), crawlers.WithSleep(rec.sleep))
	return crawlers.NewPaginator(nav, cfg)
}

func TestPaginator_LoadsUntilExhausted(t *testing.T) {
	site := crawlertest.NewSite()
	site.Handle(profileURL, crawlertest.ProfilePage(makeRows(1, 3), true))
	site.HandleLoadMore(profileURL,
		crawlertest.ProfilePage(makeRows(1, 6), true),
		crawlertest.ProfilePage(makeRows(1, 8), false),
	)

	links, err := newPaginator(&sleepRecorder{}, testPagination()).
		CollectDetailLinks(context.Background(), openPage(t, site), profileURL)
	if err != nil {
		t.Fatalf("CollectDetailLinks() error = %v", err)
	}
	if want := detailURLs(makeRows(1, 8)); !reflect.DeepEqual(links, want) {
		t.Errorf("links = %v, want %v", links, want)
	}
}

func TestPaginator_SafetyBound(t *testing.T) {
	site := crawlertest.NewSite()
	site.Handle(profileURL, crawlertest.ProfilePage(makeRows(1, 5), true))
	calls := 0
	// 加载更多按钮永远不会消失
	site.LoadMoreFunc = func(string, int) (bool, error) {
		calls++
		return true, nil
	}

	links, err := newPaginator(&sleepRecorder{}, testPagination()).
		CollectDetailLinks(context.Background(), openPage(t, site), profileURL)
	if err != nil {
		t.Fatalf("CollectDetailLinks() error = %v", err)
	}
	if calls != 50 {
		t.Errorf("加载更多调用次数 = %d, want 50", calls)
	}
	if len(links) != 5 {
		t.Errorf("len(links) = %d, want 5", len(links))
	}
}

func TestPaginator_PartialOnFailure(t *testing.T) {
	site := crawlertest.NewSite()
	site.Handle(profileURL, crawlertest.ProfilePage(makeRows(1, 4), true))
	site.LoadMoreFunc = func(string, int) (bool, error) {
		return false, errors.New("等待新列表行超时")
	}

	rec := &sleepRecorder{}
	cfg := testPagination()
	links, err := newPaginator(rec, cfg).CollectDetailLinks(context.Background(), openPage(t, site), profileURL)
	if err != nil {
		t.Fatalf("部分成功不应返回错误: %v", err)
	}
	if len(links) != 4 {
		t.Errorf("len(links) = %d, want 4", len(links))
	}
	// 1次初始尝试 + 5次重试,之间等待5次
	waits := rec.recorded()
	if len(waits) != cfg.MaxRetries {
		t.Errorf("等待次数 = %d, want %d", len(waits), cfg.MaxRetries)
	}
	for _, w := range waits {
		if w != cfg.RetryDelay {
			t.Errorf("等待 = %v, want %v", w, cfg.RetryDelay)
		}
	}
}

func TestPaginator_RetryRecovers(t *testing.T) {
	site := crawlertest.NewSite()
	site.Handle(profileURL, crawlertest.ProfilePage(makeRows(1, 2), true))
	site.LoadMoreFunc = func(_ string, call int) (bool, error) {
		if call <= 2 {
			return false, errors.New("临时失败")
		}
		return false, nil
	}

	rec := &sleepRecorder{}
	links, err := newPaginator(rec, testPagination()).
		CollectDetailLinks(context.Background(), openPage(t, site), profileURL)
	if err != nil {
		t.Fatalf("CollectDetailLinks() error = %v", err)
	}
	if len(links) != 2 || len(rec.recorded()) != 2 {
		t.Errorf("links = %d, 等待 = %d", len(links), len(rec.recorded()))
	}
}

func TestPaginator_DeduplicatesAndLimits(t *testing.T) {
	rows := makeRows(1, 3)
	// 一行重复,一行没有详情链接
	rows = append(rows, rows[1], crawlertest.Row{Title: "No detail link"})

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{name: "不限制", limit: 0, want: detailURLs(makeRows(1, 3))},
		{name: "限制为2", limit: 2, want: detailURLs(makeRows(1, 2))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := crawlertest.NewSite()
			site.Handle(profileURL, crawlertest.ProfilePage(rows, false))
			cfg := testPagination()
			cfg.MaxDetailURLs = tt.limit

			links, err := newPaginator(&sleepRecorder{}, cfg).
				CollectDetailLinks(context.Background(), openPage(t, site), profileURL)
			if err != nil {
				t.Fatalf("CollectDetailLinks() error = %v", err)
			}
			if !reflect.DeepEqual(links, tt.want) {
				t.Errorf("links = %v, want %v", links, tt.want)
			}
		})
	}
}

func TestPaginator_CollectRows(t *testing.T) {
	site := crawlertest.NewSite()
	site.Handle(profileURL, crawlertest.ProfilePage(makeRows(1, 2), false))

	rows, err := newPaginator(&sleepRecorder{}, testPagination()).
		CollectRows(context.Background(), openPage(t, site), profileURL)
	if err != nil {
		t.Fatalf("CollectRows() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[1].Title != "Paper 2" || rows[1].Year != 2002 || rows[1].CitationCount == nil || *rows[1].CitationCount != 2 {
		t.Errorf("rows[1] = %+v", rows[1])
	}
}

func TestPaginator_BlockedProfile(t *testing.T) {
	site := crawlertest.NewSite()
	site.Handle(profileURL, crawlertest.BlockPage)

	_, err := newPaginator(&sleepRecorder{}, testPagination()).
		CollectDetailLinks(context.Background(), openPage(t, site), profileURL)
	if !errors.Is(err, models.ErrBlockedBySource) {
		t.Errorf("err = %v, want ErrBlockedBySource", err)
	}
}
