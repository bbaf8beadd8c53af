package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"有效的HTTP URL", "http://example.com", false},
		{"有效的HTTPS URL", "https://scholar.google.com", false},
		{"带路径的URL", "https://dblp.org/search/author", false},
		{"无效的协议", "ftp://example.com", true},
		{"无效的URL", "not a url", true},
		{"空URL", "", true},
		{"无协议", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScrapeConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ScrapeConfig)
		wantErr bool
	}{
		{"默认配置", func(c *ScrapeConfig) {}, false},
		{"尝试次数为0", func(c *ScrapeConfig) { c.Navigation.MaxAttempts = 0 }, true},
		{"间隔上限小于下限", func(c *ScrapeConfig) { c.Navigation.MaxDelay = 0 }, true},
		{"姓名阈值越界", func(c *ScrapeConfig) { c.Resolver.NameThreshold = 1.2 }, true},
		{"标题阈值越界", func(c *ScrapeConfig) { c.Reconcile.TitleThreshold = -0.1 }, true},
		{"加载轮数为0", func(c *ScrapeConfig) { c.Pagination.MaxCycles = 0 }, true},
		{"索引站点地址无效", func(c *ScrapeConfig) { c.Secondary.BaseURL = "dblp.org" }, true},
		{"禁用索引站点时忽略地址", func(c *ScrapeConfig) {
			c.Secondary.Enabled = false
			c.Secondary.BaseURL = ""
		}, false},
		{"并发会话过多", func(c *ScrapeConfig) { c.Batch.MaxSessions = 64 }, true},
		{"浏览器超时为0", func(c *ScrapeConfig) { c.Browser.Timeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultScrapeConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScrapeError_Is(t *testing.T) {
	cause := errors.New("net::ERR_CONNECTION_RESET")
	err := fmt.Errorf("解析学者主页: %w",
		NewScrapeError(KindNavigationFailed, "goto", "https://example.com", cause))

	if !errors.Is(err, ErrNavigationFailed) {
		t.Error("应匹配 ErrNavigationFailed")
	}
	if errors.Is(err, ErrBlockedBySource) {
		t.Error("不应匹配 ErrBlockedBySource")
	}
	if !errors.Is(err, cause) {
		t.Error("应能通过Unwrap匹配底层错误")
	}
	if KindOf(err) != KindNavigationFailed {
		t.Errorf("KindOf() = %v, want %v", KindOf(err), KindNavigationFailed)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		want  ErrorKind
		fatal bool
	}{
		{"nil", nil, KindUnknown, false},
		{"普通错误", errors.New("x"), KindUnknown, false},
		{"哨兵错误", fmt.Errorf("包装: %w", ErrBlockedBySource), KindBlockedBySource, false},
		{"浏览器不可用", ErrBrowserUnavailable, KindBrowserUnavailable, true},
		{"连续拦截", NewScrapeError(KindScrapeAborted, "rotate", "", ErrBlockedBySource), KindScrapeAborted, true},
		{"解析不完整", NewScrapeError(KindExtractionIncomplete, "extract", "", nil), KindExtractionIncomplete, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
			if got := IsRunFatal(tt.err); got != tt.fatal {
				t.Errorf("IsRunFatal() = %v, want %v", got, tt.fatal)
			}
		})
	}
}

func TestScrapeError_Message(t *testing.T) {
	err := &ScrapeError{Kind: KindNavigationFailed, Op: "goto", URL: "https://a.example", Attempts: 3}
	want := "页面导航失败 [goto] https://a.example (尝试3次)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestRunResult_Finalize(t *testing.T) {
	result := NewRunResult(ResearcherRequest{ResearcherID: "r-1", DisplayName: "Jane Smith"})
	if result.RunID == "" {
		t.Fatal("RunID不应为空")
	}

	result.Publications = []ScrapedPublication{
		{Title: "A", SourceSystem: SourcePrimary},
		{Title: "B", SourceSystem: SourcePrimary},
		{Title: "C", SourceSystem: SourceSecondary},
	}
	result.Finalize()

	if result.Summary.Found != 3 || result.Summary.FromPrimary != 2 || result.Summary.FromSecondary != 1 {
		t.Errorf("摘要计数错误: %+v", result.Summary)
	}
	if result.Summary.Found != result.Summary.FromPrimary+result.Summary.FromSecondary {
		t.Error("found 应等于 fromPrimary + fromSecondary")
	}
}

func TestRunResult_JSON(t *testing.T) {
	result := NewRunResult(ResearcherRequest{ResearcherID: "r-1", DisplayName: "Jane Smith"})
	result.Publications = append(result.Publications, ScrapedPublication{
		Title:           "Deep Learning for X",
		AuthorNames:     []string{"J Smith", "A Doe"},
		PublicationType: TypeJournalArticle,
		PublicationDate: YearDate(2019),
		CitationCount:   IntPtr(42),
		CitationByYear:  []CitationYear{{Year: 2020, Count: 10}, {Year: 2021, Count: 32}},
		Venue:           Venue{Name: "Journal of X", Type: VenueJournal},
		SourceSystem:    SourcePrimary,
	})
	result.Finalize()

	data, err := result.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	var decoded RunResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.ResearcherID != "r-1" {
		t.Errorf("ResearcherID不匹配: got %v", decoded.ResearcherID)
	}
	pub := decoded.Publications[0]
	if pub.Year() != 2019 {
		t.Errorf("Year() = %d, want 2019", pub.Year())
	}
	if pub.CitationCount == nil || *pub.CitationCount != 42 {
		t.Errorf("CitationCount = %v, want 42", pub.CitationCount)
	}
	if !pub.PublicationDate.Equal(time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("PublicationDate = %v", pub.PublicationDate)
	}
}

func TestResearcherRequest_Validate(t *testing.T) {
	if err := (ResearcherRequest{DisplayName: "  "}).Validate(); err == nil {
		t.Error("空白姓名应返回错误")
	}
	if err := (ResearcherRequest{DisplayName: "Mouloud Koudil"}).Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestCliHeaders_Parse(t *testing.T) {
	tests := []struct {
		name    string
		input   CliHeaders
		want    http.Header
		wantErr bool
	}{
		{"单个头部", CliHeaders{"Referer: https://a.example"}, http.Header{"Referer": {"https://a.example"}}, false},
		{"值中包含冒号", CliHeaders{"X-Url: http://x:8080"}, http.Header{"X-Url": {"http://x:8080"}}, false},
		{"缺少冒号", CliHeaders{"Referer"}, nil, true},
		{"空名称", CliHeaders{": value"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.input.Parse()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFingerprint_HeaderPairs(t *testing.T) {
	fp := Fingerprint{Headers: http.Header{
		"X-B": {"2"},
		"X-A": {"1"},
	}}
	want := []string{"X-A", "1", "X-B", "2"}
	if got := fp.HeaderPairs(); !reflect.DeepEqual(got, want) {
		t.Errorf("HeaderPairs() = %v, want %v", got, want)
	}
}

func TestFingerprint_SessionCookie(t *testing.T) {
	tests := []struct {
		name       string
		seed       string
		rawURL     string
		wantNil    bool
		wantSecure bool
	}{
		{name: "https站点", seed: "00ff00ff00ff00ff", rawURL: "https://scholar.google.com", wantSecure: true},
		{name: "http站点", seed: "00ff00ff00ff00ff", rawURL: "http://127.0.0.1:8080/"},
		{name: "没有种子", rawURL: "https://scholar.google.com", wantNil: true},
		{name: "地址无效", seed: "00ff00ff00ff00ff", rawURL: "not a url", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Fingerprint{CookieSeed: tt.seed}.SessionCookie(tt.rawURL)
			if tt.wantNil {
				if c != nil {
					t.Errorf("SessionCookie() = %+v, want nil", c)
				}
				return
			}
			if c == nil {
				t.Fatal("SessionCookie() = nil")
			}
			if c.Name != SessionCookieName || c.Value != tt.seed || c.Path != "/" || c.Secure != tt.wantSecure {
				t.Errorf("SessionCookie() = %+v", c)
			}
		})
	}
}
