package crawlers

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
)

func TestLocateBrowser(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "chromium")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("创建测试文件失败: %v", err)
	}

	tests := []struct {
		name string
		cfg  models.BrowserConfig
	}{
		{name: "配置路径", cfg: models.BrowserConfig{ExecutablePath: bin}},
		{name: "配置路径不存在时使用备用路径", cfg: models.BrowserConfig{
			ExecutablePath:         filepath.Join(dir, "missing"),
			FallbackExecutablePath: bin,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LocateBrowser(tt.cfg)
			if !ok || got != bin {
				t.Errorf("LocateBrowser() = %q, %v, want %q", got, ok, bin)
			}
		})
	}
}

func TestScholarLoadMore(t *testing.T) {
	spec := ScholarLoadMore(0)
	if spec.ButtonSelector != "#gsc_bpf_more" || spec.RowSelector != "tr.gsc_a_tr" {
		t.Errorf("ScholarLoadMore() = %+v", spec)
	}
}

func TestCookieParams(t *testing.T) {
	cookies := []*http.Cookie{
		{Name: models.SessionCookieName, Value: "abc", Path: "/", Secure: true, HttpOnly: true},
		nil,
	}
	params := cookieParams("https://scholar.google.com", cookies)
	if len(params) != 1 {
		t.Fatalf("len(params) = %d, want 1", len(params))
	}
	p := params[0]
	if p.Name != models.SessionCookieName || p.Value != "abc" || p.URL != "https://scholar.google.com" ||
		!p.Secure || !p.HTTPOnly || p.Domain != "" || p.Expires != 0 {
		t.Errorf("cookieParams() = %+v", p)
	}
}
