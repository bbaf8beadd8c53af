package parsers

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"github.com/RecoveryAshes/ScholarCrawl/internal/matching"
	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	integerRe    = regexp.MustCompile(`\d[\d,.\x{00a0}\x{202f}]*`)
	yearRe       = regexp.MustCompile(`\b(1[89]\d{2}|20\d{2})\b`)
	yearOnlyRe   = regexp.MustCompile(`^\d{4}$`)
	yearMonthRe  = regexp.MustCompile(`^(\d{4})[/-](\d{1,2})$`)
)

// normalizeLabel 标签规范化: 小写、去变音符号、去空白
// "Date de publication" -> "datedepublication"
func normalizeLabel(label string) string {
	label = strings.TrimSuffix(cleanText(label), ":")
	return whitespaceRe.ReplaceAllString(matching.Fold(label), "")
}

// cleanText 合并连续空白并去除首尾空白
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func selText(s *goquery.Selection) string {
	return cleanText(s.Text())
}

// parseLeadingInt 解析文本中的第一个整数,允许千位分隔符
// "Cited by 1,234" -> 1234, "Cité 12 fois" -> 12
func parseLeadingInt(s string) (int, bool) {
	m := integerRe.FindString(s)
	if m == "" {
		return 0, false
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, m)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseDate 解析出版日期,只有年份时取当年1月1日
func parseDate(raw string) *time.Time {
	raw = cleanText(raw)
	if raw == "" {
		return nil
	}
	if yearOnlyRe.MatchString(raw) {
		y, _ := strconv.Atoi(raw)
		return models.YearDate(y)
	}
	if m := yearMonthRe.FindStringSubmatch(raw); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		if mo >= 1 && mo <= 12 {
			t := time.Date(y, time.Month(mo), 1, 0, 0, 0, 0, time.UTC)
			return &t
		}
		return models.YearDate(y)
	}
	if t, err := dateparse.ParseIn(raw, time.UTC); err == nil {
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &t
	}
	if m := yearRe.FindString(raw); m != "" {
		y, _ := strconv.Atoi(m)
		return models.YearDate(y)
	}
	return nil
}

// splitAuthors 按逗号拆分作者字符串,保持顺序
func splitAuthors(raw string) []string {
	parts := strings.Split(raw, ",")
	authors := make([]string, 0, len(parts))
	for _, p := range parts {
		name := cleanText(p)
		name = strings.TrimSpace(strings.TrimSuffix(name, "..."))
		if name == "" || name == "..." {
			continue
		}
		authors = append(authors, name)
	}
	return authors
}

// resolveURL 将相对链接转换为绝对链接
func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() || base == "" {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref.String()
	}
	return b.ResolveReference(ref).String()
}

// queryParam 读取链接中的查询参数
func queryParam(href, key string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get(key)
}
