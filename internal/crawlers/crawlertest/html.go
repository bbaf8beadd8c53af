package crawlertest

import (
	"fmt"
	"html"
	"strings"
)

// Author 作者搜索结果中的一项
type Author struct {
	Name string
	ID   string
}

// AuthorSearchPage 生成作者搜索结果页
func AuthorSearchPage(authors ...Author) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="gsc_sa_ccl">`)
	for _, a := range authors {
		fmt.Fprintf(&b, `<div class="gsc_1usr"><h3 class="gs_ai_name"><a href="/citations?hl=en&amp;user=%s">%s</a></h3></div>`,
			html.EscapeString(a.ID), html.EscapeString(a.Name))
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

// Row 主页列表中的一行
type Row struct {
	Title     string
	DetailURL string // 为空时该行没有详情链接
	Authors   string
	Venue     string
	Year      int
	Citations int
}

// ProfilePage 生成主页列表,withMore为true时带有加载更多按钮
func ProfilePage(rows []Row, withMore bool) string {
	var b strings.Builder
	b.WriteString(`<html><body><table id="gsc_a_t"><tbody id="gsc_a_b">`)
	for _, r := range rows {
		fmt.Fprintf(&b, `<tr class="gsc_a_tr"><td class="gsc_a_t"><a href="%s" class="gsc_a_at">%s</a>`,
			html.EscapeString(r.DetailURL), html.EscapeString(r.Title))
		fmt.Fprintf(&b, `<div class="gs_gray">%s</div><div class="gs_gray">%s<span class="gs_oph">, %d</span></div></td>`,
			html.EscapeString(r.Authors), html.EscapeString(r.Venue), r.Year)
		fmt.Fprintf(&b, `<td class="gsc_a_c"><a href="#" class="gsc_a_ac gs_ibl">%d</a></td>`, r.Citations)
		fmt.Fprintf(&b, `<td class="gsc_a_y"><span class="gsc_a_h gsc_a_hc gs_ibl">%d</span></td></tr>`, r.Year)
	}
	b.WriteString(`</tbody></table>`)
	if withMore {
		b.WriteString(`<button id="gsc_bpf_more" type="button"><span class="gs_lbl">Show more</span></button>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

// DetailPage 生成出版物详情页
func DetailPage(r Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><body><div id="gsc_oci_title"><a class="gsc_oci_title_link" href="https://example.org/paper">%s</a></div>`,
		html.EscapeString(r.Title))
	b.WriteString(`<div id="gsc_oci_table">`)
	field := func(label, value string) {
		fmt.Fprintf(&b, `<div class="gs_scl"><div class="gsc_oci_field">%s</div><div class="gsc_oci_value">%s</div></div>`, label, value)
	}
	field("Authors", html.EscapeString(r.Authors))
	if r.Year > 0 {
		field("Publication date", fmt.Sprintf("%d", r.Year))
	}
	if r.Venue != "" {
		field("Journal", html.EscapeString(r.Venue))
	}
	field("Total citations", fmt.Sprintf(`<a href="/scholar?cites=1">Cited by %d</a>`, r.Citations))
	b.WriteString(`</div></body></html>`)
	return b.String()
}

// BrokenDetailPage 没有标题的详情页
func BrokenDetailPage() string {
	return `<html><body><div id="gsc_oci_table"><div class="gs_scl"><div class="gsc_oci_field">Authors</div><div class="gsc_oci_value">Nobody</div></div></div></body></html>`
}
