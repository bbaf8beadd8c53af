package parsers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
)

// 场所字段类别
const (
	kindJournal    = "journal"
	kindConference = "conference"
	kindBook       = "book"
	kindSource     = "source"
	kindPatent     = "patent"
	kindThesis     = "thesis"
	kindReport     = "report"
)

// 详情页字段
const (
	fieldAuthors = iota + 1
	fieldDate
	fieldJournal
	fieldConference
	fieldBook
	fieldSource
	fieldVolume
	fieldIssue
	fieldPages
	fieldPublisher
	fieldDescription
	fieldCitations
	fieldRelated
	fieldPatentOffice
	fieldInstitution
	fieldReportNumber
)

// labelFields 规范化后的标签 -> 字段 (英文与法文界面)
var labelFields = map[string]int{
	"authors":                fieldAuthors,
	"auteurs":                fieldAuthors,
	"inventors":              fieldAuthors,
	"inventeurs":             fieldAuthors,
	"publicationdate":        fieldDate,
	"datedepublication":      fieldDate,
	"journal":                fieldJournal,
	"revue":                  fieldJournal,
	"conference":             fieldConference,
	"book":                   fieldBook,
	"livre":                  fieldBook,
	"source":                 fieldSource,
	"volume":                 fieldVolume,
	"issue":                  fieldIssue,
	"numero":                 fieldIssue,
	"pages":                  fieldPages,
	"publisher":              fieldPublisher,
	"editeur":                fieldPublisher,
	"description":            fieldDescription,
	"totalcitations":         fieldCitations,
	"nombretotaldecitations": fieldCitations,
	"scholararticles":        fieldRelated,
	"articlesgooglescholar":  fieldRelated,
	"patentoffice":           fieldPatentOffice,
	"officedesbrevets":       fieldPatentOffice,
	"institution":            fieldInstitution,
	"etablissement":          fieldInstitution,
	"reportnumber":           fieldReportNumber,
	"numerodurapport":        fieldReportNumber,
}

var doiRe = regexp.MustCompile(`10\.\d{4,9}/[^\s?#"<>]+`)

// ParseDetail 解析单篇出版物详情页
// 只有标题缺失时返回 ErrExtractionIncomplete,其余字段尽力填充
func ParseDetail(html, detailURL string) (*models.ScrapedPublication, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, models.NewScrapeError(models.KindExtractionIncomplete, "parse_detail", detailURL, err)
	}

	pub := &models.ScrapedPublication{
		AuthorNames:    []string{},
		CitationByYear: []models.CitationYear{},
		DetailURL:      detailURL,
		SourceSystem:   models.SourcePrimary,
	}

	titleSel := doc.Find("#gsc_oci_title").First()
	link := titleSel.Find("a.gsc_oci_title_link").First()
	pub.Title = selText(link)
	if pub.Title == "" {
		pub.Title = selText(titleSel)
	}
	if pub.Title == "" {
		return nil, models.NewScrapeError(models.KindExtractionIncomplete, "parse_detail", detailURL,
			fmt.Errorf("未找到标题"))
	}
	pub.URL = resolveURL(detailURL, link.AttrOr("href", ""))

	if pdf := doc.Find("#gsc_oci_title_gg a, .gsc_oci_title_ggi a").First(); pdf.Length() > 0 {
		pub.PDFURL = resolveURL(detailURL, pdf.AttrOr("href", ""))
	}

	venues := make(map[string]string)
	doc.Find("#gsc_oci_table .gs_scl").Each(func(_ int, row *goquery.Selection) {
		label := normalizeLabel(row.Find(".gsc_oci_field").Text())
		value := row.Find(".gsc_oci_value").First()
		field, ok := labelFields[label]
		if !ok {
			if label != "" {
				log.Debug().Str("label", label).Str("url", detailURL).Msg("忽略未知字段")
			}
			return
		}
		applyField(pub, venues, field, value, detailURL)
	})

	pub.CitationByYear = parseCitationGraph(doc, detailURL)
	pub.DOI = extractDOI(pub.URL, pub.PDFURL)

	kind := ""
	for _, k := range []string{kindJournal, kindConference, kindBook, kindPatent, kindThesis, kindSource} {
		if venues[k] != "" {
			kind = k
			pub.Venue.Name = venues[k]
			break
		}
	}
	if pub.Venue.Name == "" {
		pub.Venue.Name = models.UnknownVenue
	}
	// 报告编号只用于推断类型
	if (kind == "" || kind == kindSource) && venues[kindReport] != "" {
		kind = kindReport
	}
	pub.Venue.Publisher = pub.Publisher
	pub.Venue.Type = ClassifyVenue(pub.Title, venueKeywords(pub.Venue.Name), venueHint(kind))
	pub.PublicationType = inferPublicationType(kind, pub.Venue)

	return pub, nil
}

func applyField(pub *models.ScrapedPublication, venues map[string]string, field int, value *goquery.Selection, base string) {
	text := selText(value)
	switch field {
	case fieldAuthors:
		pub.AuthorNames = splitAuthors(text)
	case fieldDate:
		if d := parseDate(text); d != nil {
			pub.PublicationDate = d
		} else {
			log.Debug().Str("value", text).Str("url", base).Msg("无法解析出版日期")
		}
	case fieldJournal:
		venues[kindJournal] = text
	case fieldConference:
		venues[kindConference] = text
	case fieldBook:
		venues[kindBook] = text
	case fieldSource:
		venues[kindSource] = text
	case fieldPatentOffice:
		venues[kindPatent] = text
	case fieldInstitution:
		venues[kindThesis] = text
	case fieldReportNumber:
		venues[kindReport] = text
	case fieldVolume:
		pub.Volume = text
	case fieldIssue:
		pub.Issue = text
	case fieldPages:
		pub.Pages = text
	case fieldPublisher:
		pub.Publisher = text
	case fieldDescription:
		if d := selText(value.Find(".gsh_csp").First()); d != "" {
			pub.Abstract = d
		} else {
			pub.Abstract = text
		}
	case fieldCitations:
		anchor := value.Find(`a[href*="cites"]`).First()
		if anchor.Length() == 0 {
			anchor = value.Find("a").First()
		}
		if n, ok := parseLeadingInt(selText(anchor)); ok {
			pub.CitationCount = models.IntPtr(n)
		}
	case fieldRelated:
		related := value.Find(`a[href*="related:"]`).First()
		if related.Length() == 0 {
			related = value.Find(`a[href*="cluster"]`).First()
		}
		pub.RelatedArticlesURL = resolveURL(base, related.AttrOr("href", ""))
	}
}

// venueKeywords 场所名称为占位值时不参与关键词匹配
func venueKeywords(name string) string {
	if name == models.UnknownVenue {
		return ""
	}
	return name
}

func extractDOI(candidates ...string) string {
	for _, c := range candidates {
		if m := doiRe.FindString(c); m != "" {
			return strings.TrimRight(m, ".,;")
		}
	}
	return ""
}

// ListingRow 学者主页列表中的一行
type ListingRow struct {
	Title         string
	DetailURL     string
	Authors       []string
	Venue         string
	Year          int
	CitationCount *int
}

// ParseListingRows 解析学者主页的出版物列表
func ParseListingRows(html, baseURL string) ([]ListingRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("解析列表页失败: %w", err)
	}

	rows := make([]ListingRow, 0)
	doc.Find("tr.gsc_a_tr").Each(func(i int, s *goquery.Selection) {
		link := s.Find("a.gsc_a_at").First()
		row := ListingRow{
			Title:     selText(link),
			DetailURL: resolveURL(baseURL, link.AttrOr("href", link.AttrOr("data-href", ""))),
		}
		if row.Title == "" {
			log.Debug().Int("row", i).Msg("列表行缺少标题,跳过")
			return
		}

		grays := s.Find(".gsc_a_t .gs_gray")
		if grays.Length() > 0 {
			row.Authors = splitAuthors(grays.Eq(0).Text())
		}
		if grays.Length() > 1 {
			venue := grays.Eq(1).Clone()
			venue.Find(".gs_oph").Remove()
			row.Venue = strings.TrimRight(selText(venue), ", ")
		}

		if n, ok := parseLeadingInt(selText(s.Find(".gsc_a_y .gsc_a_h, span.gsc_a_h").First())); ok {
			row.Year = n
		}
		if cite := s.Find("a.gsc_a_ac").First(); cite.Length() > 0 {
			n, ok := parseLeadingInt(selText(cite))
			if !ok {
				n = 0
			}
			row.CitationCount = models.IntPtr(n)
		}
		rows = append(rows, row)
	})
	return rows, nil
}

// ToPublication 仅凭列表行构造记录 (不访问详情页时使用)
func (r ListingRow) ToPublication() models.ScrapedPublication {
	pub := models.ScrapedPublication{
		Title:          r.Title,
		AuthorNames:    append([]string{}, r.Authors...),
		DetailURL:      r.DetailURL,
		CitationByYear: []models.CitationYear{},
		SourceSystem:   models.SourcePrimary,
		Venue:          models.Venue{Name: r.Venue},
	}
	if r.CitationCount != nil {
		pub.CitationCount = models.IntPtr(*r.CitationCount)
	}
	if r.Year > 0 {
		pub.PublicationDate = models.YearDate(r.Year)
	}
	if pub.Venue.Name == "" {
		pub.Venue.Name = models.UnknownVenue
	}
	pub.Venue.Type = ClassifyVenue(r.Title, venueKeywords(pub.Venue.Name), "")
	pub.PublicationType = inferPublicationType("", pub.Venue)
	return pub
}

// AuthorCandidate 作者搜索结果中的一项
type AuthorCandidate struct {
	Name       string
	ProfileID  string
	ProfileURL string
}

// ParseAuthorCandidates 解析作者搜索结果页,按页面顺序返回,同一ID只保留第一次出现
func ParseAuthorCandidates(html, baseURL string) ([]AuthorCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("解析作者搜索页失败: %w", err)
	}

	seen := make(map[string]bool)
	candidates := make([]AuthorCandidate, 0)
	doc.Find("h3.gs_ai_name a, .gs_ai_name a").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		id := queryParam(href, "user")
		name := selText(a)
		if id == "" || name == "" || seen[id] {
			return
		}
		seen[id] = true
		candidates = append(candidates, AuthorCandidate{
			Name:       name,
			ProfileID:  id,
			ProfileURL: resolveURL(baseURL, href),
		})
	})
	return candidates, nil
}
