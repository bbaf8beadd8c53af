package parsers

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/RecoveryAshes/ScholarCrawl/internal/matching"
	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
)

// dblp条目class -> 出版物类型与场所提示
var dblpEntryTypes = map[string]struct {
	pubType models.PublicationType
	hint    models.VenueType
}{
	"article":       {models.TypeJournalArticle, models.VenueJournal},
	"inproceedings": {models.TypeConferencePaper, models.VenueConference},
	"incollection":  {models.TypeBookChapter, models.VenueBook},
	"book":          {models.TypeBookChapter, models.VenueBook},
	"editor":        {models.TypeBookChapter, models.VenueBook},
	"informal":      {models.TypePreprint, models.VenueJournal},
	"phdthesis":     {models.TypeThesis, models.VenueBook},
	"mastersthesis": {models.TypeThesis, models.VenueBook},
}

// toUTF8 按Content-Type与内容嗅探转换为UTF-8
func toUTF8(body []byte, contentType string) ([]byte, error) {
	enc, _, _ := charset.DetermineEncoding(body, contentType)
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		if !utf8.Valid(body) {
			return nil, fmt.Errorf("字符集转换失败: %w", err)
		}
		out = body
	}
	return out, nil
}

func dblpDocument(body []byte, contentType string) (*goquery.Document, error) {
	data, err := toUTF8(body, contentType)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(data))
}

// IsDBLPPersonPage 搜索精确命中时索引站点会直接跳转到作者页
func IsDBLPPersonPage(body []byte, contentType string) bool {
	doc, err := dblpDocument(body, contentType)
	if err != nil {
		return false
	}
	return doc.Find("li.entry").Length() > 0
}

// ParseDBLPAuthorCandidates 解析作者搜索结果
func ParseDBLPAuthorCandidates(body []byte, contentType, baseURL string) ([]AuthorCandidate, error) {
	doc, err := dblpDocument(body, contentType)
	if err != nil {
		return nil, fmt.Errorf("解析索引站点搜索页失败: %w", err)
	}

	seen := make(map[string]bool)
	candidates := make([]AuthorCandidate, 0)
	doc.Find("#completesearch-authors ul.result-list li a").Each(func(_ int, a *goquery.Selection) {
		href := resolveURL(baseURL, a.AttrOr("href", ""))
		if !strings.Contains(href, "/pid/") || seen[href] {
			return
		}
		name := selText(a.Find(`span[itemprop="name"]`).First())
		if name == "" {
			name = selText(a)
		}
		seen[href] = true
		candidates = append(candidates, AuthorCandidate{
			Name:       name,
			ProfileID:  dblpPID(href),
			ProfileURL: href,
		})
	})
	return candidates, nil
}

// dblpPID 从 https://dblp.org/pid/12/3456.html 中取出 12/3456
func dblpPID(href string) string {
	_, after, ok := strings.Cut(href, "/pid/")
	if !ok {
		return ""
	}
	after, _, _ = strings.Cut(after, "?")
	return strings.TrimSuffix(after, ".html")
}

// ParseDBLPEntries 解析作者页中的全部出版物条目,缺少标题的条目被跳过
func ParseDBLPEntries(body []byte, contentType string) ([]models.ScrapedPublication, error) {
	doc, err := dblpDocument(body, contentType)
	if err != nil {
		return nil, fmt.Errorf("解析索引站点作者页失败: %w", err)
	}

	pubs := make([]models.ScrapedPublication, 0)
	doc.Find("li.entry").Each(func(_ int, entry *goquery.Selection) {
		if pub, ok := parseDBLPEntry(entry); ok {
			pubs = append(pubs, pub)
		}
	})
	return pubs, nil
}

func parseDBLPEntry(entry *goquery.Selection) (models.ScrapedPublication, bool) {
	cite := entry.Find("cite").First()
	title := strings.TrimSuffix(selText(cite.Find("span.title").First()), ".")
	if title == "" {
		return models.ScrapedPublication{}, false
	}

	pub := models.ScrapedPublication{
		Title:          title,
		AuthorNames:    []string{},
		CitationByYear: []models.CitationYear{},
		SourceSystem:   models.SourceSecondary,
	}

	cite.Find(`span[itemprop="author"] span[itemprop="name"]`).Each(func(_ int, s *goquery.Selection) {
		if name := selText(s); name != "" {
			pub.AuthorNames = append(pub.AuthorNames, name)
		}
	})

	venueName := ""
	cite.Find(`span[itemprop="isPartOf"] > span[itemprop="name"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		venueName = selText(s)
		return venueName == ""
	})
	if venueName == "" {
		// 学位论文等没有isPartOf,场所写在school/publisher中
		venueName = selText(cite.Find(`span[itemprop="sourceOrganization"], span[itemprop="publisher"]`).First())
	}

	pub.Volume = selText(cite.Find(`span[itemprop="volumeNumber"]`).First())
	pub.Issue = selText(cite.Find(`span[itemprop="issueNumber"]`).First())
	pub.Pages = selText(cite.Find(`span[itemprop="pagination"]`).First())
	pub.Publisher = selText(cite.Find(`span[itemprop="publisher"]`).First())
	if y, err := strconv.Atoi(selText(cite.Find(`span[itemprop="datePublished"]`).First())); err == nil {
		pub.PublicationDate = models.YearDate(y)
	}

	links := entry.Find("nav.publ li.drop-down .head a")
	links.EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := a.AttrOr("href", "")
		if pub.URL == "" {
			pub.URL = href
		}
		if strings.Contains(href, "doi.org/") {
			_, doi, _ := strings.Cut(href, "doi.org/")
			pub.DOI = doi
			return false
		}
		return true
	})

	pub.Venue = models.Venue{
		Name:         venueName,
		Publisher:    pub.Publisher,
		IsOpenAccess: dblpOpenAccess(entry),
	}
	if pub.Venue.Name == "" {
		pub.Venue.Name = models.UnknownVenue
	}

	typ, hint := models.TypeJournalArticle, models.VenueType("")
	for _, class := range strings.Fields(entry.AttrOr("class", "")) {
		if t, ok := dblpEntryTypes[class]; ok {
			typ, hint = t.pubType, t.hint
			break
		}
	}
	pub.Venue.Type = ClassifyVenue(title, venueKeywords(pub.Venue.Name), hint)
	pub.PublicationType = typ
	if typ == models.TypeConferencePaper || typ == models.TypeJournalArticle {
		if inferred := inferPublicationType("", pub.Venue); inferred == models.TypePreprint {
			pub.PublicationType = inferred
		}
	}
	return pub, true
}

// dblpOpenAccess 只有明确的开放获取图标才算开放获取
func dblpOpenAccess(entry *goquery.Selection) bool {
	found := false
	entry.Find("nav.publ img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := img.AttrOr("src", "")
		title := matching.Fold(img.AttrOr("title", ""))
		if strings.Contains(src, "paper-oa") || strings.Contains(title, "open access") {
			found = true
		}
		return !found
	})
	return found
}
