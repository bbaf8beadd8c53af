package parsers

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("读取测试数据失败: %v", err)
	}
	return string(data)
}

const detailURL = "https://scholar.google.com/citations?view_op=view_citation&hl=en&user=AbC123&citation_for_view=AbC123:u5HHmVD_uO8C"

func TestParseDetail_English(t *testing.T) {
	pub, err := ParseDetail(loadFixture(t, "scholar_detail_en.html"), detailURL)
	if err != nil {
		t.Fatalf("ParseDetail() error = %v", err)
	}

	if pub.Title != "Parallel metaheuristics for graph coloring" {
		t.Errorf("Title = %q", pub.Title)
	}
	wantAuthors := []string{"Mouloud Koudil", "Karima Benatchba", "Amina Tarabet", "El Batoul Sahraoui"}
	if !reflect.DeepEqual(pub.AuthorNames, wantAuthors) {
		t.Errorf("AuthorNames = %v, want %v", pub.AuthorNames, wantAuthors)
	}
	if pub.PublicationDate == nil || !pub.PublicationDate.Equal(time.Date(2019, 3, 12, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("PublicationDate = %v", pub.PublicationDate)
	}
	if pub.URL != "https://doi.org/10.1016/j.jpdc.2019.03.012" {
		t.Errorf("URL = %q", pub.URL)
	}
	if pub.DOI != "10.1016/j.jpdc.2019.03.012" {
		t.Errorf("DOI = %q", pub.DOI)
	}
	if pub.PDFURL != "https://www.example.org/papers/pmgc.pdf" {
		t.Errorf("PDFURL = %q", pub.PDFURL)
	}
	if pub.DetailURL != detailURL {
		t.Errorf("DetailURL = %q", pub.DetailURL)
	}
	if pub.Volume != "128" || pub.Issue != "4" || pub.Pages != "101-115" {
		t.Errorf("Volume/Issue/Pages = %q/%q/%q", pub.Volume, pub.Issue, pub.Pages)
	}
	if pub.Publisher != "Academic Press" || pub.Venue.Publisher != "Academic Press" {
		t.Errorf("Publisher = %q, Venue.Publisher = %q", pub.Publisher, pub.Venue.Publisher)
	}
	if pub.Abstract != "We study parallel metaheuristics for the graph coloring problem." {
		t.Errorf("Abstract = %q", pub.Abstract)
	}
	if pub.CitationCount == nil || *pub.CitationCount != 1234 {
		t.Errorf("CitationCount = %v, want 1234", pub.CitationCount)
	}
	if !strings.Contains(pub.RelatedArticlesURL, "related:AbCdEf") {
		t.Errorf("RelatedArticlesURL = %q", pub.RelatedArticlesURL)
	}
	if pub.Venue.Name != "Journal of Parallel and Distributed Computing" || pub.Venue.Type != models.VenueJournal {
		t.Errorf("Venue = %+v", pub.Venue)
	}
	if pub.Venue.IsOpenAccess {
		t.Error("没有明确依据时不应标记为开放获取")
	}
	if pub.PublicationType != models.TypeJournalArticle {
		t.Errorf("PublicationType = %s", pub.PublicationType)
	}
	if pub.SourceSystem != models.SourcePrimary {
		t.Errorf("SourceSystem = %s", pub.SourceSystem)
	}

	wantGraph := []models.CitationYear{
		{Year: 2015, Count: 3},
		{Year: 2016, Count: 12},
		{Year: 2017, Count: 0},
		{Year: 2018, Count: 40},
		{Year: 2019, Count: 0},
		{Year: 2020, Count: 0},
	}
	if !reflect.DeepEqual(pub.CitationByYear, wantGraph) {
		t.Errorf("CitationByYear = %v, want %v", pub.CitationByYear, wantGraph)
	}
}

func TestParseDetail_French(t *testing.T) {
	base := "https://scholar.google.com/citations?view_op=view_citation&hl=fr&citation_for_view=abc:def"
	pub, err := ParseDetail(loadFixture(t, "scholar_detail_fr.html"), base)
	if err != nil {
		t.Fatalf("ParseDetail() error = %v", err)
	}

	if pub.Title != "Un algorithme génétique pour le partitionnement" {
		t.Errorf("Title = %q", pub.Title)
	}
	if pub.URL != "https://scholar.google.com/citations?view_op=view_citation&citation_for_view=abc:def" {
		t.Errorf("URL = %q", pub.URL)
	}
	if len(pub.AuthorNames) != 2 || pub.AuthorNames[1] != "Salima Hamadache" {
		t.Errorf("AuthorNames = %v", pub.AuthorNames)
	}
	if pub.Year() != 2011 || pub.PublicationDate.Month() != time.January || pub.PublicationDate.Day() != 1 {
		t.Errorf("PublicationDate = %v", pub.PublicationDate)
	}
	if pub.Issue != "2" || pub.Publisher != "IEEE" {
		t.Errorf("Issue/Publisher = %q/%q", pub.Issue, pub.Publisher)
	}
	if pub.CitationCount == nil || *pub.CitationCount != 17 {
		t.Errorf("CitationCount = %v, want 17", pub.CitationCount)
	}
	if pub.Venue.Type != models.VenueWorkshop {
		t.Errorf("Venue.Type = %s, want workshop", pub.Venue.Type)
	}
	if pub.PublicationType != models.TypeConferencePaper {
		t.Errorf("PublicationType = %s", pub.PublicationType)
	}
	if pub.CitationByYear == nil || len(pub.CitationByYear) != 0 {
		t.Errorf("没有柱状图时应为空切片, got %v", pub.CitationByYear)
	}
}

func TestParseDetail_MissingTitle(t *testing.T) {
	_, err := ParseDetail(loadFixture(t, "scholar_detail_notitle.html"), detailURL)
	if err == nil {
		t.Fatal("缺少标题时应返回错误")
	}
	if !errors.Is(err, models.ErrExtractionIncomplete) {
		t.Errorf("错误类型 = %v, want ErrExtractionIncomplete", err)
	}
}

func TestParseDetail_OptionalFieldsAbsent(t *testing.T) {
	pub, err := ParseDetail(loadFixture(t, "scholar_detail_minimal.html"), detailURL)
	if err != nil {
		t.Fatalf("ParseDetail() error = %v", err)
	}
	if pub.Title != "A title without a link or table" {
		t.Errorf("Title = %q", pub.Title)
	}
	if pub.Venue.Name != models.UnknownVenue || pub.Venue.Type != models.VenueJournal {
		t.Errorf("Venue = %+v", pub.Venue)
	}
	if pub.CitationCount != nil || pub.PublicationDate != nil || pub.URL != "" {
		t.Errorf("可选字段应为空: %+v", pub)
	}
}

func TestParseDetail_Idempotent(t *testing.T) {
	html := loadFixture(t, "scholar_detail_en.html")
	first, err := ParseDetail(html, detailURL)
	if err != nil {
		t.Fatalf("ParseDetail() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := ParseDetail(html, detailURL)
		if err != nil {
			t.Fatalf("ParseDetail() error = %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("第%d次解析结果不一致", i+2)
		}
	}
}

func TestParseListingRows(t *testing.T) {
	base := "https://scholar.google.com/citations?user=AbC123&hl=en&cstart=0&pagesize=100"
	rows, err := ParseListingRows(loadFixture(t, "scholar_profile.html"), base)
	if err != nil {
		t.Fatalf("ParseListingRows() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2 (缺少标题的行应跳过)", len(rows))
	}

	first := rows[0]
	if first.DetailURL != "https://scholar.google.com/citations?view_op=view_citation&hl=en&user=AbC123&pagesize=100&citation_for_view=AbC123:u5HHmVD_uO8C" {
		t.Errorf("DetailURL = %q", first.DetailURL)
	}
	if first.Venue != "Journal of Parallel and Distributed Computing 128 (4), 101-115" {
		t.Errorf("Venue = %q", first.Venue)
	}
	if first.Year != 2019 || first.CitationCount == nil || *first.CitationCount != 1200 {
		t.Errorf("Year/CitationCount = %d/%v", first.Year, first.CitationCount)
	}
	if len(first.Authors) != 4 {
		t.Errorf("Authors = %v", first.Authors)
	}

	second := rows[1]
	if !reflect.DeepEqual(second.Authors, []string{"M Koudil", "K Benatchba"}) {
		t.Errorf("截断的作者列表应去掉省略号: %v", second.Authors)
	}
	if second.CitationCount == nil || *second.CitationCount != 0 {
		t.Errorf("空引用单元格应计为0, got %v", second.CitationCount)
	}

	pub := second.ToPublication()
	if pub.Venue.Type != models.VenueConference || pub.PublicationType != models.TypeConferencePaper {
		t.Errorf("列表行推断类型错误: %s / %s", pub.Venue.Type, pub.PublicationType)
	}
	if pub.Year() != 2008 {
		t.Errorf("Year() = %d", pub.Year())
	}
}

func TestParseAuthorCandidates(t *testing.T) {
	base := "https://scholar.google.com/citations?view_op=search_authors&mauthors=Mouloud+Koudil&hl=en"
	candidates, err := ParseAuthorCandidates(loadFixture(t, "scholar_authors.html"), base)
	if err != nil {
		t.Fatalf("ParseAuthorCandidates() error = %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("len(candidates) = %d, want 2", len(candidates))
	}
	if candidates[0].ProfileID != "ZZZ999" {
		t.Errorf("应保持页面顺序, got %s", candidates[0].ProfileID)
	}
	want := AuthorCandidate{
		Name:       "Mouloud Koudil",
		ProfileID:  "AbC123",
		ProfileURL: "https://scholar.google.com/citations?hl=en&user=AbC123",
	}
	if candidates[1] != want {
		t.Errorf("candidates[1] = %+v, want %+v", candidates[1], want)
	}
}
