package models

import (
	"encoding/json"
	"time"
)

// PublicationType 出版物类型(推断得出,非权威)
type PublicationType string

const (
	TypeJournalArticle  PublicationType = "journal_article"  // 期刊论文
	TypeConferencePaper PublicationType = "conference_paper" // 会议论文
	TypeBookChapter     PublicationType = "book_chapter"     // 书籍章节
	TypePatent          PublicationType = "patent"           // 专利
	TypeTechnicalReport PublicationType = "technical_report" // 技术报告
	TypeThesis          PublicationType = "thesis"           // 学位论文
	TypePreprint        PublicationType = "preprint"         // 预印本
)

// VenueType 发表场所类型
type VenueType string

const (
	VenueJournal    VenueType = "journal"
	VenueConference VenueType = "conference"
	VenueWorkshop   VenueType = "workshop"
	VenueSymposium  VenueType = "symposium"
	VenueBook       VenueType = "book"
)

// UnknownVenue 无法解析场所名称时使用的占位值
const UnknownVenue = "Unknown"

// SourceSystem 记录来源
type SourceSystem string

const (
	SourcePrimary   SourceSystem = "primary"   // 学术主页聚合站点
	SourceSecondary SourceSystem = "secondary" // 文献索引站点
)

// CitationYear 某一年的引用次数
type CitationYear struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// Venue 发表场所
// 可选字符串字段以空串表示缺失
type Venue struct {
	Name         string    `json:"name"`
	Type         VenueType `json:"type"`
	Publisher    string    `json:"publisher,omitempty"`
	ISSN         string    `json:"issn,omitempty"`
	EISSN        string    `json:"eissn,omitempty"`
	Website      string    `json:"website,omitempty"`
	Location     string    `json:"location,omitempty"`
	ImpactFactor *float64  `json:"impact_factor,omitempty"`
	SJRIndicator *float64  `json:"sjr_indicator,omitempty"`
	IsOpenAccess bool      `json:"is_open_access"`
}

// ScrapedPublication 一条抓取到的出版物记录
// 仅Title为必填,其余字段尽力填充
type ScrapedPublication struct {
	Title           string          `json:"title"`
	AuthorNames     []string        `json:"author_names"` // 保持来源顺序
	PublicationType PublicationType `json:"publication_type"`
	PublicationDate *time.Time      `json:"publication_date,omitempty"`

	DOI       string `json:"doi,omitempty"`
	URL       string `json:"url,omitempty"`
	PDFURL    string `json:"pdf_url,omitempty"`
	DetailURL string `json:"detail_url,omitempty"`

	CitationCount  *int           `json:"citation_count,omitempty"`
	CitationByYear []CitationYear `json:"citation_by_year"` // 按年份严格递增

	Pages     string `json:"pages,omitempty"`
	Volume    string `json:"volume,omitempty"`
	Issue     string `json:"issue,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	Language  string `json:"language,omitempty"`

	Abstract           string `json:"abstract,omitempty"`
	RelatedArticlesURL string `json:"related_articles_url,omitempty"`

	Venue        Venue        `json:"venue"`
	SourceSystem SourceSystem `json:"source_system"`
}

// Year 返回出版年份,未知时返回0
func (p *ScrapedPublication) Year() int {
	if p.PublicationDate == nil {
		return 0
	}
	return p.PublicationDate.Year()
}

// ToJSON 序列化为JSON
func (p *ScrapedPublication) ToJSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// YearDate 构造只有年份精度的日期(1月1日)
func YearDate(year int) *time.Time {
	t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

// IntPtr 返回整数指针
func IntPtr(v int) *int {
	return &v
}
