package parsers

import (
	"slices"
	"strings"

	"github.com/RecoveryAshes/ScholarCrawl/internal/matching"
	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
)

// 预印本服务器
var preprintServers = []string{"arxiv", "biorxiv", "medrxiv", "ssrn", "preprints", "researchsquare", "techrxiv", "hal"}

// ClassifyVenue 根据标题和场所名称中的关键词推断场所类型
// 依次检查 workshop、symposium、会议、书籍;都不命中时使用hint,hint为空则默认为期刊
func ClassifyVenue(title, venueName string, hint models.VenueType) models.VenueType {
	tokens := append(matching.Tokens(venueName), matching.Tokens(title)...)

	has := func(match func(tok string) bool) bool {
		for _, tok := range tokens {
			if match(tok) {
				return true
			}
		}
		return false
	}

	switch {
	case has(func(t string) bool { return strings.HasPrefix(t, "workshop") }):
		return models.VenueWorkshop
	case has(func(t string) bool { return strings.HasPrefix(t, "symposi") }):
		return models.VenueSymposium
	case has(isConferenceToken):
		return models.VenueConference
	case has(func(t string) bool { return t == "book" || t == "books" || strings.HasPrefix(t, "chapter") }):
		return models.VenueBook
	}
	if hint != "" {
		return hint
	}
	return models.VenueJournal
}

func isConferenceToken(t string) bool {
	switch t {
	case "conf", "proc", "proceedings", "congress", "congres":
		return true
	}
	return strings.HasPrefix(t, "conferen")
}

// inferPublicationType 根据字段标签和场所推断出版物类型
// sourceKind 为详情页中命中的场所字段 (journal / conference / book / patent / thesis / report)
func inferPublicationType(sourceKind string, venue models.Venue) models.PublicationType {
	folded := matching.Fold(venue.Name)
	for _, tok := range matching.Tokens(folded) {
		if slices.Contains(preprintServers, tok) {
			return models.TypePreprint
		}
	}

	switch sourceKind {
	case kindPatent:
		return models.TypePatent
	case kindThesis:
		return models.TypeThesis
	case kindReport:
		return models.TypeTechnicalReport
	}

	switch venue.Type {
	case models.VenueConference, models.VenueWorkshop, models.VenueSymposium:
		return models.TypeConferencePaper
	case models.VenueBook:
		return models.TypeBookChapter
	}

	if strings.Contains(folded, "thesis") || strings.Contains(folded, "these") {
		return models.TypeThesis
	}
	if strings.Contains(folded, "technical report") || strings.Contains(folded, "tech. rep") {
		return models.TypeTechnicalReport
	}
	return models.TypeJournalArticle
}

// venueHint 字段类别对应的场所类型
func venueHint(sourceKind string) models.VenueType {
	switch sourceKind {
	case kindConference:
		return models.VenueConference
	case kindBook:
		return models.VenueBook
	case kindJournal:
		return models.VenueJournal
	}
	return ""
}
