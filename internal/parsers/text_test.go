package parsers

import (
	"testing"
	"time"

	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
)

func TestNormalizeLabel(t *testing.T) {
	tests := map[string]string{
		"Publication date":            "publicationdate",
		"Date de publication":         "datedepublication",
		"  Nombre total de citations": "nombretotaldecitations",
		"Éditeur":                     "editeur",
		"Conférence:":                 "conference",
	}
	for in, want := range tests {
		if got := normalizeLabel(in); got != want {
			t.Errorf("normalizeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLeadingInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"Cited by 42", 42, true},
		{"Cited by 1,234", 1234, true},
		{"Cité 17 fois", 17, true},
		{"12 345", 12345, true},
		{"", 0, false},
		{"no digits", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseLeadingInt(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseLeadingInt(%q) = %d, %v, want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2019", time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2019/3", time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"2019/3/12", time.Date(2019, 3, 12, 0, 0, 0, 0, time.UTC)},
		{"2019-03-12", time.Date(2019, 3, 12, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got := parseDate(tt.in)
		if got == nil || !got.Equal(tt.want) {
			t.Errorf("parseDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if parseDate("") != nil || parseDate("unknown") != nil {
		t.Error("无法解析的日期应返回nil")
	}
}

func TestClassifyVenue(t *testing.T) {
	tests := []struct {
		name  string
		title string
		venue string
		hint  models.VenueType
		want  models.VenueType
	}{
		{"期刊默认", "Graph coloring", "Journal of Heuristics", "", models.VenueJournal},
		{"会议", "Graph coloring", "Proceedings of the 5th Conference on X", "", models.VenueConference},
		{"缩写conf", "Graph coloring", "Int. Conf. on Parallel Processing", "", models.VenueConference},
		{"workshop优先", "Graph coloring", "Workshop at the Conference on X", "", models.VenueWorkshop},
		{"symposium", "Graph coloring", "ACM Symposium on Theory", "", models.VenueSymposium},
		{"书籍章节", "Chapter 3: Heuristics", "", "", models.VenueBook},
		{"使用提示", "Graph coloring", "LNCS", models.VenueConference, models.VenueConference},
		{"confidence不算会议", "Confidence intervals", "Statistics Letters", "", models.VenueJournal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyVenue(tt.title, tt.venue, tt.hint); got != tt.want {
				t.Errorf("ClassifyVenue() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFillCitationYears(t *testing.T) {
	years := map[int]bool{2010: true, 2013: true}
	counts := map[int]int{2013: 5}
	got := fillCitationYears(years, counts)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Year != got[i-1].Year+1 {
			t.Errorf("年份不连续: %v", got)
		}
	}
	if got[0].Count != 0 || got[3].Count != 5 {
		t.Errorf("计数错误: %v", got)
	}
}
