package matching

import (
	"testing"

	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
)

func TestMerge_Dedup(t *testing.T) {
	primary := []models.ScrapedPublication{
		{Title: "Deep Learning for X", SourceSystem: models.SourcePrimary},
	}
	secondary := []models.ScrapedPublication{
		{Title: "Deep learning for X.", SourceSystem: models.SourceSecondary},
	}

	merged := Merge(primary, secondary, 0.85)
	if len(merged) != 1 {
		t.Fatalf("len(merged) = %d, want 1", len(merged))
	}
	if merged[0].SourceSystem != models.SourcePrimary {
		t.Errorf("保留的记录应来自主站, got %s", merged[0].SourceSystem)
	}
	if merged[0].Title != "Deep Learning for X" {
		t.Errorf("Title = %q", merged[0].Title)
	}
}

func TestMerge_Order(t *testing.T) {
	primary := []models.ScrapedPublication{
		{Title: "P1 graph coloring"},
		{Title: "P2 parallel metaheuristics"},
	}
	secondary := []models.ScrapedPublication{
		{Title: "S1 image segmentation"},
		{Title: "P2 Parallel Metaheuristics"},
		{Title: "S2 quantum annealing"},
	}

	merged := Merge(primary, secondary, 0.85)
	want := []struct {
		title  string
		source models.SourceSystem
	}{
		{"P1 graph coloring", models.SourcePrimary},
		{"P2 parallel metaheuristics", models.SourcePrimary},
		{"S1 image segmentation", models.SourceSecondary},
		{"S2 quantum annealing", models.SourceSecondary},
	}

	if len(merged) != len(want) {
		t.Fatalf("len(merged) = %d, want %d", len(merged), len(want))
	}
	for i, w := range want {
		if merged[i].Title != w.title || merged[i].SourceSystem != w.source {
			t.Errorf("merged[%d] = {%q %s}, want {%q %s}", i, merged[i].Title, merged[i].SourceSystem, w.title, w.source)
		}
	}
}

func TestMerge_Threshold(t *testing.T) {
	primary := []models.ScrapedPublication{{Title: "Deep Learning for X"}}
	secondary := []models.ScrapedPublication{{Title: "Deep Learning for Y"}}

	// 相似度 3/5 = 0.6
	if got := len(Merge(primary, secondary, 0.85)); got != 2 {
		t.Errorf("阈值0.85时应保留两条, got %d", got)
	}
	if got := len(Merge(primary, secondary, 0.5)); got != 1 {
		t.Errorf("阈值0.5时应去重, got %d", got)
	}
}

func TestMerge_Empty(t *testing.T) {
	if got := Merge(nil, nil, 0.85); len(got) != 0 {
		t.Errorf("空输入应返回空结果, got %d", len(got))
	}
	secondary := []models.ScrapedPublication{{Title: "Only secondary"}}
	got := Merge(nil, secondary, 0.85)
	if len(got) != 1 || got[0].SourceSystem != models.SourceSecondary {
		t.Errorf("主站为空时应保留索引站点记录: %+v", got)
	}
}
