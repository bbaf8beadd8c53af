package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ResearcherRequest 外部应用提交的一次抓取请求
type ResearcherRequest struct {
	ResearcherID string `json:"researcher_id"` // 不透明ID,原样透传
	DisplayName  string `json:"display_name"`  // 唯一必填输入
}

// Validate 验证请求
func (r ResearcherRequest) Validate() error {
	if strings.TrimSpace(r.DisplayName) == "" {
		return fmt.Errorf("学者姓名不能为空")
	}
	return nil
}

// ResolvedProfile 姓名解析结果
type ResolvedProfile struct {
	ProfileID       string  `json:"profile_id"`
	ProfileURL      string  `json:"profile_url"`
	MatchConfidence float64 `json:"match_confidence"` // [0,1]
}

// RunSummary 任务摘要,用于区分"确实没有出版物"与"因拦截而降级"
type RunSummary struct {
	Found         int  `json:"found"`
	FromPrimary   int  `json:"from_primary"`
	FromSecondary int  `json:"from_secondary"`
	Skipped       int  `json:"skipped"` // 被跳过的单条记录
	Blocked       bool `json:"blocked"`
	Aborted       bool `json:"aborted"`
	Cancelled     bool `json:"cancelled"`
}

// RunResult 一次抓取任务的完整输出
type RunResult struct {
	RunID          string               `json:"run_id"`
	ResearcherID   string               `json:"researcher_id"`
	ResearcherName string               `json:"researcher_name"`
	Profile        *ResolvedProfile     `json:"profile,omitempty"`
	Publications   []ScrapedPublication `json:"publications"`
	Summary        RunSummary           `json:"summary"`
	StartedAt      time.Time            `json:"started_at"`
	Duration       float64              `json:"duration"` // 秒
}

// NewRunResult 为请求创建空结果
func NewRunResult(req ResearcherRequest) *RunResult {
	return &RunResult{
		RunID:          generateID(),
		ResearcherID:   req.ResearcherID,
		ResearcherName: req.DisplayName,
		Publications:   make([]ScrapedPublication, 0),
		StartedAt:      time.Now(),
	}
}

// Finalize 根据记录来源重新计算摘要计数
func (r *RunResult) Finalize() {
	r.Summary.Found = len(r.Publications)
	r.Summary.FromPrimary = 0
	r.Summary.FromSecondary = 0
	for _, p := range r.Publications {
		if p.SourceSystem == SourceSecondary {
			r.Summary.FromSecondary++
		} else {
			r.Summary.FromPrimary++
		}
	}
	r.Duration = time.Since(r.StartedAt).Seconds()
}

// ToJSON 序列化为JSON
func (r *RunResult) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
