package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"
)

// 报告格式
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Reporter 报告生成器
// 将一次抓取任务的出版物列表与摘要写入输出目录
type Reporter struct {
	outputDir string
	format    string
}

// NewReporter 创建报告生成器,format为json或yaml
func NewReporter(outputDir string, format string) (*Reporter, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "":
		format = FormatJSON
	case "yml":
		format = FormatYAML
	case FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("不支持的报告格式: %s (可选 json, yaml)", format)
	}
	return &Reporter{
		outputDir: outputDir,
		format:    format,
	}, nil
}

// ReportPath 返回任务报告的文件路径
// 优先使用学者ID命名,ID为空时使用任务ID
func (r *Reporter) ReportPath(result *models.RunResult) string {
	name := result.ResearcherID
	if name == "" {
		name = result.RunID
	}
	name = strings.Trim(unsafeFileChars.ReplaceAllString(name, "_"), "_")
	if name == "" {
		name = "unnamed"
	}
	return filepath.Join(r.outputDir, fmt.Sprintf("run_%s.%s", name, r.format))
}

// GenerateReport 生成单个任务报告,返回写入的文件路径
func (r *Reporter) GenerateReport(result *models.RunResult) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	path := r.ReportPath(result)
	if err := r.save(path, result); err != nil {
		return "", err
	}

	s := result.Summary
	Infof("✅ 报告已生成: %s (共%d条, 主站%d, 补充%d, 跳过%d)",
		path, s.Found, s.FromPrimary, s.FromSecondary, s.Skipped)
	return path, nil
}

// GenerateBatchSummary 生成批量任务汇总,每位学者一行摘要
func (r *Reporter) GenerateBatchSummary(results []*models.RunResult) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	type row struct {
		ResearcherID   string            `json:"researcher_id"`
		ResearcherName string            `json:"researcher_name"`
		RunID          string            `json:"run_id"`
		Summary        models.RunSummary `json:"summary"`
	}
	rows := make([]row, 0, len(results))
	for _, res := range results {
		if res == nil {
			continue
		}
		rows = append(rows, row{
			ResearcherID:   res.ResearcherID,
			ResearcherName: res.ResearcherName,
			RunID:          res.RunID,
			Summary:        res.Summary,
		})
	}

	path := filepath.Join(r.outputDir, "batch_summary."+r.format)
	if err := r.save(path, rows); err != nil {
		return "", err
	}
	Infof("✅ 批量汇总已生成: %s", path)
	return path, nil
}

func (r *Reporter) save(path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	out := jsonData
	if r.format == FormatYAML {
		if out, err = jsonToYAML(jsonData); err != nil {
			return err
		}
	}

	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return nil
}

// jsonToYAML 以JSON字段名和字段顺序输出YAML
func jsonToYAML(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("转换YAML失败: %w", err)
	}
	blockStyle(&node)
	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("序列化YAML失败: %w", err)
	}
	return out, nil
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		blockStyle(child)
	}
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
