package utils

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
)

// ReadResearchersFromFile 从文件中读取学者列表
// 每行一个学者,格式为 "ID<TAB>姓名" 或仅 "姓名" (此时ID为空)
// 空行和以#开头的注释行被忽略
func ReadResearchersFromFile(filepath string) ([]models.ResearcherRequest, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("打开学者列表文件失败: %w", err)
	}
	defer file.Close()

	requests := make([]models.ResearcherRequest, 0)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		raw := strings.TrimRight(scanner.Text(), "\r")
		line := strings.TrimSpace(raw)

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		req := parseResearcherLine(raw)
		if err := req.Validate(); err != nil {
			Warnf("跳过无效行 (行 %d): %q - %v", lineNum, line, err)
			continue
		}

		requests = append(requests, req)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取学者列表文件失败: %w", err)
	}

	if len(requests) == 0 {
		return nil, fmt.Errorf("学者列表文件中没有有效的条目")
	}

	Infof("从文件加载了 %d 位学者", len(requests))
	return requests, nil
}

func parseResearcherLine(line string) models.ResearcherRequest {
	id, name, found := strings.Cut(line, "\t")
	if !found {
		return models.ResearcherRequest{DisplayName: strings.Join(strings.Fields(line), " ")}
	}
	return models.ResearcherRequest{
		ResearcherID: strings.TrimSpace(id),
		DisplayName:  strings.Join(strings.Fields(name), " "),
	}
}
