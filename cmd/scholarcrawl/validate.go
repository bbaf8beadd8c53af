package main

import (
	"fmt"
	"strings"
)

// ValidateFlags 验证命令行标志
// 数值参数为0表示未设置,沿用配置文件
func ValidateFlags(
	name string,
	researcherFile string,
	nameThreshold float64,
	sessions int,
	format string,
) error {
	// 验证输入
	if name != "" && researcherFile != "" {
		return fmt.Errorf("--name 与 --researcher-file 不能同时使用")
	}
	if name != "" && strings.TrimSpace(name) == "" {
		return fmt.Errorf("学者姓名不能为空")
	}

	// 验证阈值
	if nameThreshold < 0.0 || nameThreshold > 1.0 {
		return fmt.Errorf("姓名相似度阈值必须在0.0-1.0之间,当前值: %.2f", nameThreshold)
	}

	// 验证并发数
	if sessions < 0 || sessions > 32 {
		return fmt.Errorf("并发会话数必须在1-32之间,当前值: %d", sessions)
	}

	// 验证格式
	validFormats := map[string]bool{
		"":     true,
		"json": true,
		"yaml": true,
		"yml":  true,
	}
	if !validFormats[strings.ToLower(format)] {
		return fmt.Errorf("无效的报告格式: %s (有效值: json, yaml)", format)
	}

	return nil
}
