package main

import "testing"

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name          string
		researcher    string
		file          string
		nameThreshold float64
		sessions      int
		format        string
		wantErr       bool
	}{
		{name: "单个学者", researcher: "Mouloud Koudil", format: "json"},
		{name: "批量文件", file: "researchers.txt", sessions: 4, format: "yml"},
		{name: "未设置的数值参数", researcher: "A", nameThreshold: 0, sessions: 0},
		{name: "姓名与文件同时指定", researcher: "A", file: "b.txt", wantErr: true},
		{name: "姓名只有空白", researcher: "   ", wantErr: true},
		{name: "阈值超出范围", researcher: "A", nameThreshold: 1.2, wantErr: true},
		{name: "并发数超出上限", researcher: "A", sessions: 33, wantErr: true},
		{name: "不支持的格式", researcher: "A", format: "csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFlags(tt.researcher, tt.file, tt.nameThreshold, tt.sessions, tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
