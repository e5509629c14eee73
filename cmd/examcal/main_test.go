package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"examcal/internal/model"
)

func writeWorkbook(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{
		{"课程名称", "任课教师", "班级", "考试时间", "考试地点"},
		{"高等数学", "张三", "B123456", "第10周周3(2025-04-23) 13:30-15:20", "教1-101"},
		{"体育", "王五", "B123456", "待定", "操场"},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		row := r
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSearchAndGenerateCommands(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	input := filepath.Join(dir, "exam.xlsx")
	writeWorkbook(t, input)
	conf := filepath.Join(dir, "config.yaml")

	out, err := run(t, "--config", conf, "search", "--class", "B123456", "--input", input)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var records []model.ExamRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("search output is not JSON: %v\n%s", err, out)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	// The undated exam fails the whole batch by default.
	ics := filepath.Join(dir, "out.ics")
	if _, err := run(t, "--config", conf, "generate", "--class", "B123456", "--input", input, "--output", ics); err == nil {
		t.Fatal("generate should fail on an exam without a schedule")
	}
	if _, err := os.Stat(ics); !os.IsNotExist(err) {
		t.Error("a failed batch must not write a partial calendar")
	}

	if _, err := run(t, "--config", conf, "generate", "--class", "B123456", "--input", input, "--output", ics, "--skip-incomplete"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	data, err := os.ReadFile(ics)
	if err != nil {
		t.Fatal(err)
	}
	body := string(data)
	if strings.Count(body, "BEGIN:VEVENT") != 1 || !strings.Contains(body, "TRIGGER:-PT24H") {
		t.Errorf("unexpected calendar:\n%s", body)
	}
}

func TestSearchRejectsBadClassID(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	_, err := run(t, "--config", filepath.Join(dir, "config.yaml"), "search", "--class", "X12345")
	if err == nil || !strings.Contains(err.Error(), "行政班ID格式不正确") {
		t.Errorf("err = %v", err)
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
