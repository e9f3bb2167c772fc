package subtitle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"video-shot-workflow/pkg/project"
)

func sampleSegments() []project.VoiceSegment {
	return []project.VoiceSegment{
		{ShotID: "text_segment_001", OriginalText: "第一句话。", EstimatedDuration: 2.5},
		{ShotID: "text_segment_002", OriginalText: "第二句话。", DialogueText: "配音版第二句。", EstimatedDuration: 3.0},
	}
}

func TestGenerateSRT(t *testing.T) {
	g := NewGenerator(nil)
	outputFile := filepath.Join(t.TempDir(), "out.srt")

	result, err := g.GenerateFromSegments(sampleSegments(), outputFile)
	if err != nil {
		t.Fatalf("生成SRT失败: %v", err)
	}
	if !result.Success || result.Format != "srt" || result.LineCount != 2 {
		t.Errorf("结果错误: %+v", result)
	}
	if result.Duration != 5.5 {
		t.Errorf("总时长错误: %.1f", result.Duration)
	}

	data, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatalf("读取字幕失败: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "00:00:00,000 --> 00:00:02,500") {
		t.Errorf("第一行时间轴错误:\n%s", content)
	}
	if !strings.Contains(content, "00:00:02,500 --> 00:00:05,500") {
		t.Errorf("第二行时间轴错误:\n%s", content)
	}
	// 有配音文本时优先用配音文本
	if !strings.Contains(content, "配音版第二句。") {
		t.Error("应该使用配音文本")
	}
	if !strings.Contains(content, "第一句话。") {
		t.Error("没有配音文本时回退到原文")
	}
}

func TestGenerateVTT(t *testing.T) {
	g := NewGenerator(nil)
	outputFile := filepath.Join(t.TempDir(), "out.vtt")

	result, err := g.GenerateFromSegments(sampleSegments(), outputFile)
	if err != nil {
		t.Fatalf("生成VTT失败: %v", err)
	}
	if result.Format != "vtt" {
		t.Errorf("格式错误: %s", result.Format)
	}

	data, _ := os.ReadFile(outputFile)
	if !strings.HasPrefix(string(data), "WEBVTT\n") {
		t.Error("VTT文件应该以WEBVTT头开始")
	}
	if !strings.Contains(string(data), "00:00:00.000 --> 00:00:02.500") {
		t.Errorf("VTT时间轴格式错误:\n%s", string(data))
	}
}

func TestGenerateJSON(t *testing.T) {
	g := NewGenerator(nil)
	outputFile := filepath.Join(t.TempDir(), "out.json")

	result, err := g.GenerateFromSegments(sampleSegments(), outputFile)
	if err != nil {
		t.Fatalf("生成JSON字幕失败: %v", err)
	}
	if result.Format != "json" {
		t.Errorf("格式错误: %s", result.Format)
	}

	data, _ := os.ReadFile(outputFile)
	var lines []struct {
		Index  int     `json:"index"`
		Start  float64 `json:"start"`
		End    float64 `json:"end"`
		ShotID string  `json:"shot_id"`
	}
	if err := json.Unmarshal(data, &lines); err != nil {
		t.Fatalf("JSON字幕无法解析: %v", err)
	}
	if len(lines) != 2 || lines[1].Start != 2.5 || lines[1].End != 5.5 {
		t.Errorf("JSON时间轴错误: %+v", lines)
	}
	if lines[0].ShotID != "text_segment_001" {
		t.Errorf("镜头ID丢失: %+v", lines[0])
	}
}

func TestGenerateEmptySegments(t *testing.T) {
	g := NewGenerator(nil)
	result, err := g.GenerateFromSegments(nil, filepath.Join(t.TempDir(), "out.srt"))
	if err != nil {
		t.Fatalf("空段落应该降级而不是报错: %v", err)
	}
	if result.Success {
		t.Error("空段落不应该成功")
	}
}

func TestTimeFormatting(t *testing.T) {
	d := time.Hour + 2*time.Minute + 3*time.Second + 45*time.Millisecond
	if got := formatSRTTime(d); got != "01:02:03,045" {
		t.Errorf("SRT时间格式错误: %s", got)
	}
	if got := formatVTTTime(d); got != "01:02:03.045" {
		t.Errorf("VTT时间格式错误: %s", got)
	}
}
