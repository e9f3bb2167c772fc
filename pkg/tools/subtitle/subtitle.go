package subtitle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"video-shot-workflow/pkg/project"
)

// Generator 字幕生成器
// 以配音段落的估算时长为时间轴，生成SRT/VTT/JSON字幕
type Generator struct {
	logger *zap.Logger
}

// Line 单行字幕
type Line struct {
	Index     int           `json:"index"`
	StartTime time.Duration `json:"start_time"`
	EndTime   time.Duration `json:"end_time"`
	Text      string        `json:"text"`
	ShotID    string        `json:"shot_id"`
}

// Result 字幕生成结果
type Result struct {
	Success      bool    `json:"success"`
	SubtitleFile string  `json:"subtitle_file,omitempty"`
	Format       string  `json:"format,omitempty"`
	LineCount    int     `json:"line_count,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// NewGenerator 创建字幕生成器
func NewGenerator(logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{logger: logger}
}

// GenerateFromSegments 基于配音段落生成字幕文件
// 输出格式由文件扩展名决定，默认SRT
func (g *Generator) GenerateFromSegments(segments []project.VoiceSegment, outputFile string) (*Result, error) {
	if len(segments) == 0 {
		return &Result{Success: false, Error: "没有配音段落"}, nil
	}

	lines := g.buildTimeline(segments)

	g.logger.Info("生成字幕",
		zap.Int("段落数", len(lines)),
		zap.String("输出文件", outputFile),
	)

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return nil, fmt.Errorf("创建字幕目录失败: %w", err)
	}

	switch strings.ToLower(filepath.Ext(outputFile)) {
	case ".vtt":
		return g.writeVTT(lines, outputFile)
	case ".json":
		return g.writeJSON(lines, outputFile)
	default:
		return g.writeSRT(lines, outputFile)
	}
}

// buildTimeline 按估算时长顺序排布时间轴
func (g *Generator) buildTimeline(segments []project.VoiceSegment) []Line {
	lines := make([]Line, 0, len(segments))
	cursor := time.Duration(0)

	for i, segment := range segments {
		duration := segment.EstimatedDuration
		if duration <= 0 {
			duration = 2.0
		}
		end := cursor + time.Duration(duration*float64(time.Second))

		text := segment.DialogueText
		if text == "" {
			text = segment.OriginalText
		}

		lines = append(lines, Line{
			Index:     i + 1,
			StartTime: cursor,
			EndTime:   end,
			Text:      text,
			ShotID:    segment.ShotID,
		})
		cursor = end
	}
	return lines
}

// writeSRT 输出SRT格式
func (g *Generator) writeSRT(lines []Line, outputFile string) (*Result, error) {
	var builder strings.Builder
	for _, line := range lines {
		builder.WriteString(fmt.Sprintf("%d\n", line.Index))
		builder.WriteString(fmt.Sprintf("%s --> %s\n",
			formatSRTTime(line.StartTime), formatSRTTime(line.EndTime)))
		builder.WriteString(line.Text)
		builder.WriteString("\n\n")
	}

	if err := os.WriteFile(outputFile, []byte(builder.String()), 0644); err != nil {
		return nil, fmt.Errorf("写入SRT文件失败: %w", err)
	}

	return &Result{
		Success:      true,
		SubtitleFile: outputFile,
		Format:       "srt",
		LineCount:    len(lines),
		Duration:     lines[len(lines)-1].EndTime.Seconds(),
	}, nil
}

// writeVTT 输出WebVTT格式
func (g *Generator) writeVTT(lines []Line, outputFile string) (*Result, error) {
	var builder strings.Builder
	builder.WriteString("WEBVTT\n\n")
	for _, line := range lines {
		builder.WriteString(fmt.Sprintf("%s --> %s\n",
			formatVTTTime(line.StartTime), formatVTTTime(line.EndTime)))
		builder.WriteString(line.Text)
		builder.WriteString("\n\n")
	}

	if err := os.WriteFile(outputFile, []byte(builder.String()), 0644); err != nil {
		return nil, fmt.Errorf("写入VTT文件失败: %w", err)
	}

	return &Result{
		Success:      true,
		SubtitleFile: outputFile,
		Format:       "vtt",
		LineCount:    len(lines),
		Duration:     lines[len(lines)-1].EndTime.Seconds(),
	}, nil
}

// writeJSON 输出JSON格式，供前端时间轴使用
func (g *Generator) writeJSON(lines []Line, outputFile string) (*Result, error) {
	type jsonLine struct {
		Index  int     `json:"index"`
		Start  float64 `json:"start"`
		End    float64 `json:"end"`
		Text   string  `json:"text"`
		ShotID string  `json:"shot_id"`
	}

	out := make([]jsonLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, jsonLine{
			Index:  line.Index,
			Start:  line.StartTime.Seconds(),
			End:    line.EndTime.Seconds(),
			Text:   line.Text,
			ShotID: line.ShotID,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("序列化字幕失败: %w", err)
	}
	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return nil, fmt.Errorf("写入JSON字幕失败: %w", err)
	}

	return &Result{
		Success:      true,
		SubtitleFile: outputFile,
		Format:       "json",
		LineCount:    len(lines),
		Duration:     lines[len(lines)-1].EndTime.Seconds(),
	}, nil
}

// formatSRTTime HH:MM:SS,mmm
func formatSRTTime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// formatVTTTime HH:MM:SS.mmm
func formatVTTTime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
