package project

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureStructure(t *testing.T) {
	doc := New()
	if err := doc.EnsureStructure(); err != nil {
		t.Fatalf("初始化结构失败: %v", err)
	}

	if !doc.Get("voice_generation.voice_segments").IsArray() {
		t.Error("voice_segments 应该是数组")
	}
	if !doc.Get("shot_image_mappings").Exists() {
		t.Error("shot_image_mappings 应该存在")
	}

	// 已有数据不会被覆盖
	doc.Set("voice_generation.voice_segments.0.shot_id", "text_segment_001")
	if err := doc.EnsureStructure(); err != nil {
		t.Fatalf("重复初始化失败: %v", err)
	}
	if doc.VoiceSegmentCount() != 1 {
		t.Error("重复初始化不应该清空已有数据")
	}
}

func TestUnknownFieldsSurviveRewrite(t *testing.T) {
	raw := `{
		"custom_top": {"nested": [1, 2, 3]},
		"voice_generation": {
			"voice_segments": [{"scene_id": "scene_1", "shot_id": "old", "extra_field": "保留我"}],
			"engine": "cosyvoice"
		},
		"shot_image_mappings": {"scene_1_shot_1": {"main_image_path": "a.png", "vendor_data": 42}}
	}`
	doc := Parse([]byte(raw))

	if err := doc.SetVoiceSegmentIDs(0, "scene_1", "text_segment_001"); err != nil {
		t.Fatalf("更新段落ID失败: %v", err)
	}

	if got := doc.Get("voice_generation.voice_segments.0.extra_field").String(); got != "保留我" {
		t.Errorf("段落内的未知字段丢失: %s", got)
	}
	if got := doc.Get("voice_generation.engine").String(); got != "cosyvoice" {
		t.Errorf("同级未知字段丢失: %s", got)
	}
	if got := doc.Get("custom_top.nested.2").Int(); got != 3 {
		t.Errorf("顶层未知字段丢失: %d", got)
	}
	if got := doc.Get(ImageMappingPath("scene_1_shot_1") + ".vendor_data").Int(); got != 42 {
		t.Errorf("图像映射内的未知字段丢失: %d", got)
	}
}

func TestVoiceSegmentsParsing(t *testing.T) {
	raw := `{"voice_generation": {"voice_segments": [
		{"index": 0, "scene_id": "scene_1", "shot_id": "text_segment_001",
		 "original_text": "你好。", "estimated_duration": 1.5, "selected": true},
		{"scene_id": "scene_2", "shot_id": "text_segment_002",
		 "original_text": "再见。", "estimated_duration": "坏数据", "status": "未生成"}
	]}}`
	doc := Parse([]byte(raw))

	segments := doc.VoiceSegments()
	if len(segments) != 2 {
		t.Fatalf("期望2个段落，实际 %d 个", len(segments))
	}
	if segments[0].EstimatedDuration != 1.5 || !segments[0].Selected {
		t.Errorf("正常段落解析错误: %+v", segments[0])
	}

	// 类型错误的段落退化解析，保住核心ID字段
	if segments[1].SceneID != "scene_2" || segments[1].ShotID != "text_segment_002" {
		t.Errorf("坏段落应该保住ID字段: %+v", segments[1])
	}
	if segments[1].Status != "未生成" {
		t.Errorf("坏段落应该保住状态字段: %s", segments[1].Status)
	}
}

func TestReplaceImageMappingsOrder(t *testing.T) {
	doc := New()
	doc.EnsureStructure()

	entries := []ImageMappingEntry{
		{Key: "scene_1_shot_2", Raw: `{"shot_id": "shot_2"}`},
		{Key: "scene_1_shot_1", Raw: `{"shot_id": "shot_1"}`},
	}
	if err := doc.ReplaceImageMappings(entries); err != nil {
		t.Fatalf("替换图像映射失败: %v", err)
	}

	keys := doc.ImageMappingKeys()
	if len(keys) != 2 || keys[0] != "scene_1_shot_2" || keys[1] != "scene_1_shot_1" {
		t.Errorf("插入顺序应该保持: %v", keys)
	}
	if doc.ImageMappingCount() != 2 {
		t.Errorf("图像映射数量错误: %d", doc.ImageMappingCount())
	}
}

func TestImageMappingKeyEscaping(t *testing.T) {
	doc := New()
	doc.EnsureStructure()

	// 历史遗留键可能带点号
	entries := []ImageMappingEntry{{Key: "v1.2_shot", Raw: `{"shot_id": "shot_1"}`}}
	if err := doc.ReplaceImageMappings(entries); err != nil {
		t.Fatalf("替换图像映射失败: %v", err)
	}

	if !doc.Get(ImageMappingPath("v1.2_shot")).Exists() {
		t.Error("带点号的键读不回来")
	}
	if keys := doc.ImageMappingKeys(); len(keys) != 1 || keys[0] != "v1.2_shot" {
		t.Errorf("带点号的键存储错误: %v", keys)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.json")

	doc := NewProjectDocument("我的项目")
	if err := doc.SetVoiceSegments([]VoiceSegment{
		{Index: 0, SceneID: "scene_1", ShotID: "text_segment_001", OriginalText: "中文内容。"},
	}); err != nil {
		t.Fatalf("写入段落失败: %v", err)
	}
	if err := doc.Save(path); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取文件失败: %v", err)
	}
	// 两空格缩进，中文不转义
	if !bytes.Contains(data, []byte("\n  \"")) {
		t.Error("输出应该使用两空格缩进")
	}
	if !bytes.Contains(data, []byte("中文内容。")) {
		t.Error("中文应该原样输出而不是转义")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("重新加载失败: %v", err)
	}
	if got := loaded.Get("project_info.project_name").String(); got != "我的项目" {
		t.Errorf("项目名丢失: %s", got)
	}
	if loaded.VoiceSegmentCount() != 1 {
		t.Errorf("段落数量错误: %d", loaded.VoiceSegmentCount())
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.json")
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("损坏的JSON应该返回错误")
	}
	if _, err := Load(filepath.Join(dir, "不存在.json")); err == nil {
		t.Error("不存在的文件应该返回错误")
	}
}
