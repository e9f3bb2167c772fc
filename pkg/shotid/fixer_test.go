package shotid

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"video-shot-workflow/pkg/project"
)

const messyProjectJSON = `{
	"project_info": {"project_name": "测试项目"},
	"voice_generation": {"voice_segments": [
		{"scene_id": "场景1", "shot_id": "镜头1", "original_text": "第一句。", "audio_path": "audio/seg1.mp3", "status": "已生成"},
		{"scene_id": "场景1", "shot_id": "镜头2", "original_text": "第二句。"},
		{"scene_id": "scene_2", "shot_id": "shot_99", "original_text": "第三句。"}
	]},
	"shot_image_mappings": {
		"old_key_1": {"main_image_path": "images/old.png", "status": "已生成"}
	},
	"custom_field": {"keep": "me"}
}`

func writeProject(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "project.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入测试项目失败: %v", err)
	}
	return dir
}

func TestAnalyzeProject(t *testing.T) {
	dir := writeProject(t, messyProjectJSON)
	fixer := NewFixer(dir, nil)

	analysis, err := fixer.AnalyzeProject()
	if err != nil {
		t.Fatalf("分析失败: %v", err)
	}

	if analysis.VoiceSegmentsCount != 3 {
		t.Errorf("配音段落数量错误: %d", analysis.VoiceSegmentsCount)
	}
	if analysis.ImageMappingsCount != 1 {
		t.Errorf("图像映射数量错误: %d", analysis.ImageMappingsCount)
	}
	if len(analysis.MissingInImages) != 3 {
		t.Errorf("期望3个缺失的图像映射，实际 %d 个: %v",
			len(analysis.MissingInImages), analysis.MissingInImages)
	}
	if len(analysis.MissingInVoice) != 1 || analysis.MissingInVoice[0] != "old_key_1" {
		t.Errorf("孤儿图像键识别错误: %v", analysis.MissingInVoice)
	}
	if len(analysis.IDFormatIssues) != 0 {
		t.Errorf("修复前不应该有 text_segment_ 格式问题: %v", analysis.IDFormatIssues)
	}
}

func TestAnalyzeProjectMissingFile(t *testing.T) {
	fixer := NewFixer(t.TempDir(), nil)
	if _, err := fixer.AnalyzeProject(); err == nil {
		t.Fatal("项目文件不存在应该返回错误")
	} else if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("错误应该可以用 os.ErrNotExist 判断: %v", err)
	}
}

func TestFixProjectShotIDs(t *testing.T) {
	dir := writeProject(t, messyProjectJSON)

	if !FixProjectShotIDs(dir, nil) {
		t.Fatal("修复应该成功")
	}

	doc, err := project.Load(filepath.Join(dir, "project.json"))
	if err != nil {
		t.Fatalf("重新加载项目失败: %v", err)
	}

	// 配音段落按全局顺序重编号，场景分配归一化
	segments := doc.VoiceSegments()
	if len(segments) != 3 {
		t.Fatalf("配音段落数量变化: %d", len(segments))
	}
	expectedIDs := []struct{ scene, shot string }{
		{"scene_1", "text_segment_001"},
		{"scene_1", "text_segment_002"},
		{"scene_2", "text_segment_003"},
	}
	for i, expected := range expectedIDs {
		if segments[i].SceneID != expected.scene || segments[i].ShotID != expected.shot {
			t.Errorf("段落%d的ID错误: %s/%s，期望 %s/%s",
				i+1, segments[i].SceneID, segments[i].ShotID, expected.scene, expected.shot)
		}
	}
	if segments[0].AudioPath != "audio/seg1.mp3" {
		t.Errorf("修复不应该碰音频路径: %s", segments[0].AudioPath)
	}

	// 图像映射被清零重建，旧键和旧图片路径全部丢弃
	keys := doc.ImageMappingKeys()
	if len(keys) != 3 {
		t.Fatalf("期望3个图像映射，实际 %d 个: %v", len(keys), keys)
	}
	for _, key := range []string{"scene_1_shot_1", "scene_1_shot_2", "scene_2_shot_1"} {
		entry := doc.Get(project.ImageMappingPath(key))
		if !entry.Exists() {
			t.Errorf("缺少图像映射: %s", key)
			continue
		}
		if got := entry.Get("main_image_path").String(); got != "" {
			t.Errorf("%s 的图片路径应该清空: %s", key, got)
		}
		if got := entry.Get("status").String(); got != project.StatusPending {
			t.Errorf("%s 的状态应该是未生成: %s", key, got)
		}
	}
	if bytes.Contains(doc.Bytes(), []byte("old.png")) {
		t.Error("旧图片路径应该被清除")
	}
	if doc.Get(project.ImageMappingPath("old_key_1")).Exists() {
		t.Error("旧图像键应该被删除")
	}

	// 与配音段落无关的字段原样保留
	if got := doc.Get("custom_field.keep").String(); got != "me" {
		t.Errorf("未知字段应该原样保留: %s", got)
	}
	if got := doc.Get("project_info.project_name").String(); got != "测试项目" {
		t.Errorf("项目信息应该原样保留: %s", got)
	}

	// 备份保留修复前的内容
	backup, err := os.ReadFile(filepath.Join(dir, "project.json.backup"))
	if err != nil {
		t.Fatalf("备份文件不存在: %v", err)
	}
	if !bytes.Contains(backup, []byte("镜头1")) {
		t.Error("备份应该是修复前的原始内容")
	}
}

func TestFixIsIdempotent(t *testing.T) {
	dir := writeProject(t, messyProjectJSON)
	path := filepath.Join(dir, "project.json")

	if !NewFixer(dir, nil).FixProjectIDs() {
		t.Fatal("第一次修复应该成功")
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取修复结果失败: %v", err)
	}

	if !NewFixer(dir, nil).FixProjectIDs() {
		t.Fatal("第二次修复应该成功")
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取修复结果失败: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("重复修复应该产生完全相同的文件内容")
	}

	// 数量已匹配时统一入口直接短路成功
	if !FixProjectShotIDs(dir, nil) {
		t.Error("已修复的项目再次修复应该返回成功")
	}
}

func TestValidateFix(t *testing.T) {
	dir := writeProject(t, messyProjectJSON)
	fixer := NewFixer(dir, nil)

	if !fixer.FixProjectIDs() {
		t.Fatal("修复失败")
	}

	valid, result := fixer.ValidateFix()
	if !valid {
		t.Fatalf("修复后验证应该通过: %+v", result)
	}
	if result.VoiceSegmentsCount != 3 || result.ImageMappingsCount != 3 {
		t.Errorf("验证统计错误: %+v", result)
	}
	if !result.AllVoiceHaveImages || !result.IDFormatCorrect {
		t.Errorf("验证标志错误: %+v", result)
	}
}

func TestValidateFixDetectsMissingMapping(t *testing.T) {
	dir := writeProject(t, messyProjectJSON)
	fixer := NewFixer(dir, nil)
	if !fixer.FixProjectIDs() {
		t.Fatal("修复失败")
	}

	// 人为删掉一个图像映射再验证
	path := filepath.Join(dir, "project.json")
	doc, err := project.Load(path)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if err := doc.Delete(project.ImageMappingPath("scene_2_shot_1")); err != nil {
		t.Fatalf("删除映射失败: %v", err)
	}
	if err := doc.Save(path); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	valid, result := fixer.ValidateFix()
	if valid {
		t.Fatal("缺失映射应该导致验证失败")
	}
	if len(result.MissingMappings) != 1 || result.MissingMappings[0] != "scene_2_shot_1" {
		t.Errorf("缺失映射识别错误: %v", result.MissingMappings)
	}
}

func TestFixEmptyProject(t *testing.T) {
	dir := writeProject(t, `{"voice_generation":{"voice_segments":[]},"shot_image_mappings":{}}`)

	if !FixProjectShotIDs(dir, nil) {
		t.Error("空项目应该直接视为无需修复")
	}
	if !NewFixer(dir, nil).FixProjectIDs() {
		t.Error("空项目执行完整修复也应该成功")
	}

	doc, err := project.Load(filepath.Join(dir, "project.json"))
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if doc.VoiceSegmentCount() != 0 || doc.ImageMappingCount() != 0 {
		t.Error("空项目修复后应该保持为空")
	}
}
