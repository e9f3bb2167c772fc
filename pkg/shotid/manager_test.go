package shotid

import (
	"errors"
	"fmt"
	"testing"

	"video-shot-workflow/pkg/project"
)

// buildProjectDoc 构造含配音段落的项目文档
// sceneSizes 指定每个场景的镜头数，场景ID依次为 scene_1, scene_2, ...
func buildProjectDoc(t *testing.T, sceneSizes ...int) *project.Document {
	t.Helper()

	var segments []project.VoiceSegment
	global := 0
	for sceneIdx, size := range sceneSizes {
		for j := 0; j < size; j++ {
			global++
			segments = append(segments, project.VoiceSegment{
				Index:        global - 1,
				SceneID:      fmt.Sprintf("scene_%d", sceneIdx+1),
				ShotID:       fmt.Sprintf("text_segment_%03d", global),
				OriginalText: fmt.Sprintf("第%d句。", global),
				Status:       project.StatusPending,
			})
		}
	}

	doc := project.New()
	if err := doc.EnsureStructure(); err != nil {
		t.Fatalf("初始化文档结构失败: %v", err)
	}
	if err := doc.SetVoiceSegments(segments); err != nil {
		t.Fatalf("写入配音段落失败: %v", err)
	}
	return doc
}

func TestInitializeFromProject(t *testing.T) {
	m := NewManager(nil)
	doc := buildProjectDoc(t, 7, 4)

	if err := m.InitializeFromProject(doc); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}

	mappings := m.GetAllMappings()
	if len(mappings) != 11 {
		t.Fatalf("期望11个镜头映射，实际 %d 个", len(mappings))
	}

	// 全局索引连续且从1开始
	for i, mapping := range mappings {
		if mapping.GlobalIndex != i+1 {
			t.Errorf("映射%d的全局索引错误: %d", i, mapping.GlobalIndex)
		}
		expectedTS := fmt.Sprintf("text_segment_%03d", i+1)
		if mapping.TextSegmentID != expectedTS {
			t.Errorf("映射%d的文本段落ID错误: %s", i, mapping.TextSegmentID)
		}
	}

	// 场景内编号从1重新开始
	second := m.GetMappingsByScene("scene_2")
	if len(second) != 4 {
		t.Fatalf("scene_2 应该有4个镜头，实际 %d 个", len(second))
	}
	for i, mapping := range second {
		if mapping.SceneIndex != i+1 {
			t.Errorf("scene_2 镜头%d的场景内索引错误: %d", i+1, mapping.SceneIndex)
		}
		expectedKey := fmt.Sprintf("scene_2_shot_%d", i+1)
		if mapping.UnifiedKey != expectedKey {
			t.Errorf("scene_2 镜头%d的统一键错误: %s", i+1, mapping.UnifiedKey)
		}
	}

	if valid, issues := m.ValidateConsistency(); !valid {
		t.Errorf("初始化后的映射应该一致: %v", issues)
	}
}

func TestInitializeFromNilProject(t *testing.T) {
	m := NewManager(nil)
	if err := m.InitializeFromProject(nil); err == nil {
		t.Fatal("空文档应该返回错误")
	} else if !errors.Is(err, ErrInconsistentState) {
		t.Errorf("错误类别应该是 ErrInconsistentState: %v", err)
	}
	if len(m.GetAllMappings()) != 0 {
		t.Error("初始化失败后管理器应该为空")
	}
}

func TestConvertIDRoundTrip(t *testing.T) {
	m := NewManager(nil)
	if err := m.InitializeFromProject(buildProjectDoc(t, 7, 4)); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}

	for _, mapping := range m.GetAllMappings() {
		unified, err := m.ConvertID(mapping.TextSegmentID, FormatUnified)
		if err != nil {
			t.Fatalf("转换 %s 失败: %v", mapping.TextSegmentID, err)
		}
		if unified != mapping.UnifiedKey {
			t.Errorf("统一键转换错误: %s -> %s，期望 %s",
				mapping.TextSegmentID, unified, mapping.UnifiedKey)
		}

		back, err := m.ConvertID(unified, FormatTextSegment)
		if err != nil {
			t.Fatalf("反向转换 %s 失败: %v", unified, err)
		}
		if back != mapping.TextSegmentID {
			t.Errorf("往返转换不一致: %s -> %s -> %s",
				mapping.TextSegmentID, unified, back)
		}
	}
}

func TestConvertLegacyIDFormats(t *testing.T) {
	m := NewManager(nil)
	if err := m.InitializeFromProject(buildProjectDoc(t, 7, 4)); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}

	// 中文历史格式和裸数字都按全局索引解析
	if unified, err := m.ConvertID("镜头3", FormatUnified); err != nil || unified != "scene_1_shot_3" {
		t.Errorf("镜头3 转换错误: %s, %v", unified, err)
	}
	if unified, err := m.ConvertID("9", FormatUnified); err != nil || unified != "scene_2_shot_2" {
		t.Errorf("裸数字9 转换错误: %s, %v", unified, err)
	}
	if shotID, err := m.ConvertID("text_segment_009", FormatShotOnly); err != nil || shotID != "shot_2" {
		t.Errorf("text_segment_009 转换为镜头ID错误: %s, %v", shotID, err)
	}
}

func TestConvertUnknownID(t *testing.T) {
	m := NewManager(nil)
	if err := m.InitializeFromProject(buildProjectDoc(t, 2)); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}

	if _, err := m.ConvertID("text_segment_999", FormatUnified); err == nil {
		t.Fatal("不存在的ID应该返回错误")
	} else if !errors.Is(err, ErrNotFound) {
		t.Errorf("错误类别应该是 ErrNotFound: %v", err)
	}
}

func TestConvertUnsupportedTargetFormat(t *testing.T) {
	m := NewManager(nil)
	if err := m.InitializeFromProject(buildProjectDoc(t, 2)); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}

	// 只接受 unified、text_segment、shot_only 三种目标格式
	for _, format := range []string{"global", "scene_local", ""} {
		if _, err := m.ConvertID("text_segment_001", format); err == nil {
			t.Errorf("不支持的目标格式 %q 应该返回错误", format)
		} else if !errors.Is(err, ErrNotFound) {
			t.Errorf("目标格式 %q 的错误类别应该是 ErrNotFound: %v", format, err)
		}
	}
}

func TestGetMappingByID(t *testing.T) {
	m := NewManager(nil)
	if err := m.InitializeFromProject(buildProjectDoc(t, 7, 4)); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}

	mapping, err := m.GetMappingByID("text_segment_008")
	if err != nil {
		t.Fatalf("查找失败: %v", err)
	}
	if mapping.SceneID != "scene_2" || mapping.SceneIndex != 1 {
		t.Errorf("text_segment_008 应该是 scene_2 的第1个镜头，实际 %s/%d",
			mapping.SceneID, mapping.SceneIndex)
	}

	// 裸 shot_N 在多个场景有歧义，返回第一个匹配
	mapping, err = m.GetMappingByID("shot_2")
	if err != nil {
		t.Fatalf("查找失败: %v", err)
	}
	if mapping.GlobalIndex != 2 {
		t.Errorf("shot_2 应该解析到第一个匹配（全局索引2），实际 %d", mapping.GlobalIndex)
	}

	if _, err := m.GetMappingByID("不存在"); !errors.Is(err, ErrNotFound) {
		t.Errorf("错误类别应该是 ErrNotFound: %v", err)
	}
}

func TestNormalizeSceneID(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"", "scene_1"},
		{"scene_3", "scene_3"},
		{"场景2", "scene_2"},
		{"第5场", "scene_5"},
		{"scene12", "scene_12"},
		{"开场", "scene_1"},
	}
	for _, c := range cases {
		if got := NormalizeSceneID(c.input); got != c.expected {
			t.Errorf("NormalizeSceneID(%q) = %q，期望 %q", c.input, got, c.expected)
		}
	}

	if n := ExtractSceneNumber("场景7"); n != 7 {
		t.Errorf("ExtractSceneNumber(场景7) = %d，期望 7", n)
	}
	if n := ExtractSceneNumber("无数字"); n != 1 {
		t.Errorf("无数字场景应该返回1，实际 %d", n)
	}
}

func TestSceneIDNormalizationDuringInit(t *testing.T) {
	doc := project.New()
	doc.EnsureStructure()
	segments := []project.VoiceSegment{
		{SceneID: "场景1", ShotID: "镜头1", OriginalText: "一。"},
		{SceneID: "场景1", ShotID: "镜头2", OriginalText: "二。"},
		{SceneID: "场景2", ShotID: "镜头3", OriginalText: "三。"},
	}
	if err := doc.SetVoiceSegments(segments); err != nil {
		t.Fatalf("写入配音段落失败: %v", err)
	}

	m := NewManager(nil)
	if err := m.InitializeFromProject(doc); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}

	mappings := m.GetAllMappings()
	if mappings[0].SceneID != "scene_1" || mappings[2].SceneID != "scene_2" {
		t.Errorf("中文场景ID应该被归一化: %s, %s", mappings[0].SceneID, mappings[2].SceneID)
	}
	if mappings[2].UnifiedKey != "scene_2_shot_1" {
		t.Errorf("场景2第一个镜头的统一键错误: %s", mappings[2].UnifiedKey)
	}
}

func TestSyncWithProject(t *testing.T) {
	raw := `{
		"voice_generation": {"voice_segments": [
			{"scene_id": "场景1", "shot_id": "镜头1", "original_text": "甲", "audio_path": "a1.mp3"},
			{"scene_id": "场景1", "shot_id": "镜头2", "original_text": "乙"},
			{"scene_id": "场景2", "shot_id": "镜头3", "original_text": "丙"}
		]},
		"shot_image_mappings": {
			"1": {"main_image_path": "old1.png", "status": "已生成"},
			"scene_1_shot_2": {"main_image_path": "old2.png"},
			"text_segment_003": {"main_image_path": "old3.png"},
			"bogus_key": {"main_image_path": "lost.png"}
		}
	}`
	doc := project.Parse([]byte(raw))

	m := NewManager(nil)
	if err := m.InitializeFromProject(doc); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}
	if err := m.SyncWithProject(doc); err != nil {
		t.Fatalf("同步失败: %v", err)
	}

	// 配音段落ID被覆盖为规范格式，其余字段保留
	if got := doc.Get("voice_generation.voice_segments.0.scene_id").String(); got != "scene_1" {
		t.Errorf("场景ID应该被归一化: %s", got)
	}
	if got := doc.Get("voice_generation.voice_segments.0.shot_id").String(); got != "text_segment_001" {
		t.Errorf("镜头ID应该是 text_segment_001: %s", got)
	}
	if got := doc.Get("voice_generation.voice_segments.0.audio_path").String(); got != "a1.mp3" {
		t.Errorf("音频路径应该保留: %s", got)
	}

	// 图像映射搬迁到统一键下，内容保留
	keys := doc.ImageMappingKeys()
	if len(keys) != 3 {
		t.Fatalf("期望3个图像映射，实际 %d 个: %v", len(keys), keys)
	}
	if got := doc.Get(project.ImageMappingPath("scene_1_shot_1") + ".main_image_path").String(); got != "old1.png" {
		t.Errorf("搬迁后的图像路径应该保留: %s", got)
	}
	if got := doc.Get(project.ImageMappingPath("scene_2_shot_1") + ".main_image_path").String(); got != "old3.png" {
		t.Errorf("text_segment_003 应该搬迁到 scene_2_shot_1: %s", got)
	}
	if got := doc.Get(project.ImageMappingPath("scene_2_shot_1") + ".shot_id").String(); got != "shot_1" {
		t.Errorf("搬迁条目的shot_id应该被修正: %s", got)
	}

	// 识别不出的历史键被丢弃
	if doc.Get(project.ImageMappingPath("bogus_key")).Exists() {
		t.Error("无法识别的历史键应该被丢弃")
	}
	if doc.Get(project.ImageMappingPath("1")).Exists() {
		t.Error("裸数字键应该被搬迁走")
	}
}

func TestCreateMissingMappings(t *testing.T) {
	m := NewManager(nil)

	created := m.CreateMissingMappings(7)
	if len(created) != 7 {
		t.Fatalf("期望补齐7个映射，实际 %d 个", len(created))
	}

	stats := m.GetStatistics()
	if stats.TotalShots != 7 || stats.TotalScenes != 2 || stats.MaxGlobalIndex != 7 {
		t.Errorf("统计信息错误: %+v", stats)
	}
	if stats.ShotsPerScene["scene_1"] != 5 || stats.ShotsPerScene["scene_2"] != 2 {
		t.Errorf("场景镜头分布错误: %v", stats.ShotsPerScene)
	}
	if created[6].UnifiedKey != "scene_2_shot_2" {
		t.Errorf("第7个合成映射的统一键错误: %s", created[6].UnifiedKey)
	}

	// 已有足够映射时不再补齐
	if more := m.CreateMissingMappings(5); len(more) != 0 {
		t.Errorf("目标数小于现有数量时不应该补齐: %d", len(more))
	}
}

func TestValidateConsistencyDetectsDuplicates(t *testing.T) {
	m := NewManager(nil)
	m.mappings = []ShotMapping{
		{GlobalIndex: 1, UnifiedKey: "scene_1_shot_1", TextSegmentID: "text_segment_001"},
		{GlobalIndex: 3, UnifiedKey: "scene_1_shot_1", TextSegmentID: "text_segment_001"},
	}

	valid, issues := m.ValidateConsistency()
	if valid {
		t.Fatal("重复和断号的映射应该校验失败")
	}
	if len(issues) != 3 {
		t.Errorf("期望3条问题（断号、重复键、重复段落ID），实际 %d 条: %v", len(issues), issues)
	}
}
