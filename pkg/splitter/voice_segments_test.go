package splitter

import (
	"fmt"
	"strings"
	"testing"

	"video-shot-workflow/pkg/project"
)

func TestCreateVoiceSegments(t *testing.T) {
	text := "小明走在路上。他看到了一只猫。猫对他微笑。"
	segments := CreateVoiceSegments(text, 0, nil)

	if len(segments) != 1 {
		t.Fatalf("期望1个配音段落，实际 %d 个", len(segments))
	}

	seg := segments[0]
	if seg.Index != 0 {
		t.Errorf("段落索引错误: %d", seg.Index)
	}
	if seg.SceneID != "scene_1" || seg.ShotID != "text_segment_001" {
		t.Errorf("段落ID错误: %s/%s", seg.SceneID, seg.ShotID)
	}
	if seg.Status != project.StatusPending {
		t.Errorf("新段落状态应该是未生成: %s", seg.Status)
	}
	if !seg.Selected {
		t.Error("新段落应该默认选中")
	}
	if seg.OriginalText != seg.DialogueText {
		t.Error("原文和配音文本初始应该一致")
	}
}

func TestCreateVoiceSegmentsSceneAssignment(t *testing.T) {
	// 8个6秒句子两两成组，共4个段落，按每3个镜头一个场景分配
	sentence := strings.Repeat("天", 20) + "。"
	text := strings.Repeat(sentence, 8)

	segments := CreateVoiceSegments(text, 0, nil)
	if len(segments) != 4 {
		t.Fatalf("期望4个配音段落，实际 %d 个", len(segments))
	}

	expectedScenes := []string{"scene_1", "scene_1", "scene_1", "scene_2"}
	for i, seg := range segments {
		if seg.SceneID != expectedScenes[i] {
			t.Errorf("段落%d场景分配错误: %s，期望 %s", i+1, seg.SceneID, expectedScenes[i])
		}
		expectedShot := fmt.Sprintf("text_segment_%03d", i+1)
		if seg.ShotID != expectedShot {
			t.Errorf("段落%d镜头ID错误: %s", i+1, seg.ShotID)
		}
	}
}

func TestCreateVoiceSegmentsEmptyText(t *testing.T) {
	if segments := CreateVoiceSegments("", 10, nil); segments != nil {
		t.Errorf("空文本应该返回nil，实际 %d 个", len(segments))
	}
}
