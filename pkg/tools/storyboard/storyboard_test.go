package storyboard

import (
	"testing"

	"video-shot-workflow/pkg/project"
)

func TestParseResponse(t *testing.T) {
	raw := `{"theme":"悬疑","tone":"冷峻","scenes":[
		{"scene_number":5,"title":"开场","summary":"雨夜街道","visual_style":"暗调","image_prompt":"rainy street"},
		{"title":"转折","summary":"发现线索","visual_style":"特写","image_prompt":"close-up"}
	]}`

	parsed, err := parseResponse(raw)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if parsed.Theme != "悬疑" || len(parsed.Scenes) != 2 {
		t.Errorf("解析结果错误: %+v", parsed)
	}
	// 场景编号按位置重排
	if parsed.Scenes[0].SceneNumber != 1 || parsed.Scenes[1].SceneNumber != 2 {
		t.Errorf("场景编号应该按位置重排: %d, %d",
			parsed.Scenes[0].SceneNumber, parsed.Scenes[1].SceneNumber)
	}
}

func TestParseResponseWithCodeFence(t *testing.T) {
	raw := "```json\n{\"theme\":\"t\",\"tone\":\"o\",\"scenes\":[{\"title\":\"a\"}]}\n```"
	parsed, err := parseResponse(raw)
	if err != nil {
		t.Fatalf("代码块包裹的输出应该能解析: %v", err)
	}
	if len(parsed.Scenes) != 1 {
		t.Errorf("场景数错误: %d", len(parsed.Scenes))
	}
}

func TestParseResponseEmptyScenes(t *testing.T) {
	if _, err := parseResponse(`{"theme":"t","scenes":[]}`); err == nil {
		t.Error("空场景列表应该报错")
	}
	if _, err := parseResponse("不是JSON"); err == nil {
		t.Error("非JSON输出应该报错")
	}
}

func TestWriteToDocument(t *testing.T) {
	g := NewGenerator(nil)
	doc := project.New()

	storyboard := &Storyboard{
		Theme: "都市",
		SceneAnalysis: []Scene{
			{SceneNumber: 1, Title: "清晨"},
			{SceneNumber: 2, Title: "黄昏"},
		},
	}
	if err := g.WriteToDocument(doc, storyboard); err != nil {
		t.Fatalf("写入分镜失败: %v", err)
	}

	if got := doc.Get("five_stage_storyboard.theme").String(); got != "都市" {
		t.Errorf("主题写入错误: %s", got)
	}
	if got := len(doc.Get("five_stage_storyboard.scene_analysis").Array()); got != 2 {
		t.Errorf("场景数写入错误: %d", got)
	}

	if err := g.WriteToDocument(doc, nil); err == nil {
		t.Error("空分镜应该报错")
	}
}
