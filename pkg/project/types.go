package project

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// 生成状态
const (
	StatusPending   = "未生成"
	StatusGenerated = "已生成"
)

// VoiceSegment 配音段落记录
// project.json 中 voice_generation.voice_segments 数组元素的已知字段，
// 文档中可能携带的额外字段由 Document 层原样保留
type VoiceSegment struct {
	Index             int     `json:"index"`
	SceneID           string  `json:"scene_id"`
	ShotID            string  `json:"shot_id"`
	OriginalText      string  `json:"original_text"`
	DialogueText      string  `json:"dialogue_text"`
	EstimatedDuration float64 `json:"estimated_duration"`
	SegmentType       string  `json:"segment_type"`
	QualityScore      float64 `json:"quality_score"`
	Status            string  `json:"status"`
	AudioPath         string  `json:"audio_path"`
	Selected          bool    `json:"selected"`
}

// ImageMapping 镜头图像映射记录
type ImageMapping struct {
	SceneID           string   `json:"scene_id"`
	ShotID            string   `json:"shot_id"`
	SceneName         string   `json:"scene_name"`
	ShotName          string   `json:"shot_name"`
	Sequence          string   `json:"sequence"`
	MainImagePath     string   `json:"main_image_path"`
	ImagePath         string   `json:"image_path"`
	GeneratedImages   []string `json:"generated_images"`
	CurrentImageIndex int      `json:"current_image_index"`
	Status            string   `json:"status"`
}

// parseVoiceSegment 在读取边界做一次性校验解析，
// 缺失/类型错误的字段取零值，不向上抛错
func parseVoiceSegment(value gjson.Result) VoiceSegment {
	var seg VoiceSegment
	if err := json.Unmarshal([]byte(value.Raw), &seg); err != nil {
		seg = VoiceSegment{
			SceneID:      value.Get("scene_id").String(),
			ShotID:       value.Get("shot_id").String(),
			OriginalText: value.Get("original_text").String(),
			Status:       value.Get("status").String(),
		}
	}
	return seg
}
