package shotid

import (
	"errors"
	"regexp"
	"strconv"
)

// 目标ID格式
const (
	FormatUnified     = "unified"      // scene_X_shot_Y
	FormatTextSegment = "text_segment" // text_segment_NNN
	FormatShotOnly    = "shot_only"    // shot_Y
)

// 闭合的错误类别，调用方用 errors.Is 判断
var (
	ErrNotFound          = errors.New("镜头ID不存在")
	ErrInconsistentState = errors.New("镜头映射状态不一致")
)

// ShotMapping 一个镜头的权威身份记录
// 把全局索引、场景ID、镜头ID、文本段落ID和统一键绑定在一起
type ShotMapping struct {
	GlobalIndex   int    `json:"global_index"`    // 全局镜头索引 (1, 2, 3, ...)
	SceneID       string `json:"scene_id"`        // 场景ID (scene_1, scene_2, ...)
	ShotID        string `json:"shot_id"`         // 镜头ID (shot_1, shot_2, ...)
	TextSegmentID string `json:"text_segment_id"` // 文本段落ID (text_segment_001, ...)
	UnifiedKey    string `json:"unified_key"`     // 统一键 (scene_1_shot_1)
	OriginalText  string `json:"original_text"`   // 对应的原文内容
	SceneIndex    int    `json:"scene_index"`     // 场景内镜头索引 (1, 2, 3, ...)
}

var (
	canonicalScenePattern = regexp.MustCompile(`^scene_\d+$`)
	digitsPattern         = regexp.MustCompile(`\d+`)
)

// NormalizeSceneID 把任意写法的场景ID归一为 scene_<N>
// 无法解析时退回 scene_1，从不报错
func NormalizeSceneID(sceneID string) string {
	if sceneID == "" {
		return "scene_1"
	}
	if canonicalScenePattern.MatchString(sceneID) {
		return sceneID
	}
	if digits := digitsPattern.FindString(sceneID); digits != "" {
		return "scene_" + digits
	}
	return "scene_1"
}

// ExtractSceneNumber 从场景ID中提取数字，解析失败返回1
func ExtractSceneNumber(sceneID string) int {
	if digits := digitsPattern.FindString(sceneID); digits != "" {
		if n, err := strconv.Atoi(digits); err == nil {
			return n
		}
	}
	return 1
}
