package splitter

import (
	"fmt"

	"go.uber.org/zap"

	"video-shot-workflow/pkg/project"
)

// CreateVoiceSegments 使用智能分割器创建配音段落记录
// 这里的场景分配（每3个镜头一个场景）只是临时值，
// 统一镜头映射建立后会被 shotid.Manager 覆盖
func CreateVoiceSegments(text string, targetDuration float64, logger *zap.Logger) []project.VoiceSegment {
	if logger == nil {
		logger = zap.NewNop()
	}

	config := DefaultSplitConfig()
	if targetDuration > 0 {
		config.TargetDuration = targetDuration
	}

	segments := NewSplitter(config, logger).SplitTextByDuration(text)
	if len(segments) == 0 {
		return nil
	}

	voiceSegments := make([]project.VoiceSegment, 0, len(segments))
	totalDuration := 0.0
	for i, segment := range segments {
		voiceSegments = append(voiceSegments, project.VoiceSegment{
			Index:             i,
			SceneID:           fmt.Sprintf("scene_%d", i/3+1),
			ShotID:            fmt.Sprintf("text_segment_%03d", i+1),
			OriginalText:      segment.Content,
			DialogueText:      segment.Content,
			EstimatedDuration: segment.EstimatedDuration,
			SegmentType:       segment.SegmentType,
			QualityScore:      segment.QualityScore,
			Status:            project.StatusPending,
			AudioPath:         "",
			Selected:          true,
		})
		totalDuration += segment.EstimatedDuration
	}

	logger.Info("创建配音段落完成",
		zap.Int("段落数", len(voiceSegments)),
		zap.Float64("平均时长", totalDuration/float64(len(voiceSegments))),
	)

	return voiceSegments
}
