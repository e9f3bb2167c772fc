package shotid

import (
	"fmt"
	"strconv"

	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"video-shot-workflow/pkg/project"
)

// Manager 统一镜头ID管理器
// 以配音段落为权威来源，把配音、图像映射、分镜三套独立演化的
// ID命名空间收敛成一份 ShotMapping 列表，并提供双向转换。
// 没有增量更新接口：上游数据变化后必须重新 InitializeFromProject
type Manager struct {
	mappings        []ShotMapping
	conversionCache map[string]string // text_segment_XXX 及别名 -> unified_key
	reverseCache    map[string]string // unified_key -> text_segment_XXX
	logger          *zap.Logger
}

// NewManager 创建镜头ID管理器，logger 为 nil 时不输出日志
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		conversionCache: make(map[string]string),
		reverseCache:    make(map[string]string),
		logger:          logger,
	}
}

// InitializeFromProject 从项目文档重建全部镜头映射
// 每次调用都清空并从头重建，失败时管理器保持为空
func (m *Manager) InitializeFromProject(doc *project.Document) error {
	m.mappings = nil
	m.conversionCache = make(map[string]string)
	m.reverseCache = make(map[string]string)

	if doc == nil {
		m.logger.Error("初始化镜头映射失败: 项目文档为空")
		return fmt.Errorf("初始化镜头映射: %w", ErrInconsistentState)
	}

	segments := doc.VoiceSegments()
	imageCount := doc.ImageMappingCount()
	storyboardScenes := len(doc.Get("five_stage_storyboard.scene_analysis").Array())

	m.logger.Info("初始化镜头映射",
		zap.Int("配音段落", len(segments)),
		zap.Int("图像映射", imageCount),
		zap.Int("分镜场景", storyboardScenes),
	)

	// 只基于配音段落创建映射，图像映射仅作参考不补充镜头
	sceneShotIndices := make(map[string]int)
	for i, segment := range segments {
		globalIndex := i + 1
		sceneID := NormalizeSceneID(segment.SceneID)

		sceneShotIndices[sceneID]++
		shotIndexInScene := sceneShotIndices[sceneID]

		mapping := ShotMapping{
			GlobalIndex:   globalIndex,
			SceneID:       sceneID,
			ShotID:        fmt.Sprintf("shot_%d", shotIndexInScene),
			TextSegmentID: fmt.Sprintf("text_segment_%03d", globalIndex),
			UnifiedKey:    fmt.Sprintf("%s_shot_%d", sceneID, shotIndexInScene),
			OriginalText:  segment.OriginalText,
			SceneIndex:    shotIndexInScene,
		}

		m.mappings = append(m.mappings, mapping)
		m.updateConversionCache(mapping)
	}

	m.logger.Info("镜头映射初始化完成", zap.Int("映射数", len(m.mappings)))
	return nil
}

// updateConversionCache 登记正反向转换缓存及历史别名
func (m *Manager) updateConversionCache(mapping ShotMapping) {
	m.conversionCache[mapping.TextSegmentID] = mapping.UnifiedKey
	m.reverseCache[mapping.UnifiedKey] = mapping.TextSegmentID

	// 其他可能出现的历史格式
	m.conversionCache[fmt.Sprintf("镜头%d", mapping.GlobalIndex)] = mapping.UnifiedKey
	m.conversionCache[strconv.Itoa(mapping.GlobalIndex)] = mapping.UnifiedKey
}

// matches 判断任意格式的ID是否指向该映射
func matches(sourceID string, mapping ShotMapping) bool {
	return sourceID == mapping.TextSegmentID ||
		sourceID == mapping.UnifiedKey ||
		sourceID == fmt.Sprintf("镜头%d", mapping.GlobalIndex) ||
		sourceID == strconv.Itoa(mapping.GlobalIndex)
}

// ConvertID 在三种ID格式之间转换
// 命中缓存为O(1)，否则线性扫描；找不到返回 ErrNotFound
func (m *Manager) ConvertID(sourceID, targetFormat string) (string, error) {
	if targetFormat == FormatUnified {
		if unified, ok := m.conversionCache[sourceID]; ok {
			return unified, nil
		}
	}
	if targetFormat == FormatTextSegment {
		if textSegmentID, ok := m.reverseCache[sourceID]; ok {
			return textSegmentID, nil
		}
	}

	for _, mapping := range m.mappings {
		if !matches(sourceID, mapping) {
			continue
		}
		switch targetFormat {
		case FormatUnified:
			return mapping.UnifiedKey, nil
		case FormatTextSegment:
			return mapping.TextSegmentID, nil
		case FormatShotOnly:
			return mapping.ShotID, nil
		}
	}

	m.logger.Warn("无法转换镜头ID",
		zap.String("source_id", sourceID),
		zap.String("target_format", targetFormat),
	)
	return "", fmt.Errorf("转换 %s -> %s: %w", sourceID, targetFormat, ErrNotFound)
}

// GetMappingByID 根据任意格式的ID获取完整映射记录
func (m *Manager) GetMappingByID(shotID string) (*ShotMapping, error) {
	for _, mapping := range m.mappings {
		if matches(shotID, mapping) || shotID == mapping.ShotID {
			found := mapping
			return &found, nil
		}
	}
	return nil, fmt.Errorf("查找镜头 %s: %w", shotID, ErrNotFound)
}

// GetAllMappings 返回所有镜头映射的副本
func (m *Manager) GetAllMappings() []ShotMapping {
	result := make([]ShotMapping, len(m.mappings))
	copy(result, m.mappings)
	return result
}

// GetMappingsByScene 返回指定场景的所有镜头映射
func (m *Manager) GetMappingsByScene(sceneID string) []ShotMapping {
	normalized := NormalizeSceneID(sceneID)
	var result []ShotMapping
	for _, mapping := range m.mappings {
		if mapping.SceneID == normalized {
			result = append(result, mapping)
		}
	}
	return result
}

// ValidateConsistency 校验映射一致性
// 检查全局索引连续、unified_key 与 text_segment_id 无重复
func (m *Manager) ValidateConsistency() (bool, []string) {
	var issues []string

	for i, mapping := range m.mappings {
		if i > 0 && mapping.GlobalIndex != m.mappings[i-1].GlobalIndex+1 {
			issues = append(issues, fmt.Sprintf("全局索引不连续: %d -> %d",
				m.mappings[i-1].GlobalIndex, mapping.GlobalIndex))
		}
	}

	unifiedKeys := make(map[string]bool, len(m.mappings))
	textSegmentIDs := make(map[string]bool, len(m.mappings))
	for _, mapping := range m.mappings {
		if unifiedKeys[mapping.UnifiedKey] {
			issues = append(issues, fmt.Sprintf("存在重复的unified_key: %s", mapping.UnifiedKey))
		}
		unifiedKeys[mapping.UnifiedKey] = true

		if textSegmentIDs[mapping.TextSegmentID] {
			issues = append(issues, fmt.Sprintf("存在重复的text_segment_id: %s", mapping.TextSegmentID))
		}
		textSegmentIDs[mapping.TextSegmentID] = true
	}

	return len(issues) == 0, issues
}

// SyncWithProject 把权威映射写回项目文档（原地修改）
// 配音段落按位置覆盖 shot_id/scene_id，其余字段保留；
// 图像映射搬迁到统一键下，识别不出的历史键会被丢弃
func (m *Manager) SyncWithProject(doc *project.Document) error {
	if doc == nil {
		return fmt.Errorf("同步项目数据: %w", ErrInconsistentState)
	}
	if err := doc.EnsureStructure(); err != nil {
		m.logger.Error("项目数据同步失败", zap.Error(err))
		return err
	}

	// 同步配音段落的ID格式
	segmentCount := doc.VoiceSegmentCount()
	for i := 0; i < segmentCount && i < len(m.mappings); i++ {
		mapping := m.mappings[i]
		if err := doc.SetVoiceSegmentIDs(i, mapping.SceneID, mapping.TextSegmentID); err != nil {
			m.logger.Error("项目数据同步失败", zap.Error(err))
			return err
		}
	}

	// 图像映射搬迁到统一键格式
	existing := doc.ImageMappingEntries()
	var updated []project.ImageMappingEntry

	for _, mapping := range m.mappings {
		var oldRaw string
		found := false
		for _, entry := range existing {
			if entry.Key == mapping.UnifiedKey ||
				entry.Key == mapping.TextSegmentID ||
				m.keysMatch(entry.Key, mapping) {
				oldRaw = entry.Raw
				found = true
				break
			}
		}
		if !found {
			continue
		}

		raw, err := sjson.Set(oldRaw, "scene_id", mapping.SceneID)
		if err != nil {
			m.logger.Error("项目数据同步失败", zap.Error(err))
			return err
		}
		raw, err = sjson.Set(raw, "shot_id", mapping.ShotID)
		if err != nil {
			m.logger.Error("项目数据同步失败", zap.Error(err))
			return err
		}
		updated = append(updated, project.ImageMappingEntry{Key: mapping.UnifiedKey, Raw: raw})
	}

	if err := doc.ReplaceImageMappings(updated); err != nil {
		m.logger.Error("项目数据同步失败", zap.Error(err))
		return err
	}

	m.logger.Info("项目数据同步完成",
		zap.Int("配音段落", segmentCount),
		zap.Int("图像映射", len(updated)),
	)
	return nil
}

// keysMatch 检查历史键是否匹配映射
func (m *Manager) keysMatch(key string, mapping ShotMapping) bool {
	possible := []string{
		mapping.UnifiedKey,
		mapping.TextSegmentID,
		fmt.Sprintf("scene_1_%s", mapping.ShotID),
		fmt.Sprintf("scene_1_shot_%d", mapping.GlobalIndex),
		strconv.Itoa(mapping.GlobalIndex),
	}
	for _, candidate := range possible {
		if key == candidate {
			return true
		}
	}
	return false
}

// CreateMissingMappings 补齐映射到目标数量
// 合成映射没有原文，按每5个镜头一个场景分配
func (m *Manager) CreateMissingMappings(targetCount int) []ShotMapping {
	var created []ShotMapping

	for i := len(m.mappings); i < targetCount; i++ {
		globalIndex := i + 1
		sceneNumber := i/5 + 1
		shotIndexInScene := i%5 + 1

		mapping := ShotMapping{
			GlobalIndex:   globalIndex,
			SceneID:       fmt.Sprintf("scene_%d", sceneNumber),
			ShotID:        fmt.Sprintf("shot_%d", shotIndexInScene),
			TextSegmentID: fmt.Sprintf("text_segment_%03d", globalIndex),
			UnifiedKey:    fmt.Sprintf("scene_%d_shot_%d", sceneNumber, shotIndexInScene),
			OriginalText:  "",
			SceneIndex:    shotIndexInScene,
		}

		created = append(created, mapping)
		m.mappings = append(m.mappings, mapping)
		m.updateConversionCache(mapping)
	}

	return created
}

// Statistics 镜头映射统计信息
type Statistics struct {
	TotalShots     int            `json:"total_shots"`
	TotalScenes    int            `json:"total_scenes"`
	ShotsPerScene  map[string]int `json:"shots_per_scene"`
	MaxGlobalIndex int            `json:"max_global_index"`
}

// GetStatistics 统计各场景的镜头分布
func (m *Manager) GetStatistics() Statistics {
	stats := Statistics{ShotsPerScene: make(map[string]int)}
	for _, mapping := range m.mappings {
		stats.ShotsPerScene[mapping.SceneID]++
		if mapping.GlobalIndex > stats.MaxGlobalIndex {
			stats.MaxGlobalIndex = mapping.GlobalIndex
		}
	}
	stats.TotalShots = len(m.mappings)
	stats.TotalScenes = len(stats.ShotsPerScene)
	return stats
}
