package shotid

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"video-shot-workflow/pkg/project"
)

// Fixer 镜头ID修复器
// 对持久化的 project.json 做一次性的 加载-修复-校验 批处理，
// 重建逻辑委托给 Manager。重复执行是安全的：每次都从当前
// 配音段落顺序重新计算规范ID，与历史 shot_id 无关
type Fixer struct {
	projectPath     string
	projectJSONPath string
	backupPath      string
	manager         *Manager
	logger          *zap.Logger
}

// NewFixer 创建镜头ID修复器
func NewFixer(projectPath string, logger *zap.Logger) *Fixer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fixer{
		projectPath:     projectPath,
		projectJSONPath: filepath.Join(projectPath, "project.json"),
		backupPath:      filepath.Join(projectPath, "project.json.backup"),
		manager:         NewManager(logger),
		logger:          logger,
	}
}

// FormatIssue 一处ID格式问题
type FormatIssue struct {
	Type      string `json:"type"`
	CurrentID string `json:"current_id"`
	SceneID   string `json:"scene_id"`
}

// Analysis 项目ID不匹配情况的分析结果
type Analysis struct {
	VoiceSegmentsCount int           `json:"voice_segments_count"`
	ImageMappingsCount int           `json:"image_mappings_count"`
	VoiceSegmentIDs    []string      `json:"voice_segment_ids"`
	ImageMappingKeys   []string      `json:"image_mapping_keys"`
	MissingInImages    []string      `json:"missing_in_images"`
	MissingInVoice     []string      `json:"missing_in_voice"`
	IDFormatIssues     []FormatIssue `json:"id_format_issues"`
}

// AnalyzeProject 分析项目中配音段落与图像映射的ID错配
// 项目文件不存在时返回错误（errors.Is(err, os.ErrNotExist)）
func (f *Fixer) AnalyzeProject() (*Analysis, error) {
	if _, err := os.Stat(f.projectJSONPath); err != nil {
		return nil, fmt.Errorf("项目文件不存在: %s: %w", f.projectJSONPath, err)
	}

	doc, err := project.Load(f.projectJSONPath)
	if err != nil {
		return nil, fmt.Errorf("分析项目失败: %w", err)
	}

	segments := doc.VoiceSegments()
	imageKeys := doc.ImageMappingKeys()

	analysis := &Analysis{
		VoiceSegmentsCount: len(segments),
		ImageMappingsCount: len(imageKeys),
		ImageMappingKeys:   imageKeys,
	}

	voiceIDSet := make(map[string]bool, len(segments))
	for _, segment := range segments {
		compositeID := fmt.Sprintf("%s_%s", segment.SceneID, segment.ShotID)
		analysis.VoiceSegmentIDs = append(analysis.VoiceSegmentIDs, compositeID)
		voiceIDSet[compositeID] = true
	}

	imageKeySet := make(map[string]bool, len(imageKeys))
	for _, key := range imageKeys {
		imageKeySet[key] = true
	}

	for _, id := range analysis.VoiceSegmentIDs {
		if !imageKeySet[id] {
			analysis.MissingInImages = append(analysis.MissingInImages, id)
		}
	}
	for _, key := range imageKeys {
		if !voiceIDSet[key] {
			analysis.MissingInVoice = append(analysis.MissingInVoice, key)
		}
	}

	// text_segment_ 前缀说明之前的修复已经（部分）跑过
	for _, segment := range segments {
		if strings.HasPrefix(segment.ShotID, "text_segment_") {
			analysis.IDFormatIssues = append(analysis.IDFormatIssues, FormatIssue{
				Type:      "voice_segment_wrong_format",
				CurrentID: segment.ShotID,
				SceneID:   segment.SceneID,
			})
		}
	}

	f.logger.Info("项目分析完成",
		zap.Int("配音段落", analysis.VoiceSegmentsCount),
		zap.Int("图像映射", analysis.ImageMappingsCount),
	)
	return analysis, nil
}

// CreateBackup 创建项目文件备份，覆盖旧备份
func (f *Fixer) CreateBackup() bool {
	data, err := os.ReadFile(f.projectJSONPath)
	if err != nil {
		f.logger.Error("创建备份失败", zap.Error(err))
		return false
	}
	if err := os.WriteFile(f.backupPath, data, 0644); err != nil {
		f.logger.Error("创建备份失败", zap.Error(err))
		return false
	}
	f.logger.Info("项目备份已创建", zap.String("backup", f.backupPath))
	return true
}

// FixProjectIDs 修复项目中的ID不匹配
// 写盘是最后一步，中途失败不会改动原文件（备份除外）
func (f *Fixer) FixProjectIDs() bool {
	if !f.CreateBackup() {
		f.logger.Warn("无法创建备份，继续修复")
	}

	doc, err := project.Load(f.projectJSONPath)
	if err != nil {
		f.logger.Error("修复项目ID失败", zap.Error(err))
		return false
	}

	if err := f.manager.InitializeFromProject(doc); err != nil {
		f.logger.Error("修复项目ID失败", zap.Error(err))
		return false
	}

	if err := f.fixVoiceSegments(doc); err != nil {
		f.logger.Error("修复项目ID失败", zap.Error(err))
		return false
	}

	if err := f.rebuildImageMappings(doc); err != nil {
		f.logger.Error("修复项目ID失败", zap.Error(err))
		return false
	}

	if err := f.manager.SyncWithProject(doc); err != nil {
		f.logger.Error("修复项目ID失败", zap.Error(err))
		return false
	}

	if err := doc.Save(f.projectJSONPath); err != nil {
		f.logger.Error("修复项目ID失败", zap.Error(err))
		return false
	}

	f.logger.Info("项目ID修复完成")
	return true
}

// fixVoiceSegments 全局重编号配音段落的 shot_id，保持原有场景分配
func (f *Fixer) fixVoiceSegments(doc *project.Document) error {
	count := doc.VoiceSegmentCount()
	for i := 0; i < count; i++ {
		path := fmt.Sprintf("voice_generation.voice_segments.%d.shot_id", i)
		if err := doc.Set(path, fmt.Sprintf("text_segment_%03d", i+1)); err != nil {
			return err
		}
	}
	return nil
}

// rebuildImageMappings 清空并按配音段落重建全部图像映射
// 旧键下已生成的图片路径会一并丢弃，这是刻意的"清零重建"策略
func (f *Fixer) rebuildImageMappings(doc *project.Document) error {
	segments := doc.VoiceSegments()

	sceneShotIndices := make(map[string]int)
	entries := make([]project.ImageMappingEntry, 0, len(segments))

	for _, segment := range segments {
		sceneID := segment.SceneID
		if sceneID == "" {
			sceneID = "scene_1"
		}

		sceneShotIndices[sceneID]++
		shotNumber := sceneShotIndices[sceneID]
		sceneNumber := sceneNumberFromID(sceneID)

		unifiedKey := fmt.Sprintf("scene_%d_shot_%d", sceneNumber, shotNumber)
		mapping := project.ImageMapping{
			SceneID:           sceneID,
			ShotID:            fmt.Sprintf("shot_%d", shotNumber),
			SceneName:         fmt.Sprintf("场景%d", sceneNumber),
			ShotName:          fmt.Sprintf("镜头%d", shotNumber),
			Sequence:          fmt.Sprintf("%d-%d", sceneNumber, shotNumber),
			MainImagePath:     "",
			ImagePath:         "",
			GeneratedImages:   []string{},
			CurrentImageIndex: 0,
			Status:            project.StatusPending,
		}

		raw, err := json.Marshal(mapping)
		if err != nil {
			return fmt.Errorf("序列化图像映射失败: %w", err)
		}
		entries = append(entries, project.ImageMappingEntry{Key: unifiedKey, Raw: string(raw)})
	}

	if err := doc.ReplaceImageMappings(entries); err != nil {
		return err
	}

	f.logger.Info("重建图像映射完成", zap.Int("数量", len(entries)))
	return nil
}

// sceneNumberFromID 取 scene_<N> 下划线后的数字，取不到时按1处理
func sceneNumberFromID(sceneID string) int {
	parts := strings.Split(sceneID, "_")
	if len(parts) >= 2 {
		if n, err := strconv.Atoi(parts[1]); err == nil {
			return n
		}
	}
	return 1
}

// FixValidation 修复结果校验明细
type FixValidation struct {
	VoiceSegmentsCount int      `json:"voice_segments_count"`
	ImageMappingsCount int      `json:"image_mappings_count"`
	AllVoiceHaveImages bool     `json:"all_voice_have_images"`
	IDFormatCorrect    bool     `json:"id_format_correct"`
	MissingMappings    []string `json:"missing_mappings"`
}

// ValidateFix 重新加载文档独立校验修复结果
// 不复用 Manager，按与重建一致的场景内计数逻辑重算期望键
func (f *Fixer) ValidateFix() (bool, *FixValidation) {
	doc, err := project.Load(f.projectJSONPath)
	if err != nil {
		f.logger.Error("验证修复结果失败", zap.Error(err))
		return false, &FixValidation{}
	}

	segments := doc.VoiceSegments()
	result := &FixValidation{
		VoiceSegmentsCount: len(segments),
		ImageMappingsCount: doc.ImageMappingCount(),
		AllVoiceHaveImages: true,
		IDFormatCorrect:    true,
	}

	sceneShotIndices := make(map[string]int)
	for _, segment := range segments {
		sceneID := segment.SceneID
		if sceneID == "" {
			sceneID = "scene_1"
		}
		sceneShotIndices[sceneID]++
		shotNumber := sceneShotIndices[sceneID]
		sceneNumber := sceneNumberFromID(sceneID)

		expectedKey := fmt.Sprintf("scene_%d_shot_%d", sceneNumber, shotNumber)
		if !doc.Get(project.ImageMappingPath(expectedKey)).Exists() {
			result.AllVoiceHaveImages = false
			result.MissingMappings = append(result.MissingMappings, expectedKey)
		}

		if !strings.HasPrefix(segment.ShotID, "text_segment_") {
			result.IDFormatCorrect = false
		}
	}

	valid := result.AllVoiceHaveImages && result.IDFormatCorrect
	if valid {
		f.logger.Info("验证结果: 通过")
	} else {
		f.logger.Info("验证结果: 失败")
	}
	return valid, result
}

// FixProjectShotIDs 修复项目中的镜头ID不匹配问题
// 工具脚本和界面的统一入口，打印人类可读的进度
func FixProjectShotIDs(projectPath string, logger *zap.Logger) bool {
	fixer := NewFixer(projectPath, logger)

	analysis, err := fixer.AnalyzeProject()
	if err != nil {
		fmt.Printf("❌ 修复过程中发生错误: %v\n", err)
		return false
	}

	fmt.Println("📋 分析结果:")
	fmt.Printf("  配音段落数量: %d\n", analysis.VoiceSegmentsCount)
	fmt.Printf("  图像映射数量: %d\n", analysis.ImageMappingsCount)
	fmt.Printf("  缺失的图像映射: %d\n", len(analysis.MissingInImages))
	fmt.Printf("  ID格式问题: %d\n", len(analysis.IDFormatIssues))

	if analysis.VoiceSegmentsCount == analysis.ImageMappingsCount {
		fmt.Println("✅ 配音段落和图像映射数量已匹配，无需修复")
		return true
	}

	fmt.Println("🔧 开始修复...")
	if !fixer.FixProjectIDs() {
		fmt.Println("❌ 修复失败")
		return false
	}

	valid, validation := fixer.ValidateFix()
	if !valid {
		fmt.Printf("❌ 修复后验证失败: %+v\n", validation)
		return false
	}

	fmt.Println("✅ 修复成功！配音段落和图像映射现在完全匹配")
	return true
}
