package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"video-shot-workflow/pkg/database"
	"video-shot-workflow/pkg/project"
	"video-shot-workflow/pkg/shotid"
	"video-shot-workflow/pkg/splitter"
	"video-shot-workflow/pkg/tools/image"
	"video-shot-workflow/pkg/tools/storyboard"
	"video-shot-workflow/pkg/tools/subtitle"
	"video-shot-workflow/pkg/tools/tts"
)

// NarrationParams 单次解说词处理参数
type NarrationParams struct {
	Text           string
	ProjectName    string
	OutputDir      string
	ReferenceAudio string
	TargetDuration float64 // 每段目标时长，0则使用配置默认值
	SkipStoryboard bool
}

// NarrationResult 处理结果汇总
type NarrationResult struct {
	RunID        string
	ProjectDir   string
	ProjectFile  string
	SegmentCount int
	SceneCount   int
	AudioFiles   []string
	SubtitleFile string
	ImageFiles   []string
	Status       string
	Message      string
}

// Processor 解说词到镜头素材的流水线处理器
type Processor struct {
	ttsTool      *tts.Processor
	subtitleTool *subtitle.Generator
	imageTool    *image.Generator
	storyboard   *storyboard.Generator
	db           *database.GormManager
	logger       *zap.Logger
}

func NewProcessor(logger *zap.Logger) (*Processor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// 数据库不可用时流水线仍然可以运行，只是缺少运行记录
	db, err := database.NewGormManager()
	if err != nil {
		logger.Warn("初始化运行记录数据库失败，将跳过记录", zap.Error(err))
		db = nil
	}

	return &Processor{
		ttsTool:      tts.NewProcessor(logger),
		subtitleTool: subtitle.NewGenerator(logger),
		imageTool:    image.NewGenerator(logger),
		storyboard:   storyboard.NewGenerator(logger),
		db:           db,
		logger:       logger,
	}, nil
}

// ProcessNarration 处理单篇解说词：切分、配音、字幕、镜头图片、ID同步
func (p *Processor) ProcessNarration(ctx context.Context, params NarrationParams) (*NarrationResult, error) {
	if params.TargetDuration <= 0 {
		params.TargetDuration = viper.GetFloat64("splitter.target_duration")
	}
	if params.ProjectName == "" {
		params.ProjectName = "未命名项目"
	}

	runID := uuid.NewString()
	p.logger.Info("开始处理解说词",
		zap.String("运行ID", runID),
		zap.String("项目", params.ProjectName),
		zap.Int("文本长度", len([]rune(params.Text))),
	)

	// 1. 创建项目目录结构
	projectDir, err := p.createProjectStructure(params)
	if err != nil {
		return nil, fmt.Errorf("创建项目目录失败: %w", err)
	}

	run := p.beginRun(runID, projectDir, params)

	// 2. 文本切分并生成配音段
	segments := splitter.CreateVoiceSegments(params.Text, params.TargetDuration, p.logger)
	if len(segments) == 0 {
		p.finishRun(run, database.StatusFailed, "文本切分后没有配音段")
		return nil, fmt.Errorf("文本切分后没有配音段")
	}
	p.recordStep(run, "split", database.StatusCompleted, "",
		fmt.Sprintf("切分出 %d 个配音段", len(segments)))

	doc := project.NewProjectDocument(params.ProjectName)
	if err := doc.SetVoiceSegments(segments); err != nil {
		p.finishRun(run, database.StatusFailed, err.Error())
		return nil, fmt.Errorf("写入配音段失败: %w", err)
	}

	// 3. 分镜脚本（失败不中断）
	if !params.SkipStoryboard {
		sceneCount := countScenes(segments)
		board, sbErr := p.storyboard.Generate(ctx, params.Text, sceneCount)
		if sbErr != nil {
			p.logger.Warn("分镜脚本生成失败，继续处理", zap.Error(sbErr))
			p.recordStep(run, "storyboard", database.StatusFailed, sbErr.Error(), "")
		} else {
			if err := p.storyboard.WriteToDocument(doc, board); err != nil {
				p.logger.Warn("写入分镜脚本失败", zap.Error(err))
			}
			p.recordStep(run, "storyboard", database.StatusCompleted, "",
				fmt.Sprintf("%d 个场景", len(board.SceneAnalysis)))
		}
	} else {
		p.recordStep(run, "storyboard", database.StatusSkipped, "", "按参数跳过")
	}

	// 4. 批量配音（单段失败不中断）
	audioDir := filepath.Join(projectDir, "audio")
	batch, updated := p.ttsTool.GenerateForSegments(segments, audioDir, params.ReferenceAudio)
	segments = updated
	if err := doc.SetVoiceSegments(segments); err != nil {
		p.logger.Warn("更新配音段状态失败", zap.Error(err))
	}
	audioOK := batch.Succeeded > 0
	ttsStatus := database.StatusCompleted
	if batch.Succeeded == 0 && batch.Failed > 0 {
		ttsStatus = database.StatusFailed
	}
	p.recordStep(run, "tts", ttsStatus, "",
		fmt.Sprintf("成功 %d / 失败 %d", batch.Succeeded, batch.Failed))

	// 5. 字幕
	subtitleFile := filepath.Join(projectDir, "subtitles", params.ProjectName+".srt")
	subResult, subErr := p.subtitleTool.GenerateFromSegments(segments, subtitleFile)
	subtitleOK := subErr == nil && subResult != nil && subResult.Success
	if !subtitleOK {
		p.logger.Warn("字幕生成失败，继续处理", zap.Error(subErr))
		p.recordStep(run, "subtitle", database.StatusFailed, errText(subErr, subResult), "")
		subtitleFile = ""
	} else {
		p.recordStep(run, "subtitle", database.StatusCompleted, "",
			fmt.Sprintf("%d 行字幕", subResult.LineCount))
	}

	// 6. 镜头ID映射与占位图片
	manager := shotid.NewManager(p.logger)
	if err := manager.InitializeFromProject(doc); err != nil {
		p.finishRun(run, database.StatusFailed, err.Error())
		return nil, fmt.Errorf("初始化镜头ID映射失败: %w", err)
	}

	var imageFiles []string
	imageOK := false
	images, imgErr := p.imageTool.GenerateShotImages(manager.GetAllMappings(), filepath.Join(projectDir, "images"))
	if imgErr != nil {
		p.logger.Warn("镜头图片生成失败，继续处理", zap.Error(imgErr))
		p.recordStep(run, "image", database.StatusFailed, imgErr.Error(), "")
	} else {
		if err := p.imageTool.AttachToDocument(doc, images); err != nil {
			p.logger.Warn("写入图片映射失败", zap.Error(err))
		}
		for _, img := range images {
			imageFiles = append(imageFiles, img.ImageFile)
		}
		imageOK = len(images) > 0
		p.recordStep(run, "image", database.StatusCompleted, "",
			fmt.Sprintf("%d 张镜头图片", len(images)))
	}

	// 7. 三套ID对齐
	idsSynced := true
	if err := manager.SyncWithProject(doc); err != nil {
		p.logger.Warn("镜头ID同步失败", zap.Error(err))
		p.recordStep(run, "sync", database.StatusFailed, err.Error(), "")
		idsSynced = false
	} else {
		stats := manager.GetStatistics()
		p.recordStep(run, "sync", database.StatusCompleted, "",
			fmt.Sprintf("%d 个镜头 / %d 个场景", stats.TotalShots, stats.TotalScenes))
	}

	// 8. 保存项目文件
	projectFile := filepath.Join(projectDir, "project.json")
	if err := doc.Save(projectFile); err != nil {
		p.finishRun(run, database.StatusFailed, err.Error())
		return nil, fmt.Errorf("保存项目文件失败: %w", err)
	}

	stats := manager.GetStatistics()
	if p.db != nil && run != nil {
		if err := p.db.UpdateRunCounts(run.ID, len(segments), stats.TotalScenes); err != nil {
			p.logger.Warn("更新运行统计失败", zap.Error(err))
		}
	}
	p.updateProgress(run, audioOK, imageOK, subtitleOK, idsSynced)
	p.finishRun(run, database.StatusCompleted, "")

	result := &NarrationResult{
		RunID:        runID,
		ProjectDir:   projectDir,
		ProjectFile:  projectFile,
		SegmentCount: len(segments),
		SceneCount:   stats.TotalScenes,
		AudioFiles:   batch.Files,
		SubtitleFile: subtitleFile,
		ImageFiles:   imageFiles,
		Status:       "completed",
		Message:      "解说词处理完成",
	}

	p.logger.Info("解说词处理完成",
		zap.String("运行ID", runID),
		zap.String("项目文件", projectFile),
		zap.Int("配音段数", result.SegmentCount),
		zap.Int("场景数", result.SceneCount),
	)
	return result, nil
}

func (p *Processor) createProjectStructure(params NarrationParams) (string, error) {
	base := params.OutputDir
	if base == "" {
		base = viper.GetString("workflow.output_dir")
	}
	if base == "" {
		base = "output"
	}

	projectDir := filepath.Join(base, params.ProjectName)
	for _, sub := range []string{"audio", "subtitles", "images"} {
		if err := os.MkdirAll(filepath.Join(projectDir, sub), 0755); err != nil {
			return "", err
		}
	}

	textFile := filepath.Join(projectDir, "narration.txt")
	if err := os.WriteFile(textFile, []byte(params.Text), 0644); err != nil {
		return "", fmt.Errorf("保存解说词文本失败: %w", err)
	}
	return projectDir, nil
}

// beginRun 创建运行记录，数据库不可用时返回nil
func (p *Processor) beginRun(runID, projectDir string, params NarrationParams) *database.ProcessRun {
	if p.db == nil {
		return nil
	}
	run := &database.ProcessRun{
		RunID:          runID,
		ProjectDir:     projectDir,
		NarrationChars: len([]rune(params.Text)),
	}
	if err := p.db.CreateProcessRun(run); err != nil {
		p.logger.Warn("创建运行记录失败", zap.Error(err))
		return nil
	}
	return run
}

func (p *Processor) recordStep(run *database.ProcessRun, name string, status database.ProcessStatus, errorMsg, details string) {
	if p.db == nil || run == nil {
		return
	}
	step := &database.ProcessStep{
		RunDBID:  run.ID,
		StepName: name,
		Status:   status,
		ErrorMsg: errorMsg,
		Details:  details,
	}
	if err := p.db.CreateProcessStep(step); err != nil {
		p.logger.Warn("记录处理步骤失败", zap.String("步骤", name), zap.Error(err))
	}
}

func (p *Processor) updateProgress(run *database.ProcessRun, audio, image, subtitle, synced bool) {
	if p.db == nil || run == nil {
		return
	}
	if err := p.db.UpdateRunProgress(run.ID, audio, image, subtitle, synced); err != nil {
		p.logger.Warn("更新运行进度失败", zap.Error(err))
	}
}

func (p *Processor) finishRun(run *database.ProcessRun, status database.ProcessStatus, errorMsg string) {
	if p.db == nil || run == nil {
		return
	}
	if err := p.db.FinishProcessRun(run.ID, status, errorMsg); err != nil {
		p.logger.Warn("更新运行记录失败", zap.Error(err))
	}
}

// ListRecentRuns 查询最近的处理记录
func (p *Processor) ListRecentRuns(limit int) ([]database.ProcessRun, error) {
	if p.db == nil {
		return nil, fmt.Errorf("运行记录数据库不可用")
	}
	return p.db.ListRecentRuns(limit)
}

// Close 释放数据库连接
func (p *Processor) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

func countScenes(segments []project.VoiceSegment) int {
	seen := make(map[string]bool)
	for _, seg := range segments {
		if seg.SceneID != "" {
			seen[seg.SceneID] = true
		}
	}
	if len(seen) == 0 {
		return 1
	}
	return len(seen)
}

func errText(err error, result *subtitle.Result) string {
	if err != nil {
		return err.Error()
	}
	if result != nil && result.Error != "" {
		return result.Error
	}
	return "未知错误"
}
