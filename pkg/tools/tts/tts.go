package tts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"video-shot-workflow/pkg/project"
	"video-shot-workflow/pkg/tools/cosyvoice"
)

// Processor 文本转语音处理器
// 按配音段落逐条合成，失败的段落降级跳过不中断批次
type Processor struct {
	client *cosyvoice.Client
	logger *zap.Logger
}

// Result 单条TTS处理结果
type Result struct {
	Success    bool   `json:"success"`
	OutputFile string `json:"output_file"`
	Error      string `json:"error,omitempty"`
}

// BatchResult 批量TTS处理结果
type BatchResult struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Files     []string `json:"files"`
}

// NewProcessor 创建TTS处理器
func NewProcessor(logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := viper.GetString("tts.base_url")
	return &Processor{
		client: cosyvoice.NewClient(logger, baseURL),
		logger: logger,
	}
}

// Generate 为单段文本生成音频文件
func (p *Processor) Generate(text, outputFile, referenceAudio string) (*Result, error) {
	if outputFile == "" {
		outputFile = filepath.Join("output", "audio", "tts_output.wav")
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("创建输出目录失败: %v", err),
		}, nil
	}

	if referenceAudio == "" {
		referenceAudio = p.findDefaultReferenceAudio()
		if referenceAudio == "" {
			return &Result{
				Success: false,
				Error:   "未提供参考音频文件",
			}, nil
		}
		p.logger.Info("使用默认参考音频", zap.String("audio", referenceAudio))
	}

	if _, err := os.Stat(referenceAudio); os.IsNotExist(err) {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("参考音频文件不存在: %s", referenceAudio),
		}, nil
	}

	params := cosyvoice.SynthesisParams{
		Text:           text,
		ReferenceAudio: referenceAudio,
		Speed:          viper.GetFloat64("tts.speed"),
	}
	if err := p.client.Synthesize(params, outputFile); err != nil {
		p.logger.Error("TTS生成失败", zap.Error(err))
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("TTS生成失败: %v", err),
		}, nil
	}

	if _, err := os.Stat(outputFile); os.IsNotExist(err) {
		return &Result{
			Success: false,
			Error:   "TTS生成完成但输出文件不存在",
		}, nil
	}

	return &Result{
		Success:    true,
		OutputFile: outputFile,
	}, nil
}

// GenerateForSegments 为配音段落批量生成音频
// 成功的段落原地更新 audio_path 和状态，失败的保持未生成
func (p *Processor) GenerateForSegments(segments []project.VoiceSegment, outputDir, referenceAudio string) (*BatchResult, []project.VoiceSegment) {
	result := &BatchResult{Total: len(segments)}
	updated := make([]project.VoiceSegment, len(segments))
	copy(updated, segments)

	for i := range updated {
		if !updated[i].Selected {
			continue
		}

		outputFile := filepath.Join(outputDir, fmt.Sprintf("%s.wav", updated[i].ShotID))
		ttsResult, err := p.Generate(updated[i].DialogueText, outputFile, referenceAudio)
		if err != nil || !ttsResult.Success {
			result.Failed++
			errMsg := ""
			if err != nil {
				errMsg = err.Error()
			} else {
				errMsg = ttsResult.Error
			}
			p.logger.Warn("段落配音失败，跳过",
				zap.String("shot_id", updated[i].ShotID),
				zap.String("错误", errMsg),
			)
			continue
		}

		updated[i].AudioPath = ttsResult.OutputFile
		updated[i].Status = project.StatusGenerated
		result.Succeeded++
		result.Files = append(result.Files, ttsResult.OutputFile)
	}

	p.logger.Info("批量配音完成",
		zap.Int("总数", result.Total),
		zap.Int("成功", result.Succeeded),
		zap.Int("失败", result.Failed),
	)
	return result, updated
}

// findDefaultReferenceAudio 查找默认参考音频
func (p *Processor) findDefaultReferenceAudio() string {
	possibilities := []string{
		viper.GetString("tts.reference_audio"),
		"./ref.wav",
		"./assets/ref_audio/ref.wav",
	}
	for _, path := range possibilities {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
