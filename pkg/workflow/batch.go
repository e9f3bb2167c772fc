package workflow

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// BatchProcess 批量处理目录下的所有解说词文本，每个txt文件生成一个独立项目
func (p *Processor) BatchProcess(ctx context.Context, narrationDir, outputDir string) ([]NarrationResult, error) {
	files, err := filepath.Glob(filepath.Join(narrationDir, "*.txt"))
	if err != nil {
		return nil, err
	}

	var results []NarrationResult
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			p.logger.Warn("读取解说词文件失败",
				zap.String("文件", file),
				zap.Error(err),
			)
			continue
		}

		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		result, err := p.ProcessNarration(ctx, NarrationParams{
			Text:        string(content),
			ProjectName: name,
			OutputDir:   outputDir,
		})
		if err != nil {
			p.logger.Warn("处理解说词失败",
				zap.String("文件", file),
				zap.Error(err),
			)
			continue
		}
		results = append(results, *result)
	}

	p.logger.Info("批量处理完成",
		zap.Int("文件数", len(files)),
		zap.Int("成功数", len(results)),
	)
	return results, nil
}
