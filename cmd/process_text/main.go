package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"video-shot-workflow/pkg/workflow"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("用法: process_text <解说词文件> [参考音频]")
		os.Exit(1)
	}

	inputPath := os.Args[1]
	referenceAudio := ""
	if len(os.Args) >= 3 {
		referenceAudio = os.Args[2]
	}

	// 读取解说词内容
	fmt.Println("正在读取解说词...")
	content, err := os.ReadFile(inputPath)
	if err != nil {
		log.Fatalf("无法读取解说词文件: %v", err)
	}
	text := string(content)
	fmt.Printf("成功读取解说词，长度: %d 字符\n", len([]rune(text)))

	// 初始化日志
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	defer logger.Sync()

	// 加载配置
	viper.SetConfigFile("config.yaml")
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("⚠️  未找到config.yaml，使用默认配置: %v\n", err)
	}

	processor, err := workflow.NewProcessor(logger)
	if err != nil {
		log.Fatalf("创建处理器失败: %v", err)
	}
	defer processor.Close()

	projectName := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))

	fmt.Println("开始处理解说词，这可能需要几分钟...")
	result, err := processor.ProcessNarration(context.Background(), workflow.NarrationParams{
		Text:           text,
		ProjectName:    projectName,
		ReferenceAudio: referenceAudio,
	})
	if err != nil {
		log.Fatalf("处理失败: %v", err)
	}

	fmt.Println("\n✅ 处理完成")
	fmt.Printf("运行ID:   %s\n", result.RunID)
	fmt.Printf("项目目录:  %s\n", result.ProjectDir)
	fmt.Printf("项目文件:  %s\n", result.ProjectFile)
	fmt.Printf("配音段数:  %d\n", result.SegmentCount)
	fmt.Printf("场景数:    %d\n", result.SceneCount)
	fmt.Printf("音频文件:  %d 个\n", len(result.AudioFiles))
	fmt.Printf("镜头图片:  %d 张\n", len(result.ImageFiles))
	if result.SubtitleFile != "" {
		fmt.Printf("字幕文件:  %s\n", result.SubtitleFile)
	}
}
