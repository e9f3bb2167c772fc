package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"video-shot-workflow/pkg/splitter"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("用法: split_text <解说词文件> [每段目标时长秒数]")
		os.Exit(1)
	}

	inputPath := os.Args[1]

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

	// 加载配置（可选）
	viper.SetConfigFile("config.yaml")
	_ = viper.ReadInConfig()

	config := splitter.DefaultSplitConfig()
	if len(os.Args) >= 3 {
		var target float64
		if _, err := fmt.Sscanf(os.Args[2], "%f", &target); err == nil && target > 0 {
			config.TargetDuration = target
		}
	}

	s := splitter.NewSplitter(config, logger)

	fmt.Println("正在按时长切分文本...")
	segments := s.SplitTextByDuration(text)
	fmt.Printf("✅ 切分完成，共 %d 段\n\n", len(segments))

	for i, seg := range segments {
		fmt.Printf("--- 第 %d 段 (%.1f秒, %s, 质量 %.2f) ---\n",
			i+1, seg.EstimatedDuration, seg.SegmentType, seg.QualityScore)
		fmt.Println(seg.Content)
		fmt.Println()
	}

	// 切分质量评估
	validation := s.ValidateSegments(segments)
	if validation.Valid {
		fmt.Printf("✅ 切分质量正常，平均时长 %.1f 秒\n", validation.Stats.AvgDuration)
	} else {
		fmt.Printf("⚠️  发现 %d 个质量问题:\n", len(validation.Issues))
		for _, issue := range validation.Issues {
			fmt.Println("  - " + issue)
		}
	}
}
