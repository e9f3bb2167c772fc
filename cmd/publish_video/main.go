package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"video-shot-workflow/pkg/database"
	"video-shot-workflow/pkg/publisher"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("用法: publish_video <视频文件> <标题> [简介]")
		os.Exit(1)
	}

	videoPath := os.Args[1]
	title := os.Args[2]
	description := ""
	if len(os.Args) >= 4 {
		description = os.Args[3]
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	defer logger.Sync()

	viper.SetConfigFile("config.yaml")
	_ = viper.ReadInConfig()

	pub := publisher.NewPublisher(logger)

	// 发布历史记录，数据库不可用时仅发布不记录
	var db *database.GormManager
	var record *database.PublishRecord
	if db, err = database.NewGormManager(); err != nil {
		fmt.Printf("⚠️  发布历史数据库不可用: %v\n", err)
		db = nil
	} else {
		defer db.Close()
		record = &database.PublishRecord{
			Platform:  "wechat_channels",
			VideoPath: videoPath,
			Title:     title,
			Status:    database.StatusProcessing,
		}
		if err := db.CreatePublishRecord(record); err != nil {
			fmt.Printf("⚠️  创建发布记录失败: %v\n", err)
			record = nil
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	fmt.Println("正在检查视频号登录状态...")
	if !pub.CheckLogin(ctx) {
		fmt.Println("⚠️  尚未登录视频号，浏览器窗口将打开，请先扫码登录后重试")
	}

	fmt.Printf("开始上传视频: %s\n", videoPath)
	result, err := pub.Publish(ctx, publisher.PublishParams{
		VideoPath:   videoPath,
		Title:       title,
		Description: description,
	})
	if err != nil {
		log.Fatalf("发布失败: %v", err)
	}

	if result.Success {
		fmt.Println("✅ 视频已提交发布")
		if db != nil && record != nil {
			if err := db.UpdatePublishStatus(record.ID, database.StatusCompleted, ""); err != nil {
				fmt.Printf("⚠️  更新发布记录失败: %v\n", err)
			}
		}
	} else {
		fmt.Printf("❌ 发布失败: %s\n", result.Error)
		if db != nil && record != nil {
			if err := db.UpdatePublishStatus(record.ID, database.StatusFailed, result.Error); err != nil {
				fmt.Printf("⚠️  更新发布记录失败: %v\n", err)
			}
		}
		os.Exit(1)
	}
}
