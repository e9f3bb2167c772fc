package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"video-shot-workflow/internal/web"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// 配置文件优先找当前工作目录，其次可执行文件所在目录
	wd, _ := os.Getwd()
	configPath := filepath.Join(wd, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		exe, exeErr := os.Executable()
		if exeErr == nil {
			configPath = filepath.Join(filepath.Dir(exe), "config.yaml")
		}
	}

	viper.SetConfigFile(configPath)
	if err := viper.ReadInConfig(); err != nil {
		logger.Warn("读取配置文件失败，使用默认配置",
			zap.String("configPath", configPath),
			zap.Error(err),
		)
	}

	server, err := web.NewServer(logger)
	if err != nil {
		logger.Fatal("创建Web服务器失败", zap.Error(err))
	}
	if err := server.Start(); err != nil {
		logger.Fatal("Web服务器启动失败", zap.Error(err))
	}
}
