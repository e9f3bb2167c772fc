package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"video-shot-workflow/internal/mcp"
	"video-shot-workflow/internal/web"
	"video-shot-workflow/pkg/tools/cosyvoice"
	"video-shot-workflow/pkg/workflow"
)

func main() {
	fmt.Println("启动短视频镜头工作流系统...")

	// 启动 MCP 服务器
	go runMCPModeBackground()

	// 启动 Web 服务器
	go runWebModeBackground()

	fmt.Println("MCP 服务器和 Web 服务器正在后台运行...")
	fmt.Println("- MCP 服务器: 供 AI 代理和其他客户端调用")
	fmt.Println("- Web 服务器: http://localhost:8080 供用户界面操作")
	fmt.Println("按 Ctrl+C 停止服务")

	// 等待退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\n正在关闭服务器...")
}

func runMCPModeBackground() {
	// 1. 初始化日志（第一个操作，用于记录）
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// 2. 加载配置文件 - 首先尝试当前工作目录，然后尝试可执行文件目录
	configPath := locateConfig(logger)

	viper.SetConfigFile(configPath)
	if err := viper.ReadInConfig(); err != nil {
		// 使用logger输出到stderr，stdout保留给MCP协议
		logger.Fatal("读取配置文件失败",
			zap.String("configPath", configPath),
			zap.Error(err),
		)
	}
	logger.Info("配置文件加载成功", zap.String("path", configPath))

	// 3. 检查外部服务可用性
	unavailable := runSelfCheck(logger)
	if len(unavailable) > 0 {
		logger.Warn("部分服务不可用，相关阶段会降级跳过",
			zap.Strings("services", unavailable))
	}

	// 4. 创建工作流处理器和MCP服务器
	processor, err := workflow.NewProcessor(logger)
	if err != nil {
		logger.Fatal("创建工作流处理器失败", zap.Error(err))
	}

	mcpServer, err := mcp.NewServer(processor, logger)
	if err != nil {
		logger.Fatal("创建MCP服务器失败", zap.Error(err))
	}

	// 5. 启动服务器，使用标准输入输出
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mcpServer.Start(ctx); err != nil {
		logger.Fatal("MCP服务器启动失败", zap.Error(err))
	}
}

func runWebModeBackground() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	server, err := web.NewServer(logger)
	if err != nil {
		logger.Error("创建Web服务器失败", zap.Error(err))
		return
	}
	if err := server.Start(); err != nil {
		logger.Error("Web服务器退出", zap.Error(err))
	}
}

// locateConfig 查找config.yaml，优先当前目录，其次可执行文件目录
func locateConfig(logger *zap.Logger) string {
	wd, _ := os.Getwd()
	configPath := filepath.Join(wd, "config.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		exe, exeErr := os.Executable()
		if exeErr != nil {
			logger.Fatal("无法获取可执行文件路径", zap.Error(exeErr))
		}
		configPath = filepath.Join(filepath.Dir(exe), "config.yaml")
	}
	return configPath
}

// runSelfCheck 检查依赖的外部服务，返回不可用的服务名
func runSelfCheck(logger *zap.Logger) []string {
	serviceChecks := []struct {
		name string
		fn   func() error
	}{
		{"CosyVoice", func() error { return checkCosyVoice(logger) }},
		{"分镜API密钥", checkStoryboardKey},
		{"参考音频文件", checkRefAudio},
	}

	var unavailableServices []string
	for _, check := range serviceChecks {
		if err := check.fn(); err != nil {
			logger.Warn("服务检查失败",
				zap.String("service", check.name),
				zap.Error(err),
			)
			unavailableServices = append(unavailableServices, check.name)
		}
	}
	return unavailableServices
}

// checkCosyVoice 检查TTS服务
func checkCosyVoice(logger *zap.Logger) error {
	client := cosyvoice.NewClient(logger, viper.GetString("tts.base_url"))
	if !client.HealthCheck() {
		return fmt.Errorf("CosyVoice服务不可达")
	}
	return nil
}

// checkStoryboardKey 检查分镜生成所需的API密钥
func checkStoryboardKey() error {
	if viper.GetString("storyboard.api_key") == "" && os.Getenv("OPENAI_API_KEY") == "" {
		return fmt.Errorf("未配置 storyboard.api_key 或 OPENAI_API_KEY")
	}
	return nil
}

// checkRefAudio 检查参考音频文件
func checkRefAudio() error {
	paths := []string{
		viper.GetString("tts.reference_audio"),
		"./ref.wav",
		"./assets/ref_audio/ref.wav",
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Size() > 1024 {
			return nil
		}
	}

	return fmt.Errorf("未找到有效的参考音频文件")
}
