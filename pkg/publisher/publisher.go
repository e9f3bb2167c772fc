package publisher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Publisher 视频号发布器
// 通过浏览器自动化把成片上传到微信视频号创作者平台。
// 登录态保存在固定的 user-data-dir 里，首次使用需要人工扫码
type Publisher struct {
	userDataDir string
	headless    bool
	logger      *zap.Logger
}

// PublishParams 发布参数
type PublishParams struct {
	VideoPath   string `json:"video_path"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PublishResult 发布结果
type PublishResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

const creatorPlatformURL = "https://channels.weixin.qq.com/platform/post/create"

// NewPublisher 创建发布器
func NewPublisher(logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	userDataDir := viper.GetString("publish.user_data_dir")
	if userDataDir == "" {
		home, _ := os.UserHomeDir()
		userDataDir = filepath.Join(home, ".video-shot-workflow", "browser")
	}
	return &Publisher{
		userDataDir: userDataDir,
		headless:    viper.GetBool("publish.headless"),
		logger:      logger,
	}
}

// Publish 上传视频并填写标题描述
// 平台改版导致的选择器失效会以错误形式返回，不会panic
func (p *Publisher) Publish(ctx context.Context, params PublishParams) (*PublishResult, error) {
	if params.VideoPath == "" {
		return &PublishResult{Success: false, Error: "视频路径为空"}, nil
	}
	absPath, err := filepath.Abs(params.VideoPath)
	if err != nil {
		return &PublishResult{Success: false, Error: fmt.Sprintf("解析视频路径失败: %v", err)}, nil
	}
	if _, err := os.Stat(absPath); err != nil {
		return &PublishResult{Success: false, Error: fmt.Sprintf("视频文件不存在: %s", absPath)}, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(p.userDataDir),
		chromedp.Flag("headless", p.headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1400, 900),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, 10*time.Minute)
	defer cancelRun()

	p.logger.Info("开始发布视频",
		zap.String("video", absPath),
		zap.String("title", params.Title),
	)

	err = chromedp.Run(runCtx,
		chromedp.Navigate(creatorPlatformURL),
		// 未登录会停在扫码页，等发布页的上传控件出现
		chromedp.WaitVisible(`input[type="file"]`, chromedp.ByQuery),
		chromedp.SetUploadFiles(`input[type="file"]`, []string{absPath}, chromedp.ByQuery),
		chromedp.WaitVisible(`.post-edit-wrap, .form-wrap`, chromedp.ByQuery),
		chromedp.SendKeys(`.post-edit-wrap input, .form-wrap input`, params.Title, chromedp.ByQuery),
		chromedp.SendKeys(`.input-editor, .post-desc textarea`, params.Description, chromedp.ByQuery),
	)
	if err != nil {
		p.logger.Error("发布流程失败", zap.Error(err))
		return &PublishResult{
			Success: false,
			Error:   fmt.Sprintf("浏览器自动化失败: %v", err),
		}, nil
	}

	// 等转码完成后点发表
	err = chromedp.Run(runCtx,
		chromedp.WaitEnabled(`button.weui-desktop-btn_primary`, chromedp.ByQuery),
		chromedp.Click(`button.weui-desktop-btn_primary`, chromedp.ByQuery),
		chromedp.Sleep(5*time.Second),
	)
	if err != nil {
		p.logger.Error("点击发表失败", zap.Error(err))
		return &PublishResult{
			Success: false,
			Error:   fmt.Sprintf("点击发表失败: %v", err),
		}, nil
	}

	p.logger.Info("视频发布完成", zap.String("title", params.Title))
	return &PublishResult{
		Success: true,
		Message: "视频已提交发布",
	}, nil
}

// CheckLogin 打开平台首页检查登录态
func (p *Publisher) CheckLogin(ctx context.Context) bool {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(p.userDataDir),
		chromedp.Flag("headless", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	runCtx, cancelRun := context.WithTimeout(browserCtx, 30*time.Second)
	defer cancelRun()

	var currentURL string
	err := chromedp.Run(runCtx,
		chromedp.Navigate("https://channels.weixin.qq.com/platform"),
		chromedp.Sleep(3*time.Second),
		chromedp.Location(&currentURL),
	)
	if err != nil {
		p.logger.Warn("登录检查失败", zap.Error(err))
		return false
	}

	// 未登录会被重定向到带login的地址
	loggedIn := currentURL != "" && !strings.Contains(currentURL, "login")
	p.logger.Info("登录态检查", zap.String("url", currentURL), zap.Bool("logged_in", loggedIn))
	return loggedIn
}
