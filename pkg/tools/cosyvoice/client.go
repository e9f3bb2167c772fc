package cosyvoice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Client 封装 CosyVoice Gradio 服务的API调用
type Client struct {
	BaseURL    string
	Logger     *zap.Logger
	HTTPClient *http.Client
}

// NewClient 创建新的客户端实例
func NewClient(logger *zap.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:50000" // 默认地址
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		BaseURL: baseURL,
		Logger:  logger,
		HTTPClient: &http.Client{
			Timeout: 300 * time.Second, // TTS生成可能需要较长时间
		},
	}
}

// SynthesisParams 语音合成参数
type SynthesisParams struct {
	Text           string  `json:"text"`
	ReferenceAudio string  `json:"reference_audio"`
	Speed          float64 `json:"speed"`
	Seed           int     `json:"seed"`
}

// gradioRequest Gradio API 的请求格式
type gradioRequest struct {
	Data      []interface{} `json:"data"`
	EventData interface{}   `json:"event_data"`
	FnIndex   int           `json:"fn_index"`
}

// gradioResponse Gradio API 的响应格式
type gradioResponse struct {
	Data []interface{} `json:"data"`
}

// Synthesize 调用服务合成语音并保存到本地
func (c *Client) Synthesize(params SynthesisParams, outputPath string) error {
	if params.Text == "" {
		return fmt.Errorf("合成文本为空")
	}
	if params.Speed == 0 {
		params.Speed = 1.0
	}

	c.Logger.Info("开始语音合成",
		zap.Int("文本长度", len([]rune(params.Text))),
		zap.String("参考音频", params.ReferenceAudio),
		zap.String("输出路径", outputPath),
	)

	request := gradioRequest{
		Data: []interface{}{
			params.Text,
			params.ReferenceAudio,
			params.Speed,
			params.Seed,
		},
		FnIndex: 0,
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("序列化参数失败: %w", err)
	}

	// Gradio 版本不同时API前缀不同，逐个尝试
	endpoints := []string{
		c.BaseURL + "/gradio_api/call/generate_audio",
		c.BaseURL + "/api/predict",
		c.BaseURL + "/predict",
	}

	var lastErr error
	for _, endpoint := range endpoints {
		audioURL, err := c.callEndpoint(endpoint, jsonData)
		if err != nil {
			lastErr = err
			continue
		}
		return c.downloadAudio(audioURL, outputPath)
	}

	return fmt.Errorf("所有API端点调用失败: %w", lastErr)
}

// callEndpoint 调用单个端点并解析出音频地址
func (c *Client) callEndpoint(endpoint string, body []byte) (string, error) {
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("端点 %s 返回状态码 %d", endpoint, resp.StatusCode)
	}

	var gradioResp gradioResponse
	if err := json.Unmarshal(respBody, &gradioResp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if len(gradioResp.Data) == 0 {
		return "", fmt.Errorf("响应中没有音频数据")
	}

	// 第一个元素可能是文件路径字符串或 {path, url} 对象
	switch v := gradioResp.Data[0].(type) {
	case string:
		return c.resolveFileURL(v), nil
	case map[string]interface{}:
		if url, ok := v["url"].(string); ok && url != "" {
			return url, nil
		}
		if path, ok := v["path"].(string); ok && path != "" {
			return c.resolveFileURL(path), nil
		}
	}
	return "", fmt.Errorf("无法从响应中提取音频地址")
}

// resolveFileURL 把服务端文件路径转成可下载的URL
func (c *Client) resolveFileURL(path string) string {
	if len(path) > 4 && path[:4] == "http" {
		return path
	}
	return c.BaseURL + "/file=" + path
}

// downloadAudio 下载合成结果并落盘
func (c *Client) downloadAudio(audioURL, savePath string) error {
	resp, err := c.HTTPClient.Get(audioURL)
	if err != nil {
		return fmt.Errorf("下载音频失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("下载音频失败，状态码: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(savePath), 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	file, err := os.Create(savePath)
	if err != nil {
		return fmt.Errorf("创建保存文件失败: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, resp.Body)
	if err != nil {
		return fmt.Errorf("保存音频内容失败: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("同步文件到磁盘失败: %w", err)
	}
	if written == 0 {
		return fmt.Errorf("下载的音频文件为空")
	}

	c.Logger.Info("音频下载完成",
		zap.String("文件", savePath),
		zap.Int64("大小", written),
	)
	return nil
}

// HealthCheck 检查服务是否可达
func (c *Client) HealthCheck() bool {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(c.BaseURL + "/")
	if err != nil {
		c.Logger.Warn("TTS服务不可达", zap.String("base_url", c.BaseURL), zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
