package storyboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"video-shot-workflow/pkg/project"
)

// Generator 五阶段分镜生成器
// 调用大模型把旁白文本展开成场景分析，结果写入文档的
// five_stage_storyboard 段。分镜只提供视觉上下文，
// 镜头身份始终由配音段落决定
type Generator struct {
	logger *zap.Logger
}

// Scene 单个场景的分镜描述
type Scene struct {
	SceneNumber int    `json:"scene_number"`
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	VisualStyle string `json:"visual_style"`
	ImagePrompt string `json:"image_prompt"`
}

// Storyboard 五阶段分镜结果
type Storyboard struct {
	Theme         string  `json:"theme"`
	Tone          string  `json:"tone"`
	SceneAnalysis []Scene `json:"scene_analysis"`
	CreatedTime   string  `json:"created_time"`
}

type llmResponse struct {
	Theme  string  `json:"theme"`
	Tone   string  `json:"tone"`
	Scenes []Scene `json:"scenes"`
}

// NewGenerator 创建分镜生成器
func NewGenerator(logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{logger: logger}
}

// Generate 为旁白文本生成分镜
func (g *Generator) Generate(ctx context.Context, narration string, sceneCount int) (*Storyboard, error) {
	if strings.TrimSpace(narration) == "" {
		return nil, fmt.Errorf("旁白文本为空")
	}
	if sceneCount < 1 {
		sceneCount = 3
	}

	apiKey := viper.GetString("storyboard.api_key")
	if apiKey == "" {
		return nil, fmt.Errorf("未配置 storyboard.api_key")
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := viper.GetString("storyboard.base_url"); baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(clientOpts...)

	model := viper.GetString("storyboard.model")
	if model == "" {
		model = "gpt-4.1-mini"
	}

	systemPrompt := "你是短视频分镜师。把旁白文本拆成场景并给出画面描述。仅输出 JSON。"
	userPrompt := fmt.Sprintf(""+
		"任务:\n"+
		"1) 把旁白拆成 %d 个场景，scene_number 从1开始。\n"+
		"2) 每个场景给 title、summary、visual_style、image_prompt。\n"+
		"3) 额外给整体 theme 和 tone。\n\n"+
		"输出格式:\n"+
		`{"theme":"...","tone":"...","scenes":[{"scene_number":1,"title":"...","summary":"...","visual_style":"...","image_prompt":"..."}]}`+"\n\n"+
		"旁白文本:\n%s", sceneCount, narration)

	callCtx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()

	g.logger.Info("开始生成分镜",
		zap.Int("场景数", sceneCount),
		zap.String("model", model),
	)

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Model:       model,
		Temperature: openai.Float(0.4),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	}

	resp, err := client.Chat.Completions.New(callCtx, params)
	if err != nil {
		return nil, fmt.Errorf("调用分镜模型失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("分镜模型没有返回结果")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	parsed, err := parseResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("解析分镜结果失败: %w", err)
	}

	storyboard := &Storyboard{
		Theme:         parsed.Theme,
		Tone:          parsed.Tone,
		SceneAnalysis: parsed.Scenes,
		CreatedTime:   time.Now().Format(time.RFC3339),
	}

	g.logger.Info("分镜生成完成", zap.Int("场景数", len(storyboard.SceneAnalysis)))
	return storyboard, nil
}

// WriteToDocument 把分镜写入项目文档
func (g *Generator) WriteToDocument(doc *project.Document, storyboard *Storyboard) error {
	if storyboard == nil {
		return fmt.Errorf("分镜结果为空")
	}
	return doc.Set("five_stage_storyboard", storyboard)
}

// parseResponse 解析模型输出，容忍markdown代码块包裹
func parseResponse(raw string) (*llmResponse, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var parsed llmResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Scenes) == 0 {
		return nil, fmt.Errorf("分镜结果中没有场景")
	}

	// 模型偶尔漏编号或乱序，按位置重排
	for i := range parsed.Scenes {
		parsed.Scenes[i].SceneNumber = i + 1
	}
	return &parsed, nil
}
