/*镜头占位图生成*/
package image

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/image/font"

	"video-shot-workflow/pkg/project"
	"video-shot-workflow/pkg/shotid"
)

// Generator 镜头占位图生成器
// 在真实文生图接入前，为每个镜头画一张带场景编号和文案的占位图
type Generator struct {
	logger *zap.Logger
}

// GeneratedImage 生成的图片信息
type GeneratedImage struct {
	ImageFile  string `json:"image_file"`
	UnifiedKey string `json:"unified_key"`
	SceneID    string `json:"scene_id"`
	ShotID     string `json:"shot_id"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// NewGenerator 创建图片生成器
func NewGenerator(logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{logger: logger}
}

// GenerateShotImages 为每个镜头映射生成占位图
// 单张失败只记警告，整体继续
func (g *Generator) GenerateShotImages(mappings []shotid.ShotMapping, outputDir string) ([]GeneratedImage, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("创建图片目录失败: %w", err)
	}

	var results []GeneratedImage
	for _, mapping := range mappings {
		imageFile := filepath.Join(outputDir, mapping.UnifiedKey+".png")

		if err := g.renderShotImage(mapping, imageFile); err != nil {
			g.logger.Warn("生成镜头图片失败",
				zap.String("unified_key", mapping.UnifiedKey),
				zap.Error(err),
			)
			continue
		}

		results = append(results, GeneratedImage{
			ImageFile:  imageFile,
			UnifiedKey: mapping.UnifiedKey,
			SceneID:    mapping.SceneID,
			ShotID:     mapping.ShotID,
			Width:      1920,
			Height:     1080,
		})
	}

	g.logger.Info("镜头图片生成完成",
		zap.Int("总数", len(mappings)),
		zap.Int("成功", len(results)),
	)
	return results, nil
}

// AttachToDocument 把生成的图片路径写回文档中的图像映射
// 新建文档里还没有映射条目时先补建空白条目再写入
func (g *Generator) AttachToDocument(doc *project.Document, images []GeneratedImage) error {
	if err := doc.EnsureStructure(); err != nil {
		return err
	}
	for _, img := range images {
		base := project.ImageMappingPath(img.UnifiedKey)
		if !doc.Get(base).Exists() {
			if err := g.createBlankMapping(doc, img); err != nil {
				return fmt.Errorf("创建图像映射条目失败: %w", err)
			}
		}
		if err := doc.Set(base+".main_image_path", img.ImageFile); err != nil {
			return err
		}
		if err := doc.Set(base+".image_path", img.ImageFile); err != nil {
			return err
		}
		if err := doc.Set(base+".status", project.StatusGenerated); err != nil {
			return err
		}
	}
	return nil
}

// createBlankMapping 按统一键补建一条空白图像映射
func (g *Generator) createBlankMapping(doc *project.Document, img GeneratedImage) error {
	sceneNumber := shotid.ExtractSceneNumber(img.SceneID)
	shotNumber := shotNumberFromID(img.ShotID)

	mapping := project.ImageMapping{
		SceneID:           img.SceneID,
		ShotID:            img.ShotID,
		SceneName:         fmt.Sprintf("场景%d", sceneNumber),
		ShotName:          fmt.Sprintf("镜头%d", shotNumber),
		Sequence:          fmt.Sprintf("%d-%d", sceneNumber, shotNumber),
		MainImagePath:     "",
		ImagePath:         "",
		GeneratedImages:   []string{},
		CurrentImageIndex: 0,
		Status:            project.StatusPending,
	}

	raw, err := json.Marshal(mapping)
	if err != nil {
		return err
	}
	return doc.SetRaw(project.ImageMappingPath(img.UnifiedKey), string(raw))
}

// shotNumberFromID 取 shot_<N> 的编号，取不到时按1处理
func shotNumberFromID(shotID string) int {
	if n, err := strconv.Atoi(strings.TrimPrefix(shotID, "shot_")); err == nil {
		return n
	}
	return 1
}

// renderShotImage 画一张镜头占位图
func (g *Generator) renderShotImage(mapping shotid.ShotMapping, outputFile string) error {
	width := 1920
	height := 1080

	dc := gg.NewContext(width, height)

	// 背景色按场景编号取色，同场景的镜头视觉上成组
	sceneNumber := shotid.ExtractSceneNumber(mapping.SceneID)
	dc.SetColor(sceneBackground(sceneNumber))
	dc.Clear()

	// 底部信息条
	dc.SetRGBA(0, 0, 0, 0.5)
	dc.DrawRectangle(0, float64(height)-160, float64(width), 160)
	dc.Fill()

	fontSize := 56.0
	g.loadFont(dc, fontSize)

	label := fmt.Sprintf("%s  (镜头 %d)", mapping.UnifiedKey, mapping.GlobalIndex)
	dc.SetRGB(1, 1, 1)
	dc.DrawString(label, 60, float64(height)-90)

	// 原文截断到一行
	text := truncateRunes(mapping.OriginalText, 40)
	if text != "" {
		dc.DrawString(text, 60, float64(height)-30)
	}

	// 居中的大号统一键
	w, h := dc.MeasureString(mapping.UnifiedKey)
	x := (float64(width) - w) / 2
	y := (float64(height)-h)/2 + h

	dc.SetRGB(0, 0, 0)
	dc.DrawString(mapping.UnifiedKey, x+2, y+2)
	dc.SetRGB(1, 1, 1)
	dc.DrawString(mapping.UnifiedKey, x, y)

	return dc.SavePNG(outputFile)
}

// loadFont 加载配置的中文字体，失败时用gg内置字体
func (g *Generator) loadFont(dc *gg.Context, fontSize float64) {
	var face font.Face
	fontPath := viper.GetString("image.font_path")
	if fontPath != "" {
		if fontBytes, err := os.ReadFile(fontPath); err == nil {
			if parsedFont, err := truetype.Parse(fontBytes); err == nil {
				face = truetype.NewFace(parsedFont, &truetype.Options{Size: fontSize})
				dc.SetFontFace(face)
			}
		}
	}
	if face == nil {
		dc.LoadFontFace("/System/Library/Fonts/PingFang.ttc", fontSize) // macOS
	}
}

// sceneBackground 场景编号到背景色的稳定映射
func sceneBackground(sceneNumber int) color.RGBA {
	palette := []color.RGBA{
		{R: 44, G: 62, B: 80, A: 255},
		{R: 52, G: 73, B: 94, A: 255},
		{R: 39, G: 55, B: 70, A: 255},
		{R: 74, G: 35, B: 90, A: 255},
		{R: 34, G: 64, B: 54, A: 255},
		{R: 80, G: 46, B: 36, A: 255},
	}
	return palette[(sceneNumber-1+len(palette)*16)%len(palette)]
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
