package project

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// Document 封装整个 project.json 文档
// 内部保存原始JSON字节，通过 gjson/sjson 按路径读写，
// 这样整体重写时未知字段不会丢失
type Document struct {
	raw []byte
}

// New 创建空文档
func New() *Document {
	return &Document{raw: []byte("{}")}
}

// Parse 从JSON字节创建文档
func Parse(data []byte) *Document {
	if len(data) == 0 {
		return New()
	}
	return &Document{raw: data}
}

// NewProjectDocument 创建带基本项目信息的新文档
func NewProjectDocument(name string) *Document {
	doc := New()
	now := time.Now().Format(time.RFC3339)
	doc.Set("project_info.project_name", name)
	doc.Set("project_info.created_time", now)
	doc.Set("project_info.last_modified", now)
	doc.Set("project_info.version", "2.0")
	doc.EnsureStructure()
	return doc
}

// Load 从文件加载项目文档
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取项目文件失败: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("项目文件不是有效的JSON: %s", path)
	}
	return &Document{raw: data}, nil
}

// Save 保存文档到文件（UTF-8，两空格缩进，中文不转义）
func (d *Document) Save(path string) error {
	formatted := pretty.PrettyOptions(d.raw, &pretty.Options{Indent: "  "})
	if err := os.WriteFile(path, formatted, 0644); err != nil {
		return fmt.Errorf("写入项目文件失败: %w", err)
	}
	return nil
}

// Bytes 返回文档的原始JSON字节
func (d *Document) Bytes() []byte {
	return d.raw
}

// Get 按路径读取
func (d *Document) Get(path string) gjson.Result {
	return gjson.GetBytes(d.raw, path)
}

// Set 按路径写入任意值
func (d *Document) Set(path string, value interface{}) error {
	raw, err := sjson.SetBytes(d.raw, path, value)
	if err != nil {
		return fmt.Errorf("设置字段 %s 失败: %w", path, err)
	}
	d.raw = raw
	return nil
}

// SetRaw 按路径写入原始JSON片段
func (d *Document) SetRaw(path string, rawJSON string) error {
	raw, err := sjson.SetRawBytes(d.raw, path, []byte(rawJSON))
	if err != nil {
		return fmt.Errorf("设置字段 %s 失败: %w", path, err)
	}
	d.raw = raw
	return nil
}

// Delete 按路径删除
func (d *Document) Delete(path string) error {
	raw, err := sjson.DeleteBytes(d.raw, path)
	if err != nil {
		return fmt.Errorf("删除字段 %s 失败: %w", path, err)
	}
	d.raw = raw
	return nil
}

// EnsureStructure 确保核心数据结构存在
func (d *Document) EnsureStructure() error {
	if !d.Get("voice_generation.voice_segments").Exists() {
		if err := d.SetRaw("voice_generation.voice_segments", "[]"); err != nil {
			return err
		}
	}
	if !d.Get("shot_image_mappings").Exists() {
		if err := d.SetRaw("shot_image_mappings", "{}"); err != nil {
			return err
		}
	}
	return nil
}

// VoiceSegments 解析配音段落列表
// 无法解析的段落记录退化为零值字段，不中断整体解析
func (d *Document) VoiceSegments() []VoiceSegment {
	result := d.Get("voice_generation.voice_segments")
	if !result.IsArray() {
		return nil
	}
	var segments []VoiceSegment
	result.ForEach(func(_, value gjson.Result) bool {
		segments = append(segments, parseVoiceSegment(value))
		return true
	})
	return segments
}

// VoiceSegmentCount 配音段落数量
func (d *Document) VoiceSegmentCount() int {
	return len(d.Get("voice_generation.voice_segments").Array())
}

// SetVoiceSegments 用给定段落整体替换配音段落列表
func (d *Document) SetVoiceSegments(segments []VoiceSegment) error {
	return d.Set("voice_generation.voice_segments", segments)
}

// SetVoiceSegmentIDs 覆盖指定位置段落的 scene_id / shot_id，其余字段保持不变
func (d *Document) SetVoiceSegmentIDs(index int, sceneID, shotID string) error {
	base := fmt.Sprintf("voice_generation.voice_segments.%d", index)
	if err := d.Set(base+".scene_id", sceneID); err != nil {
		return err
	}
	return d.Set(base+".shot_id", shotID)
}

// ImageMappingEntry 一条图像映射（保持文档中的键顺序）
type ImageMappingEntry struct {
	Key string
	Raw string
}

// ImageMappingEntries 按文档顺序返回所有图像映射
func (d *Document) ImageMappingEntries() []ImageMappingEntry {
	var entries []ImageMappingEntry
	d.Get("shot_image_mappings").ForEach(func(key, value gjson.Result) bool {
		entries = append(entries, ImageMappingEntry{Key: key.String(), Raw: value.Raw})
		return true
	})
	return entries
}

// ImageMappingKeys 返回所有图像映射键
func (d *Document) ImageMappingKeys() []string {
	var keys []string
	for _, e := range d.ImageMappingEntries() {
		keys = append(keys, e.Key)
	}
	return keys
}

// ImageMappingCount 图像映射数量
func (d *Document) ImageMappingCount() int {
	return len(d.Get("shot_image_mappings").Map())
}

// ReplaceImageMappings 用给定的有序条目整体替换 shot_image_mappings
func (d *Document) ReplaceImageMappings(entries []ImageMappingEntry) error {
	raw := []byte("{}")
	var err error
	for _, e := range entries {
		raw, err = sjson.SetRawBytes(raw, escapeKey(e.Key), []byte(e.Raw))
		if err != nil {
			return fmt.Errorf("重建图像映射 %s 失败: %w", e.Key, err)
		}
	}
	return d.SetRaw("shot_image_mappings", string(raw))
}

// ImageMappingPath 指向某个图像映射的sjson路径
func ImageMappingPath(key string) string {
	return "shot_image_mappings." + escapeKey(key)
}

// escapeKey 转义键中的路径分隔符，历史遗留键可能包含点号
func escapeKey(key string) string {
	key = strings.ReplaceAll(key, "\\", "\\\\")
	return strings.ReplaceAll(key, ".", "\\.")
}
