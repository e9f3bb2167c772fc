package database

import (
	"gorm.io/gorm"
)

// BaseModel 包含公共字段
type BaseModel struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt MyTime         `json:"created_at"`
	UpdatedAt MyTime         `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ProcessRun 一次旁白处理运行的记录
// 项目数据本体在 project.json 里，这里只存运行历史
type ProcessRun struct {
	BaseModel
	RunID           string        `json:"run_id" gorm:"uniqueIndex"`             // 运行UUID
	ProjectDir      string        `json:"project_dir"`                           // 项目目录
	NarrationChars  int           `json:"narration_chars"`                       // 旁白字符数
	SegmentCount    int           `json:"segment_count"`                         // 分割出的段落数
	SceneCount      int           `json:"scene_count"`                           // 场景数
	Status          ProcessStatus `json:"status" gorm:"default:pending"`         // 运行状态
	ErrorMsg        string        `json:"error_msg,omitempty"`                   // 错误信息
	AudioGenerated  bool          `json:"audio_generated" gorm:"default:false"`  // 音频是否已生成
	ImageGenerated  bool          `json:"image_generated" gorm:"default:false"`  // 图像是否已生成
	SubtitleCreated bool          `json:"subtitle_created" gorm:"default:false"` // 字幕是否已创建
	IDsSynced       bool          `json:"ids_synced" gorm:"default:false"`       // 镜头ID是否已统一
	StartTime       MyTime        `json:"start_time,omitempty"`                  // 开始时间
	EndTime         MyTime        `json:"end_time,omitempty"`                    // 结束时间
	Duration        int64         `json:"duration"`                              // 处理耗时（秒）
	Steps           []ProcessStep `json:"steps" gorm:"foreignKey:RunDBID"`       // 处理步骤
}

// ProcessStep 处理步骤记录
type ProcessStep struct {
	BaseModel
	RunDBID  uint          `json:"run_db_id"`                     // 关联运行ID
	StepName string        `json:"step_name"`                     // 步骤名称：split, storyboard, tts, subtitle, image, sync等
	Status   ProcessStatus `json:"status" gorm:"default:pending"` // 步骤状态
	ErrorMsg string        `json:"error_msg,omitempty"`           // 错误信息
	Duration int64         `json:"duration"`                      // 耗时（秒）
	Details  string        `json:"details,omitempty"`             // 详细信息
}

// PublishRecord 视频发布记录
type PublishRecord struct {
	BaseModel
	RunID     string        `json:"run_id"`                        // 关联运行UUID
	Platform  string        `json:"platform"`                      // 发布平台
	VideoPath string        `json:"video_path"`                    // 视频文件路径
	Title     string        `json:"title"`                         // 视频标题
	Status    ProcessStatus `json:"status" gorm:"default:pending"` // 发布状态
	ErrorMsg  string        `json:"error_msg,omitempty"`           // 错误信息
}
