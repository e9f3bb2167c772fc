package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormManager GORM数据库管理器
type GormManager struct {
	DB *gorm.DB
}

// NewGormManager 创建新的GORM数据库管理器
func NewGormManager() (*GormManager, error) {
	dbPath, err := GetDatabasePath()
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %v", err)
	}
	return NewGormManagerAt(dbPath)
}

// NewGormManagerAt 在指定路径创建数据库管理器
func NewGormManagerAt(dbPath string) (*GormManager, error) {
	newLogger := logger.New(
		log.New(log.Writer(), "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	dsn := fmt.Sprintf("%s?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on", dbPath)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %v", err)
	}

	manager := &GormManager{DB: db}

	if err := manager.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %v", err)
	}

	return manager, nil
}

// Migrate 执行数据库迁移
func (gm *GormManager) Migrate() error {
	return gm.DB.AutoMigrate(&ProcessRun{}, &ProcessStep{}, &PublishRecord{})
}

// Close 关闭数据库连接
func (gm *GormManager) Close() error {
	sqlDB, err := gm.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB 获取数据库实例
func (gm *GormManager) GetDB() *gorm.DB {
	return gm.DB
}

// CreateProcessRun 创建处理运行记录
func (gm *GormManager) CreateProcessRun(run *ProcessRun) error {
	run.Status = StatusProcessing
	run.StartTime = MyTime{Time: time.Now()}

	result := gm.DB.Create(run)
	if result.Error != nil {
		return fmt.Errorf("failed to create process run: %v", result.Error)
	}
	return nil
}

// GetProcessRunByRunID 根据运行UUID获取记录
func (gm *GormManager) GetProcessRunByRunID(runID string) (*ProcessRun, error) {
	var run ProcessRun
	result := gm.DB.Preload("Steps").First(&run, "run_id = ?", runID)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get process run: %v", result.Error)
	}
	return &run, nil
}

// ListRecentRuns 按时间倒序列出最近的运行记录
func (gm *GormManager) ListRecentRuns(limit int) ([]ProcessRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []ProcessRun
	result := gm.DB.Order("created_at desc").Limit(limit).Find(&runs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list process runs: %v", result.Error)
	}
	return runs, nil
}

// FinishProcessRun 结束运行并记录状态
func (gm *GormManager) FinishProcessRun(id uint, status ProcessStatus, errorMsg string) error {
	var run ProcessRun
	if err := gm.DB.First(&run, id).Error; err != nil {
		return fmt.Errorf("failed to load process run: %v", err)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":     status,
		"error_msg":  errorMsg,
		"end_time":   now,
		"updated_at": now,
	}
	if !run.StartTime.IsZero() {
		updates["duration"] = int64(now.Sub(run.StartTime.Time).Seconds())
	}

	result := gm.DB.Model(&ProcessRun{BaseModel: BaseModel{ID: id}}).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to finish process run: %v", result.Error)
	}
	return nil
}

// UpdateRunProgress 更新运行的阶段完成标志
func (gm *GormManager) UpdateRunProgress(id uint, audioGenerated, imageGenerated, subtitleCreated, idsSynced bool) error {
	result := gm.DB.Model(&ProcessRun{BaseModel: BaseModel{ID: id}}).Updates(map[string]interface{}{
		"audio_generated":  audioGenerated,
		"image_generated":  imageGenerated,
		"subtitle_created": subtitleCreated,
		"ids_synced":       idsSynced,
		"updated_at":       time.Now(),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update run progress: %v", result.Error)
	}
	return nil
}

// UpdateRunCounts 更新运行的切分统计
func (gm *GormManager) UpdateRunCounts(id uint, segmentCount, sceneCount int) error {
	result := gm.DB.Model(&ProcessRun{BaseModel: BaseModel{ID: id}}).Updates(map[string]interface{}{
		"segment_count": segmentCount,
		"scene_count":   sceneCount,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update run counts: %v", result.Error)
	}
	return nil
}

// CreateProcessStep 创建处理步骤记录
func (gm *GormManager) CreateProcessStep(step *ProcessStep) error {
	result := gm.DB.Create(step)
	if result.Error != nil {
		return fmt.Errorf("failed to create process step: %v", result.Error)
	}
	return nil
}

// CreatePublishRecord 创建发布记录
func (gm *GormManager) CreatePublishRecord(record *PublishRecord) error {
	result := gm.DB.Create(record)
	if result.Error != nil {
		return fmt.Errorf("failed to create publish record: %v", result.Error)
	}
	return nil
}

// UpdatePublishStatus 更新发布记录状态
func (gm *GormManager) UpdatePublishStatus(id uint, status ProcessStatus, errorMsg string) error {
	result := gm.DB.Model(&PublishRecord{BaseModel: BaseModel{ID: id}}).Updates(map[string]interface{}{
		"status":     status,
		"error_msg":  errorMsg,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update publish record: %v", result.Error)
	}
	return nil
}
