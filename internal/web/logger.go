package web

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"video-shot-workflow/pkg/broadcast"
)

// BroadcastCore 是一个zapcore.Core实现，将日志同时广播到WebSocket客户端
type BroadcastCore struct {
	source  string
	service *broadcast.BroadcastService
	zapcore.Core
}

// NewBroadcastCore 创建广播日志核心
func NewBroadcastCore(source string, service *broadcast.BroadcastService, encoder zapcore.Encoder, writeSyncer zapcore.WriteSyncer) *BroadcastCore {
	core := zapcore.NewCore(encoder, writeSyncer, zapcore.DebugLevel)
	return &BroadcastCore{
		source:  source,
		service: service,
		Core:    core,
	}
}

// With 添加字段并返回新的Core
func (b *BroadcastCore) With(fields []zapcore.Field) zapcore.Core {
	return &BroadcastCore{
		source:  b.source,
		service: b.service,
		Core:    b.Core.With(fields),
	}
}

// Check 检查日志级别是否启用
func (b *BroadcastCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if b.Core.Enabled(entry.Level) {
		return ce.AddCore(entry, b)
	}
	return ce
}

// Write 写入日志并广播
func (b *BroadcastCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	err := b.Core.Write(entry, fields)

	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	buffer, encErr := encoder.EncodeEntry(entry, fields)
	if encErr != nil {
		b.service.SendLog(b.source, "日志编码失败: "+encErr.Error(), entry.Time.Format(time.RFC3339))
		return err
	}

	message := strings.TrimSpace(buffer.String())
	if entry.Level >= zapcore.WarnLevel {
		b.service.SendMessage(b.source, message, entry.Time.Format(time.RFC3339))
	} else {
		b.service.SendLog(b.source, message, entry.Time.Format(time.RFC3339))
	}
	return err
}
