package audit

import (
	"context"
	"io"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/shared/eventbus"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig controls the rotating audit file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// FileAuditSink writes one JSON line per activity.
type FileAuditSink struct {
	log    *zap.Logger
	closer io.Closer
}

// NewFileAuditSink writes to cfg.Path, rotating by size and age.
func NewFileAuditSink(cfg FileConfig) *FileAuditSink {
	writer := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	sink := NewFileAuditSinkWithWriter(writer)
	sink.closer = writer
	return sink
}

// NewFileAuditSinkWithWriter writes audit lines to w.
func NewFileAuditSinkWithWriter(w io.Writer) *FileAuditSink {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "loggedAt"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(w), zap.InfoLevel)
	return &FileAuditSink{log: zap.New(core)}
}

// LogActivity writes activity at a level matching its severity.
func (s *FileAuditSink) LogActivity(ctx context.Context, activity model.Activity) {
	fields := []zap.Field{
		zap.String("kind", string(activity.Kind)),
		zap.String("severity", string(activity.Severity)),
		zap.Time("timestamp", activity.Timestamp),
	}
	if activity.ID != "" {
		fields = append(fields, zap.String("id", activity.ID))
	}
	if activity.OperatorID != "" {
		fields = append(fields, zap.String("operatorId", activity.OperatorID))
	}
	if len(activity.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", activity.Metadata))
	}

	switch activity.Severity {
	case model.SeverityError:
		s.log.Error(activity.Description, fields...)
	case model.SeverityWarning:
		s.log.Warn(activity.Description, fields...)
	default:
		s.log.Info(activity.Description, fields...)
	}
}

// Handle is an eventbus.Handler for audit activity events.
func (s *FileAuditSink) Handle(ctx context.Context, event eventbus.Event) error {
	if activity, ok := event.Data().(model.Activity); ok {
		s.LogActivity(ctx, activity)
	}
	return nil
}

// Close flushes buffered lines and closes the file.
func (s *FileAuditSink) Close() error {
	_ = s.log.Sync()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
