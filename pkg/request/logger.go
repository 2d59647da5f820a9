package request

import (
	"context"

	"go.uber.org/zap"
)

// Logger 日志接口，pkg/logger 的 Logger 直接满足该接口
type Logger interface {
	// InfoContext 记录 Info 级别日志
	InfoContext(ctx context.Context, msg string, fields ...zap.Field)
	// ErrorContext 记录 Error 级别日志
	ErrorContext(ctx context.Context, msg string, fields ...zap.Field)
}
