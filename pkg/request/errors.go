package request

import "github.com/tokmz/wxgate/pkg/errors"

// 4000 段错误码：HTTP 客户端相关
var (
	// ErrRequestFailed 请求失败
	ErrRequestFailed = errors.New(4001, "请求失败", 500)
	// ErrTimeout 请求超时
	ErrTimeout = errors.New(4002, "请求超时", 504)
	// ErrMarshal 序列化失败
	ErrMarshal = errors.New(4003, "序列化失败", 500)
	// ErrUnmarshal 反序列化失败
	ErrUnmarshal = errors.New(4004, "反序列化失败", 500)
	// ErrMaxRetry 重试次数已用尽
	ErrMaxRetry = errors.New(4005, "重试次数已用尽", 502)
	// ErrInvalidURL 无效的 URL
	ErrInvalidURL = errors.New(4006, "无效的URL", 400)
)
