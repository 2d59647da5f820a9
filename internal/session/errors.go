package session

import "errors"

// 错误定义
var (
	// ErrSessionClosed 会话已关闭
	ErrSessionClosed = errors.New("session: closed")
	// ErrChannelFull 发送队列已满
	ErrChannelFull = errors.New("session: send channel full")
)
