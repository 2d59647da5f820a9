package wechat

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tokmz/wxgate/internal/session"
	"github.com/tokmz/wxgate/pkg/logger"
)

const sceneKeyPrefix = "qrscene_"

// ParseSceneID 解析事件 KEY 中的场景值
// 新关注用户的 KEY 带 qrscene_ 前缀，已关注用户不带
func ParseSceneID(eventKey string) (int, error) {
	raw := strings.TrimPrefix(eventKey, sceneKeyPrefix)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrSceneKey, eventKey)
	}
	return int(id), nil
}

// UserStore 用户持久化协作方
type UserStore interface {
	// FindByOpenID 按 OpenID 查用户，返回用户 ID 和是否存在
	FindByOpenID(ctx context.Context, openID string) (int64, bool, error)
	// Create 登记新用户，返回用户 ID
	Create(ctx context.Context, openID string) (int64, error)
}

// Notifier 会话推送协作方，由会话注册表实现
type Notifier interface {
	TrySend(id int, v any) (bool, error)
}

// EventRouter 事件路由：把扫码事件接回展示二维码的那条连接
type EventRouter struct {
	users    UserStore
	notifier Notifier
	log      logger.Logger
	// authURL 回复消息中引导用户授权的链接
	authURL string
}

// NewEventRouter 创建事件路由
func NewEventRouter(users UserStore, notifier Notifier, authURL string, log logger.Logger) *EventRouter {
	return &EventRouter{
		users:    users,
		notifier: notifier,
		log:      log,
		authURL:  authURL,
	}
}

// HandleEvent 处理一条解码后的事件消息，返回应答消息（可为 nil 表示空应答）
// openID 为消息发送方的平台标识
func (r *EventRouter) HandleEvent(ctx context.Context, openID string, msg *Message) (*Message, error) {
	event, ok := msg.Payload.(EventPayload)
	if !ok {
		return nil, nil
	}

	// 仅处理携带场景值和票据的关注/扫码事件
	if event.Event != EventSubscribe && event.Event != EventScan {
		return nil, nil
	}
	if event.EventKey == "" || event.Ticket == "" {
		return nil, nil
	}

	sceneID, err := ParseSceneID(event.EventKey)
	if err != nil {
		return nil, err
	}

	r.log.Info("scan event received",
		zap.String("open_id", openID),
		zap.String("event", string(event.Event)),
		zap.Int("scene_id", sceneID),
	)

	uid, found, err := r.users.FindByOpenID(ctx, openID)
	if err != nil {
		return nil, err
	}
	if found {
		// 已注册用户走登录流程，这里不再重复建档
		r.log.Info("known user scanned", zap.String("open_id", openID), zap.Int64("uid", uid))
		return r.replyMessage(msg), nil
	}

	if _, err := r.users.Create(ctx, openID); err != nil {
		return nil, err
	}

	// 通知结果不影响 webhook 应答，失败只记日志
	go r.notifyScanSuccess(sceneID)

	return r.replyMessage(msg), nil
}

// notifyScanSuccess 向展示二维码的连接推送扫码成功
func (r *EventRouter) notifyScanSuccess(sceneID int) {
	ok, err := r.notifier.TrySend(sceneID, session.ServerMessage{Type: session.RespScanSuccess})
	if !ok {
		r.log.Warn("scan notify: session not found", zap.Int("scene_id", sceneID))
		return
	}
	if err != nil {
		r.log.Warn("scan notify failed", zap.Int("scene_id", sceneID), zap.Error(err))
	}
}

// replyMessage 构造授权提示回复
func (r *EventRouter) replyMessage(msg *Message) *Message {
	content := "扫码成功，请点击链接完成授权登录：<a href=\"" + r.authURL + "\">授权</a>"
	return &Message{
		ToUserName:   msg.FromUserName,
		FromUserName: msg.ToUserName,
		CreateTime:   time.Now().Unix(),
		Payload:      TextPayload{Content: content},
	}
}
