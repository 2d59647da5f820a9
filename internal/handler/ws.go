package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tokmz/wxgate/internal/session"
	"github.com/tokmz/wxgate/pkg/logger"
)

// WSHandler WebSocket 接入
type WSHandler struct {
	registry *session.Registry
	issuer   session.TicketIssuer
	log      logger.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler 创建 WebSocket 处理器
func NewWSHandler(registry *session.Registry, issuer session.TicketIssuer, log logger.Logger) *WSHandler {
	return &WSHandler{
		registry: registry,
		issuer:   issuer,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 扫码登录页面与网关不同源
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Shutdown 注销全部会话，各连接循环随之退出
func (h *WSHandler) Shutdown() {
	h.registry.Shutdown()
}

// Connect 升级连接并运行收发循环
func (h *WSHandler) Connect(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed",
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		return
	}

	s, handle := h.registry.Accept(c.Request.RemoteAddr)
	h.log.Info("websocket connected",
		zap.Int("id", s.ID),
		zap.String("addr", s.Addr),
	)

	session.NewConn(ws, s, handle, h.registry, h.issuer, h.log).Serve(c.Request.Context())
}
