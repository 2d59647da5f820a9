package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tokmz/wxgate/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// TicketIssuer 签发扫码登录链接，scene 为本次连接 ID
type TicketIssuer interface {
	LoginURL(ctx context.Context, sceneID int) (string, error)
}

// Conn 单条 WebSocket 连接的收发循环
type Conn struct {
	session  *Session
	handle   *IDHandle
	ws       *websocket.Conn
	registry *Registry
	issuer   TicketIssuer
	log      logger.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewConn 绑定已升级的 WebSocket 连接和已登记的会话
func NewConn(ws *websocket.Conn, s *Session, handle *IDHandle, registry *Registry, issuer TicketIssuer, log logger.Logger) *Conn {
	return &Conn{
		session:  s,
		handle:   handle,
		ws:       ws,
		registry: registry,
		issuer:   issuer,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Serve 运行读写循环，任一侧出错即终止本连接，返回前注销会话并释放 ID
func (c *Conn) Serve(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		c.readPump(ctx)
	}()
	go func() {
		defer wg.Done()
		c.writePump()
	}()

	wg.Wait()
	c.close()
}

// close 注销会话并释放 ID 槽位，幂等
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		c.registry.Remove(c.session.ID)
		c.handle.Release()
		_ = c.ws.Close()
		c.log.Info("connection closed",
			zap.Int("id", c.session.ID),
			zap.String("addr", c.session.Addr),
		)
	})
}

// readPump 读取并分发浏览器控制消息
func (c *Conn) readPump(ctx context.Context) {
	defer func() {
		close(c.done)
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("read failed",
					zap.Int("id", c.session.ID),
					zap.Error(err),
				)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// 非法报文直接断开
			c.log.Warn("invalid control message",
				zap.Int("id", c.session.ID),
				zap.Error(err),
			)
			return
		}

		c.dispatch(ctx, &msg)
	}
}

// dispatch 处理单条控制消息
func (c *Conn) dispatch(ctx context.Context, msg *ClientMessage) {
	switch msg.Type {
	case ReqLogin:
		url, err := c.issuer.LoginURL(ctx, c.session.ID)
		if err != nil {
			c.log.Error("issue login url failed",
				zap.Int("id", c.session.ID),
				zap.Error(err),
			)
			return
		}
		if _, err := c.registry.TrySend(c.session.ID, ServerMessage{
			Type: RespLoginURL,
			Data: LoginURL{LoginURL: url},
		}); err != nil {
			c.log.Warn("push login url failed",
				zap.Int("id", c.session.ID),
				zap.Error(err),
			)
		}

	case ReqHeartbeat:
		// 读超时已由 pong/deadline 维护

	case ReqAuthorize:
		c.log.Info("authorize received",
			zap.Int("id", c.session.ID),
			zap.Int("token_len", len(msg.Data)),
		)

	default:
		c.log.Warn("unknown message type",
			zap.Int("id", c.session.ID),
			zap.Int("type", msg.Type),
		)
	}
}

// writePump 将会话出站队列写入连接，并维持心跳
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-c.session.Quit():
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
			return

		case data := <-c.session.Recv():
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
