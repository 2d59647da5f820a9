package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tokmz/wxgate/internal/wechat"
	"github.com/tokmz/wxgate/pkg/logger"
)

// WebhookHandler 微信服务器回调入口
type WebhookHandler struct {
	client *wechat.Client
	router *wechat.EventRouter
	log    logger.Logger
	// redirectURL 认证回调跳转地址
	redirectURL string
}

// NewWebhookHandler 创建 webhook 处理器
func NewWebhookHandler(client *wechat.Client, router *wechat.EventRouter, redirectURL string, log logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		client:      client,
		router:      router,
		log:         log,
		redirectURL: redirectURL,
	}
}

// serverParam 微信服务器通用参数
type serverParam struct {
	Signature string `form:"signature" binding:"required"`
	Timestamp string `form:"timestamp" binding:"required"`
	Nonce     string `form:"nonce" binding:"required"`
}

func (p *serverParam) valid(token string) bool {
	return wechat.VerifySignature(token, p.Timestamp, p.Nonce, p.Signature)
}

// EchoStr 接入校验：签名合法则原样返回 echostr
func (h *WebhookHandler) EchoStr(c *gin.Context) {
	var param struct {
		serverParam
		EchoStr string `form:"echostr" binding:"required"`
	}
	if err := c.ShouldBindQuery(&param); err != nil {
		c.String(http.StatusBadRequest, "")
		return
	}

	if !param.valid(h.client.Token()) {
		c.String(http.StatusBadRequest, "")
		return
	}
	c.String(http.StatusOK, param.EchoStr)
}

// CallBack 网页授权回调：校验签名后跳转
func (h *WebhookHandler) CallBack(c *gin.Context) {
	var param struct {
		serverParam
		Code string `form:"code" binding:"required"`
	}
	if err := c.ShouldBindQuery(&param); err != nil {
		c.String(http.StatusBadRequest, "")
		return
	}

	if !param.valid(h.client.Token()) {
		c.String(http.StatusBadRequest, "")
		return
	}
	c.Redirect(http.StatusFound, h.redirectURL)
}

// Post 消息接收：验签、解密、解码、路由，应答 XML
func (h *WebhookHandler) Post(c *gin.Context) {
	var param struct {
		serverParam
		OpenID       string `form:"openid" binding:"required"`
		EncryptType  string `form:"encrypt_type"`
		MsgSignature string `form:"msg_signature"`
	}
	if err := c.ShouldBindQuery(&param); err != nil {
		c.String(http.StatusBadRequest, "")
		return
	}

	if !param.valid(h.client.Token()) {
		c.String(http.StatusBadRequest, "")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	var msg *wechat.Message
	if param.EncryptType != "" {
		if !strings.EqualFold(param.EncryptType, "aes") {
			c.String(http.StatusNotImplemented, "unsupported encryption algorithm: "+param.EncryptType)
			return
		}

		env, err := wechat.DecodeEncryptedEnvelope(body)
		if err != nil {
			c.String(http.StatusBadRequest, err.Error())
			return
		}
		fromAppID, decrypted, err := env.Decrypt(h.client.AESKey())
		if err != nil {
			c.String(http.StatusBadRequest, err.Error())
			return
		}
		h.log.InfoContext(c.Request.Context(), "encrypted message received",
			zap.String("from_app_id", fromAppID),
			zap.String("open_id", param.OpenID),
		)
		msg = decrypted
	} else {
		msg, err = wechat.DecodeMessage(body)
		if err != nil {
			c.String(http.StatusBadRequest, err.Error())
			return
		}
	}

	reply, err := h.router.HandleEvent(c.Request.Context(), param.OpenID, msg)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	if reply == nil {
		c.String(http.StatusOK, "")
		return
	}

	data, err := wechat.EncodeMessage(reply)
	if err != nil {
		h.log.ErrorContext(c.Request.Context(), "encode reply failed", zap.Error(err))
		c.String(http.StatusOK, "")
		return
	}
	c.Data(http.StatusOK, "text/xml; charset=utf-8", data)
}
