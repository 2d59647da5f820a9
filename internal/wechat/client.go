package wechat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tokmz/wxgate/pkg/cache"
	"github.com/tokmz/wxgate/pkg/logger"
	"github.com/tokmz/wxgate/pkg/request"
)

const (
	defaultAPIBaseURL = "https://api.weixin.qq.com"
	// 登录二维码有效期
	loginQRExpireSeconds = 3600
)

// ClientConfig 公众平台客户端配置
type ClientConfig struct {
	AppID     string
	AppSecret string
	Token     string
	AESKey    EncodingAESKey
	// BaseURL 接口地址，空则使用官方地址
	BaseURL string
	Timeout time.Duration
}

// accessToken 带取得时间的 access_token
type accessToken struct {
	Value     string `json:"value"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresIn int64  `json:"expires_in"`
}

func (t accessToken) expired() bool {
	return t.Value == "" || t.IssuedAt+t.ExpiresIn <= time.Now().Unix()
}

// Client 公众平台客户端
type Client struct {
	cfg   ClientConfig
	http  *request.Client
	store cache.Cache
	log   logger.Logger

	mu    sync.RWMutex
	token accessToken
}

// NewClient 创建公众平台客户端，store 用于跨重启保留 access_token
func NewClient(cfg ClientConfig, store cache.Cache, log logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAPIBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		cfg: cfg,
		http: request.New(
			request.WithBaseURL(cfg.BaseURL),
			request.WithTimeout(cfg.Timeout),
			request.WithLogger(log),
		),
		store: store,
		log:   log,
	}
	c.loadCachedToken()
	return c
}

// Token 返回 webhook 校验令牌
func (c *Client) Token() string { return c.cfg.Token }

// AppID 返回开发者 ID
func (c *Client) AppID() string { return c.cfg.AppID }

// AESKey 返回消息加解密密钥
func (c *Client) AESKey() EncodingAESKey { return c.cfg.AESKey }

func (c *Client) tokenCacheKey() string {
	return "wx:token:" + c.cfg.AppID
}

func (c *Client) loadCachedToken() {
	if c.store == nil {
		return
	}
	var t accessToken
	if err := c.store.Get(context.Background(), c.tokenCacheKey(), &t); err != nil {
		return
	}
	if !t.expired() {
		c.token = t
	}
}

// wxError 微信接口错误段，errcode 为 0 表示成功
type wxError struct {
	ErrCode int64  `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (e wxError) err() error {
	if e.ErrCode == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d %s", ErrPlatform, e.ErrCode, e.ErrMsg)
}

type tokenResult struct {
	wxError
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// AccessToken 返回有效的 access_token，过期时刷新
// 双重检查：读锁判断，写锁下复查后再请求
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	t := c.token
	c.mu.RUnlock()
	if !t.expired() {
		return t.Value, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.token.expired() {
		return c.token.Value, nil
	}

	result, err := request.Do[tokenResult](
		c.http.Get("/cgi-bin/token").
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"grant_type": "client_credential",
				"appid":      c.cfg.AppID,
				"secret":     c.cfg.AppSecret,
			}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPlatform, err)
	}
	if err := result.err(); err != nil {
		return "", err
	}

	c.token = accessToken{
		Value:     result.AccessToken,
		IssuedAt:  time.Now().Unix(),
		ExpiresIn: result.ExpiresIn,
	}

	if c.store != nil {
		ttl := time.Duration(result.ExpiresIn) * time.Second
		if err := c.store.Set(ctx, c.tokenCacheKey(), c.token, ttl); err != nil {
			c.log.Warn("persist access token failed", zap.Error(err))
		}
	}

	return c.token.Value, nil
}

// QRTicket 二维码票据
type QRTicket struct {
	wxError
	// Ticket 换取二维码图片的票据
	Ticket string `json:"ticket"`
	// ExpireSeconds 二维码有效时间（秒）
	ExpireSeconds int64 `json:"expire_seconds"`
	// URL 二维码内容，可据此自行生成二维码图片
	URL string `json:"url"`
}

// CreateQRTicket 创建场景二维码
// limited 为 true 时创建永久二维码（QR_LIMIT_SCENE）
func (c *Client) CreateQRTicket(ctx context.Context, sceneID int, expireSeconds int64, limited bool) (*QRTicket, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	actionName := "QR_SCENE"
	if limited {
		actionName = "QR_LIMIT_SCENE"
	}

	body := map[string]any{
		"expire_seconds": expireSeconds,
		"action_name":    actionName,
		"action_info": map[string]any{
			"scene": map[string]any{"scene_id": sceneID},
		},
	}

	result, err := request.Do[QRTicket](
		c.http.Post("/cgi-bin/qrcode/create").
			SetContext(ctx).
			SetQuery("access_token", token).
			SetBody(body),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlatform, err)
	}
	if err := result.err(); err != nil {
		return nil, err
	}
	return result, nil
}

// LoginURL 为指定连接签发扫码登录链接，场景值即连接 ID
func (c *Client) LoginURL(ctx context.Context, sceneID int) (string, error) {
	ticket, err := c.CreateQRTicket(ctx, sceneID, loginQRExpireSeconds, false)
	if err != nil {
		return "", err
	}
	return ticket.URL, nil
}
