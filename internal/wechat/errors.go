package wechat

import "github.com/tokmz/wxgate/pkg/errors"

// 2000 段错误码：微信公众平台相关
var (
	// ErrSignature 签名校验失败
	ErrSignature = errors.New(2001, "签名校验失败", 400)
	// ErrDecode 消息解析失败
	ErrDecode = errors.New(2002, "消息解析失败", 400)
	// ErrCrypto 消息解密失败
	ErrCrypto = errors.New(2003, "消息解密失败", 400)
	// ErrPlatform 微信接口调用失败
	ErrPlatform = errors.New(2004, "微信接口调用失败", 502)
	// ErrSceneKey 场景值解析失败
	ErrSceneKey = errors.New(2005, "场景值解析失败", 400)
	// ErrAESKey EncodingAESKey 非法
	ErrAESKey = errors.New(2006, "EncodingAESKey非法", 500)
)
