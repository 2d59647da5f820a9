package session

// 浏览器端请求类型
const (
	ReqLogin     = 1 // 请求登录二维码
	ReqHeartbeat = 2 // 心跳
	ReqAuthorize = 3 // 携带令牌认证
)

// 服务端推送类型
const (
	RespLoginURL     = 1 // 下发二维码链接
	RespScanSuccess  = 2 // 扫码成功
	RespLoginSuccess = 3 // 登录成功
)

// ClientMessage 浏览器端控制消息
type ClientMessage struct {
	Type int    `json:"type"`
	Data string `json:"data,omitempty"`
}

// ServerMessage 服务端推送消息
type ServerMessage struct {
	Type int `json:"type"`
	Data any `json:"data,omitempty"`
}

// LoginURL 二维码链接载荷
type LoginURL struct {
	LoginURL string `json:"loginUrl"`
}
