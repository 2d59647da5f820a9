package wechat

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"sort"
)

// Signature 计算微信服务器签名
// token、timestamp、nonce 三者字典序排序后拼接，SHA-1 摘要的小写十六进制
func Signature(token, timestamp, nonce string) string {
	parts := []string{token, timestamp, nonce}
	sort.Strings(parts)

	h := sha1.New()
	for _, s := range parts {
		io.WriteString(h, s)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature 校验请求签名
func VerifySignature(token, timestamp, nonce, signature string) bool {
	return Signature(token, timestamp, nonce) == signature
}
