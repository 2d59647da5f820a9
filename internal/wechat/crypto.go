package wechat

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
)

// EncodingAESKey 消息加解密密钥，固定 32 字节
type EncodingAESKey [32]byte

// ParseEncodingAESKey 解析公众平台 EncodingAESKey
// 43 字符无填充 base64，解码后必须恰好 32 字节
func ParseEncodingAESKey(s string) (EncodingAESKey, error) {
	var key EncodingAESKey

	if len(s) != 43 {
		return key, fmt.Errorf("%w: base64 length is %d, want 43", ErrAESKey, len(s))
	}

	decoded, err := base64.StdEncoding.WithPadding(base64.NoPadding).DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("%w: %v", ErrAESKey, err)
	}
	if len(decoded) != 32 {
		return key, fmt.Errorf("%w: decoded size is %d, want 32", ErrAESKey, len(decoded))
	}

	copy(key[:], decoded)
	return key, nil
}

// String 还原为无填充 base64 形式
func (k EncodingAESKey) String() string {
	return base64.StdEncoding.WithPadding(base64.NoPadding).EncodeToString(k[:])
}

// EncryptedEnvelope 加密消息的外层 XML
type EncryptedEnvelope struct {
	XMLName    xml.Name `xml:"xml"`
	ToUserName string   `xml:"ToUserName"`
	Encrypt    string   `xml:"Encrypt"`
}

// DecodeEncryptedEnvelope 解析加密消息外层 XML
func DecodeEncryptedEnvelope(data []byte) (*EncryptedEnvelope, error) {
	var env EncryptedEnvelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &env, nil
}

// Decrypt 解密信封并解析其中的消息
// AES-256-CBC，IV 为密钥前 16 字节（协议规定），无自动去填充
// 明文结构：16 字节随机串 + 4 字节大端 XML 长度 + XML + 发送方 AppID
// 返回发送方 AppID 和解析后的消息
func (e *EncryptedEnvelope) Decrypt(key EncodingAESKey) (string, *Message, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(e.Encrypt)
	if err != nil {
		return "", nil, fmt.Errorf("%w: base64: %v", ErrCrypto, err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", nil, fmt.Errorf("%w: ciphertext length %d is not a multiple of the block size", ErrCrypto, len(ciphertext))
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, key[:aes.BlockSize]).CryptBlocks(plaintext, ciphertext)

	// 末字节为填充长度，超出 1..=32 视为无填充
	pad := int(plaintext[len(plaintext)-1])
	if pad < 1 || pad > 32 {
		pad = 0
	}
	plaintext = plaintext[:len(plaintext)-pad]

	if len(plaintext) < 20 {
		return "", nil, fmt.Errorf("%w: plaintext length %d is less than 20", ErrCrypto, len(plaintext))
	}

	xmlLen := int(binary.BigEndian.Uint32(plaintext[16:20]))
	if 20+xmlLen > len(plaintext) {
		return "", nil, fmt.Errorf("%w: xml length %d overruns plaintext length %d", ErrCrypto, xmlLen, len(plaintext))
	}

	xmlContent := plaintext[20 : 20+xmlLen]
	fromAppID := string(plaintext[20+xmlLen:])

	msg, err := DecodeMessage(xmlContent)
	if err != nil {
		return "", nil, err
	}
	return fromAppID, msg, nil
}
