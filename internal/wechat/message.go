package wechat

import (
	"encoding/xml"
	"fmt"
)

// 消息类型
const (
	MsgText       = "text"
	MsgImage      = "image"
	MsgVideo      = "video"
	MsgVoice      = "voice"
	MsgShortVideo = "shortvideo"
	MsgEvent      = "event"
)

// EventType 事件类型，取值为微信协议原文
type EventType string

const (
	EventSubscribe   EventType = "subscribe"
	EventUnsubscribe EventType = "unsubscribe"
	EventScan        EventType = "SCAN"
)

// ParseEventType 解析事件类型字符串，大小写敏感
func ParseEventType(s string) (EventType, error) {
	switch EventType(s) {
	case EventSubscribe, EventUnsubscribe, EventScan:
		return EventType(s), nil
	default:
		return "", fmt.Errorf("%w: unknown event type %q", ErrDecode, s)
	}
}

// wireMessage 微信消息的 XML 线上格式，所有变体字段均为可选
type wireMessage struct {
	XMLName      xml.Name `xml:"xml"`
	ToUserName   string   `xml:"ToUserName"`
	FromUserName string   `xml:"FromUserName"`
	CreateTime   int64    `xml:"CreateTime"`
	MsgType      string   `xml:"MsgType"`
	Content      string   `xml:"Content,omitempty"`
	PicURL       string   `xml:"PicUrl,omitempty"`
	MediaID      string   `xml:"MediaId,omitempty"`
	Format       string   `xml:"Format,omitempty"`
	Recognition  string   `xml:"Recognition,omitempty"`
	ThumbMediaID string   `xml:"ThumbMediaId,omitempty"`
	MsgID        *int64   `xml:"MsgId,omitempty"`
	MsgDataID    string   `xml:"MsgDataId,omitempty"`
	Idx          string   `xml:"Idx,omitempty"`
	Event        string   `xml:"Event,omitempty"`
	EventKey     string   `xml:"EventKey,omitempty"`
	Ticket       string   `xml:"Ticket,omitempty"`
}

// Message 类型化消息模型
type Message struct {
	// ToUserName 接收方微信号
	ToUserName string
	// FromUserName 发送方微信号，普通用户为 OpenID
	FromUserName string
	// CreateTime 消息创建时间（秒）
	CreateTime int64
	// Payload 按消息类型区分的载荷
	Payload Payload
	// MsgID 消息 id，64 位整型
	MsgID *int64
	// MsgDataID 消息的数据 ID（消息来自文章时才有）
	MsgDataID string
	// Idx 多图文时第几篇文章（消息来自文章时才有）
	Idx string
}

// Payload 消息载荷
type Payload interface {
	msgType() string
}

// TextPayload 文本消息
type TextPayload struct {
	Content string
}

// ImagePayload 图片消息
type ImagePayload struct {
	PicURL  string
	MediaID string
}

// VideoPayload 视频消息
type VideoPayload struct {
	MediaID      string
	ThumbMediaID string
}

// VoicePayload 语音消息
type VoicePayload struct {
	MediaID     string
	Format      string
	Recognition string
}

// ShortVideoPayload 短视频消息
type ShortVideoPayload struct {
	MediaID      string
	ThumbMediaID string
}

// EventPayload 事件消息
type EventPayload struct {
	Event    EventType
	EventKey string
	Ticket   string
}

func (TextPayload) msgType() string       { return MsgText }
func (ImagePayload) msgType() string      { return MsgImage }
func (VideoPayload) msgType() string      { return MsgVideo }
func (VoicePayload) msgType() string      { return MsgVoice }
func (ShortVideoPayload) msgType() string { return MsgShortVideo }
func (EventPayload) msgType() string      { return MsgEvent }

func missingField(field, msgType string) error {
	return fmt.Errorf("%w: missing %s for %s message", ErrDecode, field, msgType)
}

// DecodeMessage 解析明文 XML 消息
func DecodeMessage(data []byte) (*Message, error) {
	var raw wireMessage
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var payload Payload
	switch raw.MsgType {
	case MsgText:
		if raw.Content == "" {
			return nil, missingField("Content", MsgText)
		}
		payload = TextPayload{Content: raw.Content}

	case MsgImage:
		if raw.PicURL == "" {
			return nil, missingField("PicUrl", MsgImage)
		}
		if raw.MediaID == "" {
			return nil, missingField("MediaId", MsgImage)
		}
		payload = ImagePayload{PicURL: raw.PicURL, MediaID: raw.MediaID}

	case MsgVideo:
		if raw.MediaID == "" {
			return nil, missingField("MediaId", MsgVideo)
		}
		if raw.ThumbMediaID == "" {
			return nil, missingField("ThumbMediaId", MsgVideo)
		}
		payload = VideoPayload{MediaID: raw.MediaID, ThumbMediaID: raw.ThumbMediaID}

	case MsgVoice:
		if raw.MediaID == "" {
			return nil, missingField("MediaId", MsgVoice)
		}
		if raw.Format == "" {
			return nil, missingField("Format", MsgVoice)
		}
		payload = VoicePayload{MediaID: raw.MediaID, Format: raw.Format, Recognition: raw.Recognition}

	case MsgShortVideo:
		if raw.MediaID == "" {
			return nil, missingField("MediaId", MsgShortVideo)
		}
		if raw.ThumbMediaID == "" {
			return nil, missingField("ThumbMediaId", MsgShortVideo)
		}
		payload = ShortVideoPayload{MediaID: raw.MediaID, ThumbMediaID: raw.ThumbMediaID}

	case MsgEvent:
		if raw.Event == "" {
			return nil, missingField("Event", MsgEvent)
		}
		event, err := ParseEventType(raw.Event)
		if err != nil {
			return nil, err
		}
		payload = EventPayload{Event: event, EventKey: raw.EventKey, Ticket: raw.Ticket}

	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrDecode, raw.MsgType)
	}

	return &Message{
		ToUserName:   raw.ToUserName,
		FromUserName: raw.FromUserName,
		CreateTime:   raw.CreateTime,
		Payload:      payload,
		MsgID:        raw.MsgID,
		MsgDataID:    raw.MsgDataID,
		Idx:          raw.Idx,
	}, nil
}

// EncodeMessage 编码为 XML 线上格式，与变体无关的字段不输出
func EncodeMessage(msg *Message) ([]byte, error) {
	raw := wireMessage{
		ToUserName:   msg.ToUserName,
		FromUserName: msg.FromUserName,
		CreateTime:   msg.CreateTime,
		MsgType:      msg.Payload.msgType(),
		MsgID:        msg.MsgID,
		MsgDataID:    msg.MsgDataID,
		Idx:          msg.Idx,
	}

	switch p := msg.Payload.(type) {
	case TextPayload:
		raw.Content = p.Content
	case ImagePayload:
		raw.PicURL = p.PicURL
		raw.MediaID = p.MediaID
	case VideoPayload:
		raw.MediaID = p.MediaID
		raw.ThumbMediaID = p.ThumbMediaID
	case VoicePayload:
		raw.MediaID = p.MediaID
		raw.Format = p.Format
		raw.Recognition = p.Recognition
	case ShortVideoPayload:
		raw.MediaID = p.MediaID
		raw.ThumbMediaID = p.ThumbMediaID
	case EventPayload:
		// 事件消息不携带 MsgId 系列字段
		raw.MsgID = nil
		raw.MsgDataID = ""
		raw.Idx = ""
		raw.Event = string(p.Event)
		raw.EventKey = p.EventKey
		raw.Ticket = p.Ticket
	default:
		return nil, fmt.Errorf("%w: unknown payload type %T", ErrDecode, msg.Payload)
	}

	return xml.Marshal(raw)
}
