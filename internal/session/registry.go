package session

import (
	"encoding/json"
	"sync"
	"sync/atomic"
)

const sendQueueSize = 32

// Session 一条活跃的浏览器连接
type Session struct {
	ID   int
	Addr string

	send   chan []byte
	quit   chan struct{}
	closed atomic.Bool
	uid    atomic.Int64 // 0 表示未登录（游客）
}

// Recv 返回出站消息通道，由连接写循环消费
func (s *Session) Recv() <-chan []byte { return s.send }

// Quit 会话注销信号，写循环据此退出
func (s *Session) Quit() <-chan struct{} { return s.quit }

// Authenticate 标记会话已登录
func (s *Session) Authenticate(uid int64) { s.uid.Store(uid) }

// UID 返回登录用户 ID，0 表示游客
func (s *Session) UID() int64 { return s.uid.Load() }

// Registry 会话注册表
type Registry struct {
	sessions sync.Map // id -> *Session
	alloc    *IDAllocator
	count    atomic.Int64
}

// NewRegistry 创建会话注册表
func NewRegistry() *Registry {
	return &Registry{alloc: NewIDAllocator()}
}

// Accept 登记一条新连接：分配 ID、建立出站队列
func (r *Registry) Accept(remoteAddr string) (*Session, *IDHandle) {
	handle := r.alloc.Generate()
	s := &Session{
		ID:   handle.ID(),
		Addr: remoteAddr,
		send: make(chan []byte, sendQueueSize),
		quit: make(chan struct{}),
	}
	r.sessions.Store(s.ID, s)
	r.count.Add(1)
	return s, handle
}

// TrySend 向指定会话非阻塞推送 JSON 消息
// 返回值：会话不存在时 (false, nil)；队列满 (true, ErrChannelFull)；
// 会话已关闭 (true, ErrSessionClosed)
func (r *Registry) TrySend(id int, v any) (bool, error) {
	value, ok := r.sessions.Load(id)
	if !ok {
		return false, nil
	}
	s := value.(*Session)

	if s.closed.Load() {
		return true, ErrSessionClosed
	}

	data, err := json.Marshal(v)
	if err != nil {
		return true, err
	}

	select {
	case s.send <- data:
		return true, nil
	default:
		return true, ErrChannelFull
	}
}

// Remove 注销会话
// 不关闭 send 通道，写循环通过会话关闭标记退出，避免与并发 TrySend 竞争
func (r *Registry) Remove(id int) {
	value, loaded := r.sessions.LoadAndDelete(id)
	if !loaded {
		return
	}
	s := value.(*Session)
	if s.closed.CompareAndSwap(false, true) {
		close(s.quit)
	}
	r.count.Add(-1)
}

// Shutdown 注销所有会话，通知各连接的写循环退出
func (r *Registry) Shutdown() {
	r.sessions.Range(func(key, _ any) bool {
		r.Remove(key.(int))
		return true
	})
}

// Count 当前活跃会话数
func (r *Registry) Count() int64 { return r.count.Load() }
