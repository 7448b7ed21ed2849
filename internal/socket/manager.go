package socket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sudooom.im.client/internal/config"
	apperrors "sudooom.im.client/internal/errors"
	"sudooom.im.client/internal/proto"
)

// State 连接状态
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

// String 状态名
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Handler 入站事件处理函数
type Handler func(data json.RawMessage)

// Manager 实时通道连接管理器
// 每个已认证会话构造一次，登出时整体销毁
// 状态机：Disconnected → Connecting → Connected → Reconnecting → Disconnected
type Manager struct {
	cfg    config.SocketConfig
	logger *slog.Logger

	// header 提供握手时携带的认证信息（cookie 会话）
	header func() http.Header

	mu        sync.RWMutex
	state     State
	conn      *websocket.Conn
	handlers  map[string]map[string]Handler // event -> subId -> handler
	stateSubs map[string]func(State)

	writeChan chan []byte
	closeChan chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewManager 创建连接管理器
func NewManager(cfg config.SocketConfig, header func() http.Header, logger *slog.Logger) *Manager {
	if header == nil {
		header = func() http.Header { return nil }
	}
	return &Manager{
		cfg:       cfg,
		logger:    logger,
		header:    header,
		state:     StateDisconnected,
		handlers:  make(map[string]map[string]Handler),
		stateSubs: make(map[string]func(State)),
		writeChan: make(chan []byte, 256),
		closeChan: make(chan struct{}),
	}
}

// State 当前连接状态
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// setState 切换状态并通知订阅者
func (m *Manager) setState(s State) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	subs := make([]func(State), 0, len(m.stateSubs))
	for _, fn := range m.stateSubs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

// OnEvent 订阅命名事件，返回退订函数
// 会话生命周期内注册一次，不随界面重绘反复挂接
func (m *Manager) OnEvent(event string, fn Handler) func() {
	id := uuid.NewString()

	m.mu.Lock()
	if m.handlers[event] == nil {
		m.handlers[event] = make(map[string]Handler)
	}
	m.handlers[event][id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if subs, ok := m.handlers[event]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(m.handlers, event)
			}
		}
	}
}

// OnStateChange 订阅连接状态变化，返回退订函数
func (m *Manager) OnStateChange(fn func(State)) func() {
	id := uuid.NewString()

	m.mu.Lock()
	m.stateSubs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.stateSubs, id)
	}
}

// Emit 发送一个出站事件
// 连接未就绪时写入缓冲，待连接建立后发出；通道已销毁返回错误
func (m *Manager) Emit(event string, payload any) error {
	frame, err := proto.Encode(event, payload)
	if err != nil {
		return err
	}

	select {
	case m.writeChan <- frame:
		return nil
	case <-m.closeChan:
		return apperrors.ErrChannelClosed
	}
}

// Connect 建立连接并维持（含断线重连），阻塞直到 ctx 取消或 Close
func (m *Manager) Connect(ctx context.Context) error {
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			m.setState(StateDisconnected)
			return ctx.Err()
		case <-m.closeChan:
			m.setState(StateDisconnected)
			return nil
		default:
		}

		if attempt == 0 {
			m.setState(StateConnecting)
		} else {
			m.setState(StateReconnecting)
		}

		conn, err := m.dial(ctx)
		if err != nil {
			attempt++
			if m.cfg.MaxReconnects > 0 && attempt > m.cfg.MaxReconnects {
				m.setState(StateDisconnected)
				return apperrors.ErrNetwork.Wrap(err)
			}
			wait := m.backoff(attempt)
			m.logger.Warn("Channel dial failed, retrying",
				"attempt", attempt,
				"wait", wait,
				"error", err)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				m.setState(StateDisconnected)
				return ctx.Err()
			case <-m.closeChan:
				m.setState(StateDisconnected)
				return nil
			}
			continue
		}

		attempt = 0
		m.mu.Lock()
		m.conn = conn
		m.mu.Unlock()
		m.setState(StateConnected)
		m.logger.Info("Channel connected", "url", m.cfg.URL)

		// readLoop 返回即连接断开，回到重连循环
		m.runSession(ctx, conn)

		select {
		case <-m.closeChan:
			m.setState(StateDisconnected)
			return nil
		case <-ctx.Done():
			m.setState(StateDisconnected)
			return ctx.Err()
		default:
			attempt = 1
		}
	}
}

// backoff 第 attempt 次重试前的等待时间（指数退避，封顶）
func (m *Manager) backoff(attempt int) time.Duration {
	wait := m.cfg.ReconnectWait
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= m.cfg.MaxReconnectWait {
			return m.cfg.MaxReconnectWait
		}
	}
	if wait > m.cfg.MaxReconnectWait {
		return m.cfg.MaxReconnectWait
	}
	return wait
}

// dial 执行一次握手
func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: m.cfg.HandshakeTimeout,
	}
	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, m.cfg.URL, m.header())
	return conn, err
}

// runSession 驱动单条连接的读写，任一侧失败即返回
func (m *Manager) runSession(ctx context.Context, conn *websocket.Conn) {
	sessionDone := make(chan struct{})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.writeLoop(conn, sessionDone)
	}()

	m.readLoop(conn)
	close(sessionDone)
	conn.Close()

	m.mu.Lock()
	m.conn = nil
	m.mu.Unlock()
}

// readLoop 读取入站帧并派发给订阅者
func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-m.closeChan:
			default:
				m.logger.Warn("Channel read failed", "error", err)
			}
			return
		}

		env, err := proto.Decode(raw)
		if err != nil {
			m.logger.Warn("Dropping malformed frame", "error", err)
			continue
		}
		m.dispatch(env)
	}
}

// dispatch 把事件交给全部订阅者
func (m *Manager) dispatch(env *proto.Envelope) {
	m.mu.RLock()
	subs := make([]Handler, 0, len(m.handlers[env.Event]))
	for _, fn := range m.handlers[env.Event] {
		subs = append(subs, fn)
	}
	m.mu.RUnlock()

	if len(subs) == 0 {
		m.logger.Debug("No handler for event", "event", env.Event)
		return
	}
	for _, fn := range subs {
		fn(env.Data)
	}
}

// writeLoop 串行发送出站帧并维持心跳
func (m *Manager) writeLoop(conn *websocket.Conn, sessionDone chan struct{}) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-m.writeChan:
			conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				m.logger.Error("Channel write failed", "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sessionDone:
			return
		case <-m.closeChan:
			conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Close 销毁连接管理器（登出）
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.closeChan)

		m.mu.Lock()
		conn := m.conn
		m.conn = nil
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}

		m.wg.Wait()
		m.setState(StateDisconnected)
		m.logger.Info("Channel closed")
	})
}
