package controller

import (
	"sync"
	"time"
)

// Typist 本端输入状态机
// 空闲 -> 输入中：首个非空输入触发，发出 isTyping=true
// 输入中 -> 空闲：防抖窗口内无新输入、清空输入或发送消息时触发，发出 isTyping=false
// 窗口内的连续输入只重置计时器，不重复上报
type Typist struct {
	mu       sync.Mutex
	debounce time.Duration
	emit     func(conversationID string, isTyping bool)

	conversationID string
	active         bool
	timer          *time.Timer
}

// NewTypist 创建输入状态机
func NewTypist(debounce time.Duration, emit func(conversationID string, isTyping bool)) *Typist {
	if debounce <= 0 {
		debounce = time.Second
	}
	return &Typist{debounce: debounce, emit: emit}
}

// Keystroke 输入框内容变化
// 切换会话时旧会话先收到停止事件，空文本视为清空输入
func (t *Typist) Keystroke(conversationID, text string) {
	t.mu.Lock()

	var stopped string
	if t.active && (t.conversationID != conversationID || text == "") {
		stopped = t.stopLocked()
	}
	if text == "" {
		t.mu.Unlock()
		if stopped != "" {
			t.emit(stopped, false)
		}
		return
	}

	started := false
	if !t.active {
		t.active = true
		t.conversationID = conversationID
		started = true
	}

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.debounce, func() { t.expire(conversationID) })
	t.mu.Unlock()

	if stopped != "" {
		t.emit(stopped, false)
	}
	if started {
		t.emit(conversationID, true)
	}
}

// Stop 立即结束输入状态（发送、清空或离开会话）
func (t *Typist) Stop() {
	t.mu.Lock()
	stopped := t.stopLocked()
	t.mu.Unlock()

	if stopped != "" {
		t.emit(stopped, false)
	}
}

// stopLocked 持锁复位状态机，返回需要发停止事件的会话 ID
func (t *Typist) stopLocked() string {
	if !t.active {
		return ""
	}
	t.active = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	conversationID := t.conversationID
	t.conversationID = ""
	return conversationID
}

// expire 防抖计时器到期
func (t *Typist) expire(conversationID string) {
	t.mu.Lock()
	if !t.active || t.conversationID != conversationID {
		t.mu.Unlock()
		return
	}
	t.active = false
	t.timer = nil
	t.conversationID = ""
	t.mu.Unlock()

	t.emit(conversationID, false)
}

// Active 当前是否处于输入中
func (t *Typist) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}
