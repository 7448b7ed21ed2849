package store

import (
	"fmt"
	"sync"
	"time"

	"sudooom.im.client/internal/model"
)

// PresenceTracker 在线状态与输入状态
// typing 结构保持稀疏：停止输入即删除条目，空 map 整体删除
type PresenceTracker struct {
	mu     sync.RWMutex
	online map[string]model.PresenceEntry
	typing map[string]map[string]bool // conversationId -> userId -> true
}

// NewPresenceTracker 创建在线状态 tracker
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		online: make(map[string]model.PresenceEntry),
		typing: make(map[string]map[string]bool),
	}
}

// SetAll 整体替换在线表
// 首次连接与重连后使用，避免断连期间漏掉的状态造成漂移
func (t *PresenceTracker) SetAll(entries []model.PresenceEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.online = make(map[string]model.PresenceEntry, len(entries))
	for _, e := range entries {
		if e.IsOnline {
			e.LastSeen = nil
		}
		t.online[e.UserID] = e
	}
}

// UpdateOne 单点更新某个用户的状态
// 上线时 lastSeen 强制为 nil；下线且未携带 lastSeen 时取当前时间
func (t *PresenceTracker) UpdateOne(userID string, isOnline bool, lastSeen *time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := model.PresenceEntry{UserID: userID, IsOnline: isOnline}
	if !isOnline {
		if lastSeen != nil {
			ts := *lastSeen
			entry.LastSeen = &ts
		} else {
			now := time.Now()
			entry.LastSeen = &now
		}
	}
	t.online[userID] = entry
}

// Get 查询某个用户的状态
func (t *PresenceTracker) Get(userID string) (model.PresenceEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.online[userID]
	return e, ok
}

// SetTyping 设置/清除某会话里某用户的输入标记
func (t *PresenceTracker) SetTyping(conversationID, userID string, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if isTyping {
		if t.typing[conversationID] == nil {
			t.typing[conversationID] = make(map[string]bool)
		}
		t.typing[conversationID][userID] = true
		return
	}

	if users, ok := t.typing[conversationID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(t.typing, conversationID)
		}
	}
}

// IsTyping 某用户是否正在该会话中输入
func (t *PresenceTracker) IsTyping(conversationID, userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.typing[conversationID][userID]
}

// TypingCount 会话中正在输入的用户数（内部结构是否已清理也由它验证）
func (t *PresenceTracker) TypingCount(conversationID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.typing[conversationID])
}

// Reset 清空全部状态（登出时）
func (t *PresenceTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.online = make(map[string]model.PresenceEntry)
	t.typing = make(map[string]map[string]bool)
}

// StatusText 状态栏文案（纯函数）
// 优先级：typing > online > last-seen 分桶 > 未知
func (t *PresenceTracker) StatusText(now time.Time, conversationID, userID string) string {
	t.mu.RLock()
	typing := t.typing[conversationID][userID]
	entry, known := t.online[userID]
	t.mu.RUnlock()

	if typing {
		return "typing..."
	}
	if known && entry.IsOnline {
		return "online"
	}
	if known && entry.LastSeen != nil {
		return "last seen " + FormatLastSeen(now, *entry.LastSeen)
	}
	return "last seen a long time ago"
}

// FormatLastSeen 最后在线时间分桶（纯函数，桶边界是精确约定）
//
//	<1 分钟            → just now
//	<60 分钟           → N minute(s) ago
//	<24 小时           → N hour(s) ago
//	同一自然日          → today at H:MM PM
//	前一自然日          → yesterday at H:MM PM
//	7 天以内            → 星期几 + 时间
//	更早               → 完整日期 + 时间
func FormatLastSeen(now, lastSeen time.Time) string {
	diff := now.Sub(lastSeen)

	if diff < time.Minute {
		return "just now"
	}
	if diff < time.Hour {
		minutes := int(diff.Minutes())
		return fmt.Sprintf("%d %s ago", minutes, plural("minute", minutes))
	}
	if diff < 24*time.Hour {
		hours := int(diff.Hours())
		return fmt.Sprintf("%d %s ago", hours, plural("hour", hours))
	}

	clock := lastSeen.Format("3:04 PM")
	if sameDay(now, lastSeen) {
		return "today at " + clock
	}
	if sameDay(now.AddDate(0, 0, -1), lastSeen) {
		return "yesterday at " + clock
	}
	if diff <= 7*24*time.Hour {
		return lastSeen.Format("Monday") + " at " + clock
	}
	return lastSeen.Format("01/02/2006") + " at " + clock
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func plural(unit string, n int) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
