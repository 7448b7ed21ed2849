package store

import (
	"sync"

	"sudooom.im.client/internal/model"
)

// ConversationStore 会话摘要及其新近度排序
// 列表顺序即 updatedAt 新近度降序，不存排序键：
// 收到消息时把会话移到队首来维持顺序
type ConversationStore struct {
	mu          sync.RWMutex
	list        []model.Conversation
	meta        model.PageMeta
	loading     bool
	err         error
	totalUnread int
}

// NewConversationStore 创建会话 store
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		meta: model.PageMeta{Page: 1, Limit: 20},
	}
}

// BeginLoad 标记一次列表加载开始
func (s *ConversationStore) BeginLoad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = true
	s.err = nil
}

// ApplyPage 应用已返回的会话页
// 第 1 页替换整个列表；列表主要作为"始终新鲜的头部集合"消费，
// 后续页不参与重排序
func (s *ConversationStore) ApplyPage(conversations []model.Conversation, meta model.PageMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading = false
	s.err = nil
	s.meta = meta

	batch := make([]model.Conversation, len(conversations))
	copy(batch, conversations)
	for i := range batch {
		if batch[i].UnreadCount < 0 {
			batch[i].UnreadCount = 0
		}
	}

	if meta.Page <= 1 {
		s.list = batch
	} else {
		s.list = append(s.list, batch...)
	}
	s.recomputeTotalUnread()
}

// FailLoad 标记列表加载失败
func (s *ConversationStore) FailLoad(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.err = err
}

// Upsert 插入一个新会话（ID 未见过时插到队首）
// 已存在时不做任何修改：拉取的数据不能覆盖实时更新过的摘要
func (s *ConversationStore) Upsert(conv model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.list {
		if s.list[i].ID == conv.ID {
			return
		}
	}
	if conv.UnreadCount < 0 {
		conv.UnreadCount = 0
	}
	s.list = append([]model.Conversation{conv}, s.list...)
	s.recomputeTotalUnread()
}

// ApplyIncomingMessage 用到达的消息刷新会话摘要并移到队首
// 会话 ID 未知时不做任何事并返回 false（摘要需要先被独立拉取/创建），
// 调用方负责兜底这个缺口
func (s *ConversationStore) ApplyIncomingMessage(conversationID string, msg model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.list {
		if s.list[i].ID == conversationID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	conv := s.list[idx]
	m := msg
	conv.LastMessage = &m
	conv.UpdatedAt = msg.CreatedAt

	s.list = append(s.list[:idx], s.list[idx+1:]...)
	s.list = append([]model.Conversation{conv}, s.list...)
	return true
}

// IncrementUnread 未读数 +1
// 只能在消息的会话不是当前激活会话、且当前用户是接收者时调用，
// 这个判定属于事件路由层的业务规则，不在本 store 内
func (s *ConversationStore) IncrementUnread(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.list {
		if s.list[i].ID == conversationID {
			s.list[i].UnreadCount++
			break
		}
	}
	s.recomputeTotalUnread()
}

// ResetUnread 未读数清零（会话被激活或滚动到未读边界时）
func (s *ConversationStore) ResetUnread(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.list {
		if s.list[i].ID == conversationID {
			s.list[i].UnreadCount = 0
			break
		}
	}
	s.recomputeTotalUnread()
}

// recomputeTotalUnread 每次变更后重算总未读，避免独立存储产生漂移
// 调用方必须持有写锁
func (s *ConversationStore) recomputeTotalUnread() {
	total := 0
	for i := range s.list {
		total += s.list[i].UnreadCount
	}
	s.totalUnread = total
}

// List 会话列表快照（新近度降序）
func (s *ConversationStore) List() []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Conversation, len(s.list))
	copy(out, s.list)
	return out
}

// Get 按 ID 查会话
func (s *ConversationStore) Get(conversationID string) (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.list {
		if s.list[i].ID == conversationID {
			return s.list[i], true
		}
	}
	return model.Conversation{}, false
}

// TotalUnread 所有会话未读数之和
func (s *ConversationStore) TotalUnread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalUnread
}

// Meta 当前分页元信息
func (s *ConversationStore) Meta() model.PageMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// Loading 列表加载是否进行中
func (s *ConversationStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LoadError 最近一次列表加载错误
func (s *ConversationStore) LoadError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}
