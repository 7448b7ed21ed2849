package store

import (
	"sort"
	"sync"

	"sudooom.im.client/internal/model"
)

// messagePage 单个会话的分页消息状态
type messagePage struct {
	list    []model.Message
	meta    model.PageMeta
	loading bool
	err     error
}

// MessageStore 按会话维护去重、按时间排序的分页消息列表
// 列表不变式：createdAt 升序，相同时间按 ID 升序；同一 ID 最多出现一次
type MessageStore struct {
	mu             sync.RWMutex
	byConversation map[string]*messagePage
}

// NewMessageStore 创建消息 store
func NewMessageStore() *MessageStore {
	return &MessageStore{
		byConversation: make(map[string]*messagePage),
	}
}

// page 取或建会话的页状态，调用方必须持有写锁
func (s *MessageStore) page(conversationID string) *messagePage {
	p, ok := s.byConversation[conversationID]
	if !ok {
		p = &messagePage{
			meta: model.PageMeta{Page: 1, Limit: 30},
		}
		s.byConversation[conversationID] = p
	}
	return p
}

// BeginLoad 标记一次页加载开始
func (s *MessageStore) BeginLoad(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.page(conversationID)
	p.loading = true
	p.err = nil
}

// ApplyPage 应用一页已返回的消息
// 第 1 页替换整个列表（首次加载/刷新）；后续页整批插到现有列表之前
// （分页向历史方向走，更旧的消息在上方）
func (s *MessageStore) ApplyPage(conversationID string, messages []model.Message, meta model.PageMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make([]model.Message, len(messages))
	copy(batch, messages)
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].Before(&batch[j])
	})

	p := s.page(conversationID)
	p.loading = false
	p.err = nil
	p.meta = meta

	if meta.Page <= 1 {
		p.list = batch
		return
	}
	p.list = append(batch, p.list...)
}

// FailLoad 标记页加载失败，已有数据保留
func (s *MessageStore) FailLoad(conversationID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.page(conversationID)
	p.loading = false
	p.err = err
}

// AppendLive 插入实时通道到达的消息
// 按 ID 幂等：重复投递时不做任何修改
// 实时消息默认比任何已加载页都新，追加在尾部
func (s *MessageStore) AppendLive(conversationID string, msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.page(conversationID)
	for i := range p.list {
		if p.list[i].ID == msg.ID {
			return
		}
	}
	p.list = append(p.list, msg)
}

// MarkRead 设置指定消息为已读，未加载的 ID 静默忽略
func (s *MessageStore) MarkRead(conversationID string, messageIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byConversation[conversationID]
	if !ok {
		return
	}

	ids := make(map[string]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		ids[id] = struct{}{}
	}
	for i := range p.list {
		if _, hit := ids[p.list[i].ID]; hit {
			p.list[i].IsRead = true
		}
	}
}

// MarkDeletedFor 把 userID 加入消息的 deletedFor 集合，幂等
func (s *MessageStore) MarkDeletedFor(conversationID, messageID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byConversation[conversationID]
	if !ok {
		return
	}
	for i := range p.list {
		if p.list[i].ID != messageID {
			continue
		}
		if p.list[i].DeletedForUser(userID) {
			return
		}
		p.list[i].DeletedFor = append(p.list[i].DeletedFor, userID)
		return
	}
}

// Messages 读取会话消息的去重投影
// 乐观发送+通道回显、分页重叠等独立路径都可能插入同一条消息，
// 读取侧必须兜底按 ID 去重，首次出现者保留
func (s *MessageStore) Messages(conversationID string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byConversation[conversationID]
	if !ok {
		return nil
	}

	seen := make(map[string]struct{}, len(p.list))
	out := make([]model.Message, 0, len(p.list))
	for _, msg := range p.list {
		if _, dup := seen[msg.ID]; dup {
			continue
		}
		seen[msg.ID] = struct{}{}
		out = append(out, msg)
	}
	return out
}

// Meta 会话当前分页元信息
func (s *MessageStore) Meta(conversationID string) model.PageMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.byConversation[conversationID]; ok {
		return p.meta
	}
	return model.PageMeta{Page: 1, Limit: 30}
}

// Loading 会话是否有页加载进行中
func (s *MessageStore) Loading(conversationID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.byConversation[conversationID]; ok {
		return p.loading
	}
	return false
}

// LoadError 会话最近一次页加载错误
func (s *MessageStore) LoadError(conversationID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.byConversation[conversationID]; ok {
		return p.err
	}
	return nil
}

// MessageGroup 同一自然日内的连续消息段
type MessageGroup struct {
	Date     string // YYYY-MM-DD
	Messages []model.Message
}

// GroupByDate 把有序消息列表按自然日切成连续分组（纯投影，不落库）
func GroupByDate(messages []model.Message) []MessageGroup {
	var groups []MessageGroup
	currentDate := ""

	for _, msg := range messages {
		date := msg.CreatedAt.Format("2006-01-02")
		if date != currentDate {
			groups = append(groups, MessageGroup{Date: date})
			currentDate = date
		}
		last := &groups[len(groups)-1]
		last.Messages = append(last.Messages, msg)
	}
	return groups
}
