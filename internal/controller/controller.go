package controller

import (
	"context"
	"log/slog"
	"sync"

	"sudooom.im.client/internal/config"
	"sudooom.im.client/internal/model"
	"sudooom.im.client/internal/store"
)

// Backend 分页数据拉取
type Backend interface {
	Conversations(ctx context.Context, page, limit int) ([]model.Conversation, model.PageMeta, error)
	Messages(ctx context.Context, conversationID string, page, limit int) ([]model.Message, model.PageMeta, error)
	Connections(ctx context.Context, page, limit int) ([]model.User, model.PageMeta, error)
}

// Realtime 实时出站动作
type Realtime interface {
	JoinConversation(conversationID string) error
	SendMessage(conversationID, receiverID, text string, attachments []model.Attachment) error
	SetTyping(conversationID string, isTyping bool) error
	MarkAsRead(conversationID string, messageIDs []string) error
	DeleteMessage(conversationID, messageID string) error
}

// Controller 视图控制器
// 驱动分页拉取和会话选择，不持有列表数据（数据在 store，渲染方自行读取）
// 过期拉取策略：同一目标上后发起的拉取使先前未完成的拉取作废，
// 作废的结果到达时直接丢弃，不写入 store
type Controller struct {
	backend  Backend
	realtime Realtime

	messages      *store.MessageStore
	conversations *store.ConversationStore
	connections   *store.ConnectionDirectory

	selfID func() string
	cfg    config.ChatConfig
	logger *slog.Logger
	typist *Typist

	onChange func()

	mu      sync.Mutex
	active  string
	msgSeq  map[string]uint64
	convSeq uint64
	connSeq uint64
}

// Options Controller 依赖
type Options struct {
	Backend       Backend
	Realtime      Realtime
	Messages      *store.MessageStore
	Conversations *store.ConversationStore
	Connections   *store.ConnectionDirectory
	SelfID        func() string
	Chat          config.ChatConfig
	Logger        *slog.Logger
	OnChange      func()
}

// New 创建视图控制器
func New(opts Options) *Controller {
	if opts.OnChange == nil {
		opts.OnChange = func() {}
	}
	c := &Controller{
		backend:       opts.Backend,
		realtime:      opts.Realtime,
		messages:      opts.Messages,
		conversations: opts.Conversations,
		connections:   opts.Connections,
		selfID:        opts.SelfID,
		cfg:           opts.Chat,
		logger:        opts.Logger,
		onChange:      opts.OnChange,
		msgSeq:        make(map[string]uint64),
	}
	c.typist = NewTypist(opts.Chat.TypingDebounce, func(conversationID string, isTyping bool) {
		if err := opts.Realtime.SetTyping(conversationID, isTyping); err != nil {
			opts.Logger.Warn("Failed to send typing state", "error", err)
		}
	})
	return c
}

// ActiveConversation 当前打开的会话 ID，供未读守卫使用
func (c *Controller) ActiveConversation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// ============== 会话列表 ==============

// LoadConversations 拉取会话列表第一页（替换现有列表）
func (c *Controller) LoadConversations(ctx context.Context) error {
	return c.loadConversationPage(ctx, 1)
}

// LoadMoreConversations 继续翻页，正在加载或没有更多时为 no-op
func (c *Controller) LoadMoreConversations(ctx context.Context) error {
	if c.conversations.Loading() || !c.conversations.Meta().HasMore() {
		return nil
	}
	return c.loadConversationPage(ctx, c.conversations.Meta().Page+1)
}

func (c *Controller) loadConversationPage(ctx context.Context, page int) error {
	c.mu.Lock()
	c.convSeq++
	seq := c.convSeq
	c.mu.Unlock()

	c.conversations.BeginLoad()
	c.onChange()

	convs, meta, err := c.backend.Conversations(ctx, page, c.cfg.ConversationPageLimit)

	c.mu.Lock()
	stale := seq != c.convSeq
	c.mu.Unlock()
	if stale {
		c.logger.Debug("Discarding stale conversation page", "page", page)
		return nil
	}

	if err != nil {
		c.conversations.FailLoad(err)
		c.onChange()
		return err
	}
	c.conversations.ApplyPage(convs, meta)
	c.onChange()
	return nil
}

// ============== 会话选择与消息分页 ==============

// SelectConversation 打开会话：
// 本地未读清零、加入房间、拉取最新一页消息，然后把收到且未读的消息上报已读
func (c *Controller) SelectConversation(ctx context.Context, conversationID string) error {
	c.mu.Lock()
	if c.active == conversationID {
		c.mu.Unlock()
		return nil
	}
	c.active = conversationID
	c.mu.Unlock()

	c.typist.Stop()
	c.conversations.ResetUnread(conversationID)
	c.onChange()

	if err := c.realtime.JoinConversation(conversationID); err != nil {
		c.logger.Warn("Failed to join conversation", "conversationId", conversationID, "error", err)
	}

	if err := c.loadMessagePage(ctx, conversationID, 1); err != nil {
		return err
	}
	c.reportUnreadAsRead(conversationID)
	return nil
}

// Deselect 关闭当前会话
func (c *Controller) Deselect() {
	c.mu.Lock()
	c.active = ""
	c.mu.Unlock()
	c.typist.Stop()
	c.onChange()
}

// LoadOlderMessages 向上翻页加载更早的消息
// 正在加载或没有更早页时为 no-op（滚动触发会重复调用）
func (c *Controller) LoadOlderMessages(ctx context.Context) error {
	c.mu.Lock()
	conversationID := c.active
	c.mu.Unlock()
	if conversationID == "" {
		return nil
	}

	if c.messages.Loading(conversationID) || !c.messages.Meta(conversationID).HasMore() {
		return nil
	}
	return c.loadMessagePage(ctx, conversationID, c.messages.Meta(conversationID).Page+1)
}

func (c *Controller) loadMessagePage(ctx context.Context, conversationID string, page int) error {
	c.mu.Lock()
	c.msgSeq[conversationID]++
	seq := c.msgSeq[conversationID]
	c.mu.Unlock()

	c.messages.BeginLoad(conversationID)
	c.onChange()

	msgs, meta, err := c.backend.Messages(ctx, conversationID, page, c.cfg.MessagePageLimit)

	c.mu.Lock()
	stale := seq != c.msgSeq[conversationID]
	c.mu.Unlock()
	if stale {
		c.logger.Debug("Discarding stale message page",
			"conversationId", conversationID, "page", page)
		return nil
	}

	if err != nil {
		c.messages.FailLoad(conversationID, err)
		c.onChange()
		return err
	}
	c.messages.ApplyPage(conversationID, msgs, meta)
	c.onChange()
	return nil
}

// reportUnreadAsRead 把当前会话里发给自己且未读的消息上报已读
func (c *Controller) reportUnreadAsRead(conversationID string) {
	selfID := c.selfID()
	var ids []string
	for _, m := range c.messages.Messages(conversationID) {
		if m.Receiver.ID == selfID && !m.IsRead {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return
	}
	if err := c.realtime.MarkAsRead(conversationID, ids); err != nil {
		c.logger.Warn("Failed to report read receipts",
			"conversationId", conversationID, "count", len(ids), "error", err)
	}
}

// ============== 输入与发送 ==============

// OnKeystroke 输入框内容变化回调，驱动输入状态机
func (c *Controller) OnKeystroke(text string) {
	c.mu.Lock()
	conversationID := c.active
	c.mu.Unlock()
	if conversationID == "" {
		return
	}
	c.typist.Keystroke(conversationID, text)
}

// Send 发送当前输入（发送即停止输入状态，无乐观回显）
func (c *Controller) Send(text string) error {
	c.mu.Lock()
	conversationID := c.active
	c.mu.Unlock()
	if conversationID == "" || text == "" {
		return nil
	}

	conv, ok := c.conversations.Get(conversationID)
	if !ok {
		return nil
	}
	other, ok := conv.OtherParticipant(c.selfID())
	if !ok {
		return nil
	}

	c.typist.Stop()
	return c.realtime.SendMessage(conversationID, other.ID, text, nil)
}

// DeleteMessage 删除当前会话中的一条消息
func (c *Controller) DeleteMessage(messageID string) error {
	c.mu.Lock()
	conversationID := c.active
	c.mu.Unlock()
	if conversationID == "" {
		return nil
	}
	return c.realtime.DeleteMessage(conversationID, messageID)
}

// ============== 连接目录 ==============

// LoadConnections 拉取连接（好友）列表第一页
func (c *Controller) LoadConnections(ctx context.Context) error {
	return c.loadConnectionPage(ctx, 1)
}

// LoadMoreConnections 连接列表翻页
func (c *Controller) LoadMoreConnections(ctx context.Context) error {
	if c.connections.Loading() || !c.connections.Meta().HasMore() {
		return nil
	}
	return c.loadConnectionPage(ctx, c.connections.Meta().Page+1)
}

func (c *Controller) loadConnectionPage(ctx context.Context, page int) error {
	c.mu.Lock()
	c.connSeq++
	seq := c.connSeq
	c.mu.Unlock()

	c.connections.BeginLoad()
	c.onChange()

	users, meta, err := c.backend.Connections(ctx, page, c.cfg.ConnectionPageLimit)

	c.mu.Lock()
	stale := seq != c.connSeq
	c.mu.Unlock()
	if stale {
		return nil
	}

	if err != nil {
		c.connections.FailLoad(err)
		c.onChange()
		return err
	}
	c.connections.ApplyPage(users, meta)
	c.onChange()
	return nil
}
