package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sudooom.im.client/internal/model"
	"sudooom.im.client/internal/proto"
	"sudooom.im.client/internal/session"
	"sudooom.im.client/internal/socket"
	"sudooom.im.client/internal/store"
)

// Channel 路由器对实时通道的依赖
type Channel interface {
	OnEvent(event string, fn socket.Handler) func()
	Emit(event string, payload any) error
}

// ConversationFetcher 缺失会话的兜底拉取
// 消息可能先于会话摘要到达（会话尚未被拉取/创建），此时注册表的更新是 no-op；
// 路由器通过它把缺失的摘要补进来，而不是悄悄丢弃
type ConversationFetcher func(ctx context.Context, conversationID string) (model.Conversation, error)

// Router 实时事件路由器
// 入站事件到 store 操作的唯一派发点，出站用户动作到通道事件的唯一出口
// 自身不持有状态，跨 store 的守卫逻辑（未读递增条件）在这里
type Router struct {
	messages      *store.MessageStore
	conversations *store.ConversationStore
	presence      *store.PresenceTracker
	channel       Channel
	sess          *session.Session
	logger        *slog.Logger

	// activeConversation 当前打开的会话 ID（无激活会话返回空串），由视图控制器提供
	activeConversation func() string

	fetchConversation ConversationFetcher

	// onChange 单个事件的全部 store 效果应用完之后触发一次，
	// 渲染方只在收到通知后重读，保证事件效果对渲染原子可见
	onChange func()

	mu        sync.Mutex
	disposers []func()
	fetching  map[string]bool
}

// Options Router 依赖
type Options struct {
	Messages           *store.MessageStore
	Conversations      *store.ConversationStore
	Presence           *store.PresenceTracker
	Channel            Channel
	Session            *session.Session
	Logger             *slog.Logger
	ActiveConversation func() string
	FetchConversation  ConversationFetcher
	OnChange           func()
}

// New 创建事件路由器
func New(opts Options) *Router {
	if opts.ActiveConversation == nil {
		opts.ActiveConversation = func() string { return "" }
	}
	if opts.OnChange == nil {
		opts.OnChange = func() {}
	}
	return &Router{
		messages:           opts.Messages,
		conversations:      opts.Conversations,
		presence:           opts.Presence,
		channel:            opts.Channel,
		sess:               opts.Session,
		logger:             opts.Logger,
		activeConversation: opts.ActiveConversation,
		fetchConversation:  opts.FetchConversation,
		onChange:           opts.OnChange,
		fetching:           make(map[string]bool),
	}
}

// Subscribe 注册全部入站事件处理器（每个会话生命周期一次）
func (r *Router) Subscribe() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.disposers = append(r.disposers,
		r.channel.OnEvent(proto.EventReceiveMessage, r.handleReceiveMessage),
		r.channel.OnEvent(proto.EventUserTyping, r.handleUserTyping),
		r.channel.OnEvent(proto.EventOnlineUsers, r.handleOnlineUsers),
		r.channel.OnEvent(proto.EventUserStatusChange, r.handleUserStatusChange),
		r.channel.OnEvent(proto.EventMessagesRead, r.handleMessagesRead),
		r.channel.OnEvent(proto.EventMessageDeleted, r.handleMessageDeleted),
		r.channel.OnEvent(proto.EventError, r.handleChannelError),
	)
}

// Dispose 注销全部处理器（登出）
func (r *Router) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, dispose := range r.disposers {
		dispose()
	}
	r.disposers = nil
}

// ============== 入站事件 ==============

// handleReceiveMessage 新消息：
// 消息入库 + 会话摘要刷新/置顶，两者都完成后才通知渲染；
// 未读递增的守卫：不是当前激活会话，且当前用户是接收者（回显给发送者的不算）
func (r *Router) handleReceiveMessage(data json.RawMessage) {
	var msg model.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		r.logger.Warn("Dropping malformed message event", "error", err)
		return
	}

	r.messages.AppendLive(msg.ConversationID, msg)
	known := r.conversations.ApplyIncomingMessage(msg.ConversationID, msg)

	if msg.ConversationID != r.activeConversation() && msg.Receiver.ID == r.sess.UserID() {
		r.conversations.IncrementUnread(msg.ConversationID)
	}
	r.onChange()

	if !known {
		r.recoverMissingConversation(msg.ConversationID)
	}
}

// recoverMissingConversation 异步补拉缺失的会话摘要
func (r *Router) recoverMissingConversation(conversationID string) {
	if r.fetchConversation == nil {
		r.logger.Warn("Message for unknown conversation dropped from registry",
			"conversationId", conversationID)
		return
	}

	r.mu.Lock()
	if r.fetching[conversationID] {
		r.mu.Unlock()
		return
	}
	r.fetching[conversationID] = true
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.fetching, conversationID)
			r.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		conv, err := r.fetchConversation(ctx, conversationID)
		if err != nil {
			r.logger.Warn("Failed to fetch missing conversation",
				"conversationId", conversationID,
				"error", err)
			return
		}
		r.conversations.Upsert(conv)
		r.onChange()
	}()
}

func (r *Router) handleUserTyping(data json.RawMessage) {
	var p proto.TypingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		r.logger.Warn("Dropping malformed typing event", "error", err)
		return
	}
	r.presence.SetTyping(p.ConversationID, p.UserID, p.IsTyping)
	r.onChange()
}

// handleOnlineUsers 全量在线快照（首连与重连后下发，覆盖断连期间的漂移）
func (r *Router) handleOnlineUsers(data json.RawMessage) {
	var users []proto.OnlineUserPayload
	if err := json.Unmarshal(data, &users); err != nil {
		r.logger.Warn("Dropping malformed online snapshot", "error", err)
		return
	}

	entries := make([]model.PresenceEntry, len(users))
	for i, u := range users {
		entries[i] = model.PresenceEntry{UserID: u.UserID, IsOnline: true}
	}
	r.presence.SetAll(entries)
	r.onChange()
}

func (r *Router) handleUserStatusChange(data json.RawMessage) {
	var p proto.StatusChangePayload
	if err := json.Unmarshal(data, &p); err != nil {
		r.logger.Warn("Dropping malformed status event", "error", err)
		return
	}

	var lastSeen *time.Time
	if p.LastSeen != nil {
		if ts, err := time.Parse(time.RFC3339, *p.LastSeen); err == nil {
			lastSeen = &ts
		}
	}
	r.presence.UpdateOne(p.UserID, p.IsOnline, lastSeen)
	r.onChange()
}

func (r *Router) handleMessagesRead(data json.RawMessage) {
	var p proto.MessagesReadPayload
	if err := json.Unmarshal(data, &p); err != nil {
		r.logger.Warn("Dropping malformed read receipt", "error", err)
		return
	}
	r.messages.MarkRead(p.ConversationID, p.MessageIDs)
	r.conversations.ResetUnread(p.ConversationID)
	r.onChange()
}

func (r *Router) handleMessageDeleted(data json.RawMessage) {
	var p proto.MessageDeletedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		r.logger.Warn("Dropping malformed delete event", "error", err)
		return
	}
	r.messages.MarkDeletedFor(p.ConversationID, p.MessageID, p.DeletedBy)
	r.onChange()
}

// handleChannelError 通道级错误只记日志，不触碰任何 store
func (r *Router) handleChannelError(data json.RawMessage) {
	var p proto.ErrorPayload
	_ = json.Unmarshal(data, &p)
	r.logger.Error("Channel error", "message", p.Message)
}

// ============== 出站动作 ==============

// JoinConversation 选中会话时加入
func (r *Router) JoinConversation(conversationID string) error {
	return r.channel.Emit(proto.EventJoinConversation,
		proto.JoinConversationPayload{ConversationID: conversationID})
}

// SendMessage 发送消息（无乐观回显，等通道回推）
func (r *Router) SendMessage(conversationID, receiverID, text string, attachments []model.Attachment) error {
	return r.channel.Emit(proto.EventSendMessage, proto.SendMessagePayload{
		ClientMsgID:    uuid.NewString(),
		ConversationID: conversationID,
		ReceiverID:     receiverID,
		Text:           text,
		Attachments:    attachments,
	})
}

// SetTyping 上报本端输入状态
func (r *Router) SetTyping(conversationID string, isTyping bool) error {
	return r.channel.Emit(proto.EventTyping,
		proto.TypingPayload{ConversationID: conversationID, IsTyping: isTyping})
}

// MarkAsRead 上报已读并同步本地状态
func (r *Router) MarkAsRead(conversationID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := r.channel.Emit(proto.EventMarkAsRead, proto.MessagesReadPayload{
		ConversationID: conversationID,
		MessageIDs:     messageIDs,
	}); err != nil {
		return err
	}
	r.messages.MarkRead(conversationID, messageIDs)
	r.conversations.ResetUnread(conversationID)
	r.onChange()
	return nil
}

// DeleteMessage 删除消息（仅对自己隐藏，最终以服务端回推为准）
func (r *Router) DeleteMessage(conversationID, messageID string) error {
	return r.channel.Emit(proto.EventDeleteMessage,
		proto.DeleteMessagePayload{ConversationID: conversationID, MessageID: messageID})
}

// Logout 登出前通知服务端下线
func (r *Router) Logout() error {
	return r.channel.Emit(proto.EventLogout, struct{}{})
}
