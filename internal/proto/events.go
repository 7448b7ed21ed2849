package proto

import (
	"encoding/json"

	"sudooom.im.client/internal/model"
)

// 实时通道上的消息是命名事件：{"event": "...", "data": {...}}
// 事件按至少一次投递，跨重连不保证顺序，去重由各 store 兜底

// ============== 入站事件（服务端 -> 客户端） ==============

const (
	EventReceiveMessage   = "receiveMessage"
	EventUserTyping       = "userTyping"
	EventOnlineUsers      = "onlineUsers"
	EventUserStatusChange = "userStatusChange"
	EventMessagesRead     = "messagesRead"
	EventMessageDeleted   = "messageDeleted"
	EventError            = "error"
)

// TypingPayload 输入状态变更
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId,omitempty"`
	IsTyping       bool   `json:"isTyping"`
}

// OnlineUserPayload 在线用户快照中的一项
type OnlineUserPayload struct {
	UserID string `json:"userId"`
}

// StatusChangePayload 单个用户状态变更
type StatusChangePayload struct {
	UserID   string  `json:"userId"`
	IsOnline bool    `json:"isOnline"`
	LastSeen *string `json:"lastSeen"`
}

// MessagesReadPayload 已读回执
type MessagesReadPayload struct {
	ConversationID string   `json:"conversationId"`
	MessageIDs     []string `json:"messageIds"`
}

// MessageDeletedPayload 消息删除事件
type MessageDeletedPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	DeletedBy      string `json:"deletedBy"`
}

// ErrorPayload 通道级错误
type ErrorPayload struct {
	Message string `json:"message"`
}

// ============== 出站事件（客户端 -> 服务端） ==============

const (
	EventJoinConversation = "joinConversation"
	EventSendMessage      = "sendMessage"
	EventTyping           = "typing"
	EventMarkAsRead       = "markAsRead"
	EventDeleteMessage    = "deleteMessage"
	EventLogout           = "logout"
)

// JoinConversationPayload 选中会话时加入房间
type JoinConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

// SendMessagePayload 发送消息
// 本设计不做乐观回显：消息在服务端经通道回推后才进入本地 store
// ClientMsgID 由客户端生成，回显竞态时由去重规则吸收
type SendMessagePayload struct {
	ClientMsgID    string             `json:"clientMsgId"`
	ConversationID string             `json:"conversationId"`
	ReceiverID     string             `json:"receiverId"`
	Text           string             `json:"text"`
	Attachments    []model.Attachment `json:"attachments"`
}

// DeleteMessagePayload 删除消息
type DeleteMessagePayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

// ============== 事件封包 ==============

// Envelope 通道上的单个事件帧
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Encode 编码一个出站事件帧
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Decode 解析事件帧
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
