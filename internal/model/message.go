package model

import "time"

// Attachment 消息附件
type Attachment struct {
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
	Name string `json:"name,omitempty"`
}

// Message 单条消息
// 删除是按查看者的软删除：记录保留，deletedFor 标记对哪些用户隐藏正文
type Message struct {
	ID             string       `json:"_id"`
	ConversationID string       `json:"conversationId"`
	Sender         User         `json:"sender"`
	Receiver       User         `json:"receiver"`
	Text           string       `json:"text"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	IsRead         bool         `json:"isRead"`
	DeletedFor     []string     `json:"deletedFor,omitempty"`
}

// Before 消息排序：createdAt 升序，相同时间按 ID 升序保证稳定
func (m *Message) Before(other *Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// DeletedForUser 消息是否对指定用户已删除
func (m *Message) DeletedForUser(userID string) bool {
	for _, id := range m.DeletedFor {
		if id == userID {
			return true
		}
	}
	return false
}
