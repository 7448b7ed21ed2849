package model

import "time"

// Conversation 会话摘要（双人会话）
type Conversation struct {
	ID           string    `json:"_id"`
	Participants []User    `json:"participants"`
	LastMessage  *Message  `json:"lastMessage"`
	UpdatedAt    time.Time `json:"updatedAt"`
	UnreadCount  int       `json:"unreadCount"`
}

// OtherParticipant 取对端参与者
func (c *Conversation) OtherParticipant(selfID string) (User, bool) {
	for _, p := range c.Participants {
		if p.ID != selfID {
			return p, true
		}
	}
	return User{}, false
}
