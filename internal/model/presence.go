package model

import "time"

// PresenceEntry 用户在线状态
// 不变式：IsOnline 为 true 时 LastSeen 必为 nil（在线用户没有最后在线时间）
type PresenceEntry struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen"`
}
