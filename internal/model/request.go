package model

import "time"

// 连接请求状态
const (
	RequestStatusInterested = "interested"
	RequestStatusIgnored    = "ignored"
	RequestStatusAccepted   = "accepted"
	RequestStatusRejected   = "rejected"
)

// ConnectionRequest 待处理的连接请求（对方发来的）
type ConnectionRequest struct {
	ID        string    `json:"_id"`
	FromUser  User      `json:"fromUserId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
