package api

import (
	"time"

	"github.com/matheus3301/clinicsync/internal/model"
)

type StatusReply struct {
	Session             string    `json:"session"`
	Status              string    `json:"status"`
	SignedIn            bool      `json:"signed_in"`
	UserID              string    `json:"user_id,omitempty"`
	TenantID            string    `json:"tenant_id,omitempty"`
	BranchID            string    `json:"branch_id,omitempty"`
	QueueDepth          int       `json:"queue_depth"`
	UnreadNotifications int       `json:"unread_notifications"`
	Visible             bool      `json:"visible"`
	UptimeMs            int64     `json:"uptime_ms"`
	LastGeneralPull     time.Time `json:"last_general_pull,omitempty"`
	LastChatPull        time.Time `json:"last_chat_pull,omitempty"`
}

type QueueRequest struct {
	Limit int `json:"limit"`
}

type QueuedRequest struct {
	ID         string    `json:"id"`
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type QueueReply struct {
	Requests []QueuedRequest `json:"requests"`
}

type DrainReply struct {
	Sent      int  `json:"sent"`
	Rejected  int  `json:"rejected"`
	Remaining int  `json:"remaining"`
	Stopped   bool `json:"stopped"`
	Skipped   bool `json:"skipped"`
}

type SignInRequest struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

type BranchRequest struct {
	BranchID string `json:"branch_id"`
}

type ChatRequest struct {
	ClientID string `json:"client_id"`
	Content  string `json:"content"`
}

type NotificationsRequest struct {
	UnreadOnly bool `json:"unread_only"`
}

type NotificationsReply struct {
	Notifications []model.AppNotification `json:"notifications"`
}

type VisibleRequest struct {
	Visible bool `json:"visible"`
}

// Ack is returned by methods with nothing else to report.
type Ack struct {
	Message string `json:"message"`
}
