// Package model defines the records held in a session Snapshot and exchanged
// with the remote authority. JSON field names follow the authority's API.
package model

import "time"

// Role is a user's role within a tenant.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleVet    Role = "VET"
	RoleStaff  Role = "STAFF"
	RoleClient Role = "CLIENT"
)

// MultiBranch reports whether the role may switch between branches.
func (r Role) MultiBranch() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Sender identifies which side of a client conversation wrote a message.
type Sender string

const (
	SenderClient Sender = "CLIENT"
	SenderClinic Sender = "CLINIC"
)

type InvoiceStatus string

const (
	InvoiceIssued   InvoiceStatus = "ISSUED"
	InvoicePaid     InvoiceStatus = "PAID"
	InvoiceAdjusted InvoiceStatus = "ADJUSTED"
	InvoiceVoided   InvoiceStatus = "VOIDED"
)

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionPaused    SubscriptionStatus = "PAUSED"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
)

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "SCHEDULED"
	AppointmentConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentCompleted AppointmentStatus = "COMPLETED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
)

type NotificationType string

const (
	NotificationChat        NotificationType = "CHAT_MESSAGE"
	NotificationAppointment NotificationType = "APPOINTMENT"
)

type Tenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Branch struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
}

// User is a staff member or, with RoleClient, a client's portal account
// (ClientID links it to the Client record).
type User struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	BranchID string `json:"branchId"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	ClientID string `json:"clientId,omitempty"`
}

type Client struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	BranchID  string    `json:"branchId"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Patient struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	BranchID  string    `json:"branchId"`
	ClientID  string    `json:"clientId"`
	Name      string    `json:"name"`
	Species   string    `json:"species,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Appointment struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	BranchID  string            `json:"branchId"`
	ClientID  string            `json:"clientId"`
	PatientID string            `json:"patientId,omitempty"`
	StartsAt  time.Time         `json:"startsAt"`
	Status    AppointmentStatus `json:"status"`
	Reason    string            `json:"reason,omitempty"`
}

// Invoice amounts are in minor currency units.
type Invoice struct {
	ID       string        `json:"id"`
	TenantID string        `json:"tenantId"`
	BranchID string        `json:"branchId"`
	ClientID string        `json:"clientId"`
	Number   string        `json:"number"`
	Total    int64         `json:"total"`
	Status   InvoiceStatus `json:"status"`
	Note     string        `json:"note,omitempty"`
	IssuedAt time.Time     `json:"issuedAt"`
}

// InventoryItem.Stock equals the sum of its batches' quantities when the item
// has batches.
type InventoryItem struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	BranchID string `json:"branchId"`
	Name     string `json:"name"`
	SKU      string `json:"sku,omitempty"`
	Stock    int    `json:"stock"`
}

type InventoryBatch struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	ItemID    string    `json:"itemId"`
	Quantity  int       `json:"quantity"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type SaleLine struct {
	ItemID    string `json:"itemId"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type Sale struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenantId"`
	BranchID  string     `json:"branchId"`
	ClientID  string     `json:"clientId,omitempty"`
	Lines     []SaleLine `json:"lines"`
	Total     int64      `json:"total"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Budget is unique per (TenantID, Category).
type Budget struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Category  string    `json:"category"`
	Amount    int64     `json:"amount"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Subscription struct {
	ID        string             `json:"id"`
	TenantID  string             `json:"tenantId"`
	ClientID  string             `json:"clientId"`
	Plan      string             `json:"plan"`
	Status    SubscriptionStatus `json:"status"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"clientId"`
	TenantID  string    `json:"tenantId"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId,omitempty"`
	IsRead    bool      `json:"isRead"`
}

// AppNotification is derived locally from merges and never sent upstream.
type AppNotification struct {
	ID        string            `json:"id"`
	Type      NotificationType  `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	IsRead    bool              `json:"isRead"`
	Timestamp time.Time         `json:"timestamp"`
	TenantID  string            `json:"tenantId"`
}

type AuditLogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	TenantID  string    `json:"tenantId"`
	BranchID  string    `json:"branchId"`
}
