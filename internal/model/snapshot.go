package model

import (
	"maps"
	"slices"
)

// Snapshot is the complete client-side view of the session. It is only
// replaced as a whole by the state store; readers get a Clone.
type Snapshot struct {
	Tenants       []Tenant
	Branches      []Branch
	Users         []User
	Clients       []Client
	Patients      []Patient
	Appointments  []Appointment
	Invoices      []Invoice
	Inventory     []InventoryItem
	Batches       []InventoryBatch
	Sales         []Sale
	Budgets       []Budget
	Subscriptions []Subscription
	Chats         []ChatMessage
	Notifications []AppNotification
	AuditLogs     []AuditLogEntry

	CurrentUserID   string
	CurrentTenantID string
	CurrentBranchID string

	// Epoch changes on every sign-in and sign-out. Merges tagged with an
	// older epoch are discarded.
	Epoch uint64
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Tenants = slices.Clone(s.Tenants)
	out.Branches = slices.Clone(s.Branches)
	out.Users = slices.Clone(s.Users)
	out.Clients = slices.Clone(s.Clients)
	out.Patients = slices.Clone(s.Patients)
	out.Appointments = slices.Clone(s.Appointments)
	out.Invoices = slices.Clone(s.Invoices)
	out.Inventory = slices.Clone(s.Inventory)
	out.Batches = slices.Clone(s.Batches)
	out.Budgets = slices.Clone(s.Budgets)
	out.Subscriptions = slices.Clone(s.Subscriptions)
	out.Chats = slices.Clone(s.Chats)
	out.AuditLogs = slices.Clone(s.AuditLogs)

	if s.Sales != nil {
		out.Sales = make([]Sale, len(s.Sales))
		for i, sale := range s.Sales {
			sale.Lines = slices.Clone(sale.Lines)
			out.Sales[i] = sale
		}
	}
	if s.Notifications != nil {
		out.Notifications = make([]AppNotification, len(s.Notifications))
		for i, n := range s.Notifications {
			n.Metadata = maps.Clone(n.Metadata)
			out.Notifications[i] = n
		}
	}
	return out
}

// CurrentUser returns the signed-in user, if present in the snapshot.
func (s Snapshot) CurrentUser() (User, bool) {
	if s.CurrentUserID == "" {
		return User{}, false
	}
	for _, u := range s.Users {
		if u.ID == s.CurrentUserID {
			return u, true
		}
	}
	return User{}, false
}

// UnreadNotifications counts notifications not yet marked read.
func (s Snapshot) UnreadNotifications() int {
	n := 0
	for _, note := range s.Notifications {
		if !note.IsRead {
			n++
		}
	}
	return n
}
