package state

import "github.com/matheus3301/clinicsync/internal/model"

// Action is one state transition request. Actions are consumed by a single
// Dispatch and never persisted.
type Action interface {
	Kind() string
}

// Session actions.
type (
	// Login starts a new session for UserID with an empty snapshot.
	Login struct{ UserID string }
	// Logout discards the snapshot.
	Logout struct{}
	// SwitchBranch selects another branch; only multi-branch roles may.
	SwitchBranch struct{ BranchID string }
	// ReplaceSnapshot swaps the whole snapshot, keeping the session epoch.
	ReplaceSnapshot struct{ Snapshot model.Snapshot }
)

// Reconciliation actions. Epoch must equal the snapshot's epoch or the merge
// is ignored.
type (
	MergeRemote struct {
		Epoch uint64
		State model.RemoteState
		// Notify derives notifications for newly present records.
		Notify bool
	}
	MergeChats struct {
		Epoch uint64
		Chats []model.ChatMessage
	}
)

// Business actions. Records with an empty ID get a fresh one.
type (
	AddClient     struct{ Client model.Client }
	UpdateClient  struct{ Client model.Client }
	AddPatient    struct{ Patient model.Patient }
	UpdatePatient struct{ Patient model.Patient }
	DeletePatient struct{ ID string }

	AddAppointment       struct{ Appointment model.Appointment }
	SetAppointmentStatus struct {
		ID     string
		Status model.AppointmentStatus
	}

	AddInvoice    struct{ Invoice model.Invoice }
	AdjustInvoice struct {
		ID    string
		Total int64
		Note  string
	}
	VoidInvoice struct {
		ID     string
		Reason string
	}

	AddInventoryItem struct {
		Item    model.InventoryItem
		Batches []model.InventoryBatch
	}
	RestockItem struct {
		ItemID string
		Batch  model.InventoryBatch
	}
	MakeSale struct{ Sale model.Sale }

	UpsertBudget          struct{ Budget model.Budget }
	AddSubscription       struct{ Subscription model.Subscription }
	SetSubscriptionStatus struct {
		ID     string
		Status model.SubscriptionStatus
	}
)

// Chat and notification actions.
type (
	// SendChatMessage posts Content to the conversation of ClientID. For a
	// client-role user ClientID defaults to their own.
	SendChatMessage struct {
		ClientID string
		Content  string
	}
	// MarkChatRead marks the other party's messages in one conversation read.
	MarkChatRead         struct{ ClientID string }
	MarkNotificationRead struct{ ID string }
	ClearNotifications   struct{}
)

func (Login) Kind() string                 { return "login" }
func (Logout) Kind() string                { return "logout" }
func (SwitchBranch) Kind() string          { return "switch_branch" }
func (ReplaceSnapshot) Kind() string       { return "replace_snapshot" }
func (MergeRemote) Kind() string           { return "merge_remote" }
func (MergeChats) Kind() string            { return "merge_chats" }
func (AddClient) Kind() string             { return "add_client" }
func (UpdateClient) Kind() string          { return "update_client" }
func (AddPatient) Kind() string            { return "add_patient" }
func (UpdatePatient) Kind() string         { return "update_patient" }
func (DeletePatient) Kind() string         { return "delete_patient" }
func (AddAppointment) Kind() string        { return "add_appointment" }
func (SetAppointmentStatus) Kind() string  { return "set_appointment_status" }
func (AddInvoice) Kind() string            { return "add_invoice" }
func (AdjustInvoice) Kind() string         { return "adjust_invoice" }
func (VoidInvoice) Kind() string           { return "void_invoice" }
func (AddInventoryItem) Kind() string      { return "add_inventory_item" }
func (RestockItem) Kind() string           { return "restock_item" }
func (MakeSale) Kind() string              { return "make_sale" }
func (UpsertBudget) Kind() string          { return "upsert_budget" }
func (AddSubscription) Kind() string       { return "add_subscription" }
func (SetSubscriptionStatus) Kind() string { return "set_subscription_status" }
func (SendChatMessage) Kind() string       { return "send_chat_message" }
func (MarkChatRead) Kind() string          { return "mark_chat_read" }
func (MarkNotificationRead) Kind() string  { return "mark_notification_read" }
func (ClearNotifications) Kind() string    { return "clear_notifications" }
