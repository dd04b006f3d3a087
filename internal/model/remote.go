package model

// RemoteState is the authority's full view for the signed-in user, as
// returned by the bootstrap read. Every collection may be empty.
type RemoteState struct {
	Tenants       []Tenant         `json:"tenants"`
	Branches      []Branch         `json:"branches"`
	Users         []User           `json:"users"`
	Clients       []Client         `json:"clients"`
	Patients      []Patient        `json:"patients"`
	Appointments  []Appointment    `json:"appointments"`
	Invoices      []Invoice        `json:"invoices"`
	Inventory     []InventoryItem  `json:"inventory"`
	Batches       []InventoryBatch `json:"batches"`
	Sales         []Sale           `json:"sales"`
	Budgets       []Budget         `json:"budgets"`
	Subscriptions []Subscription   `json:"subscriptions"`
	Chats         []ChatMessage    `json:"chats"`
	AuditLogs     []AuditLogEntry  `json:"auditLogs"`
}

// Empty reports whether the state carries no records at all.
func (r RemoteState) Empty() bool {
	return len(r.Tenants)+len(r.Branches)+len(r.Users)+len(r.Clients)+
		len(r.Patients)+len(r.Appointments)+len(r.Invoices)+len(r.Inventory)+
		len(r.Batches)+len(r.Sales)+len(r.Budgets)+len(r.Subscriptions)+
		len(r.Chats)+len(r.AuditLogs) == 0
}
