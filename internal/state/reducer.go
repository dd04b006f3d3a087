// Package state holds the session snapshot and the pure reducer that
// computes every transition of it, together with the outbound effects a
// transition requires.
package state

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/clinicsync/internal/model"
	"github.com/matheus3301/clinicsync/internal/reconcile"
)

// Reducer computes snapshot transitions. Now and NewID may be replaced for
// deterministic tests.
type Reducer struct {
	Now   func() time.Time
	NewID func() string
}

// NewReducer returns a reducer on the wall clock and random UUIDs.
func NewReducer() Reducer {
	return Reducer{Now: time.Now, NewID: uuid.NewString}
}

// Result is the full outcome of one reduction.
type Result struct {
	Snapshot model.Snapshot
	Effects  []model.Effect
	// Changed is false when the snapshot is the input unchanged.
	Changed bool
	// Notifications lists notifications created by this transition.
	Notifications []model.AppNotification
}

// Apply returns the next snapshot and the effects to execute. The input
// snapshot is never modified. Actions that do not apply (unknown records,
// no signed-in user, stale merges) return the input and no effects.
func (r Reducer) Apply(s model.Snapshot, a Action) (model.Snapshot, []model.Effect) {
	res := r.Reduce(s, a)
	return res.Snapshot, res.Effects
}

// Reduce is Apply with the change and notification details.
func (r Reducer) Reduce(s model.Snapshot, a Action) Result {
	switch a := a.(type) {
	case Login:
		return r.login(s, a)
	case Logout:
		return changed(model.Snapshot{Epoch: s.Epoch + 1})
	case SwitchBranch:
		return r.switchBranch(s, a)
	case ReplaceSnapshot:
		next := a.Snapshot.Clone()
		next.Epoch = s.Epoch
		resolveContext(&next)
		return changed(next)
	case MergeRemote:
		return r.mergeRemote(s, a)
	case MergeChats:
		return r.mergeChats(s, a)
	case AddClient:
		return r.addClient(s, a)
	case UpdateClient:
		return r.updateClient(s, a)
	case AddPatient:
		return r.addPatient(s, a)
	case UpdatePatient:
		return r.updatePatient(s, a)
	case DeletePatient:
		return r.deletePatient(s, a)
	case AddAppointment:
		return r.addAppointment(s, a)
	case SetAppointmentStatus:
		return r.setAppointmentStatus(s, a)
	case AddInvoice:
		return r.addInvoice(s, a)
	case AdjustInvoice:
		return r.adjustInvoice(s, a)
	case VoidInvoice:
		return r.voidInvoice(s, a)
	case AddInventoryItem:
		return r.addInventoryItem(s, a)
	case RestockItem:
		return r.restockItem(s, a)
	case MakeSale:
		return r.makeSale(s, a)
	case UpsertBudget:
		return r.upsertBudget(s, a)
	case AddSubscription:
		return r.addSubscription(s, a)
	case SetSubscriptionStatus:
		return r.setSubscriptionStatus(s, a)
	case SendChatMessage:
		return r.sendChatMessage(s, a)
	case MarkChatRead:
		return r.markChatRead(s, a)
	case MarkNotificationRead:
		return markNotificationRead(s, a)
	case ClearNotifications:
		if len(s.Notifications) == 0 {
			return unchanged(s)
		}
		next := s.Clone()
		next.Notifications = nil
		return changed(next)
	default:
		return unchanged(s)
	}
}

func (r Reducer) login(s model.Snapshot, a Login) Result {
	if a.UserID == "" {
		return unchanged(s)
	}
	return changed(model.Snapshot{CurrentUserID: a.UserID, Epoch: s.Epoch + 1})
}

func (r Reducer) switchBranch(s model.Snapshot, a SwitchBranch) Result {
	u, ok := s.CurrentUser()
	if !ok || !u.Role.MultiBranch() || a.BranchID == s.CurrentBranchID {
		return unchanged(s)
	}
	i := slices.IndexFunc(s.Branches, func(b model.Branch) bool {
		return b.ID == a.BranchID && b.TenantID == s.CurrentTenantID && b.Active
	})
	if i < 0 {
		return unchanged(s)
	}
	next := s.Clone()
	next.CurrentBranchID = a.BranchID
	return changed(next)
}

func (r Reducer) mergeRemote(s model.Snapshot, a MergeRemote) Result {
	if a.Epoch != s.Epoch || s.CurrentUserID == "" {
		return unchanged(s)
	}
	st := a.State
	next := s.Clone()

	next.Tenants = reconcile.MergeByID(st.Tenants, s.Tenants)
	next.Users = reconcile.MergeByID(st.Users, s.Users)
	resolveTenant(&next)
	t := next.CurrentTenantID

	next.Users = reconcile.MergeByID(reconcile.ForTenant(st.Users, t), s.Users)
	next.Branches = reconcile.MergeByID(reconcile.ForTenant(st.Branches, t), s.Branches)
	next.Clients = reconcile.MergeByID(reconcile.ForTenant(st.Clients, t), s.Clients)
	next.Patients = reconcile.MergeByID(reconcile.ForTenant(st.Patients, t), s.Patients)
	next.Appointments = reconcile.MergeSorted(reconcile.ForTenant(st.Appointments, t), s.Appointments)
	next.Invoices = reconcile.MergeSorted(reconcile.ForTenant(st.Invoices, t), s.Invoices)
	next.Inventory = reconcile.MergeByID(reconcile.ForTenant(st.Inventory, t), s.Inventory)
	next.Batches = reconcile.MergeByID(reconcile.ForTenant(st.Batches, t), s.Batches)
	next.Sales = reconcile.MergeSorted(reconcile.ForTenant(st.Sales, t), s.Sales)
	next.Budgets = reconcile.MergeByID(reconcile.ForTenant(st.Budgets, t), s.Budgets)
	next.Subscriptions = reconcile.MergeByID(reconcile.ForTenant(st.Subscriptions, t), s.Subscriptions)
	next.Chats = reconcile.MergeSorted(reconcile.ForTenant(st.Chats, t), s.Chats)
	next.AuditLogs = reconcile.MergeSorted(reconcile.ForTenant(st.AuditLogs, t), s.AuditLogs)
	// Merged server values replace the deep copies; sale lines and
	// notification metadata must not alias the action's payload.
	next = next.Clone()

	resolveContext(&next)

	res := changed(next)
	if a.Notify {
		if v, ok := reconcile.ViewerOf(next); ok {
			notes := reconcile.ChatNotifications(s.Chats, next.Chats, s.Notifications, v)
			notes = append(notes, reconcile.AppointmentNotifications(s.Appointments, next.Appointments, s.Notifications, v, r.now())...)
			res = withNotifications(res, notes)
		}
	}
	return res
}

func (r Reducer) mergeChats(s model.Snapshot, a MergeChats) Result {
	if a.Epoch != s.Epoch || s.CurrentUserID == "" {
		return unchanged(s)
	}
	merged := reconcile.MergeSorted(reconcile.ForTenant(a.Chats, s.CurrentTenantID), s.Chats)
	if reconcile.ChatsEqual(merged, s.Chats) {
		return unchanged(s)
	}
	next := s.Clone()
	next.Chats = merged

	res := changed(next)
	if v, ok := reconcile.ViewerOf(next); ok {
		res = withNotifications(res, reconcile.ChatNotifications(s.Chats, merged, s.Notifications, v))
	}
	return res
}

func markNotificationRead(s model.Snapshot, a MarkNotificationRead) Result {
	i := slices.IndexFunc(s.Notifications, func(n model.AppNotification) bool { return n.ID == a.ID })
	if i < 0 || s.Notifications[i].IsRead {
		return unchanged(s)
	}
	next := s.Clone()
	next.Notifications[i].IsRead = true
	return changed(next)
}

func withNotifications(res Result, notes []model.AppNotification) Result {
	if len(notes) == 0 {
		return res
	}
	res.Snapshot.Notifications = append(res.Snapshot.Notifications, notes...)
	res.Notifications = notes
	return res
}

func changed(s model.Snapshot) Result {
	return Result{Snapshot: s, Changed: true}
}

func unchanged(s model.Snapshot) Result {
	return Result{Snapshot: s}
}

func (r Reducer) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r Reducer) newID() string {
	if r.NewID == nil {
		return uuid.NewString()
	}
	return r.NewID()
}

// effect builds one outbound mutation. Bodies are plain records, so
// marshalling cannot fail.
func (r Reducer) effect(method, path string, body any) model.Effect {
	var raw []byte
	if body != nil {
		raw, _ = json.Marshal(body)
	}
	return model.Effect{ID: r.newID(), Method: method, Path: path, Body: raw}
}

// audit appends an audit entry to next and returns the effect persisting it.
func (r Reducer) audit(next *model.Snapshot, action, details string) model.Effect {
	entry := model.AuditLogEntry{
		ID:        r.newID(),
		Timestamp: r.now(),
		UserID:    next.CurrentUserID,
		Action:    action,
		Details:   details,
		TenantID:  next.CurrentTenantID,
		BranchID:  next.CurrentBranchID,
	}
	if u, ok := next.CurrentUser(); ok {
		entry.UserName = u.Name
	}
	next.AuditLogs = append(next.AuditLogs, entry)
	return r.effect("POST", "/audit_logs", entry)
}

func indexByID[T model.Identified](recs []T, id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(recs, func(rec T) bool { return rec.RecordID() == id })
}
