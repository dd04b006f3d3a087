package state

import (
	"fmt"
	"slices"

	"github.com/matheus3301/clinicsync/internal/model"
)

func signedIn(s model.Snapshot) bool {
	return s.CurrentUserID != ""
}

func (r Reducer) stamp(s model.Snapshot, id, tenantID, branchID *string) {
	if *id == "" {
		*id = r.newID()
	}
	if tenantID != nil && *tenantID == "" {
		*tenantID = s.CurrentTenantID
	}
	if branchID != nil && *branchID == "" {
		*branchID = s.CurrentBranchID
	}
}

// mutated returns a Result carrying next and the given mutation effect
// followed by its audit entry.
func (r Reducer) mutated(next model.Snapshot, eff model.Effect, action, details string) Result {
	audit := r.audit(&next, action, details)
	return Result{Snapshot: next, Effects: []model.Effect{eff, audit}, Changed: true}
}

func (r Reducer) addClient(s model.Snapshot, a AddClient) Result {
	if !signedIn(s) {
		return unchanged(s)
	}
	c := a.Client
	r.stamp(s, &c.ID, &c.TenantID, &c.BranchID)
	if indexByID(s.Clients, c.ID) >= 0 {
		return unchanged(s)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}
	next := s.Clone()
	next.Clients = append(next.Clients, c)
	return r.mutated(next, r.effect("POST", "/clients", c), "CREATE_CLIENT", "Created client "+c.Name)
}

func (r Reducer) updateClient(s model.Snapshot, a UpdateClient) Result {
	i := indexByID(s.Clients, a.Client.ID)
	if !signedIn(s) || i < 0 {
		return unchanged(s)
	}
	prev := s.Clients[i]
	c := a.Client
	if c.TenantID == "" {
		c.TenantID = prev.TenantID
	}
	if c.BranchID == "" {
		c.BranchID = prev.BranchID
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = prev.CreatedAt
	}
	next := s.Clone()
	next.Clients[i] = c
	return r.mutated(next, r.effect("PUT", "/clients/"+c.ID, c), "UPDATE_CLIENT", "Updated client "+c.Name)
}

func (r Reducer) addPatient(s model.Snapshot, a AddPatient) Result {
	if !signedIn(s) {
		return unchanged(s)
	}
	p := a.Patient
	r.stamp(s, &p.ID, &p.TenantID, &p.BranchID)
	if indexByID(s.Patients, p.ID) >= 0 {
		return unchanged(s)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}
	next := s.Clone()
	next.Patients = append(next.Patients, p)
	return r.mutated(next, r.effect("POST", "/patients", p), "CREATE_PATIENT", "Created patient "+p.Name)
}

func (r Reducer) updatePatient(s model.Snapshot, a UpdatePatient) Result {
	i := indexByID(s.Patients, a.Patient.ID)
	if !signedIn(s) || i < 0 {
		return unchanged(s)
	}
	prev := s.Patients[i]
	p := a.Patient
	if p.TenantID == "" {
		p.TenantID = prev.TenantID
	}
	if p.BranchID == "" {
		p.BranchID = prev.BranchID
	}
	if p.ClientID == "" {
		p.ClientID = prev.ClientID
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = prev.CreatedAt
	}
	next := s.Clone()
	next.Patients[i] = p
	return r.mutated(next, r.effect("PUT", "/patients/"+p.ID, p), "UPDATE_PATIENT", "Updated patient "+p.Name)
}

func (r Reducer) deletePatient(s model.Snapshot, a DeletePatient) Result {
	i := indexByID(s.Patients, a.ID)
	if !signedIn(s) || i < 0 {
		return unchanged(s)
	}
	name := s.Patients[i].Name
	next := s.Clone()
	next.Patients = slices.Delete(next.Patients, i, i+1)
	return r.mutated(next, r.effect("DELETE", "/patients/"+a.ID, nil), "DELETE_PATIENT", "Deleted patient "+name)
}

func (r Reducer) addAppointment(s model.Snapshot, a AddAppointment) Result {
	if !signedIn(s) {
		return unchanged(s)
	}
	appt := a.Appointment
	r.stamp(s, &appt.ID, &appt.TenantID, &appt.BranchID)
	if indexByID(s.Appointments, appt.ID) >= 0 {
		return unchanged(s)
	}
	if appt.ClientID == "" {
		if u, ok := s.CurrentUser(); ok && u.Role == model.RoleClient {
			appt.ClientID = u.ClientID
		}
	}
	if appt.Status == "" {
		appt.Status = model.AppointmentScheduled
	}
	next := s.Clone()
	next.Appointments = append(next.Appointments, appt)
	slices.SortStableFunc(next.Appointments, func(x, y model.Appointment) int {
		return x.StartsAt.Compare(y.StartsAt)
	})
	return r.mutated(next, r.effect("POST", "/appointments", appt), "CREATE_APPOINTMENT",
		fmt.Sprintf("Scheduled appointment for %s", appt.StartsAt.Format("2006-01-02 15:04")))
}

func (r Reducer) setAppointmentStatus(s model.Snapshot, a SetAppointmentStatus) Result {
	i := indexByID(s.Appointments, a.ID)
	if !signedIn(s) || i < 0 || a.Status == "" || s.Appointments[i].Status == a.Status {
		return unchanged(s)
	}
	next := s.Clone()
	appt := next.Appointments[i]
	appt.Status = a.Status
	next.Appointments[i] = appt
	return r.mutated(next, r.effect("PUT", "/appointments/"+a.ID, appt), "UPDATE_APPOINTMENT",
		fmt.Sprintf("Appointment %s set to %s", a.ID, a.Status))
}

func (r Reducer) addInvoice(s model.Snapshot, a AddInvoice) Result {
	if !signedIn(s) {
		return unchanged(s)
	}
	inv := a.Invoice
	r.stamp(s, &inv.ID, &inv.TenantID, &inv.BranchID)
	if indexByID(s.Invoices, inv.ID) >= 0 {
		return unchanged(s)
	}
	if inv.Status == "" {
		inv.Status = model.InvoiceIssued
	}
	if inv.IssuedAt.IsZero() {
		inv.IssuedAt = r.now()
	}
	next := s.Clone()
	next.Invoices = append(next.Invoices, inv)
	return r.mutated(next, r.effect("POST", "/invoices", inv), "CREATE_INVOICE",
		fmt.Sprintf("Issued invoice %s total %d", inv.Number, inv.Total))
}

// adjustInvoice and voidInvoice replace the invoice with a new value; a
// voided invoice is final.
func (r Reducer) adjustInvoice(s model.Snapshot, a AdjustInvoice) Result {
	i := indexByID(s.Invoices, a.ID)
	if !signedIn(s) || i < 0 || s.Invoices[i].Status == model.InvoiceVoided {
		return unchanged(s)
	}
	next := s.Clone()
	inv := next.Invoices[i]
	prevTotal := inv.Total
	inv.Total = a.Total
	inv.Note = a.Note
	inv.Status = model.InvoiceAdjusted
	next.Invoices[i] = inv
	return r.mutated(next, r.effect("PUT", "/invoices/"+a.ID, inv), "ADJUST_INVOICE",
		fmt.Sprintf("Invoice %s adjusted from %d to %d", inv.Number, prevTotal, a.Total))
}

func (r Reducer) voidInvoice(s model.Snapshot, a VoidInvoice) Result {
	i := indexByID(s.Invoices, a.ID)
	if !signedIn(s) || i < 0 || s.Invoices[i].Status == model.InvoiceVoided {
		return unchanged(s)
	}
	next := s.Clone()
	inv := next.Invoices[i]
	inv.Status = model.InvoiceVoided
	if a.Reason != "" {
		inv.Note = a.Reason
	}
	next.Invoices[i] = inv
	return r.mutated(next, r.effect("PUT", "/invoices/"+a.ID, inv), "VOID_INVOICE",
		fmt.Sprintf("Invoice %s voided", inv.Number))
}

// upsertBudget keys budgets by (tenant, category).
func (r Reducer) upsertBudget(s model.Snapshot, a UpsertBudget) Result {
	if !signedIn(s) || a.Budget.Category == "" {
		return unchanged(s)
	}
	b := a.Budget
	if b.TenantID == "" {
		b.TenantID = s.CurrentTenantID
	}
	b.UpdatedAt = r.now()

	i := slices.IndexFunc(s.Budgets, func(x model.Budget) bool {
		return x.TenantID == b.TenantID && x.Category == b.Category
	})
	next := s.Clone()
	if i >= 0 {
		b.ID = s.Budgets[i].ID
		next.Budgets[i] = b
		return r.mutated(next, r.effect("PUT", "/budgets/"+b.ID, b), "UPDATE_BUDGET",
			fmt.Sprintf("Budget %s set to %d", b.Category, b.Amount))
	}
	if b.ID == "" {
		b.ID = r.newID()
	}
	next.Budgets = append(next.Budgets, b)
	return r.mutated(next, r.effect("POST", "/budgets", b), "CREATE_BUDGET",
		fmt.Sprintf("Budget %s set to %d", b.Category, b.Amount))
}

func (r Reducer) addSubscription(s model.Snapshot, a AddSubscription) Result {
	if !signedIn(s) {
		return unchanged(s)
	}
	sub := a.Subscription
	r.stamp(s, &sub.ID, &sub.TenantID, nil)
	if indexByID(s.Subscriptions, sub.ID) >= 0 {
		return unchanged(s)
	}
	if sub.Status == "" {
		sub.Status = model.SubscriptionActive
	}
	sub.UpdatedAt = r.now()
	next := s.Clone()
	next.Subscriptions = append(next.Subscriptions, sub)
	return r.mutated(next, r.effect("POST", "/subscriptions", sub), "CREATE_SUBSCRIPTION",
		fmt.Sprintf("Subscription %s for client %s", sub.Plan, sub.ClientID))
}

func (r Reducer) setSubscriptionStatus(s model.Snapshot, a SetSubscriptionStatus) Result {
	i := indexByID(s.Subscriptions, a.ID)
	if !signedIn(s) || i < 0 || a.Status == "" || s.Subscriptions[i].Status == a.Status {
		return unchanged(s)
	}
	next := s.Clone()
	sub := next.Subscriptions[i]
	sub.Status = a.Status
	sub.UpdatedAt = r.now()
	next.Subscriptions[i] = sub
	return r.mutated(next, r.effect("PUT", "/subscriptions/"+a.ID, sub), "UPDATE_SUBSCRIPTION",
		fmt.Sprintf("Subscription %s set to %s", a.ID, a.Status))
}
