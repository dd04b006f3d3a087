package model

import "time"

// Identified is implemented by every record that merges by id.
type Identified interface {
	RecordID() string
}

// Timestamped records are kept in ascending RecordTime order after a merge.
type Timestamped interface {
	Identified
	RecordTime() time.Time
}

// TenantScoped records belong to exactly one tenant. An empty tenant means
// the record is not partitioned.
type TenantScoped interface {
	RecordTenant() string
}

func (t Tenant) RecordID() string         { return t.ID }
func (b Branch) RecordID() string         { return b.ID }
func (u User) RecordID() string           { return u.ID }
func (c Client) RecordID() string         { return c.ID }
func (p Patient) RecordID() string        { return p.ID }
func (a Appointment) RecordID() string    { return a.ID }
func (i Invoice) RecordID() string        { return i.ID }
func (i InventoryItem) RecordID() string  { return i.ID }
func (b InventoryBatch) RecordID() string { return b.ID }
func (s Sale) RecordID() string           { return s.ID }
func (b Budget) RecordID() string         { return b.ID }
func (s Subscription) RecordID() string   { return s.ID }
func (m ChatMessage) RecordID() string    { return m.ID }
func (n AppNotification) RecordID() string {
	return n.ID
}
func (e AuditLogEntry) RecordID() string { return e.ID }

func (a Appointment) RecordTime() time.Time   { return a.StartsAt }
func (i Invoice) RecordTime() time.Time       { return i.IssuedAt }
func (s Sale) RecordTime() time.Time          { return s.CreatedAt }
func (m ChatMessage) RecordTime() time.Time   { return m.Timestamp }
func (e AuditLogEntry) RecordTime() time.Time { return e.Timestamp }
func (n AppNotification) RecordTime() time.Time {
	return n.Timestamp
}

func (b Branch) RecordTenant() string         { return b.TenantID }
func (u User) RecordTenant() string           { return u.TenantID }
func (c Client) RecordTenant() string         { return c.TenantID }
func (p Patient) RecordTenant() string        { return p.TenantID }
func (a Appointment) RecordTenant() string    { return a.TenantID }
func (i Invoice) RecordTenant() string        { return i.TenantID }
func (i InventoryItem) RecordTenant() string  { return i.TenantID }
func (b InventoryBatch) RecordTenant() string { return b.TenantID }
func (s Sale) RecordTenant() string           { return s.TenantID }
func (b Budget) RecordTenant() string         { return b.TenantID }
func (s Subscription) RecordTenant() string   { return s.TenantID }
func (m ChatMessage) RecordTenant() string    { return m.TenantID }
func (e AuditLogEntry) RecordTenant() string  { return e.TenantID }
