// Package reconcile merges server snapshots into local state and derives
// notifications from what a merge adds. Everything here is pure.
package reconcile

import (
	"slices"

	"github.com/matheus3301/clinicsync/internal/model"
)

// MergeByID returns the server records (first occurrence of each id wins)
// followed by local records whose id the server did not return. Neither
// input is modified.
func MergeByID[T model.Identified](server, local []T) []T {
	seen := make(map[string]struct{}, len(server)+len(local))
	out := make([]T, 0, len(server)+len(local))
	for _, rec := range server {
		id := rec.RecordID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, rec)
	}
	for _, rec := range local {
		id := rec.RecordID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// MergeSorted is MergeByID followed by a stable ascending sort on
// RecordTime.
func MergeSorted[T model.Timestamped](server, local []T) []T {
	out := MergeByID(server, local)
	slices.SortStableFunc(out, func(a, b T) int {
		return a.RecordTime().Compare(b.RecordTime())
	})
	return out
}

// ForTenant drops records that belong to a tenant other than tenantID.
// Records without a tenant are kept, and an empty tenantID keeps all.
func ForTenant[T model.TenantScoped](records []T, tenantID string) []T {
	if tenantID == "" {
		return records
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		if t := rec.RecordTenant(); t == "" || t == tenantID {
			out = append(out, rec)
		}
	}
	return out
}

// ChatsEqual reports whether two chat lists hold the same messages in the
// same order.
func ChatsEqual(a, b []model.ChatMessage) bool {
	return slices.EqualFunc(a, b, func(x, y model.ChatMessage) bool {
		return x.ID == y.ID &&
			x.ClientID == y.ClientID &&
			x.TenantID == y.TenantID &&
			x.Sender == y.Sender &&
			x.Content == y.Content &&
			x.Timestamp.Equal(y.Timestamp) &&
			x.SessionID == y.SessionID &&
			x.IsRead == y.IsRead
	})
}
