package reconcile

import (
	"time"

	"github.com/matheus3301/clinicsync/internal/model"
)

// Viewer is who the notifications are for.
type Viewer struct {
	Role     model.Role
	ClientID string
	TenantID string
}

// ViewerOf derives the viewer from the signed-in user of s.
func ViewerOf(s model.Snapshot) (Viewer, bool) {
	u, ok := s.CurrentUser()
	if !ok {
		return Viewer{}, false
	}
	tenant := s.CurrentTenantID
	if tenant == "" {
		tenant = u.TenantID
	}
	return Viewer{Role: u.Role, ClientID: u.ClientID, TenantID: tenant}, true
}

// ChatNotificationID is the notification id derived from a chat message.
func ChatNotificationID(msgID string) string { return "chat:" + msgID }

// AppointmentNotificationID is the notification id derived from an
// appointment.
func AppointmentNotificationID(apptID string) string { return "appointment:" + apptID }

// ChatNotifications returns one notification per message present in after
// but not in before that is unread and written by the other party. Messages
// whose notification is already in held produce nothing.
func ChatNotifications(before, after []model.ChatMessage, held []model.AppNotification, v Viewer) []model.AppNotification {
	known := ids(before)
	have := ids(held)

	var out []model.AppNotification
	for _, msg := range after {
		if _, ok := known[msg.ID]; ok || msg.IsRead {
			continue
		}
		if !fromOtherParty(msg, v) {
			continue
		}
		id := ChatNotificationID(msg.ID)
		if _, ok := have[id]; ok {
			continue
		}
		have[id] = struct{}{}
		title := "New message from clinic"
		if v.Role != model.RoleClient {
			title = "New client message"
		}
		out = append(out, model.AppNotification{
			ID:      id,
			Type:    model.NotificationChat,
			Title:   title,
			Message: msg.Content,
			Metadata: map[string]string{
				"clientId":  msg.ClientID,
				"messageId": msg.ID,
			},
			Timestamp: msg.Timestamp,
			TenantID:  tenantOr(msg.TenantID, v.TenantID),
		})
	}
	return out
}

// AppointmentNotifications returns one notification per appointment of the
// signed-in client present in after but not in before. Staff viewers get
// none.
func AppointmentNotifications(before, after []model.Appointment, held []model.AppNotification, v Viewer, now time.Time) []model.AppNotification {
	if v.Role != model.RoleClient || v.ClientID == "" {
		return nil
	}
	known := ids(before)
	have := ids(held)

	var out []model.AppNotification
	for _, appt := range after {
		if _, ok := known[appt.ID]; ok || appt.ClientID != v.ClientID {
			continue
		}
		id := AppointmentNotificationID(appt.ID)
		if _, ok := have[id]; ok {
			continue
		}
		have[id] = struct{}{}
		out = append(out, model.AppNotification{
			ID:      id,
			Type:    model.NotificationAppointment,
			Title:   "Appointment scheduled",
			Message: "An appointment was scheduled for " + appt.StartsAt.Format("2006-01-02 15:04"),
			Metadata: map[string]string{
				"appointmentId": appt.ID,
				"patientId":     appt.PatientID,
			},
			Timestamp: now,
			TenantID:  tenantOr(appt.TenantID, v.TenantID),
		})
	}
	return out
}

func fromOtherParty(msg model.ChatMessage, v Viewer) bool {
	if v.Role == model.RoleClient {
		return msg.Sender == model.SenderClinic && msg.ClientID == v.ClientID
	}
	return msg.Sender == model.SenderClient
}

func tenantOr(tenant, fallback string) string {
	if tenant != "" {
		return tenant
	}
	return fallback
}

func ids[T model.Identified](records []T) map[string]struct{} {
	m := make(map[string]struct{}, len(records))
	for _, r := range records {
		m[r.RecordID()] = struct{}{}
	}
	return m
}
