package state

import (
	"slices"
	"strings"

	"github.com/matheus3301/clinicsync/internal/model"
	"github.com/matheus3301/clinicsync/internal/reconcile"
)

type readReceipt struct {
	ClientID   string   `json:"clientId"`
	MessageIDs []string `json:"messageIds"`
}

func (r Reducer) sendChatMessage(s model.Snapshot, a SendChatMessage) Result {
	content := strings.TrimSpace(a.Content)
	u, ok := s.CurrentUser()
	if !ok || content == "" {
		return unchanged(s)
	}
	sender, clientID := model.SenderClinic, a.ClientID
	if u.Role == model.RoleClient {
		sender, clientID = model.SenderClient, u.ClientID
	}
	if clientID == "" {
		return unchanged(s)
	}

	msg := model.ChatMessage{
		ID:        r.newID(),
		ClientID:  clientID,
		TenantID:  s.CurrentTenantID,
		Sender:    sender,
		Content:   content,
		Timestamp: r.now(),
		IsRead:    true,
	}
	next := s.Clone()
	next.Chats = append(next.Chats, msg)
	slices.SortStableFunc(next.Chats, func(x, y model.ChatMessage) int {
		return x.Timestamp.Compare(y.Timestamp)
	})
	return Result{
		Snapshot: next,
		Effects:  []model.Effect{r.effect("POST", "/chats", msg)},
		Changed:  true,
	}
}

// markChatRead marks the other party's unread messages in one conversation
// and the notifications derived from them.
func (r Reducer) markChatRead(s model.Snapshot, a MarkChatRead) Result {
	u, ok := s.CurrentUser()
	if !ok {
		return unchanged(s)
	}
	clientID, from := a.ClientID, model.SenderClient
	if u.Role == model.RoleClient {
		clientID, from = u.ClientID, model.SenderClinic
	}

	next := s.Clone()
	var ids []string
	for i, m := range next.Chats {
		if m.ClientID == clientID && m.Sender == from && !m.IsRead {
			next.Chats[i].IsRead = true
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return unchanged(s)
	}
	for _, id := range ids {
		nid := reconcile.ChatNotificationID(id)
		for i := range next.Notifications {
			if next.Notifications[i].ID == nid {
				next.Notifications[i].IsRead = true
			}
		}
	}
	return Result{
		Snapshot: next,
		Effects:  []model.Effect{r.effect("PUT", "/chats/"+clientID+"/read", readReceipt{ClientID: clientID, MessageIDs: ids})},
		Changed:  true,
	}
}
