package reconcile

import (
	"testing"
	"time"

	"github.com/matheus3301/clinicsync/internal/model"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func msg(id string, min int) model.ChatMessage {
	return model.ChatMessage{ID: id, Sender: model.SenderClient, Timestamp: t0.Add(time.Duration(min) * time.Minute)}
}

func chatIDs(msgs []model.ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMergeByID(t *testing.T) {
	tests := []struct {
		name   string
		server []model.Client
		local  []model.Client
		want   []string
	}{
		{"server wins on conflict", []model.Client{{ID: "a", Name: "server"}}, []model.Client{{ID: "a", Name: "local"}}, []string{"a"}},
		{"local-only appended", []model.Client{{ID: "a"}}, []model.Client{{ID: "b"}}, []string{"a", "b"}},
		{"server duplicates collapse", []model.Client{{ID: "a", Name: "first"}, {ID: "a", Name: "second"}}, nil, []string{"a"}},
		{"empty server keeps local", nil, []model.Client{{ID: "x"}, {ID: "y"}}, []string{"x", "y"}},
		{"both empty", nil, nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeByID(tt.server, tt.local)
			ids := make([]string, len(got))
			for i, c := range got {
				ids[i] = c.ID
			}
			if !sameIDs(ids, tt.want) {
				t.Errorf("ids = %v, want %v", ids, tt.want)
			}
		})
	}

	got := MergeByID([]model.Client{{ID: "a", Name: "first"}, {ID: "a", Name: "second"}}, []model.Client{{ID: "a", Name: "local"}})
	if got[0].Name != "first" {
		t.Errorf("name = %q, want first server occurrence", got[0].Name)
	}
}

func TestMergeIdempotent(t *testing.T) {
	server := []model.ChatMessage{msg("s1", 1), msg("s2", 5)}
	local := []model.ChatMessage{msg("l1", 3), msg("s1", 1)}

	once := MergeSorted(server, local)
	twice := MergeSorted(server, once)
	if !ChatsEqual(once, twice) {
		t.Errorf("merge not idempotent: %v vs %v", chatIDs(once), chatIDs(twice))
	}
}

func TestMergeSortedChronological(t *testing.T) {
	server := []model.ChatMessage{msg("s2", 10), msg("s1", 2)}
	local := []model.ChatMessage{msg("l1", 5), msg("l0", 0)}

	got := chatIDs(MergeSorted(server, local))
	if want := []string{"l0", "s1", "l1", "s2"}; !sameIDs(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestMergeSortedStableOnEqualTimestamps(t *testing.T) {
	server := []model.ChatMessage{msg("b", 1), msg("a", 1)}
	got := chatIDs(MergeSorted(server, []model.ChatMessage{msg("c", 1)}))
	if want := []string{"b", "a", "c"}; !sameIDs(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	server := []model.ChatMessage{msg("s2", 10), msg("s1", 2)}
	_ = MergeSorted(server, nil)
	if server[0].ID != "s2" {
		t.Error("server slice was reordered")
	}
}

func TestForTenant(t *testing.T) {
	recs := []model.Client{{ID: "a", TenantID: "t1"}, {ID: "b", TenantID: "t2"}, {ID: "c"}}
	got := ForTenant(recs, "t1")
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("got %+v", got)
	}
	if len(ForTenant(recs, "")) != 3 {
		t.Error("empty tenant should keep everything")
	}
}

func TestChatsEqualIgnoresLocation(t *testing.T) {
	a := []model.ChatMessage{{ID: "m", Timestamp: t0}}
	b := []model.ChatMessage{{ID: "m", Timestamp: t0.In(time.FixedZone("x", 3600))}}
	if !ChatsEqual(a, b) {
		t.Error("same instant in another zone should compare equal")
	}
	b[0].IsRead = true
	if ChatsEqual(a, b) {
		t.Error("read flag change should be detected")
	}
}
