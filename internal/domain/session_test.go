package domain

import "testing"

func TestSessionHistorySkipsGreeting(t *testing.T) {
	s := Session{Messages: []Message{
		{ID: "g", Role: RoleModel, Text: "hi"},
		{ID: "u", Role: RoleUser, Text: "hello"},
	}}
	h := s.History()
	if len(h) != 1 || h[0].ID != "u" {
		t.Fatalf("History = %+v", h)
	}
	if got := (Session{Messages: s.Messages[:1]}).History(); got != nil {
		t.Fatalf("History of seed-only session = %+v", got)
	}
	if s.IndexOf("u") != 1 || s.IndexOf("x") != -1 {
		t.Fatalf("IndexOf mismatch")
	}
}

func TestCollectionCloneDoesNotAlias(t *testing.T) {
	c := SessionCollection{
		ActiveID: "a",
		Sessions: []Session{{ID: "a", Messages: []Message{
			{ID: "m", Sources: []Source{{URI: "https://x"}}},
		}}},
	}
	cp := c.Clone()
	cp.Sessions[0].Messages[0].Text = "changed"
	cp.Sessions[0].Messages[0].Sources[0].URI = "changed"
	if c.Sessions[0].Messages[0].Text != "" || c.Sessions[0].Messages[0].Sources[0].URI != "https://x" {
		t.Fatal("clone aliases the original")
	}
	if s, ok := cp.Active(); !ok || s.ID != "a" {
		t.Fatalf("Active = %+v %v", s, ok)
	}
}

func TestStringArg(t *testing.T) {
	f := FunctionCallIntent{Args: map[string]any{"a": "  x ", "n": 3.0, "nil": nil}}
	tests := map[string]string{"a": "x", "n": "3", "nil": "", "missing": ""}
	for name, want := range tests {
		if got := f.StringArg(name); got != want {
			t.Errorf("StringArg(%q) = %q, want %q", name, got, want)
		}
	}
}
