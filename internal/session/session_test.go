package session

import (
	"testing"
)

func TestSessionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	sess := m.GetOrCreate("cli:default")
	sess.AddMessage("user", "hello")
	sess.AddMessage("model", "hi there")
	sess.SetDocuments("1. step one", "spec v1")

	if err := m.Save(sess); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// New manager forces a disk load.
	m2 := NewManager(dir)
	loaded := m2.GetOrCreate("cli:default")

	history := loaded.GetHistory(10)
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Role != "user" || history[0].Content != "hello" {
		t.Fatalf("first message = %+v", history[0])
	}

	plan, spec := loaded.Documents()
	if plan != "1. step one" || spec != "spec v1" {
		t.Fatalf("documents = (%q, %q)", plan, spec)
	}
}

func TestGetHistoryWindow(t *testing.T) {
	sess := NewSession("k")
	for i := 0; i < 10; i++ {
		sess.AddMessage("user", "msg")
	}
	if got := len(sess.GetHistory(4)); got != 4 {
		t.Fatalf("window = %d, want 4", got)
	}
}

func TestDeleteAndList(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	sess := m.GetOrCreate("cli:work")
	sess.AddMessage("user", "x")
	if err := m.Save(sess); err != nil {
		t.Fatal(err)
	}

	if got := len(m.List()); got != 1 {
		t.Fatalf("sessions listed = %d, want 1", got)
	}
	if !m.Delete("cli:work") {
		t.Fatal("Delete returned false")
	}
	if got := len(m.List()); got != 0 {
		t.Fatalf("sessions after delete = %d, want 0", got)
	}
}

func TestClearResetsDocuments(t *testing.T) {
	sess := NewSession("k")
	sess.AddMessage("user", "x")
	sess.SetDocuments("plan", "spec")
	sess.Clear()

	if len(sess.GetHistory(10)) != 0 {
		t.Fatal("messages should be cleared")
	}
	plan, spec := sess.Documents()
	if plan != "" || spec != "" {
		t.Fatal("documents should be cleared")
	}
}
