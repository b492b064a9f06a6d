package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessions_CreateAddAndList(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	a, err := db.CreateSession(ctx, "tiny.gguf", "be brief")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.ID == 0 || a.Title != DefaultSessionTitle {
		t.Fatalf("unexpected session: %+v", a)
	}
	time.Sleep(5 * time.Millisecond)
	b, err := db.CreateSession(ctx, "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := db.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != b.ID {
		t.Fatalf("expected newest first, got %+v", list)
	}

	time.Sleep(5 * time.Millisecond)
	for _, m := range []Message{{SessionID: a.ID, Role: "user", Content: "hi"}, {SessionID: a.ID, Role: "assistant", Content: "hello"}} {
		if _, err := db.AddMessage(ctx, m); err != nil {
			t.Fatalf("add message: %v", err)
		}
	}
	list, _ = db.ListSessions(ctx)
	if list[0].ID != a.ID || list[0].MessageCount != 2 {
		t.Fatalf("expected a touched session on top with 2 messages, got %+v", list[0])
	}
	if list[0].SystemPrompt != "be brief" || list[0].Model != "tiny.gguf" {
		t.Fatalf("fields not persisted: %+v", list[0])
	}

	msgs, err := db.Messages(ctx, a.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "hi" || msgs[1].Role != "assistant" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestSessions_UpdateClearDelete(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	s, _ := db.CreateSession(ctx, "m", "")
	if _, err := db.AddMessage(ctx, Message{SessionID: s.ID, Role: "user", Content: "x"}); err != nil {
		t.Fatal(err)
	}

	s.Title = "Renamed"
	if err := db.UpdateSession(ctx, s); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := db.GetSession(ctx, s.ID)
	if err != nil || got.Title != "Renamed" {
		t.Fatalf("get after update: %+v %v", got, err)
	}

	if err := db.ClearMessages(ctx, s.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ = db.GetSession(ctx, s.ID)
	msgs, _ := db.Messages(ctx, s.ID)
	if got.MessageCount != 0 || len(msgs) != 0 {
		t.Fatalf("clear left %d/%d messages", got.MessageCount, len(msgs))
	}

	if _, err := db.AddMessage(ctx, Message{SessionID: s.ID, Role: "user", Content: "y"}); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteSession(ctx, s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if msgs, _ := db.Messages(ctx, s.ID); len(msgs) != 0 {
		t.Fatalf("messages survived delete: %+v", msgs)
	}
	if _, err := db.GetSession(ctx, s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessions_UnknownID(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	if _, err := db.AddMessage(ctx, Message{SessionID: 99, Role: "user", Content: "x"}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("add message: expected ErrSessionNotFound, got %v", err)
	}
	if err := db.DeleteSession(ctx, 99); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("delete: expected ErrSessionNotFound, got %v", err)
	}
	if err := db.UpdateSession(ctx, Session{ID: 99}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("update: expected ErrSessionNotFound, got %v", err)
	}
	if err := db.ClearMessages(ctx, 99); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("clear: expected ErrSessionNotFound, got %v", err)
	}
}
