package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"kairos/internal/engine/enginetest"
	"kairos/internal/history"
	"kairos/internal/manager"
	"kairos/internal/store"
)

func TestService_ChatInSessionRecordsAndTitles(t *testing.T) {
	eng := &enginetest.Fake{Tokens: []string{"Rayleigh", " scattering"}}
	svc, _ := newTestService(t, eng)
	ctx := context.Background()
	if err := svc.Load(ctx, "a.gguf", nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	sess, err := svc.CreateSession(ctx, "Be brief.")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.Model != "a.gguf" {
		t.Fatalf("session model=%q", sess.Model)
	}

	var streamed strings.Builder
	if _, err := svc.ChatInSession(ctx, sess.ID, "Why is the sky blue? Tell me.", func(tok string) bool {
		streamed.WriteString(tok)
		return true
	}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if streamed.String() != "Rayleigh scattering" {
		t.Fatalf("streamed=%q", streamed.String())
	}
	if _, err := svc.ChatInSession(ctx, sess.ID, "And sunsets?", nil); err != nil {
		t.Fatalf("second chat: %v", err)
	}

	got, msgs, err := svc.Session(ctx, sess.ID)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if got.Title != "Why is the sky blue" || got.MessageCount != 4 || len(msgs) != 4 {
		t.Fatalf("session=%+v messages=%d", got, len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Content != "Rayleigh scattering" || msgs[2].Content != "And sunsets?" {
		t.Fatalf("messages=%+v", msgs)
	}

	// the second prompt carries the system prompt and the first exchange
	prompts := eng.Prompts()
	last := prompts[len(prompts)-1]
	for _, want := range []string{"### System:\nBe brief.", "### User:\nWhy is the sky blue? Tell me.", "### Assistant:\nRayleigh scattering", "### User:\nAnd sunsets?"} {
		if !strings.Contains(last, want) {
			t.Fatalf("prompt missing %q:\n%s", want, last)
		}
	}
}

func TestService_ChatInSessionWithoutModelRecordsNothing(t *testing.T) {
	svc, _ := newTestService(t, &enginetest.Fake{})
	ctx := context.Background()
	sess, _ := svc.CreateSession(ctx, "")
	if _, err := svc.ChatInSession(ctx, sess.ID, "hi", nil); !errors.Is(err, manager.ErrNoModelLoaded) {
		t.Fatalf("expected ErrNoModelLoaded, got %v", err)
	}
	got, msgs, _ := svc.Session(ctx, sess.ID)
	if len(msgs) != 0 || got.Title != store.DefaultSessionTitle {
		t.Fatalf("session=%+v messages=%+v", got, msgs)
	}
}

func TestService_SessionsExportAndDelete(t *testing.T) {
	svc, _ := newTestService(t, &enginetest.Fake{Tokens: []string{"ok"}})
	ctx := context.Background()
	if err := svc.Load(ctx, "a.gguf", nil); err != nil {
		t.Fatal(err)
	}
	sess, _ := svc.CreateSession(ctx, "")
	if _, err := svc.ChatInSession(ctx, sess.ID, "ping", nil); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := svc.ExportSession(ctx, sess.ID, history.Markdown, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(buf.String(), "# ping") || !strings.Contains(buf.String(), "### Assistant\n\nok") {
		t.Fatalf("export:\n%s", buf.String())
	}

	if err := svc.ClearSession(ctx, sess.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, msgs, _ := svc.Session(ctx, sess.ID); len(msgs) != 0 {
		t.Fatalf("clear kept %d messages", len(msgs))
	}
	if err := svc.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err := svc.Sessions(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("sessions=%+v err=%v", list, err)
	}
	if err := svc.ExportSession(ctx, sess.ID, history.JSON, &buf); !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
