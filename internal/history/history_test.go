package history

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"kairos/internal/store"
)

func TestTitle(t *testing.T) {
	long := strings.Repeat("a", 60)
	cases := []struct{ in, want string }{
		{"", store.DefaultSessionTitle},
		{"   ", store.DefaultSessionTitle},
		{"Why is the sky blue? Explain simply.", "Why is the sky blue"},
		{"hello there", "hello there"},
		{"first line\nsecond", "first line"},
		{".leading dot keeps text", ".leading dot keeps text"},
		{long, strings.Repeat("a", 47) + "..."},
	}
	for _, c := range cases {
		if got := Title(c.in); got != c.want {
			t.Errorf("Title(%q)=%q want %q", c.in, got, c.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"md": Markdown, "Markdown": Markdown, ".json": JSON, "text": Text, "txt": Text} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q)=%q,%v want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Fatal("expected error for pdf")
	}
}

func TestFileName(t *testing.T) {
	if got := FileName(store.Session{Title: "What/is: 2+2?"}, Markdown); got != "Whatis 22.md" {
		t.Fatalf("got %q", got)
	}
	if got := FileName(store.Session{Title: "???"}, JSON); got != "conversation.json" {
		t.Fatalf("got %q", got)
	}
}

func sample() (store.Session, []store.Message) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := store.Session{ID: 7, Title: "Sky colour", Model: "tiny.gguf", SystemPrompt: "Be brief.\nUse plain words.", CreatedAt: at, UpdatedAt: at}
	msgs := []store.Message{
		{SessionID: 7, Role: "user", Content: "Why is the sky blue?", CreatedAt: at},
		{SessionID: 7, Role: "assistant", Content: "Rayleigh scattering.", CreatedAt: at.Add(time.Second)},
	}
	return s, msgs
}

func TestExport_Markdown(t *testing.T) {
	s, msgs := sample()
	var buf bytes.Buffer
	if err := Export(&buf, s, msgs, Markdown, time.Now()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"# Sky colour\n", "**Model:** tiny.gguf", "**Messages:** 2", "## System Prompt",
		"> Be brief.\n> Use plain words.\n", "### User\n\nWhy is the sky blue?", "### Assistant\n\nRayleigh scattering.", "*Exported from KaiROS AI on "} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "### User") > strings.Index(out, "### Assistant") {
		t.Fatal("messages out of order")
	}
}

func TestExport_MarkdownUnknownModelNoSystem(t *testing.T) {
	s, msgs := sample()
	s.Model, s.SystemPrompt = "", ""
	var buf bytes.Buffer
	_ = Export(&buf, s, msgs, Markdown, time.Now())
	if !strings.Contains(buf.String(), "**Model:** Unknown") || strings.Contains(buf.String(), "System Prompt") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestExport_JSON(t *testing.T) {
	s, msgs := sample()
	var buf bytes.Buffer
	if err := Export(&buf, s, msgs, JSON, time.Now()); err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Session struct {
			ID           int64  `json:"id"`
			ModelName    string `json:"modelName"`
			MessageCount int    `json:"messageCount"`
		} `json:"session"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		ExportedFrom string `json:"exportedFrom"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v\n%s", err, buf.String())
	}
	if doc.Session.ID != 7 || doc.Session.ModelName != "tiny.gguf" || doc.Session.MessageCount != 2 || doc.ExportedFrom != "KaiROS AI" {
		t.Fatalf("unexpected session: %+v", doc)
	}
	if len(doc.Messages) != 2 || doc.Messages[1].Role != "assistant" {
		t.Fatalf("unexpected messages: %+v", doc.Messages)
	}
}

func TestExport_Text(t *testing.T) {
	s, msgs := sample()
	var buf bytes.Buffer
	if err := Export(&buf, s, msgs, Text, time.Now()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"=== Sky colour ===", "Model: tiny.gguf", strings.Repeat("=", 50), "[USER] (", "[ASSISTANT] (", strings.Repeat("-", 30), "Exported from KaiROS AI on "} {
		if !strings.Contains(out, want) {
			t.Errorf("text missing %q:\n%s", want, out)
		}
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	s, msgs := sample()
	if err := Export(&bytes.Buffer{}, s, msgs, Format("pdf"), time.Now()); err == nil {
		t.Fatal("expected error")
	}
}
