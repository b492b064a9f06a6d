// Package history titles stored chat sessions and renders them for export.
package history

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"kairos/internal/store"
)

const (
	maxTitle   = 50
	appName    = "KaiROS AI"
	stampShort = "2006-01-02 15:04"
	stampLong  = "2006-01-02 15:04:05"
)

// Title derives a session title from its first user message: the first
// sentence when it is short, otherwise the text cut to fit.
func Title(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return store.DefaultSessionTitle
	}
	if i := strings.IndexAny(text, ".!?\n"); i > 0 && i < maxTitle-1 {
		return strings.TrimSpace(text[:i])
	}
	if utf8.RuneCountInString(text) > maxTitle {
		r := []rune(text)
		return string(r[:maxTitle-3]) + "..."
	}
	return text
}

// Format is an export file format.
type Format string

const (
	Markdown Format = "md"
	JSON     Format = "json"
	Text     Format = "txt"
)

// ParseFormat accepts a format name or its file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "md", "markdown":
		return Markdown, nil
	case "json":
		return JSON, nil
	case "txt", "text":
		return Text, nil
	}
	return "", fmt.Errorf("unknown export format %q (want md, json or txt)", s)
}

var unsafeName = regexp.MustCompile(`[^\p{L}\p{N} _.-]+`)

// FileName suggests a file name for exporting s.
func FileName(s store.Session, f Format) string {
	name := strings.Trim(unsafeName.ReplaceAllString(s.Title, ""), " .")
	if name == "" {
		name = "conversation"
	}
	if r := []rune(name); len(r) > maxTitle {
		name = strings.TrimSpace(string(r[:maxTitle]))
	}
	return name + "." + string(f)
}

// Export writes the session and its messages to w. now stamps the footer.
func Export(w io.Writer, s store.Session, msgs []store.Message, f Format, now time.Time) error {
	switch f {
	case Markdown:
		return writeMarkdown(w, s, msgs, now)
	case JSON:
		return writeJSON(w, s, msgs, now)
	case Text:
		return writeText(w, s, msgs, now)
	}
	return fmt.Errorf("unknown export format %q", f)
}

func modelName(s store.Session) string {
	if s.Model == "" {
		return "Unknown"
	}
	return s.Model
}

func roleLabel(role string) string {
	switch role {
	case "assistant":
		return "Assistant"
	case "system":
		return "System"
	}
	return "User"
}

func writeMarkdown(w io.Writer, s store.Session, msgs []store.Message, now time.Time) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.Title)
	fmt.Fprintf(&b, "**Model:** %s  \n", modelName(s))
	fmt.Fprintf(&b, "**Created:** %s  \n", s.CreatedAt.Local().Format(stampShort))
	fmt.Fprintf(&b, "**Messages:** %d\n\n---\n\n", len(msgs))
	if s.SystemPrompt != "" {
		b.WriteString("## System Prompt\n\n")
		for _, line := range strings.Split(s.SystemPrompt, "\n") {
			fmt.Fprintf(&b, "> %s\n", line)
		}
		b.WriteString("\n---\n\n")
	}
	b.WriteString("## Conversation\n\n")
	for _, m := range msgs {
		fmt.Fprintf(&b, "### %s\n\n%s\n\n", roleLabel(m.Role), m.Content)
	}
	fmt.Fprintf(&b, "---\n\n*Exported from %s on %s*\n", appName, now.Local().Format(stampLong))
	_, err := io.WriteString(w, b.String())
	return err
}

type exportSession struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	ModelName    string    `json:"modelName"`
	SystemPrompt string    `json:"systemPrompt,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
}

type exportMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type exportDoc struct {
	Session      exportSession   `json:"session"`
	Messages     []exportMessage `json:"messages"`
	ExportedAt   time.Time       `json:"exportedAt"`
	ExportedFrom string          `json:"exportedFrom"`
}

func writeJSON(w io.Writer, s store.Session, msgs []store.Message, now time.Time) error {
	doc := exportDoc{
		Session: exportSession{
			ID: s.ID, Title: s.Title, ModelName: s.Model, SystemPrompt: s.SystemPrompt,
			CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt, MessageCount: len(msgs),
		},
		Messages:     make([]exportMessage, 0, len(msgs)),
		ExportedAt:   now,
		ExportedFrom: appName,
	}
	for _, m := range msgs {
		doc.Messages = append(doc.Messages, exportMessage{Role: m.Role, Content: m.Content, Timestamp: m.CreatedAt})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func writeText(w io.Writer, s store.Session, msgs []store.Message, now time.Time) error {
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s ===\n\n", s.Title)
	fmt.Fprintf(&b, "Model: %s\n", modelName(s))
	fmt.Fprintf(&b, "Created: %s\n", s.CreatedAt.Local().Format(stampShort))
	fmt.Fprintf(&b, "Messages: %d\n", len(msgs))
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] (%s)\n%s\n\n%s\n\n", strings.ToUpper(roleLabel(m.Role)),
			m.CreatedAt.Local().Format("15:04:05"), m.Content, strings.Repeat("-", 30))
	}
	fmt.Fprintf(&b, "Exported from %s on %s\n", appName, now.Local().Format(stampLong))
	_, err := io.WriteString(w, b.String())
	return err
}
