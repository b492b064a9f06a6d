// Package chat turns a conversation into a prompt, streams the completion
// from the loaded session and reports generation statistics.
package chat

import (
	"strings"
	"time"
)

// Role of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole maps a role name to a Role. Unknown names are treated as user.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "system":
		return RoleSystem
	case "assistant":
		return RoleAssistant
	default:
		return RoleUser
	}
}

// Message is one conversation turn.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
	// Streaming is set by callers while the message is still being produced.
	Streaming bool
}

// AssistantCue ends every prompt; the model continues from it.
const AssistantCue = "### Assistant:"

// retrievalInstruction introduces retrieved text in the system section.
const retrievalInstruction = "Use the following context from the user's documents to answer when it is relevant:"

func header(r Role) string {
	switch r {
	case RoleSystem:
		return "### System:"
	case RoleAssistant:
		return "### Assistant:"
	default:
		return "### User:"
	}
}

// BuildPrompt renders msgs with role headers and appends the assistant cue.
// Non-empty retrieved text is added to the first system message, or to a
// new leading system message when there is none.
func BuildPrompt(msgs []Message, retrieved string) string {
	msgs = withRetrieval(msgs, retrieved)
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(header(m.Role))
		b.WriteByte('\n')
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	b.WriteString(AssistantCue)
	return b.String()
}

func withRetrieval(msgs []Message, retrieved string) []Message {
	retrieved = strings.TrimSpace(retrieved)
	if retrieved == "" {
		return msgs
	}
	block := retrievalInstruction + "\n" + retrieved
	out := make([]Message, len(msgs), len(msgs)+1)
	copy(out, msgs)
	for i := range out {
		if out[i].Role == RoleSystem {
			out[i].Content = strings.TrimRight(out[i].Content, "\n") + "\n\n" + block
			return out
		}
	}
	return append([]Message{{Role: RoleSystem, Content: block}}, out...)
}

// LatestUserMessage returns the content of the last user turn.
func LatestUserMessage(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}
