package chat

import "strings"

// StopSequences end generation when the model starts a new turn.
var StopSequences = []string{"User:", "\nUser:", "###", "Human:", "\nHuman:", "### User", "### Human"}

// artifacts leak through when a stop sequence is split across tokens.
var artifacts = []string{"\n### ", "### ", "###", "User:", "Human:", "Assistant:"}

// StripArtifacts removes role markers and template delimiters from a token.
// It repeats until nothing changes, so StripArtifacts(StripArtifacts(s)) ==
// StripArtifacts(s).
func StripArtifacts(s string) string {
	for {
		out := s
		for _, a := range artifacts {
			out = strings.ReplaceAll(out, a, "")
		}
		if out == s {
			return out
		}
		s = out
	}
}
