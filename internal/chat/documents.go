package chat

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
)

const (
	chunkSize      = 500
	maxChunks      = 3
	fallbackDocs   = 2
	minKeywordSize = 4
)

// Plain-text document extensions accepted by AddFile.
var textExtensions = []string{".txt", ".md", ".csv", ".json", ".xml"}

type document struct {
	name   string
	chunks []string
}

// KeywordIndex is an in-memory Retriever that scores paragraph chunks by
// keyword overlap with the query.
type KeywordIndex struct {
	mu   sync.RWMutex
	docs []document
}

// NewKeywordIndex returns an empty index.
func NewKeywordIndex() *KeywordIndex { return &KeywordIndex{} }

// AddFile reads a plain-text file and indexes it under its base name.
func (x *KeywordIndex) AddFile(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(textExtensions, ext) {
		return fmt.Errorf("unsupported document type %q", ext)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	x.Add(filepath.Base(path), string(b))
	return nil
}

// Add indexes content under name, replacing any document with that name.
func (x *KeywordIndex) Add(name, content string) {
	doc := document{name: name, chunks: chunkParagraphs(content)}
	x.mu.Lock()
	defer x.mu.Unlock()
	for i := range x.docs {
		if x.docs[i].name == name {
			x.docs[i] = doc
			return
		}
	}
	x.docs = append(x.docs, doc)
}

// Remove drops the named document.
func (x *KeywordIndex) Remove(name string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.docs = slices.DeleteFunc(x.docs, func(d document) bool { return d.name == name })
}

// Names lists indexed documents in insertion order.
func (x *KeywordIndex) Names() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, len(x.docs))
	for i, d := range x.docs {
		out[i] = d.name
	}
	return out
}

// ContextForQuery returns up to three best-matching chunks. With no match
// it falls back to the opening chunk of the first two documents.
func (x *KeywordIndex) ContextForQuery(query string) string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if len(x.docs) == 0 {
		return ""
	}

	keywords := map[string]struct{}{}
	for _, w := range splitWords(query) {
		if len(w) >= minKeywordSize {
			keywords[w] = struct{}{}
		}
	}

	type hit struct {
		doc   string
		chunk string
		score int
	}
	var hits []hit
	for _, d := range x.docs {
		for _, c := range d.chunks {
			seen := map[string]struct{}{}
			score := 0
			for _, w := range splitWords(c) {
				if _, ok := keywords[w]; !ok {
					continue
				}
				if _, dup := seen[w]; !dup {
					seen[w] = struct{}{}
					score++
				}
			}
			if score > 0 {
				hits = append(hits, hit{d.name, c, score})
			}
		}
	}

	var b strings.Builder
	if len(hits) == 0 {
		for i, d := range x.docs {
			if i == fallbackDocs {
				break
			}
			if len(d.chunks) > 0 {
				fmt.Fprintf(&b, "[From %s]:\n%s\n\n", d.name, d.chunks[0])
			}
		}
		return b.String()
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > maxChunks {
		hits = hits[:maxChunks]
	}
	b.WriteString("--- DOCUMENT CONTEXT ---\n")
	for _, h := range hits {
		fmt.Fprintf(&b, "[From %s]:\n%s\n\n", h.doc, h.chunk)
	}
	b.WriteString("--- END CONTEXT ---\n")
	return b.String()
}

func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		switch r {
		case ' ', '.', ',', '?', '!', '\n', '\r', '\t':
			return true
		}
		return false
	})
}

// chunkParagraphs groups non-empty lines into chunks of roughly chunkSize
// bytes.
func chunkParagraphs(content string) []string {
	var chunks []string
	var cur strings.Builder
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(line) > chunkSize {
			chunks = append(chunks, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	if cur.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(cur.String()))
	}
	return chunks
}
