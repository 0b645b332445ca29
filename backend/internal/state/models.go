package state

import (
	"fmt"
	"strconv"
	"strings"
)

// Snippet is a single retrieved memory entry
type Snippet struct {
	ID         string            `json:"id,omitempty"`
	Content    string            `json:"content"`
	Rank       int               `json:"rank"` // 1 = most similar
	Similarity float32           `json:"similarity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Validate checks if the Snippet is valid
func (s Snippet) Validate() error {
	if s.Rank < 1 {
		return ErrInvalidSnippet{Rank: s.Rank, Reason: "rank must start at 1"}
	}
	return nil
}

// MemoryContext is the ordered result of one retrieval, most similar first.
// It is built fresh per query and never cached.
type MemoryContext []Snippet

// Len returns the number of snippets
func (mc MemoryContext) Len() int {
	return len(mc)
}

// Texts returns the snippet contents in rank order
func (mc MemoryContext) Texts() []string {
	texts := make([]string, 0, len(mc))
	for _, s := range mc {
		texts = append(texts, s.Content)
	}
	return texts
}

// String renders the context as a bracketed list of quoted snippets,
// e.g. ["Q1 revenue was $5M", "Q2 revenue was $6M"]. Empty renders as [].
func (mc MemoryContext) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, s := range mc {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Quote(s.Content))
	}
	b.WriteByte(']')
	return b.String()
}

// Truncate returns the first n snippets
func (mc MemoryContext) Truncate(n int) MemoryContext {
	if n < 0 {
		n = 0
	}
	if n >= len(mc) {
		return mc
	}
	return mc[:n]
}

// Validate checks ranks are contiguous starting at 1
func (mc MemoryContext) Validate() error {
	for i, s := range mc {
		if err := s.Validate(); err != nil {
			return err
		}
		if s.Rank != i+1 {
			return ErrInvalidSnippet{Rank: s.Rank, Reason: fmt.Sprintf("expected rank %d", i+1)}
		}
	}
	return nil
}

// FromTexts builds a MemoryContext from plain strings, ranked in order
func FromTexts(texts ...string) MemoryContext {
	mc := make(MemoryContext, 0, len(texts))
	for i, t := range texts {
		mc = append(mc, Snippet{Content: t, Rank: i + 1})
	}
	return mc
}

// Errors

type ErrInvalidSnippet struct {
	Rank   int
	Reason string
}

func (e ErrInvalidSnippet) Error() string {
	return fmt.Sprintf("invalid snippet (rank %d): %s", e.Rank, e.Reason)
}
