// Package chunk splits document content into ordered fragments for ingestion.
package chunk

import (
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/consolidator/internal/model"
)

// DefaultMaxChars is the default upper bound on a chunk's length in runes
const DefaultMaxChars = 1500

// MetaHeading is the chunk metadata key holding the nearest preceding markdown heading
const MetaHeading = "heading"

// Chunker packs paragraphs into chunks of at most maxChars runes.
// Indices are zero-based and depend only on the content and maxChars, so
// re-chunking the same content yields the same dedup keys.
type Chunker struct {
	maxChars int
}

// Option configures the chunker
type Option func(*Chunker)

// WithMaxChars sets the chunk size bound
func WithMaxChars(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxChars = n
		}
	}
}

// New creates a chunker
func New(opts ...Option) *Chunker {
	c := &Chunker{maxChars: DefaultMaxChars}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxChars returns the chunk size bound
func (c *Chunker) MaxChars() int {
	return c.maxChars
}

// Split chunks the content of doc. Empty content produces no chunks.
func (c *Chunker) Split(doc model.Document) []model.ChunkRecord {
	var (
		chunks  []model.ChunkRecord
		buf     strings.Builder
		heading string
		bufHead string
	)

	flush := func() {
		text := strings.TrimSpace(buf.String())
		buf.Reset()
		if text == "" {
			return
		}
		rec := model.ChunkRecord{
			DocumentID: doc.ID,
			Index:      len(chunks),
			Text:       text,
		}
		if bufHead != "" {
			rec.Metadata = map[string]string{MetaHeading: bufHead}
		}
		chunks = append(chunks, rec)
	}

	for _, para := range paragraphs(doc.Content) {
		if h, ok := markdownHeading(para); ok {
			// A heading starts a new chunk
			flush()
			heading = h
		}

		for _, piece := range c.splitLong(para) {
			size := utf8.RuneCountInString(piece)
			if buf.Len() > 0 && utf8.RuneCountInString(buf.String())+2+size > c.maxChars {
				flush()
			}
			if buf.Len() == 0 {
				bufHead = heading
			} else {
				buf.WriteString("\n\n")
			}
			buf.WriteString(piece)
		}
	}
	flush()
	return chunks
}

// paragraphs splits on blank lines, dropping empty paragraphs
func paragraphs(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(content, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitLong breaks a paragraph longer than maxChars at word boundaries.
// A single word longer than maxChars is cut hard.
func (c *Chunker) splitLong(para string) []string {
	if utf8.RuneCountInString(para) <= c.maxChars {
		return []string{para}
	}

	var (
		out  []string
		cur  []rune
		word []rune
	)
	emit := func() {
		if s := strings.TrimSpace(string(cur)); s != "" {
			out = append(out, s)
		}
		cur = cur[:0]
	}
	addWord := func() {
		for len(word) > c.maxChars {
			emit()
			out = append(out, string(word[:c.maxChars]))
			word = word[c.maxChars:]
		}
		if len(cur)+1+len(word) > c.maxChars {
			emit()
		}
		if len(cur) > 0 {
			cur = append(cur, ' ')
		}
		cur = append(cur, word...)
		word = word[:0]
	}

	for _, r := range para {
		if r == ' ' || r == '\n' || r == '\t' {
			if len(word) > 0 {
				addWord()
			}
			continue
		}
		word = append(word, r)
	}
	if len(word) > 0 {
		addWord()
	}
	emit()
	return out
}

func markdownHeading(para string) (string, bool) {
	line := para
	if i := strings.IndexByte(para, '\n'); i >= 0 {
		line = para[:i]
	}
	rest := strings.TrimLeft(line, "#")
	level := len(line) - len(rest)
	if level == 0 || level > 6 || !strings.HasPrefix(rest, " ") {
		return "", false
	}
	text := strings.TrimSpace(rest)
	return text, text != ""
}
