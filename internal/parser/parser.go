// Package parser derives the indexable metadata of a note (title, tags and
// plain text) from its markdown content.
package parser

import (
	"regexp"
	"strings"

	"github.com/starford/doodle/internal/block"
	"github.com/starford/doodle/internal/document"
)

// Untitled is the title of a note without a non-empty heading.
const Untitled = "Untitled"

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Result holds the output of parsing a note.
type Result struct {
	Doc   document.Document
	Title string
	Tags  []string
	// Text is the block text without markdown markers, one block per line.
	Text string
}

// Parse parses content into its document and derived metadata.
func Parse(content string) *Result {
	return FromDocument(document.FromMarkdown(content))
}

// FromDocument derives metadata from an already parsed document.
func FromDocument(doc document.Document) *Result {
	return &Result{
		Doc:   doc,
		Title: deriveTitle(doc),
		Tags:  extractTags(doc),
		Text:  plainText(doc),
	}
}

// deriveTitle returns the text of the first non-empty heading.
func deriveTitle(doc document.Document) string {
	for _, b := range doc {
		if h, ok := b.(block.Heading); ok {
			if t := strings.TrimSpace(h.Text); t != "" {
				return t
			}
		}
	}
	return Untitled
}

// extractTags collects deduplicated #tags from block text in order of appearance.
func extractTags(doc document.Document) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, b := range doc {
		text, ok := block.Text(b)
		if !ok {
			continue
		}
		for _, m := range tagRe.FindAllStringSubmatch(text, -1) {
			t := m[1]
			if _, dup := seen[t]; !dup {
				seen[t] = struct{}{}
				out = append(out, t)
			}
		}
	}
	return out
}

func plainText(doc document.Document) string {
	lines := make([]string, 0, len(doc))
	for _, b := range doc {
		if text, ok := block.Text(b); ok && text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}
