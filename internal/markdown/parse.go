// Package markdown converts between flat markdown text and block sequences.
//
// The mapping is strictly one line per block. Blank lines produce no block;
// they only end a numbered-list run.
package markdown

import (
	"regexp"
	"strings"

	"github.com/starford/doodle/internal/block"
)

var (
	headingRe  = regexp.MustCompile(`^(#{1,6})\s(.*)$`)
	quoteRe    = regexp.MustCompile(`^>\s?(.*)$`)
	todoRe     = regexp.MustCompile(`^[-*]\s+\[([ xX])\](?:\s(.*))?$`)
	dividerRe  = regexp.MustCompile(`^---\s*$`)
	bulletRe   = regexp.MustCompile(`^[-*]\s(.*)$`)
	numberedRe = regexp.MustCompile(`^\d+\.\s(.*)$`)
)

// Parse splits text into lines and classifies each non-blank line.
// It never fails: unrecognised lines become paragraphs.
func Parse(text string) []block.Block {
	lines := strings.Split(text, "\n")
	out := make([]block.Block, 0, len(lines))
	counter := 1

	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			counter = 1
			continue
		}
		b := classify(line, counter)
		if n, ok := b.(block.Numbered); ok {
			counter = n.Index + 1
		} else {
			counter = 1
		}
		out = append(out, b)
	}
	return out
}

// classify returns the block for a single non-blank line. counter is the
// index a numbered line at this position receives.
//
// A line of exactly "---" is always a divider, so a paragraph whose whole
// text is "---" reads back as a divider.
func classify(line string, counter int) block.Block {
	if m := headingRe.FindStringSubmatch(line); m != nil {
		return block.Heading{Level: len(m[1]), Text: m[2]}
	}
	if m := quoteRe.FindStringSubmatch(line); m != nil {
		return block.Quote{Text: m[1]}
	}
	if m := todoRe.FindStringSubmatch(line); m != nil {
		return block.Todo{Checked: strings.EqualFold(m[1], "x"), Text: m[2]}
	}
	if dividerRe.MatchString(line) {
		return block.Divider{}
	}
	if m := bulletRe.FindStringSubmatch(line); m != nil {
		return block.Bullet{Text: m[1]}
	}
	if m := numberedRe.FindStringSubmatch(line); m != nil {
		return block.Numbered{Index: counter, Text: m[1]}
	}
	return block.Paragraph{Text: line}
}
