// Package document holds the ordered block sequence of a note and the
// structural operations that edit it.
//
// Every operation returns a new Document and leaves the receiver untouched.
// Results always satisfy these invariants: at least one block, numbered
// indices counted from 1 within each consecutive run, heading levels in [1,6],
// and block text without line breaks.
package document

import (
	"encoding/json"

	"github.com/starford/doodle/internal/block"
	"github.com/starford/doodle/internal/markdown"
)

// Document is an ordered block sequence; order is line order.
type Document []block.Block

// New returns a normalized copy of blocks.
func New(blocks ...block.Block) Document {
	return normalize(Document(blocks).clone())
}

// Blank returns the single-empty-paragraph document.
func Blank() Document {
	return Document{block.Empty()}
}

// FromMarkdown parses text into a normalized document.
func FromMarkdown(text string) Document {
	return normalize(Document(markdown.Parse(text)))
}

// Markdown serializes the document.
func (d Document) Markdown() string {
	return markdown.Serialize(d)
}

// Len returns the number of blocks.
func (d Document) Len() int {
	return len(d)
}

// At returns the block at i, or false when i is out of range.
func (d Document) At(i int) (block.Block, bool) {
	if !d.valid(i) {
		return nil, false
	}
	return d[i], true
}

func (d Document) valid(i int) bool {
	return i >= 0 && i < len(d)
}

func (d Document) clone() Document {
	out := make(Document, len(d))
	copy(out, d)
	return out
}

// MarshalJSON encodes the document as a JSON array of blocks.
func (d Document) MarshalJSON() ([]byte, error) {
	return json.Marshal([]block.Block(d))
}

// UnmarshalJSON decodes and validates a JSON array of blocks.
func (d *Document) UnmarshalJSON(data []byte) error {
	blocks, err := block.DecodeList(data)
	if err != nil {
		return err
	}
	*d = Document(blocks)
	return nil
}

// normalize enforces the document invariants in place and returns d.
func normalize(d Document) Document {
	if len(d) == 0 {
		return Blank()
	}
	run := 0
	for i, b := range d {
		if text, ok := block.Text(b); ok && text != block.SingleLine(text) {
			b = block.WithText(b, text)
			d[i] = b
		}
		switch v := b.(type) {
		case block.Numbered:
			run++
			v.Index = run
			d[i] = v
			continue
		case block.Heading:
			v.Level = block.ClampLevel(v.Level)
			d[i] = v
		case block.Paragraph, block.Bullet, block.Todo, block.Quote, block.Embed, block.Divider:
		default:
			block.Unknown(b)
		}
		run = 0
	}
	return d
}
