// Package block defines the line-level units a note document is made of.
//
// Block is a closed sum type: the only implementations are the variant
// structs declared in this file. Consumers switch over the concrete types;
// every such switch ends in a default case that panics via Unknown, so a new
// variant surfaces at the first call site that was not updated.
package block

import (
	"fmt"
	"strings"
)

// Kind identifies a block variant.
type Kind int

const (
	KindParagraph Kind = iota
	KindHeading
	KindBullet
	KindNumbered
	KindTodo
	KindQuote
	KindEmbed
	KindDivider
)

var kindNames = [...]string{
	KindParagraph: "paragraph",
	KindHeading:   "heading",
	KindBullet:    "bullet",
	KindNumbered:  "numbered",
	KindTodo:      "todo",
	KindQuote:     "quote",
	KindEmbed:     "embed",
	KindDivider:   "divider",
}

// String returns the wire name of the kind ("heading", "todo", ...).
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a wire name back to a Kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return 0, false
}

// Heading levels.
const (
	MinLevel = 1
	MaxLevel = 6
)

// Block is one structural unit of a document.
type Block interface {
	Kind() Kind
	sealed()
}

// Heading is a "#"-prefixed title line.
type Heading struct {
	Level int
	Text  string
}

// Paragraph is plain text and the fallback for anything unrecognised.
type Paragraph struct {
	Text string
}

// Bullet is an unordered list item.
type Bullet struct {
	Text string
}

// Numbered is an ordered list item. Index is derived from its position in a
// run of consecutive numbered blocks.
type Numbered struct {
	Index int
	Text  string
}

// Todo is a checkbox item.
type Todo struct {
	Checked bool
	Text    string
}

// Quote is a blockquote line.
type Quote struct {
	Text string
}

// Embed is a raw URL or line, written out verbatim.
type Embed struct {
	Text string
}

// Divider is a horizontal rule. It holds no text.
type Divider struct{}

func (Heading) Kind() Kind   { return KindHeading }
func (Paragraph) Kind() Kind { return KindParagraph }
func (Bullet) Kind() Kind    { return KindBullet }
func (Numbered) Kind() Kind  { return KindNumbered }
func (Todo) Kind() Kind      { return KindTodo }
func (Quote) Kind() Kind     { return KindQuote }
func (Embed) Kind() Kind     { return KindEmbed }
func (Divider) Kind() Kind   { return KindDivider }

func (Heading) sealed()   {}
func (Paragraph) sealed() {}
func (Bullet) sealed()    {}
func (Numbered) sealed()  {}
func (Todo) sealed()      {}
func (Quote) sealed()     {}
func (Embed) sealed()     {}
func (Divider) sealed()   {}

// Unknown panics for a Block implementation outside this package's variant
// set. It is the default branch of every exhaustive type switch.
func Unknown(b Block) {
	panic(fmt.Sprintf("block: unhandled variant %T", b))
}

// Empty returns the empty paragraph used for blank documents and default inserts.
func Empty() Block {
	return Paragraph{}
}

// Text returns the text carried by b. ok is false for dividers.
func Text(b Block) (text string, ok bool) {
	switch v := b.(type) {
	case Heading:
		return v.Text, true
	case Paragraph:
		return v.Text, true
	case Bullet:
		return v.Text, true
	case Numbered:
		return v.Text, true
	case Todo:
		return v.Text, true
	case Quote:
		return v.Text, true
	case Embed:
		return v.Text, true
	case Divider:
		return "", false
	default:
		Unknown(b)
		return "", false
	}
}

// lineBreaks folds every line terminator into a single space.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// SingleLine returns text with its line breaks replaced by spaces. A block
// is exactly one line of a note, so block text never spans lines.
func SingleLine(text string) string {
	if !strings.ContainsAny(text, "\r\n") {
		return text
	}
	return lineBreaks.Replace(text)
}

// WithText returns a copy of b carrying text folded onto one line.
// Dividers are returned unchanged.
func WithText(b Block, text string) Block {
	text = SingleLine(text)
	switch v := b.(type) {
	case Heading:
		v.Text = text
		return v
	case Paragraph:
		v.Text = text
		return v
	case Bullet:
		v.Text = text
		return v
	case Numbered:
		v.Text = text
		return v
	case Todo:
		v.Text = text
		return v
	case Quote:
		v.Text = text
		return v
	case Embed:
		v.Text = text
		return v
	case Divider:
		return v
	default:
		Unknown(b)
		return b
	}
}

// ClampLevel bounds a heading level to [MinLevel, MaxLevel].
func ClampLevel(level int) int {
	return max(MinLevel, min(level, MaxLevel))
}
