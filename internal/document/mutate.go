package document

import (
	"github.com/starford/doodle/internal/block"
)

// Target names a block type a block can be changed into.
type Target string

// Block type change targets.
const (
	TargetH1        Target = "h1"
	TargetH2        Target = "h2"
	TargetH3        Target = "h3"
	TargetParagraph Target = "paragraph"
	TargetBullet    Target = "bullet"
	TargetNumbered  Target = "numbered"
	TargetTodo      Target = "todo"
	TargetQuote     Target = "quote"
	TargetEmbed     Target = "embed"
	TargetDivider   Target = "divider"
)

// Targets lists every change-type target in menu order.
func Targets() []Target {
	return []Target{
		TargetH1, TargetH2, TargetH3, TargetParagraph, TargetBullet,
		TargetNumbered, TargetTodo, TargetQuote, TargetEmbed, TargetDivider,
	}
}

// UpdateText replaces the text of block i. Dividers are left alone.
func (d Document) UpdateText(i int, text string) Document {
	if !d.valid(i) {
		return d
	}
	if _, ok := block.Text(d[i]); !ok {
		return d
	}
	out := d.clone()
	out[i] = block.WithText(out[i], text)
	return normalize(out)
}

// ToggleTodo flips the checked state of todo block i.
func (d Document) ToggleTodo(i int) Document {
	if !d.valid(i) {
		return d
	}
	todo, ok := d[i].(block.Todo)
	if !ok {
		return d
	}
	todo.Checked = !todo.Checked
	out := d.clone()
	out[i] = todo
	return normalize(out)
}

// SetTodo sets the checked state of todo block i.
func (d Document) SetTodo(i int, checked bool) Document {
	if todo, ok := d.todoAt(i); ok && todo.Checked != checked {
		return d.ToggleTodo(i)
	}
	return d
}

func (d Document) todoAt(i int) (block.Todo, bool) {
	if !d.valid(i) {
		return block.Todo{}, false
	}
	todo, ok := d[i].(block.Todo)
	return todo, ok
}

// InsertAfter inserts b after block i. A nil b inserts an empty paragraph.
// A numbered block placed right after another numbered block continues its count.
func (d Document) InsertAfter(i int, b block.Block) Document {
	if !d.valid(i) {
		return d
	}
	if b == nil {
		b = block.Empty()
	}
	if n, ok := b.(block.Numbered); ok {
		if prev, ok := d[i].(block.Numbered); ok {
			n.Index = prev.Index + 1
			b = n
		}
	}
	out := make(Document, 0, len(d)+1)
	out = append(out, d[:i+1]...)
	out = append(out, b)
	out = append(out, d[i+1:]...)
	return normalize(out)
}

// Append adds b after the last block.
func (d Document) Append(b block.Block) Document {
	if len(d) == 0 {
		return New(b)
	}
	return d.InsertAfter(len(d)-1, b)
}

// Delete removes block i. Deleting the only block leaves an empty paragraph.
func (d Document) Delete(i int) Document {
	if !d.valid(i) {
		return d
	}
	out := make(Document, 0, len(d)-1)
	out = append(out, d[:i]...)
	out = append(out, d[i+1:]...)
	return normalize(out)
}

// ChangeType replaces block i with a block of the target type, keeping its text.
// Unknown targets produce a paragraph. Dividers drop the text.
func (d Document) ChangeType(i int, target Target) Document {
	if !d.valid(i) {
		return d
	}
	text, _ := block.Text(d[i])
	out := d.clone()
	out[i] = convert(target, text)
	return normalize(out)
}

func convert(target Target, text string) block.Block {
	switch target {
	case TargetH1:
		return block.Heading{Level: 1, Text: text}
	case TargetH2:
		return block.Heading{Level: 2, Text: text}
	case TargetH3:
		return block.Heading{Level: 3, Text: text}
	case TargetTodo:
		return block.Todo{Checked: false, Text: text}
	case TargetBullet:
		return block.Bullet{Text: text}
	case TargetNumbered:
		return block.Numbered{Index: 1, Text: text}
	case TargetQuote:
		return block.Quote{Text: text}
	case TargetEmbed:
		return block.Embed{Text: text}
	case TargetDivider:
		return block.Divider{}
	default:
		return block.Paragraph{Text: text}
	}
}

// Move swaps block i with its neighbour at i+dir. dir must be -1 or +1.
func (d Document) Move(i, dir int) Document {
	if dir != -1 && dir != 1 {
		return d
	}
	j := i + dir
	if !d.valid(i) || !d.valid(j) {
		return d
	}
	out := d.clone()
	out[i], out[j] = out[j], out[i]
	return normalize(out)
}

// MoveTo relocates block from to position to by single-step moves, the way
// a drag-and-drop in the editor is applied.
func (d Document) MoveTo(from, to int) Document {
	if !d.valid(from) || !d.valid(to) || from == to {
		return d
	}
	dir := 1
	if to < from {
		dir = -1
	}
	out := d
	for i := from; i != to; i += dir {
		out = out.Move(i, dir)
	}
	return out
}

// Duplicate inserts a copy of block i right after it.
func (d Document) Duplicate(i int) Document {
	if !d.valid(i) {
		return d
	}
	return d.InsertAfter(i, d[i])
}

// Continue inserts the block the Enter key produces after block i: list
// items continue their list, everything else starts a paragraph.
func (d Document) Continue(i int) Document {
	if !d.valid(i) {
		return d
	}
	var next block.Block
	switch d[i].(type) {
	case block.Bullet:
		next = block.Bullet{}
	case block.Numbered:
		next = block.Numbered{Index: 1}
	case block.Todo:
		next = block.Todo{}
	}
	return d.InsertAfter(i, next)
}

// Backspace applies the editor's backspace-at-line-start rule to block i:
// list items become paragraphs, other blocks are removed unless they are
// the only block left.
func (d Document) Backspace(i int) Document {
	if !d.valid(i) {
		return d
	}
	switch d[i].(type) {
	case block.Bullet, block.Numbered, block.Todo:
		return d.ChangeType(i, TargetParagraph)
	}
	if len(d) == 1 {
		return d
	}
	return d.Delete(i)
}

// InsertDivider changes block i into a divider and adds an empty paragraph
// after it so the cursor has somewhere to land.
func (d Document) InsertDivider(i int) Document {
	if !d.valid(i) {
		return d
	}
	return d.ChangeType(i, TargetDivider).InsertAfter(i, nil)
}

// Todos returns the positions of every todo block.
func (d Document) Todos() []int {
	var out []int
	for i, b := range d {
		if _, ok := b.(block.Todo); ok {
			out = append(out, i)
		}
	}
	return out
}
