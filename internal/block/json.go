package block

import (
	"encoding/json"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var singleLineRe = regexp.MustCompile(`^[^\r\n]*$`)

// wire is the persisted JSON shape of a block: {"type": "...", ...fields}.
type wire struct {
	Type    string  `json:"type"`
	Level   *int    `json:"level,omitempty"`
	Index   *int    `json:"index,omitempty"`
	Checked *bool   `json:"checked,omitempty"`
	Text    *string `json:"text,omitempty"`
}

// Validate checks the fields required by the variant named in Type.
// Unknown types are accepted when they carry text; they decode to paragraphs.
func (w *wire) Validate() error {
	kind, ok := ParseKind(w.Type)
	textRule := validation.Match(singleLineRe).Error("must be a single line")
	if !ok {
		if w.Text != nil {
			return validation.ValidateStruct(w, validation.Field(&w.Text, textRule))
		}
		return fmt.Errorf("type: unknown block type %q", w.Type)
	}

	var rules []*validation.FieldRules
	if kind != KindDivider {
		rules = append(rules, validation.Field(&w.Text, validation.NotNil, textRule))
	}
	switch kind {
	case KindHeading:
		rules = append(rules, validation.Field(&w.Level, validation.Required, validation.Min(MinLevel), validation.Max(MaxLevel)))
	case KindNumbered:
		rules = append(rules, validation.Field(&w.Index, validation.Required, validation.Min(1)))
	case KindTodo:
		rules = append(rules, validation.Field(&w.Checked, validation.NotNil))
	}
	return validation.ValidateStruct(w, rules...)
}

func (w *wire) block() Block {
	text := ""
	if w.Text != nil {
		text = *w.Text
	}
	kind, ok := ParseKind(w.Type)
	if !ok {
		return Paragraph{Text: text}
	}
	switch kind {
	case KindHeading:
		return Heading{Level: *w.Level, Text: text}
	case KindNumbered:
		return Numbered{Index: *w.Index, Text: text}
	case KindTodo:
		return Todo{Checked: *w.Checked, Text: text}
	case KindBullet:
		return Bullet{Text: text}
	case KindQuote:
		return Quote{Text: text}
	case KindEmbed:
		return Embed{Text: text}
	case KindDivider:
		return Divider{}
	default:
		return Paragraph{Text: text}
	}
}

func toWire(b Block) wire {
	w := wire{Type: b.Kind().String()}
	text, ok := Text(b)
	if ok {
		w.Text = &text
	}
	switch v := b.(type) {
	case Heading:
		w.Level = &v.Level
	case Numbered:
		w.Index = &v.Index
	case Todo:
		w.Checked = &v.Checked
	}
	return w
}

func (b Heading) MarshalJSON() ([]byte, error)   { return json.Marshal(toWire(b)) }
func (b Paragraph) MarshalJSON() ([]byte, error) { return json.Marshal(toWire(b)) }
func (b Bullet) MarshalJSON() ([]byte, error)    { return json.Marshal(toWire(b)) }
func (b Numbered) MarshalJSON() ([]byte, error)  { return json.Marshal(toWire(b)) }
func (b Todo) MarshalJSON() ([]byte, error)      { return json.Marshal(toWire(b)) }
func (b Quote) MarshalJSON() ([]byte, error)     { return json.Marshal(toWire(b)) }
func (b Embed) MarshalJSON() ([]byte, error)     { return json.Marshal(toWire(b)) }
func (b Divider) MarshalJSON() ([]byte, error)   { return json.Marshal(toWire(b)) }

// Decode parses and validates a single JSON-encoded block.
func Decode(data []byte) (Block, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("block: decode: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("block: invalid %q: %w", w.Type, err)
	}
	return w.block(), nil
}

// DecodeList parses and validates a JSON array of blocks.
func DecodeList(data []byte) ([]Block, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("block: decode list: %w", err)
	}
	out := make([]Block, 0, len(raws))
	for i, raw := range raws {
		b, err := Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}
