package document

import (
	"encoding/json"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/doodle/internal/block"
)

// Op names a structural edit.
type Op string

// Edit operations accepted from editor clients.
const (
	OpUpdateText    Op = "update_text"
	OpToggleTodo    Op = "toggle_todo"
	OpInsertAfter   Op = "insert_after"
	OpDelete        Op = "delete"
	OpChangeType    Op = "change_type"
	OpMove          Op = "move"
	OpMoveTo        Op = "move_to"
	OpDuplicate     Op = "duplicate"
	OpContinue      Op = "continue"
	OpBackspace     Op = "backspace"
	OpInsertDivider Op = "insert_divider"
)

// Edit is a serializable edit command addressed to one block.
type Edit struct {
	Op        Op              `json:"op"`
	Index     int             `json:"index"`
	Text      *string         `json:"text,omitempty"`
	Block     json.RawMessage `json:"block,omitempty"`
	Target    Target          `json:"target,omitempty"`
	Direction int             `json:"direction,omitempty"`
	To        *int            `json:"to,omitempty"`
}

// Validate checks that the fields the operation needs are present.
func (e Edit) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Op, validation.Required, validation.In(
			OpUpdateText, OpToggleTodo, OpInsertAfter, OpDelete, OpChangeType, OpMove,
			OpMoveTo, OpDuplicate, OpContinue, OpBackspace, OpInsertDivider,
		)),
		validation.Field(&e.Text, validation.When(e.Op == OpUpdateText, validation.NotNil)),
		validation.Field(&e.Target, validation.When(e.Op == OpChangeType, validation.Required)),
		validation.Field(&e.Direction, validation.When(e.Op == OpMove, validation.Required, validation.In(-1, 1))),
		validation.Field(&e.To, validation.When(e.Op == OpMoveTo, validation.NotNil)),
	)
}

// Apply validates e and applies it to d. Out-of-range indices are no-ops,
// not errors; only malformed commands fail.
func (e Edit) Apply(d Document) (Document, error) {
	if err := e.Validate(); err != nil {
		return d, err
	}
	switch e.Op {
	case OpUpdateText:
		return d.UpdateText(e.Index, *e.Text), nil
	case OpToggleTodo:
		return d.ToggleTodo(e.Index), nil
	case OpInsertAfter:
		var b block.Block
		if len(e.Block) > 0 {
			decoded, err := block.Decode(e.Block)
			if err != nil {
				return d, err
			}
			b = decoded
		}
		return d.InsertAfter(e.Index, b), nil
	case OpDelete:
		return d.Delete(e.Index), nil
	case OpChangeType:
		return d.ChangeType(e.Index, e.Target), nil
	case OpMove:
		return d.Move(e.Index, e.Direction), nil
	case OpMoveTo:
		return d.MoveTo(e.Index, *e.To), nil
	case OpDuplicate:
		return d.Duplicate(e.Index), nil
	case OpContinue:
		return d.Continue(e.Index), nil
	case OpBackspace:
		return d.Backspace(e.Index), nil
	case OpInsertDivider:
		return d.InsertDivider(e.Index), nil
	default:
		return d, fmt.Errorf("document: unsupported op %q", e.Op)
	}
}
