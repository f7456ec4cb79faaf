package markdown

import (
	"strconv"
	"strings"

	"github.com/starford/doodle/internal/block"
)

// Divider is the line a divider block serializes to.
const Divider = "---"

// Serialize writes one line per block, joined by "\n", without a trailing newline.
func Serialize(blocks []block.Block) string {
	var sb strings.Builder
	for i, b := range blocks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		writeLine(&sb, b)
	}
	return sb.String()
}

func writeLine(sb *strings.Builder, b block.Block) {
	switch v := b.(type) {
	case block.Heading:
		sb.WriteString(strings.Repeat("#", block.ClampLevel(v.Level)))
		sb.WriteByte(' ')
		sb.WriteString(v.Text)
	case block.Todo:
		if v.Checked {
			sb.WriteString("- [x] ")
		} else {
			sb.WriteString("- [ ] ")
		}
		sb.WriteString(v.Text)
	case block.Bullet:
		sb.WriteString("- ")
		sb.WriteString(v.Text)
	case block.Numbered:
		sb.WriteString(strconv.Itoa(v.Index))
		sb.WriteString(". ")
		sb.WriteString(v.Text)
	case block.Quote:
		sb.WriteString("> ")
		sb.WriteString(v.Text)
	case block.Embed:
		sb.WriteString(v.Text)
	case block.Divider:
		sb.WriteString(Divider)
	case block.Paragraph:
		sb.WriteString(v.Text)
	default:
		block.Unknown(b)
	}
}
