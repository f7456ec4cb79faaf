package markdown

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/starford/doodle/internal/block"
)

func TestParse_TitleTodosAndParagraph(t *testing.T) {
	got := Parse("# Title\n\n- [ ] buy milk\n- [x] call mom\nhello")
	assert.Equal(t, []block.Block{
		block.Heading{Level: 1, Text: "Title"},
		block.Todo{Checked: false, Text: "buy milk"},
		block.Todo{Checked: true, Text: "call mom"},
		block.Paragraph{Text: "hello"},
	}, got)
}

func TestParse_CRLF(t *testing.T) {
	got := Parse("## Plan\r\n- one\r\n> said\r\n")
	assert.Equal(t, []block.Block{
		block.Heading{Level: 2, Text: "Plan"},
		block.Bullet{Text: "one"},
		block.Quote{Text: "said"},
	}, got)
}

func TestParse_Empty(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("\n\n  \n\r\n"))
}

func TestParse_HeadingLevels(t *testing.T) {
	got := Parse("###### six\n####### seven\n#nospace")
	assert.Equal(t, []block.Block{
		block.Heading{Level: 6, Text: "six"},
		block.Paragraph{Text: "####### seven"},
		block.Paragraph{Text: "#nospace"},
	}, got)
}

func TestParse_TodoVariants(t *testing.T) {
	got := Parse("* [X] upper\n- [x]glued\n- [ ]\n- [y] other")
	assert.Equal(t, []block.Block{
		block.Todo{Checked: true, Text: "upper"},
		block.Bullet{Text: "[x]glued"},
		block.Todo{Checked: false, Text: ""},
		block.Bullet{Text: "[y] other"},
	}, got)
}

func TestParse_NumberingRenumbersFromOne(t *testing.T) {
	got := Parse("5. a\n9. b\n1. c")
	assert.Equal(t, []block.Block{
		block.Numbered{Index: 1, Text: "a"},
		block.Numbered{Index: 2, Text: "b"},
		block.Numbered{Index: 3, Text: "c"},
	}, got)
}

func TestParse_NumberingResets(t *testing.T) {
	got := Parse("1. a\n2. b\n\n1. c\nbreak\n1. d\n- x\n7. e")
	indices := []int{}
	for _, b := range got {
		if n, ok := b.(block.Numbered); ok {
			indices = append(indices, n.Index)
		}
	}
	assert.Equal(t, []int{1, 2, 1, 1, 1}, indices)
}

func TestParse_Precedence(t *testing.T) {
	got := Parse("# > not a quote\n> - not a bullet\n- 1. not numbered\n1. - not bullet\n---\n-not bullet\n**bold**")
	assert.Equal(t, []block.Block{
		block.Heading{Level: 1, Text: "> not a quote"},
		block.Quote{Text: "- not a bullet"},
		block.Bullet{Text: "1. not numbered"},
		block.Numbered{Index: 1, Text: "- not bullet"},
		block.Divider{},
		block.Paragraph{Text: "-not bullet"},
		block.Paragraph{Text: "**bold**"},
	}, got)
}

func TestParse_KeepsIndentedLinesVerbatim(t *testing.T) {
	got := Parse("  - nested\n\tcode")
	assert.Equal(t, []block.Block{
		block.Paragraph{Text: "  - nested"},
		block.Paragraph{Text: "\tcode"},
	}, got)
}

func TestSerialize_MixedList(t *testing.T) {
	got := Serialize([]block.Block{
		block.Bullet{Text: "a"},
		block.Numbered{Index: 1, Text: "b"},
		block.Divider{},
		block.Paragraph{Text: "c"},
	})
	assert.Equal(t, "- a\n1. b\n---\nc", got)
}

func TestSerialize_AllVariants(t *testing.T) {
	got := Serialize([]block.Block{
		block.Heading{Level: 2, Text: "H"},
		block.Heading{Level: 12, Text: "deep"},
		block.Todo{Checked: true, Text: "done"},
		block.Todo{Text: "open"},
		block.Quote{Text: "q"},
		block.Embed{Text: "https://example.com/v"},
		block.Paragraph{Text: ""},
	})
	assert.Equal(t, "## H\n###### deep\n- [x] done\n- [ ] open\n> q\nhttps://example.com/v\n", got)
}

func TestSerialize_Empty(t *testing.T) {
	assert.Equal(t, "", Serialize(nil))
}

func TestRoundTrip(t *testing.T) {
	blocks := []block.Block{
		block.Heading{Level: 3, Text: "Groceries"},
		block.Todo{Text: "milk"},
		block.Todo{Checked: true, Text: "eggs"},
		block.Bullet{Text: "bread"},
		block.Numbered{Index: 1, Text: "first"},
		block.Numbered{Index: 2, Text: "second"},
		block.Quote{Text: "  spaced quote"},
		block.Divider{},
		block.Paragraph{Text: "done"},
	}
	assert.Equal(t, blocks, Parse(Serialize(blocks)))
}

func TestRoundTrip_Random(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		blocks := randomBlocks(rng, 1+rng.Intn(12))
		require.Equal(t, blocks, Parse(Serialize(blocks)), "iteration %d", i)
	}
}

// randomBlocks builds sequences whose text cannot be mistaken for markup, with
// numbered runs indexed from 1.
func randomBlocks(rng *rand.Rand, n int) []block.Block {
	out := make([]block.Block, 0, n)
	run := 0
	for i := 0; i < n; i++ {
		word := fmt.Sprintf("w%d", rng.Intn(1000))
		var b block.Block
		switch rng.Intn(7) {
		case 0:
			b = block.Heading{Level: 1 + rng.Intn(6), Text: word}
		case 1:
			b = block.Paragraph{Text: word}
		case 2:
			b = block.Bullet{Text: word}
		case 3:
			run++
			out = append(out, block.Numbered{Index: run, Text: word})
			continue
		case 4:
			b = block.Todo{Checked: rng.Intn(2) == 0, Text: word}
		case 5:
			b = block.Quote{Text: word}
		default:
			b = block.Divider{}
		}
		run = 0
		out = append(out, b)
	}
	return out
}

// The serialized form must also read as the same structure to a CommonMark parser.
func TestSerialize_CommonMarkStructure(t *testing.T) {
	src := []byte(Serialize([]block.Block{
		block.Heading{Level: 2, Text: "Plan"},
		block.Numbered{Index: 1, Text: "a"},
		block.Numbered{Index: 2, Text: "b"},
	}))
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	var headings []int
	var ordered []int
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Heading:
			headings = append(headings, v.Level)
		case *ast.List:
			if v.IsOrdered() {
				ordered = append(ordered, v.ChildCount())
			}
		}
		return ast.WalkContinue, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, headings)
	assert.Equal(t, []int{2}, ordered)
}
