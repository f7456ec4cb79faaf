// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes doodle note and todo tools for LLM agents via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/doodle/internal/apperr"
	"github.com/starford/doodle/internal/block"
	"github.com/starford/doodle/internal/document"
	"github.com/starford/doodle/internal/feed"
	"github.com/starford/doodle/internal/index"
	"github.com/starford/doodle/internal/noteservice"
)

// NoteFormatURI is the resource URI of the note format contract.
const NoteFormatURI = "doodle://note-format"

const (
	defaultListLimit   = 50
	defaultSearchLimit = 20
)

// Server wraps the MCP server with doodle tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all doodle tools registered.
func New(svc *noteservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Doodle",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. Content uses the doodle block format; "+
			"read it first via get_note_format or the "+NoteFormatURI+" resource."),
		mcp.WithString("content", mcp.Description("Note body, one block per line")),
		mcp.WithString("title", mcp.Description("Optional title, stored as a leading heading")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note: its markdown content and numbered blocks."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes, most recently updated first."),
		mcp.WithString("tag", mcp.Description("Only notes carrying this #tag")),
		mcp.WithString("sort", mcp.Description("updated, created or title"),
			mcp.Enum(index.SortUpdated, index.SortCreated, index.SortTitle)),
		mcp.WithNumber("limit", mcp.Description("Maximum number of notes (default 50)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note content and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("append_text",
		mcp.WithDescription("Append text to the end of a note. Each non-blank line becomes its own block of the given type."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text of the new block")),
		mcp.WithString("type", mcp.Description("Block type (default paragraph); see get_note_format")),
	), s.appendText)

	s.mcp.AddTool(mcp.NewTool("replace_content",
		mcp.WithDescription("Replace the whole content of a note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New note body in the doodle block format")),
	), s.replaceContent)

	s.mcp.AddTool(mcp.NewTool("list_todos",
		mcp.WithDescription("List the todos of a note with their todo numbers."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.listTodos)

	s.mcp.AddTool(mcp.NewTool("add_todo",
		mcp.WithDescription("Add a todo to the end of a note. Each non-blank line becomes its own todo."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Todo text")),
		mcp.WithBoolean("completed", mcp.Description("Create the todo already checked")),
	), s.addTodo)

	s.mcp.AddTool(mcp.NewTool("update_todo",
		mcp.WithDescription("Change the text of a todo. Line breaks are folded into spaces."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithNumber("todo", mcp.Required(), mcp.Description("Todo number from list_todos")),
		mcp.WithString("text", mcp.Required(), mcp.Description("New todo text")),
	), s.updateTodo)

	s.mcp.AddTool(mcp.NewTool("set_todo_completed",
		mcp.WithDescription("Check or uncheck a todo."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithNumber("todo", mcp.Required(), mcp.Description("Todo number from list_todos")),
		mcp.WithBoolean("completed", mcp.Required(), mcp.Description("Checked state")),
	), s.setTodoCompleted)

	s.mcp.AddTool(mcp.NewTool("delete_todo",
		mcp.WithDescription("Delete a todo."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithNumber("todo", mcp.Required(), mcp.Description("Todo number from list_todos")),
	), s.deleteTodo)

	s.mcp.AddTool(mcp.NewTool("get_note_format",
		mcp.WithDescription("Returns the doodle note format. "+
			"Call this before creating or rewriting notes."),
	), s.getNoteFormat)

	s.mcp.AddResource(
		mcp.NewResource(NoteFormatURI, "Note Format",
			mcp.WithResourceDescription("Line-oriented block format every doodle note uses."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// Serve runs the MCP protocol over in and out until ctx is done or in
// reaches EOF.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	err := server.NewStdioServer(s.mcp).Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type noteResult struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Checksum string `json:"checksum"`
}

type blockLine struct {
	Index   int    `json:"index"`
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Checked *bool  `json:"checked,omitempty"`
}

type readResult struct {
	noteResult
	Tags    []string    `json:"tags"`
	Content string      `json:"content"`
	Blocks  []blockLine `json:"blocks"`
}

type todoLine struct {
	Todo      int    `json:"todo"`
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := req.GetString("content", "")
	if title := strings.TrimSpace(req.GetString("title", "")); title != "" {
		content = "# " + title + "\n" + content
	}

	note, err := s.svc.CreateNote(ctx, document.Record{Type: document.RecordType, Content: content}, feed.SourceAgent)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(noteResult{ID: note.ID, Title: note.Title, Checksum: note.Checksum})
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	lines := make([]blockLine, len(note.Blocks))
	for i, b := range note.Blocks {
		lines[i] = describe(i, b)
	}
	tags := note.Tags
	if tags == nil {
		tags = []string{}
	}
	return jsonResult(readResult{
		noteResult: noteResult{ID: note.ID, Title: note.Title, Checksum: note.Checksum},
		Tags:       tags,
		Content:    note.Content,
		Blocks:     lines,
	})
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := index.ListQuery{
		Tag:   strings.TrimPrefix(req.GetString("tag", ""), "#"),
		Sort:  req.GetString("sort", index.SortUpdated),
		Limit: req.GetInt("limit", defaultListLimit),
	}
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}

	items, _, err := s.svc.ListNotes(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}

	var b strings.Builder
	for _, n := range items {
		fmt.Fprintf(&b, "%s\t%s\n", n.ID, n.Title)
	}
	return mcp.NewToolResultText(strings.TrimSuffix(b.String(), "\n")), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, defaultSearchLimit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	return jsonResult(results)
}

func (s *Server) appendText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target := document.Target(req.GetString("type", string(document.TargetParagraph)))
	if !validTarget(target) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown block type: %s", target)), nil
	}

	lines := blockLines(text)
	return s.mutate(ctx, id, func(d document.Document) (document.Document, error) {
		for _, line := range lines {
			d = appendBlock(d, block.Paragraph{Text: line})
			d = d.ChangeType(d.Len()-1, target)
		}
		return d, nil
	})
}

func (s *Server) replaceContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.ReplaceContent(ctx, id, content, feed.SourceAgent)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(noteResult{ID: note.ID, Title: note.Title, Checksum: note.Checksum})
}

func (s *Server) listTodos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	todos := []todoLine{}
	for n, i := range note.Blocks.Todos() {
		t := note.Blocks[i].(block.Todo)
		todos = append(todos, todoLine{Todo: n, Index: i, Text: t.Text, Completed: t.Checked})
	}
	return jsonResult(todos)
}

func (s *Server) addTodo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	completed := req.GetBool("completed", false)

	lines := blockLines(text)
	return s.mutate(ctx, id, func(d document.Document) (document.Document, error) {
		for _, line := range lines {
			d = appendBlock(d, block.Todo{Checked: completed, Text: line})
		}
		return d, nil
	})
}

func (s *Server) updateTodo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, n, err := noteAndTodo(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return s.mutate(ctx, id, func(d document.Document) (document.Document, error) {
		i, err := todoIndex(d, n)
		if err != nil {
			return d, err
		}
		return d.UpdateText(i, text), nil
	})
}

func (s *Server) setTodoCompleted(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, n, err := noteAndTodo(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	completed, err := req.RequireBool("completed")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return s.mutate(ctx, id, func(d document.Document) (document.Document, error) {
		i, err := todoIndex(d, n)
		if err != nil {
			return d, err
		}
		return d.SetTodo(i, completed), nil
	})
}

func (s *Server) deleteTodo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, n, err := noteAndTodo(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return s.mutate(ctx, id, func(d document.Document) (document.Document, error) {
		i, err := todoIndex(d, n)
		if err != nil {
			return d, err
		}
		return d.Delete(i), nil
	})
}

func (s *Server) getNoteFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

func (s *Server) mutate(ctx context.Context, id string, fn func(document.Document) (document.Document, error)) (*mcp.CallToolResult, error) {
	note, err := s.svc.Mutate(ctx, id, feed.SourceAgent, fn)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(noteResult{ID: note.ID, Title: note.Title, Checksum: note.Checksum})
}

func noteAndTodo(req mcp.CallToolRequest) (string, int, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return "", 0, err
	}
	n, err := req.RequireInt("todo")
	if err != nil {
		return "", 0, err
	}
	return id, n, nil
}

// todoIndex maps the n-th todo of d to its block position.
func todoIndex(d document.Document, n int) (int, error) {
	todos := d.Todos()
	if n < 0 || n >= len(todos) {
		return 0, fmt.Errorf("todo %d: %w", n, apperr.ErrNotFound)
	}
	return todos[n], nil
}

// blockLines splits agent text into one entry per non-blank line. Text
// without any non-blank line yields a single empty entry.
func blockLines(text string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		return []string{""}
	}
	return out
}

// appendBlock adds b at the end of d, replacing the placeholder block of a
// blank note.
func appendBlock(d document.Document, b block.Block) document.Document {
	if d.Len() == 1 {
		if p, ok := d[0].(block.Paragraph); ok && p.Text == "" {
			return document.New(b)
		}
	}
	return d.Append(b)
}

func validTarget(t document.Target) bool {
	for _, v := range document.Targets() {
		if v == t {
			return true
		}
	}
	return false
}

func describe(i int, b block.Block) blockLine {
	line := blockLine{Index: i, Type: b.Kind().String()}
	line.Text, _ = block.Text(b)
	switch v := b.(type) {
	case block.Heading:
		line.Type = fmt.Sprintf("h%d", v.Level)
	case block.Todo:
		checked := v.Checked
		line.Checked = &checked
	}
	return line
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}
