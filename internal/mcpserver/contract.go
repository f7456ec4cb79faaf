package mcpserver

// NoteFormatContract describes the line-oriented block format that LLM
// consumers should follow when creating or rewriting notes.
const NoteFormatContract = `# Doodle Note Format

A doodle note is plain text where every non-blank line is one block.
Blank lines are dropped; they only restart numbered lists.

## Blocks

| Line                | Block            | append_text type |
|---------------------|------------------|------------------|
| ` + "`# Title`" + `           | heading level 1  | h1               |
| ` + "`## Section`" + `        | heading level 2  | h2               |
| ` + "`### Topic`" + `         | heading level 3  | h3               |
| ` + "`- [ ] task`" + `        | open todo        | todo             |
| ` + "`- [x] task`" + `        | completed todo   | todo             |
| ` + "`- item`" + `            | bullet           | bullet           |
| ` + "`1. step`" + `           | numbered item    | numbered         |
| ` + "`> words`" + `           | quote            | quote            |
| ` + "`https://…`" + `         | embed (see 5)    | embed            |
| ` + "`---`" + `               | divider          | divider          |
| anything else       | paragraph        | paragraph        |

## Rules

1. **One line, one block.** Text inside a block cannot contain a line break.
   ` + "`append_text`" + ` and ` + "`add_todo`" + ` turn each non-blank line into its own block.
2. **Title** is the text of the first heading; a note without one is "Untitled".
3. **Tags** are ` + "`#words`" + ` anywhere in block text (e.g. ` + "`#groceries`" + `, ` + "`#project-x`" + `).
4. **Numbered items** are renumbered from 1 on every save; the digits you write are ignored.
5. **Embeds** hold a URL and are written as the bare URL line. They read back as paragraphs.
6. **Todos** are addressed by their todo number (0-based, in document order) as
   reported by ` + "`list_todos`" + `. Numbers shift when todos are added or deleted,
   so list again after changing the set of todos.

## Example

` + "```" + `markdown
# Weekly groceries
Shopping for the long weekend #groceries
- [ ] Oat milk
- [x] Bread
---
## Recipes
1. Soak the beans
2. Simmer for an hour
> Buy extra if the market is open
` + "```" + `
`
