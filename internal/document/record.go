package document

// RecordType is the only content type notes are stored as.
const RecordType = "markdown"

// Record is the persisted form of a note body. Content is canonical; Blocks
// is an optional cache of its structure.
type Record struct {
	Type    string   `json:"type"`
	Content string   `json:"content"`
	Blocks  Document `json:"blocks,omitempty"`
}

// Load builds the initial document for a record: cached blocks when present,
// otherwise the parsed content, otherwise a blank document.
func Load(r Record) Document {
	if len(r.Blocks) > 0 {
		return New(r.Blocks...)
	}
	return FromMarkdown(r.Content)
}

// Save produces the record to persist for d.
func Save(d Document) Record {
	d = New(d...)
	return Record{
		Type:    RecordType,
		Content: d.Markdown(),
		Blocks:  d,
	}
}
