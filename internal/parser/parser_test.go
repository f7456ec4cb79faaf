package parser

import (
	"reflect"
	"testing"
)

func TestParse_TitleFromFirstHeading(t *testing.T) {
	r := Parse("intro\n## Groceries\n# Later")
	if r.Title != "Groceries" {
		t.Errorf("title = %q, want %q", r.Title, "Groceries")
	}
}

func TestParse_Untitled(t *testing.T) {
	cases := []string{"", "just text", "#\n- item"}
	for _, in := range cases {
		if got := Parse(in).Title; got != Untitled {
			t.Errorf("Parse(%q).Title = %q, want %q", in, got, Untitled)
		}
	}
}

func TestParse_Tags(t *testing.T) {
	r := Parse("# Plan #work\n- [ ] call #bob about #work\n> #idea/later\nnot#tag")
	want := []string{"work", "bob", "idea/later"}
	if !reflect.DeepEqual(r.Tags, want) {
		t.Errorf("tags = %v, want %v", r.Tags, want)
	}
}

func TestParse_NoTagsIsEmptySlice(t *testing.T) {
	r := Parse("plain")
	if r.Tags == nil || len(r.Tags) != 0 {
		t.Errorf("tags = %#v, want empty slice", r.Tags)
	}
}

func TestParse_Text(t *testing.T) {
	r := Parse("# Title\n\n- [x] done\n---\n1. first")
	want := "Title\ndone\nfirst"
	if r.Text != want {
		t.Errorf("text = %q, want %q", r.Text, want)
	}
	if len(r.Doc) != 4 {
		t.Errorf("len(doc) = %d, want 4", len(r.Doc))
	}
}
