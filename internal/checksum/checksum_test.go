package checksum

import "testing"

func TestSum(t *testing.T) {
	// sha256("")
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %s", got)
	}
	if String("- [ ] milk") != Sum([]byte("- [ ] milk")) {
		t.Error("String and Sum disagree")
	}
}

func TestETagRoundTrip(t *testing.T) {
	sum := String("# Title")
	tag := ETag(sum)
	if tag != `"`+sum+`"` {
		t.Errorf("ETag = %s", tag)
	}
	for _, in := range []string{tag, sum, "W/" + tag, " " + tag + " "} {
		if got := FromETag(in); got != sum {
			t.Errorf("FromETag(%q) = %q", in, got)
		}
	}
	if got := FromETag(""); got != "" {
		t.Errorf("FromETag(empty) = %q", got)
	}
}
