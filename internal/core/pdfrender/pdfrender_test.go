package pdfrender

import (
	"bytes"
	"testing"
)

func TestRenderProducesPDF(t *testing.T) {
	md := "# Title\n\nSome **bold** text with a [link](https://example.com).\n\n" +
		"- first\n- second\n\n1. one\n2. two\n\n---\n\n```go\nfmt.Println(\"hi\")\n```\n"

	out, err := Render(md, "Title")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output does not start with a PDF header: %q", out[:min(len(out), 8)])
	}
}

func TestRenderEmptyDocument(t *testing.T) {
	out, err := Render("", "empty")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatal("empty document did not render to a PDF")
	}
}

func TestInlineStripsSpans(t *testing.T) {
	got := inline("See [the docs](https://x.test) for **details** and `code`.")
	want := "See the docs for details and code."
	if got != want {
		t.Fatalf("inline = %q, want %q", got, want)
	}
}
