package llm

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/doc2md/doc2md/internal/core"
)

func TestStripFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"```markdown\n# Title\nbody\n```", "# Title\nbody"},
		{"```\n# Title\n```", "# Title"},
		{"# Title\nbody", "# Title\nbody"},
		{"  \n```markdown\ntext\n```\n  ", "text"},
		// Inner fences survive; only the wrapper goes.
		{"```markdown\npara\n```go\ncode\n```\n```", "para\n```go\ncode\n```"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := StripFences(tc.in); got != tc.want {
			t.Errorf("StripFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Quarterly Report 2026", "Quarterly-Report-2026"},
		{"```report```", "report"},
		{"  lots   of --- dashes  ", "lots-of-dashes"},
		{"***", "document"},
		{"", "document"},
	}
	for _, tc := range cases {
		if got := sanitizeTitle(tc.in); got != tc.want {
			t.Errorf("sanitizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestGemini_UnconfiguredFailsFast(t *testing.T) {
	g, err := NewGemini(context.Background(), "", zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	if g.Configured() {
		t.Fatal("expected unconfigured backend")
	}

	_, err = g.ConvertFiles(context.Background(), []core.PreparedFile{{Name: "a.pdf"}}, "m", nil)
	if !errors.Is(err, core.ErrConfigurationMissing) {
		t.Errorf("ConvertFiles: expected ErrConfigurationMissing, got %v", err)
	}
	_, err = g.Summarize(context.Background(), "text", "m", nil)
	if !errors.Is(err, core.ErrConfigurationMissing) {
		t.Errorf("Summarize: expected ErrConfigurationMissing, got %v", err)
	}
	_, err = g.GenerateTitle(context.Background(), "text", "m")
	if !errors.Is(err, core.ErrConfigurationMissing) {
		t.Errorf("GenerateTitle: expected ErrConfigurationMissing, got %v", err)
	}
}
