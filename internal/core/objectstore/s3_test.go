package objectstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"go.uber.org/zap/zaptest"

	cfg "github.com/doc2md/doc2md/internal/config"
	"github.com/doc2md/doc2md/internal/core"
)

func TestKeyFormat(t *testing.T) {
	re := regexp.MustCompile(`^pdfs/\d{4}-\d{2}-\d{2}/[0-9a-f-]{36}\.pdf$`)
	k := Key("pdfs", "report.pdf")
	if !re.MatchString(k) {
		t.Fatalf("Key = %q", k)
	}

	if k2 := Key("markdown", "noext"); regexp.MustCompile(`\.$`).MatchString(k2) {
		t.Fatalf("Key for extensionless name = %q", k2)
	}
}

func TestUnconfiguredStoreFailsFast(t *testing.T) {
	s, err := NewS3Store(context.Background(), &cfg.Config{}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewS3Store: %v", err)
	}
	if s.Configured() {
		t.Fatal("store without credentials reports Configured")
	}

	if err := s.Put(context.Background(), "k", []byte("x"), "text/plain"); !errors.Is(err, core.ErrConfigurationMissing) {
		t.Fatalf("Put err = %v, want ErrConfigurationMissing", err)
	}
	if _, _, err := s.Get(context.Background(), "k"); !errors.Is(err, core.ErrConfigurationMissing) {
		t.Fatalf("Get err = %v, want ErrConfigurationMissing", err)
	}
	if err := s.Delete(context.Background(), "k"); !errors.Is(err, core.ErrConfigurationMissing) {
		t.Fatalf("Delete err = %v, want ErrConfigurationMissing", err)
	}
}
