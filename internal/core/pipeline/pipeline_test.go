package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/doc2md/doc2md/internal/core"
	"github.com/doc2md/doc2md/internal/core/encoder"
)

type stubOffice struct {
	out []byte
	err error
}

func (s *stubOffice) Configured() bool { return true }

func (s *stubOffice) ToPDF(ctx context.Context, data []byte, mediaType string) ([]byte, error) {
	return s.out, s.err
}

type stubEncoder struct {
	out []byte
	err error
}

func (s *stubEncoder) Encode(ctx context.Context, data []byte, mediaType string, onProgress core.ProgressFunc) (encoder.Result, error) {
	if s.err != nil {
		return encoder.Result{}, s.err
	}
	return encoder.Result{Bytes: s.out, MediaType: "audio/mpeg"}, nil
}

func TestPrepare_RoutesAndPreservesOrder(t *testing.T) {
	p := New(
		&stubOffice{out: []byte("%PDF-converted")},
		&stubEncoder{out: []byte("mp3-bytes")},
		zaptest.NewLogger(t),
	)

	files := []File{
		{Bytes: []byte("%PDF-raw"), MediaType: "application/pdf", Name: "a.pdf"},
		{Bytes: []byte("docx-bytes"), MediaType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Name: "b.docx"},
		{Bytes: []byte("flac-bytes"), MediaType: "audio/flac", Name: "c.flac"},
	}

	got, err := p.Prepare(context.Background(), files, nil)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d files, want 3", len(got))
	}

	if string(got[0].Bytes) != "%PDF-raw" || got[0].MediaType != "application/pdf" {
		t.Errorf("direct file altered: %+v", got[0])
	}
	if string(got[1].Bytes) != "%PDF-converted" || got[1].MediaType != "application/pdf" {
		t.Errorf("office file not converted: %+v", got[1])
	}
	if string(got[2].Bytes) != "mp3-bytes" || got[2].MediaType != "audio/mpeg" {
		t.Errorf("media file not transcoded: %+v", got[2])
	}
	for i, f := range files {
		if got[i].Name != f.Name {
			t.Errorf("file %d renamed to %q, want %q", i, got[i].Name, f.Name)
		}
	}
}

func TestPrepare_UnsupportedTypeFailsBatch(t *testing.T) {
	p := New(&stubOffice{}, &stubEncoder{}, zaptest.NewLogger(t))

	files := []File{
		{Bytes: []byte("ok"), MediaType: "text/plain", Name: "a.txt"},
		{Bytes: []byte("zip"), MediaType: "application/zip", Name: "b.zip"},
	}

	_, err := p.Prepare(context.Background(), files, nil)
	if !errors.Is(err, core.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if got := err.Error(); !strings.Contains(got, "b.zip") {
		t.Errorf("error %q does not name the failing file", got)
	}
}

func TestPrepare_EncodeFailureNamesFile(t *testing.T) {
	p := New(
		&stubOffice{},
		&stubEncoder{err: core.ErrEncodedFileTooLarge},
		zaptest.NewLogger(t),
	)

	files := []File{
		{Bytes: []byte("movie"), MediaType: "video/x-matroska", Name: "talk.mkv"},
	}

	_, err := p.Prepare(context.Background(), files, nil)
	if !errors.Is(err, core.ErrEncodedFileTooLarge) {
		t.Fatalf("err = %v, want ErrEncodedFileTooLarge", err)
	}
	if got := err.Error(); !strings.Contains(got, "talk.mkv") {
		t.Errorf("error %q does not name the failing file", got)
	}
}

func TestPrepare_EmptyInput(t *testing.T) {
	p := New(&stubOffice{}, &stubEncoder{}, zaptest.NewLogger(t))
	got, err := p.Prepare(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d files, want 0", len(got))
	}
}

