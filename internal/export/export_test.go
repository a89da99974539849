package export

import (
	"context"
	"errors"
	"testing"

	"cv-backend/internal/document"
	"cv-backend/internal/sections"
	"cv-backend/internal/shared/storage/object/local"
)

type captureFunc func(ctx context.Context, html string) ([]byte, error)

func (f captureFunc) Capture(ctx context.Context, html string) ([]byte, error) {
	return f(ctx, html)
}

func docFor(name string) document.CVDocument {
	return document.CVDocument{PersonalInfo: sections.PersonalInfo{FullName: name}}
}

func TestPanickingCaptureClearsFlag(t *testing.T) {
	p := NewPipeline(captureFunc(func(context.Context, string) ([]byte, error) {
		panic("canvas exploded")
	}), nil, 0)

	_, err := p.Export(context.Background(), "alice", docFor("Ada"))
	var exportErr *ExportError
	if !errors.As(err, &exportErr) || exportErr.Stage != "capture" {
		t.Fatalf("expected capture ExportError, got %v", err)
	}
	if p.IsExporting() {
		t.Fatalf("expected exporting flag to be cleared")
	}
}

func TestFailingCaptureClearsFlag(t *testing.T) {
	p := NewPipeline(captureFunc(func(context.Context, string) ([]byte, error) {
		return nil, errors.New("chrome not found")
	}), nil, 0)
	if _, err := p.Export(context.Background(), "alice", docFor("Ada")); err == nil {
		t.Fatalf("expected error")
	}
	if p.IsExporting() {
		t.Fatalf("expected exporting flag to be cleared")
	}
}

func TestConcurrentExportIsRefused(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	p := NewPipeline(captureFunc(func(context.Context, string) ([]byte, error) {
		close(entered)
		<-release
		return []byte("%PDF-1.4"), nil
	}), nil, 0)

	done := make(chan error, 1)
	go func() {
		_, err := p.Export(context.Background(), "alice", docFor("Ada"))
		done <- err
	}()
	<-entered
	if !p.IsExporting() {
		t.Fatalf("expected flag set while capturing")
	}
	if _, err := p.Export(context.Background(), "alice", docFor("Ada")); !errors.Is(err, ErrExportInProgress) {
		t.Fatalf("expected ErrExportInProgress, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first export: %v", err)
	}
	if p.IsExporting() {
		t.Fatalf("expected flag cleared after settle")
	}
}

func TestExportNamesAndArchivesFile(t *testing.T) {
	var seenHTML string
	archive := local.New(t.TempDir())
	p := NewPipeline(captureFunc(func(_ context.Context, html string) ([]byte, error) {
		seenHTML = html
		return []byte("%PDF-1.4 fake"), nil
	}), archive, 0)

	file, err := p.Export(context.Background(), "alice", docFor("Ada   King Lovelace"))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if file.Name != "Ada_King_Lovelace_CV.pdf" || file.ContentType != ContentTypePDF {
		t.Fatalf("unexpected file %+v", file)
	}
	if seenHTML == "" {
		t.Fatalf("expected capturer to receive html")
	}
	if file.Archived == nil || file.Archived.Size != int64(len(file.Content)) {
		t.Fatalf("expected archived copy, got %+v", file.Archived)
	}
}

func TestFileName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Ada Lovelace", "Ada_Lovelace_CV.pdf"},
		{"  ", "CV.pdf"},
		{"", "CV.pdf"},
		{"a/b", "a_b_CV.pdf"},
		{"..", "CV.pdf"},
	}
	for _, tc := range cases {
		if got := FileName(tc.in); got != tc.want {
			t.Fatalf("FileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCountPagesToleratesGarbage(t *testing.T) {
	if n := CountPages([]byte("not a pdf")); n != 0 {
		t.Fatalf("expected 0 pages, got %d", n)
	}
}
