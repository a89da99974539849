// Package export turns the rendered preview into a downloadable PDF.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ledongthuc/pdf"

	"cv-backend/internal/document"
	"cv-backend/internal/preview"
	"cv-backend/internal/shared/metrics"
	"cv-backend/internal/shared/storage/object"
	"cv-backend/internal/shared/telemetry"
	"cv-backend/internal/shared/util"
)

const (
	ContentTypePDF = "application/pdf"
	defaultTimeout = 60 * time.Second
)

// ErrExportInProgress is returned when the pipeline is already exporting.
var ErrExportInProgress = errors.New("an export is already in progress")

// ExportError wraps a failure of one export stage.
type ExportError struct {
	Stage string
	Err   error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Stage, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// Capturer prints a standalone HTML page to PDF bytes.
type Capturer interface {
	Capture(ctx context.Context, html string) ([]byte, error)
}

// File is a finished export.
type File struct {
	Name        string
	ContentType string
	Content     []byte
	Pages       int
	Archived    *object.Object
}

// Pipeline runs one export at a time. The in-progress flag is cleared on
// every exit path, panics in the capturer included.
type Pipeline struct {
	capturer  Capturer
	archive   object.Store
	timeout   time.Duration
	exporting atomic.Bool
}

// NewPipeline builds a pipeline. archive may be nil to skip archiving.
func NewPipeline(c Capturer, archive object.Store, timeout time.Duration) *Pipeline {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Pipeline{capturer: c, archive: archive, timeout: timeout}
}

func (p *Pipeline) IsExporting() bool {
	return p.exporting.Load()
}

// Export renders doc, captures it and names the file after the owner's full name.
func (p *Pipeline) Export(ctx context.Context, ownerID string, doc document.CVDocument) (file File, err error) {
	if !p.exporting.CompareAndSwap(false, true) {
		return File{}, ErrExportInProgress
	}
	defer p.exporting.Store(false)

	start := time.Now()
	metrics.IncExport()
	defer func() {
		if r := recover(); r != nil {
			err = &ExportError{Stage: "capture", Err: fmt.Errorf("panic: %v", r)}
			file = File{}
		}
		metrics.ObserveExportDurationMs(metrics.SinceMillis(start))
		if err != nil {
			metrics.IncExportFailed()
			telemetry.Error("export.failed", map[string]any{"user_id": ownerID, "error": err})
		}
	}()

	html, err := preview.HTML(doc)
	if err != nil {
		return File{}, &ExportError{Stage: "render", Err: err}
	}
	if p.capturer == nil {
		return File{}, &ExportError{Stage: "capture", Err: errors.New("no capturer configured")}
	}

	captureCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	content, err := p.capturer.Capture(captureCtx, html)
	if err != nil {
		return File{}, &ExportError{Stage: "capture", Err: err}
	}
	if len(content) == 0 {
		return File{}, &ExportError{Stage: "capture", Err: errors.New("empty document")}
	}

	file = File{
		Name:        FileName(doc.PersonalInfo.FullName),
		ContentType: ContentTypePDF,
		Content:     content,
		Pages:       CountPages(content),
	}
	if p.archive != nil {
		obj, archiveErr := p.archive.Put(ctx, ownerID, file.Name, ContentTypePDF, bytes.NewReader(content))
		if archiveErr != nil {
			telemetry.Warn("export.archive_failed", map[string]any{"user_id": ownerID, "error": archiveErr})
		} else {
			file.Archived = &obj
		}
	}
	telemetry.Info("export.complete", map[string]any{
		"user_id":  ownerID,
		"file":     file.Name,
		"bytes":    len(content),
		"pages":    file.Pages,
		"archived": file.Archived != nil,
	})
	return file, nil
}

// FileName replaces whitespace runs in fullName with "_" and appends "_CV.pdf".
func FileName(fullName string) string {
	base := util.UnderscoreWhitespace(fullName)
	if base == "" {
		return "CV.pdf"
	}
	if clean, err := util.SanitizeFileName(base); err == nil {
		base = clean
	} else {
		return "CV.pdf"
	}
	return base + "_CV.pdf"
}

// CountPages returns the page count of a PDF, or 0 when it cannot be parsed.
func CountPages(data []byte) (pages int) {
	defer func() {
		if recover() != nil {
			pages = 0
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0
	}
	return r.NumPage()
}
