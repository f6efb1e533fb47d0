// Package export renders a form's citation report and converts it to PDF
// or DOCX.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Request contains parameters for an export operation
type Request struct {
	FormID          int64
	Format          Format
	IncludeRejected bool
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ReportCitation is one citation row in the rendered report.
type ReportCitation struct {
	ID        string
	Document  string
	Pages     string // "p. 3" or "pp. 3-5", empty when unlocated
	Review    string
	Excerpt   string
	Creator   string
	CreatedAt time.Time
}

var (
	// ErrContentUnavailable indicates report content could not be loaded for export.
	ErrContentUnavailable = errors.New("export content unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
