// Package convert turns exam sources into the marked-up text the engine
// consumes, and renders PDF previews.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// SourceExtensions lists the question document formats that can be converted.
var SourceExtensions = map[string]bool{
	".docx":     true,
	".doc":      true,
	".odt":      true,
	".rtf":      true,
	".html":     true,
	".htm":      true,
	".md":       true,
	".markdown": true,
}

// IsSource reports whether filename is a convertible question document.
func IsSource(filename string) bool {
	return SourceExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Converter dispatches on the source extension.
type Converter struct {
	soffice *Soffice
	log     *slog.Logger
}

// New returns a converter. soffice may be nil when only HTML and Markdown
// sources are expected.
func New(soffice *Soffice, log *slog.Logger) *Converter {
	if log == nil {
		log = slog.Default()
	}
	return &Converter{soffice: soffice, log: log}
}

// ToHTML converts the document at path to marked-up text.
func (c *Converter) ToHTML(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".html", ".htm":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read html: %w", err)
		}
		return string(data), nil

	case ".md", ".markdown":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read markdown: %w", err)
		}
		return Markdown(data)

	case ".docx":
		rep, err := InspectDOCX(path)
		if err != nil {
			return "", err
		}
		if !rep.Balanced() {
			c.log.Warn("unbalanced group markers",
				"file", filepath.Base(path),
				"start_markers", rep.StartMarkers,
				"end_markers", rep.EndMarkers,
			)
		}
	}

	if !SourceExtensions[ext] {
		return "", fmt.Errorf("unsupported source extension: %s", ext)
	}
	if c.soffice == nil {
		return "", ErrNoSoffice
	}
	out, err := c.soffice.Convert(ctx, path, FormatHTML)
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", filepath.Base(path), err)
	}
	return string(out), nil
}

// ToPDF renders a preview of the document at path into dest and returns its
// page count.
func (c *Converter) ToPDF(ctx context.Context, path, dest string) (int, error) {
	if c.soffice == nil {
		return 0, ErrNoSoffice
	}
	out, err := c.soffice.Convert(ctx, path, FormatPDF)
	if err != nil {
		return 0, fmt.Errorf("preview %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(dest, out, 0o644); err != nil {
		return 0, fmt.Errorf("write preview: %w", err)
	}
	return PageCount(dest)
}
