package convert

import (
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// DocxReport summarizes a .docx before it is sent to LibreOffice.
type DocxReport struct {
	Paragraphs   int `json:"paragraphs"`
	StartMarkers int `json:"start_markers"`
	EndMarkers   int `json:"end_markers"`
}

// Balanced reports whether every #startgroup has a matching #endgroup.
func (r DocxReport) Balanced() bool {
	return r.StartMarkers == r.EndMarkers
}

// InspectDOCX opens the archive at path and counts paragraphs and group
// markers. An unreadable archive is an error.
func InspectDOCX(path string) (DocxReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return DocxReport{}, fmt.Errorf("open docx: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return DocxReport{}, fmt.Errorf("stat docx: %w", err)
	}
	doc, err := docx.Parse(f, fi.Size())
	if err != nil {
		return DocxReport{}, fmt.Errorf("parse docx: %w", err)
	}

	var rep DocxReport
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		rep.Paragraphs++
		text := strings.ToLower(paragraphText(para))
		rep.StartMarkers += strings.Count(text, "#startgroup")
		rep.EndMarkers += strings.Count(text, "#endgroup")
	}
	return rep, nil
}

func paragraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return buf.String()
}
