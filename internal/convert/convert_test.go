package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fumiama/go-docx"
)

func TestMarkdown_MarksQuestionAndOptionLists(t *testing.T) {
	src := "Instructions\n\n3. What is 2+2?\n   1. three\n   2. four\n   3. five\n   4. six\n"
	got, err := Markdown([]byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, `<ol start="3">`) {
		t.Errorf("expected numbered question list, got %q", got)
	}
	if !strings.Contains(got, `<ol type="A">`) {
		t.Errorf("expected nested option list, got %q", got)
	}
}

func TestMarkdown_AddsStartToFirstList(t *testing.T) {
	got, err := Markdown([]byte("1. Q\n   1. a\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, `<ol start="1">`) {
		t.Errorf("expected start on top-level list, got %q", got)
	}
}

func writeDocx(t *testing.T, lines ...string) string {
	t.Helper()
	w := docx.New().WithDefaultTheme()
	for _, l := range lines {
		w.AddParagraph().AddText(l)
	}
	path := filepath.Join(t.TempDir(), "exam.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create docx: %v", err)
	}
	defer f.Close()
	if _, err := w.WriteTo(f); err != nil {
		t.Fatalf("write docx: %v", err)
	}
	return path
}

func TestInspectDOCX(t *testing.T) {
	path := writeDocx(t, "#startgroup", "Read the passage.", "Question one", "#endgroup", "#startgroup")
	rep, err := InspectDOCX(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Paragraphs != 5 {
		t.Errorf("expected 5 paragraphs, got %d", rep.Paragraphs)
	}
	if rep.StartMarkers != 2 || rep.EndMarkers != 1 {
		t.Errorf("expected 2 start and 1 end markers, got %d and %d", rep.StartMarkers, rep.EndMarkers)
	}
	if rep.Balanced() {
		t.Error("expected unbalanced report")
	}
}

func TestInspectDOCX_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.docx")
	if err := os.WriteFile(path, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := InspectDOCX(path); err == nil {
		t.Error("expected error for a non-zip docx")
	}
}

func TestPageCount_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preview.pdf")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := PageCount(path); err == nil {
		t.Error("expected error for a non-pdf file")
	}
}

// fakeSoffice returns a Soffice whose binary is a dummy file and whose exec
// writes output where LibreOffice would.
func fakeSoffice(t *testing.T, output string, fail error) *Soffice {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "soffice")
	if err := os.WriteFile(bin, nil, 0o755); err != nil {
		t.Fatal(err)
	}
	return &Soffice{
		Paths:         []string{bin},
		MaxRetries:    3,
		RetryInterval: time.Millisecond,
		Exec: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			if fail != nil {
				return []byte("boom"), fail
			}
			var outdir string
			format := "html"
			for i, a := range args {
				switch {
				case a == "--outdir":
					outdir = args[i+1]
				case a == "--convert-to" && strings.HasPrefix(args[i+1], "pdf"):
					format = "pdf"
				}
			}
			src := args[len(args)-1]
			base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
			return nil, os.WriteFile(filepath.Join(outdir, base+"."+format), []byte(output), 0o644)
		},
	}
}

func TestSoffice_Convert(t *testing.T) {
	src := filepath.Join(t.TempDir(), "exam.docx")
	if err := os.WriteFile(src, []byte("docx bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := fakeSoffice(t, "<p>converted</p>", nil)
	out, err := s.Convert(context.Background(), src, FormatHTML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "<p>converted</p>" {
		t.Errorf("expected converted output, got %q", out)
	}
}

func TestSoffice_MissingOutputGivesUp(t *testing.T) {
	src := filepath.Join(t.TempDir(), "exam.docx")
	if err := os.WriteFile(src, []byte("docx bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := fakeSoffice(t, "", nil)
	s.Exec = func(context.Context, string, ...string) ([]byte, error) { return nil, nil }
	if _, err := s.Convert(context.Background(), src, FormatHTML); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error after retries, got %v", err)
	}
}

func TestSoffice_ExecFailure(t *testing.T) {
	src := filepath.Join(t.TempDir(), "exam.docx")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := fakeSoffice(t, "", errors.New("exit status 1"))
	if _, err := s.Convert(context.Background(), src, FormatHTML); err == nil {
		t.Error("expected exec failure")
	}
}

func TestSoffice_UnsupportedFormat(t *testing.T) {
	s := &Soffice{}
	if _, err := s.Convert(context.Background(), "x.docx", "txt"); err == nil {
		t.Error("expected unsupported format error")
	}
}

func TestConverter_ToHTML(t *testing.T) {
	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "ENG.html")
	if err := os.WriteFile(htmlPath, []byte("<p>hi</p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := New(nil, nil)
	got, err := c.ToHTML(context.Background(), htmlPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "<p>hi</p>" {
		t.Errorf("expected file contents, got %q", got)
	}

	odt := filepath.Join(dir, "ENG.odt")
	if err := os.WriteFile(odt, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ToHTML(context.Background(), odt); !errors.Is(err, ErrNoSoffice) {
		t.Errorf("expected ErrNoSoffice without a converter, got %v", err)
	}
}

func TestConverter_DocxThroughSoffice(t *testing.T) {
	path := writeDocx(t, "#startgroup", "Q")
	c := New(fakeSoffice(t, "<p>Q</p>", nil), nil)
	got, err := c.ToHTML(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "<p>Q</p>" {
		t.Errorf("expected converted markup, got %q", got)
	}
}
