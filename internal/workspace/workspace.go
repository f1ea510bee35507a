// Package workspace manages the data directory: incoming documents and
// answer keys, verdict output, and the completed and failed archives.
package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoAnswerKey is returned when neither a batch nor a subject key exists.
var ErrNoAnswerKey = errors.New("answer key not found")

// Directory names relative to the workspace root.
const (
	DirQuestions          = "input/questions"
	DirAnswers            = "input/answers"
	DirPDFs               = "input/pdfs"
	DirOutput             = "output"
	DirCompletedQuestions = "completed/questions"
	DirCompletedAnswers   = "completed/answers"
	DirFailed             = "completed/failed"
	DirBin                = "bin"
)

var allDirs = []string{
	DirQuestions, DirAnswers, DirPDFs, DirOutput,
	DirCompletedQuestions, DirCompletedAnswers, DirFailed, DirBin,
}

// Workspace is a data directory rooted at one path.
type Workspace struct {
	root string
}

// Open creates the directory layout under root if needed.
func Open(root string) (*Workspace, error) {
	if root == "" {
		root = "./data"
	}
	for _, d := range allDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", d, err)
		}
	}
	return &Workspace{root: root}, nil
}

// Root returns the workspace root.
func (w *Workspace) Root() string { return w.root }

// Dir returns the absolute path of a layout directory.
func (w *Workspace) Dir(dir string) string {
	return filepath.Join(w.root, dir)
}

// Put stores r as name inside dir. Only the base of name is used.
func (w *Workspace) Put(dir, name string, r io.Reader) (string, error) {
	dst, err := w.Path(dir, name)
	if err != nil {
		return "", err
	}
	name = filepath.Base(dst)
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return dst, nil
}

// Path returns where Put would store name inside dir.
func (w *Workspace) Path(dir, name string) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(w.Dir(dir), name), nil
}

// Open returns a reader for name inside dir.
func (w *Workspace) Open(dir, name string) (*os.File, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(w.Dir(dir), name))
}

// List returns the sorted file paths in dir accepted by keep.
func (w *Workspace) List(dir string, keep func(name string) bool) ([]string, error) {
	entries, err := os.ReadDir(w.Dir(dir))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || (keep != nil && !keep(e.Name())) {
			continue
		}
		out = append(out, filepath.Join(w.Dir(dir), e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// FindAnswerKey looks for <batch>.<ext> first, then <subject>.<ext>, in
// the answers directory. batchSpecific reports which one was found.
func (w *Workspace) FindAnswerKey(batch, subject string, exts []string) (path string, batchSpecific bool, err error) {
	for i, base := range []string{batch, subject} {
		if base == "" {
			continue
		}
		for _, ext := range exts {
			p := filepath.Join(w.Dir(DirAnswers), base+ext)
			if _, err := os.Stat(p); err == nil {
				return p, i == 0, nil
			}
		}
	}
	return "", false, fmt.Errorf("%w for %s", ErrNoAnswerKey, batch)
}

// Complete moves a processed source to the completed or failed archive.
func (w *Workspace) Complete(src string, ok bool) (string, error) {
	dir := DirCompletedQuestions
	if !ok {
		dir = DirFailed
	}
	return w.move(src, dir)
}

// ArchiveAnswerKey moves a batch-specific answer key out of the input tree.
func (w *Workspace) ArchiveAnswerKey(path string) (string, error) {
	return w.move(path, DirCompletedAnswers)
}

// WriteOutput stores v as indented JSON in output/<batch>.json.
func (w *Workspace) WriteOutput(batch string, v any) (string, error) {
	name, err := cleanName(batch + ".json")
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode output: %w", err)
	}
	dst := filepath.Join(w.Dir(DirOutput), name)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("write output: %w", err)
	}
	return dst, nil
}

// PreviewPath returns where the PDF preview of a document is kept.
func (w *Workspace) PreviewPath(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return filepath.Join(w.Dir(DirPDFs), base+".pdf")
}

func (w *Workspace) move(src, dir string) (string, error) {
	dst := filepath.Join(w.Dir(dir), filepath.Base(src))
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("move %s to %s: %w", filepath.Base(src), dir, err)
	}
	return dst, nil
}

// BaseName strips directory and extension from a document path.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func cleanName(name string) (string, error) {
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." || name == ".." || name == "" {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return name, nil
}
