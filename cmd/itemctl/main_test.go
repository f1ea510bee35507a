package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/igzam/itemgest/internal/model"
)

const subjectsFile = `{
  "ENG": {
    "_id": "subject-eng",
    "totalQuestions": 2,
    "grouping": false,
    "tos": [{"title": "Grammar", "index": 1, "subTopics": [{"title": "Tenses", "id": "s-1", "start": 1, "end": 2}]}]
  }
}`

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func exam(n int) string {
	var sb strings.Builder
	sb.WriteString("<html><body>\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, `<ol start="%d"><li><p>Q%d</p><ol type="A"><li><p>a</p></li><li><p>b</p></li><li><p>c</p></li><li><p>d</p></li></ol></li></ol>`+"\n", i, i)
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestExtract_WritesVerdict(t *testing.T) {
	dir := t.TempDir()
	subs := writeFixture(t, dir, "subjects.json", subjectsFile)
	doc := writeFixture(t, dir, "eng-2024.html", exam(2))
	key := writeFixture(t, dir, "key.csv", "B\nD\n")
	out := filepath.Join(dir, "out.json")

	if _, err := runCLI(t, "extract", doc, "--answers", key, "--subjects-file", subs, "-o", out); err != nil {
		t.Fatalf("extract: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var v model.Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if !v.Status || v.Subject != "ENG" || v.Batch != "eng-2024" {
		t.Errorf("expected passing ENG verdict for eng-2024, got %+v", v)
	}
	var last model.Question
	for _, g := range v.Data {
		for _, q := range g.Items {
			last = q
		}
	}
	if last.Order != 2 || last.Answer != model.CodeD || last.SubjectID != "subject-eng" || last.SubTopicID != "s-1" {
		t.Errorf("expected bound and classified item 2, got %+v", last)
	}
}

func TestExtract_RejectedExitsNonZero(t *testing.T) {
	dir := t.TempDir()
	subs := writeFixture(t, dir, "subjects.json", subjectsFile)
	doc := writeFixture(t, dir, "ENG.html", exam(1))
	key := writeFixture(t, dir, "key.csv", "A\nB\n")
	out := filepath.Join(dir, "out.json")

	_, err := runCLI(t, "extract", doc, "--answers", key, "--subjects-file", subs, "-o", out)
	if !errors.Is(err, errRejected) {
		t.Fatalf("expected errRejected, got %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Error("expected verdict written even when rejected")
	}

	if _, err := runCLI(t, "extract", doc, "--answers", key, "--subjects-file", subs, "-o", out, "--fail-on-reject=false"); err != nil {
		t.Errorf("expected success with --fail-on-reject=false, got %v", err)
	}
}

func TestExtract_RequiresAnswers(t *testing.T) {
	if _, err := runCLI(t, "extract", "doc.html"); err == nil {
		t.Error("expected missing --answers to fail")
	}
}

func TestSubjectsValidate(t *testing.T) {
	dir := t.TempDir()
	subs := writeFixture(t, dir, "subjects.json", subjectsFile)

	out, err := runCLI(t, "subjects", "validate", subs)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "ENG: 2 questions, 1 topics") || !strings.Contains(out, "1 subjects valid") {
		t.Errorf("unexpected report %q", out)
	}

	bad := writeFixture(t, dir, "bad.json", `{"X": {"totalQuestions": 2, "tos": [{"title": "t", "subTopics": [{"title": "a", "start": 1, "end": 2}, {"title": "b", "start": 2, "end": 2}]}]}}`)
	if _, err := runCLI(t, "subjects", "validate", bad); err == nil {
		t.Error("expected overlapping ranges to fail validation")
	}
}
