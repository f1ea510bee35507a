package extract

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/igzam/itemgest/internal/markup"
	"github.com/igzam/itemgest/internal/model"
)

func question(order int, stem string, opts ...string) string {
	var sb strings.Builder
	sb.WriteString(`<ol start="`)
	sb.WriteString(strconv.Itoa(order))
	sb.WriteString(`"><li><p>`)
	sb.WriteString(stem)
	sb.WriteString(`</p>`)
	if len(opts) > 0 {
		sb.WriteString(`<ol type="A">`)
		for _, o := range opts {
			sb.WriteString(`<li><p>` + o + `</p></li>`)
		}
		sb.WriteString(`</ol>`)
	}
	sb.WriteString(`</li></ol>`)
	return sb.String()
}

func TestExtract_StemAndOptions(t *testing.T) {
	qs, err := Extract(question(1, "What is 2+2?", "3", "4", "5", "6"), nil, "subj-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("expected 1 question, got %d", len(qs))
	}
	q := qs[0]
	if q.Order != 1 {
		t.Errorf("expected order 1, got %d", q.Order)
	}
	if q.Text != "<p>What is 2+2?</p>" {
		t.Errorf("expected stem without lists, got %q", q.Text)
	}
	if q.SubjectID != "subj-1" {
		t.Errorf("expected subject subj-1, got %q", q.SubjectID)
	}
	if len(q.Options) != 4 {
		t.Fatalf("expected 4 options, got %d", len(q.Options))
	}
	wantCodes := []model.OptionCode{model.CodeA, model.CodeB, model.CodeC, model.CodeD}
	wantText := []string{"3", "4", "5", "6"}
	for i, o := range q.Options {
		if o.Code != wantCodes[i] {
			t.Errorf("option %d: expected code %s, got %s", i, wantCodes[i], o.Code)
		}
		if o.Text != wantText[i] {
			t.Errorf("option %d: expected text %q, got %q", i, wantText[i], o.Text)
		}
	}
}

func TestExtract_OrdersFollowDocument(t *testing.T) {
	content := question(1, "a", "w", "x", "y", "z") + question(2, "b", "w", "x", "y", "z") + question(3, "c", "w", "x", "y", "z")
	qs, err := Extract(content, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(qs))
	}
	for i, q := range qs {
		if q.Order != i+1 {
			t.Errorf("expected order %d, got %d", i+1, q.Order)
		}
	}
}

func TestExtract_OrphanPrefixMovesToNextQuestion(t *testing.T) {
	content := question(1, "Q1", "a", "b", "c", "d") +
		`<p>Passage for two.</p>` +
		question(2, "Q2", "e", "f", "g", "h")

	qs, err := Extract(content, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qs))
	}
	if qs[0].Text != "<p>Q1</p>" {
		t.Errorf("expected passage stripped from question 1, got %q", qs[0].Text)
	}
	if qs[1].Text != "<p>Passage for two.</p> <p>Q2</p>" {
		t.Errorf("expected passage prepended to question 2, got %q", qs[1].Text)
	}
}

func TestExtract_InlineOrphanIsWrapped(t *testing.T) {
	content := question(1, "Q1", "a", "b", "c", "d") + `Shared text` + question(2, "Q2", "e", "f", "g", "h")
	qs, err := Extract(content, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(qs[1].Text, "<p>Shared text</p>") {
		t.Errorf("expected wrapped lead-in, got %q", qs[1].Text)
	}
}

func TestExtract_SiblingOptionListStaysInBlock(t *testing.T) {
	content := `<ol start="1"><li><p>Q</p></li></ol><ol type="A"><li>a</li><li>b</li><li>c</li><li>d</li></ol>`
	qs, err := Extract(content, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 1 || len(qs[0].Options) != 4 {
		t.Fatalf("expected 1 question with 4 options, got %+v", qs)
	}
	if qs[0].Text != "<p>Q</p>" {
		t.Errorf("expected stem %q, got %q", "<p>Q</p>", qs[0].Text)
	}
}

func TestExtract_NoOptionList(t *testing.T) {
	qs, err := Extract(question(1, "Only a stem"), nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs[0].Options) != 0 {
		t.Errorf("expected zero options, got %d", len(qs[0].Options))
	}
	if qs[0].Text != "<p>Only a stem</p>" {
		t.Errorf("expected whole block as stem, got %q", qs[0].Text)
	}

	data, err := json.Marshal(qs[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"options":[]`) {
		t.Errorf("expected options encoded as an empty array, got %s", data)
	}
}

func TestExtract_EmptyStemGetsPlaceholder(t *testing.T) {
	content := `<ol start="1"><li><ol type="A"><li>a</li><li>b</li><li>c</li><li>d</li></ol></li></ol>`
	qs, err := Extract(content, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if qs[0].Text != markup.EmptyParagraph {
		t.Errorf("expected placeholder stem, got %q", qs[0].Text)
	}
}

func TestExtract_IgnoresLeadingContent(t *testing.T) {
	content := `<p>Answer all questions</p>` + question(1, "Q", "a", "b", "c", "d")
	qs, err := Extract(content, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("expected 1 question, got %d", len(qs))
	}
	if strings.Contains(qs[0].Text, "Answer all") {
		t.Errorf("expected header excluded from stem, got %q", qs[0].Text)
	}
}

func TestExtract_StripsLeftoverMarkers(t *testing.T) {
	content := `<ol start="1"><li><p>#endgroup</p><p>Q</p></li></ol>`
	qs, err := Extract(content, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if qs[0].Text != "<p>Q</p>" {
		t.Errorf("expected marker stripped, got %q", qs[0].Text)
	}
}

func TestExtract_BindsAnswers(t *testing.T) {
	content := question(1, "a", "w", "x", "y", "z") + question(2, "b", "w", "x", "y", "z")
	qs, err := Extract(content, model.AnswerMap{"1": model.CodeA}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if qs[0].Answer != model.CodeA {
		t.Errorf("expected answer %s for order 1, got %q", model.CodeA, qs[0].Answer)
	}
	if qs[1].Answer != "" {
		t.Errorf("expected empty answer for order 2, got %q", qs[1].Answer)
	}
}

func TestBind(t *testing.T) {
	qs := []model.Question{{Order: 1}, {Order: 2}, {Order: 3}}
	Bind(qs, model.AnswerMap{"1": model.CodeB, "3": model.CodeD})
	want := []model.OptionCode{model.CodeB, "", model.CodeD}
	for i, q := range qs {
		if q.Answer != want[i] {
			t.Errorf("order %d: expected %q, got %q", q.Order, want[i], q.Answer)
		}
	}
}
