package classify

import (
	"strings"
	"testing"

	"github.com/igzam/itemgest/internal/markup"
	"github.com/igzam/itemgest/internal/model"
)

func items(orders ...int) []model.Question {
	out := make([]model.Question, 0, len(orders))
	for _, o := range orders {
		out = append(out, model.Question{Order: o, Text: "<p>stem</p>"})
	}
	return out
}

func twoRangeTOS() []model.Topic {
	return []model.Topic{{
		Title: "Algebra",
		ID:    "t-1",
		Index: 1,
		SubTopics: []model.SubTopic{
			{Title: "Linear", ID: "s-1", Start: 1, End: 5},
			{Title: "Quadratic", MongoID: "s-2", Start: 6, End: 10},
		},
	}}
}

func TestClassify_RangePartition(t *testing.T) {
	qs := items(3, 8, 11)
	Classify(twoRangeTOS(), qs)

	if qs[0].SubTopicID != "s-1" || qs[0].SubTopic != "Linear" {
		t.Errorf("expected order 3 in Linear, got %q/%q", qs[0].SubTopic, qs[0].SubTopicID)
	}
	if qs[1].SubTopicID != "s-2" || qs[1].SubTopic != "Quadratic" {
		t.Errorf("expected order 8 in Quadratic, got %q/%q", qs[1].SubTopic, qs[1].SubTopicID)
	}
	if qs[2].Classified() || qs[2].Topic != "" {
		t.Errorf("expected order 11 unclassified, got %+v", qs[2])
	}
	if qs[0].Topic != "Algebra" || qs[0].TopicID != "t-1" || qs[0].TopicIndex != 1 {
		t.Errorf("expected topic fields set, got %+v", qs[0])
	}
}

func TestClassify_CleansStem(t *testing.T) {
	qs := []model.Question{{Order: 1, Text: "<p>#endgroup</p><p>Q</p>"}}
	Classify(twoRangeTOS(), qs)
	if qs[0].Text != "<p>Q</p>" {
		t.Errorf("expected marker removed, got %q", qs[0].Text)
	}
}

func groupedSpec(hasGroup bool) model.SubjectSpec {
	return model.SubjectSpec{
		TotalQuestions: 5,
		Grouping:       true,
		TOS: []model.Topic{{
			Title: "Reading",
			ID:    "t-1",
			SubTopics: []model.SubTopic{
				{Title: "Vocabulary", ID: "s-1", Start: 1, End: 2},
				{Title: "Comprehension", ID: "s-2", Start: 3, End: 5, HasGroup: hasGroup},
			},
		}},
	}
}

func sourceGroups() []model.Group {
	return []model.Group{
		{Grouped: true, Instruction: "<p>Read the passage.</p>", Items: items(3, 4, 5)},
		{Items: items(1, 2)},
	}
}

func TestArrange_HasGroupEmitsWholeGroup(t *testing.T) {
	units, diags := Arrange(groupedSpec(true), sourceGroups())
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", diags)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	g := units[0]
	if !g.Grouped || g.Instruction != "<p>Read the passage.</p>" {
		t.Errorf("expected grouped unit with instruction, got %+v", g)
	}
	if len(g.Items) != 3 || g.Items[0].Order != 3 || g.Items[2].Order != 5 {
		t.Fatalf("expected items 3..5, got %+v", g.Items)
	}
	if g.Items[0].Text != "<p>stem</p>" {
		t.Errorf("expected stem untouched, got %q", g.Items[0].Text)
	}
	rest := units[1]
	if rest.Instruction != markup.EmptyParagraph || len(rest.Items) != 2 {
		t.Errorf("expected remainder bucketed under placeholder, got %+v", rest)
	}
}

func TestArrange_WithoutHasGroupPrependsInstruction(t *testing.T) {
	units, _ := Arrange(groupedSpec(false), sourceGroups())
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	g := units[0]
	if len(g.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(g.Items))
	}
	for _, q := range g.Items {
		if !strings.HasPrefix(q.Text, "<p>Read the passage.</p>") {
			t.Errorf("order %d: expected instruction prepended, got %q", q.Order, q.Text)
		}
	}
	if g.Instruction != "<p>Read the passage.</p>" {
		t.Errorf("expected synthetic group to carry instruction, got %q", g.Instruction)
	}
}

func TestArrange_DoesNotMutateSource(t *testing.T) {
	src := sourceGroups()
	Arrange(groupedSpec(false), src)
	if src[0].Items[0].Text != "<p>stem</p>" {
		t.Errorf("expected source stem unchanged, got %q", src[0].Items[0].Text)
	}
}

func TestArrange_SpanMismatchIsUnplaced(t *testing.T) {
	groups := []model.Group{{Grouped: true, Instruction: "<p>i</p>", Items: items(3, 4)}}
	units, diags := Arrange(groupedSpec(true), groups)
	if len(units) != 0 {
		t.Errorf("expected no units, got %d", len(units))
	}
	if len(diags) != 2 {
		t.Fatalf("expected 2 unplaced diagnostics, got %+v", diags)
	}
	for _, d := range diags {
		if d.Kind != model.KindUnplaced {
			t.Errorf("expected unplaced, got %s", d.Kind)
		}
	}
}

func TestArrange_SkipsEmptyGroups(t *testing.T) {
	groups := []model.Group{{Grouped: true, Instruction: "<p>i</p>"}, {Items: items(1)}}
	units, _ := Arrange(groupedSpec(true), groups)
	if len(units) != 1 {
		t.Fatalf("expected processing to continue past an empty group, got %d units", len(units))
	}
}

func TestArrange_NoGroupingFlattens(t *testing.T) {
	spec := groupedSpec(true)
	spec.Grouping = false
	units, diags := Arrange(spec, sourceGroups())
	if diags != nil {
		t.Errorf("expected no diagnostics, got %+v", diags)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	for _, u := range units {
		if u.Grouped {
			t.Error("expected ungrouped units")
		}
	}
	if !strings.HasPrefix(units[0].Items[0].Text, "<p>Read the passage.</p> ") {
		t.Errorf("expected instruction flattened into stem, got %q", units[0].Items[0].Text)
	}
	if units[1].Items[0].Text != "<p>stem</p>" {
		t.Errorf("expected ungrouped stem unchanged, got %q", units[1].Items[0].Text)
	}
}
