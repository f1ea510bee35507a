// Package classify binds questions to a subject's topic taxonomy and
// arranges classified groups into publishable units.
package classify

import (
	"fmt"

	"github.com/igzam/itemgest/internal/markup"
	"github.com/igzam/itemgest/internal/model"
)

// Classify assigns topic and subtopic fields to every item whose order falls
// inside a subtopic range. Items outside every range are left untouched.
func Classify(tos []model.Topic, items []model.Question) {
	for _, topic := range tos {
		for _, st := range topic.SubTopics {
			for i := range items {
				q := &items[i]
				if !st.Contains(q.Order) {
					continue
				}
				q.Text = markup.Clean(q.Text)
				q.Topic = topic.Title
				q.TopicIndex = topic.Index
				q.TopicID = topic.Identifier()
				q.SubTopic = st.Title
				q.SubTopicID = st.Identifier()
			}
		}
	}
}

// ClassifyGroups runs Classify over the items of every group.
func ClassifyGroups(tos []model.Topic, groups []model.Group) {
	for i := range groups {
		Classify(tos, groups[i].Items)
	}
}

// Arrange turns classified groups into publishable units following the
// subject's grouping policy. Items it cannot place are reported as
// unplaced warnings.
func Arrange(spec model.SubjectSpec, groups []model.Group) ([]model.Unit, []model.Diagnostic) {
	if !spec.Grouping {
		return flatten(groups), nil
	}

	var (
		units []model.Unit
		diags []model.Diagnostic
	)
	for _, g := range groups {
		if len(g.Items) == 0 {
			continue
		}
		placed := make(map[int]bool, len(g.Items))
		if g.Grouped {
			units = append(units, arrangeGrouped(spec.TOS, g, placed)...)
		} else {
			units = append(units, arrangeUngrouped(spec.TOS, g, placed)...)
		}
		for _, q := range g.Items {
			if !placed[q.Order] {
				diags = append(diags, model.Diagnostic{
					Kind:    model.KindUnplaced,
					Order:   q.Order,
					Message: fmt.Sprintf("question %d fits no subtopic arrangement", q.Order),
				})
			}
		}
	}
	return units, diags
}

// arrangeGrouped emits the whole group for a hasGroup subtopic with the
// same span, and splits it per subtopic otherwise with the instruction
// prepended to each stem.
func arrangeGrouped(tos []model.Topic, g model.Group, placed map[int]bool) []model.Unit {
	start, end, _ := g.Span()
	var units []model.Unit
	for _, topic := range tos {
		for _, st := range topic.SubTopics {
			if st.HasGroup {
				if st.Start != start || st.End != end {
					continue
				}
				units = append(units, model.Unit{
					Grouped:     true,
					Instruction: instructionOf(g),
					Items:       append([]model.Question(nil), g.Items...),
				})
				markAll(placed, g.Items)
				continue
			}
			items := within(st, g.Items)
			if len(items) == 0 {
				continue
			}
			for i := range items {
				items[i].Text = markup.Join(g.Instruction, items[i].Text)
			}
			units = append(units, model.Unit{
				Grouped:     true,
				Instruction: instructionOf(g),
				Items:       items,
			})
			markAll(placed, items)
		}
	}
	return units
}

// arrangeUngrouped buckets the remainder per subtopic under a placeholder
// instruction.
func arrangeUngrouped(tos []model.Topic, g model.Group, placed map[int]bool) []model.Unit {
	var units []model.Unit
	for _, topic := range tos {
		for _, st := range topic.SubTopics {
			items := within(st, g.Items)
			if len(items) == 0 {
				continue
			}
			units = append(units, model.Unit{
				Grouped:     true,
				Instruction: markup.EmptyParagraph,
				Items:       items,
			})
			markAll(placed, items)
		}
	}
	return units
}

// flatten is the policy for subjects without grouping: grouped items carry
// their instruction in the stem and everything is published standalone.
func flatten(groups []model.Group) []model.Unit {
	var units []model.Unit
	for _, g := range groups {
		if len(g.Items) == 0 {
			continue
		}
		items := append([]model.Question(nil), g.Items...)
		if g.Grouped {
			for i := range items {
				items[i].Text = markup.Join(g.Instruction, items[i].Text)
			}
		}
		units = append(units, model.Unit{Items: items})
	}
	return units
}

func within(st model.SubTopic, items []model.Question) []model.Question {
	var out []model.Question
	for _, q := range items {
		if st.Contains(q.Order) {
			out = append(out, q)
		}
	}
	return out
}

func markAll(placed map[int]bool, items []model.Question) {
	for _, q := range items {
		placed[q.Order] = true
	}
}

func instructionOf(g model.Group) string {
	if g.Instruction == "" {
		return markup.EmptyParagraph
	}
	return g.Instruction
}
