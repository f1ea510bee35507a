package extract

import (
	"fmt"

	"github.com/igzam/itemgest/internal/model"
)

// Validate checks every item's option cardinality and the total item count
// against the subject. Items left without a subtopic are reported as
// warnings. The verdict is false when any fatal diagnostic was produced.
func Validate(spec model.SubjectSpec, groups []model.Group) (bool, []model.Diagnostic) {
	var diags []model.Diagnostic

	for _, g := range groups {
		for _, q := range g.Items {
			if len(q.Options) != model.OptionsPerQuestion {
				diags = append(diags, model.Diagnostic{
					Kind:    model.KindOptionCount,
					Order:   q.Order,
					Message: fmt.Sprintf("question %d has %d options, expected %d", q.Order, len(q.Options), model.OptionsPerQuestion),
				})
			}
			if !q.Classified() {
				diags = append(diags, model.Diagnostic{
					Kind:    model.KindUnclassified,
					Order:   q.Order,
					Message: fmt.Sprintf("question %d matches no subtopic range", q.Order),
				})
			}
		}
	}

	if total := model.TotalItems(groups); total != spec.TotalQuestions {
		diags = append(diags, model.Diagnostic{
			Kind:    model.KindTotalCount,
			Message: fmt.Sprintf("extracted %d questions, expected %d", total, spec.TotalQuestions),
		})
	}

	return Passed(diags), diags
}

// Passed reports whether diags holds no fatal finding.
func Passed(diags []model.Diagnostic) bool {
	for _, d := range diags {
		if d.Kind.Fatal() {
			return false
		}
	}
	return true
}
