package subjects

import (
	"fmt"
	"sort"

	"github.com/igzam/itemgest/internal/model"
)

type span struct {
	start, end int
	label      string
}

// ValidateRanges checks a subject's range table. Inverted or overlapping
// ranges are errors. Orders between 1 and TotalQuestions that no range
// covers are returned as warnings.
func ValidateRanges(spec model.SubjectSpec) (warnings []string, err error) {
	var spans []span
	for _, t := range spec.TOS {
		for _, st := range t.SubTopics {
			label := fmt.Sprintf("%s/%s [%d,%d]", t.Title, st.Title, st.Start, st.End)
			if st.Start < 1 || st.End < st.Start {
				return nil, fmt.Errorf("subject %s: invalid range %s", spec.Code, label)
			}
			spans = append(spans, span{start: st.Start, end: st.End, label: label})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	next := 1
	for i, s := range spans {
		if i > 0 && s.start <= spans[i-1].end {
			return nil, fmt.Errorf("subject %s: range %s overlaps %s", spec.Code, s.label, spans[i-1].label)
		}
		if s.start > next && next <= spec.TotalQuestions {
			warnings = append(warnings, fmt.Sprintf("orders %d-%d belong to no subtopic", next, min(s.start-1, spec.TotalQuestions)))
		}
		if s.end > spec.TotalQuestions {
			warnings = append(warnings, fmt.Sprintf("range %s exceeds %d questions", s.label, spec.TotalQuestions))
		}
		next = s.end + 1
	}
	if next <= spec.TotalQuestions {
		warnings = append(warnings, fmt.Sprintf("orders %d-%d belong to no subtopic", next, spec.TotalQuestions))
	}
	return warnings, nil
}
