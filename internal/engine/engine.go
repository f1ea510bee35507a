// Package engine runs one document through normalization, segmentation,
// extraction, classification, validation and arrangement.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/igzam/itemgest/internal/classify"
	"github.com/igzam/itemgest/internal/extract"
	"github.com/igzam/itemgest/internal/markup"
	"github.com/igzam/itemgest/internal/model"
	"github.com/igzam/itemgest/internal/segment"
)

// ErrAnswerKeyMismatch is wrapped by PreconditionError when the answer key
// length differs from the subject's question count.
var ErrAnswerKeyMismatch = errors.New("answer key count mismatch")

// PreconditionError aborts an invocation before any extraction.
type PreconditionError struct {
	Expected int
	Actual   int
	Err      error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%v: expected %d answers, got %d", e.Err, e.Expected, e.Actual)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// OperationError reports an unexpected failure inside the pipeline. It
// replaces any partial result.
type OperationError struct {
	Batch string
	Cause any
	Stack []byte
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("process %q: unexpected failure: %v", e.Batch, e.Cause)
}

// Input is everything one invocation needs. Nothing is shared between calls.
type Input struct {
	Content string
	Subject model.SubjectSpec
	Answers model.AnswerMap
	Batch   string
}

// Run processes one document. The verdict carries the classified groups
// even when Status is false. A non-nil error means no verdict was produced.
func Run(ctx context.Context, in Input) (v *model.Verdict, err error) {
	if len(in.Answers) != in.Subject.TotalQuestions {
		return nil, &PreconditionError{
			Expected: in.Subject.TotalQuestions,
			Actual:   len(in.Answers),
			Err:      ErrAnswerKeyMismatch,
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			v = nil
			err = &OperationError{Batch: in.Batch, Cause: r, Stack: debug.Stack()}
		}
	}()

	groups, err := buildGroups(in)
	if err != nil {
		return nil, err
	}

	classify.ClassifyGroups(in.Subject.TOS, groups)
	status, diags := extract.Validate(in.Subject, groups)
	units, unplaced := classify.Arrange(in.Subject, groups)
	diags = append(diags, unplaced...)

	return &model.Verdict{
		Status:      status,
		Batch:       in.Batch,
		Subject:     in.Subject.Code,
		Data:        groups,
		Units:       units,
		Diagnostics: diags,
	}, nil
}

// buildGroups is swapped in tests to fail inside the pipeline.
var buildGroups = groupsOf

// groupsOf yields the marker groups in document order followed by the
// ungrouped remainder.
func groupsOf(in Input) ([]model.Group, error) {
	subjectID := in.Subject.Identifier()

	seg, err := segment.Split(markup.Normalize(in.Content))
	if err != nil {
		return nil, err
	}

	groups := make([]model.Group, 0, len(seg.Segments)+1)
	for _, s := range seg.Segments {
		items, err := extract.Extract(s.Content, in.Answers, subjectID)
		if err != nil {
			return nil, fmt.Errorf("extract group: %w", err)
		}
		groups = append(groups, model.Group{
			Grouped:     true,
			Instruction: s.Instruction,
			Items:       items,
		})
	}

	rest, err := extract.Extract(seg.Remainder, in.Answers, subjectID)
	if err != nil {
		return nil, fmt.Errorf("extract remainder: %w", err)
	}
	groups = append(groups, model.Group{Items: rest})
	return groups, nil
}
