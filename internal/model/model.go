package model

import "strconv"

// OptionCode is the catalog return value of one of the four option slots.
type OptionCode string

const (
	CodeA OptionCode = "igzam1"
	CodeB OptionCode = "igzam2"
	CodeC OptionCode = "igzam3"
	CodeD OptionCode = "igzam4"
)

// OptionsPerQuestion is the required option cardinality.
const OptionsPerQuestion = 4

var slotCodes = [OptionsPerQuestion]OptionCode{CodeA, CodeB, CodeC, CodeD}

// CodeForSlot returns the code for a 1-based option slot, or "" outside 1..4.
func CodeForSlot(slot int) OptionCode {
	if slot < 1 || slot > OptionsPerQuestion {
		return ""
	}
	return slotCodes[slot-1]
}

// CodeForLetter maps an answer-key letter (A..D) to its option code.
func CodeForLetter(letter string) (OptionCode, bool) {
	if len(letter) != 1 {
		return "", false
	}
	c := letter[0]
	if c < 'A' || c > 'D' {
		return "", false
	}
	return slotCodes[c-'A'], true
}

// Option is one answer choice of a question.
type Option struct {
	Text string     `json:"option"`
	Code OptionCode `json:"returnValue"`
}

// Question is a single extracted item. Text is marked-up HTML.
type Question struct {
	Order      int        `json:"order"`
	Text       string     `json:"question"`
	Options    []Option   `json:"options"`
	Answer     OptionCode `json:"answer"`
	SubjectID  string     `json:"subject"`
	Topic      string     `json:"topic,omitempty"`
	TopicIndex int        `json:"topicIndex,omitempty"`
	TopicID    string     `json:"topicId,omitempty"`
	SubTopic   string     `json:"subTopic,omitempty"`
	SubTopicID string     `json:"subTopicId,omitempty"`
}

// Classified reports whether the question was bound to a subtopic.
func (q Question) Classified() bool {
	return q.SubTopicID != ""
}

// Group is a run of questions sharing an instruction. The ungrouped
// remainder of a document is a Group with Grouped=false.
type Group struct {
	Grouped     bool       `json:"grouped"`
	Instruction string     `json:"instruction,omitempty"`
	Items       []Question `json:"items"`
}

// Span returns the first and last item orders. ok is false for an empty group.
func (g Group) Span() (start, end int, ok bool) {
	if len(g.Items) == 0 {
		return 0, 0, false
	}
	return g.Items[0].Order, g.Items[len(g.Items)-1].Order, true
}

// Unit is what gets published: either a group (created first, items
// attached to it) or a run of standalone items.
type Unit struct {
	Grouped     bool       `json:"grouped"`
	Instruction string     `json:"instruction,omitempty"`
	Items       []Question `json:"items"`
}

// SubTopic owns the inclusive order range [Start, End].
type SubTopic struct {
	Title    string `json:"title"`
	ID       string `json:"id,omitempty"`
	MongoID  string `json:"_id,omitempty"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	HasGroup bool   `json:"hasGroup"`
}

// Contains reports whether order falls within the subtopic range.
func (s SubTopic) Contains(order int) bool {
	return order >= s.Start && order <= s.End
}

// Identifier prefers the catalog's _id over id.
func (s SubTopic) Identifier() string {
	if s.MongoID != "" {
		return s.MongoID
	}
	return s.ID
}

// Topic is one entry of a subject's table of specification.
type Topic struct {
	Title     string     `json:"title"`
	ID        string     `json:"id,omitempty"`
	MongoID   string     `json:"_id,omitempty"`
	Index     int        `json:"index"`
	SubTopics []SubTopic `json:"subTopics"`
}

// Identifier prefers the catalog's _id over id.
func (t Topic) Identifier() string {
	if t.MongoID != "" {
		return t.MongoID
	}
	return t.ID
}

// SubjectSpec is the read-only taxonomy a document is classified against.
type SubjectSpec struct {
	Code           string  `json:"code"`
	Name           string  `json:"name,omitempty"`
	ID             string  `json:"id,omitempty"`
	MongoID        string  `json:"_id,omitempty"`
	TotalQuestions int     `json:"totalQuestions"`
	Grouping       bool    `json:"grouping"`
	TOS            []Topic `json:"tos"`
}

// Identifier prefers the catalog's _id over id.
func (s SubjectSpec) Identifier() string {
	if s.MongoID != "" {
		return s.MongoID
	}
	return s.ID
}

// AnswerMap maps an order number (decimal string) to its answer code.
type AnswerMap map[string]OptionCode

// Lookup returns the answer for order, or "" when absent.
func (m AnswerMap) Lookup(order int) OptionCode {
	return m[strconv.Itoa(order)]
}

// DiagnosticKind classifies a validation finding.
type DiagnosticKind string

const (
	KindOptionCount  DiagnosticKind = "option_count"
	KindTotalCount   DiagnosticKind = "total_count"
	KindUnclassified DiagnosticKind = "unclassified"
	KindUnplaced     DiagnosticKind = "unplaced"
)

// Fatal reports whether a diagnostic of this kind fails the verdict.
func (k DiagnosticKind) Fatal() bool {
	return k == KindOptionCount || k == KindTotalCount
}

// Diagnostic is one itemized validation finding.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Order   int            `json:"order,omitempty"`
	Message string         `json:"message"`
}

// Verdict is the engine's result for one document.
type Verdict struct {
	Status      bool         `json:"status"`
	Batch       string       `json:"batch,omitempty"`
	Subject     string       `json:"subject,omitempty"`
	Data        []Group      `json:"data"`
	Units       []Unit       `json:"units,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// TotalItems sums items across all groups.
func TotalItems(groups []Group) int {
	n := 0
	for _, g := range groups {
		n += len(g.Items)
	}
	return n
}
