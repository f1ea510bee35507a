// Package extract turns a content fragment into ordered question records,
// binds answers and validates the assembled collection.
package extract

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/igzam/itemgest/internal/markup"
	"github.com/igzam/itemgest/internal/model"
)

// block is the run of top-level nodes governed by one numbered list.
type block struct {
	order int
	nodes []*html.Node
}

// Extract scans content for question blocks. Each block starts at a
// top-level list with an explicit start index and runs to the next one.
// Content before the first block is ignored.
func Extract(content string, answers model.AnswerMap, subjectID string) ([]model.Question, error) {
	root, err := markup.ParseFragment(content)
	if err != nil {
		return nil, fmt.Errorf("extract questions: %w", err)
	}

	blocks := splitBlocks(root)
	questions := make([]model.Question, 0, len(blocks))
	prefixes := make(map[int]string)

	for _, b := range blocks {
		core, trailing := splitTrailing(b.nodes)
		if len(trailing) > 0 {
			prefixes[b.order] = wrapInline(trailing)
		}

		options := []model.Option{}
		if list := optionList(core); list != nil {
			options = readOptions(list)
			core = without(core, list)
			markup.Detach(list)
		}

		questions = append(questions, model.Question{
			Order:     b.order,
			Text:      stem(core),
			Options:   options,
			SubjectID: subjectID,
		})
	}

	for i := range questions {
		q := &questions[i]
		if p, ok := prefixes[q.Order-1]; ok {
			q.Text = markup.Join(p, q.Text)
		}
		q.Text = markup.Clean(q.Text)
	}

	Bind(questions, answers)
	return questions, nil
}

// Bind sets each question's answer from the map, keyed by order. Missing
// entries leave the answer empty.
func Bind(questions []model.Question, answers model.AnswerMap) {
	for i := range questions {
		questions[i].Answer = answers.Lookup(questions[i].Order)
	}
}

func splitBlocks(root *html.Node) []block {
	var (
		blocks []block
		cur    *block
	)
	for _, n := range markup.Children(root) {
		if markup.IsQuestionList(n) {
			if order, ok := markup.Start(n); ok {
				blocks = append(blocks, block{order: order})
				cur = &blocks[len(blocks)-1]
			}
		}
		if cur != nil {
			cur.nodes = append(cur.nodes, n)
		}
	}
	return blocks
}

// splitTrailing separates the nodes after the block's last list-bearing
// node. That trailing content is a lead-in for the next question.
func splitTrailing(nodes []*html.Node) (core, trailing []*html.Node) {
	last := 0
	for i, n := range nodes {
		if markup.ContainsList(n) {
			last = i
		}
	}
	core, trailing = nodes[:last+1], nodes[last+1:]
	for _, n := range trailing {
		if !markup.IsBlank(n) {
			return core, trailing
		}
	}
	return core, nil
}

// optionList returns the first option list, in document order, that holds
// no nested option list.
func optionList(nodes []*html.Node) *html.Node {
	var found *html.Node
	for _, n := range nodes {
		markup.Walk(n, func(x *html.Node) bool {
			if found != nil {
				return false
			}
			if markup.IsOptionList(x) && len(markup.FindAll(x, markup.IsOptionList)) == 0 {
				found = x
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

func readOptions(list *html.Node) []model.Option {
	options := []model.Option{}
	for _, li := range markup.Children(list) {
		if !markup.IsElement(li, "li") {
			continue
		}
		for _, p := range markup.FindAll(li, func(x *html.Node) bool { return markup.IsElement(x, "p") }) {
			markup.Unwrap(p)
		}
		options = append(options, model.Option{
			Text: strings.TrimSpace(markup.RenderChildren(li)),
			Code: model.CodeForSlot(len(options) + 1),
		})
	}
	return options
}

// stem renders the block with the question list and its item unwrapped.
func stem(core []*html.Node) string {
	anchor := core[0]
	for _, li := range markup.Children(anchor) {
		if markup.IsElement(li, "li") {
			markup.Unwrap(li)
		}
	}
	container := markup.NewContainer()
	markup.Move(container, core)
	markup.Unwrap(anchor)
	return strings.TrimSpace(markup.RenderChildren(container))
}

func without(nodes []*html.Node, n *html.Node) []*html.Node {
	out := nodes[:0:0]
	for _, x := range nodes {
		if x != n {
			out = append(out, x)
		}
	}
	return out
}

var blockElements = map[string]bool{
	"p": true, "div": true, "table": true, "ol": true, "ul": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true,
}

// wrapInline renders trailing nodes, wrapping them in a paragraph when none
// of them is a block element.
func wrapInline(nodes []*html.Node) string {
	s := strings.TrimSpace(markup.Render(nodes...))
	for _, n := range nodes {
		if n.Type == html.ElementNode && blockElements[n.Data] {
			return s
		}
	}
	return "<p>" + s + "</p>"
}
