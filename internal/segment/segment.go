// Package segment partitions normalized content into marker-delimited groups
// and the ungrouped remainder.
package segment

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/igzam/itemgest/internal/markup"
)

// Segment is the content between one matched #startgroup/#endgroup pair.
type Segment struct {
	// Instruction is the markup preceding the segment's first list, or
	// markup.EmptyParagraph when there is none.
	Instruction string
	// Content holds the question blocks. Empty when the segment has no list.
	Content string
}

// Result is the output of Split.
type Result struct {
	Segments  []Segment
	Remainder string
}

var markerRe = regexp.MustCompile(`#(start|end)group`)

type tokenKind int

const (
	tokNode tokenKind = iota
	tokStart
	tokEnd
)

type token struct {
	kind tokenKind
	node *html.Node
}

// Split scans the top level of normalized content for matched marker pairs.
// Markers are not nested: a #startgroup inside an open group is kept as text.
// Unmatched markers stay in the remainder and are stripped later by
// markup.Clean.
func Split(normalized string) (Result, error) {
	root, err := markup.ParseFragment(normalized)
	if err != nil {
		return Result{}, fmt.Errorf("split groups: %w", err)
	}

	var (
		res       Result
		remainder []*html.Node
		open      bool
		buf       []*html.Node
	)
	for _, tk := range tokenize(root) {
		switch {
		case tk.kind == tokNode && open:
			buf = append(buf, tk.node)
		case tk.kind == tokNode:
			remainder = append(remainder, tk.node)
		case tk.kind == tokStart && open:
			buf = append(buf, textNode(markup.StartGroup))
		case tk.kind == tokStart:
			open = true
			buf = nil
		case tk.kind == tokEnd && open:
			res.Segments = append(res.Segments, newSegment(buf))
			open = false
			buf = nil
		default:
			remainder = append(remainder, textNode(markup.EndGroup))
		}
	}
	if open {
		remainder = append(remainder, textNode(markup.StartGroup))
		remainder = append(remainder, buf...)
	}

	res.Remainder = strings.TrimSpace(markup.Render(remainder...))
	return res, nil
}

// tokenize detaches the top-level nodes of root, splitting text nodes around
// group markers.
func tokenize(root *html.Node) []token {
	var out []token
	for _, n := range markup.Children(root) {
		markup.Detach(n)
		if n.Type != html.TextNode {
			out = append(out, token{kind: tokNode, node: n})
			continue
		}
		text, last := n.Data, 0
		for _, loc := range markerRe.FindAllStringIndex(text, -1) {
			if loc[0] > last {
				out = append(out, token{kind: tokNode, node: textNode(text[last:loc[0]])})
			}
			kind := tokEnd
			if strings.HasPrefix(text[loc[0]:loc[1]], markup.StartGroup) {
				kind = tokStart
			}
			out = append(out, token{kind: kind})
			last = loc[1]
		}
		if last < len(text) {
			out = append(out, token{kind: tokNode, node: textNode(text[last:])})
		}
	}
	return out
}

// newSegment separates the leading instruction from the question blocks.
func newSegment(nodes []*html.Node) Segment {
	split := len(nodes)
	for i, n := range nodes {
		if markup.ContainsList(n) {
			split = i
			break
		}
	}
	return Segment{
		Instruction: markup.Clean(markup.Render(nodes[:split]...)),
		Content:     strings.TrimSpace(markup.Render(nodes[split:]...)),
	}
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
