package markup

import (
	"strings"

	"golang.org/x/net/html"
)

// Clean strips leftover group markers and empty paragraphs from a stem or
// instruction. The result is never empty: blank input yields EmptyParagraph.
func Clean(s string) string {
	root, err := ParseFragment(s)
	if err != nil {
		return orPlaceholder(strings.TrimSpace(markerRe.ReplaceAllString(s, "")))
	}
	for _, sp := range FindAll(root, func(x *html.Node) bool { return IsElement(x, "span") && len(x.Attr) == 0 }) {
		Unwrap(sp)
	}
	MergeText(root)
	Walk(root, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			n.Data = markerRe.ReplaceAllString(n.Data, "")
		}
		return true
	})
	removeEmpty(root)
	return orPlaceholder(strings.TrimSpace(RenderChildren(root)))
}

// Join concatenates two marked-up fragments with a separating space. Blank
// or placeholder sides are dropped.
func Join(prefix, s string) string {
	switch {
	case isPlaceholder(prefix):
		return s
	case isPlaceholder(s):
		return prefix
	}
	return prefix + " " + s
}

func isPlaceholder(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == EmptyParagraph
}

func orPlaceholder(s string) string {
	if s == "" {
		return EmptyParagraph
	}
	return s
}
