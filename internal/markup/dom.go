package markup

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// EmptyParagraph is the placeholder used wherever a stem or instruction
// would otherwise be empty.
const EmptyParagraph = "<p> </p>"

// Group markers as they appear in normalized content.
const (
	StartGroup = "#startgroup"
	EndGroup   = "#endgroup"
)

// NewContainer returns a detached <body> element used to hold fragments.
func NewContainer() *html.Node {
	return &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
}

// ParseFragment parses s as body content and returns a detached container
// holding the parsed nodes as children.
func ParseFragment(s string) (*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(s), NewContainer())
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	root := NewContainer()
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root, nil
}

// Children returns a snapshot of n's children, safe to mutate while iterating.
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// Render serializes the given nodes back to markup.
func Render(nodes ...*html.Node) string {
	var sb strings.Builder
	for _, n := range nodes {
		// strings.Builder never fails a write.
		_ = html.Render(&sb, n)
	}
	return sb.String()
}

// RenderChildren serializes n's children without n's own tags.
func RenderChildren(n *html.Node) string {
	return Render(Children(n)...)
}

// Detach removes n from its parent if it has one.
func Detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Unwrap replaces n with its children.
func Unwrap(n *html.Node) {
	p := n.Parent
	if p == nil {
		return
	}
	for _, c := range Children(n) {
		n.RemoveChild(c)
		p.InsertBefore(c, n)
	}
	p.RemoveChild(n)
}

// Move detaches each node and appends it to dst in order.
func Move(dst *html.Node, nodes []*html.Node) {
	for _, n := range nodes {
		Detach(n)
		dst.AppendChild(n)
	}
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the node's children.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, fn)
	}
}

// FindAll collects the descendants of n (excluding n) matching pred.
func FindAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, func(x *html.Node) bool {
			if pred(x) {
				out = append(out, x)
			}
			return true
		})
	}
	return out
}

// IsElement reports whether n is an element with the given tag.
func IsElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == tag
}

// Attr returns the value of key on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets key on n, replacing any existing value.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes key from n.
func RemoveAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

// IsOptionList reports whether n is an ordered list whose type attribute
// marks it as an option list (A, a, I, i).
func IsOptionList(n *html.Node) bool {
	if !IsElement(n, "ol") {
		return false
	}
	t, ok := Attr(n, "type")
	return ok && t != "" && t != "1"
}

// IsQuestionList reports whether n is a numbered ordered list.
func IsQuestionList(n *html.Node) bool {
	return IsElement(n, "ol") && !IsOptionList(n)
}

// Start returns the explicit numeric start index of a list.
func Start(n *html.Node) (int, bool) {
	v, ok := Attr(n, "start")
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return i, true
}

// ContainsList reports whether n is or contains an <ol>.
func ContainsList(n *html.Node) bool {
	found := false
	Walk(n, func(x *html.Node) bool {
		if found {
			return false
		}
		if IsElement(x, "ol") {
			found = true
			return false
		}
		return true
	})
	return found
}

// TextContent returns the concatenated text of n and its descendants.
func TextContent(n *html.Node) string {
	var sb strings.Builder
	Walk(n, func(x *html.Node) bool {
		if x.Type == html.TextNode {
			sb.WriteString(x.Data)
		}
		return true
	})
	return sb.String()
}

// IsBlank reports whether n carries no visible content: only whitespace
// text and no void content elements such as images.
func IsBlank(n *html.Node) bool {
	blank := true
	Walk(n, func(x *html.Node) bool {
		if !blank {
			return false
		}
		switch x.Type {
		case html.TextNode:
			if strings.TrimSpace(x.Data) != "" {
				blank = false
			}
		case html.ElementNode:
			switch x.Data {
			case "img", "hr", "table", "math", "svg", "input":
				blank = false
			}
		}
		return true
	})
	return blank
}

// MergeText joins adjacent text node children of n, recursively.
func MergeText(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.TextNode {
			for next != nil && next.Type == html.TextNode {
				c.Data += next.Data
				after := next.NextSibling
				n.RemoveChild(next)
				next = after
			}
		} else {
			MergeText(c)
		}
		c = next
	}
}
