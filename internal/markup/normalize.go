package markup

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Elements dropped together with their content.
var droppedElements = map[string]bool{
	"head":     true,
	"meta":     true,
	"style":    true,
	"script":   true,
	"title":    true,
	"link":     true,
	"noscript": true,
}

// Presentation attributes removed from every element. List type and start
// survive; they carry structure.
var strippedAttrs = map[string]bool{
	"style": true,
	"class": true,
	"face":  true,
	"size":  true,
	"name":  true,
	"lang":  true,
	"dir":   true,
	"align": true,
	"link":  true,
	"color": true,
	"vlink": true,
	"alink": true,
	"text":  true,
	"width": true,
}

var (
	spaceRe       = regexp.MustCompile(`\s+`)
	markerRe      = regexp.MustCompile(`(?i)#\s?(start|end)group`)
	pageFurniture = map[string]bool{"header": true, "footer": true}
)

// Normalize turns converter output into canonical markup: presentation noise
// removed, whitespace collapsed, group markers bare, and every question list
// renumbered from 1 in document order. It never fails; input that cannot be
// parsed is returned with only whitespace collapsed.
func Normalize(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(spaceRe.ReplaceAllString(raw, " "))
	}

	root := NewContainer()
	if body := findBody(doc); body != nil {
		Move(root, Children(body))
	} else {
		Move(root, Children(doc))
	}

	strip(root)
	unwrapDecorative(root)
	MergeText(root)
	canonicalizeText(root)
	hoistMarkers(root)
	removeEmpty(root)
	MergeText(root)
	renumber(root)

	return strings.TrimSpace(RenderChildren(root))
}

func findBody(n *html.Node) *html.Node {
	if IsElement(n, "body") {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// strip drops non-content elements, comments and presentation attributes.
func strip(n *html.Node) {
	for _, c := range Children(n) {
		switch c.Type {
		case html.CommentNode, html.DoctypeNode:
			n.RemoveChild(c)
			continue
		case html.ElementNode:
			if droppedElements[c.Data] {
				n.RemoveChild(c)
				continue
			}
			if IsElement(c, "div") {
				if t, ok := Attr(c, "title"); ok && pageFurniture[strings.ToLower(t)] {
					n.RemoveChild(c)
					continue
				}
			}
			kept := c.Attr[:0]
			for _, a := range c.Attr {
				if !strippedAttrs[strings.ToLower(a.Key)] {
					kept = append(kept, a)
				}
			}
			c.Attr = kept
		}
		strip(c)
	}
}

// unwrapDecorative removes inline wrappers that carry no structure.
func unwrapDecorative(root *html.Node) {
	for _, n := range FindAll(root, func(x *html.Node) bool {
		return x.Type == html.ElementNode && (x.Data == "br" || x.Data == "font" || x.Data == "span" || x.Data == "div")
	}) {
		if IsElement(n, "br") {
			Detach(n)
			continue
		}
		if IsElement(n, "span") && len(n.Attr) > 0 {
			continue
		}
		Unwrap(n)
	}
}

func canonicalizeText(root *html.Node) {
	Walk(root, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			s := strings.ReplaceAll(n.Data, "\u00a0", " ")
			s = norm.NFC.String(s)
			s = spaceRe.ReplaceAllString(s, " ")
			n.Data = markerRe.ReplaceAllStringFunc(s, canonicalMarker)
		}
		return true
	})
}

func canonicalMarker(m string) string {
	if strings.Contains(strings.ToLower(m), "start") {
		return StartGroup
	}
	return EndGroup
}

// hoistMarkers lifts every group marker found inside an element to a bare
// top-level text node. The marker's top-level ancestor is split in two at
// the marker; list items are not carried into the second half, so trailing
// content of a question becomes loose markup after the marker.
func hoistMarkers(root *html.Node) {
	for _, c := range Children(root) {
		if IsQuestionList(c) {
			// renumber treats the first list as a question even without a
			// start; keep that true for the halves it may be split into.
			if _, ok := Attr(c, "start"); !ok {
				SetAttr(c, "start", "1")
			}
			break
		}
	}
	for {
		t, at := nestedMarker(root)
		if t == nil {
			return
		}
		hoist(root, t, at)
	}
}

// nestedMarker finds the first marker held by a text node below the top level.
func nestedMarker(root *html.Node) (*html.Node, int) {
	var found *html.Node
	at := -1
	for _, top := range Children(root) {
		if top.Type != html.ElementNode {
			continue
		}
		Walk(top, func(x *html.Node) bool {
			if found != nil {
				return false
			}
			if x.Type == html.TextNode {
				if i := markerIndex(x.Data); i >= 0 {
					found, at = x, i
				}
			}
			return true
		})
		if found != nil {
			break
		}
	}
	return found, at
}

func markerIndex(s string) int {
	i := strings.Index(s, StartGroup)
	if j := strings.Index(s, EndGroup); j >= 0 && (i < 0 || j < i) {
		i = j
	}
	return i
}

func hoist(root, t *html.Node, at int) {
	marker := EndGroup
	if strings.HasPrefix(t.Data[at:], StartGroup) {
		marker = StartGroup
	}
	rest := &html.Node{Type: html.TextNode, Data: t.Data[at+len(marker):]}
	t.Data = t.Data[:at]

	inner := append([]*html.Node{rest}, detachFollowing(t)...)
	n := t.Parent
	for {
		inner = carry(n, inner)
		if n.Parent == root {
			break
		}
		inner = append(inner, detachFollowing(n)...)
		n = n.Parent
	}

	// Drop wrappers the split left empty on the marker side.
	for x := t; x != n; {
		parent := x.Parent
		if !IsBlank(x) {
			break
		}
		parent.RemoveChild(x)
		x = parent
	}

	next := n.NextSibling
	root.InsertBefore(&html.Node{Type: html.TextNode, Data: " " + marker + " "}, next)
	for _, c := range inner {
		if !IsBlank(c) {
			root.InsertBefore(c, next)
		}
	}
	if IsBlank(n) {
		root.RemoveChild(n)
	}
}

// carry wraps the content that followed the split point inside n in a copy
// of n. List items are dropped as wrappers; lists keep only their items.
func carry(n *html.Node, inner []*html.Node) []*html.Node {
	switch {
	case IsElement(n, "li"):
		return inner
	case IsElement(n, "ol") || IsElement(n, "ul"):
		var loose, items []*html.Node
		for _, c := range inner {
			if IsElement(c, "li") {
				items = append(items, c)
			} else {
				loose = append(loose, c)
			}
		}
		if len(items) == 0 {
			return loose
		}
		return append(loose, shallowCopy(n, items))
	default:
		return []*html.Node{shallowCopy(n, inner)}
	}
}

func shallowCopy(n *html.Node, children []*html.Node) *html.Node {
	c := &html.Node{Type: n.Type, Data: n.Data, DataAtom: n.DataAtom, Namespace: n.Namespace}
	c.Attr = append(c.Attr, n.Attr...)
	for _, ch := range children {
		c.AppendChild(ch)
	}
	return c
}

func detachFollowing(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.NextSibling; c != nil; {
		next := c.NextSibling
		n.Parent.RemoveChild(c)
		out = append(out, c)
		c = next
	}
	return out
}

// removeEmpty drops paragraphs and anchors that render nothing, innermost first.
func removeEmpty(n *html.Node) {
	for _, c := range Children(n) {
		removeEmpty(c)
		if (IsElement(c, "p") || IsElement(c, "a")) && IsBlank(c) {
			n.RemoveChild(c)
		}
	}
}

// renumber splits multi-item question lists into one list per question and
// assigns start indexes 1..n in document order. Only top-level lists that
// declare a start index, plus the first top-level list, are questions; option
// lists lose any start override.
func renumber(root *html.Node) {
	for _, ol := range FindAll(root, IsOptionList) {
		RemoveAttr(ol, "start")
	}

	var questions []*html.Node
	first := true
	for _, c := range Children(root) {
		if !IsQuestionList(c) {
			continue
		}
		_, hasStart := Attr(c, "start")
		if !hasStart && !first {
			continue
		}
		first = false
		questions = append(questions, splitItems(c)...)
	}

	for i, ol := range questions {
		SetAttr(ol, "start", strconv.Itoa(i+1))
	}
}

// splitItems turns <ol><li/><li/></ol> into consecutive single-item lists.
func splitItems(ol *html.Node) []*html.Node {
	var items []*html.Node
	for _, c := range Children(ol) {
		if IsElement(c, "li") {
			items = append(items, c)
		}
	}
	out := []*html.Node{ol}
	if len(items) < 2 {
		return out
	}
	prev := ol
	for _, li := range items[1:] {
		next := &html.Node{Type: html.ElementNode, Data: ol.Data, DataAtom: ol.DataAtom}
		for _, a := range ol.Attr {
			next.Attr = append(next.Attr, a)
		}
		ol.RemoveChild(li)
		next.AppendChild(li)
		ol.Parent.InsertBefore(next, prev.NextSibling)
		out = append(out, next)
		prev = next
	}
	return out
}
