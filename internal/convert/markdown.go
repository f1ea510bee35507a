package convert

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"

	"github.com/igzam/itemgest/internal/markup"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Markdown renders a Markdown exam. Top-level ordered lists become
// numbered question lists and nested ordered lists become option lists.
func Markdown(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}

	root, err := markup.ParseFragment(buf.String())
	if err != nil {
		return "", err
	}
	for _, ol := range markup.FindAll(root, func(n *html.Node) bool { return markup.IsElement(n, "ol") }) {
		if ol.Parent == root {
			if _, ok := markup.Attr(ol, "start"); !ok {
				markup.SetAttr(ol, "start", "1")
			}
			continue
		}
		if _, ok := markup.Attr(ol, "type"); !ok {
			markup.SetAttr(ol, "type", "A")
		}
	}
	return markup.RenderChildren(root), nil
}
