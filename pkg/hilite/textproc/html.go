package textproc

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML extracts the visible text of an HTML fragment or document.
// Script and style contents are skipped; block-level elements contribute
// a sentence break so downstream phrase generation does not join words
// across layout boundaries. Unparseable input is returned as-is.
func StripHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var buf strings.Builder
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElement(n.Data) {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c)
		}
		if n.Type == html.ElementNode && blockElement(n.Data) {
			buf.WriteString(".\n")
		}
	}
	extractText(doc)

	return strings.TrimSpace(buf.String())
}

func skipElement(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "head":
		return true
	}
	return false
}

func blockElement(tag string) bool {
	switch tag {
	case "p", "div", "li", "br", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "section", "article":
		return true
	}
	return false
}
