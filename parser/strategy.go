package parser

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// strategy is one way of locating an optional text value inside a selection.
type strategy func(*goquery.Selection) (string, bool)

// firstOf evaluates strategies in order; the first that yields text wins.
func firstOf(sel *goquery.Selection, strategies ...strategy) *string {
	for _, s := range strategies {
		if value, ok := s(sel); ok {
			return &value
		}
	}
	return nil
}

// textOf returns the text of the first element matching selector.
func textOf(selector string) strategy {
	return func(sel *goquery.Selection) (string, bool) {
		return nonEmpty(sel.Find(selector).First())
	}
}

// firstTextChild returns the first element matching child under the first
// container that has any text.
func firstTextChild(container, child string) strategy {
	return func(sel *goquery.Selection) (string, bool) {
		var text string
		sel.Find(container).First().Find(child).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			value, ok := nonEmpty(s)
			if ok {
				text = value
			}
			return !ok
		})
		return text, text != ""
	}
}

func nonEmpty(sel *goquery.Selection) (string, bool) {
	if sel.Length() == 0 {
		return "", false
	}
	text := normalizeSpace(sel.Text())
	return text, text != ""
}

// nextSiblingText returns the text of the node that directly follows the
// first node of sel, which is usually a bare text node.
func nextSiblingText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	next := sel.Get(0).NextSibling
	if next == nil {
		return ""
	}
	var buf bytes.Buffer
	nodeText(next, &buf)
	return normalizeSpace(buf.String())
}

func nodeText(n *html.Node, buf *bytes.Buffer) {
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		nodeText(child, buf)
	}
}
