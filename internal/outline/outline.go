// Package outline builds a nested table of contents from rendered HTML.
package outline

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Bitlatte/readnext/internal/model"
)

const headingSelector = "h1, h2, h3, h4, h5, h6"

var (
	disallowed = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Extract returns the heading outline of renderedHTML.
func Extract(renderedHTML string) ([]model.OutlineItem, error) {
	return ExtractFromReader(strings.NewReader(renderedHTML))
}

// ExtractFromReader is Extract over a reader.
func ExtractFromReader(r io.Reader) ([]model.OutlineItem, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var headings []model.OutlineItem
	doc.Find(headingSelector).Each(func(_ int, s *goquery.Selection) {
		raw := s.Text()
		id, ok := s.Attr("id")
		if !ok || id == "" {
			id = Slugify(raw)
		}
		text := strings.TrimSpace(raw)
		headings = append(headings, model.OutlineItem{
			ID:    id,
			Text:  text,
			Level: headingLevel(goquery.NodeName(s)),
		})
	})

	return nest(headings), nil
}

// Slugify derives an anchor id from heading text: lowercase, drop anything
// outside [a-z0-9], whitespace and '-', then join whitespace runs with '-'.
// Leading and trailing whitespace becomes a hyphen like any other run, so
// " A " gives "-a-". Equal texts give equal ids; callers get no
// de-duplication.
func Slugify(text string) string {
	s := strings.ToLower(text)
	s = disallowed.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, "-")
	return strings.TrimSpace(s)
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

// node is a heading under construction; children are attached by pointer so
// the stack can keep growing an item after it was attached to its parent.
type node struct {
	item     model.OutlineItem
	children []*node
}

func nest(headings []model.OutlineItem) []model.OutlineItem {
	var roots []*node
	var stack []*node

	for _, h := range headings {
		n := &node{item: h}
		for len(stack) > 0 && stack[len(stack)-1].item.Level >= h.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, n)
		} else {
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
		}
		stack = append(stack, n)
	}

	return materialize(roots)
}

func materialize(nodes []*node) []model.OutlineItem {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]model.OutlineItem, len(nodes))
	for i, n := range nodes {
		out[i] = n.item
		out[i].Children = materialize(n.children)
	}
	return out
}

// Flatten lists items depth-first, parents before their children.
func Flatten(items []model.OutlineItem) []model.OutlineItem {
	var out []model.OutlineItem
	for _, it := range items {
		children := it.Children
		it.Children = nil
		out = append(out, it)
		out = append(out, Flatten(children)...)
	}
	return out
}
