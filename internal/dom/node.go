// Package dom builds an indexed, serializable representation of a live page's
// interactive surface. The tree is rebuilt from scratch on every agent
// iteration and discarded after serialization; it must never be retained
// across a navigation.
package dom

import "strings"

// Node is either a TextNode or an ElementNode. Every node has exactly one
// owner; iframe and shadow subtrees are separate trees linked by reference
// from their host element, never merged.
type Node interface {
	node()
}

// Box is an element's bounding rectangle in viewport coordinates.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TextNode holds one run of raw text.
type TextNode struct {
	Text    string
	Visible bool
	Parent  *ElementNode
}

func (*TextNode) node() {}

// HasIndexedAncestor reports whether any ancestor element carries a highlight
// index. Text under an indexed element is attributed to that element rather
// than emitted separately.
func (t *TextNode) HasIndexedAncestor() bool {
	for p := t.Parent; p != nil; p = p.Parent {
		if p.HighlightIndex != nil {
			return true
		}
	}
	return false
}

// ElementNode is one element of the page, annotated with the visibility and
// interactivity classification computed in the page.
type ElementNode struct {
	Tag         string
	XPath       string
	Attrs       map[string]string
	Box         Box
	Visible     bool
	TopElement  bool
	Interactive bool
	Editable    bool
	InViewport  bool

	// Opaque marks a cross-origin iframe that could not be introspected.
	Opaque bool

	// HighlightIndex is set iff the node was selected for indexing.
	HighlightIndex *int

	Parent   *ElementNode
	Children []Node

	// ContentRoot links the separately rooted subtree of an iframe document
	// or shadow root hosted by this element.
	ContentRoot *ElementNode
}

func (*ElementNode) node() {}

// Attr returns an attribute value or "".
func (e *ElementNode) Attr(name string) string {
	return e.Attrs[name]
}

// AllTextTillNextClickable collects the visible text under this element,
// stopping at any descendant that carries its own highlight index, so each
// indexed element is annotated only with the text it actually labels.
func (e *ElementNode) AllTextTillNextClickable() string {
	var parts []string
	var collect func(n Node)
	collect = func(n Node) {
		switch t := n.(type) {
		case *TextNode:
			if s := strings.TrimSpace(t.Text); s != "" {
				parts = append(parts, s)
			}
		case *ElementNode:
			if t != e && t.HighlightIndex != nil {
				return
			}
			if t.ContentRoot != nil {
				collect(t.ContentRoot)
			}
			for _, c := range t.Children {
				collect(c)
			}
		}
	}
	collect(e)
	return strings.TrimSpace(strings.Join(parts, " "))
}

// walk visits the element and its subtree in document order: the element,
// then its nested content root (iframe document or shadow root), then its
// children. Serialization and index assignment share this order, which is
// what makes the round-trip deterministic.
func walk(n Node, visit func(Node)) {
	visit(n)
	if e, ok := n.(*ElementNode); ok {
		if e.ContentRoot != nil {
			walk(e.ContentRoot, visit)
		}
		for _, c := range e.Children {
			walk(c, visit)
		}
	}
}
