package dom

import (
	"fmt"
	"strings"
)

// Attributes worth showing to the model. Everything else is noise that only
// inflates the prompt.
var includedAttrs = []string{
	"id", "name", "type", "value", "role",
	"aria-label", "aria-expanded", "placeholder", "title", "alt", "href",
}

// ClickableElementsToString renders the indexed elements of a tree as a flat
// text listing, one line per indexed element, with loose page text emitted
// between them. Each indexed element is rendered as
//
//	[7]<button type='submit' >Sign in />
//
// and text that belongs to no indexed element appears as bare lines, so the
// model sees the page's reading order, not just its controls.
func ClickableElementsToString(root *ElementNode) string {
	var lines []string
	var pending []string

	flush := func() {
		if len(pending) == 0 {
			return
		}
		lines = append(lines, strings.Join(pending, " "))
		pending = nil
	}

	walk(root, func(n Node) {
		switch t := n.(type) {
		case *TextNode:
			if !t.Visible || t.HasIndexedAncestor() {
				return
			}
			if s := strings.TrimSpace(t.Text); s != "" {
				pending = append(pending, s)
			}
		case *ElementNode:
			if t.HighlightIndex == nil {
				return
			}
			flush()
			lines = append(lines, formatElement(t))
		}
	})
	flush()
	return strings.Join(lines, "\n")
}

func formatElement(e *ElementNode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d]<%s ", *e.HighlightIndex, e.Tag)
	for _, name := range includedAttrs {
		if v := e.Attr(name); v != "" {
			fmt.Fprintf(&b, "%s='%s' ", name, truncate(v, 80))
		}
	}
	if text := e.AllTextTillNextClickable(); text != "" {
		fmt.Fprintf(&b, ">%s ", truncate(text, 200))
	}
	b.WriteString("/>")
	return b.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

// Serialize renders a full page state, metadata header included, in the form
// fed to the deciding model: the open tabs, the current page, how much of it
// lies outside the viewport, then the element listing.
func Serialize(st *State) string {
	var b strings.Builder

	if len(st.Tabs) > 0 {
		b.WriteString("Open tabs:\n")
		for _, tab := range st.Tabs {
			marker := " "
			if tab.URL == st.URL {
				marker = "*"
			}
			fmt.Fprintf(&b, "%s [%d] %s - %s\n", marker, tab.PageID, truncate(tab.Title, 60), tab.URL)
		}
	}

	fmt.Fprintf(&b, "Current page: %s", st.URL)
	if st.Title != "" {
		fmt.Fprintf(&b, " (%s)", st.Title)
	}
	b.WriteString("\n")

	above, below := st.Metrics.PixelsAbove(), st.Metrics.PixelsBelow()
	if above > 0 {
		fmt.Fprintf(&b, "... %d pixels above - scroll up to see more ...\n", above)
	} else {
		b.WriteString("[Start of page]\n")
	}

	b.WriteString(ClickableElementsToString(st.Root))
	b.WriteString("\n")

	if below > 0 {
		fmt.Fprintf(&b, "... %d pixels below - scroll down to see more ...\n", below)
	} else {
		b.WriteString("[End of page]\n")
	}
	return b.String()
}
