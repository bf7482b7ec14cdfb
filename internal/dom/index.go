package dom

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrStaleIndex is returned when an index lookup is validated against a page
// whose epoch no longer matches the one the index was built from. The page
// has navigated or been rebuilt since, so the stored nodes may point at
// elements that no longer exist.
var ErrStaleIndex = errors.New("element index is stale")

// IndexMap maps highlight indices to the element nodes they were assigned to
// during a single build. Indices are dense, starting at 0, in document order.
type IndexMap struct {
	epoch string
	nodes map[int]*ElementNode
	order []int
}

func newIndexMap(epoch string) *IndexMap {
	return &IndexMap{
		epoch: epoch,
		nodes: make(map[int]*ElementNode),
	}
}

// add assigns the next dense index to e and records it. Returns the index.
func (m *IndexMap) add(e *ElementNode) int {
	idx := len(m.order)
	m.nodes[idx] = e
	m.order = append(m.order, idx)
	return idx
}

// Epoch returns the build epoch the indices belong to.
func (m *IndexMap) Epoch() string { return m.epoch }

// Len returns the number of indexed elements.
func (m *IndexMap) Len() int { return len(m.order) }

// Indices returns all assigned indices in document order.
func (m *IndexMap) Indices() []int {
	out := make([]int, len(m.order))
	copy(out, m.order)
	return out
}

// Get returns the element for idx without any staleness check.
func (m *IndexMap) Get(idx int) (*ElementNode, bool) {
	e, ok := m.nodes[idx]
	return e, ok
}

// Resolve returns the element for idx after validating that the page the
// caller is about to act on still carries this map's epoch. An empty or
// different liveEpoch means the page changed under us and every stored
// index is suspect, not just the missing ones.
func (m *IndexMap) Resolve(idx int, liveEpoch string) (*ElementNode, error) {
	if liveEpoch == "" || liveEpoch != m.epoch {
		return nil, fmt.Errorf("%w: index %d was built for a previous page state", ErrStaleIndex, idx)
	}
	e, ok := m.nodes[idx]
	if !ok {
		return nil, fmt.Errorf("no element with index %d (have %d elements)", idx, len(m.order))
	}
	return e, nil
}

// ByXPath returns the indexed element whose xpath matches exactly.
func (m *IndexMap) ByXPath(xpath string) (*ElementNode, bool) {
	for _, idx := range m.order {
		if e := m.nodes[idx]; e.XPath == xpath {
			return e, true
		}
	}
	return nil, false
}

// ByText returns the indexed element that best matches the given text,
// comparing against the element's visible text and its salient attributes.
// Exact matches win over substring matches; among substring matches the
// shortest candidate text wins, on the theory that it is the most specific.
func (m *IndexMap) ByText(text string) (*ElementNode, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	type candidate struct {
		e   *ElementNode
		len int
	}
	var exact, partial []candidate
	for _, idx := range m.order {
		e := m.nodes[idx]
		for _, s := range elementTexts(e) {
			if s == text {
				exact = append(exact, candidate{e, len(s)})
			} else if strings.Contains(s, text) {
				partial = append(partial, candidate{e, len(s)})
			}
		}
	}
	pick := func(cs []candidate) (*ElementNode, bool) {
		if len(cs) == 0 {
			return nil, false
		}
		sort.SliceStable(cs, func(i, j int) bool { return cs[i].len < cs[j].len })
		return cs[0].e, true
	}
	if e, ok := pick(exact); ok {
		return e, ok
	}
	return pick(partial)
}

// elementTexts collects the strings a human would use to refer to an
// element: its visible text plus labeling attributes.
func elementTexts(e *ElementNode) []string {
	var out []string
	if t := strings.TrimSpace(e.AllTextTillNextClickable()); t != "" {
		out = append(out, t)
	}
	for _, attr := range []string{"aria-label", "placeholder", "title", "value", "alt"} {
		if v := strings.TrimSpace(e.Attr(attr)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
