package dom

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloadJSON(t *testing.T, p evalPayload) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}

func elem(tag, xpath string, visible, top, interactive bool) evalNode {
	return evalNode{
		Type:          "ELEMENT_NODE",
		TagName:       tag,
		XPath:         xpath,
		Attributes:    map[string]string{},
		IsVisible:     visible,
		IsTopElement:  top,
		IsInteractive: interactive,
		InViewport:    true,
		BoundingBox:   &Box{X: 0, Y: 0, Width: 100, Height: 20},
	}
}

func text(s string) evalNode {
	return evalNode{Type: "TEXT_NODE", Text: s, IsVisible: true}
}

func singleButtonPayload() evalPayload {
	body := elem("body", "/html/body", true, true, false)
	body.Children = []string{"1"}
	button := elem("button", "/html/body/button", true, true, true)
	button.Children = []string{"2"}
	return evalPayload{
		RootID: "0",
		Map: map[string]evalNode{
			"0": body,
			"1": button,
			"2": text("Submit"),
		},
	}
}

func TestBuildTreeSingleButton(t *testing.T) {
	b := NewBuilder(nil, BuildOptions{})
	root, index, err := b.BuildTree(payloadJSON(t, singleButtonPayload()), "epoch-1")
	require.NoError(t, err)

	require.Equal(t, 1, index.Len())
	e, ok := index.Get(0)
	require.True(t, ok)
	assert.Equal(t, "button", e.Tag)
	assert.Equal(t, "Submit", e.AllTextTillNextClickable())
	assert.NotNil(t, e.HighlightIndex)
	assert.Equal(t, 0, *e.HighlightIndex)

	assert.Equal(t, "[0]<button >Submit />", ClickableElementsToString(root))
}

func TestBuildTreeDeterministicIndices(t *testing.T) {
	// Many siblings: map iteration order must not leak into numbering.
	p := evalPayload{RootID: "root", Map: map[string]evalNode{}}
	body := elem("body", "/html/body", true, true, false)
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("c%d", i)
		body.Children = append(body.Children, id)
		p.Map[id] = elem("a", fmt.Sprintf("/html/body/a[%d]", i+1), true, true, true)
	}
	p.Map["root"] = body

	b := NewBuilder(nil, BuildOptions{})
	var prev []string
	for run := 0; run < 5; run++ {
		_, index, err := b.BuildTree(payloadJSON(t, p), "e")
		require.NoError(t, err)
		require.Equal(t, 20, index.Len())
		var xpaths []string
		for _, idx := range index.Indices() {
			e, ok := index.Get(idx)
			require.True(t, ok)
			xpaths = append(xpaths, e.XPath)
		}
		if prev != nil {
			assert.Equal(t, prev, xpaths, "index order changed between identical builds")
		}
		prev = xpaths
	}
	// And document order, not insertion accident.
	assert.Equal(t, "/html/body/a[1]", prev[0])
	assert.Equal(t, "/html/body/a[20]", prev[19])
}

func TestIndexedElementsAreVisibleAndInteractive(t *testing.T) {
	p := evalPayload{RootID: "root", Map: map[string]evalNode{
		"root": func() evalNode {
			e := elem("body", "/html/body", true, true, false)
			e.Children = []string{"hidden", "inert", "covered", "live"}
			return e
		}(),
		"hidden":  elem("button", "/html/body/button[1]", false, true, true),
		"inert":   elem("div", "/html/body/div", true, true, false),
		"covered": elem("button", "/html/body/button[2]", true, false, true),
		"live":    elem("button", "/html/body/button[3]", true, true, true),
	}}

	b := NewBuilder(nil, BuildOptions{})
	root, index, err := b.BuildTree(payloadJSON(t, p), "e")
	require.NoError(t, err)

	require.Equal(t, 1, index.Len())
	e, _ := index.Get(0)
	assert.Equal(t, "/html/body/button[3]", e.XPath)

	walk(root, func(n Node) {
		if el, ok := n.(*ElementNode); ok && el.HighlightIndex != nil {
			assert.True(t, el.Visible && el.Interactive && el.TopElement)
		}
	})
}

func TestStrictViewportSkipsOffscreen(t *testing.T) {
	offscreen := elem("button", "/html/body/button[2]", true, true, true)
	offscreen.InViewport = false
	p := evalPayload{RootID: "root", Map: map[string]evalNode{
		"root": func() evalNode {
			e := elem("body", "/html/body", true, true, false)
			e.Children = []string{"on", "off"}
			return e
		}(),
		"on":  elem("button", "/html/body/button[1]", true, true, true),
		"off": offscreen,
	}}

	loose := NewBuilder(nil, BuildOptions{})
	_, index, err := loose.BuildTree(payloadJSON(t, p), "e")
	require.NoError(t, err)
	assert.Equal(t, 2, index.Len())

	strict := NewBuilder(nil, BuildOptions{StrictViewport: true})
	_, index, err = strict.BuildTree(payloadJSON(t, p), "e")
	require.NoError(t, err)
	require.Equal(t, 1, index.Len())
	e, _ := index.Get(0)
	assert.Equal(t, "/html/body/button[1]", e.XPath)
}

func TestIframeSubtreeIsIndexed(t *testing.T) {
	frame := elem("iframe", "/html/body/iframe", true, true, false)
	frame.ContentRootID = "iroot"
	inner := elem("button", "/html/body/button", true, true, true)
	inner.Children = []string{"itext"}
	p := evalPayload{RootID: "root", Map: map[string]evalNode{
		"root": func() evalNode {
			e := elem("body", "/html/body", true, true, false)
			e.Children = []string{"frame"}
			return e
		}(),
		"frame": frame,
		"iroot": elem("html", "/html", true, true, false),
		"inner": inner,
		"itext": text("Frame button"),
	}}
	// link inner under the iframe document
	iroot := p.Map["iroot"]
	iroot.Children = []string{"inner"}
	p.Map["iroot"] = iroot

	b := NewBuilder(nil, BuildOptions{})
	root, index, err := b.BuildTree(payloadJSON(t, p), "e")
	require.NoError(t, err)
	require.Equal(t, 1, index.Len())
	e, _ := index.Get(0)
	assert.Equal(t, "Frame button", e.AllTextTillNextClickable())
	assert.Contains(t, ClickableElementsToString(root), "[0]<button >Frame button />")
}

func TestOpaqueIframeNotIndexed(t *testing.T) {
	frame := elem("iframe", "/html/body/iframe", true, true, true)
	frame.Opaque = true
	p := evalPayload{RootID: "root", Map: map[string]evalNode{
		"root": func() evalNode {
			e := elem("body", "/html/body", true, true, false)
			e.Children = []string{"frame"}
			return e
		}(),
		"frame": frame,
	}}

	b := NewBuilder(nil, BuildOptions{})
	_, index, err := b.BuildTree(payloadJSON(t, p), "e")
	require.NoError(t, err)
	assert.Equal(t, 0, index.Len())
}

func TestEmptyAnchorsArePruned(t *testing.T) {
	empty := elem("a", "/html/body/a[1]", true, true, true)
	empty.BoundingBox = &Box{}
	real := elem("a", "/html/body/a[2]", true, true, true)
	real.Children = []string{"t"}
	p := evalPayload{RootID: "root", Map: map[string]evalNode{
		"root": func() evalNode {
			e := elem("body", "/html/body", true, true, false)
			e.Children = []string{"empty", "real"}
			return e
		}(),
		"empty": empty,
		"real":  real,
		"t":     text("Docs"),
	}}

	b := NewBuilder(nil, BuildOptions{})
	_, index, err := b.BuildTree(payloadJSON(t, p), "e")
	require.NoError(t, err)
	require.Equal(t, 1, index.Len())
	e, _ := index.Get(0)
	assert.Equal(t, "/html/body/a[2]", e.XPath)
}

func TestBuildTreeRejectsMalformedPayload(t *testing.T) {
	b := NewBuilder(nil, BuildOptions{})

	_, _, err := b.BuildTree(json.RawMessage(`{not json`), "e")
	assert.ErrorIs(t, err, ErrBuildFailure)

	_, _, err = b.BuildTree(json.RawMessage(`{"map":{}}`), "e")
	assert.ErrorIs(t, err, ErrBuildFailure)
}

func TestResolveStaleEpoch(t *testing.T) {
	b := NewBuilder(nil, BuildOptions{})
	_, index, err := b.BuildTree(payloadJSON(t, singleButtonPayload()), "epoch-1")
	require.NoError(t, err)

	e, err := index.Resolve(0, "epoch-1")
	require.NoError(t, err)
	assert.Equal(t, "button", e.Tag)

	_, err = index.Resolve(0, "epoch-2")
	assert.ErrorIs(t, err, ErrStaleIndex)

	// Navigation wipes the marker entirely.
	_, err = index.Resolve(0, "")
	assert.ErrorIs(t, err, ErrStaleIndex)

	_, err = index.Resolve(99, "epoch-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStaleIndex)
}

func TestByTextAndByXPath(t *testing.T) {
	signIn := elem("button", "/html/body/button[1]", true, true, true)
	signIn.Children = []string{"t1"}
	search := elem("input", "/html/body/input", true, true, true)
	search.Attributes = map[string]string{"placeholder": "Search products"}
	p := evalPayload{RootID: "root", Map: map[string]evalNode{
		"root": func() evalNode {
			e := elem("body", "/html/body", true, true, false)
			e.Children = []string{"b1", "in"}
			return e
		}(),
		"b1": signIn,
		"t1": text("Sign in"),
		"in": search,
	}}

	b := NewBuilder(nil, BuildOptions{})
	_, index, err := b.BuildTree(payloadJSON(t, p), "e")
	require.NoError(t, err)

	e, ok := index.ByXPath("/html/body/input")
	require.True(t, ok)
	assert.Equal(t, "input", e.Tag)

	e, ok = index.ByText("Sign in")
	require.True(t, ok)
	assert.Equal(t, "button", e.Tag)

	e, ok = index.ByText("Search")
	require.True(t, ok)
	assert.Equal(t, "input", e.Tag)

	_, ok = index.ByText("nothing like this")
	assert.False(t, ok)
}
