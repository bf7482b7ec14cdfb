package dom

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ken0yuan/auto-ai-web/internal/browser"
)

func buildState(t *testing.T, p evalPayload) *State {
	t.Helper()
	b := NewBuilder(nil, BuildOptions{})
	root, index, err := b.BuildTree(payloadJSON(t, p), "e")
	require.NoError(t, err)
	return &State{Root: root, Index: index, Epoch: "e", URL: "https://example.com/"}
}

func TestSerializeEveryIndexOnceInOrder(t *testing.T) {
	p := evalPayload{RootID: "root", Map: map[string]evalNode{}}
	body := elem("body", "/html/body", true, true, false)
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("b%d", i)
		tid := fmt.Sprintf("t%d", i)
		body.Children = append(body.Children, id)
		btn := elem("button", fmt.Sprintf("/html/body/button[%d]", i+1), true, true, true)
		btn.Children = []string{tid}
		p.Map[id] = btn
		p.Map[tid] = text(fmt.Sprintf("Action %d", i))
	}
	p.Map["root"] = body

	st := buildState(t, p)
	out := ClickableElementsToString(st.Root)

	re := regexp.MustCompile(`\[(\d+)\]`)
	var seen []string
	for _, m := range re.FindAllStringSubmatch(out, -1) {
		seen = append(seen, m[1])
	}
	require.Len(t, seen, st.Index.Len())
	for i, s := range seen {
		assert.Equal(t, fmt.Sprintf("%d", i), s, "indices must appear densely in document order")
	}
}

func TestSerializeInterleavesLooseText(t *testing.T) {
	heading := elem("h1", "/html/body/h1", true, true, false)
	heading.Children = []string{"ht"}
	btn := elem("button", "/html/body/button", true, true, true)
	btn.Children = []string{"bt"}
	p := evalPayload{RootID: "root", Map: map[string]evalNode{
		"root": func() evalNode {
			e := elem("body", "/html/body", true, true, false)
			e.Children = []string{"h", "b"}
			return e
		}(),
		"h":  heading,
		"ht": text("Welcome back"),
		"b":  btn,
		"bt": text("Log in"),
	}}

	out := ClickableElementsToString(buildState(t, p).Root)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Welcome back", lines[0])
	assert.Equal(t, "[0]<button >Log in />", lines[1])
}

func TestSerializeAttributesWhitelisted(t *testing.T) {
	input := elem("input", "/html/body/input", true, true, true)
	input.Attributes = map[string]string{
		"type":        "email",
		"placeholder": "you@example.com",
		"data-test":   "should-not-appear",
		"class":       "form-control mb-2",
	}
	p := evalPayload{RootID: "root", Map: map[string]evalNode{
		"root": func() evalNode {
			e := elem("body", "/html/body", true, true, false)
			e.Children = []string{"in"}
			return e
		}(),
		"in": input,
	}}

	out := ClickableElementsToString(buildState(t, p).Root)
	assert.Contains(t, out, "type='email'")
	assert.Contains(t, out, "placeholder='you@example.com'")
	assert.NotContains(t, out, "data-test")
	assert.NotContains(t, out, "form-control")
}

func TestSerializeMetadataHeader(t *testing.T) {
	st := buildState(t, singleButtonPayload())
	st.Title = "Example"
	st.Tabs = []browser.TabInfo{
		{PageID: 1, URL: "https://example.com/", Title: "Example"},
		{PageID: 2, URL: "https://other.test/", Title: "Other"},
	}
	st.Metrics = browser.PageMetrics{
		ViewportWidth:  1280,
		ViewportHeight: 800,
		PageWidth:      1280,
		PageHeight:     2400,
		ScrollY:        400,
	}

	out := Serialize(st)
	assert.Contains(t, out, "Current page: https://example.com/ (Example)")
	assert.Contains(t, out, "* [1]")
	assert.Contains(t, out, "https://other.test/")
	assert.Contains(t, out, "... 400 pixels above - scroll up to see more ...")
	assert.Contains(t, out, "... 1200 pixels below - scroll down to see more ...")
	assert.Contains(t, out, "[0]<button >Submit />")
}

func TestSerializeTopOfPageMarkers(t *testing.T) {
	st := buildState(t, singleButtonPayload())
	st.Metrics = browser.PageMetrics{
		ViewportWidth:  1280,
		ViewportHeight: 800,
		PageWidth:      1280,
		PageHeight:     600,
	}
	out := Serialize(st)
	assert.Contains(t, out, "[Start of page]")
	assert.Contains(t, out, "[End of page]")
	assert.NotContains(t, out, "pixels above")
	assert.NotContains(t, out, "pixels below")
}
