package dom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ken0yuan/auto-ai-web/internal/browser"
)

// ErrBuildFailure means the root document itself was unreachable. Individual
// uninspectable nodes are skipped during the walk and never surface here.
var ErrBuildFailure = errors.New("dom build failed")

// BuildOptions configures one tree build.
type BuildOptions struct {
	// StrictViewport restricts index assignment to elements intersecting the
	// (expanded) viewport. Off by default: some tasks need below-the-fold
	// form fields indexed so the model can scroll to them.
	StrictViewport bool

	// ViewportExpansion grows the viewport-intersection margin in pixels.
	ViewportExpansion int

	// Highlight draws numbered debug boxes over indexed elements.
	Highlight bool
}

// State is the product of one build: the tree, the index map, and the page
// metadata the serializer needs. Valid until the next action executes.
type State struct {
	Root    *ElementNode
	Index   *IndexMap
	Epoch   string
	URL     string
	Title   string
	Metrics browser.PageMetrics
	Tabs    []browser.TabInfo
}

// evalNode mirrors one entry of the flat map produced by browser.DOMScript.
type evalNode struct {
	Type          string            `json:"type"`
	Text          string            `json:"text"`
	TagName       string            `json:"tagName"`
	XPath         string            `json:"xpath"`
	Attributes    map[string]string `json:"attributes"`
	IsVisible     bool              `json:"isVisible"`
	IsTopElement  bool              `json:"isTopElement"`
	IsInteractive bool              `json:"isInteractive"`
	IsEditable    bool              `json:"isContentEditable"`
	InViewport    bool              `json:"inViewport"`
	Opaque        bool              `json:"opaque"`
	BoundingBox   *Box              `json:"boundingBox"`
	Children      []string          `json:"children"`
	ContentRootID string            `json:"contentRootId"`
}

type evalPayload struct {
	RootID string              `json:"rootId"`
	Map    map[string]evalNode `json:"map"`
}

// Builder turns the page-side extraction payload into a typed tree plus the
// index map. Building twice on an unchanged page yields structurally
// identical output with identical index assignment.
type Builder struct {
	log  *zap.Logger
	opts BuildOptions
}

// NewBuilder creates a builder with the given defaults.
func NewBuilder(log *zap.Logger, opts BuildOptions) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{log: log.Named("dom"), opts: opts}
}

// BuildFromPage runs the extraction script on the live page and constructs
// the state. It stamps a fresh epoch marker so later index lookups can detect
// that the document was replaced.
func (b *Builder) BuildFromPage(ctx context.Context, page browser.Page) (*State, error) {
	epoch := uuid.NewString()
	raw, err := page.Evaluate(ctx, browser.DOMScript, map[string]any{
		"epoch":             epoch,
		"viewportExpansion": b.opts.ViewportExpansion,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuildFailure, err)
	}

	root, index, err := b.BuildTree(raw, epoch)
	if err != nil {
		return nil, err
	}

	st := &State{
		Root:  root,
		Index: index,
		Epoch: epoch,
		URL:   page.URL(),
	}

	// Metadata failures degrade the prompt, not the build.
	if title, err := page.Title(ctx); err == nil {
		st.Title = title
	} else {
		b.log.Debug("failed to read title", zap.Error(err))
	}
	if metrics, err := page.Metrics(ctx); err == nil {
		st.Metrics = metrics
	}
	if tabs, err := page.Tabs(ctx); err == nil {
		st.Tabs = tabs
	}

	if b.opts.Highlight {
		b.highlight(ctx, page, index)
	}

	b.log.Debug("built dom tree",
		zap.String("url", st.URL),
		zap.Int("indexed", index.Len()),
	)
	return st, nil
}

// BuildTree parses the raw extraction payload and assigns highlight indices.
func (b *Builder) BuildTree(payload json.RawMessage, epoch string) (*ElementNode, *IndexMap, error) {
	var eval evalPayload
	if err := json.Unmarshal(payload, &eval); err != nil {
		return nil, nil, fmt.Errorf("%w: malformed extraction payload: %v", ErrBuildFailure, err)
	}
	if eval.RootID == "" {
		return nil, nil, fmt.Errorf("%w: extraction returned no root", ErrBuildFailure)
	}

	// First pass: materialize every node.
	nodes := make(map[string]Node, len(eval.Map))
	for id, data := range eval.Map {
		nodes[id] = parseNode(data)
	}

	// Second pass: link parents, children and nested content roots,
	// preserving the document order recorded by the page-side walk.
	for id, data := range eval.Map {
		elem, ok := nodes[id].(*ElementNode)
		if !ok {
			continue
		}
		for _, childID := range data.Children {
			child, ok := nodes[childID]
			if !ok {
				continue
			}
			switch c := child.(type) {
			case *ElementNode:
				c.Parent = elem
			case *TextNode:
				c.Parent = elem
			}
			elem.Children = append(elem.Children, child)
		}
		if data.ContentRootID != "" {
			if nested, ok := nodes[data.ContentRootID].(*ElementNode); ok {
				nested.Parent = elem
				elem.ContentRoot = nested
			}
		}
	}

	root, ok := nodes[eval.RootID].(*ElementNode)
	if !ok {
		return nil, nil, fmt.Errorf("%w: root node missing from payload", ErrBuildFailure)
	}

	pruneEmptyAnchors(root)
	index := b.assignIndices(root, epoch)
	return root, index, nil
}

// pruneEmptyAnchors removes decorative empty links: anchors with no text
// anywhere under them and no visible size. They would otherwise be indexed
// as meaningless click targets.
func pruneEmptyAnchors(root *ElementNode) {
	var prune func(e *ElementNode)
	prune = func(e *ElementNode) {
		kept := e.Children[:0]
		for _, child := range e.Children {
			c, ok := child.(*ElementNode)
			if ok && isEmptyAnchor(c) {
				continue
			}
			if ok {
				prune(c)
				if c.ContentRoot != nil {
					prune(c.ContentRoot)
				}
			}
			kept = append(kept, child)
		}
		e.Children = kept
	}
	prune(root)
	if root.ContentRoot != nil {
		prune(root.ContentRoot)
	}
}

func isEmptyAnchor(e *ElementNode) bool {
	if e.Tag != "a" {
		return false
	}
	if e.Box.Width > 0 || e.Box.Height > 0 {
		return false
	}
	hasText := false
	walk(e, func(n Node) {
		if t, ok := n.(*TextNode); ok && strings.TrimSpace(t.Text) != "" {
			hasText = true
		}
	})
	return !hasText
}

// assignIndices numbers the indexable elements densely, starting at zero, in
// document traversal order. The page-side pass classifies; Go owns the
// numbering, so repeated builds on an unchanged page agree.
func (b *Builder) assignIndices(root *ElementNode, epoch string) *IndexMap {
	index := newIndexMap(epoch)
	walk(root, func(n Node) {
		e, ok := n.(*ElementNode)
		if !ok {
			return
		}
		if !e.Visible || !e.Interactive || !e.TopElement || e.Opaque {
			return
		}
		if b.opts.StrictViewport && !e.InViewport {
			return
		}
		idx := index.add(e)
		e.HighlightIndex = &idx
	})
	return index
}

func (b *Builder) highlight(ctx context.Context, page browser.Page, index *IndexMap) {
	type boxRef struct {
		Index int    `json:"index"`
		XPath string `json:"xpath"`
	}
	refs := make([]boxRef, 0, index.Len())
	for _, idx := range index.Indices() {
		if e, ok := index.Get(idx); ok {
			refs = append(refs, boxRef{Index: idx, XPath: e.XPath})
		}
	}
	if _, err := page.Evaluate(ctx, browser.HighlightScript, refs); err != nil {
		b.log.Debug("highlight overlay failed", zap.Error(err))
	}
}

func parseNode(data evalNode) Node {
	if data.Type == "TEXT_NODE" {
		return &TextNode{Text: data.Text, Visible: data.IsVisible}
	}
	e := &ElementNode{
		Tag:         data.TagName,
		XPath:       data.XPath,
		Attrs:       data.Attributes,
		Visible:     data.IsVisible,
		TopElement:  data.IsTopElement,
		Interactive: data.IsInteractive,
		Editable:    data.IsEditable,
		InViewport:  data.InViewport,
		Opaque:      data.Opaque,
	}
	if e.Attrs == nil {
		e.Attrs = map[string]string{}
	}
	if data.BoundingBox != nil {
		e.Box = *data.BoundingBox
	}
	return e
}

