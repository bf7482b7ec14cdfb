package browser

// DOMScript walks the live document and returns a flat node map the Go tree
// builder consumes: {rootId, map: {id: node}}. It recurses into same-origin
// iframes and shadow roots (each becomes a separately rooted subtree linked
// from its host via contentRootId), records cross-origin iframes as opaque
// leaves, and stamps args.epoch on the window so later lookups can detect
// that the document was replaced.
//
// The listener-registration hook and the debug overlay are both keyed by
// page-global markers so re-running the script on the same document never
// double-installs or double-draws.
const DOMScript = `(args) => {
    window.__autoweb_epoch__ = args.epoch;

    // Idempotent hook: record elements that gain pointer listeners after
    // page load. Installs at most once per document.
    if (!window.__autoweb_hooked__) {
        window.__autoweb_listeners__ = new WeakSet();
        const orig = EventTarget.prototype.addEventListener;
        EventTarget.prototype.addEventListener = function(type, fn, opts) {
            if (type === 'click' || type === 'mousedown' || type === 'pointerdown' || type === 'touchstart') {
                try { window.__autoweb_listeners__.add(this); } catch (e) {}
            }
            return orig.call(this, type, fn, opts);
        };
        window.__autoweb_hooked__ = true;
    }

    const overlay = document.getElementById('autoweb-overlay');
    if (overlay) overlay.remove();

    const SKIP_TAGS = new Set(['script', 'style', 'noscript', 'template', 'head', 'meta', 'link', 'title']);
    const INTERACTIVE_TAGS = new Set(['a', 'button', 'input', 'select', 'textarea', 'option', 'summary', 'label']);
    const INTERACTIVE_ROLES = new Set(['button', 'link', 'textbox', 'checkbox', 'radio', 'combobox',
        'listbox', 'option', 'menuitem', 'menuitemcheckbox', 'menuitemradio', 'tab', 'slider',
        'spinbutton', 'switch', 'searchbox']);
    const expansion = args.viewportExpansion || 0;
    const vw = window.innerWidth, vh = window.innerHeight;

    const map = {};
    let nextId = 1;

    function isVisible(el, rect, style) {
        if (rect.width <= 0 || rect.height <= 0) return false;
        if (style.display === 'none' || style.visibility === 'hidden') return false;
        if (parseFloat(style.opacity) < 0.1) return false;
        return true;
    }

    function inViewport(rect) {
        return rect.bottom >= -expansion && rect.top <= vh + expansion &&
               rect.right >= -expansion && rect.left <= vw + expansion;
    }

    function isTopElement(el, rect, doc) {
        const cx = rect.left + rect.width / 2;
        const cy = rect.top + rect.height / 2;
        if (cx < 0 || cy < 0 || cx > vw || cy > vh) return true; // off-screen: no occlusion info
        try {
            const root = el.getRootNode();
            const picker = root instanceof ShadowRoot ? root : doc;
            const hit = picker.elementFromPoint(cx, cy);
            if (!hit) return false;
            return el === hit || el.contains(hit) || hit.contains(el);
        } catch (e) {
            return true;
        }
    }

    function isInteractive(el, style, role) {
        const tag = el.tagName.toLowerCase();
        if (INTERACTIVE_TAGS.has(tag)) return true;
        if (role && INTERACTIVE_ROLES.has(role)) return true;
        if (el.isContentEditable || el.getAttribute('contenteditable') === 'true') return true;
        if (typeof el.onclick === 'function') return true;
        try { if (window.__autoweb_listeners__ && window.__autoweb_listeners__.has(el)) return true; } catch (e) {}
        if (style.cursor === 'pointer' && !(el.parentElement && window.getComputedStyle(el.parentElement).cursor === 'pointer')) return true;
        return false;
    }

    function xpathFor(el) {
        let path = '', node = el;
        while (node && node.nodeType === 1) {
            let index = 1, sib = node.previousSibling;
            while (sib) {
                if (sib.nodeType === 1 && sib.tagName === node.tagName) index++;
                sib = sib.previousSibling;
            }
            path = '/' + node.tagName.toLowerCase() + '[' + index + ']' + path;
            const root = node.getRootNode();
            node = node.parentElement;
            if (!node && root instanceof ShadowRoot) break; // xpath stops at shadow boundary
        }
        return path;
    }

    function walkText(textNode, parentVisible) {
        const text = textNode.textContent;
        if (!text || !text.trim()) return null;
        const parent = textNode.parentElement;
        if (parent && SKIP_TAGS.has(parent.tagName.toLowerCase())) return null;
        const id = String(nextId++);
        map[id] = { type: 'TEXT_NODE', text: text.trim(), isVisible: parentVisible };
        return id;
    }

    function walkElement(el, doc) {
        const tag = el.tagName.toLowerCase();
        if (SKIP_TAGS.has(tag)) return null;
        if (el.id === 'autoweb-overlay' || el.hasAttribute('data-autoweb-overlay')) return null;
        if (tag === 'svg') {
            // svg internals are never interactive targets; keep the host only
            return record(el, doc, true);
        }
        return record(el, doc, false);
    }

    function record(el, doc, leaf) {
        let rect, style;
        try {
            rect = el.getBoundingClientRect();
            style = window.getComputedStyle(el);
        } catch (e) {
            return null; // uninspectable node: skip, never abort
        }
        const role = el.getAttribute('role');
        const visible = isVisible(el, rect, style);
        const interactive = isInteractive(el, style, role);
        const top = visible ? isTopElement(el, rect, doc) : false;

        const attrs = {};
        for (const a of el.attributes) attrs[a.name] = a.value;

        const id = String(nextId++);
        const node = {
            type: 'ELEMENT_NODE',
            tagName: el.tagName.toLowerCase(),
            xpath: xpathFor(el),
            attributes: attrs,
            isVisible: visible,
            isTopElement: top,
            isInteractive: interactive,
            isContentEditable: !!el.isContentEditable,
            inViewport: inViewport(rect),
            boundingBox: { x: rect.left, y: rect.top, width: rect.width, height: rect.height },
            children: [],
        };
        map[id] = node;

        if (el.tagName.toLowerCase() === 'iframe') {
            try {
                const idoc = el.contentDocument;
                if (idoc && idoc.documentElement) {
                    const childId = record(idoc.documentElement, idoc, false);
                    if (childId) node.contentRootId = childId;
                } else {
                    node.opaque = true;
                }
            } catch (e) {
                node.opaque = true; // cross-origin: opaque leaf, never throw
            }
            return id;
        }

        if (el.shadowRoot) {
            const hostDoc = doc;
            const srId = String(nextId++);
            map[srId] = {
                type: 'ELEMENT_NODE', tagName: '#shadow-root', xpath: node.xpath,
                attributes: {}, isVisible: node.isVisible, isTopElement: false,
                isInteractive: false, isContentEditable: false, inViewport: node.inViewport,
                boundingBox: node.boundingBox, children: [],
            };
            node.contentRootId = srId;
            for (const child of el.shadowRoot.childNodes) {
                const cid = walkNode(child, hostDoc, node.isVisible);
                if (cid) map[srId].children.push(cid);
            }
        }

        if (!leaf) walkChildrenInto(el, id, doc);
        return id;
    }

    function walkChildrenInto(el, id, doc) {
        for (const child of el.childNodes) {
            const cid = walkNode(child, doc, map[id].isVisible);
            if (cid) map[id].children.push(cid);
        }
    }

    function walkNode(n, doc, parentVisible) {
        if (n.nodeType === Node.TEXT_NODE) return walkText(n, parentVisible);
        if (n.nodeType === Node.ELEMENT_NODE) return walkElement(n, doc);
        return null;
    }

    const rootId = record(document.documentElement, document, false);
    return { rootId: rootId, map: map };
}`

// EpochScript reads back the build marker stamped by DOMScript. Returns the
// empty string when the document has been replaced since the last build.
const EpochScript = `() => window.__autoweb_epoch__ || ''`

// MetricsScript reads viewport and scroll geometry.
const MetricsScript = `() => ({
    viewport_width: window.innerWidth,
    viewport_height: window.innerHeight,
    page_width: document.documentElement.scrollWidth,
    page_height: document.documentElement.scrollHeight,
    scroll_x: Math.round(window.scrollX),
    scroll_y: Math.round(window.scrollY),
})`

// HighlightScript draws numbered boxes over the given elements for debugging.
// Boxes live in a single container keyed by id, removed and redrawn on every
// call so repeated injection stays idempotent.
const HighlightScript = `(elements) => {
    const old = document.getElementById('autoweb-overlay');
    if (old) old.remove();
    const container = document.createElement('div');
    container.id = 'autoweb-overlay';
    container.setAttribute('data-autoweb-overlay', '1');
    container.style.pointerEvents = 'none';
    document.body.appendChild(container);
    for (const e of elements) {
        const el = document.evaluate(e.xpath, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
        if (!el) continue;
        const rect = el.getBoundingClientRect();
        const box = document.createElement('div');
        box.style.cssText = 'position:absolute;border:2px solid red;z-index:2147483646;pointer-events:none;' +
            'left:' + (rect.left + window.scrollX) + 'px;top:' + (rect.top + window.scrollY) + 'px;' +
            'width:' + rect.width + 'px;height:' + rect.height + 'px;';
        box.innerHTML = '<span style="background:red;color:white;font-size:12px;">' + e.index + '</span>';
        container.appendChild(box);
    }
    return true;
}`
