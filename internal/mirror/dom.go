package mirror

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	listClass   = "tr-column-base"
	headerClass = "tr-column-header"
	columnClass = "tr-column"
	cardClass   = "tr-card"

	listIDAttr = "data-list-id"
	cardIDAttr = "data-card-id"
	scrollAttr = "data-scroll-top"
)

func newElement(tag string, classes ...string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	if len(classes) > 0 {
		setAttr(n, "class", strings.Join(classes, " "))
	}
	return n
}

func newText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	v, ok := getAttr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func childByClass(n *html.Node, class string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasClass(c, class) {
			return c
		}
	}
	return nil
}

// keyedChildren maps the key attribute of every direct child carrying class to
// that child. An empty id is a valid key. Children without the key attribute,
// and later children repeating an id already seen, are returned as stale.
func keyedChildren(parent *html.Node, class, key string) (map[string]*html.Node, []*html.Node) {
	keyed := make(map[string]*html.Node)
	var stale []*html.Node
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if !hasClass(c, class) {
			continue
		}
		id, ok := getAttr(c, key)
		if !ok {
			stale = append(stale, c)
			continue
		}
		if _, seen := keyed[id]; seen {
			stale = append(stale, c)
			continue
		}
		keyed[id] = c
	}
	return keyed, stale
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func setText(n *html.Node, s string) {
	replaceChildren(n, []*html.Node{newText(s)})
}

func replaceChildren(n *html.Node, children []*html.Node) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
	for _, c := range children {
		n.AppendChild(c)
	}
}

func renderNodes(nodes []*html.Node) string {
	var sb strings.Builder
	for _, n := range nodes {
		// strings.Builder never fails
		_ = html.Render(&sb, n)
	}
	return sb.String()
}

func innerHTML(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&sb, c)
	}
	return sb.String()
}

func scrollOffset(column *html.Node) int {
	v, ok := getAttr(column, scrollAttr)
	if !ok {
		return 0
	}
	off, err := strconv.Atoi(v)
	if err != nil || off < 0 {
		return 0
	}
	return off
}

// setScrollOffset writes offset onto column and reports whether the tree changed.
func setScrollOffset(column *html.Node, offset int) bool {
	if offset < 0 {
		offset = 0
	}
	if scrollOffset(column) == offset {
		return false
	}
	setAttr(column, scrollAttr, strconv.Itoa(offset))
	return true
}

// placeInOrder moves the keyed children of parent so they appear in the order
// given by ordered. Nodes already in their slot are not detached. Children that
// are not keyed (text, foreign markup) are skipped over and keep their place.
// It returns the number of already attached nodes that had to move.
func placeInOrder(parent *html.Node, ordered []*html.Node, class, key string) int {
	isKeyed := func(n *html.Node) bool {
		if !hasClass(n, class) {
			return false
		}
		_, ok := getAttr(n, key)
		return ok
	}
	nextKeyed := func(n *html.Node) *html.Node {
		for ; n != nil; n = n.NextSibling {
			if isKeyed(n) {
				return n
			}
		}
		return nil
	}

	moved := 0
	cursor := nextKeyed(parent.FirstChild)
	for _, n := range ordered {
		if n == cursor {
			cursor = nextKeyed(cursor.NextSibling)
			continue
		}
		attached := n.Parent != nil
		if attached {
			n.Parent.RemoveChild(n)
		}
		if cursor == nil {
			parent.AppendChild(n)
		} else {
			parent.InsertBefore(n, cursor)
		}
		if attached {
			moved++
		}
	}
	return moved
}
