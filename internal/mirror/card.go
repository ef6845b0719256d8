package mirror

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/gmllt/boardmirror/internal/trello"
)

var labelColors = map[string]struct{}{
	"red": {}, "green": {}, "yellow": {}, "blue": {}, "purple": {},
	"pink": {}, "black": {}, "sky": {}, "lime": {}, "orange": {},
}

// LabelClass maps a label color to its CSS class.
func LabelClass(color string) string {
	if _, ok := labelColors[color]; ok {
		return "tr-label-" + color
	}
	return "tr-label-default"
}

// RenderCard builds the inner content of a card element: labels, title,
// description and attachments, skipping the sections that would be empty.
// The returned nodes are detached and owned by the caller.
func RenderCard(card trello.Card) []*html.Node {
	var nodes []*html.Node

	if len(card.Labels) > 0 {
		strip := newElement("div", "tr-card-labels")
		for _, label := range card.Labels {
			name := label.Name
			if name == "" {
				name = "Unnamed"
			}
			tag := newElement("span", "tr-card-label", LabelClass(label.Color))
			tag.AppendChild(newText(name))
			strip.AppendChild(tag)
		}
		nodes = append(nodes, strip)
	}

	title := newElement("h4")
	title.AppendChild(newText(card.Name))
	nodes = append(nodes, title)

	if desc := FormatMarkdown(card.Desc); strings.TrimSpace(desc) != "" {
		p := newElement("p")
		children, err := html.ParseFragment(strings.NewReader(desc), &html.Node{
			Type:     html.ElementNode,
			Data:     "p",
			DataAtom: atom.P,
		})
		if err != nil {
			// sanitized markup always parses; keep the text if it somehow does not
			children = []*html.Node{newText(card.Desc)}
		}
		for _, c := range children {
			p.AppendChild(c)
		}
		nodes = append(nodes, p)
	}

	if len(card.Attachments) > 0 {
		strip := newElement("div", "tr-card-attachments", "thin-scrollbar")
		for _, att := range card.Attachments {
			name := att.Name
			if name == "" {
				name = "Attachment"
			}
			link := newElement("a")
			setAttr(link, "href", att.URL)
			setAttr(link, "target", "_blank")
			link.AppendChild(newText(name))
			strip.AppendChild(link)
		}
		nodes = append(nodes, strip)
	}

	return nodes
}

func newCardElement(card trello.Card) *html.Node {
	el := newElement("div", cardClass)
	setAttr(el, cardIDAttr, card.ID)
	for _, c := range RenderCard(card) {
		el.AppendChild(c)
	}
	return el
}

func newListElement(list trello.List) (el, column *html.Node) {
	el = newElement("div", listClass)
	setAttr(el, listIDAttr, list.ID)

	header := newElement("div", headerClass)
	header.AppendChild(newText(list.Name))

	column = newElement("div", columnClass, "thin-scrollbar")

	el.AppendChild(header)
	el.AppendChild(column)
	return el, column
}
