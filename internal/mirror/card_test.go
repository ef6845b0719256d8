package mirror

import (
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmllt/boardmirror/internal/trello"
)

func TestLabelClass(t *testing.T) {
	tests := []struct {
		color string
		want  string
	}{
		{"red", "tr-label-red"},
		{"sky", "tr-label-sky"},
		{"orange", "tr-label-orange"},
		{"", "tr-label-default"},
		{"green_dark", "tr-label-default"},
		{"RED", "tr-label-default"},
	}
	for _, tt := range tests {
		t.Run(tt.color, func(t *testing.T) {
			assert.Equal(t, tt.want, LabelClass(tt.color))
		})
	}
}

func TestRenderCard_AllSections(t *testing.T) {
	card := trello.Card{
		ID:   "C1",
		Name: "Release",
		Desc: "ship **v2**",
		Labels: []trello.Label{
			{Name: "Urgent", Color: "red"},
			{Color: "teal"},
		},
		Attachments: []trello.Attachment{
			{URL: "https://example.com/notes.pdf", Name: "Notes"},
			{URL: "https://example.com/raw"},
		},
	}

	wrap := newElement("div")
	wrap.AppendChild(newCardElement(card))
	sel := goquery.NewDocumentFromNode(wrap).Find(".tr-card")
	require.Equal(t, 1, sel.Length())
	assert.Equal(t, "C1", sel.AttrOr("data-card-id", ""))

	children := sel.Children()
	require.Equal(t, 4, children.Length())
	assert.True(t, children.Eq(0).HasClass("tr-card-labels"))
	assert.Equal(t, "h4", goquery.NodeName(children.Eq(1)))
	assert.Equal(t, "p", goquery.NodeName(children.Eq(2)))
	assert.True(t, children.Eq(3).HasClass("tr-card-attachments"))

	labels := sel.Find(".tr-card-label")
	require.Equal(t, 2, labels.Length())
	assert.True(t, labels.Eq(0).HasClass("tr-label-red"))
	assert.Equal(t, "Urgent", labels.Eq(0).Text())
	assert.True(t, labels.Eq(1).HasClass("tr-label-default"))
	assert.Equal(t, "Unnamed", labels.Eq(1).Text())

	assert.Equal(t, "Release", sel.Find("h4").Text())
	assert.Equal(t, "v2", sel.Find("p b").Text())

	links := sel.Find(".tr-card-attachments a")
	require.Equal(t, 2, links.Length())
	assert.Equal(t, "https://example.com/notes.pdf", links.Eq(0).AttrOr("href", ""))
	assert.Equal(t, "_blank", links.Eq(0).AttrOr("target", ""))
	assert.Equal(t, "Notes", links.Eq(0).Text())
	assert.Equal(t, "Attachment", links.Eq(1).Text())
}

func TestRenderCard_TitleOnly(t *testing.T) {
	nodes := RenderCard(trello.Card{Name: "Plain", Desc: "   "})
	require.Len(t, nodes, 1)
	assert.Equal(t, "h4", nodes[0].Data)
	assert.Equal(t, "<h4>Plain</h4>", renderNodes(nodes))
}

func TestRenderCard_IsDeterministic(t *testing.T) {
	card := trello.Card{
		Name:   "Same",
		Desc:   "line one\n*line* two [link](https://example.com)",
		Labels: []trello.Label{{Name: "x", Color: "blue"}},
	}
	assert.Equal(t, renderNodes(RenderCard(card)), renderNodes(RenderCard(card)))
}
