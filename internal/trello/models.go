package trello

type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

type Card struct {
	ID          string       `json:"id"`
	ListID      string       `json:"idList"`
	Name        string       `json:"name"`
	Desc        string       `json:"desc"`
	Closed      bool         `json:"closed"`
	Labels      []Label      `json:"labels"`
	Attachments []Attachment `json:"attachments"`
}

type List struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

// Board is one snapshot of a remote board. Only the fields the mirror renders
// are decoded; everything else in the payload is ignored.
type Board struct {
	Lists []List `json:"lists"`
	Cards []Card `json:"cards"`
}

// OpenLists returns the lists that are not closed, in source order.
func (b *Board) OpenLists() []List {
	lists := make([]List, 0, len(b.Lists))
	for _, l := range b.Lists {
		if !l.Closed {
			lists = append(lists, l)
		}
	}
	return lists
}

// OpenCards returns the open cards belonging to listID, in source order.
func (b *Board) OpenCards(listID string) []Card {
	cards := []Card{}
	for _, c := range b.Cards {
		if c.ListID == listID && !c.Closed {
			cards = append(cards, c)
		}
	}
	return cards
}
