// Package mirror keeps an HTML container in step with a remote kanban board.
//
// Each refresh fetches a board snapshot and reconciles it against the list and
// card elements already in the container: elements are matched by board id,
// reused when present, rebuilt only when their rendered content changed, and
// reordered without detaching the ones already in place. Column scroll offsets
// live on the column elements and survive every pass.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/gmllt/boardmirror/internal/trello"
)

var (
	ErrContainerMissing = errors.New("container not found")
	ErrFetchFailed      = errors.New("board fetch failed")
	ErrListNotFound     = errors.New("list not found")
)

// Stats counts the mutations made by one reconciliation pass.
type Stats struct {
	ListsCreated   int
	ListsRemoved   int
	ListsMoved     int
	HeadersUpdated int
	CardsCreated   int
	CardsUpdated   int
	CardsRemoved   int
	CardsMoved     int
}

func (s Stats) Mutations() int {
	return s.ListsCreated + s.ListsRemoved + s.ListsMoved + s.HeadersUpdated +
		s.CardsCreated + s.CardsUpdated + s.CardsRemoved + s.CardsMoved
}

func (s Stats) Changed() bool { return s.Mutations() > 0 }

func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("lists_created", s.ListsCreated),
		slog.Int("lists_removed", s.ListsRemoved),
		slog.Int("lists_moved", s.ListsMoved),
		slog.Int("headers_updated", s.HeadersUpdated),
		slog.Int("cards_created", s.CardsCreated),
		slog.Int("cards_updated", s.CardsUpdated),
		slog.Int("cards_removed", s.CardsRemoved),
		slog.Int("cards_moved", s.CardsMoved),
	)
}

func (s *Stats) addCards(o Stats) {
	s.CardsCreated += o.CardsCreated
	s.CardsUpdated += o.CardsUpdated
	s.CardsRemoved += o.CardsRemoved
	s.CardsMoved += o.CardsMoved
}

// Synchronizer owns the mirrored document. Readers and the reconciler share it
// through an RWMutex; a pass holds the write lock only after its fetch is done.
type Synchronizer struct {
	mu     sync.RWMutex
	doc    *goquery.Document
	board  *trello.Board
	source trello.Source
	logger *slog.Logger

	// selector of the container reconciled by the last successful pass
	selector string
}

func New(doc *goquery.Document, source trello.Source, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		doc:    doc,
		source: source,
		logger: logger,
	}
}

// Refresh fetches boardID and reconciles the element matched by selector
// against it. When the container is missing nothing is fetched; when the fetch
// fails the document is left exactly as it was.
func (s *Synchronizer) Refresh(ctx context.Context, boardID, selector string) (Stats, error) {
	s.mu.RLock()
	found := s.doc.Find(selector).Length() > 0
	s.mu.RUnlock()
	if !found {
		return Stats{}, fmt.Errorf("%w: %q", ErrContainerMissing, selector)
	}

	board, err := s.source.Fetch(ctx, boardID)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: board %s: %w", ErrFetchFailed, boardID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// the document may have changed while the fetch was in flight
	container := s.doc.Find(selector).First()
	if container.Length() == 0 {
		return Stats{}, fmt.Errorf("%w: %q", ErrContainerMissing, selector)
	}

	stats := reconcile(container.Get(0), board)
	s.board = board
	s.selector = selector
	s.logger.Debug("board reconciled", "board", boardID, "stats", stats)
	return stats, nil
}

func reconcile(container *html.Node, board *trello.Board) Stats {
	var stats Stats

	existing, stale := keyedChildren(container, listClass, listIDAttr)
	for _, el := range stale {
		container.RemoveChild(el)
		stats.ListsRemoved++
	}
	scrolls := make(map[string]int, len(existing))
	for id, el := range existing {
		if column := childByClass(el, columnClass); column != nil {
			scrolls[id] = scrollOffset(column)
		}
	}

	active := make(map[string]struct{})
	var ordered []*html.Node
	for _, list := range board.OpenLists() {
		if _, seen := active[list.ID]; seen {
			continue
		}
		active[list.ID] = struct{}{}

		el, ok := existing[list.ID]
		var column *html.Node
		if ok {
			var repaired bool
			column, repaired = reuseListElement(el, list)
			if repaired {
				stats.HeadersUpdated++
			}
		} else {
			el, column = newListElement(list)
			stats.ListsCreated++
		}

		stats.addCards(reconcileCards(column, board.OpenCards(list.ID)))
		ordered = append(ordered, el)
	}

	for id, el := range existing {
		if _, ok := active[id]; !ok {
			container.RemoveChild(el)
			stats.ListsRemoved++
		}
	}

	stats.ListsMoved += placeInOrder(container, ordered, listClass, listIDAttr)

	for _, el := range ordered {
		id, _ := getAttr(el, listIDAttr)
		offset, ok := scrolls[id]
		if !ok {
			continue
		}
		if column := childByClass(el, columnClass); column != nil {
			setScrollOffset(column, offset)
		}
	}

	return stats
}

// reuseListElement brings an existing list element's header up to date and
// returns its column. A header or column missing from the element is recreated.
func reuseListElement(el *html.Node, list trello.List) (*html.Node, bool) {
	changed := false
	header := childByClass(el, headerClass)
	if header == nil {
		header = newElement("div", headerClass)
		el.InsertBefore(header, el.FirstChild)
		changed = true
	}
	if textContent(header) != list.Name {
		setText(header, list.Name)
		changed = true
	}
	column := childByClass(el, columnClass)
	if column == nil {
		column = newElement("div", columnClass, "thin-scrollbar")
		el.AppendChild(column)
		changed = true
	}
	return column, changed
}

func reconcileCards(column *html.Node, cards []trello.Card) Stats {
	var stats Stats

	existing, stale := keyedChildren(column, cardClass, cardIDAttr)
	for _, el := range stale {
		column.RemoveChild(el)
		stats.CardsRemoved++
	}

	active := make(map[string]struct{}, len(cards))
	ordered := make([]*html.Node, 0, len(cards))
	for _, card := range cards {
		if _, seen := active[card.ID]; seen {
			continue
		}
		active[card.ID] = struct{}{}

		el, ok := existing[card.ID]
		if !ok {
			el = newCardElement(card)
			stats.CardsCreated++
		} else {
			content := RenderCard(card)
			if innerHTML(el) != renderNodes(content) {
				replaceChildren(el, content)
				stats.CardsUpdated++
			}
		}
		ordered = append(ordered, el)
	}

	for id, el := range existing {
		if _, ok := active[id]; !ok {
			column.RemoveChild(el)
			stats.CardsRemoved++
		}
	}

	stats.CardsMoved += placeInOrder(column, ordered, cardClass, cardIDAttr)
	return stats
}

// SetScroll records the scroll offset a browser reported for a list's column.
// Only lists inside the container of the last successful pass are considered.
func (s *Synchronizer) SetScroll(listID string, offset int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	column, err := s.column(listID)
	if err != nil {
		return err
	}
	setScrollOffset(column, offset)
	return nil
}

// ScrollOffset returns the recorded scroll offset of a list's column.
func (s *Synchronizer) ScrollOffset(listID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	column, err := s.column(listID)
	if err != nil {
		return 0, err
	}
	return scrollOffset(column), nil
}

// column finds the column of a mirrored list. Callers hold s.mu.
func (s *Synchronizer) column(listID string) (*html.Node, error) {
	if s.selector == "" {
		return nil, fmt.Errorf("%w: %s: board not mirrored yet", ErrListNotFound, listID)
	}
	container := s.doc.Find(s.selector).First()
	if container.Length() == 0 {
		return nil, fmt.Errorf("%w: %s: %w", ErrListNotFound, listID, ErrContainerMissing)
	}
	lists, _ := keyedChildren(container.Get(0), listClass, listIDAttr)
	el, ok := lists[listID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrListNotFound, listID)
	}
	column := childByClass(el, columnClass)
	if column == nil {
		return nil, fmt.Errorf("%w: %s has no column", ErrListNotFound, listID)
	}
	return column, nil
}

// Snapshot returns the board applied by the last successful pass, or nil.
func (s *Synchronizer) Snapshot() *trello.Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board
}

// Render writes the whole mirrored document.
func (s *Synchronizer) Render(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return html.Render(w, s.doc.Get(0))
}

// RenderContainer writes the outer HTML of the element matched by selector.
func (s *Synchronizer) RenderContainer(w io.Writer, selector string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	container := s.doc.Find(selector).First()
	if container.Length() == 0 {
		return fmt.Errorf("%w: %q", ErrContainerMissing, selector)
	}
	return html.Render(w, container.Get(0))
}

// Update runs fn with exclusive access to the document, for collaborators that
// rewrite parts of the page outside the board container.
func (s *Synchronizer) Update(fn func(doc *goquery.Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.doc)
}
