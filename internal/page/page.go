// Package page loads the HTML page that hosts the board mirror, splices
// partial files into the elements that ask for them, and finds the element
// the board should be mirrored into.
package page

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	IncludeAttr = "data-include"
	BoardAttr   = "data-trello-board"
)

var ErrNoBoard = errors.New("page has no board element")

// Load parses the page template at path.
func Load(path string) (*goquery.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("error parsing page %s: %w", path, err)
	}
	return doc, nil
}

// Include replaces the children of every [data-include] element with the
// parsed contents of the partial it names, resolved under root. A partial that
// cannot be read leaves its element as it was. It returns how many elements
// were filled.
func Include(doc *goquery.Document, root string, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	filled := 0
	doc.Find("[" + IncludeAttr + "]").Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr(IncludeAttr)
		if err := splice(sel.Get(0), root, name); err != nil {
			logger.Error("error loading partial", "partial", name, "error", err)
			return
		}
		filled++
	})
	return filled
}

func splice(el *html.Node, root, name string) error {
	if name == "" {
		return errors.New("empty partial name")
	}
	path := PartialPath(root, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	nodes, err := html.ParseFragment(bytes.NewReader(data), el)
	if err != nil {
		return fmt.Errorf("error parsing partial %s: %w", path, err)
	}
	for c := el.FirstChild; c != nil; c = el.FirstChild {
		el.RemoveChild(c)
	}
	for _, n := range nodes {
		el.AppendChild(n)
	}
	return nil
}

// PartialPath resolves name under root. Names cannot climb out of root.
func PartialPath(root, name string) string {
	return filepath.Join(root, filepath.FromSlash(filepath.Clean("/"+name)))
}

// DiscoverBoard returns the board id carried by the first [data-trello-board]
// element and a selector matching that element.
func DiscoverBoard(doc *goquery.Document) (boardID, selector string, err error) {
	el := doc.Find("[" + BoardAttr + "]").First()
	if el.Length() == 0 {
		return "", "", ErrNoBoard
	}
	boardID, _ = el.Attr(BoardAttr)
	if boardID == "" {
		return "", "", fmt.Errorf("%w: empty %s attribute", ErrNoBoard, BoardAttr)
	}
	return boardID, fmt.Sprintf("[%s=%q]", BoardAttr, boardID), nil
}
