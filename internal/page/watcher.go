package page

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/net/html"
)

// Updater grants exclusive access to a live document.
type Updater interface {
	Update(fn func(doc *goquery.Document))
}

// Watcher re-splices partials into the live page whenever a file in the
// partials directory is written or created.
type Watcher struct {
	root     string
	keep     string
	target   Updater
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onReload func()
}

// NewWatcher watches root and its immediate subdirectories. The content of the
// element matched by keep belongs to someone else: when a re-splice replaces
// that element, its children are carried over to the new one. onReload, when
// non-nil, runs after every re-splice.
func NewWatcher(root, keep string, target Updater, logger *slog.Logger, onReload func()) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(root); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch partials dir: %w", err)
	}
	entries, err := filepath.Glob(filepath.Join(root, "*"))
	if err == nil {
		for _, entry := range entries {
			if info, err := os.Stat(entry); err == nil && info.IsDir() {
				// best effort, the root itself is already watched
				_ = fw.Add(entry)
			}
		}
	}
	return &Watcher{
		root:     root,
		keep:     keep,
		target:   target,
		logger:   logger,
		watcher:  fw,
		debounce: 200 * time.Millisecond,
		onReload: onReload,
	}, nil
}

// Run processes file events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("partials watcher error", "error", err)

		case <-timer.C:
			w.Reload()
		}
	}
}

// Reload re-splices every partial into the live page.
func (w *Watcher) Reload() {
	var filled int
	w.target.Update(func(doc *goquery.Document) {
		var kept *html.Node
		if w.keep != "" {
			if sel := doc.Find(w.keep); sel.Length() > 0 {
				kept = sel.Get(0)
			}
		}
		filled = Include(doc, w.root, w.logger)
		if w.keep == "" {
			return
		}
		current := doc.Find(w.keep).First()
		if current.Length() == 0 {
			w.logger.Warn("kept element gone after reload", "selector", w.keep)
			return
		}
		if kept != nil && kept != current.Get(0) {
			moveChildren(kept, current.Get(0))
		}
	})
	w.logger.Info("partials reloaded", "count", filled)
	if w.onReload != nil {
		w.onReload()
	}
}

// moveChildren replaces the children of dst with the children of src.
func moveChildren(src, dst *html.Node) {
	for c := dst.FirstChild; c != nil; c = dst.FirstChild {
		dst.RemoveChild(c)
	}
	for c := src.FirstChild; c != nil; c = src.FirstChild {
		src.RemoveChild(c)
		dst.AppendChild(c)
	}
}
