package web

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmllt/boardmirror/internal/mirror"
	"github.com/gmllt/boardmirror/internal/trello"
)

type staticSource struct{ board *trello.Board }

func (s staticSource) Fetch(context.Context, string) (*trello.Board, error) {
	return s.board, nil
}

type testEnv struct {
	sync   *mirror.Synchronizer
	poller *mirror.Poller
	hub    *Hub
	router http.Handler
}

func newTestEnv(t *testing.T, staticDir string) *testEnv {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><head><title>Roadmap</title></head><body><div data-trello-board="b1"></div></body></html>`))
	require.NoError(t, err)

	board := &trello.Board{
		Lists: []trello.List{{ID: "L1", Name: "Todo"}},
		Cards: []trello.Card{{ID: "C1", ListID: "L1", Name: "Buy milk"}},
	}
	selector := `[data-trello-board="b1"]`
	s := mirror.New(doc, staticSource{board: board}, nil)
	hub := NewHub()
	p := mirror.NewPoller(s, "b1", selector, time.Hour, nil, func(mirror.Stats) { hub.Broadcast() })
	srv := NewServer(s, p, hub, selector, staticDir, nil)
	return &testEnv{sync: s, poller: p, hub: hub, router: srv.Router()}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestServer_PageAndBoard(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(http.MethodGet, "/api/board", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(http.MethodPost, "/api/board/refresh", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<title>Roadmap</title>")
	assert.Contains(t, rec.Body.String(), `data-card-id="C1"`)

	rec = env.do(http.MethodGet, "/board", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), `<div data-trello-board="b1">`))
	assert.NotContains(t, rec.Body.String(), "<title>")

	rec = env.do(http.MethodGet, "/api/board", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var board trello.Board
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	assert.Equal(t, "Todo", board.Lists[0].Name)
	assert.Equal(t, "L1", board.Cards[0].ListID)
}

func TestServer_Scroll(t *testing.T) {
	env := newTestEnv(t, "")
	require.True(t, env.poller.Tick(context.Background()))

	rec := env.do(http.MethodPut, "/api/lists/L1/scroll", `{"scrollTop": 250}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	offset, err := env.sync.ScrollOffset("L1")
	require.NoError(t, err)
	assert.Equal(t, 250, offset)

	// a later pass keeps the reported offset
	require.True(t, env.poller.Tick(context.Background()))
	offset, err = env.sync.ScrollOffset("L1")
	require.NoError(t, err)
	assert.Equal(t, 250, offset)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"bad json", "/api/lists/L1/scroll", `{scrollTop`, http.StatusBadRequest},
		{"negative", "/api/lists/L1/scroll", `{"scrollTop": -5}`, http.StatusBadRequest},
		{"unknown list", "/api/lists/L9/scroll", `{"scrollTop": 5}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, env.do(http.MethodPut, tt.path, tt.body).Code)
		})
	}
}

func TestServer_BoardFragmentMissingContainer(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><body></body></html>`))
	require.NoError(t, err)
	s := mirror.New(doc, staticSource{board: &trello.Board{}}, nil)
	router := NewServer(s, nil, NewHub(), "#board", "", nil).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/board", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/board/refresh", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestServer_StaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "board.css"), []byte(".tr-card{}"), 0o644))
	env := newTestEnv(t, dir)

	rec := env.do(http.MethodGet, "/board.css", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ".tr-card{}", rec.Body.String())
}

func TestServer_EventsStream(t *testing.T) {
	env := newTestEnv(t, "")
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)
	assert.Equal(t, 1, env.hub.ClientCount())

	// the first pass creates elements and so notifies subscribers
	require.True(t, env.poller.Tick(context.Background()))

	var got []string
	for len(got) < 2 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line = strings.TrimSpace(line); line != "" {
			got = append(got, line)
		}
	}
	assert.Equal(t, []string{"event: refresh", "data: {}"}, got)
}
