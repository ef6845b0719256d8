// Package trello fetches board snapshots from the places a board can live:
// the public Trello JSON export or an S3-compatible bucket.
package trello

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const DefaultBaseURL = "https://trello.com/b"

// Source produces the current snapshot of a board.
type Source interface {
	Fetch(ctx context.Context, boardID string) (*Board, error)
}

// HTTPSource reads <BaseURL>/<boardID>.json over plain HTTP GET.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPSource returns a source for baseURL. An empty baseURL means the public
// Trello endpoint.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Fetch(ctx context.Context, boardID string) (*Board, error) {
	url := fmt.Sprintf("%s/%s.json", s.BaseURL, boardID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("get %s: unexpected status %d", url, resp.StatusCode)
	}
	return decodeBoard(resp.Body)
}

func decodeBoard(r io.Reader) (*Board, error) {
	var board Board
	if err := json.NewDecoder(r).Decode(&board); err != nil {
		return nil, fmt.Errorf("error decoding board json: %w", err)
	}
	return &board, nil
}
