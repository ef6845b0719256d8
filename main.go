package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gmllt/boardmirror/internal/mirror"
	"github.com/gmllt/boardmirror/internal/page"
	"github.com/gmllt/boardmirror/internal/trello"
	"github.com/gmllt/boardmirror/internal/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:   "boardmirror",
		Short: "Mirror a Trello board into a web page",
		Long: `boardmirror polls a Trello board and keeps an HTML page in step with it,
updating lists and cards in place so browsers keep their scroll position.

Example usage:
  boardmirror serve               # poll the board and serve the page on :8080
  boardmirror render > out.html   # one pass, print the mirrored page`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yml", "path to the YAML config file")
	root.AddCommand(newServeCmd(&configPath), newRenderCmd(&configPath))
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll the board and serve the mirrored page",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			return a.serve(ctx)
		},
	}
}

func newRenderCmd(configPath *string) *cobra.Command {
	var fragment bool
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Run a single pass and print the mirrored page",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			stats, err := a.mirror.Refresh(cmd.Context(), a.boardID, a.selector)
			if err != nil {
				return err
			}
			a.logger.Info("board rendered", "board", a.boardID, "stats", stats)
			if fragment {
				return a.mirror.RenderContainer(cmd.OutOrStdout(), a.selector)
			}
			return a.mirror.Render(cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&fragment, "fragment", false, "print only the board container")
	return cmd
}

type app struct {
	cfg      *Config
	logger   *slog.Logger
	mirror   *mirror.Synchronizer
	boardID  string
	selector string
}

func setup(ctx context.Context, configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg.Log)

	doc, err := page.Load(cfg.Page)
	if err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}
	page.Include(doc, cfg.PartialsDir, logger)

	boardID, selector := cfg.Board.ID, cfg.Board.Selector
	if boardID == "" || selector == "" {
		id, sel, err := page.DiscoverBoard(doc)
		if err != nil {
			return nil, fmt.Errorf("no board configured: %w", err)
		}
		if boardID == "" {
			boardID = id
		}
		if selector == "" {
			selector = sel
		}
	}

	source, err := newSource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init board source: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		mirror:   mirror.New(doc, source, logger),
		boardID:  boardID,
		selector: selector,
	}, nil
}

func newSource(ctx context.Context, cfg *Config) (trello.Source, error) {
	switch cfg.Source.Kind {
	case sourceS3:
		client, err := trello.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		src := trello.NewS3Source(client, cfg.S3, cfg.Board.FetchTimeout)
		if err := src.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return src, nil
	default:
		return trello.NewHTTPSource(cfg.Source.BaseURL, cfg.Board.FetchTimeout), nil
	}
}

func (a *app) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := web.NewHub()
	poller := mirror.NewPoller(a.mirror, a.boardID, a.selector, a.cfg.Board.Interval, a.logger,
		func(mirror.Stats) { hub.Broadcast() })

	var watcher *page.Watcher
	if a.cfg.WatchPartials {
		w, err := page.NewWatcher(a.cfg.PartialsDir, a.selector, a.mirror, a.logger, hub.Broadcast)
		if err != nil {
			return err
		}
		watcher = w
	}

	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           web.NewServer(a.mirror, poller, hub, a.selector, a.cfg.StaticDir, a.logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Go(func() { poller.Run(ctx) })
	if watcher != nil {
		wg.Go(func() { watcher.Run(ctx) })
	}
	wg.Go(func() {
		<-ctx.Done()
		// event streams only end when their channel closes
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("error shutting down server", "error", err)
		}
	})

	a.logger.Info("board mirror starting", "listen", a.cfg.Listen, "board", a.boardID, "selector", a.selector)
	err := srv.ListenAndServe()
	cancel()
	wg.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		a.logger.Info("board mirror stopped")
		return nil
	}
	return fmt.Errorf("server failed: %w", err)
}
