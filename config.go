package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gmllt/boardmirror/internal/mirror"
	"github.com/gmllt/boardmirror/internal/trello"
)

const (
	sourceTrello = "trello"
	sourceS3     = "s3"
)

type BoardConfig struct {
	// ID and Selector override what the page's [data-trello-board] element says.
	ID           string        `yaml:"id"`
	Selector     string        `yaml:"selector"`
	Interval     time.Duration `yaml:"interval"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

type SourceConfig struct {
	Kind    string `yaml:"kind"`
	BaseURL string `yaml:"base_url"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Listen        string          `yaml:"listen"`
	Page          string          `yaml:"page"`
	PartialsDir   string          `yaml:"partials_dir"`
	StaticDir     string          `yaml:"static_dir"`
	WatchPartials bool            `yaml:"watch_partials"`
	Board         BoardConfig     `yaml:"board"`
	Source        SourceConfig    `yaml:"source"`
	S3            trello.S3Config `yaml:"s3"`
	Log           LogConfig       `yaml:"log"`
}

func defaultConfig() *Config {
	return &Config{
		Listen:      ":8080",
		Page:        "index.html",
		PartialsDir: ".",
		StaticDir:   "static",
		Board: BoardConfig{
			Interval:     mirror.DefaultInterval,
			FetchTimeout: 10 * time.Second,
		},
		Source: SourceConfig{
			Kind:    sourceTrello,
			BaseURL: trello.DefaultBaseURL,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg := defaultConfig()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Page == "" {
		errs = append(errs, errors.New("page is required"))
	}
	if c.Board.Interval <= 0 {
		errs = append(errs, errors.New("board.interval must be positive"))
	}
	if c.Board.FetchTimeout <= 0 {
		errs = append(errs, errors.New("board.fetch_timeout must be positive"))
	}
	switch c.Source.Kind {
	case sourceTrello:
	case sourceS3:
		if c.S3.Endpoint == "" {
			errs = append(errs, errors.New("s3.endpoint is required for the s3 source"))
		}
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("s3.bucket is required for the s3 source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source.kind %q", c.Source.Kind))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log.level %q", s)
	}
	return level, nil
}

func newLogger(cfg LogConfig) *slog.Logger {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
