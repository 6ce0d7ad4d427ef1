package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"hexpeek/internal/diff"
	"hexpeek/internal/hexfmt"
	"hexpeek/internal/pagecache"
	"hexpeek/internal/search"
	"hexpeek/internal/store"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
)

type Engine struct {
	RowWidth        int   `toml:"row_width"`
	PageSize        int   `toml:"page_size"`
	CacheBudget     int64 `toml:"cache_budget"`
	MemoryThreshold int64 `toml:"memory_threshold"`
	DiffWindow      int   `toml:"diff_window"`
	DiffMinMatch    int   `toml:"diff_min_match"`
	DiffWordSize    int   `toml:"diff_word_size"`
	PollInterval    int   `toml:"poll_interval"`
	SearchWindow    int   `toml:"search_window"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Theme struct {
	Equal   string `toml:"equal"`
	Replace string `toml:"replace"`
	Insert  string `toml:"insert"`
	Delete  string `toml:"delete"`
	Offset  string `toml:"offset"`
	ASCII   string `toml:"ascii"`
}

type Config struct {
	Engine  Engine  `toml:"engine"`
	Logging Logging `toml:"logging"`
	Theme   Theme   `toml:"theme"`
}

func DefaultConfig() *Config {
	return &Config{
		Engine: Engine{
			RowWidth:        hexfmt.DefaultRowWidth,
			PageSize:        store.DefaultPageSize,
			CacheBudget:     pagecache.DefaultBudget,
			MemoryThreshold: store.DefaultMemoryThreshold,
			DiffWindow:      diff.DefaultMaxWindow,
			DiffMinMatch:    diff.DefaultMinMatch,
			DiffWordSize:    diff.DefaultWordSize,
			PollInterval:    diff.DefaultPollInterval,
			SearchWindow:    search.DefaultWindowSize,
		},
		Logging: Logging{
			Level:  "warn",
			Format: "text",
		},
		Theme: Theme{
			Equal:   "#AAAAAA",
			Replace: "#FFFF00",
			Insert:  "#00FF00",
			Delete:  "#FF0000",
			Offset:  "#0000FF",
			ASCII:   "#00FFFF",
		},
	}
}

func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "hexpeek.toml"
	}
	return filepath.Join(home, ".config", "hexpeek", "hexpeek.toml")
}

// Load reads the file at path over the defaults. A missing file yields the
// defaults; an empty path means ConfigPath.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	e := c.Engine
	switch {
	case e.RowWidth <= 0:
		return fmt.Errorf("engine.row_width must be positive, got %d", e.RowWidth)
	case e.PageSize <= 0:
		return fmt.Errorf("engine.page_size must be positive, got %d", e.PageSize)
	case e.DiffWindow <= 0:
		return fmt.Errorf("engine.diff_window must be positive, got %d", e.DiffWindow)
	case e.DiffMinMatch <= 0:
		return fmt.Errorf("engine.diff_min_match must be positive, got %d", e.DiffMinMatch)
	case e.DiffWordSize <= 0:
		return fmt.Errorf("engine.diff_word_size must be positive, got %d", e.DiffWordSize)
	case e.PollInterval <= 0:
		return fmt.Errorf("engine.poll_interval must be positive, got %d", e.PollInterval)
	case e.SearchWindow <= 0:
		return fmt.Errorf("engine.search_window must be positive, got %d", e.SearchWindow)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// Save writes the config to path, or ConfigPath when path is empty.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(c)
}

func (e Engine) DiffOptions(word bool) diff.Options {
	opts := diff.Options{
		WordSize:     e.DiffWordSize,
		MaxWindow:    e.DiffWindow,
		MinMatch:     e.DiffMinMatch,
		PollInterval: e.PollInterval,
	}
	if word {
		opts.Granularity = diff.Word
	}
	return opts
}

type Styles struct {
	Kinds  map[diff.Kind]lipgloss.Style
	Offset lipgloss.Style
	ASCII  lipgloss.Style
	Label  lipgloss.Style
	Value  lipgloss.Style
	Title  lipgloss.Style
}

// NewStyles builds the styles of theme on renderer, whose colour profile
// decides how much of the theme survives.
func NewStyles(r *lipgloss.Renderer, theme *Theme) *Styles {
	return &Styles{
		Kinds: map[diff.Kind]lipgloss.Style{
			diff.Equal: r.NewStyle().
				Foreground(lipgloss.Color(theme.Equal)),
			diff.Replace: r.NewStyle().
				Foreground(lipgloss.Color(theme.Replace)).
				Bold(true),
			diff.Insert: r.NewStyle().
				Foreground(lipgloss.Color(theme.Insert)).
				Bold(true),
			diff.Delete: r.NewStyle().
				Foreground(lipgloss.Color(theme.Delete)).
				Bold(true),
		},
		Offset: r.NewStyle().
			Foreground(lipgloss.Color(theme.Offset)),
		ASCII: r.NewStyle().
			Foreground(lipgloss.Color(theme.ASCII)),
		Label: r.NewStyle().
			Foreground(lipgloss.Color("#888888")),
		Value: r.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")),
		Title: r.NewStyle().
			Bold(true),
	}
}

func (s *Styles) Kind(k diff.Kind) lipgloss.Style {
	if st, ok := s.Kinds[k]; ok {
		return st
	}
	return lipgloss.NewStyle()
}
