package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode    string   `yaml:"mode"`
	Symbols []string `yaml:"symbols"`

	Run struct {
		MaxParallelSymbols int    `yaml:"max_parallel_symbols"`
		TimeoutSeconds     int    `yaml:"timeout_seconds"`
		WindowStart        string `yaml:"window_start"` // HH:MM local, empty disables gating
		WindowEnd          string `yaml:"window_end"`
	} `yaml:"run"`

	Scoring struct {
		MinHeadlineLength     int     `yaml:"min_headline_length"`
		MaxHeadlinesPerSource int     `yaml:"max_headlines_per_source"`
		MaxHeadlinesTotal     int     `yaml:"max_headlines_total"`
		DecayLambdaPerHour    float64 `yaml:"decay_lambda_per_hour"`
	} `yaml:"scoring"`

	Thresholds struct {
		Buy  float64 `yaml:"buy"`
		Sell float64 `yaml:"sell"`
	} `yaml:"thresholds"`

	Qty struct {
		Default   int            `yaml:"default"`
		PerSymbol map[string]int `yaml:"per_symbol"`
	} `yaml:"qty"`

	Sources []SourceConfig `yaml:"sources"`

	Store struct {
		Path       string `yaml:"path"`
		ArchiveDir string `yaml:"archive_dir"` // optional per-day mirror
	} `yaml:"store"`

	Report struct {
		CSVDir string `yaml:"csv_dir"`
		Email  struct {
			Enabled     bool     `yaml:"enabled"`
			Host        string   `yaml:"host"`
			Port        int      `yaml:"port"`
			From        string   `yaml:"from"`
			To          []string `yaml:"to"`
			Username    string   `yaml:"username"`
			PasswordEnv string   `yaml:"password_env"`
		} `yaml:"email"`
	} `yaml:"report"`

	Broker struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"broker"`
}

// SourceConfig describes one headline source. Kind selects the
// implementation: "rss", "scrape" or "reddit".
type SourceConfig struct {
	ID         string   `yaml:"id"`
	Kind       string   `yaml:"kind"`
	Enabled    bool     `yaml:"enabled"`
	Weight     float64  `yaml:"weight"`
	URL        string   `yaml:"url"` // template, {symbol} is substituted
	Subreddits []string `yaml:"subreddits"`
	MinDelayMs int      `yaml:"min_delay_ms"` // minimum gap between requests to the upstream host
	MaxRetries int      `yaml:"max_retries"`
}

// SourceWeights returns the configured source_id -> weight mapping.
// Sources without an explicit weight default to 1.0.
func (c *Config) SourceWeights() map[string]float64 {
	weights := make(map[string]float64, len(c.Sources))
	for _, s := range c.Sources {
		w := s.Weight
		if w <= 0 {
			w = 1.0
		}
		weights[s.ID] = w
	}
	return weights
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if len(c.Symbols) == 0 {
		return errors.New("symbols cannot be empty")
	}
	if c.Thresholds.Buy <= c.Thresholds.Sell {
		return fmt.Errorf("thresholds.buy (%.3f) must be greater than thresholds.sell (%.3f)",
			c.Thresholds.Buy, c.Thresholds.Sell)
	}
	if c.Qty.Default <= 0 {
		return fmt.Errorf("qty.default must be positive, got %d", c.Qty.Default)
	}
	if c.Scoring.DecayLambdaPerHour < 0 {
		return fmt.Errorf("scoring.decay_lambda_per_hour cannot be negative, got %.3f", c.Scoring.DecayLambdaPerHour)
	}
	seen := map[string]bool{}
	for _, s := range c.Sources {
		if s.ID == "" {
			return errors.New("every source needs an id")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate source id '%s'", s.ID)
		}
		seen[s.ID] = true
		switch s.Kind {
		case "rss", "scrape":
			if s.URL == "" {
				return fmt.Errorf("source '%s' (%s) needs a url", s.ID, s.Kind)
			}
		case "reddit":
			if len(s.Subreddits) == 0 {
				return fmt.Errorf("source '%s' (reddit) needs at least one subreddit", s.ID)
			}
		default:
			return fmt.Errorf("source '%s': unknown kind '%s'", s.ID, s.Kind)
		}
		if s.Weight < 0 {
			return fmt.Errorf("source '%s': weight cannot be negative", s.ID)
		}
	}
	if c.Store.Path == "" {
		return errors.New("store.path cannot be empty")
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.Run.MaxParallelSymbols == 0 {
		c.Run.MaxParallelSymbols = 4
	}
	if c.Run.TimeoutSeconds == 0 {
		c.Run.TimeoutSeconds = 300
	}
	if c.Scoring.MinHeadlineLength == 0 {
		c.Scoring.MinHeadlineLength = 10
	}
	if c.Scoring.MaxHeadlinesPerSource == 0 {
		c.Scoring.MaxHeadlinesPerSource = 10
	}
	if c.Scoring.MaxHeadlinesTotal == 0 {
		c.Scoring.MaxHeadlinesTotal = 50
	}
	if c.Thresholds.Buy == 0 && c.Thresholds.Sell == 0 {
		c.Thresholds.Buy = 0.6
		c.Thresholds.Sell = 0.4
	}
	if c.Qty.Default == 0 {
		c.Qty.Default = 1
	}
	if c.Broker.BaseURL == "" {
		c.Broker.BaseURL = "https://paper-api.alpaca.markets"
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

// QtyFor returns the configured order quantity for a symbol.
func (c *Config) QtyFor(symbol string) int {
	if v, ok := c.Qty.PerSymbol[symbol]; ok && v > 0 {
		return v
	}
	return c.Qty.Default
}
