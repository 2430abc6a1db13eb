// Package config provides configuration loading and validation for linkherd.
// Values come from defaults, an optional config.yaml, and LINKHERD_*
// environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"linkherd/internal/links"
)

// ErrConfiguration indicates a fatal configuration problem. Startup aborts
// when Load returns an error wrapping it.
var ErrConfiguration = errors.New("configuration error")

// tokenPlaceholders are values shipped in the sample config. Running with one
// of these is always a mistake, so it is treated the same as a missing token.
var tokenPlaceholders = map[string]struct{}{
	"":               {},
	"YOUR_BOT_TOKEN": {},
	"REPLACE_ME":     {},
	"changeme":       {},
}

// Config defines the application configuration parameters for all components.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Routing  RoutingConfig  `mapstructure:"routing"`
	Backfill BackfillConfig `mapstructure:"backfill"`
	Database DatabaseConfig `mapstructure:"database"`
}

// LogConfig controls log level and output format.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DiscordConfig holds the bot credential.
type DiscordConfig struct {
	Token string `mapstructure:"token" validate:"required"`
}

// RoutingConfig controls link routing behavior.
type RoutingConfig struct {
	// Channels optionally pins a destination channel ID per category key
	// ("video", "store", "links"). Missing or stale entries are
	// auto-discovered or created per guild at startup.
	Channels map[string]string `mapstructure:"channels"`

	// PrivateMarker flags no-links channels by substring of the channel name.
	PrivateMarker string `mapstructure:"private_marker" validate:"required"`

	RedirectNoticeTTL time.Duration `mapstructure:"redirect_notice_ttl" validate:"min=1s,max=5m"`
	EmptyNoticeTTL    time.Duration `mapstructure:"empty_notice_ttl"    validate:"min=1s,max=5m"`
}

// BackfillConfig controls the one-shot historical scan.
type BackfillConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Cutoff is the RFC3339 instant beyond which history is left alone.
	Cutoff string `mapstructure:"cutoff"`

	PageSize  int           `mapstructure:"page_size"  validate:"min=1,max=100"`
	PageDelay time.Duration `mapstructure:"page_delay" validate:"min=100ms,max=1m"`
}

// DatabaseConfig holds the relocation audit log settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// CutoffTime returns the parsed backfill cutoff instant. Validate guarantees
// parseability when backfill is enabled; a malformed value yields the zero
// time here.
func (b BackfillConfig) CutoffTime() time.Time {
	t, err := time.Parse(time.RFC3339, b.Cutoff)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Validate checks the configuration for fatal problems. It also parses
// derived fields such as the backfill cutoff.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	if _, placeholder := tokenPlaceholders[c.Discord.Token]; placeholder {
		return fmt.Errorf("%w: discord token is missing or still a placeholder", ErrConfiguration)
	}

	for key := range c.Routing.Channels {
		if _, ok := links.ByKey(key); !ok {
			return fmt.Errorf("%w: unknown routing channel category %q", ErrConfiguration, key)
		}
	}

	if c.Backfill.Enabled {
		if _, err := time.Parse(time.RFC3339, c.Backfill.Cutoff); err != nil {
			return fmt.Errorf("%w: backfill cutoff must be RFC3339: %v", ErrConfiguration, err)
		}
	}

	return nil
}
