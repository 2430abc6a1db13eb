package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default values for optional configuration parameters.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = true

	DefaultPrivateMarker     = "private"
	DefaultRedirectNoticeTTL = 10 * time.Second
	DefaultEmptyNoticeTTL    = 15 * time.Second

	DefaultBackfillPageSize  = 100
	DefaultBackfillPageDelay = time.Second

	DefaultDBPath = "linkherd.db"
)

// Load loads and validates configuration from:
// 1. Default values
// 2. The config file at path (optional)
// 3. LINKHERD_* environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("LINKHERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only surfaces keys viper already knows about, and the
	// token deliberately has no default.
	_ = v.BindEnv("discord.token")

	// A missing config file is fine, everything can come from env.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: failed to read config file: %v", ErrConfiguration, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.json", DefaultLogJSON)

	v.SetDefault("routing.private_marker", DefaultPrivateMarker)
	v.SetDefault("routing.redirect_notice_ttl", DefaultRedirectNoticeTTL)
	v.SetDefault("routing.empty_notice_ttl", DefaultEmptyNoticeTTL)

	v.SetDefault("backfill.enabled", false)
	v.SetDefault("backfill.page_size", DefaultBackfillPageSize)
	v.SetDefault("backfill.page_delay", DefaultBackfillPageDelay)

	v.SetDefault("database.path", DefaultDBPath)
}
