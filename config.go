package docmap

import (
	"github.com/autom8ter/docmap/schema"
	"github.com/autom8ter/docmap/util"
)

// Config configures query contexts
type Config struct {
	// Locale is the locale localized fields are read in
	Locale string `json:"locale" mapstructure:"locale" validate:"required"`
	// Fallbacks lists, per locale, the locales to fall back to when a translation is missing
	Fallbacks map[string][]string `json:"fallbacks,omitempty" mapstructure:"fallbacks"`
	// LegacyPluckDistinct makes pluck and distinct return raw stored values of top level keys
	LegacyPluckDistinct bool `json:"legacy_pluck_distinct" mapstructure:"legacy_pluck_distinct"`
	// LogLevel is the level of the default logger
	LogLevel string `json:"log_level,omitempty" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Locale:   schema.DefaultLocale,
		LogLevel: "info",
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	return util.ValidateStruct(&c)
}

// LocaleChain returns the configured locale with its fallbacks
func (c Config) LocaleChain() schema.Locale {
	return schema.Locale{Current: c.Locale, Fallbacks: c.Fallbacks}
}
