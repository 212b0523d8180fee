package schema

import "go.mongodb.org/mongo-driver/v2/bson"

// DefaultLocale is used when no locale is configured
const DefaultLocale = "en"

// Locale selects a translation out of a localized value
type Locale struct {
	// Current is the active locale
	Current string `json:"current" validate:"required"`
	// Fallbacks lists the locales to try, in order, when a translation for a locale is missing
	Fallbacks map[string][]string `json:"fallbacks,omitempty"`
}

// NewLocale returns a locale without fallbacks
func NewLocale(current string) Locale {
	if current == "" {
		current = DefaultLocale
	}
	return Locale{Current: current}
}

// Chain returns the current locale followed by its fallbacks
func (l Locale) Chain() []string {
	current := l.Current
	if current == "" {
		current = DefaultLocale
	}
	chain := []string{current}
	seen := map[string]bool{current: true}
	for _, fb := range l.Fallbacks[current] {
		if !seen[fb] {
			seen[fb] = true
			chain = append(chain, fb)
		}
	}
	return chain
}

// Lookup returns the translation for the current locale, falling back to the first fallback
// locale that has a key in the translations.
func (l Locale) Lookup(translations bson.M) any {
	for _, locale := range l.Chain() {
		if value, ok := translations[locale]; ok {
			return value
		}
	}
	return nil
}
